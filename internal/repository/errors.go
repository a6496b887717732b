package repository

import "errors"

// Common repository errors
var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrInvalidUUID       = errors.New("invalid UUID format")
)
