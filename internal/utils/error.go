package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes with HTTP status mapping
const (
	// Schema errors
	ErrCodeUnknownSchema      = "UNKNOWN_SCHEMA"
	ErrCodeEmptySchemaMapping = "EMPTY_SCHEMA_MAPPING"

	// Validation errors
	ErrCodeBatchTooLarge      = "BATCH_TOO_LARGE"
	ErrCodeInvalidRecord      = "INVALID_RECORD"
	ErrCodeMalformedTimestamp = "MALFORMED_TIMESTAMP"
	ErrCodeChartRequiresLimit = "CHART_REQUIRES_LIMIT"
	ErrCodeInvalidParameters  = "INVALID_PARAMETERS"
	ErrCodeInvalidJSON        = "INVALID_JSON"

	// Conflict errors
	ErrCodeDuplicateIDs = "DUPLICATE_IDS"

	// Not found errors
	ErrCodeTableNotFound = "TABLE_NOT_FOUND"
	ErrCodeNoBackupFound = "NO_BACKUP_FOUND"
	ErrCodeNoCSVFiles    = "NO_CSV_FILES"
	ErrCodeNotFound      = "NOT_FOUND"

	// Backend errors
	ErrCodeInsertRejected    = "INSERT_REJECTED"
	ErrCodeTableVerifyFailed = "TABLE_VERIFY_FAILED"
	ErrCodeLoadFailed        = "LOAD_FAILED"
	ErrCodeExportFailed      = "EXPORT_FAILED"
	ErrCodeClearFailed       = "CLEAR_FAILED"
	ErrCodeRebuildFailed     = "REBUILD_FAILED"
	ErrCodeReloadFailed      = "RELOAD_FAILED"
	ErrCodeBackendError      = "BACKEND_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeRequestCanceled   = "REQUEST_CANCELED"

	// Corruption errors
	ErrCodeCorruptBackup = "CORRUPT_BACKUP"

	// Consistency errors
	ErrCodeStreamingBuffer = "STREAMING_BUFFER"

	// General errors
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// StatusClientClosedRequest is the non-standard status logged when the caller went away
const StatusClientClosedRequest = 499

// Category groups error codes by where the failure originated
type Category string

const (
	CategorySchema      Category = "schema"
	CategoryValidation  Category = "validation"
	CategoryConflict    Category = "conflict"
	CategoryNotFound    Category = "not_found"
	CategoryBackend     Category = "backend"
	CategoryCorruption  Category = "corruption"
	CategoryConsistency Category = "consistency"
	CategoryRequest     Category = "request"
	CategoryInternal    Category = "internal"
)

// HTTPStatus maps error codes to HTTP status codes
var HTTPStatus = map[string]int{
	ErrCodeUnknownSchema:      http.StatusBadRequest,
	ErrCodeEmptySchemaMapping: http.StatusInternalServerError,

	ErrCodeBatchTooLarge:      http.StatusBadRequest,
	ErrCodeInvalidRecord:      http.StatusBadRequest,
	ErrCodeMalformedTimestamp: http.StatusBadRequest,
	ErrCodeChartRequiresLimit: http.StatusBadRequest,
	ErrCodeInvalidParameters:  http.StatusBadRequest,
	ErrCodeInvalidJSON:        http.StatusBadRequest,

	ErrCodeDuplicateIDs: http.StatusBadRequest,

	ErrCodeTableNotFound: http.StatusNotFound,
	ErrCodeNoBackupFound: http.StatusNotFound,
	ErrCodeNoCSVFiles:    http.StatusNotFound,
	ErrCodeNotFound:      http.StatusNotFound,

	ErrCodeInsertRejected:    http.StatusInternalServerError,
	ErrCodeTableVerifyFailed: http.StatusInternalServerError,
	ErrCodeLoadFailed:        http.StatusInternalServerError,
	ErrCodeExportFailed:      http.StatusInternalServerError,
	ErrCodeClearFailed:       http.StatusInternalServerError,
	ErrCodeRebuildFailed:     http.StatusInternalServerError,
	ErrCodeReloadFailed:      http.StatusInternalServerError,
	ErrCodeBackendError:      http.StatusInternalServerError,
	ErrCodeTimeout:           http.StatusGatewayTimeout,
	ErrCodeRequestCanceled:   StatusClientClosedRequest,

	ErrCodeCorruptBackup: http.StatusInternalServerError,

	ErrCodeStreamingBuffer: http.StatusConflict,

	ErrCodeInternalError:     http.StatusInternalServerError,
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeForbidden:         http.StatusForbidden,
	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
}

var categories = map[string]Category{
	ErrCodeUnknownSchema:      CategorySchema,
	ErrCodeEmptySchemaMapping: CategorySchema,

	ErrCodeBatchTooLarge:      CategoryValidation,
	ErrCodeInvalidRecord:      CategoryValidation,
	ErrCodeMalformedTimestamp: CategoryValidation,
	ErrCodeChartRequiresLimit: CategoryValidation,
	ErrCodeInvalidParameters:  CategoryValidation,
	ErrCodeInvalidJSON:        CategoryValidation,

	ErrCodeDuplicateIDs: CategoryConflict,

	ErrCodeTableNotFound: CategoryNotFound,
	ErrCodeNoBackupFound: CategoryNotFound,
	ErrCodeNoCSVFiles:    CategoryNotFound,
	ErrCodeNotFound:      CategoryNotFound,

	ErrCodeInsertRejected:    CategoryBackend,
	ErrCodeTableVerifyFailed: CategoryBackend,
	ErrCodeLoadFailed:        CategoryBackend,
	ErrCodeExportFailed:      CategoryBackend,
	ErrCodeClearFailed:       CategoryBackend,
	ErrCodeRebuildFailed:     CategoryBackend,
	ErrCodeReloadFailed:      CategoryBackend,
	ErrCodeBackendError:      CategoryBackend,
	ErrCodeTimeout:           CategoryBackend,

	ErrCodeCorruptBackup: CategoryCorruption,

	ErrCodeStreamingBuffer: CategoryConsistency,

	ErrCodeUnauthorized:      CategoryRequest,
	ErrCodeForbidden:         CategoryRequest,
	ErrCodeRateLimitExceeded: CategoryRequest,
	ErrCodeRequestCanceled:   CategoryRequest,
}

// CategoryOf returns the taxonomy category of an error code
func CategoryOf(code string) Category {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryInternal
}

// AppError represents an application error with additional context
type AppError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Cause   error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for creating errors
type ErrorBuilder struct {
	code    string
	message string
	details string
	data    interface{}
	cause   error
}

// NewErrorBuilder creates a new error builder
func NewErrorBuilder(code string) *ErrorBuilder {
	return &ErrorBuilder{code: code}
}

// WithMessage sets the error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.message = message
	return eb
}

// WithMessagef sets a formatted error message
func (eb *ErrorBuilder) WithMessagef(format string, args ...interface{}) *ErrorBuilder {
	eb.message = fmt.Sprintf(format, args...)
	return eb
}

// WithDetails sets the error details
func (eb *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	eb.details = details
	return eb
}

// WithData attaches structured data returned to the client
func (eb *ErrorBuilder) WithData(data interface{}) *ErrorBuilder {
	eb.data = data
	return eb
}

// WithCause sets the underlying error cause. The cause message becomes the
// details unless details were set explicitly.
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.cause = cause
	if eb.details == "" && cause != nil {
		eb.details = cause.Error()
	}
	return eb
}

// Build constructs the final AppError
func (eb *ErrorBuilder) Build() *AppError {
	code := eb.code
	// a deadline or cancellation anywhere in the chain wins over the step-specific code
	switch {
	case eb.cause == nil:
	case errors.Is(eb.cause, context.DeadlineExceeded):
		code = ErrCodeTimeout
	case errors.Is(eb.cause, context.Canceled):
		code = ErrCodeRequestCanceled
	}

	message := eb.message
	if message == "" || code != eb.code {
		message = getDefaultMessage(code)
	}

	return &AppError{
		Code:    code,
		Message: message,
		Details: eb.details,
		Data:    eb.data,
		Cause:   eb.cause,
	}
}

// getDefaultMessage returns a default message for error codes
func getDefaultMessage(code string) string {
	messages := map[string]string{
		ErrCodeUnknownSchema:      "No schema registered for table",
		ErrCodeEmptySchemaMapping: "Schema has no validated columns",
		ErrCodeBatchTooLarge:      "Too many records in one request",
		ErrCodeInvalidRecord:      "Invalid record",
		ErrCodeMalformedTimestamp: "Malformed datetime, expected YYYY-MM-DD HH:MM:SS",
		ErrCodeChartRequiresLimit: "A chart requires top_n",
		ErrCodeInvalidParameters:  "Invalid parameters",
		ErrCodeInvalidJSON:        "Invalid JSON format",
		ErrCodeDuplicateIDs:       "Duplicate ids",
		ErrCodeTableNotFound:      "Table not found",
		ErrCodeNoBackupFound:      "No backup found",
		ErrCodeNoCSVFiles:         "No csv files found in bucket",
		ErrCodeNotFound:           "Resource not found",
		ErrCodeInsertRejected:     "Warehouse rejected rows",
		ErrCodeTableVerifyFailed:  "Failed to verify table",
		ErrCodeLoadFailed:         "Load failed",
		ErrCodeExportFailed:       "Export failed",
		ErrCodeClearFailed:        "Failed to clear table",
		ErrCodeRebuildFailed:      "Failed to rebuild table",
		ErrCodeReloadFailed:       "Failed to reload table",
		ErrCodeBackendError:       "Backend error",
		ErrCodeTimeout:            "Operation timed out",
		ErrCodeRequestCanceled:    "Request canceled by client",
		ErrCodeCorruptBackup:      "Backup could not be decoded",
		ErrCodeStreamingBuffer:    "Table has rows in the streaming buffer",
		ErrCodeInternalError:      "Internal server error",
		ErrCodeUnauthorized:       "Unauthorized access",
		ErrCodeForbidden:          "Access forbidden",
		ErrCodeRateLimitExceeded:  "Rate limit exceeded",
	}

	if msg, exists := messages[code]; exists {
		return msg
	}
	return "Unknown error"
}

// NewError is shorthand for a builder with a message and optional cause
func NewError(code, message string, cause error) *AppError {
	return NewErrorBuilder(code).WithMessage(message).WithCause(cause).Build()
}

func NewValidationError(message string, details string) *AppError {
	return NewErrorBuilder(ErrCodeInvalidParameters).
		WithMessage(message).
		WithDetails(details).
		Build()
}

func NewTableNotFoundError(table string) *AppError {
	return NewErrorBuilder(ErrCodeTableNotFound).
		WithMessagef("Table '%s' does not exist", table).
		Build()
}

func NewUnknownSchemaError(table string) *AppError {
	return NewErrorBuilder(ErrCodeUnknownSchema).
		WithMessagef("No schema defined for table '%s'", table).
		Build()
}

func NewAuthenticationError(message string) *AppError {
	return NewErrorBuilder(ErrCodeUnauthorized).
		WithMessage(message).
		Build()
}

func NewAuthorizationError(message string) *AppError {
	return NewErrorBuilder(ErrCodeForbidden).
		WithMessage(message).
		Build()
}

// AsAppError extracts an AppError from err, wrapping unknown errors as internal
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewErrorBuilder(ErrCodeInternalError).WithCause(err).Build()
}

// IsErrorType checks if an error matches a specific error code
func IsErrorType(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, exists := HTTPStatus[appErr.Code]; exists {
			return status
		}
	}
	return http.StatusInternalServerError
}
