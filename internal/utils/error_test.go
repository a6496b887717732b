package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMapsContextErrors(t *testing.T) {
	tests := []struct {
		name   string
		cause  error
		code   string
		status int
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), ErrCodeRequestCanceled, StatusClientClosedRequest},
		{"other", errors.New("boom"), ErrCodeLoadFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewErrorBuilder(ErrCodeLoadFailed).WithMessage("Error loading").WithCause(tt.cause).Build()
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.status, GetErrorStatus(err))
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestBuildKeepsMessageWhenCodeUnchanged(t *testing.T) {
	err := NewErrorBuilder(ErrCodeTimeout).WithMessage("Timed out waiting for table 'jobs'").WithCause(context.DeadlineExceeded).Build()
	assert.Equal(t, "Timed out waiting for table 'jobs'", err.Message)

	err = NewErrorBuilder(ErrCodeTimeout).WithMessage("Timed out waiting for table 'jobs'").WithCause(context.Canceled).Build()
	assert.Equal(t, "Request canceled by client", err.Message)
	assert.Equal(t, CategoryRequest, CategoryOf(err.Code))
}
