package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "cart item not found"}
	assert.Equal(t, "NOT_FOUND: cart item not found", appErr.Error())

	wrapped := &AppError{Code: "INTERNAL_ERROR", Message: "boom", Err: fmt.Errorf("redis down")}
	assert.Contains(t, wrapped.Error(), "redis down")
}

func TestConstructors_WrapSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
		status   int
	}{
		{"not found", NotFound("cart item", "p9"), ErrNotFound, http.StatusNotFound},
		{"already exists", AlreadyExists("user", "email", "a@b.c"), ErrAlreadyExists, http.StatusConflict},
		{"invalid input", InvalidInput("bad"), ErrInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("nope"), ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), ErrForbidden, http.StatusForbidden},
		{"conflict", Conflict("illegal transition"), ErrConflict, http.StatusConflict},
		{"stock exhausted", StockExhausted("p3"), ErrStockExhausted, http.StatusConflict},
		{"unavailable", Unavailable("order backend down", errors.New("dial tcp")), ErrServiceUnavail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("order backend down", cause)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(InvalidInput("x")))
}

func TestHTTPStatus_PlainWrappedSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("get: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("add: %w", ErrStockExhausted)))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(fmt.Errorf("submit: %w", ErrServiceUnavail)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}

func TestInternal_HidesCause(t *testing.T) {
	err := Internal(errors.New("secret detail"))
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}
