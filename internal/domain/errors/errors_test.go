package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorIs(t *testing.T) {
	t.Run("matches on code regardless of message", func(t *testing.T) {
		err := NewConflictError("account name already exists")
		assert.True(t, stderrors.Is(err, NewConflictError("")))
		assert.False(t, stderrors.Is(err, NewNotFoundError("")))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("processing definition: %w", NewConflictError("already processed"))
		assert.True(t, stderrors.Is(wrapped, NewConflictError("")))
	})
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewStorageError("dynamodb Query failed", cause)
	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewValidationError("x").StatusCode)
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("x").StatusCode)
	assert.Equal(t, http.StatusConflict, NewConflictError("x").StatusCode)
	assert.Equal(t, http.StatusUnprocessableEntity, NewInsufficientFundsError("x").StatusCode)
	assert.Equal(t, http.StatusInternalServerError, NewStorageError("x", nil).StatusCode)
	assert.Equal(t, http.StatusInternalServerError, NewInternalError("x", nil).StatusCode)
}

func TestWithDetail(t *testing.T) {
	err := NewValidationError("bad request").WithDetail("field", "name")
	assert.Equal(t, "name", err.Details["field"])
}
