package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusAndPublicMessage(t *testing.T) {
	verr := invalid("room", "is required")
	serr := storage("claim commands", context.DeadlineExceeded)
	wrapped := fmt.Errorf("poll: %w", serr)

	assert.Equal(t, http.StatusBadRequest, HTTPStatus(verr))
	assert.Equal(t, "room: is required", PublicMessage(verr))

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(wrapped))
	assert.Equal(t, "storage error: claim commands", PublicMessage(wrapped))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.Contains(t, serr.Error(), "context deadline exceeded")

	other := errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(other))
	assert.Equal(t, "internal error", PublicMessage(other))
}

func TestValidationErrorWithoutField(t *testing.T) {
	err := &ValidationError{Message: "malformed JSON body"}
	assert.Equal(t, "malformed JSON body", err.Error())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, clamp(-3, 1, 50))
	assert.Equal(t, 50, clamp(90, 1, 50))
	assert.Equal(t, 12, clamp(12, 1, 50))
}
