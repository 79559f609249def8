package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a missing or malformed input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StorageError wraps a failed store operation. The driver error stays in logs;
// callers only see the operation name.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// HTTPStatus maps an operation error onto the response status
func HTTPStatus(err error) int {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage is the error text safe to return to clients
func PublicMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var serr *StorageError
	if errors.As(err, &serr) {
		return "storage error: " + serr.Op
	}
	return "internal error"
}
