// Package apierr defines the predictor error taxonomy.
//
// Every failure leaving the service carries a stable machine-readable key and a
// fixed HTTP status class:
//   - bad_prediction_request (400): malformed wire format or invalid payload
//   - prediction_request_failed (422): valid request the model cannot honor
//   - server_error (500): serialization failures and unexpected internal errors
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error keys shared with the evaluator contract.
const (
	KeyBadRequest       = "bad_prediction_request"
	KeyPredictionFailed = "prediction_request_failed"
	KeyServerError      = "server_error"
)

// Error is a taxonomy error carrying every accumulated message of the stage
// that failed, never just the first one.
type Error struct {
	Key        string
	StatusCode int
	Messages   []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, strings.Join(e.Messages, "; "))
}

// New creates a taxonomy error with the status class derived from the key.
func New(key string, messages ...string) *Error {
	return &Error{
		Key:        key,
		StatusCode: statusFor(key),
		Messages:   messages,
	}
}

// BadRequestf creates a single-message bad_prediction_request error.
func BadRequestf(format string, args ...interface{}) *Error {
	return New(KeyBadRequest, fmt.Sprintf(format, args...))
}

// Internalf creates a single-message server_error error.
func Internalf(format string, args ...interface{}) *Error {
	return New(KeyServerError, fmt.Sprintf(format, args...))
}

// MethodNotAllowed creates a 405 error under the bad_prediction_request key.
func MethodNotAllowed(message string) *Error {
	return &Error{
		Key:        KeyBadRequest,
		StatusCode: http.StatusMethodNotAllowed,
		Messages:   []string{message},
	}
}

// From translates any error into the taxonomy. Taxonomy errors pass through
// unchanged; anything else is wrapped as a server_error so no undifferentiated
// failure leaks to the caller.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internalf("An unexpected internal error occurred: %v.", err)
}

func statusFor(key string) int {
	switch key {
	case KeyBadRequest:
		return http.StatusBadRequest
	case KeyPredictionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
