// Package v1 carries the response and error types shared by the v1
// route groups.
package v1

import (
	"errors"
	"net/http"
)

// ErrorResponse is the JSON form every failed v1 request returns.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RequestError carries an error the handler expected together with the
// HTTP status the client should see. Any other error is treated as an
// internal failure and its message is masked from the client.
type RequestError struct {
	Err    error
	Status int
}

// NewRequestError wraps an expected error with the status code to
// respond with.
func NewRequestError(err error, status int) error {
	return &RequestError{Err: err, Status: status}
}

// Error returns the message of the wrapped error.
func (re *RequestError) Error() string {
	return re.Err.Error()
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (re *RequestError) Unwrap() error {
	return re.Err
}

// ToErrorResponse reduces a handler error to the response form and
// status the client receives. Errors a handler did not expect come back
// as a bare internal server error.
func ToErrorResponse(err error) (ErrorResponse, int) {
	var re *RequestError
	if errors.As(err, &re) {
		return ErrorResponse{Error: re.Err.Error()}, re.Status
	}

	return ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError
}
