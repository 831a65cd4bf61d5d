// Package apierror provides the error payload written by every HTTP handler
// and the mapping from domain error classes to HTTP statuses.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dealroom/api/pkg/domain/shared"
)

// Code represents an error code.
type Code string

// Standard error codes.
const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodePayloadTooLarge    Code = "PAYLOAD_TOO_LARGE"
	CodeRequestTimeout     Code = "REQUEST_TIMEOUT"
)

// Error represents a standardized API error.
type Error struct {
	// HTTP status code
	Status int `json:"-"`

	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	// Internal error, never written to the client.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response represents the error response structure.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ToResponse converts the error to a response structure.
func (e *Error) ToResponse(requestID string) Response {
	return Response{
		Error:     string(e.Code),
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		RequestID: requestID,
	}
}

// WriteJSON writes the error as JSON to the response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	e.WriteJSONWithRequestID(w, "")
}

// WriteJSONWithRequestID writes the error as JSON with request ID.
func (e *Error) WriteJSONWithRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToResponse(requestID))
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError adds an internal error.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *Error {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// ValidationFailed creates a 422 Unprocessable Entity error.
func ValidationFailed(message string, details any) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidationFailed,
		Message: message,
		Details: details,
	}
}

// InternalError creates a 500 Internal Server Error. The cause is kept for
// logging only.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// RateLimitExceeded creates a 429 Too Many Requests error.
func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge() *Error {
	return New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large")
}

// RequestTimeout creates a 503 error for handlers that ran past their deadline.
func RequestTimeout() *Error {
	return New(http.StatusServiceUnavailable, CodeRequestTimeout, "Request timed out")
}

// FromError converts any error to an API error. Domain error classes map to
// their HTTP status with the domain message; anything else becomes a 500.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, shared.ErrNotFound):
		return New(http.StatusNotFound, CodeNotFound, err.Error()).WithError(err)
	case errors.Is(err, shared.ErrAlreadyExists), errors.Is(err, shared.ErrConflict):
		return New(http.StatusConflict, CodeConflict, err.Error()).WithError(err)
	case errors.Is(err, shared.ErrValidation):
		return New(http.StatusBadRequest, CodeBadRequest, err.Error()).WithError(err)
	case errors.Is(err, shared.ErrForbidden):
		return New(http.StatusForbidden, CodeForbidden, "Access denied").WithError(err)
	}

	return InternalError(err)
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Add adds a validation error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToAPIError converts validation errors to an API error.
func (v ValidationErrors) ToAPIError() *Error {
	return ValidationFailed("Validation failed", v)
}

// SafeBadRequest creates a 400 error with a generic message. The actual
// error is stored for logging but not exposed.
func SafeBadRequest(err error) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: "Invalid request",
		Err:     err,
	}
}
