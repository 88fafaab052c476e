package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across the engine.
var (
	// ErrInvalidConfig marks a configuration that can never be satisfied.
	ErrInvalidConfig = errors.New("invalid interaction config")

	// ErrConfigFetch marks a failed or empty configuration fetch.
	ErrConfigFetch = errors.New("config fetch failed")

	// ErrNotFound marks a lookup for an unknown interaction.
	ErrNotFound = errors.New("interaction not found")

	// ErrClosed marks use of a component after Close.
	ErrClosed = errors.New("component is closed")
)

// ConfigError reports why a single interaction configuration was rejected.
// It wraps ErrInvalidConfig so callers can match with errors.Is.
type ConfigError struct {
	ConfigID   int64
	ConfigName string
	Reason     string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %d (%s): %s", e.ConfigID, e.ConfigName, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) hold.
func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates an authentication failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeInvalidAPIKey     ErrorCode = "invalid_api_key"
	ErrorCodeInvalidEvent      ErrorCode = "invalid_event"
	ErrorCodeInteractionLookup ErrorCode = "interaction_not_found"
)

// APIError is the canonical error shape returned by the HTTP surface.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Param is the parameter that caused the error (if applicable)
	Param string `json:"param,omitempty"`

	// StatusCode is the suggested HTTP status code
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code to the error.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithParam adds a parameter name to the error.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// ErrBadRequest creates an invalid request error.
func ErrBadRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrUnauthorized creates an authentication error.
func ErrUnauthorized(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message).
		WithCode(ErrorCodeInvalidAPIKey)
}

// ErrMissing creates a not found error.
func ErrMissing(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message).
		WithCode(ErrorCodeInteractionLookup)
}

// ErrInternal creates a server error.
func ErrInternal(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}
