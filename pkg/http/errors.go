package http

import (
	"fmt"
	"net/http"
)

// AppError is an error the handlers map onto an HTTP status and an envelope entry.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// InvalidParameterError creates a 400 error for a rejected chart parameter.
func InvalidParameterError(field, message string) *AppError {
	return NewAppError("ERR_INVALID_PARAMETER", field, message, http.StatusBadRequest)
}

// UnavailableError creates a 503 error for work that was canceled or timed out.
func UnavailableError(message string) *AppError {
	return NewAppError("ERR_TIMEOUT", "", message, http.StatusServiceUnavailable)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// NotFoundError creates a 404 error.
func NotFoundError(field, message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", field, message, http.StatusNotFound)
}
