package http

import (
	"fmt"
	"net/http"
)

// AppError is an error a handler can answer with. Status picks the HTTP status; Code is
// the stable machine-readable name clients switch on.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParam attaches a detail clients may render, e.g. the offending value.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = map[string]interface{}{}
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func appError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return appError(http.StatusNotFound, "ERR_NOT_FOUND", fmt.Sprintf(format, a...))
}

func BadRequestError(message string) *AppError {
	return appError(http.StatusBadRequest, "ERR_BAD_REQUEST", message)
}

// UnprocessableError is for well-formed input the domain rejects, e.g. a chain without a
// stationary distribution.
func UnprocessableError(message string) *AppError {
	return appError(http.StatusUnprocessableEntity, "ERR_UNPROCESSABLE", message)
}

func ServiceUnavailableError(message string) *AppError {
	return appError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE", message)
}

func InternalError(message string) *AppError {
	return appError(http.StatusInternalServerError, "ERR_INTERNAL", message)
}
