package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeInternal      = "INTERNAL_ERROR"

	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}

// InvalidCredentials is the only failure a login ever reports, whatever the
// underlying cause.
func InvalidCredentials() *APIError {
	return New(CodeUnauthorized, "invalid credentials", "", http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	return New(CodeForbidden, message, "", http.StatusForbidden)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func Conflict(message string, details string) *APIError {
	return New(CodeAlreadyExists, message, details, http.StatusConflict)
}

// StatusOf returns the HTTP status carried by err, or fallback when err is
// not an *APIError.
func StatusOf(err error, fallback int) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatus != 0 {
		return apiErr.HTTPStatus
	}
	return fallback
}
