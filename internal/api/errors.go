package api

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError is returned when the backend answers 401. By the time the
// caller sees it the persisted session has already been cleared.
type AuthError struct {
	Method string
	Path   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication required (401) on %s %s", e.Method, e.Path)
}

// StatusError is any other non-2xx response. It is returned untouched for
// the caller to handle.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.Code, e.Method, e.Path)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusCode returns the HTTP status carried by err, or 0 if none.
func StatusCode(err error) int {
	if IsAuthError(err) {
		return http.StatusUnauthorized
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthenticated reports whether err means the caller lacks a valid
// session (401 or 403).
func IsUnauthenticated(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// errorBody is the error envelope the backend uses.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
