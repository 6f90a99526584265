package oapi

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for request binding.
var (
	ErrBindPath   = errors.New("bind path")
	ErrBindQuery  = errors.New("bind query")
	ErrBindHeader = errors.New("bind header")
	ErrBindCookie = errors.New("bind cookie")
	ErrBindBody   = errors.New("bind body")
)

// Sentinel errors for route registration.
var (
	ErrDuplicateRoute      = errors.New("duplicate route")
	ErrUnrepresentableType = errors.New("unrepresentable type")
	ErrInvalidModule       = errors.New("invalid module")
	ErrExampleType         = errors.New("example does not match declared type")
	ErrInvalidRoute        = errors.New("invalid route")
)

// Sentinel errors returned by auth providers.
var (
	ErrNoPrincipal        = errors.New("no principal")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// problemer is implemented by errors that render as a problem detail.
type problemer interface {
	Problem() *ProblemDetail
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string       `json:"type,omitempty"`
	Title    string       `json:"title,omitempty"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// Problem returns p.
func (p *ProblemDetail) Problem() *ProblemDetail { return p }

// FieldError describes a single field binding or validation failure.
type FieldError struct {
	Field    string `json:"field"`
	Expected string `json:"expected,omitempty"`
	Message  string `json:"message"`
	Value    any    `json:"value,omitempty"`
}

// RegistrationError reports a route that could not be registered. It is
// raised with panic from the registration functions, before the route is
// installed.
type RegistrationError struct {
	Method  string
	Pattern string
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("oapi: register %s %s: %v", e.Method, e.Pattern, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// BindingError reports a path, query, header, cookie or body value that could
// not be coerced into the declared type.
type BindingError struct {
	Field    string
	Expected string
	Reason   string
	Status   int
	Err      error
}

func (e *BindingError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *BindingError) Unwrap() error { return e.Err }

// StatusCode returns 400 unless a more specific status was set.
func (e *BindingError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusBadRequest
}

// Problem renders the binding failure.
func (e *BindingError) Problem() *ProblemDetail {
	status := e.StatusCode()
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: e.Error(),
		Errors: []FieldError{{Field: e.Field, Expected: e.Expected, Message: e.Reason}},
	}
}

// ValidationError reports request values that were bound but failed
// validation.
type ValidationError struct {
	Errors []FieldError
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%d constraint violation(s)", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StatusCode returns 400.
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// Problem renders the validation failure.
func (e *ValidationError) Problem() *ProblemDetail {
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Detail: e.Error(),
		Errors: e.Errors,
	}
}

// AuthError reports a principal that could not be resolved.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Err.Error() }

func (e *AuthError) Unwrap() error { return e.Err }

// StatusCode returns 401 or 403.
func (e *AuthError) StatusCode() int { return e.Status }

// Problem renders the auth failure.
func (e *AuthError) Problem() *ProblemDetail {
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(e.Status),
		Status: e.Status,
		Detail: e.Err.Error(),
	}
}

// asAuthError maps a provider error to 401, or 403 for ErrForbidden.
func asAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, ErrForbidden) {
		return &AuthError{Status: http.StatusForbidden, Err: err}
	}
	return &AuthError{Status: http.StatusUnauthorized, Err: err}
}

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func registrationError(method, pattern string, err error) *RegistrationError {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re
	}
	return &RegistrationError{Method: method, Pattern: pattern, Err: err}
}
