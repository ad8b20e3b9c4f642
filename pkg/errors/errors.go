// Package errors defines the error values shared by services and handlers
// and how each maps onto an HTTP answer.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// Sentinels. Wrap them with %w or use the constructors below.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrAlreadyExists        = errors.New("resource already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidCode          = errors.New("invalid code")
	ErrAccountDisabled      = errors.New("account disabled")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrGateway              = errors.New("gateway error")
)

// InvalidCredentialsMessage is shared by every login failure so callers cannot
// tell an unknown identifier from a wrong password.
const InvalidCredentialsMessage = "invalid login credentials"

// AppError is an error with a stable code and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
	// Field names the input that caused the error, when there is one.
	Field string `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(status int, code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: cause}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return newAppError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s with id %s not found", resource, id), ErrNotFound)
}

// AlreadyExists reports a unique field collision, for example a taken mobile.
func AlreadyExists(resource, field, value string) *AppError {
	e := newAppError(http.StatusConflict, "ALREADY_EXISTS", fmt.Sprintf("%s with %s %q already exists", resource, field, value), ErrAlreadyExists)
	e.Field = field
	return e
}

func InvalidInput(message string) *AppError {
	return newAppError(http.StatusBadRequest, "INVALID_INPUT", message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return newAppError(http.StatusUnauthorized, "UNAUTHORIZED", message, ErrUnauthorized)
}

// Internal hides err from the client behind a generic message.
func Internal(err error) *AppError {
	return newAppError(http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", err)
}

// InvalidCredentials is the single answer for every failed login.
func InvalidCredentials() *AppError {
	return newAppError(http.StatusBadRequest, "INVALID_CREDENTIALS", InvalidCredentialsMessage, ErrInvalidCredentials)
}

// InvalidCode covers a one-time code that is absent, used or expired.
func InvalidCode() *AppError {
	return newAppError(http.StatusBadRequest, "INVALID_CODE", "invalid verification code", ErrInvalidCode)
}

func AccountDisabled() *AppError {
	return newAppError(http.StatusForbidden, "ACCOUNT_DISABLED", "your account has been disabled by administrator", ErrAccountDisabled)
}

// AuthenticationFailed rejects a gateway confirmation whose signature does
// not verify.
func AuthenticationFailed(message string) *AppError {
	return newAppError(http.StatusBadRequest, "AUTHENTICATION_FAILED", message, ErrAuthenticationFailed)
}

// Gateway wraps a payment or SMS provider failure.
func Gateway(provider string, err error) *AppError {
	return newAppError(http.StatusBadGateway, "GATEWAY_ERROR", fmt.Sprintf("payment gateway %s failed", provider), errors.Join(ErrGateway, err))
}

// ValidationError collects every failed rule per field.
type ValidationError struct {
	Fields map[string][]string
}

// Validation starts a ValidationError with one field.
func Validation(field string, messages ...string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: messages}}
}

// Add appends messages for field.
func (e *ValidationError) Add(field string, messages ...string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], messages...)
}

// HasErrors reports whether any field has a message.
func (e *ValidationError) HasErrors() bool {
	for _, msgs := range e.Fields {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range slices.Sorted(maps.Keys(e.Fields)) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f + ": " + strings.Join(e.Fields[f], "; "))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Kind is the client-facing classification of an error.
type Kind struct {
	Status  int
	Code    string
	Message string
}

var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, Kind{http.StatusNotFound, "NOT_FOUND", "resource not found"}},
	{ErrAlreadyExists, Kind{http.StatusConflict, "ALREADY_EXISTS", "resource already exists"}},
	{ErrValidation, Kind{http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed"}},
	{ErrInvalidInput, Kind{http.StatusBadRequest, "INVALID_INPUT", ""}},
	{ErrInvalidCredentials, Kind{http.StatusBadRequest, "INVALID_CREDENTIALS", InvalidCredentialsMessage}},
	{ErrInvalidCode, Kind{http.StatusBadRequest, "INVALID_CODE", "invalid verification code"}},
	{ErrAuthenticationFailed, Kind{http.StatusBadRequest, "AUTHENTICATION_FAILED", "authentication failed"}},
	{ErrAccountDisabled, Kind{http.StatusForbidden, "ACCOUNT_DISABLED", "account disabled"}},
	{ErrUnauthorized, Kind{http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"}},
	{ErrGateway, Kind{http.StatusBadGateway, "GATEWAY_ERROR", "payment gateway failed"}},
}

// Classify maps err to what the client sees. An AppError speaks for itself;
// a wrapped sentinel gets its default answer; anything else is a 500.
// INVALID_INPUT keeps the error text since it only carries caller mistakes.
func Classify(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Kind{appErr.Status, appErr.Code, appErr.Message}
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			k := s.kind
			if k.Message == "" {
				k.Message = err.Error()
			}
			return k
		}
	}
	return Kind{http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"}
}

// HTTPStatus is Classify(err).Status.
func HTTPStatus(err error) int {
	return Classify(err).Status
}
