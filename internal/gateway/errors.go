package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrAuthRejected matches every *AuthRejectedError through errors.Is.
var ErrAuthRejected = errors.New("authentication rejected")

// NetworkError means no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network or server problem: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthRejectedError is a 401 or 403 answer.
type AuthRejectedError struct {
	Status  int
	Message string
}

func (e *AuthRejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("authentication rejected (%d)", e.Status)
}

func (e *AuthRejectedError) Is(target error) bool { return target == ErrAuthRejected }

// FieldError is one entry of a 422 detail array.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// ValidationError is a 422 answer with per-field problems.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Message != "" {
			return e.Message
		}
		return "validation rejected"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

// Field returns the message for name, if the backend reported one.
func (e *ValidationError) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

// ServerError is any 5xx answer.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}

// RequestError covers the remaining non-2xx answers, such as a wrong
// verification code or a missing resource.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, msg)
}

// DecodeError means a successful response did not have the expected shape.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusCode reports the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var (
		authErr *AuthRejectedError
		srvErr  *ServerError
		reqErr  *RequestError
		valErr  *ValidationError
	)
	switch {
	case errors.As(err, &authErr):
		return authErr.Status
	case errors.As(err, &srvErr):
		return srvErr.Status
	case errors.As(err, &reqErr):
		return reqErr.Status
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity
	}
	return 0
}
