package editor

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every failure the persistence client can return.
// Nothing above this layer inspects raw transport errors.
type ErrorKind string

const (
	AuthRequired    ErrorKind = "auth_required"
	ValidationError ErrorKind = "validation_error"
	RateLimited     ErrorKind = "rate_limited"
	NotFound        ErrorKind = "not_found"
	ServerError     ErrorKind = "server_error"
	NetworkError    ErrorKind = "network_error"
)

// SaveError is the typed failure returned by the persistence client.
// RetryAfter is set only for RateLimited.
type SaveError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
}

func (e *SaveError) Error() string {
	if e.Kind == RateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s)", e.Kind, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func saveError(kind ErrorKind, message string) *SaveError {
	return &SaveError{Kind: kind, Message: message}
}

// KindOf extracts the ErrorKind from an error returned by this package.
// Unknown errors classify as NetworkError: they never reached a server that
// could say otherwise.
func KindOf(err error) ErrorKind {
	var se *SaveError
	if errors.As(err, &se) {
		return se.Kind
	}
	return NetworkError
}
