package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies API failures for retry decisions and user-facing
// error messages.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindConnection ErrorKind = "connection"
	KindServer     ErrorKind = "server"
	KindOther      ErrorKind = "other"
)

// APIError wraps a provider failure with its classification.
type APIError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindAuth:
		return fmt.Sprintf("invalid API key for %s: %v", e.Provider, e.Err)
	case KindRateLimit:
		return fmt.Sprintf("rate limit exceeded: %v", e.Err)
	case KindConnection:
		return fmt.Sprintf("connection error to %s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("API error (%s): %v", e.Provider, e.Err)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// IsTransient reports whether the error is worth retrying: server errors,
// rate limits and connection failures. Auth errors never are.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case KindRateLimit, KindConnection, KindServer:
		return true
	}
	return false
}

func kindFromStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindOther
	}
}
