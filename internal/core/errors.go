package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a repository does not exist or is private.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when the upstream API rejects a request with 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks failures that may succeed on retry.
	ErrTransient = errors.New("transient failure")
	// ErrUnsupported is returned for references no provider can serve.
	ErrUnsupported = errors.New("unsupported repository reference")
)

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Platform Platform
	Owner    string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: repository %s/%s not found", e.Platform, e.Owner, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError is returned when the platform rate limits requests.
// RetryAfter and ResetAt are zero when the upstream gave no hint.
type RateLimitError struct {
	Platform   Platform
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	switch {
	case !e.ResetAt.IsZero():
		return fmt.Sprintf("%s: rate limited, resets at %s", e.Platform, e.ResetAt.Local().Format(time.Kitchen))
	case e.RetryAfter > 0:
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Platform, e.RetryAfter)
	default:
		return fmt.Sprintf("%s: rate limited", e.Platform)
	}
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// TransientError is any primary-call failure other than 404 and 429:
// unexpected status codes, transport errors and undecodable bodies.
type TransientError struct {
	Platform   Platform
	StatusCode int // 0 for transport and decode failures
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Platform, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *TransientError) Unwrap() []error {
	return []error{ErrTransient, e.Err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
