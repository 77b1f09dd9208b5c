package core

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Enricher runs best-effort secondary lookups (languages, releases).
// Failures never propagate: they are logged at debug level and reported
// as ok == false so the caller simply omits the field.
type Enricher struct {
	Log logrus.FieldLogger
}

// Lookup runs fn and returns its value, or ok == false on any failure or
// an empty result.
func (e Enricher) Lookup(ctx context.Context, field string, fn func(context.Context) (string, error)) (string, bool) {
	v, err := fn(ctx)
	if err != nil {
		e.logger().WithError(err).WithField("field", field).Debug("enrichment lookup failed")
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}

func (e Enricher) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return DiscardLogger()
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ClassifyHTTPError maps a primary-call error from Client.GetJSON onto the
// error taxonomy: 404 is NotFound, 429 is RateLimited, everything else is
// Transient. When ctx itself is done its error is returned instead, so a
// per-request timeout stays transient while caller cancellation does not.
func ClassifyHTTPError(ctx context.Context, ref Reference, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusNotFound:
			return &NotFoundError{Platform: ref.Platform, Owner: ref.Owner, Name: ref.Name}
		case http.StatusTooManyRequests:
			retryAfter, resetAt := httpErr.RateLimitHint()
			return &RateLimitError{Platform: ref.Platform, RetryAfter: retryAfter, ResetAt: resetAt}
		}
		return &TransientError{Platform: ref.Platform, StatusCode: httpErr.StatusCode, Err: err}
	}
	return &TransientError{Platform: ref.Platform, Err: err}
}
