package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestErrorSentinels(t *testing.T) {
	notFound := &NotFoundError{Platform: GitHub, Owner: "a", Name: "b"}
	if !errors.Is(notFound, ErrNotFound) {
		t.Error("NotFoundError should unwrap to ErrNotFound")
	}
	if IsTransient(notFound) {
		t.Error("NotFoundError should not be transient")
	}

	limited := &RateLimitError{Platform: GitLab}
	if !errors.Is(limited, ErrRateLimited) {
		t.Error("RateLimitError should unwrap to ErrRateLimited")
	}

	cause := errors.New("connection reset")
	transient := &TransientError{Platform: Gitea, Err: cause}
	if !IsTransient(transient) {
		t.Error("TransientError should be transient")
	}
	if !errors.Is(transient, cause) {
		t.Error("TransientError should unwrap to its cause")
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{Platform: GitHub, RetryAfter: 30 * time.Second}
	if !strings.Contains(err.Error(), "30s") {
		t.Errorf("Error() = %q, want retry hint", err.Error())
	}

	reset := time.Date(2026, 1, 1, 15, 4, 0, 0, time.Local)
	err = &RateLimitError{Platform: GitHub, ResetAt: reset}
	if !strings.Contains(err.Error(), reset.Format(time.Kitchen)) {
		t.Errorf("Error() = %q, want reset time %s", err.Error(), reset.Format(time.Kitchen))
	}
}

func TestClassifyHTTPError(t *testing.T) {
	ref := Reference{Platform: GitHub, Owner: "o", Name: "n"}
	ctx := context.Background()

	notFound := ClassifyHTTPError(ctx, ref, &HTTPError{StatusCode: http.StatusNotFound})
	var nf *NotFoundError
	if !errors.As(notFound, &nf) || nf.Name != "n" {
		t.Errorf("404 classified as %T %v", notFound, notFound)
	}

	h := http.Header{}
	h.Set("Retry-After", "120")
	limited := ClassifyHTTPError(ctx, ref, &HTTPError{StatusCode: http.StatusTooManyRequests, Header: h})
	var rl *RateLimitError
	if !errors.As(limited, &rl) {
		t.Fatalf("429 classified as %T", limited)
	}
	if rl.RetryAfter != 2*time.Minute {
		t.Errorf("RetryAfter = %v, want 2m", rl.RetryAfter)
	}

	server := ClassifyHTTPError(ctx, ref, &HTTPError{StatusCode: http.StatusBadGateway})
	var tr *TransientError
	if !errors.As(server, &tr) || tr.StatusCode != http.StatusBadGateway {
		t.Errorf("502 classified as %T %v", server, server)
	}

	transport := ClassifyHTTPError(ctx, ref, errors.New("dial tcp: connection refused"))
	if !IsTransient(transport) {
		t.Errorf("transport error classified as %T", transport)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := ClassifyHTTPError(canceled, ref, errors.New("request canceled")); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled context classified as %v", err)
	}
}

func TestEnricherLookup(t *testing.T) {
	e := Enricher{}
	ctx := context.Background()

	v, ok := e.Lookup(ctx, "language", func(context.Context) (string, error) { return "Go", nil })
	if !ok || v != "Go" {
		t.Errorf("Lookup = %q, %v; want Go, true", v, ok)
	}

	v, ok = e.Lookup(ctx, "language", func(context.Context) (string, error) { return "", errors.New("boom") })
	if ok || v != "" {
		t.Errorf("failed Lookup = %q, %v; want empty, false", v, ok)
	}

	_, ok = e.Lookup(ctx, "release", func(context.Context) (string, error) { return "", nil })
	if ok {
		t.Error("empty Lookup result should report ok == false")
	}
}
