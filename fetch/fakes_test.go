package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/repometa/cache"
	"github.com/git-pkgs/repometa/internal/core"
)

// fakeProvider answers FetchMetadata with fn, counting calls.
type fakeProvider struct {
	platform core.Platform
	fn       func(ctx context.Context, call int) (*core.Metadata, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Platform() core.Platform { return f.platform }

func (f *fakeProvider) FetchMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(ctx, call)
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// staticProviders serves providers without circuit breakers.
type staticProviders map[core.Platform]core.Provider

func (s staticProviders) Provider(platform core.Platform) (core.Provider, error) {
	p, ok := s[platform]
	if !ok {
		return nil, core.ErrUnsupported
	}
	return p, nil
}

func transient(platform core.Platform, msg string) error {
	return &core.TransientError{Platform: platform, StatusCode: 503, Err: errors.New(msg)}
}

func metadataWithStars(n int) *core.Metadata {
	return &core.Metadata{Stars: n, DefaultBranch: "main"}
}

var reactRef = core.Reference{Platform: core.GitHub, Owner: "facebook", Name: "react"}

// newTestOrchestrator returns an orchestrator whose retry sleeps are
// recorded instead of slept. A nil cache gets a fresh default one.
func newTestOrchestrator(t *testing.T, p core.Provider, c *cache.Cache[core.Metadata], opts ...OrchestratorOption) (*Orchestrator, *[]time.Duration) {
	t.Helper()
	if c == nil {
		var err error
		c, err = cache.New[core.Metadata]()
		require.NoError(t, err)
	}

	o := NewOrchestrator(staticProviders{p.Platform(): p}, c, opts...)

	var mu sync.Mutex
	delays := &[]time.Duration{}
	o.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*delays = append(*delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	return o, delays
}
