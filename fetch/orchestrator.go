// Package fetch retrieves repository metadata through the cache, with
// retries, circuit breaking and batching.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/git-pkgs/repometa/cache"
	"github.com/git-pkgs/repometa/internal/core"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultTTL         = 5 * time.Minute
	DefaultDeadline    = 30 * time.Second
)

// Orchestrator serves metadata from the cache and falls back to the
// platform provider on a miss.
type Orchestrator struct {
	providers   Providers
	cache       *cache.Cache[core.Metadata]
	maxAttempts int
	baseDelay   time.Duration
	ttl         time.Duration
	staleWindow time.Duration
	deadline    time.Duration
	log         logrus.FieldLogger

	group        singleflight.Group
	background   sync.WaitGroup
	revalidating sync.Map

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxAttempts sets the total number of provider calls per miss.
func WithMaxAttempts(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxAttempts = n
	}
}

// WithBaseDelay sets the delay before the first retry. Each further retry
// doubles it.
func WithBaseDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.baseDelay = d
	}
}

// WithTTL sets how long fetched metadata stays cached.
func WithTTL(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.ttl = d
	}
}

// WithStaleWindow enables stale-while-revalidate: entries within d of
// expiry are served immediately and refreshed in the background.
func WithStaleWindow(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.staleWindow = d
	}
}

// WithDeadline bounds the total time spent on one miss, retries included.
// Zero disables the deadline.
func WithDeadline(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.deadline = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// NewOrchestrator creates an orchestrator that owns c.
func NewOrchestrator(providers Providers, c *cache.Cache[core.Metadata], opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		providers:   providers,
		cache:       c,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		ttl:         DefaultTTL,
		deadline:    DefaultDeadline,
		log:         core.DiscardLogger(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}
	return o
}

// Cache returns the cache the orchestrator reads and writes.
func (o *Orchestrator) Cache() *cache.Cache[core.Metadata] {
	return o.cache
}

// FetchURL parses rawURL and fetches its metadata. References that no
// platform recognizes fail with core.ErrUnsupported.
func (o *Orchestrator) FetchURL(ctx context.Context, rawURL string) (*core.Metadata, error) {
	ref, ok := core.Parse(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupported, rawURL)
	}
	return o.FetchRepositoryMetadata(ctx, ref)
}

// FetchRepositoryMetadata returns metadata for ref. A cache hit never
// touches the network. On a miss the provider is called up to the attempt
// budget; NotFound and RateLimited errors are returned immediately, other
// failures are retried with exponential backoff and the last one is
// returned once attempts run out.
func (o *Orchestrator) FetchRepositoryMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error) {
	key := ref.Key()

	if o.staleWindow > 0 {
		res := o.cache.GetWithStaleCheck(key, o.staleWindow)
		if res.Found {
			if res.ShouldRevalidate {
				o.revalidate(ctx, ref)
			}
			m := res.Data
			return &m, nil
		}
	} else if m, ok := o.cache.Get(key); ok {
		return &m, nil
	}

	if o.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deadline)
		defer cancel()
	}

	m, err := o.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Wait blocks until background revalidations have finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// load collapses concurrent misses for one key into a single retrieval.
// The shared retrieval runs detached from every caller's cancellation and
// is bounded by the orchestrator deadline; each caller stops waiting when
// its own ctx ends.
func (o *Orchestrator) load(ctx context.Context, ref core.Reference) (core.Metadata, error) {
	ch := o.group.DoChan(ref.Key(), func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if o.deadline > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, o.deadline)
			defer cancel()
		}
		return o.fetchWithRetry(fctx, ref)
	})
	select {
	case <-ctx.Done():
		return core.Metadata{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Metadata{}, res.Err
		}
		return res.Val.(core.Metadata), nil
	}
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, ref core.Reference) (core.Metadata, error) {
	provider, err := o.providers.Provider(ref.Platform)
	if err != nil {
		return core.Metadata{}, err
	}

	log := o.log.WithField("repository", ref.Key())
	schedule := o.schedule()

	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, schedule.NextBackOff()); err != nil {
				return core.Metadata{}, err
			}
		}

		m, err := provider.FetchMetadata(ctx, ref)
		if err == nil {
			o.cache.Set(ref.Key(), *m, o.ttl)
			return *m, nil
		}
		lastErr = err

		if !retryable(ctx, err) {
			return core.Metadata{}, err
		}
		log.WithError(err).WithField("attempt", attempt+1).Debug("fetch failed")
	}

	log.WithError(lastErr).Warn("giving up after retries")
	return core.Metadata{}, lastErr
}

// schedule returns the retry delays: baseDelay, 2*baseDelay, 4*baseDelay...
func (o *Orchestrator) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = o.baseDelay << uint(o.maxAttempts)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// revalidate refreshes ref in the background unless a refresh for it is
// already running. The refresh outlives ctx's cancellation but keeps its
// values.
func (o *Orchestrator) revalidate(ctx context.Context, ref core.Reference) {
	key := ref.Key()
	if _, running := o.revalidating.LoadOrStore(key, struct{}{}); running {
		return
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		defer o.revalidating.Delete(key)

		if _, err := o.load(context.WithoutCancel(ctx), ref); err != nil {
			o.log.WithError(err).WithField("repository", key).Debug("background revalidation failed")
		}
	}()
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if core.IsTransient(err) {
		return true
	}
	switch {
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrRateLimited),
		errors.Is(err, core.ErrUnsupported),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
