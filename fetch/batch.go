package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/git-pkgs/repometa/internal/core"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 150 * time.Millisecond
)

// MetadataFetcher is satisfied by *Orchestrator.
type MetadataFetcher interface {
	FetchRepositoryMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error)
}

// Batcher fetches many references in paced, concurrent batches.
type Batcher struct {
	fetcher MetadataFetcher
	size    int
	delay   time.Duration
}

// BatchOption configures a Batcher.
type BatchOption func(*Batcher)

// WithBatchSize sets how many references are fetched concurrently.
func WithBatchSize(n int) BatchOption {
	return func(b *Batcher) {
		b.size = n
	}
}

// WithBatchDelay sets the pause between batches.
func WithBatchDelay(d time.Duration) BatchOption {
	return func(b *Batcher) {
		b.delay = d
	}
}

// NewBatcher creates a batcher on top of f.
func NewBatcher(f MetadataFetcher, opts ...BatchOption) *Batcher {
	b := &Batcher{
		fetcher: f,
		size:    DefaultBatchSize,
		delay:   DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.size < 1 {
		b.size = 1
	}
	return b
}

// FetchAll returns metadata keyed by Reference.Key. Every input key is
// present in the result; failed lookups map to nil and never affect the
// other references. Once ctx is done no further batches start.
func (b *Batcher) FetchAll(ctx context.Context, refs []core.Reference) map[string]*core.Metadata {
	results := make(map[string]*core.Metadata, len(refs))
	for _, ref := range refs {
		results[ref.Key()] = nil
	}

	var mu sync.Mutex
	for start := 0; start < len(refs); start += b.size {
		if start > 0 && b.delay > 0 {
			if err := sleepContext(ctx, b.delay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		end := min(start+b.size, len(refs))
		var wg sync.WaitGroup
		for _, ref := range refs[start:end] {
			wg.Add(1)
			go func(ref core.Reference) {
				defer wg.Done()

				m, err := b.fetcher.FetchRepositoryMetadata(ctx, ref)
				if err != nil || m == nil {
					return
				}
				mu.Lock()
				results[ref.Key()] = m
				mu.Unlock()
			}(ref)
		}
		wg.Wait()
	}
	return results
}

// FetchURLs is FetchAll for raw URLs, keyed by the input string. URLs that
// do not parse map to nil.
func (b *Batcher) FetchURLs(ctx context.Context, urls []string) map[string]*core.Metadata {
	results := make(map[string]*core.Metadata, len(urls))
	refs := make([]core.Reference, 0, len(urls))
	byKey := make(map[string][]string)
	for _, u := range urls {
		results[u] = nil
		ref, ok := core.Parse(u)
		if !ok {
			continue
		}
		if _, seen := byKey[ref.Key()]; !seen {
			refs = append(refs, ref)
		}
		byKey[ref.Key()] = append(byKey[ref.Key()], u)
	}

	for key, m := range b.FetchAll(ctx, refs) {
		if m == nil {
			continue
		}
		for _, u := range byKey[key] {
			cp := *m
			results[u] = &cp
		}
	}
	return results
}
