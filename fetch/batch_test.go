package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/repometa/internal/core"
)

// fetcherFunc adapts a function to MetadataFetcher.
type fetcherFunc func(ctx context.Context, ref core.Reference) (*core.Metadata, error)

func (f fetcherFunc) FetchRepositoryMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error) {
	return f(ctx, ref)
}

func ghRef(owner, name string) core.Reference {
	return core.Reference{Platform: core.GitHub, Owner: owner, Name: name}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	refs := []core.Reference{ghRef("a", "one"), ghRef("b", "missing"), ghRef("c", "three")}
	f := fetcherFunc(func(_ context.Context, r core.Reference) (*core.Metadata, error) {
		if r.Name == "missing" {
			return nil, &core.NotFoundError{Platform: r.Platform, Owner: r.Owner, Name: r.Name}
		}
		return metadataWithStars(len(r.Name)), nil
	})

	got := NewBatcher(f, WithBatchDelay(0)).FetchAll(context.Background(), refs)

	require.Len(t, got, 3)
	assert.Equal(t, 3, got["github:a/one"].Stars)
	assert.Nil(t, got["github:b/missing"])
	assert.Contains(t, got, "github:b/missing")
	assert.Equal(t, 5, got["github:c/three"].Stars)
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	var inFlight, peak, calls atomic.Int32
	f := fetcherFunc(func(context.Context, core.Reference) (*core.Metadata, error) {
		calls.Add(1)
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return metadataWithStars(1), nil
	})

	var refs []core.Reference
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		refs = append(refs, ghRef("o", name))
	}

	got := NewBatcher(f, WithBatchSize(2), WithBatchDelay(0)).FetchAll(context.Background(), refs)

	assert.Len(t, got, 5)
	assert.Equal(t, int32(5), calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for key, m := range got {
		assert.NotNil(t, m, key)
	}
}

func TestFetchAllPacesBatches(t *testing.T) {
	f := fetcherFunc(func(context.Context, core.Reference) (*core.Metadata, error) {
		return metadataWithStars(1), nil
	})
	refs := []core.Reference{ghRef("o", "a"), ghRef("o", "b"), ghRef("o", "c")}

	start := time.Now()
	NewBatcher(f, WithBatchSize(1), WithBatchDelay(30*time.Millisecond)).FetchAll(context.Background(), refs)

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestFetchAllStopsWhenCanceled(t *testing.T) {
	var calls atomic.Int32
	f := fetcherFunc(func(context.Context, core.Reference) (*core.Metadata, error) {
		calls.Add(1)
		return metadataWithStars(1), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewBatcher(f).FetchAll(ctx, []core.Reference{ghRef("o", "a"), ghRef("o", "b")})

	assert.Equal(t, map[string]*core.Metadata{"github:o/a": nil, "github:o/b": nil}, got)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchAllEmpty(t *testing.T) {
	f := fetcherFunc(func(context.Context, core.Reference) (*core.Metadata, error) {
		t.Fatal("unexpected fetch")
		return nil, nil
	})
	assert.Empty(t, NewBatcher(f).FetchAll(context.Background(), nil))
}

func TestFetchURLs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	f := fetcherFunc(func(_ context.Context, r core.Reference) (*core.Metadata, error) {
		mu.Lock()
		seen[r.Key()]++
		mu.Unlock()
		return metadataWithStars(9), nil
	})

	urls := []string{
		"https://github.com/facebook/react",
		"https://github.com/facebook/react.git",
		"https://example.com/not/supported",
	}
	got := NewBatcher(f, WithBatchDelay(0)).FetchURLs(context.Background(), urls)

	require.Len(t, got, 3)
	assert.Equal(t, 9, got[urls[0]].Stars)
	assert.Equal(t, 9, got[urls[1]].Stars)
	assert.NotSame(t, got[urls[0]], got[urls[1]])
	assert.Nil(t, got[urls[2]])
	assert.Equal(t, map[string]int{"github:facebook/react": 1}, seen)
}

func TestNewBatcherClampsSize(t *testing.T) {
	b := NewBatcher(nil, WithBatchSize(0))
	assert.Equal(t, 1, b.size)
	assert.Equal(t, DefaultBatchDelay, b.delay)
}
