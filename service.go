package repometa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/repometa/cache"
	"github.com/git-pkgs/repometa/client"
	"github.com/git-pkgs/repometa/config"
	"github.com/git-pkgs/repometa/fetch"
	"github.com/git-pkgs/repometa/internal/core"
	"github.com/git-pkgs/repometa/store/fsstore"
	"github.com/git-pkgs/repometa/store/sqlitestore"
)

// sqliteFile is the database name inside cache.dir for the sqlite backend.
const sqliteFile = "cache.db"

// keyLister is implemented by the durable stores that can enumerate keys.
type keyLister interface {
	Keys(prefix string) ([]string, error)
}

type storeCloser interface {
	Close() error
}

// Service is a configured retrieval stack: providers behind circuit
// breakers, the cache and its durable store, the retrying orchestrator and
// the batch coordinator.
type Service struct {
	orchestrator *fetch.Orchestrator
	batcher      *fetch.Batcher
	resolver     *fetch.Resolver
	cache        *cache.Cache[Metadata]
	store        cache.Store
	prefix       string
}

// Open builds a Service from cfg. A nil logger discards output.
func Open(cfg *config.Config, log logrus.FieldLogger) (*Service, error) {
	if log == nil {
		log = core.DiscardLogger()
	}

	c := client.NewClient(
		client.WithTimeout(cfg.HTTP.Timeout),
		client.WithUserAgent(cfg.HTTP.UserAgent),
	)

	baseURLs := make(map[Platform]string, len(cfg.BaseURLs))
	for platform, u := range cfg.BaseURLs {
		if u != "" {
			baseURLs[Platform(platform)] = u
		}
	}
	resolver, err := fetch.NewDefaultResolver(fetch.ResolverOptions{
		Client:   c,
		BaseURLs: baseURLs,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	cacheOpts := []cache.Option{
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithLogger(log.WithField("component", "cache")),
	}
	if store != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(store))
	}
	mc, err := cache.New[Metadata](cacheOpts...)
	if err != nil {
		_ = closeStore(store)
		return nil, err
	}

	orchestrator := fetch.NewOrchestrator(resolver, mc,
		fetch.WithMaxAttempts(cfg.Fetch.MaxAttempts),
		fetch.WithBaseDelay(cfg.Fetch.BaseDelay),
		fetch.WithDeadline(cfg.Fetch.Deadline),
		fetch.WithTTL(cfg.Cache.TTL),
		fetch.WithStaleWindow(cfg.Cache.StaleWindow),
		fetch.WithLogger(log.WithField("component", "fetch")),
	)

	return &Service{
		orchestrator: orchestrator,
		batcher: fetch.NewBatcher(orchestrator,
			fetch.WithBatchSize(cfg.Batch.Size),
			fetch.WithBatchDelay(cfg.Batch.Delay),
		),
		resolver: resolver,
		cache:    mc,
		store:    store,
		prefix:   cfg.Cache.Prefix,
	}, nil
}

func openStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendFS:
		s, err := fsstore.NewOS(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening cache dir: %w", err)
		}
		return s, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
		s, err := sqlitestore.Open(filepath.Join(cfg.Dir, sqliteFile))
		if err != nil {
			return nil, fmt.Errorf("opening cache database: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func closeStore(s cache.Store) error {
	if c, ok := s.(storeCloser); ok {
		return c.Close()
	}
	return nil
}

// FetchRepositoryMetadata returns metadata for ref, from the cache when
// possible.
func (s *Service) FetchRepositoryMetadata(ctx context.Context, ref Reference) (*Metadata, error) {
	return s.orchestrator.FetchRepositoryMetadata(ctx, ref)
}

// FetchURL parses rawURL and fetches its metadata.
func (s *Service) FetchURL(ctx context.Context, rawURL string) (*Metadata, error) {
	return s.orchestrator.FetchURL(ctx, rawURL)
}

// FetchAll fetches many references in paced batches. Failed lookups map
// to nil.
func (s *Service) FetchAll(ctx context.Context, refs []Reference) map[string]*Metadata {
	return s.batcher.FetchAll(ctx, refs)
}

// FetchURLs is FetchAll keyed by the input URLs.
func (s *Service) FetchURLs(ctx context.Context, urls []string) map[string]*Metadata {
	return s.batcher.FetchURLs(ctx, urls)
}

// Stats reports in-memory cache counters.
func (s *Service) Stats() cache.Stats {
	return s.cache.Stats()
}

// DurableKeys lists the cache keys held by the durable store, without the
// namespace prefix. It returns nil when no durable store is configured.
func (s *Service) DurableKeys() ([]string, error) {
	kl, ok := s.store.(keyLister)
	if !ok {
		return nil, nil
	}
	keys, err := kl.Keys(s.prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = k[len(s.prefix):]
	}
	return keys, nil
}

// ClearCache empties the in-memory cache and the durable namespace.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// Invalidate drops ref from the cache.
func (s *Service) Invalidate(ref Reference) {
	s.cache.Invalidate(ref.Key())
}

// BreakerStates reports each platform's circuit breaker state.
func (s *Service) BreakerStates() map[string]string {
	return s.resolver.BreakerStates()
}

// Close waits for background revalidations and releases the durable store.
func (s *Service) Close() error {
	s.orchestrator.Wait()
	return closeStore(s.store)
}
