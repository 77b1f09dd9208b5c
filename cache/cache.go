// Package cache provides a size-bounded expiring cache with an optional
// durable backing store.
//
// Entries live in an in-memory LRU. When a Store is configured every Set is
// also persisted there, and memory misses fall back to it, so a new process
// starts with the previous session's entries. Expiry is lazy: an entry is
// only removed when a lookup finds it expired.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxEntries = 100
	DefaultPrefix     = "repometa:"
)

// Store is a durable key/value store. Implementations must be safe for
// concurrent use. Get reports a missing key as found == false, not as an
// error.
type Store interface {
	Get(key string) (data []byte, found bool, err error)
	Set(key string, data []byte) error
	Delete(key string) error
	// Clear removes every key with the given prefix.
	Clear(prefix string) error
}

// StaleResult is the outcome of GetWithStaleCheck.
type StaleResult[T any] struct {
	Data             T
	Found            bool
	IsStale          bool
	ShouldRevalidate bool
}

// Stats reports cache occupancy and lookup counters.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type entry[T any] struct {
	data     T
	storedAt time.Time
	ttl      time.Duration
}

// record is the durable representation of an entry.
type record[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
	TTL       int64 `json:"ttl"`       // milliseconds
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	maxEntries int
	store      Store
	prefix     string
	clock      clock.Clock
	log        logrus.FieldLogger
}

// WithMaxEntries bounds the number of in-memory entries.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithStore persists entries to s.
func WithStore(s Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithPrefix sets the namespace used for durable keys.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger for durable store failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Cache is a generic LRU cache with per-entry TTLs.
//
// mu guards memory and the counters. Durable I/O runs under storeMu
// instead, which is taken before mu is released, so the store sees
// changes in the order memory did while memory hits never wait on disk.
type Cache[T any] struct {
	mu      sync.Mutex
	storeMu sync.Mutex
	entries *lru.Cache[string, entry[T]]
	max     int
	store   Store
	prefix  string
	clock   clock.Clock
	log     logrus.FieldLogger
	hits    int64
	misses  int64
	// version counts memory changes; a durable read only repopulates
	// memory if nothing changed while it ran.
	version uint64
}

// New creates a cache.
func New[T any](opts ...Option) (*Cache[T], error) {
	o := options{
		maxEntries: DefaultMaxEntries,
		prefix:     DefaultPrefix,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEntries <= 0 {
		return nil, fmt.Errorf("cache: max entries must be positive, got %d", o.maxEntries)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}

	entries, err := lru.New[string, entry[T]](o.maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache[T]{
		entries: entries,
		max:     o.maxEntries,
		store:   o.store,
		prefix:  o.prefix,
		clock:   o.clock,
		log:     o.log,
	}, nil
}

// Get returns the value for key if it is present and unexpired. An expired
// entry is removed.
func (c *Cache[T]) Get(key string) (T, bool) {
	e, ok := c.lookup(key)
	return e.data, ok
}

// GetWithStaleCheck is Get with a freshness verdict. An entry within
// staleWindow of its expiry is returned with IsStale and ShouldRevalidate
// set. Absent and expired entries are misses that should be revalidated.
func (c *Cache[T]) GetWithStaleCheck(key string, staleWindow time.Duration) StaleResult[T] {
	e, ok := c.lookup(key)
	if !ok {
		return StaleResult[T]{ShouldRevalidate: true}
	}
	stale := staleWindow > 0 && c.age(e) > e.ttl-staleWindow
	return StaleResult[T]{
		Data:             e.data,
		Found:            true,
		IsStale:          stale,
		ShouldRevalidate: stale,
	}
}

// Set stores value under key for ttl, evicting the least recently used
// entry when the cache is full.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	e := entry[T]{data: value, storedAt: c.clock.Now(), ttl: ttl}
	evicted, full := c.add(key, e)
	c.handoff()
	defer c.storeMu.Unlock()

	if full {
		c.deleteDurable(evicted)
	}
	c.persist(key, e)
}

// Invalidate removes key from memory and the durable store.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	c.entries.Remove(key)
	c.version++
	c.handoff()
	defer c.storeMu.Unlock()

	c.deleteDurable(key)
}

// Clear removes every entry, including this cache's durable namespace,
// and resets the counters.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries.Purge()
	c.hits, c.misses = 0, 0
	c.version++
	c.handoff()
	defer c.storeMu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(c.prefix); err != nil {
			c.log.WithError(err).Warn("cache: clearing durable store failed")
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: c.entries.Len(),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

func (c *Cache[T]) age(e entry[T]) time.Duration {
	return c.clock.Now().Sub(e.storedAt)
}

// handoff trades mu for storeMu. The caller must hold mu and release
// storeMu when its durable I/O is done.
func (c *Cache[T]) handoff() {
	c.storeMu.Lock()
	c.mu.Unlock()
}

// lookup returns the unexpired entry for key from memory, falling back to
// the durable store, and counts the hit or miss. An expired memory entry
// is dropped; its durable copy expires with it and is removed by the
// durable read.
func (c *Cache[T]) lookup(key string) (entry[T], bool) {
	c.mu.Lock()
	if e, ok := c.entries.Get(key); ok {
		if c.age(e) < e.ttl {
			c.hits++
			c.mu.Unlock()
			return e, true
		}
		c.entries.Remove(key)
		c.version++
	}
	if c.store == nil {
		c.misses++
		c.mu.Unlock()
		return entry[T]{}, false
	}

	version := c.version
	c.handoff()
	e, ok := c.readDurable(key)
	c.storeMu.Unlock()

	c.mu.Lock()
	if !ok {
		c.misses++
		c.mu.Unlock()
		return entry[T]{}, false
	}
	c.hits++
	if c.version != version {
		// A newer write or removal owns memory now.
		c.mu.Unlock()
		return e, true
	}
	evicted, full := c.add(key, e)
	if !full {
		c.mu.Unlock()
		return e, true
	}
	c.handoff()
	c.deleteDurable(evicted)
	c.storeMu.Unlock()
	return e, true
}

// readDurable loads key from the store. Corrupt and expired entries are
// deleted. The caller holds storeMu.
func (c *Cache[T]) readDurable(key string) (entry[T], bool) {
	data, found, err := c.store.Get(c.prefix + key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache: durable read failed")
		return entry[T]{}, false
	}
	if !found {
		return entry[T]{}, false
	}

	e, err := decode[T](data)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache: corrupt durable entry - removing")
		c.deleteDurable(key)
		return entry[T]{}, false
	}
	if c.age(e) >= e.ttl {
		c.deleteDurable(key)
		return entry[T]{}, false
	}
	return e, true
}

// add puts e in memory and reports the key it evicted, if any. The caller
// holds mu and owes the store a delete for the evicted key.
func (c *Cache[T]) add(key string, e entry[T]) (evicted string, full bool) {
	if !c.entries.Contains(key) && c.entries.Len() >= c.max {
		evicted, _, full = c.entries.RemoveOldest()
	}
	c.entries.Add(key, e)
	c.version++
	return evicted, full
}

func (c *Cache[T]) persist(key string, e entry[T]) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(record[T]{
		Data:      e.data,
		Timestamp: e.storedAt.UnixMilli(),
		TTL:       e.ttl.Milliseconds(),
	})
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache: encoding entry failed")
		return
	}
	if err := c.store.Set(c.prefix+key, data); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache: durable write failed")
	}
}

func (c *Cache[T]) deleteDurable(key string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(c.prefix + key); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache: durable delete failed")
	}
}

var errMalformed = errors.New("malformed entry")

func decode[T any](data []byte) (entry[T], error) {
	var r struct {
		Data      json.RawMessage `json:"data"`
		Timestamp *int64          `json:"timestamp"`
		TTL       *int64          `json:"ttl"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return entry[T]{}, err
	}
	if len(r.Data) == 0 || r.Timestamp == nil || r.TTL == nil {
		return entry[T]{}, errMalformed
	}
	var v T
	if err := json.Unmarshal(r.Data, &v); err != nil {
		return entry[T]{}, err
	}
	return entry[T]{
		data:     v,
		storedAt: time.UnixMilli(*r.Timestamp),
		ttl:      time.Duration(*r.TTL) * time.Millisecond,
	}, nil
}
