package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Provider is the interface implemented by all hosting platform clients.
type Provider interface {
	// Platform returns the platform this provider serves.
	Platform() Platform
	// FetchMetadata retrieves normalized metadata for a repository.
	// Primary-call failures are *NotFoundError, *RateLimitError or *TransientError.
	FetchMetadata(ctx context.Context, ref Reference) (*Metadata, error)
}

// LoggerSetter is implemented by providers that log failed enrichment
// lookups.
type LoggerSetter interface {
	SetLogger(logrus.FieldLogger)
}

// Factory creates a provider instance for a given API base URL.
type Factory func(baseURL string, client *Client) Provider

var (
	factories = make(map[Platform]Factory)
	defaults  = make(map[Platform]string)
	mu        sync.RWMutex
)

// Register adds a provider factory to the global registry.
// defaultURL is the default API base URL for the platform.
func Register(platform Platform, defaultURL string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[platform] = factory
	defaults[platform] = defaultURL
}

// New creates a new provider for the given platform.
// If baseURL is empty, the default API URL is used.
func New(platform Platform, baseURL string, client *Client) (Provider, error) {
	mu.RLock()
	factory, ok := factories[platform]
	defaultURL := defaults[platform]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrUnsupported, platform)
	}

	if baseURL == "" {
		baseURL = defaultURL
	}
	if client == nil {
		client = DefaultClient()
	}

	return factory(baseURL, client), nil
}

// SupportedPlatforms returns all registered platforms, sorted.
func SupportedPlatforms() []Platform {
	mu.RLock()
	defer mu.RUnlock()

	platforms := make([]Platform, 0, len(factories))
	for p := range factories {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// DefaultURL returns the default API base URL for a platform.
func DefaultURL(platform Platform) string {
	mu.RLock()
	defer mu.RUnlock()
	return defaults[platform]
}
