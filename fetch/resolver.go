package fetch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/repometa/internal/core"
)

// ErrUpstreamDown is wrapped by the error returned while a platform's
// circuit breaker is open.
var ErrUpstreamDown = errors.New("upstream platform unavailable")

// Providers looks up the provider serving a platform.
type Providers interface {
	Provider(platform core.Platform) (core.Provider, error)
}

// Resolver maps platforms to circuit-breaker-wrapped providers.
type Resolver struct {
	providers map[core.Platform]*CircuitBreakerProvider
	mu        sync.RWMutex
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		providers: make(map[core.Platform]*CircuitBreakerProvider),
	}
}

// ResolverOptions configures NewDefaultResolver.
type ResolverOptions struct {
	Client   *core.Client
	BaseURLs map[core.Platform]string
	Logger   logrus.FieldLogger
}

// NewDefaultResolver registers a provider for every platform in the core
// registry. Importing the all package populates the registry.
func NewDefaultResolver(opts ResolverOptions) (*Resolver, error) {
	r := NewResolver()
	for _, platform := range core.SupportedPlatforms() {
		p, err := core.New(platform, opts.BaseURLs[platform], opts.Client)
		if err != nil {
			return nil, err
		}
		if l, ok := p.(core.LoggerSetter); ok && opts.Logger != nil {
			l.SetLogger(opts.Logger.WithField("platform", string(platform)))
		}
		r.Register(p)
	}
	return r, nil
}

// Register adds p, replacing any provider for the same platform.
func (r *Resolver) Register(p core.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Platform()] = NewCircuitBreakerProvider(p)
}

// Provider returns the provider for platform.
func (r *Resolver) Provider(platform core.Platform) (core.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no provider for platform %q", core.ErrUnsupported, platform)
	}
	return p, nil
}

// BreakerStates reports each platform's breaker state, for health checks.
func (r *Resolver) BreakerStates() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]string, len(r.providers))
	for platform, p := range r.providers {
		states[string(platform)] = p.State()
	}
	return states
}
