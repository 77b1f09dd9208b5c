package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenk/backoff"
	"github.com/facebookgo/clock"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/git-pkgs/repometa/internal/core"
)

// CircuitBreakerProvider wraps a Provider with a circuit breaker so that a
// platform that keeps failing is not hammered by every retry of every
// caller.
type CircuitBreakerProvider struct {
	provider core.Provider
	breaker  *circuit.Breaker
}

// NewCircuitBreakerProvider wraps p. The breaker trips after 5 transient
// failures and stays open for an exponentially growing period between 30s
// and 5m.
func NewCircuitBreakerProvider(p core.Provider) *CircuitBreakerProvider {
	return newCircuitBreakerProvider(p, clock.New())
}

func newCircuitBreakerProvider(p core.Provider, clk clock.Clock) *CircuitBreakerProvider {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0
	expBackoff.Clock = clk
	expBackoff.Reset()

	opts := &circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
		Clock:      clk,
	}
	return &CircuitBreakerProvider{
		provider: p,
		breaker:  circuit.NewBreakerWithOptions(opts),
	}
}

func (c *CircuitBreakerProvider) Platform() core.Platform {
	return c.provider.Platform()
}

// FetchMetadata calls the wrapped provider unless the breaker is open.
// Only transient failures count against the breaker; a 404 or a rate limit
// means the platform is up.
func (c *CircuitBreakerProvider) FetchMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error) {
	var (
		m         *core.Metadata
		permanent error
	)
	err := c.breaker.Call(func() error {
		var err error
		m, err = c.provider.FetchMetadata(ctx, ref)
		if err != nil && !core.IsTransient(err) {
			permanent = err
			return nil
		}
		return err
	}, 0)

	switch {
	case errors.Is(err, circuit.ErrBreakerOpen):
		return nil, &core.TransientError{
			Platform: c.Platform(),
			Err:      fmt.Errorf("circuit breaker open: %w", ErrUpstreamDown),
		}
	case err != nil:
		return nil, err
	case permanent != nil:
		return nil, permanent
	}
	return m, nil
}

// State returns "open" or "closed".
func (c *CircuitBreakerProvider) State() string {
	if c.breaker.Tripped() {
		return "open"
	}
	return "closed"
}
