// Package repometa fetches and caches repository metadata (stars, forks,
// license, latest release and so on) from code hosting platforms.
//
// GitHub, GitLab and Gitea/Forgejo hosts are supported through a unified
// interface. Results are normalized into a single Metadata shape and cached
// in memory and, optionally, on disk.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/repometa"
//		"github.com/git-pkgs/repometa/config"
//		_ "github.com/git-pkgs/repometa/all"
//	)
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc, err := repometa.Open(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
//
//	m, err := svc.FetchURL(context.Background(), "https://github.com/facebook/react")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(m.Stars, m.License)
//
// Providers register themselves on import; the all subpackage imports every
// supported platform.
package repometa

import (
	"context"
	"fmt"

	"github.com/git-pkgs/repometa/client"
	"github.com/git-pkgs/repometa/internal/core"
)

// Re-export types from internal/core
type (
	// Provider is the interface implemented by all platform clients.
	Provider = core.Provider

	// Platform identifies a hosting platform.
	Platform = core.Platform

	// Reference identifies a repository on a platform.
	Reference = core.Reference

	// Metadata is the normalized repository summary.
	Metadata = core.Metadata
)

// Re-export types from client
type (
	// Client is the HTTP client shared by providers.
	Client = client.Client

	// URLBuilder constructs web, API and PURL addresses for a repository.
	URLBuilder = client.URLBuilder
)

// Supported platforms.
const (
	GitHub = core.GitHub
	GitLab = core.GitLab
	Gitea  = core.Gitea
)

// Re-export errors
var (
	ErrNotFound    = core.ErrNotFound
	ErrRateLimited = core.ErrRateLimited
	ErrTransient   = core.ErrTransient
	ErrUnsupported = core.ErrUnsupported
)

// Error types
type (
	HTTPError      = client.HTTPError
	NotFoundError  = core.NotFoundError
	RateLimitError = core.RateLimitError
	TransientError = core.TransientError
)

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return core.IsTransient(err)
}

// Parse turns a repository URL or PURL into a Reference.
// ok is false for anything no supported platform recognizes.
func Parse(rawURL string) (Reference, bool) {
	return core.Parse(rawURL)
}

// DetectPlatform reports which platform hosts rawURL.
func DetectPlatform(rawURL string) (Platform, bool) {
	return core.DetectPlatform(rawURL)
}

// BuildAPIEndpoint returns the primary API URL for ref on the platform's
// public host.
func BuildAPIEndpoint(ref Reference) string {
	return core.BuildAPIEndpoint(ref)
}

// New creates a provider for the given platform.
// If baseURL is empty, the default API URL is used.
// If client is nil, DefaultClient() is used.
func New(platform Platform, baseURL string, c *Client) (Provider, error) {
	return core.New(platform, baseURL, c)
}

// DefaultClient returns a client with a 10s timeout and the default
// User-Agent.
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// Option configures a Client.
type Option = client.Option

// WithTimeout sets the per-request timeout.
var WithTimeout = client.WithTimeout

// WithUserAgent sets the User-Agent header.
var WithUserAgent = client.WithUserAgent

// SupportedPlatforms returns all registered platforms.
// Note: providers must be imported to be registered.
func SupportedPlatforms() []Platform {
	return core.SupportedPlatforms()
}

// BuildURLs returns a map of all non-empty URLs for a repository.
// Keys are "web", "api" and "purl".
func BuildURLs(urls URLBuilder, owner, name string) map[string]string {
	return client.BuildURLs(urls, owner, name)
}

// DefaultURL returns the default API base URL for a platform.
func DefaultURL(platform Platform) string {
	return core.DefaultURL(platform)
}

// FetchURL fetches metadata for rawURL with a one-off provider, bypassing
// the cache, retries and circuit breaker. Use a Service for anything
// long-running.
func FetchURL(ctx context.Context, rawURL string, c *Client) (*Metadata, error) {
	ref, ok := core.Parse(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, rawURL)
	}
	p, err := core.New(ref.Platform, "", c)
	if err != nil {
		return nil, err
	}
	return p.FetchMetadata(ctx, ref)
}
