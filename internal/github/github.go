// Package github provides a metadata provider for GitHub repositories
// built on the go-github SDK.
package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v67/github"
	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/repometa/client"
	"github.com/git-pkgs/repometa/internal/core"
	"github.com/git-pkgs/repometa/internal/normalize"
)

const (
	DefaultURL = "https://api.github.com"
	platform   = core.GitHub
)

func init() {
	core.Register(platform, DefaultURL, func(baseURL string, client *core.Client) core.Provider {
		return New(baseURL, client)
	})
}

type Provider struct {
	api    *gh.Client
	urls   core.URLBuilder
	enrich core.Enricher
}

func New(baseURL string, c *core.Client) *Provider {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = core.DefaultClient()
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	api := gh.NewClient(c.HTTPClient())
	api.UserAgent = c.UserAgent()
	if u, err := url.Parse(baseURL + "/"); err == nil {
		api.BaseURL = u
	}

	return &Provider{
		api:  api,
		urls: core.URLsFor(platform, baseURL),
	}
}

// SetLogger sets the logger used for failed enrichment lookups.
func (p *Provider) SetLogger(l logrus.FieldLogger) {
	p.enrich.Log = l
}

func (p *Provider) Platform() core.Platform {
	return platform
}

func (p *Provider) URLs() core.URLBuilder {
	return p.urls
}

func (p *Provider) FetchMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error) {
	repo, resp, err := p.api.Repositories.Get(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, classify(ctx, ref, resp, err)
	}

	raw := core.Raw{
		Stars:         repo.StargazersCount,
		Forks:         repo.ForksCount,
		OpenIssues:    repo.OpenIssuesCount,
		Description:   repo.Description,
		Language:      repo.Language,
		DefaultBranch: repo.DefaultBranch,
	}
	switch {
	case repo.UpdatedAt != nil:
		raw.LastUpdated = &repo.UpdatedAt.Time
	case repo.PushedAt != nil:
		raw.LastUpdated = &repo.PushedAt.Time
	}
	if lic := repo.GetLicense(); lic != nil {
		raw.LicenseID = lic.SPDXID
		raw.LicenseName = lic.Name
	}

	if tag, ok := p.enrich.Lookup(ctx, "lastRelease", func(ctx context.Context) (string, error) {
		release, _, err := p.api.Repositories.GetLatestRelease(ctx, ref.Owner, ref.Name)
		if err != nil {
			return "", err
		}
		return release.GetTagName(), nil
	}); ok {
		raw.LastRelease = &tag
	}

	m := normalize.Metadata(raw, "")
	return &m, nil
}

// classify maps go-github errors onto the core error taxonomy. GitHub
// reports exhausted quotas as 403 with X-RateLimit-Remaining: 0, which the
// SDK surfaces as *RateLimitError.
func classify(ctx context.Context, ref core.Reference, resp *gh.Response, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &core.RateLimitError{Platform: platform, ResetAt: rateErr.Rate.Reset.Time}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var retryAfter time.Duration
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return &core.RateLimitError{Platform: platform, RetryAfter: retryAfter}
	}

	if resp != nil && resp.Response != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return &core.NotFoundError{Platform: platform, Owner: ref.Owner, Name: ref.Name}
		case http.StatusTooManyRequests:
			retryAfter, resetAt := client.RateLimitHint(resp.Header)
			return &core.RateLimitError{Platform: platform, RetryAfter: retryAfter, ResetAt: resetAt}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &core.TransientError{Platform: platform, StatusCode: resp.StatusCode, Err: err}
		}
	}
	return &core.TransientError{Platform: platform, Err: err}
}
