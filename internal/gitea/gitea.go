// Package gitea provides a metadata provider for Gitea and Forgejo hosts
// such as codeberg.org.
package gitea

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/repometa/internal/core"
	"github.com/git-pkgs/repometa/internal/normalize"
)

const (
	DefaultURL = "https://codeberg.org/api/v1"
	platform   = core.Gitea
)

func init() {
	core.Register(platform, DefaultURL, func(baseURL string, client *core.Client) core.Provider {
		return New(baseURL, client)
	})
}

type Provider struct {
	baseURL string
	client  *core.Client
	urls    core.URLBuilder
	enrich  core.Enricher
}

func New(baseURL string, client *core.Client) *Provider {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	p := &Provider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
	p.urls = core.URLsFor(platform, p.baseURL)
	return p
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

type repoResponse struct {
	FullName        string     `json:"full_name"`
	Description     *string    `json:"description"`
	Language        *string    `json:"language"`
	DefaultBranch   *string    `json:"default_branch"`
	StarsCount      *int       `json:"stars_count"`
	ForksCount      *int       `json:"forks_count"`
	OpenIssuesCount *int       `json:"open_issues_count"`
	UpdatedAt       *time.Time `json:"updated_at"`
	Licenses        []string   `json:"licenses"`
}

type releaseResponse struct {
	TagName string `json:"tag_name"`
}

func (p *Provider) FetchMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error) {
	repoURL := p.urls.API(ref.Owner, ref.Name)

	var resp repoResponse
	if err := p.client.GetJSON(ctx, repoURL, &resp); err != nil {
		return nil, core.ClassifyHTTPError(ctx, ref, err)
	}

	raw := core.Raw{
		Stars:         resp.StarsCount,
		Forks:         resp.ForksCount,
		OpenIssues:    resp.OpenIssuesCount,
		Description:   resp.Description,
		Language:      resp.Language,
		LastUpdated:   resp.UpdatedAt,
		DefaultBranch: resp.DefaultBranch,
	}
	// Forgejo reports detected SPDX identifiers, most significant first.
	if len(resp.Licenses) > 0 {
		raw.LicenseID = &resp.Licenses[0]
	}

	language, _ := p.enrich.Lookup(ctx, "primaryLanguage", func(ctx context.Context) (string, error) {
		var bytes map[string]int64
		if err := p.client.GetJSON(ctx, repoURL+"/languages", &bytes); err != nil {
			return "", err
		}
		return normalize.PrimaryLanguage(bytes), nil
	})

	if tag, ok := p.enrich.Lookup(ctx, "lastRelease", func(ctx context.Context) (string, error) {
		var release releaseResponse
		if err := p.client.GetJSON(ctx, repoURL+"/releases/latest", &release); err != nil {
			return "", err
		}
		return release.TagName, nil
	}); ok {
		raw.LastRelease = &tag
	}

	m := normalize.Metadata(raw, language)
	return &m, nil
}
