// Package gitlab provides a metadata provider for GitLab projects.
package gitlab

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/repometa/internal/core"
	"github.com/git-pkgs/repometa/internal/normalize"
)

const (
	DefaultURL = "https://gitlab.com/api/v4"
	platform   = core.GitLab
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

type projectResponse struct {
	ID              int          `json:"id"`
	PathWithNS      string       `json:"path_with_namespace"`
	Description     *string      `json:"description"`
	DefaultBranch   *string      `json:"default_branch"`
	StarCount       *int         `json:"star_count"`
	ForksCount      *int         `json:"forks_count"`
	OpenIssuesCount *int         `json:"open_issues_count"`
	LastActivityAt  *time.Time   `json:"last_activity_at"`
	License         *licenseInfo `json:"license"`
}

type licenseInfo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

type releaseInfo struct {
	TagName    string    `json:"tag_name"`
	ReleasedAt time.Time `json:"released_at"`
}

func (p *Provider) FetchMetadata(ctx context.Context, ref core.Reference) (*core.Metadata, error) {
	project := p.urls.API(ref.Owner, ref.Name)

	var resp projectResponse
	if err := p.client.GetJSON(ctx, project+"?license=true", &resp); err != nil {
		return nil, core.ClassifyHTTPError(ctx, ref, err)
	}

	language, _ := p.enrich.Lookup(ctx, "primaryLanguage", func(ctx context.Context) (string, error) {
		var shares map[string]float64
		if err := p.client.GetJSON(ctx, project+"/languages", &shares); err != nil {
			return "", err
		}
		return normalize.PrimaryLanguage(shares), nil
	})

	raw := core.Raw{
		Stars:         resp.StarCount,
		Forks:         resp.ForksCount,
		OpenIssues:    resp.OpenIssuesCount,
		Description:   resp.Description,
		LastUpdated:   resp.LastActivityAt,
		DefaultBranch: resp.DefaultBranch,
	}
	if release, ok := p.enrich.Lookup(ctx, "lastRelease", func(ctx context.Context) (string, error) {
		return p.latestRelease(ctx, project)
	}); ok {
		raw.LastRelease = &release
	}
	if resp.License != nil {
		// GitLab license keys are lowercase slugs rather than SPDX ids.
		raw.LicenseName = &resp.License.Name
	}

	m := normalize.Metadata(raw, language)
	return &m, nil
}

func (p *Provider) latestRelease(ctx context.Context, project string) (string, error) {
	var releases []releaseInfo
	if err := p.client.GetJSON(ctx, project+"/releases?per_page=1", &releases); err != nil {
		return "", err
	}
	if len(releases) == 0 {
		return "", errors.New("no releases")
	}
	return releases[0].TagName, nil
}
