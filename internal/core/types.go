// Package core provides shared types and the provider registry.
package core

import "time"

// Platform identifies a repository hosting platform.
type Platform string

const (
	GitHub Platform = "github"
	GitLab Platform = "gitlab"
	Gitea  Platform = "gitea"
)

// Reference identifies a repository on a hosting platform.
type Reference struct {
	Platform Platform
	Owner    string // may contain "/" for nested GitLab groups
	Name     string
	RawURL   string
}

// Key returns the composite cache key for the reference.
func (r Reference) Key() string {
	return string(r.Platform) + ":" + r.Owner + "/" + r.Name
}

// FullName returns "owner/name".
func (r Reference) FullName() string {
	return r.Owner + "/" + r.Name
}

// Metadata is the normalized, provider-independent repository summary.
// Optional string fields use the empty string for "absent".
type Metadata struct {
	Stars           int       `json:"stars"`
	Description     string    `json:"description,omitempty"`
	PrimaryLanguage string    `json:"primaryLanguage,omitempty"`
	LastUpdated     time.Time `json:"lastUpdated"`
	Forks           int       `json:"forks"`
	OpenIssues      int       `json:"openIssues"`
	DefaultBranch   string    `json:"defaultBranch"`
	LastRelease     string    `json:"lastRelease,omitempty"`
	License         string    `json:"license,omitempty"`
}

// Raw holds upstream values before normalization. A nil field means the
// provider did not report it.
type Raw struct {
	Stars         *int
	Forks         *int
	OpenIssues    *int
	Description   *string
	Language      *string
	LastUpdated   *time.Time
	DefaultBranch *string
	LastRelease   *string
	LicenseID     *string
	LicenseName   *string
}
