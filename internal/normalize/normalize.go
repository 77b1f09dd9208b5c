// Package normalize converts provider responses into core.Metadata.
//
// Every provider funnels its raw values through Metadata so that field
// defaulting, truncation and license handling are identical across
// platforms.
package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/github/go-spdx/v2/spdxexp"

	"github.com/git-pkgs/repometa/internal/core"
)

const (
	// MaxDescription is the maximum description length in characters.
	MaxDescription = 500
	// Ellipsis is appended to truncated descriptions.
	Ellipsis = "..."
	// DefaultBranch is used when the provider reports none.
	DefaultBranch = "main"
)

// Metadata normalizes raw provider values. A non-empty languageOverride
// replaces the language reported on the repository object.
func Metadata(raw core.Raw, languageOverride string) core.Metadata {
	m := core.Metadata{
		Stars:           count(raw.Stars),
		Forks:           count(raw.Forks),
		OpenIssues:      count(raw.OpenIssues),
		Description:     Truncate(text(raw.Description), MaxDescription),
		PrimaryLanguage: text(raw.Language),
		DefaultBranch:   text(raw.DefaultBranch),
		LastRelease:     text(raw.LastRelease),
		License:         License(text(raw.LicenseID), text(raw.LicenseName)),
	}
	if lang := strings.TrimSpace(languageOverride); lang != "" {
		m.PrimaryLanguage = lang
	}
	if m.DefaultBranch == "" {
		m.DefaultBranch = DefaultBranch
	}
	if raw.LastUpdated != nil {
		m.LastUpdated = raw.LastUpdated.UTC()
	}
	return m
}

// Truncate shortens s to max characters, replacing the tail with Ellipsis.
// Strings of at most max characters are returned unchanged, so Truncate is
// idempotent.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(Ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + Ellipsis
}

// License picks the display license: a valid SPDX identifier, else the
// upstream license name, else nothing.
func License(id, name string) string {
	switch strings.ToUpper(id) {
	case "", "NOASSERTION", "OTHER":
	default:
		if valid, _ := spdxexp.ValidateLicenses([]string{id}); valid {
			return id
		}
	}
	if name == "" || strings.EqualFold(name, "other") {
		return ""
	}
	return name
}

func count(n *int) int {
	if n == nil || *n < 0 {
		return 0
	}
	return *n
}

// text collapses nil and blank strings to the empty "absent" value.
func text(s *string) string {
	if s == nil {
		return ""
	}
	if strings.TrimSpace(*s) == "" {
		return ""
	}
	return *s
}

// PrimaryLanguage returns the language with the largest share. Ties go to
// the alphabetically first name so the result is deterministic.
func PrimaryLanguage[N int | int64 | float64](shares map[string]N) string {
	best := ""
	var bestShare N
	for lang, share := range shares {
		if lang == "" {
			continue
		}
		if best == "" || share > bestShare || (share == bestShare && lang < best) {
			best, bestShare = lang, share
		}
	}
	return best
}
