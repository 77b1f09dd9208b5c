package core

import (
	"net/url"
	"strings"
)

// hosts maps recognized web hosts to their platform.
var hosts = map[string]Platform{
	"github.com":     GitHub,
	"www.github.com": GitHub,
	"gitlab.com":     GitLab,
	"codeberg.org":   Gitea,
}

// webBases holds the canonical web URL for each platform's public host.
var webBases = map[Platform]string{
	GitHub: "https://github.com",
	GitLab: "https://gitlab.com",
	Gitea:  "https://codeberg.org",
}

// apiBases holds the public API base URL for each platform.
var apiBases = map[Platform]string{
	GitHub: "https://api.github.com",
	GitLab: "https://gitlab.com/api/v4",
	Gitea:  "https://codeberg.org/api/v1",
}

// DetectPlatform returns the platform for a repository URL.
// Unrecognized or malformed URLs return false.
func DetectPlatform(rawURL string) (Platform, bool) {
	if strings.HasPrefix(rawURL, "pkg:") {
		ref, ok := parsePURL(rawURL)
		return ref.Platform, ok
	}
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return "", false
	}
	p, ok := hosts[strings.ToLower(u.Hostname())]
	return p, ok
}

// Parse extracts a Reference from a repository URL. Parse failure is a
// normal outcome and is reported as false, never as an error.
func Parse(rawURL string) (Reference, bool) {
	if strings.HasPrefix(rawURL, "pkg:") {
		return parsePURL(rawURL)
	}

	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return Reference{}, false
	}
	platform, ok := hosts[strings.ToLower(u.Hostname())]
	if !ok {
		return Reference{}, false
	}

	segments, ok := pathSegments(u.Path)
	if !ok {
		return Reference{}, false
	}

	var owner, name string
	switch platform {
	case GitLab:
		// Web URLs put views behind a "-" segment: /group/project/-/tree/main
		for i, s := range segments {
			if s == "-" {
				segments = segments[:i]
				break
			}
		}
		if len(segments) < 2 {
			return Reference{}, false
		}
		owner = strings.Join(segments[:len(segments)-1], "/")
		name = segments[len(segments)-1]
	default:
		if len(segments) != 2 {
			return Reference{}, false
		}
		owner, name = segments[0], segments[1]
	}

	return Reference{
		Platform: platform,
		Owner:    owner,
		Name:     name,
		RawURL:   rawURL,
	}, true
}

// BuildAPIEndpoint returns the public API URL for a reference's primary
// metadata call.
func BuildAPIEndpoint(ref Reference) string {
	return BuildAPIEndpointWithBase(ref, "")
}

// BuildAPIEndpointWithBase is BuildAPIEndpoint against a custom API base,
// e.g. a self-hosted GitLab. An empty base selects the public host.
func BuildAPIEndpointWithBase(ref Reference, base string) string {
	return URLsFor(ref.Platform, base).API(ref.Owner, ref.Name)
}

// URLsFor returns the URL builder for a platform and API base URL.
func URLsFor(platform Platform, apiBase string) URLBuilder {
	if apiBase == "" {
		apiBase = apiBases[platform]
	}
	apiBase = strings.TrimSuffix(apiBase, "/")
	web := webBases[platform]

	switch platform {
	case GitLab:
		return &BaseURLs{
			WebFn: func(owner, name string) string {
				return web + "/" + owner + "/" + name
			},
			APIFn: func(owner, name string) string {
				// The project path is a single percent-encoded segment.
				return apiBase + "/projects/" + url.PathEscape(owner+"/"+name)
			},
			PURLFn: func(owner, name string) string {
				return purlString(GitLab, owner, name)
			},
		}
	case GitHub, Gitea:
		return &BaseURLs{
			WebFn: func(owner, name string) string {
				return web + "/" + owner + "/" + name
			},
			APIFn: func(owner, name string) string {
				return apiBase + "/repos/" + owner + "/" + name
			},
			PURLFn: func(owner, name string) string {
				return purlString(platform, owner, name)
			},
		}
	default:
		return &BaseURLs{}
	}
}

func parseHTTPURL(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	return u, true
}

// pathSegments strips trailing slashes and a ".git" suffix, then splits
// the path. Any empty segment makes the path invalid.
func pathSegments(path string) ([]string, bool) {
	path = strings.TrimRight(path, "/")
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return nil, false
		}
	}
	return segments, true
}
