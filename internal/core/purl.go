package core

import (
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// purlTypes maps Package URL types to platforms.
var purlTypes = map[string]Platform{
	"github": GitHub,
	"gitlab": GitLab,
	"gitea":  Gitea,
}

// parsePURL accepts pkg:github/owner/name style references. Versions,
// qualifiers and subpaths are ignored.
func parsePURL(purl string) (Reference, bool) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return Reference{}, false
	}
	platform, ok := purlTypes[p.Type]
	if !ok || p.Namespace == "" || p.Name == "" {
		return Reference{}, false
	}
	// Only GitLab supports nested owners.
	if platform != GitLab && strings.Contains(p.Namespace, "/") {
		return Reference{}, false
	}
	return Reference{
		Platform: platform,
		Owner:    p.Namespace,
		Name:     p.Name,
		RawURL:   purl,
	}, true
}

// purlString returns the Package URL for a repository.
func purlString(platform Platform, owner, name string) string {
	return packageurl.NewPackageURL(string(platform), owner, name, "", nil, "").ToString()
}
