// Package all imports all supported platform providers.
//
// Import this package for its side effects to register every platform:
//
//	import (
//		"github.com/git-pkgs/repometa"
//		_ "github.com/git-pkgs/repometa/all"
//	)
//
//	// Now all platforms are available
//	platforms := repometa.SupportedPlatforms()
//	// ["gitea", "github", "gitlab"]
package all

import (
	_ "github.com/git-pkgs/repometa/internal/gitea"
	_ "github.com/git-pkgs/repometa/internal/github"
	_ "github.com/git-pkgs/repometa/internal/gitlab"
)
