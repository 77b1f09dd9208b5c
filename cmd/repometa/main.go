// Command repometa fetches repository metadata from GitHub, GitLab and
// Gitea hosts, caching results on disk between runs.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
