package core

import (
	"github.com/git-pkgs/repometa/client"
)

// Type aliases so provider implementations only import core.
type (
	Client     = client.Client
	Option     = client.Option
	HTTPError  = client.HTTPError
	URLBuilder = client.URLBuilder
	BaseURLs   = client.BaseURLs
)

// Function aliases for provider implementations.
var (
	DefaultClient = client.DefaultClient
	NewClient     = client.NewClient
	WithTimeout   = client.WithTimeout
	WithUserAgent = client.WithUserAgent
	BuildURLs     = client.BuildURLs
)
