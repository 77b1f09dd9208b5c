package client

import "fmt"

// URLBuilder constructs URLs for a repository on one platform.
type URLBuilder interface {
	Web(owner, name string) string
	API(owner, name string) string
	PURL(owner, name string) string
}

// BaseURLs provides a default URLBuilder implementation.
type BaseURLs struct {
	WebFn  func(owner, name string) string
	APIFn  func(owner, name string) string
	PURLFn func(owner, name string) string
}

func (b *BaseURLs) Web(owner, name string) string {
	if b.WebFn != nil {
		return b.WebFn(owner, name)
	}
	return ""
}

func (b *BaseURLs) API(owner, name string) string {
	if b.APIFn != nil {
		return b.APIFn(owner, name)
	}
	return ""
}

func (b *BaseURLs) PURL(owner, name string) string {
	if b.PURLFn != nil {
		return b.PURLFn(owner, name)
	}
	return fmt.Sprintf("pkg:%s/%s/%s", "generic", owner, name)
}

// BuildURLs returns a map of all non-empty URLs for a repository.
// Keys are "web", "api" and "purl".
func BuildURLs(urls URLBuilder, owner, name string) map[string]string {
	result := make(map[string]string)
	if v := urls.Web(owner, name); v != "" {
		result["web"] = v
	}
	if v := urls.API(owner, name); v != "" {
		result["api"] = v
	}
	if v := urls.PURL(owner, name); v != "" {
		result["purl"] = v
	}
	return result
}
