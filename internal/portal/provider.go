package portal

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Document is a fetched and parsed catalog page. Scraper fills HTML and
// APIProvider fills Mod.
type Document struct {
	URL  string
	HTML *goquery.Document
	Mod  *ModInfo
}

// Dependency is one entry of a mod's dependency list.
type Dependency struct {
	Name     string
	URL      string
	Optional bool
}

// Provider reads mod information from a catalog.
//
// FetchPage fails with a network-classified error when the page cannot be
// retrieved. GetName and GetLatestVersion fail with a parsing-classified
// error when the page lacks the expected structure.
type Provider interface {
	FetchPage(ctx context.Context, url string) (*Document, error)
	GetName(doc *Document) (string, error)
	GetLatestVersion(doc *Document) (string, error)
	GetRequiredDependencies(ctx context.Context, name string, includeOptional bool) ([]Dependency, error)
}
