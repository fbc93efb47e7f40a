package portal

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/http"
)

// Default catalog endpoints.
const (
	DefaultCatalogURL    = "https://mods.factorio.com/mod"
	DefaultMirrorPageURL = "https://re146.dev/factorio/mods/en#"
)

const pageSuggestion = "The mod page format may have changed or the page failed to load completely"

// Scraper is a Provider backed by HTML pages.
//
// Example usage:
//
//	scraper := NewScraper(http.NewClient(), DefaultCatalogURL, DefaultMirrorPageURL)
//
//	doc, err := scraper.FetchPage(ctx, scraper.ModPageURL("flib"))
//	name, err := scraper.GetName(doc)
//	version, err := scraper.GetLatestVersion(doc)
//	deps, err := scraper.GetRequiredDependencies(ctx, name, false)
type Scraper struct {
	client        *http.Client
	catalogURL    string
	mirrorPageURL string
}

// NewScraper creates a Scraper. Empty endpoints fall back to the defaults.
func NewScraper(client *http.Client, catalogURL, mirrorPageURL string) *Scraper {
	if catalogURL == "" {
		catalogURL = DefaultCatalogURL
	}
	if mirrorPageURL == "" {
		mirrorPageURL = DefaultMirrorPageURL
	}
	return &Scraper{
		client:        client,
		catalogURL:    strings.TrimRight(catalogURL, "/"),
		mirrorPageURL: mirrorPageURL,
	}
}

// ModPageURL returns the page URL of the named mod.
//
// The mirror prefix is followed by the catalog URL, so
// "flib" becomes "https://re146.dev/factorio/mods/en#https://mods.factorio.com/mod/flib".
func (s *Scraper) ModPageURL(name string) string {
	return ModPageURL(s.mirrorPageURL, s.catalogURL, name)
}

// ModPageURL joins a mirror prefix, a catalog URL and a mod name.
func ModPageURL(mirrorPageURL, catalogURL, name string) string {
	return mirrorPageURL + strings.TrimRight(catalogURL, "/") + "/" + url.PathEscape(name)
}

// DependenciesURL returns the dependencies page of the named mod.
func (s *Scraper) DependenciesURL(name string) string {
	return fmt.Sprintf("%s/%s/dependencies?direction=out&sort=idx&filter=all", s.catalogURL, url.PathEscape(name))
}

// FetchPage downloads and parses the page at pageURL.
//
// A mirror URL ("<mirror>#<catalog page>") is fetched from the catalog page
// it points at, since the fragment is never sent to the server.
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (*Document, error) {
	target := pageURL
	if _, fragment, ok := strings.Cut(pageURL, "#"); ok && strings.HasPrefix(fragment, "http") {
		target = fragment
	}

	body, err := s.client.GetString(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	html, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, failure.Wrap(failure.Parsing, err, "parsing "+pageURL, pageSuggestion)
	}
	return &Document{URL: pageURL, HTML: html}, nil
}

// GetName returns the mod name shown on the page.
func (s *Scraper) GetName(doc *Document) (string, error) {
	if doc == nil || doc.HTML == nil {
		return "", failure.New(failure.Parsing, "empty page", pageSuggestion)
	}
	name := strings.TrimSpace(doc.HTML.Find("dd#mod-info-name").First().Text())
	if name == "" {
		return "", failure.New(failure.Parsing, "could not find mod name in "+doc.URL, pageSuggestion)
	}
	return name, nil
}

// GetLatestVersion returns the version marked "(last)", or the first listed
// version when none is marked.
func (s *Scraper) GetLatestVersion(doc *Document) (string, error) {
	if doc == nil || doc.HTML == nil {
		return "", failure.New(failure.Parsing, "empty page", pageSuggestion)
	}

	options := doc.HTML.Find("select#mod-version option")
	if options.Length() == 0 {
		return "", failure.New(failure.Parsing, "no version options found in "+doc.URL,
			"The mod may not have any published versions")
	}

	latest := options.FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return strings.Contains(sel.Text(), "(last)")
	}).First()
	if latest.Length() == 0 {
		latest = options.First()
	}

	version := optionValue(latest)
	if version == "" {
		return "", failure.New(failure.Parsing, "empty version option in "+doc.URL, pageSuggestion)
	}
	return version, nil
}

func optionValue(sel *goquery.Selection) string {
	if value, ok := sel.Attr("value"); ok {
		return strings.TrimSpace(value)
	}
	text := strings.TrimSpace(sel.Text())
	text = strings.TrimSpace(strings.TrimSuffix(text, "(last)"))
	return text
}

// GetRequiredDependencies lists the dependencies of the named mod in catalog
// order. Optional dependencies follow the required ones when includeOptional
// is true.
func (s *Scraper) GetRequiredDependencies(ctx context.Context, name string, includeOptional bool) ([]Dependency, error) {
	doc, err := s.FetchPage(ctx, s.DependenciesURL(name))
	if err != nil {
		return nil, err
	}

	var deps []Dependency
	collect := func(selector string, optional bool) {
		doc.HTML.Find(selector).Each(func(_ int, link *goquery.Selection) {
			depName := strings.TrimSpace(link.Text())
			if depName == "" {
				return
			}
			deps = append(deps, Dependency{
				Name:     depName,
				URL:      s.ModPageURL(depName),
				Optional: optional,
			})
		})
	}

	collect("a.mod-dependencies-required", false)
	if includeOptional {
		collect("a.mod-dependencies-optional", true)
	}
	return deps, nil
}
