package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/http"
	"golang.org/x/sync/singleflight"
)

// DefaultAPIURL is the mod portal API root.
const DefaultAPIURL = "https://mods.factorio.com/api/mods"

const apiSuggestion = "The mod portal API answered with an unexpected document"

// ModInfo is the mod portal API view of one mod.
type ModInfo struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Owner    string    `json:"owner"`
	Releases []Release `json:"releases"`
}

// Release is one published version of a mod.
type Release struct {
	Version     string      `json:"version"`
	ReleasedAt  string      `json:"released_at"`
	DownloadURL string      `json:"download_url"`
	FileName    string      `json:"file_name"`
	SHA1        string      `json:"sha1"`
	InfoJSON    ReleaseInfo `json:"info_json"`
}

// ReleaseInfo is the subset of a release's info.json the API exposes.
type ReleaseInfo struct {
	FactorioVersion string   `json:"factorio_version"`
	Dependencies    []string `json:"dependencies"`
}

// Latest returns the release with the highest version. Releases whose
// version does not parse are only used when nothing else does.
func (m *ModInfo) Latest() (Release, bool) {
	if len(m.Releases) == 0 {
		return Release{}, false
	}
	best := -1
	var bestVersion *semver.Version
	for i, r := range m.Releases {
		v, err := semver.NewVersion(r.Version)
		if err != nil {
			continue
		}
		if bestVersion == nil || v.GreaterThan(bestVersion) {
			best, bestVersion = i, v
		}
	}
	if best < 0 {
		// The API lists releases oldest first.
		return m.Releases[len(m.Releases)-1], true
	}
	return m.Releases[best], true
}

// DependencyKind is the prefix class of an info.json dependency.
type DependencyKind int

const (
	DependencyRequired DependencyKind = iota
	DependencyOptional
	DependencyHiddenOptional
	DependencyIncompatible
	DependencyNoLoadOrder
)

// InfoDependency is one parsed info.json dependency string.
type InfoDependency struct {
	Kind     DependencyKind
	Name     string
	Operator string
	Version  string
}

var dependencyPattern = regexp.MustCompile(`^(?:(!|\?|\(\?\)|~)\s*)?(.+?)(?:\s*(<=|>=|<|=|>)\s*(\d+(?:\.\d+){1,2}))?\s*$`)

// ParseDependency parses an info.json dependency such as "? flib >= 0.12".
func ParseDependency(raw string) (InfoDependency, error) {
	m := dependencyPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || !modNamePattern.MatchString(strings.TrimSpace(m[2])) {
		return InfoDependency{}, failure.New(failure.Parsing, fmt.Sprintf("invalid dependency %q", raw), apiSuggestion)
	}
	dep := InfoDependency{Name: strings.TrimSpace(m[2]), Operator: m[3], Version: m[4]}
	switch m[1] {
	case "?":
		dep.Kind = DependencyOptional
	case "(?)":
		dep.Kind = DependencyHiddenOptional
	case "!":
		dep.Kind = DependencyIncompatible
	case "~":
		dep.Kind = DependencyNoLoadOrder
	}
	return dep, nil
}

// APIProvider is a Provider backed by the mod portal JSON API.
//
// Mod documents are cached for the provider's lifetime, so a mod page and
// its dependency list cost one request.
type APIProvider struct {
	client        *http.Client
	apiURL        string
	catalogURL    string
	mirrorPageURL string

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*ModInfo
}

// NewAPIProvider creates an APIProvider. Empty endpoints fall back to the
// defaults. Dependency URLs use the same page URL form as Scraper.
func NewAPIProvider(client *http.Client, apiURL, catalogURL, mirrorPageURL string) *APIProvider {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if catalogURL == "" {
		catalogURL = DefaultCatalogURL
	}
	if mirrorPageURL == "" {
		mirrorPageURL = DefaultMirrorPageURL
	}
	return &APIProvider{
		client:        client,
		apiURL:        strings.TrimRight(apiURL, "/"),
		catalogURL:    strings.TrimRight(catalogURL, "/"),
		mirrorPageURL: mirrorPageURL,
		cache:         make(map[string]*ModInfo),
	}
}

// ModURL returns the API document URL of the named mod.
func (p *APIProvider) ModURL(name string) string {
	return p.apiURL + "/" + url.PathEscape(name) + "/full"
}

// FetchPage loads the API document of the mod named by pageURL, which is
// any URL containing "/mod/<name>".
func (p *APIProvider) FetchPage(ctx context.Context, pageURL string) (*Document, error) {
	ref, err := ParseModRef(pageURL)
	if err != nil {
		return nil, err
	}
	info, err := p.mod(ctx, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	return &Document{URL: pageURL, Mod: info}, nil
}

// GetName returns the catalog name of the mod.
func (p *APIProvider) GetName(doc *Document) (string, error) {
	if doc == nil || doc.Mod == nil || strings.TrimSpace(doc.Mod.Name) == "" {
		return "", failure.New(failure.Parsing, "no mod name in API document", apiSuggestion)
	}
	return strings.TrimSpace(doc.Mod.Name), nil
}

// GetLatestVersion returns the highest released version.
func (p *APIProvider) GetLatestVersion(doc *Document) (string, error) {
	if doc == nil || doc.Mod == nil {
		return "", failure.New(failure.Parsing, "empty API document", apiSuggestion)
	}
	latest, ok := doc.Mod.Latest()
	if !ok || latest.Version == "" {
		return "", failure.New(failure.Parsing, "no releases for "+doc.Mod.Name,
			"The mod may not have any published versions")
	}
	return latest.Version, nil
}

// GetRequiredDependencies lists the dependencies of the latest release in
// info.json order. "~" dependencies count as required. Incompatibilities are
// never returned. Optional dependencies, hidden ones included, follow the
// required ones when includeOptional is true.
func (p *APIProvider) GetRequiredDependencies(ctx context.Context, name string, includeOptional bool) ([]Dependency, error) {
	info, err := p.mod(ctx, name)
	if err != nil {
		return nil, err
	}
	latest, ok := info.Latest()
	if !ok {
		return nil, nil
	}

	var required, optional []Dependency
	for _, raw := range latest.InfoJSON.Dependencies {
		parsed, err := ParseDependency(raw)
		if err != nil {
			return nil, err
		}
		dep := Dependency{Name: parsed.Name, URL: ModPageURL(p.mirrorPageURL, p.catalogURL, parsed.Name)}
		switch parsed.Kind {
		case DependencyRequired, DependencyNoLoadOrder:
			required = append(required, dep)
		case DependencyOptional, DependencyHiddenOptional:
			dep.Optional = true
			optional = append(optional, dep)
		}
	}
	if includeOptional {
		required = append(required, optional...)
	}
	return required, nil
}

func (p *APIProvider) mod(ctx context.Context, name string) (*ModInfo, error) {
	p.mu.RLock()
	info, ok := p.cache[name]
	p.mu.RUnlock()
	if ok {
		return info, nil
	}

	v, err, _ := p.group.Do(name, func() (any, error) {
		body, err := p.client.GetString(ctx, p.ModURL(name))
		if err != nil {
			return nil, err
		}
		var info ModInfo
		if err := json.Unmarshal([]byte(body), &info); err != nil {
			return nil, failure.Wrap(failure.Parsing, err, "decoding API document of "+name, apiSuggestion)
		}
		p.mu.Lock()
		p.cache[name] = &info
		p.mu.Unlock()
		return &info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModInfo), nil
}

// Provider kinds accepted by New.
const (
	KindAPI     = "api"
	KindScraper = "scraper"
)

// New returns the Provider of the given kind.
func New(kind string, client *http.Client, apiURL, catalogURL, mirrorPageURL string) (Provider, error) {
	switch kind {
	case KindAPI, "":
		return NewAPIProvider(client, apiURL, catalogURL, mirrorPageURL), nil
	case KindScraper:
		return NewScraper(client, catalogURL, mirrorPageURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
}
