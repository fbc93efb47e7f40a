package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/handiism/factorio-mod-downloader/internal/failure"
	fmdhttp "github.com/handiism/factorio-mod-downloader/internal/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modPage = `<html><body>
<dl><dt>Name</dt><dd id="mod-info-name"> Flib </dd></dl>
<select id="mod-version">
  <option value="0.12.3">0.12.3</option>
  <option value="0.12.4">0.12.4 (last)</option>
</select>
</body></html>`

const depsPage = `<html><body><table class="panel-hole">
<tr><td><a class="mod-dependencies-required" href="/mod/base">base</a></td></tr>
<tr><td><a class="mod-dependencies-optional" href="/mod/extra">extra</a></td></tr>
<tr><td><a class="mod-dependencies-required" href="/mod/stdlib">stdlib</a></td></tr>
</table></body></html>`

func newCatalog(t *testing.T) (*httptest.Server, *Scraper) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mod/flib", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modPage)
	})
	mux.HandleFunc("/mod/flib/dependencies", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "out", r.URL.Query().Get("direction"))
		fmt.Fprint(w, depsPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, NewScraper(fmdhttp.NewClient(), srv.URL+"/mod", "https://mirror.example/en#")
}

func docFrom(t *testing.T, html string) *Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return &Document{URL: "test", HTML: d}
}

func TestScraper_ModPage(t *testing.T) {
	srv, scraper := newCatalog(t)

	pageURL := scraper.ModPageURL("flib")
	assert.Equal(t, "https://mirror.example/en#"+srv.URL+"/mod/flib", pageURL)

	doc, err := scraper.FetchPage(context.Background(), pageURL)
	require.NoError(t, err)

	name, err := scraper.GetName(doc)
	require.NoError(t, err)
	assert.Equal(t, "Flib", name)

	version, err := scraper.GetLatestVersion(doc)
	require.NoError(t, err)
	assert.Equal(t, "0.12.4", version)
}

func TestScraper_Dependencies(t *testing.T) {
	_, scraper := newCatalog(t)

	deps, err := scraper.GetRequiredDependencies(context.Background(), "flib", false)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "base", deps[0].Name)
	assert.Equal(t, "stdlib", deps[1].Name)
	assert.Equal(t, scraper.ModPageURL("stdlib"), deps[1].URL)

	deps, err = scraper.GetRequiredDependencies(context.Background(), "flib", true)
	require.NoError(t, err)
	require.Len(t, deps, 3)
	assert.Equal(t, "extra", deps[2].Name)
	assert.True(t, deps[2].Optional)
}

func TestScraper_FetchMissingPage(t *testing.T) {
	_, scraper := newCatalog(t)

	_, err := scraper.FetchPage(context.Background(), scraper.ModPageURL("nope"))
	require.Error(t, err)
	assert.Equal(t, failure.Validation, failure.Classify(err).Category)
}

func TestGetLatestVersion(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"marked last", modPage, "0.12.4"},
		{"first when unmarked", `<select id="mod-version"><option value="2.0.1">2.0.1</option><option value="1.0.0">1.0.0</option></select>`, "2.0.1"},
		{"text without value", `<select id="mod-version"><option>1.1.0 (last)</option></select>`, "1.1.0"},
	}

	s := NewScraper(nil, "", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetLatestVersion(docFrom(t, tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMissingStructureIsParsingError(t *testing.T) {
	s := NewScraper(nil, "", "")
	doc := docFrom(t, "<html><body>loading...</body></html>")

	_, err := s.GetName(doc)
	require.Error(t, err)
	assert.Equal(t, failure.Parsing, failure.Classify(err).Category)

	_, err = s.GetLatestVersion(doc)
	require.Error(t, err)
	assert.Equal(t, failure.Parsing, failure.Classify(err).Category)
}

func TestScraper_RenderedFixtures(t *testing.T) {
	page := readFixture(t, "mirror_flib.html")
	deps := readFixture(t, "catalog_flib_dependencies.html")
	mux := http.NewServeMux()
	mux.HandleFunc("/mod/flib", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(page)
	})
	mux.HandleFunc("/mod/flib/dependencies", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(deps)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	scraper := NewScraper(fmdhttp.NewClient(), srv.URL+"/mod", testMirror)

	doc, err := scraper.FetchPage(context.Background(), scraper.ModPageURL("flib"))
	require.NoError(t, err)
	name, err := scraper.GetName(doc)
	require.NoError(t, err)
	assert.Equal(t, "flib", name)
	version, err := scraper.GetLatestVersion(doc)
	require.NoError(t, err)
	assert.Equal(t, "0.12.4", version)

	list, err := scraper.GetRequiredDependencies(context.Background(), "flib", true)
	require.NoError(t, err)
	var names []string
	for _, d := range list {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"base", "stdlib", "space-exploration"}, names)
}
