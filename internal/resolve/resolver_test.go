package resolve

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/portal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	version string
	// failures is the number of FetchPage calls that fail before success.
	failures int
	err      error
}

type fakeCatalog struct {
	pages    map[string]*page
	required map[string][]string
	optional map[string][]string
	fetches  map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		pages:    make(map[string]*page),
		required: make(map[string][]string),
		optional: make(map[string][]string),
		fetches:  make(map[string]int),
	}
}

func (c *fakeCatalog) add(name string, deps ...string) *fakeCatalog {
	c.pages[name] = &page{version: "1.0.0"}
	c.required[name] = deps
	return c
}

func pageURL(name string) string { return "https://catalog.test/mod/" + name }

func (c *fakeCatalog) FetchPage(_ context.Context, u string) (*portal.Document, error) {
	name := u[len("https://catalog.test/mod/"):]
	c.fetches[name]++
	p, ok := c.pages[name]
	if !ok {
		return nil, failure.New(failure.Validation, "no such mod "+name, "")
	}
	if p.err != nil && c.fetches[name] <= p.failures {
		return nil, p.err
	}
	return &portal.Document{URL: u}, nil
}

func (c *fakeCatalog) GetName(doc *portal.Document) (string, error) {
	return doc.URL[len("https://catalog.test/mod/"):], nil
}

func (c *fakeCatalog) GetLatestVersion(doc *portal.Document) (string, error) {
	return c.pages[doc.URL[len("https://catalog.test/mod/"):]].version, nil
}

func (c *fakeCatalog) GetRequiredDependencies(_ context.Context, name string, includeOptional bool) ([]portal.Dependency, error) {
	var deps []portal.Dependency
	for _, dep := range c.required[name] {
		deps = append(deps, portal.Dependency{Name: dep, URL: pageURL(dep)})
	}
	if includeOptional {
		for _, dep := range c.optional[name] {
			deps = append(deps, portal.Dependency{Name: dep, URL: pageURL(dep), Optional: true})
		}
	}
	return deps, nil
}

func newResolver(c *fakeCatalog, opts Options) (*Resolver, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	r := New(c, logger, opts)
	r.wait = func(context.Context, time.Duration) error { return nil }
	return r, hook
}

func resolveNames(t *testing.T, c *fakeCatalog, opts Options, root string, optional bool) []string {
	t.Helper()
	r, _ := newResolver(c, opts)
	tree, err := r.Resolve(context.Background(), pageURL(root), optional)
	require.NoError(t, err)
	return Flatten(tree, opts.Excluded).Names()
}

func TestResolve_DependenciesPrecedeDependents(t *testing.T) {
	c := newFakeCatalog().add("A", "B", "C").add("B", "D").add("C").add("D")

	names := resolveNames(t, c, DefaultOptions(), "A", false)
	assert.Equal(t, []string{"D", "B", "C", "A"}, names)
}

func TestResolve_Cycle(t *testing.T) {
	c := newFakeCatalog().add("A", "B").add("B", "A")

	names := resolveNames(t, c, DefaultOptions(), "A", false)
	assert.Equal(t, []string{"B", "A"}, names)
	assert.Equal(t, 1, c.fetches["A"])
}

func TestResolve_SharedDependencyOnce(t *testing.T) {
	c := newFakeCatalog().add("A", "B", "C").add("B", "lib").add("C", "lib").add("lib")

	names := resolveNames(t, c, DefaultOptions(), "A", false)
	assert.Equal(t, []string{"lib", "B", "C", "A"}, names)
	assert.Equal(t, 1, c.fetches["lib"])
}

func TestResolve_Exclusion(t *testing.T) {
	c := newFakeCatalog().add("A", "base", "B").add("B", "space-age").add("base").add("space-age")
	opts := DefaultOptions()
	opts.Excluded = model.NewNameSet("base", "space-age")

	names := resolveNames(t, c, opts, "A", false)
	assert.Equal(t, []string{"B", "A"}, names)
	assert.Zero(t, c.fetches["base"], "excluded names are not fetched")
}

func TestResolve_ExcludedRoot(t *testing.T) {
	c := newFakeCatalog().add("base")
	opts := DefaultOptions()
	opts.Excluded = model.NewNameSet("base")
	r, _ := newResolver(c, opts)

	tree, err := r.Resolve(context.Background(), pageURL("base"), false)
	require.NoError(t, err)
	assert.Nil(t, tree)
	assert.Empty(t, Flatten(tree, opts.Excluded))
}

func TestResolve_DependencyFailureDropsBranch(t *testing.T) {
	c := newFakeCatalog().add("A", "missing", "B").add("B")
	r, hook := newResolver(c, DefaultOptions())

	tree, err := r.Resolve(context.Background(), pageURL("A"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, Flatten(tree, nil).Names())

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["dependency"] == "missing" {
			warned = true
		}
	}
	assert.True(t, warned, "the dropped dependency is logged")
}

func TestResolve_RootFailure(t *testing.T) {
	c := newFakeCatalog()
	r, _ := newResolver(c, DefaultOptions())

	tree, err := r.Resolve(context.Background(), pageURL("nope"), false)
	require.Error(t, err)
	assert.Nil(t, tree)
	assert.Equal(t, failure.Validation, failure.Classify(err).Category)
}

func TestResolve_IncompletePageRetriedOnce(t *testing.T) {
	c := newFakeCatalog().add("A")
	c.pages["A"].err = errors.New("expected element missing")
	c.pages["A"].failures = 1

	names := resolveNames(t, c, DefaultOptions(), "A", false)
	assert.Equal(t, []string{"A"}, names)
	assert.Equal(t, 2, c.fetches["A"])
}

func TestResolve_OptionalDepth(t *testing.T) {
	c := newFakeCatalog().add("A", "B").add("B").add("X").add("Y")
	c.optional["A"] = []string{"X"}
	c.optional["B"] = []string{"Y"}

	tests := []struct {
		name     string
		optional bool
		depth    int
		want     []string
	}{
		{"required only", false, 1, []string{"B", "A"}},
		{"root optional only", true, 1, []string{"B", "X", "A"}},
		{"every level", true, -1, []string{"Y", "B", "X", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.OptionalDepth = tt.depth
			cat := newFakeCatalog().add("A", "B").add("B").add("X").add("Y")
			cat.optional = c.optional
			assert.Equal(t, tt.want, resolveNames(t, cat, opts, "A", tt.optional))
		})
	}
}

func TestResolve_MaxDepth(t *testing.T) {
	c := newFakeCatalog().add("A", "B").add("B", "C").add("C")
	opts := DefaultOptions()
	opts.MaxDepth = 1

	names := resolveNames(t, c, opts, "A", false)
	assert.Equal(t, []string{"B", "A"}, names)
	assert.Zero(t, c.fetches["C"])
}

func TestResolveVersion_PinsRootOnly(t *testing.T) {
	c := newFakeCatalog().add("A", "B").add("B")
	var resolved []model.ModReference
	opts := DefaultOptions()
	opts.StorageURL = "https://storage.test/"
	opts.OnResolved = func(ref model.ModReference) { resolved = append(resolved, ref) }
	r, _ := newResolver(c, opts)

	tree, err := r.ResolveVersion(context.Background(), pageURL("A"), "0.9.0", false)
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", tree.Mod.Version)
	assert.Equal(t, "1.0.0", tree.Children[0].Mod.Version)
	require.Len(t, resolved, 2)

	u, err := url.Parse(tree.Mod.DownloadURL)
	require.NoError(t, err)
	assert.Equal(t, "storage.test", u.Host)
	assert.Equal(t, "/A/0.9.0.zip", u.Path)
	assert.Regexp(t, regexp.MustCompile(`^0\.\d{19}$`), u.Query().Get("anticache"))
}

func TestFlatten_NoDuplicatesNoExcluded(t *testing.T) {
	leaf := func(name string) *model.DependencyNode {
		return &model.DependencyNode{Mod: model.ModReference{Name: name}}
	}
	tree := &model.DependencyNode{
		Mod: model.ModReference{Name: "A"},
		Children: []*model.DependencyNode{
			{Mod: model.ModReference{Name: "B"}, Children: []*model.DependencyNode{leaf("D"), leaf("base")}},
			{Mod: model.ModReference{Name: "C"}, Children: []*model.DependencyNode{leaf("D")}},
		},
	}

	list := Flatten(tree, model.NewNameSet("base"))
	assert.Equal(t, []string{"D", "B", "C", "A"}, list.Names())
	assert.Empty(t, Flatten(nil, nil))
}
