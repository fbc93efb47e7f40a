package updates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/handiism/factorio-mod-downloader/internal/config"
	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/portal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catalog answers with fixed latest versions.
type catalog map[string]string

func (c catalog) FetchPage(_ context.Context, u string) (*portal.Document, error) {
	ref, err := portal.ParseModRef(u)
	if err != nil {
		return nil, err
	}
	if _, ok := c[ref.Name]; !ok {
		return nil, failure.New(failure.Validation, "mod not found: "+ref.Name, "Check that the mod exists")
	}
	return &portal.Document{URL: u, Mod: &portal.ModInfo{Name: ref.Name}}, nil
}

func (c catalog) GetName(doc *portal.Document) (string, error) {
	return doc.Mod.Name, nil
}

func (c catalog) GetLatestVersion(doc *portal.Document) (string, error) {
	return c[doc.Mod.Name], nil
}

func (c catalog) GetRequiredDependencies(context.Context, string, bool) ([]portal.Dependency, error) {
	return nil, nil
}

func modsDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("zip"), 0644))
	}
	return dir
}

func newChecker(t *testing.T, c catalog) *Checker {
	t.Helper()
	logger, _ := test.NewNullLogger()
	settings := config.DefaultSettings()
	settings.MaxConcurrentMods = 3
	return NewChecker(c, settings, logger)
}

func TestNewer(t *testing.T) {
	assert.True(t, Newer("0.12.10", "0.12.9"))
	assert.False(t, Newer("0.12.9", "0.12.10"))
	assert.False(t, Newer("1.0.0", "1.0.0"))
	assert.True(t, Newer("beta", "alpha"))
}

func TestInstalled_NewestArchivePerMod(t *testing.T) {
	dir := modsDir(t, "flib_0.12.3.zip", "flib_0.12.10.zip", "base_1.1.0.zip", "stdlib_1.0.8.zip", "readme.txt", "mod-settings.dat")

	installed, err := newChecker(t, nil).Installed(dir)
	require.NoError(t, err)
	require.Len(t, installed, 2)
	assert.Equal(t, Installed{Name: "flib", Version: "0.12.10", Path: filepath.Join(dir, "flib_0.12.10.zip"), Size: 3}, installed[0])
	assert.Equal(t, "stdlib", installed[1].Name)
}

func TestCheck(t *testing.T) {
	dir := modsDir(t, "flib_0.12.3.zip", "stdlib_1.0.8.zip", "gone_1.0.0.zip")
	checker := newChecker(t, catalog{"flib": "0.12.4", "stdlib": "1.0.8"})

	report, err := checker.Check(context.Background(), dir, "")
	require.NoError(t, err)

	assert.Len(t, report.Installed, 3)
	require.Len(t, report.Updates, 1)
	assert.Equal(t, "flib", report.Updates[0].Name)
	assert.Equal(t, "0.12.3", report.Updates[0].Version)
	assert.Equal(t, "0.12.4", report.Updates[0].Latest)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "gone", report.Failed[0].Name)
}

func TestCheck_SingleMod(t *testing.T) {
	dir := modsDir(t, "flib_0.12.3.zip", "stdlib_1.0.0.zip")
	checker := newChecker(t, catalog{"flib": "0.12.4", "stdlib": "1.0.8"})

	report, err := checker.Check(context.Background(), dir, "stdlib")
	require.NoError(t, err)
	require.Len(t, report.Updates, 1)
	assert.Equal(t, "stdlib", report.Updates[0].Name)

	_, err = checker.Check(context.Background(), dir, "helmod")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModNotInstalled))
}

func TestCheck_MissingDirectory(t *testing.T) {
	_, err := newChecker(t, nil).Check(context.Background(), filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)
	assert.Equal(t, failure.Filesystem, failure.Classify(err).Category)
}

// downloader writes the requested archive, or fails the mods in broken.
type downloader struct {
	dir    string
	broken map[string]bool
	inputs []string
}

func (d *downloader) DownloadMod(_ context.Context, input string) model.AggregateResult {
	d.inputs = append(d.inputs, input)
	ref, err := portal.ParseModRef(input)
	if err != nil || d.broken[ref.Name] {
		return model.AggregateResult{Failed: []model.FailedMod{{Name: ref.Name, Error: "HTTP 503"}}}
	}
	mod := model.ModReference{Name: ref.Name, Version: ref.Version}
	_ = os.WriteFile(filepath.Join(d.dir, mod.FileName()), []byte("zip"), 0644)
	return model.AggregateResult{Success: true, DownloadedNames: []string{ref.Name}, TotalBytes: 3}
}

func TestApply(t *testing.T) {
	dir := modsDir(t, "flib_0.12.3.zip", "stdlib_1.0.0.zip")
	d := &downloader{dir: dir, broken: map[string]bool{"stdlib": true}}
	list := []Update{
		{Installed: Installed{Name: "flib", Version: "0.12.3", Path: filepath.Join(dir, "flib_0.12.3.zip")}, Latest: "0.12.4"},
		{Installed: Installed{Name: "stdlib", Version: "1.0.0", Path: filepath.Join(dir, "stdlib_1.0.0.zip")}, Latest: "1.0.8"},
	}
	logger, _ := test.NewNullLogger()

	applied := Apply(context.Background(), d, list, true, logger)

	assert.Equal(t, []string{"flib@0.12.4", "stdlib@1.0.8"}, d.inputs)
	assert.False(t, applied.Success)
	require.Len(t, applied.Updated, 1)
	assert.Equal(t, "flib", applied.Updated[0].Name)
	assert.Equal(t, []string{filepath.Join(dir, "flib_0.12.3.zip")}, applied.Removed)
	assert.NoFileExists(t, filepath.Join(dir, "flib_0.12.3.zip"))
	assert.FileExists(t, filepath.Join(dir, "flib_0.12.4.zip"))
	assert.FileExists(t, filepath.Join(dir, "stdlib_1.0.0.zip"), "failed updates keep the old archive")
}

func TestApply_KeepsOldArchiveWithoutReplace(t *testing.T) {
	dir := modsDir(t, "flib_0.12.3.zip")
	d := &downloader{dir: dir}
	list := []Update{{Installed: Installed{Name: "flib", Version: "0.12.3", Path: filepath.Join(dir, "flib_0.12.3.zip")}, Latest: "0.12.4"}}

	applied := Apply(context.Background(), d, list, false, nil)

	assert.True(t, applied.Success)
	assert.Empty(t, applied.Removed)
	assert.FileExists(t, filepath.Join(dir, "flib_0.12.3.zip"))
}
