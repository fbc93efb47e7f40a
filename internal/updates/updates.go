package updates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/handiism/factorio-mod-downloader/internal/config"
	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/portal"
	"github.com/handiism/factorio-mod-downloader/internal/registry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Installed is the newest archive of one mod found in a directory.
type Installed struct {
	Name    string
	Version string
	Path    string
	Size    int64
}

// Update is an installed mod with a newer catalog version.
type Update struct {
	Installed
	Latest string
}

// Report is the outcome of Check.
type Report struct {
	// Installed lists the checked mods sorted by name.
	Installed []Installed

	// Updates lists the mods with a newer version, sorted by name.
	Updates []Update

	// Failed lists the mods whose latest version could not be read.
	Failed []model.FailedMod
}

// Checker looks up the latest versions of installed mods.
type Checker struct {
	provider portal.Provider
	settings *config.Settings
	log      logrus.FieldLogger
}

// NewChecker creates a Checker.
func NewChecker(provider portal.Provider, settings *config.Settings, log logrus.FieldLogger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{provider: provider, settings: settings, log: log}
}

// ErrModNotInstalled is returned by Check when the requested mod has no
// archive in the directory.
var ErrModNotInstalled = failure.New(failure.Validation, "mod not found in directory",
	"Run check-updates without a mod name to list the installed mods")

// Installed lists the newest archive of every mod in dir. Reserved mods
// are left out.
func (c *Checker) Installed(dir string) ([]Installed, error) {
	entries, err := registry.ScanDir(dir)
	if err != nil {
		return nil, failure.Wrap(failure.Filesystem, err, "", "Check that the directory exists")
	}

	excluded := c.settings.Excluded()
	newest := make(map[string]Installed)
	for _, e := range entries {
		if excluded.Has(e.Name) {
			continue
		}
		current, ok := newest[e.Name]
		if !ok || Newer(e.Version, current.Version) {
			newest[e.Name] = Installed{Name: e.Name, Version: e.Version, Path: e.FilePath, Size: e.Size}
		}
	}

	installed := make([]Installed, 0, len(newest))
	for _, mod := range newest {
		installed = append(installed, mod)
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].Name < installed[j].Name })
	return installed, nil
}

// Check reports the installed mods of dir that have a newer version. When
// only is not empty just that mod is checked.
func (c *Checker) Check(ctx context.Context, dir, only string) (Report, error) {
	installed, err := c.Installed(dir)
	if err != nil {
		return Report{}, err
	}
	if only != "" {
		var filtered []Installed
		for _, mod := range installed {
			if mod.Name == only {
				filtered = append(filtered, mod)
			}
		}
		if len(filtered) == 0 {
			return Report{}, fmt.Errorf("%s: %w", only, ErrModNotInstalled)
		}
		installed = filtered
	}

	report := Report{Installed: installed}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(1, c.settings.MaxConcurrentMods))
	for _, mod := range installed {
		g.Go(func() error {
			latest, err := c.latest(ctx, mod.Name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rec := failure.Classify(err)
				c.log.WithField("mod", mod.Name).WithError(err).Warn("Could not check for updates")
				report.Failed = append(report.Failed, model.FailedMod{Name: mod.Name, Error: rec.Message, Suggestion: rec.Suggestion})
				return nil
			}
			if Newer(latest, mod.Version) {
				report.Updates = append(report.Updates, Update{Installed: mod, Latest: latest})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	sort.Slice(report.Updates, func(i, j int) bool { return report.Updates[i].Name < report.Updates[j].Name })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Name < report.Failed[j].Name })
	return report, nil
}

func (c *Checker) latest(ctx context.Context, name string) (string, error) {
	doc, err := c.provider.FetchPage(ctx, portal.ModPageURL(c.settings.MirrorPageURL, c.settings.CatalogURL, name))
	if err != nil {
		return "", err
	}
	return c.provider.GetLatestVersion(doc)
}

// Newer reports whether version a is newer than b. Versions that do not
// parse are compared as text, so any difference counts as newer.
func Newer(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return a != b
	}
	return va.GreaterThan(vb)
}

// Downloader downloads a mod reference and its dependencies.
type Downloader interface {
	DownloadMod(ctx context.Context, input string) model.AggregateResult
}

// Applied is the outcome of Apply.
type Applied struct {
	model.AggregateResult

	// Updated lists the updates whose new archive is in place.
	Updated []Update

	// Removed lists the superseded archives that were deleted.
	Removed []string
}

// Apply downloads every update pinned to its latest version. With replace,
// the superseded archive of each successful update is deleted.
func Apply(ctx context.Context, d Downloader, list []Update, replace bool, log logrus.FieldLogger) Applied {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var applied Applied
	results := make([]model.AggregateResult, 0, len(list))
	for _, u := range list {
		if ctx.Err() != nil {
			break
		}
		result := d.DownloadMod(ctx, u.Name+"@"+u.Latest)
		results = append(results, result)
		if failedMod(result, u.Name) {
			continue
		}
		applied.Updated = append(applied.Updated, u)

		fresh := model.ModReference{Name: u.Name, Version: u.Latest}
		if !replace || filepath.Base(u.Path) == fresh.FileName() {
			continue
		}
		if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
			log.WithField("file", u.Path).WithError(err).Warn("Could not remove the old version")
			continue
		}
		applied.Removed = append(applied.Removed, u.Path)
	}
	applied.AggregateResult = model.Merge(results...)
	return applied
}

func failedMod(result model.AggregateResult, name string) bool {
	for _, f := range result.Failed {
		if f.Name == name {
			return true
		}
	}
	return false
}
