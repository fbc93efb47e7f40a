package main

import (
	"fmt"

	"github.com/handiism/factorio-mod-downloader/internal/updates"
	"github.com/spf13/cobra"
)

var (
	checkMod      string
	updateMod     string
	updateReplace bool
)

var checkUpdatesCmd = &cobra.Command{
	Use:   "check-updates [dir]",
	Short: "List installed mods with a newer version (default dir: output directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheckUpdates,
}

var updateCmd = &cobra.Command{
	Use:   "update [dir]",
	Short: "Download newer versions of installed mods",
	Long: `Download the latest version of every installed mod that has one.

Optional dependencies are never added by an update. The old archive is
kept unless --replace is given.

Examples:
  fmd update ~/.factorio/mods
  fmd update ~/.factorio/mods --update-mod flib --replace`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	checkUpdatesCmd.Flags().StringVar(&checkMod, "mod", "", "check only this mod")
	updateCmd.Flags().StringVar(&updateMod, "update-mod", "", "update only this mod")
	updateCmd.Flags().BoolVar(&updateReplace, "replace", false, "delete the old archive after a successful update")
	updateCmd.Flags().StringVar(&downloadMetricsFile, "metrics-textfile", "", "write Prometheus metrics to this file")
	rootCmd.AddCommand(checkUpdatesCmd, updateCmd)
}

// newUpdateApp builds an app writing into the mods directory given on the
// command line, or the configured output directory.
func newUpdateApp(cmd *cobra.Command, args []string) (*app, string, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, "", err
	}
	if len(args) == 1 {
		settings.OutputDir = args[0]
	}
	settings.IncludeOptional = false

	a, err := newApp(cmd, settings)
	if err != nil {
		return nil, "", err
	}
	return a, settings.OutputDir, nil
}

func runCheckUpdates(cmd *cobra.Command, args []string) error {
	a, dir, err := newUpdateApp(cmd, args)
	if err != nil {
		return err
	}

	checker := updates.NewChecker(a.provider, a.settings, a.log)
	report, err := checker.Check(cmd.Context(), dir, checkMod)
	if err != nil {
		return err
	}
	printReport(a, report)
	return nil
}

func printReport(a *app, report updates.Report) {
	fmt.Fprintf(a.out, "Checked %d mod(s)\n", len(report.Installed))
	for _, failed := range report.Failed {
		fmt.Fprintf(a.out, "❌ %s: %s\n", failed.Name, failed.Error)
	}
	if len(report.Updates) == 0 {
		fmt.Fprintln(a.out, "✅ All mods are up to date!")
		return
	}
	fmt.Fprintf(a.out, "📦 %d update(s) available:\n", len(report.Updates))
	for _, u := range report.Updates {
		fmt.Fprintf(a.out, "   %s: %s → %s\n", u.Name, u.Version, u.Latest)
	}
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, dir, err := newUpdateApp(cmd, args)
	if err != nil {
		return err
	}

	checker := updates.NewChecker(a.provider, a.settings, a.log)
	report, err := checker.Check(cmd.Context(), dir, updateMod)
	if err != nil {
		return err
	}
	printReport(a, report)
	if len(report.Updates) == 0 {
		return nil
	}

	applied := updates.Apply(cmd.Context(), a.manager, report.Updates, updateReplace, a.log)
	for _, u := range applied.Updated {
		fmt.Fprintf(a.out, "⬆️  %s %s → %s\n", u.Name, u.Version, u.Latest)
	}
	for _, path := range applied.Removed {
		fmt.Fprintf(a.out, "🗑️  Removed %s\n", path)
	}

	if a.registry != nil {
		installed, err := checker.Installed(dir)
		if err != nil {
			a.log.WithError(err).Warn("Could not rescan the mods directory")
		}
		for _, mod := range installed {
			if entry, ok := a.registry.Get(mod.Name); ok && entry.Version == mod.Version {
				continue
			}
			a.registry.Add(mod.Name, mod.Version, mod.Path, mod.Size)
		}
	}
	return a.finish(cmd, applied.AggregateResult, downloadMetricsFile)
}
