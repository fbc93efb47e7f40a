package main

import (
	"github.com/spf13/cobra"
)

var (
	downloadOptional    bool
	downloadNoResume    bool
	downloadConcurrency int
	downloadMetricsFile string
)

var downloadCmd = &cobra.Command{
	Use:   "download <mod>...",
	Short: "Download mods and their dependencies",
	Long: `Download one or more mods with every mod they depend on.

Examples:
  fmd download flib
  fmd download Krastorio2@1.3.24 --optional
  fmd download https://mods.factorio.com/mod/flib stdlib --concurrency 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	addDownloadFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}

func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&downloadOptional, "optional", false, "include optional dependencies")
	cmd.Flags().BoolVar(&downloadNoResume, "no-resume", false, "restart partial downloads from scratch")
	cmd.Flags().IntVarP(&downloadConcurrency, "concurrency", "c", 0, "number of mods to download in parallel (default: config)")
	cmd.Flags().StringVar(&downloadMetricsFile, "metrics-textfile", "", "write Prometheus metrics to this file")
}

func runDownload(cmd *cobra.Command, args []string) error {
	return downloadRefs(cmd, args)
}

func downloadRefs(cmd *cobra.Command, refs []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if downloadOptional {
		settings.IncludeOptional = true
	}
	if downloadNoResume {
		settings.Resume = false
	}
	if downloadConcurrency > 0 {
		settings.MaxConcurrentMods = downloadConcurrency
	}

	a, err := newApp(cmd, settings)
	if err != nil {
		return err
	}

	a.log.WithField("output", settings.OutputDir).Debug("Starting downloads")
	if len(refs) == 1 {
		return a.finish(cmd, a.manager.DownloadMod(cmd.Context(), refs[0]), downloadMetricsFile)
	}
	return a.finish(cmd, a.manager.DownloadBatch(cmd.Context(), refs), downloadMetricsFile)
}
