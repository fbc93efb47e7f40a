package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/handiism/factorio-mod-downloader/internal/config"
	"github.com/handiism/factorio-mod-downloader/internal/download"
	"github.com/handiism/factorio-mod-downloader/internal/http"
	"github.com/handiism/factorio-mod-downloader/internal/logging"
	"github.com/handiism/factorio-mod-downloader/internal/metrics"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/portal"
	"github.com/handiism/factorio-mod-downloader/internal/registry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app wires the components used by the download commands.
type app struct {
	settings *config.Settings
	log      *logrus.Logger
	client   *http.Client
	provider portal.Provider
	manager  *download.Manager
	registry *registry.Registry
	metrics  *metrics.Recorder
	out      io.Writer
}

func settingsPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(settingsPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if outputDir != "" {
		settings.OutputDir = outputDir
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	if logFormat != "" {
		settings.LogFormat = logFormat
	}
	if verbose && settings.LogLevel == "info" {
		settings.LogLevel = "debug"
	}
	return settings, nil
}

func newApp(cmd *cobra.Command, settings *config.Settings) (*app, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(settings.LogLevel, settings.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(registry.DefaultPath())
	if err != nil {
		log.WithError(err).Warn("Mod registry is unreadable, downloads will not be recorded")
		reg = nil
	}

	client := http.NewClient(
		http.WithTimeout(settings.RequestTimeoutDuration()),
		http.WithUserAgent(settings.UserAgent),
		http.WithRateLimit(settings.RequestsPerSecond, settings.RequestBurst),
	)
	provider, err := portal.New(settings.Provider, client, settings.APIURL, settings.CatalogURL, settings.MirrorPageURL)
	if err != nil {
		return nil, err
	}

	a := &app{
		settings: settings,
		log:      log,
		client:   client,
		provider: provider,
		registry: reg,
		metrics:  metrics.NewRecorder(),
		out:      cmd.OutOrStdout(),
	}
	a.manager = download.NewManager(settings, provider, client, log, a.onEvent)
	return a, nil
}

func (a *app) onEvent(event download.Event) {
	a.metrics.Observe(event)

	if a.registry != nil && event.Kind == download.EventComplete && !event.Skipped {
		a.registry.Add(event.Mod, event.Version, event.Path, event.Bytes)
	}

	if event.Level == download.LevelVerbose && !verbose {
		return
	}

	prefix := ""
	switch event.Level {
	case download.LevelError:
		prefix = "❌ "
	case download.LevelWarning:
		prefix = "⚠️  "
	case download.LevelSuccess:
		prefix = "✅ "
	case download.LevelInfo:
		prefix = "ℹ️  "
	default:
		prefix = "   "
	}

	fmt.Fprintln(a.out, prefix+event.Message)
	if event.Kind == download.EventError && event.Suggestion != "" {
		fmt.Fprintf(a.out, "   💡 %s\n", event.Suggestion)
	}
}

// finish persists the registry and metrics and prints the summary. It
// returns an error when any mod failed so the exit status reflects it.
func (a *app) finish(cmd *cobra.Command, result model.AggregateResult, metricsFile string) error {
	a.metrics.RecordResult(result)

	if a.registry != nil {
		if err := a.registry.Save(cmd.Context()); err != nil {
			a.log.WithError(err).Warn("Could not save mod registry")
		}
	}
	if metricsFile != "" {
		if err := a.metrics.WriteTextfile(metricsFile); err != nil {
			a.log.WithError(err).Warn("Could not write metrics")
		}
	}

	printSummary(a.out, result)
	if !result.Success {
		return fmt.Errorf("%d mod(s) failed", len(result.Failed))
	}
	return nil
}

func printSummary(w io.Writer, result model.AggregateResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("━", 40))
	fmt.Fprintf(w, "✨ Complete! Downloaded %d mod(s) (%.2f MB) in %s\n",
		len(result.DownloadedNames), float64(result.TotalBytes)/1024/1024, result.Duration.Round(time.Millisecond))
	if len(result.SkippedNames) > 0 {
		fmt.Fprintf(w, "   %d already present: %s\n", len(result.SkippedNames), strings.Join(result.SkippedNames, ", "))
	}
	for _, failed := range result.Failed {
		fmt.Fprintf(w, "❌ %s: %s\n", failed.Name, failed.Error)
		if failed.Suggestion != "" {
			fmt.Fprintf(w, "   💡 %s\n", failed.Suggestion)
		}
	}
}
