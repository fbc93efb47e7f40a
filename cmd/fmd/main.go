package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	outputDir  string
	logLevel   string
	logFormat  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fmd",
	Short: "Download Factorio mods with their dependencies",
	Long: `fmd downloads a Factorio mod and every mod it depends on into your
mods directory. Mods already present are skipped and interrupted downloads
are resumed.

A mod can be given by name (flib), pinned to a version (flib@0.12.4) or as
a mod portal URL (https://mods.factorio.com/mod/flib).

For interactive mode, use: fmd-tui`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config file (default: ~/.factorio-mod-downloader/config.yaml)")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory (overrides config)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "show verbose output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nDownload cancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
