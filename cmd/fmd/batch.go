package main

import (
	"fmt"
	"os"

	"github.com/handiism/factorio-mod-downloader/internal/download"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Download every mod listed in a JSON or YAML file",
	Long: `Download every mod listed in a batch file.

The file holds either an object with a "mods" list or a bare list:

  {"mods": ["flib", "Krastorio2@1.3.24"]}

  - flib
  - https://mods.factorio.com/mod/stdlib`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	addDownloadFlags(batchCmd)
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}
	refs, err := download.ParseBatchFile(data)
	if err != nil {
		return err
	}
	return downloadRefs(cmd, refs)
}
