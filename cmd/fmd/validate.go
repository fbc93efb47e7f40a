package main

import (
	"fmt"
	"path/filepath"

	ioutils "github.com/handiism/factorio-mod-downloader/internal/io"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the integrity of every mod archive (default dir: output directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		} else {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			dir = settings.OutputDir
		}

		statuses, err := ioutils.ValidateZips(dir)
		if err != nil {
			return fmt.Errorf("validating %s: %w", dir, err)
		}

		out := cmd.OutOrStdout()
		if len(statuses) == 0 {
			fmt.Fprintf(out, "No mod archives in %s\n", dir)
			return nil
		}

		var corrupted int
		for _, status := range statuses {
			name := filepath.Base(status.Path)
			if status.Valid() {
				fmt.Fprintf(out, "✅ %s (%.2f MB)\n", name, float64(status.Size)/1024/1024)
				continue
			}
			corrupted++
			fmt.Fprintf(out, "❌ %s: %v\n", name, status.Err)
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "Total: %d, Valid: %d, Corrupted: %d\n", len(statuses), len(statuses)-corrupted, corrupted)
		if corrupted > 0 {
			return fmt.Errorf("%d corrupted archive(s)", corrupted)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
