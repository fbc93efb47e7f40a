package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/handiism/factorio-mod-downloader/internal/registry"
	"github.com/spf13/cobra"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the record of downloaded mods",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded mods",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.Open(registry.DefaultPath())
		if err != nil {
			return err
		}

		entries := reg.List()
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No mods recorded yet.")
			return nil
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("MOD", "VERSION", "SIZE", "DOWNLOADED", "FILE").
			StyleFunc(func(row, col int) lipgloss.Style {
				style := lipgloss.NewStyle().Padding(0, 1)
				if row == table.HeaderRow {
					return planHeaderStyle.Padding(0, 1)
				}
				return style
			})
		for _, entry := range entries {
			t.Row(entry.Name, entry.Version,
				fmt.Sprintf("%.2f MB", float64(entry.Size)/1024/1024),
				entry.DownloadDate.Local().Format("2006-01-02 15:04"), entry.FilePath)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

var registryScanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Add mod archives found in a directory (default: output directory)",
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

		reg, err := registry.Open(registry.DefaultPath())
		if err != nil {
			return err
		}
		found, err := reg.Scan(dir)
		if err != nil {
			return err
		}
		if err := reg.Save(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %d mod(s) from %s\n", len(found), dir)
		return nil
	},
}

func init() {
	registryCmd.AddCommand(registryListCmd, registryScanCmd)
	rootCmd.AddCommand(registryCmd)
}
