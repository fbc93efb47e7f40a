package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var planOptional bool

var (
	planHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	planDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var planCmd = &cobra.Command{
	Use:   "plan <mod>",
	Short: "Show what would be downloaded",
	Long: `Resolve a mod's dependencies and list the download order without
downloading anything.

Examples:
  fmd plan flib
  fmd plan Krastorio2 --optional`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planOptional, "optional", false, "include optional dependencies")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if planOptional {
		settings.IncludeOptional = true
	}

	a, err := newApp(cmd, settings)
	if err != nil {
		return err
	}

	list, err := a.manager.Plan(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, planHeaderStyle.Render(fmt.Sprintf("%-4s %-40s %-12s %10s", "#", "MOD", "VERSION", "SIZE")))
	for i, mod := range list {
		size := planDimStyle.Render(fmt.Sprintf("%10s", "?"))
		if mod.Size > 0 {
			size = fmt.Sprintf("%7.2f MB", float64(mod.Size)/1024/1024)
		}
		name := mod.Name
		if mod.Optional {
			name += " (optional)"
		}
		fmt.Fprintf(out, "%-4d %-40s %-12s %s\n", i+1, name, mod.Version, size)
	}
	fmt.Fprintf(out, "\n%d mod(s), %.2f MB estimated\n", len(list), float64(list.EstimatedSize())/1024/1024)
	return nil
}
