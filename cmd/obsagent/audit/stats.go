package auditcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/cliui"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
)

const statsLongDesc string = `Summarize audit log operations by outcome.

Examples:
  obsagent audit stats`

const statsShortDesc string = "Summarize audit log operations"

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStats(configDir)
		},
	}

	return cmd
}

func runStats(configDir string) error {
	log, err := openLogger(configDir, logger.Nop())
	if err != nil {
		return err
	}

	stats := log.Stats()

	fmt.Printf("\n  %s\n\n", cliui.HeaderStyle.Render("Audit log summary"))
	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Total operations:  "), stats.TotalOperations)
	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Completed:         "), stats.CompletedOperations)
	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Failed:            "), stats.FailedOperations)
	fmt.Printf("  %s  %d\n\n", cliui.KeyStyle.Render("Rolled back:       "), stats.RolledBackOperations)

	return nil
}
