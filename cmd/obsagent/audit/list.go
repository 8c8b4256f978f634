package auditcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/cliui"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/utils"
)

type listCommander struct {
	operationID string
	operation   string
	status      string
	limit       int
}

const listLongDesc string = `List audit log entries, newest first.

Entries can be filtered by operation ID, operation kind (ingest, index, query,
delete, rollback), or status (started, completed, failed, rolled_back).

Examples:
  obsagent audit list
  obsagent audit list --operation index --status failed
  obsagent audit list --operation-id 0b54a3f2-77f1-4e2f-bb1c-0a1f6de3a001
  obsagent audit list --limit 20`

const listShortDesc string = "List audit log entries"

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	cmd.Flags().StringVar(&cmder.operationID, "operation-id", "", "Only entries for this operation ID")
	cmd.Flags().StringVar(&cmder.operation, "operation", "", "Only entries of this operation kind")
	cmd.Flags().StringVar(&cmder.status, "status", "", "Only entries with this status")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 50, "Maximum number of entries to show")

	return cmd
}

func (c *listCommander) run(configDir string) error {
	log, err := openLogger(configDir, logger.Nop())
	if err != nil {
		return err
	}

	entries := log.Query(audit.QueryFilter{
		OperationID: c.operationID,
		Operation:   audit.Operation(c.operation),
		Status:      audit.Status(c.status),
		Limit:       c.limit,
	})

	if len(entries) == 0 {
		fmt.Println("No audit entries found.")
		return nil
	}

	fmt.Printf("\n  %s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("%d entries", len(entries))))

	for _, entry := range entries {
		c.printEntry(entry)
	}

	return nil
}

func (c *listCommander) printEntry(entry audit.Entry) {
	ts := time.UnixMilli(entry.Timestamp).Format(time.RFC3339)

	fmt.Printf("  %s  %s  %s  %s\n",
		cliui.DimStyle.Render(ts),
		cliui.NameStyle.Render(fmt.Sprintf("%-8s", string(entry.Operation))),
		statusStyle(entry.Status),
		cliui.HashStyle.Render(entry.OperationID),
	)

	if entry.Error != "" {
		fmt.Printf("      %s\n", cliui.DimStyle.Render(utils.Truncate(entry.Error, 100)))
	}
}

func statusStyle(status audit.Status) string {
	switch status {
	case audit.StatusCompleted:
		return cliui.NameStyle.Render(fmt.Sprintf("%-11s", string(status)))
	case audit.StatusFailed:
		return cliui.FailMark + " " + cliui.WarnStyle.Render(fmt.Sprintf("%-9s", string(status)))
	case audit.StatusRolledBack:
		return cliui.WarnStyle.Render(fmt.Sprintf("%-11s", string(status)))
	default:
		return cliui.DimStyle.Render(fmt.Sprintf("%-11s", string(status)))
	}
}
