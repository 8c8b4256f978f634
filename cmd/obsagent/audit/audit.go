// Package auditcmder provides the audit command group for inspecting the
// tamper-evident operation log.
package auditcmder

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/config"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/dotdir"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage/local"
)

const auditLongDesc string = `Inspect the operation audit log.

Every ingest, index, query, delete, and rollback is recorded in an append-only,
checksummed audit log. Use subcommands to list entries, verify the log has not
been tampered with, or summarize operation outcomes:
  obsagent audit list      List audit entries, optionally filtered
  obsagent audit verify    Verify entry checksums
  obsagent audit stats     Summarize operations by outcome

Examples:
  obsagent audit list --operation index --limit 20
  obsagent audit verify
  obsagent audit stats`

const auditShortDesc string = "Inspect the operation audit log"

func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: auditShortDesc,
		Long:  auditLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// openLogger resolves the configured audit log and opens it read-only; no
// providers or vector store are needed for inspection.
func openLogger(configDir string, logger *slog.Logger) (*audit.Logger, error) {
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	vault := v.GetString("storage.vault_path")
	if vault == "" {
		ddm := dotdir.NewManager()
		vault, err = ddm.Target(configDir)
		if err != nil {
			return nil, err
		}
	}

	store, err := local.NewDriver(vault)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	return audit.NewLogger(audit.Config{
		Storage: store,
		LogPath: v.GetString("audit.log_path"),
		Logger:  logger,
	})
}
