// Package obsagentcmder
package obsagentcmder

import (
	auditcmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/audit"
	configcmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/config"
	indexcmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/index"
	initcmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/init"
	querycmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/query"
	rollbackcmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/rollback"
	servecmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/serve"
	watchcmder "github.com/B0LK13/obsidian-agent-sub005/cmd/obsagent/watch"
	versioncmder "github.com/B0LK13/obsidian-agent-sub005/cmd/version"
	"github.com/spf13/cobra"
)

const obsagentLongDesc string = `Obsagent is a local-first knowledge pipeline for your notes.

Index notes into a vector store, query them through an agent, and roll back
any operation using the audit trail:
  obsagent index <path>     Index notes into the vector store
  obsagent query <text>     Ask the agent a question over indexed notes
  obsagent rollback <id>    Undo an operation by its operation ID
  obsagent serve            Run the HTTP API server
  obsagent watch            Watch the vault and index notes on change`

const obsagentShortDesc string = "Obsagent - local-first knowledge pipeline"

func NewObsagentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obsagent",
		Short: obsagentShortDesc,
		Long:  obsagentLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Path to the .obsagent/ directory (default: ./.obsagent or ~/.obsagent)")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(rollbackcmder.NewRollbackCmd())
	cmd.AddCommand(auditcmder.NewAuditCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
