// Package rollbackcmder provides the rollback command for undoing committed
// operations.
package rollbackcmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/cliui"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/config"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/start"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/txn"
)

type rollbackCommander struct {
	operationID string
	playbook    bool

	debug  bool
	v      *viper.Viper
	logger *slog.Logger
}

const rollbackLongDesc string = `Undo a committed operation by its operation ID.

Restores the vector store entries and files the operation overwrote, using the
checkpoints recorded in the audit trail. The rollback itself is audited.

With --playbook, no changes are made; instead the ordered list of manual
recovery steps for the operation is printed. This is useful for reviewing what
a rollback would do, or for recovering by hand when the automated path is not
trusted.

Operation IDs are printed by index and query commands and listed by:
  obsagent audit list

Examples:
  obsagent rollback 0b54a3f2-77f1-4e2f-bb1c-0a1f6de3a001
  obsagent rollback 0b54a3f2-77f1-4e2f-bb1c-0a1f6de3a001 --playbook`

const rollbackShortDesc string = "Undo a committed operation"

func NewRollbackCmd() *cobra.Command {
	cmder := &rollbackCommander{}

	cmd := &cobra.Command{
		Use:   "rollback <operation-id>",
		Short: rollbackShortDesc,
		Long:  rollbackLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(configDir)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.operationID = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	cmd.Flags().BoolVarP(&cmder.playbook, "playbook", "p", false, "Print the manual recovery steps instead of rolling back")

	return cmd
}

func (c *rollbackCommander) run(configDir string) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithFormat(logger.FormatPretty))

	manager, err := start.NewManager(configDir, c.v, c.logger)
	if err != nil {
		return err
	}

	sys, err := manager.Build(context.Background())
	if err != nil {
		return err
	}
	defer sys.Close()

	if c.playbook {
		pb, err := sys.Service.Playbook(c.operationID)
		if err != nil {
			return fmt.Errorf("building playbook: %w", err)
		}
		c.printPlaybook(pb)
		return nil
	}

	result := sys.Service.RollbackOperation(context.Background(), c.operationID)
	if !result.Success {
		return fmt.Errorf("rollback failed: %s", result.Error)
	}

	fmt.Printf("\n  %s Rolled back operation %s\n\n",
		cliui.SuccessMark,
		cliui.HashStyle.Render(c.operationID),
	)
	return nil
}

func (c *rollbackCommander) printPlaybook(pb *txn.Playbook) {
	fmt.Printf("\n%s %s\n\n",
		cliui.HeaderStyle.Render("Recovery playbook for:"),
		cliui.HashStyle.Render(pb.OperationID),
	)

	if len(pb.Steps) == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Nothing to undo."))
		return
	}

	for _, step := range pb.Steps {
		fmt.Printf("  %s %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("%d.", step.Sequence)),
			cliui.ValueStyle.Render(step.Description),
		)
		fmt.Printf("     %s %s\n",
			cliui.KeyStyle.Render("verify:"),
			cliui.DimStyle.Render(step.Verify),
		)
	}

	fmt.Println()
}
