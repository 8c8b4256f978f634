package auditcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/cliui"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
)

const verifyLongDesc string = `Verify the integrity of the audit log.

Recomputes the SHA-256 checksum of every entry and compares it against the
checksum recorded at write time. Any mismatch means the persisted log was
modified after the fact.

Exits non-zero when tampering is detected.

Examples:
  obsagent audit verify`

const verifyShortDesc string = "Verify audit log integrity"

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: verifyShortDesc,
		Long:  verifyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runVerify(configDir)
		},
	}

	return cmd
}

func runVerify(configDir string) error {
	log, err := openLogger(configDir, logger.Nop())
	if err != nil {
		return err
	}

	report, err := log.VerifyIntegrity()
	if err != nil {
		return fmt.Errorf("verifying integrity: %w", err)
	}

	if report.Valid {
		fmt.Printf("\n  %s Audit log intact\n\n", cliui.SuccessMark)
		return nil
	}

	fmt.Printf("\n  %s Tampering detected in %d entries:\n\n", cliui.FailMark, len(report.TamperedEntries))
	for _, key := range report.TamperedEntries {
		fmt.Printf("    %s\n", cliui.HashStyle.Render(key))
	}
	fmt.Println()

	return fmt.Errorf("audit log failed integrity check")
}
