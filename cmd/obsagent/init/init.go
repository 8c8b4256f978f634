// Package initcmder provides the init command for initializing a local
// .obsagent directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	dirName = ".obsagent"
)

const initLongDesc string = `Initialize a new .obsagent/ directory in the current working directory.

Creates a local .obsagent/ directory that takes precedence over the default
~/.obsagent/ directory for configuration, the vector snapshot, the audit log,
and other obsagent state.

This is useful for maintaining separate obsagent state per vault or project.

Examples:
  obsagent init`

const initShortDesc string = "Initialize a local .obsagent/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .obsagent directory: %w", err)
	}

	fmt.Printf("Initialized .obsagent directory: %s\n", dir)
	return nil
}
