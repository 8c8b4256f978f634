// Package watchcmder provides the watch command for indexing notes as they
// change on disk.
package watchcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/config"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/start"
)

type watchCommander struct {
	vaultPath  string
	debounceMs int

	debug  bool
	v      *viper.Viper
	logger *slog.Logger
}

var watchFlags = config.FlagSet{
	config.FlagVault: {Name: "vault", ViperKey: "storage.vault_path", Description: "Path to the note vault directory"},
}

const watchLongDesc string = `Watch the vault and index notes as they change.

Markdown files created or modified under the vault are re-indexed after a
short debounce; deleted or renamed files are removed from the index. Each
change is a normal audited index or delete operation, so everything the
watcher does can be rolled back.

Examples:
  obsagent watch
  obsagent watch --vault ~/vault
  obsagent watch --debounce-ms 1000`

const watchShortDesc string = "Watch the vault and index notes on change"

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, watchFlags, []string{config.FlagVault})
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	config.AddStringFlag(cmd, watchFlags, config.FlagVault, &cmder.vaultPath)
	cmd.Flags().IntVar(&cmder.debounceMs, "debounce-ms", 0, "Milliseconds to wait before indexing a changed note")

	return cmd
}

func (c *watchCommander) run(configDir string) error {
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

	watcher, err := pipeline.NewWatcher(pipeline.WatcherConfig{
		Service:  sys.Service,
		Root:     sys.VaultDir,
		Storage:  sys.Storage,
		Debounce: time.Duration(c.debounceMs) * time.Millisecond,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	c.logger.Info("watching vault", slog.String("root", sys.VaultDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		c.logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	return watcher.Run(ctx)
}
