// Package servecmder provides the serve command for running the obsagent API
// server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/B0LK13/obsidian-agent-sub005/api"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/config"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/start"
)

type serveCommander struct {
	listen string

	debug  bool
	v      *viper.Viper
	logger *slog.Logger
}

var serveFlags = config.FlagSet{
	config.FlagAPIListen: {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
}

const serveLongDesc string = `Run the obsagent API server.

Exposes the pipeline over HTTP: indexing, querying, rollback, audit
inspection, and circuit breaker state. Any open transactions left over from a
crashed run are rolled back on startup.

Examples:
  obsagent serve
  obsagent serve --listen :9090`

const serveShortDesc string = "Run the obsagent API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, serveFlags, []string{config.FlagAPIListen})
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

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)

	return cmd
}

func (c *serveCommander) run(configDir string) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithFormat(logger.FormatJSON))

	manager, err := start.NewManager(configDir, c.v, c.logger)
	if err != nil {
		return err
	}

	sys, err := manager.Build(context.Background())
	if err != nil {
		return err
	}
	defer sys.Close()

	// Roll back anything a previous run left open.
	cleaned, err := sys.Service.Cleanup(context.Background())
	if err != nil {
		return fmt.Errorf("recovering open transactions: %w", err)
	}
	if cleaned > 0 {
		c.logger.Warn("rolled back abandoned transactions", slog.Int("count", cleaned))
	}

	listen := c.v.GetString("api.listen")
	server := api.NewServer(api.Config{ListenAddr: listen}, sys.Service, sys.Audit, c.logger)

	c.logger.Info("starting API server",
		slog.String("listen", listen),
		slog.String("vault", sys.VaultDir),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		return server.Shutdown()
	}
}
