package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
)

// Server is the API server for querying and managing the knowledge pipeline
type Server struct {
	config   Config
	pipe     *pipeline.Service
	auditLog *audit.Logger
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The pipeline and audit logger are injected to allow sharing with other
// components (e.g., the vault watcher when both run in one process).
func NewServer(config Config, pipe *pipeline.Service, auditLog *audit.Logger, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		pipe:     pipe,
		auditLog: auditLog,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/index", s.handleIndex)
	app.Post("/v1/query", s.handleQuery)
	app.Post("/v1/rollback/:id", s.handleRollback)
	app.Get("/v1/rollback/:id/playbook", s.handlePlaybook)
	app.Get("/v1/audit/entries", s.handleAuditEntries)
	app.Get("/v1/audit/verify", s.handleAuditVerify)
	app.Get("/v1/audit/stats", s.handleAuditStats)
	app.Get("/v1/breakers", s.handleBreakers)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
