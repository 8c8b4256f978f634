package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
)

// ErrorResponse is the error payload returned by every handler.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IndexRequest is the payload for POST /v1/index.
type IndexRequest struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// QueryRequest is the payload for POST /v1/query.
type QueryRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k,omitempty"`
	MinScore float32 `json:"min_score,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIndex ingests and indexes one note.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	var req IndexRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	result := s.pipe.IndexNote(c.Context(), pipeline.NoteInput{
		ID:       req.ID,
		Content:  req.Content,
		Metadata: req.Metadata,
	}, req.IdempotencyKey)

	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(result)
}

// handleQuery answers a natural-language query against the index.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	result := s.pipe.QueryAgent(c.Context(), req.Query, pipeline.QueryOptions{
		TopK:     req.TopK,
		MinScore: req.MinScore,
	})

	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(result)
}

// handleRollback undoes a committed operation.
func (s *Server) handleRollback(c *fiber.Ctx) error {
	opID := c.Params("id")
	if opID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "operation id required"})
	}

	result := s.pipe.RollbackOperation(c.Context(), opID)

	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(result)
}

// handlePlaybook returns the manual recovery plan for an operation.
func (s *Server) handlePlaybook(c *fiber.Ctx) error {
	opID := c.Params("id")
	if opID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "operation id required"})
	}

	playbook, err := s.pipe.Playbook(opID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(playbook)
}

// handleAuditEntries lists audit entries newest-first, with optional
// filters: operation_id, operation, status, since, until (ms since epoch)
// and limit.
func (s *Server) handleAuditEntries(c *fiber.Ctx) error {
	filter := audit.QueryFilter{
		OperationID: c.Query("operation_id"),
		Operation:   audit.Operation(c.Query("operation")),
		Status:      audit.Status(c.Query("status")),
	}

	if v := c.Query("since"); v != "" {
		since, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid since timestamp"})
		}
		filter.Since = since
	}
	if v := c.Query("until"); v != "" {
		until, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid until timestamp"})
		}
		filter.Until = until
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid limit"})
		}
		filter.Limit = limit
	}

	entries := s.auditLog.Query(filter)

	return c.JSON(map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

// handleAuditVerify recomputes every entry checksum and reports tampering.
func (s *Server) handleAuditVerify(c *fiber.Ctx) error {
	report, err := s.auditLog.VerifyIntegrity()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(report)
}

// handleAuditStats returns operation counts grouped by outcome.
func (s *Server) handleAuditStats(c *fiber.Ctx) error {
	return c.JSON(s.auditLog.Stats())
}

// handleBreakers exposes the provider circuit breakers' state.
func (s *Server) handleBreakers(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"embedding":  s.pipe.EmbedderStats(),
		"completion": s.pipe.CompleterStats(),
	})
}
