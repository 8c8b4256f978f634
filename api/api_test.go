package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage/inmemory"
	testutils "github.com/B0LK13/obsidian-agent-sub005/pkg/utils/test"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector/memory"
)

var _ = Describe("Server", func() {
	var (
		server *Server
		trail  *audit.Logger
	)

	BeforeEach(func() {
		store := inmemory.NewDriver()

		var err error
		trail, err = audit.NewLogger(audit.Config{Storage: store, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		vectors, err := memory.NewDriver(memory.Config{Storage: store})
		Expect(err).NotTo(HaveOccurred())

		pipe, err := pipeline.NewService(pipeline.Config{
			Vector:    vectors,
			Audit:     trail,
			Embedder:  testutils.NewMockEmbedder(),
			Completer: testutils.NewMockCompleter(),
			Storage:   store,
			Logger:    logger.Nop(),
			BackoffMs: 1,
		})
		Expect(err).NotTo(HaveOccurred())

		server = NewServer(Config{ListenAddr: ":0"}, pipe, trail, logger.Nop())
	})

	postJSON := func(path string, payload any) *http.Response {
		body, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	get := func(path string) *http.Response {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, into any) {
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(data, into)).To(Succeed())
	}

	It("responds to ping", func() {
		resp := get("/ping")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	Describe("POST /v1/index", func() {
		It("indexes a note", func() {
			resp := postJSON("/v1/index", IndexRequest{
				ID:      "notes/alpha.md",
				Content: "Photosynthesis converts light into chemical energy.",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result pipeline.IndexResult
			decode(resp, &result)
			Expect(result.Success).To(BeTrue())
			Expect(result.OperationID).NotTo(BeEmpty())
		})

		It("rejects invalid notes with 422", func() {
			resp := postJSON("/v1/index", IndexRequest{ID: "notes/short.md", Content: "nope"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("rejects malformed bodies with 400", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/index", bytes.NewReader([]byte("{broken")))
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /v1/query", func() {
		It("answers against indexed notes", func() {
			resp := postJSON("/v1/index", IndexRequest{
				ID:      "notes/alpha.md",
				Content: "Photosynthesis converts light into chemical energy.",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = postJSON("/v1/query", QueryRequest{Query: "How do plants make energy?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result pipeline.QueryResult
			decode(resp, &result)
			Expect(result.Success).To(BeTrue())
			Expect(result.Evidence.Sources).NotTo(BeEmpty())
		})

		It("rejects empty queries with 422", func() {
			resp := postJSON("/v1/query", QueryRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("POST /v1/rollback/:id", func() {
		It("rolls back an indexed note", func() {
			resp := postJSON("/v1/index", IndexRequest{
				ID:      "notes/alpha.md",
				Content: "Photosynthesis converts light into chemical energy.",
			})

			var indexed pipeline.IndexResult
			decode(resp, &indexed)

			resp = postJSON("/v1/rollback/"+indexed.OperationID, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result pipeline.RollbackResult
			decode(resp, &result)
			Expect(result.Success).To(BeTrue())
		})

		It("returns 422 for unknown operations", func() {
			resp := postJSON("/v1/rollback/missing", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("GET /v1/rollback/:id/playbook", func() {
		It("returns steps for a committed operation", func() {
			resp := postJSON("/v1/index", IndexRequest{
				ID:      "notes/alpha.md",
				Content: "Photosynthesis converts light into chemical energy.",
			})

			var indexed pipeline.IndexResult
			decode(resp, &indexed)

			resp = get("/v1/rollback/" + indexed.OperationID + "/playbook")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var playbook map[string]any
			decode(resp, &playbook)
			Expect(playbook["operation_id"]).To(Equal(indexed.OperationID))
			Expect(playbook["steps"]).NotTo(BeEmpty())
		})

		It("returns 404 for unknown operations", func() {
			resp := get("/v1/rollback/missing/playbook")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("audit endpoints", func() {
		BeforeEach(func() {
			resp := postJSON("/v1/index", IndexRequest{
				ID:      "notes/alpha.md",
				Content: "Photosynthesis converts light into chemical energy.",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("lists entries", func() {
			resp := get("/v1/audit/entries")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var payload struct {
				Count   int           `json:"count"`
				Entries []audit.Entry `json:"entries"`
			}
			decode(resp, &payload)
			Expect(payload.Count).To(BeNumerically(">=", 2))
		})

		It("filters entries by status", func() {
			resp := get("/v1/audit/entries?status=completed&limit=1")

			var payload struct {
				Entries []audit.Entry `json:"entries"`
			}
			decode(resp, &payload)
			Expect(payload.Entries).To(HaveLen(1))
			Expect(payload.Entries[0].Status).To(Equal(audit.StatusCompleted))
		})

		It("rejects bad filter values", func() {
			resp := get("/v1/audit/entries?since=notanumber")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("verifies integrity", func() {
			resp := get("/v1/audit/verify")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var report audit.IntegrityReport
			decode(resp, &report)
			Expect(report.Valid).To(BeTrue())
		})

		It("reports stats", func() {
			resp := get("/v1/audit/stats")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var stats audit.Stats
			decode(resp, &stats)
			Expect(stats.TotalOperations).To(BeNumerically(">=", 1))
			Expect(stats.CompletedOperations).To(BeNumerically(">=", 1))
		})
	})

	It("exposes breaker stats", func() {
		resp := get("/v1/breakers")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var payload map[string]any
		decode(resp, &payload)
		Expect(payload).To(HaveKey("embedding"))
		Expect(payload).To(HaveKey("completion"))
	})
})
