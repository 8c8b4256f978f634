package pipeline_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/resilience"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage/inmemory"
	testutils "github.com/B0LK13/obsidian-agent-sub005/pkg/utils/test"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector/memory"
)

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		store     *inmemory.Driver
		trail     *audit.Logger
		vectors   *memory.Driver
		embedder  *testutils.MockEmbedder
		completer *testutils.MockCompleter
		svc       *pipeline.Service
	)

	newService := func(cfg pipeline.Config) *pipeline.Service {
		cfg.Vector = vectors
		cfg.Audit = trail
		cfg.Embedder = embedder
		cfg.Completer = completer
		cfg.Storage = store
		cfg.Logger = logger.Nop()
		cfg.BackoffMs = 1

		s, err := pipeline.NewService(cfg)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()

		var err error
		trail, err = audit.NewLogger(audit.Config{Storage: store, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		vectors, err = memory.NewDriver(memory.Config{Storage: store})
		Expect(err).NotTo(HaveOccurred())

		embedder = testutils.NewMockEmbedder()
		completer = testutils.NewMockCompleter()

		svc = newService(pipeline.Config{})
	})

	Describe("IngestNote", func() {
		It("normalizes a valid note", func() {
			result := svc.IngestNote(ctx, pipeline.NoteInput{
				ID:      "notes/alpha.md",
				Content: "Photosynthesis converts light into #biology energy.",
			}, "")

			Expect(result.Success).To(BeTrue())
			Expect(result.WordCount).To(Equal(6))
			Expect(result.Tags).To(ConsistOf("biology"))
			Expect(result.OperationID).NotTo(BeEmpty())
		})

		It("rejects notes below the word count floor", func() {
			result := svc.IngestNote(ctx, pipeline.NoteInput{ID: "notes/short.md", Content: "too short"}, "")

			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("validation failed"))

			entry, ok := trail.LastEntry(result.OperationID)
			Expect(ok).To(BeTrue())
			Expect(entry.Status).To(Equal(audit.StatusFailed))
		})

		It("rejects notes without an id", func() {
			result := svc.IngestNote(ctx, pipeline.NoteInput{Content: "some note content here"}, "")
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("note id"))
		})

		It("wraps the operation in audit entries", func() {
			result := svc.IngestNote(ctx, pipeline.NoteInput{
				ID:      "notes/alpha.md",
				Content: "a few words about plants",
			}, "")

			history := trail.OperationHistory(result.OperationID)
			Expect(history).To(HaveLen(2))
			Expect(history[0].Status).To(Equal(audit.StatusStarted))
			Expect(history[1].Status).To(Equal(audit.StatusCompleted))
		})
	})

	Describe("IndexNote", func() {
		note := pipeline.NoteInput{
			ID:      "notes/alpha.md",
			Content: "Photosynthesis converts light into chemical energy inside chloroplasts.",
		}

		It("embeds and stores the note", func() {
			result := svc.IndexNote(ctx, note, "")

			Expect(result.Success).To(BeTrue())
			Expect(result.Dimensions).To(Equal(3))

			stored, err := vectors.Get(ctx, note.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Content).To(Equal(note.Content))
			Expect(stored.Metadata).To(HaveKeyWithValue("word_count", 9))
		})

		It("is idempotent under the same key and embeds exactly once", func() {
			first := svc.IndexNote(ctx, note, "key-1")
			second := svc.IndexNote(ctx, note, "key-1")

			Expect(first.Success).To(BeTrue())
			Expect(second).To(Equal(first))
			Expect(embedder.Calls()).To(Equal(1))
		})

		It("retries transient embedding failures", func() {
			embedder.FailuresRemaining = 2

			result := svc.IndexNote(ctx, note, "")

			Expect(result.Success).To(BeTrue())
			Expect(embedder.Calls()).To(Equal(3))
		})

		It("fails after retry exhaustion", func() {
			embedder.FailuresRemaining = 10

			result := svc.IndexNote(ctx, note, "")

			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("timeout"))
			Expect(embedder.Calls()).To(Equal(3))

			entry, ok := trail.LastEntry(result.OperationID)
			Expect(ok).To(BeTrue())
			Expect(entry.Status).To(Equal(audit.StatusFailed))
		})

		It("fails validation before touching the embedder", func() {
			result := svc.IndexNote(ctx, pipeline.NoteInput{ID: "notes/short.md", Content: "nope"}, "")

			Expect(result.Success).To(BeFalse())
			Expect(embedder.Calls()).To(BeZero())
		})
	})

	Describe("RollbackOperation", func() {
		note := pipeline.NoteInput{
			ID:      "notes/alpha.md",
			Content: "Photosynthesis converts light into chemical energy inside chloroplasts.",
		}

		It("removes a freshly indexed note entirely", func() {
			result := svc.IndexNote(ctx, note, "")
			Expect(result.Success).To(BeTrue())

			rollback := svc.RollbackOperation(ctx, result.OperationID)
			Expect(rollback.Success).To(BeTrue())

			size, err := vectors.Size(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(BeZero())
		})

		It("restores the exact prior state of a re-indexed note", func() {
			Expect(vectors.Add(ctx, vector.Document{
				ID:      note.ID,
				Vector:  []float32{9, 9, 9},
				Content: "the old content",
			})).To(Succeed())

			result := svc.IndexNote(ctx, note, "")
			Expect(result.Success).To(BeTrue())

			rollback := svc.RollbackOperation(ctx, result.OperationID)
			Expect(rollback.Success).To(BeTrue())

			restored, err := vectors.Get(ctx, note.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.Content).To(Equal("the old content"))
			Expect(restored.Vector).To(Equal([]float32{9, 9, 9}))
		})

		It("reports unknown operations", func() {
			rollback := svc.RollbackOperation(ctx, "missing")
			Expect(rollback.Success).To(BeFalse())
			Expect(rollback.Error).NotTo(BeEmpty())
		})
	})

	Describe("QueryAgent", func() {
		It("answers with evidence when notes match", func() {
			indexed := svc.IndexNote(ctx, pipeline.NoteInput{
				ID:      "notes/photosynthesis.md",
				Content: "Photosynthesis converts light into chemical energy, producing glucose and oxygen from carbon dioxide and water inside chloroplasts.",
			}, "")
			Expect(indexed.Success).To(BeTrue())

			result := svc.QueryAgent(ctx, "How do plants make energy?", pipeline.QueryOptions{})

			Expect(result.Success).To(BeTrue())
			Expect(result.Evidence.Sources).NotTo(BeEmpty())
			Expect(result.Evidence.Sources[0].NoteID).To(Equal("notes/photosynthesis.md"))
			Expect(result.Confidence).To(BeNumerically(">", 0))
			Expect(result.Answer).NotTo(BeEmpty())
		})

		It("returns a structured no-results answer on an empty store", func() {
			result := svc.QueryAgent(ctx, "anything at all", pipeline.QueryOptions{})

			Expect(result.Success).To(BeTrue())
			Expect(result.Evidence.Sources).To(BeEmpty())
			Expect(result.Confidence).To(BeZero())
			Expect(result.RecommendedAction).NotTo(BeEmpty())
			Expect(completer.Calls()).To(BeZero())
		})

		It("rejects empty queries", func() {
			result := svc.QueryAgent(ctx, "", pipeline.QueryOptions{})
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("validation failed"))
		})

		It("extracts a recommended action from the answer", func() {
			indexed := svc.IndexNote(ctx, pipeline.NoteInput{
				ID:      "notes/alpha.md",
				Content: "Some note content about project planning and timelines.",
			}, "")
			Expect(indexed.Success).To(BeTrue())

			completer.Answer = "Based on [1], the plan is behind. Next step: review the timeline with the team."

			result := svc.QueryAgent(ctx, "How is the project going?", pipeline.QueryOptions{})

			Expect(result.Success).To(BeTrue())
			Expect(result.RecommendedAction).To(Equal("review the timeline with the team"))
		})

		It("surfaces completion failures after retries", func() {
			indexed := svc.IndexNote(ctx, pipeline.NoteInput{
				ID:      "notes/alpha.md",
				Content: "Some note content about project planning.",
			}, "")
			Expect(indexed.Success).To(BeTrue())

			completer.FailuresRemaining = 10

			result := svc.QueryAgent(ctx, "what is planned?", pipeline.QueryOptions{})
			Expect(result.Success).To(BeFalse())
			Expect(completer.Calls()).To(Equal(3))
		})
	})

	Describe("DeleteNote", func() {
		note := pipeline.NoteInput{
			ID:      "notes/alpha.md",
			Content: "Photosynthesis converts light into chemical energy.",
		}

		It("removes an indexed note and can roll the deletion back", func() {
			indexed := svc.IndexNote(ctx, note, "")
			Expect(indexed.Success).To(BeTrue())

			deleted := svc.DeleteNote(ctx, note.ID)
			Expect(deleted.Success).To(BeTrue())
			Expect(deleted.Deleted).To(BeTrue())

			_, err := vectors.Get(ctx, note.ID)
			Expect(err).To(MatchError(vector.ErrNotFound))

			rollback := svc.RollbackOperation(ctx, deleted.OperationID)
			Expect(rollback.Success).To(BeTrue())

			restored, err := vectors.Get(ctx, note.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.Content).To(Equal(note.Content))
		})

		It("succeeds without mutating anything for absent notes", func() {
			deleted := svc.DeleteNote(ctx, "notes/missing.md")
			Expect(deleted.Success).To(BeTrue())
			Expect(deleted.Deleted).To(BeFalse())

			entry, ok := trail.LastEntry(deleted.OperationID)
			Expect(ok).To(BeTrue())
			Expect(entry.Status).To(Equal(audit.StatusCompleted))
		})
	})

	Describe("circuit breaker integration", func() {
		It("opens the embedding breaker after repeated aggregate failures", func() {
			embedder.FailuresRemaining = 1000
			note := pipeline.NoteInput{ID: "notes/alpha.md", Content: "enough words to pass validation here"}

			for i := 0; i < 5; i++ {
				svc.IndexNote(ctx, note, "")
			}

			stats := svc.EmbedderStats()
			Expect(stats.State).To(Equal(resilience.StateOpen))

			calls := embedder.Calls()
			result := svc.IndexNote(ctx, note, "")
			Expect(result.Success).To(BeFalse())
			Expect(embedder.Calls()).To(Equal(calls), "open breaker should fail fast without calling the embedder")
		})
	})
})
