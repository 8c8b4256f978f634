package audit_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage/inmemory"
)

var _ = Describe("Audit Logger", func() {
	var (
		ctx   context.Context
		store *inmemory.Driver
		log   *audit.Logger
	)

	newLogger := func(maxOps int) *audit.Logger {
		l, err := audit.NewLogger(audit.Config{
			Storage:       store,
			MaxOperations: maxOps,
			Logger:        logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return l
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		log = newLogger(0)
	})

	Describe("NewOperationID", func() {
		It("never collides", func() {
			seen := map[string]bool{}
			for range 1000 {
				id := log.NewOperationID()
				Expect(seen[id]).To(BeFalse())
				seen[id] = true
			}
		})
	})

	Describe("lifecycle entries", func() {
		It("groups started and completed entries by operation ID", func() {
			id := log.NewOperationID()
			Expect(log.Start(ctx, id, audit.OpIndex, map[string]any{"note": "a.md"})).To(Succeed())
			Expect(log.Complete(ctx, id, audit.OpIndex, map[string]any{"note": "a.md"}, nil)).To(Succeed())

			history := log.OperationHistory(id)
			Expect(history).To(HaveLen(2))
			Expect(history[0].Status).To(Equal(audit.StatusStarted))
			Expect(history[1].Status).To(Equal(audit.StatusCompleted))
			Expect(history[1].Timestamp).To(BeNumerically(">", history[0].Timestamp))
		})

		It("records failures with the error string", func() {
			id := log.NewOperationID()
			Expect(log.Start(ctx, id, audit.OpIngest, nil)).To(Succeed())
			Expect(log.Fail(ctx, id, audit.OpIngest, nil, "content too short")).To(Succeed())

			last, ok := log.LastEntry(id)
			Expect(ok).To(BeTrue())
			Expect(last.Status).To(Equal(audit.StatusFailed))
			Expect(last.Error).To(Equal("content too short"))
		})

		It("records rollbacks as rollback operations", func() {
			id := log.NewOperationID()
			Expect(log.Complete(ctx, id, audit.OpIndex, nil, nil)).To(Succeed())
			Expect(log.RecordRollback(ctx, id, map[string]any{"reason": "operator"})).To(Succeed())

			last, ok := log.LastEntry(id)
			Expect(ok).To(BeTrue())
			Expect(last.Operation).To(Equal(audit.OpRollback))
			Expect(last.Status).To(Equal(audit.StatusRolledBack))
		})

		It("carries rollback metadata on completed entries", func() {
			id := log.NewOperationID()
			rb := &audit.RollbackMetadata{
				PreviousState:   map[string]any{"id": "n"},
				AffectedIndices: []string{"n"},
				RecoverySteps:   []string{"restore vector entry n"},
			}
			Expect(log.Complete(ctx, id, audit.OpIndex, nil, rb)).To(Succeed())

			last, _ := log.LastEntry(id)
			Expect(last.RollbackMetadata).NotTo(BeNil())
			Expect(last.RollbackMetadata.AffectedIndices).To(Equal([]string{"n"}))
		})

		It("rejects entries without an operation ID", func() {
			Expect(log.Start(ctx, "", audit.OpIngest, nil)).NotTo(Succeed())
		})

		It("surfaces persistence failures but keeps the entry in memory", func() {
			store.FailWrites = true
			id := log.NewOperationID()
			Expect(log.Start(ctx, id, audit.OpIndex, nil)).NotTo(Succeed())

			_, ok := log.LastEntry(id)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Query", func() {
		var idA, idB string

		BeforeEach(func() {
			idA = log.NewOperationID()
			idB = log.NewOperationID()
			Expect(log.Start(ctx, idA, audit.OpIngest, nil)).To(Succeed())
			Expect(log.Complete(ctx, idA, audit.OpIngest, nil, nil)).To(Succeed())
			Expect(log.Start(ctx, idB, audit.OpIndex, nil)).To(Succeed())
			Expect(log.Fail(ctx, idB, audit.OpIndex, nil, "boom")).To(Succeed())
		})

		It("returns entries newest-first", func() {
			entries := log.Query(audit.QueryFilter{})
			Expect(entries).To(HaveLen(4))
			for i := 1; i < len(entries); i++ {
				Expect(entries[i-1].Timestamp).To(BeNumerically(">=", entries[i].Timestamp))
			}
		})

		It("filters by operation ID", func() {
			entries := log.Query(audit.QueryFilter{OperationID: idA})
			Expect(entries).To(HaveLen(2))
		})

		It("filters by operation type and status", func() {
			entries := log.Query(audit.QueryFilter{Operation: audit.OpIndex, Status: audit.StatusFailed})
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].OperationID).To(Equal(idB))
		})

		It("filters by time range", func() {
			all := log.Query(audit.QueryFilter{})
			newest := all[0].Timestamp
			entries := log.Query(audit.QueryFilter{Since: newest})
			Expect(entries).To(HaveLen(1))
		})

		It("truncates to limit", func() {
			entries := log.Query(audit.QueryFilter{Limit: 3})
			Expect(entries).To(HaveLen(3))
		})
	})

	Describe("VerifyIntegrity", func() {
		It("reports valid for an untampered log", func() {
			id := log.NewOperationID()
			Expect(log.Start(ctx, id, audit.OpIndex, map[string]any{"k": 1})).To(Succeed())
			Expect(log.Complete(ctx, id, audit.OpIndex, nil, &audit.RollbackMetadata{
				PreviousState: map[string]any{"vector": []any{0.1, 0.2}},
			})).To(Succeed())

			report, err := log.VerifyIntegrity()
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Valid).To(BeTrue())
			Expect(report.TamperedEntries).To(BeEmpty())
		})

		It("survives a persistence round trip", func() {
			id := log.NewOperationID()
			Expect(log.Complete(ctx, id, audit.OpIndex, map[string]any{"count": 3}, &audit.RollbackMetadata{
				PreviousState:   map[string]any{"id": "n", "vector": []any{0.5}},
				AffectedIndices: []string{"n"},
			})).To(Succeed())

			reloaded := newLogger(0)
			report, err := reloaded.VerifyIntegrity()
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Valid).To(BeTrue())
		})

		It("detects a tampered details field after reload", func() {
			id := log.NewOperationID()
			Expect(log.Start(ctx, id, audit.OpIndex, map[string]any{"note": "a.md"})).To(Succeed())

			// Tamper with the persisted document directly.
			raw, err := store.Read(ctx, audit.DefaultLogPath)
			Expect(err).NotTo(HaveOccurred())
			var doc map[string]any
			Expect(json.Unmarshal(raw, &doc)).To(Succeed())

			groups := doc["entries"].([]any)
			pair := groups[0].([]any)
			entries := pair[1].([]any)
			entry := entries[0].(map[string]any)
			entry["details"].(map[string]any)["note"] = "b.md"

			tampered, err := json.Marshal(doc)
			Expect(err).NotTo(HaveOccurred())
			store.Corrupt(audit.DefaultLogPath, tampered)

			reloaded := newLogger(0)
			report, err := reloaded.VerifyIntegrity()
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Valid).To(BeFalse())
			Expect(report.TamperedEntries).To(HaveLen(1))

			history := reloaded.OperationHistory(id)
			Expect(history).To(HaveLen(1))
			Expect(report.TamperedEntries[0]).To(Equal(history[0].Key()))
		})
	})

	Describe("Stats", func() {
		It("counts operations by outcome", func() {
			ok := log.NewOperationID()
			Expect(log.Start(ctx, ok, audit.OpIndex, nil)).To(Succeed())
			Expect(log.Complete(ctx, ok, audit.OpIndex, nil, nil)).To(Succeed())

			failed := log.NewOperationID()
			Expect(log.Start(ctx, failed, audit.OpIngest, nil)).To(Succeed())
			Expect(log.Fail(ctx, failed, audit.OpIngest, nil, "boom")).To(Succeed())

			rolled := log.NewOperationID()
			Expect(log.Complete(ctx, rolled, audit.OpIndex, nil, nil)).To(Succeed())
			Expect(log.RecordRollback(ctx, rolled, nil)).To(Succeed())

			stats := log.Stats()
			Expect(stats.TotalOperations).To(Equal(3))
			Expect(stats.CompletedOperations).To(Equal(2))
			Expect(stats.FailedOperations).To(Equal(1))
			Expect(stats.RolledBackOperations).To(Equal(1))
		})
	})

	Describe("Clear", func() {
		It("removes all entries in memory and on disk", func() {
			id := log.NewOperationID()
			Expect(log.Start(ctx, id, audit.OpIndex, nil)).To(Succeed())
			Expect(log.Clear(ctx)).To(Succeed())

			Expect(log.Query(audit.QueryFilter{})).To(BeEmpty())

			reloaded := newLogger(0)
			Expect(reloaded.Query(audit.QueryFilter{})).To(BeEmpty())
		})
	})

	Describe("retention", func() {
		It("prunes the oldest operation groups past the configured bound", func() {
			bounded := newLogger(2)

			first := bounded.NewOperationID()
			Expect(bounded.Start(ctx, first, audit.OpIndex, nil)).To(Succeed())
			second := bounded.NewOperationID()
			Expect(bounded.Start(ctx, second, audit.OpIndex, nil)).To(Succeed())
			third := bounded.NewOperationID()
			Expect(bounded.Start(ctx, third, audit.OpIndex, nil)).To(Succeed())

			Expect(bounded.OperationHistory(first)).To(BeEmpty())
			Expect(bounded.OperationHistory(second)).NotTo(BeEmpty())
			Expect(bounded.OperationHistory(third)).NotTo(BeEmpty())
			Expect(bounded.Stats().TotalOperations).To(Equal(2))
		})

		It("prunes on demand via Prune", func() {
			for range 5 {
				Expect(log.Start(ctx, log.NewOperationID(), audit.OpQuery, nil)).To(Succeed())
			}

			dropped, err := log.Prune(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(dropped).To(Equal(3))
			Expect(log.Stats().TotalOperations).To(Equal(2))
		})
	})
})
