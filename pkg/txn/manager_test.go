package txn_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage/inmemory"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/txn"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector/memory"
)

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		store    *inmemory.Driver
		trail    *audit.Logger
		vectors  *memory.Driver
		mgr      *txn.Manager
		existing vector.Document
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()

		var err error
		trail, err = audit.NewLogger(audit.Config{
			Storage: store,
			Logger:  logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		vectors, err = memory.NewDriver(memory.Config{Storage: store})
		Expect(err).NotTo(HaveOccurred())

		existing = vector.Document{
			ID:       "notes/alpha.md",
			Vector:   []float32{1, 0, 0},
			Metadata: map[string]any{"tags": []any{"biology"}},
			Content:  "original content",
		}
		Expect(vectors.Add(ctx, existing)).To(Succeed())

		mgr, err = txn.NewManager(txn.Config{
			Audit:   trail,
			Vector:  vectors,
			Storage: store,
			Logger:  logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Begin", func() {
		It("opens a transaction", func() {
			tx, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.OperationID).To(Equal("op-1"))
			Expect(mgr.Open()).To(Equal(1))
		})

		It("rejects a second transaction for the same operation", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())

			_, err = mgr.Begin("op-1", audit.OpIndex)
			Expect(err).To(MatchError(txn.ErrAlreadyOpen))
		})

		It("requires an operation ID", func() {
			_, err := mgr.Begin("", audit.OpIndex)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Checkpoint", func() {
		It("refuses checkpoints outside an open transaction", func() {
			err := mgr.Checkpoint("missing", txn.CheckpointVector, "notes/alpha.md", nil)
			Expect(err).To(MatchError(txn.ErrNoTransaction))
		})

		It("accumulates checkpoints in insertion order", func() {
			tx, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, "a", nil)).To(Succeed())
			Expect(mgr.Checkpoint("op-1", txn.CheckpointFile, "b", "body")).To(Succeed())

			cps := tx.Checkpoints()
			Expect(cps).To(HaveLen(2))
			Expect(cps[0].ID).To(Equal("a"))
			Expect(cps[1].ID).To(Equal("b"))
		})
	})

	Describe("Commit", func() {
		It("writes a completed audit entry carrying rollback metadata", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())

			prev := existing
			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, prev.ID, &prev)).To(Succeed())
			Expect(mgr.Checkpoint("op-1", txn.CheckpointFile, "notes/alpha.md", "old body")).To(Succeed())

			Expect(mgr.Commit(ctx, "op-1", map[string]any{"note": prev.ID})).To(Succeed())
			Expect(mgr.Open()).To(BeZero())

			entry, ok := trail.LastEntry("op-1")
			Expect(ok).To(BeTrue())
			Expect(entry.Status).To(Equal(audit.StatusCompleted))
			Expect(entry.RollbackMetadata).NotTo(BeNil())
			Expect(entry.RollbackMetadata.AffectedFiles).To(ConsistOf("notes/alpha.md"))
			Expect(entry.RollbackMetadata.AffectedIndices).To(ConsistOf("notes/alpha.md"))
			Expect(entry.RollbackMetadata.RecoverySteps).To(HaveLen(2))
		})

		It("refuses to commit twice", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.Commit(ctx, "op-1", nil)).To(Succeed())

			Expect(mgr.Commit(ctx, "op-1", nil)).To(MatchError(txn.ErrNoTransaction))
		})

		It("keeps the transaction open when audit persistence fails", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, existing.ID, nil)).To(Succeed())

			store.FailWrites = true
			Expect(mgr.Commit(ctx, "op-1", nil)).NotTo(Succeed())
			Expect(mgr.Open()).To(Equal(1))

			store.FailWrites = false
			Expect(mgr.Commit(ctx, "op-1", nil)).To(Succeed())
		})

		It("tolerates checkpoints racing a commit on the same operation", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.Checkpoint("op-1", txn.CheckpointFile, "notes/alpha.md", "old body")).To(Succeed())

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				// Racing appends either land before the commit snapshots the
				// checkpoints or fail once the transaction is gone.
				for i := 0; i < 50; i++ {
					err := mgr.Checkpoint("op-1", txn.CheckpointVector, existing.ID, nil)
					if err != nil {
						Expect(err).To(MatchError(txn.ErrNoTransaction))
					}
				}
			}()

			Expect(mgr.Commit(ctx, "op-1", nil)).To(Succeed())
			<-done

			entry, ok := trail.LastEntry("op-1")
			Expect(ok).To(BeTrue())
			Expect(entry.RollbackMetadata).NotTo(BeNil())
			Expect(entry.RollbackMetadata.AffectedFiles).To(ConsistOf("notes/alpha.md"))
		})
	})

	Describe("Rollback of an open transaction", func() {
		It("replays checkpoints in reverse insertion order", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())

			// Two successive mutations of the same entry: the checkpoint
			// taken before each one captures the state it replaces.
			v1 := existing
			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, v1.ID, &v1)).To(Succeed())
			v2 := v1
			v2.Content = "second revision"
			Expect(vectors.Add(ctx, v2)).To(Succeed())

			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, v2.ID, &v2)).To(Succeed())
			v3 := v2
			v3.Content = "third revision"
			Expect(vectors.Add(ctx, v3)).To(Succeed())

			Expect(mgr.Rollback(ctx, "op-1")).To(Succeed())

			got, err := vectors.Get(ctx, v1.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("original content"))
		})

		It("removes entries that did not exist before the operation", func() {
			_, err := mgr.Begin("op-1", audit.OpIngest)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, "notes/new.md", nil)).To(Succeed())
			Expect(vectors.Add(ctx, vector.Document{ID: "notes/new.md", Vector: []float32{0, 1, 0}})).To(Succeed())

			Expect(mgr.Checkpoint("op-1", txn.CheckpointFile, "notes/new.md", nil)).To(Succeed())
			Expect(store.Write(ctx, "notes/new.md", []byte("fresh"))).To(Succeed())

			Expect(mgr.Rollback(ctx, "op-1")).To(Succeed())

			_, err = vectors.Get(ctx, "notes/new.md")
			Expect(err).To(MatchError(vector.ErrNotFound))

			exists, err := store.Exists(ctx, "notes/new.md")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("restores prior file contents", func() {
			Expect(store.Write(ctx, "notes/alpha.md", []byte("old body"))).To(Succeed())

			_, err := mgr.Begin("op-1", audit.OpIngest)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.Checkpoint("op-1", txn.CheckpointFile, "notes/alpha.md", "old body")).To(Succeed())
			Expect(store.Write(ctx, "notes/alpha.md", []byte("new body"))).To(Succeed())

			Expect(mgr.Rollback(ctx, "op-1")).To(Succeed())

			data, err := store.Read(ctx, "notes/alpha.md")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("old body"))
		})

		It("records a rollback audit entry", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.Rollback(ctx, "op-1")).To(Succeed())

			entry, ok := trail.LastEntry("op-1")
			Expect(ok).To(BeTrue())
			Expect(entry.Status).To(Equal(audit.StatusRolledBack))
			Expect(entry.Details["source"]).To(Equal("open_transaction"))
		})
	})

	Describe("Rollback of a committed operation", func() {
		commit := func(opID string) {
			_, err := mgr.Begin(opID, audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())

			prev := existing
			Expect(mgr.Checkpoint(opID, txn.CheckpointVector, prev.ID, &prev)).To(Succeed())

			next := prev
			next.Content = "replaced content"
			Expect(vectors.Add(ctx, next)).To(Succeed())
			Expect(vectors.Save(ctx)).To(Succeed())

			Expect(mgr.Commit(ctx, opID, nil)).To(Succeed())
		}

		It("replays the rollback metadata from the audit trail", func() {
			commit("op-1")

			Expect(mgr.Rollback(ctx, "op-1")).To(Succeed())

			got, err := vectors.Get(ctx, existing.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("original content"))

			entry, ok := trail.LastEntry("op-1")
			Expect(ok).To(BeTrue())
			Expect(entry.Status).To(Equal(audit.StatusRolledBack))
			Expect(entry.Details["source"]).To(Equal("audit_trail"))
		})

		It("survives a reload of the audit trail", func() {
			commit("op-1")

			// Fresh process: new audit logger and manager over the same
			// persisted files.
			reloaded, err := audit.NewLogger(audit.Config{
				Storage: store,
				Logger:  logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Load(ctx)).To(Succeed())

			mgr2, err := txn.NewManager(txn.Config{
				Audit:   reloaded,
				Vector:  vectors,
				Storage: store,
				Logger:  logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr2.Rollback(ctx, "op-1")).To(Succeed())

			got, err := vectors.Get(ctx, existing.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("original content"))
		})

		It("fails for unknown operations", func() {
			Expect(mgr.Rollback(ctx, "missing")).To(MatchError(txn.ErrNotFound))
		})

		It("refuses to roll back a failed operation", func() {
			Expect(trail.Fail(ctx, "op-bad", audit.OpIndex, nil, "boom")).To(Succeed())
			Expect(mgr.Rollback(ctx, "op-bad")).To(MatchError(txn.ErrNotRollbackable))
		})

		It("refuses operations without rollback metadata", func() {
			Expect(trail.Complete(ctx, "op-empty", audit.OpQuery, nil, nil)).To(Succeed())
			Expect(mgr.Rollback(ctx, "op-empty")).To(MatchError(txn.ErrNoRollbackMetadata))
		})
	})

	Describe("Cleanup", func() {
		It("rolls back every open transaction", func() {
			for _, id := range []string{"op-1", "op-2", "op-3"} {
				_, err := mgr.Begin(id, audit.OpIngest)
				Expect(err).NotTo(HaveOccurred())
			}

			n, err := mgr.Cleanup(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
			Expect(mgr.Open()).To(BeZero())
		})

		It("returns zero when nothing is open", func() {
			n, err := mgr.Cleanup(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("CreatePlaybook", func() {
		It("lists steps in undo order for an open transaction", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())

			prev := existing
			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, prev.ID, &prev)).To(Succeed())
			Expect(mgr.Checkpoint("op-1", txn.CheckpointFile, "notes/new.md", nil)).To(Succeed())

			pb, err := mgr.CreatePlaybook("op-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(pb.OperationID).To(Equal("op-1"))
			Expect(pb.Steps).To(HaveLen(2))

			Expect(pb.Steps[0].Sequence).To(Equal(1))
			Expect(pb.Steps[0].Type).To(Equal(txn.CheckpointFile))
			Expect(pb.Steps[0].TargetID).To(Equal("notes/new.md"))
			Expect(pb.Steps[0].Description).To(ContainSubstring("delete file"))

			Expect(pb.Steps[1].Sequence).To(Equal(2))
			Expect(pb.Steps[1].Type).To(Equal(txn.CheckpointVector))
			Expect(pb.Steps[1].Description).To(ContainSubstring("restore vector entry"))
		})

		It("derives a playbook for a committed operation", func() {
			_, err := mgr.Begin("op-1", audit.OpIndex)
			Expect(err).NotTo(HaveOccurred())
			prev := existing
			Expect(mgr.Checkpoint("op-1", txn.CheckpointVector, prev.ID, &prev)).To(Succeed())
			Expect(mgr.Commit(ctx, "op-1", nil)).To(Succeed())

			pb, err := mgr.CreatePlaybook("op-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(pb.Steps).To(HaveLen(1))
			Expect(pb.Steps[0].TargetID).To(Equal(existing.ID))
			Expect(pb.Steps[0].Verify).To(ContainSubstring("vector store entry"))
		})

		It("fails for unknown operations", func() {
			_, err := mgr.CreatePlaybook("missing")
			Expect(err).To(MatchError(txn.ErrNotFound))
		})
	})
})
