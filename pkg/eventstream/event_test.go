package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals OperationEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.OperationEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeOperationCompleted,
			EventID:       "evt_123",
			EmittedAt:     now,
			OperationID:   "op_456",
			Operation:     "index",
			NoteID:        "notes/alpha.md",
			Details:       map[string]any{"dimensions": 768},
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("operation_id"))
		Expect(got).To(HaveKey("operation"))
		Expect(got).To(HaveKey("note_id"))
	})

	It("omits empty optional fields", func() {
		payload, err := json.Marshal(eventstream.OperationEvent{})
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).NotTo(HaveKey("note_id"))
		Expect(got).NotTo(HaveKey("details"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeOperationCompleted).To(Equal("obsagent.operation.completed"))
		Expect(eventstream.EventTypeOperationRolledBack).To(Equal("obsagent.operation.rolled_back"))
	})

	It("provides ErrNilOperationEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilOperationEvent).To(MatchError("nil operation event"))
	})
})
