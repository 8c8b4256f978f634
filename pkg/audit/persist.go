package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
)

// document is the persisted audit log:
// { "entries": [[operationID, [entry...]], ...],
//   "checksums": [["operationID-timestamp", checksum], ...] }.
// Entries keep operation insertion order; the checksum index is the at-write
// record VerifyIntegrity checks against.
type document struct {
	Entries   []entryGroup `json:"entries"`
	Checksums [][2]string  `json:"checksums"`
}

// entryGroup is one (operationID, entries) pair, serialized as a two-element
// JSON array.
type entryGroup struct {
	OperationID string
	Entries     []Entry
}

func (g entryGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{g.OperationID, g.Entries})
}

func (g *entryGroup) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("entry group must be a [id, entries] pair, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &g.OperationID); err != nil {
		return fmt.Errorf("decoding entry group id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &g.Entries); err != nil {
		return fmt.Errorf("decoding entry group entries: %w", err)
	}
	return nil
}

// marshalLocked serializes the full log document. Callers must hold l.mu.
func (l *Logger) marshalLocked() ([]byte, error) {
	doc := document{
		Entries:   make([]entryGroup, 0, len(l.order)),
		Checksums: make([][2]string, 0, len(l.checksums)),
	}

	for _, id := range l.order {
		doc.Entries = append(doc.Entries, entryGroup{
			OperationID: id,
			Entries:     l.entries[id],
		})
		for _, e := range l.entries[id] {
			doc.Checksums = append(doc.Checksums, [2]string{e.Key(), l.checksums[e.Key()]})
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding audit log: %w", err)
	}

	return data, nil
}

// Load replaces the in-memory log from the persisted document. A missing
// file loads as an empty log.
func (l *Logger) Load(ctx context.Context) error {
	data, err := l.store.Read(ctx, l.path)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding audit log: %w", err)
	}

	order := make([]string, 0, len(doc.Entries))
	entries := make(map[string][]Entry, len(doc.Entries))
	checksums := make(map[string]string, len(doc.Checksums))
	var lastTS int64

	for _, g := range doc.Entries {
		order = append(order, g.OperationID)
		entries[g.OperationID] = g.Entries
		for _, e := range g.Entries {
			if e.Timestamp > lastTS {
				lastTS = e.Timestamp
			}
		}
	}
	for _, pair := range doc.Checksums {
		checksums[pair[0]] = pair[1]
	}

	l.mu.Lock()
	l.order = order
	l.entries = entries
	l.checksums = checksums
	l.lastTS = lastTS
	l.mu.Unlock()

	return nil
}
