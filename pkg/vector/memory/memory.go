// Package memory implements vector.Driver with an in-process map and
// brute-force cosine similarity.
//
// Persistence is a single JSON snapshot document written through the storage
// driver on Save and read back on Load. Load is a full replace, not a merge.
// This is the reference backend for local vaults; sqlitevec covers larger
// stores.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
)

const (
	// SnapshotVersion is the current snapshot document version.
	SnapshotVersion = 1

	// DefaultSnapshotPath is the default snapshot file name inside the
	// storage sandbox.
	DefaultSnapshotPath = "vector-store.json"

	// contentKey is the metadata key used to carry the content preview
	// inside the snapshot's metadata map. The on-disk format only has
	// "vectors" and "metadata" sections.
	contentKey = "content"
)

// Config holds configuration for the in-memory vector driver.
type Config struct {
	// Storage is the file-system adapter used for Save/Load. Required.
	Storage storage.Driver

	// SnapshotPath is the snapshot file path relative to the storage root.
	// Defaults to DefaultSnapshotPath if empty.
	SnapshotPath string
}

// Driver implements vector.Driver using an in-memory map keyed by document ID.
type Driver struct {
	store storage.Driver
	path  string

	mu   sync.RWMutex
	docs map[string]vector.Document
}

// snapshot is the persisted JSON document:
// { "version": 1, "vectors": { id: [..] }, "metadata": { id: {..} } }.
type snapshot struct {
	Version  int                       `json:"version"`
	Vectors  map[string][]float32      `json:"vectors"`
	Metadata map[string]map[string]any `json:"metadata"`
}

// NewDriver creates an in-memory vector driver persisted through cfg.Storage.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage driver is required")
	}

	path := cfg.SnapshotPath
	if path == "" {
		path = DefaultSnapshotPath
	}

	return &Driver{
		store: cfg.Storage,
		path:  path,
		docs:  make(map[string]vector.Document),
	}, nil
}

// Add stores a document, replacing any existing document with the same ID.
func (d *Driver) Add(_ context.Context, doc vector.Document) error {
	if doc.ID == "" {
		return errors.New("document ID is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.docs[doc.ID] = cloneDocument(doc)
	return nil
}

// Remove deletes a document by ID. Removing an absent ID is a no-op.
func (d *Driver) Remove(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.docs, id)
	return nil
}

// Get retrieves a document by ID.
func (d *Driver) Get(_ context.Context, id string) (*vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.docs[id]
	if !ok {
		return nil, vector.ErrNotFound
	}

	out := cloneDocument(doc)
	return &out, nil
}

// Search computes cosine similarity against every stored vector, filters by
// minScore, sorts descending by score and truncates to limit.
func (d *Driver) Search(_ context.Context, queryVector []float32, limit int, minScore float32) ([]vector.SearchResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]vector.SearchResult, 0, len(d.docs))
	for _, doc := range d.docs {
		score := CosineSimilarity(queryVector, doc.Vector)
		if score < minScore {
			continue
		}
		results = append(results, vector.SearchResult{
			Document: cloneDocument(doc),
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Save serializes the full map to the snapshot document.
func (d *Driver) Save(ctx context.Context) error {
	d.mu.RLock()
	snap := snapshot{
		Version:  SnapshotVersion,
		Vectors:  make(map[string][]float32, len(d.docs)),
		Metadata: make(map[string]map[string]any, len(d.docs)),
	}

	for id, doc := range d.docs {
		snap.Vectors[id] = doc.Vector

		meta := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		if doc.Content != "" {
			meta[contentKey] = doc.Content
		}
		snap.Metadata[id] = meta
	}
	d.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding vector snapshot: %w", err)
	}

	return d.store.Write(ctx, d.path, data)
}

// Load replaces the current contents from the snapshot document.
// A missing snapshot loads as an empty store.
func (d *Driver) Load(ctx context.Context) error {
	data, err := d.store.Read(ctx, d.path)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			d.mu.Lock()
			d.docs = make(map[string]vector.Document)
			d.mu.Unlock()
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding vector snapshot: %w", err)
	}

	docs := make(map[string]vector.Document, len(snap.Vectors))
	for id, vec := range snap.Vectors {
		doc := vector.Document{ID: id, Vector: vec}

		if meta, ok := snap.Metadata[id]; ok {
			doc.Metadata = make(map[string]any, len(meta))
			for k, v := range meta {
				if k == contentKey {
					if s, ok := v.(string); ok {
						doc.Content = s
						continue
					}
				}
				doc.Metadata[k] = v
			}
			if len(doc.Metadata) == 0 {
				doc.Metadata = nil
			}
		}

		docs[id] = doc
	}

	d.mu.Lock()
	d.docs = docs
	d.mu.Unlock()

	return nil
}

// Size returns the number of stored documents.
func (d *Driver) Size(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.docs), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// A zero-norm vector (or mismatched lengths) scores 0, guarding the
// divide-by-zero case.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func cloneDocument(doc vector.Document) vector.Document {
	out := vector.Document{
		ID:      doc.ID,
		Content: doc.Content,
	}

	if doc.Vector != nil {
		out.Vector = make([]float32, len(doc.Vector))
		copy(out.Vector, doc.Vector)
	}

	if doc.Metadata != nil {
		out.Metadata = make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}

	return out
}

var _ vector.Driver = (*Driver)(nil)
