// Package vector provides interfaces and implementations for vector storage
// and similarity search over embedded notes.
package vector

import "context"

// Document represents a stored note with its embedding and metadata.
// Documents are replaced wholesale on update; there is no partial mutation.
type Document struct {
	// ID is a unique, stable identifier for the source note.
	ID string `json:"id"`

	// Vector is the embedding of the note content. Dimensionality is fixed
	// per embedding model.
	Vector []float32 `json:"vector"`

	// Metadata holds arbitrary note attributes (path, tags, mtime, ...).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Content is a preview snippet of the note used to build query context.
	Content string `json:"content,omitempty"`
}

// SearchResult represents a search hit with its similarity score.
type SearchResult struct {
	Document

	// Score is the cosine similarity against the query vector, in [-1, 1].
	Score float32 `json:"score"`
}

// Driver handles storage and retrieval of embedded documents.
type Driver interface {
	// Add stores a document, replacing any existing document with the same
	// ID. Add is an idempotent upsert.
	Add(ctx context.Context, doc Document) error

	// Remove deletes a document by ID. Removing an absent ID is a no-op.
	Remove(ctx context.Context, id string) error

	// Get retrieves a document by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Document, error)

	// Search returns up to limit documents ranked by descending cosine
	// similarity to queryVector, excluding scores below minScore.
	Search(ctx context.Context, queryVector []float32, limit int, minScore float32) ([]SearchResult, error)

	// Save persists the current contents to the backing store.
	// Durable backends may treat this as a no-op.
	Save(ctx context.Context) error

	// Load replaces the current contents from the backing store.
	// A missing snapshot loads as an empty store, not an error.
	Load(ctx context.Context) error

	// Size returns the number of stored documents.
	Size(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
