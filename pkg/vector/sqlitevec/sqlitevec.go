// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
//
// Unlike the memory driver, this backend is durable on every Add/Remove, so
// Save and Load are no-ops. It suits vaults too large for a JSON snapshot.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
)

// Driver implements vector.Driver using SQLite with the sqlite-vec extension.
type Driver struct {
	db     *sql.DB
	dims   uint
	logger *slog.Logger
}

// Config holds configuration for the sqlite-vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Required; vec0 virtual tables have a fixed column width.
	Dimensions uint
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connections to have the sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// Document table. vec0 virtual tables use integer rowids, so the string
	// document IDs need a mapping table, which also carries the metadata and
	// content preview.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			metadata TEXT NOT NULL DEFAULT '{}',
			content TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	// vec0 virtual table with cosine distance so query scores convert
	// directly to cosine similarity (score = 1 - distance).
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:     db,
		dims:   c.Dimensions,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Add stores a document, replacing any existing document with the same ID.
func (d *Driver) Add(ctx context.Context, doc vector.Document) error {
	if doc.ID == "" {
		return errors.New("document ID is required")
	}

	if uint(len(doc.Vector)) != d.dims {
		return fmt.Errorf("%w: got %d, store configured for %d",
			vector.ErrDimensionMismatch, len(doc.Vector), d.dims)
	}

	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
	}

	embBlob := serializeFloat32(doc.Vector)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingRowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM vec_documents WHERE doc_id = ?`, doc.ID,
	).Scan(&existingRowID)

	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			`UPDATE vec_documents SET metadata = ?, content = ? WHERE rowid = ?`,
			string(metaJSON), doc.Content, existingRowID,
		); err != nil {
			return fmt.Errorf("updating document %s: %w", doc.ID, err)
		}

		// Update embedding in vec0 table via DELETE + INSERT
		// (vec0 does not support UPDATE)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			existingRowID, embBlob,
		); err != nil {
			return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
		}

	case errors.Is(err, sql.ErrNoRows):
		result, err := tx.ExecContext(ctx,
			`INSERT INTO vec_documents(doc_id, metadata, content) VALUES (?, ?, ?)`,
			doc.ID, string(metaJSON), doc.Content,
		)
		if err != nil {
			return fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, embBlob,
		); err != nil {
			return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
		}

	default:
		return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added document to sqlite-vec", "doc_id", doc.ID)

	return nil
}

// Remove deletes a document by ID. Removing an absent ID is a no-op.
func (d *Driver) Remove(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM vec_documents WHERE doc_id = ?`, id,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying rowid for deletion: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vec_documents WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted document from sqlite-vec", "doc_id", id)

	return nil
}

// Get retrieves a document by ID.
func (d *Driver) Get(ctx context.Context, id string) (*vector.Document, error) {
	var (
		rowID    int64
		metaJSON string
		content  string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT rowid, metadata, content FROM vec_documents WHERE doc_id = ?`, id,
	).Scan(&rowID, &metaJSON, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vector.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}

	doc := &vector.Document{
		ID:      id,
		Content: content,
	}

	if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", id, err)
		}
	}

	var embBlob []byte
	err = d.db.QueryRowContext(ctx,
		`SELECT embedding FROM vec_embeddings WHERE rowid = ?`, rowID,
	).Scan(&embBlob)
	if err == nil && len(embBlob) > 0 {
		doc.Vector, err = deserializeFloat32(embBlob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for doc %s: %w", id, err)
		}
	}

	return doc, nil
}

// Search returns the most similar documents via a vec0 KNN query.
// Cosine distance converts to similarity as score = 1 - distance.
func (d *Driver) Search(ctx context.Context, queryVector []float32, limit int, minScore float32) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	queryBlob := serializeFloat32(queryVector)

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			doc.doc_id,
			doc.metadata,
			doc.content,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_documents doc ON doc.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, queryBlob, limit)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var (
			docID    string
			metaJSON string
			content  string
			distance float64
		)
		if err := rows.Scan(&docID, &metaJSON, &content, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		score := float32(1.0 - distance)
		if score < minScore {
			continue
		}

		result := vector.SearchResult{
			Document: vector.Document{
				ID:      docID,
				Content: content,
			},
			Score: score,
		}

		if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &result.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for doc %s: %w", docID, err)
			}
		}

		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(results))

	return results, nil
}

// Save is a no-op: sqlite writes are durable on commit.
func (d *Driver) Save(_ context.Context) error {
	return nil
}

// Load is a no-op: the database is the live store.
func (d *Driver) Load(_ context.Context) error {
	return nil
}

// Size returns the number of stored documents.
func (d *Driver) Size(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vec_documents`,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
