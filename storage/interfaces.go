package storage

import (
	"context"
	"strings"
	"time"

	"github.com/poiesic/semsearch/core"
)

// EmbeddingUpdate carries the fields written back to a record after its
// embedding is generated.
type EmbeddingUpdate struct {
	Embedding      []float32
	Metadata       core.EmbeddingMetadata
	SearchContent  string
	ContentSources *core.ContentSources
	UpdatedAt      time.Time
}

// Page is one cursor page of a Scan.
type Page struct {
	Records []*core.Record
	// NextCursor resumes the scan after the last record of this page.
	// Empty when there are no more records.
	NextCursor string
}

// RecordStore is the document store holding catalog records.
// Implementations must be thread-safe and support concurrent access.
type RecordStore interface {
	// Put inserts or replaces records by ID.
	// CreatedAt and UpdatedAt are set if zero. Embedding fields of an existing
	// record are preserved when the incoming record carries none.
	Put(ctx context.Context, records ...*core.Record) error

	// Get retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id string) (*core.Record, error)

	// GetMany retrieves multiple records by their IDs.
	// Returns only the records that exist (no error for missing records).
	GetMany(ctx context.Context, ids ...string) ([]*core.Record, error)

	// UpdateEmbedding writes the embedding fields of one record.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateEmbedding(ctx context.Context, id string, update *EmbeddingUpdate) error

	// Scan returns up to pageSize records ordered by creation time, starting
	// after cursor. An empty cursor starts at the oldest record.
	Scan(ctx context.Context, pageSize int, cursor string) (*Page, error)

	// QueryWhereIn returns records whose field matches any of values,
	// compared case-insensitively. List fields match on any element.
	QueryWhereIn(ctx context.Context, field string, values []string) ([]*core.Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// IndexMatch is one nearest-neighbour hit from a VectorIndex.
type IndexMatch struct {
	ID         string
	Similarity float64
}

// VectorIndex is an optional nearest-neighbour index mirroring stored
// embeddings. Metadata values are exact-match filterable via where.
type VectorIndex interface {
	// Upsert adds or replaces the vector for id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error

	// Delete removes vectors by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error

	// Query returns up to k matches ordered by similarity descending.
	Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]IndexMatch, error)

	// Count returns the number of indexed vectors.
	Count() int
}

// RunRepository persists pipeline run summaries.
type RunRepository interface {
	// SaveRun appends a run summary.
	SaveRun(ctx context.Context, summary *core.RunSummary) error

	// LatestRun returns the most recently started run.
	// Returns nil, nil if no run has been saved.
	LatestRun(ctx context.Context) (*core.RunSummary, error)

	// ListRuns returns up to limit runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]*core.RunSummary, error)
}

// IndexMetadata returns the exact-match filter attributes mirrored into a
// VectorIndex for record. Values are lower-cased; absent fields are omitted.
func IndexMetadata(record *core.Record) map[string]string {
	meta := make(map[string]string, 2)
	for _, field := range []string{core.FieldCategory, core.FieldProviderType} {
		if v := record.String(field); v != "" {
			meta[field] = strings.ToLower(v)
		}
	}
	return meta
}
