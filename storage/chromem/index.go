// Package chromem mirrors record embeddings into a chromem-go collection so
// search can ask for nearest neighbours instead of scanning the store.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/philippgille/chromem-go"
	"github.com/poiesic/semsearch/storage"
)

// DefaultCollection is the collection holding record vectors.
const DefaultCollection = "records"

// errNoEmbedFunc is returned if chromem ever asks us to embed text; every
// document and query carries its own vector.
var errNoEmbedFunc = errors.New("chromem index does not embed text")

// Index implements storage.VectorIndex on a chromem-go collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// Open opens an index. An empty path keeps the index in memory; otherwise
// documents are persisted (gzip compressed) under path.
func Open(path string) (*Index, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("open vector index: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(DefaultCollection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("open vector collection: %w", err)
	}

	return &Index{
		db:         db,
		collection: collection,
		logger:     slog.Default().With("component", "chromem-index"),
	}, nil
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedFunc
}

// Upsert adds or replaces the vector for id.
func (i *Index) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	if len(vector) == 0 {
		return fmt.Errorf("upsert %s: empty vector", id)
	}
	return i.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Metadata:  metadata,
		Embedding: vector,
	})
}

// Delete removes vectors by id.
func (i *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return i.collection.Delete(ctx, nil, nil, ids...)
}

// Query returns up to k matches ordered by cosine similarity descending.
// k is clamped to the collection size.
func (i *Index) Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]storage.IndexMatch, error) {
	count := i.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := i.collection.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	matches := make([]storage.IndexMatch, len(results))
	for n, r := range results {
		matches[n] = storage.IndexMatch{ID: r.ID, Similarity: float64(r.Similarity)}
	}
	i.logger.Debug("index query", "k", k, "matches", len(matches))
	return matches, nil
}

// Count returns the number of indexed vectors.
func (i *Index) Count() int {
	return i.collection.Count()
}
