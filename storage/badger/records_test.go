package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.RecordStore {
	t.Helper()
	store, runs, backend, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		runs.(*RunRepository).Close()
		backend.Close()
	})
	return store
}

func testRecord(id string, created time.Time, fields map[string]any) *core.Record {
	return &core.Record{ID: id, Fields: fields, CreatedAt: created, UpdatedAt: created}
}

func TestRecordStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &core.Record{ID: "acme", Fields: map[string]any{"name": "Acme CRM", "category": "Software"}}
	require.NoError(t, store.Put(ctx, record))
	assert.False(t, record.CreatedAt.IsZero())
	assert.False(t, record.UpdatedAt.IsZero())

	got, err := store.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme CRM", got.String(core.FieldName))
	assert.Equal(t, record.CreatedAt.UnixMicro(), got.CreatedAt.UnixMicro())

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordStore_PutRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	err := store.Put(context.Background(), &core.Record{})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestRecordStore_PutPreservesEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, testRecord("a", created, map[string]any{"name": "A", "category": "Old"})))
	require.NoError(t, store.UpdateEmbedding(ctx, "a", &storage.EmbeddingUpdate{
		Embedding:     []float32{1, 0},
		Metadata:      core.EmbeddingMetadata{Model: "m", ContentHash: "h"},
		SearchContent: "a",
	}))

	// re-import without embedding and a new category
	require.NoError(t, store.Put(ctx, &core.Record{ID: "a", Fields: map[string]any{"name": "A2", "category": "New"}}))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A2", got.String(core.FieldName))
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, []float32{1, 0}, got.Embedding)
	assert.Equal(t, "h", got.EmbeddingMetadata.ContentHash)

	old, err := store.QueryWhereIn(ctx, core.FieldCategory, []string{"old"})
	require.NoError(t, err)
	assert.Empty(t, old)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordStore_GetMany(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Put(ctx,
		testRecord("a", now, map[string]any{"name": "A"}),
		testRecord("b", now, map[string]any{"name": "B"}),
	))

	got, err := store.GetMany(ctx, "a", "missing", "b")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestRecordStore_UpdateEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testRecord("a", time.Now().UTC(), map[string]any{"name": "A"})))

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	update := &storage.EmbeddingUpdate{
		Embedding:      []float32{0.6, 0.8},
		Metadata:       core.EmbeddingMetadata{Model: "m", Version: "1", ContentHash: "abc", TokenCount: 2},
		SearchContent:  "a a a",
		ContentSources: &core.ContentSources{Name: "A"},
		UpdatedAt:      at,
	}
	require.NoError(t, store.UpdateEmbedding(ctx, "a", update))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, got.Embedding)
	assert.Equal(t, "abc", got.EmbeddingMetadata.ContentHash)
	assert.Equal(t, "a a a", got.SearchContent)
	assert.Equal(t, "A", got.ContentSources.Name)
	assert.Equal(t, at, got.LastEmbeddingUpdate)

	err = store.UpdateEmbedding(ctx, "missing", update)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordStore_Scan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// inserted out of creation order
	ids := []string{"c", "a", "e", "b", "d"}
	offsets := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}
	for _, id := range ids {
		created := base.Add(time.Duration(offsets[id]) * time.Hour)
		require.NoError(t, store.Put(ctx, testRecord(id, created, map[string]any{"name": id})))
	}

	var seen []string
	cursor := ""
	pages := 0
	for {
		page, err := store.Scan(ctx, 2, cursor)
		require.NoError(t, err)
		pages++
		for _, r := range page.Records {
			seen = append(seen, r.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
	assert.Equal(t, 3, pages)

	t.Run("exact page boundary", func(t *testing.T) {
		page, err := store.Scan(ctx, 5, "")
		require.NoError(t, err)
		assert.Len(t, page.Records, 5)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		_, err := store.Scan(ctx, 2, "not-hex")
		assert.ErrorIs(t, err, storage.ErrInvalidCursor)
	})

	t.Run("invalid page size", func(t *testing.T) {
		_, err := store.Scan(ctx, 0, "")
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestRecordStore_QueryWhereIn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Put(ctx,
		testRecord("a", now, map[string]any{"category": "Software", "industries": []any{"Healthcare", "Finance"}}),
		testRecord("b", now, map[string]any{"category": "Consulting", "industries": []any{"Retail"}}),
		testRecord("c", now, map[string]any{"category": "software", "providerType": "agency"}),
	))

	tests := []struct {
		name   string
		field  string
		values []string
		want   []string
	}{
		{"indexed case-insensitive", core.FieldCategory, []string{"SOFTWARE"}, []string{"a", "c"}},
		{"indexed any-of", core.FieldCategory, []string{"software", "consulting"}, []string{"a", "b", "c"}},
		{"indexed no match", core.FieldCategory, []string{"hardware"}, nil},
		{"unindexed list field", core.FieldIndustries, []string{"finance"}, []string{"a"}},
		{"provider type", core.FieldProviderType, []string{"Agency"}, []string{"c"}},
		{"no values", core.FieldCategory, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.QueryWhereIn(ctx, tt.field, tt.values)
			require.NoError(t, err)
			var got []string
			for _, r := range records {
				got = append(got, r.ID)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestRecordStore_CanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
