package semsearch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/semsearch/ai/mock"
	"github.com/poiesic/semsearch/config"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.Storage.Path = ""
	cfg.Embedding.BatchDelay = 0
	cfg.Pipeline.BatchDelay = 0
	cfg.Pipeline.RetryDelay = 0
	// deterministic mock vectors are not semantically close
	cfg.Search.DefaultThreshold = 0
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithProvider(mock.NewMockProvider())}, opts...)
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func catalogRecords() []*core.Record {
	return []*core.Record{
		{ID: "inv-1", Fields: map[string]any{
			core.FieldName:        "InvoiceBot",
			core.FieldDescription: "Automated invoice capture for accounts payable teams",
			core.FieldCategory:    "Finance",
		}},
		{ID: "sec-1", Fields: map[string]any{
			core.FieldName:        "WatchTower",
			core.FieldDescription: "Cloud security posture management and alerting",
			core.FieldCategory:    "Security",
		}},
	}
}

func TestNewEngine(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		e := newTestEngine(t, testConfig(t))
		assert.NotNil(t, e.Store())
		assert.NotNil(t, e.Runs())
		assert.NotNil(t, e.Embeddings())
		assert.NotNil(t, e.Pipeline())
		assert.NotNil(t, e.Search())
		assert.NotNil(t, e.Monitor())
		assert.NotNil(t, e.NewScheduler())
		assert.Equal(t, "mock-embedding", e.Embeddings().Model())
	})

	t.Run("on disk with vector index", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.InMemory = false
		cfg.Storage.Path = filepath.Join(t.TempDir(), "db")
		cfg.Storage.IndexPath = filepath.Join(t.TempDir(), "index")
		e := newTestEngine(t, cfg)
		assert.NotNil(t, e.index)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		cfg := testConfig(t)
		cfg.Storage.InMemory = false
		cfg.Storage.Path = tmpFile
		e, err := NewEngine(cfg, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, e)
	})
}

func TestEngine_ImportEmbedSearch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, testConfig(t))

	require.NoError(t, e.Import(ctx, catalogRecords()))

	progress, err := e.RunPipeline(ctx, pipeline.ModeAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Successful)

	latest, err := e.Runs().LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Successful)

	resp, err := e.Search().Search(ctx, &core.SearchRequest{Query: "invoice capture"})
	require.NoError(t, err)
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.RecordID)
	}
	assert.Contains(t, ids, "inv-1")
	assert.Equal(t, core.CacheStatusMiss, resp.CacheStatus)

	resp, err = e.Search().Search(ctx, &core.SearchRequest{Query: "invoice capture"})
	require.NoError(t, err)
	assert.Equal(t, core.CacheStatusHit, resp.CacheStatus)

	t.Run("pipeline run clears the cache", func(t *testing.T) {
		_, err := e.RunPipeline(ctx, pipeline.ModeSpecific, []string{"inv-1"})
		require.NoError(t, err)
		// already current, so nothing was written and the cache survives
		resp, err := e.Search().Search(ctx, &core.SearchRequest{Query: "invoice capture"})
		require.NoError(t, err)
		assert.Equal(t, core.CacheStatusHit, resp.CacheStatus)

		require.NoError(t, e.Import(ctx, catalogRecords()[:1]))
		resp, err = e.Search().Search(ctx, &core.SearchRequest{Query: "invoice capture"})
		require.NoError(t, err)
		assert.Equal(t, core.CacheStatusMiss, resp.CacheStatus)
	})

	stats, ok := e.Monitor().Stats("search.total")
	require.True(t, ok)
	assert.GreaterOrEqual(t, stats.Count, 2)
}

func TestEngine_IndexAttachedToEmbeddedCorpus(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.InMemory = false
	cfg.Storage.Path = filepath.Join(t.TempDir(), "db")

	e, err := NewEngine(cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NoError(t, e.Import(ctx, catalogRecords()))
	progress, err := e.RunPipeline(ctx, pipeline.ModeAll, nil)
	require.NoError(t, err)
	require.Equal(t, 2, progress.Successful)
	require.NoError(t, e.Close())

	cfg.Storage.IndexPath = filepath.Join(t.TempDir(), "index")
	e = newTestEngine(t, cfg)
	assert.Equal(t, 2, e.index.Count(), "opening backfills the index from stored embeddings")

	vectorOnly := false
	resp, err := e.Search().Search(ctx, &core.SearchRequest{
		Query:   "invoice capture",
		Options: &core.SearchOptions{IncludeTextSearch: &vectorOnly},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestEngine_DryRun(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, testConfig(t), WithDryRun(true))
	require.NoError(t, e.Import(ctx, catalogRecords()))

	progress, err := e.RunPipeline(ctx, pipeline.ModeAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Successful)

	rec, err := e.Store().Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Nil(t, rec.Embedding)
}

func TestEngine_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	e := newTestEngine(t, cfg)

	resp, err := e.Search().Search(context.Background(), &core.SearchRequest{Query: "anything at all"})
	require.NoError(t, err)
	assert.Equal(t, core.CacheStatusDisabled, resp.CacheStatus)
}

func TestEngine_Close(t *testing.T) {
	e, err := NewEngine(testConfig(t), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	assert.NoError(t, e.Close())
}
