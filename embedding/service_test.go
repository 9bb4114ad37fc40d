package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/semsearch/ai"
	"github.com/poiesic/semsearch/ai/mock"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/extract"
	"github.com/poiesic/semsearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithBatchDelay(0)}, opts...)
	svc, err := NewService(embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func catalogRecord(id, name, description string) *core.Record {
	return &core.Record{
		ID: id,
		Fields: map[string]any{
			core.FieldName:        name,
			core.FieldDescription: description,
			core.FieldCategory:    "Software",
		},
	}
}

func TestNewService_RequiresEmbedder(t *testing.T) {
	_, err := NewService(nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestNewService_InvalidOption(t *testing.T) {
	_, err := NewService(mock.NewMockEmbedder(), WithBatchSize(0))
	assert.Error(t, err)
}

func TestGenerateEmbedding(t *testing.T) {
	ctx := context.Background()
	embedder := mock.NewMockEmbedder()
	embedder.Dims = 32
	svc := newTestService(t, embedder, WithVersion("v2"))

	record := catalogRecord("a", "Acme CRM", "Customer relationship management for sales teams")

	t.Run("deterministic and normalized", func(t *testing.T) {
		first, err := svc.GenerateEmbedding(ctx, record)
		require.NoError(t, err)
		second, err := svc.GenerateEmbedding(ctx, record)
		require.NoError(t, err)

		assert.Equal(t, first.Vector, second.Vector)
		assert.Equal(t, first.Metadata.ContentHash, second.Metadata.ContentHash)
		assert.Len(t, first.Vector, 32)

		var sum float64
		for _, v := range first.Vector {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	})

	t.Run("metadata", func(t *testing.T) {
		emb, err := svc.GenerateEmbedding(ctx, record)
		require.NoError(t, err)

		content := svc.Extractor().ExtractSearchableContent(record)
		assert.Equal(t, "mock-embedding", emb.Metadata.Model)
		assert.Equal(t, "v2", emb.Metadata.Version)
		assert.Equal(t, extract.GenerateContentHash(content), emb.Metadata.ContentHash)
		assert.Len(t, emb.Metadata.ContentHash, 64)
		assert.Equal(t, extract.EstimateTokens(content), emb.Metadata.TokenCount)
		assert.False(t, emb.Metadata.Timestamp.IsZero())
	})

	t.Run("records metrics", func(t *testing.T) {
		stats, ok := svc.Monitor().Stats(MetricGenerate)
		require.True(t, ok)
		assert.GreaterOrEqual(t, stats.Count, 1)
		_, ok = svc.Monitor().Stats(MetricTokens)
		assert.True(t, ok)
	})
}

func TestGenerateEmbedding_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		svc := newTestService(t, mock.NewMockEmbedder())
		_, err := svc.GenerateEmbedding(ctx, &core.Record{ID: "x", Fields: map[string]any{}})
		assert.ErrorIs(t, err, core.ErrEmptyContent)
	})

	t.Run("content too long", func(t *testing.T) {
		svc := newTestService(t, mock.NewMockEmbedder(), WithMaxTokens(5))
		_, err := svc.GenerateEmbedding(ctx, catalogRecord("x", "A long enough name", "and a description"))
		assert.ErrorIs(t, err, core.ErrContentTooLong)
	})

	t.Run("provider failure", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		cause := errors.New("provider down")
		embedder.EmbedTextFunc = func(ctx context.Context, text string) (*ai.EmbedResult, error) {
			return nil, cause
		}
		svc := newTestService(t, embedder)
		_, err := svc.GenerateEmbedding(ctx, catalogRecord("x", "Acme CRM", "Sales tooling"))
		assert.ErrorIs(t, err, core.ErrEmbeddingGenerationFailed)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) (*ai.EmbedResult, error) {
			return &ai.EmbedResult{Vector: []float32{1, 0, 0}}, nil
		}
		svc := newTestService(t, embedder)
		_, err := svc.GenerateEmbedding(ctx, catalogRecord("x", "Acme CRM", "Sales tooling"))
		assert.ErrorIs(t, err, core.ErrInvalidEmbedding)
	})

	t.Run("non-finite values", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.Dims = 2
		embedder.EmbedTextFunc = func(ctx context.Context, text string) (*ai.EmbedResult, error) {
			return &ai.EmbedResult{Vector: []float32{float32(math.NaN()), 1}}, nil
		}
		svc := newTestService(t, embedder)
		_, err := svc.GenerateEmbedding(ctx, catalogRecord("x", "Acme CRM", "Sales tooling"))
		assert.ErrorIs(t, err, core.ErrInvalidEmbedding)
	})
}

func TestGenerateBatchEmbeddings(t *testing.T) {
	ctx := context.Background()
	embedder := mock.NewMockEmbedder()
	embedder.Dims = 8
	embedder.EmbedTextFunc = func(ctx context.Context, text string) (*ai.EmbedResult, error) {
		if strings.Contains(text, "broken") {
			return nil, errors.New("provider rejected input")
		}
		return &ai.EmbedResult{Vector: mock.GenerateDeterministicVector(text, 8)}, nil
	}
	svc := newTestService(t, embedder, WithBatchSize(2), WithPoolSize(2))

	records := []*core.Record{
		catalogRecord("a", "Acme CRM", "Sales pipeline tracking"),
		catalogRecord("b", "Broken Tool", "This one is broken on purpose"),
		catalogRecord("c", "Ledger Pro", "Accounting for small firms"),
		{ID: "d", Fields: map[string]any{}},
		catalogRecord("e", "Helpdesk", "Ticketing and customer support"),
	}

	result, err := svc.GenerateBatchEmbeddings(ctx, records)
	require.NoError(t, err)

	assert.Len(t, result.Embeddings, 3)
	assert.Contains(t, result.Embeddings, "a")
	assert.Contains(t, result.Embeddings, "c")
	assert.Contains(t, result.Embeddings, "e")
	require.Len(t, result.Failures, 2)

	failed := map[string]error{}
	for _, f := range result.Failures {
		failed[f.RecordID] = f.Err
	}
	assert.ErrorIs(t, failed["b"], core.ErrEmbeddingGenerationFailed)
	assert.ErrorIs(t, failed["d"], core.ErrEmptyContent)
	assert.Greater(t, result.Tokens, 0)
}

func TestGenerateBatchEmbeddings_Concurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	embedder := mock.NewMockEmbedder()
	embedder.Dims = 4
	embedder.EmbedTextFunc = func(ctx context.Context, text string) (*ai.EmbedResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return &ai.EmbedResult{Vector: []float32{1, 0, 0, 0}}, nil
	}
	svc := newTestService(t, embedder, WithBatchSize(10), WithPoolSize(3))

	records := make([]*core.Record, 9)
	for i := range records {
		records[i] = catalogRecord(string(rune('a'+i)), "Service name", "A description long enough")
	}

	result, err := svc.GenerateBatchEmbeddings(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, result.Embeddings, 9)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestGenerateBatchEmbeddings_Canceled(t *testing.T) {
	svc := newTestService(t, mock.NewMockEmbedder(), WithBatchSize(1), WithBatchDelay(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	records := []*core.Record{
		catalogRecord("a", "Acme CRM", "Sales pipeline tracking"),
		catalogRecord("b", "Ledger Pro", "Accounting for small firms"),
	}
	_, err := svc.GenerateBatchEmbeddings(ctx, records)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateQueryEmbedding(t *testing.T) {
	ctx := context.Background()
	embedder := mock.NewMockEmbedder()
	embedder.Dims = 16
	svc := newTestService(t, embedder, WithCostPer1KTokens(0.5))

	t.Run("valid query", func(t *testing.T) {
		q, err := svc.GenerateQueryEmbedding(ctx, "crm for healthcare")
		require.NoError(t, err)
		assert.Len(t, q.Vector, 16)
		assert.Equal(t, extract.EstimateTokens("crm for healthcare"), q.TokenCount)
		assert.InDelta(t, float64(q.TokenCount)/1000*0.5, q.Cost, 1e-12)
		assert.Equal(t, "mock-embedding", q.Model)
	})

	t.Run("invalid queries never reach the provider", func(t *testing.T) {
		embedder.Reset()
		for _, query := range []string{"", "   ", strings.Repeat("x", core.MaxQueryLength+1)} {
			_, err := svc.GenerateQueryEmbedding(ctx, query)
			assert.ErrorIs(t, err, core.ErrInvalidQuery)
			assert.Equal(t, core.CodeInvalidQuery, core.CodeOf(err))
		}
		assert.Equal(t, 0, embedder.CallCount())
	})
}

func TestNeedsRegeneration(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, mock.NewMockEmbedder())
	record := catalogRecord("a", "Acme CRM", "Sales pipeline tracking")

	assert.True(t, svc.NeedsRegeneration(record, nil))

	emb, err := svc.GenerateEmbedding(ctx, record)
	require.NoError(t, err)
	assert.False(t, svc.NeedsRegeneration(record, emb))

	changed := catalogRecord("a", "Acme CRM", "Now with invoicing")
	assert.True(t, svc.NeedsRegeneration(changed, emb))

	otherModel := *emb
	otherModel.Metadata.Model = "another-model"
	assert.True(t, svc.NeedsRegeneration(record, &otherModel))
}

func TestEstimateCost(t *testing.T) {
	svc := newTestService(t, mock.NewMockEmbedder(), WithCostPer1KTokens(1))
	records := []*core.Record{
		catalogRecord("a", "Acme CRM", "Sales pipeline tracking"),
		{ID: "empty", Fields: map[string]any{}},
	}

	est := svc.EstimateCost(records)
	content := svc.Extractor().ExtractSearchableContent(records[0])
	assert.Equal(t, 1, est.Records)
	assert.Equal(t, extract.EstimateTokens(content), est.Tokens)
	assert.InDelta(t, float64(est.Tokens)/1000, est.Cost, 1e-12)
}

func TestJobs(t *testing.T) {
	ctx := context.Background()
	store, runs, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer func() {
		runs.(*badger.RunRepository).Close()
		backend.Close()
	}()

	require.NoError(t, store.Put(ctx,
		catalogRecord("a", "Acme CRM", "Sales pipeline tracking"),
		catalogRecord("b", "Ledger Pro", "Accounting for small firms"),
	))

	embedder := mock.NewMockEmbedder()
	embedder.Dims = 8
	svc := newTestService(t, embedder, WithStore(store), WithBatchSize(1), WithCostPer1KTokens(1))

	job, err := svc.CreateJob(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, 3, job.Total)
	assert.Greater(t, job.EstimatedCost, 0.0)

	require.Eventually(t, func() bool {
		j, err := svc.GetJob(job.ID)
		return err == nil && j.Status == JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	done, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, done.Completed)
	assert.Equal(t, 1, done.Failed)
	assert.InDelta(t, done.EstimatedCost, done.ActualCost, 1e-12)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	stored, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, stored.Embedding, 8)
	require.NotNil(t, stored.EmbeddingMetadata)
	assert.NotEmpty(t, stored.SearchContent)
	assert.Equal(t, "Acme CRM", stored.ContentSources.Name)
	assert.False(t, svc.NeedsRegeneration(stored, stored.CurrentEmbedding()))

	_, err = svc.GetJob("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)

	jobs := svc.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestCreateJob_Validation(t *testing.T) {
	svc := newTestService(t, mock.NewMockEmbedder())
	_, err := svc.CreateJob(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrStoreRequired)

	store, runs, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer func() {
		runs.(*badger.RunRepository).Close()
		backend.Close()
	}()
	withStore := newTestService(t, mock.NewMockEmbedder(), WithStore(store))
	_, err = withStore.CreateJob(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}
