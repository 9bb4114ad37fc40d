package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/semsearch/ai"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/extract"
	"github.com/poiesic/semsearch/metrics"
	"github.com/poiesic/semsearch/similarity"
	"github.com/poiesic/semsearch/storage"
)

const (
	// DefaultBatchSize is the number of records embedded per batch.
	DefaultBatchSize = 100

	// DefaultBatchDelay is the pause between batches.
	DefaultBatchDelay = 100 * time.Millisecond

	// DefaultVersion tags embeddings produced by this service.
	DefaultVersion = "1"

	// DefaultMaxTokens bounds the content sent to the provider.
	DefaultMaxTokens = 8191
)

// Metric names recorded on the monitor.
const (
	MetricGenerate = "embedding.generate"
	MetricTokens   = "embedding.tokens"
	MetricQuery    = "embedding.query"
)

// QueryEmbedding is a search query vector with its accounting.
type QueryEmbedding struct {
	Vector     []float32
	TokenCount int
	Cost       float64
	Model      string
	Duration   time.Duration
}

// CostEstimate is the projected provider usage for a set of records.
type CostEstimate struct {
	Records int     `json:"records"`
	Tokens  int     `json:"tokens"`
	Cost    float64 `json:"cost"`
}

// Service turns records and queries into embeddings.
type Service struct {
	embedder   ai.Embedder
	extractor  *extract.Extractor
	monitor    *metrics.Monitor
	store      storage.RecordStore
	index      storage.VectorIndex
	pool       *ants.Pool
	batchSize  int
	batchDelay time.Duration
	maxTokens  int
	costPer1K  float64
	version    string
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	jobsMu sync.RWMutex
	jobs   map[string]*job
	jobsWG sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service) error

// WithExtractor sets the content extractor.
func WithExtractor(extractor *extract.Extractor) Option {
	return func(s *Service) error {
		if extractor != nil {
			s.extractor = extractor
		}
		return nil
	}
}

// WithMonitor sets the performance monitor.
func WithMonitor(monitor *metrics.Monitor) Option {
	return func(s *Service) error {
		if monitor != nil {
			s.monitor = monitor
		}
		return nil
	}
}

// WithStore sets the record store used by generation jobs.
func WithStore(store storage.RecordStore) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithVectorIndex mirrors embeddings persisted by jobs into index.
func WithVectorIndex(index storage.VectorIndex) Option {
	return func(s *Service) error {
		s.index = index
		return nil
	}
}

// WithBatchSize sets the number of records per batch.
func WithBatchSize(size int) Option {
	return func(s *Service) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		s.batchSize = size
		return nil
	}
}

// WithBatchDelay sets the pause between batches.
func WithBatchDelay(delay time.Duration) Option {
	return func(s *Service) error {
		if delay < 0 {
			delay = 0
		}
		s.batchDelay = delay
		return nil
	}
}

// DefaultPoolSize is half the CPUs, with a minimum of 1.
func DefaultPoolSize() int {
	return max(runtime.NumCPU()/2, 1)
}

// WithPoolSize sets the number of concurrent provider calls within a batch.
// Default is DefaultPoolSize().
func WithPoolSize(size int) Option {
	return func(s *Service) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithMaxTokens sets the largest content, in estimated tokens, that is embedded.
func WithMaxTokens(maxTokens int) Option {
	return func(s *Service) error {
		if maxTokens > 0 {
			s.maxTokens = maxTokens
		}
		return nil
	}
}

// WithCostPer1KTokens sets the provider price used for cost accounting.
func WithCostPer1KTokens(cost float64) Option {
	return func(s *Service) error {
		s.costPer1K = cost
		return nil
	}
}

// WithVersion sets the version recorded in embedding metadata.
func WithVersion(version string) Option {
	return func(s *Service) error {
		s.version = version
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates an embedding service around embedder.
func NewService(embedder ai.Embedder, opts ...Option) (*Service, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(DefaultPoolSize())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		embedder:   embedder,
		extractor:  extract.NewExtractor(nil),
		monitor:    metrics.NewMonitor(metrics.DefaultMaxSamples),
		pool:       pool,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
		maxTokens:  DefaultMaxTokens,
		version:    DefaultVersion,
		logger:     slog.Default().With("component", "embedding"),
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*job),
	}

	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Close()
			return nil, optErr
		}
	}
	return s, nil
}

// Close cancels running jobs, waits for them to stop and releases the pool.
func (s *Service) Close() error {
	s.cancel()
	s.jobsWG.Wait()
	s.pool.Release()
	return nil
}

// Model returns the embedding model identifier.
func (s *Service) Model() string {
	return s.embedder.Model()
}

// Extractor returns the content extractor used for records.
func (s *Service) Extractor() *extract.Extractor {
	return s.extractor
}

// Monitor returns the performance monitor.
func (s *Service) Monitor() *metrics.Monitor {
	return s.monitor
}

// GenerateEmbedding embeds the searchable content of record.
func (s *Service) GenerateEmbedding(ctx context.Context, record *core.Record) (*core.Embedding, error) {
	defer s.monitor.Time(MetricGenerate)()

	content := s.extractor.ExtractSearchableContent(record)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: record %s", core.ErrEmptyContent, recordID(record))
	}
	tokens := extract.EstimateTokens(content)
	if tokens > s.maxTokens {
		return nil, fmt.Errorf("%w: %d tokens, limit %d", core.ErrContentTooLong, tokens, s.maxTokens)
	}

	result, err := s.embedder.EmbedText(ctx, content)
	if err != nil {
		return nil, core.EmbeddingGenerationFailed(err)
	}
	if err := core.ValidateVector(result.Vector, s.embedder.Dimensions()); err != nil {
		return nil, err
	}
	if result.TokenCount > 0 {
		tokens = result.TokenCount
	}
	s.monitor.Record(MetricTokens, float64(tokens))

	return &core.Embedding{
		Vector: similarity.Normalize(result.Vector),
		Metadata: core.EmbeddingMetadata{
			Model:       s.embedder.Model(),
			Timestamp:   time.Now().UTC(),
			Version:     s.version,
			ContentHash: extract.GenerateContentHash(content),
			TokenCount:  tokens,
		},
	}, nil
}

// GenerateQueryEmbedding validates and embeds a search query.
// Invalid queries fail with an INVALID_QUERY error before the provider is called.
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) (*QueryEmbedding, error) {
	if v := core.ValidateSearchQuery(query); !v.Valid {
		return nil, core.InvalidQuery(v.Error)
	}

	start := time.Now()
	result, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, core.EmbeddingGenerationFailed(err)
	}
	if err := core.ValidateVector(result.Vector, s.embedder.Dimensions()); err != nil {
		return nil, err
	}
	duration := time.Since(start)
	s.monitor.RecordDuration(MetricQuery, duration)

	tokens := result.TokenCount
	if tokens <= 0 {
		tokens = extract.EstimateTokens(query)
	}

	return &QueryEmbedding{
		Vector:     similarity.Normalize(result.Vector),
		TokenCount: tokens,
		Cost:       float64(tokens) / 1000 * s.costPer1K,
		Model:      s.embedder.Model(),
		Duration:   duration,
	}, nil
}

// NeedsRegeneration reports whether record's embedding is missing or stale.
// An embedding is stale when the content hash differs or it came from
// another model.
func (s *Service) NeedsRegeneration(record *core.Record, existing *core.Embedding) bool {
	if existing == nil || len(existing.Vector) == 0 {
		return true
	}
	if existing.Metadata.Model != "" && existing.Metadata.Model != s.embedder.Model() {
		return true
	}
	content := s.extractor.ExtractSearchableContent(record)
	return extract.GenerateContentHash(content) != existing.Metadata.ContentHash
}

// EstimateCost projects the tokens and price of embedding records.
// Records without searchable content are not counted.
func (s *Service) EstimateCost(records []*core.Record) CostEstimate {
	var est CostEstimate
	for _, record := range records {
		content := s.extractor.ExtractSearchableContent(record)
		if content == "" {
			continue
		}
		est.Records++
		est.Tokens += extract.EstimateTokens(content)
	}
	est.Cost = s.Cost(est.Tokens)
	return est
}

// Cost converts a token count to provider cost.
func (s *Service) Cost(tokens int) float64 {
	return float64(tokens) / 1000 * s.costPer1K
}

// BuildUpdate assembles the store update persisting emb for record.
func (s *Service) BuildUpdate(record *core.Record, emb *core.Embedding) *storage.EmbeddingUpdate {
	return &storage.EmbeddingUpdate{
		Embedding:      emb.Vector,
		Metadata:       emb.Metadata,
		SearchContent:  s.extractor.ExtractSearchableContent(record),
		ContentSources: s.extractor.ExtractContentSources(record),
		UpdatedAt:      emb.Metadata.Timestamp,
	}
}

func recordID(record *core.Record) string {
	if record == nil {
		return "<nil>"
	}
	return record.ID
}
