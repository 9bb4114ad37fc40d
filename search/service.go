package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/semsearch/cache"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/embedding"
	"github.com/poiesic/semsearch/metrics"
	"github.com/poiesic/semsearch/query"
	"github.com/poiesic/semsearch/storage"
)

// Metric names recorded on the monitor.
const (
	MetricSearch       = "search.total"
	MetricVectorSearch = "search.vector"
	MetricTextSearch   = "search.text"
	MetricRanking      = "search.ranking"
	MetricResults      = "search.results"
)

// Search phases reported in core.Performance.
const (
	PhaseQueryProcessing = "query_processing"
	PhaseEmbedding       = "embedding"
	PhaseCandidates      = "candidates"
	PhaseVectorSearch    = "vector_search"
	PhaseTextSearch      = "text_search"
	PhaseRanking         = "ranking"
)

// Config holds configuration for the search service.
type Config struct {
	// DefaultThreshold is the minimum similarity when the request sets none.
	DefaultThreshold float64 `toml:"default_threshold" validate:"gte=0,lte=1"`

	// DefaultLimit is the page size when the request sets none.
	DefaultLimit int `toml:"default_limit" validate:"gte=1"`

	// MaxLimit caps the page size regardless of the request.
	MaxLimit int `toml:"max_limit" validate:"gte=1"`

	// ScanPageSize is the page size used to scan the store for candidates.
	ScanPageSize int `toml:"scan_page_size" validate:"gte=1"`

	// IndexCandidates is how many neighbours are requested from a vector index.
	IndexCandidates int `toml:"index_candidates" validate:"gte=1"`

	// HealthQuery is the query run by HealthCheck.
	HealthQuery string `toml:"health_query"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultThreshold: 0.7,
		DefaultLimit:     20,
		MaxLimit:         100,
		ScanPageSize:     500,
		IndexCandidates:  1000,
		HealthQuery:      "software",
	}
}

// HealthStatus reports whether a real search succeeded and how long it took.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	LatencyMs float64   `json:"latencyMs"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Service answers natural-language queries over stored records.
type Service struct {
	store      storage.RecordStore
	embeddings *embedding.Service
	processor  *query.Processor
	index      storage.VectorIndex
	cache      *cache.Cache[*core.SearchResponse]
	monitor    *metrics.Monitor
	config     *Config
	validate   *validator.Validate
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

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

// WithMonitor sets the performance monitor. Default is the embedding
// service's monitor.
func WithMonitor(monitor *metrics.Monitor) Option {
	return func(s *Service) error {
		if monitor != nil {
			s.monitor = monitor
		}
		return nil
	}
}

// WithCache enables result caching.
func WithCache(c *cache.Cache[*core.SearchResponse]) Option {
	return func(s *Service) error {
		s.cache = c
		return nil
	}
}

// WithVectorIndex answers vector candidates from index instead of a store scan.
func WithVectorIndex(index storage.VectorIndex) Option {
	return func(s *Service) error {
		s.index = index
		return nil
	}
}

// WithConfig replaces the service configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) error {
		if config == nil {
			return nil
		}
		c := *config
		if err := s.validate.Struct(&c); err != nil {
			return err
		}
		if c.HealthQuery == "" {
			c.HealthQuery = DefaultConfig().HealthQuery
		}
		s.config = &c
		return nil
	}
}

// NewService creates a search service.
func NewService(store storage.RecordStore, embeddings *embedding.Service, processor *query.Processor, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embeddings == nil {
		return nil, ErrEmbeddingServiceRequired
	}
	if processor == nil {
		return nil, ErrProcessorRequired
	}

	s := &Service{
		store:      store,
		embeddings: embeddings,
		processor:  processor,
		monitor:    embeddings.Monitor(),
		config:     DefaultConfig(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Config returns a copy of the service configuration.
func (s *Service) Config() Config {
	return *s.config
}

// Search answers req.
func (s *Service) Search(ctx context.Context, req *core.SearchRequest) (*core.SearchResponse, error) {
	return s.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor answers req, reporting each stage to monitor.
func (s *Service) SearchWithMonitor(ctx context.Context, req *core.SearchRequest, monitor SearchMonitor) (*core.SearchResponse, error) {
	return s.search(ctx, req, monitor, true)
}

// HealthCheck runs a real search, bypassing the cache, and reports its latency.
func (s *Service) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	req := &core.SearchRequest{Query: s.config.HealthQuery, Options: &core.SearchOptions{Limit: 1}}
	_, err := s.search(ctx, req, nil, false)

	status := HealthStatus{
		Healthy:   err == nil,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		status.Error = err.Error()
		s.logger.Warn("search health check failed", "err", err)
	}
	return status
}

// resolved are the request options after defaults and caps.
type resolved struct {
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
	Threshold   float64 `json:"threshold"`
	TextSearch  bool    `json:"textSearch"`
	Explanation bool    `json:"explanation"`
}

func (s *Service) resolveOptions(opts *core.SearchOptions) resolved {
	r := resolved{
		Limit:      min(s.config.DefaultLimit, s.config.MaxLimit),
		Threshold:  s.config.DefaultThreshold,
		TextSearch: opts.TextSearchEnabled(),
	}
	if opts == nil {
		return r
	}
	if opts.Limit > 0 {
		r.Limit = opts.Limit
	}
	r.Limit = min(r.Limit, s.config.MaxLimit)
	r.Offset = opts.Offset
	if opts.Threshold != nil {
		r.Threshold = *opts.Threshold
	}
	r.Explanation = opts.IncludeExplanation
	return r
}

func (s *Service) validateRequest(req *core.SearchRequest) error {
	if req == nil {
		return core.InvalidQuery("request is required")
	}
	if err := core.ValidateSearchQuery(req.Query).Err(); err != nil {
		return err
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return core.NewError(core.CodeInvalidRequest, "invalid "+verrs[0].Namespace(), err)
		}
		return core.NewError(core.CodeInvalidRequest, "invalid request", err)
	}
	if f := req.Filters; f != nil && f.PriceRange != nil && f.PriceRange.Min != nil && f.PriceRange.Max != nil &&
		*f.PriceRange.Min > *f.PriceRange.Max {
		return core.NewError(core.CodeInvalidRequest, "price range minimum exceeds maximum", nil)
	}
	return nil
}

// cacheKey is the canonical JSON of the normalized request.
func cacheKey(normalized string, filters *core.SearchFilters, opts resolved) string {
	key := struct {
		Query   string              `json:"q"`
		Filters *core.SearchFilters `json:"f,omitempty"`
		Options resolved            `json:"o"`
	}{Query: normalized, Filters: canonicalFilters(filters), Options: opts}

	data, err := json.Marshal(key)
	if err != nil {
		// every field is plain data
		panic(err)
	}
	return string(data)
}

// canonicalFilters lower-cases and sorts list filters so equivalent
// requests share a cache entry.
func canonicalFilters(f *core.SearchFilters) *core.SearchFilters {
	if f.IsEmpty() {
		return nil
	}
	c := *f
	for _, list := range []*[]string{&c.Categories, &c.ProviderTypes, &c.Industries, &c.Technologies, &c.Locations, &c.Features, &c.Compliance} {
		if len(*list) == 0 {
			continue
		}
		norm := make([]string, len(*list))
		for i, v := range *list {
			norm[i] = strings.ToLower(strings.TrimSpace(v))
		}
		slices.Sort(norm)
		*list = slices.Compact(norm)
	}
	return &c
}

func (s *Service) search(ctx context.Context, req *core.SearchRequest, monitor SearchMonitor, useCache bool) (*core.SearchResponse, error) {
	start := time.Now()
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	monitor.Start(req)

	opts := s.resolveOptions(req.Options)
	normalized := query.Normalize(req.Query)

	var key string
	if useCache && s.cache != nil {
		key = cacheKey(normalized, req.Filters, opts)
		if cached, ok := s.cache.Get(key); ok {
			resp := *cached
			resp.CacheStatus = core.CacheStatusHit
			// entries are shared by queries differing only in case and spacing
			resp.QueryMetadata.OriginalQuery = req.Query
			s.monitor.RecordDuration(MetricSearch, time.Since(start))
			monitor.Finish(&resp)
			return &resp, nil
		}
	}

	perf := core.Performance{Phases: make(map[string]float64)}
	phase := func(name string, since time.Time) time.Time {
		now := time.Now()
		perf.Phases[name] = float64(now.Sub(since).Microseconds()) / 1000
		return now
	}

	// query understanding
	mark := time.Now()
	processed := s.processor.ProcessQuery(req.Query)
	intent := s.processor.DetectIntent(processed)
	strategy := SelectStrategy(intent, opts.TextSearch)
	mark = phase(PhaseQueryProcessing, mark)
	monitor.AfterQueryProcessing(processed, intent, strategy)

	// embedded from the same normalized form the cache key uses
	qemb, err := s.embeddings.GenerateQueryEmbedding(ctx, normalized)
	if err != nil {
		if errors.Is(err, core.ErrInvalidQuery) {
			return nil, err
		}
		s.logger.Error("error generating embedding for query", "query", req.Query, "err", err)
		return nil, core.NewError(core.CodeEmbeddingFailed, "query embedding failed", err)
	}
	mark = phase(PhaseEmbedding, mark)
	monitor.AfterEmbedding(qemb.Model, qemb.TokenCount)

	// the store scan is skipped only when the index alone can answer
	var pool []*core.Record
	if s.index == nil || strategy.UsesText() {
		pool, err = s.loadCandidates(ctx, req.Filters)
		if err != nil {
			s.logger.Error("error loading search candidates", "err", err)
			return nil, core.SearchFailed(err)
		}
		perf.DocumentsScanned = len(pool)
	}
	mark = phase(PhaseCandidates, mark)

	vectorHits, scanned, err := s.vectorCandidates(ctx, qemb.Vector, pool, req.Filters, opts.Threshold)
	if err != nil {
		s.logger.Error("error querying for similar records", "err", err)
		return nil, core.SearchFailed(err)
	}
	if s.index != nil {
		perf.DocumentsScanned = max(perf.DocumentsScanned, scanned)
	}
	perf.VectorCandidates = len(vectorHits)
	s.monitor.RecordDuration(MetricVectorSearch, time.Since(mark))
	mark = phase(PhaseVectorSearch, mark)
	monitor.AfterVectorSearch(hitIDs(vectorHits))

	var textHits map[string]*candidate
	if strategy.UsesText() {
		textHits = s.textCandidates(processed, pool)
		perf.TextCandidates = len(textHits)
		s.monitor.RecordDuration(MetricTextSearch, time.Since(mark))
		monitor.AfterTextSearch(hitIDs(textHits))
	}
	mark = phase(PhaseTextSearch, mark)

	merged := merge(vectorHits, textHits, strategy)
	filtered := applyFilters(merged, req.Filters)
	monitor.AfterFiltering(len(filtered))

	results := s.rank(filtered, intent, strategy, opts.Explanation, time.Now())
	s.monitor.RecordDuration(MetricRanking, time.Since(mark))
	phase(PhaseRanking, mark)

	total := len(results)
	page := paginate(results, opts.Offset, opts.Limit)

	resp := &core.SearchResponse{
		Results:    page,
		TotalCount: total,
		QueryMetadata: core.QueryMetadata{
			OriginalQuery:  req.Query,
			ProcessedQuery: processed,
			Intent:         intent,
			Strategy:       strategy.Name,
			Threshold:      opts.Threshold,
			Limit:          opts.Limit,
			Offset:         opts.Offset,
			EmbeddingModel: qemb.Model,
			QueryTokens:    qemb.TokenCount,
			QueryCost:      qemb.Cost,
		},
		Suggestions: s.suggestions(normalized, req.Filters, total, pool),
		CacheStatus: core.CacheStatusDisabled,
		GeneratedAt: time.Now().UTC(),
	}

	elapsed := time.Since(start)
	perf.TotalMs = float64(elapsed.Microseconds()) / 1000
	resp.Performance = perf
	s.monitor.RecordDuration(MetricSearch, elapsed)
	s.monitor.Record(MetricResults, float64(total))

	if useCache && s.cache != nil {
		resp.CacheStatus = core.CacheStatusMiss
		s.cache.Set(key, resp)
	}

	s.logger.Debug("search completed", "query", req.Query, "strategy", strategy.Name,
		"results", total, "duration", elapsed)
	monitor.Finish(resp)
	return resp, nil
}

// paginate slices results by offset and limit.
func paginate(results []*core.SearchResult, offset, limit int) []*core.SearchResult {
	if offset >= len(results) {
		return []*core.SearchResult{}
	}
	end := min(offset+limit, len(results))
	return results[offset:end]
}
