// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package semsearch wires the record store, embedding provider, pipeline and search
// service into a single Engine that owns their lifecycle.
package semsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/semsearch/ai"
	"github.com/poiesic/semsearch/ai/openai"
	"github.com/poiesic/semsearch/cache"
	"github.com/poiesic/semsearch/config"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/embedding"
	"github.com/poiesic/semsearch/metrics"
	"github.com/poiesic/semsearch/pipeline"
	"github.com/poiesic/semsearch/query"
	"github.com/poiesic/semsearch/search"
	"github.com/poiesic/semsearch/storage"
	"github.com/poiesic/semsearch/storage/badger"
	"github.com/poiesic/semsearch/storage/chromem"
)

// Engine owns the store, the provider and the services built on them.
type Engine struct {
	config     *config.Config
	backend    *badger.Backend
	store      storage.RecordStore
	runs       *badger.RunRepository
	index      *chromem.Index
	provider   ai.AIProvider
	cache      *cache.Cache[*core.SearchResponse]
	monitor    *metrics.Monitor
	embeddings *embedding.Service
	pipeline   *pipeline.Pipeline
	searcher   *search.Service
	baseLogger *slog.Logger
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	progress io.Writer
	dryRun   bool
	logger   *slog.Logger
}

// WithProvider replaces the OpenAI-compatible provider built from the
// configuration. The engine closes it on Close.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithProgressWriter sets where pipeline progress is printed.
func WithProgressWriter(w io.Writer) EngineOption {
	return func(o *engineOptions) {
		o.progress = w
	}
}

// WithDryRun makes pipeline runs generate embeddings without persisting them.
func WithDryRun(dryRun bool) EngineOption {
	return func(o *engineOptions) {
		o.dryRun = dryRun
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens storage and wires every service described by cfg.
// A nil cfg uses config.Default().
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &engineOptions{
		progress: io.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	e := &Engine{
		config:     cfg,
		baseLogger: options.logger,
		logger:     options.logger.With("component", "engine"),
	}
	if err := e.open(cfg, options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) open(cfg *config.Config, options *engineOptions) error {
	// owned from here on so Close releases it on any failure
	e.provider = options.provider

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory,
		badger.WithBackendLogger(options.logger.With("component", "badger")),
		badger.WithSyncWrites(cfg.Storage.SyncWrites),
	)
	if err != nil {
		return err
	}
	e.backend = backend
	e.store = badger.NewRecordStore(backend)

	if e.runs, err = badger.NewRunRepository(backend); err != nil {
		return err
	}

	// the index is optional; without it search scans the store
	var index storage.VectorIndex
	if cfg.Storage.IndexPath != "" {
		if e.index, err = chromem.Open(cfg.Storage.IndexPath); err != nil {
			return err
		}
		index = e.index
	}

	if e.provider == nil {
		if e.provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			return err
		}
	}

	e.monitor = metrics.NewMonitor(cfg.Metrics.MaxSamples)

	e.embeddings, err = embedding.NewService(e.provider.Embedder(),
		embedding.WithStore(e.store),
		embedding.WithVectorIndex(index),
		embedding.WithMonitor(e.monitor),
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithBatchDelay(cfg.Embedding.BatchDelay.Std()),
		embedding.WithPoolSize(cfg.Embedding.PoolSize),
		embedding.WithMaxTokens(cfg.Provider.MaxTokens),
		embedding.WithCostPer1KTokens(cfg.Provider.CostPer1KTokens),
		embedding.WithVersion(cfg.Embedding.Version),
		embedding.WithLogger(options.logger.With("component", "embedding")),
	)
	if err != nil {
		return err
	}

	pipelineConfig, err := cfg.PipelineConfig()
	if err != nil {
		return err
	}
	pipelineConfig.DryRun = options.dryRun

	e.pipeline, err = pipeline.NewPipeline(e.store, e.embeddings,
		pipeline.WithConfig(pipelineConfig),
		pipeline.WithVectorIndex(index),
		pipeline.WithRunRepository(e.runs),
		pipeline.WithProgressWriter(options.progress),
		pipeline.WithLogger(options.logger.With("component", "pipeline")),
	)
	if err != nil {
		return err
	}

	if e.index != nil {
		if err := e.syncIndex(context.Background()); err != nil {
			return err
		}
	}

	processor, err := query.NewProcessor(nil)
	if err != nil {
		return err
	}

	searchOpts := []search.Option{
		search.WithConfig(&cfg.Search),
		search.WithMonitor(e.monitor),
		search.WithVectorIndex(index),
		search.WithLogger(options.logger.With("component", "search")),
	}
	if cfg.Cache.Enabled {
		if e.cache, err = cache.New[*core.SearchResponse](cfg.Cache.MaxEntries, cfg.Cache.TTL.Std()); err != nil {
			return err
		}
		searchOpts = append(searchOpts, search.WithCache(e.cache))
	}

	e.searcher, err = search.NewService(e.store, e.embeddings, processor, searchOpts...)
	return err
}

// syncIndex backfills the vector index when it holds fewer vectors than the
// store holds records, e.g. when the index is attached to an embedded corpus.
func (e *Engine) syncIndex(ctx context.Context) error {
	total, err := e.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if e.index.Count() >= total {
		return nil
	}
	if _, err := e.pipeline.SyncIndex(ctx); err != nil {
		return fmt.Errorf("failed to sync vector index: %w", err)
	}
	return nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config {
	return e.config
}

// Store returns the record store.
func (e *Engine) Store() storage.RecordStore {
	return e.store
}

// Runs returns the pipeline run history.
func (e *Engine) Runs() storage.RunRepository {
	return e.runs
}

// Embeddings returns the embedding service.
func (e *Engine) Embeddings() *embedding.Service {
	return e.embeddings
}

// Pipeline returns the bulk embedding pipeline.
func (e *Engine) Pipeline() *pipeline.Pipeline {
	return e.pipeline
}

// Search returns the search service.
func (e *Engine) Search() *search.Service {
	return e.searcher
}

// Monitor returns the shared performance monitor.
func (e *Engine) Monitor() *metrics.Monitor {
	return e.monitor
}

// Import stores records, replacing any with the same id, and clears cached
// search results.
func (e *Engine) Import(ctx context.Context, records []*core.Record) error {
	if err := e.store.Put(ctx, records...); err != nil {
		return err
	}
	e.clearCache()
	return nil
}

// RunPipeline runs the pipeline in mode and clears cached search results
// once it has written anything.
func (e *Engine) RunPipeline(ctx context.Context, mode pipeline.Mode, ids []string) (*pipeline.Progress, error) {
	progress, err := e.pipeline.Run(ctx, mode, ids)
	if progress != nil && progress.Successful > 0 && !e.pipeline.Config().DryRun {
		e.clearCache()
	}
	return progress, err
}

// NewScheduler returns a scheduler that refreshes outdated embeddings.
func (e *Engine) NewScheduler() *pipeline.Scheduler {
	return pipeline.NewScheduler(e.pipeline, e.config.Pipeline.RunTimeout.Std(), e.baseLogger)
}

func (e *Engine) clearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Close releases every resource in reverse order of creation.
func (e *Engine) Close() error {
	var errs []error
	if e.pipeline != nil {
		errs = append(errs, e.pipeline.Close())
	}
	if e.embeddings != nil {
		errs = append(errs, e.embeddings.Close())
	}
	if e.cache != nil {
		e.cache.Close()
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.runs != nil {
		errs = append(errs, e.runs.Close())
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
