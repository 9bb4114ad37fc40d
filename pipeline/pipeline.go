package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/embedding"
	"github.com/poiesic/semsearch/storage"
)

// Mode selects which records a run visits.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeSpecific Mode = "specific"
	ModeOutdated Mode = "outdated"
)

// ParseMode parses a run mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAll, ModeSpecific, ModeOutdated:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// State is the lifecycle state of the pipeline.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Config holds configuration for pipeline runs.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// Concurrency is the number of records embedded at once within a batch
	Concurrency int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per record
	MaxRetries int

	// RetryDelay is the base delay between attempts
	RetryDelay time.Duration

	// BatchDelay is the pause between batches
	BatchDelay time.Duration

	// Backoff selects how RetryDelay grows between attempts
	Backoff Backoff

	// DryRun generates embeddings without persisting them
	DryRun bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		Concurrency:    5,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		BatchDelay:     100 * time.Millisecond,
		Backoff:        BackoffLinear,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.BatchSize < 1 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.ReportInterval < 1 {
		c.ReportInterval = d.ReportInterval
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	State    State     `json:"state"`
	Mode     Mode      `json:"mode,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Pipeline generates embeddings for stored records in batches.
type Pipeline struct {
	store    storage.RecordStore
	service  *embedding.Service
	index    storage.VectorIndex
	runs     storage.RunRepository
	config   *Config
	progress io.Writer
	logger   *slog.Logger
	pool     *ants.Pool

	mu      sync.Mutex
	state   State
	mode    Mode
	current *Progress
	lastErr error
	stop    atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConfig replaces the run configuration. Zero fields take defaults.
func WithConfig(config *Config) Option {
	return func(p *Pipeline) error {
		if config != nil {
			c := *config
			p.config = &c
		}
		return nil
	}
}

// WithVectorIndex mirrors persisted embeddings into index.
func WithVectorIndex(index storage.VectorIndex) Option {
	return func(p *Pipeline) error {
		p.index = index
		return nil
	}
}

// WithRunRepository saves a summary of every finished run.
func WithRunRepository(runs storage.RunRepository) Option {
	return func(p *Pipeline) error {
		p.runs = runs
		return nil
	}
}

// WithProgressWriter sets where progress text is written.
// Default is io.Discard.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		if w == nil {
			w = io.Discard
		}
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline over store using service for generation.
func NewPipeline(store storage.RecordStore, service *embedding.Service, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if service == nil {
		return nil, ErrServiceRequired
	}

	p := &Pipeline{
		store:    store,
		service:  service,
		config:   DefaultConfig(),
		progress: io.Discard,
		logger:   slog.Default().With("component", "pipeline"),
		state:    StateIdle,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.config.normalize()

	pool, err := ants.NewPool(p.config.Concurrency)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Close releases the worker pool.
func (p *Pipeline) Close() error {
	p.pool.Release()
	return nil
}

// Config returns a copy of the run configuration.
func (p *Pipeline) Config() Config {
	return *p.config
}

// Status returns the current state and a copy of the latest progress.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{State: p.state, Mode: p.mode}
	if p.current != nil {
		st.Progress = p.current.clone()
	}
	if p.lastErr != nil {
		st.Error = p.lastErr.Error()
	}
	return st
}

// Stop asks a running pipeline to finish after the batch in flight.
func (p *Pipeline) Stop() {
	p.stop.Store(true)
	p.logger.Info("stop requested")
}

// Run dispatches to the operation for mode. ids are used by ModeSpecific.
func (p *Pipeline) Run(ctx context.Context, mode Mode, ids []string) (*Progress, error) {
	switch mode {
	case ModeAll:
		return p.ProcessAll(ctx)
	case ModeSpecific:
		return p.ProcessByIDs(ctx, ids)
	case ModeOutdated:
		return p.UpdateOutdated(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// ProcessAll visits every record in creation order and embeds those whose
// embedding is missing or stale.
func (p *Pipeline) ProcessAll(ctx context.Context) (*Progress, error) {
	if err := p.begin(ModeAll); err != nil {
		return nil, err
	}

	total, err := p.store.Count(ctx)
	if err != nil {
		return p.finish(ctx, fmt.Errorf("failed to count records: %w", err))
	}
	if total == 0 {
		fmt.Fprintf(p.progress, "No records found in database (0 records)\n")
		return p.finish(ctx, nil)
	}

	p.setTotal(total)
	fmt.Fprintf(p.progress, "Starting embedding generation of %d records (batch size: %d)\n",
		total, p.config.BatchSize)

	tracker := NewProgressTracker(p.progress, total, p.config.ReportInterval)
	tracker.Start()

	iterator := NewRecordIterator(p.store, p.config.BatchSize)
	err = iterator.ForEach(ctx, func(records []*core.Record) error {
		return p.processBatch(ctx, records, tracker)
	})
	tracker.Finish()
	return p.complete(ctx, tracker, err)
}

// ProcessByIDs runs the same per-record logic as ProcessAll over an explicit
// id list. Unknown ids are counted as failures.
func (p *Pipeline) ProcessByIDs(ctx context.Context, ids []string) (*Progress, error) {
	if err := p.begin(ModeSpecific); err != nil {
		return nil, err
	}
	return p.processIDs(ctx, ids)
}

// UpdateOutdated scans the corpus for records needing regeneration and
// embeds just those.
func (p *Pipeline) UpdateOutdated(ctx context.Context) (*Progress, error) {
	if err := p.begin(ModeOutdated); err != nil {
		return nil, err
	}

	var ids []string
	iterator := NewRecordIterator(p.store, p.config.BatchSize)
	err := iterator.ForEach(ctx, func(records []*core.Record) error {
		for _, record := range records {
			if p.service.NeedsRegeneration(record, record.CurrentEmbedding()) {
				ids = append(ids, record.ID)
			}
		}
		return nil
	})
	if err != nil {
		return p.finish(ctx, fmt.Errorf("failed to scan records: %w", err))
	}

	p.logger.Info("outdated records found", "count", len(ids))
	return p.processIDs(ctx, ids)
}

// processIDs runs the by-id path for an already started run.
func (p *Pipeline) processIDs(ctx context.Context, ids []string) (*Progress, error) {
	if len(ids) == 0 {
		fmt.Fprintf(p.progress, "No records to process\n")
		return p.finish(ctx, nil)
	}

	p.setTotal(len(ids))
	fmt.Fprintf(p.progress, "Starting embedding generation of %d records (batch size: %d)\n",
		len(ids), p.config.BatchSize)

	tracker := NewProgressTracker(p.progress, len(ids), p.config.ReportInterval)
	tracker.Start()

	var err error
	for start := 0; start < len(ids); start += p.config.BatchSize {
		if err = ctx.Err(); err != nil {
			break
		}
		end := min(start+p.config.BatchSize, len(ids))
		chunk := ids[start:end]

		records, getErr := p.store.GetMany(ctx, chunk...)
		if getErr != nil {
			err = fmt.Errorf("failed to load records: %w", getErr)
			break
		}
		p.recordMissing(chunk, records, tracker)

		if err = p.processBatch(ctx, records, tracker); err != nil {
			break
		}
	}
	tracker.Finish()
	return p.complete(ctx, tracker, err)
}

// errStopped ends iteration after Stop.
var errStopped = errors.New("pipeline stopped")

// processBatch embeds one batch on the pool, then observes the stop flag
// and the inter-batch delay.
func (p *Pipeline) processBatch(ctx context.Context, records []*core.Record, tracker *ProgressTracker) error {
	if p.stop.Load() {
		return errStopped
	}

	p.mu.Lock()
	p.current.CurrentBatch++
	batchNum := p.current.CurrentBatch
	p.mu.Unlock()

	var (
		wg       sync.WaitGroup
		abortMu  sync.Mutex
		abortErr error
	)
	abort := func(err error) {
		abortMu.Lock()
		if abortErr == nil {
			abortErr = err
		}
		abortMu.Unlock()
	}

	for _, record := range records {
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			defer tracker.Increment(1)
			if err := p.processRecord(ctx, record); err != nil {
				abort(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			abort(submitErr)
		}
	}
	wg.Wait()

	if abortErr != nil {
		return abortErr
	}
	p.logger.Debug("batch processed", "batch", batchNum, "records", len(records))

	if p.stop.Load() {
		return errStopped
	}
	if p.config.BatchDelay > 0 {
		timer := time.NewTimer(p.config.BatchDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// processRecord embeds and persists one record. A non-nil return aborts the run.
func (p *Pipeline) processRecord(ctx context.Context, record *core.Record) error {
	if current := record.CurrentEmbedding(); !p.service.NeedsRegeneration(record, current) {
		if !p.config.DryRun {
			p.mirror(ctx, record, current)
		}
		p.update(func(pr *Progress) {
			pr.Skipped++
			pr.Processed++
		})
		return nil
	}

	var emb *core.Embedding
	err := RetryWithBackoff(ctx, func() error {
		var genErr error
		emb, genErr = p.service.GenerateEmbedding(ctx, record)
		if errors.Is(genErr, core.ErrEmptyContent) || errors.Is(genErr, core.ErrContentTooLong) {
			return Permanent(genErr)
		}
		return genErr
	}, p.config.MaxRetries, p.config.RetryDelay, p.config.Backoff)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("embedding failed", "record", record.ID, "err", err)
		p.update(func(pr *Progress) { pr.addFailure(record.ID, err) })
		return nil
	}

	tokens := emb.Metadata.TokenCount
	cost := p.service.Cost(tokens)

	if err := p.persist(ctx, record, emb); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to persist embedding for %s: %w", record.ID, err)
		}
		p.update(func(pr *Progress) {
			pr.Tokens += tokens
			pr.Cost += cost
			pr.addFailure(record.ID, err)
		})
		return nil
	}

	p.update(func(pr *Progress) {
		pr.Tokens += tokens
		pr.Cost += cost
		pr.Successful++
		pr.Processed++
	})
	return nil
}

func (p *Pipeline) persist(ctx context.Context, record *core.Record, emb *core.Embedding) error {
	if p.config.DryRun {
		p.logger.Info("dry run: skipping write", "record", record.ID, "tokens", emb.Metadata.TokenCount)
		return nil
	}
	if err := p.store.UpdateEmbedding(ctx, record.ID, p.service.BuildUpdate(record, emb)); err != nil {
		return err
	}
	p.mirror(ctx, record, emb)
	return nil
}

// mirror copies emb into the vector index when one is attached. Index
// failures are logged; the store stays the source of truth.
func (p *Pipeline) mirror(ctx context.Context, record *core.Record, emb *core.Embedding) {
	if p.index == nil {
		return
	}
	if err := p.index.Upsert(ctx, record.ID, emb.Vector, storage.IndexMetadata(record)); err != nil {
		p.logger.Warn("vector index update failed", "record", record.ID, "err", err)
	}
}

// SyncIndex copies every stored embedding into the vector index and returns
// how many were written. It is a no-op without an index.
func (p *Pipeline) SyncIndex(ctx context.Context) (int, error) {
	if p.index == nil {
		return 0, nil
	}
	synced := 0
	iterator := NewRecordIterator(p.store, p.config.BatchSize)
	err := iterator.ForEach(ctx, func(records []*core.Record) error {
		for _, record := range records {
			current := record.CurrentEmbedding()
			if current == nil {
				continue
			}
			if err := p.index.Upsert(ctx, record.ID, current.Vector, storage.IndexMetadata(record)); err != nil {
				return fmt.Errorf("failed to index %s: %w", record.ID, err)
			}
			synced++
		}
		return nil
	})
	if err != nil {
		return synced, err
	}
	p.logger.Info("vector index synced", "records", synced, "indexed", p.index.Count())
	return synced, nil
}

// recordMissing counts ids in chunk that GetMany did not return.
func (p *Pipeline) recordMissing(chunk []string, found []*core.Record, tracker *ProgressTracker) {
	if len(found) == len(chunk) {
		return
	}
	present := make(map[string]bool, len(found))
	for _, r := range found {
		present[r.ID] = true
	}
	for _, id := range chunk {
		if present[id] {
			continue
		}
		p.update(func(pr *Progress) {
			pr.addFailure(id, fmt.Errorf("record %s: %w", id, storage.ErrNotFound))
		})
		tracker.Increment(1)
	}
}

func (p *Pipeline) begin(mode Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning {
		return core.ErrAlreadyRunning
	}
	p.state = StateRunning
	p.mode = mode
	p.lastErr = nil
	p.current = &Progress{StartTime: time.Now().UTC()}
	p.stop.Store(false)
	p.logger.Info("pipeline started", "mode", mode, "dry_run", p.config.DryRun)
	return nil
}

func (p *Pipeline) setTotal(total int) {
	p.update(func(pr *Progress) {
		pr.Total = total
		pr.TotalBatches = (total + p.config.BatchSize - 1) / p.config.BatchSize
	})
}

func (p *Pipeline) update(fn func(*Progress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.current)
}

// complete prints the closing line and finishes the run. A stop request is
// not an error.
func (p *Pipeline) complete(ctx context.Context, tracker *ProgressTracker, err error) (*Progress, error) {
	if errors.Is(err, errStopped) {
		fmt.Fprintf(p.progress, "Embedding generation stopped\n")
		err = nil
	}
	if err == nil {
		snap := p.Status().Progress
		elapsed := tracker.Elapsed()
		rate := 0.0
		if elapsed > 0 {
			rate = float64(snap.Processed) / elapsed.Seconds()
		}
		fmt.Fprintf(p.progress, "Embedding generation complete. Processed %d records in %v (%.1f records/sec)\n",
			snap.Processed, elapsed.Round(time.Millisecond), rate)
	}
	return p.finish(ctx, err)
}

// finish moves the pipeline to its terminal state and saves the run summary.
func (p *Pipeline) finish(ctx context.Context, err error) (*Progress, error) {
	end := time.Now().UTC()

	p.mu.Lock()
	p.current.EndTime = &end
	p.state = StateCompleted
	if err != nil {
		p.state = StateFailed
		p.lastErr = err
	}
	snap := p.current.clone()
	summary := &core.RunSummary{
		Mode:       string(p.mode),
		Status:     string(p.state),
		DryRun:     p.config.DryRun,
		Total:      snap.Total,
		Successful: snap.Successful,
		Failed:     snap.Failed,
		Skipped:    snap.Skipped,
		Tokens:     snap.Tokens,
		Cost:       snap.Cost,
		StartedAt:  snap.StartTime,
		FinishedAt: end,
	}
	if err != nil {
		summary.Error = err.Error()
	}
	p.mu.Unlock()

	p.logger.Info("pipeline finished", "status", summary.Status, "total", snap.Total,
		"successful", snap.Successful, "failed", snap.Failed, "skipped", snap.Skipped, "cost", snap.Cost)
	for _, f := range snap.ReportedFailures() {
		p.logger.Warn("record failed", "record", f.RecordID, "err", f.Error)
	}

	if p.runs != nil {
		// the caller's context may already be cancelled
		saveCtx := context.WithoutCancel(ctx)
		if saveErr := p.runs.SaveRun(saveCtx, summary); saveErr != nil {
			p.logger.Warn("failed to save run summary", "err", saveErr)
		}
	}
	return snap, err
}
