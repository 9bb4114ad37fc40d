package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/semsearch/core"
)

// BatchFailure records one record that could not be embedded.
type BatchFailure struct {
	RecordID string
	Err      error
}

// BatchResult collects the outcome of GenerateBatchEmbeddings.
type BatchResult struct {
	Embeddings map[string]*core.Embedding
	Failures   []BatchFailure
	Tokens     int
}

// GenerateBatchEmbeddings embeds records in fixed-size batches. Records in a
// batch are embedded concurrently; batches run one after another with the
// configured delay between them. Per-record failures are collected in the
// result; only context cancellation returns an error.
func (s *Service) GenerateBatchEmbeddings(ctx context.Context, records []*core.Record) (*BatchResult, error) {
	result := &BatchResult{Embeddings: make(map[string]*core.Embedding, len(records))}

	for start := 0; start < len(records); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if start > 0 && s.batchDelay > 0 {
			if err := sleep(ctx, s.batchDelay); err != nil {
				return nil, err
			}
		}

		end := min(start+s.batchSize, len(records))
		s.embedBatch(ctx, records[start:end], result)
		s.logger.Debug("batch embedded", "from", start, "to", end, "failures", len(result.Failures))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// embedBatch runs one batch on the pool and merges into result.
func (s *Service) embedBatch(ctx context.Context, batch []*core.Record, result *BatchResult) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	collect := func(r *core.Record, emb *core.Embedding, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{RecordID: recordID(r), Err: err})
			return
		}
		result.Embeddings[r.ID] = emb
		result.Tokens += emb.Metadata.TokenCount
	}

	for _, r := range batch {
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			emb, err := s.GenerateEmbedding(ctx, r)
			collect(r, emb, err)
		})
		if submitErr != nil {
			wg.Done()
			collect(r, nil, submitErr)
		}
	}
	wg.Wait()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
