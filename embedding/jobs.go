package embedding

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/storage"
)

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is a snapshot of a background embedding generation job.
type Job struct {
	ID            string     `json:"id"`
	Status        JobStatus  `json:"status"`
	Total         int        `json:"total"`
	Completed     int        `json:"completed"`
	Failed        int        `json:"failed"`
	EstimatedCost float64    `json:"estimatedCost"`
	ActualCost    float64    `json:"actualCost"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// job is the mutable state behind a Job; only its worker writes it.
type job struct {
	mu    sync.Mutex
	state Job
}

func (j *job) snapshot() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := j.state
	return &snap
}

func (j *job) update(fn func(*Job)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.state)
}

// CreateJob starts embedding the given records in the background and
// returns the pending job. Unknown ids count as failures.
func (s *Service) CreateJob(ctx context.Context, ids []string) (*Job, error) {
	if s.store == nil {
		return nil, ErrStoreRequired
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no record ids", core.ErrInvalidRequest)
	}
	if s.ctx.Err() != nil {
		return nil, ErrServiceClosed
	}

	records, err := s.store.GetMany(ctx, ids...)
	if err != nil {
		return nil, err
	}

	j := &job{state: Job{
		ID:            uuid.NewString(),
		Status:        JobPending,
		Total:         len(ids),
		EstimatedCost: s.EstimateCost(records).Cost,
		CreatedAt:     time.Now().UTC(),
	}}

	s.jobsMu.Lock()
	s.jobs[j.state.ID] = j
	s.jobsMu.Unlock()

	// snapshot before the worker can touch it
	snap := j.snapshot()

	s.jobsWG.Add(1)
	go func() {
		defer s.jobsWG.Done()
		s.runJob(s.ctx, j, records, len(ids)-len(records))
	}()

	s.logger.Info("embedding job created", "job", snap.ID, "records", len(ids), "estimated_cost", snap.EstimatedCost)
	return snap, nil
}

func (s *Service) runJob(ctx context.Context, j *job, records []*core.Record, missing int) {
	started := time.Now().UTC()
	jobID := j.snapshot().ID
	j.update(func(st *Job) {
		st.Status = JobProcessing
		st.StartedAt = &started
		st.Failed = missing
	})

	var runErr error
	for start := 0; start < len(records); start += s.batchSize {
		if start > 0 && s.batchDelay > 0 {
			if runErr = sleep(ctx, s.batchDelay); runErr != nil {
				break
			}
		}
		end := min(start+s.batchSize, len(records))
		batch := records[start:end]

		result, err := s.GenerateBatchEmbeddings(ctx, batch)
		if err != nil {
			runErr = err
			break
		}

		completed, failed := 0, len(result.Failures)
		for _, f := range result.Failures {
			s.logger.Warn("embedding failed", "job", jobID, "record", f.RecordID, "err", f.Err)
		}
		for _, record := range batch {
			emb, ok := result.Embeddings[record.ID]
			if !ok {
				continue
			}
			if err := s.persist(ctx, record, emb); err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					runErr = err
				}
				failed++
				continue
			}
			completed++
		}

		cost := s.Cost(result.Tokens)
		j.update(func(st *Job) {
			st.Completed += completed
			st.Failed += failed
			st.ActualCost += cost
		})
		if runErr != nil {
			break
		}
	}

	finished := time.Now().UTC()
	j.update(func(st *Job) {
		st.CompletedAt = &finished
		if runErr != nil {
			st.Status = JobFailed
			st.Error = runErr.Error()
			return
		}
		st.Status = JobCompleted
	})

	snap := j.snapshot()
	s.logger.Info("embedding job finished", "job", snap.ID, "status", snap.Status,
		"completed", snap.Completed, "failed", snap.Failed, "cost", snap.ActualCost)
}

// persist writes emb to the store and mirrors it into the index if attached.
func (s *Service) persist(ctx context.Context, record *core.Record, emb *core.Embedding) error {
	if err := s.store.UpdateEmbedding(ctx, record.ID, s.BuildUpdate(record, emb)); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Upsert(ctx, record.ID, emb.Vector, storage.IndexMetadata(record)); err != nil {
			s.logger.Warn("vector index update failed", "record", record.ID, "err", err)
		}
	}
	return nil
}

// GetJob returns a snapshot of the job with id.
func (s *Service) GetJob(id string) (*Job, error) {
	s.jobsMu.RLock()
	j, ok := s.jobs[id]
	s.jobsMu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.snapshot(), nil
}

// ListJobs returns snapshots of every job, oldest first.
func (s *Service) ListJobs() []*Job {
	s.jobsMu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.snapshot())
	}
	s.jobsMu.RUnlock()

	slices.SortFunc(jobs, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return jobs
}
