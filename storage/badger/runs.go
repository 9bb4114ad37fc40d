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


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) (*RunRepository, error) {
	idSeq, err := backend.Sequence(runIDSeq)
	if err != nil {
		return nil, err
	}
	return &RunRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *RunRepository) Close() error {
	return r.idSeq.Release()
}

// SaveRun persists a run summary keyed by its start time.
func (r *RunRepository) SaveRun(ctx context.Context, summary *core.RunSummary) error {
	seq, err := r.idSeq.Next()
	if err != nil {
		return err
	}
	if summary.StartedAt.IsZero() {
		summary.StartedAt = time.Now().UTC()
	}
	value, err := storage.MarshalRunSummary(summary)
	if err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeRunKey(summary.StartedAt, seq), value)
	})
}

// LatestRun returns the most recently started run, or nil, nil if none exists.
func (r *RunRepository) LatestRun(ctx context.Context) (*core.RunSummary, error) {
	runs, err := r.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// ListRuns returns up to limit runs, most recent first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*core.RunSummary, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	var runs []*core.RunSummary
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration must seek past the last key sharing the prefix.
		for iter.Seek(append([]byte(runPrefix), 0xFF)); iter.Valid() && len(runs) < limit; iter.Next() {
			var summary *core.RunSummary
			err := iter.Item().Value(func(val []byte) error {
				var err error
				summary, err = storage.UnmarshalRunSummary(val)
				return err
			})
			if err != nil {
				return err
			}
			runs = append(runs, summary)
		}
		return nil
	})
	return runs, err
}
