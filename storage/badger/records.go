package badger

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/storage"
)

// putChunkSize bounds the records written per transaction.
const putChunkSize = 256

// indexedFields are kept in a value index so QueryWhereIn avoids a full scan.
var indexedFields = []string{core.FieldCategory, core.FieldSubcategory, core.FieldProviderType}

// RecordStore implements storage.RecordStore for BadgerDB.
type RecordStore struct {
	backend *Backend
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a new RecordStore.
func NewRecordStore(backend *Backend) *RecordStore {
	return &RecordStore{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (s *RecordStore) Close() error {
	return nil
}

// Put inserts or replaces records by ID.
func (s *RecordStore) Put(ctx context.Context, records ...*core.Record) error {
	for start := 0; start < len(records); start += putChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+putChunkSize, len(records))
		err := s.backend.Update(func(tx *badger.Txn) error {
			for _, record := range records[start:end] {
				if err := s.putRecord(tx, record); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordStore) putRecord(tx *badger.Txn, record *core.Record) error {
	if err := core.ValidateRecord(record); err != nil {
		return err
	}

	key := makeRecordKey(record.ID)
	old, err := s.readRecord(tx, key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if old != nil {
		if err := s.deleteIndices(tx, old); err != nil {
			return err
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = old.CreatedAt
		}
		if len(record.Embedding) == 0 && old.EmbeddingMetadata != nil {
			record.Embedding = old.Embedding
			record.EmbeddingMetadata = old.EmbeddingMetadata
			record.SearchContent = old.SearchContent
			record.ContentSources = old.ContentSources
			record.LastEmbeddingUpdate = old.LastEmbeddingUpdate
		}
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	if err := s.writeRecord(tx, record); err != nil {
		return err
	}
	return s.writeIndices(tx, record)
}

// Get retrieves a single record by ID.
func (s *RecordStore) Get(ctx context.Context, id string) (*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *core.Record
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = s.readRecord(tx, makeRecordKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetMany retrieves multiple records by their IDs, skipping missing ones.
func (s *RecordStore) GetMany(ctx context.Context, ids ...string) ([]*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]*core.Record, 0, len(ids))
	err := s.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := s.readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	})
	return results, err
}

// UpdateEmbedding writes the embedding fields of one record.
func (s *RecordStore) UpdateEmbedding(ctx context.Context, id string, update *storage.EmbeddingUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		record, err := s.readRecord(tx, makeRecordKey(id))
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}

		meta := update.Metadata
		record.Embedding = update.Embedding
		record.EmbeddingMetadata = &meta
		record.SearchContent = update.SearchContent
		record.ContentSources = update.ContentSources
		record.LastEmbeddingUpdate = update.UpdatedAt
		if record.LastEmbeddingUpdate.IsZero() {
			record.LastEmbeddingUpdate = time.Now().UTC()
		}

		return s.writeRecord(tx, record)
	})
}

// Scan returns up to pageSize records ordered by creation time.
// The cursor is the hex encoded creation index key of the last record returned.
func (s *RecordStore) Scan(ctx context.Context, pageSize int, cursor string) (*storage.Page, error) {
	if pageSize <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(recordCreatedIndex)
	seek := prefix
	var after []byte
	if cursor != "" {
		decoded, err := hex.DecodeString(cursor)
		if err != nil || !bytes.HasPrefix(decoded, prefix) || len(decoded) < len(prefix)+8 {
			return nil, storage.ErrInvalidCursor
		}
		seek = decoded
		after = decoded
	}

	page := &storage.Page{}
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var lastKey []byte
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if after != nil && bytes.Equal(key, after) {
				continue
			}
			if len(page.Records) == pageSize {
				// more records remain past this page
				page.NextCursor = hex.EncodeToString(lastKey)
				return nil
			}

			record, err := s.readRecord(tx, makeRecordKey(idFromCreatedKey(key)))
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			page.Records = append(page.Records, record)
			lastKey = iter.Item().KeyCopy(lastKey[:0])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// QueryWhereIn returns records whose field matches any of values.
// Indexed fields are answered from the value index; others by a full scan.
func (s *RecordStore) QueryWhereIn(ctx context.Context, field string, values []string) ([]*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	var results []*core.Record
	err := s.backend.View(func(tx *badger.Txn) error {
		if isIndexed(field) {
			var err error
			results, err = s.queryIndex(tx, field, values)
			return err
		}
		return s.forEachRecord(tx, func(record *core.Record) {
			if matchesAny(record.Strings(field), values) {
				results = append(results, record)
			}
		})
	})
	return results, err
}

func (s *RecordStore) queryIndex(tx *badger.Txn, field string, values []string) ([]*core.Record, error) {
	seen := make(map[string]bool)
	var results []*core.Record
	for _, value := range values {
		prefix := makePartialFieldKey(field, value)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			id := string(iter.Item().Key()[len(prefix):])
			if seen[id] {
				continue
			}
			seen[id] = true
			record, err := s.readRecord(tx, makeRecordKey(id))
			if err != nil {
				iter.Close()
				return nil, err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		iter.Close()
	}
	return results, nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordCreatedIndex)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// forEachRecord visits every record in key order.
func (s *RecordStore) forEachRecord(tx *badger.Txn, fn func(*core.Record)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(recordPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var record *core.Record
		err := iter.Item().Value(func(val []byte) error {
			var err error
			record, err = storage.UnmarshalRecord(val)
			return err
		})
		if err != nil {
			return err
		}
		fn(record)
	}
	return nil
}

// readRecord reads a record within a transaction.
// Returns nil, nil if the record doesn't exist.
func (s *RecordStore) readRecord(tx *badger.Txn, key []byte) (*core.Record, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.Record
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalRecord(val)
		return unmarshalErr
	})
	return record, err
}

func (s *RecordStore) writeRecord(tx *badger.Txn, record *core.Record) error {
	value, err := storage.MarshalRecord(record)
	if err != nil {
		return err
	}
	return tx.Set(makeRecordKey(record.ID), value)
}

func (s *RecordStore) writeIndices(tx *badger.Txn, record *core.Record) error {
	if err := tx.Set(makeCreatedKey(record.CreatedAt, record.ID), nil); err != nil {
		return err
	}
	for _, field := range indexedFields {
		for _, value := range record.Strings(field) {
			if err := tx.Set(makeFieldKey(field, value, record.ID), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *RecordStore) deleteIndices(tx *badger.Txn, record *core.Record) error {
	if err := tx.Delete(makeCreatedKey(record.CreatedAt, record.ID)); err != nil {
		return err
	}
	for _, field := range indexedFields {
		for _, value := range record.Strings(field) {
			if err := tx.Delete(makeFieldKey(field, value, record.ID)); err != nil {
				return err
			}
		}
	}
	return nil
}

func isIndexed(field string) bool {
	for _, f := range indexedFields {
		if f == field {
			return true
		}
	}
	return false
}

func matchesAny(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}
