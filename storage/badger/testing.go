package badger

import "github.com/poiesic/semsearch/storage"

// NewMemoryStore creates an in-memory record store and run repository for testing.
// Returns store, runs, backend, and error.
// Caller must close backend when done.
func NewMemoryStore() (storage.RecordStore, storage.RunRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	runs, err := NewRunRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return NewRecordStore(backend), runs, backend, nil
}
