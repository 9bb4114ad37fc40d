package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/semsearch/storage"
)

const sequenceLease = 100

// Backend owns the BadgerDB handle shared by the record store and the run repository.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger      *slog.Logger
	syncWrites  bool
	compression options.CompressionType
}

// WithBackendLogger routes badger's internal logging to logger.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSyncWrites makes every committed write fsync before returning.
func WithSyncWrites(sync bool) BackendOption {
	return func(o *backendOptions) {
		o.syncWrites = sync
	}
}

// slogAdapter satisfies badger.Logger on top of slog.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

// Infof logs at debug level.
func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBackend opens the database directory at path, creating it if needed.
// With inMemory set the path is ignored and nothing touches disk.
func OpenBackend(path string, inMemory bool, opts ...BackendOption) (*Backend, error) {
	o := &backendOptions{
		logger:      slog.Default().With("component", "badger"),
		compression: options.None,
	}
	for _, opt := range opts {
		opt(o)
	}

	var dbOpts badger.Options
	if inMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dbOpts = badger.DefaultOptions(path).WithSyncWrites(o.syncWrites)
	}
	dbOpts.Logger = &slogAdapter{logger: o.logger}
	dbOpts.Compression = o.compression

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening record database: %w", err)
	}
	o.logger.Debug("record database opened", "path", path, "in_memory", inMemory)
	return &Backend{db: db, logger: o.logger}, nil
}

func ensureDir(path string) error {
	if path == "" {
		return errors.New("database path is empty")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed reports whether Close has been called.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.View(fn)
}

// Update runs fn in a read-write transaction and commits it when fn succeeds.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.Update(fn)
}

// Sequence leases a monotonic counter stored under name.
func (b *Backend) Sequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), sequenceLease)
}
