package pipeline

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrStoreRequired is returned when a record store is not provided.
	ErrStoreRequired = errors.New("record store required")

	// ErrServiceRequired is returned when an embedding service is not provided.
	ErrServiceRequired = errors.New("embedding service required")

	// ErrUnknownMode is returned for a run mode other than all, specific or outdated.
	ErrUnknownMode = errors.New("unknown pipeline mode")
)
