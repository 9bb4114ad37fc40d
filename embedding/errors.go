package embedding

import (
	"errors"

	"github.com/poiesic/semsearch/core"
)

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when a job is created without a record store.
	ErrStoreRequired = errors.New("record store required")

	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = core.NewError(core.CodeNotFound, "embedding job not found", nil)

	// ErrServiceClosed is returned when a job is created after Close.
	ErrServiceClosed = errors.New("embedding service is closed")
)
