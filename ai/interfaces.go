package ai

import "context"

// EmbedResult is a provider vector with the tokens it consumed.
type EmbedResult struct {
	Vector     []float32
	TokenCount int
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails; callers treat
	// every failure as retryable.
	EmbedText(ctx context.Context, text string) (*EmbedResult, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([]*EmbedResult, error)

	// Model returns the model identifier recorded in embedding metadata.
	Model() string

	// Dimensions returns the vector length the model produces.
	Dimensions() int
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Config returns the provider configuration.
	Config() *Config

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
