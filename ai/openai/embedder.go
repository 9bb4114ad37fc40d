package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/semsearch/ai"
	"github.com/poiesic/semsearch/extract"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder   embeddings.Embedder
	limiter    *limiter
	model      string
	dimensions int
	logger     *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:   embedder,
		limiter:    newLimiter(config.RequestsPerSecond, config.Burst),
		model:      config.EmbeddingModel,
		dimensions: config.Dimensions,
		logger:     slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) (*ai.EmbedResult, error) {
	results, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		e.logger.Warn("embedder returned empty result")
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return results[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
// One rate limiter token is consumed per request, not per text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([]*ai.EmbedResult, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	if err := e.limiter.wait(ctx); err != nil {
		return nil, err
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	results := make([]*ai.EmbedResult, len(vectors))
	for i, v := range vectors {
		results[i] = &ai.EmbedResult{
			Vector:     v,
			TokenCount: extract.EstimateTokens(texts[i]),
		}
	}
	return results, nil
}

// Model returns the configured embedding model.
func (e *Embedder) Model() string {
	return e.model
}

// Dimensions returns the configured vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
