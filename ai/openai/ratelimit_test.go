package openai

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/semsearch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter(t *testing.T) {
	t.Run("zero rate disables limiting", func(t *testing.T) {
		l := newLimiter(0, 0)
		assert.Nil(t, l)
		require.NoError(t, l.wait(context.Background()))
	})

	t.Run("nil limiter honors cancellation", func(t *testing.T) {
		var l *limiter
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, l.wait(ctx), context.Canceled)
	})

	t.Run("burst passes immediately", func(t *testing.T) {
		l := newLimiter(1, 3)
		start := time.Now()
		for i := 0; i < 3; i++ {
			require.NoError(t, l.wait(context.Background()))
		}
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("waiting past deadline fails", func(t *testing.T) {
		l := newLimiter(0.1, 1)
		require.NoError(t, l.wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, l.wait(ctx))
	})
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{EmbeddingModel: "custom"})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	cfg := ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434"))
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "embeddinggemma", p.Embedder().Model())
	assert.Equal(t, 768, p.Embedder().Dimensions())
	assert.Equal(t, "http://localhost:11434/v1", p.Config().EmbeddingHost)
}
