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


package openai

import (
	"log/slog"

	"github.com/poiesic/semsearch/ai"
)

// Provider serves embeddings from an OpenAI-compatible endpoint.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	logger   *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider validates config and builds the rate-limited embedder behind it.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("embedding provider ready",
		"host", config.EmbeddingHost,
		"model", config.EmbeddingModel,
		"dimensions", config.Dimensions,
		"rps", config.RequestsPerSecond)

	return &Provider{
		config:   config,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Embedder returns the rate-limited embedder.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Config returns the validated provider configuration.
func (p *Provider) Config() *ai.Config {
	return p.config
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("embedding provider closed", "model", p.config.EmbeddingModel)
	return nil
}
