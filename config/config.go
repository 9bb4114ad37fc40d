// Package config loads semsearch settings from a TOML file.
//
// Every section has defaults, so an empty or partial file is valid. Command
// line flags are applied on top of the loaded values by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/semsearch/ai"
	"github.com/poiesic/semsearch/cache"
	"github.com/poiesic/semsearch/embedding"
	"github.com/poiesic/semsearch/metrics"
	"github.com/poiesic/semsearch/pipeline"
	"github.com/poiesic/semsearch/search"
)

// Duration is a time.Duration written as a string ("250ms", "6h") in TOML.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration the way UnmarshalText accepts it.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Storage locates the record store and the optional vector index.
type Storage struct {
	Path       string `toml:"path"`
	InMemory   bool   `toml:"in_memory"`
	SyncWrites bool   `toml:"sync_writes"`
	IndexPath  string `toml:"index_path"`
}

// Provider configures the embedding provider.
type Provider struct {
	Host              string  `toml:"host" validate:"required,url"`
	Model             string  `toml:"model" validate:"required"`
	APIKey            string  `toml:"api_key"`
	Dimensions        int     `toml:"dimensions" validate:"gte=0"`
	MaxTokens         int     `toml:"max_tokens" validate:"gt=0"`
	CostPer1KTokens   float64 `toml:"cost_per_1k_tokens" validate:"gte=0"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"`
	Burst             int     `toml:"burst" validate:"gte=0"`
}

// Embedding configures batch generation.
type Embedding struct {
	BatchSize  int      `toml:"batch_size" validate:"gt=0"`
	PoolSize   int      `toml:"pool_size" validate:"gt=0"`
	BatchDelay Duration `toml:"batch_delay" validate:"gte=0"`
	Version    string   `toml:"version" validate:"required"`
}

// Pipeline configures bulk runs and the refresh schedule.
type Pipeline struct {
	BatchSize      int      `toml:"batch_size" validate:"gt=0"`
	Concurrency    int      `toml:"concurrency" validate:"gt=0"`
	ReportInterval int      `toml:"report_interval" validate:"gt=0"`
	MaxRetries     int      `toml:"max_retries" validate:"gt=0"`
	RetryDelay     Duration `toml:"retry_delay" validate:"gte=0"`
	BatchDelay     Duration `toml:"batch_delay" validate:"gte=0"`
	Backoff        string   `toml:"backoff" validate:"oneof=linear exponential"`
	Schedule       string   `toml:"schedule"`
	RunTimeout     Duration `toml:"run_timeout" validate:"gte=0"`
}

// Cache configures the search result cache.
type Cache struct {
	Enabled    bool     `toml:"enabled"`
	MaxEntries int64    `toml:"max_entries" validate:"gt=0"`
	TTL        Duration `toml:"ttl" validate:"gt=0"`
}

// Metrics configures the performance monitor.
type Metrics struct {
	MaxSamples int `toml:"max_samples" validate:"gt=0"`
}

// Server configures the HTTP API.
type Server struct {
	Addr            string   `toml:"addr" validate:"required"`
	ReadTimeout     Duration `toml:"read_timeout" validate:"gte=0"`
	WriteTimeout    Duration `toml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" validate:"gte=0"`
}

// Config is the complete semsearch configuration.
type Config struct {
	Storage   Storage       `toml:"storage"`
	Provider  Provider      `toml:"provider"`
	Embedding Embedding     `toml:"embedding"`
	Pipeline  Pipeline      `toml:"pipeline"`
	Search    search.Config `toml:"search"`
	Cache     Cache         `toml:"cache"`
	Metrics   Metrics       `toml:"metrics"`
	Server    Server        `toml:"server"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	pipelineDefaults := pipeline.DefaultConfig()
	return &Config{
		Storage: Storage{Path: "semsearch.db"},
		Provider: Provider{
			Host:              aiDefaults.EmbeddingHost,
			Model:             aiDefaults.EmbeddingModel,
			APIKey:            aiDefaults.APIKey,
			MaxTokens:         aiDefaults.MaxTokens,
			CostPer1KTokens:   aiDefaults.CostPer1KTokens,
			RequestsPerSecond: aiDefaults.RequestsPerSecond,
			Burst:             aiDefaults.Burst,
		},
		Embedding: Embedding{
			BatchSize:  embedding.DefaultBatchSize,
			PoolSize:   embedding.DefaultPoolSize(),
			BatchDelay: Duration(embedding.DefaultBatchDelay),
			Version:    embedding.DefaultVersion,
		},
		Pipeline: Pipeline{
			BatchSize:      pipelineDefaults.BatchSize,
			Concurrency:    pipelineDefaults.Concurrency,
			ReportInterval: pipelineDefaults.ReportInterval,
			MaxRetries:     pipelineDefaults.MaxRetries,
			RetryDelay:     Duration(pipelineDefaults.RetryDelay),
			BatchDelay:     Duration(pipelineDefaults.BatchDelay),
			Backoff:        pipelineDefaults.Backoff.String(),
			Schedule:       pipeline.DefaultSchedule,
			RunTimeout:     Duration(pipeline.DefaultRunTimeout),
		},
		Search: *search.DefaultConfig(),
		Cache: Cache{
			Enabled:    true,
			MaxEntries: cache.DefaultMaxEntries,
			TTL:        Duration(cache.DefaultTTL),
		},
		Metrics: Metrics{MaxSamples: metrics.DefaultMaxSamples},
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg, leaving absent keys untouched.
// Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parsing config: %s", strict.String())
		}
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// Validate checks field constraints and the values that need parsing.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return errors.New("invalid config: search.default_limit exceeds search.max_limit")
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return errors.New("invalid config: storage.path is required unless storage.in_memory is set")
	}
	return nil
}

// AIConfig converts the provider section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Provider.Host),
		ai.WithEmbeddingModel(c.Provider.Model),
		ai.WithAPIKey(c.Provider.APIKey),
		ai.WithDimensions(c.Provider.Dimensions),
		ai.WithMaxTokens(c.Provider.MaxTokens),
		ai.WithCostPer1KTokens(c.Provider.CostPer1KTokens),
		ai.WithRateLimit(c.Provider.RequestsPerSecond, c.Provider.Burst),
	)
}

// PipelineConfig converts the pipeline section into a pipeline.Config.
func (c *Config) PipelineConfig() (*pipeline.Config, error) {
	backoff, err := pipeline.ParseBackoff(c.Pipeline.Backoff)
	if err != nil {
		return nil, err
	}
	return &pipeline.Config{
		BatchSize:      c.Pipeline.BatchSize,
		Concurrency:    c.Pipeline.Concurrency,
		ReportInterval: c.Pipeline.ReportInterval,
		MaxRetries:     c.Pipeline.MaxRetries,
		RetryDelay:     c.Pipeline.RetryDelay.Std(),
		BatchDelay:     c.Pipeline.BatchDelay.Std(),
		Backoff:        backoff,
	}, nil
}
