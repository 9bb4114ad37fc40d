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

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/semsearch"
	"github.com/poiesic/semsearch/ai/openai"
	"github.com/poiesic/semsearch/config"
	"github.com/urfave/cli/v2"
)

// newProvider builds the embedding provider; tests swap it for a mock.
var newProvider = openai.NewProvider

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "semsearch",
		Usage: "Semantic search over a catalog of records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"SEMSEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Path to the vector index directory (overrides storage.index_path)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL (overrides provider.host)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name (overrides provider.model)",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Embedding provider API key",
				EnvVars: []string{"SEMSEARCH_API_KEY", "OPENAI_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			embedCommand(),
			searchCommand(),
			importCommand(),
			serveCommand(),
		},
	}
}

// loadConfig reads --config and applies the global overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("db"); v != "" {
		cfg.Storage.Path = v
		cfg.Storage.InMemory = false
	}
	if v := c.String("index"); v != "" {
		cfg.Storage.IndexPath = v
	}
	if v := c.String("embedding-host"); v != "" {
		cfg.Provider.Host = v
	}
	if v := c.String("embedding-model"); v != "" {
		cfg.Provider.Model = v
	}
	if v := c.String("api-key"); v != "" {
		cfg.Provider.APIKey = v
	}
	return cfg, cfg.Validate()
}

// openEngine builds an engine from cfg using newProvider.
func openEngine(cfg *config.Config, opts ...semsearch.EngineOption) (*semsearch.Engine, error) {
	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	opts = append([]semsearch.EngineOption{semsearch.WithProvider(provider)}, opts...)
	engine, err := semsearch.NewEngine(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

// describe prints where the engine reads and writes.
func describe(w io.Writer, cfg *config.Config) {
	if cfg.Storage.InMemory {
		fmt.Fprintln(w, "Database: (in memory)")
	} else {
		fmt.Fprintf(w, "Database: %s\n", cfg.Storage.Path)
	}
	fmt.Fprintf(w, "Embedding host: %s\n", cfg.Provider.Host)
	fmt.Fprintf(w, "Embedding model: %s\n", cfg.Provider.Model)
	fmt.Fprintln(w)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
