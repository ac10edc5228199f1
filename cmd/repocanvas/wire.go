// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"log/slog"

	"github.com/kraklabs/repocanvas/internal/config"
	apperrors "github.com/kraklabs/repocanvas/internal/errors"
	"github.com/kraklabs/repocanvas/internal/fetch"
	"github.com/kraklabs/repocanvas/pkg/embed"
	"github.com/kraklabs/repocanvas/pkg/graph"
	"github.com/kraklabs/repocanvas/pkg/journal"
	"github.com/kraklabs/repocanvas/pkg/parser"
	"github.com/kraklabs/repocanvas/pkg/pipeline"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
	"github.com/kraklabs/repocanvas/pkg/query"
)

// newLogger builds the CLI logger; --debug raises the level.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads configuration or exits with an input error.
func loadConfig(configPath string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		apperrors.FatalError(apperrors.NewInvalidInput(
			"Cannot load configuration",
			err.Error(),
			"Check the project YAML syntax and environment variables",
			err,
		), false)
	}
	return cfg
}

// buildPipeline wires the full parse/index pipeline from configuration.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, *fetch.Fetcher, error) {
	provider, err := embed.CreateProvider(cfg.EmbeddingProvider, cfg.ModelName, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding provider: %w", err)
	}
	embedder := embed.NewEmbedder(provider, cfg.EmbedWorkers, logger)
	client := qdrant.NewClient(cfg.QdrantURL, logger)
	fetcher := fetch.NewFetcher(cfg.TmpDir, logger)
	p := parser.NewParser(logger)

	return pipeline.New(fetcher, p, embedder, client, cfg.DataDir, logger), fetcher, nil
}

// qdrantClient creates the ANN index client from configuration.
func qdrantClient(cfg *config.Config, logger *slog.Logger) *qdrant.Client {
	return qdrant.NewClient(cfg.QdrantURL, logger)
}

// buildEngine wires the query engine over the persisted graph and journal.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*query.Engine, error) {
	store := graph.NewStore(logger)
	if err := store.Load(cfg.GraphPath()); err != nil {
		return nil, apperrors.NewNotFound(
			"No graph found",
			fmt.Sprintf("Could not load %s: %v", cfg.GraphPath(), err),
			"Run 'repocanvas parse' first",
			err,
		)
	}

	provider, err := embed.CreateProvider(cfg.EmbeddingProvider, cfg.ModelName, logger)
	if err != nil {
		return nil, err
	}
	embedder := embed.NewEmbedder(provider, cfg.EmbedWorkers, logger)
	client := qdrant.NewClient(cfg.QdrantURL, logger)

	var summarizer query.Summarizer
	if cfg.SummarizerURL != "" {
		summarizer = query.NewHTTPSummarizer(cfg.SummarizerURL, logger)
	}

	engine := query.NewEngine(store, embedder, client, summarizer, logger)

	// The journal's point map is the durable fallback for payloads that
	// lack a node id.
	if pointMap, err := journal.LoadPointMap(filepath.Join(cfg.DataDir, journal.MapFileName)); err == nil {
		engine.SetPointMap(pointMap)
	}
	return engine, nil
}
