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
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/repocanvas/internal/api"
	"github.com/kraklabs/repocanvas/internal/config"
	apperrors "github.com/kraklabs/repocanvas/internal/errors"
	"github.com/kraklabs/repocanvas/internal/fetch"
	"github.com/kraklabs/repocanvas/internal/jobs"
	"github.com/kraklabs/repocanvas/pkg/embed"
	"github.com/kraklabs/repocanvas/pkg/graph"
	"github.com/kraklabs/repocanvas/pkg/journal"
	"github.com/kraklabs/repocanvas/pkg/parser"
	"github.com/kraklabs/repocanvas/pkg/pipeline"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
	"github.com/kraklabs/repocanvas/pkg/query"
)

// runServe executes the 'serve' command: the HTTP worker exposing the full
// service surface (parse/index jobs, search/analyze queries, job and
// collection management, health, and Prometheus metrics).
func runServe(args []string, configPath string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	host := fs.String("host", "", "Bind host (default from WORKER_HOST)")
	port := fs.Int("port", 0, "Bind port (default from WORKER_PORT)")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: repocanvas serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(apperrors.ExitInput)
	}

	logger := newLogger(*debug)
	cfg := loadConfig(configPath)
	if *host != "" {
		cfg.WorkerHost = *host
	}
	if *port > 0 {
		cfg.WorkerPort = *port
	}

	// Wire the collaborators. The graph store is shared between the query
	// engine and the parse jobs that reload it.
	provider, err := embed.CreateProvider(cfg.EmbeddingProvider, cfg.ModelName, logger)
	if err != nil {
		apperrors.FatalError(apperrors.NewInvalidInput("Cannot initialize embedding provider", err.Error(), "Check EMBEDDING_PROVIDER and MODEL_NAME", err), false)
	}
	embedder := embed.NewEmbedder(provider, cfg.EmbedWorkers, logger)
	client := qdrant.NewClient(cfg.QdrantURL, logger)
	fetcher := fetch.NewFetcher(cfg.TmpDir, logger)
	defer func() { _ = fetcher.Close() }()

	pipe := pipeline.New(fetcher, parser.NewParser(logger), embedder, client, cfg.DataDir, logger)
	registry := jobs.NewRegistry(config.JobWorkers(), logger)

	store := graph.NewStore(logger)
	if err := store.Load(cfg.GraphPath()); err != nil {
		logger.Warn("serve.graph.not_loaded", "path", cfg.GraphPath(), "err", err)
	}

	var summarizer query.Summarizer
	if cfg.SummarizerURL != "" {
		summarizer = query.NewHTTPSummarizer(cfg.SummarizerURL, logger)
	}
	engine := query.NewEngine(store, embedder, client, summarizer, logger)
	if pointMap, err := journal.LoadPointMap(filepath.Join(cfg.DataDir, journal.MapFileName)); err == nil {
		engine.SetPointMap(pointMap)
	}

	server := api.NewServer(cfg, registry, pipe, engine, client, store, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("serve.shutdown.start")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		close(done)
	}()

	logger.Info("serve.listen", "addr", cfg.ListenAddr(), "environment", cfg.Environment)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		apperrors.FatalError(apperrors.NewInternal("HTTP server failed", err), false)
	}
	<-done
	logger.Info("serve.shutdown.complete")
}
