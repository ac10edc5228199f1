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

// Package api binds the service surface to HTTP. Long operations return a
// job id immediately and run on the job registry's worker pool; queries run
// a bounded synchronous pipeline on the calling goroutine. Handlers and
// workers communicate only through the registry.
package api

import (
	"context"

	"log/slog"

	"github.com/kraklabs/repocanvas/internal/config"
	"github.com/kraklabs/repocanvas/internal/jobs"
	"github.com/kraklabs/repocanvas/pkg/graph"
	"github.com/kraklabs/repocanvas/pkg/pipeline"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
	"github.com/kraklabs/repocanvas/pkg/query"
)

// Runner is the slice of the pipeline the handlers consume.
type Runner interface {
	Parse(ctx context.Context, opts pipeline.ParseOptions) (*pipeline.ParseResult, error)
	Index(ctx context.Context, store *graph.Store, opts pipeline.IndexOptions) (*pipeline.IndexResult, error)
	ParseAndIndex(ctx context.Context, parseOpts pipeline.ParseOptions, indexOpts pipeline.IndexOptions) (*pipeline.ParseAndIndexResult, error)
}

// Searcher is the slice of the query engine the handlers consume.
type Searcher interface {
	Search(ctx context.Context, queryText string, k int, collection string) ([]query.Hit, error)
	Analyze(ctx context.Context, queryText string, k int, collection string) (*query.Answer, error)
}

// CollectionLister is the slice of the index client the handlers consume.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
	GetCollection(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
}

// Server holds the wired collaborators behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *jobs.Registry
	runner   Runner
	searcher Searcher
	lister   CollectionLister
	store    *graph.Store
}

// NewServer wires the service. store is the shared in-memory graph the
// query engine reads; parse jobs reload it after a successful save.
func NewServer(cfg *config.Config, registry *jobs.Registry, runner Runner, searcher Searcher, lister CollectionLister, store *graph.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		runner:   runner,
		searcher: searcher,
		lister:   lister,
		store:    store,
	}
}
