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

// Package pipeline orchestrates the long-running operations: parse
// (fetch → parse → annotate → persist graph) and index (load graph →
// documents → embeddings → upsert → journal). Each phase runs under its
// own timeout; transient index failures are retried with bounded backoff.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/kraklabs/repocanvas/pkg/embed"
	"github.com/kraklabs/repocanvas/pkg/graph"
	"github.com/kraklabs/repocanvas/pkg/journal"
	"github.com/kraklabs/repocanvas/pkg/parser"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
)

// Per-phase timeouts. Parse is CPU-bound and unbounded.
const (
	FetchTimeout  = 120 * time.Second
	EmbedTimeout  = 600 * time.Second
	UpsertTimeout = 300 * time.Second
)

// payloadSnippetCap bounds the code excerpt stored in point payloads.
const payloadSnippetCap = 500

// indexRetrySchedule is the backoff for ErrUnavailable.
var indexRetrySchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Fetcher clones a remote repository and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, branch string) (string, error)
}

// IndexClient is the slice of the ANN client the pipeline consumes.
type IndexClient interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int, recreate bool) error
	Upsert(ctx context.Context, name string, points []qdrant.Point) (int, error)
	Count(ctx context.Context, name string) (uint64, error)
}

// Pipeline runs the parse and index flows.
type Pipeline struct {
	logger   *slog.Logger
	fetcher  Fetcher
	parser   *parser.Parser
	embedder *embed.Embedder
	client   IndexClient
	dataDir  string
}

// New creates a pipeline. fetcher may be nil when only local paths are
// parsed.
func New(fetcher Fetcher, p *parser.Parser, e *embed.Embedder, client IndexClient, dataDir string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	metrics.init()
	return &Pipeline{
		logger:   logger,
		fetcher:  fetcher,
		parser:   p,
		embedder: e,
		client:   client,
		dataDir:  dataDir,
	}
}

// ParseOptions selects the repository and output location for a parse run.
type ParseOptions struct {
	RepoURL    string
	RepoPath   string
	Branch     string
	OutputPath string // graph.json destination; defaults under the data dir
}

// ParseResult summarizes a parse run.
type ParseResult struct {
	GraphPath      string         `json:"graph_path"`
	NodeCount      int            `json:"node_count"`
	EdgeCount      int            `json:"edge_count"`
	FilesProcessed int            `json:"files_processed"`
	ParseErrors    int            `json:"parse_errors"`
	Languages      map[string]int `json:"languages"`
	DurationMs     int64          `json:"duration_ms"`
}

// Parse fetches (when a URL is given), parses, annotates, and persists the
// graph. The graph write is atomic; a cancellation before the rename leaves
// no final-name artifact.
func (p *Pipeline) Parse(ctx context.Context, opts ParseOptions) (*ParseResult, error) {
	start := time.Now()

	root := opts.RepoPath
	if opts.RepoURL != "" {
		if p.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for repo_url")
		}
		fetchCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
		defer cancel()
		fetchStart := time.Now()
		fetched, err := p.fetcher.Fetch(fetchCtx, opts.RepoURL, opts.Branch)
		metrics.fetchDuration.Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			return nil, fmt.Errorf("fetch repository: %w", err)
		}
		root = fetched
	}
	if root == "" {
		return nil, fmt.Errorf("either repo_url or repo_path is required")
	}

	parseStart := time.Now()
	result, err := p.parser.ParseRepository(root)
	metrics.parseDuration.Observe(time.Since(parseStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("parse repository: %w", err)
	}
	metrics.nodesParsed.Add(float64(result.Store.NodeCount()))
	metrics.parseErrors.Add(float64(result.ParseErrors))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(p.dataDir, "graph.json")
	}
	if err := result.Store.Save(outputPath); err != nil {
		return nil, fmt.Errorf("save graph: %w", err)
	}

	return &ParseResult{
		GraphPath:      outputPath,
		NodeCount:      result.Store.NodeCount(),
		EdgeCount:      result.Store.EdgeCount(),
		FilesProcessed: result.FilesProcessed,
		ParseErrors:    result.ParseErrors,
		Languages:      result.Languages,
		DurationMs:     time.Since(start).Milliseconds(),
	}, nil
}

// IndexOptions selects the graph and target collection for an index run.
type IndexOptions struct {
	Collection string
	GraphPath  string // defaults to the data dir's graph.json
	Recreate   bool
}

// IndexResult summarizes an index run.
type IndexResult struct {
	Collection  string `json:"collection"`
	Model       string `json:"model"`
	VectorSize  int    `json:"vector_size"`
	PointsCount int    `json:"points_count"`
	EmbedErrors int    `json:"embed_errors"`
	Status      string `json:"status"`
	DurationMs  int64  `json:"duration_ms"`
}

// Index loads the graph, embeds every node document, upserts the vectors,
// and journals the point↔node mapping plus the status snapshot. Point ids
// are dense positive integers assigned in node order, so re-indexing the
// same snapshot is idempotent.
func (p *Pipeline) Index(ctx context.Context, store *graph.Store, opts IndexOptions) (*IndexResult, error) {
	start := time.Now()

	if store == nil {
		graphPath := opts.GraphPath
		if graphPath == "" {
			graphPath = filepath.Join(p.dataDir, "graph.json")
		}
		store = graph.NewStore(p.logger)
		if err := store.Load(graphPath); err != nil {
			return nil, fmt.Errorf("load graph: %w", err)
		}
	}

	nodes := store.Nodes()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes to index")
	}

	// Phase: embed.
	docs := embed.MakeDocuments(nodes)
	embedCtx, cancelEmbed := context.WithTimeout(ctx, EmbedTimeout)
	defer cancelEmbed()

	embedStart := time.Now()
	embedResult, err := p.embedder.Embed(embedCtx, docs)
	if err != nil {
		// One retry on embedding failure, then the job fails.
		p.logger.Warn("index.embed.retry", "err", err)
		embedResult, err = p.embedder.Embed(embedCtx, docs)
	}
	metrics.embedDuration.Observe(time.Since(embedStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	metrics.embedsComputed.Add(float64(len(embedResult.Vectors)))
	metrics.embedErrors.Add(float64(embedResult.ErrorCount))

	vectorSize := 0
	for _, v := range embedResult.Vectors {
		if len(v) > 0 {
			vectorSize = len(v)
			break
		}
	}
	if vectorSize == 0 {
		return nil, fmt.Errorf("all embeddings failed")
	}

	// Phase: upsert. Points get dense ids starting at 1 in node order.
	points := make([]qdrant.Point, 0, len(nodes))
	pointMap := make(map[uint64]string, len(nodes))
	for i, n := range nodes {
		vec := embedResult.Vectors[i]
		if len(vec) == 0 {
			continue // embedding failed for this node
		}
		pointID := uint64(len(points) + 1)
		pointMap[pointID] = n.ID
		points = append(points, qdrant.Point{
			ID:     pointID,
			Vector: vec,
			Payload: qdrant.Payload{
				NodeID:    n.ID,
				Name:      n.Name,
				Snippet:   truncateSnippet(n.Code),
				File:      n.File,
				StartLine: n.StartLine,
				EndLine:   n.EndLine,
				Doc:       n.Doc,
			},
		})
	}

	upsertCtx, cancelUpsert := context.WithTimeout(ctx, UpsertTimeout)
	defer cancelUpsert()

	upsertStart := time.Now()
	written, err := p.withIndexRetry(upsertCtx, func() error {
		if err := p.client.EnsureCollection(upsertCtx, opts.Collection, vectorSize, opts.Recreate); err != nil {
			return err
		}
		_, err := p.client.Upsert(upsertCtx, opts.Collection, points)
		return err
	}, len(points))
	metrics.upsertDuration.Observe(time.Since(upsertStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("upsert points: %w", err)
	}
	metrics.pointsUpserted.Add(float64(written))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase: journal. Both sidecars are atomic; they only exist after a
	// successful upsert.
	status := journal.StatusCompleted
	if embedResult.ErrorCount > 0 {
		status = journal.StatusPartial
	}
	if err := journal.WritePointMap(filepath.Join(p.dataDir, journal.MapFileName), pointMap); err != nil {
		return nil, fmt.Errorf("write point map: %w", err)
	}
	if err := journal.WriteStatus(filepath.Join(p.dataDir, journal.StatusFileName), journal.Status{
		Collection:  opts.Collection,
		Model:       p.embedder.Model(),
		VectorSize:  vectorSize,
		Distance:    qdrant.DistanceCosine,
		PointsCount: written,
		Status:      status,
	}); err != nil {
		return nil, fmt.Errorf("write index status: %w", err)
	}

	p.logger.Info("index.complete",
		"collection", opts.Collection,
		"points", written,
		"vector_size", vectorSize,
		"embed_errors", embedResult.ErrorCount,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &IndexResult{
		Collection:  opts.Collection,
		Model:       p.embedder.Model(),
		VectorSize:  vectorSize,
		PointsCount: written,
		EmbedErrors: embedResult.ErrorCount,
		Status:      status,
		DurationMs:  time.Since(start).Milliseconds(),
	}, nil
}

// ParseAndIndexResult combines both phases' summaries.
type ParseAndIndexResult struct {
	Parse *ParseResult `json:"parse"`
	Index *IndexResult `json:"index"`
}

// ParseAndIndex runs the full pipeline: it parses, reloads the graph.json
// that Parse wrote, and indexes that graph.
func (p *Pipeline) ParseAndIndex(ctx context.Context, parseOpts ParseOptions, indexOpts IndexOptions) (*ParseAndIndexResult, error) {
	parseResult, err := p.Parse(ctx, parseOpts)
	if err != nil {
		return nil, err
	}

	store := graph.NewStore(p.logger)
	if err := store.Load(parseResult.GraphPath); err != nil {
		return nil, fmt.Errorf("reload graph: %w", err)
	}
	indexOpts.GraphPath = parseResult.GraphPath

	indexResult, err := p.Index(ctx, store, indexOpts)
	if err != nil {
		return nil, err
	}
	return &ParseAndIndexResult{Parse: parseResult, Index: indexResult}, nil
}

// withIndexRetry runs fn, retrying ErrUnavailable on the fixed 1s/2s/4s
// schedule. ErrNotReady from an indexer's perspective is success: the
// vectors were accepted.
func (p *Pipeline) withIndexRetry(ctx context.Context, fn func() error, pointCount int) (int, error) {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return pointCount, nil
		}
		if errors.Is(err, qdrant.ErrNotReady) {
			p.logger.Info("index.upsert.not_ready_accepted", "points", pointCount)
			return pointCount, nil
		}
		if !errors.Is(err, qdrant.ErrUnavailable) || attempt >= len(indexRetrySchedule) {
			return 0, err
		}
		sleep := indexRetrySchedule[attempt]
		recordIndexRetry()
		p.logger.Warn("index.upsert.retry", "attempt", attempt+1, "sleep", sleep.String(), "err", err)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func truncateSnippet(code string) string {
	if len(code) <= payloadSnippetCap {
		return code
	}
	return strings.TrimRight(code[:payloadSnippetCap], "\n") + "..."
}
