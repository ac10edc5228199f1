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

// Package query implements the two externally visible read operations:
// semantic search over the vector index and answer-path analysis over the
// program graph. When the ANN structure is still building the search path
// degrades to a frozen keyword scan so queries keep answering.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"log/slog"

	"github.com/kraklabs/repocanvas/pkg/graph"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
)

// Frozen keyword-fallback scoring weights. Tests assert on these; do not
// tune them.
const (
	weightSnippet = 0.8
	weightDoc     = 0.7
	weightNodeID  = 0.6
	weightFile    = 0.4
)

// scrollLimit bounds the payload corpus fetched for the keyword fallback.
const scrollLimit = 1000

// Index is the slice of the ANN client the engine consumes.
type Index interface {
	Search(ctx context.Context, name string, vector []float32, k int) ([]qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, name string, limit int) ([]qdrant.Point, error)
}

// Embedder is the slice of the embedding layer the engine consumes.
type Embedder interface {
	EmbedOne(ctx context.Context, doc string) ([]float32, error)
}

// Hit is one semantic search result.
type Hit struct {
	NodeID    string  `json:"node_id"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
	File      string  `json:"file"`
	StartLine int     `json:"start_line"`
}

// Snippet is the code excerpt for one answer-path node.
type Snippet struct {
	NodeID    string `json:"node_id"`
	Code      string `json:"code"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Doc       string `json:"doc"`
}

// PathEdge is an answer-path edge reported with its original direction.
type PathEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Answer is the analyze result. Given the same graph, embedder, and index
// state it marshals byte-identically.
type Answer struct {
	AnswerPath []string  `json:"answer_path"`
	PathEdges  []PathEdge `json:"path_edges"`
	Snippets   []Snippet `json:"snippets"`
	Summary    Summary   `json:"summary"`
}

// Engine wires the embedder, the index client, the graph store, and the
// optional summarizer collaborator.
type Engine struct {
	graph      *graph.Store
	embedder   Embedder
	index      Index
	summarizer Summarizer
	logger     *slog.Logger

	// pointMap translates hits whose payload lacks a node id; loaded from
	// the journal by the caller. May be nil.
	pointMap map[uint64]string
}

// NewEngine creates a query engine. summarizer may be nil; the structured
// summary stub is always produced locally.
func NewEngine(store *graph.Store, embedder Embedder, index Index, summarizer Summarizer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		graph:      store,
		embedder:   embedder,
		index:      index,
		summarizer: summarizer,
		logger:     logger,
	}
}

// SetPointMap installs the journal's point→node mapping as the durable
// fallback for payloads missing a node id.
func (e *Engine) SetPointMap(m map[uint64]string) { e.pointMap = m }

// Search embeds the query and returns the top-k hits from the collection,
// in non-increasing score order. An index that is still building degrades
// to the keyword scan; an unavailable index surfaces the error to the
// caller's retry policy.
func (e *Engine) Search(ctx context.Context, queryText string, k int, collection string) ([]Hit, error) {
	vector, err := e.embedder.EmbedOne(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := e.index.Search(ctx, collection, vector, k)
	if err != nil {
		if errors.Is(err, qdrant.ErrNotReady) {
			e.logger.Warn("query.search.degraded", "collection", collection, "reason", "index_not_ready")
			return e.keywordFallback(ctx, queryText, k, collection)
		}
		return nil, err
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, e.hitFromPayload(p.ID, p.Score, p.Payload))
	}
	return hits, nil
}

// keywordFallback scores the scrolled payload corpus with the frozen
// substring rule and returns the top-k, scores in [0,1].
func (e *Engine) keywordFallback(ctx context.Context, queryText string, k int, collection string) ([]Hit, error) {
	points, err := e.index.Scroll(ctx, collection, scrollLimit)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(queryText)
	var hits []Hit
	for _, p := range points {
		score := 0.0
		if strings.Contains(strings.ToLower(p.Payload.Snippet), needle) {
			score += weightSnippet
		}
		if strings.Contains(strings.ToLower(p.Payload.Doc), needle) {
			score += weightDoc
		}
		if strings.Contains(strings.ToLower(p.Payload.NodeID), needle) {
			score += weightNodeID
		}
		if strings.Contains(strings.ToLower(p.Payload.File), needle) {
			score += weightFile
		}
		if score == 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		hits = append(hits, e.hitFromPayload(p.ID, score, p.Payload))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].NodeID < hits[j].NodeID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (e *Engine) hitFromPayload(pointID uint64, score float64, p qdrant.Payload) Hit {
	nodeID := p.NodeID
	if nodeID == "" && e.pointMap != nil {
		nodeID = e.pointMap[pointID]
	}
	return Hit{
		NodeID:    nodeID,
		Score:     score,
		Snippet:   p.Snippet,
		File:      p.File,
		StartLine: p.StartLine,
	}
}

// Analyze runs search, connects the hits through the graph's undirected
// projection, and assembles snippets plus the structured summary.
func (e *Engine) Analyze(ctx context.Context, queryText string, k int, collection string) (*Answer, error) {
	hits, err := e.Search(ctx, queryText, k, collection)
	if err != nil {
		return nil, err
	}

	// Keep only hits present in the graph, preserving rank order.
	var hitIDs []string
	seen := make(map[string]bool)
	for _, h := range hits {
		if h.NodeID == "" || seen[h.NodeID] {
			continue
		}
		if _, ok := e.graph.Node(h.NodeID); ok {
			hitIDs = append(hitIDs, h.NodeID)
			seen[h.NodeID] = true
		}
	}
	if len(hitIDs) == 0 {
		return nil, fmt.Errorf("no search hits resolve to graph nodes")
	}

	var pathNodes []string
	pathEdges := []PathEdge{}
	if len(hitIDs) == 1 {
		pathNodes = hitIDs
	} else {
		idSet := make(map[string]bool, len(hitIDs))
		for _, id := range hitIDs {
			idSet[id] = true
		}
		nodes, edges, ok := e.graph.ShortestPath(idSet, idSet)
		if ok {
			pathNodes = nodes
			for _, ed := range edges {
				pathEdges = append(pathEdges, PathEdge{Source: ed.Source, Target: ed.Target, Type: string(ed.Type)})
			}
		} else {
			// No pair of hits is connected; answer with the top hit alone.
			pathNodes = hitIDs[:1]
		}
	}

	snippets := make([]Snippet, 0, len(pathNodes))
	for _, id := range pathNodes {
		n, ok := e.graph.Node(id)
		if !ok {
			continue
		}
		snippets = append(snippets, Snippet{
			NodeID:    n.ID,
			Code:      n.Code,
			File:      n.File,
			StartLine: n.StartLine,
			EndLine:   n.EndLine,
			Doc:       n.Doc,
		})
	}

	summary := e.summarize(ctx, queryText, pathNodes, snippets)

	return &Answer{
		AnswerPath: pathNodes,
		PathEdges:  pathEdges,
		Snippets:   snippets,
		Summary:    summary,
	}, nil
}

// summarize delegates to the external summarizer when configured and
// reachable, and always falls back to the local structured stub.
func (e *Engine) summarize(ctx context.Context, queryText string, pathNodes []string, snippets []Snippet) Summary {
	if e.summarizer != nil {
		if s, err := e.summarizer.Summarize(ctx, queryText, snippets); err == nil {
			return *s
		} else {
			e.logger.Warn("query.summarizer.unreachable", "err", err)
		}
	}
	return e.stubSummary(queryText, pathNodes, snippets)
}
