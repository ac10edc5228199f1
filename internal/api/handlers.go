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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/kraklabs/repocanvas/internal/errors"
	"github.com/kraklabs/repocanvas/internal/jobs"
	"github.com/kraklabs/repocanvas/pkg/pipeline"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
	"github.com/kraklabs/repocanvas/pkg/query"
)

// queryTimeout bounds search/analyze end-to-end.
const queryTimeout = 30 * time.Second

// defaultTopK applies when a request omits top_k.
const defaultTopK = 10

// maxRequestBody bounds request payloads.
const maxRequestBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(apperrors.KindInvalidInput, "invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(apperrors.KindInvalidInput, err.Error()))
		return false
	}
	return true
}

// handleParse handles POST /parse.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	jobID := s.registry.Submit(jobs.KindParse, func(ctx context.Context, progress func(string)) (any, error) {
		progress("parsing repository")
		result, err := s.runner.Parse(ctx, pipeline.ParseOptions{
			RepoURL:    req.RepoURL,
			RepoPath:   req.RepoPath,
			Branch:     req.Branch,
			OutputPath: req.OutputPath,
		})
		if err != nil {
			return nil, err
		}
		progress("reloading graph")
		if err := s.store.Load(result.GraphPath); err != nil {
			return nil, err
		}
		return result, nil
	})

	writeJSON(w, http.StatusAccepted, JobAccepted{JobID: jobID, Status: "processing"})
}

// handleIndex handles POST /index.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	jobID := s.registry.Submit(jobs.KindIndex, func(ctx context.Context, progress func(string)) (any, error) {
		progress("indexing graph")
		return s.runner.Index(ctx, nil, pipeline.IndexOptions{
			Collection: req.Collection,
			GraphPath:  req.GraphPath,
			Recreate:   req.Recreate,
		})
	})

	writeJSON(w, http.StatusAccepted, JobAccepted{JobID: jobID, Status: "processing"})
}

// handleParseAndIndex handles POST /parse_and_index.
func (s *Server) handleParseAndIndex(w http.ResponseWriter, r *http.Request) {
	var req ParseAndIndexRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	jobID := s.registry.Submit(jobs.KindParseAndIndex, func(ctx context.Context, progress func(string)) (any, error) {
		progress("parsing and indexing repository")
		result, err := s.runner.ParseAndIndex(ctx,
			pipeline.ParseOptions{
				RepoURL:    req.RepoURL,
				RepoPath:   req.RepoPath,
				Branch:     req.Branch,
				OutputPath: req.OutputPath,
			},
			pipeline.IndexOptions{
				Collection: req.Collection,
				Recreate:   req.Recreate,
			},
		)
		if err != nil {
			return nil, err
		}
		progress("reloading graph")
		if err := s.store.Load(result.Parse.GraphPath); err != nil {
			return nil, err
		}
		return result, nil
	})

	writeJSON(w, http.StatusAccepted, JobAccepted{JobID: jobID, Status: "processing"})
}

// handleSearch handles POST /search synchronously under the query timeout.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	collection := req.Collection
	if collection == "" {
		collection = s.cfg.QdrantCollection
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	hits, err := s.searcher.Search(ctx, req.Query, req.TopK, collection)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if hits == nil {
		hits = []query.Hit{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results:      hits,
		Query:        req.Query,
		TotalResults: len(hits),
	})
}

// handleAnalyze handles POST /analyze synchronously under the query timeout.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	collection := req.Collection
	if collection == "" {
		collection = s.cfg.QdrantCollection
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	start := time.Now()
	answer, err := s.searcher.Analyze(ctx, req.Query, req.TopK, collection)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	resp := AnalyzeResponse{
		Answer:         answer,
		ProcessingTime: time.Since(start).Seconds(),
	}
	if req.IncludeFullGraph {
		resp.Graph = s.store.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus handles GET /status/{jobID}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	snap, ok := s.registry.Status(jobID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody(apperrors.KindNotFound, "unknown job id: "+jobID))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListJobs handles GET /jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// handleDeleteJob handles DELETE /jobs/{jobID}.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.registry.Delete(jobID) {
		writeJSON(w, http.StatusNotFound, errorBody(apperrors.KindNotFound, "unknown job id: "+jobID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleListCollections handles GET /collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	names, err := s.lister.ListCollections(ctx)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	summaries := make([]CollectionSummary, 0, len(names))
	for _, name := range names {
		info, err := s.lister.GetCollection(ctx, name)
		if err != nil {
			summaries = append(summaries, CollectionSummary{Name: name})
			continue
		}
		summaries = append(summaries, CollectionSummary{
			Name:        info.Name,
			Status:      info.Status,
			PointsCount: info.PointsCount,
			VectorSize:  info.VectorSize,
			Distance:    info.Distance,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": summaries, "total": len(summaries)})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		ActiveJobs:  s.registry.ActiveCount(),
		Environment: s.cfg.Environment,
	})
}

// writeQueryError translates engine errors into the structured envelope.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	switch {
	case errors.Is(err, qdrant.ErrUnavailable):
		kind = apperrors.KindIndexUnavailable
	case errors.Is(err, qdrant.ErrNotReady):
		kind = apperrors.KindIndexNotReady
	case errors.Is(err, context.DeadlineExceeded):
		kind = apperrors.KindTimeout
	}
	s.logger.Warn("api.query.error", "kind", string(kind), "err", err)
	writeJSON(w, statusForKind(kind), errorBody(kind, err.Error()))
}
