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
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/kraklabs/repocanvas/internal/fetch"
	"github.com/kraklabs/repocanvas/pkg/query"
)

// ParseRequest starts a parse job from a remote URL or a local path.
type ParseRequest struct {
	RepoURL    string `json:"repo_url,omitempty"`
	RepoPath   string `json:"repo_path,omitempty"`
	Branch     string `json:"branch,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}

// Validate enforces the request contract.
func (r ParseRequest) Validate() error {
	if r.RepoURL == "" && r.RepoPath == "" {
		return fmt.Errorf("either repo_url or repo_path is required")
	}
	if r.RepoURL != "" && r.RepoPath != "" {
		return fmt.Errorf("repo_url and repo_path are mutually exclusive")
	}
	if r.RepoURL != "" {
		if err := fetch.ValidateGitURL(r.RepoURL); err != nil {
			return err
		}
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Branch, validation.Length(0, 200)),
		validation.Field(&r.OutputPath, validation.Length(0, 4096)),
	)
}

// IndexRequest starts an index job over a previously persisted graph.
type IndexRequest struct {
	Collection string `json:"collection"`
	GraphPath  string `json:"graph_path,omitempty"`
	Recreate   bool   `json:"recreate"`
}

// Validate enforces the request contract.
func (r IndexRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Collection, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.GraphPath, validation.Length(0, 4096)),
	)
}

// ParseAndIndexRequest merges ParseRequest and IndexRequest.
type ParseAndIndexRequest struct {
	ParseRequest
	Collection string `json:"collection"`
	Recreate   bool   `json:"recreate"`
}

// Validate enforces both contracts.
func (r ParseAndIndexRequest) Validate() error {
	if err := r.ParseRequest.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Collection, validation.Required, validation.Length(1, 255)),
	)
}

// SearchRequest runs a synchronous semantic search.
type SearchRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
	Collection string `json:"collection,omitempty"`
}

// Validate enforces the request contract.
func (r SearchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required, validation.Length(1, 500)),
		validation.Field(&r.TopK, validation.Min(0), validation.Max(50)),
	)
}

// AnalyzeRequest runs a synchronous answer-path analysis.
type AnalyzeRequest struct {
	SearchRequest
	IncludeFullGraph bool `json:"include_full_graph,omitempty"`
}

// JobAccepted acknowledges a submitted job.
type JobAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Results      []query.Hit `json:"results"`
	Query        string      `json:"query"`
	TotalResults int         `json:"total_results"`
}

// AnalyzeResponse wraps the answer with timing and the optional full graph.
type AnalyzeResponse struct {
	*query.Answer
	ProcessingTime float64 `json:"processing_time"`
	Graph          any     `json:"graph,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	ActiveJobs  int    `json:"active_jobs"`
	Environment string `json:"environment"`
}

// CollectionSummary is one entry of the collections listing.
type CollectionSummary struct {
	Name        string `json:"name"`
	Status      string `json:"status,omitempty"`
	PointsCount uint64 `json:"points_count,omitempty"`
	VectorSize  int    `json:"vector_size,omitempty"`
	Distance    string `json:"distance,omitempty"`
}
