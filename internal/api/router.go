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
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a chi router with the service surface mounted.
func (s *Server) NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Long-running operations; return a job id immediately.
	r.Post("/parse", s.handleParse)
	r.Post("/index", s.handleIndex)
	r.Post("/parse_and_index", s.handleParseAndIndex)

	// Synchronous query pipeline.
	r.Post("/search", s.handleSearch)
	r.Post("/analyze", s.handleAnalyze)

	// Job management.
	r.Get("/status/{jobID}", s.handleStatus)
	r.Get("/jobs", s.handleListJobs)
	r.Delete("/jobs/{jobID}", s.handleDeleteJob)

	// External index state.
	r.Get("/collections", s.handleListCollections)

	// Operational surfaces.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
