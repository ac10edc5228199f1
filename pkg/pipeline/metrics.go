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

package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// pipelineMetrics holds Prometheus metrics for the pipeline subsystem.
type pipelineMetrics struct {
	once sync.Once

	nodesParsed    prometheus.Counter
	parseErrors    prometheus.Counter
	embedsComputed prometheus.Counter
	embedErrors    prometheus.Counter
	pointsUpserted prometheus.Counter
	indexRetries   prometheus.Counter

	fetchDuration  prometheus.Histogram
	parseDuration  prometheus.Histogram
	embedDuration  prometheus.Histogram
	upsertDuration prometheus.Histogram
}

var metrics pipelineMetrics

func (m *pipelineMetrics) init() {
	m.once.Do(func() {
		m.nodesParsed = prometheus.NewCounter(prometheus.CounterOpts{Name: "repocanvas_nodes_parsed_total", Help: "Program nodes extracted from repositories"})
		m.parseErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "repocanvas_parse_errors_total", Help: "Files that failed to parse"})
		m.embedsComputed = prometheus.NewCounter(prometheus.CounterOpts{Name: "repocanvas_embeddings_computed_total", Help: "Embedding vectors computed"})
		m.embedErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "repocanvas_embedding_errors_total", Help: "Embedding provider errors"})
		m.pointsUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "repocanvas_points_upserted_total", Help: "Points written to the vector index"})
		m.indexRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "repocanvas_index_retries_total", Help: "Retried vector index requests"})

		buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
		m.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "repocanvas_fetch_seconds", Help: "Repository fetch duration", Buckets: buckets})
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "repocanvas_parse_seconds", Help: "Repository parse duration", Buckets: buckets})
		m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "repocanvas_embed_seconds", Help: "Embedding generation duration", Buckets: buckets})
		m.upsertDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "repocanvas_upsert_seconds", Help: "Vector index upsert duration", Buckets: buckets})

		prometheus.MustRegister(
			m.nodesParsed, m.parseErrors,
			m.embedsComputed, m.embedErrors,
			m.pointsUpserted, m.indexRetries,
			m.fetchDuration, m.parseDuration, m.embedDuration, m.upsertDuration,
		)
	})
}

func recordIndexRetry() { metrics.init(); metrics.indexRetries.Inc() }
