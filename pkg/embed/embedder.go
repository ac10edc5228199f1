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

// Package embed turns program nodes into document strings and dense,
// unit-normalized vectors via pluggable embedding providers.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultWorkers is the embedding worker pool size.
const DefaultWorkers = 4

// cacheSize bounds the in-process document → vector cache.
const cacheSize = 4096

// Embedder generates embeddings for document batches with a worker pool,
// classified retry, and an LRU cache keyed by document hash so re-indexing
// the same snapshot skips recomputation.
type Embedder struct {
	provider Provider
	workers  int
	logger   *slog.Logger
	cache    *lru.Cache[string, []float32]
	retry    RetryConfig
}

// RetryConfig controls backoff for transient provider failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// NewEmbedder creates an embedder over the given provider.
func NewEmbedder(provider Provider, workers int, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &Embedder{
		provider: provider,
		workers:  workers,
		logger:   logger,
		cache:    cache,
		retry:    RetryConfig{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2.0},
	}
}

// Model returns the provider's model name.
func (e *Embedder) Model() string { return e.provider.Model() }

// Dimension returns the provider's output width.
func (e *Embedder) Dimension() int { return e.provider.Dimension() }

// Embed generates one vector per document, rows matching input order.
// Individual failures produce empty rows rather than aborting the batch;
// ErrorCount on the result reports how many.
func (e *Embedder) Embed(ctx context.Context, docs []string) (*Result, error) {
	if len(docs) == 0 {
		return &Result{}, nil
	}
	if e.workers <= 1 || len(docs) < 4 {
		return e.embedSequential(ctx, docs)
	}
	return e.embedParallel(ctx, docs)
}

// EmbedOne embeds a single document (query embedding path).
func (e *Embedder) EmbedOne(ctx context.Context, doc string) ([]float32, error) {
	vec, err := e.embedWithRetry(ctx, doc)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Result holds the vector matrix plus error accounting.
type Result struct {
	Vectors    [][]float32
	ErrorCount int
}

func (e *Embedder) embedSequential(ctx context.Context, docs []string) (*Result, error) {
	vectors := make([][]float32, len(docs))
	errorCount := 0

	for i, doc := range docs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vec, err := e.embedWithRetry(ctx, doc)
		if err != nil {
			errorCount++
			vec = []float32{}
		}
		vectors[i] = vec
	}

	if errorCount > 0 {
		e.logger.Info("embed.summary", "total_docs", len(docs), "errors", errorCount)
	}
	return &Result{Vectors: vectors, ErrorCount: errorCount}, nil
}

func (e *Embedder) embedParallel(ctx context.Context, docs []string) (*Result, error) {
	vectors := make([][]float32, len(docs))
	var errorCount int32

	jobs := make(chan int, len(docs))
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				vec, err := e.embedWithRetry(ctx, docs[i])
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
					vec = []float32{}
				}
				vectors[i] = vec
			}
		}()
	}

	for i := range docs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	errCount := int(errorCount)
	if errCount > 0 {
		e.logger.Info("embed.summary",
			"total_docs", len(docs),
			"errors", errCount,
			"workers", e.workers,
		)
	}
	return &Result{Vectors: vectors, ErrorCount: errCount}, nil
}

// embedWithRetry embeds one document with classified retry and jittered
// backoff, consulting the cache first.
func (e *Embedder) embedWithRetry(ctx context.Context, doc string) ([]float32, error) {
	key := docKey(doc)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	var embedding []float32
	var err error
	for attempt := 0; attempt < e.retry.MaxRetries; attempt++ {
		embedding, err = e.provider.Embed(ctx, doc)
		if err == nil {
			break
		}
		if !isRetryableError(err) || attempt == e.retry.MaxRetries-1 {
			break
		}
		sleep := backoffWithJitter(e.retry.InitialBackoff, attempt, e.retry.Multiplier, e.retry.MaxBackoff)
		e.logger.Warn("embed.retry", "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}

	e.cache.Add(key, embedding)
	return embedding, nil
}

func docKey(doc string) string {
	sum := sha256.Sum256([]byte(doc))
	return hex.EncodeToString(sum[:16])
}

// isRetryableError classifies provider errors: network/timeout errors and
// HTTP 429, 500, 502, 503 and 504 are retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range []string{"status 429", "status 500", "status 502", "status 503", "status 504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// backoffWithJitter returns exponential backoff with full jitter.
func backoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	if d <= 0 {
		return base
	}
	return time.Duration(randInt63n(int64(d) + 1))
}

var randMu sync.Mutex
var randSeed int64

// randInt63n returns [0,n) from a simple LCG, enough for backoff jitter
// without pulling math/rand into the hot path.
func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	randMu.Lock()
	defer randMu.Unlock()
	const a = 6364136223846793005
	const c = 1
	const m = 1<<63 - 1
	if randSeed == 0 {
		randSeed = time.Now().UnixNano() & m
	}
	randSeed = (a*randSeed + c) & m
	if randSeed < 0 {
		randSeed = -randSeed
	}
	return randSeed % n
}
