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

// Package qdrant is a narrow, synchronous HTTP client over the external
// vector index. It covers exactly the operations the pipeline and query
// engine consume: collection lifecycle, batched upsert, search, count, and
// payload scrolling for the degraded keyword path.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

// Sentinel errors for the failure semantics higher layers retry on.
var (
	// ErrUnavailable signals connection/timeout failures reaching the index.
	ErrUnavailable = errors.New("index unavailable")

	// ErrNotReady signals the collection accepted vectors but its ANN
	// structure is still building.
	ErrNotReady = errors.New("index not ready")
)

// DistanceCosine is the only distance metric this system uses.
const DistanceCosine = "Cosine"

// upsertBatchSize bounds one upsert request.
const upsertBatchSize = 100

// Payload carries the node fields needed to render a search result without
// loading the graph.
type Payload struct {
	NodeID    string `json:"node_id"`
	Name      string `json:"name"`
	Snippet   string `json:"snippet"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Doc       string `json:"doc"`
}

// Point is one vector entry with its numeric id and payload.
type Point struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a search hit ordered by descending cosine similarity.
type ScoredPoint struct {
	ID      uint64  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// CollectionInfo summarizes one collection's state.
type CollectionInfo struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	PointsCount uint64 `json:"points_count"`
	VectorSize  int    `json:"vector_size"`
	Distance    string `json:"distance"`
}

// Client is the HTTP client. It is safe for concurrent use; the underlying
// http.Client pools and bounds connections.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the index at baseURL
// (e.g. http://localhost:6333).
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// EnsureCollection creates the collection with the given dimension and
// cosine distance. With recreate, any existing collection of the same name
// is deleted first; without it, an existing collection is left as-is.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int, recreate bool) error {
	if recreate {
		if err := c.DeleteCollection(ctx, name); err != nil && !errors.Is(err, errNotFound) {
			return err
		}
	} else {
		exists, err := c.collectionExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": DistanceCosine,
		},
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/collections/"+name, body, &out); err != nil {
		return err
	}
	c.logger.Info("qdrant.collection.ensured", "collection", name, "vector_size", vectorSize, "recreate", recreate)
	return nil
}

// Upsert writes points in internal batches. The operation is idempotent on
// point id: re-upserting the same ids overwrites in place. Returns the
// total number of points written.
func (c *Client) Upsert(ctx context.Context, name string, points []Point) (int, error) {
	written := 0
	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]

		body := map[string]any{"points": batch}
		var out json.RawMessage
		if err := c.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, &out); err != nil {
			return written, err
		}
		written += len(batch)
		c.logger.Debug("qdrant.upsert.batch", "collection", name, "batch_size", len(batch), "written", written)
	}
	c.logger.Info("qdrant.upsert.complete", "collection", name, "points", written)
	return written, nil
}

// Search returns the top-k most similar points, ordered by descending
// cosine similarity score.
func (c *Client) Search(ctx context.Context, name string, vector []float32, k int) ([]ScoredPoint, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var result []ScoredPoint
	if err := c.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Scroll lists up to limit points with payloads, without vectors. This is
// the listing capability the keyword-scan fallback consumes.
func (c *Client) Scroll(ctx context.Context, name string, limit int) ([]Point, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	var result struct {
		Points []Point `json:"points"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+name+"/points/scroll", body, &result); err != nil {
		return nil, err
	}
	return result.Points, nil
}

// Count returns the exact number of points in the collection.
func (c *Client) Count(ctx context.Context, name string) (uint64, error) {
	body := map[string]any{"exact": true}
	var result struct {
		Count uint64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+name+"/points/count", body, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Collections))
	for _, col := range result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// GetCollection returns status details for one collection.
func (c *Client) GetCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	var result struct {
		Status      string `json:"status"`
		PointsCount uint64 `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &result); err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:        name,
		Status:      result.Status,
		PointsCount: result.PointsCount,
		VectorSize:  result.Config.Params.Vectors.Size,
		Distance:    result.Config.Params.Vectors.Distance,
	}, nil
}

// DeleteCollection removes a collection; explicit cleanup after cancelled
// upserts goes through here.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	var out json.RawMessage
	return c.do(ctx, http.MethodDelete, "/collections/"+name, nil, &out)
}

func (c *Client) collectionExists(ctx context.Context, name string) (bool, error) {
	names, err := c.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

var errNotFound = errors.New("collection not found")

// qdrantEnvelope is the standard {result, status, time} response wrapper.
type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// do executes one request, mapping transport failures to ErrUnavailable and
// 503 responses to ErrNotReady per the failure semantics contract.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused, timeouts, DNS failures: all unavailable.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: status 503: %s", ErrNotReady, truncateBody(data))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errNotFound, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncateBody(data))
	case resp.StatusCode >= 400:
		return fmt.Errorf("index request failed (status %d): %s", resp.StatusCode, truncateBody(data))
	}

	if out == nil {
		return nil
	}
	var envelope qdrantEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("parse response envelope: %w", err)
	}
	if len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("parse response result: %w", err)
	}
	return nil
}

func truncateBody(data []byte) string {
	const limit = 256
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
