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

package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQdrant is a minimal in-memory stand-in for the REST surface the
// client touches.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string][]Point
	upsertSizes []int
	notReady    bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: make(map[string][]Point)}
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var cols []map[string]string
		for name := range f.collections {
			cols = append(cols, map[string]string{"name": name})
		}
		writeResult(w, map[string]any{"collections": cols})
	})

	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.collections[r.PathValue("name")] = nil
		writeResult(w, true)
	})

	mux.HandleFunc("DELETE /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := r.PathValue("name")
		if _, ok := f.collections[name]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		delete(f.collections, name)
		writeResult(w, true)
	})

	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []Point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		name := r.PathValue("name")
		f.upsertSizes = append(f.upsertSizes, len(body.Points))

		// Idempotent on point id.
		existing := make(map[uint64]int)
		for i, p := range f.collections[name] {
			existing[p.ID] = i
		}
		for _, p := range body.Points {
			if i, ok := existing[p.ID]; ok {
				f.collections[name][i] = p
			} else {
				f.collections[name] = append(f.collections[name], p)
			}
		}
		writeResult(w, map[string]string{"status": "acknowledged"})
	})

	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		notReady := f.notReady
		points := f.collections[r.PathValue("name")]
		f.mu.Unlock()

		if notReady {
			http.Error(w, "optimizing", http.StatusServiceUnavailable)
			return
		}

		var body struct {
			Limit int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		var scored []ScoredPoint
		for i, p := range points {
			if i >= body.Limit {
				break
			}
			scored = append(scored, ScoredPoint{ID: p.ID, Score: 1.0 - float64(i)*0.1, Payload: p.Payload})
		}
		writeResult(w, scored)
	})

	mux.HandleFunc("POST /collections/{name}/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeResult(w, map[string]any{"points": f.collections[r.PathValue("name")]})
	})

	mux.HandleFunc("POST /collections/{name}/points/count", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeResult(w, map[string]any{"count": len(f.collections[r.PathValue("name")])})
	})

	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := r.PathValue("name")
		points, ok := f.collections[name]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeResult(w, map[string]any{
			"status":       "green",
			"points_count": len(points),
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 4, "distance": DistanceCosine},
				},
			},
		})
	})

	return mux
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func makePoints(n int) []Point {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			ID:     uint64(i + 1),
			Vector: []float32{1, 0, 0, 0},
			Payload: Payload{
				NodeID:  fmt.Sprintf("function:f%d:f.py:%d", i, i+1),
				Snippet: "def f(): pass",
				File:    "f.py",
			},
		}
	}
	return points
}

func TestEnsureCollectionCreates(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	require.NoError(t, c.EnsureCollection(context.Background(), "code", 4, false))

	names, err := c.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, names)
}

func TestEnsureCollectionRecreateDropsPoints(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))
	_, err := c.Upsert(ctx, "code", makePoints(5))
	require.NoError(t, err)

	require.NoError(t, c.EnsureCollection(ctx, "code", 4, true))
	count, err := c.Count(ctx, "code")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEnsureCollectionExistingKept(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))
	_, err := c.Upsert(ctx, "code", makePoints(3))
	require.NoError(t, err)

	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))
	count, err := c.Count(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestUpsertBatchesInternally(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))

	written, err := c.Upsert(ctx, "code", makePoints(250))
	require.NoError(t, err)
	assert.Equal(t, 250, written)
	assert.Equal(t, []int{100, 100, 50}, fake.upsertSizes)
}

func TestUpsertIdempotentOnPointID(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))

	points := makePoints(10)
	_, err := c.Upsert(ctx, "code", points)
	require.NoError(t, err)
	_, err = c.Upsert(ctx, "code", points)
	require.NoError(t, err)

	count, err := c.Count(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), count)
}

func TestSearchDescendingScores(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))
	_, err := c.Upsert(ctx, "code", makePoints(5))
	require.NoError(t, err)

	hits, err := c.Search(ctx, "code", []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSearchNotReady(t *testing.T) {
	fake := newFakeQdrant()
	fake.notReady = true
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Search(context.Background(), "code", []float32{1, 0, 0, 0}, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, nil)
	_, err := c.ListCollections(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestScrollReturnsPayloads(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))
	_, err := c.Upsert(ctx, "code", makePoints(7))
	require.NoError(t, err)

	points, err := c.Scroll(ctx, "code", 100)
	require.NoError(t, err)
	assert.Len(t, points, 7)
	assert.NotEmpty(t, points[0].Payload.NodeID)
}

func TestGetCollectionInfo(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, "code", 4, false))
	_, err := c.Upsert(ctx, "code", makePoints(2))
	require.NoError(t, err)

	info, err := c.GetCollection(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "code", info.Name)
	assert.Equal(t, uint64(2), info.PointsCount)
	assert.Equal(t, 4, info.VectorSize)
	assert.Equal(t, DistanceCosine, info.Distance)
}
