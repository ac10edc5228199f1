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

package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/repocanvas/pkg/graph"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
)

func TestStubSummaryStructure(t *testing.T) {
	store, a, b := twoNodeGraph(t)
	index := &fakeIndex{searchResults: []qdrant.ScoredPoint{
		scoredHit(a.ID, 1, 0.9),
		scoredHit(b.ID, 2, 0.7),
	}}
	e := NewEngine(store, fakeEmbedder{}, index, nil, nil)

	answer, err := e.Analyze(context.Background(), "trace the call", 10, "code")
	require.NoError(t, err)

	s := answer.Summary
	assert.NotEmpty(t, s.OneLiner)
	assert.Len(t, s.Steps, 2)
	assert.Len(t, s.NodeRefs, 2)
	assert.Equal(t, stubCaveats, s.Caveats)
	assert.Len(t, s.InputsOutputs, 2)

	// excerpt_line is the first non-blank code line of each path node.
	assert.Equal(t, "def a():", s.NodeRefs[0].ExcerptLine)
	assert.Equal(t, "def b():", s.NodeRefs[1].ExcerptLine)
}

func TestStubSummaryStepCap(t *testing.T) {
	// Build a 7-node chain; steps cap at 5 while node_refs cover all.
	var nodes []graph.Node
	var edges []graph.Edge
	var hits []qdrant.ScoredPoint
	names := []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7"}
	for i, name := range names {
		n := graph.Node{
			ID: graph.NodeID(graph.KindFunction, name, name+".py", 1),
			Name: name, Label: name, Kind: graph.KindFunction,
			File: name + ".py", StartLine: 1, EndLine: 2,
			Code: "def " + name + "():\n    pass", Language: "python",
		}
		nodes = append(nodes, n)
		if i > 0 {
			edges = append(edges, graph.Edge{Source: nodes[i-1].ID, Target: n.ID, Type: graph.EdgeCall})
		}
	}
	hits = append(hits, scoredHit(nodes[0].ID, 1, 0.9), scoredHit(nodes[6].ID, 2, 0.8))

	store := graph.NewStore(nil)
	for _, n := range nodes {
		require.NoError(t, store.AddNode(n))
	}
	for _, ed := range edges {
		require.NoError(t, store.AddEdge(ed))
	}

	e := NewEngine(store, fakeEmbedder{}, &fakeIndex{searchResults: hits}, nil, nil)
	answer, err := e.Analyze(context.Background(), "long chain", 10, "code")
	require.NoError(t, err)

	assert.Len(t, answer.AnswerPath, 7)
	assert.Len(t, answer.Summary.Steps, 5)
	assert.Len(t, answer.Summary.NodeRefs, 7)
}

func TestHTTPSummarizerUsedWhenReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req summarizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Snippets)
		assert.Equal(t, "trace the call", req.Question)

		_ = json.NewEncoder(w).Encode(summarizeResponse{Summary: Summary{
			OneLiner: "a delegates to b",
			Steps:    []string{"1. a calls b"},
			Caveats:  []string{"llm generated"},
		}})
	}))
	defer srv.Close()

	store, a, b := twoNodeGraph(t)
	index := &fakeIndex{searchResults: []qdrant.ScoredPoint{
		scoredHit(a.ID, 1, 0.9),
		scoredHit(b.ID, 2, 0.7),
	}}
	e := NewEngine(store, fakeEmbedder{}, index, NewHTTPSummarizer(srv.URL, nil), nil)

	answer, err := e.Analyze(context.Background(), "trace the call", 10, "code")
	require.NoError(t, err)
	assert.Equal(t, "a delegates to b", answer.Summary.OneLiner)
}

func TestSummarizerUnreachableFallsBackToStub(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // collaborator is down

	store, a, b := twoNodeGraph(t)
	index := &fakeIndex{searchResults: []qdrant.ScoredPoint{
		scoredHit(a.ID, 1, 0.9),
		scoredHit(b.ID, 2, 0.7),
	}}
	e := NewEngine(store, fakeEmbedder{}, index, NewHTTPSummarizer(srv.URL, nil), nil)

	answer, err := e.Analyze(context.Background(), "trace the call", 10, "code")
	require.NoError(t, err)
	// The structured form is always emitted.
	assert.NotEmpty(t, answer.Summary.OneLiner)
	assert.Equal(t, stubCaveats, answer.Summary.Caveats)
}
