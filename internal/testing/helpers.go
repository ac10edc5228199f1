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

// Package testing provides shared helpers for building fixture repositories
// and graphs in tests.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

// WriteRepo materializes a fixture repository under a temp directory.
// files maps relative paths to contents. Returns the repo root.
//
// Example:
//
//	root := testing.WriteRepo(t, map[string]string{
//	    "a.py": "def a():\n    b()\n",
//	    "b.py": "def b():\n    pass\n",
//	})
func WriteRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create fixture dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture file %s: %v", rel, err)
		}
	}
	return root
}

// BuildGraph creates an in-memory store from nodes and edges, failing the
// test on any insertion error.
func BuildGraph(t *testing.T, nodes []graph.Node, edges []graph.Edge) *graph.Store {
	t.Helper()
	store := graph.NewStore(nil)
	for _, n := range nodes {
		if err := store.AddNode(n); err != nil {
			t.Fatalf("add node %s: %v", n.ID, err)
		}
	}
	for _, e := range edges {
		if err := store.AddEdge(e); err != nil {
			t.Fatalf("add edge %s->%s: %v", e.Source, e.Target, err)
		}
	}
	return store
}

// FuncNode builds a minimal function node for graph-level tests.
func FuncNode(name, file string, startLine, endLine int) graph.Node {
	return graph.Node{
		ID:        graph.NodeID(graph.KindFunction, name, file, startLine),
		Name:      name,
		Label:     name,
		Kind:      graph.KindFunction,
		File:      file,
		StartLine: startLine,
		EndLine:   endLine,
		Code:      "def " + name + "():\n    pass",
		Language:  "python",
	}
}
