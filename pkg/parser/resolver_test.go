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

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/kraklabs/repocanvas/internal/testing"
	"github.com/kraklabs/repocanvas/pkg/graph"
)

func TestResolveCallUnique(t *testing.T) {
	caller := testutil.FuncNode("caller", "a.py", 1, 3)
	callee := testutil.FuncNode("helper", "b.py", 1, 2)
	r := NewResolver([]graph.Node{caller, callee})

	edges := r.ResolveCalls([]CallRef{{CallerID: caller.ID, Name: "helper"}})
	require.Len(t, edges, 1)
	assert.Equal(t, callee.ID, edges[0].Target)
	assert.False(t, edges[0].Ambiguous)
}

func TestResolveCallUnresolvedDropped(t *testing.T) {
	caller := testutil.FuncNode("caller", "a.py", 1, 3)
	r := NewResolver([]graph.Node{caller})

	edges := r.ResolveCalls([]CallRef{{CallerID: caller.ID, Name: "print"}})
	assert.Empty(t, edges)
}

func TestResolveCallAmbiguous(t *testing.T) {
	caller := testutil.FuncNode("caller", "c.py", 1, 3)
	foo1 := testutil.FuncNode("foo", "a.py", 1, 2)
	foo2 := testutil.FuncNode("foo", "b.py", 1, 2)
	r := NewResolver([]graph.Node{caller, foo1, foo2})

	edges := r.ResolveCalls([]CallRef{{CallerID: caller.ID, Name: "foo"}})
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.True(t, e.Ambiguous)
	}
}

func TestResolveCallSameFilePreference(t *testing.T) {
	caller := testutil.FuncNode("caller", "a.py", 10, 12)
	local := testutil.FuncNode("foo", "a.py", 1, 2)
	remote := testutil.FuncNode("foo", "b.py", 1, 2)
	r := NewResolver([]graph.Node{caller, local, remote})

	edges := r.ResolveCalls([]CallRef{{CallerID: caller.ID, Name: "foo"}})
	require.Len(t, edges, 1)
	assert.Equal(t, local.ID, edges[0].Target)
	assert.False(t, edges[0].Ambiguous)
}

func TestResolveCallMultipleSameFileStaysAmbiguous(t *testing.T) {
	caller := testutil.FuncNode("caller", "a.py", 20, 22)
	foo1 := testutil.FuncNode("foo", "a.py", 1, 2)
	foo2 := testutil.FuncNode("foo", "a.py", 5, 6)
	r := NewResolver([]graph.Node{caller, foo1, foo2})

	edges := r.ResolveCalls([]CallRef{{CallerID: caller.ID, Name: "foo"}})
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.True(t, e.Ambiguous)
	}
}

func TestResolveCallRecursionAllowed(t *testing.T) {
	// A function naming itself is an explicit self reference.
	rec := testutil.FuncNode("again", "a.py", 1, 3)
	r := NewResolver([]graph.Node{rec})

	edges := r.ResolveCalls([]CallRef{{CallerID: rec.ID, Name: "again"}})
	require.Len(t, edges, 1)
	assert.Equal(t, rec.ID, edges[0].Source)
	assert.Equal(t, rec.ID, edges[0].Target)
}

func TestResolveCallQualifiedFallback(t *testing.T) {
	caller := testutil.FuncNode("caller", "a.py", 1, 3)
	method := graph.Node{
		ID:   graph.NodeID(graph.KindFunction, "Server.Start", "s.go", 5),
		Name: "Server.Start", Label: "Server.Start",
		Kind: graph.KindFunction, File: "s.go", StartLine: 5, EndLine: 9,
	}
	r := NewResolver([]graph.Node{caller, method})

	edges := r.ResolveCalls([]CallRef{{CallerID: caller.ID, Name: "Start", Qualified: "Server.Start"}})
	require.Len(t, edges, 1)
	assert.Equal(t, method.ID, edges[0].Target)
}

func TestResolveImportsByFileStem(t *testing.T) {
	importer := makeFileNode("main.py", "python", []byte("import util\n"))
	target := makeFileNode("util.py", "python", []byte("def x():\n    pass\n"))
	r := NewResolver([]graph.Node{importer, target})

	edges := r.ResolveImports([]ImportRef{{FileID: importer.ID, Name: "util"}})
	require.Len(t, edges, 1)
	assert.Equal(t, importer.ID, edges[0].Source)
	assert.Equal(t, target.ID, edges[0].Target)
	assert.Equal(t, graph.EdgeImport, edges[0].Type)
	assert.False(t, edges[0].Ambiguous)
}

func TestResolveImportsBySymbol(t *testing.T) {
	importer := makeFileNode("main.py", "python", []byte("from util import helper\n"))
	helper := testutil.FuncNode("helper", "util.py", 1, 2)
	r := NewResolver([]graph.Node{importer, helper})

	edges := r.ResolveImports([]ImportRef{{FileID: importer.ID, Name: "helper"}})
	require.Len(t, edges, 1)
	assert.Equal(t, helper.ID, edges[0].Target)
}

func TestResolveImportsNeverSelf(t *testing.T) {
	importer := makeFileNode("util.py", "python", []byte("import util\n"))
	r := NewResolver([]graph.Node{importer})

	edges := r.ResolveImports([]ImportRef{{FileID: importer.ID, Name: "util"}})
	assert.Empty(t, edges)
}
