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

func TestParseSingleFunctionFile(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"hello.py": `def hello(): return "world"` + "\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	store := result.Store
	assert.Equal(t, 1, store.NodeCount())
	assert.Equal(t, 0, store.EdgeCount())

	n, ok := store.Node("function:hello:hello.py:1")
	require.True(t, ok)
	assert.Equal(t, "hello", n.Name)
	assert.Equal(t, graph.KindFunction, n.Kind)
	assert.Equal(t, 1, n.Loc)
	assert.Equal(t, 1, n.Cyclomatic)
	assert.Equal(t, 0, n.NumCallsIn)
	assert.Equal(t, 0, n.NumCallsOut)
}

func TestParseDirectCall(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"a.py": "def a():\n    b()\n",
		"b.py": "def b():\n    pass\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	store := result.Store
	assert.Equal(t, 2, store.NodeCount())
	require.Equal(t, 1, store.EdgeCount())

	e := store.Edges()[0]
	assert.Equal(t, "function:a:a.py:1", e.Source)
	assert.Equal(t, "function:b:b.py:1", e.Target)
	assert.Equal(t, graph.EdgeCall, e.Type)
	assert.False(t, e.Ambiguous)

	a, _ := store.Node("function:a:a.py:1")
	b, _ := store.Node("function:b:b.py:1")
	assert.Equal(t, 1, a.NumCallsOut)
	assert.Equal(t, 0, a.NumCallsIn)
	assert.Equal(t, 1, b.NumCallsIn)
	assert.Equal(t, 0, b.NumCallsOut)
}

func TestParseAmbiguousCall(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"one.py":    "def foo():\n    pass\n",
		"two.py":    "def foo():\n    pass\n",
		"caller.py": "def call_it():\n    foo()\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	store := result.Store
	assert.Equal(t, 3, store.NodeCount())

	edges := store.Edges()
	require.Len(t, edges, 2)
	targets := map[string]bool{}
	for _, e := range edges {
		assert.Equal(t, "function:call_it:caller.py:1", e.Source)
		assert.Equal(t, graph.EdgeCall, e.Type)
		assert.True(t, e.Ambiguous)
		targets[e.Target] = true
	}
	assert.True(t, targets["function:foo:one.py:1"])
	assert.True(t, targets["function:foo:two.py:1"])
}

func TestParseSameFileTieBreak(t *testing.T) {
	// Two foos exist but one shares the caller's file; that one wins,
	// unambiguously.
	root := testutil.WriteRepo(t, map[string]string{
		"local.py": "def foo():\n    pass\n\ndef call_it():\n    foo()\n",
		"other.py": "def foo():\n    pass\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	var callEdges []graph.Edge
	for _, e := range result.Store.Edges() {
		if e.Type == graph.EdgeCall {
			callEdges = append(callEdges, e)
		}
	}
	require.Len(t, callEdges, 1)
	assert.Equal(t, "function:foo:local.py:1", callEdges[0].Target)
	assert.False(t, callEdges[0].Ambiguous)
}

func TestParseImportEdge(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"util.py": "def helper():\n    pass\n",
		"main.py": "import util\n\ndef main():\n    util.helper()\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	store := result.Store

	// Both sides of the import get file nodes: main.py because it imports,
	// util.py because it is imported.
	_, hasMainFile := store.Node("file:main.py:main.py:1")
	assert.True(t, hasMainFile)
	_, hasUtilFile := store.Node("file:util.py:util.py:1")
	assert.True(t, hasUtilFile)

	var importEdges, callEdges []graph.Edge
	for _, e := range store.Edges() {
		switch e.Type {
		case graph.EdgeImport:
			importEdges = append(importEdges, e)
		case graph.EdgeCall:
			callEdges = append(callEdges, e)
		}
	}
	require.NotEmpty(t, importEdges)
	assert.Equal(t, "file:main.py:main.py:1", importEdges[0].Source)
	assert.Equal(t, "file:util.py:util.py:1", importEdges[0].Target)

	// util.helper() resolves through the receiver-qualified name.
	require.Len(t, callEdges, 1)
	assert.Equal(t, "function:helper:util.py:1", callEdges[0].Target)
}

func TestParseDocstringExtraction(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"doc.py": "def documented():\n    \"\"\"Returns the answer.\"\"\"\n    return 42\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	n, ok := result.Store.Node("function:documented:doc.py:1")
	require.True(t, ok)
	assert.Equal(t, "Returns the answer.", n.Doc)
}

func TestParseClassNode(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"shape.py": "class Shape:\n    \"\"\"A base shape.\"\"\"\n\n    def area(self):\n        return 0\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	n, ok := result.Store.Node("class:Shape:shape.py:1")
	require.True(t, ok)
	assert.Equal(t, graph.KindClass, n.Kind)
	assert.Equal(t, "A base shape.", n.Doc)

	// The method is a node of its own, qualified by the class name.
	m, ok := result.Store.Node("function:Shape.area:shape.py:4")
	require.True(t, ok)
	assert.Equal(t, "area", m.Name)
	assert.Equal(t, 2, result.Store.NodeCount())
}

func TestParseNodeUniqueness(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"m.py": "def a():\n    pass\n\ndef b():\n    a()\n\nclass C:\n    pass\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, n := range result.Store.Nodes() {
		assert.False(t, ids[n.ID], "duplicate id %s", n.ID)
		ids[n.ID] = true
	}
}

func TestParseEdgeWellformedness(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"a.py": "import os\n\ndef a():\n    unknown_call()\n    b()\n",
		"b.py": "def b():\n    pass\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	store := result.Store
	for _, e := range store.Edges() {
		_, srcOK := store.Node(e.Source)
		_, dstOK := store.Node(e.Target)
		assert.True(t, srcOK, "edge source %s missing", e.Source)
		assert.True(t, dstOK, "edge target %s missing", e.Target)
	}
}

func TestParseSkipsIgnoredDirs(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"keep.py":              "def keep():\n    pass\n",
		".git/config":          "[core]\n",
		"node_modules/x.js":    "function x() {}\n",
		"build/gen.py":         "def gen():\n    pass\n",
		".hidden/secret.py":    "def secret():\n    pass\n",
		"vendor/dep/vendor.py": "def vendored():\n    pass\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	_, ok := result.Store.Node("function:keep:keep.py:1")
	assert.True(t, ok)
}

func TestParseUnsupportedLanguageSkipped(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"keep.py":  "def keep():\n    pass\n",
		"data.csv": "a,b,c\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.SkipReasons["unsupported_language"])
}

func TestParseGoRepo(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"main.go": "package main\n\n// run is the entry point.\nfunc run() {\n\thelp()\n}\n\nfunc help() {\n}\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	n, ok := result.Store.Node("function:run:main.go:4")
	require.True(t, ok)
	assert.Equal(t, "run is the entry point.", n.Doc)
	assert.Equal(t, 1, n.NumCallsOut)
}

func TestParseJavaScriptRepo(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"app.js": "function greet() {\n  return format();\n}\n\nfunction format() {\n  return 'hi';\n}\n",
	})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Store.NodeCount())
	require.Equal(t, 1, result.Store.EdgeCount())
	e := result.Store.Edges()[0]
	assert.Equal(t, "function:greet:app.js:1", e.Source)
	assert.Equal(t, "function:format:app.js:5", e.Target)
}

func TestParseEmptyRepo(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{})

	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Store.NodeCount())
}
