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

func cyclomaticOf(t *testing.T, source, nodeID string) int {
	t.Helper()
	root := testutil.WriteRepo(t, map[string]string{"m.py": source})
	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)
	n, ok := result.Store.Node(nodeID)
	require.True(t, ok, "node %s not found", nodeID)
	return n.Cyclomatic
}

func TestCyclomaticStraightLine(t *testing.T) {
	src := "def f():\n    x = 1\n    return x\n"
	assert.Equal(t, 1, cyclomaticOf(t, src, "function:f:m.py:1"))
}

func TestCyclomaticIfElif(t *testing.T) {
	// if + elif = 2 decisions; the bare else adds nothing.
	src := `def f(x):
    if x > 0:
        return 1
    elif x < 0:
        return -1
    else:
        return 0
`
	assert.Equal(t, 3, cyclomaticOf(t, src, "function:f:m.py:1"))
}

func TestCyclomaticLoopsAndExcept(t *testing.T) {
	// for + while + except = 3 decisions.
	src := `def f(items):
    for item in items:
        while item:
            item -= 1
    try:
        return 1
    except ValueError:
        return 0
`
	assert.Equal(t, 4, cyclomaticOf(t, src, "function:f:m.py:1"))
}

func TestCyclomaticLogicalOperators(t *testing.T) {
	// if + and + or = 3 decisions.
	src := `def f(a, b, c):
    if a and b or c:
        return 1
    return 0
`
	assert.Equal(t, 4, cyclomaticOf(t, src, "function:f:m.py:1"))
}

func TestCyclomaticTernaryAndComprehensionFilter(t *testing.T) {
	// conditional expression + comprehension if-clause = 2 decisions.
	src := `def f(items, flag):
    label = "yes" if flag else "no"
    evens = [i for i in items if i % 2 == 0]
    return label, evens
`
	assert.Equal(t, 3, cyclomaticOf(t, src, "function:f:m.py:1"))
}

func TestCyclomaticExcludesNestedDefs(t *testing.T) {
	// The inner function's branches belong to the inner node only; the
	// outer count covers the outer function's own single if.
	src := `def outer(x):
    if x:
        pass

    def inner(y):
        if y and y > 1:
            return 2
        return 1

    return inner
`
	assert.Equal(t, 2, cyclomaticOf(t, src, "function:outer:m.py:1"))
}

func TestLocFromLineSpan(t *testing.T) {
	root := testutil.WriteRepo(t, map[string]string{
		"m.py": "def f():\n    a = 1\n    b = 2\n    return a + b\n",
	})
	result, err := NewParser(nil).ParseRepository(root)
	require.NoError(t, err)

	n, ok := result.Store.Node("function:f:m.py:1")
	require.True(t, ok)
	assert.Equal(t, n.EndLine-n.StartLine+1, n.Loc)
	assert.GreaterOrEqual(t, n.Loc, 1)
}

func TestAnnotateMissingDecisionsDefaultsToOne(t *testing.T) {
	// Nodes with no decision entry (parse failure path) get cyclomatic 1
	// instead of failing.
	a := testutil.FuncNode("a", "a.py", 1, 4)
	b := testutil.FuncNode("b", "b.py", 1, 2)
	store := testutil.BuildGraph(t, []graph.Node{a, b}, []graph.Edge{
		{Source: a.ID, Target: b.ID, Type: graph.EdgeCall},
	})

	require.NoError(t, Annotate(store, map[string]int{a.ID: 2}))

	an, _ := store.Node(a.ID)
	bn, _ := store.Node(b.ID)
	assert.Equal(t, 3, an.Cyclomatic)
	assert.Equal(t, 1, bn.Cyclomatic)
	assert.Equal(t, 4, an.Loc)
	assert.Equal(t, 1, an.NumCallsOut)
	assert.Equal(t, 1, bn.NumCallsIn)
}
