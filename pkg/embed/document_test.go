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

package embed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

func docNode() graph.Node {
	return graph.Node{
		ID:         graph.NodeID(graph.KindFunction, "load_config", "config.py", 10),
		Name:       "load_config",
		Kind:       graph.KindFunction,
		File:       "config.py",
		StartLine:  10,
		EndLine:    14,
		Code:       "def load_config(path):\n    \"\"\"Load settings.\"\"\"\n    with open(path) as f:\n        return parse(f)",
		Doc:        "Load settings.",
		Language:   "python",
		Loc:        5,
		Cyclomatic: 1,
	}
}

func TestMakeDocumentSections(t *testing.T) {
	doc := MakeDocument(docNode())

	assert.Contains(t, doc, "# function load_config - config.py:10")
	assert.Contains(t, doc, "## Signature\ndef load_config(path):")
	assert.Contains(t, doc, "## Documentation\nLoad settings.")
	assert.Contains(t, doc, "## Code\n")
	assert.Contains(t, doc, "Lines of code: 5 | Complexity: 1")
}

func TestMakeDocumentDeterministic(t *testing.T) {
	n := docNode()
	assert.Equal(t, MakeDocument(n), MakeDocument(n))
}

func TestMakeDocumentTruncatesLongCode(t *testing.T) {
	n := docNode()
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "    x = 1")
	}
	n.Code = "def f():\n" + strings.Join(lines, "\n")

	doc := MakeDocument(n)
	assert.LessOrEqual(t, len(doc), maxDocumentChars)
	assert.Contains(t, doc, "more lines)")
}

func TestMakeDocumentEmptyDocOmitsSection(t *testing.T) {
	n := docNode()
	n.Doc = ""
	doc := MakeDocument(n)
	assert.NotContains(t, doc, "## Documentation")
}

func TestMakeDocumentsOrder(t *testing.T) {
	a := docNode()
	b := docNode()
	b.Name = "other"
	b.ID = graph.NodeID(graph.KindFunction, "other", "o.py", 1)

	docs := MakeDocuments([]graph.Node{a, b})
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0], "load_config")
	assert.Contains(t, docs[1], "other")
}
