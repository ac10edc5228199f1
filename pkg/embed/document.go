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
	"fmt"
	"strings"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

const (
	// maxDocumentChars caps the document string fed to the embedding
	// model. Truncation is allowed; omission is not.
	maxDocumentChars = 4000

	// maxSnippetLines caps the code section inside the document.
	maxSnippetLines = 40
)

// MakeDocument renders a node into the textual form fed to the embedder.
//
// The sections are stable so identical nodes always produce identical
// documents: title (name - file:line), signature, documentation, code, and
// metrics. The code section is capped at maxSnippetLines and the whole
// document at maxDocumentChars.
func MakeDocument(n graph.Node) string {
	codeLines := strings.Split(n.Code, "\n")
	snippet := strings.Join(codeLines[:minInt(len(codeLines), maxSnippetLines)], "\n")
	if len(codeLines) > maxSnippetLines {
		snippet += fmt.Sprintf("\n... (%d more lines)", len(codeLines)-maxSnippetLines)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s - %s:%d\n", n.Kind, n.Name, n.File, n.StartLine)

	if signature := firstNonBlankLine(snippet); signature != "" {
		fmt.Fprintf(&b, "\n## Signature\n%s\n", signature)
	}
	if doc := strings.TrimSpace(n.Doc); doc != "" {
		fmt.Fprintf(&b, "\n## Documentation\n%s\n", doc)
	}
	if snippet != "" {
		fmt.Fprintf(&b, "\n## Code\n%s\n", snippet)
	}
	fmt.Fprintf(&b, "\n## Metrics\nLines of code: %d | Complexity: %d\n", n.Loc, n.Cyclomatic)

	doc := b.String()
	if len(doc) > maxDocumentChars {
		doc = doc[:maxDocumentChars]
	}
	return doc
}

// MakeDocuments renders all nodes in order.
func MakeDocuments(nodes []graph.Node) []string {
	docs := make([]string, len(nodes))
	for i, n := range nodes {
		docs[i] = MakeDocument(n)
	}
	return docs
}

func firstNonBlankLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
