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
	"regexp"
	"strings"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

// Regex patterns for the simplified Python extractor. Declaration matching
// only looks at column-zero defs so nested and method definitions stay part
// of their enclosing slice.
var (
	pyDefPattern    = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassPattern  = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*[(:]`)
	pyCallPattern   = regexp.MustCompile(`([A-Za-z_]\w*)\s*\(`)
	pyImportPattern = regexp.MustCompile(`^(?:from\s+([\w.]+)\s+import\s+(.+)|import\s+([\w.,\s]+))`)
	pyKeywordSplit  = regexp.MustCompile(`\bdef\b|\bclass\b|\breturn\b|\bif\b|\bfor\b|\bwhile\b|\bprint\b`)

	pyDecisionPattern = regexp.MustCompile(`\b(if|elif|for|while|except|and|or)\b`)
)

// FallbackPythonExtractor is the simplified line-based extractor used when
// tree-sitter cannot produce a usable tree. Node boundaries come from
// column-zero declarations; calls and decisions are keyword scans, so the
// results are approximate but never fail.
type FallbackPythonExtractor struct{}

func (FallbackPythonExtractor) Language() string     { return "python" }
func (FallbackPythonExtractor) Extensions() []string { return []string{".py"} }

func (e FallbackPythonExtractor) Extract(relPath string, content []byte) (*FileResult, error) {
	lines := strings.Split(string(content), "\n")
	result := &FileResult{Decisions: make(map[string]int)}
	fileID := FileNodeID(relPath)

	type decl struct {
		name  string
		kind  graph.NodeKind
		start int // 1-based
	}
	var decls []decl

	for i, line := range lines {
		if m := pyDefPattern.FindStringSubmatch(line); m != nil {
			decls = append(decls, decl{name: m[1], kind: graph.KindFunction, start: i + 1})
		} else if m := pyClassPattern.FindStringSubmatch(line); m != nil {
			decls = append(decls, decl{name: m[1], kind: graph.KindClass, start: i + 1})
		} else if m := pyImportPattern.FindStringSubmatch(line); m != nil {
			for _, name := range pyImportedNames(m) {
				result.ImportRefs = append(result.ImportRefs, ImportRef{FileID: fileID, Name: name})
			}
		}
	}

	for i, d := range decls {
		end := len(lines)
		if i+1 < len(decls) {
			end = trimBlankTail(lines, decls[i+1].start-1)
		}
		code := sliceLines(lines, d.start, end)

		node := graph.Node{
			ID:        graph.NodeID(d.kind, d.name, relPath, d.start),
			Name:      d.name,
			Label:     d.name,
			Kind:      d.kind,
			File:      relPath,
			StartLine: d.start,
			EndLine:   end,
			Code:      code,
			Doc:       fallbackDocstring(lines, d.start),
			Language:  "python",
		}
		result.Nodes = append(result.Nodes, node)
		result.Decisions[node.ID] = countFallbackDecisions(code)

		for _, m := range pyCallPattern.FindAllStringSubmatch(code, -1) {
			callee := m[1]
			if callee == d.name && strings.Contains(code, "def "+callee) {
				// The declaration line itself matches the call pattern.
				continue
			}
			if pyKeywordSplit.MatchString(callee) {
				continue
			}
			result.CallRefs = append(result.CallRefs, CallRef{CallerID: node.ID, Name: callee})
		}
	}

	return result, nil
}

// fallbackDocstring reads a triple-quoted string starting right after the
// declaration line.
func fallbackDocstring(lines []string, declLine int) string {
	if declLine >= len(lines) {
		return ""
	}
	next := strings.TrimSpace(lines[declLine])
	for _, q := range []string{`"""`, `'''`} {
		if !strings.HasPrefix(next, q) {
			continue
		}
		rest := next[len(q):]
		if idx := strings.Index(rest, q); idx >= 0 {
			return strings.TrimSpace(rest[:idx])
		}
		var parts []string
		parts = append(parts, rest)
		for i := declLine + 1; i < len(lines); i++ {
			if idx := strings.Index(lines[i], q); idx >= 0 {
				parts = append(parts, lines[i][:idx])
				return strings.TrimSpace(strings.Join(parts, "\n"))
			}
			parts = append(parts, lines[i])
		}
	}
	return ""
}

// countFallbackDecisions approximates the decision count with a keyword
// scan over the node body, skipping the declaration line.
func countFallbackDecisions(code string) int {
	lines := strings.Split(code, "\n")
	count := 0
	for i, line := range lines {
		if i == 0 {
			continue
		}
		count += len(pyDecisionPattern.FindAllString(line, -1))
	}
	return count
}

func pyImportedNames(m []string) []string {
	var names []string
	if m[1] != "" {
		names = append(names, m[1])
		for _, part := range strings.Split(m[2], ",") {
			name := strings.TrimSpace(part)
			if i := strings.Index(name, " as "); i >= 0 {
				name = name[:i]
			}
			if name != "" && name != "*" {
				names = append(names, name)
			}
		}
		return names
	}
	for _, part := range strings.Split(m[3], ",") {
		name := strings.TrimSpace(part)
		if i := strings.Index(name, " as "); i >= 0 {
			name = name[:i]
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func trimBlankTail(lines []string, end int) int {
	for end > 1 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return end
}
