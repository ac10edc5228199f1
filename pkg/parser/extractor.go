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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

// CallRef is a textual call expression collected under a node, pending
// resolution against the name index.
type CallRef struct {
	// CallerID is the id of the node the call appears in.
	CallerID string

	// Name is the unqualified callee name (e.g. "foo" for obj.foo()).
	Name string

	// Qualified is the receiver-qualified form ("obj.foo"), empty for
	// plain calls.
	Qualified string
}

// ImportRef is a textual import collected from a file, pending resolution.
type ImportRef struct {
	// FileID is the id of the importer's file node.
	FileID string

	// Name is the module or symbol name the import references.
	Name string
}

// FileResult is the output of extracting one source file.
type FileResult struct {
	Nodes      []graph.Node
	CallRefs   []CallRef
	ImportRefs []ImportRef

	// FileNode is the file-level node, prepared unconditionally by the
	// parser. Whether it joins the graph is decided globally: a file node
	// exists when the file imports something, is imported by someone, or
	// produced no symbol nodes.
	FileNode graph.Node

	// Decisions counts the decision constructs under each extracted node,
	// excluding nested function/class bodies. The annotator turns this
	// into cyclomatic complexity; nodes missing from the map get 1.
	Decisions map[string]int
}

// LanguageExtractor extracts program nodes and raw call/import references
// from one source file of a particular language.
type LanguageExtractor interface {
	// Language returns the canonical language name ("python", "go", ...).
	Language() string

	// Extensions returns the file extensions (with dot) this extractor
	// handles.
	Extensions() []string

	// Extract parses content and returns the function/class nodes plus raw
	// references. The file-level node is created by the parser, not here;
	// import refs attach to FileNodeID(relPath).
	Extract(relPath string, content []byte) (*FileResult, error)
}

// FileNodeID returns the id of the file-level node for a relative path.
func FileNodeID(relPath string) string {
	return graph.NodeID(graph.KindFile, filepath.Base(relPath), relPath, 1)
}

// fileCodeCap bounds the verbatim slice stored on file-level nodes.
const fileCodeCap = 2000

// makeFileNode builds the file-level node prepared for every parsed file;
// ParseRepository decides whether it joins the graph.
func makeFileNode(relPath, language string, content []byte) graph.Node {
	name := filepath.Base(relPath)
	lines := strings.Count(string(content), "\n") + 1
	code := string(content)
	if len(code) > fileCodeCap {
		code = code[:fileCodeCap] + fmt.Sprintf("\n... (file truncated, %d more characters)", len(content)-fileCodeCap)
	}
	return graph.Node{
		ID:        FileNodeID(relPath),
		Name:      name,
		Label:     name,
		Kind:      graph.KindFile,
		File:      relPath,
		StartLine: 1,
		EndLine:   lines,
		Code:      code,
		Doc:       fmt.Sprintf("File: %s (%s)", name, language),
		Language:  language,
	}
}

// sliceLines returns the verbatim source slice for 1-based inclusive line
// bounds.
func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// lastComponent returns the final dot-separated component of a name.
func lastComponent(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
