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

package graph

import "fmt"

// NodeKind classifies a program node.
type NodeKind string

const (
	// KindFunction is a top-level function or method.
	KindFunction NodeKind = "function"

	// KindClass is a class, struct, or other type declaration.
	KindClass NodeKind = "class"

	// KindFile is a whole-file node (import edges attach here).
	KindFile NodeKind = "file"
)

// EdgeType classifies a directed relation between two nodes.
type EdgeType string

const (
	// EdgeCall is a function/method call relation.
	EdgeCall EdgeType = "call"

	// EdgeImport is a module/symbol import relation.
	EdgeImport EdgeType = "import"
)

// Node is a top-level program unit extracted from the repository.
//
// The id is the canonical identifier "<kind>:<qualname>:<relpath>:<start_line>"
// and is unique within a repository snapshot. Label always equals Name and
// exists for downstream consumers that key on it.
type Node struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Name      string   `json:"name"`
	Kind      NodeKind `json:"kind"`
	File      string   `json:"file"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Code      string   `json:"code"`
	Doc       string   `json:"doc"`
	Language  string   `json:"language"`

	// Derived metrics, set once by the annotator.
	Loc         int `json:"loc"`
	Cyclomatic  int `json:"cyclomatic"`
	NumCallsIn  int `json:"num_calls_in"`
	NumCallsOut int `json:"num_calls_out"`
}

// Edge is a directed relation between two node ids.
//
// Ambiguous is true when the resolver could not uniquely map a textual
// call/import to a single node.
type Edge struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Type      EdgeType `json:"type"`
	Ambiguous bool     `json:"ambiguous"`
}

// Metadata describes the persisted graph file.
type Metadata struct {
	NodeCount     int    `json:"node_count"`
	EdgeCount     int    `json:"edge_count"`
	GeneratedBy   string `json:"generated_by"`
	SchemaVersion string `json:"schema_version"`
}

// Graph is the on-disk shape of graph.json (schema version 1.0).
type Graph struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata"`
}

// SchemaVersion is the graph.json schema version written by this package.
const SchemaVersion = "1.0"

// GeneratedBy identifies the producer in graph.json metadata.
const GeneratedBy = "repocanvas parser"

// NodeID builds the canonical node identifier.
func NodeID(kind NodeKind, qualname, relpath string, startLine int) string {
	return fmt.Sprintf("%s:%s:%s:%d", kind, qualname, relpath, startLine)
}

// edgeKey is the dedup key for edges: duplicates of (source, target, type)
// are collapsed regardless of ambiguity.
func edgeKey(e Edge) string {
	return e.Source + "\x00" + e.Target + "\x00" + string(e.Type)
}
