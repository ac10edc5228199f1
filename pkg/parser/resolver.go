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
	"path/filepath"
	"strings"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

// Resolver maps raw call/import references onto graph edges using the
// name → [node_id] index built during parsing.
type Resolver struct {
	byName   map[string][]string // name -> node ids, insertion order
	nodeFile map[string]string   // node id -> relative file path
	fileStem map[string][]string // file stem -> file node ids
}

// NewResolver builds the resolution indexes from the parsed nodes.
func NewResolver(nodes []graph.Node) *Resolver {
	r := &Resolver{
		byName:   make(map[string][]string),
		nodeFile: make(map[string]string),
		fileStem: make(map[string][]string),
	}
	for _, n := range nodes {
		r.nodeFile[n.ID] = n.File
		if n.Kind == graph.KindFile {
			stem := strings.TrimSuffix(n.Name, filepath.Ext(n.Name))
			r.fileStem[stem] = append(r.fileStem[stem], n.ID)
			continue
		}
		r.byName[n.Name] = append(r.byName[n.Name], n.ID)
	}
	return r
}

// ResolveCalls turns raw call refs into call edges.
//
// Resolution is by unqualified name first, then by the receiver-qualified
// form. A name mapping to exactly one node yields an unambiguous edge. With
// multiple candidates, a single candidate in the caller's own file wins
// outright; otherwise one edge per candidate is emitted with ambiguous=true.
// Unresolved names are dropped. Duplicate (source, target, type) edges are
// collapsed by the graph store on insert.
func (r *Resolver) ResolveCalls(refs []CallRef) []graph.Edge {
	var edges []graph.Edge
	for _, ref := range refs {
		candidates := r.byName[ref.Name]
		if len(candidates) == 0 && ref.Qualified != "" {
			candidates = r.byName[ref.Qualified]
		}
		if len(candidates) == 0 {
			continue
		}

		if len(candidates) == 1 {
			edges = append(edges, graph.Edge{
				Source: ref.CallerID,
				Target: candidates[0],
				Type:   graph.EdgeCall,
			})
			continue
		}

		// Tie-break: prefer the single candidate defined in the same file
		// as the caller.
		callerFile := r.nodeFile[ref.CallerID]
		var sameFile []string
		for _, id := range candidates {
			if r.nodeFile[id] == callerFile {
				sameFile = append(sameFile, id)
			}
		}
		if len(sameFile) == 1 {
			edges = append(edges, graph.Edge{
				Source: ref.CallerID,
				Target: sameFile[0],
				Type:   graph.EdgeCall,
			})
			continue
		}

		for _, id := range candidates {
			edges = append(edges, graph.Edge{
				Source:    ref.CallerID,
				Target:    id,
				Type:      graph.EdgeCall,
				Ambiguous: true,
			})
		}
	}
	return edges
}

// ResolveImports turns raw import refs into import edges from the importer's
// file node. A referenced name matches file nodes by stem and symbol nodes
// by name. A single candidate yields an unambiguous edge and several yield
// one ambiguous edge each; unlike calls, there is no same-file preference.
func (r *Resolver) ResolveImports(refs []ImportRef) []graph.Edge {
	var edges []graph.Edge
	for _, ref := range refs {
		name := lastComponent(ref.Name)

		var candidates []string
		candidates = append(candidates, r.fileStem[name]...)
		candidates = append(candidates, r.byName[name]...)

		// Never emit an import of the importer itself.
		filtered := candidates[:0]
		for _, id := range candidates {
			if id != ref.FileID {
				filtered = append(filtered, id)
			}
		}
		candidates = filtered

		switch len(candidates) {
		case 0:
			continue
		case 1:
			edges = append(edges, graph.Edge{
				Source: ref.FileID,
				Target: candidates[0],
				Type:   graph.EdgeImport,
			})
		default:
			for _, id := range candidates {
				edges = append(edges, graph.Edge{
					Source:    ref.FileID,
					Target:    id,
					Type:      graph.EdgeImport,
					Ambiguous: true,
				})
			}
		}
	}
	return edges
}
