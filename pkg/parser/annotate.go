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

import "github.com/kraklabs/repocanvas/pkg/graph"

// Annotate computes the four per-node metrics in place:
//
//   - loc from the line span (end - start + 1)
//   - cyclomatic = 1 + decision constructs inside the body; nodes whose
//     decision count is unknown (parse failure) get 1
//   - num_calls_out / num_calls_in from the call edges
//
// The store is not mutated again after this runs.
func Annotate(store *graph.Store, decisions map[string]int) error {
	callsOut := make(map[string]int)
	callsIn := make(map[string]int)
	for _, e := range store.Edges() {
		if e.Type != graph.EdgeCall {
			continue
		}
		callsOut[e.Source]++
		callsIn[e.Target]++
	}

	for _, n := range store.Nodes() {
		loc := n.EndLine - n.StartLine + 1
		if loc < 1 {
			loc = 1
		}
		cyclomatic := 1 + decisions[n.ID]
		if err := store.SetMetrics(n.ID, loc, cyclomatic, callsIn[n.ID], callsOut[n.ID]); err != nil {
			return err
		}
	}
	return nil
}
