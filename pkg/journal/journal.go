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

// Package journal persists the sidecar artifacts written after a successful
// upsert: the point→node mapping and the index status snapshot. Writes are
// atomic (temp file + rename) and serialized per path, so a cancelled job
// never leaves a final-name file behind and concurrent jobs never interleave
// writes to the same artifact.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Standard sidecar file names inside the data directory.
const (
	MapFileName    = "qdrant_map.json"
	StatusFileName = "index_status.json"
)

// Index build outcomes recorded in the status document.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Status is the index_status.json document.
type Status struct {
	Collection  string `json:"collection"`
	Model       string `json:"model"`
	VectorSize  int    `json:"vector_size"`
	Distance    string `json:"distance"`
	PointsCount int    `json:"points_count"`
	IndexedAt   string `json:"indexed_at"` // ISO-8601 UTC
	Status      string `json:"status"`
}

// pathLocks serializes writers per absolute path.
var pathLocks sync.Map // string -> *sync.Mutex

func lockFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	mu, _ := pathLocks.LoadOrStore(abs, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WritePointMap writes the point→node mapping to path. Keys are stringified
// point ids, matching the qdrant_map.json contract.
func WritePointMap(path string, mapping map[uint64]string) error {
	out := make(map[string]string, len(mapping))
	for pointID, nodeID := range mapping {
		out[strconv.FormatUint(pointID, 10)] = nodeID
	}
	return writeJSONAtomic(path, out)
}

// LoadPointMap reads a point→node mapping written by WritePointMap.
func LoadPointMap(path string) (map[uint64]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read point map: %w", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse point map: %w", err)
	}
	out := make(map[uint64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point id %q: %w", k, err)
		}
		out[id] = v
	}
	return out, nil
}

// WriteStatus writes the status document to path. IndexedAt is stamped
// here when empty.
func WriteStatus(path string, status Status) error {
	if status.IndexedAt == "" {
		status.IndexedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return writeJSONAtomic(path, status)
}

// LoadStatus reads a status document written by WriteStatus.
func LoadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index status: %w", err)
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse index status: %w", err)
	}
	return &status, nil
}

// writeJSONAtomic writes v to path with write-to-temp + rename under the
// per-path mutex.
func writeJSONAtomic(path string, v any) error {
	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write journal temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename journal: %w", err)
	}
	return nil
}
