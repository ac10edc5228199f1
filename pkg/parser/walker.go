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
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"log/slog"
)

// FileInfo describes one candidate source file found by the walker.
type FileInfo struct {
	Path     string // relative path from repo root, forward slashes
	FullPath string // absolute path
	Size     int64
	Language string // detected from extension, empty when unsupported
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	".vscode":      true,
	".idea":        true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"vendor":       true,
}

// binaryExts are file extensions skipped without reading.
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".bz2": true,
	".so": true, ".dll": true, ".dylib": true, ".a": true, ".o": true,
	".exe": true, ".bin": true, ".wasm": true, ".pyc": true, ".class": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".db": true, ".sqlite": true,
}

// WalkResult contains the files selected for parsing plus skip accounting.
type WalkResult struct {
	Files       []FileInfo
	SkipReasons map[string]int
}

// walkRepository walks root and collects parseable files. Conventional
// ignore directories, hidden dotfiles, binary extensions, oversized files,
// and unsupported languages are skipped with per-reason counters. The
// returned files are sorted by relative path for deterministic processing.
func walkRepository(root string, maxFileSize int64, languages map[string]string, logger *slog.Logger) (*WalkResult, error) {
	result := &WalkResult{SkipReasons: make(map[string]int)}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("parse.walk.error", "path", path, "err", err)
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				result.SkipReasons["ignored_dir"]++
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			result.SkipReasons["hidden"]++
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if binaryExts[ext] {
			result.SkipReasons["binary"]++
			return nil
		}

		lang, supported := languages[ext]
		if !supported {
			result.SkipReasons["unsupported_language"]++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if maxFileSize > 0 && info.Size() > maxFileSize {
			result.SkipReasons["too_large"]++
			logger.Warn("parse.walk.skip_large_file", "path", path, "size", info.Size(), "limit", maxFileSize)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		result.Files = append(result.Files, FileInfo{
			Path:     filepath.ToSlash(rel),
			FullPath: path,
			Size:     info.Size(),
			Language: lang,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})
	return result, nil
}
