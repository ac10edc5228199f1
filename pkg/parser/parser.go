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

// Package parser turns a repository tree into a typed program graph:
// language-specific tree-sitter extractors produce function/class/file
// nodes with raw call and import references, the resolver maps references
// onto edges, and the annotator derives per-node metrics.
package parser

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

// DefaultMaxFileSize caps the size of files handed to extractors.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// Parser walks a repository and builds the program graph. Construct with
// NewParser; the zero value is not usable.
type Parser struct {
	logger      *slog.Logger
	extractors  map[string]LanguageExtractor // keyed by extension
	languages   map[string]string            // extension -> language name
	fallback    LanguageExtractor            // used when the python tree-sitter parse fails
	maxFileSize int64
	workers     int
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxFileSize overrides the per-file size cap.
func WithMaxFileSize(n int64) Option {
	return func(p *Parser) { p.maxFileSize = n }
}

// WithWorkers overrides the parallel parse worker count.
func WithWorkers(n int) Option {
	return func(p *Parser) { p.workers = n }
}

// NewParser creates a parser with the built-in extractor table
// (Python, JavaScript, Go) and the simplified Python fallback.
func NewParser(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{
		logger:      logger,
		extractors:  make(map[string]LanguageExtractor),
		languages:   make(map[string]string),
		fallback:    FallbackPythonExtractor{},
		maxFileSize: DefaultMaxFileSize,
		workers:     runtime.NumCPU(),
	}
	for _, ex := range []LanguageExtractor{PythonExtractor{}, JavaScriptExtractor{}, GoExtractor{}} {
		p.Register(ex)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds an extractor to the dispatch table, keyed by its extensions.
func (p *Parser) Register(ex LanguageExtractor) {
	for _, ext := range ex.Extensions() {
		p.extractors[ext] = ex
		p.languages[ext] = ex.Language()
	}
}

// Result is the outcome of parsing one repository snapshot.
type Result struct {
	Store          *graph.Store
	FilesProcessed int
	ParseErrors    int
	SkipReasons    map[string]int
	Languages      map[string]int
	Duration       time.Duration
}

// ParseRepository parses the repository rooted at root and returns the
// annotated program graph.
//
// Individual file failures are logged and skipped; the parse succeeds if at
// least one file succeeds. A repository with candidate files but zero
// successes is an error.
func (p *Parser) ParseRepository(root string) (*Result, error) {
	start := time.Now()
	p.logger.Info("parse.repo.start", "root", root)

	walk, err := walkRepository(root, p.maxFileSize, p.languages, p.logger)
	if err != nil {
		return nil, fmt.Errorf("walk repository: %w", err)
	}

	results := make([]*FileResult, len(walk.Files))
	var mu sync.Mutex
	parseErrors := 0

	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i := range walk.Files {
		g.Go(func() error {
			fr, err := p.parseFile(walk.Files[i])
			if err != nil {
				p.logger.Warn("parse.file.error", "path", walk.Files[i].Path, "err", err)
				mu.Lock()
				parseErrors++
				mu.Unlock()
				return nil // per-file failures never abort the parse
			}
			results[i] = fr
			return nil
		})
	}
	_ = g.Wait()

	processed := 0
	languages := make(map[string]int)
	store := graph.NewStore(p.logger)
	var allCalls []CallRef
	var allImports []ImportRef
	decisions := make(map[string]int)

	// A file node joins the graph when its file imports something, is a
	// plausible import target of another file, or has no symbol nodes of
	// its own. Scenario-level consequence: a lone function file stays a
	// single node.
	importedStems := make(map[string]bool)
	for _, fr := range results {
		if fr == nil {
			continue
		}
		for _, ref := range fr.ImportRefs {
			importedStems[lastComponent(ref.Name)] = true
		}
	}

	// Merge in file order so node insertion is deterministic.
	for i, fr := range results {
		if fr == nil {
			continue
		}
		processed++
		languages[walk.Files[i].Language]++

		stem := fileStem(walk.Files[i].Path)
		if len(fr.ImportRefs) > 0 || len(fr.Nodes) == 0 || importedStems[stem] {
			if err := store.AddNode(fr.FileNode); err != nil {
				p.logger.Warn("parse.node.duplicate", "id", fr.FileNode.ID, "err", err)
			}
			decisions[fr.FileNode.ID] = 0
		}
		for _, n := range fr.Nodes {
			if err := store.AddNode(n); err != nil {
				p.logger.Warn("parse.node.duplicate", "id", n.ID, "err", err)
			}
		}
		allCalls = append(allCalls, fr.CallRefs...)
		allImports = append(allImports, fr.ImportRefs...)
		for id, d := range fr.Decisions {
			decisions[id] = d
		}
	}

	if processed == 0 && len(walk.Files) > 0 {
		return nil, fmt.Errorf("no files parseable (%d candidates, %d errors)", len(walk.Files), parseErrors)
	}

	resolver := NewResolver(store.Nodes())
	for _, e := range resolver.ResolveCalls(allCalls) {
		if err := store.AddEdge(e); err != nil {
			p.logger.Warn("parse.edge.dropped", "source", e.Source, "target", e.Target, "err", err)
		}
	}
	for _, e := range resolver.ResolveImports(allImports) {
		if err := store.AddEdge(e); err != nil {
			p.logger.Warn("parse.edge.dropped", "source", e.Source, "target", e.Target, "err", err)
		}
	}

	if err := Annotate(store, decisions); err != nil {
		return nil, fmt.Errorf("annotate graph: %w", err)
	}

	result := &Result{
		Store:          store,
		FilesProcessed: processed,
		ParseErrors:    parseErrors,
		SkipReasons:    walk.SkipReasons,
		Languages:      languages,
		Duration:       time.Since(start),
	}

	p.logger.Info("parse.repo.complete",
		"files", processed,
		"nodes", store.NodeCount(),
		"edges", store.EdgeCount(),
		"parse_errors", parseErrors,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// parseFile reads and extracts one file, adding the file-level node and
// falling back to the simplified extractor for Python when tree-sitter
// yields nothing usable.
func (p *Parser) parseFile(fi FileInfo) (*FileResult, error) {
	content, err := os.ReadFile(fi.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	ex, ok := p.extractorFor(fi)
	if !ok {
		return nil, fmt.Errorf("no extractor for %s", fi.Path)
	}

	fr, err := ex.Extract(fi.Path, content)
	if err != nil && fi.Language == "python" {
		p.logger.Warn("parse.file.fallback", "path", fi.Path, "err", err)
		fr, err = p.fallback.Extract(fi.Path, content)
	}
	if err != nil {
		return nil, err
	}

	fr.FileNode = makeFileNode(fi.Path, fi.Language, content)
	return fr, nil
}

func (p *Parser) extractorFor(fi FileInfo) (LanguageExtractor, bool) {
	ex, ok := p.extractors[extOf(fi.Path)]
	return ex, ok
}

// fileStem is the base name without extension, the unit module imports
// resolve against.
func fileStem(path string) string {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	if ext := extOf(base); ext != "" {
		return base[:len(base)-len(ext)]
	}
	return base
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/':
			return ""
		}
	}
	return ""
}
