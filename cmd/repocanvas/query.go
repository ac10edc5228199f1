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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/kraklabs/repocanvas/internal/errors"
	"github.com/kraklabs/repocanvas/internal/output"
	"github.com/kraklabs/repocanvas/internal/ui"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
)

// queryTimeout bounds search/analyze end-to-end on the CLI path.
const queryTimeout = 30 * time.Second

// runSearch executes the 'search' command.
func runSearch(args []string, configPath string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	topK := fs.Int("top-k", 10, "Number of results")
	collection := fs.String("collection", "", "Collection name")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: repocanvas search [options] <query>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(apperrors.ExitInput)
	}

	ui.InitColors(*noColor)
	logger := newLogger(*debug)
	cfg := loadConfig(configPath)
	if *collection == "" {
		*collection = cfg.QdrantCollection
	}

	queryText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryText == "" {
		apperrors.FatalError(apperrors.NewInvalidInput(
			"Missing query", "No query text was given", "Pass the query as an argument: repocanvas search \"load config\"", nil,
		), *jsonOut)
	}

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		apperrors.FatalError(err, *jsonOut)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	hits, err := engine.Search(ctx, queryText, *topK, *collection)
	if err != nil {
		fatalQueryError(err, cfg.QdrantURL, *jsonOut)
	}

	if *jsonOut {
		if err := output.JSON(map[string]any{
			"results":       hits,
			"query":         queryText,
			"total_results": len(hits),
		}); err != nil {
			apperrors.FatalError(err, true)
		}
		return
	}

	if len(hits) == 0 {
		fmt.Printf("No results for %q\n", queryText)
		return
	}
	for i, h := range hits {
		_, _ = ui.Bold.Printf("%2d. %s", i+1, h.NodeID)
		fmt.Printf("  (score %.3f)\n", h.Score)
		_, _ = ui.Dim.Printf("    %s:%d\n", h.File, h.StartLine)
		if line := firstLineOf(h.Snippet); line != "" {
			fmt.Printf("    %s\n", line)
		}
	}
}

// runAnalyze executes the 'analyze' command.
func runAnalyze(args []string, configPath string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	topK := fs.Int("top-k", 10, "Number of search hits to connect")
	collection := fs.String("collection", "", "Collection name")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: repocanvas analyze [options] <question>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(apperrors.ExitInput)
	}

	ui.InitColors(*noColor)
	logger := newLogger(*debug)
	cfg := loadConfig(configPath)
	if *collection == "" {
		*collection = cfg.QdrantCollection
	}

	queryText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryText == "" {
		apperrors.FatalError(apperrors.NewInvalidInput(
			"Missing question", "No question text was given", "Pass the question as an argument: repocanvas analyze \"how is auth wired\"", nil,
		), *jsonOut)
	}

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		apperrors.FatalError(err, *jsonOut)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	start := time.Now()
	answer, err := engine.Analyze(ctx, queryText, *topK, *collection)
	if err != nil {
		fatalQueryError(err, cfg.QdrantURL, *jsonOut)
	}

	if *jsonOut {
		if err := output.JSON(map[string]any{
			"answer_path":     answer.AnswerPath,
			"path_edges":      answer.PathEdges,
			"snippets":        answer.Snippets,
			"summary":         answer.Summary,
			"processing_time": time.Since(start).Seconds(),
		}); err != nil {
			apperrors.FatalError(err, true)
		}
		return
	}

	_, _ = ui.Bold.Println(answer.Summary.OneLiner)
	fmt.Println()
	for _, step := range answer.Summary.Steps {
		fmt.Printf("  %s\n", step)
	}
	if len(answer.PathEdges) > 0 {
		fmt.Println()
		_, _ = ui.Cyan.Println("Answer path:")
		for _, e := range answer.PathEdges {
			fmt.Printf("  %s -[%s]-> %s\n", e.Source, e.Type, e.Target)
		}
	}
	for _, caveat := range answer.Summary.Caveats {
		_, _ = ui.Dim.Printf("note: %s\n", caveat)
	}
}

// fatalQueryError maps engine errors onto the CLI exit codes.
func fatalQueryError(err error, qdrantURL string, jsonOut bool) {
	switch {
	case errors.Is(err, qdrant.ErrUnavailable):
		apperrors.FatalError(apperrors.NewIndexUnavailable(
			"Cannot reach the vector index",
			err.Error(),
			fmt.Sprintf("Start Qdrant or set QDRANT_URL (current: %s)", qdrantURL),
			err,
		), jsonOut)
	case errors.Is(err, context.DeadlineExceeded):
		apperrors.FatalError(apperrors.NewTimeout(
			"Query timed out",
			err.Error(),
			"Retry with a smaller --top-k or check index health",
			err,
		), jsonOut)
	default:
		apperrors.FatalError(apperrors.NewNotFound(
			"Query failed",
			err.Error(),
			"Check that the collection is indexed",
			err,
		), jsonOut)
	}
}

func firstLineOf(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
