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

	apperrors "github.com/kraklabs/repocanvas/internal/errors"
	"github.com/kraklabs/repocanvas/internal/output"
	"github.com/kraklabs/repocanvas/internal/ui"
	"github.com/kraklabs/repocanvas/pkg/pipeline"
	"github.com/kraklabs/repocanvas/pkg/qdrant"
)

// runParseAndIndex executes the combined 'parse-and-index' command.
func runParseAndIndex(args []string, configPath string) {
	fs := flag.NewFlagSet("parse-and-index", flag.ExitOnError)
	repoURL := fs.String("repo-url", "", "Git URL to clone")
	repoPath := fs.String("repo-path", "", "Local repository path")
	branch := fs.String("branch", "", "Branch to clone")
	collection := fs.String("collection", "", "Target collection name")
	recreate := fs.Bool("recreate", false, "Drop and repopulate the collection")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	quiet := fs.Bool("q", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: repocanvas parse-and-index [options]

Runs the full pipeline: fetch, parse, annotate, embed, upsert, journal.

Options:
`)
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

	if *repoURL == "" && *repoPath == "" {
		apperrors.FatalError(apperrors.NewInvalidInput(
			"Missing repository source",
			"Neither --repo-url nor --repo-path was given",
			"Pass --repo-path . to index the current directory",
			nil,
		), *jsonOut)
	}

	p, fetcher, err := buildPipeline(cfg, logger)
	if err != nil {
		apperrors.FatalError(apperrors.NewInvalidInput("Cannot initialize pipeline", err.Error(), "Check the embedding provider configuration", err), *jsonOut)
	}
	defer func() { _ = fetcher.Close() }()

	progress := NewProgressConfig(GlobalFlags{JSON: *jsonOut, Quiet: *quiet, NoColor: *noColor})
	spinner := NewSpinner(progress, "parsing and indexing")

	result, err := p.ParseAndIndex(context.Background(),
		pipeline.ParseOptions{RepoURL: *repoURL, RepoPath: *repoPath, Branch: *branch},
		pipeline.IndexOptions{Collection: *collection, Recreate: *recreate},
	)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		if errors.Is(err, qdrant.ErrUnavailable) {
			apperrors.FatalError(apperrors.NewIndexUnavailable(
				"Cannot reach the vector index",
				err.Error(),
				fmt.Sprintf("Start Qdrant or set QDRANT_URL (current: %s)", cfg.QdrantURL),
				err,
			), *jsonOut)
		}
		apperrors.FatalError(apperrors.NewParseFailed("Pipeline failed", err.Error(), "See the log output for the failing phase", err), *jsonOut)
	}

	if *jsonOut {
		if err := output.JSON(result); err != nil {
			apperrors.FatalError(err, true)
		}
		return
	}

	ui.Successf("Parsed %d nodes, indexed %d points into %q",
		result.Parse.NodeCount, result.Index.PointsCount, result.Index.Collection)
}

// runCollections executes the 'collections' command.
func runCollections(args []string, configPath string) {
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: repocanvas collections [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(apperrors.ExitInput)
	}

	ui.InitColors(*noColor)
	logger := newLogger(*debug)
	cfg := loadConfig(configPath)

	client := qdrantClient(cfg, logger)
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	names, err := client.ListCollections(ctx)
	if err != nil {
		apperrors.FatalError(apperrors.NewIndexUnavailable(
			"Cannot reach the vector index",
			err.Error(),
			fmt.Sprintf("Start Qdrant or set QDRANT_URL (current: %s)", cfg.QdrantURL),
			err,
		), *jsonOut)
	}

	type summary struct {
		Name        string `json:"name"`
		Status      string `json:"status,omitempty"`
		PointsCount uint64 `json:"points_count"`
		VectorSize  int    `json:"vector_size,omitempty"`
	}
	summaries := make([]summary, 0, len(names))
	for _, name := range names {
		s := summary{Name: name}
		if info, err := client.GetCollection(ctx, name); err == nil {
			s.Status = info.Status
			s.PointsCount = info.PointsCount
			s.VectorSize = info.VectorSize
		}
		summaries = append(summaries, s)
	}

	if *jsonOut {
		if err := output.JSON(map[string]any{"collections": summaries, "total": len(summaries)}); err != nil {
			apperrors.FatalError(err, true)
		}
		return
	}

	if len(summaries) == 0 {
		fmt.Println("No collections.")
		return
	}
	for _, s := range summaries {
		_, _ = ui.Bold.Printf("%s", s.Name)
		fmt.Printf("  %d points", s.PointsCount)
		if s.VectorSize > 0 {
			fmt.Printf(", %d dims", s.VectorSize)
		}
		if s.Status != "" {
			fmt.Printf(", %s", s.Status)
		}
		fmt.Println()
	}
}
