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

// runIndexCmd executes the 'index' command: graph.json → vector store.
//
// Flags:
//   - --collection: target collection (default from config)
//   - --graph: graph.json path (default: <data_dir>/graph.json)
//   - --recreate: drop and repopulate the collection
func runIndexCmd(args []string, configPath string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	collection := fs.String("collection", "", "Target collection name")
	graphPath := fs.String("graph", "", "graph.json path")
	recreate := fs.Bool("recreate", false, "Drop and repopulate the collection")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	quiet := fs.Bool("q", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: repocanvas index [options]

Embeds every node of the persisted graph and upserts the vectors into the
external index, then writes the point map and status journal.

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

	p, fetcher, err := buildPipeline(cfg, logger)
	if err != nil {
		apperrors.FatalError(apperrors.NewInvalidInput("Cannot initialize pipeline", err.Error(), "Check the embedding provider configuration", err), *jsonOut)
	}
	defer func() { _ = fetcher.Close() }()

	progress := NewProgressConfig(GlobalFlags{JSON: *jsonOut, Quiet: *quiet, NoColor: *noColor})
	spinner := NewSpinner(progress, "indexing graph")

	result, err := p.Index(context.Background(), nil, pipeline.IndexOptions{
		Collection: *collection,
		GraphPath:  *graphPath,
		Recreate:   *recreate,
	})
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
		apperrors.FatalError(apperrors.NewParseFailed(
			"Index run failed",
			err.Error(),
			"Run 'repocanvas parse' first if graph.json is missing",
			err,
		), *jsonOut)
	}

	if *jsonOut {
		if err := output.JSON(result); err != nil {
			apperrors.FatalError(err, true)
		}
		return
	}

	ui.Successf("Indexed %d points into %q (%s, %d dims, status %s)",
		result.PointsCount, result.Collection, result.Model, result.VectorSize, result.Status)
	if result.EmbedErrors > 0 {
		ui.Warningf("%d nodes failed embedding and were skipped", result.EmbedErrors)
	}
}
