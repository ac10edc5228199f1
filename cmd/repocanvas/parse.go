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
	"flag"
	"fmt"
	"os"

	apperrors "github.com/kraklabs/repocanvas/internal/errors"
	"github.com/kraklabs/repocanvas/internal/output"
	"github.com/kraklabs/repocanvas/internal/ui"
	"github.com/kraklabs/repocanvas/pkg/pipeline"
)

// runParse executes the 'parse' command: repository → annotated graph.json.
//
// Flags:
//   - --repo-url: git URL to clone (mutually exclusive with --repo-path)
//   - --repo-path: local repository path
//   - --branch: branch to clone
//   - --output: graph.json destination
//   - --json: machine-readable output
//   - --debug: debug logging
func runParse(args []string, configPath string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	repoURL := fs.String("repo-url", "", "Git URL to clone")
	repoPath := fs.String("repo-path", "", "Local repository path")
	branch := fs.String("branch", "", "Branch to clone")
	outputPath := fs.String("output", "", "graph.json destination (default: <data_dir>/graph.json)")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	quiet := fs.Bool("q", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: repocanvas parse [options]

Parses a repository into an annotated program graph and writes graph.json.

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

	if *repoURL == "" && *repoPath == "" {
		apperrors.FatalError(apperrors.NewInvalidInput(
			"Missing repository source",
			"Neither --repo-url nor --repo-path was given",
			"Pass --repo-path . to parse the current directory",
			nil,
		), *jsonOut)
	}

	p, fetcher, err := buildPipeline(cfg, logger)
	if err != nil {
		apperrors.FatalError(apperrors.NewInvalidInput("Cannot initialize pipeline", err.Error(), "Check the embedding provider configuration", err), *jsonOut)
	}
	defer func() { _ = fetcher.Close() }()

	progress := NewProgressConfig(GlobalFlags{JSON: *jsonOut, Quiet: *quiet, NoColor: *noColor})
	spinner := NewSpinner(progress, "parsing repository")

	result, err := p.Parse(context.Background(), pipeline.ParseOptions{
		RepoURL:    *repoURL,
		RepoPath:   *repoPath,
		Branch:     *branch,
		OutputPath: *outputPath,
	})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		if *repoURL != "" {
			apperrors.FatalError(apperrors.NewFetchFailed(
				"Repository parse failed",
				err.Error(),
				"Check the URL and branch, and that git is installed",
				err,
			), *jsonOut)
		}
		apperrors.FatalError(apperrors.NewParseFailed(
			"Repository parse failed",
			err.Error(),
			"Check the path points at a readable source tree",
			err,
		), *jsonOut)
	}

	if *jsonOut {
		if err := output.JSON(result); err != nil {
			apperrors.FatalError(err, true)
		}
		return
	}

	ui.Successf("Parsed %d files into %d nodes and %d edges", result.FilesProcessed, result.NodeCount, result.EdgeCount)
	if result.ParseErrors > 0 {
		ui.Warningf("Skipped %d files with parse errors", result.ParseErrors)
	}
	fmt.Printf("Graph written to %s\n", result.GraphPath)
}
