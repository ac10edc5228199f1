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

// Package main implements the repocanvas CLI for parsing repositories into
// program graphs, indexing them into the vector store, and querying them.
//
// Usage:
//
//	repocanvas parse --repo-path .           Parse a repository into graph.json
//	repocanvas index --collection code       Index graph.json into the vector store
//	repocanvas parse-and-index --repo-path . --collection code
//	repocanvas search "load configuration"   Semantic search
//	repocanvas analyze "how is auth wired"   Search plus answer path
//	repocanvas serve                         Start the HTTP worker
//	repocanvas collections                   List vector store collections
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are shared across subcommands.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .repocanvas/project.yaml (default: ./.repocanvas/project.yaml)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `RepoCanvas - repository graph indexing and semantic query

RepoCanvas parses a source repository into a typed program graph, embeds
each node into a vector space, persists the vectors to an external Qdrant
index, and answers semantic queries with a coherent path through the graph.

Usage:
  repocanvas <command> [options]

Commands:
  parse            Parse a repository into graph.json
  index            Index a graph into the vector store
  parse-and-index  Run both phases in one job
  search           Semantic search over an indexed collection
  analyze          Search plus answer-path analysis
  serve            Start the HTTP worker service
  collections      List vector store collections
  version          Show version information

Global Options:
  --config      Path to .repocanvas/project.yaml
  --version     Show version and exit

Examples:
  repocanvas parse --repo-path .
  repocanvas parse --repo-url https://github.com/user/repo.git --branch main
  repocanvas index --collection myrepo --recreate
  repocanvas search "parse configuration file" --top-k 5
  repocanvas analyze "how are requests authenticated" --json
  repocanvas serve --port 8002

Environment Variables:
  DATA_DIR                Data directory (graph.json, journal files)
  TMP_DIR                 Scratch directory for clones
  QDRANT_URL              Vector index URL (default: http://localhost:6333)
  QDRANT_COLLECTION_NAME  Default collection name
  MODEL_NAME              Embedding model name
  EMBEDDING_PROVIDER      mock | ollama | openai
  WORKER_HOST/WORKER_PORT HTTP bind address

For detailed command help: repocanvas <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("repocanvas %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "parse":
		runParse(rest, *configPath)
	case "index":
		runIndexCmd(rest, *configPath)
	case "parse-and-index":
		runParseAndIndex(rest, *configPath)
	case "search":
		runSearch(rest, *configPath)
	case "analyze":
		runAnalyze(rest, *configPath)
	case "serve":
		runServe(rest, *configPath)
	case "collections":
		runCollections(rest, *configPath)
	case "version":
		fmt.Printf("repocanvas %s (commit %s, built %s)\n", version, commit, date)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		flag.Usage()
		os.Exit(2)
	}
}
