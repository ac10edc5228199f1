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

// Package config resolves runtime configuration from three layers, lowest
// precedence first: built-in defaults, an optional YAML project file
// (.repocanvas/project.yaml), and environment variables (optionally loaded
// from a .env file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultProjectFile is the conventional project configuration path.
const DefaultProjectFile = ".repocanvas/project.yaml"

// Config holds every runtime knob the service and CLI consume.
type Config struct {
	// DataDir holds graph.json and the journal sidecars.
	DataDir string `yaml:"data_dir"`

	// TmpDir holds cloned repositories.
	TmpDir string `yaml:"tmp_dir"`

	// QdrantURL is the base URL of the external vector index.
	QdrantURL string `yaml:"qdrant_url"`

	// QdrantCollection is the default collection name.
	QdrantCollection string `yaml:"qdrant_collection"`

	// ModelName is the embedding model reported in the journal.
	ModelName string `yaml:"model_name"`

	// EmbeddingProvider selects the provider: mock, ollama, or openai.
	EmbeddingProvider string `yaml:"embedding_provider"`

	// SummarizerURL is the optional summarizer collaborator base URL.
	SummarizerURL string `yaml:"summarizer_url"`

	// WorkerHost and WorkerPort bind the HTTP service.
	WorkerHost string `yaml:"worker_host"`
	WorkerPort int    `yaml:"worker_port"`

	// EmbedWorkers sizes the embedding worker pool.
	EmbedWorkers int `yaml:"embed_workers"`

	// Environment labels health output ("development", "production").
	Environment string `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:           "data",
		TmpDir:            os.TempDir(),
		QdrantURL:         "http://localhost:6333",
		QdrantCollection:  "repocanvas",
		ModelName:         "all-MiniLM-L6-v2",
		EmbeddingProvider: "mock",
		WorkerHost:        "0.0.0.0",
		WorkerPort:        8002,
		EmbedWorkers:      4,
		Environment:       "development",
	}
}

// Load resolves the configuration. projectFile may be empty to use the
// conventional path; a missing project file is not an error.
func Load(projectFile string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg := Defaults()

	if projectFile == "" {
		projectFile = DefaultProjectFile
	}
	if data, err := os.ReadFile(projectFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", projectFile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", projectFile, err)
	}

	applyEnv(&cfg)

	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = 4
	}
	return &cfg, nil
}

// applyEnv overlays the environment knobs. All are optional.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TMP_DIR"); v != "" {
		cfg.TmpDir = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.QdrantURL = v
	}
	if v := os.Getenv("QDRANT_COLLECTION_NAME"); v != "" {
		cfg.QdrantCollection = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		cfg.ModelName = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.EmbeddingProvider = v
	}
	if v := os.Getenv("SUMMARIZER_URL"); v != "" {
		cfg.SummarizerURL = v
	}
	if v := os.Getenv("WORKER_HOST"); v != "" {
		cfg.WorkerHost = v
	}
	if v := os.Getenv("WORKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.WorkerPort = port
		}
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
}

// GraphPath is the default graph.json location under the data dir.
func (c *Config) GraphPath() string {
	return filepath.Join(c.DataDir, "graph.json")
}

// ListenAddr is the host:port the HTTP service binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.WorkerHost, c.WorkerPort)
}

// JobWorkers sizes the job worker pool: max(2, cpu_count).
func JobWorkers() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	return n
}
