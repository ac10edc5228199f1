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

package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"log/slog"
)

// Provider generates a dense vector for one text.
type Provider interface {
	// Embed returns a unit-L2-normalized vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the model name reported in the index journal.
	Model() string

	// Dimension returns the fixed output width d.
	Dimension() int
}

// CreateProvider creates an embedding provider by type.
// Supported providers:
//   - "mock": deterministic embeddings for testing (384 dimensions)
//   - "ollama": local Ollama server (default http://localhost:11434)
//   - "openai": OpenAI-compatible API (requires OPENAI_API_KEY)
func CreateProvider(providerType, model string, logger *slog.Logger) (Provider, error) {
	switch providerType {
	case "", "mock":
		if model == "" {
			model = "mock-embed"
		}
		return NewMockProvider(model, 384, logger), nil

	case "ollama":
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaProvider(baseURL, model, logger), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for openai provider")
		}
		baseURL := os.Getenv("OPENAI_API_BASE")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		if model == "" {
			model = "text-embedding-3-small"
		}
		return NewOpenAIProvider(apiKey, baseURL, model, logger), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, ollama, openai)", providerType)
	}
}

// MockProvider generates deterministic embeddings from a text hash. The
// vectors are not semantically meaningful; they exist so the pipeline and
// tests run without a model server.
type MockProvider struct {
	model     string
	dimension int
	logger    *slog.Logger
}

// NewMockProvider creates a mock embedding provider.
func NewMockProvider(model string, dimension int, logger *slog.Logger) *MockProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockProvider{model: model, dimension: dimension, logger: logger}
}

func (m *MockProvider) Model() string  { return m.model }
func (m *MockProvider) Dimension() int { return m.dimension }

// Embed generates a deterministic embedding based on the text hash.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := hashString(text)
	embedding := make([]float32, m.dimension)
	for i := 0; i < m.dimension; i++ {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		embedding[i] = val*2.0 - 1.0
	}
	return Normalize(embedding), nil
}

func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

// OllamaProvider generates embeddings using a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger

	dimension int // learned from the first response
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama embedding provider.
func NewOllamaProvider(baseURL, model string, logger *slog.Logger) *OllamaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // local models may be slow
		},
		logger: logger,
	}
}

func (o *OllamaProvider) Model() string { return o.model }

// Dimension returns the model's output width, or 0 before the first Embed.
func (o *OllamaProvider) Dimension() int { return o.dimension }

// Embed generates an embedding using the Ollama embeddings API.
func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbedRequest{Model: o.model, Prompt: text}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request (is Ollama running at %s?): %w", o.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp ollamaErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}
	o.dimension = len(embedding)
	return Normalize(embedding), nil
}

// OpenAIProvider generates embeddings using OpenAI or compatible APIs.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger

	dimension int
}

type openAIEmbedRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAIProvider creates a new OpenAI-compatible embedding provider.
func NewOpenAIProvider(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (o *OpenAIProvider) Model() string  { return o.model }
func (o *OpenAIProvider) Dimension() int { return o.dimension }

// Embed generates an embedding using the OpenAI embeddings API.
func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := openAIEmbedRequest{Input: text, Model: o.model, EncodingFormat: "float"}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp openAIErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp openAIEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResp.Data) == 0 || len(embedResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	embedding := make([]float32, len(embedResp.Data[0].Embedding))
	for i, v := range embedResp.Data[0].Embedding {
		embedding[i] = float32(v)
	}
	o.dimension = len(embedding)
	return Normalize(embedding), nil
}

// Normalize scales an embedding to unit length (L2 norm = 1). A zero
// vector is returned unchanged.
func Normalize(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}
	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}
	normf := float32(norm)
	for i := range embedding {
		embedding[i] /= normf
	}
	return embedding
}
