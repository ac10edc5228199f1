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

package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

// NodeRef points a summary at one answer-path node.
type NodeRef struct {
	NodeID      string `json:"node_id"`
	ExcerptLine string `json:"excerpt_line"`
}

// Summary is the structured answer explanation. The engine always emits
// this form, whether or not the freeform summarizer collaborator answered.
type Summary struct {
	OneLiner      string    `json:"one_liner"`
	Steps         []string  `json:"steps"`
	InputsOutputs []string  `json:"inputs_outputs"`
	Caveats       []string  `json:"caveats"`
	NodeRefs      []NodeRef `json:"node_refs"`
}

// Summarizer is the external collaborator that turns snippets into a
// natural-language summary.
type Summarizer interface {
	Summarize(ctx context.Context, question string, snippets []Snippet) (*Summary, error)
}

// Fixed disclaimers attached to every stub summary.
var stubCaveats = []string{
	"Derived from static analysis; runtime behavior may differ.",
	"Call edges resolved by name may include ambiguous matches.",
}

// maxSummarySteps bounds the per-node step list.
const maxSummarySteps = 5

// stubSummary builds the deterministic structured summary from the answer
// path alone.
func (e *Engine) stubSummary(queryText string, pathNodes []string, snippets []Snippet) Summary {
	steps := make([]string, 0, len(snippets))
	nodeRefs := make([]NodeRef, 0, len(snippets))

	for i, sn := range snippets {
		name := nodeName(sn.NodeID)
		excerpt := firstNonBlankLine(sn.Code)
		nodeRefs = append(nodeRefs, NodeRef{NodeID: sn.NodeID, ExcerptLine: excerpt})

		if i >= maxSummarySteps {
			continue
		}
		desc := firstLine(sn.Doc)
		if desc == "" {
			desc = excerpt
		}
		if desc == "" {
			desc = "executes core logic"
		}
		steps = append(steps, fmt.Sprintf("%d. %s (%s:%d): %s", i+1, name, sn.File, sn.StartLine, desc))
	}

	oneLiner := fmt.Sprintf("No matching code found for %q.", queryText)
	if len(pathNodes) == 1 {
		oneLiner = fmt.Sprintf("%s in %s is the closest match for %q.",
			nodeName(pathNodes[0]), fileOf(snippets, pathNodes[0]), queryText)
	} else if len(pathNodes) > 1 {
		oneLiner = fmt.Sprintf("Traces %d connected definitions from %s to %s for %q.",
			len(pathNodes), nodeName(pathNodes[0]), nodeName(pathNodes[len(pathNodes)-1]), queryText)
	}

	return Summary{
		OneLiner:      oneLiner,
		Steps:         steps,
		InputsOutputs: stubInputsOutputs(snippets),
		Caveats:       stubCaveats,
		NodeRefs:      nodeRefs,
	}
}

// stubInputsOutputs recovers signatures from the first and last snippet
// when possible, otherwise describes them generically.
func stubInputsOutputs(snippets []Snippet) []string {
	if len(snippets) == 0 {
		return []string{}
	}
	first := snippets[0]
	last := snippets[len(snippets)-1]

	var out []string
	if sig := firstNonBlankLine(first.Code); looksLikeSignature(sig) {
		out = append(out, fmt.Sprintf("input: %s", sig))
	} else {
		out = append(out, fmt.Sprintf("input: entry point %s", nodeName(first.NodeID)))
	}
	if sig := firstNonBlankLine(last.Code); looksLikeSignature(sig) {
		out = append(out, fmt.Sprintf("output: %s", sig))
	} else {
		out = append(out, fmt.Sprintf("output: result of %s", nodeName(last.NodeID)))
	}
	return out
}

func looksLikeSignature(line string) bool {
	for _, kw := range []string{"def ", "func ", "function ", "class ", "=>"} {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// nodeName extracts the qualname component of a canonical node id.
func nodeName(nodeID string) string {
	parts := strings.Split(nodeID, ":")
	if len(parts) >= 2 {
		return parts[1]
	}
	return nodeID
}

func fileOf(snippets []Snippet, nodeID string) string {
	for _, sn := range snippets {
		if sn.NodeID == nodeID {
			return sn.File
		}
	}
	return "unknown"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func firstNonBlankLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// HTTPSummarizer calls the external summarizer service over HTTP.
type HTTPSummarizer struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxTokens  int
}

// NewHTTPSummarizer creates a summarizer client for the service at baseURL.
func NewHTTPSummarizer(baseURL string, logger *slog.Logger) *HTTPSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSummarizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger:    logger,
		maxTokens: 400,
	}
}

type summarizeRequest struct {
	Snippets  []Snippet `json:"snippets"`
	Question  string    `json:"question"`
	MaxTokens int       `json:"max_tokens"`
}

type summarizeResponse struct {
	Summary Summary `json:"summary"`
}

// Summarize sends snippets and the question to the collaborator and
// returns its structured summary.
func (s *HTTPSummarizer) Summarize(ctx context.Context, question string, snippets []Snippet) (*Summary, error) {
	reqBody := summarizeRequest{Snippets: snippets, Question: question, MaxTokens: s.maxTokens}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/summarize", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summarizer request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read summarizer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summarizer error (status %d): %s", resp.StatusCode, string(body))
	}

	var out summarizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse summarizer response: %w", err)
	}
	if out.Summary.OneLiner == "" {
		return nil, fmt.Errorf("summarizer returned empty summary")
	}
	return &out.Summary, nil
}
