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
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseTree runs a tree-sitter parse and reports whether the tree is usable.
// Tree-sitter is error-tolerant: a tree with scattered syntax errors is
// still traversed; callers fall back only when the root itself is an error.
func parseTree(lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	p.SetLanguage(lang)
	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	root := tree.RootNode()
	if root == nil || root.Type() == "ERROR" {
		tree.Close()
		return nil, fmt.Errorf("tree-sitter produced no usable tree")
	}
	return tree, nil
}

func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

func nodeStartLine(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }
func nodeEndLine(n *sitter.Node) int   { return int(n.EndPoint().Row) + 1 }

// decisionSpec parameterizes cyclomatic decision counting per language.
type decisionSpec struct {
	// types are node types that each count as one decision.
	types map[string]bool

	// boolOp is the node type of binary boolean expressions; counted only
	// when the operator field matches a logical-and/or.
	boolOp string

	// boundaries are node types that start a nested function/class body;
	// their subtrees are excluded. Python extracts each nested definition
	// as a node of its own; Go func literals and nested JavaScript
	// functions and classes are not extracted as nodes.
	boundaries map[string]bool
}

// countDecisions counts decision constructs under root, excluding the
// subtrees of nested boundary nodes. The root node itself is not treated as
// a boundary even when its type is one.
func countDecisions(root *sitter.Node, content []byte, spec decisionSpec) int {
	count := 0
	var walk func(n *sitter.Node, isRoot bool)
	walk = func(n *sitter.Node, isRoot bool) {
		if n == nil {
			return
		}
		if !isRoot && spec.boundaries[n.Type()] {
			return
		}
		t := n.Type()
		if spec.types[t] {
			count++
		} else if t == spec.boolOp && isLogicalOperator(n, content) {
			count++
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), false)
		}
	}
	walk(root, true)
	return count
}

// isLogicalOperator reports whether a binary/boolean expression node uses a
// logical and/or operator.
func isLogicalOperator(n *sitter.Node, content []byte) bool {
	op := n.ChildByFieldName("operator")
	if op == nil {
		// Python's boolean_operator has an operator field; if a grammar
		// lacks one, scan the literal children.
		for i := 0; i < int(n.ChildCount()); i++ {
			switch nodeText(n.Child(i), content) {
			case "and", "or", "&&", "||":
				return true
			}
		}
		return false
	}
	switch nodeText(op, content) {
	case "and", "or", "&&", "||":
		return true
	}
	return false
}

// callSpec parameterizes call-expression collection per language.
type callSpec struct {
	callNode    string // "call" or "call_expression"
	calleeField string // typically "function"
	memberNode  string // attribute / member_expression / selector_expression
	memberField string // attribute / property / field
	boundaries  map[string]bool
}

// collectCalls gathers the call expressions reachable under root (excluding
// nested boundary subtrees) as raw refs attributed to callerID.
func collectCalls(root *sitter.Node, content []byte, callerID string, spec callSpec) []CallRef {
	var refs []CallRef
	var walk func(n *sitter.Node, isRoot bool)
	walk = func(n *sitter.Node, isRoot bool) {
		if n == nil {
			return
		}
		if !isRoot && spec.boundaries[n.Type()] {
			return
		}
		if n.Type() == spec.callNode {
			if ref, ok := calleeRef(n, content, callerID, spec); ok {
				refs = append(refs, ref)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), false)
		}
	}
	walk(root, true)
	return refs
}

func calleeRef(call *sitter.Node, content []byte, callerID string, spec callSpec) (CallRef, bool) {
	fn := call.ChildByFieldName(spec.calleeField)
	if fn == nil {
		return CallRef{}, false
	}
	switch fn.Type() {
	case "identifier":
		return CallRef{CallerID: callerID, Name: nodeText(fn, content)}, true
	case spec.memberNode:
		member := fn.ChildByFieldName(spec.memberField)
		if member == nil {
			return CallRef{}, false
		}
		return CallRef{
			CallerID:  callerID,
			Name:      nodeText(member, content),
			Qualified: nodeText(fn, content),
		}, true
	}
	return CallRef{}, false
}

// precedingCommentDoc collects the contiguous block of comment siblings
// immediately preceding decl, stripping comment markers. This is the doc
// convention for // and # style languages.
func precedingCommentDoc(decl *sitter.Node, content []byte) string {
	var parts []string
	prev := decl.PrevNamedSibling()
	expect := nodeStartLine(decl) - 1
	for prev != nil && prev.Type() == "comment" && nodeEndLine(prev) == expect {
		parts = append([]string{stripCommentMarkers(nodeText(prev, content))}, parts...)
		expect = nodeStartLine(prev) - 1
		prev = prev.PrevNamedSibling()
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func stripCommentMarkers(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "///"):
		s = strings.TrimPrefix(s, "///")
	case strings.HasPrefix(s, "//"):
		s = strings.TrimPrefix(s, "//")
	case strings.HasPrefix(s, "#"):
		s = strings.TrimPrefix(s, "#")
	case strings.HasPrefix(s, "/*"):
		s = strings.TrimSuffix(strings.TrimPrefix(s, "/*"), "*/")
		var lines []string
		for _, ln := range strings.Split(s, "\n") {
			lines = append(lines, strings.TrimPrefix(strings.TrimSpace(ln), "*"))
		}
		s = strings.Join(lines, "\n")
	}
	return strings.TrimSpace(s)
}
