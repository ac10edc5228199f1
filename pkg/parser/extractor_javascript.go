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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

var javascriptDecisions = decisionSpec{
	types: map[string]bool{
		"if_statement":       true,
		"for_statement":      true,
		"for_in_statement":   true,
		"while_statement":    true,
		"do_statement":       true,
		"switch_case":        true,
		"catch_clause":       true,
		"ternary_expression": true,
	},
	boolOp: "binary_expression",
	boundaries: map[string]bool{
		"function_declaration":           true,
		"generator_function_declaration": true,
		"class_declaration":              true,
		"function_expression":            true,
		"arrow_function":                 true,
	},
}

var javascriptCalls = callSpec{
	callNode:    "call_expression",
	calleeField: "function",
	memberNode:  "member_expression",
	memberField: "property",
	boundaries:  map[string]bool{},
}

// JavaScriptExtractor extracts top-level functions and classes from
// JavaScript sources using the tree-sitter grammar.
type JavaScriptExtractor struct{}

func (JavaScriptExtractor) Language() string     { return "javascript" }
func (JavaScriptExtractor) Extensions() []string { return []string{".js", ".mjs", ".cjs"} }

func (e JavaScriptExtractor) Extract(relPath string, content []byte) (*FileResult, error) {
	tree, err := parseTree(javascript.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	result := &FileResult{Decisions: make(map[string]int)}
	fileID := FileNodeID(relPath)

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		decl := child
		// export function foo() {} and export default class Bar {}
		if decl.Type() == "export_statement" {
			if inner := decl.ChildByFieldName("declaration"); inner != nil {
				decl = inner
			}
		}

		switch decl.Type() {
		case "function_declaration", "generator_function_declaration":
			e.extractDecl(decl, content, lines, relPath, graph.KindFunction, result)
		case "class_declaration":
			e.extractDecl(decl, content, lines, relPath, graph.KindClass, result)
		case "lexical_declaration", "variable_declaration":
			e.extractArrowBindings(decl, content, lines, relPath, result)
		case "import_statement":
			for _, name := range javascriptImportNames(decl, content) {
				result.ImportRefs = append(result.ImportRefs, ImportRef{FileID: fileID, Name: name})
			}
		}
	}

	return result, nil
}

func (e JavaScriptExtractor) extractDecl(decl *sitter.Node, content []byte, lines []string, relPath string, kind graph.NodeKind, result *FileResult) {
	nameNode := decl.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	e.emit(decl, nodeText(nameNode, content), content, lines, relPath, kind, result)
}

// extractArrowBindings treats `const foo = () => {...}` and
// `const foo = function() {...}` as named function nodes.
func (e JavaScriptExtractor) extractArrowBindings(decl *sitter.Node, content []byte, lines []string, relPath string, result *FileResult) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		declarator := decl.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		value := declarator.ChildByFieldName("value")
		nameNode := declarator.ChildByFieldName("name")
		if value == nil || nameNode == nil {
			continue
		}
		if value.Type() != "arrow_function" && value.Type() != "function_expression" {
			continue
		}
		e.emit(value, nodeText(nameNode, content), content, lines, relPath, graph.KindFunction, result)
	}
}

func (e JavaScriptExtractor) emit(body *sitter.Node, name string, content []byte, lines []string, relPath string, kind graph.NodeKind, result *FileResult) {
	start := nodeStartLine(body)
	end := nodeEndLine(body)

	node := graph.Node{
		ID:        graph.NodeID(kind, name, relPath, start),
		Name:      name,
		Label:     name,
		Kind:      kind,
		File:      relPath,
		StartLine: start,
		EndLine:   end,
		Code:      sliceLines(lines, start, end),
		Doc:       precedingCommentDoc(topmostDecl(body), content),
		Language:  "javascript",
	}
	result.Nodes = append(result.Nodes, node)
	result.Decisions[node.ID] = countDecisions(body, content, javascriptDecisions)
	result.CallRefs = append(result.CallRefs, collectCalls(body, content, node.ID, javascriptCalls)...)
}

// topmostDecl climbs from an inner declaration node to the statement whose
// preceding siblings carry the doc comment (export_statement or the
// lexical_declaration wrapping an arrow binding).
func topmostDecl(n *sitter.Node) *sitter.Node {
	cur := n
	for parent := cur.Parent(); parent != nil; parent = cur.Parent() {
		switch parent.Type() {
		case "export_statement", "lexical_declaration", "variable_declaration", "variable_declarator":
			cur = parent
		default:
			return cur
		}
	}
	return cur
}

// javascriptImportNames lists the local names bound by an import statement
// plus the module source (without quotes).
func javascriptImportNames(decl *sitter.Node, content []byte) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.Trim(strings.TrimSpace(name), `"'`)
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier":
			add(nodeText(n, content))
		case "string":
			// Module source: "./utils" references the utils file node by stem.
			src := strings.Trim(nodeText(n, content), `"'`)
			if i := strings.LastIndex(src, "/"); i >= 0 {
				src = src[i+1:]
			}
			add(strings.TrimSuffix(src, ".js"))
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(decl)
	return names
}
