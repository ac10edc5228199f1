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
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

var goDecisions = decisionSpec{
	types: map[string]bool{
		"if_statement":       true,
		"for_statement":      true,
		"expression_case":    true,
		"type_case":          true,
		"communication_case": true,
	},
	boolOp: "binary_expression",
	boundaries: map[string]bool{
		"function_declaration": true,
		"method_declaration":   true,
		"func_literal":         true,
		"type_declaration":     true,
	},
}

var goCalls = callSpec{
	callNode:    "call_expression",
	calleeField: "function",
	memberNode:  "selector_expression",
	memberField: "field",
	boundaries:  map[string]bool{},
}

// GoExtractor extracts top-level functions, methods, and type declarations
// from Go sources using the tree-sitter grammar.
type GoExtractor struct{}

func (GoExtractor) Language() string     { return "go" }
func (GoExtractor) Extensions() []string { return []string{".go"} }

func (e GoExtractor) Extract(relPath string, content []byte) (*FileResult, error) {
	tree, err := parseTree(golang.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	result := &FileResult{Decisions: make(map[string]int)}
	fileID := FileNodeID(relPath)

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)

		switch decl.Type() {
		case "function_declaration":
			e.extractFunc(decl, content, lines, relPath, "", result)
		case "method_declaration":
			e.extractFunc(decl, content, lines, relPath, goReceiverType(decl, content), result)
		case "type_declaration":
			e.extractTypes(decl, content, lines, relPath, result)
		case "import_declaration":
			for _, name := range goImportNames(decl, content) {
				result.ImportRefs = append(result.ImportRefs, ImportRef{FileID: fileID, Name: name})
			}
		}
	}

	return result, nil
}

func (e GoExtractor) extractFunc(decl *sitter.Node, content []byte, lines []string, relPath, receiver string, result *FileResult) {
	nameNode := decl.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)
	qualname := name
	if receiver != "" {
		qualname = receiver + "." + name
	}
	start := nodeStartLine(decl)
	end := nodeEndLine(decl)

	node := graph.Node{
		ID:        graph.NodeID(graph.KindFunction, qualname, relPath, start),
		Name:      name,
		Label:     name,
		Kind:      graph.KindFunction,
		File:      relPath,
		StartLine: start,
		EndLine:   end,
		Code:      sliceLines(lines, start, end),
		Doc:       precedingCommentDoc(decl, content),
		Language:  "go",
	}
	result.Nodes = append(result.Nodes, node)
	result.Decisions[node.ID] = countDecisions(decl, content, goDecisions)
	result.CallRefs = append(result.CallRefs, collectCalls(decl, content, node.ID, goCalls)...)
}

// extractTypes emits a class-kind node per type_spec inside a declaration
// ("type Foo struct{...}" or a grouped type block).
func (e GoExtractor) extractTypes(decl *sitter.Node, content []byte, lines []string, relPath string, result *FileResult) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		spec := decl.NamedChild(i)
		if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)

		// Single-spec declarations slice from the `type` keyword so the doc
		// comment boundary and code include the full declaration.
		sliceFrom := spec
		if decl.NamedChildCount() == 1 {
			sliceFrom = decl
		}
		start := nodeStartLine(sliceFrom)
		end := nodeEndLine(spec)

		node := graph.Node{
			ID:        graph.NodeID(graph.KindClass, name, relPath, start),
			Name:      name,
			Label:     name,
			Kind:      graph.KindClass,
			File:      relPath,
			StartLine: start,
			EndLine:   end,
			Code:      sliceLines(lines, start, end),
			Doc:       precedingCommentDoc(sliceFrom, content),
			Language:  "go",
		}
		result.Nodes = append(result.Nodes, node)
		result.Decisions[node.ID] = 0
	}
}

// goReceiverType returns the bare receiver type name of a method
// declaration ("*Server" and "Server" both yield "Server").
func goReceiverType(decl *sitter.Node, content []byte) string {
	recv := decl.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := nodeText(recv, content)
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typ := fields[len(fields)-1]
	typ = strings.TrimPrefix(typ, "*")
	if i := strings.Index(typ, "["); i >= 0 {
		typ = typ[:i] // strip generic type parameters
	}
	return typ
}

// goImportNames lists the referenced package names of an import declaration
// (the final path component, or the alias when present).
func goImportNames(decl *sitter.Node, content []byte) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && name != "_" && name != "." && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "import_spec" {
			if alias := n.ChildByFieldName("name"); alias != nil {
				add(nodeText(alias, content))
				return
			}
			if path := n.ChildByFieldName("path"); path != nil {
				p := strings.Trim(nodeText(path, content), `"`)
				if i := strings.LastIndex(p, "/"); i >= 0 {
					p = p[i+1:]
				}
				add(p)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(decl)
	return names
}
