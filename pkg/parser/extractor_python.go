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
	"github.com/smacker/go-tree-sitter/python"

	"github.com/kraklabs/repocanvas/pkg/graph"
)

// pythonDecisions maps tree-sitter node types to the fixed cyclomatic rule:
// if/elif/for/while/case/except, conditional expressions, and
// comprehension filter clauses each count one. Logical and/or is handled
// through the boolean_operator node. Nested def/class bodies are excluded;
// each nested definition is a node of its own.
var pythonDecisions = decisionSpec{
	types: map[string]bool{
		"if_statement":           true,
		"elif_clause":            true,
		"for_statement":          true,
		"while_statement":        true,
		"case_clause":            true,
		"except_clause":          true,
		"conditional_expression": true,
		"if_clause":              true, // comprehension filter
	},
	boolOp: "boolean_operator",
	boundaries: map[string]bool{
		"function_definition": true,
		"class_definition":    true,
	},
}

var pythonCalls = callSpec{
	callNode:    "call",
	calleeField: "function",
	memberNode:  "attribute",
	memberField: "attribute",
	boundaries: map[string]bool{
		"function_definition": true,
		"class_definition":    true,
	},
}

// PythonExtractor extracts functions and classes from Python sources using
// the tree-sitter grammar. Definitions are walked at every depth: methods
// and nested functions become nodes of their own, with dotted qualnames
// ("Shape.area", "outer.inner") in their ids.
type PythonExtractor struct{}

func (PythonExtractor) Language() string     { return "python" }
func (PythonExtractor) Extensions() []string { return []string{".py"} }

func (e PythonExtractor) Extract(relPath string, content []byte) (*FileResult, error) {
	tree, err := parseTree(python.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	result := &FileResult{Decisions: make(map[string]int)}

	e.walk(tree.RootNode(), "", content, lines, relPath, result)
	return result, nil
}

// walk recurses through the syntax tree collecting definitions, calls, and
// imports. prefix is the dotted qualname of the enclosing definitions.
func (e PythonExtractor) walk(n *sitter.Node, prefix string, content []byte, lines []string, relPath string, result *FileResult) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		decl := child
		if decl.Type() == "decorated_definition" {
			if inner := decl.ChildByFieldName("definition"); inner != nil {
				decl = inner
			}
		}

		switch decl.Type() {
		case "function_definition":
			e.extractDef(decl, child, prefix, content, lines, relPath, graph.KindFunction, result)
		case "class_definition":
			e.extractDef(decl, child, prefix, content, lines, relPath, graph.KindClass, result)
		case "import_statement", "import_from_statement":
			fileID := FileNodeID(relPath)
			for _, name := range pythonImportNames(decl, content) {
				result.ImportRefs = append(result.ImportRefs, ImportRef{FileID: fileID, Name: name})
			}
		default:
			e.walk(child, prefix, content, lines, relPath, result)
		}
	}
}

// extractDef records one function or class and recurses into its body for
// nested definitions. outer differs from decl only for decorated
// definitions, where the slice starts at the decorator.
func (e PythonExtractor) extractDef(decl, outer *sitter.Node, prefix string, content []byte, lines []string, relPath string, kind graph.NodeKind, result *FileResult) {
	nameNode := decl.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)
	qualname := name
	if prefix != "" {
		qualname = prefix + "." + name
	}
	start := nodeStartLine(outer)
	end := nodeEndLine(decl)

	node := graph.Node{
		ID:        graph.NodeID(kind, qualname, relPath, start),
		Name:      name,
		Label:     name,
		Kind:      kind,
		File:      relPath,
		StartLine: start,
		EndLine:   end,
		Code:      sliceLines(lines, start, end),
		Doc:       pythonDocstring(decl, content),
		Language:  "python",
	}
	result.Nodes = append(result.Nodes, node)
	result.Decisions[node.ID] = countDecisions(decl, content, pythonDecisions)
	result.CallRefs = append(result.CallRefs, collectCalls(decl, content, node.ID, pythonCalls)...)

	if body := decl.ChildByFieldName("body"); body != nil {
		e.walk(body, qualname, content, lines, relPath, result)
	}
}

// pythonDocstring returns the leading docstring of a def/class body,
// stripped of its quotes.
func pythonDocstring(decl *sitter.Node, content []byte) string {
	body := decl.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return stripPythonQuotes(nodeText(str, content))
}

func stripPythonQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// pythonImportNames lists the module and symbol names referenced by an
// import statement. "import a.b" yields "a.b"; "from m import x, y" yields
// "m", "x", "y".
func pythonImportNames(decl *sitter.Node, content []byte) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name != "" && name != "*" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "dotted_name", "relative_import":
			add(nodeText(n, content))
			return
		case "aliased_import":
			if orig := n.ChildByFieldName("name"); orig != nil {
				add(nodeText(orig, content))
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
