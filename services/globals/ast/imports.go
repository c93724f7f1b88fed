// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ImportKind distinguishes the syntactic forms that name a module.
type ImportKind int

const (
	// ImportStatic is `import ... from "x"` or `import "x"`.
	ImportStatic ImportKind = iota

	// ImportReexport is `export ... from "x"`.
	ImportReexport

	// ImportDynamic is `import("x")`.
	ImportDynamic
)

// String returns the kind name.
func (k ImportKind) String() string {
	switch k {
	case ImportReexport:
		return "reexport"
	case ImportDynamic:
		return "dynamic"
	default:
		return "static"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ImportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ImportKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "static":
		*k = ImportStatic
	case "reexport":
		*k = ImportReexport
	case "dynamic":
		*k = ImportDynamic
	default:
		return fmt.Errorf("unknown import kind %q", text)
	}
	return nil
}

// Location is a 1-based line / 0-based column span.
type Location struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`
}

// Import is one module specifier occurrence.
type Import struct {
	// Path is the module specifier.
	Path string `json:"path"`

	// Kind is the syntactic form.
	Kind ImportKind `json:"kind"`

	// Names are the imported (or re-exported) property names.
	Names []string `json:"names,omitempty"`

	// Alias is the default or namespace binding name, if any.
	Alias string `json:"alias,omitempty"`

	// IsDefault is set for `import d from "x"`.
	IsDefault bool `json:"is_default,omitempty"`

	// IsNamespace is set for `import * as ns from "x"` and `export * from "x"`.
	IsNamespace bool `json:"is_namespace,omitempty"`

	// Location is where the statement or call appears.
	Location Location `json:"location"`
}

func locationOf(node *sitter.Node) Location {
	return Location{
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
}

// ExtractImports lists every static import, re-export and literal dynamic
// import in the tree, in source order.
//
// Description:
//
//	Static forms are read from top-level statements. Dynamic imports are
//	found anywhere in the tree; only those with a string literal first
//	argument are reported.
//
// Thread Safety:
//
//	Safe for concurrent use on the same Tree.
func ExtractImports(tree *Tree) []Import {
	imports := make([]Import, 0, 8)
	if tree == nil || tree.Root == nil {
		return imports
	}

	stack := []*sitter.Node{tree.Root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node.Type() {
		case jsNodeImportStatement:
			if imp, ok := extractImport(node, tree.Source); ok {
				imports = append(imports, imp)
			}
			continue
		case jsNodeExportStatement:
			if imp, ok := extractReexport(node, tree.Source); ok {
				imports = append(imports, imp)
			}
		case jsNodeCallExpression:
			if path, ok := DynamicImportSource(node, tree.Source); ok {
				imports = append(imports, Import{
					Path:     path,
					Kind:     ImportDynamic,
					Location: locationOf(node),
				})
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return imports
}

// extractImport reads an import statement.
func extractImport(node *sitter.Node, source []byte) (Import, bool) {
	imp := Import{Kind: ImportStatic, Location: locationOf(node)}

	path, ok := StringValue(ModuleSource(node), source)
	if !ok {
		return imp, false
	}
	imp.Path = path

	if clause := FirstChildOfType(node, jsNodeImportClause); clause != nil {
		extractImportClause(clause, source, &imp)
	}
	return imp, true
}

// extractImportClause extracts the import clause details.
func extractImportClause(node *sitter.Node, source []byte, imp *Import) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case jsNodeIdentifier:
			// Default import
			imp.Alias = NodeText(child, source)
			imp.IsDefault = true
		case jsNodeNamespaceImport:
			// import * as foo
			if id := FirstChildOfType(child, jsNodeIdentifier); id != nil {
				imp.Alias = NodeText(id, source)
			}
			imp.IsNamespace = true
		case jsNodeNamedImports:
			// import { foo, bar as baz }
			for _, spec := range ChildrenOfType(child, jsNodeImportSpecifier) {
				if name := spec.ChildByFieldName("name"); name != nil {
					imp.Names = append(imp.Names, ModuleExportName(name, source))
				}
			}
		}
	}
}

// extractReexport reads `export ... from "x"`. Exports without a source
// are not imports.
func extractReexport(node *sitter.Node, source []byte) (Import, bool) {
	imp := Import{Kind: ImportReexport, Location: locationOf(node)}

	path, ok := StringValue(ModuleSource(node), source)
	if !ok {
		return imp, false
	}
	imp.Path = path

	if clause := FirstChildOfType(node, jsNodeExportClause); clause != nil {
		for _, spec := range ChildrenOfType(clause, jsNodeExportSpecifier) {
			if name := spec.ChildByFieldName("name"); name != nil {
				imp.Names = append(imp.Names, ModuleExportName(name, source))
			}
		}
	} else {
		imp.IsNamespace = true
		if ns := FirstChildOfType(node, jsNodeNamespaceExport); ns != nil {
			for i := 0; i < int(ns.NamedChildCount()); i++ {
				imp.Alias = ModuleExportName(ns.NamedChild(i), source)
			}
		}
	}
	return imp, true
}

// DynamicImportSource returns the literal specifier of an `import("x")`
// call.
//
// Description:
//
//	The grammar represents a dynamic import as a call_expression whose
//	function is the `import` keyword. Returns ok=false for any other call,
//	for calls without arguments, and when the first argument is not a
//	plain string literal (template literals and computed expressions
//	included).
func DynamicImportSource(node *sitter.Node, source []byte) (string, bool) {
	if node == nil || node.Type() != jsNodeCallExpression {
		return "", false
	}
	callee := node.ChildByFieldName("function")
	if callee == nil || callee.Type() != jsNodeImport {
		return "", false
	}
	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", false
	}
	return StringValue(args.NamedChild(0), source)
}
