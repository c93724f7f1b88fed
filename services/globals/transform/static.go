// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transform

import (
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/globals/services/globals/ast"
)

// analyzeStatic handles top-level import and re-export statements.
func (r *rewriter) analyzeStatic() {
	root := r.tree.Root
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch ast.KindOf(node) {
		case ast.KindImportStatement:
			if r.analyzeImport(node) {
				r.touched = true
			}
		case ast.KindExportStatement:
			if r.analyzeExportNamed(node) {
				r.touched = true
			}
		}
	}
}

// analyzeImport removes an import of a mapped module and records its
// bindings.
func (r *rewriter) analyzeImport(node *sitter.Node) bool {
	source := ast.ModuleSource(node)
	if source == nil {
		panic("transform: import statement at byte " + strconv.Itoa(int(node.StartByte())) + " has no source")
	}
	specifier, ok := ast.StringValue(source, r.source)
	if !ok {
		return false
	}
	global, ok := r.resolve(specifier)
	if !ok {
		return false
	}
	r.globals[global] = struct{}{}

	if clause := ast.FirstChildOfType(node, "import_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			child := clause.NamedChild(i)
			switch child.Type() {
			case "identifier":
				r.bindings[r.tree.Text(child)] = global
			case "namespace_import":
				if id := ast.FirstChildOfType(child, "identifier"); id != nil {
					r.bindings[r.tree.Text(id)] = global
				}
			case "named_imports":
				for _, spec := range ast.ChildrenOfType(child, "import_specifier") {
					name := ast.MustField(spec, "name")
					local := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = alias
					}
					imported := ast.ModuleExportName(name, r.source)
					r.bindings[r.tree.Text(local)] = FormatGlobalName(imported, global)
				}
			}
		}
	}

	r.buf.Remove(int(node.StartByte()), int(node.EndByte()))
	r.opts.stats.ImportsRemoved++
	return true
}

// analyzeExportNamed rewrites `export { ... } from "x"` of a mapped module
// into a local export of the global expressions.
func (r *rewriter) analyzeExportNamed(node *sitter.Node) bool {
	if node.ChildByFieldName("declaration") != nil {
		return false
	}
	source := ast.ModuleSource(node)
	if source == nil {
		return false
	}
	clause := ast.FirstChildOfType(node, "export_clause")
	if clause == nil {
		// export * from "x"
		return false
	}
	specifier, ok := ast.StringValue(source, r.source)
	if !ok {
		return false
	}
	global, ok := r.resolve(specifier)
	if !ok {
		return false
	}

	specs := ast.ChildrenOfType(clause, "export_specifier")
	for _, spec := range specs {
		local := ast.MustField(spec, "name")
		expr := FormatGlobalName(ast.ModuleExportName(local, r.source), global)
		r.writeSpecLocal(spec, r.exportableName(node, expr))
	}

	if len(specs) > 0 {
		last := specs[len(specs)-1]
		r.buf.Overwrite(int(last.EndByte()), int(source.EndByte()), "}", false)
	} else {
		r.buf.Remove(int(node.StartByte()), int(node.EndByte()))
	}
	r.opts.stats.ReexportsRewritten++
	return true
}

// exportableName returns a name that can appear as the local side of an
// export specifier for expr. Dotted or otherwise non-bare expressions get a
// `_global_` constant declared once per file before stmt.
func (r *rewriter) exportableName(stmt *sitter.Node, expr string) string {
	if ast.IsBareIdentifier(expr) {
		return expr
	}
	temp := TempName(expr)
	if _, ok := r.temps[temp]; !ok {
		r.buf.AppendRight(int(stmt.StartByte()), "const "+temp+" = "+expr+";\n")
		r.temps[temp] = struct{}{}
		r.opts.stats.TempConstants++
	}
	return temp
}

// writeSpecLocal makes name the local side of an export specifier while
// keeping its exported name.
func (r *rewriter) writeSpecLocal(spec *sitter.Node, name string) {
	local := ast.MustField(spec, "name")
	if r.tree.Text(local) == name {
		return
	}
	if spec.ChildByFieldName("alias") == nil {
		r.buf.AppendRight(int(local.StartByte()), name+" as ")
	} else {
		r.buf.Overwrite(int(local.StartByte()), int(local.EndByte()), name, false)
	}
}
