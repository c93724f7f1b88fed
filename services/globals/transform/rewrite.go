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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/globals/services/globals/ast"
)

// walk visits node and its subtree depth-first. scope is the innermost
// scope enclosing node.
func (r *rewriter) walk(node *sitter.Node, scope *ast.Scope) {
	kind := ast.KindOf(node)
	switch kind {
	case ast.KindImportStatement:
		return
	case ast.KindIdentifier, ast.KindShorthandProperty, ast.KindShorthandPropertyPattern:
		r.visitIdentifier(node, scope)
	case ast.KindCallExpression:
		if r.rewriteDynamicImport(node) {
			return
		}
	}

	if s := r.tree.Scopes.Of(node); s != nil {
		scope = s
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			r.walk(child, scope)
		}
	}
}

// visitIdentifier applies the binding and alias rules to one identifier.
//
// A free name bound by a removed import is redirected to its global. A name
// that equals a global and is declared in scope is renamed with a `_local_`
// prefix so the global stays reachable. The two rules are not symmetric:
// only bindings are checked against free names and only globals against
// declared ones.
func (r *rewriter) visitIdentifier(node *sitter.Node, scope *ast.Scope) {
	occ := ast.Classify(node)
	if occ.Role == ast.RoleNone {
		return
	}
	name := r.tree.Text(node)

	if expr, bound := r.bindings[name]; bound && !scope.Contains(name) {
		var written bool
		if occ.ExportSpecifier != nil {
			written = r.writeExportLocal(node, occ.ExportSpecifier, expr)
		} else {
			written = r.writeIdentifier(node, occ, expr)
		}
		if written {
			r.opts.stats.ReferencesRewritten++
		}
		return
	}

	if _, global := r.globals[name]; global && scope.Contains(name) {
		alias := LocalAlias(name)
		var written bool
		if occ.ExportSpecifier != nil {
			if written = r.markVisited(node); written {
				r.writeSpecLocal(occ.ExportSpecifier, alias)
			}
		} else {
			written = r.writeIdentifier(node, occ, alias)
		}
		if written {
			r.opts.stats.LocalsAliased++
		}
	}
}

// writeIdentifier replaces an identifier occurrence with name. Shorthand
// object entries keep their key and gain an explicit value.
func (r *rewriter) writeIdentifier(node *sitter.Node, occ ast.Occurrence, name string) bool {
	if r.tree.Text(node) == name || !r.markVisited(node) {
		return false
	}
	if occ.Shorthand {
		r.buf.AppendLeft(int(node.EndByte()), ": "+name)
	} else {
		r.buf.Overwrite(int(node.StartByte()), int(node.EndByte()), name, true)
	}
	return true
}

// writeExportLocal handles `export { x }` where x is bound by a removed
// import. The local side must stay an identifier, so non-bare expressions
// go through a `_global_` constant.
func (r *rewriter) writeExportLocal(node, spec *sitter.Node, expr string) bool {
	if !r.markVisited(node) {
		return false
	}
	stmt := spec.Parent()
	for stmt != nil && ast.KindOf(stmt) != ast.KindExportStatement {
		stmt = stmt.Parent()
	}
	if stmt == nil {
		panic("transform: export specifier outside an export statement")
	}
	r.writeSpecLocal(spec, r.exportableName(stmt, expr))
	return true
}

// markVisited records node and reports whether it was not recorded before.
func (r *rewriter) markVisited(node *sitter.Node) bool {
	key := node.StartByte()
	if _, seen := r.visited[key]; seen {
		return false
	}
	r.visited[key] = struct{}{}
	return true
}
