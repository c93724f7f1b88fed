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
	sitter "github.com/smacker/go-tree-sitter"
)

// Role is what an identifier occurrence does.
type Role int

const (
	// RoleNone is a name that does not resolve through scopes: property
	// keys, labels, import specifiers, export aliases, names re-exported
	// from another module, class expression names.
	RoleNone Role = iota

	// RoleReference reads or assigns a binding.
	RoleReference

	// RoleDeclaration introduces a binding.
	RoleDeclaration
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleReference:
		return "reference"
	case RoleDeclaration:
		return "declaration"
	default:
		return "none"
	}
}

// Occurrence classifies one identifier node.
type Occurrence struct {
	Role Role

	// Shorthand is set when the node is both the property key and the
	// value of an object literal or object pattern entry, e.g. `{x}`.
	Shorthand bool

	// ExportSpecifier is the enclosing specifier when the node is the local
	// name of `export { x }` without a `from` clause.
	ExportSpecifier *sitter.Node
}

// Classify returns how an identifier-like node is used.
//
// Description:
//
//	Only `identifier`, `shorthand_property_identifier` and
//	`shorthand_property_identifier_pattern` nodes can classify as anything
//	other than RoleNone. Member properties, object keys and method names
//	already use distinct tree-sitter node types. Identifiers inside binding
//	patterns are declarations when the pattern belongs to a variable
//	declarator, a parameter list, a catch clause or a for-in/of head with
//	`var`/`let`/`const`, and references otherwise (assignment targets).
//	Default values inside patterns are always references.
//
// Inputs:
//
//	node - Any node. Its Parent must be available.
//
// Outputs:
//
//	Occurrence - Role is RoleNone for non-identifier nodes.
func Classify(node *sitter.Node) Occurrence {
	if node == nil {
		return Occurrence{}
	}
	switch KindOf(node) {
	case KindShorthandProperty:
		return Occurrence{Role: RoleReference, Shorthand: true}
	case KindShorthandPropertyPattern:
		return Occurrence{Role: patternRole(node), Shorthand: true}
	case KindIdentifier:
		return classifyIdentifier(node)
	default:
		return Occurrence{}
	}
}

func classifyIdentifier(node *sitter.Node) Occurrence {
	parent := node.Parent()
	if parent == nil {
		return Occurrence{Role: RoleReference}
	}

	switch parent.Type() {
	case jsNodeObjectPattern, jsNodeArrayPattern, jsNodePairPattern,
		jsNodeAssignmentPattern, jsNodeObjectAssignmentPattern, jsNodeRestPattern:
		return Occurrence{Role: patternRole(node)}

	case jsNodeVariableDeclarator:
		if IsField(parent, "name", node) {
			return Occurrence{Role: RoleDeclaration}
		}

	case jsNodeFunctionDeclaration, jsNodeGeneratorFunctionDecl,
		jsNodeFunctionExpression, jsNodeFunctionLegacy, jsNodeGeneratorFunction,
		jsNodeClassDeclaration:
		if IsField(parent, "name", node) {
			return Occurrence{Role: RoleDeclaration}
		}

	case jsNodeClass:
		if IsField(parent, "name", node) {
			return Occurrence{Role: RoleNone}
		}

	case jsNodeFormalParameters:
		return Occurrence{Role: RoleDeclaration}

	case jsNodeArrowFunction:
		if IsField(parent, "parameter", node) {
			return Occurrence{Role: RoleDeclaration}
		}

	case jsNodeCatchClause:
		if IsField(parent, "parameter", node) {
			return Occurrence{Role: RoleDeclaration}
		}

	case jsNodeForInStatement:
		if IsField(parent, "left", node) && forKind(parent) != "" {
			return Occurrence{Role: RoleDeclaration}
		}

	case jsNodeImportSpecifier, jsNodeImportClause, jsNodeNamespaceImport, jsNodeNamespaceExport:
		return Occurrence{Role: RoleNone}

	case jsNodeExportSpecifier:
		if !IsField(parent, "name", node) {
			return Occurrence{Role: RoleNone}
		}
		stmt := exportStatementOf(parent)
		if stmt == nil || ModuleSource(stmt) != nil {
			return Occurrence{Role: RoleNone}
		}
		return Occurrence{Role: RoleReference, ExportSpecifier: parent}
	}

	return Occurrence{Role: RoleReference}
}

// patternRole resolves an identifier nested in a destructuring pattern.
func patternRole(node *sitter.Node) Role {
	cur := node
	parent := node.Parent()
	for parent != nil && isPatternType(parent.Type()) {
		if !isBindingSlot(parent, cur) {
			return RoleReference
		}
		cur = parent
		parent = parent.Parent()
	}
	if parent == nil {
		return RoleReference
	}

	switch parent.Type() {
	case jsNodeVariableDeclarator:
		if IsField(parent, "name", cur) {
			return RoleDeclaration
		}
	case jsNodeFormalParameters:
		return RoleDeclaration
	case jsNodeCatchClause:
		if IsField(parent, "parameter", cur) {
			return RoleDeclaration
		}
	case jsNodeForInStatement:
		if IsField(parent, "left", cur) && forKind(parent) != "" {
			return RoleDeclaration
		}
	}
	return RoleReference
}

func isPatternType(t string) bool {
	switch t {
	case jsNodeObjectPattern, jsNodeArrayPattern, jsNodePairPattern,
		jsNodeAssignmentPattern, jsNodeObjectAssignmentPattern, jsNodeRestPattern:
		return true
	}
	return false
}

// isBindingSlot reports whether child sits where pattern binds a name, as
// opposed to a default value or computed key.
func isBindingSlot(pattern, child *sitter.Node) bool {
	switch pattern.Type() {
	case jsNodePairPattern:
		return IsField(pattern, "value", child)
	case jsNodeAssignmentPattern, jsNodeObjectAssignmentPattern:
		return IsField(pattern, "left", child)
	default:
		return true
	}
}

func exportStatementOf(specifier *sitter.Node) *sitter.Node {
	for cur := specifier.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Type() == jsNodeExportStatement {
			return cur
		}
	}
	return nil
}
