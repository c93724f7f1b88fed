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
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// Scope
// =============================================================================

// Scope is one lexical scope: a function body, a block, a catch clause or a
// for-loop head.
//
// Description:
//
//	Function scopes receive `var`, function and class declarations hoisted
//	out of nested block scopes. Block scopes only keep `let` and `const`.
//	Contains walks toward the root.
//
// Thread Safety:
//
//	Scopes are built once by AttachScopes and are read-only afterwards.
type Scope struct {
	parent       *Scope
	block        bool
	declarations map[string]struct{}
}

// NewScope creates a scope under parent. A nil parent creates a root scope.
func NewScope(parent *Scope, block bool) *Scope {
	return &Scope{
		parent:       parent,
		block:        block,
		declarations: make(map[string]struct{}),
	}
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsBlock reports whether this is a block scope.
func (s *Scope) IsBlock() bool {
	return s.block
}

// Declare records name in this scope. Non-block declarations made in a
// block scope are hoisted to the nearest function or root scope.
func (s *Scope) Declare(name string, blockDeclaration bool) {
	target := s
	for !blockDeclaration && target.block && target.parent != nil {
		target = target.parent
	}
	target.declarations[name] = struct{}{}
}

// Declares reports whether name is declared directly in this scope.
func (s *Scope) Declares(name string) bool {
	_, ok := s.declarations[name]
	return ok
}

// Contains reports whether name is declared in this scope or any ancestor.
func (s *Scope) Contains(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.declarations[name]; ok {
			return true
		}
	}
	return false
}

// Names returns the names declared directly in this scope, sorted.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.declarations))
	for name := range s.declarations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// ScopeTree
// =============================================================================

type nodeKey struct {
	start uint32
	end   uint32
	typ   string
}

func keyOf(node *sitter.Node) nodeKey {
	return nodeKey{start: node.StartByte(), end: node.EndByte(), typ: node.Type()}
}

// ScopeTree maps scope-opening nodes to their Scope.
type ScopeTree struct {
	root   *Scope
	byNode map[nodeKey]*Scope
}

// Root returns the program scope.
func (t *ScopeTree) Root() *Scope {
	return t.root
}

// Of returns the scope opened by node, or nil if node opens no scope.
func (t *ScopeTree) Of(node *sitter.Node) *Scope {
	if node == nil {
		return nil
	}
	return t.byNode[keyOf(node)]
}

// Len returns the number of scopes, including the root.
func (t *ScopeTree) Len() int {
	return len(t.byNode) + 1
}

// AttachScopes builds the scope tree for a program.
//
// Description:
//
//	Walks the whole tree once. Function-like nodes open a function scope
//	holding their parameters (and, for named function expressions, their
//	own name). Statement blocks that are not function bodies, catch clauses
//	and for loops open block scopes. Declarations are recorded in the scope
//	that is current when they are reached, with `var`, function and class
//	declarations hoisted out of block scopes. Import bindings are not
//	declared.
//
// Inputs:
//
//	root   - The program node.
//	source - The source the tree was parsed from.
//
// Outputs:
//
//	*ScopeTree - Never nil.
func AttachScopes(root *sitter.Node, source []byte) *ScopeTree {
	t := &ScopeTree{
		root:   NewScope(nil, false),
		byNode: make(map[nodeKey]*Scope),
	}
	if root == nil {
		return t
	}
	b := &scopeBuilder{tree: t, source: source}
	b.visit(root, nil, t.root)
	return t
}

type scopeBuilder struct {
	tree   *ScopeTree
	source []byte
}

func (b *scopeBuilder) visit(node, parent *sitter.Node, scope *Scope) {
	kind := KindOf(node)

	switch kind {
	case KindFunction:
		if t := node.Type(); t == jsNodeFunctionDeclaration || t == jsNodeGeneratorFunctionDecl {
			b.declareNode(scope, node.ChildByFieldName("name"), false)
		}
	case KindClass:
		if node.Type() == jsNodeClassDeclaration {
			b.declareNode(scope, node.ChildByFieldName("name"), false)
		}
	case KindLexicalDeclaration, KindVariableDeclaration:
		block := kind == KindLexicalDeclaration
		for _, decl := range ChildrenOfType(node, jsNodeVariableDeclarator) {
			b.declareNode(scope, decl.ChildByFieldName("name"), block)
		}
	}

	var opened *Scope
	switch kind {
	case KindFunction:
		opened = NewScope(scope, false)
		if param := node.ChildByFieldName("parameter"); param != nil {
			b.declareNode(opened, param, false)
		}
		if params := node.ChildByFieldName("parameters"); params != nil {
			for i := 0; i < int(params.NamedChildCount()); i++ {
				b.declareNode(opened, params.NamedChild(i), false)
			}
		}
		if t := node.Type(); t == jsNodeFunctionExpression || t == jsNodeFunctionLegacy || t == jsNodeGeneratorFunction {
			b.declareNode(opened, node.ChildByFieldName("name"), false)
		}
	case KindBlock:
		if KindOf(parent) != KindFunction {
			opened = NewScope(scope, true)
		}
	case KindCatchClause:
		opened = NewScope(scope, true)
		b.declareNode(opened, node.ChildByFieldName("parameter"), true)
	case KindFor:
		opened = NewScope(scope, true)
		if node.Type() == jsNodeForInStatement {
			switch forKind(node) {
			case "let", "const":
				b.declareNode(opened, node.ChildByFieldName("left"), true)
			case "var":
				b.declareNode(opened, node.ChildByFieldName("left"), false)
			}
		}
	}

	if opened != nil {
		b.tree.byNode[keyOf(node)] = opened
		scope = opened
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			b.visit(child, node, scope)
		}
	}
}

// declareNode declares every name bound by a binding target.
func (b *scopeBuilder) declareNode(scope *Scope, target *sitter.Node, block bool) {
	if target == nil {
		return
	}
	for _, name := range BindingNames(target, b.source) {
		scope.Declare(name, block)
	}
}

// forKind returns "var", "let", "const" or "" for a for-in/for-of head.
func forKind(node *sitter.Node) string {
	if kind := node.ChildByFieldName("kind"); kind != nil {
		return kind.Type()
	}
	left := node.ChildByFieldName("left")
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || SameNode(child, left) {
			break
		}
		switch child.Type() {
		case "var", "let", "const":
			return child.Type()
		}
	}
	return ""
}

// BindingNames returns the names bound by a binding target: an identifier
// or a destructuring pattern, possibly with defaults and rest elements.
func BindingNames(target *sitter.Node, source []byte) []string {
	var names []string
	collectBindingNames(target, source, &names)
	return names
}

func collectBindingNames(node *sitter.Node, source []byte, out *[]string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case jsNodeIdentifier, jsNodeShorthandPropertyIdentPatt:
		*out = append(*out, NodeText(node, source))
	case jsNodeObjectPattern, jsNodeArrayPattern, jsNodeRestPattern:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			collectBindingNames(node.NamedChild(i), source, out)
		}
	case jsNodePairPattern:
		collectBindingNames(node.ChildByFieldName("value"), source, out)
	case jsNodeAssignmentPattern, jsNodeObjectAssignmentPattern:
		collectBindingNames(node.ChildByFieldName("left"), source, out)
	}
}
