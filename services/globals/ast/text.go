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
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// NodeText returns the source text spanned by node, or "" if node is nil or
// out of range.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > end || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}

// StringValue returns the decoded value of a string literal node.
//
// Returns ok=false if node is not a string literal.
func StringValue(node *sitter.Node, source []byte) (string, bool) {
	if node == nil || node.Type() != jsNodeString {
		return "", false
	}
	text := NodeText(node, source)
	if len(text) < 2 {
		return "", false
	}
	raw := text[1 : len(text)-1]
	if !strings.Contains(raw, `\`) {
		return raw, true
	}
	// Normalize to a double-quoted Go literal so strconv handles the escapes
	// both languages share.
	quoted := `"` + strings.ReplaceAll(strings.ReplaceAll(raw, `\'`, `'`), `"`, `\"`) + `"`
	quoted = strings.ReplaceAll(quoted, `\\"`, `\"`)
	if v, err := strconv.Unquote(quoted); err == nil {
		return v, true
	}
	return raw, true
}

// ModuleExportName returns the name carried by an import/export specifier
// field, which is either an identifier, a keyword such as `default`, or a
// string literal.
func ModuleExportName(node *sitter.Node, source []byte) string {
	if v, ok := StringValue(node, source); ok {
		return v
	}
	return NodeText(node, source)
}

// SameNode reports whether a and b span the same bytes with the same type.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// IsField reports whether child is the node stored in parent's field.
func IsField(parent *sitter.Node, field string, child *sitter.Node) bool {
	if parent == nil {
		return false
	}
	return SameNode(parent.ChildByFieldName(field), child)
}

// MustField returns parent's field or panics.
//
// Used where the grammar guarantees the field; absence means the tree does
// not come from the expected grammar version.
func MustField(parent *sitter.Node, field string) *sitter.Node {
	child := parent.ChildByFieldName(field)
	if child == nil {
		panic("ast: " + parent.Type() + " node at byte " +
			strconv.FormatUint(uint64(parent.StartByte()), 10) + " has no " + field + " field")
	}
	return child
}

// ChildrenOfType returns the direct children of node with the given type.
func ChildrenOfType(node *sitter.Node, nodeType string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == nodeType {
			out = append(out, child)
		}
	}
	return out
}

// FirstChildOfType returns the first direct child of node with the given
// type, or nil.
func FirstChildOfType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// ModuleSource returns the module specifier string of an import or export
// statement, or nil if the statement has none. Only the grammar's source
// field counts: the string in `export default "x"` is a value.
func ModuleSource(stmt *sitter.Node) *sitter.Node {
	if stmt == nil {
		return nil
	}
	return stmt.ChildByFieldName("source")
}
