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
	"testing"
)

func TestClassify_Identifiers(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		nodeType string
		ident    string
		index    int
		want     Role
	}{
		{"plain read", `f(x);`, "identifier", "x", 0, RoleReference},
		{"assignment target", `x = 1;`, "identifier", "x", 0, RoleReference},
		{"var declarator", `var x = 1;`, "identifier", "x", 0, RoleDeclaration},
		{"function name", `function x() {}`, "identifier", "x", 0, RoleDeclaration},
		{"class name", `class x {}`, "identifier", "x", 0, RoleDeclaration},
		{"class expression name", `const C = class x {};`, "identifier", "x", 0, RoleNone},
		{"parameter", `function f(x) {}`, "identifier", "x", 0, RoleDeclaration},
		{"arrow parameter", `const f = x => 1;`, "identifier", "x", 0, RoleDeclaration},
		{"catch parameter", `try {} catch (x) {}`, "identifier", "x", 0, RoleDeclaration},
		{"for-of with const", `for (const x of y) {}`, "identifier", "x", 0, RoleDeclaration},
		{"for-of assignment", `for (x of y) {}`, "identifier", "x", 0, RoleReference},
		{"import specifier", `import { x } from "m";`, "identifier", "x", 0, RoleNone},
		{"default import", `import x from "m";`, "identifier", "x", 0, RoleNone},
		{"namespace import", `import * as x from "m";`, "identifier", "x", 0, RoleNone},
		{"reexport name", `export { x } from "m";`, "identifier", "x", 0, RoleNone},
		{"export local", `export { x };`, "identifier", "x", 0, RoleReference},
		{"export alias", `export { y as x };`, "identifier", "x", 0, RoleNone},
		{"pattern default value", `const { a = x } = o;`, "identifier", "x", 0, RoleReference},
		{"pattern value", `const { a: x } = o;`, "identifier", "x", 0, RoleDeclaration},
		{"assignment pattern target", `({ a: x } = o);`, "identifier", "x", 0, RoleReference},
		{"shorthand property", `f({ x });`, "shorthand_property_identifier", "x", 0, RoleReference},
		{"shorthand pattern", `const { x } = o;`, "shorthand_property_identifier_pattern", "x", 0, RoleDeclaration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			nodes := findAll(tree, tt.nodeType, tt.ident)
			if len(nodes) <= tt.index {
				t.Fatalf("no %s %q at index %d", tt.nodeType, tt.ident, tt.index)
			}
			got := Classify(nodes[tt.index])
			if got.Role != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", tt.src, got.Role, tt.want)
			}
		})
	}
}

func TestClassify_MemberPropertyIsNotIdentifier(t *testing.T) {
	tree := mustParse(t, `a.x;`)
	if n := findAll(tree, "identifier", "x"); len(n) != 0 {
		t.Fatalf("expected member property to use a distinct node type, got %d identifiers", len(n))
	}
	props := findAll(tree, "property_identifier", "x")
	if len(props) != 1 {
		t.Fatalf("expected 1 property_identifier, got %d", len(props))
	}
	if Classify(props[0]).Role != RoleNone {
		t.Error("expected member property to classify as none")
	}
}

func TestClassify_Shorthand(t *testing.T) {
	tree := mustParse(t, `f({ x });`)
	node := findAll(tree, "shorthand_property_identifier", "x")[0]
	if !Classify(node).Shorthand {
		t.Error("expected Shorthand to be set")
	}
}

func TestClassify_ExportSpecifier(t *testing.T) {
	tree := mustParse(t, `const x = 1; export { x as y };`)
	node := findAll(tree, "identifier", "x")[1]
	occ := Classify(node)
	if occ.Role != RoleReference {
		t.Fatalf("expected reference, got %s", occ.Role)
	}
	if occ.ExportSpecifier == nil || occ.ExportSpecifier.Type() != "export_specifier" {
		t.Error("expected the enclosing export_specifier")
	}
}

func TestKindOf(t *testing.T) {
	tree := mustParse(t, `function f() {}`)
	if KindOf(tree.Root) != KindProgram {
		t.Errorf("expected program, got %s", KindOf(tree.Root))
	}
	fn := tree.Root.NamedChild(0)
	if KindOf(fn) != KindFunction {
		t.Errorf("expected function, got %s", KindOf(fn))
	}
	// The `function` keyword token is anonymous.
	if kw := fn.Child(0); KindOf(kw) != KindOther {
		t.Errorf("expected keyword token to be other, got %s", KindOf(kw))
	}
	if KindOf(nil) != KindOther {
		t.Error("expected nil to be other")
	}
}
