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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// =============================================================================
// Helpers
// =============================================================================

func mustParse(t *testing.T, src string) *Tree {
	t.Helper()
	tree, err := NewJavaScriptParser().Parse(context.Background(), []byte(src), "test.js")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(tree.Close)
	return tree
}

// findAll returns every node of the given type whose text is name, in
// document order.
func findAll(tree *Tree, nodeType, name string) []*sitter.Node {
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == nodeType && tree.Text(n) == name {
			out = append(out, n)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.Root)
	return out
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestJavaScriptParser_Parse_EmptyFile(t *testing.T) {
	tree := mustParse(t, "")
	if tree.Root == nil {
		t.Fatal("expected root node")
	}
	if tree.Root.Type() != "program" {
		t.Errorf("expected program root, got %q", tree.Root.Type())
	}
	if tree.Scopes == nil || tree.Scopes.Len() != 1 {
		t.Errorf("expected only the root scope, got %v", tree.Scopes)
	}
}

func TestJavaScriptParser_Parse_Module(t *testing.T) {
	src := `import React from "react";
export const App = () => React.createElement("div");
`
	tree := mustParse(t, src)
	if tree.FilePath != "test.js" {
		t.Errorf("expected filePath 'test.js', got %q", tree.FilePath)
	}
	if string(tree.Source) != src {
		t.Error("expected Source to be the parsed content")
	}
}

func TestJavaScriptParser_Parse_SyntaxError(t *testing.T) {
	parser := NewJavaScriptParser()
	_, err := parser.Parse(context.Background(), []byte("const = ;\n"), "broken.js")
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "broken.js:1:") {
		t.Errorf("expected position prefix, got %q", err.Error())
	}
}

func TestJavaScriptParser_Parse_AllowErrors(t *testing.T) {
	parser := NewJavaScriptParser(WithJSAllowErrors(true))
	tree, err := parser.Parse(context.Background(), []byte("const = ;\n"), "broken.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tree.Close()
	if !tree.Root.HasError() {
		t.Error("expected the tree to carry the error")
	}
}

func TestJavaScriptParser_Parse_FileTooLarge(t *testing.T) {
	parser := NewJavaScriptParser(WithJSMaxFileSize(8))
	_, err := parser.Parse(context.Background(), []byte("const a = 1;"), "big.js")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestJavaScriptParser_Parse_InvalidUTF8(t *testing.T) {
	parser := NewJavaScriptParser()
	_, err := parser.Parse(context.Background(), []byte{0xff, 0xfe, 'a'}, "bin.js")
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestJavaScriptParser_Parse_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewJavaScriptParser().Parse(ctx, []byte("a"), "a.js")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestJavaScriptParser_Parse_Concurrent(t *testing.T) {
	parser := NewJavaScriptParser()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := parser.Parse(context.Background(), []byte("function f(a) { return a; }"), "f.js")
			if err != nil {
				errs <- err
				return
			}
			tree.Close()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent parse: %v", err)
	}
}

func TestJavaScriptParser_Parse_Span(t *testing.T) {
	exporter := setupTestTracer(t)
	tree := mustParse(t, "let x = 1;")
	_ = tree

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "ast.JavaScriptParser.Parse" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
}

func TestExtensions(t *testing.T) {
	exts := Extensions()
	if len(exts) == 0 {
		t.Fatal("expected extensions")
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			t.Errorf("expected a leading dot, got %q", ext)
		}
	}
}

// =============================================================================
// Identifier Tests
// =============================================================================

func TestMakeLegalIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"React", "React"},
		{"lodash-es", "lodashEs"},
		{"my.lib", "my_lib"},
		{"window.foo.bar", "window_foo_bar"},
		{"3d", "_3d"},
		{"default", "_default"},
		{"Promise", "_Promise"},
		{"", "_"},
		{"$jq", "$jq"},
	}
	for _, tt := range tests {
		if got := MakeLegalIdentifier(tt.in); got != tt.want {
			t.Errorf("MakeLegalIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsBareIdentifier(t *testing.T) {
	for _, s := range []string{"React", "_a", "$", "a1"} {
		if !IsBareIdentifier(s) {
			t.Errorf("expected %q to be bare", s)
		}
	}
	for _, s := range []string{"", "a.b", "window['x']", "a-b"} {
		if IsBareIdentifier(s) {
			t.Errorf("expected %q not to be bare", s)
		}
	}
}

// =============================================================================
// Text Tests
// =============================================================================

func TestStringValue(t *testing.T) {
	tree := mustParse(t, `import a from 'single'; import b from "dou\"ble"; import c from "tab\tx";`)
	var got []string
	for _, imp := range ExtractImports(tree) {
		got = append(got, imp.Path)
	}
	want := []string{"single", `dou"ble`, "tab\tx"}
	if len(got) != len(want) {
		t.Fatalf("expected %d imports, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("import %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
