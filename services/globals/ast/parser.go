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
	"fmt"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// astTracerName is the OTel tracer name for parsing and scope analysis.
const astTracerName = "globals.ast"

// Tree is a parsed JavaScript source unit annotated with lexical scopes.
//
// Description:
//
//	Tree owns the underlying tree-sitter tree. Callers must call Close when
//	done. Node byte offsets index into Source, which is the exact content
//	handed to Parse.
//
// Thread Safety:
//
//	A Tree is read-only after Parse returns and may be read concurrently.
//	It must not be used after Close.
type Tree struct {
	// FilePath is the path the content was parsed from, for diagnostics.
	FilePath string

	// Source is the parsed content.
	Source []byte

	// Root is the program node.
	Root *sitter.Node

	// Scopes maps scope-opening nodes to their lexical scope.
	Scopes *ScopeTree

	tree *sitter.Tree
}

// Close releases the tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Text returns the source text spanned by node.
func (t *Tree) Text(node *sitter.Node) string {
	return NodeText(node, t.Source)
}

// JavaScriptParser parses JavaScript modules for the import rewriter.
//
// Description:
//
//	JavaScriptParser uses tree-sitter to parse JavaScript source files and
//	attaches lexical scopes to the resulting tree. It supports ES modules,
//	JSX, classes, async/await and generators.
//
// Thread Safety:
//
//	JavaScriptParser is safe for concurrent use. Each Parse call creates its
//	own tree-sitter parser instance.
//
// Example:
//
//	parser := NewJavaScriptParser()
//	tree, err := parser.Parse(ctx, content, "app.js")
//	if err != nil {
//	    return fmt.Errorf("parse: %w", err)
//	}
//	defer tree.Close()
type JavaScriptParser struct {
	options JavaScriptParserOptions
}

// JavaScriptParserOptions configures JavaScriptParser behavior.
type JavaScriptParserOptions struct {
	// MaxFileSize is the maximum file size in bytes to parse.
	// Files larger than this return ErrFileTooLarge.
	// Default: 10MB
	MaxFileSize int

	// AllowErrors keeps trees that contain ERROR or MISSING nodes.
	// Default: false (such trees return ErrSyntax)
	AllowErrors bool

	// Logger receives debug output. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultJavaScriptParserOptions returns the default options.
func DefaultJavaScriptParserOptions() JavaScriptParserOptions {
	return JavaScriptParserOptions{
		MaxFileSize: 10 * 1024 * 1024, // 10MB
		AllowErrors: false,
	}
}

// JavaScriptParserOption is a functional option for configuring JavaScriptParser.
type JavaScriptParserOption func(*JavaScriptParserOptions)

// WithJSMaxFileSize sets the maximum file size for parsing.
func WithJSMaxFileSize(size int) JavaScriptParserOption {
	return func(o *JavaScriptParserOptions) {
		o.MaxFileSize = size
	}
}

// WithJSAllowErrors sets whether trees with syntax errors are returned.
func WithJSAllowErrors(allow bool) JavaScriptParserOption {
	return func(o *JavaScriptParserOptions) {
		o.AllowErrors = allow
	}
}

// WithJSLogger sets the parser logger.
func WithJSLogger(logger *slog.Logger) JavaScriptParserOption {
	return func(o *JavaScriptParserOptions) {
		o.Logger = logger
	}
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
//
// Example:
//
//	parser := NewJavaScriptParser(
//	    WithJSMaxFileSize(5 * 1024 * 1024),
//	)
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	options := DefaultJavaScriptParserOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &JavaScriptParser{options: options}
}

// Extensions returns the file extensions parsed as JavaScript. The default
// include patterns are derived from it.
func Extensions() []string {
	return []string{".js", ".mjs", ".cjs", ".jsx"}
}

// Parse parses JavaScript source and attaches lexical scopes.
//
// Description:
//
//	Validates size and encoding, parses with tree-sitter, rejects trees with
//	syntax errors unless AllowErrors is set, then runs AttachScopes.
//
// Inputs:
//
//	ctx      - Context for cancellation. Checked before and after parsing.
//	content  - Raw JavaScript source bytes. Must be valid UTF-8.
//	filePath - Path to the file, for diagnostics only.
//
// Outputs:
//
//	*Tree - Parsed tree. Caller must Close it. Nil on error.
//	error - ErrFileTooLarge, ErrInvalidContent, ErrSyntax (wrapped with the
//	        first error position) or a context / tree-sitter failure.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("javascript parse canceled before start: %w", err)
	}

	if len(content) > p.options.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	ctx, span := otel.Tracer(astTracerName).Start(ctx, "ast.JavaScriptParser.Parse")
	defer span.End()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tsTree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		tsTree.Close()
		return nil, fmt.Errorf("javascript parse canceled after tree-sitter: %w", err)
	}

	root := tsTree.RootNode()
	if root.HasError() && !p.options.AllowErrors {
		pos := firstErrorPosition(root)
		tsTree.Close()
		p.options.Logger.Debug("javascript parse rejected",
			slog.String("file", filePath),
			slog.Int("line", pos.line),
			slog.Int("column", pos.column),
		)
		return nil, fmt.Errorf("%s:%d:%d: %w", filePath, pos.line, pos.column, ErrSyntax)
	}

	tree := &Tree{
		FilePath: filePath,
		Source:   content,
		Root:     root,
		tree:     tsTree,
	}
	tree.Scopes = AttachScopes(root, content)

	span.SetAttributes(
		attribute.String("file", filePath),
		attribute.Int("size_bytes", len(content)),
		attribute.Int("scopes", tree.Scopes.Len()),
	)
	return tree, nil
}

type position struct {
	line   int
	column int
}

// firstErrorPosition returns the 1-based position of the first ERROR or
// MISSING node in document order.
func firstErrorPosition(node *sitter.Node) position {
	stack := []*sitter.Node{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == "ERROR" || n.IsMissing() {
			pt := n.StartPoint()
			return position{line: int(pt.Row) + 1, column: int(pt.Column) + 1}
		}
		if !n.HasError() {
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	pt := node.StartPoint()
	return position{line: int(pt.Row) + 1, column: int(pt.Column) + 1}
}
