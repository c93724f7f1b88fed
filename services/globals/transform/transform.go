// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transform rewrites ES module imports of external modules into
// references to pre-existing globals.
//
// Given `import React from "react"` and a mapping react → React, the import
// statement is removed and every free reference to the local binding is
// redirected to the global expression. Re-exports, dynamic imports and
// local declarations that collide with a global name are handled as well.
// All edits go through an Editor so the original source offsets stay valid.
package transform

import (
	"log/slog"

	"github.com/AleutianAI/globals/services/globals/ast"
)

// =============================================================================
// Collaborators
// =============================================================================

// Editor is the edit surface the rewriter needs. Offsets are byte offsets
// into the original source. *edit.Buffer implements it.
type Editor interface {
	Remove(start, end int)
	Overwrite(start, end int, content string, contentOnly bool)
	AppendLeft(index int, content string)
	AppendRight(index int, content string)
}

// Resolver maps a module specifier to a global expression.
type Resolver interface {
	Resolve(specifier string) (global string, ok bool)
}

// SpecifierMap is a static Resolver.
type SpecifierMap map[string]string

// Resolve implements Resolver.
func (m SpecifierMap) Resolve(specifier string) (string, bool) {
	global, ok := m[specifier]
	return global, ok
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(specifier string) (string, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(specifier string) (string, bool) {
	return f(specifier)
}

// =============================================================================
// Options
// =============================================================================

// Stats counts the rewrites made by one ImportToGlobals call.
type Stats struct {
	ImportsRemoved          int `json:"imports_removed"`
	ReexportsRewritten      int `json:"reexports_rewritten"`
	ReferencesRewritten     int `json:"references_rewritten"`
	LocalsAliased           int `json:"locals_aliased"`
	DynamicImportsRewritten int `json:"dynamic_imports_rewritten"`
	TempConstants           int `json:"temp_constants"`
}

// Total returns the number of rewrites of any kind.
func (s Stats) Total() int {
	return s.ImportsRemoved + s.ReexportsRewritten + s.ReferencesRewritten +
		s.LocalsAliased + s.DynamicImportsRewritten
}

type options struct {
	dynamicWrapper func(global string) string
	stats          *Stats
	logger         *slog.Logger
}

// Option configures ImportToGlobals.
type Option func(*options)

// WithDynamicWrapper sets the expression a resolved `import("x")` becomes.
// The default is `Promise.resolve(<global>)`.
func WithDynamicWrapper(wrap func(global string) string) Option {
	return func(o *options) {
		if wrap != nil {
			o.dynamicWrapper = wrap
		}
	}
}

// WithStats collects rewrite counts into s.
func WithStats(s *Stats) Option {
	return func(o *options) {
		o.stats = s
	}
}

// WithLogger sets the logger for per-file debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// DefaultDynamicWrapper wraps global in an already resolved promise.
func DefaultDynamicWrapper(global string) string {
	return "Promise.resolve(" + global + ")"
}

// =============================================================================
// Entry point
// =============================================================================

// ImportToGlobals rewrites imports of mapped modules in tree into buf.
//
// Description:
//
//	Runs a static pass over top-level import and re-export statements, then
//	one depth-first traversal that redirects references to removed import
//	bindings, aliases local declarations that shadow a global name with a
//	`_local_` prefix, and replaces mapped dynamic imports.
//
// Inputs:
//
//	tree  - Parsed program with scopes attached. Must be free of syntax errors.
//	buf   - Edit target bound to tree.Source.
//	names - Specifier to global expression mapping.
//	opts  - Optional behavior.
//
// Outputs:
//
//	bool - True if any import, re-export or dynamic import was rewritten.
//	       Reference rewrites alone never occur without one of those.
//
// Thread Safety:
//
//	All state is per call. Concurrent calls are safe as long as they do not
//	share buf.
//
// Panics when the tree violates grammar guarantees (for example an import
// statement without a source) or when the editor rejects an edit.
func ImportToGlobals(tree *ast.Tree, buf Editor, names Resolver, opts ...Option) bool {
	o := options{dynamicWrapper: DefaultDynamicWrapper}
	for _, opt := range opts {
		opt(&o)
	}
	if o.stats == nil {
		o.stats = &Stats{}
	}

	r := newRewriter(tree, buf, names, o)
	r.analyzeStatic()
	r.walk(tree.Root, tree.Scopes.Root())

	if o.logger != nil && r.touched {
		o.logger.Debug("imports rewritten",
			slog.String("file", tree.FilePath),
			slog.Int("imports", o.stats.ImportsRemoved),
			slog.Int("reexports", o.stats.ReexportsRewritten),
			slog.Int("references", o.stats.ReferencesRewritten),
			slog.Int("aliases", o.stats.LocalsAliased),
			slog.Int("dynamic", o.stats.DynamicImportsRewritten),
		)
	}
	return r.touched
}

// rewriter holds the per-call state shared by the static pass and the walk.
type rewriter struct {
	tree   *ast.Tree
	source []byte
	buf    Editor
	names  Resolver
	opts   options

	// bindings maps a removed import's local name to its global expression.
	bindings map[string]string

	// globals is the set of global expressions of resolved imports.
	globals map[string]struct{}

	// temps is the set of `_global_` constants already emitted.
	temps map[string]struct{}

	// visited holds the start byte of every identifier already rewritten.
	visited map[uint32]struct{}

	touched bool
}

func newRewriter(tree *ast.Tree, buf Editor, names Resolver, opts options) *rewriter {
	return &rewriter{
		tree:     tree,
		source:   tree.Source,
		buf:      buf,
		names:    names,
		opts:     opts,
		bindings: make(map[string]string),
		globals:  make(map[string]struct{}),
		temps:    make(map[string]struct{}),
		visited:  make(map[uint32]struct{}),
	}
}

func (r *rewriter) resolve(specifier string) (string, bool) {
	if r.names == nil {
		return "", false
	}
	return r.names.Resolve(specifier)
}
