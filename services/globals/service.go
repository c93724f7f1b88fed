// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package globals rewrites imports of externally provided modules into
// references to global variables.
//
// The Service ties the pieces together: it parses a module, runs the
// rewriter over an edit buffer, renders the result and caches it. The HTTP
// handlers and the globals CLI are thin layers over it.
package globals

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/globals/services/globals/ast"
	"github.com/AleutianAI/globals/services/globals/cache"
	"github.com/AleutianAI/globals/services/globals/config"
	"github.com/AleutianAI/globals/services/globals/edit"
	"github.com/AleutianAI/globals/services/globals/transform"
)

// ErrFileExcluded is returned by CollectFiles when an explicitly named file
// does not pass the filter.
var ErrFileExcluded = errors.New("file excluded by filter")

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Names maps module specifiers to global expressions.
	Names map[string]string

	// DynamicWrapper is the template a resolved import("x") becomes. Every
	// occurrence of config.GlobalPlaceholder is replaced by the global.
	// Empty uses transform.DefaultDynamicWrapper.
	DynamicWrapper string

	// MaxFileSize is the largest module the parser accepts.
	MaxFileSize int

	// Concurrency bounds TransformFiles.
	Concurrency int

	// Filter selects files in CollectFiles. Nil selects everything.
	Filter *Filter

	// Cache stores rendered output. Nil disables caching.
	Cache cache.TransformCacheStore

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns a configuration with an empty specifier map.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Names:          map[string]string{},
		DynamicWrapper: "Promise.resolve(" + config.GlobalPlaceholder + ")",
		MaxFileSize:    10 * 1024 * 1024,
		Concurrency:    8,
	}
}

// ServiceConfigFromConfig builds a ServiceConfig from loaded configuration.
// Cache and Logger are left for the caller, which owns their lifecycle.
func ServiceConfigFromConfig(cfg *config.Config) (ServiceConfig, error) {
	filter, err := NewFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("build filter: %w", err)
	}
	names := make(map[string]string, len(cfg.Names))
	for spec, global := range cfg.Names {
		names[spec] = global
	}
	return ServiceConfig{
		Names:          names,
		DynamicWrapper: cfg.DynamicWrapper,
		MaxFileSize:    cfg.MaxFileSize,
		Concurrency:    cfg.Concurrency,
		Filter:         filter,
	}, nil
}

// Service parses, rewrites and renders modules.
//
// Thread Safety: Safe for concurrent use. Every call uses its own tree and
// edit buffer.
type Service struct {
	cfg    ServiceConfig
	parser *ast.JavaScriptParser
	logger *slog.Logger
}

// NewService creates a Service. Zero-valued fields fall back to
// DefaultServiceConfig.
func NewService(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if cfg.Names == nil {
		cfg.Names = def.Names
	}
	if cfg.DynamicWrapper == "" {
		cfg.DynamicWrapper = def.DynamicWrapper
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		cfg: cfg,
		parser: ast.NewJavaScriptParser(
			ast.WithJSMaxFileSize(cfg.MaxFileSize),
			ast.WithJSLogger(cfg.Logger),
		),
		logger: cfg.Logger,
	}
}

// Names returns a copy of the configured specifier map.
func (s *Service) Names() map[string]string {
	return mergeNames(s.cfg.Names, nil)
}

// CacheEnabled reports whether an output cache is attached.
func (s *Service) CacheEnabled() bool {
	return s.cfg.Cache != nil
}

// =============================================================================
// Single Module
// =============================================================================

// Transform rewrites one module using the configured specifier map.
//
// Description:
//
//	Looks up the output cache, and on a miss parses the module, runs
//	transform.ImportToGlobals over a fresh edit buffer, renders it and stores
//	the result. Modules with syntax errors are rejected before rewriting.
//
// Inputs:
//
//	ctx      - Context for cancellation and tracing.
//	filePath - Name used in diagnostics. May be empty.
//	code     - Module source.
//
// Outputs:
//
//	*Result - The rendered module. Code equals the input if nothing matched.
//	error   - Wraps ast.ErrSyntax, ast.ErrFileTooLarge, ast.ErrInvalidContent
//	          or a context error.
func (s *Service) Transform(ctx context.Context, filePath string, code []byte) (*Result, error) {
	return s.TransformWithNames(ctx, filePath, code, nil)
}

// TransformWithNames is Transform with extra specifiers layered over the
// configured map for this call only.
func (s *Service) TransformWithNames(ctx context.Context, filePath string, code []byte, extra map[string]string) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "globals.Service.Transform",
		trace.WithAttributes(
			attribute.String("file", filePath),
			attribute.Int("bytes", len(code)),
		),
	)
	defer span.End()

	names := mergeNames(s.cfg.Names, extra)

	var key string
	if s.cfg.Cache != nil {
		key = cache.ComputeKey(code, names, s.cfg.DynamicWrapper)
		if res := s.lookup(ctx, key, filePath); res != nil {
			span.SetAttributes(attribute.Bool("cached", true), attribute.Bool("touched", res.Touched))
			transformsTotal.WithLabelValues("cached").Inc()
			return res, nil
		}
	}

	start := time.Now()
	tree, err := s.parser.Parse(ctx, code, filePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		transformsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parse %s: %w", displayName(filePath), err)
	}
	defer tree.Close()

	buf := edit.New(string(code))
	var stats transform.Stats
	touched := transform.ImportToGlobals(tree, buf, transform.SpecifierMap(names),
		transform.WithDynamicWrapper(s.wrapDynamic),
		transform.WithStats(&stats),
		transform.WithLogger(s.logger),
	)
	res := &Result{
		FilePath: filePath,
		Code:     buf.String(),
		Touched:  touched,
		Stats:    stats,
	}
	transformDuration.Observe(time.Since(start).Seconds())
	recordRewrites(stats)
	if touched {
		transformsTotal.WithLabelValues("touched").Inc()
	} else {
		transformsTotal.WithLabelValues("untouched").Inc()
	}

	span.SetAttributes(
		attribute.Bool("cached", false),
		attribute.Bool("touched", touched),
		attribute.Int("rewrites", stats.Total()),
	)

	if s.cfg.Cache != nil {
		entry := &cache.Entry{Code: res.Code, Touched: res.Touched, Stats: res.Stats}
		if err := s.cfg.Cache.Save(ctx, key, entry); err != nil {
			s.logger.Warn("transform cache: save failed",
				slog.String("file", filePath),
				slog.String("error", err.Error()),
			)
		}
	}
	return res, nil
}

// lookup returns a cached result or nil. Storage errors are logged and
// treated as a miss.
func (s *Service) lookup(ctx context.Context, key, filePath string) *Result {
	entry, err := s.cfg.Cache.Load(ctx, key)
	if err != nil {
		cacheLookupsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("transform cache: load failed",
			slog.String("file", filePath),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if entry == nil {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	}
	cacheLookupsTotal.WithLabelValues("hit").Inc()
	return &Result{
		FilePath: filePath,
		Code:     entry.Code,
		Touched:  entry.Touched,
		Cached:   true,
		Stats:    entry.Stats,
	}
}

func (s *Service) wrapDynamic(global string) string {
	return config.WrapDynamic(s.cfg.DynamicWrapper, global)
}

// Scan lists the static, re-export and dynamic imports of one module and
// whether each specifier resolves.
func (s *Service) Scan(ctx context.Context, filePath string, code []byte, extra map[string]string) (*ScanResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "globals.Service.Scan",
		trace.WithAttributes(attribute.String("file", filePath)),
	)
	defer span.End()

	tree, err := s.parser.Parse(ctx, code, filePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, fmt.Errorf("parse %s: %w", displayName(filePath), err)
	}
	defer tree.Close()

	names := mergeNames(s.cfg.Names, extra)
	imports := ast.ExtractImports(tree)
	out := &ScanResult{FilePath: filePath, Imports: make([]ScannedImport, 0, len(imports))}
	for _, imp := range imports {
		global, ok := names[imp.Path]
		out.Imports = append(out.Imports, ScannedImport{Import: imp, Global: global, Resolved: ok})
	}
	span.SetAttributes(attribute.Int("imports", len(out.Imports)))
	return out, nil
}

// =============================================================================
// Files
// =============================================================================

// TransformFile reads and transforms one file.
func (s *Service) TransformFile(ctx context.Context, path string) (*Result, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s.Transform(ctx, path, code)
}

// TransformFiles transforms paths in parallel, at most Concurrency at a time.
//
// Description:
//
//	A failure on one file does not stop the others: its error is stored in
//	that file's FileResult. Results are returned in input order. If ctx is
//	canceled, files not yet started get the context error.
func (s *Service) TransformFiles(ctx context.Context, paths []string) []FileResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "globals.Service.TransformFiles",
		trace.WithAttributes(attribute.Int("files", len(paths))),
	)
	defer span.End()

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, path := range paths {
		g.Go(func() error {
			results[i].Path = path
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := s.TransformFile(gctx, path)
			if err != nil {
				s.logger.Warn("transform failed",
					slog.String("file", path),
					slog.String("error", err.Error()),
				)
				// Individual failure is not fatal.
				results[i].Err = err
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	var failed, touched int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Result.Touched:
			touched++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed), attribute.Int("touched", touched))
	return results
}

// CollectFiles lists the files under root selected by the filter, in
// lexical order. If root is a file it is returned alone, or ErrFileExcluded
// if the filter rejects it.
func (s *Service) CollectFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if !s.cfg.Filter.Match(filepath.Clean(root)) {
			return nil, fmt.Errorf("%s: %w", root, ErrFileExcluded)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && s.cfg.Filter.ExcludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.cfg.Filter.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// =============================================================================
// Helpers
// =============================================================================

func mergeNames(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func displayName(filePath string) string {
	if filePath == "" {
		return "<input>"
	}
	return filePath
}
