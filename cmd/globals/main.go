// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// globals rewrites imports of externally provided modules into references
// to global variables.
//
// Usage:
//
//	globals transform [--write | --diff] [--name spec=global]... PATH...
//	globals scan [--json] PATH...
//	globals serve [--port N]
//	globals watch [--out-dir DIR] PATH...
//	globals cache list | purge
//
// Configuration is read from --config (YAML), then GLOBALS_* environment
// variables, then flags.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/globals/services/globals"
	"github.com/AleutianAI/globals/services/globals/cache"
	"github.com/AleutianAI/globals/services/globals/config"
	badgerstore "github.com/AleutianAI/globals/services/globals/storage/badger"
)

// app holds state shared by all subcommands. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	names      []string
	noCache    bool

	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Output goes to stdout and stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "globals",
		Short:         "Rewrite module imports into references to globals",
		Version:       globals.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to globals.yaml")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringArrayVarP(&a.names, "name", "n", nil, "Specifier mapping spec=global (repeatable)")
	root.PersistentFlags().BoolVar(&a.noCache, "no-cache", false, "Disable the output cache")

	root.AddCommand(
		newTransformCmd(a),
		newScanCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newCacheCmd(a),
	)
	return root
}

// setup loads configuration, applies flag overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	extra, err := parseNameFlags(a.names)
	if err != nil {
		return err
	}
	if cfg.Names == nil {
		cfg.Names = make(map[string]string, len(extra))
	}
	for spec, global := range extra {
		cfg.Names[spec] = global
	}
	if a.noCache {
		cfg.Cache.Enabled = false
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg.SlogLevel())
	slog.SetDefault(a.logger)
	return nil
}

// newLogger returns a text handler on a terminal and a JSON handler
// otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// parseNameFlags parses repeated spec=global flags.
func parseNameFlags(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		spec, global, ok := strings.Cut(pair, "=")
		spec, global = strings.TrimSpace(spec), strings.TrimSpace(global)
		if !ok || spec == "" || global == "" {
			return nil, fmt.Errorf("--name %q: expected spec=global", pair)
		}
		out[spec] = global
	}
	return out, nil
}

// openCache opens the configured cache database. The returned store is nil
// when caching is disabled. The close func is always non-nil.
func (a *app) openCache() (*cache.BadgerTransformCacheStore, func(), error) {
	noop := func() {}
	if !a.cfg.Cache.Enabled {
		return nil, noop, nil
	}

	dbCfg := badgerstore.DefaultConfig()
	if a.cfg.Cache.InMemory {
		dbCfg = badgerstore.InMemoryConfig()
	} else {
		if err := os.MkdirAll(a.cfg.Cache.Dir, 0o755); err != nil {
			return nil, noop, fmt.Errorf("create cache dir: %w", err)
		}
		dbCfg.Path = a.cfg.Cache.Dir
	}
	dbCfg.Logger = a.logger

	db, err := badgerstore.OpenDB(dbCfg)
	if err != nil {
		return nil, noop, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			a.logger.Warn("close cache", slog.String("error", err.Error()))
		}
	}
	return cache.NewBadgerTransformCacheStore(db, a.cfg.Cache.TTL, a.logger), closeFn, nil
}

// newService builds a Service from the loaded configuration. A cache that
// fails to open is logged and skipped.
func (a *app) newService() (*globals.Service, func(), error) {
	svcCfg, err := globals.ServiceConfigFromConfig(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	svcCfg.Logger = a.logger

	store, closeFn, err := a.openCache()
	if err != nil {
		a.logger.Warn("output cache unavailable, continuing without it",
			slog.String("dir", a.cfg.Cache.Dir),
			slog.String("error", err.Error()),
		)
	} else if store != nil {
		svcCfg.Cache = store
	}
	return globals.NewService(svcCfg), closeFn, nil
}
