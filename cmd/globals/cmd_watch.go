// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/globals/services/globals"
)

type watchOptions struct {
	outDir   string
	debounce time.Duration
}

func newWatchCmd(a *app) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Re-run the transform when files change",
		Long: `Watches each DIR recursively and transforms files as they are written.

With --out-dir, rendered files are written under that directory at the same
relative path. Without it, each run is only logged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), a, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", "", "Directory to write rendered files to")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 100*time.Millisecond, "Quiet period before a changed file is processed")
	return cmd
}

// watcher maps change events to debounced transforms.
type watcher struct {
	a      *app
	svc    *globals.Service
	filter *globals.Filter
	fsw    *fsnotify.Watcher
	opts   *watchOptions

	// roots are the absolute watched roots, used to compute relative paths.
	roots []string

	// outAbs is the absolute output directory; events under it are ignored.
	outAbs string

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func runWatch(ctx context.Context, a *app, opts *watchOptions, args []string) error {
	svc, closeCache, err := a.newService()
	if err != nil {
		return err
	}
	defer closeCache()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	filter, err := globals.NewFilter(a.cfg.Include, a.cfg.Exclude)
	if err != nil {
		return err
	}
	w := &watcher{
		a:       a,
		svc:     svc,
		filter:  filter,
		fsw:     fsw,
		opts:    opts,
		pending: make(map[string]*time.Timer),
	}
	if opts.outDir != "" {
		if w.outAbs, err = filepath.Abs(opts.outDir); err != nil {
			return err
		}
	}
	for _, root := range args {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		if err := w.addTree(abs); err != nil {
			return err
		}
		w.roots = append(w.roots, abs)
	}

	a.logger.Info("watching", slog.Any("roots", w.roots), slog.Duration("debounce", opts.debounce))
	err = w.loop(ctx)
	w.stop()
	return err
}

// addTree watches root and every directory below it that is not excluded.
func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.outAbs != "" && path == w.outAbs {
			return filepath.SkipDir
		}
		if rel, _ := filepath.Rel(root, path); rel != "." && w.filter.ExcludesDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.a.logger.Warn("watch error", slog.String("error", err.Error()))
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if w.outAbs != "" && (ev.Name == w.outAbs || strings.HasPrefix(ev.Name, w.outAbs+string(filepath.Separator))) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.a.logger.Warn("watch new directory", slog.String("error", err.Error()))
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	rel, ok := w.relative(ev.Name)
	if !ok || !w.filter.Match(rel) {
		return
	}
	w.schedule(ctx, ev.Name, rel)
}

// schedule (re)starts the debounce timer for path.
func (w *watcher) schedule(ctx context.Context, path, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.pending[path]; !ok || !prev.Stop() {
		w.wg.Add(1)
	}
	var t *time.Timer
	t = time.AfterFunc(w.opts.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.process(ctx, path, rel)
	})
	w.pending[path] = t
}

func (w *watcher) process(ctx context.Context, path, rel string) {
	res, err := w.svc.TransformFile(ctx, path)
	if err != nil {
		w.a.logger.Warn("transform failed", slog.String("file", path), slog.String("error", err.Error()))
		return
	}
	w.a.logger.Info("transformed",
		slog.String("file", path),
		slog.Bool("touched", res.Touched),
		slog.Bool("cached", res.Cached),
		slog.Int("rewrites", res.Stats.Total()),
	)
	if w.opts.outDir == "" {
		return
	}
	dst := filepath.Join(w.opts.outDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		w.a.logger.Warn("create output dir", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(dst, []byte(res.Code), 0o644); err != nil {
		w.a.logger.Warn("write output", slog.String("file", dst), slog.String("error", err.Error()))
	}
}

// relative returns path relative to the watched root that contains it.
func (w *watcher) relative(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rel, true
		}
	}
	return "", false
}

// stop cancels pending timers and waits for running transforms.
func (w *watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
