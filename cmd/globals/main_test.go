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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/globals/services/globals"
	"github.com/AleutianAI/globals/services/globals/cache"
	"github.com/AleutianAI/globals/services/globals/config"
	"github.com/AleutianAI/globals/services/globals/transform"
)

// =============================================================================
// Helpers
// =============================================================================

// runCLI executes the root command in-process.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeModule(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const appSource = "import R from \"react\";\nR();\n"

// =============================================================================
// Flags
// =============================================================================

func TestParseNameFlags(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"pairs", []string{"react=React", " vue = Vue "}, map[string]string{"react": "React", "vue": "Vue"}, false},
		{"dotted global", []string{"lodash/fp=_.fp"}, map[string]string{"lodash/fp": "_.fp"}, false},
		{"missing equals", []string{"react"}, nil, true},
		{"empty global", []string{"react="}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNameFlags(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseNameFlags error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("expected %s=%s, got %s", k, v, got[k])
				}
			}
		})
	}
}

// =============================================================================
// transform
// =============================================================================

func TestTransformCmd_Stdout(t *testing.T) {
	path := writeModule(t, t.TempDir(), "app.js", appSource)

	stdout, stderr, err := runCLI(t, "--no-cache", "-n", "react=React", "transform", path)
	if err != nil {
		t.Fatalf("transform: %v\n%s", err, stderr)
	}
	if stdout != "\nReact();\n" {
		t.Errorf("expected rewritten code, got %q", stdout)
	}
	if !strings.Contains(stderr, "1 touched") {
		t.Errorf("expected summary on stderr, got %q", stderr)
	}
}

func TestTransformCmd_Write(t *testing.T) {
	dir := t.TempDir()
	app := writeModule(t, dir, "src/app.js", appSource)
	plain := writeModule(t, dir, "src/plain.js", "run();\n")

	if _, stderr, err := runCLI(t, "--no-cache", "-n", "react=React", "transform", "--write", dir); err != nil {
		t.Fatalf("transform --write: %v\n%s", err, stderr)
	}
	got, _ := os.ReadFile(app)
	if string(got) != "\nReact();\n" {
		t.Errorf("expected app.js rewritten, got %q", got)
	}
	got, _ = os.ReadFile(plain)
	if string(got) != "run();\n" {
		t.Errorf("expected plain.js untouched, got %q", got)
	}
}

func TestTransformCmd_Diff(t *testing.T) {
	path := writeModule(t, t.TempDir(), "app.js", appSource)

	stdout, _, err := runCLI(t, "--no-cache", "-n", "react=React", "transform", "--diff", path)
	if err != nil {
		t.Fatalf("transform --diff: %v", err)
	}
	for _, want := range []string{"-import R from \"react\";", "+React();"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected diff to contain %q:\n%s", want, stdout)
		}
	}
}

func TestTransformCmd_WriteAndDiffConflict(t *testing.T) {
	path := writeModule(t, t.TempDir(), "app.js", appSource)
	if _, _, err := runCLI(t, "--no-cache", "transform", "--write", "--diff", path); err == nil {
		t.Error("expected error for --write with --diff")
	}
}

func TestTransformCmd_FailureExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "ok.js", appSource)
	writeModule(t, dir, "bad.js", "import R from")

	_, stderr, err := runCLI(t, "--no-cache", "-n", "react=React", "transform", "--write", dir)
	if err == nil {
		t.Fatal("expected error when a file fails")
	}
	if !strings.Contains(stderr, "1 failed") {
		t.Errorf("expected failure count in summary, got %q", stderr)
	}
}

func TestTransformCmd_BadNameFlag(t *testing.T) {
	path := writeModule(t, t.TempDir(), "app.js", appSource)
	if _, _, err := runCLI(t, "--no-cache", "-n", "react", "transform", path); err == nil {
		t.Error("expected error for malformed --name")
	}
}

func TestTransformCmd_UsesCache(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "app.js", appSource)
	cfgPath := writeModule(t, dir, "globals.yaml", "names: {react: React}\ncache: {dir: \""+filepath.ToSlash(filepath.Join(dir, "cache"))+"\"}\n")

	if _, stderr, err := runCLI(t, "-c", cfgPath, "transform", path); err != nil {
		t.Fatalf("first run: %v\n%s", err, stderr)
	}
	_, stderr, err := runCLI(t, "-c", cfgPath, "transform", path)
	if err != nil {
		t.Fatalf("second run: %v\n%s", err, stderr)
	}
	if !strings.Contains(stderr, "1 cached") {
		t.Errorf("expected a cache hit on the second run, got %q", stderr)
	}

	stdout, _, err := runCLI(t, "-c", cfgPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(stdout, "Found 1 entry") {
		t.Errorf("expected one listed entry, got %q", stdout)
	}

	if _, _, err := runCLI(t, "-c", cfgPath, "cache", "purge"); err != nil {
		t.Fatalf("cache purge: %v", err)
	}
	stdout, _, _ = runCLI(t, "-c", cfgPath, "cache", "list")
	if !strings.Contains(stdout, "No cached entries.") {
		t.Errorf("expected empty cache after purge, got %q", stdout)
	}
}

// =============================================================================
// scan
// =============================================================================

func TestScanCmd_JSON(t *testing.T) {
	path := writeModule(t, t.TempDir(), "app.js", "import R from \"react\";\nimport(\"lazy\");\n")

	stdout, _, err := runCLI(t, "--no-cache", "-n", "react=React", "scan", "--json", path)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var res globals.ScanResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &res); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if len(res.Imports) != 2 {
		t.Fatalf("expected 2 imports, got %+v", res.Imports)
	}
	if !res.Imports[0].Resolved || res.Imports[1].Resolved {
		t.Errorf("expected react resolved and lazy unresolved, got %+v", res.Imports)
	}
}

// =============================================================================
// cache
// =============================================================================

func TestCacheList_NoDirectory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeModule(t, dir, "globals.yaml", "cache: {dir: \""+filepath.ToSlash(filepath.Join(dir, "missing"))+"\"}\n")

	stdout, _, err := runCLI(t, "-c", cfgPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(stdout, "No cache directory yet") {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestPrintCacheList(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printCacheList(&buf, "/tmp/c", []cache.EntryInfo{
		{Key: "0123456789abcdef", ExpiresAt: now.Add(2 * time.Hour), Size: 2048, Touched: true, Stats: transform.Stats{ImportsRemoved: 1}},
		{Key: "bad", DecodeErr: errors.New("gob decode: boom")},
	}, now)

	out := buf.String()
	for _, want := range []string{"Found 2 entries", "0123456789ab", "2h0m0s left", "2.0 KiB", "DECODE ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestFormatTTL(t *testing.T) {
	now := time.Now()
	if got := formatTTL(time.Time{}, now); got != "no expiry" {
		t.Errorf("expected no expiry, got %q", got)
	}
	if got := formatTTL(now.Add(-time.Minute), now); got != "expired" {
		t.Errorf("expected expired, got %q", got)
	}
}

// =============================================================================
// serve
// =============================================================================

func TestNewRouter_Health(t *testing.T) {
	cfg := config.Default()
	cfg.Names["react"] = "React"
	a := &app{cfg: cfg, logger: newLogger(&bytes.Buffer{}, cfg.SlogLevel())}

	svcCfg, err := globals.ServiceConfigFromConfig(cfg)
	if err != nil {
		t.Fatalf("ServiceConfigFromConfig: %v", err)
	}
	router := newRouter(a, globals.NewService(svcCfg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/globals/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp globals.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Names != 1 {
		t.Errorf("expected 1 name, got %d", resp.Names)
	}
}

// =============================================================================
// watch
// =============================================================================

func newTestWatcher(t *testing.T, root, outDir string) *watcher {
	t.Helper()
	cfg := config.Default()
	cfg.Names["react"] = "React"
	cfg.Cache.Enabled = false
	a := &app{cfg: cfg, logger: newLogger(&bytes.Buffer{}, cfg.SlogLevel())}

	svcCfg, err := globals.ServiceConfigFromConfig(cfg)
	if err != nil {
		t.Fatalf("ServiceConfigFromConfig: %v", err)
	}
	filter, err := globals.NewFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	w := &watcher{
		a:       a,
		svc:     globals.NewService(svcCfg),
		filter:  filter,
		opts:    &watchOptions{outDir: outDir, debounce: 10 * time.Millisecond},
		roots:   []string{root},
		pending: make(map[string]*time.Timer),
	}
	if outDir != "" {
		w.outAbs = outDir
	}
	return w
}

func TestWatcher_DebouncedWriteToOutDir(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	path := writeModule(t, root, "src/app.js", appSource)
	w := newTestWatcher(t, root, out)

	ctx := context.Background()
	w.schedule(ctx, path, filepath.Join("src", "app.js"))
	w.schedule(ctx, path, filepath.Join("src", "app.js"))
	w.wg.Wait()

	got, err := os.ReadFile(filepath.Join(out, "src", "app.js"))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if string(got) != "\nReact();\n" {
		t.Errorf("unexpected output %q", got)
	}
	if src, _ := os.ReadFile(path); string(src) != appSource {
		t.Errorf("expected source left alone, got %q", src)
	}
}

func TestWatcher_Relative(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, "")

	if rel, ok := w.relative(filepath.Join(root, "a", "b.js")); !ok || rel != filepath.Join("a", "b.js") {
		t.Errorf("expected a/b.js, got %q ok=%v", rel, ok)
	}
	if _, ok := w.relative(root); ok {
		t.Error("expected the root itself to be rejected")
	}
	if _, ok := w.relative(filepath.Join(filepath.Dir(root), "elsewhere.js")); ok {
		t.Error("expected a path outside the root to be rejected")
	}
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	path := writeModule(t, root, "app.js", appSource)
	w := newTestWatcher(t, root, out)
	w.opts.debounce = time.Hour

	w.schedule(context.Background(), path, "app.js")
	w.stop()

	if _, err := os.Stat(filepath.Join(out, "app.js")); !os.IsNotExist(err) {
		t.Errorf("expected no output after stop, got err=%v", err)
	}
}
