// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package globals

import "testing"

func TestFilter_Match(t *testing.T) {
	f, err := NewFilter(
		[]string{"**/*.js", "**/*.mjs", "lib/*.cjs"},
		[]string{"node_modules/**", "**/*.min.js", "dist"},
	)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"app.js", true},
		{"src/app.js", true},
		{"src/deep/er/app.mjs", true},
		{"./src/app.js", true},
		{"lib/a.cjs", true},
		{"lib/nested/a.cjs", false},
		{"src/app.ts", false},
		{"node_modules/react/index.js", false},
		{"src/vendor.min.js", false},
		{"dist", false},
		{"dist/app.js", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := f.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilter_EmptyIncludeSelectsAll(t *testing.T) {
	f, err := NewFilter(nil, []string{"*.md"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if !f.Match("anything/at/all.txt") {
		t.Error("expected empty include to select everything")
	}
	if f.Match("README.md") {
		t.Error("expected exclude to apply")
	}
}

func TestFilter_NilSelectsAll(t *testing.T) {
	var f *Filter
	if !f.Match("x.js") {
		t.Error("expected nil filter to select everything")
	}
	if f.ExcludesDir("node_modules") {
		t.Error("expected nil filter to exclude no directory")
	}
}

func TestFilter_ExcludesDir(t *testing.T) {
	f, err := NewFilter(nil, []string{"node_modules/**", "**/.git/**", "**/*.min.js"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	for path, want := range map[string]bool{
		"node_modules":       true,
		"node_modules/react": true,
		"src/.git":           true,
		"src":                false,
		"vendor.min.js":      false,
	} {
		if got := f.ExcludesDir(path); got != want {
			t.Errorf("ExcludesDir(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewFilter_BadPattern(t *testing.T) {
	if _, err := NewFilter([]string{"src/[a-"}, nil); err == nil {
		t.Error("expected error for malformed include")
	}
	if _, err := NewFilter(nil, []string{"["}); err == nil {
		t.Error("expected error for malformed exclude")
	}
}

func TestFilter_DoublestarSyntax(t *testing.T) {
	f, err := NewFilter(
		[]string{"src/**/*.{js,jsx}"},
		[]string{"**/__tests__/**"},
	)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	for path, want := range map[string]bool{
		"src/app.js":                 true,
		"src/ui/button.jsx":          true,
		"src/ui/button.ts":           false,
		"lib/app.js":                 false,
		"src/ui/__tests__/a.js":      false,
		"src/ui/__tests__/deep/a.js": false,
	} {
		if got := f.Match(path); got != want {
			t.Errorf("Match(%q) = %v, want %v", path, got, want)
		}
	}
	if !f.ExcludesDir("src/ui/__tests__") {
		t.Error("expected __tests__ directories to be skipped")
	}
}
