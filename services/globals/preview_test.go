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

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sourcegraph/go-diff/diff"
)

func TestBuildUnifiedDiff_Equal(t *testing.T) {
	out, err := BuildUnifiedDiff("a.js", "x\n", "x\n")
	if err != nil {
		t.Fatalf("BuildUnifiedDiff: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty diff, got %q", out)
	}
}

func TestBuildUnifiedDiff_SingleChange(t *testing.T) {
	out, err := BuildUnifiedDiff("src/a.js", "a\nb\nc\n", "a\nB\nc\n")
	if err != nil {
		t.Fatalf("BuildUnifiedDiff: %v", err)
	}

	fd, err := diff.ParseFileDiff([]byte(out))
	if err != nil {
		t.Fatalf("output does not parse as a unified diff: %v\n%s", err, out)
	}
	if fd.OrigName != "a/src/a.js" || fd.NewName != "b/src/a.js" {
		t.Errorf("unexpected names %q / %q", fd.OrigName, fd.NewName)
	}
	if len(fd.Hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(fd.Hunks))
	}
	h := fd.Hunks[0]
	if h.OrigStartLine != 1 || h.OrigLines != 3 || h.NewStartLine != 1 || h.NewLines != 3 {
		t.Errorf("unexpected hunk range -%d,%d +%d,%d", h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines)
	}
	if want := " a\n-b\n+B\n c\n"; string(h.Body) != want {
		t.Errorf("expected body %q, got %q", want, h.Body)
	}
}

func TestBuildUnifiedDiff_SeparateHunks(t *testing.T) {
	var before, after []string
	for i := 1; i <= 20; i++ {
		line := fmt.Sprintf("line %d", i)
		before = append(before, line)
		if i == 2 || i == 18 {
			line = strings.ToUpper(line)
		}
		after = append(after, line)
	}
	out, err := BuildUnifiedDiff("a.js", strings.Join(before, "\n")+"\n", strings.Join(after, "\n")+"\n")
	if err != nil {
		t.Fatalf("BuildUnifiedDiff: %v", err)
	}

	fd, err := diff.ParseFileDiff([]byte(out))
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, out)
	}
	if len(fd.Hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d:\n%s", len(fd.Hunks), out)
	}
	if h := fd.Hunks[0]; h.OrigStartLine != 1 || h.OrigLines != 5 {
		t.Errorf("first hunk: expected -1,5, got -%d,%d", h.OrigStartLine, h.OrigLines)
	}
	if h := fd.Hunks[1]; h.OrigStartLine != 15 || h.OrigLines != 6 {
		t.Errorf("second hunk: expected -15,6, got -%d,%d", h.OrigStartLine, h.OrigLines)
	}
}

func TestBuildUnifiedDiff_RemovedImportLine(t *testing.T) {
	before := "import R from \"react\";\nR();\n"
	after := "\nReact();\n"
	out, err := BuildUnifiedDiff("a.js", before, after)
	if err != nil {
		t.Fatalf("BuildUnifiedDiff: %v", err)
	}
	for _, want := range []string{
		"-import R from \"react\";\n",
		"-R();\n",
		"+\n",
		"+React();\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected diff to contain %q:\n%s", want, out)
		}
	}
}

func TestBuildUnifiedDiff_MissingFinalNewline(t *testing.T) {
	out, err := BuildUnifiedDiff("a.js", "x\n", "x")
	if err != nil {
		t.Fatalf("BuildUnifiedDiff: %v", err)
	}
	if !strings.Contains(out, noNewlineMarker) {
		t.Errorf("expected no-newline marker:\n%s", out)
	}
}

func TestBuildHunks(t *testing.T) {
	tests := []struct {
		name   string
		a, b   []string
		header string
		body   string
	}{
		{"delete only line", []string{"a\n"}, nil, "-1,1 +0,0", "-a\n"},
		{"insert into empty", nil, []string{"a\n"}, "-0,0 +1,1", "+a\n"},
		{"delete middle", []string{"a\n", "b\n", "c\n"}, []string{"a\n", "c\n"}, "-1,3 +1,2", " a\n-b\n c\n"},
		{"insert middle", []string{"a\n", "c\n"}, []string{"a\n", "b\n", "c\n"}, "-1,2 +1,3", " a\n+b\n c\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hunks := buildHunks(tt.a, tt.b, diffContextLines)
			if len(hunks) != 1 {
				t.Fatalf("expected 1 hunk, got %d", len(hunks))
			}
			h := hunks[0]
			header := fmt.Sprintf("-%d,%d +%d,%d", h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines)
			if header != tt.header {
				t.Errorf("expected range %s, got %s", tt.header, header)
			}
			if string(h.Body) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, h.Body)
			}
		})
	}
}

func TestBuildHunks_Equal(t *testing.T) {
	if hunks := buildHunks([]string{"a\n"}, []string{"a\n"}, diffContextLines); len(hunks) != 0 {
		t.Errorf("expected no hunks for equal input, got %d", len(hunks))
	}
}
