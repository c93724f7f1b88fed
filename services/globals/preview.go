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
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// diffContextLines is the number of unchanged lines kept around each change.
const diffContextLines = 3

// BuildUnifiedDiff renders the difference between before and after as a
// unified diff with a/ and b/ prefixed names.
//
// Outputs:
//
//	string - The diff, or "" when the inputs are equal.
//	error  - Non-nil only if rendering fails.
func BuildUnifiedDiff(name, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	hunks := buildHunks(splitLines(before), splitLines(after), diffContextLines)

	fd := &diff.FileDiff{
		OrigName: "a/" + strings.TrimPrefix(name, "/"),
		NewName:  "b/" + strings.TrimPrefix(name, "/"),
		Hunks:    hunks,
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("print diff: %w", err)
	}
	return string(out), nil
}

// noNewlineMarker follows a line that lacks a terminator.
const noNewlineMarker = "\\ No newline at end of file\n"

// splitLines splits s into lines that keep their terminators, so a missing
// final newline is a difference like any other.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// buildHunks groups the line-level opcodes of a and b into hunks with ctx
// lines of context. Changes closer than 2*ctx lines share a hunk.
func buildHunks(a, b []string, ctx int) []*diff.Hunk {
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	groups := m.GetGroupedOpCodes(ctx)
	hunks := make([]*diff.Hunk, 0, len(groups))
	for _, group := range groups {
		hunks = append(hunks, makeHunk(a, b, group))
	}
	return hunks
}

func makeHunk(a, b []string, group []difflib.OpCode) *diff.Hunk {
	first, last := group[0], group[len(group)-1]

	var body bytes.Buffer
	for _, op := range group {
		switch op.Tag {
		case 'e':
			writeLines(&body, ' ', a[op.I1:op.I2])
		case 'd':
			writeLines(&body, '-', a[op.I1:op.I2])
		case 'i':
			writeLines(&body, '+', b[op.J1:op.J2])
		case 'r':
			writeLines(&body, '-', a[op.I1:op.I2])
			writeLines(&body, '+', b[op.J1:op.J2])
		}
	}

	return &diff.Hunk{
		OrigStartLine: hunkStart(first.I1, last.I2),
		OrigLines:     int32(last.I2 - first.I1),
		NewStartLine:  hunkStart(first.J1, last.J2),
		NewLines:      int32(last.J2 - first.J1),
		Body:          body.Bytes(),
	}
}

// hunkStart converts a 0-based range to a unified start line. An empty side
// starts at the line before the hunk.
func hunkStart(lo, hi int) int32 {
	if lo == hi {
		return int32(lo)
	}
	return int32(lo + 1)
}

func writeLines(body *bytes.Buffer, prefix byte, lines []string) {
	for _, line := range lines {
		body.WriteByte(prefix)
		body.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			body.WriteString("\n" + noNewlineMarker)
		}
	}
}
