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
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects files by slash-separated glob patterns.
//
// Patterns use doublestar syntax: `*` within a segment, `**` across any
// number of directories (including none), `{a,b}` alternation and
// character classes. A file is selected if it matches at least one include
// pattern and no exclude pattern. An empty include list selects everything.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter validates include and exclude patterns.
//
// Outputs:
//
//	*Filter - The filter.
//	error   - Non-nil if any pattern is malformed.
func NewFilter(include, exclude []string) (*Filter, error) {
	inc, err := compilePatterns(include)
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	exc, err := compilePatterns(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return &Filter{include: inc, exclude: exc}, nil
}

// Match reports whether rel, a path relative to the walk root, is selected.
// OS separators are normalized to slashes. A nil Filter selects everything.
func (f *Filter) Match(rel string) bool {
	if f == nil {
		return true
	}
	rel = normalizeRel(rel)
	for _, pat := range f.exclude {
		if matchPattern(pat, rel) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, pat := range f.include {
		if matchPattern(pat, rel) {
			return true
		}
	}
	return false
}

// ExcludesDir reports whether every file under dir is excluded, so a walk
// can skip it. Only `dir/**` style excludes qualify.
func (f *Filter) ExcludesDir(rel string) bool {
	if f == nil {
		return false
	}
	rel = normalizeRel(rel)
	for _, pat := range f.exclude {
		if pat == "**" {
			return true
		}
		dir, ok := strings.CutSuffix(pat, "/**")
		if !ok {
			continue
		}
		if matchPattern(dir, rel) || matchPattern(pat, rel) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.Trim(p, "/"), "./")
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("pattern %q: %w", p, doublestar.ErrBadPattern)
		}
		out = append(out, p)
	}
	return out, nil
}

// normalizeRel turns rel into a clean slash path without a leading "./".
func normalizeRel(rel string) string {
	rel = path.Clean(filepath.ToSlash(rel))
	return strings.TrimPrefix(rel, "/")
}

// matchPattern reports whether rel matches a validated pattern.
func matchPattern(pat, rel string) bool {
	ok, err := doublestar.Match(pat, rel)
	return err == nil && ok
}
