// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package edit provides a splice buffer addressed by original byte offsets.
//
// A Buffer starts as one chunk spanning the whole source. Edits split chunks
// at their boundaries and replace chunk content or attach text before or
// after a chunk, so every offset always refers to the original source no
// matter how many edits were made. The result is rendered once with String.
//
// Invalid edits (out of range, overlapping an already edited chunk, zero
// length overwrite) panic: they indicate a bug in the caller, not bad input.
package edit

import (
	"fmt"
	"strings"
)

// chunk is a contiguous range of the original source.
//
// intro is text attached to the start of the range (appendRight at start),
// outro is text attached to the end (appendLeft at end).
type chunk struct {
	start    int
	end      int
	original string
	content  string
	intro    string
	outro    string
	edited   bool
	prev     *chunk
	next     *chunk
}

func newChunk(start, end int, original string) *chunk {
	return &chunk{start: start, end: end, original: original, content: original}
}

func (c *chunk) contains(index int) bool {
	return c.start < index && index < c.end
}

func (c *chunk) edit(content string, contentOnly bool) {
	c.content = content
	if !contentOnly {
		c.intro = ""
		c.outro = ""
	}
	c.edited = true
}

// split cuts the chunk at index and returns the new right-hand chunk.
func (c *chunk) split(index int) *chunk {
	slice := index - c.start
	before, after := c.original[:slice], c.original[slice:]

	right := newChunk(index, c.end, after)
	right.outro = c.outro
	right.next = c.next
	right.prev = c
	if right.next != nil {
		right.next.prev = right
	}

	c.original = before
	c.outro = ""
	c.end = index
	c.next = right

	if c.edited {
		right.edit("", false)
		c.content = ""
	} else {
		c.content = before
	}
	return right
}

// Buffer is an edit buffer bound to an original source text.
//
// Thread Safety:
//
//	Not safe for concurrent use. One Buffer belongs to one transform.
type Buffer struct {
	original     string
	intro        string
	outro        string
	first        *chunk
	lastSearched *chunk
	byStart      map[int]*chunk
	byEnd        map[int]*chunk
	edits        int
}

// New creates a Buffer over source.
func New(source string) *Buffer {
	c := newChunk(0, len(source), source)
	return &Buffer{
		original:     source,
		first:        c,
		lastSearched: c,
		byStart:      map[int]*chunk{0: c},
		byEnd:        map[int]*chunk{len(source): c},
	}
}

// Original returns the source the buffer was created from.
func (b *Buffer) Original() string {
	return b.original
}

// Edits returns the number of edit calls applied so far.
func (b *Buffer) Edits() int {
	return b.edits
}

// HasChanged reports whether the rendered text differs from the original.
func (b *Buffer) HasChanged() bool {
	return b.String() != b.original
}

// Remove deletes original[start:end] together with any text attached
// inside or at the edges of that range. An empty range is a no-op.
func (b *Buffer) Remove(start, end int) {
	b.checkRange("remove", start, end)
	if start == end {
		return
	}
	b.edits++
	b.split(start)
	b.split(end)

	c := b.byStart[start]
	for c != nil {
		c.intro = ""
		c.outro = ""
		c.edit("", false)
		if end > c.end {
			c = b.byStart[c.end]
		} else {
			c = nil
		}
	}
}

// Overwrite replaces original[start:end] with content.
//
// With contentOnly, text previously attached at the range edges with
// AppendLeft/AppendRight is kept; otherwise it is discarded.
func (b *Buffer) Overwrite(start, end int, content string, contentOnly bool) {
	b.checkRange("overwrite", start, end)
	if start == end {
		panic(fmt.Sprintf("edit: cannot overwrite zero-length range at %d; use AppendLeft or AppendRight", start))
	}
	b.edits++
	b.split(start)
	b.split(end)

	first := b.byStart[start]
	last := b.byEnd[end]
	for c := first; c != last; {
		if c.next != b.byStart[c.end] {
			panic(fmt.Sprintf("edit: cannot overwrite across a split point (%d-%d)", start, end))
		}
		c = c.next
		c.edit("", false)
	}
	first.edit(content, contentOnly)
}

// AppendLeft inserts content at index, attached to the character before
// index. It survives edits to the range starting at index.
func (b *Buffer) AppendLeft(index int, content string) {
	b.checkIndex("appendLeft", index)
	b.edits++
	b.split(index)
	if c := b.byEnd[index]; c != nil {
		c.outro += content
	} else {
		b.intro += content
	}
}

// AppendRight inserts content at index, attached to the character at
// index. It survives edits to the range ending at index.
func (b *Buffer) AppendRight(index int, content string) {
	b.checkIndex("appendRight", index)
	b.edits++
	b.split(index)
	if c := b.byStart[index]; c != nil {
		c.intro += content
	} else {
		b.outro += content
	}
}

// String renders the edited text.
func (b *Buffer) String() string {
	var sb strings.Builder
	sb.Grow(len(b.original) + len(b.intro) + len(b.outro))
	sb.WriteString(b.intro)
	for c := b.first; c != nil; c = c.next {
		sb.WriteString(c.intro)
		sb.WriteString(c.content)
		sb.WriteString(c.outro)
	}
	sb.WriteString(b.outro)
	return sb.String()
}

// split makes index a chunk boundary.
func (b *Buffer) split(index int) {
	if _, ok := b.byStart[index]; ok {
		return
	}
	if _, ok := b.byEnd[index]; ok {
		return
	}

	c := b.lastSearched
	forward := index > c.end
	for c != nil {
		if c.contains(index) {
			b.splitChunk(c, index)
			return
		}
		if forward {
			c = b.byStart[c.end]
		} else {
			c = b.byEnd[c.start]
		}
	}
	panic(fmt.Sprintf("edit: no chunk contains index %d", index))
}

func (b *Buffer) splitChunk(c *chunk, index int) {
	if c.edited && c.content != "" {
		panic(fmt.Sprintf("edit: cannot split a chunk that has already been edited (%d-%d %q)", c.start, c.end, c.original))
	}
	right := c.split(index)
	b.byEnd[index] = c
	b.byStart[index] = right
	b.byEnd[right.end] = right
	b.lastSearched = c
}

func (b *Buffer) checkIndex(op string, index int) {
	if index < 0 || index > len(b.original) {
		panic(fmt.Sprintf("edit: %s index %d out of range [0,%d]", op, index, len(b.original)))
	}
}

func (b *Buffer) checkRange(op string, start, end int) {
	if start < 0 || end > len(b.original) || start > end {
		panic(fmt.Sprintf("edit: %s range %d-%d out of range [0,%d]", op, start, end, len(b.original)))
	}
}
