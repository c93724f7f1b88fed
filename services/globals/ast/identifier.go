// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"regexp"
	"strings"
)

var (
	dashLetterPattern     = regexp.MustCompile(`-(\w)`)
	illegalCharPattern    = regexp.MustCompile(`[^$_a-zA-Z0-9]`)
	bareIdentifierPattern = regexp.MustCompile(`^[\w$]+$`)
)

// reservedNames are words that cannot be used as binding names, plus the
// builtins a generated name must not shadow.
var reservedNames = toSet(strings.Fields(`
break case class catch const continue debugger default delete do else
export extends finally for function if import in instanceof let new return
super switch this throw try typeof var void while with yield enum await
implements package protected static interface private public
arguments Infinity NaN undefined null true false eval uneval isFinite
isNaN parseFloat parseInt decodeURI decodeURIComponent encodeURI
encodeURIComponent escape unescape Object Function Boolean Symbol Error
EvalError InternalError RangeError ReferenceError SyntaxError TypeError
URIError Number Math Date String RegExp Array Int8Array Uint8Array
Uint8ClampedArray Int16Array Uint16Array Int32Array Uint32Array
Float32Array Float64Array Map Set WeakMap WeakSet SIMD ArrayBuffer DataView
JSON Promise Generator GeneratorFunction Reflect Proxy Intl`))

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// MakeLegalIdentifier turns an arbitrary string into a usable binding name.
//
// `-x` sequences become `X`, every other character outside [$_a-zA-Z0-9]
// becomes `_`, and a leading digit or reserved word gets a `_` prefix.
// The empty string becomes `_`.
func MakeLegalIdentifier(s string) string {
	s = dashLetterPattern.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ToUpper(m[1:])
	})
	s = illegalCharPattern.ReplaceAllString(s, "_")
	if s == "" {
		return "_"
	}
	if _, reserved := reservedNames[s]; reserved || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

// IsBareIdentifier reports whether s consists only of word characters and
// `$`, i.e. can replace an identifier without introducing a member access.
func IsBareIdentifier(s string) bool {
	return bareIdentifierPattern.MatchString(s)
}
