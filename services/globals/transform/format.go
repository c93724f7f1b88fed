// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transform

import (
	"github.com/AleutianAI/globals/services/globals/ast"
)

// FormatGlobalName returns the expression for property prop of global.
// The default export is the global itself.
func FormatGlobalName(prop, global string) string {
	if prop == "default" {
		return global
	}
	return global + "." + prop
}

// TempName returns the constant name used when expr cannot stand in for an
// identifier, e.g. `_global_React_Fragment` for `React.Fragment`.
func TempName(expr string) string {
	return "_global_" + ast.MakeLegalIdentifier(expr)
}

// LocalAlias returns the name a local declaration of a global is renamed to.
func LocalAlias(name string) string {
	return "_local_" + name
}
