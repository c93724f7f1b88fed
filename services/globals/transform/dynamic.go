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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/globals/services/globals/ast"
)

// rewriteDynamicImport replaces `import("x")` of a mapped module. It
// reports whether the call was rewritten, in which case its subtree must
// not be visited.
func (r *rewriter) rewriteDynamicImport(node *sitter.Node) bool {
	specifier, ok := ast.DynamicImportSource(node, r.source)
	if !ok {
		return false
	}
	global, ok := r.resolve(specifier)
	if !ok {
		return false
	}
	r.buf.Overwrite(int(node.StartByte()), int(node.EndByte()), r.opts.dynamicWrapper(global), false)
	r.opts.stats.DynamicImportsRewritten++
	r.touched = true
	return true
}
