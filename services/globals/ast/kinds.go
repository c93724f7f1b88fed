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
	sitter "github.com/smacker/go-tree-sitter"
)

// tree-sitter-javascript node type names.
const (
	jsNodeProgram                    = "program"
	jsNodeImportStatement            = "import_statement"
	jsNodeImportClause               = "import_clause"
	jsNodeNamedImports               = "named_imports"
	jsNodeNamespaceImport            = "namespace_import"
	jsNodeImportSpecifier            = "import_specifier"
	jsNodeImport                     = "import"
	jsNodeExportStatement            = "export_statement"
	jsNodeExportClause               = "export_clause"
	jsNodeExportSpecifier            = "export_specifier"
	jsNodeNamespaceExport            = "namespace_export"
	jsNodeIdentifier                 = "identifier"
	jsNodeShorthandPropertyIdent     = "shorthand_property_identifier"
	jsNodeShorthandPropertyIdentPatt = "shorthand_property_identifier_pattern"
	jsNodeString                     = "string"
	jsNodeStringFragment             = "string_fragment"
	jsNodeEscapeSequence             = "escape_sequence"
	jsNodeCallExpression             = "call_expression"
	jsNodeArguments                  = "arguments"
	jsNodeFunctionDeclaration        = "function_declaration"
	jsNodeGeneratorFunctionDecl      = "generator_function_declaration"
	jsNodeFunctionExpression         = "function_expression"
	jsNodeFunctionLegacy             = "function"
	jsNodeGeneratorFunction          = "generator_function"
	jsNodeArrowFunction              = "arrow_function"
	jsNodeMethodDefinition           = "method_definition"
	jsNodeClassDeclaration           = "class_declaration"
	jsNodeClass                      = "class"
	jsNodeStatementBlock             = "statement_block"
	jsNodeCatchClause                = "catch_clause"
	jsNodeForStatement               = "for_statement"
	jsNodeForInStatement             = "for_in_statement"
	jsNodeLexicalDeclaration         = "lexical_declaration"
	jsNodeVariableDeclaration        = "variable_declaration"
	jsNodeVariableDeclarator         = "variable_declarator"
	jsNodeFormalParameters           = "formal_parameters"
	jsNodeObjectPattern              = "object_pattern"
	jsNodeArrayPattern               = "array_pattern"
	jsNodePairPattern                = "pair_pattern"
	jsNodeAssignmentPattern          = "assignment_pattern"
	jsNodeObjectAssignmentPattern    = "object_assignment_pattern"
	jsNodeRestPattern                = "rest_pattern"
)

// Kind is the closed set of node kinds the import rewriter dispatches on.
//
// Every tree-sitter node maps to exactly one Kind. Node types the rewriter
// has no rule for map to KindOther.
type Kind int

const (
	KindOther Kind = iota
	KindProgram
	KindImportStatement
	KindExportStatement
	KindExportClause
	KindExportSpecifier
	KindIdentifier
	KindShorthandProperty
	KindShorthandPropertyPattern
	KindString
	KindCallExpression
	KindImport
	KindFunction
	KindClass
	KindBlock
	KindCatchClause
	KindFor
	KindLexicalDeclaration
	KindVariableDeclaration
	KindPattern
)

var kindNames = [...]string{
	KindOther:                    "other",
	KindProgram:                  "program",
	KindImportStatement:          "import_statement",
	KindExportStatement:          "export_statement",
	KindExportClause:             "export_clause",
	KindExportSpecifier:          "export_specifier",
	KindIdentifier:               "identifier",
	KindShorthandProperty:        "shorthand_property",
	KindShorthandPropertyPattern: "shorthand_property_pattern",
	KindString:                   "string",
	KindCallExpression:           "call_expression",
	KindImport:                   "import",
	KindFunction:                 "function",
	KindClass:                    "class",
	KindBlock:                    "block",
	KindCatchClause:              "catch_clause",
	KindFor:                      "for",
	KindLexicalDeclaration:       "lexical_declaration",
	KindVariableDeclaration:      "variable_declaration",
	KindPattern:                  "pattern",
}

// String returns the kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var kindByType = map[string]Kind{
	jsNodeProgram:                    KindProgram,
	jsNodeImportStatement:            KindImportStatement,
	jsNodeExportStatement:            KindExportStatement,
	jsNodeExportClause:               KindExportClause,
	jsNodeExportSpecifier:            KindExportSpecifier,
	jsNodeIdentifier:                 KindIdentifier,
	jsNodeShorthandPropertyIdent:     KindShorthandProperty,
	jsNodeShorthandPropertyIdentPatt: KindShorthandPropertyPattern,
	jsNodeString:                     KindString,
	jsNodeCallExpression:             KindCallExpression,
	jsNodeImport:                     KindImport,
	jsNodeFunctionDeclaration:        KindFunction,
	jsNodeGeneratorFunctionDecl:      KindFunction,
	jsNodeFunctionExpression:         KindFunction,
	jsNodeFunctionLegacy:             KindFunction,
	jsNodeGeneratorFunction:          KindFunction,
	jsNodeArrowFunction:              KindFunction,
	jsNodeMethodDefinition:           KindFunction,
	jsNodeClassDeclaration:           KindClass,
	jsNodeClass:                      KindClass,
	jsNodeStatementBlock:             KindBlock,
	jsNodeCatchClause:                KindCatchClause,
	jsNodeForStatement:               KindFor,
	jsNodeForInStatement:             KindFor,
	jsNodeLexicalDeclaration:         KindLexicalDeclaration,
	jsNodeVariableDeclaration:        KindVariableDeclaration,
	jsNodeObjectPattern:              KindPattern,
	jsNodeArrayPattern:               KindPattern,
	jsNodePairPattern:                KindPattern,
	jsNodeAssignmentPattern:          KindPattern,
	jsNodeObjectAssignmentPattern:    KindPattern,
	jsNodeRestPattern:                KindPattern,
}

// KindOf maps a node to its Kind.
//
// The anonymous `function` keyword token shares its type name with the
// legacy function expression node, so only named nodes map to KindFunction.
func KindOf(node *sitter.Node) Kind {
	if node == nil {
		return KindOther
	}
	k, ok := kindByType[node.Type()]
	if !ok {
		return KindOther
	}
	if k == KindFunction && !node.IsNamed() {
		return KindOther
	}
	if k == KindClass && !node.IsNamed() {
		return KindOther
	}
	return k
}
