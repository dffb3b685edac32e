// Package parser lexes and parses manifest source into the ast package's
// declaration tree.
//
// Parsing is total: malformed input produces diagnostics and a partial
// program, never a panic or a hard stop, so callers always get every
// reportable error from a single pass.
package parser
