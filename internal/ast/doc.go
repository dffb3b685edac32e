// Package ast defines the syntax tree produced by the manifest parser.
//
// This package contains type definitions only. The parser builds these
// nodes; the compiler consumes them read-only. No other internal package
// is imported, keeping the tree a pure data layer.
//
// Every declaration node carries a Pos so diagnostics and the ownership
// normalizer can point back at source locations.
package ast
