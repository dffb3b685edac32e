// Package compiler lowers parsed manifest programs to the serializable
// IR consumed by the runtime engine and the committed-artifact tooling.
//
// Compilation never panics on bad input. Every problem surfaces as a
// diagnostic; an IR is produced only when no error-severity diagnostic
// was emitted, and the produced IR is always ownership-normalized and
// provenance-stamped.
package compiler
