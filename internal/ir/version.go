package ir

// CompilerVersion identifies the compiler release that produced an IR.
// Bump on any change to lowering behavior, even when the schema is
// unchanged, so drift reports can distinguish tool upgrades from source
// edits.
const CompilerVersion = "1.2.0"

// SchemaVersion identifies the IR JSON schema. Bump only on wire-contract
// changes; consumers reject IR files with an unknown major version.
const SchemaVersion = "1.0"
