package ir

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// ValidateIRBytes checks raw JSON against the embedded IR schema.
// This is the schema-checked deserialization boundary: external tools and
// the CLI call it before trusting a committed IR file's shape.
func ValidateIRBytes(data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal: IR schema does not compile: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#IR"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("internal: #IR definition missing: %w", err)
	}

	expr, err := cuejson.Extract("ir.json", data)
	if err != nil {
		return fmt.Errorf("IR file is not valid JSON: %w", err)
	}
	val := ctx.BuildExpr(expr)
	if err := val.Err(); err != nil {
		return fmt.Errorf("IR file is not valid JSON: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("IR schema violation: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// LoadIRFile reads, schema-checks and decodes a committed IR file.
func LoadIRFile(path string) (*IR, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read IR file: %w", err)
	}
	return DecodeIR(data)
}

// DecodeIR schema-checks and decodes IR JSON bytes.
func DecodeIR(data []byte) (*IR, error) {
	if err := ValidateIRBytes(data); err != nil {
		return nil, err
	}
	var i IR
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, fmt.Errorf("decode IR: %w", err)
	}
	return &i, nil
}
