package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/ir"
)

const cateringManifest = `
module catering {
  entity Dish {
    property required name: string
    property price: number = 0

    constraint nonNegativePrice severity=block: price >= 0 "price cannot be negative"

    command updatePricing(price: number) {
      guard user.role == "manager"
      constraint nonNegativePrice
      mutate price = args.price
      emits PricingChanged
    }

    command rename(name: string) {
      constraint nameNotEmpty: len(args.name) > 0 "name required"
      mutate name = args.name
    }
  }

  entity Order {
    property status: string = "open"

    command close {
      guard status == "open"
      mutate status = "closed"
    }
  }

  event PricingChanged: { dish: string, price: number }
}
`

func TestCompileToIR_Basic(t *testing.T) {
	compiled, diags := CompileToIR(cateringManifest)
	require.NotNil(t, compiled, "diagnostics: %v", diags)
	require.Empty(t, errorDiags(diags))

	assert.Equal(t, "catering", compiled.Manifest)
	require.Len(t, compiled.Entities, 2)
	require.Len(t, compiled.Commands, 3)
	require.Len(t, compiled.Events, 1)

	dish := compiled.Entity("Dish")
	require.NotNil(t, dish)
	assert.Equal(t, []string{"updatePricing", "rename"}, dish.Commands)

	// The expression-less entry resolved to the entity-level definition.
	update := compiled.Command("Dish", "updatePricing")
	require.NotNil(t, update)
	require.Equal(t, []string{"Dish.nonNegativePrice"}, update.Constraints)

	// The inline entry became a command-scoped definition.
	rename := compiled.Command("Dish", "rename")
	require.NotNil(t, rename)
	require.Equal(t, []string{"Dish.rename.nameNotEmpty"}, rename.Constraints)
	inline := compiled.Constraint("Dish.rename.nameNotEmpty")
	require.NotNil(t, inline)
	assert.Equal(t, ir.SeverityBlock, inline.Severity)
	assert.Equal(t, "rename", inline.Command)

	require.NotNil(t, compiled.Provenance)
	assert.NoError(t, ir.Verify(compiled))
}

func TestCompileToIR_Deterministic(t *testing.T) {
	first, diags := CompileToIR(cateringManifest)
	require.NotNil(t, first, "diagnostics: %v", diags)
	second, _ := CompileToIR(cateringManifest)
	require.NotNil(t, second)

	a, err := ir.MarshalDeterministic(first)
	require.NoError(t, err)
	b, err := ir.MarshalDeterministic(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "recompilation must be byte-identical")
}

func TestCompileToIR_NilOnError(t *testing.T) {
	compiled, diags := CompileToIR(`
entity Order {
  command delete {
    mutate status = "deleted"
  }
}
`)
	assert.Nil(t, compiled)
	require.NotEmpty(t, errorDiags(diags))
	assert.Contains(t, errorDiags(diags)[0].Message, "Reserved word")
}

func TestCompileToIR_DuplicateEntity(t *testing.T) {
	compiled, diags := CompileToIR(`
entity Dish { property name: string }
entity Dish { property name: string }
`)
	assert.Nil(t, compiled)
	require.NotEmpty(t, errorDiags(diags))
	assert.Contains(t, errorDiags(diags)[0].Message, "duplicate entity")
}

func TestCompileToIR_DuplicateCommand(t *testing.T) {
	compiled, diags := CompileToIR(`
entity Dish {
  command touch { mutate name = "a" }
  command touch { mutate name = "b" }
}
`)
	assert.Nil(t, compiled)
	require.NotEmpty(t, errorDiags(diags))
	assert.Contains(t, errorDiags(diags)[0].Message, "duplicate command")
}

func TestCompileToIR_UnresolvedConstraintReference(t *testing.T) {
	compiled, diags := CompileToIR(`
entity Dish {
  command touch {
    constraint noSuchRule
    mutate name = "x"
  }
}
`)
	assert.Nil(t, compiled)
	require.NotEmpty(t, errorDiags(diags))
	assert.Contains(t, errorDiags(diags)[0].Message, "unknown constraint")
}

func TestCompileToIR_SeverityOverrideSpecializes(t *testing.T) {
	compiled, diags := CompileToIR(`
entity Dish {
  property price: number = 0
  constraint pricey: price < 100 "too expensive"

  command discount(price: number) {
    constraint pricey severity=warn
    mutate price = args.price
  }
}
`)
	require.NotNil(t, compiled, "diagnostics: %v", diags)

	cmd := compiled.Command("Dish", "discount")
	require.NotNil(t, cmd)
	require.Len(t, cmd.Constraints, 1)
	specialized := compiled.Constraint(cmd.Constraints[0])
	require.NotNil(t, specialized)
	assert.Equal(t, ir.SeverityWarn, specialized.Severity)
	// The entity-level definition keeps its own severity.
	base := compiled.Constraint("Dish.pricey")
	require.NotNil(t, base)
	assert.Equal(t, ir.SeverityBlock, base.Severity)
}

func TestCompileToIR_FileLevelCommandAttributedBySpan(t *testing.T) {
	compiled, diags := CompileToIR(`
entity Dish {
  property name: string
}

command touch(name: string) {
  mutate name = args.name
}
`)
	require.NotNil(t, compiled, "diagnostics: %v", diags)
	cmd := compiled.Command("Dish", "touch")
	require.NotNil(t, cmd, "file-level command falls to the nearest entity")
	assert.Equal(t, []string{"touch"}, compiled.Entity("Dish").Commands)
}

func TestCompileToIR_FileLevelCommandDuplicatesOwned(t *testing.T) {
	// The file-level command parses cleanly, but ownership repair
	// attributes it to Dish, which already declares touch.
	compiled, diags := CompileToIR(`
entity Dish {
  property name: string

  command touch {
    mutate name = "inline"
  }
}

command touch(name: string) {
  mutate name = args.name
}
`)
	assert.Nil(t, compiled)
	require.NotEmpty(t, errorDiags(diags))
	assert.Contains(t, errorDiags(diags)[0].Message, `duplicate command "Dish.touch"`)
}

func TestCompileToIR_CoverageCatchesSwallowedCommand(t *testing.T) {
	// Error recovery inside prepare's body skips tokens until a command
	// statement keyword, which swallows the nested command declaration.
	// The raw token count over the entity span still sees both.
	compiled, diags := CompileToIR(`
module kitchen {
  entity Dish {
    command prepare() {
      42
      command plate() {
        mutate ready = true
      }
    }
  }
}
`)
	assert.Nil(t, compiled)
	require.NotEmpty(t, errorDiags(diags))

	var found bool
	for _, d := range errorDiags(diags) {
		if strings.Contains(d.Message, "command tokens but") {
			found = true
		}
	}
	assert.True(t, found, "expected a coverage mismatch diagnostic, got %v", diags)
}

func errorDiags(diags []ir.Diagnostic) []ir.Diagnostic {
	var out []ir.Diagnostic
	for _, d := range diags {
		if d.Severity == ir.SeverityError {
			out = append(out, d)
		}
	}
	return out
}
