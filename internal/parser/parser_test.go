package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/ast"
	"github.com/angriff36/manifest/internal/ir"
)

const kitchenManifest = `
module kitchen {
  entity Dish {
    property required name: string
    property price: number = 0
    property tags: list<string>

    constraint nonNegativePrice severity=block: price >= 0 "price cannot be negative"

    command updatePricing(price: number) {
      guard user.role == "manager"
      constraint nonNegativePrice
      mutate price = args.price
      emits PricingChanged
    }
  }

  event PricingChanged: { dish: string, price: number }
}
`

func TestParse_KitchenManifest(t *testing.T) {
	program, diags := Parse(kitchenManifest)
	require.Empty(t, errorsOnly(diags))
	require.Len(t, program.Modules, 1)

	m := program.Modules[0]
	assert.Equal(t, "kitchen", m.Name)
	require.Len(t, m.Entities, 1)

	dish := m.Entities[0]
	assert.Equal(t, "Dish", dish.Name)
	require.Len(t, dish.Properties, 3)
	assert.Equal(t, []string{"required"}, dish.Properties[0].Modifiers)
	assert.Equal(t, "string", dish.Properties[0].Type.Name)
	assert.Equal(t, "list", dish.Properties[2].Type.Name)
	assert.Equal(t, "string", dish.Properties[2].Type.Generic)

	require.Len(t, dish.Constraints, 1)
	assert.Equal(t, "nonNegativePrice", dish.Constraints[0].Name)
	assert.Equal(t, "block", dish.Constraints[0].Severity)
	assert.Equal(t, "price cannot be negative", dish.Constraints[0].Message)
	require.NotNil(t, dish.Constraints[0].Expr)

	require.Len(t, dish.Commands, 1)
	cmd := dish.Commands[0]
	assert.Equal(t, "updatePricing", cmd.Name)
	assert.Equal(t, "Dish", cmd.Entity)
	require.Len(t, cmd.Parameters, 1)
	assert.True(t, cmd.Parameters[0].Required)
	require.Len(t, cmd.Guards, 1)
	require.Len(t, cmd.Constraints, 1)
	assert.Nil(t, cmd.Constraints[0].Expr, "expression-less entry is a reference")
	require.Len(t, cmd.Actions, 1)
	assert.Equal(t, "mutate", cmd.Actions[0].Kind)
	assert.Equal(t, "price", cmd.Actions[0].Target)
	assert.Equal(t, []string{"PricingChanged"}, cmd.Emits)

	require.Len(t, m.Events, 1)
	assert.Equal(t, "PricingChanged", m.Events[0].Name)
	require.Len(t, m.Events[0].Fields, 2)

	// Entity span covers the whole block for defect detection.
	assert.Greater(t, dish.End.Line, dish.Pos.Line)
}

func TestParse_ReservedCommandName(t *testing.T) {
	source := `
entity Order {
  command delete {
    mutate status = "deleted"
  }
}
`
	_, diags := Parse(source)
	errs := errorsOnly(diags)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Reserved word")
	assert.Contains(t, errs[0].Message, `"delete"`)
}

func TestParse_ReservedEntityName(t *testing.T) {
	_, diags := Parse(`entity entity { }`)
	errs := errorsOnly(diags)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Reserved word")
}

func TestParse_RecoversAfterBadDeclaration(t *testing.T) {
	source := `
entity Order {
  property !!! broken
  property total: number
}
entity Customer {
  property name: string
}
`
	program, diags := Parse(source)
	require.NotEmpty(t, errorsOnly(diags))
	// Both entities survive the bad property.
	require.Len(t, program.Entities, 2)
	assert.Equal(t, "Customer", program.Entities[1].Name)
}

func TestParse_PolicyForms(t *testing.T) {
	source := `
entity Invoice {
  policy managersOnly write: user.role == "manager" "managers only"
  policy readable: read true
}
`
	program, diags := Parse(source)
	require.Empty(t, errorsOnly(diags))
	require.Len(t, program.Entities, 1)
	pols := program.Entities[0].Policies
	require.Len(t, pols, 2)
	assert.Equal(t, "write", pols[0].Action)
	assert.Equal(t, "managers only", pols[0].Message)
	assert.Equal(t, "read", pols[1].Action)
}

func TestParse_ArrowCommandBody(t *testing.T) {
	program, diags := Parse(`
entity Counter {
  property value: number = 0
  command increment => mutate value = value + 1
}
`)
	require.Empty(t, errorsOnly(diags))
	cmd := program.Entities[0].Commands[0]
	require.Len(t, cmd.Actions, 1)
	assert.Equal(t, "value", cmd.Actions[0].Target)
}

func TestParse_ExpressionPrecedence(t *testing.T) {
	program, diags := Parse(`
entity E {
  command c {
    guard a + b * 2 > 10 and not done or status == "open"
  }
}
`)
	require.Empty(t, errorsOnly(diags))
	guard := program.Entities[0].Commands[0].Guards[0]

	// or binds loosest.
	or, ok := guard.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "or", or.Op)

	and, ok := or.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "and", and.Op)

	gt, ok := and.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ">", gt.Op)

	plus, ok := gt.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", plus.Op)
	mul, ok := plus.Right.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestParse_TernaryAndOptionalChain(t *testing.T) {
	program, diags := Parse(`
entity E {
  command c {
    compute result = order?.customer != null ? order.customer.name : "walk-in"
  }
}
`)
	require.Empty(t, errorsOnly(diags))
	action := program.Entities[0].Commands[0].Actions[0]
	cond, ok := action.Expr.(*ast.Conditional)
	require.True(t, ok)

	neq, ok := cond.Cond.(*ast.Binary)
	require.True(t, ok)
	member, ok := neq.Left.(*ast.Member)
	require.True(t, ok)
	assert.True(t, member.Optional)
	assert.Equal(t, "customer", member.Property)
}

func TestParse_CallsAndCollections(t *testing.T) {
	program, diags := Parse(`
entity E {
  command c {
    guard len(tags) > 0 and "vip" in tags
    compute stamp = now()
    compute payload = { id: uuid(), items: [1, 2, 3] }
  }
}
`)
	require.Empty(t, errorsOnly(diags))
	actions := program.Entities[0].Commands[0].Actions
	require.Len(t, actions, 2)

	obj, ok := actions[1].Expr.(*ast.ObjectLit)
	require.True(t, ok)
	require.Len(t, obj.Props, 2)
	_, ok = obj.Props[0].Value.(*ast.Call)
	assert.True(t, ok)
	arr, ok := obj.Props[1].Value.(*ast.ArrayLit)
	require.True(t, ok)
	assert.Len(t, arr.Elems, 3)
}

func TestParse_FileLevelDeclarations(t *testing.T) {
	program, diags := Parse(`
constraint sane: true
policy open: read true
event Ping: "system.ping"

entity Thing {
  property name: string
}

command touch {
  mutate name = "touched"
}
`)
	require.Empty(t, errorsOnly(diags))
	assert.Len(t, program.Constraints, 1)
	assert.Len(t, program.Policies, 1)
	require.Len(t, program.Events, 1)
	assert.Equal(t, "system.ping", program.Events[0].Channel)
	require.Len(t, program.Commands, 1)
	assert.Empty(t, program.Commands[0].Entity)
}

func TestParse_OkSeverityAliasWarns(t *testing.T) {
	program, diags := Parse(`
entity Dish {
  property price: number = 0
  constraint roundish severity=ok: price >= 0 "price should not dip below zero"
}
`)
	require.Empty(t, errorsOnly(diags))
	require.Len(t, program.Entities, 1)
	require.Len(t, program.Entities[0].Constraints, 1)
	assert.Equal(t, "warn", program.Entities[0].Constraints[0].Severity)

	var warned bool
	for _, d := range diags {
		if d.Severity == ir.SeverityWarning && strings.Contains(d.Message, "legacy alias") {
			warned = true
		}
	}
	assert.True(t, warned, "expected a legacy-alias warning, got %v", diags)
}

func errorsOnly(diags []ir.Diagnostic) []ir.Diagnostic {
	var out []ir.Diagnostic
	for _, d := range diags {
		if d.Severity == ir.SeverityError {
			out = append(out, d)
		}
	}
	return out
}
