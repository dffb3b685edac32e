package ir

import "strings"

// Expression kinds. A single tagged struct represents the whole
// expression tree so it serializes cleanly as JSON.
const (
	ExprLiteral     = "literal"
	ExprIdent       = "ident"
	ExprMember      = "member"
	ExprBinary      = "binary"
	ExprUnary       = "unary"
	ExprConditional = "conditional"
	ExprCall        = "call"
	ExprArray       = "array"
	ExprObject      = "object"
)

// Expression is a compiled expression node. Kind selects which of the
// remaining fields are meaningful.
type Expression struct {
	Kind string `json:"kind"`

	// literal
	Value *Constant `json:"value,omitempty"`

	// ident
	Name string `json:"name,omitempty"`

	// member
	Object   *Expression `json:"object,omitempty"`
	Property string      `json:"property,omitempty"`
	Optional bool        `json:"optional,omitempty"`

	// binary / unary
	Op      string      `json:"op,omitempty"`
	Left    *Expression `json:"left,omitempty"`
	Right   *Expression `json:"right,omitempty"`
	Operand *Expression `json:"operand,omitempty"`

	// conditional
	Cond *Expression `json:"cond,omitempty"`
	Then *Expression `json:"then,omitempty"`
	Else *Expression `json:"else,omitempty"`

	// call
	Callee *Expression  `json:"callee,omitempty"`
	Args   []Expression `json:"args,omitempty"`

	// array
	Elems []Expression `json:"elems,omitempty"`

	// object
	Props []ExpressionProp `json:"props,omitempty"`
}

// ExpressionProp is one key/value entry of an object expression.
type ExpressionProp struct {
	Key   string     `json:"key"`
	Value Expression `json:"value"`
}

// Format renders the expression as manifest-like source text, used in
// constraint and guard failure messages so authors see the rule as they
// wrote it.
func (e *Expression) Format() string {
	if e == nil {
		return "<expr>"
	}
	switch e.Kind {
	case ExprLiteral:
		return formatConstant(e.Value)
	case ExprIdent:
		return e.Name
	case ExprMember:
		sep := "."
		if e.Optional {
			sep = "?."
		}
		return e.Object.Format() + sep + e.Property
	case ExprBinary:
		return e.Left.Format() + " " + e.Op + " " + e.Right.Format()
	case ExprUnary:
		if e.Op == "not" {
			return "not " + e.Operand.Format()
		}
		return e.Op + e.Operand.Format()
	case ExprConditional:
		return e.Cond.Format() + " ? " + e.Then.Format() + " : " + e.Else.Format()
	case ExprCall:
		args := make([]string, len(e.Args))
		for i := range e.Args {
			args[i] = e.Args[i].Format()
		}
		return e.Callee.Format() + "(" + strings.Join(args, ", ") + ")"
	case ExprArray:
		elems := make([]string, len(e.Elems))
		for i := range e.Elems {
			elems[i] = e.Elems[i].Format()
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case ExprObject:
		props := make([]string, len(e.Props))
		for i, p := range e.Props {
			props[i] = p.Key + ": " + p.Value.Format()
		}
		return "{ " + strings.Join(props, ", ") + " }"
	default:
		return "<expr>"
	}
}

func formatConstant(c *Constant) string {
	if c == nil || c.Value == nil {
		return "null"
	}
	data, err := c.MarshalJSON()
	if err != nil {
		return "<literal>"
	}
	return string(data)
}
