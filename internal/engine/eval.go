package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/angriff36/manifest/internal/ir"
)

// evaluator resolves IR expressions against a flat binding environment.
// Bindings hold self/user/context plus the command arguments, both as a
// nested "args" object and spread at top level so rules can write
// `price` or `args.price` interchangeably.
type evaluator struct {
	env   ir.Object
	now   func() time.Time
	genID func() string
}

func (ev *evaluator) eval(e *ir.Expression) (ir.Value, error) {
	if e == nil {
		return ir.Null{}, nil
	}
	switch e.Kind {
	case ir.ExprLiteral:
		if e.Value == nil {
			return ir.Null{}, nil
		}
		return ir.CloneValue(e.Value.Value), nil

	case ir.ExprIdent:
		if v, ok := ev.env[e.Name]; ok {
			return v, nil
		}
		return ir.Null{}, nil

	case ir.ExprMember:
		obj, err := ev.eval(e.Object)
		if err != nil {
			return nil, err
		}
		if _, isNull := obj.(ir.Null); isNull || obj == nil {
			if e.Optional {
				return ir.Null{}, nil
			}
			return nil, fmt.Errorf("cannot read %q of null", e.Property)
		}
		container, ok := obj.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("cannot read %q of %T", e.Property, obj)
		}
		if v, ok := container[e.Property]; ok {
			return v, nil
		}
		return ir.Null{}, nil

	case ir.ExprUnary:
		operand, err := ev.eval(e.Operand)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "not":
			return ir.Bool(!ir.Truthy(operand)), nil
		case "-":
			n, ok := operand.(ir.Number)
			if !ok {
				return nil, fmt.Errorf("cannot negate %T", operand)
			}
			return ir.Number(-n), nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", e.Op)

	case ir.ExprBinary:
		return ev.evalBinary(e)

	case ir.ExprConditional:
		cond, err := ev.eval(e.Cond)
		if err != nil {
			return nil, err
		}
		if ir.Truthy(cond) {
			return ev.eval(e.Then)
		}
		return ev.eval(e.Else)

	case ir.ExprCall:
		return ev.evalCall(e)

	case ir.ExprArray:
		list := make(ir.List, 0, len(e.Elems))
		for i := range e.Elems {
			v, err := ev.eval(&e.Elems[i])
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case ir.ExprObject:
		obj := make(ir.Object, len(e.Props))
		for i := range e.Props {
			v, err := ev.eval(&e.Props[i].Value)
			if err != nil {
				return nil, err
			}
			obj[e.Props[i].Key] = v
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unknown expression kind %q", e.Kind)
}

func (ev *evaluator) evalBinary(e *ir.Expression) (ir.Value, error) {
	// Logical operators short-circuit.
	switch e.Op {
	case "and":
		left, err := ev.eval(e.Left)
		if err != nil {
			return nil, err
		}
		if !ir.Truthy(left) {
			return ir.Bool(false), nil
		}
		right, err := ev.eval(e.Right)
		if err != nil {
			return nil, err
		}
		return ir.Bool(ir.Truthy(right)), nil
	case "or":
		left, err := ev.eval(e.Left)
		if err != nil {
			return nil, err
		}
		if ir.Truthy(left) {
			return ir.Bool(true), nil
		}
		right, err := ev.eval(e.Right)
		if err != nil {
			return nil, err
		}
		return ir.Bool(ir.Truthy(right)), nil
	}

	left, err := ev.eval(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==", "is":
		return ir.Bool(ir.Equal(left, right)), nil
	case "!=":
		return ir.Bool(!ir.Equal(left, right)), nil
	case "+":
		if ls, ok := left.(ir.String); ok {
			if rs, ok := right.(ir.String); ok {
				return ls + rs, nil
			}
		}
		return numericOp(e.Op, left, right)
	case "-", "*", "/", "%":
		return numericOp(e.Op, left, right)
	case "<", "<=", ">", ">=":
		return compareOp(e.Op, left, right)
	case "in":
		return containsValue(right, left)
	case "contains":
		return containsValue(left, right)
	}
	return nil, fmt.Errorf("unknown operator %q", e.Op)
}

func numericOp(op string, left, right ir.Value) (ir.Value, error) {
	l, lok := left.(ir.Number)
	r, rok := right.(ir.Number)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q requires numbers, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return ir.Number(math.Mod(float64(l), float64(r))), nil
	}
	return nil, fmt.Errorf("unknown numeric operator %q", op)
}

func compareOp(op string, left, right ir.Value) (ir.Value, error) {
	if l, ok := left.(ir.Number); ok {
		r, ok := right.(ir.Number)
		if !ok {
			return nil, fmt.Errorf("cannot compare number with %T", right)
		}
		return orderResult(op, float64(l) < float64(r), float64(l) == float64(r)), nil
	}
	if l, ok := left.(ir.String); ok {
		r, ok := right.(ir.String)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %T", right)
		}
		return orderResult(op, l < r, l == r), nil
	}
	return nil, fmt.Errorf("cannot order %T values", left)
}

func orderResult(op string, less, equal bool) ir.Bool {
	switch op {
	case "<":
		return ir.Bool(less)
	case "<=":
		return ir.Bool(less || equal)
	case ">":
		return ir.Bool(!less && !equal)
	case ">=":
		return ir.Bool(!less)
	}
	return false
}

// containsValue implements both `needle in haystack` and
// `haystack contains needle` over lists, strings and object keys.
func containsValue(haystack, needle ir.Value) (ir.Value, error) {
	switch h := haystack.(type) {
	case ir.List:
		for _, v := range h {
			if ir.Equal(v, needle) {
				return ir.Bool(true), nil
			}
		}
		return ir.Bool(false), nil
	case ir.String:
		n, ok := needle.(ir.String)
		if !ok {
			return nil, fmt.Errorf("string membership requires a string, got %T", needle)
		}
		return ir.Bool(strings.Contains(string(h), string(n))), nil
	case ir.Object:
		n, ok := needle.(ir.String)
		if !ok {
			return nil, fmt.Errorf("object membership requires a string key, got %T", needle)
		}
		_, present := h[string(n)]
		return ir.Bool(present), nil
	}
	return nil, fmt.Errorf("membership test over %T", haystack)
}

func (ev *evaluator) evalCall(e *ir.Expression) (ir.Value, error) {
	callee, ok := calleeName(e.Callee)
	if !ok {
		return nil, fmt.Errorf("only builtin functions are callable")
	}
	switch callee {
	case "now":
		return ir.String(ev.now().UTC().Format(time.RFC3339)), nil
	case "uuid":
		return ir.String(ev.genID()), nil
	case "len":
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("len takes exactly one argument")
		}
		arg, err := ev.eval(&e.Args[0])
		if err != nil {
			return nil, err
		}
		switch v := arg.(type) {
		case ir.String:
			return ir.Number(float64(len(v))), nil
		case ir.List:
			return ir.Number(float64(len(v))), nil
		case ir.Object:
			return ir.Number(float64(len(v))), nil
		case ir.Null:
			return ir.Number(0), nil
		}
		return nil, fmt.Errorf("len of %T", arg)
	}
	return nil, fmt.Errorf("unknown function %q", callee)
}

func calleeName(e *ir.Expression) (string, bool) {
	if e == nil || e.Kind != ir.ExprIdent {
		return "", false
	}
	return e.Name, true
}
