package compiler

import (
	"github.com/angriff36/manifest/internal/ast"
	"github.com/angriff36/manifest/internal/ir"
)

// lowerExpr converts an AST expression to its IR form. Nil in, nil out.
func (l *lowerer) lowerExpr(e ast.Expr) *ir.Expression {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Literal:
		v, err := ir.FromGo(n.Value)
		if err != nil {
			l.diags = append(l.diags, ir.Errorf(n.Pos.Line, n.Pos.Column,
				"unsupported literal: %v", err))
			return nil
		}
		return &ir.Expression{Kind: ir.ExprLiteral, Value: &ir.Constant{Value: v}}
	case *ast.Ident:
		return &ir.Expression{Kind: ir.ExprIdent, Name: n.Name}
	case *ast.Member:
		return &ir.Expression{
			Kind:     ir.ExprMember,
			Object:   l.lowerExpr(n.Object),
			Property: n.Property,
			Optional: n.Optional,
		}
	case *ast.Binary:
		return &ir.Expression{
			Kind:  ir.ExprBinary,
			Op:    n.Op,
			Left:  l.lowerExpr(n.Left),
			Right: l.lowerExpr(n.Right),
		}
	case *ast.Unary:
		return &ir.Expression{
			Kind:    ir.ExprUnary,
			Op:      n.Op,
			Operand: l.lowerExpr(n.Operand),
		}
	case *ast.Conditional:
		return &ir.Expression{
			Kind: ir.ExprConditional,
			Cond: l.lowerExpr(n.Cond),
			Then: l.lowerExpr(n.Then),
			Else: l.lowerExpr(n.Else),
		}
	case *ast.Call:
		out := &ir.Expression{Kind: ir.ExprCall, Callee: l.lowerExpr(n.Callee)}
		for _, arg := range n.Args {
			if a := l.lowerExpr(arg); a != nil {
				out.Args = append(out.Args, *a)
			}
		}
		return out
	case *ast.ArrayLit:
		out := &ir.Expression{Kind: ir.ExprArray}
		for _, el := range n.Elems {
			if v := l.lowerExpr(el); v != nil {
				out.Elems = append(out.Elems, *v)
			}
		}
		return out
	case *ast.ObjectLit:
		out := &ir.Expression{Kind: ir.ExprObject}
		for _, p := range n.Props {
			v := l.lowerExpr(p.Value)
			if v == nil {
				continue
			}
			out.Props = append(out.Props, ir.ExpressionProp{Key: p.Key, Value: *v})
		}
		return out
	default:
		pos := e.Position()
		l.diags = append(l.diags, ir.Errorf(pos.Line, pos.Column,
			"unsupported expression"))
		return nil
	}
}
