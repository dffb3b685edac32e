package parser

import (
	"strconv"

	"github.com/angriff36/manifest/internal/ast"
	"github.com/angriff36/manifest/internal/ir"
)

// Expression grammar, lowest to highest precedence:
//
//	conditional:  or ("?" expr ":" expr)?
//	or:           and (("or" | "||") and)*
//	and:          equality (("and" | "&&") equality)*
//	equality:     comparison (("==" | "!=" | "is") comparison)*
//	comparison:   term (("<" | "<=" | ">" | ">=" | "in" | "contains") term)*
//	term:         factor (("+" | "-") factor)*
//	factor:       unary (("*" | "/" | "%") unary)*
//	unary:        ("!" | "not" | "-") unary | postfix
//	postfix:      primary ("." ident | "?." ident | "(" args ")")*
//	primary:      literal | ident | "(" expr ")" | array | object

// parseExpression parses a full expression. On malformed input it emits
// a diagnostic and returns a best-effort node (possibly nil).
func (p *Parser) parseExpression() ast.Expr {
	return p.parseConditional()
}

func (p *Parser) parseConditional() ast.Expr {
	cond := p.parseOr()
	if !p.at(QUESTION) {
		return cond
	}
	pos := p.pos2(p.cur())
	p.advance()
	then := p.parseExpression()
	p.expect(COLON, "':' in conditional expression")
	els := p.parseExpression()
	return &ast.Conditional{Cond: cond, Then: then, Else: els, Pos: pos}
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.at(OR) || p.at(OROR) {
		pos := p.pos2(p.cur())
		p.advance()
		right := p.parseAnd()
		left = &ast.Binary{Op: "or", Left: left, Right: right, Pos: pos}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.at(AND) || p.at(ANDAND) {
		pos := p.pos2(p.cur())
		p.advance()
		right := p.parseEquality()
		left = &ast.Binary{Op: "and", Left: left, Right: right, Pos: pos}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	for {
		var op string
		switch p.cur().Type {
		case EQ:
			op = "=="
		case NEQ:
			op = "!="
		case IS:
			op = "is"
		default:
			return left
		}
		pos := p.pos2(p.cur())
		p.advance()
		right := p.parseComparison()
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseTerm()
	for {
		var op string
		switch p.cur().Type {
		case LT:
			op = "<"
		case LTE:
			op = "<="
		case GT:
			op = ">"
		case GTE:
			op = ">="
		case IN:
			op = "in"
		case CONTAINS:
			op = "contains"
		default:
			return left
		}
		pos := p.pos2(p.cur())
		p.advance()
		right := p.parseTerm()
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}
}

func (p *Parser) parseTerm() ast.Expr {
	left := p.parseFactor()
	for p.at(PLUS) || p.at(MINUS) {
		op := "+"
		if p.at(MINUS) {
			op = "-"
		}
		pos := p.pos2(p.cur())
		p.advance()
		right := p.parseFactor()
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}
	return left
}

func (p *Parser) parseFactor() ast.Expr {
	left := p.parseUnary()
	for {
		var op string
		switch p.cur().Type {
		case STAR:
			op = "*"
		case SLASH:
			op = "/"
		case PERCENT:
			op = "%"
		default:
			return left
		}
		pos := p.pos2(p.cur())
		p.advance()
		right := p.parseUnary()
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur().Type {
	case BANG, NOT:
		pos := p.pos2(p.cur())
		p.advance()
		return &ast.Unary{Op: "not", Operand: p.parseUnary(), Pos: pos}
	case MINUS:
		pos := p.pos2(p.cur())
		p.advance()
		return &ast.Unary{Op: "-", Operand: p.parseUnary(), Pos: pos}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.cur().Type {
		case DOT, QDOT:
			optional := p.at(QDOT)
			pos := p.pos2(p.cur())
			p.advance()
			tok := p.cur()
			// Member names may collide with keywords (order.status is
			// fine even though `is` is one), so accept any word token.
			if tok.Type != IDENT && !tok.IsKeyword() {
				p.errorf("expected property name after member access")
				return expr
			}
			p.advance()
			expr = &ast.Member{Object: expr, Property: tok.Lexeme, Optional: optional, Pos: pos}
		case LPAREN:
			pos := p.pos2(p.cur())
			p.advance()
			var args []ast.Expr
			for !p.at(RPAREN) && !p.at(EOF) {
				args = append(args, p.parseExpression())
				if p.at(COMMA) {
					p.advance()
				} else {
					break
				}
			}
			p.expect(RPAREN, "closing paren of call")
			expr = &ast.Call{Callee: expr, Args: args, Pos: pos}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur()
	pos := p.pos2(tok)
	switch tok.Type {
	case NUMBER:
		p.advance()
		f, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.diags = append(p.diags, ir.Errorf(tok.Line, tok.Column, "invalid number literal %q", tok.Lexeme))
			return &ast.Literal{Value: float64(0), Pos: pos}
		}
		return &ast.Literal{Value: f, Pos: pos}
	case STRING:
		p.advance()
		return &ast.Literal{Value: tok.Lexeme, Pos: pos}
	case TRUE:
		p.advance()
		return &ast.Literal{Value: true, Pos: pos}
	case FALSE:
		p.advance()
		return &ast.Literal{Value: false, Pos: pos}
	case NULL:
		p.advance()
		return &ast.Literal{Value: nil, Pos: pos}
	case IDENT:
		p.advance()
		return &ast.Ident{Name: tok.Lexeme, Pos: pos}
	case LPAREN:
		p.advance()
		expr := p.parseExpression()
		p.expect(RPAREN, "closing paren")
		return expr
	case LBRACKET:
		p.advance()
		arr := &ast.ArrayLit{Pos: pos}
		for !p.at(RBRACKET) && !p.at(EOF) {
			arr.Elems = append(arr.Elems, p.parseExpression())
			if p.at(COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(RBRACKET, "closing bracket of array literal")
		return arr
	case LBRACE:
		p.advance()
		obj := &ast.ObjectLit{Pos: pos}
		for !p.at(RBRACE) && !p.at(EOF) {
			keyTok := p.cur()
			if keyTok.Type != IDENT && keyTok.Type != STRING && !keyTok.IsKeyword() {
				p.errorf("expected object key, got %q", keyTok.Lexeme)
				break
			}
			p.advance()
			var value ast.Expr
			if p.at(COLON) {
				p.advance()
				value = p.parseExpression()
			} else {
				// Shorthand {name} binds the identifier of the same name.
				value = &ast.Ident{Name: keyTok.Lexeme, Pos: p.pos2(keyTok)}
			}
			obj.Props = append(obj.Props, ast.ObjectProp{Key: keyTok.Lexeme, Value: value})
			if p.at(COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(RBRACE, "closing brace of object literal")
		return obj
	default:
		p.errorf("expected expression, got %q", tok.Lexeme)
		p.advance()
		return &ast.Literal{Value: nil, Pos: pos}
	}
}
