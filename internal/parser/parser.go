package parser

import (
	"github.com/angriff36/manifest/internal/ast"
	"github.com/angriff36/manifest/internal/ir"
)

// Parser turns manifest source into an AST plus diagnostics.
//
// The parser never fails hard on malformed input: each problem is
// recorded as an error diagnostic and parsing resumes at the next
// declaration boundary, so a single pass reports every error in a file.
type Parser struct {
	tokens []Token
	pos    int
	diags  []ir.Diagnostic
}

// Parse tokenizes and parses manifest source. The returned program is
// never nil; when diagnostics contain errors it holds whatever was
// recoverable.
func Parse(source string) (*ast.Program, []ir.Diagnostic) {
	tokens, lexDiags := Scan(source)
	p := &Parser{tokens: tokens, diags: lexDiags}
	program := p.parseProgram()
	return program, p.diags
}

func (p *Parser) parseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.at(EOF) {
		switch p.cur().Type {
		case MODULE:
			if m := p.parseModule(); m != nil {
				program.Modules = append(program.Modules, m)
			}
		case ENTITY:
			if e := p.parseEntity(); e != nil {
				program.Entities = append(program.Entities, e)
			}
		case COMMAND:
			if c := p.parseCommand(""); c != nil {
				program.Commands = append(program.Commands, c)
			}
		case CONSTRAINT:
			if c := p.parseConstraintDef(); c != nil {
				program.Constraints = append(program.Constraints, c)
			}
		case POLICY:
			if pol := p.parsePolicy(""); pol != nil {
				program.Policies = append(program.Policies, pol)
			}
		case EVENT:
			if ev := p.parseEvent(); ev != nil {
				program.Events = append(program.Events, ev)
			}
		case SEMI:
			p.advance()
		default:
			p.errorf("unexpected %q at top level", p.cur().Lexeme)
			p.advance()
			p.syncTo(declStart)
		}
	}
	return program
}

// declStart is the recovery set: token types that begin a declaration.
var declStart = map[TokenType]bool{
	MODULE:     true,
	ENTITY:     true,
	COMMAND:    true,
	CONSTRAINT: true,
	POLICY:     true,
	EVENT:      true,
	PROPERTY:   true,
	RBRACE:     true,
	EOF:        true,
}

func (p *Parser) parseModule() *ast.Module {
	pos := p.pos2(p.cur())
	p.advance() // module
	name, ok := p.declarationName("module")
	if !ok {
		p.syncTo(declStart)
		return nil
	}
	m := &ast.Module{Name: name, Pos: pos}
	if !p.expect(LBRACE, "module body") {
		return m
	}
	for !p.at(RBRACE) && !p.at(EOF) {
		switch p.cur().Type {
		case ENTITY:
			if e := p.parseEntity(); e != nil {
				m.Entities = append(m.Entities, e)
			}
		case COMMAND:
			if c := p.parseCommand(""); c != nil {
				m.Commands = append(m.Commands, c)
			}
		case CONSTRAINT:
			if c := p.parseConstraintDef(); c != nil {
				m.Constraints = append(m.Constraints, c)
			}
		case POLICY:
			if pol := p.parsePolicy(""); pol != nil {
				m.Policies = append(m.Policies, pol)
			}
		case EVENT:
			if ev := p.parseEvent(); ev != nil {
				m.Events = append(m.Events, ev)
			}
		case SEMI:
			p.advance()
		default:
			p.errorf("unexpected %q in module %s", p.cur().Lexeme, m.Name)
			p.advance()
			p.syncTo(declStart)
		}
	}
	p.expect(RBRACE, "closing brace of module "+m.Name)
	return m
}

func (p *Parser) parseEntity() *ast.Entity {
	pos := p.pos2(p.cur())
	p.advance() // entity
	name, ok := p.declarationName("entity")
	e := &ast.Entity{Name: name, Pos: pos}
	if !ok {
		// Reserved or missing name: keep a placeholder entity so the
		// rest of the block still parses and reports its own errors.
		e.Name = "_invalid"
	}
	if !p.expect(LBRACE, "entity body") {
		return e
	}
	for !p.at(RBRACE) && !p.at(EOF) {
		switch p.cur().Type {
		case PROPERTY:
			if prop := p.parseProperty(); prop != nil {
				e.Properties = append(e.Properties, prop)
			}
		case COMMAND:
			if c := p.parseCommand(e.Name); c != nil {
				e.Commands = append(e.Commands, c)
			}
		case CONSTRAINT:
			if c := p.parseConstraintDef(); c != nil {
				e.Constraints = append(e.Constraints, c)
			}
		case POLICY:
			if pol := p.parsePolicy(e.Name); pol != nil {
				e.Policies = append(e.Policies, pol)
			}
		case STORE:
			p.advance()
			if p.at(IDENT) {
				e.Store = p.cur().Lexeme
				p.advance()
			} else {
				p.errorf("expected store target after 'store'")
			}
		case SEMI:
			p.advance()
		default:
			p.errorf("unexpected %q in entity %s", p.cur().Lexeme, e.Name)
			p.advance()
			p.syncTo(declStart)
		}
	}
	e.End = p.pos2(p.cur())
	p.expect(RBRACE, "closing brace of entity "+e.Name)
	return e
}

func (p *Parser) parseProperty() *ast.Property {
	pos := p.pos2(p.cur())
	p.advance() // property

	prop := &ast.Property{Pos: pos}

	// Modifiers: identifiers from the modifier set followed by another
	// identifier. `property required id: string` vs `property id: string`.
	for p.at(IDENT) && isModifier(p.cur().Lexeme) && p.peek().Type == IDENT {
		prop.Modifiers = append(prop.Modifiers, p.cur().Lexeme)
		p.advance()
	}

	name, ok := p.declarationName("property")
	if !ok {
		p.syncTo(declStart)
		return nil
	}
	prop.Name = name

	if !p.expect(COLON, "property type") {
		return prop
	}
	prop.Type = p.parseType()

	if p.at(ASSIGN) {
		p.advance()
		prop.Default = p.parseExpression()
	}
	return prop
}

var propertyModifiers = map[string]bool{
	"required": true,
	"optional": true,
	"unique":   true,
	"indexed":  true,
	"readonly": true,
	"private":  true,
}

func isModifier(word string) bool {
	return propertyModifiers[word]
}

func (p *Parser) parseType() ast.Type {
	var t ast.Type
	if !p.at(IDENT) {
		p.errorf("expected type name, got %q", p.cur().Lexeme)
		return t
	}
	t.Name = p.cur().Lexeme
	p.advance()
	if p.at(LT) {
		p.advance()
		if p.at(IDENT) {
			t.Generic = p.cur().Lexeme
			p.advance()
		} else {
			p.errorf("expected type parameter, got %q", p.cur().Lexeme)
		}
		p.expect(GT, "closing > of generic type")
	}
	if p.at(QUESTION) {
		t.Nullable = true
		p.advance()
	}
	return t
}

func (p *Parser) parseCommand(entity string) *ast.Command {
	pos := p.pos2(p.cur())
	p.advance() // command
	name, ok := p.declarationName("command")
	cmd := &ast.Command{Name: name, Entity: entity, Pos: pos}
	if !ok {
		cmd.Name = "_invalid"
	}

	if p.at(LPAREN) {
		p.advance()
		for !p.at(RPAREN) && !p.at(EOF) {
			param := p.parseParameter()
			if param != nil {
				cmd.Parameters = append(cmd.Parameters, param)
			}
			if p.at(COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(RPAREN, "closing paren of parameter list")
	}

	if p.at(RETURNS) {
		p.advance()
		rt := p.parseType()
		cmd.Returns = &rt
	}

	switch {
	case p.at(ARROW):
		p.advance()
		p.parseCommandStatement(cmd)
	case p.at(LBRACE):
		p.advance()
		for !p.at(RBRACE) && !p.at(EOF) {
			p.parseCommandStatement(cmd)
		}
		p.expect(RBRACE, "closing brace of command "+cmd.Name)
	default:
		p.errorf("expected command body for %s", cmd.Name)
	}
	return cmd
}

func (p *Parser) parseParameter() *ast.Parameter {
	param := &ast.Parameter{Required: true, Pos: p.pos2(p.cur())}
	if p.at(IDENT) && p.cur().Lexeme == "optional" && p.peek().Type == IDENT {
		param.Required = false
		p.advance()
	}
	if !p.at(IDENT) {
		p.errorf("expected parameter name, got %q", p.cur().Lexeme)
		p.syncTo(map[TokenType]bool{COMMA: true, RPAREN: true, EOF: true})
		return nil
	}
	param.Name = p.cur().Lexeme
	p.advance()
	if p.expect(COLON, "parameter type") {
		param.Type = p.parseType()
	}
	if p.at(ASSIGN) {
		p.advance()
		param.Default = p.parseExpression()
	}
	return param
}

func (p *Parser) parseCommandStatement(cmd *ast.Command) {
	switch p.cur().Type {
	case WHEN, GUARD:
		p.advance()
		if expr := p.parseExpression(); expr != nil {
			cmd.Guards = append(cmd.Guards, expr)
		}
	case CONSTRAINT:
		if ref := p.parseConstraintRef(); ref != nil {
			cmd.Constraints = append(cmd.Constraints, ref)
		}
	case MUTATE:
		pos := p.pos2(p.cur())
		p.advance()
		target := ""
		if p.at(IDENT) {
			target = p.cur().Lexeme
			p.advance()
		} else {
			p.errorf("expected property name after 'mutate'")
		}
		p.expect(ASSIGN, "mutate assignment")
		expr := p.parseExpression()
		cmd.Actions = append(cmd.Actions, &ast.Action{Kind: "mutate", Target: target, Expr: expr, Pos: pos})
	case COMPUTE:
		pos := p.pos2(p.cur())
		p.advance()
		target := ""
		if p.at(IDENT) && p.peek().Type == ASSIGN {
			target = p.cur().Lexeme
			p.advance()
			p.advance()
		}
		expr := p.parseExpression()
		cmd.Actions = append(cmd.Actions, &ast.Action{Kind: "compute", Target: target, Expr: expr, Pos: pos})
	case EMITS, EMIT:
		p.advance()
		if p.at(IDENT) {
			cmd.Emits = append(cmd.Emits, p.cur().Lexeme)
			p.advance()
		} else {
			p.errorf("expected event name after 'emits'")
		}
	case SEMI:
		p.advance()
	default:
		p.errorf("unexpected %q in command %s", p.cur().Lexeme, cmd.Name)
		p.advance()
		p.syncTo(commandSync)
	}
}

var commandSync = map[TokenType]bool{
	WHEN: true, GUARD: true, CONSTRAINT: true, MUTATE: true,
	COMPUTE: true, EMITS: true, EMIT: true, RBRACE: true, EOF: true,
}

// parseConstraintRef parses a constraint entry inside a command body:
//
//	constraint <name> [:severity] [severity=<sev>] [[:] <expr>] ["message"]
//
// An entry with no expression references a named entity- or file-level
// constraint; resolution happens in the compiler.
func (p *Parser) parseConstraintRef() *ast.ConstraintRef {
	pos := p.pos2(p.cur())
	p.advance() // constraint
	if !p.at(IDENT) {
		p.errorf("expected constraint name")
		p.syncTo(commandSync)
		return nil
	}
	ref := &ast.ConstraintRef{Name: p.cur().Lexeme, Pos: pos}
	p.advance()

	sev, msg, expr := p.parseConstraintTail()
	ref.Severity = sev
	ref.Message = msg
	ref.Expr = expr
	return ref
}

// parseConstraintDef parses a named constraint definition at entity,
// module or file level. Shares the tail grammar with command entries.
func (p *Parser) parseConstraintDef() *ast.Constraint {
	pos := p.pos2(p.cur())
	p.advance() // constraint
	if !p.at(IDENT) {
		p.errorf("expected constraint name")
		p.syncTo(declStart)
		return nil
	}
	def := &ast.Constraint{Name: p.cur().Lexeme, Pos: pos}
	p.advance()

	sev, msg, expr := p.parseConstraintTail()
	if sev == "" {
		sev = "block"
	}
	def.Severity = sev
	def.Message = msg
	def.Expr = expr
	return def
}

// parseConstraintTail handles everything after a constraint's name.
func (p *Parser) parseConstraintTail() (severity, message string, expr ast.Expr) {
	// `:block` / `:warn` severity shorthand, or `: <expr>`.
	if p.at(COLON) {
		if sev, ok := p.severityAt(p.peek()); ok {
			p.advance()
			p.advance()
			severity = sev
		} else {
			p.advance() // colon introducing the expression
		}
	}

	// `severity=block` long form.
	if p.at(IDENT) && p.cur().Lexeme == "severity" && p.peek().Type == ASSIGN {
		p.advance()
		p.advance()
		if sev, ok := p.severityAt(p.cur()); ok {
			severity = sev
			p.advance()
		} else {
			p.errorf("invalid constraint severity %q (want block or warn)", p.cur().Lexeme)
			p.advance()
		}
	}

	// Optional colon between severity and expression.
	if p.at(COLON) {
		p.advance()
	}

	// Optional expression. A bare trailing string is the message, not an
	// expression, so strings only count as expression starts when an
	// operator follows.
	if p.startsExpression() {
		expr = p.parseExpression()
	}

	if p.at(STRING) {
		message = p.cur().Lexeme
		p.advance()
	}
	return severity, message, expr
}

// severityAt resolves a severity lexeme and records a warning when the
// legacy `ok` alias is used, since it is kept only for old manifests.
func (p *Parser) severityAt(tok Token) (string, bool) {
	sev, ok := severityLexeme(tok)
	if ok && tok.Lexeme == "ok" {
		p.diags = append(p.diags, ir.Warnf(tok.Line, tok.Column,
			"constraint severity %q is a legacy alias for %q", "ok", "warn"))
	}
	return sev, ok
}

func severityLexeme(tok Token) (string, bool) {
	if tok.Type != IDENT {
		return "", false
	}
	switch tok.Lexeme {
	case "block", "warn":
		return tok.Lexeme, true
	case "ok":
		// Legacy alias: `ok` severity rules never block.
		return "warn", true
	}
	return "", false
}

// startsExpression reports whether the current token can begin a
// constraint expression, treating a lone string (message-only entry) as
// not-an-expression.
func (p *Parser) startsExpression() bool {
	switch p.cur().Type {
	case IDENT, NUMBER, TRUE, FALSE, NULL, LPAREN, LBRACKET, LBRACE, BANG, NOT, MINUS:
		return true
	case STRING:
		return isBinaryOp(p.peek().Type)
	default:
		return false
	}
}

func isBinaryOp(t TokenType) bool {
	switch t {
	case PLUS, MINUS, STAR, SLASH, PERCENT, EQ, NEQ, LT, LTE, GT, GTE,
		ANDAND, OROR, AND, OR, IN, CONTAINS, IS:
		return true
	}
	return false
}

var policyActions = map[string]bool{
	"read":    true,
	"write":   true,
	"delete":  true,
	"execute": true,
	"all":     true,
}

// parsePolicy parses `policy name [action]: [action] expr ["message"]`.
// Both action placements appear in existing manifests.
func (p *Parser) parsePolicy(entity string) *ast.Policy {
	pos := p.pos2(p.cur())
	p.advance() // policy
	if !p.at(IDENT) {
		p.errorf("expected policy name")
		p.syncTo(declStart)
		return nil
	}
	pol := &ast.Policy{Name: p.cur().Lexeme, Action: "all", Entity: entity, Pos: pos}
	p.advance()

	if p.at(IDENT) && policyActions[p.cur().Lexeme] {
		pol.Action = p.cur().Lexeme
		p.advance()
	}

	if !p.expect(COLON, "policy expression") {
		return pol
	}

	// `policy name: write expr` places the action after the colon.
	if p.at(IDENT) && policyActions[p.cur().Lexeme] && p.startsExpressionAfter(1) {
		pol.Action = p.cur().Lexeme
		p.advance()
	}

	pol.Expr = p.parseExpression()
	if p.at(STRING) {
		pol.Message = p.cur().Lexeme
		p.advance()
	}
	return pol
}

// startsExpressionAfter reports whether the token at offset n begins an
// expression, used to disambiguate a policy action word from an
// expression that happens to start with the same identifier.
func (p *Parser) startsExpressionAfter(n int) bool {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return false
	}
	switch p.tokens[idx].Type {
	case IDENT, NUMBER, STRING, TRUE, FALSE, NULL, LPAREN, LBRACKET, BANG, NOT, MINUS:
		return true
	}
	return false
}

func (p *Parser) parseEvent() *ast.Event {
	pos := p.pos2(p.cur())
	p.advance() // event
	if !p.at(IDENT) {
		p.errorf("expected event name")
		p.syncTo(declStart)
		return nil
	}
	ev := &ast.Event{Name: p.cur().Lexeme, Pos: pos}
	p.advance()
	ev.Channel = ev.Name

	if !p.at(COLON) {
		return ev
	}
	p.advance()

	switch p.cur().Type {
	case STRING:
		ev.Channel = p.cur().Lexeme
		p.advance()
	case LBRACE:
		p.advance()
		for !p.at(RBRACE) && !p.at(EOF) {
			if p.at(SEMI) || p.at(COMMA) {
				p.advance()
				continue
			}
			if !p.at(IDENT) {
				p.errorf("expected event field name, got %q", p.cur().Lexeme)
				p.advance()
				continue
			}
			field := &ast.EventField{Name: p.cur().Lexeme}
			p.advance()
			if p.expect(COLON, "event field type") {
				field.Type = p.parseType()
			}
			ev.Fields = append(ev.Fields, field)
		}
		p.expect(RBRACE, "closing brace of event "+ev.Name)
	case IDENT:
		// Simple type payload: `event LoggedIn: string`.
		ev.Fields = append(ev.Fields, &ast.EventField{Name: "payload", Type: p.parseType()})
	default:
		p.errorf("expected event payload after ':'")
	}
	return ev
}

// declarationName consumes a declaration name token, rejecting reserved
// words with an error diagnostic. Returns the name and whether it was
// acceptable.
func (p *Parser) declarationName(kind string) (string, bool) {
	tok := p.cur()
	if tok.Type == IDENT {
		if IsReserved(tok.Lexeme) {
			p.diags = append(p.diags, ir.Errorf(tok.Line, tok.Column,
				"Reserved word %q cannot be used as a %s name", tok.Lexeme, kind))
			p.advance()
			return tok.Lexeme, false
		}
		p.advance()
		return tok.Lexeme, true
	}
	if tok.IsKeyword() {
		p.diags = append(p.diags, ir.Errorf(tok.Line, tok.Column,
			"Reserved word %q cannot be used as a %s name", tok.Lexeme, kind))
		p.advance()
		return tok.Lexeme, false
	}
	p.errorf("expected %s name, got %q", kind, tok.Lexeme)
	return "", false
}

// ---- token stream helpers ----

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) at(t TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) expect(t TokenType, what string) bool {
	if p.at(t) {
		p.advance()
		return true
	}
	p.errorf("expected %s, got %q", what, p.cur().Lexeme)
	return false
}

func (p *Parser) errorf(format string, args ...any) {
	tok := p.cur()
	p.diags = append(p.diags, ir.Errorf(tok.Line, tok.Column, format, args...))
}

func (p *Parser) syncTo(set map[TokenType]bool) {
	for !p.at(EOF) && !set[p.cur().Type] {
		p.advance()
	}
}

func (p *Parser) pos2(tok Token) ast.Position {
	return ast.Position{Line: tok.Line, Column: tok.Column}
}
