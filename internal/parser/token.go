package parser

import "fmt"

// TokenType identifies a lexical token class.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	// Literals and identifiers
	IDENT
	NUMBER
	STRING

	// Punctuation
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	COLON
	SEMI
	COMMA
	DOT
	QDOT // ?.
	QUESTION
	ARROW // =>
	ASSIGN

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	EQ  // ==
	NEQ // !=
	LT
	LTE
	GT
	GTE
	ANDAND
	OROR
	BANG

	// Declaration keywords
	MODULE
	ENTITY
	PROPERTY
	COMMAND
	CONSTRAINT
	POLICY
	EVENT
	EMITS
	EMIT
	WHEN
	GUARD
	MUTATE
	COMPUTE
	RETURNS
	STORE

	// Operator keywords
	AND
	OR
	NOT
	IN
	CONTAINS
	IS

	// Literal keywords
	TRUE
	FALSE
	NULL
)

// Token is one lexical token with its source position.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%d:%d %q", t.Line, t.Column, t.Lexeme)
}

// keywords maps keyword lexemes to their token types.
var keywords = map[string]TokenType{
	"module":     MODULE,
	"entity":     ENTITY,
	"property":   PROPERTY,
	"command":    COMMAND,
	"constraint": CONSTRAINT,
	"policy":     POLICY,
	"event":      EVENT,
	"emits":      EMITS,
	"emit":       EMIT,
	"when":       WHEN,
	"guard":      GUARD,
	"mutate":     MUTATE,
	"compute":    COMPUTE,
	"returns":    RETURNS,
	"store":      STORE,
	"and":        AND,
	"or":         OR,
	"not":        NOT,
	"in":         IN,
	"contains":   CONTAINS,
	"is":         IS,
	"true":       TRUE,
	"false":      FALSE,
	"null":       NULL,
}

// IsKeyword reports whether the token is any keyword class.
func (t Token) IsKeyword() bool {
	_, ok := keywords[t.Lexeme]
	return ok && t.Type != IDENT
}
