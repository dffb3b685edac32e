package parser

import (
	"strings"
	"unicode"

	"github.com/angriff36/manifest/internal/ir"
)

// lexer tokenizes manifest source. It never fails hard: unexpected input
// becomes an ILLEGAL token plus a diagnostic, and scanning continues so
// one pass can report every lexical problem in a file.
type lexer struct {
	src    string
	pos    int
	line   int
	column int
	diags  []ir.Diagnostic
}

// Scan tokenizes the whole source, returning the token stream (always
// terminated by an EOF token) and any lexical diagnostics.
func Scan(source string) ([]Token, []ir.Diagnostic) {
	l := &lexer{src: source, line: 1, column: 1}
	var tokens []Token
	for {
		tok := l.next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, l.diags
		}
	}
}

func (l *lexer) next() Token {
	l.skipWhitespaceAndComments()
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Line: l.line, Column: l.column}
	}

	startLine, startCol := l.line, l.column
	ch := l.src[l.pos]

	switch {
	case isIdentStart(rune(ch)):
		word := l.scanIdent()
		typ := IDENT
		if kw, ok := keywords[word]; ok {
			typ = kw
		}
		return Token{Type: typ, Lexeme: word, Line: startLine, Column: startCol}

	case ch >= '0' && ch <= '9':
		num := l.scanNumber()
		return Token{Type: NUMBER, Lexeme: num, Line: startLine, Column: startCol}

	case ch == '"' || ch == '\'':
		str, ok := l.scanString(ch)
		if !ok {
			l.diags = append(l.diags, ir.Errorf(startLine, startCol, "unterminated string literal"))
			return Token{Type: ILLEGAL, Lexeme: str, Line: startLine, Column: startCol}
		}
		return Token{Type: STRING, Lexeme: str, Line: startLine, Column: startCol}
	}

	// Punctuation and operators, longest match first.
	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	if typ, ok := twoCharTokens[two]; ok {
		l.advance(2)
		return Token{Type: typ, Lexeme: two, Line: startLine, Column: startCol}
	}
	if typ, ok := oneCharTokens[ch]; ok {
		l.advance(1)
		return Token{Type: typ, Lexeme: string(ch), Line: startLine, Column: startCol}
	}

	l.diags = append(l.diags, ir.Errorf(startLine, startCol, "unexpected character %q", string(ch)))
	l.advance(1)
	return Token{Type: ILLEGAL, Lexeme: string(ch), Line: startLine, Column: startCol}
}

var twoCharTokens = map[string]TokenType{
	"==": EQ,
	"!=": NEQ,
	"<=": LTE,
	">=": GTE,
	"&&": ANDAND,
	"||": OROR,
	"=>": ARROW,
	"?.": QDOT,
}

var oneCharTokens = map[byte]TokenType{
	'{': LBRACE,
	'}': RBRACE,
	'(': LPAREN,
	')': RPAREN,
	'[': LBRACKET,
	']': RBRACKET,
	':': COLON,
	';': SEMI,
	',': COMMA,
	'.': DOT,
	'?': QUESTION,
	'=': ASSIGN,
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
	'%': PERCENT,
	'<': LT,
	'>': GT,
	'!': BANG,
}

func (l *lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance(1)
		case ch == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		case ch == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			l.advance(2)
			for l.pos < len(l.src) {
				if l.src[l.pos] == '*' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
					l.advance(2)
					break
				}
				l.advance(1)
			}
		case ch == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *lexer) scanIdent() string {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
		l.advance(1)
	}
	return l.src[start:l.pos]
}

func (l *lexer) scanNumber() string {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.advance(1)
	}
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
		l.advance(1)
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.advance(1)
		}
	}
	return l.src[start:l.pos]
}

// scanString consumes a quoted string and returns its unescaped content.
// Supported escapes: \" \' \\ \n \t.
func (l *lexer) scanString(quote byte) (string, bool) {
	l.advance(1) // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == quote {
			l.advance(1)
			return sb.String(), true
		}
		if ch == '\n' {
			return sb.String(), false
		}
		if ch == '\\' && l.pos+1 < len(l.src) {
			esc := l.src[l.pos+1]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'':
				sb.WriteByte(esc)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			l.advance(2)
			continue
		}
		sb.WriteByte(ch)
		l.advance(1)
	}
	return sb.String(), false
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// CountCommandTokens counts raw `command` keyword occurrences between
// fromLine and toLine inclusive. The compiler compares this count against
// parsed command nodes in the same entity span to detect scanner defects
// (a command block that silently produced no command entries).
func CountCommandTokens(source string, fromLine, toLine int) int {
	tokens, _ := Scan(source)
	count := 0
	for _, tok := range tokens {
		if tok.Type == COMMAND && tok.Line >= fromLine && tok.Line <= toLine {
			count++
		}
	}
	return count
}
