package scanner

import (
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	prev    token.TokenType

	// Collected while lexing
	Comments   []token.Comment
	LineBreaks []core.Location
	Errors     []*LexError
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, prev: token.EOF}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) addError(begin int, msg string) {
	l.Errors = append(l.Errors, &LexError{
		Loc:     core.LocRange(uint32(begin), uint32(l.pos)),
		Message: msg,
	})
}

func (l *Lexer) emit(t token.TokenType, begin int, literal string) token.Token {
	l.prev = t
	return token.Token{Type: t, Literal: literal, Loc: core.LocRange(uint32(begin), uint32(l.pos))}
}

// NextToken returns the next token. At the end of input it returns EOF
// tokens located at the input length.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespaceAndComments()
		begin := l.pos
		if l.atEOF() {
			return l.emit(token.EOF, begin, "")
		}

		switch l.ch {
		case '+':
			return l.single(token.PLUS)
		case '-':
			return l.single(token.MINUS)
		case '*':
			return l.single(token.STAR)
		case '/':
			return l.single(token.SLASH)
		case '%':
			return l.single(token.PERCENT)
		case '^':
			return l.single(token.CARET)
		case '=':
			return l.single(token.EQ)
		case ',':
			return l.single(token.COMMA)
		case '(':
			return l.single(token.LPAREN)
		case ')':
			return l.single(token.RPAREN)
		case '[':
			return l.single(token.LBRACKET)
		case ']':
			return l.single(token.RBRACKET)
		case ';':
			return l.single(token.SEMICOLON)
		case '?':
			return l.single(token.QUESTION)
		case '<':
			switch l.peekChar() {
			case '=':
				return l.double(token.LE)
			case '>':
				return l.double(token.NE)
			}
			return l.single(token.LT)
		case '>':
			if l.peekChar() == '=' {
				return l.double(token.GE)
			}
			return l.single(token.GT)
		case '!':
			if l.peekChar() == '=' {
				return l.double(token.NE)
			}
		case '|':
			if l.peekChar() == '|' {
				return l.double(token.DPIPE)
			}
		case ':':
			if l.peekChar() == ':' {
				return l.double(token.TYPECAST)
			}
			return l.single(token.COLON)
		case '.':
			if isDigit(l.peekChar()) && l.prev != token.IDENT && l.prev != token.RPAREN {
				return l.readNumber()
			}
			return l.readDot()
		case '\'':
			return l.readString(begin, token.STRING)
		case '"':
			return l.readQuotedIdentifier()
		default:
			switch {
			case isIdentStart(l.ch):
				return l.readIdentifier()
			case isDigit(l.ch):
				return l.readNumber()
			}
		}

		// Unexpected character, record and skip the whole rune
		_, size := utf8.DecodeRuneInString(l.input[l.pos:])
		for range size {
			l.readChar()
		}
		l.addError(begin, "unexpected character")
	}
}

func (l *Lexer) single(t token.TokenType) token.Token {
	begin := l.pos
	l.readChar()
	return l.emit(t, begin, l.input[begin:l.pos])
}

func (l *Lexer) double(t token.TokenType) token.Token {
	begin := l.pos
	l.readChar()
	l.readChar()
	return l.emit(t, begin, l.input[begin:l.pos])
}

// readDot distinguishes a path dot from a trailing dot.
// A dot is trailing unless a name or a star follows immediately.
func (l *Lexer) readDot() token.Token {
	begin := l.pos
	next := l.peekChar()
	l.readChar()
	if isIdentStart(next) || next == '"' || next == '*' {
		return l.emit(token.DOT, begin, ".")
	}
	return l.emit(token.DOT_TRAILING, begin, ".")
}

// skipWhitespaceAndComments skips whitespace, records line breaks and collects comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for isSpace(l.ch) && !l.atEOF() {
			if l.ch == '\n' {
				l.LineBreaks = append(l.LineBreaks, core.Loc(uint32(l.pos), 1))
			}
			l.readChar()
		}

		// Collect line comment (-- ...)
		if l.ch == '-' && l.peekChar() == '-' {
			l.collectLineComment()
			continue
		}

		// Collect block comment (/* ... */)
		if l.ch == '/' && l.peekChar() == '*' {
			l.collectBlockComment()
			continue
		}

		break
	}
}

// collectLineComment collects a line comment.
func (l *Lexer) collectLineComment() {
	begin := l.pos
	for l.ch != '\n' && !l.atEOF() {
		l.readChar()
	}
	l.Comments = append(l.Comments, token.Comment{
		Kind: token.LineComment,
		Text: l.input[begin:l.pos],
		Loc:  core.LocRange(uint32(begin), uint32(l.pos)),
	})
}

// collectBlockComment collects a possibly nested block comment.
func (l *Lexer) collectBlockComment() {
	begin := l.pos
	l.readChar() // skip '/'
	l.readChar() // skip '*'

	depth := 1
	for !l.atEOF() && depth > 0 {
		switch {
		case l.ch == '*' && l.peekChar() == '/':
			depth--
			l.readChar()
			l.readChar()
		case l.ch == '/' && l.peekChar() == '*':
			depth++
			l.readChar()
			l.readChar()
		default:
			l.readChar()
		}
	}
	if depth > 0 {
		l.addError(begin, "unterminated block comment")
	}
	l.Comments = append(l.Comments, token.Comment{
		Kind: token.BlockComment,
		Text: l.input[begin:l.pos],
		Loc:  core.LocRange(uint32(begin), uint32(l.pos)),
	})
}

// readString reads a single-quoted literal starting at the quote.
// Handles doubled single quotes as escape: 'it''s' -> it's
func (l *Lexer) readString(begin int, t token.TokenType) token.Token {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.atEOF() {
			l.addError(begin, "unterminated string literal")
			break
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}

	literal := result.String()
	switch t {
	case token.HEX:
		if !isHexString(literal) {
			l.addError(begin, "invalid hex literal")
		}
	case token.BINARY:
		if !isBinaryString(literal) {
			l.addError(begin, "invalid binary literal")
		}
	}
	return l.emit(t, begin, literal)
}

// readQuotedIdentifier reads a double-quoted identifier.
// Handles doubled double quotes as escape: "col""name" -> col"name
func (l *Lexer) readQuotedIdentifier() token.Token {
	begin := l.pos
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.atEOF() {
			l.addError(begin, "unterminated quoted identifier")
			break
		}
		if l.ch == '"' {
			if l.peekChar() == '"' {
				result.WriteByte('"')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	if result.Len() == 0 {
		l.addError(begin, "zero-length quoted identifier")
	}
	return l.emit(token.IDENT, begin, result.String())
}

// readIdentifier reads an unquoted identifier or keyword.
// Literal prefixes (E'', X'', B'') switch to string scanning.
func (l *Lexer) readIdentifier() token.Token {
	begin := l.pos
	if l.peekChar() == '\'' {
		switch l.ch {
		case 'e', 'E':
			l.readChar()
			return l.readString(begin, token.STRING)
		case 'x', 'X':
			l.readChar()
			return l.readString(begin, token.HEX)
		case 'b', 'B':
			l.readChar()
			return l.readString(begin, token.BINARY)
		}
	}
	for isIdentChar(l.ch) && !l.atEOF() {
		l.readChar()
	}
	text := l.input[begin:l.pos]
	if kw := token.LookupIdent(strings.ToLower(text)); kw != token.IDENT {
		return l.emit(kw, begin, text)
	}
	return l.emit(token.IDENT, begin, text)
}

// readNumber reads a numeric literal (integer, decimal, scientific, 0x.., 0b..).
func (l *Lexer) readNumber() token.Token {
	begin := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		digits := l.pos
		for isHexDigit(l.ch) && !l.atEOF() {
			l.readChar()
		}
		if l.pos == digits {
			l.addError(begin, "invalid hex literal")
		}
		return l.emit(token.HEX, begin, l.input[begin:l.pos])
	}
	if l.ch == '0' && (l.peekChar() == 'b' || l.peekChar() == 'B') {
		l.readChar()
		l.readChar()
		digits := l.pos
		for (l.ch == '0' || l.ch == '1') && !l.atEOF() {
			l.readChar()
		}
		if l.pos == digits || isDigit(l.ch) {
			for isDigit(l.ch) && !l.atEOF() {
				l.readChar()
			}
			l.addError(begin, "invalid binary literal")
		}
		return l.emit(token.BINARY, begin, l.input[begin:l.pos])
	}

	t := token.INTEGER
	for isDigit(l.ch) && !l.atEOF() {
		l.readChar()
	}

	// Read decimal part
	if l.ch == '.' && l.peekChar() != '.' && !l.atEOF() {
		t = token.FLOAT
		l.readChar()
		for isDigit(l.ch) && !l.atEOF() {
			l.readChar()
		}
	}

	// Read exponent part (e.g., 1e10, 1E-5)
	if (l.ch == 'e' || l.ch == 'E') && !l.atEOF() {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && l.readPos+1 < len(l.input) && isDigit(l.input[l.readPos+1])) {
			t = token.FLOAT
			l.readChar() // skip 'e' or 'E'
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) && !l.atEOF() {
				l.readChar()
			}
		}
	}

	return l.emit(t, begin, l.input[begin:l.pos])
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

// isIdentStart accepts ASCII letters, underscores and any non-ASCII byte.
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isBinaryString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}

// Tokenize returns all tokens from the input including the final EOF.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return tokens
}
