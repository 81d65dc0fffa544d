// Package token defines the SQL symbol kinds produced by the scanner.
//
// Keywords carry a category that decides where the parser accepts them as
// plain identifiers.
package token

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// TokenType is the kind of a scanner symbol.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special symbols
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT   // identifier
	INTEGER // 123
	FLOAT   // 45.67, 1e10
	STRING  // 'hello'
	HEX     // x'ff', 0xff
	BINARY  // b'01', 0b01

	// Operators
	PLUS         // +
	MINUS        // -
	STAR         // *
	SLASH        // /
	PERCENT      // %
	CARET        // ^
	DPIPE        // ||
	EQ           // =
	NE           // != or <>
	LT           // <
	GT           // >
	LE           // <=
	GE           // >=
	DOT          // .
	DOT_TRAILING // . not followed by a name
	COMMA        // ,
	LPAREN       // (
	RPAREN       // )
	LBRACKET     // [
	RBRACKET     // ]
	SEMICOLON    // ;
	COLON        // :
	TYPECAST     // ::
	QUESTION     // ?

	// Keywords (alphabetical)
	ALL
	AND
	ANY
	AS
	ASC
	BETWEEN
	BIGINT
	BOOLEAN
	BY
	CASE
	CAST
	CHAR
	CHARACTER
	CHECK
	COLUMN
	CONSTRAINT
	CREATE
	CROSS
	CURRENT
	DATE
	DECIMAL
	DEFAULT
	DESC
	DISTINCT
	DOUBLE
	ELSE
	END
	ESCAPE
	EXCEPT
	EXISTS
	FALSE
	FILTER
	FIRST
	FLOAT_KW
	FOLLOWING
	FOREIGN
	FROM
	FULL
	GROUP
	HAVING
	IF
	ILIKE
	IN
	INNER
	INT
	INTEGER_KW
	INTERSECT
	INTERVAL
	INTO
	IS
	JOIN
	KEY
	LAST
	LATERAL
	LEFT
	LIKE
	LIMIT
	NATURAL
	NOT
	NULL
	NULLS
	NUMERIC
	OFFSET
	ON
	OR
	ORDER
	ORDINALITY
	OUTER
	OVER
	PARTITION
	PRECEDING
	PRECISION
	PRIMARY
	RANGE
	REAL
	RECURSIVE
	REFERENCES
	RIGHT
	ROW
	ROWS
	SELECT
	SET
	SIMILAR
	SMALLINT
	TABLE
	TEMP
	TEMPORARY
	TEXT
	THEN
	TIME
	TIMESTAMP
	TO
	TRUE
	UNBOUNDED
	UNION
	UNIQUE
	USING
	VARCHAR
	VARYING
	WHEN
	WHERE
	WINDOW
	WITH
	WITHIN
	WITHOUT
	ZONE

	// Lookahead rewrites of NOT, NULLS and WITH
	NOT_LA
	NULLS_LA
	WITH_LA

	firstKeyword = ALL
	lastKeyword  = ZONE
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	if t >= firstKeyword && t <= lastKeyword {
		return keywordNames[t-firstKeyword]
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:   "IDENT",
	INTEGER: "INTEGER",
	FLOAT:   "FLOAT",
	STRING:  "STRING",
	HEX:     "HEX",
	BINARY:  "BINARY",

	PLUS:         "+",
	MINUS:        "-",
	STAR:         "*",
	SLASH:        "/",
	PERCENT:      "%",
	CARET:        "^",
	DPIPE:        "||",
	EQ:           "=",
	NE:           "!=",
	LT:           "<",
	GT:           ">",
	LE:           "<=",
	GE:           ">=",
	DOT:          ".",
	DOT_TRAILING: "DOT_TRAILING",
	COMMA:        ",",
	LPAREN:       "(",
	RPAREN:       ")",
	LBRACKET:     "[",
	RBRACKET:     "]",
	SEMICOLON:    ";",
	COLON:        ":",
	TYPECAST:     "::",
	QUESTION:     "?",

	NOT_LA:   "NOT",
	NULLS_LA: "NULLS",
	WITH_LA:  "WITH",
}

// Category decides where a keyword may be used as an identifier.
type Category uint8

// Keyword categories.
const (
	Unreserved   Category = iota // usable as any name
	ColumnName                   // usable as column, table and schema names
	TypeFuncName                 // usable as function or type names
	Reserved                     // never usable as a bare name
)

func (c Category) String() string {
	switch c {
	case Unreserved:
		return "UNRESERVED"
	case ColumnName:
		return "COLUMN_NAME"
	case TypeFuncName:
		return "TYPE_FUNC_NAME"
	default:
		return "RESERVED"
	}
}

// Keyword describes one entry of the keyword table.
type Keyword struct {
	Name     string // lowercase
	Type     TokenType
	Category Category
}

var keywordNames = make([]string, lastKeyword-firstKeyword+1)

var keywordCategories = make([]Category, lastKeyword-firstKeyword+1)

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{}

var keywordList []Keyword

func init() {
	add := func(c Category, entries map[string]TokenType) {
		for name, t := range entries {
			keywords[name] = t
			keywordCategories[t-firstKeyword] = c
		}
	}
	add(Reserved, map[string]TokenType{
		"all": ALL, "and": AND, "any": ANY, "as": AS, "asc": ASC, "case": CASE,
		"cast": CAST, "check": CHECK, "column": COLUMN, "constraint": CONSTRAINT,
		"create": CREATE, "default": DEFAULT, "desc": DESC, "distinct": DISTINCT,
		"else": ELSE, "end": END, "except": EXCEPT, "false": FALSE,
		"foreign": FOREIGN, "from": FROM, "group": GROUP, "having": HAVING,
		"in": IN, "intersect": INTERSECT, "into": INTO, "lateral": LATERAL,
		"limit": LIMIT, "not": NOT, "null": NULL, "offset": OFFSET, "on": ON,
		"or": OR, "order": ORDER, "primary": PRIMARY, "references": REFERENCES,
		"select": SELECT, "table": TABLE, "then": THEN, "to": TO, "true": TRUE,
		"union": UNION, "unique": UNIQUE, "using": USING, "when": WHEN,
		"where": WHERE, "window": WINDOW, "with": WITH,
	})
	add(TypeFuncName, map[string]TokenType{
		"cross": CROSS, "full": FULL, "ilike": ILIKE, "inner": INNER, "is": IS,
		"join": JOIN, "left": LEFT, "like": LIKE, "natural": NATURAL,
		"outer": OUTER, "right": RIGHT, "similar": SIMILAR,
	})
	add(ColumnName, map[string]TokenType{
		"between": BETWEEN, "bigint": BIGINT, "boolean": BOOLEAN, "char": CHAR,
		"character": CHARACTER, "decimal": DECIMAL, "exists": EXISTS,
		"float": FLOAT_KW, "int": INT, "integer": INTEGER_KW,
		"interval": INTERVAL, "numeric": NUMERIC, "precision": PRECISION,
		"real": REAL, "smallint": SMALLINT, "time": TIME,
		"timestamp": TIMESTAMP, "varchar": VARCHAR,
	})
	add(Unreserved, map[string]TokenType{
		"by": BY, "current": CURRENT, "date": DATE, "double": DOUBLE,
		"escape": ESCAPE, "filter": FILTER, "first": FIRST,
		"following": FOLLOWING, "if": IF, "key": KEY, "last": LAST,
		"nulls": NULLS, "ordinality": ORDINALITY, "over": OVER,
		"partition": PARTITION, "preceding": PRECEDING, "range": RANGE,
		"recursive": RECURSIVE, "row": ROW, "rows": ROWS, "set": SET,
		"temp": TEMP, "temporary": TEMPORARY, "text": TEXT,
		"unbounded": UNBOUNDED, "varying": VARYING, "within": WITHIN,
		"without": WITHOUT, "zone": ZONE,
	})
	for name, t := range keywords {
		keywordNames[t-firstKeyword] = strings.ToUpper(name)
	}
	for t := firstKeyword; t <= lastKeyword; t++ {
		keywordList = append(keywordList, Keyword{
			Name:     strings.ToLower(keywordNames[t-firstKeyword]),
			Type:     t,
			Category: keywordCategories[t-firstKeyword],
		})
	}
}

// LookupIdent returns the token type for the given lowercase identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Keywords returns the keyword table ordered by token type.
func Keywords() []Keyword {
	return keywordList
}

// IsKeyword returns true if the token type is a keyword, including lookahead rewrites.
func IsKeyword(t TokenType) bool {
	return (t >= firstKeyword && t <= lastKeyword) || t == NOT_LA || t == NULLS_LA || t == WITH_LA
}

// IsOperator returns true if the token type is an operator or punctuation.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= QUESTION
}

// IsLiteral returns true for literal token types.
func IsLiteral(t TokenType) bool {
	return t >= INTEGER && t <= BINARY
}

// CategoryOf returns the category of a keyword. Non-keywords are Unreserved.
func CategoryOf(t TokenType) Category {
	switch t {
	case NOT_LA, NULLS_LA, WITH_LA:
		t = Base(t)
	}
	if t >= firstKeyword && t <= lastKeyword {
		return keywordCategories[t-firstKeyword]
	}
	return Unreserved
}

// Base maps lookahead rewrites back to their keyword.
func Base(t TokenType) TokenType {
	switch t {
	case NOT_LA:
		return NOT
	case NULLS_LA:
		return NULLS
	case WITH_LA:
		return WITH
	}
	return t
}

// Highlight maps a symbol kind to its highlighting token type.
func Highlight(t TokenType) core.ScannerTokenType {
	switch {
	case t == TRUE || t == FALSE:
		return core.TokenLiteralBoolean
	case IsKeyword(t):
		return core.TokenKeyword
	case t == IDENT:
		return core.TokenIdentifier
	case t == INTEGER:
		return core.TokenLiteralInteger
	case t == FLOAT:
		return core.TokenLiteralFloat
	case t == STRING:
		return core.TokenLiteralString
	case t == HEX:
		return core.TokenLiteralHex
	case t == BINARY:
		return core.TokenLiteralBinary
	case t == DOT:
		return core.TokenDot
	case t == DOT_TRAILING:
		return core.TokenDotTrailing
	case IsOperator(t):
		switch t {
		case COMMA, LPAREN, RPAREN, LBRACKET, RBRACKET, SEMICOLON, COLON:
			return core.TokenNone
		}
		return core.TokenOperator
	}
	return core.TokenNone
}

// Token is a scanned symbol with its location.
type Token struct {
	Type    TokenType
	Literal string
	Loc     core.Location
}
