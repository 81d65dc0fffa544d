package core

// ScannerTokenType classifies a highlighting token produced by the scanner.
type ScannerTokenType uint8

// Highlighting token types.
const (
	TokenNone ScannerTokenType = iota
	TokenKeyword
	TokenIdentifier
	TokenOperator
	TokenLiteralInteger
	TokenLiteralFloat
	TokenLiteralString
	TokenLiteralHex
	TokenLiteralBinary
	TokenLiteralBoolean
	TokenComment
	TokenDot
	TokenDotTrailing
)

var tokenTypeNames = [...]string{
	TokenNone:           "NONE",
	TokenKeyword:        "KEYWORD",
	TokenIdentifier:     "IDENTIFIER",
	TokenOperator:       "OPERATOR",
	TokenLiteralInteger: "LITERAL_INTEGER",
	TokenLiteralFloat:   "LITERAL_FLOAT",
	TokenLiteralString:  "LITERAL_STRING",
	TokenLiteralHex:     "LITERAL_HEX",
	TokenLiteralBinary:  "LITERAL_BINARY",
	TokenLiteralBoolean: "LITERAL_BOOLEAN",
	TokenComment:        "COMMENT",
	TokenDot:            "DOT",
	TokenDotTrailing:    "DOT_TRAILING",
}

func (t ScannerTokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "UNKNOWN"
}

// Tokens is the columnar highlighting output of a scan.
// Breaks holds the indices of tokens that start after a line break.
type Tokens struct {
	Offsets []uint32
	Lengths []uint32
	Types   []ScannerTokenType
	Breaks  []uint32
}

// Len returns the number of tokens.
func (t *Tokens) Len() int {
	return len(t.Offsets)
}
