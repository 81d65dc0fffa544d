package scanner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/rope"
	"github.com/leapstack-labs/dashql/pkg/token"
)

func setupTestScan(t *testing.T, text string) *ScannedScript {
	t.Helper()
	scanned, err := Scan(text, 1)
	require.NoError(t, err)
	return scanned
}

func symbolTypes(s *ScannedScript) []token.TokenType {
	out := make([]token.TokenType, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		out = append(out, sym.Type)
	}
	return out
}

func TestInsertChars(t *testing.T) {
	r := rope.New("")
	steps := []struct {
		c       rune
		offsets []uint32
		lengths []uint32
		types   []core.ScannerTokenType
		breaks  []uint32
	}{
		{'s', []uint32{0}, []uint32{1}, []core.ScannerTokenType{core.TokenIdentifier}, []uint32{}},
		{'e', []uint32{0}, []uint32{2}, []core.ScannerTokenType{core.TokenIdentifier}, []uint32{}},
		{'l', []uint32{0}, []uint32{3}, []core.ScannerTokenType{core.TokenIdentifier}, []uint32{}},
		{'e', []uint32{0}, []uint32{4}, []core.ScannerTokenType{core.TokenIdentifier}, []uint32{}},
		{'c', []uint32{0}, []uint32{5}, []core.ScannerTokenType{core.TokenIdentifier}, []uint32{}},
		{'t', []uint32{0}, []uint32{6}, []core.ScannerTokenType{core.TokenKeyword}, []uint32{}},
		{'\n', []uint32{0}, []uint32{6}, []core.ScannerTokenType{core.TokenKeyword}, []uint32{1}},
		{'1', []uint32{0, 7}, []uint32{6, 1}, []core.ScannerTokenType{core.TokenKeyword, core.TokenLiteralInteger}, []uint32{1}},
	}
	for i, step := range steps {
		r.InsertRuneAt(i, step.c)
		scanned := setupTestScan(t, r.String())
		tokens := scanned.Tokens()
		assert.Equal(t, step.offsets, tokens.Offsets, "step %d", i)
		assert.Equal(t, step.lengths, tokens.Lengths, "step %d", i)
		assert.Equal(t, step.types, tokens.Types, "step %d", i)
		assert.Equal(t, step.breaks, tokens.Breaks, "step %d", i)
	}
}

func TestFindSymbol(t *testing.T) {
	type lookup struct {
		offset   int
		symbol   uint32
		relative RelativePosition
	}
	tests := []struct {
		name   string
		text   string
		types  []core.ScannerTokenType
		lookups []lookup
	}{
		{
			name:   "empty",
			text:   "",
			types:  []core.ScannerTokenType{},
			lookups: []lookup{{0, 0, NewSymbolBefore}},
		},
		{
			name:   "only space",
			text:   "    ",
			types:  []core.ScannerTokenType{},
			lookups: []lookup{{0, 0, NewSymbolBefore}},
		},
		{
			name:  "select 1",
			text:  "select 1",
			types: []core.ScannerTokenType{core.TokenKeyword, core.TokenLiteralInteger},
			lookups: []lookup{
				{0, 0, BeginOfSymbol}, {1, 0, MidOfSymbol}, {5, 0, MidOfSymbol},
				{6, 0, EndOfSymbol}, {7, 1, BeginOfSymbol}, {8, 1, EndOfSymbol},
				{9, 1, EndOfSymbol}, {10, 1, EndOfSymbol}, {100, 1, EndOfSymbol},
			},
		},
		{
			name: "select a from A where b = 1",
			text: "select a from A where b = 1",
			types: []core.ScannerTokenType{
				core.TokenKeyword, core.TokenIdentifier, core.TokenKeyword, core.TokenIdentifier,
				core.TokenKeyword, core.TokenIdentifier, core.TokenOperator, core.TokenLiteralInteger,
			},
			lookups: []lookup{
				{0, 0, BeginOfSymbol}, {3, 0, MidOfSymbol}, {6, 0, EndOfSymbol},
				{7, 1, BeginOfSymbol}, {8, 1, EndOfSymbol},
				{9, 2, BeginOfSymbol}, {10, 2, MidOfSymbol}, {13, 2, EndOfSymbol},
				{14, 3, BeginOfSymbol}, {15, 3, EndOfSymbol},
				{16, 4, BeginOfSymbol}, {20, 4, MidOfSymbol}, {21, 4, EndOfSymbol},
				{22, 5, BeginOfSymbol}, {23, 5, EndOfSymbol},
				{24, 6, BeginOfSymbol}, {25, 6, EndOfSymbol},
				{26, 7, BeginOfSymbol}, {27, 7, EndOfSymbol},
				{28, 7, EndOfSymbol}, {30, 7, EndOfSymbol}, {100, 7, EndOfSymbol},
			},
		},
		{
			name:   "whitespace between symbols",
			text:   "select  1",
			types:  []core.ScannerTokenType{core.TokenKeyword, core.TokenLiteralInteger},
			lookups: []lookup{{7, 0, NewSymbolAfter}, {8, 1, BeginOfSymbol}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanned := setupTestScan(t, tt.text)
			tokens := scanned.Tokens()
			assert.Equal(t, tt.types, tokens.Types)
			for _, p := range tt.lookups {
				loc := scanned.FindSymbol(p.offset)
				assert.Equal(t, p.symbol, loc.SymbolID, "offset %d", p.offset)
				assert.Equal(t, p.relative, loc.Relative, "offset %d", p.offset)
			}
		})
	}
}

func TestFindSymbolPreviousAndEOF(t *testing.T) {
	scanned := setupTestScan(t, "select a")
	first := scanned.FindSymbol(0)
	assert.False(t, first.HasPrevious)
	assert.False(t, first.AtEOF)

	last := scanned.FindSymbol(8)
	require.True(t, last.HasPrevious)
	assert.Equal(t, token.SELECT, last.Previous.Type)
	assert.True(t, last.AtEOF)

	empty := setupTestScan(t, "")
	assert.True(t, empty.FindSymbol(0).AtEOF)
}

func TestFindSymbolInterleaved(t *testing.T) {
	var sb strings.Builder
	n := 2048
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d ", i&7)
	}
	scanned := setupTestScan(t, sb.String())
	for i := 0; i < n; i++ {
		require.Equal(t, uint32(i), scanned.FindSymbol(i*2).SymbolID)
		require.Equal(t, uint32(i), scanned.FindSymbol(i*2+1).SymbolID)
	}
}

func TestTrailingComments(t *testing.T) {
	scanned := setupTestScan(t, "\n        select 1\n        --\n    ")
	tokens := scanned.Tokens()
	require.Len(t, tokens.Types, 3)
	assert.Equal(t, core.TokenComment, tokens.Types[2])
	assert.Equal(t, []uint32{0, 2, 3}, tokens.Breaks)
}

func TestTokensAreMonotonic(t *testing.T) {
	texts := []string{
		"select a, b /* c */ from t -- x\n where a.b = 'x' and c.",
		"create table foo (a integer primary key, b varchar(10));",
		"with x as (select 1) select * from x union all select 2",
	}
	for _, text := range texts {
		tokens := setupTestScan(t, text).Tokens()
		for i := 1; i < tokens.Len(); i++ {
			prevEnd := tokens.Offsets[i-1] + tokens.Lengths[i-1]
			assert.LessOrEqual(t, prevEnd, tokens.Offsets[i], "%q token %d", text, i)
		}
	}
}

func TestIncrementalEquivalence(t *testing.T) {
	text := "select c_name, sum(o_totalprice) from customer c\njoin orders o on c.c_custkey = o.o_custkey -- done\ngroup by 1"
	r := rope.NewWithPageSize("", 16)
	for i, c := range text {
		r.InsertRuneAt(i, c)
	}
	incremental := setupTestScan(t, r.String()).Tokens()
	full := setupTestScan(t, text).Tokens()
	assert.Equal(t, full, incremental)
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		text   string
		typ    token.TokenType
		length uint32
		err    string
	}{
		{"42", token.INTEGER, 2, ""},
		{"1.5e3", token.FLOAT, 5, ""},
		{".5", token.FLOAT, 2, ""},
		{"1e", token.INTEGER, 1, ""},
		{"'it''s'", token.STRING, 7, ""},
		{"E'x'", token.STRING, 4, ""},
		{"x'ff'", token.HEX, 5, ""},
		{"0x1F", token.HEX, 4, ""},
		{"b'0101'", token.BINARY, 7, ""},
		{"0b101", token.BINARY, 5, ""},
		{"'abc", token.STRING, 4, "unterminated string literal"},
		{"x'zz'", token.HEX, 5, "invalid hex literal"},
		{"0b12", token.BINARY, 4, "invalid binary literal"},
		{"0x", token.HEX, 2, "invalid hex literal"},
		{`"abc`, token.IDENT, 4, "unterminated quoted identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			scanned := setupTestScan(t, tt.text)
			require.NotEmpty(t, scanned.Symbols)
			assert.Equal(t, tt.typ, scanned.Symbols[0].Type)
			assert.Equal(t, tt.length, scanned.Symbols[0].Loc.Length)
			if tt.err == "" {
				assert.Empty(t, scanned.Errors)
			} else {
				require.Len(t, scanned.Errors, 1)
				assert.Equal(t, tt.err, scanned.Errors[0].Message)
			}
		})
	}
}

func TestCommentsAndErrors(t *testing.T) {
	scanned := setupTestScan(t, "select /* a /* nested */ b */ 1 #")
	require.Len(t, scanned.Comments, 1)
	assert.Equal(t, "/* a /* nested */ b */", scanned.Comments[0].Text)
	assert.True(t, scanned.Comments[0].IsBlockComment())
	require.Len(t, scanned.Errors, 1)
	assert.Equal(t, "unexpected character", scanned.Errors[0].Message)
	assert.Equal(t, core.Loc(32, 1), scanned.Errors[0].Loc)
	assert.Equal(t, "lexer error at line 1, column 33: unexpected character", scanned.Errors[0].Error())
	assert.Equal(t, []token.TokenType{token.SELECT, token.INTEGER, token.EOF}, symbolTypes(scanned))

	unterminated := setupTestScan(t, "select 1\n/* open")
	require.Len(t, unterminated.Errors, 1)
	assert.Equal(t, 2, unterminated.Errors[0].Pos.Line)
	diags := unterminated.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "scanner", diags[0].Source)
}

func TestDots(t *testing.T) {
	tests := []struct {
		text string
		want []token.TokenType
	}{
		{"a.b", []token.TokenType{token.IDENT, token.DOT, token.IDENT, token.EOF}},
		{"a.", []token.TokenType{token.IDENT, token.DOT_TRAILING, token.EOF}},
		{"a. b", []token.TokenType{token.IDENT, token.DOT_TRAILING, token.IDENT, token.EOF}},
		{"a.*", []token.TokenType{token.IDENT, token.DOT, token.STAR, token.EOF}},
		{`a."B"`, []token.TokenType{token.IDENT, token.DOT, token.IDENT, token.EOF}},
		{"a.1", []token.TokenType{token.IDENT, token.DOT_TRAILING, token.INTEGER, token.EOF}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, symbolTypes(setupTestScan(t, tt.text)))
		})
	}
}

func TestLookaheadRewrites(t *testing.T) {
	tests := []struct {
		text string
		want token.TokenType
	}{
		{"a not between 1 and 2", token.NOT_LA},
		{"a not in (1)", token.NOT_LA},
		{"a not like 'x'", token.NOT_LA},
		{"not a", token.NOT},
		{"order by a nulls first", token.NULLS_LA},
		{"with time zone", token.WITH_LA},
		{"with x as (select 1)", token.WITH},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			scanned := setupTestScan(t, tt.text)
			var found bool
			for _, sym := range scanned.Symbols {
				if token.Base(sym.Type) == token.Base(tt.want) {
					assert.Equal(t, tt.want, sym.Type)
					found = true
				}
			}
			assert.True(t, found)
		})
	}
}

func TestNameRegistration(t *testing.T) {
	scanned := setupTestScan(t, `Select Foo, "Bar", foo from "foo"`)
	names := scanned.Names
	require.Equal(t, 2, names.Len())

	foo, ok := names.Lookup("foo")
	require.True(t, ok)
	n, _ := names.At(foo)
	assert.Equal(t, uint32(3), n.Occurrences)
	assert.Equal(t, core.Loc(7, 3), n.Loc)

	_, ok = names.Lookup("Bar")
	assert.True(t, ok)
	_, ok = names.Lookup("bar")
	assert.False(t, ok)

	assert.Equal(t, foo, scanned.Symbols[1].NameID)
	assert.Equal(t, core.NullID, scanned.Symbols[0].NameID)
}

func TestFindTokensInRange(t *testing.T) {
	tests := []struct {
		text       string
		begin, end uint32
		wantBegin  int
		wantEnd    int
	}{
		{"select 1", 0, 8, 0, 2},
		{"select 1", 3, 8, 0, 2},
		{"select 111111", 7, 9, 1, 2},
		{"select 111111", 0, 9, 0, 2},
		{"select 111111", 0, 3, 0, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s[%d,%d]", tt.text, tt.begin, tt.end), func(t *testing.T) {
			tokens := setupTestScan(t, tt.text).Tokens()
			b, e := FindTokensInRange(&tokens, tt.begin, tt.end)
			assert.Equal(t, tt.wantBegin, b)
			assert.Equal(t, tt.wantEnd, e)
		})
	}
}

func TestFindClosestToken(t *testing.T) {
	tokens := core.Tokens{Offsets: []uint32{0, 7}, Lengths: []uint32{6, 1}}
	tests := []struct {
		pos  uint32
		want int
	}{
		{0, 0},
		{3, 0},
		{4, 1},
		{5, 1},
		{7, 1},
		{100, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FindClosestToken(&tokens, tt.pos), "pos %d", tt.pos)
	}
	assert.Equal(t, -1, FindClosestToken(&core.Tokens{}, 3))
}
