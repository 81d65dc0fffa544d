// Package scanner turns script text into symbols, highlighting tokens and
// an interned name registry.
//
// # Usage
//
//	scanned, err := scanner.Scan("select a from b", 1)
//	loc := scanned.FindSymbol(8)
//	tokens := scanned.Tokens()
package scanner

import (
	"time"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Symbol is a scanned symbol. NameID is set for identifiers only.
type Symbol struct {
	token.Token
	NameID uint32
}

// ScannedScript is the immutable output of a scan.
type ScannedScript struct {
	ExternalID uint32
	Text       string
	// Symbols always ends with an EOF symbol located at the text length.
	Symbols    []Symbol
	Comments   []token.Comment
	LineBreaks []core.Location
	Errors     []*LexError
	Names      *names.Registry
	Lines      token.Lines
	Duration   time.Duration
}

// Scan tokenizes text. It never fails on malformed input; lexer errors are
// recorded on the result.
func Scan(text string, externalID uint32) (*ScannedScript, error) {
	start := time.Now()
	out := &ScannedScript{
		ExternalID: externalID,
		Text:       text,
		Names:      names.NewRegistry(),
		Lines:      token.NewLines(text),
	}

	l := NewLexer(text)
	for {
		tok := l.NextToken()
		sym := Symbol{Token: tok, NameID: core.NullID}
		if tok.Type == token.IDENT {
			name := tok.Literal
			if text[tok.Loc.Offset] != '"' {
				name = names.Normalize(name)
			}
			sym.NameID = out.Names.Register(name, tok.Loc, core.NameTagNone)
		}
		out.Symbols = append(out.Symbols, sym)
		if tok.Type == token.EOF {
			break
		}
	}
	rewriteLookahead(out.Symbols)

	out.Comments = l.Comments
	out.LineBreaks = l.LineBreaks
	out.Errors = l.Errors
	for _, err := range out.Errors {
		err.Pos = out.Lines.Position(int(err.Loc.Offset))
	}
	out.Duration = time.Since(start)
	return out, nil
}

// rewriteLookahead replaces NOT, NULLS and WITH by their lookahead variants
// depending on the following symbol.
func rewriteLookahead(symbols []Symbol) {
	for i := 0; i+1 < len(symbols); i++ {
		next := symbols[i+1].Type
		switch symbols[i].Type {
		case token.NOT:
			switch next {
			case token.BETWEEN, token.IN, token.LIKE, token.ILIKE, token.SIMILAR:
				symbols[i].Type = token.NOT_LA
			}
		case token.NULLS:
			switch next {
			case token.FIRST, token.LAST:
				symbols[i].Type = token.NULLS_LA
			}
		case token.WITH:
			switch next {
			case token.TIME, token.ORDINALITY:
				symbols[i].Type = token.WITH_LA
			}
		}
	}
}

// SymbolCount returns the number of symbols excluding EOF.
func (s *ScannedScript) SymbolCount() int {
	return len(s.Symbols) - 1
}

// ReadText returns the text covered by loc.
func (s *ScannedScript) ReadText(loc core.Location) string {
	return loc.Text(s.Text)
}

// Tokens packs the highlighting tokens. Comments are interleaved with the
// symbols; Breaks holds, per line break, the index of the first token at or
// after the break.
func (s *ScannedScript) Tokens() core.Tokens {
	n := len(s.Symbols) + len(s.Comments)
	out := core.Tokens{
		Offsets: make([]uint32, 0, n),
		Lengths: make([]uint32, 0, n),
		Types:   make([]core.ScannerTokenType, 0, n),
		Breaks:  make([]uint32, 0, len(s.LineBreaks)),
	}
	push := func(loc core.Location, t core.ScannerTokenType) {
		out.Offsets = append(out.Offsets, loc.Offset)
		out.Lengths = append(out.Lengths, loc.Length)
		out.Types = append(out.Types, t)
	}

	ci := 0
	for _, sym := range s.Symbols[:len(s.Symbols)-1] {
		// Emit all comments in between
		for ci < len(s.Comments) && s.Comments[ci].Loc.Offset < sym.Loc.Offset {
			push(s.Comments[ci].Loc, core.TokenComment)
			ci++
		}
		push(sym.Loc, token.Highlight(sym.Type))
	}
	for ; ci < len(s.Comments); ci++ {
		push(s.Comments[ci].Loc, core.TokenComment)
	}

	oi := 0
	for _, lb := range s.LineBreaks {
		for oi < len(out.Offsets) && out.Offsets[oi] < lb.Offset {
			oi++
		}
		out.Breaks = append(out.Breaks, uint32(oi))
	}
	return out
}

// Diagnostics converts the lexer errors into diagnostics.
func (s *ScannedScript) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, 0, len(s.Errors))
	for _, err := range s.Errors {
		out = append(out, core.Diagnostic{
			Severity: core.SeverityError,
			Loc:      err.Loc,
			Source:   "scanner",
			Message:  err.Message,
		})
	}
	return out
}
