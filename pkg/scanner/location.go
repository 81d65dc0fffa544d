package scanner

import (
	"sort"

	"github.com/leapstack-labs/dashql/pkg/token"
)

// RelativePosition describes where a text offset lies relative to a symbol.
type RelativePosition uint8

// Relative positions.
const (
	NewSymbolBefore RelativePosition = iota
	BeginOfSymbol
	MidOfSymbol
	EndOfSymbol
	NewSymbolAfter
)

func (p RelativePosition) String() string {
	switch p {
	case NewSymbolBefore:
		return "NEW_SYMBOL_BEFORE"
	case BeginOfSymbol:
		return "BEGIN_OF_SYMBOL"
	case MidOfSymbol:
		return "MID_OF_SYMBOL"
	case EndOfSymbol:
		return "END_OF_SYMBOL"
	default:
		return "NEW_SYMBOL_AFTER"
	}
}

// Location is the symbol found at a text offset.
type Location struct {
	TextOffset  uint32
	SymbolID    uint32
	Symbol      Symbol
	Previous    Symbol
	HasPrevious bool
	Relative    RelativePosition
	// AtEOF is set when no further symbol follows before EOF.
	AtEOF bool
}

// FindSymbol returns the last symbol starting at or before offset.
// Offsets past the text are clamped to the text length. EOF is never
// returned unless the script has no symbols at all.
func (s *ScannedScript) FindSymbol(offset int) Location {
	offset = max(0, min(offset, len(s.Text)))
	target := uint32(offset)

	// Upper bound of the offset, then step to the predecessor
	id := sort.Search(len(s.Symbols), func(i int) bool {
		return s.Symbols[i].Loc.Offset > target
	})
	if id > 0 {
		id--
	}
	if s.Symbols[id].Type == token.EOF {
		if id == 0 {
			return Location{
				TextOffset: target,
				Symbol:     s.Symbols[0],
				Relative:   NewSymbolBefore,
				AtEOF:      true,
			}
		}
		id--
	}

	sym := s.Symbols[id]
	loc := Location{
		TextOffset: target,
		SymbolID:   uint32(id),
		Symbol:     sym,
		Relative:   relativePosition(target, sym),
		AtEOF:      id+2 >= len(s.Symbols),
	}
	if id > 0 {
		loc.Previous = s.Symbols[id-1]
		loc.HasPrevious = true
	}
	return loc
}

func relativePosition(offset uint32, sym Symbol) RelativePosition {
	begin, end := sym.Loc.Offset, sym.Loc.End()
	switch {
	case offset < begin:
		return NewSymbolBefore
	case offset == begin:
		return BeginOfSymbol
	case offset == end:
		return EndOfSymbol
	case offset < end:
		return MidOfSymbol
	default:
		return NewSymbolAfter
	}
}
