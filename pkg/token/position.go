package token

import "sort"

// Position represents a location in the source code.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Lines holds the byte offsets at which each line of a text starts.
type Lines []int

// NewLines indexes the line starts of text.
func NewLines(text string) Lines {
	lines := Lines{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// Position converts a byte offset into a line/column position.
func (l Lines) Position(offset int) Position {
	if len(l) == 0 {
		return Position{Line: 1, Column: offset + 1, Offset: offset}
	}
	line := sort.Search(len(l), func(i int) bool { return l[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line + 1, Column: offset - l[line] + 1, Offset: offset}
}

// Offset converts a 1-based line and column into a byte offset, clamped to
// the known lines.
func (l Lines) Offset(line, column int) int {
	if len(l) == 0 || line < 1 {
		return 0
	}
	if line > len(l) {
		line = len(l)
	}
	if column < 1 {
		column = 1
	}
	return l[line-1] + column - 1
}
