package core

import "fmt"

// Location is a byte range in a script text.
type Location struct {
	Offset uint32
	Length uint32
}

// Loc creates a location from an offset and a length.
func Loc(offset, length uint32) Location {
	return Location{Offset: offset, Length: length}
}

// LocRange creates a location spanning [begin, end).
func LocRange(begin, end uint32) Location {
	if end < begin {
		end = begin
	}
	return Location{Offset: begin, Length: end - begin}
}

// End returns the offset one past the last byte.
func (l Location) End() uint32 {
	return l.Offset + l.Length
}

// Contains returns true if the offset lies inside [Offset, End).
func (l Location) Contains(offset uint32) bool {
	return offset >= l.Offset && offset < l.End()
}

// Merge returns the smallest location covering both l and o.
func (l Location) Merge(o Location) Location {
	begin := min(l.Offset, o.Offset)
	end := max(l.End(), o.End())
	return LocRange(begin, end)
}

// Text returns the slice of text covered by the location, clamped to the text.
func (l Location) Text(text string) string {
	begin := min(int(l.Offset), len(text))
	end := min(int(l.End()), len(text))
	return text[begin:end]
}

func (l Location) String() string {
	return fmt.Sprintf("[%d,%d)", l.Offset, l.End())
}
