// Package rope implements a paged text buffer for incremental editing.
//
// Text is stored in pages of bounded size. Edits touch only the pages
// covering the edited range; pages split when they overflow and merge with
// a neighbour when they shrink below a quarter of the page size.
// Offsets are byte offsets into the UTF-8 text.
package rope

import (
	"strings"
	"unicode/utf8"
)

// DefaultPageSize is the page capacity used by New.
const DefaultPageSize = 1024

// Rope is a paged text buffer. The zero value is not usable; use New.
type Rope struct {
	pageSize int
	pages    [][]byte
	length   int
}

// New creates a rope holding text with the default page size.
func New(text string) *Rope {
	return NewWithPageSize(text, DefaultPageSize)
}

// NewWithPageSize creates a rope with a custom page capacity.
func NewWithPageSize(text string, pageSize int) *Rope {
	if pageSize < 8 {
		pageSize = 8
	}
	r := &Rope{pageSize: pageSize}
	r.InsertAt(0, text)
	return r
}

// Len returns the text length in bytes.
func (r *Rope) Len() int {
	return r.length
}

// PageCount returns the number of pages.
func (r *Rope) PageCount() int {
	return len(r.pages)
}

// String returns the full text.
func (r *Rope) String() string {
	var b strings.Builder
	b.Grow(r.length)
	for _, p := range r.pages {
		b.Write(p)
	}
	return b.String()
}

// locate returns the page holding offset and the offset within it.
// An offset at a page boundary resolves to the end of the earlier page.
func (r *Rope) locate(offset int) (page, inPage int) {
	for i, p := range r.pages {
		if offset <= len(p) {
			return i, offset
		}
		offset -= len(p)
	}
	return len(r.pages), 0
}

// InsertAt inserts text at a byte offset. Offsets past the end append.
func (r *Rope) InsertAt(offset int, text string) {
	if text == "" {
		return
	}
	offset = clamp(offset, r.length)
	if len(r.pages) == 0 {
		r.pages = [][]byte{nil}
	}
	pi, in := r.locate(offset)
	if pi == len(r.pages) {
		pi, in = len(r.pages)-1, len(r.pages[len(r.pages)-1])
	}
	page := r.pages[pi]
	merged := make([]byte, 0, len(page)+len(text))
	merged = append(merged, page[:in]...)
	merged = append(merged, text...)
	merged = append(merged, page[in:]...)
	r.length += len(text)
	r.replacePages(pi, 1, r.split(merged))
}

// InsertRuneAt inserts a single character at a byte offset.
func (r *Rope) InsertRuneAt(offset int, c rune) {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], c)
	r.InsertAt(offset, string(buf[:n]))
}

// EraseRange removes up to count bytes starting at offset.
func (r *Rope) EraseRange(offset, count int) {
	offset = clamp(offset, r.length)
	count = clamp(count, r.length-offset)
	if count == 0 {
		return
	}
	end := offset + count
	var (
		pos   int
		first = -1
		last  = -1
	)
	var kept []byte
	for i, p := range r.pages {
		pBegin, pEnd := pos, pos+len(p)
		pos = pEnd
		if pEnd <= offset {
			continue
		}
		if pBegin >= end {
			break
		}
		if first < 0 {
			first = i
		}
		last = i
		if offset > pBegin {
			kept = append(kept, p[:offset-pBegin]...)
		}
		if end < pEnd {
			kept = append(kept, p[end-pBegin:]...)
		}
	}
	r.length -= count
	r.replacePages(first, last-first+1, r.split(kept))
	r.rebalance(first)
}

// Replace swaps the full text.
func (r *Rope) Replace(text string) {
	r.pages = nil
	r.length = 0
	r.InsertAt(0, text)
}

func (r *Rope) split(buf []byte) [][]byte {
	if len(buf) == 0 {
		return nil
	}
	var out [][]byte
	for len(buf) > r.pageSize {
		cut := r.pageSize
		// never split inside a UTF-8 sequence
		for cut > 0 && !utf8.RuneStart(buf[cut]) {
			cut--
		}
		if cut == 0 {
			cut = r.pageSize
		}
		page := make([]byte, cut)
		copy(page, buf[:cut])
		out = append(out, page)
		buf = buf[cut:]
	}
	page := make([]byte, len(buf))
	copy(page, buf)
	return append(out, page)
}

func (r *Rope) replacePages(at, n int, with [][]byte) {
	tail := append([][]byte{}, r.pages[at+n:]...)
	r.pages = append(append(r.pages[:at], with...), tail...)
}

// rebalance merges underfull pages around i with their successors.
func (r *Rope) rebalance(i int) {
	if i < 0 {
		return
	}
	if i > 0 {
		i--
	}
	minFill := r.pageSize / 4
	for i < len(r.pages)-1 {
		if len(r.pages[i]) >= minFill && len(r.pages[i+1]) >= minFill {
			break
		}
		merged := append(append([]byte{}, r.pages[i]...), r.pages[i+1]...)
		parts := r.split(merged)
		r.replacePages(i, 2, parts)
		if len(parts) > 1 {
			break
		}
	}
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
