package scanner

import (
	"sort"

	"github.com/leapstack-labs/dashql/pkg/core"
)

func lowerBound(offsets []uint32, v uint32) int {
	return sort.Search(len(offsets), func(i int) bool { return offsets[i] >= v })
}

// FindClosestToken returns the index of the token whose offset is closest
// to pos. Ties resolve to the later token. Returns -1 for empty tokens.
func FindClosestToken(tokens *core.Tokens, pos uint32) int {
	n := len(tokens.Offsets)
	if n == 0 {
		return -1
	}
	lb := lowerBound(tokens.Offsets, pos)
	if lb >= n {
		return n - 1
	}
	if lb > 0 && absDiff(tokens.Offsets[lb-1], pos) < absDiff(tokens.Offsets[lb], pos) {
		return lb - 1
	}
	return lb
}

// FindTokensInRange returns the [begin, end) index range of the tokens
// overlapping the text range [textBegin, textEnd). A token that starts
// before textBegin but may still cover it is included.
func FindTokensInRange(tokens *core.Tokens, textBegin, textEnd uint32) (begin, end int) {
	n := len(tokens.Offsets)
	low := lowerBound(tokens.Offsets, textBegin)
	if (low == n || tokens.Offsets[low] > textBegin) && low > 0 {
		low--
	}
	high := lowerBound(tokens.Offsets, textEnd)
	return low, max(low, high)
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
