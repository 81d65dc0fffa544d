package names

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

type suffix struct {
	text   string
	nameID uint32
	prefix bool
}

// SearchIndex answers case-insensitive prefix and substring queries.
// It stores every suffix of every folded name in sorted order.
type SearchIndex struct {
	suffixes []suffix
}

// Match is a search hit.
type Match struct {
	NameID uint32
	Prefix bool // the query matched at the start of the name
}

func newSearchIndex(names []Name) *SearchIndex {
	fold := cases.Fold()
	idx := &SearchIndex{}
	for _, n := range names {
		folded := fold.String(n.Text)
		for i := 0; i < len(folded); i++ {
			idx.suffixes = append(idx.suffixes, suffix{
				text:   folded[i:],
				nameID: n.ID,
				prefix: i == 0,
			})
		}
	}
	sort.SliceStable(idx.suffixes, func(i, j int) bool {
		return idx.suffixes[i].text < idx.suffixes[j].text
	})
	return idx
}

// Search returns every name containing query, one match per name.
// A prefix hit wins over substring hits of the same name.
// The empty query matches every name as a prefix.
func (s *SearchIndex) Search(query string) []Match {
	query = cases.Fold().String(query)
	begin := sort.Search(len(s.suffixes), func(i int) bool {
		return s.suffixes[i].text >= query
	})
	seen := make(map[uint32]int)
	var out []Match
	for i := begin; i < len(s.suffixes) && strings.HasPrefix(s.suffixes[i].text, query); i++ {
		e := s.suffixes[i]
		isPrefix := e.prefix || query == ""
		if at, ok := seen[e.nameID]; ok {
			if isPrefix {
				out[at].Prefix = true
			}
			continue
		}
		seen[e.nameID] = len(out)
		out = append(out, Match{NameID: e.nameID, Prefix: isPrefix})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameID < out[j].NameID })
	return out
}

// Len returns the number of indexed suffixes.
func (s *SearchIndex) Len() int {
	return len(s.suffixes)
}
