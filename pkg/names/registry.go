package names

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// Name is an interned identifier.
type Name struct {
	ID          uint32
	Text        string
	Loc         core.Location // first occurrence, zero for catalog names
	Tags        core.NameTags
	Occurrences uint32
}

// Registry interns names.
// Ids are dense and assigned in registration order.
type Registry struct {
	names  []Name
	byText map[string]uint32

	indexMu sync.Mutex
	index   *SearchIndex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byText: make(map[string]uint32)}
}

// Normalize folds an unquoted identifier to lowercase.
func Normalize(text string) string {
	return cases.Lower(language.Und).String(text)
}

// Quote returns text as an SQL identifier. Names that would change under
// Normalize or contain characters outside [a-z0-9_] are double quoted.
func Quote(text string) string {
	plain := text != "" && Normalize(text) == text && (text[0] < '0' || text[0] > '9')
	for i := 0; plain && i < len(text); i++ {
		c := text[i]
		plain = c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	if plain {
		return text
	}
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}

// Register interns text, counting one occurrence at loc and adding tags.
func (r *Registry) Register(text string, loc core.Location, tags core.NameTags) uint32 {
	if id, ok := r.byText[text]; ok {
		n := &r.names[id]
		n.Occurrences++
		n.Tags |= tags
		return id
	}
	id := uint32(len(r.names))
	r.names = append(r.names, Name{
		ID:          id,
		Text:        text,
		Loc:         loc,
		Tags:        tags,
		Occurrences: 1,
	})
	r.byText[text] = id
	r.index = nil
	return id
}

// AddTags marks an existing name with additional tags.
func (r *Registry) AddTags(id uint32, tags core.NameTags) {
	if int(id) < len(r.names) {
		r.names[id].Tags |= tags
		r.index = nil
	}
}

// Lookup returns the id of an interned name.
func (r *Registry) Lookup(text string) (uint32, bool) {
	id, ok := r.byText[text]
	return id, ok
}

// At returns the name with the given id.
func (r *Registry) At(id uint32) (Name, bool) {
	if int(id) >= len(r.names) {
		return Name{}, false
	}
	return r.names[id], true
}

// Text returns the text of a name or "" for unknown ids.
func (r *Registry) Text(id uint32) string {
	if int(id) >= len(r.names) {
		return ""
	}
	return r.names[id].Text
}

// Len returns the number of interned names.
func (r *Registry) Len() int {
	return len(r.names)
}

// Names returns all names in id order. The slice must not be modified.
func (r *Registry) Names() []Name {
	return r.names
}

// Clone returns a deep copy that can be tagged independently.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		names:  make([]Name, len(r.names)),
		byText: make(map[string]uint32, len(r.byText)),
	}
	copy(c.names, r.names)
	for k, v := range r.byText {
		c.byText[k] = v
	}
	return c
}

// SearchIndex returns the search index, building it on first use after a
// change. Concurrent readers of a registry that is no longer modified may
// call it safely.
func (r *Registry) SearchIndex() *SearchIndex {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	if r.index == nil {
		r.index = newSearchIndex(r.names)
	}
	return r.index
}
