package lsp

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/script"
)

// Document represents an open text document in the editor.
type Document struct {
	URI     string // Document URI (file:///path/to/file.sql)
	Version int    // Version number, incremented on each change
	Script  *script.Script
	Lines   []int // Byte offsets of line starts for fast position lookups
}

// Content returns the current text of the document.
func (d *Document) Content() string {
	return d.Script.String()
}

// DocumentStore manages open documents. Each document owns a script bound
// to the shared catalog.
type DocumentStore struct {
	mu        sync.RWMutex
	catalog   *catalog.Catalog
	logger    *slog.Logger
	documents map[string]*Document
	nextID    uint32
}

// NewDocumentStore creates a new document store.
func NewDocumentStore(cat *catalog.Catalog, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DocumentStore{
		catalog:   cat,
		logger:    logger,
		documents: make(map[string]*Document),
		nextID:    1,
	}
}

// Open adds a document. Reopening a URI replaces its script.
func (s *DocumentStore) Open(uri string, content string, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.documents[uri]; ok {
		old.Script.Release()
	}
	id := s.nextID
	s.nextID++
	doc := &Document{
		URI:     uri,
		Version: version,
		Script:  script.New(s.catalog, id, script.WithText(content), script.WithLogger(s.logger)),
		Lines:   computeLineOffsets(content),
	}
	s.documents[uri] = doc
	return doc
}

// Close removes a document and releases its script.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.documents[uri]; ok {
		doc.Script.Release()
		delete(s.documents, uri)
	}
}

// Get retrieves a document by URI.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.documents[uri]
}

// ByExternalID returns the document whose script has the given id.
func (s *DocumentStore) ByExternalID(id uint32) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if doc.Script.ExternalID() == id {
			return doc
		}
	}
	return nil
}

// Update applies content changes in order. Changes with a range edit the
// script in place, changes without one replace the whole text.
func (s *DocumentStore) Update(uri string, changes []TextDocumentContentChangeEvent, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[uri]
	if !ok {
		return nil
	}
	for _, change := range changes {
		// A released script is treated like a closed document.
		if err := doc.apply(change); err != nil {
			return nil
		}
		doc.Lines = computeLineOffsets(doc.Script.String())
	}
	doc.Version = version
	return doc
}

func (d *Document) apply(change TextDocumentContentChangeEvent) error {
	if change.Range == nil {
		return d.Script.ReplaceText(change.Text)
	}
	start := d.PositionToOffset(change.Range.Start)
	end := d.PositionToOffset(change.Range.End)
	if end > start {
		if err := d.Script.EraseTextRange(start, end-start); err != nil {
			return err
		}
	}
	if change.Text != "" {
		return d.Script.InsertTextAt(start, change.Text)
	}
	return nil
}

// List returns all open document URIs in sorted order.
func (s *DocumentStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.documents))
	for uri := range s.documents {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// CloseAll releases every document.
func (s *DocumentStore) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for uri, doc := range s.documents {
		doc.Script.Release()
		delete(s.documents, uri)
	}
}

// computeLineOffsets calculates byte offsets for each line start.
func computeLineOffsets(content string) []int {
	offsets := []int{0}

	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}

	return offsets
}

// PositionToOffset converts a Position to a byte offset in the document.
// Characters count UTF-16 code units and are clamped to the line end.
func (d *Document) PositionToOffset(pos Position) int {
	size := d.Script.Len()
	if len(d.Lines) == 0 {
		return 0
	}

	line := int(pos.Line)
	if line >= len(d.Lines) {
		return size
	}

	lineEnd := size
	if line+1 < len(d.Lines) {
		lineEnd = d.Lines[line+1] - 1
	}
	start := d.Lines[line]
	if lineEnd < start {
		return start
	}
	units := 0
	for i, r := range d.Content()[start:lineEnd] {
		if units >= int(pos.Character) {
			return start + i
		}
		units += utf16.RuneLen(r)
	}
	return lineEnd
}

// OffsetToPosition converts a byte offset to a Position. An offset inside a
// multi-byte character maps to the start of that character.
func (d *Document) OffsetToPosition(offset int) Position {
	if len(d.Lines) == 0 {
		return Position{}
	}

	if offset < 0 {
		offset = 0
	}
	if size := d.Script.Len(); offset > size {
		offset = size
	}

	line := sort.Search(len(d.Lines), func(i int) bool { return d.Lines[i] > offset }) - 1
	text := d.Content()[d.Lines[line]:offset]
	units := 0
	for len(text) > 0 {
		r, n := utf8.DecodeRuneInString(text)
		if r == utf8.RuneError && n == 1 && !utf8.FullRuneInString(text) {
			break
		}
		units += utf16.RuneLen(r)
		text = text[n:]
	}
	return Position{
		Line:      uint32(line),
		Character: uint32(units),
	}
}

// RangeOf converts a byte range to a Range.
func (d *Document) RangeOf(offset, length uint32) Range {
	return Range{
		Start: d.OffsetToPosition(int(offset)),
		End:   d.OffsetToPosition(int(offset + length)),
	}
}

// URIToPath converts a file:// URI to a file system path.
func URIToPath(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return uri[len(prefix):]
	}
	return uri
}

// PathToURI converts a file system path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}
