// Package script ties the pipeline stages of one SQL script together.
//
// A Script owns the text of a document and the results of the latest
// scan, parse and analysis. Every edit bumps the revision and invalidates
// all stage results; callers rerun the stages they need.
//
// # Usage
//
//	s := script.New(cat, 1)
//	_ = s.InsertTextAt(0, "select * from customer")
//	_, _ = s.Scan()
//	_, _ = s.Parse()
//	analyzed, err := s.Analyze()
//	_, _ = s.MoveCursor(15)
//	result, _ := s.CompleteAtCursor(completion.DefaultLimit)
package script

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/completion"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/cursor"
	"github.com/leapstack-labs/dashql/pkg/parser"
	"github.com/leapstack-labs/dashql/pkg/rope"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

// Option configures a Script.
type Option func(*Script)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Script) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithText sets the initial text.
func WithText(text string) Option {
	return func(s *Script) {
		s.text.Replace(text)
	}
}

// Script is a SQL document bound to a catalog.
// A Script is not safe for concurrent use.
type Script struct {
	catalog    *catalog.Catalog
	externalID uint32
	logger     *slog.Logger

	text     *rope.Rope
	revision uint64
	released bool

	scanned  *scanner.ScannedScript
	parsed   *parser.ParsedScript
	analyzed *analyzer.AnalyzedScript
	cursor   *cursor.Cursor
	loaded   catalog.ScriptEntry

	stats Statistics
}

// New creates an empty script with the given external id.
func New(cat *catalog.Catalog, externalID uint32, opts ...Option) *Script {
	s := &Script{
		catalog:    cat,
		externalID: externalID,
		logger:     slog.New(slog.DiscardHandler),
		text:       rope.New(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExternalID returns the id of the script.
func (s *Script) ExternalID() uint32 { return s.externalID }

// Catalog returns the catalog the script is bound to.
func (s *Script) Catalog() *catalog.Catalog { return s.catalog }

// Revision returns the number of edits applied so far.
func (s *Script) Revision() uint64 { return s.revision }

func (s *Script) edit() {
	s.revision++
	s.scanned = nil
	s.parsed = nil
	s.analyzed = nil
	s.cursor = nil
}

// InsertTextAt inserts text at a byte offset. Offsets are clamped.
func (s *Script) InsertTextAt(offset int, text string) error {
	if s.released {
		return core.ErrNullPointer
	}
	s.text.InsertAt(offset, text)
	s.edit()
	return nil
}

// InsertCharAt inserts a single character at a byte offset.
func (s *Script) InsertCharAt(offset int, c rune) error {
	if s.released {
		return core.ErrNullPointer
	}
	s.text.InsertRuneAt(offset, c)
	s.edit()
	return nil
}

// EraseTextRange removes length bytes starting at offset.
func (s *Script) EraseTextRange(offset, length int) error {
	if s.released {
		return core.ErrNullPointer
	}
	s.text.EraseRange(offset, length)
	s.edit()
	return nil
}

// ReplaceText replaces the whole text.
func (s *Script) ReplaceText(text string) error {
	if s.released {
		return core.ErrNullPointer
	}
	s.text.Replace(text)
	s.edit()
	return nil
}

// String returns the current text, or "" once released.
func (s *Script) String() string {
	if s.released {
		return ""
	}
	return s.text.String()
}

// Len returns the text length in bytes.
func (s *Script) Len() int {
	if s.released {
		return 0
	}
	return s.text.Len()
}

// Scan scans the current text.
func (s *Script) Scan() (*Handle[*scanner.ScannedScript], error) {
	if s.released {
		return nil, core.ErrNullPointer
	}
	scanned, err := scanner.Scan(s.text.String(), s.externalID)
	if err != nil {
		return nil, fmt.Errorf("scan script %d: %w", s.externalID, err)
	}
	s.scanned, s.parsed, s.analyzed, s.cursor = scanned, nil, nil, nil
	s.stats.ScannerDuration = scanned.Duration
	s.logger.Debug("script scanned",
		"external_id", s.externalID,
		"revision", s.revision,
		"symbols", scanned.SymbolCount(),
		"errors", len(scanned.Errors))
	return newHandle(scanned), nil
}

// Parse parses the scan of the current revision.
func (s *Script) Parse() (*Handle[*parser.ParsedScript], error) {
	if s.released {
		return nil, core.ErrNullPointer
	}
	if s.scanned == nil {
		return nil, core.ErrScriptNotScanned
	}
	parsed, err := parser.Parse(s.scanned)
	if err != nil {
		return nil, fmt.Errorf("parse script %d: %w", s.externalID, err)
	}
	s.parsed, s.analyzed, s.cursor = parsed, nil, nil
	s.stats.ParserDuration = parsed.Duration
	s.logger.Debug("script parsed",
		"external_id", s.externalID,
		"revision", s.revision,
		"statements", len(parsed.Statements),
		"nodes", len(parsed.Nodes),
		"errors", len(parsed.Errors))
	return newHandle(parsed), nil
}

// Analyze resolves the parse of the current revision against a fresh
// catalog snapshot. It fails with core.ErrExternalIDCollision when another
// catalog entry owns the script's id.
func (s *Script) Analyze() (*Handle[*analyzer.AnalyzedScript], error) {
	if s.released {
		return nil, core.ErrNullPointer
	}
	if s.parsed == nil {
		return nil, core.ErrScriptNotParsed
	}
	analyzed, err := analyzer.Analyze(s.parsed, s.catalog.CreateSnapshot(),
		analyzer.WithOrigin(s),
		analyzer.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("analyze script %d: %w", s.externalID, err)
	}
	s.analyzed, s.cursor = analyzed, nil
	s.stats.AnalyzerDuration = analyzed.Duration
	return newHandle(analyzed), nil
}

// LoadInto registers the latest analysis in a catalog. The catalog must be
// the one the script is bound to.
func (s *Script) LoadInto(cat *catalog.Catalog, rank uint32) error {
	if s.released {
		return core.ErrNullPointer
	}
	if cat != s.catalog {
		return core.ErrCatalogMismatch
	}
	if s.analyzed == nil {
		return core.ErrScriptNotAnalyzed
	}
	if err := cat.LoadScript(s.analyzed, rank); err != nil {
		return fmt.Errorf("load script %d: %w", s.externalID, err)
	}
	s.loaded = s.analyzed
	return nil
}

// MoveCursor places the cursor at a byte offset using the latest stage
// results of the current revision.
func (s *Script) MoveCursor(offset int) (*cursor.Cursor, error) {
	if s.released {
		return nil, core.ErrNullPointer
	}
	cur, err := cursor.Place(cursor.Source{
		Scanned:  s.scanned,
		Parsed:   s.parsed,
		Analyzed: s.analyzed,
	}, offset)
	if err != nil {
		return nil, err
	}
	s.cursor = cur
	return cur, nil
}

// CompleteAtCursor computes completion candidates at the cursor.
func (s *Script) CompleteAtCursor(limit int) (*completion.Completion, error) {
	if s.released {
		return nil, core.ErrNullPointer
	}
	if s.cursor == nil {
		return nil, fmt.Errorf("cursor is not placed: %w", core.ErrNullPointer)
	}
	start := time.Now()
	result, err := completion.Complete(s.cursor, s.catalog.CreateSnapshot(), limit)
	if err != nil {
		return nil, err
	}
	s.stats.CompletionDuration = time.Since(start)
	return result, nil
}

// Release drops the text and all stage results and removes the script
// from its catalog. Every later call fails with core.ErrNullPointer.
func (s *Script) Release() {
	if s.released {
		return
	}
	if s.loaded != nil {
		s.catalog.DropScript(s.loaded)
		s.loaded = nil
	}
	s.edit()
	s.text = nil
	s.released = true
}
