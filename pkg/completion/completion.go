// Package completion computes ranked completion candidates at a script
// cursor.
//
// Candidates come from the keywords the parser expects at the cursor, the
// names of the script and the names of every catalog entry. Each candidate
// is scored by the name tags that are likely in the cursor context plus
// modifiers for prefix and substring matches.
//
// # Usage
//
//	cur, _ := cursor.Place(src, offset)
//	result, err := completion.Complete(cur, cat.CreateSnapshot(), completion.DefaultLimit)
//	for _, c := range result.Candidates {
//		fmt.Println(c.Label, c.Score)
//	}
package completion

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/cursor"
	"github.com/leapstack-labs/dashql/pkg/names"
	"github.com/leapstack-labs/dashql/pkg/parser"
	"github.com/leapstack-labs/dashql/pkg/scanner"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// DefaultLimit is the number of candidates returned when no limit is given.
const DefaultLimit = 32

// Strategy selects the scoring table.
type Strategy uint8

// Strategies.
const (
	StrategyDefault Strategy = iota
	StrategyTableRef
	StrategyColumnRef
)

func (s Strategy) String() string {
	switch s {
	case StrategyTableRef:
		return "TABLE_REF"
	case StrategyColumnRef:
		return "COLUMN_REF"
	default:
		return "DEFAULT"
	}
}

// Action tells what the completion did at the cursor.
type Action uint8

// Actions.
const (
	ActionSkip Action = iota
	ActionSkipAtDot
	ActionCompleteAtDot
	ActionCompleteAfterDot
	ActionCompleteSymbol
)

func (a Action) String() string {
	switch a {
	case ActionSkipAtDot:
		return "SKIP_COMPLETION_AT_DOT"
	case ActionCompleteAtDot:
		return "COMPLETE_AT_DOT"
	case ActionCompleteAfterDot:
		return "COMPLETE_AFTER_DOT"
	case ActionCompleteSymbol:
		return "COMPLETE_SYMBOL"
	default:
		return "SKIP_COMPLETION"
	}
}

// ReplaceText is the text span a candidate replaces.
type ReplaceText struct {
	Offset uint32
	Length uint32
}

// ObjectKind is the kind of a catalog object behind a candidate.
type ObjectKind uint8

// Object kinds.
const (
	ObjectDatabase ObjectKind = iota
	ObjectSchema
	ObjectTable
	ObjectColumn
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectDatabase:
		return "DATABASE"
	case ObjectSchema:
		return "SCHEMA"
	case ObjectTable:
		return "TABLE"
	default:
		return "COLUMN"
	}
}

// Object identifies a catalog object a candidate names.
// Ids below the object's level are core.NullID.
type Object struct {
	Kind        ObjectKind
	DatabaseID  uint32
	SchemaID    uint32
	TableID     core.ExternalObjectID
	ColumnIndex uint32
}

// Candidate is a single completion proposal.
type Candidate struct {
	Label string
	// Text is the label quoted as an identifier where necessary.
	Text        string
	Detail      string
	Tags        core.NameTags
	Score       int
	ReplaceText ReplaceText
	NearCursor  bool
	Objects     []Object

	external    bool
	occurrences uint32
	loc         core.Location
}

// Completion is the result of a completion request.
type Completion struct {
	TextOffset uint32
	Strategy   Strategy
	Action     Action
	Candidates []Candidate
}

// Complete computes up to limit candidates at the cursor. A limit of zero
// or less uses DefaultLimit. snap may be nil for scripts without a catalog.
func Complete(cur *cursor.Cursor, snap *catalog.Snapshot, limit int) (*Completion, error) {
	if cur == nil || cur.Source.Scanned == nil {
		return nil, core.ErrNullPointer
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	e := newEngine(cur, snap)
	e.run()
	return e.finish(limit), nil
}

type engine struct {
	cur      *cursor.Cursor
	scanned  *scanner.ScannedScript
	analyzed *analyzer.AnalyzedScript
	snap     *catalog.Snapshot
	flat     *catalog.Flat

	out     *Completion
	scores  scoringTable
	query   string
	replace ReplaceText
	pending map[string]*Candidate
}

func newEngine(cur *cursor.Cursor, snap *catalog.Snapshot) *engine {
	strategy := StrategyDefault
	switch cur.Context.Kind {
	case cursor.ContextTableRef:
		strategy = StrategyTableRef
	case cursor.ContextColumnRef:
		strategy = StrategyColumnRef
	}
	e := &engine{
		cur:      cur,
		scanned:  cur.Source.Scanned,
		analyzed: cur.Source.Analyzed,
		snap:     snap,
		out: &Completion{
			TextOffset: cur.TextOffset,
			Strategy:   strategy,
			Action:     ActionSkip,
		},
		scores:  scoringTables[strategy],
		pending: make(map[string]*Candidate),
	}
	if snap != nil {
		e.flat = snap.Flatten()
	}
	return e
}

func (e *engine) run() {
	loc := e.cur.Location
	sym := loc.Symbol
	if sym.Type == token.EOF || skipSymbol(sym.Type) {
		return
	}

	if sym.Type == token.DOT || sym.Type == token.DOT_TRAILING {
		switch loc.Relative {
		case scanner.EndOfSymbol, scanner.NewSymbolAfter:
			e.replace = ReplaceText{Offset: e.cur.TextOffset}
			e.completeQualified(e.qualifierBefore(int(loc.SymbolID)))
			e.out.Action = ActionCompleteAtDot
		default:
			e.out.Action = ActionSkipAtDot
		}
		return
	}

	// Whitespace
	if loc.Relative == scanner.NewSymbolBefore || loc.Relative == scanner.NewSymbolAfter {
		return
	}
	if sym.Type != token.IDENT && !token.IsKeyword(sym.Type) {
		return
	}

	e.replace = ReplaceText{Offset: sym.Loc.Offset, Length: sym.Loc.Length}
	e.query = e.scanned.Text[sym.Loc.Offset:loc.TextOffset]
	if e.query == "" {
		e.query = e.scanned.ReadText(sym.Loc)
	}

	expected := parser.Expected(e.scanned, int(loc.SymbolID))
	expectsIdent := slices.Contains(expected, token.IDENT)

	if loc.HasPrevious && loc.Previous.Type == token.DOT && expectsIdent {
		e.completeQualified(e.qualifierBefore(int(loc.SymbolID) - 1))
		e.out.Action = ActionCompleteAfterDot
		return
	}

	e.addKeywords(expected)
	if expectsIdent {
		e.findCandidatesInIndexes()
		e.markNearCandidates()
		e.promoteUnresolved()
	}
	e.out.Action = ActionCompleteSymbol
}

// qualifierBefore reads the dotted name that ends right before the dot
// symbol at dotID.
func (e *engine) qualifierBefore(dotID int) []string {
	var path []string
	for i := dotID - 1; i >= 0; i -= 2 {
		sym := e.scanned.Symbols[i]
		var name string
		switch {
		case sym.Type == token.IDENT:
			name = e.scanned.Names.Text(sym.NameID)
		case token.IsKeyword(sym.Type):
			name = strings.ToLower(sym.Literal)
		default:
			return path
		}
		path = append([]string{name}, path...)
		if i == 0 || e.scanned.Symbols[i-1].Type != token.DOT {
			break
		}
	}
	return path
}

func (e *engine) addKeywords(expected []token.TokenType) {
	for _, t := range expected {
		if !token.IsKeyword(t) {
			continue
		}
		label := t.String()
		modifier, ok := matchScore(label, e.query)
		if !ok {
			continue
		}
		e.add(label, core.NameTagKeyword, e.scores.score(core.NameTagKeyword)+keywordScore(t)+modifier)
	}
}

func (e *engine) findCandidatesInIndexes() {
	var local *names.Registry
	switch {
	case e.analyzed != nil:
		local = e.analyzed.Names()
	case e.cur.Source.Parsed != nil:
		local = e.cur.Source.Parsed.Names
	default:
		local = e.scanned.Names
	}
	e.searchRegistry(local, false)
	if e.flat != nil {
		e.searchRegistry(e.flat.Names, true)
	}
}

func (e *engine) searchRegistry(reg *names.Registry, external bool) {
	for _, m := range reg.SearchIndex().Search(e.query) {
		name, _ := reg.At(m.NameID)
		score := e.scores.score(name.Tags)
		if m.Prefix {
			score += PrefixScoreModifier
		} else {
			score += SubstringScoreModifier
		}
		c := e.add(name.Text, name.Tags, score)
		if external {
			c.external = true
			c.Objects = append(c.Objects, e.flatObjects(m.NameID)...)
		} else if c.loc == (core.Location{}) {
			c.occurrences = name.Occurrences
			c.loc = name.Loc
		}
	}
}

// add merges a candidate by label, keeping the best score.
func (e *engine) add(label string, tags core.NameTags, score int) *Candidate {
	if c, ok := e.pending[label]; ok {
		c.Score = max(c.Score, score)
		c.Tags |= tags
		return c
	}
	c := &Candidate{
		Label: label,
		Tags:  tags,
		Score: score,
	}
	e.pending[label] = c
	return c
}

func (e *engine) flatObjects(nameID uint32) []Object {
	var out []Object
	for _, obj := range e.flat.ObjectsNamed(nameID) {
		out = append(out, e.flatObject(obj))
	}
	return out
}

func (e *engine) flatObject(obj catalog.FlatObject) Object {
	f := e.flat
	out := Object{
		DatabaseID:  core.NullID,
		SchemaID:    core.NullID,
		TableID:     core.NullExternalObjectID,
		ColumnIndex: core.NullID,
	}
	idx := obj.Index
	switch obj.Kind {
	case catalog.FlatObjectColumn:
		out.Kind = ObjectColumn
		out.ColumnIndex = f.Columns[idx].ColumnIndex
		idx = f.Columns[idx].FlatParentIdx
		fallthrough
	case catalog.FlatObjectTable:
		if obj.Kind == catalog.FlatObjectTable {
			out.Kind = ObjectTable
		}
		out.TableID = f.Tables[idx].ObjectID
		idx = f.Tables[idx].FlatParentIdx
		fallthrough
	case catalog.FlatObjectSchema:
		if obj.Kind == catalog.FlatObjectSchema {
			out.Kind = ObjectSchema
		}
		out.SchemaID = f.Schemas[idx].SchemaID
		idx = f.Schemas[idx].FlatParentIdx
		fallthrough
	case catalog.FlatObjectDatabase:
		if obj.Kind == catalog.FlatObjectDatabase {
			out.Kind = ObjectDatabase
		}
		out.DatabaseID = f.Databases[idx].DatabaseID
	}
	return out
}

// markNearCandidates flags names used by the references of the cursor's
// statement.
func (e *engine) markNearCandidates() {
	a := e.analyzed
	stmt := e.cur.StatementID
	if a == nil || stmt == core.NullID {
		return
	}
	mark := func(name string) {
		if c, ok := e.pending[name]; ok {
			c.NearCursor = true
		}
	}
	for _, ref := range a.TableRefs {
		if ref.StatementID != stmt {
			continue
		}
		if ref.Alias != "" {
			mark(ref.Alias)
		}
		mark(ref.Name.Database)
		mark(ref.Name.Schema)
		mark(ref.Name.Table)
		if t := e.resolveTableByID(ref); t != nil {
			for _, col := range t.Columns {
				mark(col.Name)
			}
		}
	}
	for _, ref := range a.ColumnRefs {
		if ref.StatementID == stmt {
			mark(ref.Column)
		}
	}
}

func (e *engine) resolveTableByID(ref analyzer.TableReference) *catalog.Table {
	if !ref.Resolved {
		return nil
	}
	if ref.TableID.ExternalID() == e.analyzed.ExternalID() {
		return e.analyzed.ResolveTableByIndex(ref.TableID.Index())
	}
	if e.snap == nil {
		return nil
	}
	return e.snap.ResolveTableByID(ref.TableID)
}

// promoteUnresolved bumps tables that declare a column name no reference
// could resolve, and the unresolved names themselves.
func (e *engine) promoteUnresolved() {
	a := e.analyzed
	if a == nil {
		return
	}
	promoted := make(map[string]bool)
	peers := make(map[string]bool)
	for _, ref := range a.ColumnRefs {
		if ref.Resolved {
			continue
		}
		if ref.StatementID == e.cur.StatementID && !peers[ref.Column] {
			peers[ref.Column] = true
			if c, ok := e.pending[ref.Column]; ok {
				c.Score += UnresolvedPeerScoreModifier
			}
		}
		matches := a.ResolveColumn(ref.Column)
		if e.snap != nil {
			matches = append(matches, e.snap.ResolveColumn(ref.Column, a.ExternalID())...)
		}
		for _, m := range matches {
			table := m.Table.Name.Table
			if promoted[table] {
				continue
			}
			promoted[table] = true
			if c, ok := e.pending[table]; ok {
				c.Score += ResolvingTableScoreModifier
			}
		}
	}
}

func (e *engine) finish(limit int) *Completion {
	current := e.cur.Location.Symbol.Loc
	textLen := uint32(len(e.scanned.Text))
	replace := e.replace
	replace.Offset = min(replace.Offset, textLen)
	replace.Length = min(replace.Length, textLen-replace.Offset)

	out := make([]Candidate, 0, len(e.pending))
	for _, c := range e.pending {
		// The name only exists because it is being typed
		if c.occurrences == 1 && !c.external && intersects(c.loc, current) {
			continue
		}
		c.Text = names.Quote(c.Label)
		if c.Tags == core.NameTagKeyword {
			c.Text = c.Label
		}
		c.Detail = describeTags(c.Tags)
		c.ReplaceText = replace
		out = append(out, *c)
	}

	fold := cases.Fold()
	slices.SortFunc(out, func(a, b Candidate) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if c := strings.Compare(fold.String(a.Label), fold.String(b.Label)); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	e.out.Candidates = out
	return e.out
}

// intersects reports whether two non-empty ranges overlap.
func intersects(l, r core.Location) bool {
	lo := min(l.Offset, r.Offset)
	hi := max(l.End(), r.End())
	return hi-lo < l.Length+r.Length
}
