package lsp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
)

// target is the reference under a cursor and what it resolves to.
type target struct {
	analyzed *analyzer.AnalyzedScript
	loc      core.Location
	name     string
	table    *catalog.Table
	// column is the column index for column references, -1 for tables.
	column int
}

// targetAt resolves the table or column reference at a position.
func (s *Server) targetAt(uri string, pos Position) (*Document, *target) {
	s.ensureFresh()
	doc := s.documents.Get(uri)
	if doc == nil {
		return nil, nil
	}
	cur, err := doc.Script.MoveCursor(doc.PositionToOffset(pos))
	if err != nil || cur.Source.Analyzed == nil {
		return doc, nil
	}
	a := cur.Source.Analyzed
	snap := s.catalog.CreateSnapshot()

	switch {
	case cur.ColumnRefID != core.NullID:
		ref := a.ColumnRefs[cur.ColumnRefID]
		t := &target{analyzed: a, loc: ref.Loc, name: ref.Column, column: int(ref.ColumnIndex)}
		if ref.Resolved {
			t.table = lookupTable(a, snap, ref.TableID)
		}
		return doc, t
	case cur.TableRefID != core.NullID:
		ref := a.TableRefs[cur.TableRefID]
		t := &target{analyzed: a, loc: ref.Loc, name: ref.Name.String(), column: -1}
		if ref.Resolved {
			t.table = lookupTable(a, snap, ref.TableID)
		}
		return doc, t
	}
	return doc, nil
}

// lookupTable prefers the analysis itself so that tables of a script that
// could not be loaded still resolve.
func lookupTable(a *analyzer.AnalyzedScript, snap *catalog.Snapshot, id core.ExternalObjectID) *catalog.Table {
	if id.ExternalID() == a.ExternalID() {
		if t := a.ResolveTableByIndex(id.Index()); t != nil {
			return t
		}
	}
	return snap.ResolveTableByID(id)
}

func (s *Server) getHover(params HoverParams) *Hover {
	doc, t := s.targetAt(params.TextDocument.URI, params.Position)
	if t == nil {
		return nil
	}

	var b strings.Builder
	switch {
	case t.table == nil && t.column >= 0:
		fmt.Fprintf(&b, "**unresolved column** `%s`", t.name)
	case t.table == nil:
		fmt.Fprintf(&b, "**unresolved table** `%s`", t.name)
	case t.column >= 0 && t.column < len(t.table.Columns):
		fmt.Fprintf(&b, "**column** `%s`\n\ntable `%s`", t.table.Columns[t.column].Name, t.table.Name)
	default:
		fmt.Fprintf(&b, "**table** `%s`", t.table.Name)
		if len(t.table.Columns) > 0 {
			names := make([]string, len(t.table.Columns))
			for i, c := range t.table.Columns {
				names[i] = "`" + c.Name + "`"
			}
			fmt.Fprintf(&b, "\n\ncolumns: %s", strings.Join(names, ", "))
		}
	}
	if t.table != nil {
		fmt.Fprintf(&b, "\n\n%s", s.describeOwner(t.table))
	}

	r := doc.RangeOf(t.loc.Offset, t.loc.Length)
	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: b.String()},
		Range:    &r,
	}
}

func (s *Server) describeOwner(t *catalog.Table) string {
	owner := t.ObjectID.ExternalID()
	if doc := s.documents.ByExternalID(owner); doc != nil {
		return "declared in " + URIToPath(doc.URI)
	}
	return fmt.Sprintf("catalog entry %d", owner)
}

// getDefinition returns the declaration of the referenced table or column
// when it is declared by an open document.
func (s *Server) getDefinition(params DefinitionParams) *Location {
	_, t := s.targetAt(params.TextDocument.URI, params.Position)
	if t == nil || t.table == nil || t.table.NodeID == core.NullID {
		return nil
	}
	owner := s.documents.ByExternalID(t.table.ObjectID.ExternalID())
	if owner == nil {
		return nil
	}
	loc := t.table.Loc
	if t.column >= 0 && t.column < len(t.table.Columns) && t.table.Columns[t.column].NodeID != core.NullID {
		loc = t.table.Columns[t.column].Loc
	}
	return &Location{
		URI:   owner.URI,
		Range: owner.RangeOf(loc.Offset, loc.Length),
	}
}

// getDocumentHighlights returns the references in the document that
// resolve to the same table or column as the one under the cursor.
func (s *Server) getDocumentHighlights(params DocumentHighlightParams) []DocumentHighlight {
	doc, t := s.targetAt(params.TextDocument.URI, params.Position)
	out := []DocumentHighlight{}
	if t == nil || t.table == nil {
		return out
	}
	a := t.analyzed

	var locs []core.Location
	if t.column >= 0 {
		for _, r := range a.IndexedColumnRefs {
			if r.TableID == t.table.ObjectID && r.ColumnIndex == uint32(t.column) {
				locs = append(locs, a.ColumnRefs[r.ColumnRef].Loc)
			}
		}
	} else {
		for _, id := range a.FindTableRefsOf(t.table.ObjectID) {
			locs = append(locs, a.TableRefs[id].Loc)
		}
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Offset < locs[j].Offset })
	for _, loc := range locs {
		out = append(out, DocumentHighlight{
			Range: doc.RangeOf(loc.Offset, loc.Length),
			Kind:  DocumentHighlightKindRead,
		})
	}
	return out
}
