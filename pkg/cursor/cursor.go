// Package cursor maps a text offset of a script revision onto its scanner,
// parser and analyzer outputs.
//
// A cursor is ephemeral: it is recomputed for every move and never stored.
//
// # Usage
//
//	cur, err := cursor.Place(cursor.Source{Scanned: scanned, Parsed: parsed, Analyzed: analyzed}, 14)
//	if cur.Context.Kind == cursor.ContextColumnRef {
//		ref := analyzed.ColumnRefs[cur.ColumnRefID]
//	}
package cursor

import (
	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/parser"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

// Source holds the outputs of one script revision.
// Parsed and Analyzed are optional. Outputs that were not derived from the
// stage before them are ignored.
type Source struct {
	Scanned  *scanner.ScannedScript
	Parsed   *parser.ParsedScript
	Analyzed *analyzer.AnalyzedScript
}

// consistent drops stale downstream outputs.
func (s Source) consistent() Source {
	if s.Parsed != nil && s.Parsed.Scanned != s.Scanned {
		s.Parsed = nil
	}
	if s.Analyzed != nil && (s.Parsed == nil || s.Analyzed.Parsed != s.Parsed) {
		s.Analyzed = nil
	}
	return s
}

// ContextKind classifies the semantic target under the cursor.
type ContextKind uint8

// Context kinds.
const (
	ContextNone ContextKind = iota
	ContextTableRef
	ContextColumnRef
)

func (k ContextKind) String() string {
	switch k {
	case ContextTableRef:
		return "TABLE_REF"
	case ContextColumnRef:
		return "COLUMN_REF"
	default:
		return "NONE"
	}
}

// Context is the table or column reference the cursor points into.
type Context struct {
	Kind ContextKind
	// NodeID is the TABLEREF or COLUMN_REF node.
	NodeID uint32
	// Path is the name path of the reference.
	Path []NameComponent
	// Component is the index of the path element under the cursor,
	// or -1 if the cursor is not on the path.
	Component int
}

// Cursor is a text offset resolved against a script revision.
type Cursor struct {
	Source     Source
	TextOffset uint32
	Location   scanner.Location

	StatementID uint32
	NodeID      uint32
	TableRefID  uint32
	ColumnRefID uint32
	// Scopes lists the enclosing name scopes, innermost first.
	Scopes []uint32
	// Path lists the AST nodes from NodeID up to the statement root.
	Path    []uint32
	Context Context
}

// Place resolves offset. Offsets outside the text are clamped.
func Place(src Source, offset int) (*Cursor, error) {
	if src.Scanned == nil {
		return nil, core.ErrScriptNotScanned
	}
	src = src.consistent()
	loc := src.Scanned.FindSymbol(offset)
	cur := &Cursor{
		Source:      src,
		TextOffset:  loc.TextOffset,
		Location:    loc,
		StatementID: core.NullID,
		NodeID:      core.NullID,
		TableRefID:  core.NullID,
		ColumnRefID: core.NullID,
		Context:     Context{NodeID: core.NullID, Component: -1},
	}
	if src.Parsed == nil {
		return cur, nil
	}
	stmt, node, ok := src.Parsed.FindNodeAtOffset(loc.TextOffset)
	if !ok {
		return cur, nil
	}
	cur.StatementID = stmt
	cur.NodeID = node
	cur.followPathUpwards()
	cur.readContext()
	return cur, nil
}

func (c *Cursor) followPathUpwards() {
	nodes := c.Source.Parsed.Nodes
	for id := c.NodeID; id != core.NullID; id = nodes[id].Parent {
		c.Path = append(c.Path, id)
		if c.Source.Analyzed == nil {
			continue
		}
		if sid, ok := c.Source.Analyzed.ScopeAt(id); ok {
			c.Scopes = append(c.Scopes, sid)
		}
	}
}

// readContext stops at the innermost SELECT or CREATE so that a cursor in a
// subquery never reports a reference of the enclosing statement.
func (c *Cursor) readContext() {
	nodes := c.Source.Parsed.Nodes
	for _, id := range c.Path {
		switch nodes[id].Type {
		case core.NodeColumnRef:
			pathID, _ := c.Source.Parsed.Child(id, core.AttrColumnRefPath)
			c.setContext(ContextColumnRef, id, pathID)
			c.ColumnRefID = c.findColumnRef(id)
			return
		case core.NodeTableRef:
			nameID, ok := c.Source.Parsed.Child(id, core.AttrTableRefName)
			if !ok {
				// Subquery in FROM
				continue
			}
			c.setContext(ContextTableRef, id, nameID)
			c.TableRefID = c.findTableRef(id)
			return
		case core.NodeSelect, core.NodeCreate:
			return
		}
	}
}

func (c *Cursor) setContext(kind ContextKind, nodeID, pathID uint32) {
	c.Context = Context{Kind: kind, NodeID: nodeID, Component: -1}
	if pathID == core.NullID {
		return
	}
	c.Context.Path = ReadNamePath(c.Source.Parsed, pathID)
	for i, comp := range c.Context.Path {
		if comp.Loc.Offset <= c.TextOffset && c.TextOffset <= comp.Loc.End() {
			c.Context.Component = i
			break
		}
	}
}

func (c *Cursor) findColumnRef(nodeID uint32) uint32 {
	a := c.Source.Analyzed
	if a == nil {
		return core.NullID
	}
	if len(c.Scopes) > 0 {
		for _, ri := range a.Scopes[c.Scopes[0]].ColumnRefs {
			if a.ColumnRefs[ri].NodeID == nodeID {
				return ri
			}
		}
	}
	for i := range a.ColumnRefs {
		if a.ColumnRefs[i].NodeID == nodeID {
			return uint32(i)
		}
	}
	return core.NullID
}

func (c *Cursor) findTableRef(nodeID uint32) uint32 {
	a := c.Source.Analyzed
	if a == nil {
		return core.NullID
	}
	if len(c.Scopes) > 0 {
		for _, ri := range a.Scopes[c.Scopes[0]].TableRefs {
			if a.TableRefs[ri].NodeID == nodeID {
				return ri
			}
		}
	}
	for i := range a.TableRefs {
		if a.TableRefs[i].NodeID == nodeID {
			return uint32(i)
		}
	}
	return core.NullID
}

// Symbol returns the text of the symbol the cursor is placed on.
func (c *Cursor) Symbol() string {
	return c.Source.Scanned.ReadText(c.Location.Symbol.Loc)
}

// Node returns the AST node under the cursor.
func (c *Cursor) Node() (core.Node, bool) {
	if c.NodeID == core.NullID {
		return core.Node{}, false
	}
	return c.Source.Parsed.Nodes[c.NodeID], true
}
