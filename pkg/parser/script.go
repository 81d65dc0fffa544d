package parser

import (
	"sort"
	"time"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

// ParsedScript is the immutable output of a parse.
type ParsedScript struct {
	ExternalID uint32
	Scanned    *scanner.ScannedScript
	Nodes      []core.Node
	Statements []core.Statement
	Errors     []*ParseError
	// Names extends the scanned registry with keywords used as names.
	Names    *names.Registry
	Duration time.Duration
}

// Node returns the node with the given id.
func (s *ParsedScript) Node(id uint32) core.Node {
	return s.Nodes[id]
}

// Children returns the direct children of a node.
func (s *ParsedScript) Children(id uint32) []core.Node {
	begin, end := s.Nodes[id].Children()
	return s.Nodes[begin:end]
}

// Child returns the id of the child with the given attribute, or false.
func (s *ParsedScript) Child(id uint32, attr core.AttributeKey) (uint32, bool) {
	begin, end := s.Nodes[id].Children()
	for i := begin; i < end; i++ {
		if s.Nodes[i].Attr == attr {
			return i, true
		}
	}
	return core.NullID, false
}

// StatementOf returns the statement that owns a node.
func (s *ParsedScript) StatementOf(id uint32) (uint32, bool) {
	i := sort.Search(len(s.Statements), func(i int) bool {
		stmt := s.Statements[i]
		return stmt.NodesBegin+stmt.NodeCount > id
	})
	if i == len(s.Statements) || s.Statements[i].NodesBegin > id {
		return core.NullID, false
	}
	return uint32(i), true
}

// FindNodeAtOffset returns the innermost node covering offset.
// The statement is the last one starting at or before offset. Descending,
// a child containing the offset wins over a child that ends at offset.
func (s *ParsedScript) FindNodeAtOffset(offset uint32) (stmt, node uint32, ok bool) {
	upper := sort.Search(len(s.Statements), func(i int) bool {
		return s.Nodes[s.Statements[i].Root].Loc.Offset > offset
	})
	if upper == 0 {
		return core.NullID, core.NullID, false
	}
	stmt = uint32(upper - 1)
	node = s.Statements[stmt].Root

	for s.Nodes[node].ChildrenCount > 0 {
		begin, end := s.Nodes[node].Children()
		next := core.NullID
		for i := begin; i < end; i++ {
			loc := s.Nodes[i].Loc
			if loc.Offset <= offset && offset < loc.End() {
				next = i
			} else if loc.End() == offset && next == core.NullID {
				next = i
			}
		}
		if next == core.NullID {
			break
		}
		node = next
	}
	return stmt, node, true
}

// Diagnostics converts the parse errors into diagnostics.
func (s *ParsedScript) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, 0, len(s.Errors))
	for _, err := range s.Errors {
		out = append(out, core.Diagnostic{
			Severity: core.SeverityError,
			Loc:      err.Loc,
			Source:   "parser",
			Message:  err.Message,
		})
	}
	return out
}
