package analyzer

import (
	"time"

	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
	"github.com/leapstack-labs/dashql/pkg/parser"
)

// TableReference is a table named in a FROM clause.
type TableReference struct {
	ID          core.ExternalObjectID
	NodeID      uint32
	NameNodeID  uint32
	StatementID uint32
	ScopeID     uint32
	Loc         core.Location
	// Name is qualified with the catalog defaults.
	Name  catalog.QualifiedTableName
	Alias string

	Resolved   bool
	DatabaseID uint32
	SchemaID   uint32
	TableID    core.ExternalObjectID
}

// ColumnReference is a column named in an expression.
type ColumnReference struct {
	ID          core.ExternalObjectID
	NodeID      uint32
	PathNodeID  uint32
	StatementID uint32
	ScopeID     uint32
	Loc         core.Location
	// TableAlias is empty for unqualified references.
	TableAlias string
	Column     string

	Resolved    bool
	DatabaseID  uint32
	SchemaID    uint32
	TableID     core.ExternalObjectID
	ColumnIndex uint32
}

// NameScope groups the references of one SELECT or CREATE statement.
type NameScope struct {
	ID          uint32
	NodeID      uint32
	StatementID uint32
	Parent      uint32
	Children    []uint32
	TableRefs   []uint32
	ColumnRefs  []uint32

	// Tables visible by alias or name, in registration order.
	aliases []string
	tables  map[string]*catalog.Table
}

// ResolveAlias returns the table bound to alias in this scope.
func (s *NameScope) ResolveAlias(alias string) (*catalog.Table, bool) {
	t, ok := s.tables[alias]
	return t, ok
}

// Aliases returns the names bound in this scope in FROM order.
func (s *NameScope) Aliases() []string {
	return s.aliases
}

// DatabaseDeclaration is a database referenced by a declared table.
type DatabaseDeclaration struct {
	Name       string
	DatabaseID uint32
}

// SchemaDeclaration is a schema referenced by a declared table.
type SchemaDeclaration struct {
	DatabaseName string
	SchemaName   string
	DatabaseID   uint32
	SchemaID     uint32
}

// AnalyzedScript is the immutable output of an analysis.
type AnalyzedScript struct {
	*catalog.TableIndex

	Parsed         *parser.ParsedScript
	CatalogVersion uint64
	Databases      []DatabaseDeclaration
	SchemaDecls    []SchemaDeclaration
	TableRefs      []TableReference
	ColumnRefs     []ColumnReference
	Scopes         []NameScope
	Errors         []*Error
	// IndexedTableRefs and IndexedColumnRefs hold the resolved references
	// sorted by catalog identity.
	IndexedTableRefs  []IndexedTableRef
	IndexedColumnRefs []IndexedColumnRef
	Duration          time.Duration

	externalID uint32
	origin     any
	names      *names.Registry
	scopeRoots map[uint32]uint32
}

var _ catalog.ScriptEntry = (*AnalyzedScript)(nil)

// ExternalID implements catalog.Entry.
func (s *AnalyzedScript) ExternalID() uint32 { return s.externalID }

// Kind implements catalog.Entry.
func (s *AnalyzedScript) Kind() catalog.EntryKind { return catalog.EntryScript }

// Names implements catalog.Entry. Names are tagged with their roles.
func (s *AnalyzedScript) Names() *names.Registry { return s.names }

// Origin implements catalog.ScriptEntry.
func (s *AnalyzedScript) Origin() any { return s.origin }

// ScopeAt returns the scope created for a SELECT or CREATE node.
func (s *AnalyzedScript) ScopeAt(nodeID uint32) (uint32, bool) {
	id, ok := s.scopeRoots[nodeID]
	return id, ok
}

// Diagnostics converts the analyzer errors into diagnostics.
func (s *AnalyzedScript) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, 0, len(s.Errors))
	for _, err := range s.Errors {
		out = append(out, core.Diagnostic{
			Severity: core.SeverityError,
			Loc:      err.Loc,
			Source:   "analyzer",
			Code:     err.Type.String(),
			Message:  err.Message,
		})
	}
	return out
}
