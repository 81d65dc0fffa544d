package catalog

import (
	"strings"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// QualifiedSchemaName is a (database, schema) pair.
type QualifiedSchemaName struct {
	Database string
	Schema   string
}

func (n QualifiedSchemaName) String() string {
	return joinName(n.Database, n.Schema)
}

// QualifiedTableName is a possibly partial table name.
type QualifiedTableName struct {
	Database string
	Schema   string
	Table    string
}

// SchemaName returns the (database, schema) part of the name.
func (n QualifiedTableName) SchemaName() QualifiedSchemaName {
	return QualifiedSchemaName{Database: n.Database, Schema: n.Schema}
}

// Qualify fills empty database and schema names with the given defaults.
func (n QualifiedTableName) Qualify(database, schema string) QualifiedTableName {
	if n.Database == "" {
		n.Database = database
	}
	if n.Schema == "" {
		n.Schema = schema
	}
	return n
}

func (n QualifiedTableName) String() string {
	return joinName(n.Database, n.Schema, n.Table)
}

func joinName(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// Column is a table column.
type Column struct {
	Name string
	// NodeID is the declaring AST node in the owning script, NullID for pools.
	NodeID uint32
	Loc    core.Location
}

// Table is a table declared by a catalog entry.
type Table struct {
	ObjectID core.ExternalObjectID
	Name     QualifiedTableName
	Columns  []Column
	// NodeID and StatementID locate the declaration in the owning script.
	// Both are NullID for tables of descriptor pools.
	NodeID      uint32
	StatementID uint32
	Loc         core.Location

	columnIndex map[string]int
}

// NewTable creates a table. Columns are kept in declaration order.
func NewTable(id core.ExternalObjectID, name QualifiedTableName, columns []Column) *Table {
	t := &Table{
		ObjectID:    id,
		Name:        name,
		Columns:     columns,
		NodeID:      core.NullID,
		StatementID: core.NullID,
		columnIndex: make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, ok := t.columnIndex[c.Name]; !ok {
			t.columnIndex[c.Name] = i
		}
	}
	return t
}

// ColumnIndex returns the position of the first column with the given name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.columnIndex[name]
	return i, ok
}

// TableColumn is a column found by name.
type TableColumn struct {
	Table *Table
	Index int
}

// TableIndex indexes a fixed list of tables by qualified name and by
// column name. Entries embed it to implement name resolution.
type TableIndex struct {
	tables   []*Table
	byName   map[QualifiedTableName]*Table
	byColumn map[string][]TableColumn
	byIndex  map[uint32]*Table
	schemas  []QualifiedSchemaName
}

// NewTableIndex indexes tables. Names must be fully qualified. If two
// tables share a name, the first one wins.
func NewTableIndex(tables []*Table) *TableIndex {
	idx := &TableIndex{
		tables:   tables,
		byName:   make(map[QualifiedTableName]*Table, len(tables)),
		byColumn: make(map[string][]TableColumn),
		byIndex:  make(map[uint32]*Table, len(tables)),
	}
	seen := make(map[QualifiedSchemaName]struct{})
	for _, t := range tables {
		if _, ok := idx.byName[t.Name]; !ok {
			idx.byName[t.Name] = t
		}
		idx.byIndex[t.ObjectID.Index()] = t
		for i, c := range t.Columns {
			idx.byColumn[c.Name] = append(idx.byColumn[c.Name], TableColumn{Table: t, Index: i})
		}
		if _, ok := seen[t.Name.SchemaName()]; !ok {
			seen[t.Name.SchemaName()] = struct{}{}
			idx.schemas = append(idx.schemas, t.Name.SchemaName())
		}
	}
	return idx
}

// Tables returns the tables in declaration order.
func (idx *TableIndex) Tables() []*Table {
	return idx.tables
}

// Schemas returns the distinct (database, schema) pairs in declaration order.
func (idx *TableIndex) Schemas() []QualifiedSchemaName {
	return idx.schemas
}

// ResolveTable returns the table with the given fully qualified name.
func (idx *TableIndex) ResolveTable(name QualifiedTableName) *Table {
	return idx.byName[name]
}

// ResolveTableByIndex returns the table with the given entry-local index.
// Indices of pool tables are not positions in Tables once a schema was
// replaced.
func (idx *TableIndex) ResolveTableByIndex(index uint32) *Table {
	return idx.byIndex[index]
}

// ResolveColumn returns all columns with the given name.
func (idx *TableIndex) ResolveColumn(name string) []TableColumn {
	return idx.byColumn[name]
}
