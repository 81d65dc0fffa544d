package catalog

import (
	"github.com/leapstack-labs/dashql/pkg/names"
)

// EntryKind distinguishes descriptor pools from script entries.
type EntryKind uint8

// Entry kinds.
const (
	EntryDescriptorPool EntryKind = iota
	EntryScript
)

func (k EntryKind) String() string {
	if k == EntryScript {
		return "SCRIPT"
	}
	return "DESCRIPTOR_POOL"
}

// Entry is a ranked contributor of tables.
type Entry interface {
	ExternalID() uint32
	Kind() EntryKind
	// Tables returns the declared tables, indexed by their object index.
	Tables() []*Table
	// Schemas returns the (database, schema) pairs the entry declares.
	Schemas() []QualifiedSchemaName
	// ResolveTable looks up a fully qualified table name.
	ResolveTable(name QualifiedTableName) *Table
	// ResolveTableByIndex looks up a table by its entry-local index.
	ResolveTableByIndex(index uint32) *Table
	// ResolveColumn returns all declared columns with the given name.
	ResolveColumn(name string) []TableColumn
	// Names returns the tagged names of the entry for completion.
	Names() *names.Registry
}

// ScriptEntry is an analyzed script that can be loaded into a catalog.
type ScriptEntry interface {
	Entry
	// Origin identifies the script the entry was analyzed from. Loading an
	// entry with the origin of an already loaded one replaces it.
	Origin() any
}

// RankedEntry is an entry together with its rank.
type RankedEntry struct {
	Entry Entry
	Rank  uint32
}

// EntryDescription is a readable dump of an entry.
type EntryDescription struct {
	ExternalID uint32             `json:"external_id"`
	Kind       EntryKind          `json:"kind"`
	Rank       uint32             `json:"rank"`
	Schemas    []SchemaDescriptor `json:"schemas"`
}

// Describe groups the tables of an entry by schema.
func Describe(e Entry, rank uint32) EntryDescription {
	out := EntryDescription{
		ExternalID: e.ExternalID(),
		Kind:       e.Kind(),
		Rank:       rank,
		Schemas:    []SchemaDescriptor{},
	}
	schemaIdx := make(map[QualifiedSchemaName]int)
	for _, t := range e.Tables() {
		key := t.Name.SchemaName()
		i, ok := schemaIdx[key]
		if !ok {
			i = len(out.Schemas)
			schemaIdx[key] = i
			out.Schemas = append(out.Schemas, SchemaDescriptor{
				DatabaseName: key.Database,
				SchemaName:   key.Schema,
				Tables:       []TableDescriptor{},
			})
		}
		table := TableDescriptor{
			TableID:   t.ObjectID.Index(),
			TableName: t.Name.Table,
			Columns:   make([]ColumnDescriptor, 0, len(t.Columns)),
		}
		for _, c := range t.Columns {
			table.Columns = append(table.Columns, ColumnDescriptor{ColumnName: c.Name})
		}
		out.Schemas[i].Tables = append(out.Schemas[i].Tables, table)
	}
	return out
}
