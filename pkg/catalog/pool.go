package catalog

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
)

// DescriptorPool is an entry whose tables come from schema descriptors.
// Pools are immutable: adding descriptors yields a new pool that shares
// unchanged tables with the old one.
type DescriptorPool struct {
	*TableIndex

	externalID  uint32
	nextTableID uint32
	// Contributions by schema, in first registration order.
	order         []QualifiedSchemaName
	contributions map[QualifiedSchemaName][]*Table
	names         *names.Registry
}

func newDescriptorPool(externalID uint32) *DescriptorPool {
	return &DescriptorPool{
		TableIndex:    NewTableIndex(nil),
		externalID:    externalID,
		contributions: make(map[QualifiedSchemaName][]*Table),
		names:         names.NewRegistry(),
	}
}

// ExternalID implements Entry.
func (p *DescriptorPool) ExternalID() uint32 { return p.externalID }

// Kind implements Entry.
func (p *DescriptorPool) Kind() EntryKind { return EntryDescriptorPool }

// Names implements Entry.
func (p *DescriptorPool) Names() *names.Registry { return p.names }

// Schemas implements Entry. Schemas registered with an empty table list
// are included.
func (p *DescriptorPool) Schemas() []QualifiedSchemaName { return p.order }

// withDescriptors returns a pool with the descriptors applied. A descriptor
// for a schema that was registered before replaces the earlier tables of
// that schema. Table ids are never reused.
func (p *DescriptorPool) withDescriptors(descs []SchemaDescriptor, database, schema string) (*DescriptorPool, error) {
	next := &DescriptorPool{
		externalID:    p.externalID,
		nextTableID:   p.nextTableID,
		order:         append([]QualifiedSchemaName(nil), p.order...),
		contributions: make(map[QualifiedSchemaName][]*Table, len(p.contributions)+len(descs)),
	}
	for k, v := range p.contributions {
		next.contributions[k] = v
	}
	for _, desc := range descs {
		if desc.Tables == nil {
			return nil, core.ErrTablesNil
		}
		key := QualifiedSchemaName{Database: desc.DatabaseName, Schema: desc.SchemaName}
		if key.Database == "" {
			key.Database = database
		}
		if key.Schema == "" {
			key.Schema = schema
		}
		seen := make(map[string]struct{}, len(desc.Tables))
		tables := make([]*Table, 0, len(desc.Tables))
		for _, td := range desc.Tables {
			if td.TableName == "" {
				return nil, core.ErrTableNameEmpty
			}
			if _, dup := seen[td.TableName]; dup {
				return nil, fmt.Errorf("%w: %s.%s", core.ErrTableNameCollision, key, td.TableName)
			}
			seen[td.TableName] = struct{}{}
			columns := make([]Column, 0, len(td.Columns))
			for _, cd := range td.Columns {
				columns = append(columns, Column{Name: cd.ColumnName, NodeID: core.NullID})
			}
			name := QualifiedTableName{Database: key.Database, Schema: key.Schema, Table: td.TableName}
			tables = append(tables, NewTable(core.NewExternalObjectID(p.externalID, next.nextTableID), name, columns))
			next.nextTableID++
		}
		if _, ok := next.contributions[key]; !ok {
			next.order = append(next.order, key)
		}
		next.contributions[key] = tables
	}
	next.rebuild()
	return next, nil
}

func (p *DescriptorPool) rebuild() {
	var tables []*Table
	for _, key := range p.order {
		tables = append(tables, p.contributions[key]...)
	}
	p.TableIndex = NewTableIndex(tables)
	p.names = names.NewRegistry()
	for _, t := range tables {
		p.names.Register(t.Name.Database, core.Location{}, core.NameTagDatabase)
		p.names.Register(t.Name.Schema, core.Location{}, core.NameTagSchema)
		p.names.Register(t.Name.Table, core.Location{}, core.NameTagTable)
		for _, c := range t.Columns {
			p.names.Register(c.Name, core.Location{}, core.NameTagColumn)
		}
	}
}

