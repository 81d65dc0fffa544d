package catalog

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
)

// Snapshot is an immutable view of a catalog at one version.
type Snapshot struct {
	state           *state
	defaultDatabase string
	defaultSchema   string

	flatOnce sync.Once
	flat     *Flat
}

// Version returns the catalog version the snapshot was taken at.
func (s *Snapshot) Version() uint64 { return s.state.version }

// DefaultDatabase returns the database used for partial names.
func (s *Snapshot) DefaultDatabase() string { return s.defaultDatabase }

// DefaultSchema returns the schema used for partial names.
func (s *Snapshot) DefaultSchema() string { return s.defaultSchema }

// Qualify fills empty database and schema names with the defaults.
func (s *Snapshot) Qualify(name QualifiedTableName) QualifiedTableName {
	return name.Qualify(s.defaultDatabase, s.defaultSchema)
}

// Entries returns the entries ranked by (rank, external id).
func (s *Snapshot) Entries() []RankedEntry {
	out := make([]RankedEntry, len(s.state.ranked))
	for i, e := range s.state.ranked {
		out[i] = RankedEntry{Entry: e.entry, Rank: e.rank}
	}
	return out
}

// Entry returns the entry with the external id.
func (s *Snapshot) Entry(externalID uint32) (Entry, bool) {
	e, ok := s.state.entries[externalID]
	if !ok {
		return nil, false
	}
	return e.entry, true
}

// ResolveTable resolves a possibly partial table name. Entries are searched
// by ascending rank, the entry with id ignore is skipped (pass core.NullID
// to search all). Two matches of equal rank return a *CollisionError.
// A missing table returns (nil, nil).
func (s *Snapshot) ResolveTable(name QualifiedTableName, ignore uint32) (*Table, error) {
	name = s.Qualify(name)
	var (
		found     *Table
		foundRank uint32
	)
	for _, e := range s.state.ranked {
		if e.entry.ExternalID() == ignore {
			continue
		}
		if found != nil && e.rank > foundRank {
			break
		}
		t := e.entry.ResolveTable(name)
		if t == nil {
			continue
		}
		if found != nil {
			return nil, &CollisionError{
				Table:  name,
				First:  found.ObjectID.ExternalID(),
				Second: e.entry.ExternalID(),
			}
		}
		found, foundRank = t, e.rank
	}
	return found, nil
}

// ResolveTableByID returns the table with the object id.
func (s *Snapshot) ResolveTableByID(id core.ExternalObjectID) *Table {
	if id.IsNull() {
		return nil
	}
	e, ok := s.state.entries[id.ExternalID()]
	if !ok {
		return nil
	}
	return e.entry.ResolveTableByIndex(id.Index())
}

// ResolveColumn returns every column with the given name in ranked entry
// order, skipping the entry with id ignore.
func (s *Snapshot) ResolveColumn(name string, ignore uint32) []TableColumn {
	var out []TableColumn
	for _, e := range s.state.ranked {
		if e.entry.ExternalID() == ignore {
			continue
		}
		out = append(out, e.entry.ResolveColumn(name)...)
	}
	return out
}

// DatabaseID returns the catalog id of a database name.
func (s *Snapshot) DatabaseID(name string) (uint32, bool) {
	id, ok := s.state.databaseIDs[name]
	return id, ok
}

// SchemaID returns the catalog id of a schema.
func (s *Snapshot) SchemaID(name QualifiedSchemaName) (uint32, bool) {
	id, ok := s.state.schemaIDs[name]
	return id, ok
}

// NextDatabaseID returns the id the next new database will receive.
func (s *Snapshot) NextDatabaseID() uint32 { return uint32(len(s.state.databaseIDs)) }

// NextSchemaID returns the id the next new schema will receive.
func (s *Snapshot) NextSchemaID() uint32 { return uint32(len(s.state.schemaIDs)) }

// FlatDatabase is a database in the flattened catalog.
type FlatDatabase struct {
	DatabaseID uint32
	Name       string
	NameID     uint32
	ChildBegin uint32
	ChildCount uint32
}

// FlatSchema is a schema in the flattened catalog.
type FlatSchema struct {
	SchemaID      uint32
	Name          string
	NameID        uint32
	FlatParentIdx uint32
	ChildBegin    uint32
	ChildCount    uint32
}

// FlatTable is a table in the flattened catalog.
type FlatTable struct {
	ObjectID      core.ExternalObjectID
	Name          string
	NameID        uint32
	FlatEntryIdx  uint32
	FlatParentIdx uint32
	ChildBegin    uint32
	ChildCount    uint32
}

// FlatColumn is a column in the flattened catalog.
type FlatColumn struct {
	Name          string
	NameID        uint32
	FlatParentIdx uint32
	ColumnIndex   uint32
}

// Flat is the catalog flattened into a database, schema, table, column
// tree. Children of a node occupy [ChildBegin, ChildBegin+ChildCount) in
// the next level. Databases and schemas are sorted by name, tables by
// name and then by entry rank, columns keep their declaration order.
type Flat struct {
	Entries   []RankedEntry
	Databases []FlatDatabase
	Schemas   []FlatSchema
	Tables    []FlatTable
	Columns   []FlatColumn
	Names     *names.Registry

	// Indices into Tables sorted by object id.
	tablesByID []uint32
	byName     map[uint32][]FlatObject
}

// FlatObjectKind is the level of a flat catalog object.
type FlatObjectKind uint8

// Flat object kinds.
const (
	FlatObjectDatabase FlatObjectKind = iota
	FlatObjectSchema
	FlatObjectTable
	FlatObjectColumn
)

// FlatObject addresses an element of one of the flat arrays.
type FlatObject struct {
	Kind  FlatObjectKind
	Index uint32
}

// ObjectsNamed returns the flat objects carrying a name id.
func (f *Flat) ObjectsNamed(nameID uint32) []FlatObject {
	return f.byName[nameID]
}

// FindTable returns the flat index of the table with the object id.
func (f *Flat) FindTable(id core.ExternalObjectID) (uint32, bool) {
	i := sort.Search(len(f.tablesByID), func(i int) bool {
		return f.Tables[f.tablesByID[i]].ObjectID >= id
	})
	if i < len(f.tablesByID) && f.Tables[f.tablesByID[i]].ObjectID == id {
		return f.tablesByID[i], true
	}
	return 0, false
}

// FindDatabase returns the flat index of the database with the catalog id.
func (f *Flat) FindDatabase(id uint32) (uint32, bool) {
	for i, db := range f.Databases {
		if db.DatabaseID == id {
			return uint32(i), true
		}
	}
	return 0, false
}

// FindSchema returns the flat index of the schema with the catalog id.
func (f *Flat) FindSchema(id uint32) (uint32, bool) {
	for i, schema := range f.Schemas {
		if schema.SchemaID == id {
			return uint32(i), true
		}
	}
	return 0, false
}

// Flatten returns the flattened catalog. It is computed once per snapshot.
func (s *Snapshot) Flatten() *Flat {
	s.flatOnce.Do(func() { s.flat = s.flatten() })
	return s.flat
}

// ReadName returns the text of a name id of the flattened catalog.
func (s *Snapshot) ReadName(id uint32) string {
	return s.Flatten().Names.Text(id)
}

type rankedTable struct {
	table    *Table
	entryIdx uint32
}

func (s *Snapshot) flatten() *Flat {
	f := &Flat{
		Entries: s.Entries(),
		Names:   names.NewRegistry(),
		byName:  make(map[uint32][]FlatObject),
	}

	// database -> schema -> tables
	tree := make(map[string]map[string][]rankedTable)
	schemaOf := func(name QualifiedSchemaName) map[string][]rankedTable {
		schemas, ok := tree[name.Database]
		if !ok {
			schemas = make(map[string][]rankedTable)
			tree[name.Database] = schemas
		}
		if _, ok := schemas[name.Schema]; !ok {
			schemas[name.Schema] = nil
		}
		return schemas
	}
	for i, e := range f.Entries {
		for _, name := range e.Entry.Schemas() {
			schemaOf(name)
		}
		for _, t := range e.Entry.Tables() {
			schemas := schemaOf(t.Name.SchemaName())
			schemas[t.Name.Schema] = append(schemas[t.Name.Schema], rankedTable{table: t, entryIdx: uint32(i)})
		}
	}

	register := func(text string, tag core.NameTags, kind FlatObjectKind, index uint32) uint32 {
		id := f.Names.Register(text, core.Location{}, tag)
		f.byName[id] = append(f.byName[id], FlatObject{Kind: kind, Index: index})
		return id
	}
	for _, dbName := range sortedKeys(tree) {
		schemas := tree[dbName]
		dbIdx := uint32(len(f.Databases))
		dbID, _ := s.DatabaseID(dbName)
		f.Databases = append(f.Databases, FlatDatabase{
			DatabaseID: dbID,
			Name:       dbName,
			NameID:     register(dbName, core.NameTagDatabase, FlatObjectDatabase, dbIdx),
			ChildBegin: uint32(len(f.Schemas)),
			ChildCount: uint32(len(schemas)),
		})
		for _, schemaName := range sortedKeys(schemas) {
			tables := schemas[schemaName]
			// Entries are visited in rank order, a stable sort keeps it for equal names.
			sort.SliceStable(tables, func(i, j int) bool {
				return tables[i].table.Name.Table < tables[j].table.Name.Table
			})
			schemaIdx := uint32(len(f.Schemas))
			schemaID, _ := s.SchemaID(QualifiedSchemaName{Database: dbName, Schema: schemaName})
			f.Schemas = append(f.Schemas, FlatSchema{
				SchemaID:      schemaID,
				Name:          schemaName,
				NameID:        register(schemaName, core.NameTagSchema, FlatObjectSchema, schemaIdx),
				FlatParentIdx: dbIdx,
				ChildBegin:    uint32(len(f.Tables)),
				ChildCount:    uint32(len(tables)),
			})
			for _, rt := range tables {
				tableIdx := uint32(len(f.Tables))
				f.Tables = append(f.Tables, FlatTable{
					ObjectID:      rt.table.ObjectID,
					Name:          rt.table.Name.Table,
					NameID:        register(rt.table.Name.Table, core.NameTagTable, FlatObjectTable, tableIdx),
					FlatEntryIdx:  rt.entryIdx,
					FlatParentIdx: schemaIdx,
					ChildBegin:    uint32(len(f.Columns)),
					ChildCount:    uint32(len(rt.table.Columns)),
				})
				for ci, c := range rt.table.Columns {
					f.Columns = append(f.Columns, FlatColumn{
						Name:          c.Name,
						NameID:        register(c.Name, core.NameTagColumn, FlatObjectColumn, uint32(len(f.Columns))),
						FlatParentIdx: tableIdx,
						ColumnIndex:   uint32(ci),
					})
				}
			}
		}
	}

	f.tablesByID = make([]uint32, len(f.Tables))
	for i := range f.tablesByID {
		f.tablesByID[i] = uint32(i)
	}
	sort.Slice(f.tablesByID, func(i, j int) bool {
		return f.Tables[f.tablesByID[i]].ObjectID < f.Tables[f.tablesByID[j]].ObjectID
	})
	return f
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Databases returns the flattened databases.
func (s *Snapshot) Databases() []FlatDatabase { return s.Flatten().Databases }

// Schemas returns the flattened schemas.
func (s *Snapshot) Schemas() []FlatSchema { return s.Flatten().Schemas }

// Tables returns the flattened tables.
func (s *Snapshot) Tables() []FlatTable { return s.Flatten().Tables }

// Columns returns the flattened columns.
func (s *Snapshot) Columns() []FlatColumn { return s.Flatten().Columns }
