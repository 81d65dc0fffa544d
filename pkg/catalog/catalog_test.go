package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/testutil"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
)

// fakeScript is a minimal script entry.
type fakeScript struct {
	*TableIndex
	id     uint32
	origin any
}

func (f *fakeScript) ExternalID() uint32     { return f.id }
func (f *fakeScript) Kind() EntryKind        { return EntryScript }
func (f *fakeScript) Names() *names.Registry { return names.NewRegistry() }
func (f *fakeScript) Origin() any            { return f.origin }

func newFakeScript(id uint32, origin any, tables ...QualifiedTableName) *fakeScript {
	ts := make([]*Table, 0, len(tables))
	for i, name := range tables {
		ts = append(ts, NewTable(core.NewExternalObjectID(id, uint32(i)), name, []Column{{Name: "id"}}))
	}
	return &fakeScript{TableIndex: NewTableIndex(ts), id: id, origin: origin}
}

func setupTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	return New(WithLogger(testutil.NewTestLogger(t)))
}

func table(db, schema, name string) QualifiedTableName {
	return QualifiedTableName{Database: db, Schema: schema, Table: name}
}

func TestCatalog_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultDatabase, c.DefaultDatabase())
	assert.Equal(t, DefaultSchema, c.DefaultSchema())

	c = New(WithDefaults("db", ""))
	assert.Equal(t, "db", c.DefaultDatabase())
	assert.Equal(t, DefaultSchema, c.DefaultSchema())
}

func TestCatalog_DescriptorPoolCollision(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))

	err := c.AddDescriptorPool(1, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrExternalIDCollision))

	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, uint32(1), collision.ExternalID)
}

func TestCatalog_AddSchemaDescriptorErrors(t *testing.T) {
	tests := []struct {
		name string
		pool uint32
		desc SchemaDescriptor
		want error
	}{
		{
			name: "unknown pool",
			pool: 2,
			desc: SchemaDescriptor{Tables: []TableDescriptor{}},
			want: core.ErrDescriptorPoolUnknown,
		},
		{
			name: "nil tables",
			pool: 1,
			desc: SchemaDescriptor{DatabaseName: "db"},
			want: core.ErrTablesNil,
		},
		{
			name: "empty table name",
			pool: 1,
			desc: SchemaDescriptor{Tables: []TableDescriptor{{TableName: ""}}},
			want: core.ErrTableNameEmpty,
		},
		{
			name: "duplicate table",
			pool: 1,
			desc: SchemaDescriptor{Tables: []TableDescriptor{{TableName: "a"}, {TableName: "a"}}},
			want: core.ErrTableNameCollision,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupTestCatalog(t)
			require.NoError(t, c.AddDescriptorPool(1, 10))
			version := c.Version()

			err := c.AddSchemaDescriptor(tt.pool, tt.desc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, version, c.Version(), "failed mutation must not bump the version")
		})
	}
}

func TestCatalog_ResolveDescriptorTable(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptor(1, SchemaDescriptor{
		DatabaseName: "db1",
		SchemaName:   "schema1",
		Tables: []TableDescriptor{
			{TableName: "table1", Columns: []ColumnDescriptor{{ColumnName: "column1"}, {ColumnName: "column2"}}},
		},
	}))

	snap := c.CreateSnapshot()
	got, err := snap.ResolveTable(table("db1", "schema1", "table1"), core.NullID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(1), got.ObjectID.ExternalID())
	assert.Equal(t, uint32(0), got.ObjectID.Index())

	idx, ok := got.ColumnIndex("column2")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	assert.Same(t, got, snap.ResolveTableByID(got.ObjectID))

	missing, err := snap.ResolveTable(table("db1", "schema1", "nope"), core.NullID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ignored, err := snap.ResolveTable(table("db1", "schema1", "table1"), 1)
	require.NoError(t, err)
	assert.Nil(t, ignored)

	dbID, ok := snap.DatabaseID("db1")
	require.True(t, ok)
	assert.Equal(t, uint32(0), dbID)
	_, ok = snap.SchemaID(QualifiedSchemaName{Database: "db1", Schema: "schema1"})
	assert.True(t, ok)
}

func TestCatalog_PartialNamesUseDefaults(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptor(1, SchemaDescriptor{
		Tables: []TableDescriptor{{TableName: "events"}},
	}))

	got, err := c.CreateSnapshot().ResolveTable(QualifiedTableName{Table: "events"}, core.NullID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, table(DefaultDatabase, DefaultSchema, "events"), got.Name)
}

func TestCatalog_DescriptorReplacesSchema(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptors(1, []SchemaDescriptor{
		{DatabaseName: "db", SchemaName: "a", Tables: []TableDescriptor{{TableName: "t1"}, {TableName: "t2"}}},
		{DatabaseName: "db", SchemaName: "b", Tables: []TableDescriptor{{TableName: "t3"}}},
	}))
	before := c.CreateSnapshot()

	require.NoError(t, c.AddSchemaDescriptor(1, SchemaDescriptor{
		DatabaseName: "db", SchemaName: "a", Tables: []TableDescriptor{{TableName: "t4"}},
	}))
	after := c.CreateSnapshot()

	old, err := after.ResolveTable(table("db", "a", "t1"), core.NullID)
	require.NoError(t, err)
	assert.Nil(t, old, "replaced schema must drop its old tables")

	t4, err := after.ResolveTable(table("db", "a", "t4"), core.NullID)
	require.NoError(t, err)
	require.NotNil(t, t4)
	assert.Equal(t, uint32(3), t4.ObjectID.Index(), "table ids are never reused")

	t3, err := after.ResolveTable(table("db", "b", "t3"), core.NullID)
	require.NoError(t, err)
	assert.NotNil(t, t3)

	// The earlier snapshot is untouched.
	t1, err := before.ResolveTable(table("db", "a", "t1"), core.NullID)
	require.NoError(t, err)
	assert.NotNil(t, t1)
	assert.Less(t, before.Version(), after.Version())
}

func TestCatalog_RankPrecedence(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptor(1, SchemaDescriptor{
		DatabaseName: "db", SchemaName: "s", Tables: []TableDescriptor{{TableName: "t"}},
	}))
	require.NoError(t, c.LoadScript(newFakeScript(2, "script-2", table("db", "s", "t")), 0))

	got, err := c.CreateSnapshot().ResolveTable(table("db", "s", "t"), core.NullID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(2), got.ObjectID.ExternalID(), "lower rank wins")

	got, err = c.CreateSnapshot().ResolveTable(table("db", "s", "t"), 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(1), got.ObjectID.ExternalID())
}

func TestCatalog_EqualRankCollision(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.LoadScript(newFakeScript(1, "a", table("db", "s", "t")), 0))
	require.NoError(t, c.LoadScript(newFakeScript(2, "b", table("db", "s", "t")), 0))

	_, err := c.CreateSnapshot().ResolveTable(table("db", "s", "t"), core.NullID)
	require.Error(t, err)
	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, uint32(1), collision.First)
	assert.Equal(t, uint32(2), collision.Second)
	assert.Equal(t, table("db", "s", "t"), collision.Table)
}

func TestCatalog_LoadScript(t *testing.T) {
	c := setupTestCatalog(t)
	require.ErrorIs(t, c.LoadScript(nil, 0), core.ErrScriptNotAnalyzed)

	origin := new(int)
	require.NoError(t, c.LoadScript(newFakeScript(1, origin, table("db", "s", "a")), 0))

	// Same origin replaces.
	require.NoError(t, c.LoadScript(newFakeScript(1, origin, table("db", "s", "b")), 0))
	snap := c.CreateSnapshot()
	a, _ := snap.ResolveTable(table("db", "s", "a"), core.NullID)
	b, _ := snap.ResolveTable(table("db", "s", "b"), core.NullID)
	assert.Nil(t, a)
	assert.NotNil(t, b)

	// Another origin collides.
	err := c.LoadScript(newFakeScript(1, new(int)), 0)
	assert.ErrorIs(t, err, core.ErrExternalIDCollision)

	// A pool with the same id collides.
	assert.ErrorIs(t, c.AddDescriptorPool(1, 0), core.ErrExternalIDCollision)

	// Dropping with another origin is a no-op.
	c.DropScript(newFakeScript(1, new(int)))
	assert.True(t, c.Contains(1))
	c.DropScript(newFakeScript(1, origin))
	assert.False(t, c.Contains(1))
}

func TestCatalog_DropDescriptorPool(t *testing.T) {
	c := setupTestCatalog(t)
	require.ErrorIs(t, c.DropDescriptorPool(1), core.ErrDescriptorPoolUnknown)
	require.NoError(t, c.LoadScript(newFakeScript(2, "s"), 0))
	require.ErrorIs(t, c.DropDescriptorPool(2), core.ErrDescriptorPoolUnknown, "scripts are not pools")

	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.DropDescriptorPool(1))
	assert.False(t, c.Contains(1))
}

func TestCatalog_ReplaceDescriptorPool(t *testing.T) {
	schemas := func(tables ...string) []SchemaDescriptor {
		descs := make([]TableDescriptor, len(tables))
		for i, name := range tables {
			descs[i] = TableDescriptor{TableName: name}
		}
		return []SchemaDescriptor{{SchemaName: "public", Tables: descs}}
	}
	resolve := func(c *Catalog, name string) *Table {
		t.Helper()
		tbl, err := c.CreateSnapshot().ResolveTable(QualifiedTableName{Table: name}, core.NullID)
		require.NoError(t, err)
		return tbl
	}

	tests := []struct {
		name    string
		replace []SchemaDescriptor
		wantErr error
		present []string
		absent  []string
	}{
		{name: "swaps tables", replace: schemas("lineitem"), present: []string{"lineitem"}, absent: []string{"orders"}},
		{name: "nil tables keep previous pool", replace: []SchemaDescriptor{{SchemaName: "public"}}, wantErr: core.ErrTablesNil, present: []string{"orders"}},
		{name: "empty table name keeps previous pool", replace: schemas(""), wantErr: core.ErrTableNameEmpty, present: []string{"orders"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupTestCatalog(t)
			require.NoError(t, c.ReplaceDescriptorPool(1, 10, schemas("orders")))
			version := c.Version()

			err := c.ReplaceDescriptorPool(1, 5, tt.replace)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, version, c.Version(), "failed replace does not commit")
			} else {
				require.NoError(t, err)
				assert.Equal(t, version+1, c.Version(), "replace is a single commit")
			}
			for _, name := range tt.present {
				assert.NotNil(t, resolve(c, name), name)
			}
			for _, name := range tt.absent {
				assert.Nil(t, resolve(c, name), name)
			}
		})
	}

	c := setupTestCatalog(t)
	require.NoError(t, c.LoadScript(newFakeScript(2, "s"), 0))
	assert.ErrorIs(t, c.ReplaceDescriptorPool(2, 0, schemas("orders")), core.ErrExternalIDCollision)
}

func TestCatalog_DescribeAndClear(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptors(1, []SchemaDescriptor{
		{DatabaseName: "db", SchemaName: "s1", Tables: []TableDescriptor{{TableName: "a", Columns: []ColumnDescriptor{{ColumnName: "x"}}}}},
		{DatabaseName: "db", SchemaName: "s2", Tables: []TableDescriptor{{TableName: "b"}}},
	}))
	require.NoError(t, c.AddDescriptorPool(2, 5))

	all := c.DescribeEntries()
	require.Len(t, all, 2)
	assert.Equal(t, uint32(2), all[0].ExternalID, "ranked by rank")

	of, err := c.DescribeEntriesOf(1)
	require.NoError(t, err)
	require.Len(t, of, 1)
	require.Len(t, of[0].Schemas, 2)
	assert.Equal(t, "s1", of[0].Schemas[0].SchemaName)
	assert.Equal(t, "x", of[0].Schemas[0].Tables[0].Columns[0].ColumnName)
	assert.Equal(t, uint32(1), of[0].Schemas[1].Tables[0].TableID)

	_, err = c.DescribeEntriesOf(9)
	assert.ErrorIs(t, err, core.ErrDescriptorPoolUnknown)

	version := c.Version()
	c.Clear()
	assert.Empty(t, c.DescribeEntries())
	assert.Greater(t, c.Version(), version)
	assert.Equal(t, uint32(0), c.CreateSnapshot().NextDatabaseID())
}

func TestQualifiedTableName_String(t *testing.T) {
	tests := []struct {
		name QualifiedTableName
		want string
	}{
		{table("db", "s", "t"), "db.s.t"},
		{table("", "s", "t"), "s.t"},
		{table("", "", "t"), "t"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.name.String())
		})
	}
}
