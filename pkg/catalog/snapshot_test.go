package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/pkg/core"
)

func TestSnapshot_Flatten(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptors(1, []SchemaDescriptor{
		{DatabaseName: "db2", SchemaName: "s", Tables: []TableDescriptor{
			{TableName: "zeta", Columns: []ColumnDescriptor{{ColumnName: "b"}, {ColumnName: "a"}}},
			{TableName: "alpha"},
		}},
		{DatabaseName: "db1", SchemaName: "s", Tables: []TableDescriptor{}},
	}))

	flat := c.CreateSnapshot().Flatten()
	require.Len(t, flat.Databases, 2)
	assert.Equal(t, "db1", flat.Databases[0].Name)
	assert.Equal(t, "db2", flat.Databases[1].Name)
	assert.Equal(t, uint32(1), flat.Databases[0].ChildCount, "empty schemas are kept")

	require.Len(t, flat.Schemas, 2)
	assert.Equal(t, uint32(1), flat.Schemas[1].FlatParentIdx)
	assert.Equal(t, uint32(0), flat.Schemas[1].ChildBegin)
	assert.Equal(t, uint32(2), flat.Schemas[1].ChildCount)

	require.Len(t, flat.Tables, 2)
	assert.Equal(t, "alpha", flat.Tables[0].Name)
	assert.Equal(t, "zeta", flat.Tables[1].Name)
	assert.Equal(t, uint32(0), flat.Tables[1].ChildBegin)

	require.Len(t, flat.Columns, 2)
	assert.Equal(t, "b", flat.Columns[0].Name, "columns keep declaration order")
	assert.Equal(t, uint32(1), flat.Columns[1].ColumnIndex)

	idx, ok := flat.FindTable(core.NewExternalObjectID(1, 0))
	require.True(t, ok)
	assert.Equal(t, "zeta", flat.Tables[idx].Name)
	_, ok = flat.FindTable(core.NewExternalObjectID(1, 7))
	assert.False(t, ok)

	db, ok := flat.FindDatabase(flat.Databases[1].DatabaseID)
	require.True(t, ok)
	assert.Equal(t, uint32(1), db)
	assert.Equal(t, "zeta", c.CreateSnapshot().ReadName(flat.Tables[1].NameID))

	// "s" names both schemas
	objs := flat.ObjectsNamed(flat.Schemas[0].NameID)
	assert.Equal(t, []FlatObject{{Kind: FlatObjectSchema, Index: 0}, {Kind: FlatObjectSchema, Index: 1}}, objs)
	assert.Equal(t, []FlatObject{{Kind: FlatObjectColumn, Index: 1}}, flat.ObjectsNamed(flat.Columns[1].NameID))
}

func TestSnapshot_TablesSortedByRankForEqualNames(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptor(1, SchemaDescriptor{
		DatabaseName: "db", SchemaName: "s", Tables: []TableDescriptor{{TableName: "t"}},
	}))
	require.NoError(t, c.LoadScript(newFakeScript(2, "x", table("db", "s", "t")), 1))

	flat := c.CreateSnapshot().Flatten()
	require.Len(t, flat.Tables, 2)
	assert.Equal(t, uint32(2), flat.Tables[0].ObjectID.ExternalID())
	assert.Equal(t, uint32(0), flat.Tables[0].FlatEntryIdx)
	assert.Equal(t, uint32(1), flat.Tables[1].FlatEntryIdx)
}

func TestSnapshot_ConcurrentReaders(t *testing.T) {
	c := setupTestCatalog(t)
	require.NoError(t, c.AddDescriptorPool(1, 10))
	require.NoError(t, c.AddSchemaDescriptor(1, SchemaDescriptor{
		DatabaseName: "db", SchemaName: "s", Tables: []TableDescriptor{{TableName: "t"}},
	}))
	snap := c.CreateSnapshot()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, snap.Flatten().Tables, 1)
		}()
	}
	require.NoError(t, c.DropDescriptorPool(1))
	wg.Wait()

	assert.Empty(t, c.CreateSnapshot().Flatten().Tables)
}
