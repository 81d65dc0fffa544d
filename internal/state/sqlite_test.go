package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/testutil"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var shopSchemas = []catalog.SchemaDescriptor{
	{DatabaseName: "shop", SchemaName: "public", Tables: []catalog.TableDescriptor{
		{TableName: "customer", Columns: []catalog.ColumnDescriptor{{ColumnName: "c_custkey"}, {ColumnName: "c_name"}}},
		{TableName: "empty"},
	}},
	{DatabaseName: "shop", SchemaName: "sales", Tables: []catalog.TableDescriptor{
		{TableName: "region", Columns: []catalog.ColumnDescriptor{{ColumnName: "r_code"}}},
	}},
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.ListSources(context.Background())
	assert.ErrorIs(t, err, ErrNotOpened)
}

func TestSQLiteStore_Sources(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	warehouse, err := store.UpsertSource(ctx, "warehouse", "postgres", 1)
	require.NoError(t, err)
	assert.Equal(t, SourceIDBase, warehouse.ExternalID)

	local, err := store.UpsertSource(ctx, "local", "duckdb", 0)
	require.NoError(t, err)
	assert.Equal(t, SourceIDBase+1, local.ExternalID)

	updated, err := store.UpsertSource(ctx, "warehouse", "postgres", 3)
	require.NoError(t, err)
	assert.Equal(t, warehouse.ExternalID, updated.ExternalID, "upsert keeps the external id")
	assert.Equal(t, uint32(3), updated.Rank)

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "local", sources[0].Name)

	require.NoError(t, store.DeleteSource(ctx, "local"))
	assert.ErrorIs(t, store.DeleteSource(ctx, "local"), ErrSourceNotFound)
	_, err = store.GetSource(ctx, "local")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestSQLiteStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	_, err := store.UpsertSource(ctx, "warehouse", "postgres", 0)
	require.NoError(t, err)

	snap, schemas, err := store.LatestSnapshot(ctx, "warehouse")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Nil(t, schemas)

	first, err := store.SaveSnapshot(ctx, "warehouse", shopSchemas[:1])
	require.NoError(t, err)
	second, err := store.SaveSnapshot(ctx, "warehouse", shopSchemas)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 3, second.TableCount)

	latest, schemas, err := store.LatestSnapshot(ctx, "warehouse")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, shopSchemas, schemas)

	list, err := store.ListSnapshots(ctx, "warehouse")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	deleted, err := store.PruneSnapshots(ctx, "warehouse", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.SaveSnapshot(ctx, "unknown", shopSchemas)
	assert.Error(t, err, "snapshots reference a registered source")
}

func TestSQLiteStore_RestoreCatalog(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	src, err := store.UpsertSource(ctx, "warehouse", "postgres", 0)
	require.NoError(t, err)
	_, err = store.UpsertSource(ctx, "never_fetched", "duckdb", 0)
	require.NoError(t, err)
	_, err = store.SaveSnapshot(ctx, "warehouse", shopSchemas)
	require.NoError(t, err)

	cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	n, err := store.RestoreCatalog(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, cat.Contains(src.ExternalID))

	table, err := cat.CreateSnapshot().ResolveTable(catalog.QualifiedTableName{
		Database: "shop", Schema: "sales", Table: "region",
	}, core.NullID)
	require.NoError(t, err)
	require.NotNil(t, table)

	// Restoring twice replaces the pool.
	n, err = store.RestoreCatalog(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
