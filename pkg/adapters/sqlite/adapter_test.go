package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/pkg/adapter"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
)

func TestAdapter_LoadSchemas(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{
		Path:     filepath.Join(t.TempDir(), "shop.db"),
		Database: "shop",
	}))
	defer func() { _ = adp.Close() }()

	for _, stmt := range []string{
		"CREATE TABLE orders (o_orderkey INTEGER, o_custkey INTEGER, o_total REAL)",
		"CREATE TABLE customer (c_custkey INTEGER, c_name TEXT)",
		"CREATE VIEW big_orders AS SELECT o_orderkey FROM orders WHERE o_total > 100",
	} {
		_, err := adp.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	descs, err := adp.LoadSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "shop", descs[0].DatabaseName)
	assert.Equal(t, "main", descs[0].SchemaName)
	assert.Equal(t, []catalog.TableDescriptor{
		{TableName: "big_orders", Columns: []catalog.ColumnDescriptor{{ColumnName: "o_orderkey"}}},
		{TableName: "customer", Columns: []catalog.ColumnDescriptor{{ColumnName: "c_custkey"}, {ColumnName: "c_name"}}},
		{TableName: "orders", Columns: []catalog.ColumnDescriptor{
			{ColumnName: "o_orderkey"}, {ColumnName: "o_custkey"}, {ColumnName: "o_total"},
		}},
	}, descs[0].Tables)
}

func TestAdapter_LoadIntoCatalog(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{}))
	defer func() { _ = adp.Close() }()
	_, err := adp.DB.ExecContext(ctx, "CREATE TABLE region (r_code TEXT)")
	require.NoError(t, err)

	descs, err := adp.LoadSchemas(ctx)
	require.NoError(t, err)

	cat := catalog.New()
	require.NoError(t, cat.AddDescriptorPool(7, 0))
	require.NoError(t, cat.AddSchemaDescriptors(7, descs))
	table, err := cat.CreateSnapshot().ResolveTable(catalog.QualifiedTableName{Schema: "main", Table: "region"}, core.NullID)
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, "r_code", table.Columns[0].Name)
}

func TestAdapter_NotConnected(t *testing.T) {
	_, err := New(nil).LoadSchemas(context.Background())
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}
