package schemafile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
)

const shopSchema = `
database: shop
schemas:
  - schema: public
    tables:
      - name: customer
        columns: [c_custkey, c_name]
      - name: orders
        columns:
          - name: o_orderkey
  - database: archive
    schema: old
    tables:
      - name: orders_2019
        columns: [o_orderkey]
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(shopSchema))
	require.NoError(t, err)

	assert.Equal(t, "shop", f.Database)
	assert.Equal(t, []catalog.SchemaDescriptor{
		{DatabaseName: "shop", SchemaName: "public", Tables: []catalog.TableDescriptor{
			{TableName: "customer", Columns: []catalog.ColumnDescriptor{{ColumnName: "c_custkey"}, {ColumnName: "c_name"}}},
			{TableName: "orders", Columns: []catalog.ColumnDescriptor{{ColumnName: "o_orderkey"}}},
		}},
		{DatabaseName: "archive", SchemaName: "old", Tables: []catalog.TableDescriptor{
			{TableName: "orders_2019", Columns: []catalog.ColumnDescriptor{{ColumnName: "o_orderkey"}}},
		}},
	}, f.Schemas)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target error
	}{
		{name: "unknown key", input: "databse: shop\n"},
		{name: "bad column", input: "schemas:\n  - tables:\n      - name: t\n        columns: [[a]]\n"},
		{name: "empty table name", input: "schemas:\n  - tables:\n      - columns: [a]\n", target: core.ErrTableNameEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Schemas)
}

func TestEncodeRoundTrip(t *testing.T) {
	f, err := Parse([]byte(shopSchema))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f.Schemas))
	again, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f.Schemas, again.Schemas)
}

func TestLoadAndGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(shopSchema), 0o600))
	}

	paths, err := Glob([]string{filepath.Join(dir, "*.yaml"), filepath.Join(dir, "a.*")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml")}, paths)

	f, err := Load(paths[0])
	require.NoError(t, err)
	assert.Equal(t, paths[0], f.Path)
	assert.Len(t, f.Schemas, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
