package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/pkg/catalog"
)

func setupTestBase(t *testing.T, cfg Config) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	base := NewBase(nil)
	base.DB = db
	base.Cfg = cfg
	t.Cleanup(func() { _ = db.Close() })
	return &base, mock
}

func TestBaseSQLAdapter_Close(t *testing.T) {
	base := NewBase(nil)
	assert.NoError(t, base.Close(), "close with nil DB")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	base.DB = db
	assert.True(t, base.IsConnected())
	require.NoError(t, base.Close())
	assert.False(t, base.IsConnected())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInformationSchemaQuery_Build(t *testing.T) {
	tests := []struct {
		name     string
		query    InformationSchemaQuery
		schemas  []string
		contains []string
		args     []any
	}{
		{
			name:     "all schemas",
			query:    InformationSchemaQuery{Placeholder: QuestionPlaceholder},
			contains: []string{"FROM information_schema.columns", "ORDER BY table_catalog"},
		},
		{
			name: "system schemas excluded",
			query: InformationSchemaQuery{
				Placeholder:   DollarPlaceholder,
				SystemSchemas: []string{"pg_catalog", "information_schema"},
			},
			contains: []string{"table_schema NOT IN ($1, $2)"},
			args:     []any{"pg_catalog", "information_schema"},
		},
		{
			name: "schema filter numbers after system schemas",
			query: InformationSchemaQuery{
				Placeholder:   DollarPlaceholder,
				SystemSchemas: []string{"pg_catalog"},
			},
			schemas:  []string{"public", "sales"},
			contains: []string{"NOT IN ($1) AND table_schema IN ($2, $3)"},
			args:     []any{"pg_catalog", "public", "sales"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.query.Build(tt.schemas)
			for _, c := range tt.contains {
				assert.Contains(t, query, c)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestBaseSQLAdapter_LoadInformationSchema(t *testing.T) {
	base, mock := setupTestBase(t, Config{Name: "warehouse", Schemas: []string{"main", "sales"}})

	rows := sqlmock.NewRows([]string{"table_catalog", "table_schema", "table_name", "column_name"}).
		AddRow("db", "main", "customer", "id").
		AddRow("db", "main", "customer", "name").
		AddRow("db", "main", "orders", "id").
		AddRow("db", "sales", "region", "code")
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("main", "sales").
		WillReturnRows(rows)

	descs, err := base.LoadInformationSchema(context.Background(), InformationSchemaQuery{Placeholder: QuestionPlaceholder})
	require.NoError(t, err)
	assert.Equal(t, []catalog.SchemaDescriptor{
		{DatabaseName: "db", SchemaName: "main", Tables: []catalog.TableDescriptor{
			{TableName: "customer", Columns: []catalog.ColumnDescriptor{{ColumnName: "id"}, {ColumnName: "name"}}},
			{TableName: "orders", Columns: []catalog.ColumnDescriptor{{ColumnName: "id"}}},
		}},
		{DatabaseName: "db", SchemaName: "sales", Tables: []catalog.TableDescriptor{
			{TableName: "region", Columns: []catalog.ColumnDescriptor{{ColumnName: "code"}}},
		}},
	}, descs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_LoadInformationSchemaErrors(t *testing.T) {
	base := NewBase(nil)
	_, err := base.LoadInformationSchema(context.Background(), InformationSchemaQuery{Placeholder: QuestionPlaceholder})
	assert.ErrorIs(t, err, ErrNotConnected)

	connected, mock := setupTestBase(t, Config{})
	mock.ExpectQuery("FROM information_schema.columns").WillReturnError(assert.AnError)
	_, err = connected.LoadInformationSchema(context.Background(), InformationSchemaQuery{Placeholder: QuestionPlaceholder})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to query column metadata")
}

func TestDecodeParams(t *testing.T) {
	type params struct {
		Extensions []string          `mapstructure:"extensions"`
		Threads    int               `mapstructure:"threads"`
		Settings   map[string]string `mapstructure:"settings"`
	}

	var p params
	require.NoError(t, DecodeParams(map[string]any{
		"extensions": []any{"httpfs"},
		"threads":    "4",
		"settings":   map[string]any{"memory_limit": "1GB"},
	}, &p))
	assert.Equal(t, params{
		Extensions: []string{"httpfs"},
		Threads:    4,
		Settings:   map[string]string{"memory_limit": "1GB"},
	}, p)

	assert.NoError(t, DecodeParams(nil, &p))
	assert.Error(t, DecodeParams(map[string]any{"unknown": 1}, &p))
}
