package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/dashql/pkg/catalog"
)

// ErrNotConnected is returned by operations that need an open connection.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed it in concrete adapters to get Close and information_schema
// introspection.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// NewBase returns a base adapter with a discard logger when logger is nil.
func NewBase(logger *slog.Logger) BaseSQLAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return BaseSQLAdapter{Logger: logger}
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	if b.Logger != nil {
		b.Logger.Debug("closing database connection", "source", b.Cfg.Name)
	}
	err := b.DB.Close()
	b.DB = nil
	return err
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// InformationSchemaQuery describes how to read information_schema.columns.
type InformationSchemaQuery struct {
	// Placeholder formats the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// SystemSchemas are never loaded.
	SystemSchemas []string
	// SystemCatalogs are databases that are never loaded.
	SystemCatalogs []string
}

// QuestionPlaceholder formats ? parameters.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder formats $n parameters.
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// Build returns the query text and its arguments for the given schemas.
func (q InformationSchemaQuery) Build(schemas []string) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT table_catalog, table_schema, table_name, column_name\n")
	sb.WriteString("FROM information_schema.columns\n")
	list := func(values []string) string {
		marks := make([]string, len(values))
		for i, v := range values {
			args = append(args, v)
			marks[i] = q.Placeholder(len(args))
		}
		return strings.Join(marks, ", ")
	}
	var where []string
	if len(q.SystemCatalogs) > 0 {
		where = append(where, "table_catalog NOT IN ("+list(q.SystemCatalogs)+")")
	}
	if len(q.SystemSchemas) > 0 {
		where = append(where, "table_schema NOT IN ("+list(q.SystemSchemas)+")")
	}
	if len(schemas) > 0 {
		where = append(where, "table_schema IN ("+list(schemas)+")")
	}
	if len(where) > 0 {
		sb.WriteString("WHERE " + strings.Join(where, " AND ") + "\n")
	}
	sb.WriteString("ORDER BY table_catalog, table_schema, table_name, ordinal_position")
	return sb.String(), args
}

// LoadInformationSchema runs the query and groups the rows into schema
// descriptors. Rows must arrive ordered by database, schema, table and
// ordinal position.
func (b *BaseSQLAdapter) LoadInformationSchema(ctx context.Context, q InformationSchemaQuery) ([]catalog.SchemaDescriptor, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	query, args := q.Build(b.Cfg.Schemas)
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var g descriptorGrouper
	for rows.Next() {
		var database, schema, table, column string
		if err := rows.Scan(&database, &schema, &table, &column); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		g.add(database, schema, table, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	b.Logger.Debug("loaded information schema",
		"source", b.Cfg.Name,
		"schemas", len(g.out))
	return g.out, nil
}

// descriptorGrouper folds ordered (database, schema, table, column) rows
// into descriptors.
type descriptorGrouper struct {
	out []catalog.SchemaDescriptor
}

func (g *descriptorGrouper) add(database, schema, table, column string) {
	n := len(g.out)
	if n == 0 || g.out[n-1].DatabaseName != database || g.out[n-1].SchemaName != schema {
		g.out = append(g.out, catalog.SchemaDescriptor{DatabaseName: database, SchemaName: schema})
		n++
	}
	s := &g.out[n-1]
	t := len(s.Tables)
	if t == 0 || s.Tables[t-1].TableName != table {
		s.Tables = append(s.Tables, catalog.TableDescriptor{TableName: table})
		t++
	}
	s.Tables[t-1].Columns = append(s.Tables[t-1].Columns, catalog.ColumnDescriptor{ColumnName: column})
}

// DecodeParams decodes adapter specific params into out.
func DecodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("decode adapter params: %w", err)
	}
	return nil
}
