// Package sqlite provides a SQLite metadata adapter.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dashql/pkg/adapter"
	"github.com/leapstack-labs/dashql/pkg/catalog"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLite has no information_schema; tables and columns come from the
// schema table joined with pragma_table_info.
const columnsQuery = `
SELECT m.name, p.name
FROM sqlite_master AS m
JOIN pragma_table_info(m.name) AS p
WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// DefaultSchema implements adapter.Adapter.
func (a *Adapter) DefaultSchema() string {
	return "main"
}

// Connect opens the database file at cfg.Path.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	a.Logger.Debug("connecting to sqlite", slog.String("path", path))
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}
	a.DB = db
	a.Cfg = cfg
	return nil
}

// LoadSchemas returns the tables of the main schema. The database name is
// taken from the source configuration.
func (a *Adapter) LoadSchemas(ctx context.Context) ([]catalog.SchemaDescriptor, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}
	rows, err := a.DB.QueryContext(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	desc := catalog.SchemaDescriptor{
		DatabaseName: a.Cfg.Database,
		SchemaName:   a.DefaultSchema(),
		Tables:       []catalog.TableDescriptor{},
	}
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		n := len(desc.Tables)
		if n == 0 || desc.Tables[n-1].TableName != table {
			desc.Tables = append(desc.Tables, catalog.TableDescriptor{TableName: table})
			n++
		}
		desc.Tables[n-1].Columns = append(desc.Tables[n-1].Columns, catalog.ColumnDescriptor{ColumnName: column})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return []catalog.SchemaDescriptor{desc}, nil
}

var _ adapter.Adapter = (*Adapter)(nil)
