// Package duckdb provides a DuckDB metadata adapter.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dashql/pkg/adapter"
	"github.com/leapstack-labs/dashql/pkg/catalog"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

var query = adapter.InformationSchemaQuery{
	Placeholder:    adapter.QuestionPlaceholder,
	SystemSchemas:  []string{"information_schema", "pg_catalog"},
	SystemCatalogs: []string{"system", "temp"},
}

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// DefaultSchema implements adapter.Adapter.
func (a *Adapter) DefaultSchema() string {
	return "main"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" or an empty path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	for _, stmt := range params.statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// LoadSchemas implements adapter.Adapter.
func (a *Adapter) LoadSchemas(ctx context.Context) ([]catalog.SchemaDescriptor, error) {
	return a.LoadInformationSchema(ctx, query)
}

var _ adapter.Adapter = (*Adapter)(nil)
