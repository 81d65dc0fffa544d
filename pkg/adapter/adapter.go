// Package adapter loads schema descriptors from live databases.
//
// An adapter connects to a database, introspects its tables and columns and
// returns them as catalog.SchemaDescriptor values that can be added to a
// descriptor pool. Concrete adapters live in pkg/adapters and register
// themselves by name in init().
package adapter

import (
	"context"

	"github.com/leapstack-labs/dashql/pkg/catalog"
)

// Config describes a metadata source.
type Config struct {
	Name     string
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Schemas restricts introspection. Empty means all user schemas.
	Schemas []string
	Options map[string]string
	// Params holds adapter specific settings, decoded with DecodeParams.
	Params map[string]any
}

// Adapter introspects a database.
type Adapter interface {
	// Connect opens the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// LoadSchemas returns one descriptor per (database, schema) with the
	// tables and columns in ordinal order.
	LoadSchemas(ctx context.Context) ([]catalog.SchemaDescriptor, error)

	// DefaultSchema is the schema unqualified names resolve to.
	DefaultSchema() string
}
