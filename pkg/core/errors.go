package core

import "errors"

// Lifecycle errors.
var (
	// ErrNullPointer is returned when a released handle or script is used.
	ErrNullPointer = errors.New("null pointer")
	// ErrScriptNotScanned is returned when parsing a script without a scan of the current revision.
	ErrScriptNotScanned = errors.New("script is not scanned")
	// ErrScriptNotParsed is returned when analyzing a script without a parse of the current revision.
	ErrScriptNotParsed = errors.New("script is not parsed")
	// ErrScriptNotAnalyzed is returned when loading a script that was never analyzed.
	ErrScriptNotAnalyzed = errors.New("script is not analyzed")
)

// Catalog errors.
var (
	// ErrExternalIDCollision is returned when two catalog entries claim the same identifier.
	ErrExternalIDCollision = errors.New("collision on external identifier")
	// ErrDescriptorPoolUnknown is returned for operations on a pool that was never added.
	ErrDescriptorPoolUnknown = errors.New("descriptor pool is unknown")
	// ErrTablesNil is returned for schema descriptors without a table list.
	ErrTablesNil = errors.New("schema descriptor tables are null")
	// ErrTableNameEmpty is returned for tables without a name.
	ErrTableNameEmpty = errors.New("table name is empty")
	// ErrTableNameCollision is returned when a pool declares the same qualified table twice.
	ErrTableNameCollision = errors.New("collision on qualified table name")
	// ErrCatalogMismatch is returned when a script is loaded into a catalog it is not bound to.
	ErrCatalogMismatch = errors.New("catalog mismatch")
)
