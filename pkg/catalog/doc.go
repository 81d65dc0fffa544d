// Package catalog holds the schema metadata that scripts are resolved against.
//
// A Catalog is a ranked set of entries. Descriptor pools carry tables that
// were registered from the outside (a connection, a schema file), script
// entries carry the CREATE TABLE declarations of an analyzed script. Lower
// ranks win when two entries declare the same qualified table; two entries
// of the same rank that both declare it are a collision.
//
// Readers never see the mutable catalog. CreateSnapshot returns an immutable
// view, every mutation builds a new state and leaves existing snapshots
// untouched.
//
// # Usage
//
//	cat := catalog.New(catalog.WithDefaults("dashql", "public"))
//	_ = cat.AddDescriptorPool(1, 10)
//	_ = cat.AddSchemaDescriptor(1, catalog.SchemaDescriptor{
//		DatabaseName: "db1",
//		SchemaName:   "schema1",
//		Tables: []catalog.TableDescriptor{
//			{TableName: "table1", Columns: []catalog.ColumnDescriptor{{ColumnName: "column1"}}},
//		},
//	})
//	snap := cat.CreateSnapshot()
//	table, err := snap.ResolveTable(catalog.QualifiedTableName{Database: "db1", Schema: "schema1", Table: "table1"}, core.NullID)
package catalog
