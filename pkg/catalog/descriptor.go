package catalog

// SchemaDescriptor describes the tables of one (database, schema) pair.
// Empty database or schema names are replaced by the catalog defaults.
type SchemaDescriptor struct {
	DatabaseName string            `json:"database_name" yaml:"database"`
	SchemaName   string            `json:"schema_name" yaml:"schema"`
	Tables       []TableDescriptor `json:"tables" yaml:"tables"`
}

// TableDescriptor describes a table and its columns in declaration order.
// TableID is informational: pools assign table ids sequentially and report
// the assigned index here in descriptions.
type TableDescriptor struct {
	TableID   uint32             `json:"table_id,omitempty" yaml:"-"`
	TableName string             `json:"table_name" yaml:"name"`
	Columns   []ColumnDescriptor `json:"columns" yaml:"columns"`
}

// ColumnDescriptor describes a table column.
type ColumnDescriptor struct {
	ColumnName string `json:"column_name" yaml:"name"`
}
