// Package schemafile reads YAML files that describe catalog schemas.
//
// A schema file lists schemas with their tables and columns:
//
//	database: shop
//	schemas:
//	  - schema: public
//	    tables:
//	      - name: customer
//	        columns: [c_custkey, c_name]
//	      - name: orders
//	        columns:
//	          - name: o_orderkey
//
// A schema without a database inherits the file database. Columns may be
// given as plain names or as mappings with a name key.
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
)

// File is a parsed schema file.
type File struct {
	Path     string
	Database string
	Schemas  []catalog.SchemaDescriptor
}

type fileYAML struct {
	Database string       `yaml:"database"`
	Schemas  []schemaYAML `yaml:"schemas"`
}

type schemaYAML struct {
	Database string      `yaml:"database"`
	Schema   string      `yaml:"schema"`
	Tables   []tableYAML `yaml:"tables"`
}

type tableYAML struct {
	Name    string       `yaml:"name"`
	Columns []columnYAML `yaml:"columns"`
}

type columnYAML struct {
	Name string `yaml:"name"`
}

// UnmarshalYAML accepts a scalar name or a mapping.
func (c *columnYAML) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Name = node.Value
		return nil
	}
	type plain columnYAML
	return node.Decode((*plain)(c))
}

// Parse decodes a schema file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw fileYAML
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("invalid schema file: %w", err)
	}

	out := &File{Database: raw.Database}
	for i, s := range raw.Schemas {
		desc := catalog.SchemaDescriptor{
			DatabaseName: s.Database,
			SchemaName:   s.Schema,
			Tables:       make([]catalog.TableDescriptor, 0, len(s.Tables)),
		}
		if desc.DatabaseName == "" {
			desc.DatabaseName = raw.Database
		}
		for j, t := range s.Tables {
			if t.Name == "" {
				return nil, fmt.Errorf("schemas[%d].tables[%d]: %w", i, j, core.ErrTableNameEmpty)
			}
			table := catalog.TableDescriptor{TableName: t.Name}
			for _, c := range t.Columns {
				table.Columns = append(table.Columns, catalog.ColumnDescriptor{ColumnName: c.Name})
			}
			desc.Tables = append(desc.Tables, table)
		}
		out.Schemas = append(out.Schemas, desc)
	}
	return out, nil
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Encode writes descriptors in the schema file format.
func Encode(w io.Writer, schemas []catalog.SchemaDescriptor) error {
	raw := fileYAML{}
	for _, s := range schemas {
		sy := schemaYAML{Database: s.DatabaseName, Schema: s.SchemaName}
		for _, t := range s.Tables {
			ty := tableYAML{Name: t.TableName}
			for _, c := range t.Columns {
				ty.Columns = append(ty.Columns, columnYAML{Name: c.ColumnName})
			}
			sy.Tables = append(sy.Tables, ty)
		}
		raw.Schemas = append(raw.Schemas, sy)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return err
	}
	return enc.Close()
}

// Glob expands patterns into a sorted list of unique paths.
func Glob(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
