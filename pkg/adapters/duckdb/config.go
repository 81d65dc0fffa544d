package duckdb

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/dashql/pkg/adapter"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load before introspection (e.g. "httpfs")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g. memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`

	// Attach maps aliases to database files attached before introspection.
	Attach map[string]string `mapstructure:"attach"`
}

// ParseParams decodes raw params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if err := adapter.DecodeParams(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

// statements returns the setup statements in a stable order.
func (p *Params) statements() []string {
	var out []string
	for _, ext := range p.Extensions {
		out = append(out, fmt.Sprintf("INSTALL %s", ext), fmt.Sprintf("LOAD %s", ext))
	}
	for _, key := range sortedKeys(p.Settings) {
		out = append(out, fmt.Sprintf("SET %s = '%s'", key, escape(p.Settings[key])))
	}
	for _, alias := range sortedKeys(p.Attach) {
		out = append(out, fmt.Sprintf("ATTACH '%s' AS %s (READ_ONLY)", escape(p.Attach[alias]), alias))
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(out)
}
