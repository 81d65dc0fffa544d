package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/cli/config"
)

func TestMarkdownWriter(t *testing.T) {
	w := NewMarkdownWriter()
	w.Header(2, "Options")
	w.Table([]string{"Option", "Description"}, [][]string{{InlineCode("--output"), "a | b"}})
	w.CodeBlock("bash", "dashql scan\n")

	assert.Equal(t, "## Options\n\n"+
		"| Option | Description |\n| --- | --- |\n| `--output` | a \\| b |\n\n"+
		"```bash\ndashql scan\n```\n\n", string(w.Bytes()))
}

func TestMarkdownWriter_EmptyTable(t *testing.T) {
	w := NewMarkdownWriter()
	w.Table([]string{"A"}, nil)
	assert.Empty(t, w.Bytes())
}

func TestPageName(t *testing.T) {
	root := &cobra.Command{Use: "dashql"}
	store := &cobra.Command{Use: "store"}
	prune := &cobra.Command{Use: "prune [source]"}
	root.AddCommand(store)
	store.AddCommand(prune)

	assert.Equal(t, "store.md", pageName(store))
	assert.Equal(t, "store_prune.md", pageName(prune))
	assert.Equal(t, "/cli/store_prune", pageLink(prune))
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"shared indent", "  dashql scan\n  dashql parse", "dashql scan\ndashql parse"},
		{"nested", "  a\n    b", "a\n  b"},
		{"blank lines ignored", "  a\n\n  b", "a\n\nb"},
		{"no indent", "a\nb\n", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedent(tt.in))
		})
	}
}

func TestConfigKeys(t *testing.T) {
	keys := configKeys(reflect.ValueOf(config.Config{
		Catalog:    config.CatalogConfig{DefaultSchema: "public"},
		Completion: config.CompletionConfig{Limit: 32},
	}), "")

	byKey := make(map[string]ConfigKey, len(keys))
	for _, k := range keys {
		byKey[k.Key] = k
	}
	require.Contains(t, byKey, "catalog.default_schema")
	assert.Equal(t, "public", byKey["catalog.default_schema"].Default)
	assert.Equal(t, "integer", byKey["completion.limit"].Type)
	assert.Equal(t, "duration", byKey["refresh.interval"].Type)
	assert.Equal(t, "list of objects", byKey["sources"].Type)
	assert.NotContains(t, byKey, "ProjectRoot")

	for _, k := range keys {
		assert.Contains(t, configKeyDocs, k.Key, "undocumented key %s", k.Key)
	}
}

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir))

	for _, name := range []string{"index.md", "scan.md", "catalog_export.md", "store_prune.md"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Contains(t, string(data), generatedMarker)
	}
}

func TestGenerateConfigDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateConfigDocs(dir))

	data, err := os.ReadFile(filepath.Join(dir, "configuration.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "`catalog.default_schema`")
	assert.Contains(t, string(data), "`"+config.DefaultStateFile+"`")
}
