// Package main provides tests for the DashQL CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/cli"
	"github.com/leapstack-labs/dashql/internal/cli/config"
)

// setupTestProject writes a minimal project and returns its directory.
func setupTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	schema := `database: shop
schemas:
  - schema: public
    tables:
      - name: customer
        columns: [c_custkey, c_name]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.yaml"), []byte(schema), 0600))
	cfg := "schema_files: [schema.yaml]\ncatalog:\n  default_database: shop\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashql.yaml"), []byte(cfg), 0600))
	t.Cleanup(config.ResetConfig)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(config.ResetConfig)
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "DashQL")
}

func TestHelpCommand(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)

	for _, expected := range []string{"scan", "parse", "analyze", "cursor", "complete", "catalog", "repl", "lsp", "sources"} {
		assert.Contains(t, out, expected)
	}
}

func TestAnalyzeCommandJSON(t *testing.T) {
	dir := setupTestProject(t)

	out, err := runCLI(t,
		"--config", filepath.Join(dir, "dashql.yaml"),
		"--output", "json",
		"analyze", "--sql", "select c_name from customer")
	require.NoError(t, err)

	var result struct {
		TableRefs []struct {
			Resolved bool `json:"resolved"`
		} `json:"table_refs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	require.Len(t, result.TableRefs, 1)
	assert.True(t, result.TableRefs[0].Resolved)
}

func TestDefaultSchemaFlagOverridesConfig(t *testing.T) {
	dir := setupTestProject(t)

	out, err := runCLI(t,
		"--config", filepath.Join(dir, "dashql.yaml"),
		"--default-schema", "other",
		"--output", "json",
		"analyze", "--sql", "select c_name from customer")
	require.NoError(t, err)

	var result struct {
		TableRefs []struct {
			Resolved bool `json:"resolved"`
		} `json:"table_refs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	require.Len(t, result.TableRefs, 1)
	assert.False(t, result.TableRefs[0].Resolved, "customer lives in public, not other")
}

func TestInvalidOutputMode(t *testing.T) {
	dir := setupTestProject(t)

	_, err := runCLI(t, "--config", filepath.Join(dir, "dashql.yaml"), "--output", "yaml", "catalog")
	require.Error(t, err)
}

func TestCompletionCommand(t *testing.T) {
	out, err := runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "dashql")
}
