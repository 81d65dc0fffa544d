package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/cli/config"
	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/internal/cli/testutil"
	"github.com/leapstack-labs/dashql/pkg/completion"
	"github.com/leapstack-labs/dashql/pkg/scanner"
	"github.com/leapstack-labs/dashql/pkg/schemafile"
)

const testSchemaFile = `database: shop
schemas:
  - schema: public
    tables:
      - name: customer
        columns: [c_custkey, c_name]
      - name: orders
        columns: [o_orderkey, o_custkey]
`

const testScriptFile = `create table big_orders as select o_orderkey from orders;
`

// setupTestProject writes a project with a schema file and a script file
// and loads its configuration with the given output mode.
func setupTestProject(t *testing.T, mode string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schema"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema", "shop.yaml"), []byte(testSchemaFile), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "orders.sql"), []byte(testScriptFile), 0600))

	cfgPath := filepath.Join(dir, "dashql.yaml")
	cfgText := "catalog:\n  default_database: shop\n  default_schema: public\n" +
		"schema_files: [schema/*.yaml]\nscript_files: [scripts/*.sql]\noutput: " + mode + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgText), 0600))

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	return dir
}

// runTestCommand executes cmd with args and returns its stdout.
func runTestCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	err := cmd.Execute()
	return stdout.String(), err
}

func decodeJSON[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(data), &v), data)
	return v
}

func TestCommandMetadata(t *testing.T) {
	cmds := []*cobra.Command{
		NewScanCommand(),
		NewParseCommand(),
		NewAnalyzeCommand(),
		NewCursorCommand(),
		NewCompleteCommand(),
		NewCatalogCommand(),
		NewHighlightCommand(),
		NewREPLCommand(),
		NewLSPCommand("test"),
		NewWatchCommand(),
		NewSourcesCommand(),
		NewStoreCommand(),
		NewDoctorCommand(),
	}
	for _, cmd := range cmds {
		t.Run(cmd.Name(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, cmd.Long, "Long should not be empty")
		})
	}

	for _, cmd := range []*cobra.Command{NewScanCommand(), NewAnalyzeCommand(), NewCursorCommand(), NewCompleteCommand()} {
		assert.NotNil(t, cmd.Flags().Lookup("sql"), "%s should have --sql", cmd.Name())
	}
	assert.NotNil(t, NewCursorCommand().Flags().Lookup("offset"))
	assert.NotNil(t, NewCompleteCommand().Flags().Lookup("limit"))
}

func TestReadScriptText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("select 1"), 0600))

	tests := []struct {
		name    string
		args    []string
		sql     string
		stdin   string
		want    string
		wantErr error
	}{
		{name: "sql flag wins", args: []string{path}, sql: "select 2", want: "select 2"},
		{name: "file", args: []string{path}, want: "select 1"},
		{name: "stdin", args: []string{"-"}, stdin: "select 3", want: "select 3"},
		{name: "missing input", wantErr: errInputRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readScriptText(strings.NewReader(tt.stdin), tt.args, tt.sql)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanCommand(t *testing.T) {
	setupTestProject(t, "json")

	out, err := runTestCommand(t, NewScanCommand(), "--sql", "select 1 -- one")
	require.NoError(t, err)

	scan := decodeJSON[ScanOutput](t, out)
	require.Len(t, scan.Tokens, 3)
	assert.Equal(t, "KEYWORD", scan.Tokens[0].Type)
	assert.Equal(t, "select", scan.Tokens[0].Text)
	assert.Equal(t, "LITERAL_INTEGER", scan.Tokens[1].Type)
	assert.Equal(t, "COMMENT", scan.Tokens[2].Type)
	assert.Equal(t, 1, scan.Comments)
	assert.Empty(t, scan.Diagnostics)
}

func TestParseCommand(t *testing.T) {
	setupTestProject(t, "json")

	out, err := runTestCommand(t, NewParseCommand(), "--sql", "select 1; create table t (a int)")
	require.NoError(t, err)

	parsed := decodeJSON[ParseOutput](t, out)
	require.Len(t, parsed.Statements, 2)
	assert.Equal(t, "SELECT", parsed.Statements[0].Type)
	assert.Equal(t, "CREATE_TABLE", parsed.Statements[1].Type)
	assert.Empty(t, parsed.Nodes, "nodes are only listed with --nodes")
	assert.Positive(t, parsed.NodeCount)
}

func TestAnalyzeCommand(t *testing.T) {
	setupTestProject(t, "json")

	t.Run("resolves against schema files and scripts", func(t *testing.T) {
		out, err := runTestCommand(t, NewAnalyzeCommand(), "--sql",
			"select c.c_name, b.o_orderkey from customer c, big_orders b")
		require.NoError(t, err)

		a := decodeJSON[AnalyzeOutput](t, out)
		require.Len(t, a.TableRefs, 2)
		for _, ref := range a.TableRefs {
			assert.True(t, ref.Resolved, "table %s should resolve", ref.Name)
		}
		require.Len(t, a.ColumnRefs, 2)
		assert.True(t, a.ColumnRefs[0].Resolved)
		assert.Equal(t, "shop.public.customer.c_name", a.ColumnRefs[0].Table)
		assert.Empty(t, a.Diagnostics)
	})

	t.Run("unresolved table", func(t *testing.T) {
		out, err := runTestCommand(t, NewAnalyzeCommand(), "--sql", "select * from nation")
		require.NoError(t, err)

		a := decodeJSON[AnalyzeOutput](t, out)
		require.Len(t, a.TableRefs, 1)
		assert.False(t, a.TableRefs[0].Resolved)
	})

	t.Run("fail on error", func(t *testing.T) {
		_, err := runTestCommand(t, NewAnalyzeCommand(), "--fail-on-error", "--sql", "select from where")
		assert.ErrorIs(t, err, errDiagnostics)
	})
}

func TestCursorCommand(t *testing.T) {
	setupTestProject(t, "json")

	text := "select c_name from customer"
	out, err := runTestCommand(t, NewCursorCommand(), "--sql", text, "--offset", "22")
	require.NoError(t, err)

	cur := decodeJSON[CursorOutput](t, out)
	assert.Equal(t, uint32(22), cur.Offset)
	assert.Equal(t, "customer", cur.Symbol)
	require.NotNil(t, cur.Statement)
	assert.Equal(t, uint32(0), *cur.Statement)
	assert.Equal(t, "shop.public.customer (resolved)", cur.TableRef)
}

func TestCompleteCommand(t *testing.T) {
	setupTestProject(t, "json")

	out, err := runTestCommand(t, NewCompleteCommand(), "--sql", "select * from cus", "--limit", "5")
	require.NoError(t, err)

	c := decodeJSON[CompleteOutput](t, out)
	require.NotEmpty(t, c.Candidates)
	assert.LessOrEqual(t, len(c.Candidates), 5)
	var customer *CandidateInfo
	for i := range c.Candidates {
		if c.Candidates[i].Label == "customer" {
			customer = &c.Candidates[i]
		}
	}
	require.NotNil(t, customer, "customer should be a candidate")
	assert.Equal(t, uint32(14), customer.ReplaceOffset)
	assert.Equal(t, uint32(3), customer.ReplaceLength)
}

func TestCatalogCommand(t *testing.T) {
	setupTestProject(t, "json")

	out, err := runTestCommand(t, NewCatalogCommand())
	require.NoError(t, err)

	cat := decodeJSON[CatalogOutput](t, out)
	assert.Equal(t, 2, cat.Summary.Entries, "one schema file and one script")
	assert.Equal(t, 3, cat.Summary.Tables)
	assert.Equal(t, 5, cat.Summary.Columns)
}

func TestCatalogExportCommand(t *testing.T) {
	dir := setupTestProject(t, "markdown")
	path := filepath.Join(dir, "export.yaml")

	_, err := runTestCommand(t, NewCatalogCommand(), "export", "-f", path)
	require.NoError(t, err)

	f, err := schemafile.Load(path)
	require.NoError(t, err)
	tables := 0
	for _, s := range f.Schemas {
		tables += len(s.Tables)
	}
	assert.Equal(t, 3, tables)
}

func TestHighlightCommand(t *testing.T) {
	setupTestProject(t, "markdown")

	out, err := runTestCommand(t, NewHighlightCommand(), "--sql", "select 1\n")
	require.NoError(t, err)
	assert.Equal(t, "```sql\nselect 1\n```\n", out)
}

func TestHighlightTextWithoutColors(t *testing.T) {
	r := output.NewRendererWithTTY(new(bytes.Buffer), new(bytes.Buffer), false, output.ModeText)
	text := "select 'a\nb' -- c\nfrom t"
	scanned, err := scanner.Scan(text, ScriptID)
	require.NoError(t, err)

	assert.Equal(t, text, highlightText(r.Styles(), scanned))
}

func TestSourcesCommandWithoutSources(t *testing.T) {
	setupTestProject(t, "json")

	out, err := runTestCommand(t, NewSourcesCommand())
	require.NoError(t, err)
	assert.Empty(t, decodeJSON[[]SourceInfo](t, out))

	_, err = runTestCommand(t, NewSourcesCommand(), "refresh")
	require.NoError(t, err)
}

func TestStoreCommandWithoutDatabase(t *testing.T) {
	setupTestProject(t, "json")

	_, err := runTestCommand(t, NewStoreCommand(), "snapshots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state database")
}

func TestDoctorCommand(t *testing.T) {
	dir := setupTestProject(t, "json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "broken.sql"), []byte("select from where"), 0600))

	out, err := runTestCommand(t, NewDoctorCommand())
	require.NoError(t, err)

	doc := decodeJSON[DoctorOutput](t, out)
	statuses := make(map[string]string)
	for _, c := range doc.HealthChecks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, checkPass, statuses["Configuration file"])
	assert.Equal(t, checkPass, statuses["Schema files"])
	assert.Equal(t, checkWarn, statuses["Script files"])
	assert.Less(t, doc.Score, 100)
}

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{name: "no checks", want: 100},
		{name: "all passing", checks: []HealthCheck{{Status: checkPass}, {Status: checkPass}}, want: 100},
		{name: "warnings", checks: []HealthCheck{{Status: checkWarn, Details: []string{"a", "b"}}}, want: 90},
		{name: "errors count double", checks: []HealthCheck{{Status: checkError, Details: []string{"a", "b"}}}, want: 80},
		{name: "clamped", checks: []HealthCheck{{Status: checkError, Details: make([]string, 20)}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}

func TestCompletionSuffixes(t *testing.T) {
	text := "select * from cu"
	candidates := []completion.Candidate{
		{Label: "customer", Text: "customer", ReplaceText: completion.ReplaceText{Offset: 14, Length: 2}},
		{Label: "CURRENT", Text: "CURRENT", ReplaceText: completion.ReplaceText{Offset: 14, Length: 2}},
		{Label: "orders", Text: "orders", ReplaceText: completion.ReplaceText{Offset: 14, Length: 2}},
	}

	suffixes, length := completionSuffixes(candidates, text)
	assert.Equal(t, 2, length)
	require.Len(t, suffixes, 2)
	assert.Equal(t, "stomer ", string(suffixes[0]))
	assert.Equal(t, "RRENT ", string(suffixes[1]))

	none, length := completionSuffixes(nil, text)
	assert.Nil(t, none)
	assert.Zero(t, length)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "t", tableName([]string{"t"}).String())
	assert.Equal(t, "s.t", tableName([]string{"s", "t"}).String())
	assert.Equal(t, "d.s.t", tableName([]string{"d", "s", "t"}).String())
}

func TestRenderAnalyzeMarkdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	out := AnalyzeOutput{
		TableRefs:  []TableRefInfo{{Name: "shop.public.customer", Resolved: true, Table: "shop.public.customer"}},
		ColumnRefs: []ColumnRefInfo{{Column: "nope", Offset: 7}},
	}

	renderAnalyze(tr.Renderer, "select nope from customer", out)

	md := tr.Output()
	testutil.AssertNoANSI(t, md)
	testutil.AssertValidMarkdown(t, md)
	assert.Contains(t, md, "# Table references")
	assert.Contains(t, md, "(unresolved)")
	assert.Contains(t, md, "No issues found")
}

func TestRenderCatalogText(t *testing.T) {
	tr := testutil.NewTestRendererText()
	out := CatalogOutput{Summary: CatalogSummary{Entries: 0, Tables: 0}}

	renderCatalog(tr.Renderer, out, []string{"schema/shop.yaml"}, false)

	assert.Contains(t, tr.Output(), "Catalog (0 entries, 0 tables)")
	assert.Contains(t, tr.Output(), "schema/shop.yaml")
}
