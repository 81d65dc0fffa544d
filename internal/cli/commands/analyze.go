package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
)

// errDiagnostics is returned when a script has error diagnostics.
var errDiagnostics = errors.New("script has errors")

// AnalyzeOutput is the JSON output of the analyze command.
type AnalyzeOutput struct {
	TableRefs   []TableRefInfo    `json:"table_refs"`
	ColumnRefs  []ColumnRefInfo   `json:"column_refs"`
	Tables      []TableInfo       `json:"tables"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

// TableRefInfo describes a table reference.
type TableRefInfo struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	Offset   uint32 `json:"offset"`
	Resolved bool   `json:"resolved"`
	Table    string `json:"table,omitempty"`
}

// ColumnRefInfo describes a column reference.
type ColumnRefInfo struct {
	Column   string `json:"column"`
	Alias    string `json:"alias,omitempty"`
	Offset   uint32 `json:"offset"`
	Resolved bool   `json:"resolved"`
	Table    string `json:"table,omitempty"`
}

// TableInfo describes a table declared by the script.
type TableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	flags := &scriptFlags{}
	var failOnError bool
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Resolve table and column references of a script",
		Long: `Analyze a SQL script against the project catalog.

The catalog holds the configured schema files, script files and the
latest snapshot of every source. Every table and column reference is
listed with the catalog object it resolves to.`,
		Example: `  dashql analyze query.sql
  dashql analyze --sql "select c_name from customer" --output json
  dashql analyze --fail-on-error models/*.sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, flags, failOnError)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit with an error when diagnostics contain errors")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, flags *scriptFlags, failOnError bool) error {
	text, err := readScriptText(cmd.InOrStdin(), args, flags.SQL)
	if err != nil {
		return err
	}
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := cmdCtx.runScript(text, stageAnalyze)
	if err != nil {
		return err
	}
	defer p.Script.Release()

	out := buildAnalyzeOutput(p.Analyzed, cmdCtx.Catalog.CreateSnapshot())
	out.Diagnostics = p.Diagnostics()

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		renderAnalyze(r, text, out)
	}

	if failOnError {
		for _, d := range out.Diagnostics {
			if d.Severity == core.SeverityError {
				return errDiagnostics
			}
		}
	}
	return nil
}

func renderAnalyze(r *output.Renderer, text string, out AnalyzeOutput) {
	r.Header(1, "Table references")
	rows := make([][]any, 0, len(out.TableRefs))
	for _, t := range out.TableRefs {
		rows = append(rows, []any{t.Offset, t.Name, t.Alias, resolvedLabel(t.Resolved, t.Table)})
	}
	r.Table([]string{"Offset", "Name", "Alias", "Resolves to"}, rows)

	r.Header(1, "Column references")
	rows = make([][]any, 0, len(out.ColumnRefs))
	for _, c := range out.ColumnRefs {
		rows = append(rows, []any{c.Offset, c.Column, c.Alias, resolvedLabel(c.Resolved, c.Table)})
	}
	r.Table([]string{"Offset", "Column", "Alias", "Resolves to"}, rows)

	if len(out.Tables) > 0 {
		r.Header(1, "Declared tables")
		for _, t := range out.Tables {
			r.KeyValue(t.Name, fmt.Sprintf("%v", t.Columns))
		}
		r.Println()
	}

	if len(out.Diagnostics) > 0 {
		r.Header(2, "Diagnostics")
		r.Diagnostics(text, out.Diagnostics)
		return
	}
	r.Success("No issues found")
}

func resolvedLabel(resolved bool, table string) string {
	if !resolved {
		return "(unresolved)"
	}
	return table
}

func buildAnalyzeOutput(a *analyzer.AnalyzedScript, snap *catalog.Snapshot) AnalyzeOutput {
	lookup := func(id core.ExternalObjectID) *catalog.Table {
		if id.ExternalID() == a.ExternalID() {
			if t := a.ResolveTableByIndex(id.Index()); t != nil {
				return t
			}
		}
		return snap.ResolveTableByID(id)
	}

	out := AnalyzeOutput{
		TableRefs:  make([]TableRefInfo, 0, len(a.TableRefs)),
		ColumnRefs: make([]ColumnRefInfo, 0, len(a.ColumnRefs)),
	}
	for _, ref := range a.TableRefs {
		info := TableRefInfo{Name: ref.Name.String(), Alias: ref.Alias, Offset: ref.Loc.Offset, Resolved: ref.Resolved}
		if ref.Resolved {
			if t := lookup(ref.TableID); t != nil {
				info.Table = t.Name.String()
			}
		}
		out.TableRefs = append(out.TableRefs, info)
	}
	for _, ref := range a.ColumnRefs {
		info := ColumnRefInfo{Column: ref.Column, Alias: ref.TableAlias, Offset: ref.Loc.Offset, Resolved: ref.Resolved}
		if ref.Resolved {
			if t := lookup(ref.TableID); t != nil && int(ref.ColumnIndex) < len(t.Columns) {
				info.Table = t.Name.String() + "." + t.Columns[ref.ColumnIndex].Name
			}
		}
		out.ColumnRefs = append(out.ColumnRefs, info)
	}
	for _, t := range a.Tables() {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		out.Tables = append(out.Tables, TableInfo{Name: t.Name.String(), Columns: cols})
	}
	return out
}
