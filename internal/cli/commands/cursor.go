package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/cursor"
)

// cursorFlags holds the flags of commands that place a cursor.
type cursorFlags struct {
	scriptFlags
	// Offset is the byte offset of the cursor; negative means end of text.
	Offset int
}

func (f *cursorFlags) register(cmd *cobra.Command) {
	f.scriptFlags.register(cmd)
	cmd.Flags().IntVar(&f.Offset, "offset", -1, "Cursor byte offset (default: end of text)")
}

func (f *cursorFlags) offset(text string) int {
	if f.Offset < 0 || f.Offset > len(text) {
		return len(text)
	}
	return f.Offset
}

// CursorOutput is the JSON output of the cursor command.
type CursorOutput struct {
	Offset      uint32   `json:"offset"`
	Symbol      string   `json:"symbol"`
	SymbolType  string   `json:"symbol_type"`
	Relative    string   `json:"relative"`
	Statement   *uint32  `json:"statement,omitempty"`
	Node        string   `json:"node,omitempty"`
	NodePath    []string `json:"node_path,omitempty"`
	Scopes      int      `json:"scopes"`
	Context     string   `json:"context"`
	NamePath    []string `json:"name_path,omitempty"`
	Component   int      `json:"component"`
	TableRef    string   `json:"table_ref,omitempty"`
	ColumnRef   string   `json:"column_ref,omitempty"`
	AtEndOfText bool     `json:"at_eof"`
}

// NewCursorCommand creates the cursor command.
func NewCursorCommand() *cobra.Command {
	flags := &cursorFlags{}
	cmd := &cobra.Command{
		Use:   "cursor [file|-]",
		Short: "Describe the script position under a cursor",
		Long: `Place a cursor in a script and describe what it points at.

Reports the symbol under the cursor and its relative position, the AST
node path, the enclosing name scopes and the table or column reference
the cursor is inside.`,
		Example: `  dashql cursor --offset 15 query.sql
  dashql cursor --sql "select c.c_name from customer c" --offset 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCursor(cmd, args, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runCursor(cmd *cobra.Command, args []string, flags *cursorFlags) error {
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

	cur, err := p.Script.MoveCursor(flags.offset(text))
	if err != nil {
		return err
	}
	out := buildCursorOutput(cur)

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	r.Header(1, fmt.Sprintf("Cursor at %d", out.Offset))
	r.KeyValue("Symbol", fmt.Sprintf("%q (%s)", out.Symbol, out.SymbolType))
	r.KeyValue("Relative", out.Relative)
	if out.Statement != nil {
		r.KeyValue("Statement", *out.Statement)
	}
	if out.Node != "" {
		r.KeyValue("Node", out.Node)
		r.KeyValue("Path", fmt.Sprintf("%v", out.NodePath))
	}
	r.KeyValue("Scopes", out.Scopes)
	r.KeyValue("Context", out.Context)
	if len(out.NamePath) > 0 {
		r.KeyValue("Name path", fmt.Sprintf("%v (component %d)", out.NamePath, out.Component))
	}
	if out.TableRef != "" {
		r.KeyValue("Table ref", out.TableRef)
	}
	if out.ColumnRef != "" {
		r.KeyValue("Column ref", out.ColumnRef)
	}
	return nil
}

func buildCursorOutput(cur *cursor.Cursor) CursorOutput {
	out := CursorOutput{
		Offset:      cur.TextOffset,
		Symbol:      cur.Symbol(),
		SymbolType:  cur.Location.Symbol.Type.String(),
		Relative:    cur.Location.Relative.String(),
		Scopes:      len(cur.Scopes),
		Context:     cur.Context.Kind.String(),
		NamePath:    cursor.Names(cur.Context.Path),
		Component:   cur.Context.Component,
		AtEndOfText: cur.Location.AtEOF,
	}
	if cur.StatementID != core.NullID {
		id := cur.StatementID
		out.Statement = &id
	}
	if node, ok := cur.Node(); ok {
		out.Node = node.Type.String()
		for _, id := range cur.Path {
			out.NodePath = append(out.NodePath, cur.Source.Parsed.Nodes[id].Type.String())
		}
	}
	if a := cur.Source.Analyzed; a != nil {
		if cur.TableRefID != core.NullID {
			ref := a.TableRefs[cur.TableRefID]
			out.TableRef = describeRef(ref.Name.String(), ref.Resolved)
		}
		if cur.ColumnRefID != core.NullID {
			ref := a.ColumnRefs[cur.ColumnRefID]
			name := ref.Column
			if ref.TableAlias != "" {
				name = ref.TableAlias + "." + name
			}
			out.ColumnRef = describeRef(name, ref.Resolved)
		}
	}
	return out
}

func describeRef(name string, resolved bool) string {
	if resolved {
		return name + " (resolved)"
	}
	return name + " (unresolved)"
}
