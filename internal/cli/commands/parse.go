package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/parser"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

// ParseOutput is the JSON output of the parse command.
type ParseOutput struct {
	Statements  []StatementInfo   `json:"statements"`
	Nodes       []NodeInfo        `json:"nodes,omitempty"`
	NodeCount   int               `json:"node_count"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

// StatementInfo describes a parsed statement.
type StatementInfo struct {
	Type      string `json:"type"`
	Root      uint32 `json:"root"`
	NodeCount uint32 `json:"node_count"`
	Text      string `json:"text"`
}

// NodeInfo describes one AST node.
type NodeInfo struct {
	ID        uint32 `json:"id"`
	Type      string `json:"type"`
	Attribute string `json:"attribute"`
	Parent    int64  `json:"parent"`
	Offset    uint32 `json:"offset"`
	Length    uint32 `json:"length"`
	Value     uint32 `json:"value"`
	Children  uint32 `json:"children"`
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	flags := &scriptFlags{}
	var showNodes bool
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse a script and print its statements",
		Long: `Parse a SQL script into the flat post-order AST.

Statements are listed with their root node. Use --nodes to dump every
node with its attribute, parent and location.`,
		Example: `  dashql parse query.sql
  dashql parse --nodes --sql "select a from b"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, flags, showNodes)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&showNodes, "nodes", false, "Print every AST node")
	return cmd
}

func runParse(cmd *cobra.Command, args []string, flags *scriptFlags, showNodes bool) error {
	text, err := readScriptText(cmd.InOrStdin(), args, flags.SQL)
	if err != nil {
		return err
	}
	cmdCtx := NewCommandContextWithoutCatalog(cmd)
	scanned, err := scanner.Scan(text, ScriptID)
	if err != nil {
		return err
	}
	parsed, err := parser.Parse(scanned)
	if err != nil {
		return err
	}
	p := &pipeline{Scanned: scanned, Parsed: parsed}

	out := buildParseOutput(parsed, showNodes)
	out.Diagnostics = p.Diagnostics()

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Statements")
	rows := make([][]any, 0, len(out.Statements))
	for i, s := range out.Statements {
		rows = append(rows, []any{i, s.Type, s.Root, s.NodeCount, s.Text})
	}
	r.Table([]string{"#", "Type", "Root", "Nodes", "Text"}, rows)

	if showNodes {
		r.Header(2, "Nodes")
		rows = rows[:0]
		for _, n := range out.Nodes {
			rows = append(rows, []any{n.ID, n.Type, n.Attribute, n.Parent, n.Offset, n.Length, n.Value, n.Children})
		}
		r.Table([]string{"ID", "Type", "Attribute", "Parent", "Offset", "Length", "Value", "Children"}, rows)
	}
	r.KeyValue("Nodes", out.NodeCount)

	if len(out.Diagnostics) > 0 {
		r.Println()
		r.Header(2, "Diagnostics")
		r.Diagnostics(text, out.Diagnostics)
	}
	return nil
}

func buildParseOutput(parsed *parser.ParsedScript, showNodes bool) ParseOutput {
	out := ParseOutput{
		Statements: make([]StatementInfo, 0, len(parsed.Statements)),
		NodeCount:  len(parsed.Nodes),
	}
	for _, s := range parsed.Statements {
		out.Statements = append(out.Statements, StatementInfo{
			Type:      s.Type.String(),
			Root:      s.Root,
			NodeCount: s.NodeCount,
			Text:      parsed.Scanned.ReadText(parsed.Node(s.Root).Loc),
		})
	}
	if !showNodes {
		return out
	}
	out.Nodes = make([]NodeInfo, 0, len(parsed.Nodes))
	for i, n := range parsed.Nodes {
		parent := int64(-1)
		if n.Parent != core.NullID {
			parent = int64(n.Parent)
		}
		out.Nodes = append(out.Nodes, NodeInfo{
			ID:        uint32(i),
			Type:      n.Type.String(),
			Attribute: n.Attr.String(),
			Parent:    parent,
			Offset:    n.Loc.Offset,
			Length:    n.Loc.Length,
			Value:     n.ChildrenBeginOrValue,
			Children:  n.ChildrenCount,
		})
	}
	return out
}
