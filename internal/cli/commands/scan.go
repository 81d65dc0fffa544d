package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

// ScanOutput is the JSON output of the scan command.
type ScanOutput struct {
	Tokens      []TokenInfo       `json:"tokens"`
	LineBreaks  int               `json:"line_breaks"`
	Comments    int               `json:"comments"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

// TokenInfo is one highlighting token.
type TokenInfo struct {
	Offset uint32 `json:"offset"`
	Length uint32 `json:"length"`
	Type   string `json:"type"`
	Text   string `json:"text"`
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	flags := &scriptFlags{}
	cmd := &cobra.Command{
		Use:   "scan [file|-]",
		Short: "Print the highlighting tokens of a script",
		Long: `Scan a SQL script and print its highlighting tokens.

Each token is reported with its byte offset, length and type. Scanner
errors such as unterminated strings are listed after the tokens.`,
		Example: `  # Scan a file
  dashql scan query.sql

  # Scan inline text as JSON
  dashql scan --sql "select 1" --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runScan(cmd *cobra.Command, args []string, flags *scriptFlags) error {
	text, err := readScriptText(cmd.InOrStdin(), args, flags.SQL)
	if err != nil {
		return err
	}
	cmdCtx := NewCommandContextWithoutCatalog(cmd)
	scanned, err := scanner.Scan(text, ScriptID)
	if err != nil {
		return err
	}
	out := buildScanOutput(scanned)

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Tokens")
	rows := make([][]any, 0, len(out.Tokens))
	for _, t := range out.Tokens {
		rows = append(rows, []any{t.Offset, t.Length, t.Type, t.Text})
	}
	r.Table([]string{"Offset", "Length", "Type", "Text"}, rows)
	r.KeyValue("Line breaks", out.LineBreaks)
	r.KeyValue("Comments", out.Comments)
	if len(out.Diagnostics) > 0 {
		r.Println()
		r.Header(2, "Diagnostics")
		r.Diagnostics(text, out.Diagnostics)
	}
	return nil
}

func buildScanOutput(scanned *scanner.ScannedScript) ScanOutput {
	tokens := scanned.Tokens()
	out := ScanOutput{
		Tokens:      make([]TokenInfo, 0, tokens.Len()),
		LineBreaks:  len(scanned.LineBreaks),
		Comments:    len(scanned.Comments),
		Diagnostics: scanned.Diagnostics(),
	}
	for i := 0; i < tokens.Len(); i++ {
		loc := core.Loc(tokens.Offsets[i], tokens.Lengths[i])
		out.Tokens = append(out.Tokens, TokenInfo{
			Offset: loc.Offset,
			Length: loc.Length,
			Type:   tokens.Types[i].String(),
			Text:   scanned.ReadText(loc),
		})
	}
	return out
}
