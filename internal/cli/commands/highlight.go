package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

// NewHighlightCommand creates the highlight command.
func NewHighlightCommand() *cobra.Command {
	flags := &scriptFlags{}
	cmd := &cobra.Command{
		Use:   "highlight [file|-]",
		Short: "Print a script with syntax highlighting",
		Long: `Print a SQL script colored by the scanner's highlighting tokens.

On a terminal keywords, literals, operators and comments are styled.
Markdown output wraps the script in a sql code fence.`,
		Example: `  dashql highlight query.sql
  cat query.sql | dashql highlight -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readScriptText(cmd.InOrStdin(), args, flags.SQL)
			if err != nil {
				return err
			}
			cmdCtx := NewCommandContextWithoutCatalog(cmd)
			scanned, err := scanner.Scan(text, ScriptID)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			switch r.EffectiveMode() {
			case output.ModeJSON:
				return r.JSON(buildScanOutput(scanned).Tokens)
			case output.ModeMarkdown:
				r.Println("```sql")
				r.Println(strings.TrimRight(text, "\n"))
				r.Println("```")
			default:
				r.Println(highlightText(r.Styles(), scanned))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// highlightText renders the script text with token styles. Text between
// tokens is copied unchanged.
func highlightText(styles output.Styles, scanned *scanner.ScannedScript) string {
	text := scanned.Text
	tokens := scanned.Tokens()

	var b strings.Builder
	b.Grow(len(text))
	pos := uint32(0)
	for i := 0; i < tokens.Len(); i++ {
		begin, length := tokens.Offsets[i], tokens.Lengths[i]
		if begin < pos || int(begin+length) > len(text) {
			continue
		}
		b.WriteString(text[pos:begin])
		style := styles.Token(tokens.Types[i])
		// Styles pad multi-line blocks, so lines are rendered one by one.
		for j, line := range strings.Split(text[begin:begin+length], "\n") {
			if j > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
		pos = begin + length
	}
	b.WriteString(text[pos:])
	return strings.TrimRight(b.String(), "\n")
}
