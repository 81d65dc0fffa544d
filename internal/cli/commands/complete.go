package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/completion"
)

// CompleteOutput is the JSON output of the complete command.
type CompleteOutput struct {
	Offset     uint32          `json:"offset"`
	Strategy   string          `json:"strategy"`
	Action     string          `json:"action"`
	Candidates []CandidateInfo `json:"candidates"`
}

// CandidateInfo is one completion candidate.
type CandidateInfo struct {
	Label         string `json:"label"`
	Text          string `json:"text"`
	Detail        string `json:"detail,omitempty"`
	Tags          string `json:"tags"`
	Score         int    `json:"score"`
	ReplaceOffset uint32 `json:"replace_offset"`
	ReplaceLength uint32 `json:"replace_length"`
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	flags := &cursorFlags{}
	var limit int
	cmd := &cobra.Command{
		Use:   "complete [file|-]",
		Short: "Compute completion candidates at a cursor",
		Long: `Compute completion candidates for a cursor position.

Candidates combine grammar keywords expected at the cursor with catalog
and script names, scored by how well they fit the position.`,
		Example: `  dashql complete --sql "select * from cus"
  dashql complete --offset 7 --limit 5 query.sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, args, flags, limit)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of candidates (default: completion.limit)")
	return cmd
}

func runComplete(cmd *cobra.Command, args []string, flags *cursorFlags, limit int) error {
	text, err := readScriptText(cmd.InOrStdin(), args, flags.SQL)
	if err != nil {
		return err
	}
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if limit <= 0 {
		limit = cmdCtx.Cfg.Completion.Limit
	}
	result, err := completeText(cmdCtx, text, flags.offset(text), limit)
	if err != nil {
		return err
	}
	out := buildCompleteOutput(result)

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	r.Header(1, fmt.Sprintf("Completion at %d", out.Offset))
	r.KeyValue("Strategy", out.Strategy)
	r.KeyValue("Action", out.Action)
	r.Println()
	rows := make([][]any, 0, len(out.Candidates))
	for _, c := range out.Candidates {
		rows = append(rows, []any{c.Label, c.Tags, c.Score, c.Detail})
	}
	r.Table([]string{"Label", "Tags", "Score", "Detail"}, rows)
	return nil
}

// completeText analyzes text and completes at offset.
func completeText(cmdCtx *CommandContext, text string, offset, limit int) (*completion.Completion, error) {
	p, err := cmdCtx.runScript(text, stageAnalyze)
	if err != nil {
		return nil, err
	}
	defer p.Script.Release()

	if _, err := p.Script.MoveCursor(offset); err != nil {
		return nil, err
	}
	return p.Script.CompleteAtCursor(limit)
}

func buildCompleteOutput(result *completion.Completion) CompleteOutput {
	out := CompleteOutput{
		Offset:     result.TextOffset,
		Strategy:   result.Strategy.String(),
		Action:     result.Action.String(),
		Candidates: make([]CandidateInfo, 0, len(result.Candidates)),
	}
	for _, c := range result.Candidates {
		out.Candidates = append(out.Candidates, CandidateInfo{
			Label:         c.Label,
			Text:          c.Text,
			Detail:        c.Detail,
			Tags:          c.Tags.String(),
			Score:         c.Score,
			ReplaceOffset: c.ReplaceText.Offset,
			ReplaceLength: c.ReplaceText.Length,
		})
	}
	return out
}
