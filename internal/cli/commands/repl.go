package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/completion"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/script"
)

// External ids of the REPL scripts. The session script holds every
// submitted statement; the scratch script is used for completion.
const (
	replSessionID uint32 = 2
	replScratchID uint32 = 3
)

const (
	replPrompt         = "dashql> "
	replPromptContinue = "   ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive SQL shell with catalog-aware completion",
		Long: `Start an interactive shell that analyzes SQL statements as they are entered.

Statements end with a semicolon. Tables created in the session are added
to the catalog, so later statements can reference them. Tab completes
keywords, tables and columns using the completion engine.`,
		Example: `  dashql repl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
	return cmd
}

// replSession is the state of one REPL run.
type replSession struct {
	cmdCtx  *CommandContext
	session *script.Script
	// buffer holds the lines of an unterminated statement.
	buffer strings.Builder
}

func newREPLSession(cmdCtx *CommandContext) *replSession {
	return &replSession{
		cmdCtx:  cmdCtx,
		session: script.New(cmdCtx.Catalog, replSessionID, script.WithLogger(cmdCtx.Logger)),
	}
}

func (s *replSession) Close() {
	s.session.Release()
}

func runREPL(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sess := newREPLSession(cmdCtx)
	defer sess.Close()

	// Setup history file (project-local)
	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    sess,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := cmdCtx.Renderer
	r.Println("DashQL shell. Type .help for commands, .quit to exit")
	r.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sess.buffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Handle dot-commands
		if sess.buffer.Len() == 0 && strings.HasPrefix(trimmed, ".") {
			if quit := sess.handleDotCommand(r, trimmed); quit {
				break
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		sess.buffer.WriteString(line)
		sess.buffer.WriteString("\n")
		if !strings.HasSuffix(trimmed, ";") {
			rl.SetPrompt(replPromptContinue)
			continue
		}
		rl.SetPrompt(replPrompt)

		stmt := sess.buffer.String()
		sess.buffer.Reset()
		if err := sess.submit(r, stmt); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	return nil
}

// submit appends a statement to the session script, analyzes it and
// loads the session into the catalog.
func (s *replSession) submit(r *output.Renderer, stmt string) error {
	begin := s.session.Len()
	if err := s.session.InsertTextAt(begin, stmt); err != nil {
		return err
	}

	var diags []core.Diagnostic
	scanned, err := s.session.Scan()
	if err != nil {
		return err
	}
	sc, err := scanned.Read()
	if err != nil {
		return err
	}
	diags = append(diags, sc.Diagnostics()...)
	parsed, err := s.session.Parse()
	if err != nil {
		return err
	}
	ps, err := parsed.Read()
	if err != nil {
		return err
	}
	diags = append(diags, ps.Diagnostics()...)
	analyzed, err := s.session.Analyze()
	if err != nil {
		return err
	}
	as, err := analyzed.Read()
	if err != nil {
		return err
	}
	diags = append(diags, as.Diagnostics()...)

	// Only the diagnostics of the new statement are reported.
	var own []core.Diagnostic
	for _, d := range diags {
		if d.Loc.Offset >= uint32(begin) {
			own = append(own, d)
		}
	}
	if len(own) > 0 {
		r.Diagnostics(s.session.String(), own)
		// Drop the failing statement so that it does not poison later ones.
		return s.session.EraseTextRange(begin, len(stmt))
	}

	if err := s.session.LoadInto(s.cmdCtx.Catalog, 0); err != nil {
		return err
	}
	resolved, total := 0, 0
	for _, ref := range as.TableRefs {
		if ref.Loc.Offset >= uint32(begin) {
			total++
			if ref.Resolved {
				resolved++
			}
		}
	}
	for _, ref := range as.ColumnRefs {
		if ref.Loc.Offset >= uint32(begin) {
			total++
			if ref.Resolved {
				resolved++
			}
		}
	}
	r.Success(fmt.Sprintf("ok (%d/%d references resolved)", resolved, total))
	return nil
}

// handleDotCommand runs a dot command and reports whether to quit.
func (s *replSession) handleDotCommand(r *output.Renderer, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.Writer())

	case ".tables":
		snap := s.cmdCtx.Catalog.CreateSnapshot()
		rows := make([][]any, 0)
		for _, t := range snap.Tables() {
			rows = append(rows, []any{t.Name, t.ObjectID.String(), t.ChildCount})
		}
		r.Table([]string{"Table", "Object", "Columns"}, rows)

	case ".schema":
		if len(parts) < 2 {
			r.Warning("usage: .schema <table>")
			return false
		}
		s.printSchema(r, parts[1])

	case ".script":
		r.Println(s.session.String())

	case ".reset":
		s.session.Release()
		s.session = script.New(s.cmdCtx.Catalog, replSessionID, script.WithLogger(s.cmdCtx.Logger))
		r.Success("session cleared")

	default:
		r.Warning(fmt.Sprintf("unknown command: %s (type .help for commands)", command))
	}
	return false
}

func (s *replSession) printSchema(r *output.Renderer, name string) {
	snap := s.cmdCtx.Catalog.CreateSnapshot()
	parts := strings.Split(name, ".")
	t, err := snap.ResolveTable(snap.Qualify(tableName(parts)), core.NullID)
	if err != nil || t == nil {
		r.Warning(fmt.Sprintf("table %s not found", name))
		return
	}
	r.Header(2, t.Name.String())
	for i, c := range t.Columns {
		r.KeyValue(fmt.Sprintf("%d", i), c.Name)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List all catalog tables
  .schema <name>  Show the columns of a table
  .script         Print the session script
  .reset          Drop the session script and its tables
  .quit / .exit   Exit the shell

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completes keywords, tables and columns
`
	_, _ = fmt.Fprintln(w, help)
}

// Do implements readline.AutoCompleter using the completion engine on the
// session text followed by the pending input.
func (s *replSession) Do(line []rune, pos int) ([][]rune, int) {
	prefix := s.session.String() + s.buffer.String()
	input := string(line[:pos])
	text := prefix + input

	scratch := script.New(s.cmdCtx.Catalog, replScratchID, script.WithText(text))
	defer scratch.Release()
	if _, err := scratch.Scan(); err != nil {
		return nil, 0
	}
	if _, err := scratch.Parse(); err != nil {
		return nil, 0
	}
	if _, err := scratch.Analyze(); err != nil {
		return nil, 0
	}
	if _, err := scratch.MoveCursor(len(text)); err != nil {
		return nil, 0
	}
	result, err := scratch.CompleteAtCursor(s.cmdCtx.Cfg.Completion.Limit)
	if err != nil {
		return nil, 0
	}
	return completionSuffixes(result.Candidates, text)
}

// completionSuffixes converts candidates to the suffixes readline appends
// to the word being typed.
func completionSuffixes(candidates []completion.Candidate, text string) ([][]rune, int) {
	if len(candidates) == 0 {
		return nil, 0
	}
	start := int(candidates[0].ReplaceText.Offset)
	if start > len(text) {
		start = len(text)
	}
	typed := text[start:]

	var out [][]rune
	for _, c := range candidates {
		if int(c.ReplaceText.Offset) != start {
			continue
		}
		insert := c.Text
		if insert == "" {
			insert = c.Label
		}
		if len(insert) < len(typed) || !strings.EqualFold(insert[:len(typed)], typed) {
			continue
		}
		out = append(out, []rune(insert[len(typed):]+" "))
	}
	return out, len([]rune(typed))
}

// tableName builds a table name from dotted parts.
func tableName(parts []string) catalog.QualifiedTableName {
	switch len(parts) {
	case 1:
		return catalog.QualifiedTableName{Table: parts[0]}
	case 2:
		return catalog.QualifiedTableName{Schema: parts[0], Table: parts[1]}
	default:
		n := len(parts)
		return catalog.QualifiedTableName{Database: parts[n-3], Schema: parts[n-2], Table: parts[n-1]}
	}
}
