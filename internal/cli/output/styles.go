package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Key     lipgloss.Style

	// Token styles for syntax highlighting.
	Keyword    lipgloss.Style
	Identifier lipgloss.Style
	Literal    lipgloss.Style
	Operator   lipgloss.Style
	Comment    lipgloss.Style
	Dot        lipgloss.Style
}

// newStyles builds styles bound to w. Without a terminal the ASCII profile
// is used and styles render as plain text.
func newStyles(w io.Writer, tty bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !tty {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Header1:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:    r.NewStyle().Bold(true),
		Bold:       r.NewStyle().Bold(true),
		Muted:      r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:    r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:    r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:      r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Info:       r.NewStyle().Foreground(lipgloss.Color("14")),
		Key:        r.NewStyle().Foreground(lipgloss.Color("8")),
		Keyword:    r.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
		Identifier: r.NewStyle().Foreground(lipgloss.Color("7")),
		Literal:    r.NewStyle().Foreground(lipgloss.Color("10")),
		Operator:   r.NewStyle().Foreground(lipgloss.Color("11")),
		Comment:    r.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
		Dot:        r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Token returns the style for a highlighting token type.
func (s Styles) Token(t core.ScannerTokenType) lipgloss.Style {
	switch t {
	case core.TokenKeyword:
		return s.Keyword
	case core.TokenIdentifier:
		return s.Identifier
	case core.TokenLiteralString, core.TokenLiteralInteger,
		core.TokenLiteralFloat, core.TokenLiteralHex, core.TokenLiteralBinary, core.TokenLiteralBoolean:
		return s.Literal
	case core.TokenOperator:
		return s.Operator
	case core.TokenComment:
		return s.Comment
	case core.TokenDot, core.TokenDotTrailing:
		return s.Dot
	}
	return s.Identifier
}

// SeverityStyle returns the style for a diagnostic severity.
func (s Styles) SeverityStyle(sev core.Severity) lipgloss.Style {
	switch sev {
	case core.SeverityError:
		return s.Error
	case core.SeverityWarning:
		return s.Warning
	case core.SeverityInfo:
		return s.Info
	}
	return s.Muted
}
