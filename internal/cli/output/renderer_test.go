package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/pkg/core"
)

func setupTestRenderer(t *testing.T, mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"text", ModeText, false},
		{"md", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"xml", ModeAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	r, _, _ := setupTestRenderer(t, ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = setupTestRenderer(t, ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = setupTestRenderer(t, ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_MarkdownHeaderAndTable(t *testing.T) {
	r, out, _ := setupTestRenderer(t, ModeMarkdown, false)
	r.Header(2, "Tables")
	r.KeyValue("Count", 1)
	r.Table([]string{"name", "columns"}, [][]any{{"customer", 3}})

	s := out.String()
	assert.Contains(t, s, "## Tables")
	assert.Contains(t, s, "- **Count:** 1")
	assert.Contains(t, s, "| name | columns |")
	assert.Contains(t, s, "| customer | 3 |")
}

func TestRenderer_TextHasNoANSIWithoutTTY(t *testing.T) {
	r, out, errOut := setupTestRenderer(t, ModeText, false)
	r.Header(1, "Title")
	r.Success("done")
	r.Warning("careful")

	assert.Equal(t, "Title\ndone\n", out.String())
	assert.Equal(t, "warning: careful\n", errOut.String())
}

func TestRenderer_EmptyTable(t *testing.T) {
	r, out, _ := setupTestRenderer(t, ModeText, false)
	r.Table([]string{"a"}, nil)
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := setupTestRenderer(t, ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"a": 1}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got["a"])
}

func TestRenderer_Diagnostics(t *testing.T) {
	r, out, _ := setupTestRenderer(t, ModeMarkdown, false)
	r.Diagnostics("select 1\nfrom where", []core.Diagnostic{{
		Severity: core.SeverityError,
		Loc:      core.Loc(14, 5),
		Source:   "parser",
		Message:  "unexpected WHERE",
	}})
	assert.Equal(t, "2:6: error [parser] unexpected WHERE\n", out.String())
}
