package cursor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/testutil"
	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/parser"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

func setupTestSource(t *testing.T, schema, text string) Source {
	t.Helper()
	cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	if schema != "" {
		s := analyze(t, cat, 1, schema)
		require.NoError(t, cat.LoadScript(s.Analyzed, 0))
	}
	return analyze(t, cat, 2, text)
}

func analyze(t *testing.T, cat *catalog.Catalog, id uint32, text string) Source {
	t.Helper()
	scanned, err := scanner.Scan(text, id)
	require.NoError(t, err)
	parsed, err := parser.Parse(scanned)
	require.NoError(t, err)
	analyzed, err := analyzer.Analyze(parsed, cat.CreateSnapshot(), analyzer.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	return Source{Scanned: scanned, Parsed: parsed, Analyzed: analyzed}
}

func TestPlace_StatementStart(t *testing.T) {
	src := setupTestSource(t, "", "select * from A b, C d where b.x = d.y")

	cur, err := Place(src, 0)
	require.NoError(t, err)
	assert.Equal(t, "select", cur.Symbol())
	assert.Equal(t, scanner.BeginOfSymbol, cur.Location.Relative)
	assert.Equal(t, uint32(0), cur.StatementID)

	node, ok := cur.Node()
	require.True(t, ok)
	assert.Equal(t, core.NodeSelect, node.Type)
	assert.Equal(t, ContextNone, cur.Context.Kind)
	require.Len(t, cur.Scopes, 1)
}

func TestPlace_Contexts(t *testing.T) {
	const text = "select b.x from A b, C d where b.x = d.y"
	src := setupTestSource(t, "create table a (x int); create table c (y int);", text)

	tests := []struct {
		name      string
		offset    int
		kind      ContextKind
		path      []string
		component int
	}{
		{name: "alias of target", offset: 7, kind: ContextColumnRef, path: []string{"b", "x"}, component: 0},
		{name: "column of target", offset: 9, kind: ContextColumnRef, path: []string{"b", "x"}, component: 1},
		{name: "table ref", offset: strings.Index(text, "C d") + 1, kind: ContextTableRef, path: []string{"c"}, component: 0},
		{name: "where clause", offset: strings.Index(text, "d.y") + 2, kind: ContextColumnRef, path: []string{"d", "y"}, component: 1},
		{name: "keyword", offset: strings.Index(text, "where") + 2, kind: ContextNone, component: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, err := Place(src, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, cur.Context.Kind)
			assert.Equal(t, tt.path, Names(cur.Context.Path))
			assert.Equal(t, tt.component, cur.Context.Component)

			switch tt.kind {
			case ContextColumnRef:
				require.NotEqual(t, core.NullID, cur.ColumnRefID)
				ref := src.Analyzed.ColumnRefs[cur.ColumnRefID]
				assert.Equal(t, tt.path[len(tt.path)-1], ref.Column)
				assert.True(t, ref.Resolved)
			case ContextTableRef:
				require.NotEqual(t, core.NullID, cur.TableRefID)
				assert.True(t, src.Analyzed.TableRefs[cur.TableRefID].Resolved)
			}
		})
	}
}

func TestPlace_SubqueryScopes(t *testing.T) {
	const text = "select * from a where x in (select y from c)"
	src := setupTestSource(t, "create table a (x int); create table c (y int);", text)

	cur, err := Place(src, strings.Index(text, "y from"))
	require.NoError(t, err)
	require.Len(t, cur.Scopes, 2)
	inner, outer := src.Analyzed.Scopes[cur.Scopes[0]], src.Analyzed.Scopes[cur.Scopes[1]]
	assert.Equal(t, outer.ID, inner.Parent)
	assert.Equal(t, ContextColumnRef, cur.Context.Kind)
	assert.Equal(t, "y", src.Analyzed.ColumnRefs[cur.ColumnRefID].Column)
}

func TestPlace_TrailingDot(t *testing.T) {
	const text = "select b. from a b"
	src := setupTestSource(t, "create table a (x int)", text)

	cur, err := Place(src, strings.Index(text, ".")+1)
	require.NoError(t, err)
	assert.Equal(t, ContextColumnRef, cur.Context.Kind)
	require.Len(t, cur.Context.Path, 2)
	assert.Equal(t, NameComponentTrailingDot, cur.Context.Path[1].Type)
	assert.Equal(t, []string{"b"}, Names(cur.Context.Path))
}

func TestPlace_ScannerOnly(t *testing.T) {
	scanned, err := scanner.Scan("select 1", 1)
	require.NoError(t, err)

	cur, err := Place(Source{Scanned: scanned}, 100)
	require.NoError(t, err)
	assert.Equal(t, uint32(len("select 1")), cur.TextOffset)
	assert.Equal(t, "1", cur.Symbol())
	assert.Equal(t, scanner.EndOfSymbol, cur.Location.Relative)
	assert.Equal(t, core.NullID, cur.NodeID)
	assert.Empty(t, cur.Path)

	_, err = Place(Source{}, 0)
	assert.ErrorIs(t, err, core.ErrScriptNotScanned)
}

func TestPlace_StaleStagesIgnored(t *testing.T) {
	src := setupTestSource(t, "", "select 1")
	rescanned, err := scanner.Scan("select 2", 2)
	require.NoError(t, err)

	cur, err := Place(Source{Scanned: rescanned, Parsed: src.Parsed, Analyzed: src.Analyzed}, 0)
	require.NoError(t, err)
	assert.Nil(t, cur.Source.Parsed)
	assert.Nil(t, cur.Source.Analyzed)
	assert.Equal(t, core.NullID, cur.StatementID)
}
