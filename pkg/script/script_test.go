package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dashql/internal/testutil"
	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/completion"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

func setupTestScript(t *testing.T, cat *catalog.Catalog, id uint32, text string) *Script {
	t.Helper()
	if cat == nil {
		cat = catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	}
	return New(cat, id, WithText(text), WithLogger(testutil.NewTestLogger(t)))
}

// runPipeline scans, parses and analyzes the script.
func runPipeline(t *testing.T, s *Script) {
	t.Helper()
	_, err := s.Scan()
	require.NoError(t, err)
	_, err = s.Parse()
	require.NoError(t, err)
	_, err = s.Analyze()
	require.NoError(t, err)
}

func TestScript_StageOrder(t *testing.T) {
	s := setupTestScript(t, nil, 1, "select 1")

	_, err := s.Parse()
	assert.ErrorIs(t, err, core.ErrScriptNotScanned)
	_, err = s.Analyze()
	assert.ErrorIs(t, err, core.ErrScriptNotParsed)

	_, err = s.Scan()
	require.NoError(t, err)
	_, err = s.Analyze()
	assert.ErrorIs(t, err, core.ErrScriptNotParsed)

	_, err = s.Parse()
	require.NoError(t, err)
	analyzed, err := s.Analyze()
	require.NoError(t, err)
	v, err := analyzed.Read()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v.ExternalID())
}

func TestScript_EditResetsStages(t *testing.T) {
	s := setupTestScript(t, nil, 1, "select 1")
	runPipeline(t, s)
	require.Equal(t, uint64(0), s.Revision())

	s.InsertTextAt(8, ", 2")
	assert.Equal(t, uint64(1), s.Revision())
	_, err := s.Parse()
	assert.ErrorIs(t, err, core.ErrScriptNotScanned)

	st := s.Statistics()
	assert.Equal(t, 0, st.Symbols)
	assert.Zero(t, st.ScannerDuration)
	assert.Equal(t, len("select 1, 2"), st.TextSize)
}

func TestScript_IncrementalEdits(t *testing.T) {
	const want = "select a, b from t where a = 'ü'"

	tests := []struct {
		name string
		edit func(s *Script)
	}{
		{"insert text", func(s *Script) {
			s.InsertTextAt(0, "select a from t")
			s.InsertTextAt(8, ", b")
			s.InsertTextAt(100, " where a = ''")
			s.InsertCharAt(s.Len()-1, 'ü')
		}},
		{"erase and replace", func(s *Script) {
			s.ReplaceText("select x, a, b from t where a = 'ü' limit 10")
			s.EraseTextRange(7, 3)
			s.EraseTextRange(len(want), 100)
		}},
		{"char by char", func(s *Script) {
			for i, c := range want {
				s.InsertCharAt(i, c)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestScript(t, nil, 1, "")
			tt.edit(s)
			require.Equal(t, want, s.String())

			h, err := s.Scan()
			require.NoError(t, err)
			got, err := h.Read()
			require.NoError(t, err)
			fresh, err := scanner.Scan(want, 1)
			require.NoError(t, err)
			assert.Equal(t, fresh.Symbols, got.Symbols)
		})
	}
}

func TestHandle_UseAfterRelease(t *testing.T) {
	s := setupTestScript(t, nil, 1, "select 1")
	h, err := s.Scan()
	require.NoError(t, err)
	assert.False(t, h.Released())

	h.Release()
	h.Release()
	assert.True(t, h.Released())
	_, err = h.Read()
	assert.ErrorIs(t, err, core.ErrNullPointer)

	var nilHandle *Handle[int]
	_, err = nilHandle.Read()
	assert.ErrorIs(t, err, core.ErrNullPointer)
}

func TestScript_ExternalIDCollision(t *testing.T) {
	cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	first := setupTestScript(t, cat, 1, testutil.TPCHSchema)
	runPipeline(t, first)
	require.NoError(t, first.LoadInto(cat, 0))

	second := setupTestScript(t, cat, 1, "select 1")
	_, err := second.Scan()
	require.NoError(t, err)
	_, err = second.Parse()
	require.NoError(t, err)
	_, err = second.Analyze()
	assert.ErrorIs(t, err, core.ErrExternalIDCollision)

	// Reanalyzing and reloading the owner replaces its entry.
	runPipeline(t, first)
	assert.NoError(t, first.LoadInto(cat, 0))
}

func TestScript_LoadInto(t *testing.T) {
	cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	s := setupTestScript(t, cat, 1, "create table t (a int)")

	assert.ErrorIs(t, s.LoadInto(catalog.New(), 0), core.ErrCatalogMismatch)
	assert.ErrorIs(t, s.LoadInto(cat, 0), core.ErrScriptNotAnalyzed)

	runPipeline(t, s)
	require.NoError(t, s.LoadInto(cat, 0))
	assert.True(t, cat.Contains(1))

	s.Release()
	assert.False(t, cat.Contains(1))
}

func TestScript_CompleteAtCursor(t *testing.T) {
	cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
	schema := setupTestScript(t, cat, 1, testutil.TPCHSchema)
	runPipeline(t, schema)
	require.NoError(t, schema.LoadInto(cat, 0))

	s := setupTestScript(t, cat, 2, "select * from cus")
	_, err := s.CompleteAtCursor(completion.DefaultLimit)
	assert.ErrorIs(t, err, core.ErrNullPointer)

	runPipeline(t, s)
	cur, err := s.MoveCursor(17)
	require.NoError(t, err)
	assert.Equal(t, "cus", cur.Symbol())

	result, err := s.CompleteAtCursor(completion.DefaultLimit)
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "customer", result.Candidates[0].Label)
	assert.Equal(t, completion.ActionCompleteSymbol, result.Action)

	st := s.Statistics()
	assert.Positive(t, st.Symbols)
	assert.Positive(t, st.Nodes)
	assert.Positive(t, st.ScannerMemory)
}

func TestScript_ReanalyzeWithoutReparse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		desc  catalog.SchemaDescriptor
	}{
		{"qualified", "select column1 from db1.schema1.table1", catalog.SchemaDescriptor{
			DatabaseName: "db1",
			SchemaName:   "schema1",
			Tables:       []catalog.TableDescriptor{{TableName: "table1", Columns: []catalog.ColumnDescriptor{{ColumnName: "column1"}}}},
		}},
		{"defaults", "select o_id from orders", catalog.SchemaDescriptor{
			Tables: []catalog.TableDescriptor{{TableName: "orders", Columns: []catalog.ColumnDescriptor{{ColumnName: "o_id"}}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := catalog.New(catalog.WithLogger(testutil.NewTestLogger(t)))
			s := setupTestScript(t, cat, 1, tt.query)
			runPipeline(t, s)
			h, err := s.Analyze()
			require.NoError(t, err)
			before, err := h.Read()
			require.NoError(t, err)
			require.Len(t, before.TableRefs, 1)
			require.False(t, before.TableRefs[0].Resolved)

			require.NoError(t, cat.ReplaceDescriptorPool(100, 10, []catalog.SchemaDescriptor{tt.desc}))

			h, err = s.Analyze()
			require.NoError(t, err)
			after, err := h.Read()
			require.NoError(t, err)
			require.Len(t, after.TableRefs, 1)
			ref := after.TableRefs[0]
			assert.True(t, ref.Resolved)
			assert.Equal(t, uint32(100), ref.TableID.ExternalID())
			assert.Same(t, before.Parsed, after.Parsed, "the parse is reused")
			assert.Equal(t, cat.Version(), after.CatalogVersion)
		})
	}
}

func TestScript_Released(t *testing.T) {
	s := setupTestScript(t, nil, 1, "select 1")
	s.Release()
	s.Release()

	_, err := s.Scan()
	assert.ErrorIs(t, err, core.ErrNullPointer)
	_, err = s.Parse()
	assert.ErrorIs(t, err, core.ErrNullPointer)
	_, err = s.Analyze()
	assert.ErrorIs(t, err, core.ErrNullPointer)
	_, err = s.MoveCursor(0)
	assert.ErrorIs(t, err, core.ErrNullPointer)
	_, err = s.CompleteAtCursor(10)
	assert.ErrorIs(t, err, core.ErrNullPointer)
	assert.ErrorIs(t, s.LoadInto(s.Catalog(), 0), core.ErrNullPointer)

	edits := []struct {
		name string
		run  func() error
	}{
		{"insert text", func() error { return s.InsertTextAt(0, "x") }},
		{"insert char", func() error { return s.InsertCharAt(0, 'x') }},
		{"erase", func() error { return s.EraseTextRange(0, 1) }},
		{"replace", func() error { return s.ReplaceText("select 2") }},
	}
	for _, tt := range edits {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), core.ErrNullPointer)
		})
	}
	assert.Empty(t, s.String(), "text is dropped on release")
	assert.Zero(t, s.Len())
	assert.Equal(t, uint64(1), s.Revision(), "edits after release are not applied")
}
