package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/dashql/pkg/core"
)

func TestTableRefBounds(t *testing.T) {
	table := core.NewExternalObjectID(1, 1)
	higher := core.NewExternalObjectID(1, 2)

	var refs []IndexedTableRef
	for i := 0; i < 100; i++ {
		refs = append(refs, IndexedTableRef{TableID: table, TableRef: uint32(i)})
	}
	refs = append(refs, IndexedTableRef{TableID: higher, TableRef: 100})
	SortTableRefs(refs)

	assert.Equal(t, 0, LowerBoundTableRefs(refs, 0, 0, table))
	assert.Equal(t, 100, UpperBoundTableRefs(refs, 0, 0, table))
	assert.Equal(t, 100, LowerBoundTableRefs(refs, 0, 0, higher))
	assert.Equal(t, 101, UpperBoundTableRefs(refs, 0, 0, higher))

	lo, hi := EqualRangeTableRefs(refs, 0, 0, core.NewExternalObjectID(1, 0))
	assert.Equal(t, lo, hi)
	for i := 0; i < 100; i++ {
		assert.Equal(t, uint32(i), refs[i].TableRef, "stable sort keeps insertion order")
	}
}

func TestTableRefBounds_ThreeLevels(t *testing.T) {
	id := core.NewExternalObjectID(0, 0)
	refs := []IndexedTableRef{
		{DatabaseID: 1, SchemaID: 0, TableID: id, TableRef: 0},
		{DatabaseID: 0, SchemaID: 2, TableID: id, TableRef: 1},
		{DatabaseID: 0, SchemaID: 1, TableID: core.NewExternalObjectID(0, 5), TableRef: 2},
		{DatabaseID: 0, SchemaID: 1, TableID: id, TableRef: 3},
	}
	SortTableRefs(refs)

	var order []uint32
	for _, r := range refs {
		order = append(order, r.TableRef)
	}
	assert.Equal(t, []uint32{3, 2, 1, 0}, order)

	tests := []struct {
		name         string
		db, schema   uint32
		table        core.ExternalObjectID
		lower, upper int
	}{
		{"first", 0, 1, id, 0, 1},
		{"table within schema", 0, 1, core.NewExternalObjectID(0, 5), 1, 2},
		{"schema", 0, 2, id, 2, 3},
		{"database", 1, 0, id, 3, 4},
		{"missing between", 0, 1, core.NewExternalObjectID(0, 3), 1, 1},
		{"missing after", 2, 0, id, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.lower, LowerBoundTableRefs(refs, tt.db, tt.schema, tt.table))
			assert.Equal(t, tt.upper, UpperBoundTableRefs(refs, tt.db, tt.schema, tt.table))
		})
	}
}

func TestColumnRefBounds(t *testing.T) {
	table := core.NewExternalObjectID(1, 0)
	refs := []IndexedColumnRef{
		{TableID: table, ColumnIndex: 2, ColumnRef: 0},
		{TableID: table, ColumnIndex: 1, ColumnRef: 1},
		{TableID: table, ColumnIndex: 1, ColumnRef: 2},
	}
	SortColumnRefs(refs)

	lo, hi := EqualRangeColumnRefs(refs, 0, 0, table, 1)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 2, hi)
	assert.Equal(t, uint32(1), refs[0].ColumnRef)
	assert.Equal(t, 2, LowerBoundColumnRefs(refs, 0, 0, table, 2))
	assert.Equal(t, 3, UpperBoundColumnRefs(refs, 0, 0, table, 2))
}
