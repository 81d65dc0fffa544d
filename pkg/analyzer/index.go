package analyzer

import (
	"cmp"
	"sort"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// IndexedTableRef points from a catalog table to a table reference.
type IndexedTableRef struct {
	DatabaseID uint32
	SchemaID   uint32
	TableID    core.ExternalObjectID
	TableRef   uint32
}

// IndexedColumnRef points from a catalog column to a column reference.
type IndexedColumnRef struct {
	DatabaseID  uint32
	SchemaID    uint32
	TableID     core.ExternalObjectID
	ColumnIndex uint32
	ColumnRef   uint32
}

func compareTableKey(r IndexedTableRef, db, schema uint32, table core.ExternalObjectID) int {
	if c := cmp.Compare(r.DatabaseID, db); c != 0 {
		return c
	}
	if c := cmp.Compare(r.SchemaID, schema); c != 0 {
		return c
	}
	return cmp.Compare(r.TableID, table)
}

func compareColumnKey(r IndexedColumnRef, db, schema uint32, table core.ExternalObjectID, column uint32) int {
	if c := cmp.Compare(r.DatabaseID, db); c != 0 {
		return c
	}
	if c := cmp.Compare(r.SchemaID, schema); c != 0 {
		return c
	}
	if c := cmp.Compare(r.TableID, table); c != 0 {
		return c
	}
	return cmp.Compare(r.ColumnIndex, column)
}

// LowerBoundTableRefs returns the first position whose key is not less than
// (db, schema, table). refs must be sorted.
func LowerBoundTableRefs(refs []IndexedTableRef, db, schema uint32, table core.ExternalObjectID) int {
	return sort.Search(len(refs), func(i int) bool {
		return compareTableKey(refs[i], db, schema, table) >= 0
	})
}

// UpperBoundTableRefs returns the first position whose key is greater than
// (db, schema, table).
func UpperBoundTableRefs(refs []IndexedTableRef, db, schema uint32, table core.ExternalObjectID) int {
	return sort.Search(len(refs), func(i int) bool {
		return compareTableKey(refs[i], db, schema, table) > 0
	})
}

// EqualRangeTableRefs returns the range of refs with the given key.
func EqualRangeTableRefs(refs []IndexedTableRef, db, schema uint32, table core.ExternalObjectID) (int, int) {
	return LowerBoundTableRefs(refs, db, schema, table), UpperBoundTableRefs(refs, db, schema, table)
}

// LowerBoundColumnRefs returns the first position whose key is not less
// than (db, schema, table, column).
func LowerBoundColumnRefs(refs []IndexedColumnRef, db, schema uint32, table core.ExternalObjectID, column uint32) int {
	return sort.Search(len(refs), func(i int) bool {
		return compareColumnKey(refs[i], db, schema, table, column) >= 0
	})
}

// UpperBoundColumnRefs returns the first position whose key is greater
// than (db, schema, table, column).
func UpperBoundColumnRefs(refs []IndexedColumnRef, db, schema uint32, table core.ExternalObjectID, column uint32) int {
	return sort.Search(len(refs), func(i int) bool {
		return compareColumnKey(refs[i], db, schema, table, column) > 0
	})
}

// EqualRangeColumnRefs returns the range of refs with the given key.
func EqualRangeColumnRefs(refs []IndexedColumnRef, db, schema uint32, table core.ExternalObjectID, column uint32) (int, int) {
	return LowerBoundColumnRefs(refs, db, schema, table, column), UpperBoundColumnRefs(refs, db, schema, table, column)
}

// SortTableRefs sorts by key keeping insertion order for equal keys.
func SortTableRefs(refs []IndexedTableRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		b := refs[j]
		return compareTableKey(refs[i], b.DatabaseID, b.SchemaID, b.TableID) < 0
	})
}

// SortColumnRefs sorts by key keeping insertion order for equal keys.
func SortColumnRefs(refs []IndexedColumnRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		b := refs[j]
		return compareColumnKey(refs[i], b.DatabaseID, b.SchemaID, b.TableID, b.ColumnIndex) < 0
	})
}

func (p *pass) buildIndexes() {
	for i, ref := range p.out.TableRefs {
		if !ref.Resolved {
			continue
		}
		p.out.IndexedTableRefs = append(p.out.IndexedTableRefs, IndexedTableRef{
			DatabaseID: ref.DatabaseID,
			SchemaID:   ref.SchemaID,
			TableID:    ref.TableID,
			TableRef:   uint32(i),
		})
	}
	for i, ref := range p.out.ColumnRefs {
		if !ref.Resolved {
			continue
		}
		p.out.IndexedColumnRefs = append(p.out.IndexedColumnRefs, IndexedColumnRef{
			DatabaseID:  ref.DatabaseID,
			SchemaID:    ref.SchemaID,
			TableID:     ref.TableID,
			ColumnIndex: ref.ColumnIndex,
			ColumnRef:   uint32(i),
		})
	}
	SortTableRefs(p.out.IndexedTableRefs)
	SortColumnRefs(p.out.IndexedColumnRefs)
}

// FindTableRefs returns the table references of a catalog table.
func (s *AnalyzedScript) FindTableRefs(db, schema uint32, table core.ExternalObjectID) []IndexedTableRef {
	lo, hi := EqualRangeTableRefs(s.IndexedTableRefs, db, schema, table)
	return s.IndexedTableRefs[lo:hi]
}

// FindColumnRefs returns the column references of a catalog column.
func (s *AnalyzedScript) FindColumnRefs(db, schema uint32, table core.ExternalObjectID, column uint32) []IndexedColumnRef {
	lo, hi := EqualRangeColumnRefs(s.IndexedColumnRefs, db, schema, table, column)
	return s.IndexedColumnRefs[lo:hi]
}

// FindTableRefsOf returns the ids of the table references resolved to a
// table, in reference order.
func (s *AnalyzedScript) FindTableRefsOf(table core.ExternalObjectID) []uint32 {
	for _, r := range s.IndexedTableRefs {
		if r.TableID == table {
			refs := s.FindTableRefs(r.DatabaseID, r.SchemaID, table)
			out := make([]uint32, len(refs))
			for i, ref := range refs {
				out[i] = ref.TableRef
			}
			return out
		}
	}
	return nil
}
