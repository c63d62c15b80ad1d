package engine

import (
	"sort"
)

// TableView is a concrete, explicitly ordered snapshot of rows matching a
// query (or assembled by hand). It can fall out of sync with its parent table
// and be brought back with SyncIfNeeded.
type TableView struct {
	parent       *Table
	rows         []RowID
	origin       *Query
	builtAt      uint64
	inTableOrder bool
	sortDesc     SortDescriptor
	distinctDesc DistinctDescriptor
}

// NewViewFromRows assembles a view over an explicit row set with no
// recoverable originating query
func NewViewFromRows(parent *Table, rows []RowID) *TableView {
	return &TableView{
		parent:  parent,
		rows:    append([]RowID(nil), rows...),
		builtAt: parent.version,
	}
}

// Parent returns the table the view's rows belong to
func (v *TableView) Parent() *Table { return v.parent }

// Query returns the originating query, or nil if the view has no
// recoverable origin
func (v *TableView) Query() *Query { return v.origin }

// Size returns the number of rows in the view
func (v *TableView) Size() int { return len(v.rows) }

// RowAt returns the row ID at a position
func (v *TableView) RowAt(i int) (RowID, bool) {
	if i < 0 || i >= len(v.rows) {
		return 0, false
	}
	return v.rows[i], true
}

// Get returns a row accessor for a position. The accessor may be detached
// if the underlying row was deleted after the view was built.
func (v *TableView) Get(i int) (RowRef, bool) {
	id, ok := v.RowAt(i)
	if !ok {
		return RowRef{}, false
	}
	return RowRef{table: v.parent, id: id}, true
}

// ValueAt reads one column of the row at a position. Detached rows read
// as null.
func (v *TableView) ValueAt(i, col int) Value {
	id, ok := v.RowAt(i)
	if !ok {
		return NullValue(v.parent.columnTypeOr(col, TypeInt))
	}
	return v.parent.Value(id, col)
}

// IsRowAttached reports whether the row at a position still exists
func (v *TableView) IsRowAttached(i int) bool {
	id, ok := v.RowAt(i)
	return ok && v.parent.Contains(id)
}

// IsInSync reports whether the view reflects the parent's latest version
func (v *TableView) IsInSync() bool {
	return v.builtAt == v.parent.version
}

// InTableOrder reports whether rows are guaranteed to be in storage order
func (v *TableView) InTableOrder() bool { return v.inTableOrder }

// SyncIfNeeded re-evaluates the view against the latest committed data.
// Views with an originating query are rebuilt from it; views without one can
// only compact away detached rows.
func (v *TableView) SyncIfNeeded() {
	if v.IsInSync() {
		return
	}
	if v.origin != nil {
		fresh := v.origin.FindAll()
		v.rows = fresh.rows
		v.inTableOrder = fresh.inTableOrder
		if !v.sortDesc.IsZero() {
			v.applySort(v.sortDesc)
		}
		if !v.distinctDesc.IsZero() {
			v.applyDistinct(v.distinctDesc)
		}
	} else {
		kept := v.rows[:0]
		for _, id := range v.rows {
			if v.parent.Contains(id) {
				kept = append(kept, id)
			}
		}
		v.rows = kept
	}
	v.builtAt = v.parent.version
}

// Sort orders the view by the descriptor. A stable sort keeps the prior
// order among equal rows.
func (v *TableView) Sort(d SortDescriptor) {
	if d.IsZero() {
		return
	}
	v.sortDesc = d
	v.applySort(d)
	v.inTableOrder = false
}

func (v *TableView) applySort(d SortDescriptor) {
	sort.SliceStable(v.rows, func(a, b int) bool {
		for _, cl := range d.Clauses {
			va := v.parent.Value(v.rows[a], cl.Column)
			vb := v.parent.Value(v.rows[b], cl.Column)
			if va.Equal(vb) {
				continue
			}
			if cl.Ascending {
				return va.Less(vb)
			}
			return vb.Less(va)
		}
		return false
	})
}

// Distinct removes rows whose descriptor columns duplicate an earlier row
func (v *TableView) Distinct(d DistinctDescriptor) {
	if d.IsZero() {
		return
	}
	v.distinctDesc = d
	v.applyDistinct(d)
}

func (v *TableView) applyDistinct(d DistinctDescriptor) {
	seen := make(map[string]struct{}, len(v.rows))
	kept := v.rows[:0]
	for _, id := range v.rows {
		var key []byte
		for _, col := range d.Columns {
			key = append(key, v.parent.Value(id, col).encodeKey()...)
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		kept = append(kept, id)
	}
	v.rows = kept
}

// Clear removes every row in the view from the parent table. Removal is
// unordered: no positional stability is guaranteed for surviving rows.
func (v *TableView) Clear() {
	for _, id := range v.rows {
		v.parent.DeleteRow(id)
	}
	v.rows = v.rows[:0]
	v.builtAt = v.parent.version
}

// FindFirst returns the view position of the first row whose column equals
// the value, or -1. Null values use an explicit null search and booleans
// match through integer storage.
func (v *TableView) FindFirst(col int, val Value) int {
	for i, id := range v.rows {
		if !v.parent.Contains(id) {
			continue
		}
		cell := v.parent.Value(id, col)
		if val.Null {
			if cell.Null {
				return i
			}
			continue
		}
		if cell.Equal(val) {
			return i
		}
	}
	return -1
}

// IndexOfRow returns the view position of a row ID, or -1
func (v *TableView) IndexOfRow(id RowID) int {
	for i, r := range v.rows {
		if r == id {
			return i
		}
	}
	return -1
}

// Rows returns a copy of the view's row IDs
func (v *TableView) Rows() []RowID {
	return append([]RowID(nil), v.rows...)
}

// Copy returns an independent view over the same rows
func (v *TableView) Copy() *TableView {
	cp := *v
	cp.rows = append([]RowID(nil), v.rows...)
	return &cp
}
