package engine

import (
	"fmt"
)

// RowID is a stable identifier for a row. IDs are never reused within a table.
type RowID uint64

// Table is an in-memory table with typed columns and stable row identities.
// Rows keep their insertion order; positional access is by that order.
type Table struct {
	db       *DB
	name     string
	schema   Schema
	rows     []tableRow
	byID     map[RowID]int
	nextID   RowID
	attached bool
	version  uint64
	modAt    map[RowID]uint64
	indexes  map[int]*columnIndex
}

type tableRow struct {
	id   RowID
	vals []Value
}

func newTable(db *DB, name string, schema Schema) *Table {
	return &Table{
		db:       db,
		name:     name,
		schema:   schema,
		byID:     map[RowID]int{},
		nextID:   1,
		attached: true,
		modAt:    map[RowID]uint64{},
		indexes:  map[int]*columnIndex{},
	}
}

// Name returns the table name
func (t *Table) Name() string { return t.name }

// Schema returns the table's column layout
func (t *Table) Schema() Schema { return t.schema }

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int { return len(t.schema) }

// IsAttached reports whether the table still exists in its DB
func (t *Table) IsAttached() bool { return t.attached }

// Size returns the number of rows. O(1).
func (t *Table) Size() int { return len(t.rows) }

// Version returns the table's mutation counter
func (t *Table) Version() uint64 { return t.version }

// Contains reports whether the row still exists
func (t *Table) Contains(id RowID) bool {
	_, ok := t.byID[id]
	return ok
}

// PositionOf returns the positional index of a row, or -1 if detached
func (t *Table) PositionOf(id RowID) int {
	pos, ok := t.byID[id]
	if !ok {
		return -1
	}
	return pos
}

// RowAt returns the ID of the row at the given position
func (t *Table) RowAt(pos int) (RowID, bool) {
	if pos < 0 || pos >= len(t.rows) {
		return 0, false
	}
	return t.rows[pos].id, true
}

// Get returns a row accessor for the given position
func (t *Table) Get(pos int) (RowRef, bool) {
	id, ok := t.RowAt(pos)
	if !ok {
		return RowRef{}, false
	}
	return RowRef{table: t, id: id}, true
}

// Ref returns a row accessor for a row ID. The ref may be detached.
func (t *Table) Ref(id RowID) RowRef {
	return RowRef{table: t, id: id}
}

// Value returns the value of a column for a row. Detached rows read as null.
func (t *Table) Value(id RowID, col int) Value {
	pos, ok := t.byID[id]
	if !ok || col < 0 || col >= len(t.schema) {
		return NullValue(t.columnTypeOr(col, TypeInt))
	}
	return t.rows[pos].vals[col]
}

// ValueAt returns the value of a column for the row at a position
func (t *Table) ValueAt(pos, col int) Value {
	if pos < 0 || pos >= len(t.rows) || col < 0 || col >= len(t.schema) {
		return NullValue(t.columnTypeOr(col, TypeInt))
	}
	return t.rows[pos].vals[col]
}

func (t *Table) columnTypeOr(col int, fallback ColumnType) ColumnType {
	if col >= 0 && col < len(t.schema) {
		return t.schema[col].Type
	}
	return fallback
}

// AddRow appends a row with the given column values and returns its accessor
func (t *Table) AddRow(vals ...Value) (RowRef, error) {
	if len(vals) != len(t.schema) {
		return RowRef{}, fmt.Errorf("expected %d values, got %d", len(t.schema), len(vals))
	}
	for i, v := range vals {
		if err := t.checkValue(i, v); err != nil {
			return RowRef{}, err
		}
	}
	id := t.nextID
	t.nextID++
	t.byID[id] = len(t.rows)
	t.rows = append(t.rows, tableRow{id: id, vals: append([]Value(nil), vals...)})
	t.bump()
	t.recordChange(id, changeInsert, -1)
	return RowRef{table: t, id: id}, nil
}

// RestoreRow appends a row with an explicit identity. Used by the
// persistence layer when loading tables; the ID must not collide with an
// existing row.
func (t *Table) RestoreRow(id RowID, vals []Value) (RowRef, error) {
	if len(vals) != len(t.schema) {
		return RowRef{}, fmt.Errorf("expected %d values, got %d", len(t.schema), len(vals))
	}
	if _, exists := t.byID[id]; exists {
		return RowRef{}, fmt.Errorf("row %d already exists in table %q", id, t.name)
	}
	for i, v := range vals {
		if err := t.checkValue(i, v); err != nil {
			return RowRef{}, err
		}
	}
	t.byID[id] = len(t.rows)
	t.rows = append(t.rows, tableRow{id: id, vals: append([]Value(nil), vals...)})
	if id >= t.nextID {
		t.nextID = id + 1
	}
	t.bump()
	t.recordChange(id, changeInsert, -1)
	return RowRef{table: t, id: id}, nil
}

// SetValue updates one column of a row
func (t *Table) SetValue(id RowID, col int, v Value) error {
	pos, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("row %d is detached from table %q", id, t.name)
	}
	if col < 0 || col >= len(t.schema) {
		return fmt.Errorf("column %d out of range for table %q", col, t.name)
	}
	if err := t.checkValue(col, v); err != nil {
		return err
	}
	t.rows[pos].vals[col] = v
	t.bump()
	t.modAt[id] = t.version
	t.recordChange(id, changeModify, col)
	return nil
}

// DeleteRow removes a row. Later rows shift down one position.
func (t *Table) DeleteRow(id RowID) {
	pos, ok := t.byID[id]
	if !ok {
		return
	}
	t.rows = append(t.rows[:pos], t.rows[pos+1:]...)
	delete(t.byID, id)
	delete(t.modAt, id)
	for i := pos; i < len(t.rows); i++ {
		t.byID[t.rows[i].id] = i
	}
	t.bump()
	t.recordChange(id, changeDelete, -1)
}

// Clear removes all rows
func (t *Table) Clear() {
	for _, r := range t.rows {
		t.recordChange(r.id, changeDelete, -1)
	}
	t.rows = t.rows[:0]
	t.byID = map[RowID]int{}
	t.modAt = map[RowID]uint64{}
	t.bump()
}

// ModifiedAt returns the table version at which the row was last modified
func (t *Table) ModifiedAt(id RowID) uint64 {
	return t.modAt[id]
}

// FindFirst returns the position of the first row whose column equals the
// value, or -1. A null value performs an explicit null search; booleans are
// matched through their integer storage.
func (t *Table) FindFirst(col int, v Value) int {
	if col < 0 || col >= len(t.schema) {
		return -1
	}
	for pos := range t.rows {
		cell := t.rows[pos].vals[col]
		if v.Null {
			if cell.Null {
				return pos
			}
			continue
		}
		if cell.Equal(v) {
			return pos
		}
	}
	return -1
}

// Where returns an unconditioned query over the table
func (t *Table) Where(conds ...Cond) *Query {
	return &Query{table: t, conds: append([]Cond(nil), conds...)}
}

// WhereLinks returns a query matching exactly the targets of a link list
func (t *Table) WhereLinks(ll *LinkList) *Query {
	return &Query{table: t, links: ll}
}

func (t *Table) checkValue(col int, v Value) error {
	c := t.schema[col]
	if v.Null {
		if !c.Nullable {
			return fmt.Errorf("column %q of table %q is not nullable", c.Name, t.name)
		}
		return nil
	}
	if v.Type != c.Type {
		// Bool columns accept their integer storage representation.
		if c.Type == TypeBool && v.Type == TypeInt {
			return nil
		}
		return fmt.Errorf("column %q of table %q holds %s, got %s", c.Name, t.name, c.Type, v.Type)
	}
	return nil
}

func (t *Table) bump() {
	t.version++
}

func (t *Table) recordChange(id RowID, kind changeKind, col int) {
	if t.db != nil {
		t.db.recordChange(t, id, kind, col)
	}
}

// RowRef is an accessor for one row of a table. It stays usable after the
// row is deleted, reporting IsAttached() == false.
type RowRef struct {
	table *Table
	id    RowID
}

// Table returns the owning table, which may be nil for the zero ref
func (r RowRef) Table() *Table { return r.table }

// ID returns the stable row identifier
func (r RowRef) ID() RowID { return r.id }

// IsAttached reports whether the referenced row still exists
func (r RowRef) IsAttached() bool {
	return r.table != nil && r.table.Contains(r.id)
}

// Value reads one column of the referenced row
func (r RowRef) Value(col int) Value {
	if r.table == nil {
		return NullValue(TypeInt)
	}
	return r.table.Value(r.id, col)
}
