package engine

import (
	"fmt"
)

// Op is a comparison operator in a query condition
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Cond is a single (column, operator, value) condition
type Cond struct {
	Col   int
	Op    Op
	Value Value
}

// Validate checks that the condition is properly formed for a table
func (c Cond) Validate(t *Table) error {
	if c.Col < 0 || c.Col >= t.ColumnCount() {
		return fmt.Errorf("column %d out of range for table %q", c.Col, t.Name())
	}
	switch c.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	default:
		return fmt.Errorf("invalid operator: %s", c.Op)
	}
	return nil
}

func (c Cond) matches(v Value) bool {
	switch c.Op {
	case OpEq:
		return v.Equal(c.Value)
	case OpNe:
		return !v.Equal(c.Value)
	case OpLt:
		return !v.Null && v.Less(c.Value)
	case OpLe:
		return !v.Null && (v.Less(c.Value) || v.Equal(c.Value))
	case OpGt:
		return !v.Null && !c.Value.Null && c.Value.Less(v)
	case OpGe:
		return !v.Null && !c.Value.Null && (c.Value.Less(v) || v.Equal(c.Value))
	}
	return false
}

// Query is a composable predicate over one table. It can additionally be
// scoped to a fixed row set (wrapping a view's membership) or to the targets
// of a link list; conditions then apply on top of that scope.
type Query struct {
	table    *Table
	conds    []Cond
	restrict []RowID
	links    *LinkList
}

// Table returns the table the query targets
func (q *Query) Table() *Table { return q.table }

// And returns a new query matching rows that satisfy both predicates
func (q *Query) And(other *Query) *Query {
	nq := &Query{
		table:    q.table,
		conds:    append(append([]Cond(nil), q.conds...), other.conds...),
		restrict: q.restrict,
		links:    q.links,
	}
	if nq.restrict == nil {
		nq.restrict = other.restrict
	}
	if nq.links == nil {
		nq.links = other.links
	}
	return nq
}

// Where returns a new query with additional conditions
func (q *Query) Where(conds ...Cond) *Query {
	return &Query{
		table:    q.table,
		conds:    append(append([]Cond(nil), q.conds...), conds...),
		restrict: q.restrict,
		links:    q.links,
	}
}

// Validate checks all conditions against the target table
func (q *Query) Validate() error {
	for _, c := range q.conds {
		if err := c.Validate(q.table); err != nil {
			return fmt.Errorf("invalid query: %w", err)
		}
	}
	return nil
}

// IsTableOrdered reports whether matches come back in storage order.
// Link-scoped queries follow relationship order and row-set scoped queries
// follow the captured set's order, so neither is table ordered.
func (q *Query) IsTableOrdered() bool {
	return q.links == nil && q.restrict == nil
}

// SyncViewIfNeeded refreshes any view dependency the predicate carries.
// Row-set scopes are fixed snapshots, so there is nothing to refresh; the
// hook exists so callers need not care which shape they hold.
func (q *Query) SyncViewIfNeeded() {}

// Count returns the number of matching rows without building a view
func (q *Query) Count() int {
	n := 0
	q.forEach(func(RowID) {
		n++
	})
	return n
}

// FindAll evaluates the query into a fresh table view
func (q *Query) FindAll() *TableView {
	var rows []RowID
	q.forEach(func(id RowID) {
		rows = append(rows, id)
	})
	return &TableView{
		parent:       q.table,
		rows:         rows,
		origin:       q,
		builtAt:      q.table.version,
		inTableOrder: q.IsTableOrdered(),
	}
}

// forEach visits matching row IDs in the query's natural order
func (q *Query) forEach(fn func(RowID)) {
	switch {
	case q.links != nil:
		for _, id := range q.links.targets {
			if q.table.Contains(id) && q.rowMatches(id) {
				fn(id)
			}
		}
	case q.restrict != nil:
		for _, id := range q.restrict {
			if q.table.Contains(id) && q.rowMatches(id) {
				fn(id)
			}
		}
	case len(q.conds) == 1 && q.conds[0].Op == OpEq:
		// Equality fast path through the column index. Index results are in
		// insertion order per key, which matches table order for a single key.
		for _, id := range q.table.indexFor(q.conds[0].Col).search(q.conds[0].Value) {
			fn(id)
		}
	default:
		for _, r := range q.table.rows {
			if q.rowMatches(r.id) {
				fn(r.id)
			}
		}
	}
}

func (q *Query) rowMatches(id RowID) bool {
	pos := q.table.PositionOf(id)
	if pos < 0 {
		return false
	}
	for _, c := range q.conds {
		if !c.matches(q.table.rows[pos].vals[c.Col]) {
			return false
		}
	}
	return true
}
