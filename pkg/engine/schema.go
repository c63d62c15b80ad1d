package engine

// Column describes a single typed column of a table
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema is the ordered column layout of a table
type Schema []Column

// ColumnIndex returns the position of the named column, or -1
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SortClause orders rows by one column
type SortClause struct {
	Column    int
	Ascending bool
}

// SortDescriptor is an ordered list of sort clauses. The zero value means
// "no sort applied".
type SortDescriptor struct {
	Clauses []SortClause
}

// IsZero reports whether no sort is applied
func (d SortDescriptor) IsZero() bool {
	return len(d.Clauses) == 0
}

// DistinctDescriptor lists the columns whose combined values must be unique.
// The zero value means "no distinct applied".
type DistinctDescriptor struct {
	Columns []int
}

// IsZero reports whether no distinct is applied
func (d DistinctDescriptor) IsZero() bool {
	return len(d.Columns) == 0
}
