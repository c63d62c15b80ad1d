package engine

// columnIndex is an in-memory equality index over one column. The index is
// rebuilt lazily when the table has moved past the version it was built at,
// which keeps mutation paths free of incremental maintenance.
type columnIndex struct {
	col     int
	builtAt uint64
	byKey   map[string][]RowID
}

// indexFor returns an up-to-date equality index for the column
func (t *Table) indexFor(col int) *columnIndex {
	idx, ok := t.indexes[col]
	if !ok {
		idx = &columnIndex{col: col}
		t.indexes[col] = idx
	}
	if idx.byKey == nil || idx.builtAt != t.version {
		idx.rebuild(t)
	}
	return idx
}

func (idx *columnIndex) rebuild(t *Table) {
	idx.byKey = make(map[string][]RowID, len(t.rows))
	for _, r := range t.rows {
		key := string(r.vals[idx.col].encodeKey())
		idx.byKey[key] = append(idx.byKey[key], r.id)
	}
	idx.builtAt = t.version
}

// search returns the rows whose column equals the value, in table order
func (idx *columnIndex) search(v Value) []RowID {
	return idx.byKey[string(v.encodeKey())]
}
