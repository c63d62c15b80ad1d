package notify

import (
	"sort"

	"github.com/ssargent/verdandi/pkg/engine"
)

// ChangeSet describes the difference between two observed versions of a
// collection. Deletions and Modifications are positions in the previously
// delivered view, Insertions are positions in the new one. Columns maps a
// column index to the old positions whose value changed in that column.
type ChangeSet struct {
	Insertions    []int
	Deletions     []int
	Modifications []int
	Columns       map[int][]int
}

// Empty reports whether nothing changed
func (c ChangeSet) Empty() bool {
	return len(c.Insertions) == 0 && len(c.Deletions) == 0 && len(c.Modifications) == 0
}

// Diff computes the change-set between the previously delivered row list and
// a freshly evaluated one. mods carries the columns modified per surviving
// row during the covered commits.
func Diff(old, fresh []engine.RowID, mods map[engine.RowID][]int) ChangeSet {
	oldPos := make(map[engine.RowID]int, len(old))
	for i, id := range old {
		oldPos[id] = i
	}
	freshSet := make(map[engine.RowID]struct{}, len(fresh))
	for _, id := range fresh {
		freshSet[id] = struct{}{}
	}

	var cs ChangeSet
	for i, id := range old {
		if _, kept := freshSet[id]; !kept {
			cs.Deletions = append(cs.Deletions, i)
		}
	}
	for i, id := range fresh {
		if _, existed := oldPos[id]; !existed {
			cs.Insertions = append(cs.Insertions, i)
		}
	}
	for id, cols := range mods {
		pos, existed := oldPos[id]
		if !existed {
			continue
		}
		if _, kept := freshSet[id]; !kept {
			continue
		}
		cs.Modifications = append(cs.Modifications, pos)
		for _, col := range cols {
			if cs.Columns == nil {
				cs.Columns = map[int][]int{}
			}
			cs.Columns[col] = append(cs.Columns[col], pos)
		}
	}
	sort.Ints(cs.Modifications)
	return cs
}
