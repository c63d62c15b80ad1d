package engine

// LinkList is an ordered collection of references to rows of a target table,
// reachable through a one-to-many relationship. Order is relationship order,
// not storage order.
type LinkList struct {
	target  *Table
	targets []RowID
}

// NewLinkList creates an empty link list over a target table
func NewLinkList(target *Table) *LinkList {
	return &LinkList{target: target}
}

// TargetTable returns the table the links point into
func (l *LinkList) TargetTable() *Table { return l.target }

// Size returns the number of links
func (l *LinkList) Size() int { return len(l.targets) }

// Get returns the target row ID at a position
func (l *LinkList) Get(i int) (RowID, bool) {
	if i < 0 || i >= len(l.targets) {
		return 0, false
	}
	return l.targets[i], true
}

// Ref returns a row accessor for the link at a position
func (l *LinkList) Ref(i int) (RowRef, bool) {
	id, ok := l.Get(i)
	if !ok {
		return RowRef{}, false
	}
	return l.target.Ref(id), true
}

// Find returns the position of the first link to the given row, or -1
func (l *LinkList) Find(id RowID) int {
	for i, t := range l.targets {
		if t == id {
			return i
		}
	}
	return -1
}

// Add appends a link to a target row
func (l *LinkList) Add(id RowID) {
	l.targets = append(l.targets, id)
}

// Remove drops the link at a position, preserving order
func (l *LinkList) Remove(i int) {
	if i < 0 || i >= len(l.targets) {
		return
	}
	l.targets = append(l.targets[:i], l.targets[i+1:]...)
}

// RemoveAllTargets deletes every linked row from the target table and
// empties the list
func (l *LinkList) RemoveAllTargets() {
	for _, id := range l.targets {
		l.target.DeleteRow(id)
	}
	l.targets = l.targets[:0]
}
