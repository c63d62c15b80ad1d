package engine

import (
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"
)

// ContextToken identifies the execution context a DB handle is bound to.
// Collections capture the token at construction and compare it on every
// access, which makes the confinement check portable across concurrency
// models instead of relying on a captured thread identity.
type ContextToken struct {
	id ksuid.KSUID
}

func (t ContextToken) String() string { return t.id.String() }

type changeKind int

const (
	changeInsert changeKind = iota
	changeModify
	changeDelete
)

// TableChanges accumulates the rows touched by one write transaction
type TableChanges struct {
	Inserted map[RowID]struct{}
	Deleted  map[RowID]struct{}
	Modified map[RowID][]int
}

func newTableChanges() *TableChanges {
	return &TableChanges{
		Inserted: map[RowID]struct{}{},
		Deleted:  map[RowID]struct{}{},
		Modified: map[RowID][]int{},
	}
}

// CommitInfo describes one committed version transition
type CommitInfo struct {
	Version uint64
	Changes map[string]*TableChanges
}

// CommitObserver receives commit events. Implementations must not block the
// committing goroutine.
type CommitObserver interface {
	CommitObserved(CommitInfo)
}

// DB is a context-confined handle onto a set of tables. One handle belongs
// to one execution context; all reads and writes through it are sequential,
// including the commit snapshots taken for an attached notify coordinator.
type DB struct {
	mu       sync.RWMutex
	tables   map[string]*Table
	names    []string
	token    ContextToken
	readOnly bool
	inWrite  bool
	invalid  bool
	version  uint64
	pending  map[string]*TableChanges
	notifier CommitObserver
}

// NewDB creates an empty database handle bound to the calling context
func NewDB() *DB {
	return &DB{
		tables: map[string]*Table{},
		token:  ContextToken{id: ksuid.New()},
	}
}

// ContextToken returns the token collections must present on access
func (d *DB) ContextToken() ContextToken { return d.token }

// VerifyContext checks that a captured token still names this handle's
// owning context
func (d *DB) VerifyContext(tok ContextToken) bool {
	return !d.invalid && tok == d.token
}

// Invalidate ends the handle's lifetime. Collections holding it raise
// invalidated errors on their next access.
func (d *DB) Invalidate() {
	d.invalid = true
}

// SetReadOnly marks the handle read-only; write transactions and async
// registrations are refused
func (d *DB) SetReadOnly(ro bool) {
	d.readOnly = ro
}

// ReadOnly reports whether the handle refuses writes
func (d *DB) ReadOnly() bool { return d.readOnly }

// IsInWrite reports whether a write transaction is open
func (d *DB) IsInWrite() bool { return d.inWrite }

// Version returns the latest committed version
func (d *DB) Version() uint64 { return d.version }

// SetNotifier attaches a commit observer, normally the notify coordinator
func (d *DB) SetNotifier(n CommitObserver) {
	d.notifier = n
}

// Notifier returns the attached commit observer, if any
func (d *DB) Notifier() CommitObserver { return d.notifier }

// CanDeliverNotifications reports whether async change delivery is possible
func (d *DB) CanDeliverNotifications() bool {
	return d.notifier != nil && !d.readOnly
}

// CreateTable adds a table with the given schema
func (d *DB) CreateTable(name string, schema Schema) (*Table, error) {
	if _, exists := d.tables[name]; exists {
		return nil, fmt.Errorf("table %q already exists", name)
	}
	t := newTable(d, name, schema)
	d.tables[name] = t
	d.names = append(d.names, name)
	return t, nil
}

// Table returns the named table if it exists
func (d *DB) Table(name string) (*Table, bool) {
	t, ok := d.tables[name]
	return t, ok
}

// TableNames returns all table names in creation order
func (d *DB) TableNames() []string {
	return append([]string(nil), d.names...)
}

// DropTable detaches and removes a table. Collections backed by it raise
// invalidated errors afterwards.
func (d *DB) DropTable(name string) {
	t, ok := d.tables[name]
	if !ok {
		return
	}
	t.attached = false
	delete(d.tables, name)
	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i], d.names[i+1:]...)
			break
		}
	}
}

// Write runs fn inside a write transaction and commits on return. There is
// no rollback journal: mutations made before fn fails stay applied and the
// commit is still published, so observers stay consistent with the data.
func (d *DB) Write(fn func() error) error {
	if d.readOnly {
		return fmt.Errorf("database is read-only")
	}
	if d.inWrite {
		return fmt.Errorf("write transaction already open")
	}
	d.mu.Lock()
	d.inWrite = true
	d.pending = map[string]*TableChanges{}

	ferr := fn()

	d.version++
	info := CommitInfo{Version: d.version, Changes: d.pending}
	d.pending = nil
	d.inWrite = false
	d.mu.Unlock()

	if d.notifier != nil {
		d.notifier.CommitObserved(info)
	}
	return ferr
}

// ReadView runs fn while holding the read side of the handle's lock,
// letting off-context readers evaluate queries without racing write
// transactions.
func (d *DB) ReadView(fn func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn()
}

func (d *DB) recordChange(t *Table, id RowID, kind changeKind, col int) {
	if !d.inWrite {
		return
	}
	tc, ok := d.pending[t.name]
	if !ok {
		tc = newTableChanges()
		d.pending[t.name] = tc
	}
	switch kind {
	case changeInsert:
		tc.Inserted[id] = struct{}{}
	case changeDelete:
		if _, wasNew := tc.Inserted[id]; wasNew {
			delete(tc.Inserted, id)
			return
		}
		delete(tc.Modified, id)
		tc.Deleted[id] = struct{}{}
	case changeModify:
		if _, wasNew := tc.Inserted[id]; wasNew {
			return
		}
		cols := tc.Modified[id]
		for _, c := range cols {
			if c == col {
				return
			}
		}
		tc.Modified[id] = append(cols, col)
	}
}

// NewRestrictedQuery returns an unconditioned predicate scoped to exactly
// the given row set
func NewRestrictedQuery(t *Table, rows []RowID) *Query {
	return &Query{table: t, restrict: append([]RowID(nil), rows...)}
}
