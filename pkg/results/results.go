// Package results implements lazily evaluated result collections over the
// engine. A collection is a handle onto the rows matching a query, a whole
// table, or a relationship collection; it transparently converts between
// lighter and more concrete representations as accesses demand, and can be
// frozen into a snapshot whose membership never changes.
package results

import (
	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/notify"
)

// Mode is the collection's current representation
type Mode int

const (
	// ModeEmpty backs the collection by nothing (missing tables)
	ModeEmpty Mode = iota
	// ModeTable backs the collection directly by a table
	ModeTable
	// ModeQuery backs the collection by a predicate not yet evaluated
	ModeQuery
	// ModeLinkList backs the collection directly by a link list
	ModeLinkList
	// ModeTableView backs the collection by an evaluated view
	ModeTableView
)

// UpdatePolicy controls whether the collection resynchronizes to the latest
// committed data on access
type UpdatePolicy int

const (
	// PolicyAuto resynchronizes on every access
	PolicyAuto UpdatePolicy = iota
	// PolicyFrozen fixes membership and size permanently
	PolicyFrozen
)

// NotFound is returned by the index-of operations when no row matches
const NotFound = -1

// Results is a collection of rows. Instances are confined to the execution
// context owning their DB handle; no internal locking exists because no
// concurrent access to one instance is permitted.
type Results struct {
	db    *engine.DB
	token engine.ContextToken

	mode  Mode
	table *engine.Table
	query *engine.Query
	view  *engine.TableView
	links *engine.LinkList

	sort     engine.SortDescriptor
	distinct engine.DistinctDescriptor

	policy       UpdatePolicy
	reg          *notify.Registration
	wantsUpdates bool
}

// Empty creates a collection backed by nothing, for references to tables or
// queries that do not currently exist
func Empty(db *engine.DB) *Results {
	return &Results{db: db, token: tokenOf(db), mode: ModeEmpty, wantsUpdates: true}
}

// FromTable creates a collection over a whole table
func FromTable(db *engine.DB, t *engine.Table) *Results {
	return &Results{db: db, token: tokenOf(db), mode: ModeTable, table: t, wantsUpdates: true}
}

// FromQuery creates a collection over a predicate, evaluated lazily
func FromQuery(db *engine.DB, q *engine.Query, sort engine.SortDescriptor, distinct engine.DistinctDescriptor) *Results {
	return &Results{
		db: db, token: tokenOf(db),
		mode: ModeQuery, query: q, table: q.Table(),
		sort: sort, distinct: distinct,
		wantsUpdates: true,
	}
}

// FromView creates a collection over an already evaluated view
func FromView(db *engine.DB, tv *engine.TableView, sort engine.SortDescriptor, distinct engine.DistinctDescriptor) *Results {
	return &Results{
		db: db, token: tokenOf(db),
		mode: ModeTableView, view: tv, table: tv.Parent(),
		sort: sort, distinct: distinct,
		wantsUpdates: true,
	}
}

// FromLinkList creates a collection over a relationship collection. An
// optional predicate restricts it further, in which case the collection
// starts in query mode.
func FromLinkList(db *engine.DB, ll *engine.LinkList, q *engine.Query, sort engine.SortDescriptor) *Results {
	r := &Results{
		db: db, token: tokenOf(db),
		mode: ModeLinkList, links: ll, table: ll.TargetTable(),
		sort:         sort,
		wantsUpdates: true,
	}
	if q != nil {
		r.query = q
		r.mode = ModeQuery
	}
	return r
}

func tokenOf(db *engine.DB) engine.ContextToken {
	if db == nil {
		return engine.ContextToken{}
	}
	return db.ContextToken()
}

// Mode returns the collection's current representation
func (r *Results) Mode() Mode { return r.mode }

// Policy returns the collection's update policy
func (r *Results) Policy() UpdatePolicy { return r.policy }

// DB returns the owning data context handle
func (r *Results) DB() *engine.DB { return r.db }

// SortDescriptor returns the currently applied sort order
func (r *Results) SortDescriptor() engine.SortDescriptor { return r.sort }

// DistinctDescriptor returns the currently applied distinct condition
func (r *Results) DistinctDescriptor() engine.DistinctDescriptor { return r.distinct }

// WantsBackgroundUpdates reports whether background view regeneration is
// currently wanted
func (r *Results) WantsBackgroundUpdates() bool { return r.wantsUpdates }

// IsValid reports whether the collection's context and backing table are
// still usable
func (r *Results) IsValid() bool {
	if r.db != nil && !r.db.VerifyContext(r.token) {
		return false
	}
	if r.table != nil && !r.table.IsAttached() {
		return false
	}
	return true
}

func (r *Results) validateRead() error {
	if !r.IsValid() {
		return &InvalidatedError{}
	}
	return nil
}

func (r *Results) validateWrite() error {
	if err := r.validateRead(); err != nil {
		return err
	}
	if r.db == nil || !r.db.IsInWrite() {
		return &InvalidTransactionError{Reason: "must be in a write transaction"}
	}
	return nil
}

// updateTableView lazily converts query-backed collections into a concrete
// view and resynchronizes an existing view to the latest committed data.
// Frozen collections never move.
func (r *Results) updateTableView(wantsNotifications bool) {
	if r.policy == PolicyFrozen {
		return
	}
	switch r.mode {
	case ModeEmpty, ModeTable, ModeLinkList:
		return
	case ModeQuery:
		r.query.SyncViewIfNeeded()
		r.view = r.query.FindAll()
		if !r.sort.IsZero() {
			r.view.Sort(r.sort)
		}
		if !r.distinct.IsZero() {
			r.view.Distinct(r.distinct)
		}
		r.mode = ModeTableView
		fallthrough
	case ModeTableView:
		if wantsNotifications && r.reg == nil && !r.db.IsInWrite() && r.db.CanDeliverNotifications() {
			r.registerNotifier()
		}
		if r.reg != nil {
			// Picking up the regenerated view counts as consuming it,
			// which also resumes a throttled registration.
			if tv, ok := r.reg.TakeView(); ok {
				r.adoptView(tv)
			}
		}
		r.view.SyncIfNeeded()
	}
}

// updateLinkList decides whether a link-backed collection can be read
// directly. Sort and distinct cannot be applied to a link list in place, so
// their presence forces a conversion through query mode; the false return
// tells the caller to fall through to view handling.
func (r *Results) updateLinkList() bool {
	if !r.sort.IsZero() || !r.distinct.IsZero() {
		r.query = r.reconstructQuery()
		r.mode = ModeQuery
		r.updateTableView(true)
		return false
	}
	return true
}

// reconstructQuery returns a predicate matching the collection's current
// member set regardless of mode
func (r *Results) reconstructQuery() *engine.Query {
	switch r.mode {
	case ModeEmpty, ModeQuery:
		return r.query
	case ModeTableView:
		// A view evaluated from a query keeps its origin; that is the cheap
		// path. Otherwise wrap the view's current row set in an
		// unconditioned predicate scoped to exactly those rows.
		if q := r.view.Query(); q != nil {
			return q
		}
		if r.policy == PolicyAuto {
			r.view.SyncIfNeeded()
		}
		return engine.NewRestrictedQuery(r.table, r.view.Rows())
	case ModeLinkList:
		return r.table.WhereLinks(r.links)
	case ModeTable:
		return r.table.Where()
	}
	return nil
}

// Query returns a predicate matching the same rows as the collection. The
// result is nil for empty-mode collections constructed without one.
func (r *Results) Query() (*engine.Query, error) {
	if err := r.validateRead(); err != nil {
		return nil, err
	}
	return r.reconstructQuery(), nil
}

// Size returns the number of rows. O(1) for table and link modes; query
// mode counts without materializing unless a distinct condition is applied.
func (r *Results) Size() (int, error) {
	if err := r.validateRead(); err != nil {
		return 0, err
	}
	switch r.mode {
	case ModeEmpty:
		return 0, nil
	case ModeTable:
		return r.table.Size(), nil
	case ModeLinkList:
		return r.links.Size(), nil
	case ModeQuery:
		r.query.SyncViewIfNeeded()
		if r.distinct.IsZero() {
			return r.query.Count(), nil
		}
	}
	r.updateTableView(true)
	return r.view.Size(), nil
}

// Get returns the row accessor at an index. For frozen collections, rows
// deleted from storage after the snapshot come back as detached accessors
// rather than an error.
func (r *Results) Get(i int) (engine.RowRef, error) {
	if err := r.validateRead(); err != nil {
		return engine.RowRef{}, err
	}
	switch r.mode {
	case ModeEmpty:
	case ModeTable:
		if ref, ok := r.table.Get(i); ok {
			return ref, nil
		}
	case ModeLinkList:
		if r.updateLinkList() {
			if ref, ok := r.links.Ref(i); ok {
				return ref, nil
			}
			break
		}
		fallthrough
	case ModeQuery, ModeTableView:
		r.updateTableView(true)
		if ref, ok := r.view.Get(i); ok {
			return ref, nil
		}
	}
	size, _ := r.Size()
	return engine.RowRef{}, &OutOfBoundsError{Requested: i, ValidCount: size}
}

// Value reads one column of the row at an index. Detached rows in frozen
// collections read as null.
func (r *Results) Value(i, col int) (engine.Value, error) {
	ref, err := r.Get(i)
	if err != nil {
		return engine.Value{}, err
	}
	return ref.Value(col), nil
}

// First returns the first row, or ok=false when the collection is empty
func (r *Results) First() (engine.RowRef, bool, error) {
	return r.edge(false)
}

// Last returns the last row, or ok=false when the collection is empty
func (r *Results) Last() (engine.RowRef, bool, error) {
	return r.edge(true)
}

func (r *Results) edge(last bool) (engine.RowRef, bool, error) {
	if err := r.validateRead(); err != nil {
		return engine.RowRef{}, false, err
	}
	pick := func(n int, at func(int) (engine.RowRef, bool)) (engine.RowRef, bool, error) {
		if n == 0 {
			return engine.RowRef{}, false, nil
		}
		i := 0
		if last {
			i = n - 1
		}
		ref, _ := at(i)
		return ref, true, nil
	}
	switch r.mode {
	case ModeEmpty:
		return engine.RowRef{}, false, nil
	case ModeTable:
		return pick(r.table.Size(), r.table.Get)
	case ModeLinkList:
		if r.updateLinkList() {
			return pick(r.links.Size(), r.links.Ref)
		}
		fallthrough
	default:
		r.updateTableView(true)
		return pick(r.view.Size(), r.view.Get)
	}
}

// IndexOfRow returns the index of a row accessor in the collection, or
// NotFound. Detached accessors and accessors from a different table are
// rejected.
func (r *Results) IndexOfRow(ref engine.RowRef) (int, error) {
	if err := r.validateRead(); err != nil {
		return NotFound, err
	}
	if ref.Table() == nil || !ref.IsAttached() {
		return NotFound, &DetachedAccessorError{}
	}
	if r.table != nil && ref.Table() != r.table {
		return NotFound, &IncorrectTableError{Expected: r.table.Name(), Actual: ref.Table().Name()}
	}
	switch r.mode {
	case ModeEmpty:
		return NotFound, nil
	case ModeTable:
		if pos := r.table.PositionOf(ref.ID()); pos >= 0 {
			return pos, nil
		}
		return NotFound, nil
	case ModeLinkList:
		if r.updateLinkList() {
			return r.links.Find(ref.ID()), nil
		}
		fallthrough
	default:
		r.updateTableView(true)
		return r.view.IndexOfRow(ref.ID()), nil
	}
}

// IndexOfValue returns the index of the first row whose payload column
// (column 0) equals the value, or NotFound. A null value performs an
// explicit null search; booleans compare through their integer storage.
func (r *Results) IndexOfValue(v engine.Value) (int, error) {
	if err := r.validateRead(); err != nil {
		return NotFound, err
	}
	switch r.mode {
	case ModeEmpty:
		return NotFound, nil
	case ModeTable:
		return r.table.FindFirst(0, v), nil
	case ModeLinkList:
		r.query = r.reconstructQuery()
		r.mode = ModeQuery
		fallthrough
	default:
		r.updateTableView(true)
		return r.view.FindFirst(0, v), nil
	}
}

// Clear removes every row in the collection from storage. Removal from
// views is unordered, favoring speed over positional stability. Frozen
// collections delete through a private copy so their reported size stays
// fixed.
func (r *Results) Clear() error {
	switch r.mode {
	case ModeEmpty:
		return nil
	case ModeTable:
		if err := r.validateWrite(); err != nil {
			return err
		}
		r.table.Clear()
	case ModeQuery, ModeTableView:
		// Materializing and clearing the view is significantly faster than
		// removing through the predicate.
		if err := r.validateWrite(); err != nil {
			return err
		}
		r.updateTableView(true)
		if r.policy == PolicyFrozen {
			r.view.Copy().Clear()
		} else {
			r.view.Clear()
		}
	case ModeLinkList:
		if err := r.validateWrite(); err != nil {
			return err
		}
		r.links.RemoveAllTargets()
	}
	return nil
}

// TableView returns an independent view containing the same rows as the
// collection
func (r *Results) TableView() (*engine.TableView, error) {
	if err := r.validateRead(); err != nil {
		return nil, err
	}
	switch r.mode {
	case ModeEmpty:
		return nil, nil
	case ModeLinkList:
		if r.updateLinkList() {
			return r.table.WhereLinks(r.links).FindAll(), nil
		}
		fallthrough
	case ModeQuery, ModeTableView:
		r.updateTableView(true)
		return r.view.Copy(), nil
	default:
		return r.table.Where().FindAll(), nil
	}
}

// Filter returns a new collection narrowed by an additional predicate. The
// receiver is never mutated.
func (r *Results) Filter(q *engine.Query) (*Results, error) {
	if err := r.validateRead(); err != nil {
		return nil, err
	}
	return FromQuery(r.db, r.reconstructQuery().And(q), r.sort, r.distinct), nil
}

// Sort returns a new collection ordered by the descriptor. The receiver is
// never mutated.
func (r *Results) Sort(d engine.SortDescriptor) (*Results, error) {
	if err := r.validateRead(); err != nil {
		return nil, err
	}
	return FromQuery(r.db, r.reconstructQuery(), d, r.distinct), nil
}

// Distinct returns a new collection with duplicate rows (under the
// descriptor's columns) removed. The receiver is never mutated.
func (r *Results) Distinct(d engine.DistinctDescriptor) (*Results, error) {
	tv, err := r.TableView()
	if err != nil {
		return nil, err
	}
	if tv == nil {
		return Empty(r.db), nil
	}
	tv.Distinct(d)
	return FromView(r.db, tv, r.sort, d), nil
}

// Snapshot returns a frozen copy of the collection. Its membership and size
// never change afterwards; rows later deleted from storage read back as
// detached accessors.
func (r *Results) Snapshot() (*Results, error) {
	if err := r.validateRead(); err != nil {
		return nil, err
	}
	if r.mode == ModeEmpty {
		return Empty(r.db), nil
	}
	cp := &Results{
		db: r.db, token: r.token,
		mode: r.mode, table: r.table, query: r.query, links: r.links,
		sort: r.sort, distinct: r.distinct,
		wantsUpdates: true,
	}
	if r.view != nil {
		cp.view = r.view.Copy()
	}
	switch cp.mode {
	case ModeTable, ModeLinkList:
		cp.query = cp.reconstructQuery()
		cp.mode = ModeQuery
	}
	cp.updateTableView(false)
	cp.policy = PolicyFrozen
	return cp, nil
}

// IsInTableOrder reports whether the rows are guaranteed to be in storage
// order
func (r *Results) IsInTableOrder() (bool, error) {
	if err := r.validateRead(); err != nil {
		return false, err
	}
	switch r.mode {
	case ModeEmpty, ModeTable:
		return true, nil
	case ModeLinkList:
		return false, nil
	case ModeQuery:
		return r.query.IsTableOrdered() && r.sort.IsZero(), nil
	default:
		return r.view.InTableOrder(), nil
	}
}

// Close releases the collection's notifier registration, if any. Callers
// may simply drop the collection instead; the registration is held weakly
// by the coordinator and released tokens stop all delivery.
func (r *Results) Close() {
	if r.reg != nil {
		r.reg.Release()
		r.reg = nil
	}
}
