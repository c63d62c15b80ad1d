package results

import (
	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/notify"
)

// registrar is the slice of the notify coordinator the collection needs.
// Declared here so results depends on the coordinator's behavior, not its
// concrete type.
type registrar interface {
	Register(q *engine.Query, sort engine.SortDescriptor, distinct engine.DistinctDescriptor, baseline []engine.RowID) *notify.Registration
}

// registerNotifier attaches the collection to the DB's coordinator. Callers
// have already materialized the view, so the baseline names the rows the
// collection currently holds; the first delivery diffs against exactly them.
func (r *Results) registerNotifier() {
	coord, ok := r.db.Notifier().(registrar)
	if !ok {
		return
	}
	var baseline []engine.RowID
	if r.view != nil {
		baseline = r.view.Rows()
	}
	r.reg = coord.Register(r.reconstructQuery(), r.sort, r.distinct, baseline)
}

// adoptView swaps in a view regenerated in the background. Runs on the
// owning context, never on the coordinator's goroutine. A replacement that
// went stale since regeneration is refused; the existing view resynchronizes
// on the next read instead.
func (r *Results) adoptView(tv *engine.TableView) bool {
	if r.policy == PolicyFrozen {
		return false
	}
	if !tv.IsInSync() || !tv.Parent().IsAttached() {
		return false
	}
	r.view = tv
	r.mode = ModeTableView
	return true
}

// prepareAsync registers the collection for background regeneration. It is
// idempotent; repeated calls return the existing registration's state. The
// collection is materialized first so the registration's baseline matches
// the rows already present rather than reporting them as insertions.
func (r *Results) prepareAsync() error {
	if r.reg != nil {
		return nil
	}
	if r.db.ReadOnly() {
		return &InvalidTransactionError{Reason: "cannot create asynchronous query for read-only database"}
	}
	if r.db.IsInWrite() {
		return &InvalidTransactionError{Reason: "cannot create asynchronous query while in a write transaction"}
	}
	if r.policy == PolicyFrozen {
		return &InvalidTransactionError{Reason: "cannot create asynchronous query for frozen results"}
	}
	if r.mode == ModeEmpty {
		return &InvalidTransactionError{Reason: "cannot create asynchronous query for empty results"}
	}
	if _, ok := r.db.Notifier().(registrar); !ok {
		return &InvalidTransactionError{Reason: "cannot deliver notifications for this database"}
	}
	switch r.mode {
	case ModeTable, ModeLinkList:
		r.query = r.reconstructQuery()
		r.mode = ModeQuery
	}
	r.updateTableView(false)
	r.wantsUpdates = true
	r.registerNotifier()
	return nil
}

// AddNotificationCallback registers a change callback for the collection.
// Callbacks fire once per committed version that actually changes the
// member rows or their values, in commit order. The returned token cancels
// the callback; releasing the last token releases the registration.
func (r *Results) AddNotificationCallback(cb notify.Callback) (*notify.Token, error) {
	if err := r.validateRead(); err != nil {
		return nil, err
	}
	if err := r.prepareAsync(); err != nil {
		return nil, err
	}
	return r.reg.AddCallback(cb), nil
}

// SuppressNextNotification swallows the next delivery that would otherwise
// fire, letting the caller perform one local write without receiving its
// echo. Commits producing no change for this collection do not consume the
// suppression.
func (r *Results) SuppressNextNotification() error {
	if err := r.validateRead(); err != nil {
		return err
	}
	if err := r.prepareAsync(); err != nil {
		return err
	}
	r.reg.SuppressNext()
	return nil
}
