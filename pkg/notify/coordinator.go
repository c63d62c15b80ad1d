package notify

import (
	"sync"
	"time"

	"github.com/ssargent/verdandi/pkg/engine"
)

// Callback receives one change-set per observed version transition
type Callback func(ChangeSet, error)

// viewSnapshot is one registration's regenerated view, captured at the
// version of the commit it belongs to.
type viewSnapshot struct {
	view *engine.TableView
	rows []engine.RowID
}

// pendingCommit pairs a commit with the views regenerated at its version.
// Registrations created after the commit have no snapshot and skip it.
type pendingCommit struct {
	info  engine.CommitInfo
	snaps map[*Registration]viewSnapshot
}

// Coordinator computes incremental differences between successive committed
// versions and delivers change-sets off the committing goroutine. Each
// registration's query is re-evaluated at commit time, on the committing
// goroutine, so every commit gets a row list at exactly its version; the
// delivery goroutine then diffs and invokes callbacks strictly in commit
// order without ever touching the engine.
type Coordinator struct {
	db *engine.DB

	mu         sync.Mutex
	regs       []*Registration
	queue      []pendingCommit
	delivering bool
	closed     bool
	kick       chan struct{}
	done       chan struct{}
	stopped    chan struct{}
}

// NewCoordinator creates a coordinator and attaches it to the DB as its
// commit observer
func NewCoordinator(db *engine.DB) *Coordinator {
	c := &Coordinator{
		db:      db,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	db.SetNotifier(c)
	go c.run()
	return c
}

// CommitObserved snapshots each live registration's row set at the committed
// version and queues the commit for background delivery. Runs on the
// committing goroutine, where the data still reflects exactly this version.
func (c *Coordinator) CommitObserved(info engine.CommitInfo) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	regs := append([]*Registration(nil), c.regs...)
	c.mu.Unlock()

	snaps := make(map[*Registration]viewSnapshot, len(regs))
	for _, r := range regs {
		if snap, ok := r.regenerate(); ok {
			snaps[r] = snap
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, pendingCommit{info: info, snaps: snaps})
	c.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Register adds a live registration for a query. baseline is the row list
// the collection last observed; the first delivered change-set diffs
// against it.
func (c *Coordinator) Register(q *engine.Query, sort engine.SortDescriptor, distinct engine.DistinctDescriptor, baseline []engine.RowID) *Registration {
	r := &Registration{
		coord:     c,
		query:     q,
		sort:      sort,
		distinct:  distinct,
		prev:      append([]engine.RowID(nil), baseline...),
		callbacks: map[uint64]Callback{},
	}
	if q != nil {
		r.table = q.Table().Name()
	}
	c.mu.Lock()
	c.regs = append(c.regs, r)
	c.mu.Unlock()
	return r
}

// Close stops the delivery goroutine. Pending commits are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	<-c.stopped
}

// Drain blocks until every commit queued so far has been delivered. Useful
// for callers that need to observe their own write's callback.
func (c *Coordinator) Drain() {
	for {
		c.mu.Lock()
		idle := len(c.queue) == 0 && !c.delivering
		c.mu.Unlock()
		if idle {
			return
		}
		select {
		case <-c.stopped:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *Coordinator) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		case <-c.kick:
		}
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			pc := c.queue[0]
			c.queue = c.queue[1:]
			c.delivering = true
			regs := append([]*Registration(nil), c.regs...)
			c.mu.Unlock()

			for _, r := range regs {
				if snap, ok := pc.snaps[r]; ok {
					r.deliver(pc.info, snap)
				}
			}
			c.sweepReleased()

			c.mu.Lock()
			c.delivering = false
			c.mu.Unlock()
		}
	}
}

func (c *Coordinator) sweepReleased() {
	c.mu.Lock()
	kept := c.regs[:0]
	for _, r := range c.regs {
		if !r.isReleased() {
			kept = append(kept, r)
		}
	}
	c.regs = kept
	c.mu.Unlock()
}

// Registration is one live async query registered with the coordinator. It
// is held by at most one collection; releasing the last token releases it.
type Registration struct {
	coord    *Coordinator
	query    *engine.Query
	table    string
	sort     engine.SortDescriptor
	distinct engine.DistinctDescriptor

	mu        sync.Mutex
	prev      []engine.RowID
	pending   *engine.TableView
	paused    bool
	suppress  int
	released  bool
	callbacks map[uint64]Callback
	nextCB    uint64
}

// AddCallback registers a change callback and returns its cancellation token
func (r *Registration) AddCallback(cb Callback) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextCB
	r.nextCB++
	r.callbacks[id] = cb
	return &Token{reg: r, id: id}
}

// SuppressNext swallows the next pending delivery, letting a caller perform
// one local write without receiving its echo. Later, unrelated commits are
// unaffected.
func (r *Registration) SuppressNext() {
	r.mu.Lock()
	r.suppress++
	r.mu.Unlock()
}

// Resume restarts background regeneration after the owning collection
// consumed its view again
func (r *Registration) Resume() {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
}

// TakeView hands the latest regenerated view to the owning collection and
// resumes background regeneration. Must be called from the owning context.
func (r *Registration) TakeView() (*engine.TableView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tv := r.pending
	r.pending = nil
	r.paused = false
	return tv, tv != nil
}

// Release detaches the registration; no further callbacks fire
func (r *Registration) Release() {
	r.mu.Lock()
	r.released = true
	r.callbacks = map[uint64]Callback{}
	r.mu.Unlock()
}

func (r *Registration) isReleased() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// regenerate evaluates the query at the current committed version. Runs on
// the committing goroutine; paused and released registrations skip the work.
func (r *Registration) regenerate() (viewSnapshot, bool) {
	r.mu.Lock()
	skip := r.released || r.paused || r.query == nil
	r.mu.Unlock()
	if skip {
		return viewSnapshot{}, false
	}
	tv := r.query.FindAll()
	if !r.sort.IsZero() {
		tv.Sort(r.sort)
	}
	if !r.distinct.IsZero() {
		tv.Distinct(r.distinct)
	}
	return viewSnapshot{view: tv, rows: tv.Rows()}, true
}

// deliver diffs one commit's snapshot against the previously delivered row
// list and fires callbacks. The regenerated view is parked on the
// registration for the owning collection to adopt on its next access; if
// the previous view was never picked up, regeneration pauses until it is.
func (r *Registration) deliver(info engine.CommitInfo, snap viewSnapshot) {
	r.mu.Lock()
	if r.released || r.paused {
		r.mu.Unlock()
		return
	}
	prev := r.prev
	r.mu.Unlock()

	var mods map[engine.RowID][]int
	if tc := info.Changes[r.table]; tc != nil {
		mods = tc.Modified
	}
	cs := Diff(prev, snap.rows, mods)
	if cs.Empty() {
		return
	}

	r.mu.Lock()
	stalled := r.pending != nil
	r.pending = snap.view
	r.prev = snap.rows
	if stalled {
		r.paused = true
	}
	if r.suppress > 0 {
		r.suppress--
		r.mu.Unlock()
		return
	}
	cbs := make([]Callback, 0, len(r.callbacks))
	for _, cb := range r.callbacks {
		cbs = append(cbs, cb)
	}
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(cs, nil)
	}
}

// Token cancels one registered callback. Releasing the last token releases
// the whole registration.
type Token struct {
	reg  *Registration
	once sync.Once
	id   uint64
}

// Release cancels the callback; no further invocations occur afterwards
func (t *Token) Release() {
	t.once.Do(func() {
		t.reg.mu.Lock()
		delete(t.reg.callbacks, t.id)
		empty := len(t.reg.callbacks) == 0
		t.reg.mu.Unlock()
		if empty {
			t.reg.Release()
		}
	})
}
