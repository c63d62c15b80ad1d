package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/verdandi/pkg/engine"
)

type recorder struct {
	mu   sync.Mutex
	sets []ChangeSet
}

func (r *recorder) callback(cs ChangeSet, err error) {
	r.mu.Lock()
	r.sets = append(r.sets, cs)
	r.mu.Unlock()
}

func (r *recorder) recorded() []ChangeSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChangeSet(nil), r.sets...)
}

func setup(t *testing.T) (*engine.DB, *engine.Table, *Coordinator) {
	t.Helper()
	db := engine.NewDB()
	tbl, err := db.CreateTable("t", engine.Schema{{Name: "v", Type: engine.TypeInt}})
	require.NoError(t, err)
	c := NewCoordinator(db)
	t.Cleanup(c.Close)
	return db, tbl, c
}

func TestCoordinator_DeliversAfterCommit(t *testing.T) {
	db, tbl, c := setup(t)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	reg.AddCallback(rec.callback)

	require.NoError(t, db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(1))
		return err
	}))
	c.Drain()

	sets := rec.recorded()
	require.Len(t, sets, 1)
	assert.Equal(t, []int{0}, sets[0].Insertions)
	assert.Empty(t, sets[0].Deletions)
}

func TestCoordinator_EmptyChangeSetsNotDelivered(t *testing.T) {
	db, tbl, c := setup(t)
	other, err := db.CreateTable("other", engine.Schema{{Name: "v", Type: engine.TypeInt}})
	require.NoError(t, err)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	reg.AddCallback(rec.callback)

	require.NoError(t, db.Write(func() error {
		_, err := other.AddRow(engine.IntValue(1))
		return err
	}))
	c.Drain()

	assert.Empty(t, rec.recorded(), "commits not touching the query deliver nothing")
}

func TestCoordinator_SuppressNextSkipsOneDelivery(t *testing.T) {
	db, tbl, c := setup(t)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	reg.AddCallback(rec.callback)

	reg.SuppressNext()

	// A commit with no effect on the query must not consume the suppression.
	other, _ := db.CreateTable("other", engine.Schema{{Name: "v", Type: engine.TypeInt}})
	db.Write(func() error {
		_, err := other.AddRow(engine.IntValue(1))
		return err
	})
	c.Drain()
	assert.Empty(t, rec.recorded())

	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(1))
		return err
	})
	c.Drain()
	assert.Empty(t, rec.recorded(), "first effective commit is swallowed")

	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(2))
		return err
	})
	c.Drain()
	require.Len(t, rec.recorded(), 1, "later commits deliver normally")
}

func TestCoordinator_CommitsDeliveredInOrder(t *testing.T) {
	db, tbl, c := setup(t)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	reg.AddCallback(rec.callback)

	// View consumption keeps regeneration live across all five commits.
	for i := 0; i < 5; i++ {
		db.Write(func() error {
			_, err := tbl.AddRow(engine.IntValue(int64(i)))
			return err
		})
		c.Drain()
		reg.TakeView()
	}

	sets := rec.recorded()
	require.Len(t, sets, 5)
	for i, cs := range sets {
		assert.Equal(t, []int{i}, cs.Insertions, "each delivery appends one row")
	}
}

func TestCoordinator_QueuedCommitsDeliverSeparately(t *testing.T) {
	db, tbl, c := setup(t)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	reg.AddCallback(rec.callback)

	// Two commits queued back to back still yield one change-set each,
	// diffed at each commit's own version.
	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(1))
		return err
	})
	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(2))
		return err
	})
	c.Drain()

	sets := rec.recorded()
	require.Len(t, sets, 2)
	assert.Equal(t, []int{0}, sets[0].Insertions)
	assert.Equal(t, []int{1}, sets[1].Insertions)
}

func TestCoordinator_ThrottlesUntilViewTaken(t *testing.T) {
	db, tbl, c := setup(t)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	reg.AddCallback(rec.callback)

	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(1))
		return err
	})
	c.Drain()
	require.Len(t, rec.recorded(), 1)

	// Second delivery finds the first view still unclaimed and pauses,
	// but the pausing delivery itself still fires.
	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(2))
		return err
	})
	c.Drain()
	require.Len(t, rec.recorded(), 2)

	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(3))
		return err
	})
	c.Drain()
	assert.Len(t, rec.recorded(), 2, "paused registrations skip commits")

	tv, ok := reg.TakeView()
	require.True(t, ok)
	require.NotNil(t, tv)

	// Taking the view resumes delivery; the missed commit's row shows up
	// in the next change-set.
	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(4))
		return err
	})
	c.Drain()
	sets := rec.recorded()
	require.Len(t, sets, 3)
	assert.Equal(t, []int{2, 3}, sets[2].Insertions, "skipped commits coalesce into one delivery")
}

func TestCoordinator_ResumeRestartsDelivery(t *testing.T) {
	db, tbl, c := setup(t)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	reg.AddCallback(rec.callback)

	for i := 1; i <= 3; i++ {
		db.Write(func() error {
			_, err := tbl.AddRow(engine.IntValue(int64(i)))
			return err
		})
		c.Drain()
	}
	require.Len(t, rec.recorded(), 2, "unclaimed view pauses after the second delivery")

	reg.Resume()
	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(4))
		return err
	})
	c.Drain()
	assert.Len(t, rec.recorded(), 3)
}

func TestCoordinator_TokenRelease(t *testing.T) {
	db, tbl, c := setup(t)

	rec := &recorder{}
	reg := c.Register(tbl.Where(), engine.SortDescriptor{}, engine.DistinctDescriptor{}, nil)
	tok := reg.AddCallback(rec.callback)
	tok.Release()

	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(1))
		return err
	})
	c.Drain()

	assert.Empty(t, rec.recorded())
	assert.True(t, reg.isReleased(), "releasing the last token releases the registration")
}

func TestCoordinator_SortedRegistrationDiffsSortedPositions(t *testing.T) {
	db, tbl, c := setup(t)

	db.Write(func() error {
		tbl.AddRow(engine.IntValue(30))
		tbl.AddRow(engine.IntValue(10))
		return nil
	})

	rec := &recorder{}
	sort := engine.SortDescriptor{Clauses: []engine.SortClause{{Column: 0, Ascending: true}}}
	baseline := []engine.RowID{}
	db.ReadView(func() {
		tv := tbl.Where().FindAll()
		tv.Sort(sort)
		baseline = tv.Rows()
	})
	reg := c.Register(tbl.Where(), sort, engine.DistinctDescriptor{}, baseline)
	reg.AddCallback(rec.callback)

	db.Write(func() error {
		_, err := tbl.AddRow(engine.IntValue(20))
		return err
	})
	c.Drain()

	sets := rec.recorded()
	require.Len(t, sets, 1)
	assert.Equal(t, []int{1}, sets[0].Insertions, "insertion position is in sorted order")
}
