package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/verdandi/pkg/engine"
)

func mixedTable(t *testing.T, db *engine.DB) *engine.Table {
	t.Helper()
	tbl, err := db.CreateTable("m", engine.Schema{
		{Name: "n", Type: engine.TypeInt, Nullable: true},
		{Name: "d", Type: engine.TypeDouble},
		{Name: "s", Type: engine.TypeString},
		{Name: "ts", Type: engine.TypeTimestamp},
		{Name: "b", Type: engine.TypeBinary},
	})
	require.NoError(t, err)
	return tbl
}

func TestAggregate_IntColumn(t *testing.T) {
	db := engine.NewDB()
	tbl := intTable(t, db, 4, 1, 3)
	r := FromTable(db, tbl)

	max, ok, err := r.Max(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), max.Int)

	min, ok, err := r.Min(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), min.Int)

	sum, err := r.Sum(0)
	require.NoError(t, err)
	assert.Equal(t, engine.TypeInt, sum.Type)
	assert.Equal(t, int64(8), sum.Int)

	avg, ok, err := r.Average(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 8.0/3.0, avg, 1e-9)
}

func TestAggregate_NullsExcluded(t *testing.T) {
	db := engine.NewDB()
	tbl, err := db.CreateTable("t", engine.Schema{{Name: "v", Type: engine.TypeInt, Nullable: true}})
	require.NoError(t, err)
	tbl.AddRow(engine.NullValue(engine.TypeInt))
	tbl.AddRow(engine.IntValue(2))
	tbl.AddRow(engine.NullValue(engine.TypeInt))
	tbl.AddRow(engine.IntValue(4))

	r := FromTable(db, tbl)

	sum, err := r.Sum(0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), sum.Int)

	avg, ok, err := r.Average(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 3.0, avg, 1e-9, "nulls do not dilute the mean")

	min, ok, err := r.Min(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), min.Int, "null sorts first but never wins an aggregate")
}

func TestAggregate_AllNull(t *testing.T) {
	db := engine.NewDB()
	tbl, err := db.CreateTable("t", engine.Schema{{Name: "v", Type: engine.TypeInt, Nullable: true}})
	require.NoError(t, err)
	tbl.AddRow(engine.NullValue(engine.TypeInt))

	r := FromTable(db, tbl)

	_, ok, err := r.Max(0)
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err := r.Sum(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.Int)

	_, ok, err = r.Average(0)
	require.NoError(t, err)
	assert.False(t, ok, "zero contributors means no average, not NaN")
}

func TestAggregate_DoubleColumn(t *testing.T) {
	db := engine.NewDB()
	tbl := mixedTable(t, db)
	now := time.Now()
	tbl.AddRow(engine.IntValue(1), engine.DoubleValue(1.5), engine.StringValue("a"), engine.TimestampValue(now), engine.BinaryValue(nil))
	tbl.AddRow(engine.IntValue(2), engine.DoubleValue(2.5), engine.StringValue("b"), engine.TimestampValue(now.Add(time.Hour)), engine.BinaryValue(nil))

	r := FromTable(db, tbl)

	sum, err := r.Sum(1)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, sum.Float, 1e-9)

	avg, ok, err := r.Average(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 2.0, avg, 1e-9)
}

func TestAggregate_TimestampMinMaxOnly(t *testing.T) {
	db := engine.NewDB()
	tbl := mixedTable(t, db)
	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)
	tbl.AddRow(engine.IntValue(1), engine.DoubleValue(0), engine.StringValue(""), engine.TimestampValue(late), engine.BinaryValue(nil))
	tbl.AddRow(engine.IntValue(2), engine.DoubleValue(0), engine.StringValue(""), engine.TimestampValue(early), engine.BinaryValue(nil))

	r := FromTable(db, tbl)

	max, ok, err := r.Max(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, max.Time.Equal(late))

	min, ok, err := r.Min(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, min.Time.Equal(early))

	var unsupported *UnsupportedColumnTypeError
	_, err = r.Sum(3)
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "sum", unsupported.Operation)
	assert.Equal(t, "ts", unsupported.ColumnName)

	_, _, err = r.Average(3)
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "average", unsupported.Operation)
}

func TestAggregate_UnsupportedTypes(t *testing.T) {
	db := engine.NewDB()
	tbl := mixedTable(t, db)
	r := FromTable(db, tbl)

	tests := []struct {
		name string
		col  int
	}{
		{"string", 2},
		{"binary", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var unsupported *UnsupportedColumnTypeError
			_, _, err := r.Max(tt.col)
			assert.ErrorAs(t, err, &unsupported)
			_, err = r.Sum(tt.col)
			assert.ErrorAs(t, err, &unsupported)
			_, _, err = r.Average(tt.col)
			assert.ErrorAs(t, err, &unsupported)
		})
	}
}

func TestAggregate_ColumnOutOfRange(t *testing.T) {
	db := engine.NewDB()
	tbl := intTable(t, db, 1)
	r := FromTable(db, tbl)

	var oob *OutOfBoundsError
	_, err := r.Sum(7)
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, 7, oob.Requested)
	assert.Equal(t, 1, oob.ValidCount)
}

func TestAggregate_OverQueryAndLinks(t *testing.T) {
	db := engine.NewDB()
	tbl := intTable(t, db, 1, 2, 3, 4)

	rq := FromQuery(db, tbl.Where(engine.Cond{Col: 0, Op: engine.OpGt, Value: engine.IntValue(1)}),
		engine.SortDescriptor{}, engine.DistinctDescriptor{})
	sum, err := rq.Sum(0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), sum.Int)

	a, _ := tbl.RowAt(0)
	d, _ := tbl.RowAt(3)
	ll := engine.NewLinkList(tbl)
	ll.Add(a)
	ll.Add(d)
	rl := FromLinkList(db, ll, nil, engine.SortDescriptor{})
	sum, err = rl.Sum(0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Int)
}

func TestAggregate_FrozenCollectionSkipsDeletedRows(t *testing.T) {
	db := engine.NewDB()
	tbl := intTable(t, db, 1, 2, 3)
	r := FromTable(db, tbl)
	snap, err := r.Snapshot()
	require.NoError(t, err)

	first, _ := tbl.RowAt(0)
	tbl.DeleteRow(first)

	sum, err := snap.Sum(0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.Int, "detached rows read null and drop out of the sum")
}
