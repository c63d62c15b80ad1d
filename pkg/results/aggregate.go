package results

import (
	"github.com/ssargent/verdandi/pkg/engine"
)

// rowSource is the minimal positional read surface the aggregate loops
// need; both engine.Table and engine.TableView satisfy it.
type rowSource interface {
	Size() int
	ValueAt(i, col int) engine.Value
}

type sumState struct {
	i int64
	f float64
	n int
}

// aggKernel holds the per-type aggregate implementation. A nil sum entry
// means the type supports only min and max.
type aggKernel struct {
	zero engine.Value
	add  func(s *sumState, v engine.Value)
	done func(s *sumState) engine.Value
	avg  func(s *sumState) float64
}

// kernels is the runtime dispatch table for aggregates, keyed by column
// type. Types absent from the table support no aggregate at all.
var kernels = map[engine.ColumnType]*aggKernel{
	engine.TypeInt: {
		zero: engine.IntValue(0),
		add:  func(s *sumState, v engine.Value) { s.i += v.Int; s.n++ },
		done: func(s *sumState) engine.Value { return engine.IntValue(s.i) },
		avg:  func(s *sumState) float64 { return float64(s.i) / float64(s.n) },
	},
	engine.TypeFloat: {
		zero: engine.DoubleValue(0),
		add:  func(s *sumState, v engine.Value) { s.f += v.Float; s.n++ },
		done: func(s *sumState) engine.Value { return engine.DoubleValue(s.f) },
		avg:  func(s *sumState) float64 { return s.f / float64(s.n) },
	},
	engine.TypeDouble: {
		zero: engine.DoubleValue(0),
		add:  func(s *sumState, v engine.Value) { s.f += v.Float; s.n++ },
		done: func(s *sumState) engine.Value { return engine.DoubleValue(s.f) },
		avg:  func(s *sumState) float64 { return s.f / float64(s.n) },
	},
	// Timestamps order but do not add.
	engine.TypeTimestamp: {},
}

// kernelFor resolves the aggregate kernel for a column, checking bounds and
// type support for the requested operation
func (r *Results) kernelFor(col int, op string, needSum bool) (*aggKernel, error) {
	if r.table == nil {
		return nil, nil
	}
	schema := r.table.Schema()
	if col < 0 || col >= len(schema) {
		return nil, &OutOfBoundsError{Requested: col, ValidCount: len(schema)}
	}
	c := schema[col]
	k := kernels[c.Type]
	if k == nil || (needSum && k.add == nil) {
		return nil, &UnsupportedColumnTypeError{
			Column: col, ColumnName: c.Name, Type: c.Type, Operation: op,
		}
	}
	return k, nil
}

// aggregateSource materializes whatever representation is needed to iterate
// the collection's rows. Link-backed collections go through query mode so
// the loop sees exactly the member rows.
func (r *Results) aggregateSource() rowSource {
	switch r.mode {
	case ModeEmpty:
		return nil
	case ModeTable:
		return r.table
	case ModeLinkList:
		r.query = r.reconstructQuery()
		r.mode = ModeQuery
		fallthrough
	default:
		r.updateTableView(true)
		return r.view
	}
}

// Max returns the largest non-null value in a column, or ok=false when the
// collection is empty or every value is null
func (r *Results) Max(col int) (engine.Value, bool, error) {
	return r.extreme(col, "max", func(best, v engine.Value) bool { return best.Less(v) })
}

// Min returns the smallest non-null value in a column, or ok=false when the
// collection is empty or every value is null
func (r *Results) Min(col int) (engine.Value, bool, error) {
	return r.extreme(col, "min", func(best, v engine.Value) bool { return v.Less(best) })
}

func (r *Results) extreme(col int, op string, better func(best, v engine.Value) bool) (engine.Value, bool, error) {
	if err := r.validateRead(); err != nil {
		return engine.Value{}, false, err
	}
	if _, err := r.kernelFor(col, op, false); err != nil {
		return engine.Value{}, false, err
	}
	src := r.aggregateSource()
	if src == nil {
		return engine.Value{}, false, nil
	}
	found := -1
	var best engine.Value
	for i := 0; i < src.Size(); i++ {
		v := src.ValueAt(i, col)
		if v.IsNull() {
			continue
		}
		if found < 0 || better(best, v) {
			found, best = i, v
		}
	}
	if found < 0 {
		return engine.Value{}, false, nil
	}
	return best, true, nil
}

// Sum returns the sum of the non-null values in a column. An empty
// collection sums to zero.
func (r *Results) Sum(col int) (engine.Value, error) {
	if err := r.validateRead(); err != nil {
		return engine.Value{}, err
	}
	k, err := r.kernelFor(col, "sum", true)
	if err != nil {
		return engine.Value{}, err
	}
	src := r.aggregateSource()
	if src == nil || k == nil {
		return engine.IntValue(0), nil
	}
	var s sumState
	for i := 0; i < src.Size(); i++ {
		v := src.ValueAt(i, col)
		if v.IsNull() {
			continue
		}
		k.add(&s, v)
	}
	if s.n == 0 {
		return k.zero, nil
	}
	return k.done(&s), nil
}

// Average returns the mean of the non-null values in a column, or ok=false
// when no row contributes a non-null value
func (r *Results) Average(col int) (float64, bool, error) {
	if err := r.validateRead(); err != nil {
		return 0, false, err
	}
	k, err := r.kernelFor(col, "average", true)
	if err != nil {
		return 0, false, err
	}
	src := r.aggregateSource()
	if src == nil || k == nil {
		return 0, false, nil
	}
	var s sumState
	for i := 0; i < src.Size(); i++ {
		v := src.ValueAt(i, col)
		if v.IsNull() {
			continue
		}
		k.add(&s, v)
	}
	if s.n == 0 {
		return 0, false, nil
	}
	return k.avg(&s), true, nil
}
