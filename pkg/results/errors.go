package results

import (
	"fmt"

	"github.com/ssargent/verdandi/pkg/engine"
)

// InvalidatedError reports access through a data context or table that is
// no longer valid. This is a programming error, not a race: the handle was
// invalidated or crossed an execution-context boundary.
type InvalidatedError struct{}

func (e *InvalidatedError) Error() string {
	return "access to invalidated result set"
}

// Is makes every InvalidatedError match the ErrInvalidated sentinel
func (e *InvalidatedError) Is(target error) bool {
	_, ok := target.(*InvalidatedError)
	return ok
}

// ErrInvalidated is the sentinel for errors.Is checks
var ErrInvalidated = &InvalidatedError{}

// InvalidTransactionError reports a mutation attempted outside a write
// transaction, or an async registration requested in a state that cannot
// accept one.
type InvalidTransactionError struct {
	Reason string
}

func (e *InvalidTransactionError) Error() string {
	return e.Reason
}

// OutOfBoundsError reports an index or column beyond the valid range
type OutOfBoundsError struct {
	Requested  int
	ValidCount int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("requested index %d greater than max %d", e.Requested, e.ValidCount)
}

// UnsupportedColumnTypeError reports an aggregate over a column whose type
// does not support the operation
type UnsupportedColumnTypeError struct {
	Column     int
	ColumnName string
	Type       engine.ColumnType
	Operation  string
}

func (e *UnsupportedColumnTypeError) Error() string {
	return fmt.Sprintf("cannot %s column %q: operation not supported for %s columns",
		e.Operation, e.ColumnName, e.Type)
}

// DetachedAccessorError reports a row accessor whose row no longer exists
type DetachedAccessorError struct{}

func (e *DetachedAccessorError) Error() string {
	return "attempting to access an invalid row"
}

// Is makes every DetachedAccessorError match the ErrDetachedAccessor sentinel
func (e *DetachedAccessorError) Is(target error) bool {
	_, ok := target.(*DetachedAccessorError)
	return ok
}

// ErrDetachedAccessor is the sentinel for errors.Is checks
var ErrDetachedAccessor = &DetachedAccessorError{}

// IncorrectTableError reports a row accessor belonging to a different table
type IncorrectTableError struct {
	Expected string
	Actual   string
}

func (e *IncorrectTableError) Error() string {
	return fmt.Sprintf("row belongs to table %q, expected %q", e.Actual, e.Expected)
}
