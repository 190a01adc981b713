package predicate

import "github.com/arkilian/skyquery/pkg/types"

// Atom is one predicate clause: apply Op to the value of column ColIdx
// against the literal Val. Chain joins this atom's pass/fail result into
// the row-level boolean with the preceding atom via And.
//
// ColIdx may be types.RIDColIndex, in which case the atom is evaluated
// against the row's RID rather than a schema column.
type Atom struct {
	ColIdx int
	Op     Op
	Val    types.Cell
	And    bool // true: AND with previous atom's running result; false: OR
}

// aggState carries the running value of one global-aggregate atom across
// a row scan. It is separate from Atom so a Chain can be reused (reset)
// across independent scans without re-parsing the predicate string.
type aggState struct {
	started bool
	value   types.Cell
}

func newAggState(t types.DataType) aggState {
	switch {
	case t.IsFloat():
		return aggState{value: types.FloatCell(t, 0)}
	case t.IsSigned():
		return aggState{value: types.IntCell(t, 0)}
	default:
		return aggState{value: types.UintCell(t, 0)}
	}
}
