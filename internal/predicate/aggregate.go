package predicate

import (
	"fmt"

	"github.com/arkilian/skyquery/pkg/types"
)

// accumulate folds one passing row's column value into a running
// aggregate atom's state. The atom's literal value is a nominal seed in
// the wire format (e.g. ";PRICE,sum,0;") and plays no part in the
// reduction itself; only colVal drives the update.
func accumulate(state *aggState, op Op, colVal types.Cell) error {
	if op == OpCnt {
		if !state.started {
			state.value = types.UintCell(types.SkyUInt64, 0)
			state.started = true
		}
		state.value.U++
		return nil
	}

	if !state.started {
		state.value = colVal
		state.started = true
		if op == OpSum {
			// sum starts from the identity element, not the first row's
			// value, so the first row is still added below.
			state.value = zeroLike(colVal)
		} else {
			return nil
		}
	}

	switch op {
	case OpSum:
		return addInto(&state.value, colVal)
	case OpMin:
		less, err := lessThan(colVal, state.value)
		if err != nil {
			return err
		}
		if less {
			state.value = colVal
		}
		return nil
	case OpMax:
		greater, err := lessThan(state.value, colVal)
		if err != nil {
			return err
		}
		if greater {
			state.value = colVal
		}
		return nil
	default:
		return fmt.Errorf("%w: op %s is not a global aggregate", types.ErrOpNotRecognized, op)
	}
}

func zeroLike(c types.Cell) types.Cell {
	switch {
	case c.Type.IsFloat():
		return types.FloatCell(c.Type, 0)
	case c.Type.IsSigned():
		return types.IntCell(c.Type, 0)
	default:
		return types.UintCell(c.Type, 0)
	}
}

func addInto(dst *types.Cell, v types.Cell) error {
	switch {
	case dst.Type.IsFloat():
		dst.F += v.F
	case dst.Type.IsSigned():
		dst.I += v.I
	case dst.Type.IsUnsigned():
		dst.U += v.U
	default:
		return fmt.Errorf("%w: sum over %s", types.ErrUnsupportedAggDataType, dst.Type)
	}
	return nil
}

func lessThan(a, b types.Cell) (bool, error) {
	switch {
	case a.Type.IsFloat():
		return a.F < b.F, nil
	case a.Type.IsSigned():
		return a.I < b.I, nil
	case a.Type.IsUnsigned():
		return a.U < b.U, nil
	default:
		return false, fmt.Errorf("%w: min/max over %s", types.ErrUnsupportedAggDataType, a.Type)
	}
}
