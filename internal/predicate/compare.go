package predicate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/arkilian/skyquery/pkg/types"
)

// Compare evaluates op against colVal (the row's cell) and predVal (the
// literal from the predicate atom), dispatching to the typed comparator
// that matches colVal's category. The operator set accepted differs by
// category, mirroring the source's five distinct compare() overloads
// rather than one operator table shared by every type.
func Compare(op Op, colVal, predVal types.Cell) (bool, error) {
	t := colVal.Type
	switch {
	case t.IsSigned():
		return compareInt64(op, colVal.I, predVal.I)
	case t.IsFloat():
		return compareFloat64(op, colVal.F, predVal.F)
	case t == types.SkyBool:
		return compareBool(op, colVal.Bool(), predVal.Bool())
	case t.IsUnsigned():
		return compareUint64(op, colVal.U, predVal.U)
	case t == types.SkyString || t == types.SkyDate:
		return compareString(op, t, colVal.S, predVal.S)
	default:
		return false, fmt.Errorf("%w: %s", types.ErrUnsupportedDataType, t)
	}
}

// compareInt64 backs SkyInt8/16/32/64 and SkyChar (signed char). Logical
// ops treat operands as C-style truthy values (non-zero is true), matching
// the source's int64 overload; bitwise ops are not defined for the signed
// overload there and remain undefined here too.
func compareInt64(op Op, col, pred int64) (bool, error) {
	switch op {
	case OpLT:
		return col < pred, nil
	case OpGT:
		return col > pred, nil
	case OpEQ:
		return col == pred, nil
	case OpNE:
		return col != pred, nil
	case OpLEQ:
		return col <= pred, nil
	case OpGEQ:
		return col >= pred, nil
	case OpLogicalAnd, OpLogicalOr, OpLogicalNot, OpLogicalNor, OpLogicalXor, OpLogicalNand:
		return compareLogical(op, col != 0, pred != 0), nil
	default:
		return false, fmt.Errorf("%w: op %s on signed integer", types.ErrComparisonNotDefined, op)
	}
}

// compareUint64 backs SkyUInt8/16/32/64 and SkyUChar, and RID_COL_INDEX
// predicates (RID is carried as uint64 for comparison purposes). Logical
// and bitwise ops both match the source's uint64 overload.
func compareUint64(op Op, col, pred uint64) (bool, error) {
	switch op {
	case OpLT:
		return col < pred, nil
	case OpGT:
		return col > pred, nil
	case OpEQ:
		return col == pred, nil
	case OpNE:
		return col != pred, nil
	case OpLEQ:
		return col <= pred, nil
	case OpGEQ:
		return col >= pred, nil
	case OpLogicalAnd, OpLogicalOr, OpLogicalNot, OpLogicalNor, OpLogicalXor, OpLogicalNand:
		return compareLogical(op, col != 0, pred != 0), nil
	case OpBitwiseAnd:
		return col&pred != 0, nil
	case OpBitwiseOr:
		return col|pred != 0, nil
	default:
		return false, fmt.Errorf("%w: op %s on unsigned integer", types.ErrComparisonNotDefined, op)
	}
}

// compareLogical evaluates the shared logical operator set against two
// already-truthy operands, matching the source's int64/uint64/bool
// overloads (logical_not is "not either", i.e. nor).
func compareLogical(op Op, a, b bool) bool {
	switch op {
	case OpLogicalAnd:
		return a && b
	case OpLogicalOr:
		return a || b
	case OpLogicalNot, OpLogicalNor:
		return !(a || b)
	case OpLogicalNand:
		return !(a && b)
	case OpLogicalXor:
		return (a || b) && a != b
	default:
		return false
	}
}

// compareFloat64 backs SkyFloat32/64. Floating comparison supports a
// narrower operator set than the integer overloads: no like/in, per the
// source's double overload.
func compareFloat64(op Op, col, pred float64) (bool, error) {
	switch op {
	case OpLT:
		return col < pred, nil
	case OpGT:
		return col > pred, nil
	case OpEQ:
		return col == pred, nil
	case OpNE:
		return col != pred, nil
	case OpLEQ:
		return col <= pred, nil
	case OpGEQ:
		return col >= pred, nil
	default:
		return false, fmt.Errorf("%w: op %s on floating point", types.ErrComparisonNotDefined, op)
	}
}

// compareBool backs SkyBool. Matches the source's bool overload: ordering,
// logical, and bitwise operators are all defined, bitwise treating true/
// false as 1/0.
func compareBool(op Op, col, pred bool) (bool, error) {
	switch op {
	case OpLT:
		return !col && pred, nil
	case OpGT:
		return col && !pred, nil
	case OpEQ:
		return col == pred, nil
	case OpNE:
		return col != pred, nil
	case OpLEQ:
		return !col || pred, nil
	case OpGEQ:
		return col || !pred, nil
	case OpLogicalAnd, OpLogicalOr, OpLogicalNot, OpLogicalNor, OpLogicalXor, OpLogicalNand:
		return compareLogical(op, col, pred), nil
	case OpBitwiseAnd:
		return col && pred, nil
	case OpBitwiseOr:
		return col || pred, nil
	default:
		return false, fmt.Errorf("%w: op %s on bool", types.ErrComparisonNotDefined, op)
	}
}

// compareString backs SkyString and SkyDate. SkyDate additionally accepts
// before/after/between against a YYYY-MM-DD literal; both types accept
// lexicographic ordering and like (regex partial match).
func compareString(op Op, t types.DataType, col, pred string) (bool, error) {
	switch op {
	case OpEQ:
		return col == pred, nil
	case OpNE:
		return col != pred, nil
	case OpLT:
		return col < pred, nil
	case OpGT:
		return col > pred, nil
	case OpLEQ:
		return col <= pred, nil
	case OpGEQ:
		return col >= pred, nil
	case OpLike:
		re, err := regexp.Compile(pred)
		if err != nil {
			return false, fmt.Errorf("%w: bad like pattern %q: %v", types.ErrComparisonNotDefined, pred, err)
		}
		return re.MatchString(col), nil
	case OpIn:
		for _, v := range strings.Split(pred, "|") {
			if col == v {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		for _, v := range strings.Split(pred, "|") {
			if col == v {
				return false, nil
			}
		}
		return true, nil
	}

	if t != types.SkyDate {
		return false, fmt.Errorf("%w: op %s on string", types.ErrComparisonNotDefined, op)
	}

	colTime, err := time.Parse("2006-01-02", col)
	if err != nil {
		return false, fmt.Errorf("%w: bad date value %q: %v", types.ErrComparisonNotDefined, col, err)
	}
	switch op {
	case OpBefore:
		predTime, err := time.Parse("2006-01-02", pred)
		if err != nil {
			return false, fmt.Errorf("%w: bad date literal %q: %v", types.ErrComparisonNotDefined, pred, err)
		}
		return colTime.Before(predTime), nil
	case OpAfter:
		predTime, err := time.Parse("2006-01-02", pred)
		if err != nil {
			return false, fmt.Errorf("%w: bad date literal %q: %v", types.ErrComparisonNotDefined, pred, err)
		}
		return colTime.After(predTime), nil
	case OpBetween:
		bounds := strings.SplitN(pred, "|", 2)
		if len(bounds) != 2 {
			return false, fmt.Errorf("%w: between literal %q needs lo|hi", types.ErrComparisonNotDefined, pred)
		}
		lo, err := time.Parse("2006-01-02", bounds[0])
		if err != nil {
			return false, fmt.Errorf("%w: bad between lo %q: %v", types.ErrComparisonNotDefined, bounds[0], err)
		}
		hi, err := time.Parse("2006-01-02", bounds[1])
		if err != nil {
			return false, fmt.Errorf("%w: bad between hi %q: %v", types.ErrComparisonNotDefined, bounds[1], err)
		}
		return !colTime.Before(lo) && !colTime.After(hi), nil
	default:
		return false, fmt.Errorf("%w: op %s on date", types.ErrComparisonNotDefined, op)
	}
}
