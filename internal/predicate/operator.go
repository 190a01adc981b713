// Package predicate implements the typed predicate model: comparison
// atoms, logical chaining, and in-stream aggregation (spec component C2).
package predicate

import (
	"fmt"

	"github.com/arkilian/skyquery/pkg/types"
)

// Op is a predicate operator. The set is closed; every typed Compare
// implementation and every aggregate accumulator switches over it
// exhaustively.
type Op int

const (
	OpLT Op = iota
	OpGT
	OpEQ
	OpNE
	OpLEQ
	OpGEQ

	OpAdd
	OpSub
	OpMul
	OpDiv

	OpMin
	OpMax
	OpSum
	OpCnt

	OpLike

	OpIn
	OpNotIn

	OpBefore
	OpAfter
	OpBetween

	OpLogicalAnd
	OpLogicalOr
	OpLogicalNot
	OpLogicalNor
	OpLogicalXor
	OpLogicalNand

	OpBitwiseAnd
	OpBitwiseOr
)

var opNames = map[Op]string{
	OpLT: "lt", OpGT: "gt", OpEQ: "eq", OpNE: "ne", OpLEQ: "leq", OpGEQ: "geq",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div",
	OpMin: "min", OpMax: "max", OpSum: "sum", OpCnt: "cnt",
	OpLike:   "like",
	OpIn:     "in",
	OpNotIn:  "not_in",
	OpBefore: "before", OpAfter: "after", OpBetween: "between",
	OpLogicalAnd: "logical_and", OpLogicalOr: "logical_or", OpLogicalNot: "logical_not",
	OpLogicalNor: "logical_nor", OpLogicalXor: "logical_xor", OpLogicalNand: "logical_nand",
	OpBitwiseAnd: "bitwise_and", OpBitwiseOr: "bitwise_or",
}

// String renders the wire token for an operator.
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// OpFromString parses a wire operator token. Fails with ErrOpNotRecognized
// for anything outside the closed set.
func OpFromString(s string) (Op, error) {
	for op, name := range opNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", types.ErrOpNotRecognized, s)
}

// IsGlobalAgg reports whether op is one of the reduction operators that
// carry running aggregate state across the whole row scan.
func (o Op) IsGlobalAgg() bool {
	switch o {
	case OpMin, OpMax, OpSum, OpCnt:
		return true
	default:
		return false
	}
}

// ChainOp is the boolean combinator joining a predicate atom's pass/fail
// result into the row-level accumulator, distinct from Op (which acts on
// one column's value).
type ChainOp int

const (
	ChainAnd ChainOp = iota
	ChainOr
)
