package predicate

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/arkilian/skyquery/pkg/types"
)

// TestProperty_PredsRoundTrip validates that any single non-aggregate
// comparison clause survives a PredsToString/PredsFromString round trip
// unchanged, for every operator in the integer comparison set.
func TestProperty_PredsRoundTrip(t *testing.T) {
	schema, err := types.SchemaFromString("0 SKY_INT64 0 0 A\n")
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}

	ops := []Op{OpLT, OpGT, OpEQ, OpNE, OpLEQ, OpGEQ}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a single comparison clause survives a string round trip", prop.ForAll(
		func(opIdx int, val int64) bool {
			op := ops[opIdx%len(ops)]
			atoms := []Atom{{ColIdx: 0, Op: op, Val: types.IntCell(types.SkyInt64, val), And: true}}

			s := PredsToString(atoms, schema)
			parsed, err := PredsFromString(s, schema)
			if err != nil {
				return false
			}
			if len(parsed) != 1 {
				return false
			}
			return parsed[0].ColIdx == atoms[0].ColIdx &&
				parsed[0].Op == atoms[0].Op &&
				parsed[0].Val.I == atoms[0].Val.I &&
				parsed[0].And == atoms[0].And
		},
		gen.IntRange(0, len(ops)-1),
		gen.Int64Range(-1000000, 1000000),
	))

	properties.TestingRun(t)
}

// TestProperty_CompareInt64TotalOrder validates that compareInt64's lt/gt/eq
// results agree with Go's native int64 ordering for arbitrary operand pairs,
// i.e. exactly one of lt, eq, gt holds.
func TestProperty_CompareInt64TotalOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("lt/eq/gt partition every pair exactly once", prop.ForAll(
		func(a, b int64) bool {
			lt, err := compareInt64(OpLT, a, b)
			if err != nil {
				return false
			}
			eq, err := compareInt64(OpEQ, a, b)
			if err != nil {
				return false
			}
			gt, err := compareInt64(OpGT, a, b)
			if err != nil {
				return false
			}
			count := 0
			for _, v := range []bool{lt, eq, gt} {
				if v {
					count++
				}
			}
			if count != 1 {
				return false
			}
			return lt == (a < b) && eq == (a == b) && gt == (a > b)
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// TestProperty_SumAggregateIsOrderIndependent validates that sum over a
// fixed multiset of passing rows does not depend on scan order, matching
// the wire format's guarantee that aggregate results are a function of the
// passing row set alone.
func TestProperty_SumAggregateIsOrderIndependent(t *testing.T) {
	schema, err := types.SchemaFromString("0 SKY_DOUBLE 0 0 V\n")
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("sum is invariant to row order", prop.ForAll(
		func(vals []float64) bool {
			forward := sumOf(t, schema, vals)
			reversed := make([]float64, len(vals))
			for i, v := range vals {
				reversed[len(vals)-1-i] = v
			}
			backward := sumOf(t, schema, reversed)
			return fmt.Sprintf("%.6f", forward) == fmt.Sprintf("%.6f", backward)
		},
		gen.SliceOf(gen.Float64Range(-1000, 1000)),
	))

	properties.TestingRun(t)
}

func sumOf(t *testing.T, schema types.Schema, vals []float64) float64 {
	t.Helper()
	atoms, err := PredsFromString(";V,sum,0", schema)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	chain := NewChain(atoms)
	for i, v := range vals {
		row := types.Row{RID: int64(i), Cells: []types.Cell{types.FloatCell(types.SkyFloat64, v)}}
		if _, err := chain.Apply(row, schema); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	out := chain.Finalize()
	if len(out) != 1 {
		t.Fatalf("want 1 aggregate result, got %d", len(out))
	}
	return out[0].F
}
