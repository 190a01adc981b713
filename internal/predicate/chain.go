package predicate

import (
	"fmt"

	"github.com/arkilian/skyquery/pkg/types"
)

// Chain is an ordered predicate expression: a sequence of atoms, each
// joined to the running row-level result by its own And flag. Global
// aggregate atoms (min/max/sum/cnt) are expected at the tail, per the
// wire format's convention of reordering non-aggregate atoms first.
//
// A Chain carries mutable aggregate state across repeated Apply calls
// within one scan; call Reset before reusing it for an unrelated scan.
type Chain struct {
	Atoms []Atom
	agg   []aggState
}

// NewChain builds a Chain ready to scan, seeding aggregate state for
// every global-aggregate atom from the atom's own declared value type.
func NewChain(atoms []Atom) *Chain {
	c := &Chain{Atoms: atoms, agg: make([]aggState, len(atoms))}
	for i, a := range atoms {
		if a.Op.IsGlobalAgg() {
			c.agg[i] = newAggState(a.Val.Type)
		}
	}
	return c
}

// Reset clears accumulated aggregate state so the Chain can scan a fresh
// object from the start.
func (c *Chain) Reset() {
	for i, a := range c.Atoms {
		if a.Op.IsGlobalAgg() {
			c.agg[i] = newAggState(a.Val.Type)
		}
	}
}

// HasAgg reports whether any atom in the chain is a global aggregate.
func (c *Chain) HasAgg() bool {
	for _, a := range c.Atoms {
		if a.Op.IsGlobalAgg() {
			return true
		}
	}
	return false
}

// Apply evaluates the chain against one row and folds any passing global
// aggregate atoms into their running state. It returns whether the row
// passes the non-aggregate portion of the chain.
//
// Short-circuit matches the source scan: once an AND-joined atom fails,
// evaluation of the chain stops immediately, including any aggregate
// atoms still to come. A row that fails an early AND clause therefore
// never contributes to a trailing aggregate even though the aggregate
// atom itself carries no comparison to fail — this is intentional,
// preserved wire-compatible behavior rather than an oversight.
func (c *Chain) Apply(row types.Row, schema types.Schema) (bool, error) {
	pass := true
	for i, atom := range c.Atoms {
		if atom.Op.IsGlobalAgg() {
			if pass {
				colVal, err := extractColVal(row, schema, atom.ColIdx)
				if err != nil {
					return false, err
				}
				if err := accumulate(&c.agg[i], atom.Op, colVal); err != nil {
					return false, err
				}
			}
			continue
		}

		colVal, err := extractColVal(row, schema, atom.ColIdx)
		if err != nil {
			return false, err
		}
		result, err := Compare(atom.Op, colVal, atom.Val)
		if err != nil {
			return false, err
		}

		switch {
		case i == 0:
			pass = result
		case atom.And:
			pass = pass && result
		default:
			pass = pass || result
		}

		if atom.And && !pass {
			break
		}
	}
	return pass, nil
}

// Finalize returns the current value of every global-aggregate atom, in
// chain order, for emission as the query's single synthetic output row.
func (c *Chain) Finalize() []types.Cell {
	var out []types.Cell
	for i, a := range c.Atoms {
		if a.Op.IsGlobalAgg() {
			out = append(out, c.agg[i].value)
		}
	}
	return out
}

// extractColVal reads the value a predicate atom compares against: the
// row's RID for types.RIDColIndex, otherwise the cell at ColIdx.
func extractColVal(row types.Row, schema types.Schema, colIdx int) (types.Cell, error) {
	if colIdx == types.RIDColIndex {
		return types.UintCell(types.SkyUInt64, uint64(row.RID)), nil
	}
	col, ok := schema.ColByIdx(colIdx)
	if !ok {
		return types.Cell{}, fmt.Errorf("%w: column index %d", types.ErrColIndexOOB, colIdx)
	}
	if colIdx < 0 || colIdx >= len(row.Cells) {
		return types.Cell{}, fmt.Errorf("%w: column index %d", types.ErrColIndexOOB, colIdx)
	}
	_ = col
	return row.Cells[colIdx], nil
}
