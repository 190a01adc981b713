// Package colexec implements pushdown execution over the columnar
// tabular container. Grounded on the source's processArrow for the
// projection shape, but implements the corrected column-selection
// algorithm (iterate the query schema, copy the matching source column)
// in place of the source's inverted RemoveColumn loop, and extends
// projection with the same predicate/aggregate evaluation rowexec
// applies to the row-format container — the source's processArrow never
// filters or aggregates, it only reshapes columns.
package colexec

import (
	"fmt"

	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/pkg/types"
)

// Execute filters table's rows with preds, then projects the surviving
// rows down to querySchema's columns. A global aggregate in preds
// collapses the result to a single-row table instead of a filtered
// projection, matching rowexec's behavior for the row-format container.
func Execute(table columnar.Table, querySchema types.Schema, preds []predicate.Atom) (columnar.Table, error) {
	chain := predicate.NewChain(preds)
	hasAgg := chain.HasAgg()
	encodeRows := !hasAgg

	keep := make([]bool, table.NRows)
	for r := 0; r < table.NRows; r++ {
		row := rowAt(table, r)
		pass := true
		if len(preds) > 0 {
			var err error
			pass, err = chain.Apply(row, table.DataSchema)
			if err != nil {
				return columnar.Table{}, err
			}
		}
		if !pass {
			continue
		}
		if encodeRows {
			keep[r] = true
		}
	}

	if !encodeRows {
		cells := chain.Finalize()
		out := columnar.Table{
			DataSchema: querySchema,
			DBSchema:   table.DBSchema,
			TableName:  table.TableName,
			NRows:      1,
			Columns:    make([]columnar.Column, len(cells)),
		}
		for i, c := range cells {
			out.Columns[i] = columnar.Column{Values: []types.Cell{c}}
		}
		return out, nil
	}

	out := columnar.Table{
		DataSchema: querySchema,
		DBSchema:   table.DBSchema,
		TableName:  table.TableName,
		Columns:    make([]columnar.Column, len(querySchema)),
	}
	for qi, qcol := range querySchema {
		srcIdx, ok := columnPositionForQueryCol(table.DataSchema, qcol)
		if !ok {
			return columnar.Table{}, fmt.Errorf("%w: column %q not present in source table", types.ErrColNotPresent, qcol.Name)
		}
		var src columnar.Column
		if srcIdx >= 0 {
			src = table.Columns[srcIdx]
		}
		var dst columnar.Column
		for r := 0; r < table.NRows; r++ {
			if !keep[r] {
				continue
			}
			dst.Values = append(dst.Values, valueAt(table, qcol, srcIdx, r))
			if src.IsNull(r) {
				w := len(dst.Values) - 1
				for len(dst.NullBits) <= w/64 {
					dst.NullBits = append(dst.NullBits, 0)
				}
				dst.NullBits[w/64] |= uint64(1) << uint(w%64)
			}
		}
		out.Columns[qi] = dst
	}
	for _, k := range keep {
		if k {
			out.NRows++
		}
	}
	return out, nil
}

// columnPositionForQueryCol finds the source-schema position matching a
// query column, first by RID sentinel, then by name — the corrected
// analog of the source's inverted RemoveColumn loop. The RID sentinel is
// reported present at position -1, since valueAt synthesizes it.
func columnPositionForQueryCol(src types.Schema, q types.ColInfo) (int, bool) {
	if q.Idx == types.RIDColIndex {
		return -1, true
	}
	for i, c := range src {
		if c.NameEquals(q.Name) {
			return i, true
		}
	}
	return -1, false
}

// valueAt reads one cell, synthesizing the RID sentinel column from the
// row position when the query asks for RID_INDEX.
func valueAt(table columnar.Table, qcol types.ColInfo, srcIdx, row int) types.Cell {
	if qcol.Idx == types.RIDColIndex {
		return types.UintCell(types.SkyUInt64, uint64(row))
	}
	return table.Columns[srcIdx].Values[row]
}

// rowAt materializes one row of the columnar table into the tagged-union
// Row shape predicate.Chain.Apply expects, so the same comparison and
// aggregation logic serves both container formats. The row position
// stands in for RID: this hand-rolled columnar layout has no independent
// RID column of its own, unlike the row-format container's Record.RID.
func rowAt(table columnar.Table, r int) types.Row {
	width := len(table.Columns)
	for _, c := range table.DataSchema {
		if c.Idx+1 > width {
			width = c.Idx + 1
		}
	}
	cells := make([]types.Cell, width)
	nullBits := types.NewNullBits(width)
	for ci, col := range table.Columns {
		idx := ci
		if ci < len(table.DataSchema) {
			idx = table.DataSchema[ci].Idx
		}
		if idx < 0 || idx >= width {
			continue
		}
		if r < len(col.Values) {
			cells[idx] = col.Values[r]
		}
		if col.IsNull(r) {
			w := idx / 64
			nullBits[w] |= uint64(1) << uint(idx%64)
		}
	}
	return types.Row{RID: int64(r), NullBits: nullBits, Cells: cells}
}
