// Package rowexec implements pushdown execution over the row-format
// tabular container: predicate evaluation, projection, and aggregation,
// all performed in a single pass over the container's records. Grounded
// line-for-line on the source's processSkyFb.
package rowexec

import (
	"fmt"

	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/pkg/types"
)

// Execute runs a pushdown query over root: preds filter and (optionally)
// aggregate, querySchema selects the projected columns, and rowNums, if
// non-empty, restricts the scan to those record positions instead of the
// whole container. The returned Root is always a validly formed container,
// even when err is non-nil for a recoverable per-row fault (a bad column
// index or unsupported type in one row's projection). A row-number bounds
// violation, matching the source's early-return on rnum being out of
// range, and an error from evaluating preds on a row both abort the scan
// outright and return an empty Root.
func Execute(root rowcodec.Root, querySchema types.Schema, preds []predicate.Atom, rowNums []uint32) (rowcodec.Root, error) {
	colIdxMax := root.DataSchema.MaxIdx()

	chain := predicate.NewChain(preds)
	hasAgg := chain.HasAgg()
	encodeRows := !hasAgg

	processAllRows := len(rowNums) == 0
	nrows := len(root.Records)
	if !processAllRows {
		nrows = len(rowNums)
	}

	var deadRows []bool
	var outRows []types.Row
	var lastErr error

	for i := 0; i < nrows; i++ {
		rnum := uint32(i)
		if !processAllRows {
			rnum = rowNums[i]
		}
		if int(rnum) >= len(root.Records) {
			return rowcodec.Root{}, fmt.Errorf("%w: rnum(%d) >= nrows(%d)", types.ErrRowIndexOOB, rnum, len(root.Records))
		}

		if int(rnum) < len(root.DeleteVector) && root.DeleteVector[rnum] {
			continue
		}

		row := root.Records[rnum]

		if len(preds) > 0 {
			pass, err := chain.Apply(row, root.DataSchema)
			if err != nil {
				return rowcodec.Root{}, err
			}
			if !pass {
				continue
			}
		}

		if !encodeRows {
			continue // still accumulating aggregate state above
		}

		cells := make([]types.Cell, 0, len(querySchema))
		outRow := types.Row{RID: row.RID, NullBits: types.NewNullBits(len(querySchema))}
		for outIdx, col := range querySchema {
			if col.Idx < types.AggColLast || col.Idx > colIdxMax {
				lastErr = fmt.Errorf("%w: table=%s rid=%d col.idx=%d",
					types.ErrColIndexOOB, root.TableName, row.RID, col.Idx)
				break
			}

			var cell types.Cell
			if col.Idx == types.RIDColIndex {
				cell = types.UintCell(types.SkyUInt64, uint64(row.RID))
			} else if col.Idx >= 0 && col.Idx < len(row.Cells) {
				cell = row.Cells[col.Idx]
				outRow.SetNull(outIdx, row.IsNull(col.Idx))
			} else {
				lastErr = fmt.Errorf("%w: table=%s rid=%d col.idx=%d",
					types.ErrColIndexOOB, root.TableName, row.RID, col.Idx)
				break
			}
			cells = append(cells, cell)
		}
		outRow.Cells = cells

		outRows = append(outRows, outRow)
		deadRows = append(deadRows, false)
	}

	if hasAgg {
		aggCells := chain.Finalize()
		outRows = append(outRows, types.Row{RID: types.DeadRID, NullBits: types.NewNullBits(len(aggCells)), Cells: aggCells})
		deadRows = append(deadRows, false)
	}

	out := rowcodec.Root{
		DataFormatType: root.DataFormatType,
		DataSchema:     querySchema,
		DBSchema:       root.DBSchema,
		TableName:      root.TableName,
		DeleteVector:   deadRows,
		Records:        outRows,
	}
	return out, lastErr
}
