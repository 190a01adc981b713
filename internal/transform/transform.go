// Package transform converts between the row-format and columnar
// tabular containers. Grounded on the source's transform_fb_to_arrow
// and transform_arrow_to_fb.
package transform

import (
	"errors"
	"fmt"

	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/pkg/types"
)

// ErrUnsupportedTransform is returned by ColumnarToRow for any table
// shape it cannot reconstruct — the direction the source implements only
// as a placeholder (transform_arrow_to_fb never builds a return
// container; it just re-prints the input).
var ErrUnsupportedTransform = errors.New("transform: columnar-to-row conversion not supported for this table")

const (
	ridColumnName     = "RID"
	deletedColumnName = "DELETED_VECTOR"
)

// RowToColumnar converts a row-format container into an equivalent
// columnar table, appending a RID column and a DELETED_VECTOR column the
// same way the source appends its RID and deleted-vector array builders.
// The null-bit test bug the source carries (`== 1` where a multi-bit mask
// almost never equals exactly 1) is fixed here to `!= 0`.
func RowToColumnar(root rowcodec.Root) (columnar.Table, error) {
	schema := root.DataSchema
	out := columnar.Table{
		DataSchema: append(append(types.Schema{}, schema...),
			types.ColInfo{Idx: len(schema), Type: types.SkyInt64, Name: ridColumnName},
			types.ColInfo{Idx: len(schema) + 1, Type: types.SkyBool, Name: deletedColumnName},
		),
		DBSchema:  root.DBSchema,
		TableName: root.TableName,
		NRows:     len(root.Records),
	}
	out.Columns = make([]columnar.Column, len(out.DataSchema))

	for _, col := range schema {
		if !isSupportedColumnType(col.Type) {
			return columnar.Table{}, fmt.Errorf("%w: table=%s col.type=%s", types.ErrUnsupportedDataType, root.TableName, col.Type)
		}
	}

	for i, rec := range root.Records {
		for pos, col := range schema {
			var isNull bool
			if col.Nullable {
				isNull = rec.IsNull(col.Idx)
			}
			if isNull {
				setNull(&out.Columns[pos], i)
				out.Columns[pos].Values = append(out.Columns[pos].Values, types.Cell{Type: col.Type})
				continue
			}
			var v types.Cell
			if col.Idx >= 0 && col.Idx < len(rec.Cells) {
				v = rec.Cells[col.Idx]
			}
			out.Columns[pos].Values = append(out.Columns[pos].Values, v)
		}

		ridPos := len(schema)
		delPos := len(schema) + 1
		out.Columns[ridPos].Values = append(out.Columns[ridPos].Values, types.IntCell(types.SkyInt64, rec.RID))
		deleted := i < len(root.DeleteVector) && root.DeleteVector[i]
		out.Columns[delPos].Values = append(out.Columns[delPos].Values, types.BoolCell(deleted))
	}
	return out, nil
}

func isSupportedColumnType(t types.DataType) bool {
	switch t {
	case types.SkyBool, types.SkyInt8, types.SkyInt16, types.SkyInt32, types.SkyInt64,
		types.SkyUInt8, types.SkyUInt16, types.SkyUInt32, types.SkyUInt64,
		types.SkyFloat32, types.SkyFloat64, types.SkyChar, types.SkyUChar,
		types.SkyDate, types.SkyString:
		return true
	default:
		return false
	}
}

func setNull(col *columnar.Column, row int) {
	for len(col.NullBits) <= row/64 {
		col.NullBits = append(col.NullBits, 0)
	}
	col.NullBits[row/64] |= uint64(1) << uint(row%64)
}

// ColumnarToRow reconstructs a row-format container from a columnar
// table, provided the table still carries its RID and DELETED_VECTOR
// columns (i.e. it was produced by RowToColumnar and not yet reprojected
// down to a narrower schema). Any other shape is rejected: the source
// never implements this direction beyond a debug print, so there is no
// original algorithm to generalize from.
func ColumnarToRow(table columnar.Table) (rowcodec.Root, error) {
	ridPos := columnPosition(table.DataSchema, ridColumnName)
	delPos := columnPosition(table.DataSchema, deletedColumnName)
	if ridPos < 0 || delPos < 0 {
		return rowcodec.Root{}, ErrUnsupportedTransform
	}

	dataSchema := make(types.Schema, 0, len(table.DataSchema)-2)
	for _, c := range table.DataSchema {
		if c.Name == ridColumnName || c.Name == deletedColumnName {
			continue
		}
		dataSchema = append(dataSchema, c)
	}

	root := rowcodec.Root{
		DataSchema:   dataSchema,
		DBSchema:     table.DBSchema,
		TableName:    table.TableName,
		DeleteVector: make([]bool, table.NRows),
		Records:      make([]types.Row, table.NRows),
	}

	for r := 0; r < table.NRows; r++ {
		rid := table.Columns[ridPos].Values[r].I
		root.DeleteVector[r] = table.Columns[delPos].Values[r].Bool()

		cells := make([]types.Cell, len(dataSchema))
		nullBits := types.NewNullBits(len(dataSchema))
		for _, col := range dataSchema {
			srcPos := columnPosition(table.DataSchema, col.Name)
			if srcPos < 0 {
				return rowcodec.Root{}, ErrUnsupportedTransform
			}
			src := table.Columns[srcPos]
			if src.IsNull(r) {
				nullBits[col.Idx/64] |= uint64(1) << uint(col.Idx%64)
				continue
			}
			if col.Idx >= 0 && col.Idx < len(cells) {
				cells[col.Idx] = src.Values[r]
			}
		}
		root.Records[r] = types.Row{RID: rid, NullBits: nullBits, Cells: cells}
	}
	return root, nil
}

func columnPosition(schema types.Schema, name string) int {
	for i, c := range schema {
		if c.Name == name {
			return i
		}
	}
	return -1
}
