// Package skyprint implements the human-readable inspection output for
// both tabular containers: header dumps and CSV-formatted row/column
// listings. Grounded on printSkyRootHeader, printSkyRecHeader,
// printFlatbufFlexRowAsCsv, printArrowHeader, and print_arrowbuf_colwise.
package skyprint

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/pkg/types"
)

// CSVDelim is the field separator used by every CSV writer in this
// package.
const CSVDelim = ","

// WriteRootHeader writes the row-format container's provenance header.
func WriteRootHeader(w io.Writer, root rowcodec.Root) {
	fmt.Fprintln(w, "[ROOT HEADER (row)]")
	fmt.Fprintf(w, "data_format_type: %d\n", root.DataFormatType)
	fmt.Fprintf(w, "db_schema: %s\n", root.DBSchema)
	fmt.Fprintf(w, "table name: %s\n", root.TableName)
	fmt.Fprintf(w, "data_schema:\n%s", types.SchemaToString(root.DataSchema))

	fmt.Fprint(w, "delete vector: [")
	for i, del := range root.DeleteVector {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		if del {
			fmt.Fprint(w, "1")
		} else {
			fmt.Fprint(w, "0")
		}
	}
	fmt.Fprintln(w, "]")
	fmt.Fprintf(w, "nrows: %d\n\n", len(root.Records))
}

// WriteRecordHeader writes one record's RID and its nullbits, rendered
// as a per-word bit string with bit 0 leftmost.
func WriteRecordHeader(w io.Writer, row types.Row) {
	fmt.Fprintln(w, "[ROW HEADER (row)]")
	fmt.Fprintf(w, "RID: %d\n", row.RID)
	for j, word := range row.NullBits {
		var b strings.Builder
		for k := 0; k < 64; k++ {
			if word&(uint64(1)<<uint(k)) != 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		fmt.Fprintf(w, "nullbits [%d]: val=%d: bits=%s\n", j, word, b.String())
	}
}

// PrintRowsAsCSV writes the row-format container as CSV: an optional
// header line of column names (annotated (key)/(NOT NULL) like the
// source), then one line per surviving (non-deleted) row, up to
// maxToPrint rows (0 means unlimited). Returns the number of rows
// written.
func PrintRowsAsCSV(w io.Writer, root rowcodec.Root, printHeader bool, maxToPrint int) (int, error) {
	if printHeader {
		writeCSVHeader(w, root.DataSchema)
	}

	written := 0
	for i, row := range root.Records {
		if maxToPrint > 0 && written >= maxToPrint {
			break
		}
		if i < len(root.DeleteVector) && root.DeleteVector[i] {
			continue
		}
		if err := writeRowCSV(w, root.DataSchema, row); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeCSVHeader(w io.Writer, schema types.Schema) {
	for i, col := range schema {
		if i > 0 {
			fmt.Fprint(w, CSVDelim)
		}
		fmt.Fprint(w, col.Name)
		if col.IsKey {
			fmt.Fprint(w, "(key)")
		}
		if !col.Nullable {
			fmt.Fprint(w, "(NOT NULL)")
		}
	}
	fmt.Fprintln(w)
}

func writeRowCSV(w io.Writer, schema types.Schema, row types.Row) error {
	for j, col := range schema {
		if j > 0 {
			fmt.Fprint(w, CSVDelim)
		}
		if col.Nullable && row.IsNull(col.Idx) {
			fmt.Fprint(w, "NULL")
			continue
		}
		var cell types.Cell
		if col.Idx >= 0 && col.Idx < len(row.Cells) {
			cell = row.Cells[col.Idx]
		}
		fmt.Fprint(w, formatCell(cell))
	}
	fmt.Fprintln(w)
	return nil
}

func formatCell(c types.Cell) string {
	switch {
	case c.Type.IsFloat():
		return strconv.FormatFloat(c.F, 'g', -1, 64)
	case c.Type == types.SkyBool:
		return strconv.FormatBool(c.Bool())
	case c.Type.IsSigned():
		return strconv.FormatInt(c.I, 10)
	case c.Type.IsUnsigned():
		return strconv.FormatUint(c.U, 10)
	default:
		return c.S
	}
}

// WriteColumnarHeader writes the columnar container's provenance header,
// matching printArrowHeader's field set.
func WriteColumnarHeader(w io.Writer, table columnar.Table) {
	fmt.Fprintln(w, "[ROOT HEADER (columnar)]")
	fmt.Fprintf(w, "db_schema: %s\n", table.DBSchema)
	fmt.Fprintf(w, "table name: %s\n", table.TableName)
	fmt.Fprintf(w, "nrows: %d\n", table.NRows)
}

// PrintColumnarAsCSV writes a columnar table row-major, one CSV line per
// row, matching printFlatbufFlexRowAsCsv's output shape for the
// columnar container.
func PrintColumnarAsCSV(w io.Writer, table columnar.Table, printHeader bool) error {
	if printHeader {
		writeCSVHeader(w, table.DataSchema)
	}
	for r := 0; r < table.NRows; r++ {
		for ci, col := range table.Columns {
			if ci > 0 {
				fmt.Fprint(w, CSVDelim)
			}
			if col.IsNull(r) {
				fmt.Fprint(w, "NULL")
				continue
			}
			if r < len(col.Values) {
				fmt.Fprint(w, formatCell(col.Values[r]))
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

// PrintColumnarColwise writes a columnar table one column per line: the
// column name, then every value in that column, matching
// print_arrowbuf_colwise.
func PrintColumnarColwise(w io.Writer, table columnar.Table) error {
	for ci, col := range table.DataSchema {
		fmt.Fprint(w, col.Name, CSVDelim)
		values := table.Columns[ci]
		for r, v := range values.Values {
			if values.IsNull(r) {
				fmt.Fprint(w, "NULL")
			} else {
				fmt.Fprint(w, formatCell(v))
			}
			fmt.Fprint(w, CSVDelim)
		}
		fmt.Fprintln(w)
	}
	return nil
}
