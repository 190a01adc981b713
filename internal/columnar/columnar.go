// Package columnar implements the columnar tabular container: one Column
// per schema field, each carrying its own null bitmap, laid out for
// cheap column-at-a-time projection and aggregation. Grounded on the
// source's extract_arrow_from_buffer/convert_arrow_to_buffer/
// compress_arrow_tables/split_arrow_table quartet, reworked over a
// hand-rolled binary layout in place of the Apache Arrow IPC format.
package columnar

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/arkilian/skyquery/pkg/types"
)

const magic uint32 = 0x534b5902 // "SKY\x02"

// Column is one schema field's values, column-major, with its own null
// bitmap addressed by row position (not by schema column index, since a
// Column already corresponds to exactly one column).
type Column struct {
	NullBits []uint64
	Values   []types.Cell
}

// IsNull reports whether row position i is null in this column.
func (c Column) IsNull(i int) bool {
	w := i / 64
	if w < 0 || w >= len(c.NullBits) {
		return false
	}
	return c.NullBits[w]&(uint64(1)<<uint(i%64)) != 0
}

// Table is a decoded columnar container: schema-ordered columns plus the
// same object-level provenance the row-format container carries.
type Table struct {
	DataSchema types.Schema
	DBSchema   string
	TableName  string
	NRows      int
	Columns    []Column
}

// SchemaEqual reports whether two tables share the same column layout,
// the precondition compress_arrow_tables checks before concatenation.
func (t Table) SchemaEqual(o Table) bool {
	return t.DataSchema.Equal(o.DataSchema)
}

// Encode serializes a Table (convert_arrow_to_buffer's counterpart).
func Encode(t Table) ([]byte, error) {
	var header bytes.Buffer
	binary.Write(&header, binary.LittleEndian, magic)
	writeString(&header, types.SchemaToString(t.DataSchema))
	writeString(&header, t.DBSchema)
	writeString(&header, t.TableName)
	binary.Write(&header, binary.LittleEndian, uint32(t.NRows))

	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(len(t.Columns)))
	for ci, col := range t.Columns {
		if err := writeColumn(&body, col); err != nil {
			return nil, fmt.Errorf("write column %d: %w", ci, err)
		}
	}
	compressed := snappy.Encode(nil, body.Bytes())

	var out bytes.Buffer
	out.Write(header.Bytes())
	binary.Write(&out, binary.LittleEndian, uint32(len(compressed)))
	out.Write(compressed)
	return out.Bytes(), nil
}

// Decode parses a wire buffer produced by Encode (extract_arrow_from_buffer's
// counterpart).
func Decode(buf []byte) (Table, error) {
	r := bytes.NewReader(buf)

	var m uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return Table{}, fmt.Errorf("read magic: %w", err)
	}
	if m != magic {
		return Table{}, fmt.Errorf("%w: bad magic %#x", types.ErrArrowStatus, m)
	}

	var t Table
	schemaText, err := readString(r)
	if err != nil {
		return Table{}, err
	}
	if t.DataSchema, err = types.SchemaFromString(schemaText); err != nil {
		return Table{}, err
	}
	if t.DBSchema, err = readString(r); err != nil {
		return Table{}, err
	}
	if t.TableName, err = readString(r); err != nil {
		return Table{}, err
	}

	var nRows uint32
	if err := binary.Read(r, binary.LittleEndian, &nRows); err != nil {
		return Table{}, err
	}
	t.NRows = int(nRows)

	var compressedLen uint32
	if err := binary.Read(r, binary.LittleEndian, &compressedLen); err != nil {
		return Table{}, err
	}
	compressed := make([]byte, compressedLen)
	if _, err := r.Read(compressed); err != nil {
		return Table{}, err
	}
	body, err := snappy.Decode(nil, compressed)
	if err != nil {
		return Table{}, fmt.Errorf("snappy decode: %w", err)
	}

	br := bytes.NewReader(body)
	var nCols uint32
	if err := binary.Read(br, binary.LittleEndian, &nCols); err != nil {
		return Table{}, err
	}
	t.Columns = make([]Column, nCols)
	for i := range t.Columns {
		col, err := readColumn(br)
		if err != nil {
			return Table{}, fmt.Errorf("read column %d: %w", i, err)
		}
		t.Columns[i] = col
	}
	return t, nil
}

// CompressTables concatenates same-schema tables into one, matching
// compress_arrow_tables's schema-equality precondition.
func CompressTables(tables []Table) (Table, error) {
	if len(tables) == 0 {
		return Table{}, fmt.Errorf("%w: no tables to compress", types.ErrArrowStatus)
	}
	first := tables[0]
	for _, t := range tables[1:] {
		if !t.SchemaEqual(first) {
			return Table{}, fmt.Errorf("%w: schema mismatch across tables", types.ErrArrowStatus)
		}
	}

	out := Table{DataSchema: first.DataSchema, DBSchema: first.DBSchema, TableName: first.TableName}
	out.Columns = make([]Column, len(first.DataSchema))
	for _, t := range tables {
		for ci := range out.Columns {
			out.Columns[ci].Values = append(out.Columns[ci].Values, t.Columns[ci].Values...)
			out.Columns[ci].NullBits = appendNullBits(out.Columns[ci].NullBits, out.NRows, t.Columns[ci], t.NRows)
		}
		out.NRows += t.NRows
	}
	return out, nil
}

// SplitTable divides t into a sequence of tables of at most maxRows rows
// each, preserving column order and provenance, matching split_arrow_table.
func SplitTable(t Table, maxRows int) []Table {
	if maxRows <= 0 || t.NRows <= maxRows {
		return []Table{t}
	}

	var out []Table
	for offset := 0; offset < t.NRows; offset += maxRows {
		n := maxRows
		if offset+n > t.NRows {
			n = t.NRows - offset
		}
		part := Table{DataSchema: t.DataSchema, DBSchema: t.DBSchema, TableName: t.TableName, NRows: n}
		part.Columns = make([]Column, len(t.Columns))
		for ci, col := range t.Columns {
			part.Columns[ci].Values = append([]types.Cell(nil), col.Values[offset:offset+n]...)
			part.Columns[ci].NullBits = sliceNullBits(col.NullBits, offset, n)
		}
		out = append(out, part)
	}
	return out
}

func appendNullBits(dst []uint64, dstOffset int, src Column, srcRows int) []uint64 {
	for i := 0; i < srcRows; i++ {
		pos := dstOffset + i
		for len(dst) <= pos/64 {
			dst = append(dst, 0)
		}
		if src.IsNull(i) {
			dst[pos/64] |= uint64(1) << uint(pos%64)
		}
	}
	return dst
}

func sliceNullBits(src []uint64, offset, n int) []uint64 {
	out := make([]uint64, (n+63)/64)
	for i := 0; i < n; i++ {
		srcPos := offset + i
		w := srcPos / 64
		if w < len(src) && src[w]&(uint64(1)<<uint(srcPos%64)) != 0 {
			out[i/64] |= uint64(1) << uint(i%64)
		}
	}
	return out
}

func writeColumn(w *bytes.Buffer, c Column) error {
	binary.Write(w, binary.LittleEndian, uint32(len(c.NullBits)))
	for _, word := range c.NullBits {
		binary.Write(w, binary.LittleEndian, word)
	}
	binary.Write(w, binary.LittleEndian, uint32(len(c.Values)))
	for _, v := range c.Values {
		if err := writeCell(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readColumn(r *bytes.Reader) (Column, error) {
	var col Column
	var nWords uint32
	if err := binary.Read(r, binary.LittleEndian, &nWords); err != nil {
		return Column{}, err
	}
	col.NullBits = make([]uint64, nWords)
	for i := range col.NullBits {
		if err := binary.Read(r, binary.LittleEndian, &col.NullBits[i]); err != nil {
			return Column{}, err
		}
	}

	var nVals uint32
	if err := binary.Read(r, binary.LittleEndian, &nVals); err != nil {
		return Column{}, err
	}
	col.Values = make([]types.Cell, nVals)
	for i := range col.Values {
		v, err := readCell(r)
		if err != nil {
			return Column{}, err
		}
		col.Values[i] = v
	}
	return col, nil
}

func writeString(w *bytes.Buffer, s string) {
	binary.Write(w, binary.LittleEndian, uint32(len(s)))
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeCell(w *bytes.Buffer, c types.Cell) error {
	w.WriteByte(byte(c.Type))
	switch {
	case c.Type.IsFloat():
		return binary.Write(w, binary.LittleEndian, c.F)
	case c.Type.IsSigned():
		return binary.Write(w, binary.LittleEndian, c.I)
	case c.Type.IsUnsigned() || c.Type == types.SkyBool:
		return binary.Write(w, binary.LittleEndian, c.U)
	case c.Type == types.SkyString || c.Type == types.SkyDate:
		writeString(w, c.S)
		return nil
	default:
		return fmt.Errorf("%w: %s", types.ErrUnknownDataType, c.Type)
	}
}

func readCell(r *bytes.Reader) (types.Cell, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return types.Cell{}, err
	}
	t := types.DataType(tagByte)
	switch {
	case t.IsFloat():
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return types.Cell{}, err
		}
		return types.FloatCell(t, f), nil
	case t.IsSigned():
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return types.Cell{}, err
		}
		return types.IntCell(t, i), nil
	case t.IsUnsigned() || t == types.SkyBool:
		var u uint64
		if err := binary.Read(r, binary.LittleEndian, &u); err != nil {
			return types.Cell{}, err
		}
		return types.UintCell(t, u), nil
	case t == types.SkyString || t == types.SkyDate:
		s, err := readString(r)
		if err != nil {
			return types.Cell{}, err
		}
		return types.StringCell(t, s), nil
	default:
		return types.Cell{}, fmt.Errorf("%w: tag %d", types.ErrUnknownDataType, tagByte)
	}
}
