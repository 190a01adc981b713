// Package rowcodec implements the row-format tabular container: a header
// describing the object's schema and provenance, followed by one Record
// per row. This is the wire codec grounded on the source's SkyRoot/
// SkyRecord flatbuffer container, reworked as a tagged-union cell layout
// instead of a flexbuffer payload per record.
package rowcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/arkilian/skyquery/pkg/types"
)

const magic uint32 = 0x534b5901 // "SKY\x01"

// Root is one decoded row-format container.
type Root struct {
	DataFormatType byte // format tag: 0 = row container, 1 = columnar
	DataSchema     types.Schema
	DBSchema       string
	TableName      string
	DeleteVector   []bool // one entry per record, true means logically deleted
	Records        []types.Row
}

// Encode serializes a Root into the wire format. The header (schema text,
// provenance strings) is written uncompressed since it is small; the record
// segment, which dominates object size, is snappy-compressed as a whole.
func Encode(root Root) ([]byte, error) {
	var header bytes.Buffer
	if err := binary.Write(&header, binary.LittleEndian, magic); err != nil {
		return nil, fmt.Errorf("write magic: %w", err)
	}
	header.WriteByte(root.DataFormatType)
	writeString(&header, types.SchemaToString(root.DataSchema))
	writeString(&header, root.DBSchema)
	writeString(&header, root.TableName)

	if err := binary.Write(&header, binary.LittleEndian, uint32(len(root.DeleteVector))); err != nil {
		return nil, fmt.Errorf("write delete vector length: %w", err)
	}
	for _, del := range root.DeleteVector {
		if del {
			header.WriteByte(1)
		} else {
			header.WriteByte(0)
		}
	}

	var body bytes.Buffer
	if err := binary.Write(&body, binary.LittleEndian, uint32(len(root.Records))); err != nil {
		return nil, fmt.Errorf("write record count: %w", err)
	}
	for i := range root.Records {
		if err := writeRecord(&body, root.Records[i]); err != nil {
			return nil, fmt.Errorf("write record %d: %w", i, err)
		}
	}
	compressed := snappy.Encode(nil, body.Bytes())

	var out bytes.Buffer
	out.Write(header.Bytes())
	if err := binary.Write(&out, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return nil, fmt.Errorf("write body length: %w", err)
	}
	out.Write(compressed)
	return out.Bytes(), nil
}

// Decode parses a wire buffer produced by Encode.
func Decode(buf []byte) (Root, error) {
	r := bytes.NewReader(buf)

	var m uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return Root{}, fmt.Errorf("read magic: %w", err)
	}
	if m != magic {
		return Root{}, fmt.Errorf("%w: bad magic %#x", types.ErrUnknownDataType, m)
	}

	var root Root
	formatType, err := r.ReadByte()
	if err != nil {
		return Root{}, fmt.Errorf("read format type: %w", err)
	}
	root.DataFormatType = formatType

	schemaText, err := readString(r)
	if err != nil {
		return Root{}, fmt.Errorf("read data schema: %w", err)
	}
	root.DataSchema, err = types.SchemaFromString(schemaText)
	if err != nil {
		return Root{}, fmt.Errorf("parse data schema: %w", err)
	}

	if root.DBSchema, err = readString(r); err != nil {
		return Root{}, fmt.Errorf("read db schema: %w", err)
	}
	if root.TableName, err = readString(r); err != nil {
		return Root{}, fmt.Errorf("read table name: %w", err)
	}

	var nDeletes uint32
	if err := binary.Read(r, binary.LittleEndian, &nDeletes); err != nil {
		return Root{}, fmt.Errorf("read delete vector length: %w", err)
	}
	root.DeleteVector = make([]bool, nDeletes)
	for i := range root.DeleteVector {
		b, err := r.ReadByte()
		if err != nil {
			return Root{}, fmt.Errorf("read delete vector[%d]: %w", i, err)
		}
		root.DeleteVector[i] = b != 0
	}

	var compressedLen uint32
	if err := binary.Read(r, binary.LittleEndian, &compressedLen); err != nil {
		return Root{}, fmt.Errorf("read body length: %w", err)
	}
	compressed := make([]byte, compressedLen)
	if _, err := r.Read(compressed); err != nil {
		return Root{}, fmt.Errorf("read compressed body: %w", err)
	}
	body, err := snappy.Decode(nil, compressed)
	if err != nil {
		return Root{}, fmt.Errorf("snappy decode: %w", err)
	}

	br := bytes.NewReader(body)
	var nRecords uint32
	if err := binary.Read(br, binary.LittleEndian, &nRecords); err != nil {
		return Root{}, fmt.Errorf("read record count: %w", err)
	}
	root.Records = make([]types.Row, nRecords)
	for i := range root.Records {
		rec, err := readRecord(br)
		if err != nil {
			return Root{}, fmt.Errorf("read record %d: %w", i, err)
		}
		root.Records[i] = rec
	}
	return root, nil
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

func writeRecord(w *bytes.Buffer, row types.Row) error {
	if err := binary.Write(w, binary.LittleEndian, row.RID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(row.NullBits))); err != nil {
		return err
	}
	for _, word := range row.NullBits {
		if err := binary.Write(w, binary.LittleEndian, word); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(row.Cells))); err != nil {
		return err
	}
	for _, c := range row.Cells {
		if err := writeCell(w, c); err != nil {
			return err
		}
	}
	return nil
}

func readRecord(r *bytes.Reader) (types.Row, error) {
	var row types.Row
	if err := binary.Read(r, binary.LittleEndian, &row.RID); err != nil {
		return types.Row{}, err
	}

	var nWords uint32
	if err := binary.Read(r, binary.LittleEndian, &nWords); err != nil {
		return types.Row{}, err
	}
	row.NullBits = make([]uint64, nWords)
	for i := range row.NullBits {
		if err := binary.Read(r, binary.LittleEndian, &row.NullBits[i]); err != nil {
			return types.Row{}, err
		}
	}

	var nCells uint32
	if err := binary.Read(r, binary.LittleEndian, &nCells); err != nil {
		return types.Row{}, err
	}
	row.Cells = make([]types.Cell, nCells)
	for i := range row.Cells {
		c, err := readCell(r)
		if err != nil {
			return types.Row{}, err
		}
		row.Cells[i] = c
	}
	return row, nil
}

// writeCell/readCell encode a Cell as a one-byte type tag followed by the
// fixed-width or length-prefixed value for that type, keeping the tagged
// union explicit on the wire rather than relying on schema-derived width.
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
