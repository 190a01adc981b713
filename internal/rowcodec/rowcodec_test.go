package rowcodec

import (
	"testing"

	"github.com/arkilian/skyquery/pkg/types"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	schema, err := types.SchemaFromString("0 SKY_INT32 0 0 A\n1 SKY_STRING 0 0 B\n")
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}

	root := Root{
		DataFormatType: 0,
		DataSchema:     schema,
		DBSchema:       "mydb",
		TableName:      "mytable",
		DeleteVector:   []bool{false, true, false},
		Records: []types.Row{
			{RID: 1, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt32, 7), types.StringCell(types.SkyString, "hello")}},
			{RID: 2, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt32, -3), types.StringCell(types.SkyString, "")}},
			{RID: 3, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt32, 0), types.StringCell(types.SkyString, "world")}},
		},
	}
	root.Records[1].SetNull(1, true)

	buf, err := Encode(root)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !got.DataSchema.Equal(root.DataSchema) {
		t.Fatalf("schema mismatch: got %+v want %+v", got.DataSchema, root.DataSchema)
	}
	if got.DBSchema != root.DBSchema || got.TableName != root.TableName {
		t.Fatalf("provenance mismatch: got %+v", got)
	}
	if len(got.DeleteVector) != len(root.DeleteVector) {
		t.Fatalf("delete vector length mismatch")
	}
	for i := range root.DeleteVector {
		if got.DeleteVector[i] != root.DeleteVector[i] {
			t.Fatalf("delete vector[%d] mismatch", i)
		}
	}
	if len(got.Records) != len(root.Records) {
		t.Fatalf("record count mismatch")
	}
	for i, want := range root.Records {
		gotRow := got.Records[i]
		if gotRow.RID != want.RID {
			t.Fatalf("record %d RID mismatch: got %d want %d", i, gotRow.RID, want.RID)
		}
		for c := range want.Cells {
			if gotRow.Cells[c] != want.Cells[c] {
				t.Fatalf("record %d cell %d mismatch: got %+v want %+v", i, c, gotRow.Cells[c], want.Cells[c])
			}
			if gotRow.IsNull(c) != want.IsNull(c) {
				t.Fatalf("record %d cell %d nullbit mismatch", i, c)
			}
		}
	}
}

func TestDecode_BadMagic(t *testing.T) {
	if _, err := Decode([]byte{0, 1, 2, 3}); err == nil {
		t.Fatal("want error for truncated/invalid buffer")
	}
}
