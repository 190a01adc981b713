package transform

import (
	"testing"

	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/pkg/types"
)

func buildRoot(t *testing.T) rowcodec.Root {
	t.Helper()
	schema, err := types.SchemaFromString("0 SKY_INT32 0 1 A\n1 SKY_STRING 0 0 B\n")
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	row0 := types.Row{RID: 10, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt32, 1), types.StringCell(types.SkyString, "x")}}
	row1 := types.Row{RID: 11, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt32, 0), types.StringCell(types.SkyString, "y")}}
	row1.SetNull(0, true)
	return rowcodec.Root{
		DataSchema:   schema,
		DBSchema:     "db",
		TableName:    "t",
		DeleteVector: []bool{false, true},
		Records:      []types.Row{row0, row1},
	}
}

func TestRowToColumnar_AppendsRIDAndDeletedVector(t *testing.T) {
	root := buildRoot(t)
	table, err := RowToColumnar(root)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(table.DataSchema) != 4 {
		t.Fatalf("want 4 columns (2 data + RID + DELETED_VECTOR), got %d", len(table.DataSchema))
	}
	ridCol := table.Columns[2]
	if ridCol.Values[0].I != 10 || ridCol.Values[1].I != 11 {
		t.Fatalf("RID column mismatch: %+v", ridCol.Values)
	}
	delCol := table.Columns[3]
	if delCol.Values[0].Bool() != false || delCol.Values[1].Bool() != true {
		t.Fatalf("deleted vector column mismatch: %+v", delCol.Values)
	}
	if !table.Columns[0].IsNull(1) {
		t.Fatal("row 1's nullable A column should be null")
	}
}

func TestRoundTrip_RowToColumnarToRow(t *testing.T) {
	root := buildRoot(t)
	table, err := RowToColumnar(root)
	if err != nil {
		t.Fatalf("row to columnar: %v", err)
	}
	back, err := ColumnarToRow(table)
	if err != nil {
		t.Fatalf("columnar to row: %v", err)
	}
	if len(back.Records) != len(root.Records) {
		t.Fatalf("record count mismatch")
	}
	for i, want := range root.Records {
		got := back.Records[i]
		if got.RID != want.RID {
			t.Fatalf("record %d RID mismatch: got %d want %d", i, got.RID, want.RID)
		}
		if got.IsNull(0) != want.IsNull(0) {
			t.Fatalf("record %d nullbit mismatch", i)
		}
	}
}

func TestRowToColumnar_NonContiguousSchemaIndices(t *testing.T) {
	schema, err := types.SchemaFromString("0 SKY_INT32 0 0 A\n5 SKY_STRING 0 0 B\n")
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	row := types.Row{
		RID:      1,
		NullBits: types.NewNullBits(6),
		Cells:    []types.Cell{types.IntCell(types.SkyInt32, 7), {}, {}, {}, {}, types.StringCell(types.SkyString, "z")},
	}
	root := rowcodec.Root{DataSchema: schema, DBSchema: "db", TableName: "t", Records: []types.Row{row}}

	table, err := RowToColumnar(root)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if table.Columns[0].Values[0].I != 7 {
		t.Fatalf("column A (schema idx 0, table pos 0): got %+v", table.Columns[0].Values[0])
	}
	if table.Columns[1].Values[0].S != "z" {
		t.Fatalf("column B (schema idx 5, table pos 1): got %+v", table.Columns[1].Values[0])
	}
}

func TestColumnarToRow_RejectsTableWithoutRIDColumn(t *testing.T) {
	root := buildRoot(t)
	if _, err := ColumnarToRow(mustColumnar(t, root)); err == nil {
		t.Fatal("expected error for table missing RID/DELETED_VECTOR columns")
	}
}

func mustColumnar(t *testing.T, root rowcodec.Root) columnar.Table {
	t.Helper()
	// Build a bare table with only the data schema, mirroring an
	// already-projected columnar result with no RID column.
	full, err := RowToColumnar(root)
	if err != nil {
		t.Fatalf("row to columnar: %v", err)
	}
	full.DataSchema = full.DataSchema[:2]
	full.Columns = full.Columns[:2]
	return full
}
