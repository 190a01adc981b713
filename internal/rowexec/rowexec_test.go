package rowexec

import (
	"testing"

	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/pkg/types"
)

func buildRoot(t *testing.T) rowcodec.Root {
	t.Helper()
	schema, err := types.SchemaFromString("0 SKY_INT32 0 0 A\n1 SKY_DOUBLE 0 0 PRICE\n")
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return rowcodec.Root{
		DataSchema:   schema,
		TableName:    "t",
		DeleteVector: []bool{false, false, true, false},
		Records: []types.Row{
			{RID: 1, Cells: []types.Cell{types.IntCell(types.SkyInt32, 10), types.FloatCell(types.SkyFloat64, 20)}},
			{RID: 2, Cells: []types.Cell{types.IntCell(types.SkyInt32, 5), types.FloatCell(types.SkyFloat64, 15)}},
			{RID: 3, Cells: []types.Cell{types.IntCell(types.SkyInt32, 99), types.FloatCell(types.SkyFloat64, 999)}},
			{RID: 4, Cells: []types.Cell{types.IntCell(types.SkyInt32, 30), types.FloatCell(types.SkyFloat64, 50)}},
		},
	}
}

func TestExecute_ProjectAllSkipsDeletedRows(t *testing.T) {
	root := buildRoot(t)
	out, err := Execute(root, root.DataSchema, nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(out.Records) != 3 {
		t.Fatalf("want 3 surviving rows (1 deleted), got %d", len(out.Records))
	}
}

func TestExecute_PredicateFilters(t *testing.T) {
	root := buildRoot(t)
	preds, err := predicate.PredsFromString(";A,gt,10", root.DataSchema)
	if err != nil {
		t.Fatalf("parse preds: %v", err)
	}
	out, err := Execute(root, root.DataSchema, preds, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(out.Records) != 1 || out.Records[0].RID != 4 {
		t.Fatalf("want only RID 4 to survive A>10 (row 3 is deleted), got %+v", out.Records)
	}
}

func TestExecute_AggregateEmitsSingleDeadRIDRow(t *testing.T) {
	root := buildRoot(t)
	preds, err := predicate.PredsFromString(";A,gt,0;PRICE,sum,0", root.DataSchema)
	if err != nil {
		t.Fatalf("parse preds: %v", err)
	}
	projSchema, err := types.SchemaFromColNames(root.DataSchema, "PRICE")
	if err != nil {
		t.Fatalf("project schema: %v", err)
	}
	out, err := Execute(root, projSchema, preds, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(out.Records) != 1 {
		t.Fatalf("want exactly 1 synthetic aggregate row, got %d", len(out.Records))
	}
	if out.Records[0].RID != types.DeadRID {
		t.Fatalf("want DeadRID, got %d", out.Records[0].RID)
	}
	// rows 1,2,4 pass (row 3 is deleted, never evaluated); sum = 20+15+50 = 85
	if out.Records[0].Cells[0].F != 85 {
		t.Fatalf("want sum 85, got %v", out.Records[0].Cells[0].F)
	}
}

func TestExecute_RowNumOutOfBoundsAborts(t *testing.T) {
	root := buildRoot(t)
	_, err := Execute(root, root.DataSchema, nil, []uint32{100})
	if err == nil {
		t.Fatal("want error for out-of-bounds row number")
	}
}

func TestExecute_ProjectRIDIndex(t *testing.T) {
	root := buildRoot(t)
	projSchema, err := types.SchemaFromColNames(root.DataSchema, types.RIDIndexKeyword)
	if err != nil {
		t.Fatalf("project schema: %v", err)
	}
	out, err := Execute(root, projSchema, nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(out.Records) != 3 {
		t.Fatalf("want 3 surviving rows, got %d", len(out.Records))
	}
	for _, r := range out.Records {
		if r.Cells[0].U != uint64(r.RID) {
			t.Fatalf("RID projection mismatch: cell=%d rid=%d", r.Cells[0].U, r.RID)
		}
	}
}
