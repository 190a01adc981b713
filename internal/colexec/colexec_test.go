package colexec

import (
	"testing"

	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/pkg/types"
)

func buildTable(t *testing.T) columnar.Table {
	t.Helper()
	schema, err := types.SchemaFromString("0 SKY_INT32 0 0 A\n1 SKY_DOUBLE 0 0 PRICE\n")
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return columnar.Table{
		DataSchema: schema,
		NRows:      3,
		Columns: []columnar.Column{
			{Values: []types.Cell{types.IntCell(types.SkyInt32, 10), types.IntCell(types.SkyInt32, 5), types.IntCell(types.SkyInt32, 30)}},
			{Values: []types.Cell{types.FloatCell(types.SkyFloat64, 20), types.FloatCell(types.SkyFloat64, 15), types.FloatCell(types.SkyFloat64, 50)}},
		},
	}
}

func TestExecute_ProjectionKeepsOnlyMatchingColumns(t *testing.T) {
	table := buildTable(t)
	querySchema, err := types.SchemaFromColNames(table.DataSchema, "PRICE")
	if err != nil {
		t.Fatalf("project schema: %v", err)
	}
	out, err := Execute(table, querySchema, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(out.Columns) != 1 || out.NRows != 3 {
		t.Fatalf("want 1 column x 3 rows, got %d columns, %d rows", len(out.Columns), out.NRows)
	}
	if out.Columns[0].Values[1].F != 15 {
		t.Fatalf("unexpected value: %v", out.Columns[0].Values[1])
	}
}

func TestExecute_PredicateFiltersRows(t *testing.T) {
	table := buildTable(t)
	preds, err := predicate.PredsFromString(";A,gt,8", table.DataSchema)
	if err != nil {
		t.Fatalf("parse preds: %v", err)
	}
	out, err := Execute(table, table.DataSchema, preds)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.NRows != 2 {
		t.Fatalf("want 2 surviving rows, got %d", out.NRows)
	}
}

func TestExecute_AggregateCollapsesToOneRow(t *testing.T) {
	table := buildTable(t)
	preds, err := predicate.PredsFromString(";A,gt,0;PRICE,sum,0", table.DataSchema)
	if err != nil {
		t.Fatalf("parse preds: %v", err)
	}
	projSchema, err := types.SchemaFromColNames(table.DataSchema, "PRICE")
	if err != nil {
		t.Fatalf("project schema: %v", err)
	}
	out, err := Execute(table, projSchema, preds)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.NRows != 1 {
		t.Fatalf("want 1 aggregate row, got %d", out.NRows)
	}
	if out.Columns[0].Values[0].F != 85 {
		t.Fatalf("want sum 85, got %v", out.Columns[0].Values[0].F)
	}
}
