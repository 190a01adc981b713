package manifest

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "manifest.db")
	cat, err := NewCatalog(dbPath)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestRegisterAndGetContainer(t *testing.T) {
	ctx := context.Background()
	cat := openTestCatalog(t)

	rec := &ContainerRecord{
		ObjectPath:     "tables/lineitem/0001.row",
		DataFormatType: 1,
		DBSchema:       "tpch",
		TableName:      "lineitem",
		RowCount:       100,
		SizeBytes:      4096,
		CreatedAt:      time.Unix(1000, 0),
	}
	if err := cat.RegisterContainer(ctx, rec); err != nil {
		t.Fatalf("RegisterContainer: %v", err)
	}

	got, err := cat.GetContainer(ctx, rec.ObjectPath)
	if err != nil {
		t.Fatalf("GetContainer: %v", err)
	}
	if got.TableName != "lineitem" || got.RowCount != 100 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestFindContainersByTable(t *testing.T) {
	ctx := context.Background()
	cat := openTestCatalog(t)

	for i, table := range []string{"lineitem", "lineitem", "orders"} {
		rec := &ContainerRecord{
			ObjectPath: filepath.Join("tables", table, string(rune('a'+i))),
			DBSchema:   "tpch",
			TableName:  table,
			RowCount:   int64(i + 1),
			CreatedAt:  time.Now(),
		}
		if err := cat.RegisterContainer(ctx, rec); err != nil {
			t.Fatalf("RegisterContainer: %v", err)
		}
	}

	found, err := cat.FindContainers(ctx, []Predicate{{Column: "table_name", Operator: "=", Value: "lineitem"}})
	if err != nil {
		t.Fatalf("FindContainers: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("want 2 lineitem containers, got %d", len(found))
	}
}

func TestDeleteContainer(t *testing.T) {
	ctx := context.Background()
	cat := openTestCatalog(t)

	rec := &ContainerRecord{ObjectPath: "tables/t/0001", DBSchema: "s", TableName: "t", CreatedAt: time.Now()}
	if err := cat.RegisterContainer(ctx, rec); err != nil {
		t.Fatalf("RegisterContainer: %v", err)
	}
	if err := cat.DeleteContainer(ctx, rec.ObjectPath); err != nil {
		t.Fatalf("DeleteContainer: %v", err)
	}
	if _, err := cat.GetContainer(ctx, rec.ObjectPath); err == nil {
		t.Fatal("expected not-found error after delete")
	}
}
