package queryengine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/arkilian/skyquery/internal/index"
	"github.com/arkilian/skyquery/internal/manifest"
	"github.com/arkilian/skyquery/internal/observability"
	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/internal/storage"
	"github.com/arkilian/skyquery/pkg/types"
)

// fakeCatalog is a minimal in-memory manifest.Catalog stub, just enough to
// drive Engine.Execute/ResolveSchema without a real SQLite file.
type fakeCatalog struct {
	records []*manifest.ContainerRecord
}

func (f *fakeCatalog) RegisterContainer(ctx context.Context, rec *manifest.ContainerRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeCatalog) FindContainers(ctx context.Context, preds []manifest.Predicate) ([]*manifest.ContainerRecord, error) {
	var dbSchema, tableName string
	for _, p := range preds {
		switch p.Column {
		case "db_schema":
			dbSchema, _ = p.Value.(string)
		case "table_name":
			tableName, _ = p.Value.(string)
		}
	}
	var out []*manifest.ContainerRecord
	for _, rec := range f.records {
		if rec.DBSchema == dbSchema && rec.TableName == tableName {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetContainer(ctx context.Context, objectPath string) (*manifest.ContainerRecord, error) {
	for _, rec := range f.records {
		if rec.ObjectPath == objectPath {
			return rec, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) DeleteContainer(ctx context.Context, objectPath string) error { return nil }

func (f *fakeCatalog) DistinctTables(ctx context.Context) ([]manifest.TableKey, error) {
	seen := map[manifest.TableKey]bool{}
	var keys []manifest.TableKey
	for _, rec := range f.records {
		k := manifest.TableKey{DBSchema: rec.DBSchema, TableName: rec.TableName}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys, nil
}
func (f *fakeCatalog) Close() error { return nil }

func (f *fakeCatalog) GetContainerCount(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

// fakeIndexCatalog reports no secondary index on any column, forcing every
// test scan through the full-table fallback path in pruneCandidates.
type fakeIndexCatalog struct{}

func (fakeIndexCatalog) InsertIndexEntries(ctx context.Context, entries []index.Entry) error {
	return nil
}
func (fakeIndexCatalog) LookupByKey(ctx context.Context, key string) ([]index.Entry, error) {
	return nil, nil
}
func (fakeIndexCatalog) LookupByPrefix(ctx context.Context, prefix string) ([]index.Entry, error) {
	return nil, nil
}
func (fakeIndexCatalog) ListIndexedColumns(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (fakeIndexCatalog) DeleteIndexByPrefix(ctx context.Context, prefix string) (int64, error) {
	return 0, nil
}

func testSchema() types.Schema {
	return types.Schema{
		{Idx: 0, Type: types.SkyInt64, Name: "id"},
		{Idx: 1, Type: types.SkyInt64, Name: "amount"},
	}
}

func writeRowContainer(t *testing.T, store storage.ObjectStorage, objectPath string, schema types.Schema, rows []types.Row) {
	t.Helper()
	buf, err := rowcodec.Encode(rowcodec.Root{
		DataSchema: schema,
		DBSchema:   "sales",
		TableName:  "orders",
		Records:    rows,
	})
	if err != nil {
		t.Fatalf("failed to encode row container: %v", err)
	}
	tmp := t.TempDir() + "/upload.bin"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		t.Fatalf("failed to write temp upload file: %v", err)
	}
	if err := store.Upload(context.Background(), tmp, objectPath); err != nil {
		t.Fatalf("failed to upload container: %v", err)
	}
}

func newTestEngine(t *testing.T, catalog manifest.CatalogReader) (*Engine, storage.ObjectStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	lookup := index.NewLookup(fakeIndexCatalog{})
	stats := observability.NewQueryStats(time.Hour)
	engine := NewEngine(catalog, lookup, store, stats, t.TempDir(), 4)
	return engine, store
}

func TestEngine_ExecuteScansAllContainersAcrossPartitions(t *testing.T) {
	catalog := &fakeCatalog{}
	engine, store := newTestEngine(t, catalog)
	schema := testSchema()

	writeRowContainer(t, store, "sales/orders/part-1.bin", schema, []types.Row{
		{RID: 0, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 1), types.IntCell(types.SkyInt64, 100)}},
		{RID: 1, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 2), types.IntCell(types.SkyInt64, 200)}},
	})
	writeRowContainer(t, store, "sales/orders/part-2.bin", schema, []types.Row{
		{RID: 0, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 3), types.IntCell(types.SkyInt64, 300)}},
	})
	catalog.records = []*manifest.ContainerRecord{
		{ObjectPath: "sales/orders/part-1.bin", DataFormatType: 0, DBSchema: "sales", TableName: "orders", RowCount: 2},
		{ObjectPath: "sales/orders/part-2.bin", DataFormatType: 0, DBSchema: "sales", TableName: "orders", RowCount: 1},
	}

	result, err := engine.Execute(context.Background(), Request{
		DBSchema:    "sales",
		TableName:   "orders",
		QuerySchema: schema,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows across both containers, got %d", len(result.Rows))
	}
	if result.Stats.ContainersScanned != 2 {
		t.Fatalf("expected 2 containers scanned, got %d", result.Stats.ContainersScanned)
	}
}

func TestEngine_ExecuteAppliesPredicate(t *testing.T) {
	catalog := &fakeCatalog{}
	engine, store := newTestEngine(t, catalog)
	schema := testSchema()

	writeRowContainer(t, store, "sales/orders/part-1.bin", schema, []types.Row{
		{RID: 0, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 1), types.IntCell(types.SkyInt64, 100)}},
		{RID: 1, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 2), types.IntCell(types.SkyInt64, 200)}},
	})
	catalog.records = []*manifest.ContainerRecord{
		{ObjectPath: "sales/orders/part-1.bin", DataFormatType: 0, DBSchema: "sales", TableName: "orders", RowCount: 2},
	}

	result, err := engine.Execute(context.Background(), Request{
		DBSchema:    "sales",
		TableName:   "orders",
		QuerySchema: schema,
		Preds: []predicate.Atom{
			{ColIdx: 1, Op: predicate.OpGT, Val: types.IntCell(types.SkyInt64, 150), And: true},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row passing amount > 150, got %d", len(result.Rows))
	}
	if result.Rows[0].Cells[0].I != 2 {
		t.Fatalf("expected surviving row to have id=2, got %d", result.Rows[0].Cells[0].I)
	}
}

func TestEngine_ExecuteMergesGlobalAggregateAcrossContainers(t *testing.T) {
	catalog := &fakeCatalog{}
	engine, store := newTestEngine(t, catalog)
	schema := testSchema()

	writeRowContainer(t, store, "sales/orders/part-1.bin", schema, []types.Row{
		{RID: 0, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 1), types.IntCell(types.SkyInt64, 100)}},
		{RID: 1, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 2), types.IntCell(types.SkyInt64, 200)}},
	})
	writeRowContainer(t, store, "sales/orders/part-2.bin", schema, []types.Row{
		{RID: 0, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 3), types.IntCell(types.SkyInt64, 400)}},
	})
	catalog.records = []*manifest.ContainerRecord{
		{ObjectPath: "sales/orders/part-1.bin", DataFormatType: 0, DBSchema: "sales", TableName: "orders", RowCount: 2},
		{ObjectPath: "sales/orders/part-2.bin", DataFormatType: 0, DBSchema: "sales", TableName: "orders", RowCount: 1},
	}

	sumSchema := types.Schema{{Idx: 0, Type: types.SkyInt64, Name: "total"}}
	result, err := engine.Execute(context.Background(), Request{
		DBSchema:    "sales",
		TableName:   "orders",
		QuerySchema: sumSchema,
		Preds: []predicate.Atom{
			{ColIdx: 1, Op: predicate.OpSum, And: true},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected exactly one merged aggregate row, got %d", len(result.Rows))
	}
	if got := result.Rows[0].Cells[0].I; got != 700 {
		t.Fatalf("expected sum(amount)=700 across both containers, got %d", got)
	}
}

func TestEngine_ExecuteNoContainersReturnsEmptyResult(t *testing.T) {
	catalog := &fakeCatalog{}
	engine, _ := newTestEngine(t, catalog)

	result, err := engine.Execute(context.Background(), Request{
		DBSchema:    "sales",
		TableName:   "orders",
		QuerySchema: testSchema(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 0 {
		t.Fatalf("expected no rows for an unregistered table, got %d", len(result.Rows))
	}
}

func TestEngine_ResolveSchemaRecoversFromContainer(t *testing.T) {
	catalog := &fakeCatalog{}
	engine, store := newTestEngine(t, catalog)
	schema := testSchema()

	writeRowContainer(t, store, "sales/orders/part-1.bin", schema, []types.Row{
		{RID: 0, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 1), types.IntCell(types.SkyInt64, 100)}},
	})
	catalog.records = []*manifest.ContainerRecord{
		{ObjectPath: "sales/orders/part-1.bin", DataFormatType: 0, DBSchema: "sales", TableName: "orders", RowCount: 1},
	}

	got, err := engine.ResolveSchema(context.Background(), "sales", "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(schema) {
		t.Fatalf("resolved schema %v does not match original %v", got, schema)
	}
}

func TestEngine_ResolveSchemaFailsForUnknownTable(t *testing.T) {
	catalog := &fakeCatalog{}
	engine, _ := newTestEngine(t, catalog)

	if _, err := engine.ResolveSchema(context.Background(), "sales", "missing"); err == nil {
		t.Fatal("expected an error resolving schema for an unregistered table")
	}
}
