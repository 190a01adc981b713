package grpc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/arkilian/skyquery/internal/index"
	"github.com/arkilian/skyquery/internal/manifest"
	"github.com/arkilian/skyquery/internal/observability"
	"github.com/arkilian/skyquery/internal/queryengine"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/internal/storage"
	"github.com/arkilian/skyquery/pkg/types"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

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

func newTestQueryServer(t *testing.T) *QueryServer {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	schema := types.Schema{
		{Idx: 0, Type: types.SkyInt64, Name: "id"},
		{Idx: 1, Type: types.SkyInt64, Name: "amount"},
	}
	buf, err := rowcodec.Encode(rowcodec.Root{
		DataSchema: schema,
		DBSchema:   "sales",
		TableName:  "orders",
		Records: []types.Row{
			{RID: 0, NullBits: types.NewNullBits(2), Cells: []types.Cell{types.IntCell(types.SkyInt64, 1), types.IntCell(types.SkyInt64, 100)}},
		},
	})
	if err != nil {
		t.Fatalf("failed to encode container: %v", err)
	}
	tmp := t.TempDir() + "/upload.bin"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		t.Fatalf("failed to write temp upload file: %v", err)
	}
	if err := store.Upload(context.Background(), tmp, "sales/orders/part-1.bin"); err != nil {
		t.Fatalf("failed to upload container: %v", err)
	}

	catalog := &fakeCatalog{records: []*manifest.ContainerRecord{
		{ObjectPath: "sales/orders/part-1.bin", DataFormatType: 0, DBSchema: "sales", TableName: "orders", RowCount: 1},
	}}
	lookup := index.NewLookup(fakeIndexCatalog{})
	stats := observability.NewQueryStats(time.Hour)
	engine := queryengine.NewEngine(catalog, lookup, store, stats, t.TempDir(), 4)
	return NewQueryServer(engine)
}

func TestQueryServer_ExecuteReturnsRows(t *testing.T) {
	s := newTestQueryServer(t)

	req, err := structpb.NewStruct(map[string]interface{}{
		"db_schema":  "sales",
		"table_name": "orders",
		"columns":    "*",
	})
	if err != nil {
		t.Fatalf("failed to build request struct: %v", err)
	}

	resp, err := s.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := resp.GetFields()["rows"].GetListValue().GetValues()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestQueryServer_ExecuteRejectsMissingTable(t *testing.T) {
	s := newTestQueryServer(t)

	req, _ := structpb.NewStruct(map[string]interface{}{"db_schema": "sales"})
	if _, err := s.Execute(context.Background(), req); err == nil {
		t.Fatal("expected an error for a missing table_name")
	}
}

func TestQueryServer_HealthEchoesPayload(t *testing.T) {
	s := newTestQueryServer(t)

	resp, err := s.Health(context.Background(), wrapperspb.String("ping"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetValue() != "ok:ping" {
		t.Fatalf("expected 'ok:ping', got %q", resp.GetValue())
	}
}
