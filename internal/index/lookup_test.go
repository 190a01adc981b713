package index

import (
	"context"
	"testing"

	"github.com/arkilian/skyquery/internal/indexkey"
	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/pkg/types"
)

func orderKeyCol() types.ColInfo {
	return types.ColInfo{Idx: 0, Type: types.SkyInt32, IsKey: true, Nullable: false, Name: "ORDERKEY"}
}

func lineStatusCol() types.ColInfo {
	return types.ColInfo{Idx: 1, Type: types.SkyString, IsKey: false, Nullable: false, Name: "LINESTATUS"}
}

func TestFindContainers_Equality(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()

	prefix := indexkey.BuildKeyPrefix(IdxRec, "tpch", "orders", []string{"ORDERKEY"})
	key := indexkey.BuildKey(prefix, indexkey.BuildKeyData(types.SkyInt32, 100))
	if err := catalog.InsertIndexEntries(ctx, []Entry{
		{Key: key, ObjectPath: "orders/0001.bin", RID: 1},
		{Key: key, ObjectPath: "orders/0002.bin", RID: 7},
	}); err != nil {
		t.Fatalf("InsertIndexEntries: %v", err)
	}

	lookup := NewLookup(catalog)
	atom := predicate.Atom{ColIdx: 0, Op: predicate.OpEQ, Val: types.IntCell(types.SkyInt32, 100)}
	entries, err := lookup.FindContainers(ctx, "tpch", "orders", orderKeyCol(), atom)
	if err != nil {
		t.Fatalf("FindContainers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestFindContainers_NonIndexableTypeReturnsNil(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	lookup := NewLookup(catalog)

	atom := predicate.Atom{ColIdx: 1, Op: predicate.OpEQ, Val: types.StringCell(types.SkyString, "O")}
	entries, err := lookup.FindContainers(ctx, "tpch", "orders", lineStatusCol(), atom)
	if err != nil {
		t.Fatalf("FindContainers: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries for a non-indexable column, got %+v", entries)
	}
}

func TestFindContainers_RangeUsesPrefixScan(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()

	prefix := indexkey.BuildKeyPrefix(IdxRec, "tpch", "orders", []string{"ORDERKEY"})
	if err := catalog.InsertIndexEntries(ctx, []Entry{
		{Key: indexkey.BuildKey(prefix, indexkey.BuildKeyData(types.SkyInt32, 100)), ObjectPath: "orders/0001.bin", RID: 1},
		{Key: indexkey.BuildKey(prefix, indexkey.BuildKeyData(types.SkyInt32, 200)), ObjectPath: "orders/0002.bin", RID: 2},
	}); err != nil {
		t.Fatalf("InsertIndexEntries: %v", err)
	}

	lookup := NewLookup(catalog)
	atom := predicate.Atom{ColIdx: 0, Op: predicate.OpGT, Val: types.IntCell(types.SkyInt32, 50)}
	entries, err := lookup.FindContainers(ctx, "tpch", "orders", orderKeyCol(), atom)
	if err != nil {
		t.Fatalf("FindContainers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both entries under the column prefix, got %d", len(entries))
	}
}

func TestHasIndex(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	lookup := NewLookup(catalog)

	has, err := lookup.HasIndex(ctx, "ORDERKEY")
	if err != nil {
		t.Fatalf("HasIndex: %v", err)
	}
	if has {
		t.Fatal("expected no index before any entries are inserted")
	}

	prefix := indexkey.BuildKeyPrefix(IdxRec, "tpch", "orders", []string{"ORDERKEY"})
	key := indexkey.BuildKey(prefix, indexkey.BuildKeyData(types.SkyInt32, 100))
	if err := catalog.InsertIndexEntries(ctx, []Entry{{Key: key, ObjectPath: "orders/0001.bin", RID: 1}}); err != nil {
		t.Fatalf("InsertIndexEntries: %v", err)
	}

	has, err = lookup.HasIndex(ctx, "ORDERKEY")
	if err != nil {
		t.Fatalf("HasIndex: %v", err)
	}
	if !has {
		t.Fatal("expected an index after entries were inserted")
	}
}
