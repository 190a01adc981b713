package index

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arkilian/skyquery/internal/indexkey"
)

// fakeCatalog is an in-memory IndexCatalog for tests, avoiding a real
// SQLite file per test case.
type fakeCatalog struct {
	mu      sync.Mutex
	entries map[string]Entry // keyed by key+"|"+objectPath+"|"+rid
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{entries: make(map[string]Entry)}
}

func entryID(e Entry) string {
	return fmt.Sprintf("%s|%s|%d", e.Key, e.ObjectPath, e.RID)
}

func (f *fakeCatalog) InsertIndexEntries(ctx context.Context, entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[entryID(e)] = e
	}
	return nil
}

func (f *fakeCatalog) LookupByKey(ctx context.Context, key string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.entries {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCatalog) LookupByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.entries {
		if strings.HasPrefix(e.Key, prefix) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListIndexedColumns(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range f.entries {
		parts := strings.SplitN(e.Key, indexkey.DelimOuter, 4)
		if len(parts) < 3 {
			continue
		}
		if !seen[parts[2]] {
			seen[parts[2]] = true
			out = append(out, parts[2])
		}
	}
	return out, nil
}

func (f *fakeCatalog) DeleteIndexByPrefix(ctx context.Context, prefix string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, e := range f.entries {
		if strings.HasPrefix(e.Key, prefix) {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

// fakeContainerProvider is an in-memory ContainerProvider for tests.
type fakeContainerProvider struct {
	containers map[string][]*ContainerInfo // key: dbSchema+"."+tableName
}

func newFakeContainerProvider() *fakeContainerProvider {
	return &fakeContainerProvider{containers: make(map[string][]*ContainerInfo)}
}

func (f *fakeContainerProvider) add(dbSchema, tableName string, c *ContainerInfo) {
	key := dbSchema + "." + tableName
	f.containers[key] = append(f.containers[key], c)
}

func (f *fakeContainerProvider) GetContainers(ctx context.Context, dbSchema, tableName string) ([]*ContainerInfo, error) {
	return f.containers[dbSchema+"."+tableName], nil
}
