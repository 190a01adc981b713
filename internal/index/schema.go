// Package index builds and queries secondary indexes over the composite
// key model in internal/indexkey, backed by the manifest catalog's
// index_map table.
package index

import (
	"context"
	"time"

	"github.com/arkilian/skyquery/internal/indexkey"
)

// IdxRec is the composite-key index type this package always builds and
// queries — re-exported so builder.go, lookup.go, and their tests don't
// need a second import for one constant.
const IdxRec = indexkey.IdxRec

// IndexCatalog is the subset of the manifest catalog the index package
// needs. Defined here (mirroring the manifest.Catalog split) to avoid an
// import cycle between internal/index and internal/manifest.
type IndexCatalog interface {
	// InsertIndexEntries bulk-inserts index_map rows for one build pass.
	InsertIndexEntries(ctx context.Context, entries []Entry) error

	// LookupByKey returns index_map rows matching an equality point lookup.
	LookupByKey(ctx context.Context, key string) ([]Entry, error)

	// LookupByPrefix returns index_map rows within a key-prefix range scan.
	LookupByPrefix(ctx context.Context, prefix string) ([]Entry, error)

	// ListIndexedColumns returns the column-name tokens already indexed.
	ListIndexedColumns(ctx context.Context) ([]string, error)

	// DeleteIndexByPrefix removes every index_map row under a key prefix.
	DeleteIndexByPrefix(ctx context.Context, prefix string) (int64, error)
}

// Entry mirrors manifest.IndexEntry — a (key, object, rid) triple — kept as
// a distinct type in this package so callers don't need to import manifest
// just to hold one.
type Entry struct {
	Key        string
	ObjectPath string
	RID        int64
}

// ContainerProvider supplies the container objects backing one table, the
// input the index builder scans to construct a secondary index.
type ContainerProvider interface {
	GetContainers(ctx context.Context, dbSchema, tableName string) ([]*ContainerInfo, error)
}

// ContainerInfo is the minimal container-object description the index
// builder needs — a narrow subset of manifest.ContainerRecord kept local
// to avoid an import cycle.
type ContainerInfo struct {
	ObjectPath     string
	DataFormatType byte
	RowCount       int64
	CreatedAt      time.Time
}
