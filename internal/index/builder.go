// Package index builds and queries secondary indexes over the composite
// key model in internal/indexkey, backed by the manifest catalog's
// index_map table.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/indexkey"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/internal/storage"
	"github.com/arkilian/skyquery/pkg/types"
)

// Builder builds secondary-index entries from stored container objects.
type Builder struct {
	storage     storage.ObjectStorage
	catalog     IndexCatalog
	workDir     string
	concurrency int
}

// NewBuilder creates a new index builder. concurrency bounds how many
// container objects are downloaded and scanned at once; 0 defaults to 8.
func NewBuilder(storage storage.ObjectStorage, catalog IndexCatalog, workDir string, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Builder{
		storage:     storage,
		catalog:     catalog,
		workDir:     workDir,
		concurrency: concurrency,
	}
}

// BuildIndex scans every container in containers for the named column and
// writes one index_map entry per non-null cell value, keyed by
// dbSchema/tableName/column. Only integral column types (bool and the
// signed/unsigned integer family) can be indexed: BuildKeyData's fixed
// per-type width table has no entry for floats or variable-length strings,
// so those columns are rejected up front rather than silently truncated.
func (b *Builder) BuildIndex(ctx context.Context, dbSchema, tableName, column string, containers []*ContainerInfo) (int, error) {
	sem := make(chan struct{}, b.concurrency)

	type scanResult struct {
		entries []Entry
		err     error
	}
	results := make(chan scanResult, len(containers))

	var wg sync.WaitGroup
	for _, c := range containers {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entries, err := b.scanContainer(ctx, dbSchema, tableName, column, c)
			results <- scanResult{entries: entries, err: err}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var all []Entry
	for r := range results {
		if r.err != nil {
			return 0, r.err
		}
		all = append(all, r.entries...)
	}

	if len(all) == 0 {
		return 0, nil
	}
	if err := b.catalog.InsertIndexEntries(ctx, all); err != nil {
		return 0, fmt.Errorf("index: failed to insert entries for column %s: %w", column, err)
	}
	return len(all), nil
}

// scanContainer downloads one container object and extracts (key, rid)
// pairs for column, dispatching on the container's stored format tag.
func (b *Builder) scanContainer(ctx context.Context, dbSchema, tableName, column string, c *ContainerInfo) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	localPath := filepath.Join(b.workDir, fmt.Sprintf("scan_%s", filepath.Base(c.ObjectPath)))
	if err := b.storage.Download(ctx, c.ObjectPath, localPath); err != nil {
		return nil, fmt.Errorf("index: failed to download container %s: %w", c.ObjectPath, err)
	}
	defer os.Remove(localPath)

	buf, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("index: failed to read container %s: %w", c.ObjectPath, err)
	}

	switch c.DataFormatType {
	case 0:
		return b.scanRowContainer(buf, dbSchema, tableName, column, c.ObjectPath)
	case 1:
		return b.scanColumnarContainer(buf, dbSchema, tableName, column, c.ObjectPath)
	default:
		return nil, fmt.Errorf("index: container %s: unknown format type %d", c.ObjectPath, c.DataFormatType)
	}
}

func (b *Builder) scanRowContainer(buf []byte, dbSchema, tableName, column, objectPath string) ([]Entry, error) {
	root, err := rowcodec.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("index: failed to decode row container %s: %w", objectPath, err)
	}

	col, ok := root.DataSchema.ColByName(column)
	if !ok {
		return nil, fmt.Errorf("%w: column %s not in container %s", types.ErrColNotPresent, column, objectPath)
	}
	if !indexableType(col.Type) {
		return nil, fmt.Errorf("index: column %s has non-indexable type %s", column, col.Type)
	}

	prefix := indexKeyPrefixForColumn(dbSchema, tableName, column)

	var entries []Entry
	for rnum, row := range root.Records {
		if rnum < len(root.DeleteVector) && root.DeleteVector[rnum] {
			continue
		}
		if col.Idx < 0 || col.Idx >= len(row.Cells) || row.IsNull(col.Idx) {
			continue
		}
		token, ok := cellKeyToken(row.Cells[col.Idx])
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Key:        indexkey.BuildKey(prefix, token),
			ObjectPath: objectPath,
			RID:        row.RID,
		})
	}
	return entries, nil
}

func (b *Builder) scanColumnarContainer(buf []byte, dbSchema, tableName, column, objectPath string) ([]Entry, error) {
	table, err := columnar.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("index: failed to decode columnar container %s: %w", objectPath, err)
	}

	col, ok := table.DataSchema.ColByName(column)
	if !ok {
		return nil, fmt.Errorf("%w: column %s not in container %s", types.ErrColNotPresent, column, objectPath)
	}
	if !indexableType(col.Type) {
		return nil, fmt.Errorf("index: column %s has non-indexable type %s", column, col.Type)
	}

	srcIdx := -1
	for i, ci := range table.DataSchema {
		if ci.Idx == col.Idx {
			srcIdx = i
			break
		}
	}
	if srcIdx < 0 || srcIdx >= len(table.Columns) {
		return nil, fmt.Errorf("%w: column %s not in container %s", types.ErrColNotPresent, column, objectPath)
	}

	prefix := indexKeyPrefixForColumn(dbSchema, tableName, column)
	srcCol := table.Columns[srcIdx]

	var entries []Entry
	for r := 0; r < table.NRows; r++ {
		if srcCol.IsNull(r) || r >= len(srcCol.Values) {
			continue
		}
		token, ok := cellKeyToken(srcCol.Values[r])
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Key:        indexkey.BuildKey(prefix, token),
			ObjectPath: objectPath,
			RID:        int64(r),
		})
	}
	return entries, nil
}

// indexKeyPrefixForColumn builds the index_map key prefix for a single
// indexed column, shared by the builder's write path and the policy's
// drop path so both address the same rows.
func indexKeyPrefixForColumn(dbSchema, tableName, column string) string {
	return indexkey.BuildKeyPrefix(IdxRec, dbSchema, tableName, []string{column})
}

// indexableType reports whether dataType has a fixed-width entry in
// indexkey.BuildKeyData's per-type table.
func indexableType(dataType types.DataType) bool {
	switch dataType {
	case types.SkyBool,
		types.SkyChar, types.SkyUChar, types.SkyInt8, types.SkyUInt8,
		types.SkyInt16, types.SkyUInt16,
		types.SkyInt32, types.SkyUInt32,
		types.SkyInt64, types.SkyUInt64:
		return true
	default:
		return false
	}
}

// cellKeyToken encodes one cell's value as an indexkey value token. Signed
// values are reinterpreted as their unsigned bit pattern: BuildKeyData's
// decimal encoding preserves ordering for the unsigned domain, so equality
// lookups (the dominant secondary-index use case) are exact for signed
// columns too, though range scans across a negative/positive boundary are
// not lexicographically ordered.
func cellKeyToken(c types.Cell) (string, bool) {
	switch {
	case c.Type == types.SkyBool:
		return indexkey.BuildKeyData(c.Type, c.U), true
	case c.Type.IsSigned():
		return indexkey.BuildKeyData(c.Type, uint64(c.I)), true
	case c.Type.IsUnsigned():
		return indexkey.BuildKeyData(c.Type, c.U), true
	default:
		return "", false
	}
}
