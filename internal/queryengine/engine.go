// Package queryengine orchestrates a pushdown Execute operation across
// every container object registered for one table. It plays the role the
// teacher's internal/query/executor.ParallelExecutor played for SQL
// partitions: prune the candidate set, fan out downloads and decodes in
// parallel, dispatch each container to the row or columnar executor by its
// stored format tag, and merge the per-container results into one answer.
package queryengine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arkilian/skyquery/internal/cache"
	"github.com/arkilian/skyquery/internal/colexec"
	"github.com/arkilian/skyquery/internal/columnar"
	"github.com/arkilian/skyquery/internal/index"
	"github.com/arkilian/skyquery/internal/manifest"
	"github.com/arkilian/skyquery/internal/observability"
	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/internal/rowcodec"
	"github.com/arkilian/skyquery/internal/rowexec"
	"github.com/arkilian/skyquery/internal/skyerr"
	"github.com/arkilian/skyquery/internal/storage"
	"github.com/arkilian/skyquery/pkg/types"
)

// Request describes one pushdown Execute call: the table to scan, the
// projection schema (a subset or reordering of the table's own schema, or
// the RID_INDEX sentinel schema), and the predicate/aggregate chain to
// apply during the scan.
type Request struct {
	DBSchema    string
	TableName   string
	QuerySchema types.Schema
	Preds       []predicate.Atom
}

// Result holds the merged output of a pushdown query across every
// container object scanned for the request's table.
type Result struct {
	Schema types.Schema
	Rows   []types.Row
	Stats  ExecutionStats
}

// ExecutionStats reports how much of the table a query actually touched.
type ExecutionStats struct {
	ContainersScanned int
	ContainersPruned  int
	RowsScanned       int64
	ExecutionTimeMs   int64
}

// Engine ties the manifest catalog, the secondary-index lookup, and the
// two format-specific pushdown executors together into a single Execute
// operation.
type Engine struct {
	catalog     manifest.CatalogReader
	lookup      *index.Lookup
	storage     storage.ObjectStorage
	stats       *observability.QueryStats
	objCache    *cache.NVMeCache
	coAccess    *cache.CoAccessGraph
	downloadDir string
	concurrency int
}

// WithCache attaches an NVMe cache tier the engine consults before
// downloading a container object from storage, and populates after a
// miss. Passing nil disables caching (every scan downloads fresh).
func (e *Engine) WithCache(c *cache.NVMeCache) *Engine {
	e.objCache = c
	return e
}

// NewEngine creates a query engine. concurrency bounds how many container
// objects are downloaded and executed at once; 0 defaults to 10, matching
// the teacher's ParallelExecutor default.
func NewEngine(catalog manifest.CatalogReader, lookup *index.Lookup, store storage.ObjectStorage, stats *observability.QueryStats, downloadDir string, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Engine{
		catalog:     catalog,
		lookup:      lookup,
		storage:     store,
		stats:       stats,
		coAccess:    cache.NewCoAccessGraph(0, 0, 0),
		downloadDir: downloadDir,
		concurrency: concurrency,
	}
}

// ResolveSchema recovers a table's DataSchema by downloading and decoding
// one of its registered container objects. Every container object for a
// table shares the same schema by construction, so the first one found is
// as good as any.
func (e *Engine) ResolveSchema(ctx context.Context, dbSchema, tableName string) (types.Schema, error) {
	records, err := e.catalog.FindContainers(ctx, []manifest.Predicate{
		{Column: "db_schema", Operator: "=", Value: dbSchema},
		{Column: "table_name", Operator: "=", Value: tableName},
	})
	if err != nil {
		return nil, skyerr.NewQueryError(skyerr.CodeUnexpected, "failed to find containers", err)
	}
	if len(records) == 0 {
		return nil, skyerr.NewSchemaError(skyerr.CodeInvalidSchema,
			fmt.Sprintf("no container objects registered for %s.%s", dbSchema, tableName))
	}

	buf, err := e.downloadToMemory(ctx, records[0].ObjectPath)
	if err != nil {
		return nil, err
	}
	schema, _, err := decodeSchema(buf, records[0].DataFormatType)
	if err != nil {
		return nil, skyerr.NewSchemaError(skyerr.CodeInvalidSchema, err.Error())
	}
	return schema, nil
}

// containerCandidate is one container object plus the RID subset a
// secondary-index lookup narrowed the scan to. A nil rowNums means scan
// the whole container.
type containerCandidate struct {
	rec     *manifest.ContainerRecord
	rowNums []uint32
}

// Execute runs req's predicate/projection pushdown across every candidate
// container object for req.DBSchema/req.TableName.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	for _, atom := range req.Preds {
		if col, ok := req.QuerySchema.ColByIdx(atom.ColIdx); ok {
			e.stats.RecordPredicate(col.Name, atom.Op.String())
		}
	}

	candidates, pruned, err := e.pruneCandidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Result{
			Schema: req.QuerySchema,
			Rows:   nil,
			Stats: ExecutionStats{
				ContainersPruned: pruned,
				ExecutionTimeMs:  time.Since(start).Milliseconds(),
			},
		}, nil
	}

	e.recordAndPrefetch(candidates)

	type outcome struct {
		rows    []types.Row
		scanned int64
		err     error
	}
	results := make([]outcome, len(candidates))

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for i, cand := range candidates {
		i, cand := i, cand
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = outcome{err: ctx.Err()}
				return
			}
			rows, scanned, err := e.executeOnContainer(ctx, cand, req)
			results[i] = outcome{rows: rows, scanned: scanned, err: err}
		}()
	}
	wg.Wait()

	var merged []types.Row
	var rowsScanned int64
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		merged = append(merged, r.rows...)
		rowsScanned += r.scanned
	}

	if hasGlobalAgg(req.Preds) && len(merged) > 1 {
		merged, err = mergeAggregateRows(merged, req.Preds)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Schema: req.QuerySchema,
		Rows:   merged,
		Stats: ExecutionStats{
			ContainersScanned: len(candidates),
			ContainersPruned:  pruned,
			RowsScanned:       rowsScanned,
			ExecutionTimeMs:   time.Since(start).Milliseconds(),
		},
	}, nil
}

// pruneCandidates fetches every container object registered for the
// request's table, then narrows the set using a secondary-index lookup on
// the first indexable equality or range atom found in req.Preds.
func (e *Engine) pruneCandidates(ctx context.Context, req Request) ([]containerCandidate, int, error) {
	all, err := e.catalog.FindContainers(ctx, []manifest.Predicate{
		{Column: "db_schema", Operator: "=", Value: req.DBSchema},
		{Column: "table_name", Operator: "=", Value: req.TableName},
	})
	if err != nil {
		return nil, 0, skyerr.NewQueryError(skyerr.CodeUnexpected, "failed to find containers", err)
	}
	if len(all) == 0 {
		return nil, 0, nil
	}

	byPath := make(map[string]*manifest.ContainerRecord, len(all))
	for _, rec := range all {
		byPath[rec.ObjectPath] = rec
	}

	for _, atom := range req.Preds {
		if atom.Op.IsGlobalAgg() {
			continue
		}
		col, ok := req.QuerySchema.ColByIdx(atom.ColIdx)
		if !ok {
			continue
		}
		entries, err := e.lookup.FindContainers(ctx, req.DBSchema, req.TableName, col, atom)
		if err != nil {
			return nil, 0, skyerr.NewQueryError(skyerr.CodeUnexpected, "index lookup failed", err)
		}
		if entries == nil {
			continue // no index on this column, try the next atom
		}

		ridsByPath := make(map[string][]uint32)
		for _, en := range entries {
			ridsByPath[en.ObjectPath] = append(ridsByPath[en.ObjectPath], uint32(en.RID))
		}

		candidates := make([]containerCandidate, 0, len(ridsByPath))
		for path, rids := range ridsByPath {
			rec, ok := byPath[path]
			if !ok {
				continue // stale index entry for a container no longer registered
			}
			cand := containerCandidate{rec: rec}
			if rec.DataFormatType == 0 {
				cand.rowNums = rids
			}
			candidates = append(candidates, cand)
		}
		return candidates, len(all) - len(candidates), nil
	}

	candidates := make([]containerCandidate, len(all))
	for i, rec := range all {
		candidates[i] = containerCandidate{rec: rec}
	}
	return candidates, 0, nil
}

// executeOnContainer downloads and decodes one container object and runs
// the pushdown predicate/projection/aggregation pass over it.
func (e *Engine) executeOnContainer(ctx context.Context, cand containerCandidate, req Request) ([]types.Row, int64, error) {
	buf, err := e.downloadToMemory(ctx, cand.rec.ObjectPath)
	if err != nil {
		return nil, 0, err
	}

	switch cand.rec.DataFormatType {
	case 0:
		root, err := rowcodec.Decode(buf)
		if err != nil {
			return nil, 0, skyerr.NewQueryError(skyerr.CodeDecodeFailed,
				fmt.Sprintf("failed to decode row container %s", cand.rec.ObjectPath), err)
		}
		out, err := rowexec.Execute(root, req.QuerySchema, req.Preds, cand.rowNums)
		if err != nil {
			return nil, 0, skyerr.NewQueryError(skyerr.CodeUnexpected,
				fmt.Sprintf("execution failed for container %s", cand.rec.ObjectPath), err)
		}
		return out.Records, int64(len(root.Records)), nil

	case 1:
		table, err := columnar.Decode(buf)
		if err != nil {
			return nil, 0, skyerr.NewQueryError(skyerr.CodeDecodeFailed,
				fmt.Sprintf("failed to decode columnar container %s", cand.rec.ObjectPath), err)
		}
		out, err := colexec.Execute(table, req.QuerySchema, req.Preds)
		if err != nil {
			return nil, 0, skyerr.NewQueryError(skyerr.CodeUnexpected,
				fmt.Sprintf("execution failed for container %s", cand.rec.ObjectPath), err)
		}
		rows := make([]types.Row, 0, out.NRows)
		for r := 0; r < out.NRows; r++ {
			cells := make([]types.Cell, len(out.Columns))
			nullBits := types.NewNullBits(len(out.Columns))
			for ci, col := range out.Columns {
				if r < len(col.Values) {
					cells[ci] = col.Values[r]
				}
				if col.IsNull(r) {
					nullBits[ci/64] |= uint64(1) << uint(ci%64)
				}
			}
			rows = append(rows, types.Row{RID: int64(r), NullBits: nullBits, Cells: cells})
		}
		return rows, int64(table.NRows), nil

	default:
		return nil, 0, skyerr.NewQueryError(skyerr.CodeUnsupportedFormat,
			fmt.Sprintf("container %s has unknown format type %d", cand.rec.ObjectPath, cand.rec.DataFormatType), nil)
	}
}

// recordAndPrefetch records the set of container objects a query just
// touched as one access sequence in the co-access graph, then fires a
// best-effort background prefetch of any container objects the graph
// predicts will be touched next, populating the object cache ahead of the
// query that will actually need them.
func (e *Engine) recordAndPrefetch(candidates []containerCandidate) {
	if e.objCache == nil || len(candidates) == 0 {
		return
	}

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.rec.ObjectPath
	}
	e.coAccess.RecordAccess(paths)

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}

	for _, p := range paths {
		for _, candidatePath := range e.coAccess.GetPrefetchCandidates(p) {
			if seen[candidatePath] {
				continue
			}
			seen[candidatePath] = true
			if _, ok := e.objCache.Get(candidatePath); ok {
				continue
			}
			go e.prefetch(candidatePath)
		}
	}
}

// prefetch downloads objectPath into the object cache without blocking any
// query. Failures are logged and otherwise ignored; a missed prefetch just
// means the next query downloads normally.
func (e *Engine) prefetch(objectPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	localPath := filepath.Join(e.downloadDir, fmt.Sprintf("pf_%s", filepath.Base(objectPath)))
	if err := e.storage.Download(ctx, objectPath, localPath); err != nil {
		log.Printf("queryengine: prefetch download failed for %s: %v", objectPath, err)
		return
	}
	defer os.Remove(localPath)

	info, err := os.Stat(localPath)
	if err != nil {
		return
	}
	if err := e.objCache.Put(objectPath, localPath, info.Size()); err != nil {
		log.Printf("queryengine: prefetch cache populate failed for %s: %v", objectPath, err)
	}
}

// downloadToMemory downloads objectPath to a scratch file under the
// engine's download directory and reads it back into memory, checking the
// NVMe cache tier first when one is attached.
func (e *Engine) downloadToMemory(ctx context.Context, objectPath string) ([]byte, error) {
	if e.objCache != nil {
		if cachedPath, ok := e.objCache.Get(objectPath); ok {
			buf, err := os.ReadFile(cachedPath)
			if err == nil {
				return buf, nil
			}
			// Cached file vanished under us (evicted, or the entry is
			// stale); fall through and re-download.
		}
	}

	localPath := filepath.Join(e.downloadDir, fmt.Sprintf("q_%s", filepath.Base(objectPath)))
	if err := e.storage.Download(ctx, objectPath, localPath); err != nil {
		return nil, skyerr.NewStorageError(skyerr.CodeDownloadFailed,
			fmt.Sprintf("failed to download %s", objectPath), err)
	}

	buf, err := os.ReadFile(localPath)
	if err != nil {
		os.Remove(localPath)
		return nil, skyerr.NewStorageError(skyerr.CodeDownloadFailed,
			fmt.Sprintf("failed to read downloaded object %s", objectPath), err)
	}

	if e.objCache != nil {
		if err := e.objCache.Put(objectPath, localPath, int64(len(buf))); err != nil {
			log.Printf("queryengine: failed to populate object cache for %s: %v", objectPath, err)
		}
	}
	os.Remove(localPath)
	return buf, nil
}

// decodeSchema recovers a container's DataSchema without materializing its
// records, dispatching on the stored format tag.
func decodeSchema(buf []byte, dataFormatType byte) (types.Schema, string, error) {
	switch dataFormatType {
	case 0:
		root, err := rowcodec.Decode(buf)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode row container: %w", err)
		}
		return root.DataSchema, root.TableName, nil
	case 1:
		table, err := columnar.Decode(buf)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode columnar container: %w", err)
		}
		return table.DataSchema, table.TableName, nil
	default:
		return nil, "", fmt.Errorf("unknown format type %d", dataFormatType)
	}
}

// hasGlobalAgg reports whether preds contains a global-aggregate atom.
func hasGlobalAgg(preds []predicate.Atom) bool {
	for _, a := range preds {
		if a.Op.IsGlobalAgg() {
			return true
		}
	}
	return false
}

// mergeAggregateRows folds one finalized aggregate row per container into
// a single row, applying the same per-atom reduction
// internal/predicate/aggregate.go's accumulate applies within one
// container's scan: sum-of-sums, min-of-mins, max-of-maxes, sum-of-counts.
// Kept local instead of exported from internal/predicate since it operates
// on already-finalized cells rather than raw rows.
func mergeAggregateRows(rows []types.Row, preds []predicate.Atom) ([]types.Row, error) {
	var aggOps []predicate.Op
	for _, a := range preds {
		if a.Op.IsGlobalAgg() {
			aggOps = append(aggOps, a.Op)
		}
	}
	if len(aggOps) == 0 {
		return rows, nil
	}

	merged := rows[0]
	cells := make([]types.Cell, len(merged.Cells))
	copy(cells, merged.Cells)

	for _, row := range rows[1:] {
		for i, op := range aggOps {
			if i >= len(cells) || i >= len(row.Cells) {
				continue
			}
			combined, err := combineAggregateCell(op, cells[i], row.Cells[i])
			if err != nil {
				return nil, skyerr.NewQueryError(skyerr.CodeUnexpected, "failed to merge aggregate results", err)
			}
			cells[i] = combined
		}
	}

	merged.Cells = cells
	return []types.Row{merged}, nil
}

// combineAggregateCell folds one more container's finalized aggregate cell
// into acc, per op.
func combineAggregateCell(op predicate.Op, acc, next types.Cell) (types.Cell, error) {
	switch op {
	case predicate.OpCnt, predicate.OpSum:
		switch {
		case acc.Type.IsFloat():
			acc.F += next.F
		case acc.Type.IsSigned():
			acc.I += next.I
		default:
			acc.U += next.U
		}
		return acc, nil
	case predicate.OpMin:
		if aggLess(next, acc) {
			return next, nil
		}
		return acc, nil
	case predicate.OpMax:
		if aggLess(acc, next) {
			return next, nil
		}
		return acc, nil
	default:
		return types.Cell{}, fmt.Errorf("op %s is not a global aggregate", op)
	}
}

// aggLess compares two aggregate cells of the same declared type.
func aggLess(a, b types.Cell) bool {
	switch {
	case a.Type.IsFloat():
		return a.F < b.F
	case a.Type.IsSigned():
		return a.I < b.I
	default:
		return a.U < b.U
	}
}
