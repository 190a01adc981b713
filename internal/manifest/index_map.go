package manifest

import (
	"context"
	"fmt"
	"strings"

	"github.com/arkilian/skyquery/internal/index"
	"github.com/arkilian/skyquery/internal/indexkey"
)

// InsertIndexEntries bulk-inserts index_map rows for one secondary-index
// build pass, replacing any existing rows for those exact keys.
func (c *SQLiteCatalog) InsertIndexEntries(ctx context.Context, entries []index.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("manifest: failed to begin index insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO index_map (index_key, object_path, rid) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("manifest: failed to prepare index insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Key, e.ObjectPath, e.RID); err != nil {
			return fmt.Errorf("manifest: failed to insert index entry: %w", err)
		}
	}

	return tx.Commit()
}

// LookupByKey returns every index_map row whose key exactly matches key —
// an equality point lookup against a secondary index.
func (c *SQLiteCatalog) LookupByKey(ctx context.Context, key string) ([]index.Entry, error) {
	rows, err := c.readDB.QueryContext(ctx, "SELECT index_key, object_path, rid FROM index_map WHERE index_key = ?", key)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to query index_map: %w", err)
	}
	defer rows.Close()

	var entries []index.Entry
	for rows.Next() {
		var e index.Entry
		if err := rows.Scan(&e.Key, &e.ObjectPath, &e.RID); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan index entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LookupByPrefix returns every index_map row whose key starts with prefix —
// the range scan an lt/leq/gt/geq predicate resolves against.
func (c *SQLiteCatalog) LookupByPrefix(ctx context.Context, prefix string) ([]index.Entry, error) {
	upperBound := prefix + "\xff"
	rows, err := c.readDB.QueryContext(ctx,
		"SELECT index_key, object_path, rid FROM index_map WHERE index_key >= ? AND index_key < ? ORDER BY index_key",
		prefix, upperBound)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to query index_map by prefix: %w", err)
	}
	defer rows.Close()

	var entries []index.Entry
	for rows.Next() {
		var e index.Entry
		if err := rows.Scan(&e.Key, &e.ObjectPath, &e.RID); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan index entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListIndexedColumns returns the distinct column tokens (the third
// DelimOuter-separated field of each index_key) present in index_map — used by the index policy to know which columns
// already have a secondary index.
func (c *SQLiteCatalog) ListIndexedColumns(ctx context.Context) ([]string, error) {
	rows, err := c.readDB.QueryContext(ctx, "SELECT DISTINCT index_key FROM index_map")
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to list index prefixes: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var columns []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan index key: %w", err)
		}
		// index_key format: IDX_REC/schema.table/col1-col2/value — the
		// third slash-delimited field names the indexed column(s).
		parts := strings.SplitN(key, indexkey.DelimOuter, 4)
		if len(parts) < 3 {
			continue
		}
		if !seen[parts[2]] {
			seen[parts[2]] = true
			columns = append(columns, parts[2])
		}
	}
	return columns, rows.Err()
}

// GetContainers implements index.ContainerProvider: it looks up every
// container registered for one dbSchema/tableName pair, the input set
// index.Builder scans to build a secondary index.
func (c *SQLiteCatalog) GetContainers(ctx context.Context, dbSchema, tableName string) ([]*index.ContainerInfo, error) {
	records, err := c.FindContainers(ctx, []Predicate{
		{Column: "db_schema", Operator: "=", Value: dbSchema},
		{Column: "table_name", Operator: "=", Value: tableName},
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to find containers for %s.%s: %w", dbSchema, tableName, err)
	}

	out := make([]*index.ContainerInfo, len(records))
	for i, rec := range records {
		out[i] = &index.ContainerInfo{
			ObjectPath:     rec.ObjectPath,
			DataFormatType: rec.DataFormatType,
			RowCount:       rec.RowCount,
			CreatedAt:      rec.CreatedAt,
		}
	}
	return out, nil
}

// DeleteIndexByPrefix removes every index_map row whose key starts with
// prefix and reports how many rows were removed.
func (c *SQLiteCatalog) DeleteIndexByPrefix(ctx context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upperBound := prefix + "\xff"
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM index_map WHERE index_key >= ? AND index_key < ?", prefix, upperBound)
	if err != nil {
		return 0, fmt.Errorf("manifest: failed to delete index entries: %w", err)
	}
	return result.RowsAffected()
}
