// Package manifest provides the manifest catalog for tracking container-object metadata.
package manifest

// Schema contains the SQL schema definitions for the manifest catalog (manifest.db).
// The manifest catalog is a SQLite database that serves as the source of truth
// for every row-format and columnar-format container object the query service
// can execute pushdown queries against.

// CreateContainersTableSQL creates the core containers table: one row per
// stored container object, keyed by its object-store path.
const CreateContainersTableSQL = `
CREATE TABLE IF NOT EXISTS containers (
    object_path      TEXT PRIMARY KEY,
    data_format_type INTEGER NOT NULL,
    db_schema        TEXT NOT NULL,
    table_name       TEXT NOT NULL,
    row_count        INTEGER NOT NULL,
    size_bytes       INTEGER NOT NULL,
    created_at       INTEGER NOT NULL
)`

// CreateContainersIndexesSQL creates indexes for locating the container
// objects that back a given table.
var CreateContainersIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_containers_table ON containers(db_schema, table_name)`,
	`CREATE INDEX IF NOT EXISTS idx_containers_created ON containers(created_at)`,
}

// CreateIndexMapTableSQL creates the index_map table: one row per
// (composite secondary-index key, container object, row id) triple, keyed by
// the internal/indexkey composite key so range scans over a key prefix
// resolve directly to the container objects and RIDs that satisfy it.
const CreateIndexMapTableSQL = `
CREATE TABLE IF NOT EXISTS index_map (
    index_key   TEXT NOT NULL,
    object_path TEXT NOT NULL,
    rid         INTEGER NOT NULL,
    PRIMARY KEY (index_key, object_path, rid)
) WITHOUT ROWID`

// CreateIndexMapIndexSQL indexes index_map by key for prefix scans.
const CreateIndexMapIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_index_map_key ON index_map(index_key)`

// AnalyzeSQL runs ANALYZE to keep the SQLite query planner informed about index statistics.
const AnalyzeSQL = `ANALYZE`

// AllSchemaSQL returns all SQL statements needed to initialize the manifest catalog.
func AllSchemaSQL() []string {
	statements := []string{
		CreateContainersTableSQL,
		CreateIndexMapTableSQL,
		CreateIndexMapIndexSQL,
	}
	statements = append(statements, CreateContainersIndexesSQL...)
	return statements
}
