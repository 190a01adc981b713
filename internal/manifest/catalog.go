package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Catalog manages container-object metadata in manifest.db.
type Catalog interface {
	// RegisterContainer adds a newly written container object to the catalog.
	RegisterContainer(ctx context.Context, rec *ContainerRecord) error

	// FindContainers returns containers matching the given table/schema predicates.
	FindContainers(ctx context.Context, predicates []Predicate) ([]*ContainerRecord, error)

	// GetContainer retrieves a single container by object path.
	GetContainer(ctx context.Context, objectPath string) (*ContainerRecord, error)

	// DeleteContainer removes a container's catalog entry (not the object itself).
	DeleteContainer(ctx context.Context, objectPath string) error

	// DistinctTables lists every db_schema.table_name pair with at least
	// one registered container, the table discovery operation the index
	// policy loop uses to find new tables to manage.
	DistinctTables(ctx context.Context) ([]TableKey, error)

	// Close closes the catalog database connection.
	Close() error
}

// TableKey identifies one table by its db_schema/table_name pair.
type TableKey struct {
	DBSchema  string
	TableName string
}

// ContainerRecord represents one stored container object in the manifest.
type ContainerRecord struct {
	ObjectPath     string
	DataFormatType byte
	DBSchema       string
	TableName      string
	RowCount       int64
	SizeBytes      int64
	CreatedAt      time.Time
}

// Predicate narrows FindContainers to the containers backing one table.
type Predicate struct {
	Column   string
	Operator string // "="
	Value    interface{}
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	insertStmt *sql.Stmt
}

// NewCatalog creates a new SQLite-based catalog.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	if _, err := readDB.Exec("PRAGMA read_uncommitted = true"); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("manifest: failed to set read_uncommitted pragma: %w", err)
	}

	catalog := &SQLiteCatalog{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := catalog.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("manifest: failed to initialize schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO containers (
			object_path, data_format_type, db_schema, table_name,
			row_count, size_bytes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("manifest: failed to prepare insert statement: %w", err)
	}
	catalog.insertStmt = insertStmt

	return catalog, nil
}

// initSchema creates all required tables and indexes.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RegisterContainer adds a newly written container object to the catalog.
func (c *SQLiteCatalog) RegisterContainer(ctx context.Context, rec *ContainerRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.insertStmt.ExecContext(ctx,
		rec.ObjectPath, rec.DataFormatType, rec.DBSchema, rec.TableName,
		rec.RowCount, rec.SizeBytes, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("manifest: failed to insert container: %w", err)
	}

	c.logContainerCountThreshold(ctx)
	return nil
}

// GetContainer retrieves a single container by object path.
func (c *SQLiteCatalog) GetContainer(ctx context.Context, objectPath string) (*ContainerRecord, error) {
	query := `
		SELECT object_path, data_format_type, db_schema, table_name,
			row_count, size_bytes, created_at
		FROM containers
		WHERE object_path = ?`

	row := c.readDB.QueryRowContext(ctx, query, objectPath)
	return c.scanContainerRecord(row)
}

func (c *SQLiteCatalog) scanContainerRecord(row *sql.Row) (*ContainerRecord, error) {
	var rec ContainerRecord
	var createdAtUnix int64

	err := row.Scan(
		&rec.ObjectPath, &rec.DataFormatType, &rec.DBSchema, &rec.TableName,
		&rec.RowCount, &rec.SizeBytes, &createdAtUnix,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("manifest: container not found")
		}
		return nil, fmt.Errorf("manifest: failed to scan container: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	return &rec, nil
}

// FindContainers returns containers matching the given table/schema predicates.
func (c *SQLiteCatalog) FindContainers(ctx context.Context, predicates []Predicate) ([]*ContainerRecord, error) {
	query := `
		SELECT object_path, data_format_type, db_schema, table_name,
			row_count, size_bytes, created_at
		FROM containers
		WHERE 1=1`
	var args []interface{}

	for _, pred := range predicates {
		if pred.Operator != "=" {
			continue
		}
		query += fmt.Sprintf(" AND %s = ?", pred.Column)
		args = append(args, pred.Value)
	}
	query += " ORDER BY created_at ASC"

	rows, err := c.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to query containers: %w", err)
	}
	defer rows.Close()

	var records []*ContainerRecord
	for rows.Next() {
		var rec ContainerRecord
		var createdAtUnix int64
		if err := rows.Scan(
			&rec.ObjectPath, &rec.DataFormatType, &rec.DBSchema, &rec.TableName,
			&rec.RowCount, &rec.SizeBytes, &createdAtUnix,
		); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan container: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAtUnix, 0)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("manifest: error iterating containers: %w", err)
	}

	return records, nil
}

// DistinctTables lists every db_schema.table_name pair with at least one
// registered container.
func (c *SQLiteCatalog) DistinctTables(ctx context.Context) ([]TableKey, error) {
	rows, err := c.readDB.QueryContext(ctx, "SELECT DISTINCT db_schema, table_name FROM containers")
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to query distinct tables: %w", err)
	}
	defer rows.Close()

	var keys []TableKey
	for rows.Next() {
		var k TableKey
		if err := rows.Scan(&k.DBSchema, &k.TableName); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan table key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteContainer removes a container's catalog entry (not the object itself).
func (c *SQLiteCatalog) DeleteContainer(ctx context.Context, objectPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, "DELETE FROM containers WHERE object_path = ?", objectPath); err != nil {
		return fmt.Errorf("manifest: failed to delete container: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM index_map WHERE object_path = ?", objectPath); err != nil {
		return fmt.Errorf("manifest: failed to delete index entries: %w", err)
	}
	return nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	if c.insertStmt != nil {
		c.insertStmt.Close()
	}
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

// GetContainerCount returns the total number of registered containers.
func (c *SQLiteCatalog) GetContainerCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM containers").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("manifest: failed to count containers: %w", err)
	}
	return count, nil
}

// RunAnalyze runs ANALYZE to update SQLite query planner statistics.
// Should be called after bulk registrations to keep index statistics current.
func (c *SQLiteCatalog) RunAnalyze(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, AnalyzeSQL)
	if err != nil {
		return fmt.Errorf("manifest: failed to run ANALYZE: %w", err)
	}
	return nil
}

// containerCountThresholds defines the container count levels at which warnings are emitted.
var containerCountThresholds = []int64{1000000, 500000, 100000}

// logContainerCountThreshold checks the total container count and logs a warning
// when it crosses 100K, 500K, or 1M thresholds. Called after each RegisterContainer.
func (c *SQLiteCatalog) logContainerCountThreshold(ctx context.Context) {
	var count int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM containers").Scan(&count)
	if err != nil {
		return
	}
	for _, threshold := range containerCountThresholds {
		if count >= threshold {
			log.Printf("[WARN] manifest: container count (%d) has crossed %dK threshold — plan for manifest sharding", count, threshold/1000)
			return
		}
	}
}
