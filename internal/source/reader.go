package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"

	"blinklift/pkg/errors"
	"blinklift/pkg/models"
)

// Reader enumerates and reads tables from the source OLTP database.
// It owns its connection pool; the pool is exclusive to the Reader.
type Reader struct {
	db      *sql.DB
	cfg     models.Source
	timeout time.Duration
}

// NewReader creates a Reader for the given source configuration.
func NewReader(cfg models.Source, timeout time.Duration) *Reader {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Reader{cfg: cfg, timeout: timeout}
}

// Connect opens the connection pool and verifies connectivity.
func (r *Reader) Connect(ctx context.Context) error {
	dsn := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(r.cfg.Username, r.cfg.Password),
		Host:   fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port),
	}
	q := dsn.Query()
	q.Set("database", r.cfg.Database)
	dsn.RawQuery = q.Encode()

	db, err := sql.Open("sqlserver", dsn.String())
	if err != nil {
		return errors.SourceConnectionError("Failed to open source connection", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return errors.SourceConnectionError("Failed to reach source database", err).
			WithContext("host", r.cfg.Host).
			WithContext("database", r.cfg.Database)
	}

	r.db = db
	return nil
}

// Close closes the connection pool.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// DB exposes the underlying pool for catalog-level collaborators.
func (r *Reader) DB() *sql.DB {
	return r.db
}

// forTesting wires an externally created handle, used by sqlmock tests.
func (r *Reader) forTesting(db *sql.DB) {
	r.db = db
}

// listTablesQuery discovers user tables with row-count estimates from the
// system partitions view and column counts from the columns catalog.
const listTablesQuery = `
SELECT
    t.TABLE_SCHEMA,
    t.TABLE_NAME,
    COALESCE(p.row_count, 0) AS ROW_COUNT,
    COALESCE(c.column_count, 0) AS COLUMN_COUNT
FROM INFORMATION_SCHEMA.TABLES t
LEFT JOIN (
    SELECT
        SCHEMA_NAME(o.schema_id) AS TABLE_SCHEMA,
        o.name AS TABLE_NAME,
        SUM(p.rows) AS row_count
    FROM sys.objects o
    INNER JOIN sys.partitions p ON o.object_id = p.object_id
    WHERE o.type = 'U' AND p.index_id IN (0, 1)
    GROUP BY SCHEMA_NAME(o.schema_id), o.name
) p ON t.TABLE_SCHEMA = p.TABLE_SCHEMA AND t.TABLE_NAME = p.TABLE_NAME
LEFT JOIN (
    SELECT TABLE_SCHEMA, TABLE_NAME, COUNT(*) AS column_count
    FROM INFORMATION_SCHEMA.COLUMNS
    GROUP BY TABLE_SCHEMA, TABLE_NAME
) c ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE t.TABLE_TYPE = 'BASE TABLE'
  AND t.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA', 'cdc')
ORDER BY COALESCE(p.row_count, 0) DESC, t.TABLE_NAME`

// ListUserTables enumerates all user tables with row and column counts,
// ordered by estimated row count descending.
func (r *Reader) ListUserTables(ctx context.Context) ([]TableDescriptor, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(queryCtx, listTablesQuery)
	if err != nil {
		return nil, errors.CatalogError("Failed to list source tables", err)
	}
	defer rows.Close()

	var tables []TableDescriptor
	for rows.Next() {
		var t TableDescriptor
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowCount, &t.ColumnCount); err != nil {
			return nil, errors.CatalogError("Failed to scan table row", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.CatalogError("Failed reading table list", err)
	}

	return tables, nil
}

// Describe returns the full descriptor for one table, including column
// metadata, or ErrCodeSourceObjectMissing when the table is not in the catalog.
func (r *Reader) Describe(ctx context.Context, schema, name string) (*TableDescriptor, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists int
	err := r.db.QueryRowContext(queryCtx, `
		SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`, schema, name).Scan(&exists)
	if err != nil {
		return nil, errors.CatalogError("Failed to check table existence", err)
	}
	if exists == 0 {
		return nil, errors.ObjectMissingError(schema, name)
	}

	desc := &TableDescriptor{Schema: schema, Name: name}

	colRows, err := r.db.QueryContext(queryCtx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE,
		       COALESCE(CHARACTER_MAXIMUM_LENGTH, 0), ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`, schema, name)
	if err != nil {
		return nil, errors.CatalogError("Failed to read column metadata", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var (
			col      Column
			nullable string
		)
		if err := colRows.Scan(&col.Name, &col.DataType, &nullable, &col.MaxLength, &col.Ordinal); err != nil {
			return nil, errors.CatalogError("Failed to scan column metadata", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		desc.Columns = append(desc.Columns, col)
	}
	if err := colRows.Err(); err != nil {
		return nil, errors.CatalogError("Failed reading column metadata", err)
	}
	desc.ColumnCount = len(desc.Columns)

	// Row count estimate from the partitions view; missing statistics are
	// treated as zero rows rather than an error.
	_ = r.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(SUM(p.rows), 0)
		FROM sys.objects o
		INNER JOIN sys.partitions p ON o.object_id = p.object_id
		WHERE o.type = 'U' AND p.index_id IN (0, 1)
		  AND SCHEMA_NAME(o.schema_id) = @p1 AND o.name = @p2`, schema, name).
		Scan(&desc.RowCount)

	return desc, nil
}

// orderingClause returns an ORDER BY expression stable enough for paging:
// the declared primary key when one exists, otherwise the catalog ordering.
func (r *Reader) orderingClause(ctx context.Context, schema, name string) string {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		INNER JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		  AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION`, schema, name)
	if err != nil {
		return "(SELECT NULL)"
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return "(SELECT NULL)"
		}
		cols = append(cols, fmt.Sprintf("[%s]", col))
	}
	if len(cols) == 0 || rows.Err() != nil {
		return "(SELECT NULL)"
	}
	return strings.Join(cols, ", ")
}

// Batches is a lazy finite sequence of row batches. Next returns nil
// when the table is exhausted.
type Batches interface {
	Next(ctx context.Context) (*RowBatch, error)
}

// BatchStream yields row batches of a table lazily via OFFSET/FETCH paging.
type BatchStream struct {
	reader    *Reader
	desc      TableDescriptor
	batchSize int
	ordering  string
	offset    int64
	done      bool
}

// ReadBatches prepares a lazy batch stream over the table. Rows are returned
// in the paging order; decode problems are left to the sanitizer downstream.
func (r *Reader) ReadBatches(ctx context.Context, desc TableDescriptor, batchSize int) Batches {
	return &BatchStream{
		reader:    r,
		desc:      desc,
		batchSize: batchSize,
		ordering:  r.orderingClause(ctx, desc.Schema, desc.Name),
	}
}

// Next fetches the next batch. It returns nil when the table is exhausted.
func (s *BatchStream) Next(ctx context.Context) (*RowBatch, error) {
	if s.done {
		return nil, nil
	}

	query := fmt.Sprintf(
		"SELECT * FROM [%s].[%s] ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY",
		s.desc.Schema, s.desc.Name, s.ordering, s.offset, s.batchSize)

	batch, err := s.reader.queryBatch(ctx, query)
	if err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		s.done = true
		return nil, nil
	}

	s.offset += int64(batch.Len())
	if batch.Len() < s.batchSize {
		s.done = true
	}
	return batch, nil
}

// Sample returns the first k rows of the table, used for structure
// inference when the row count estimate is zero.
func (r *Reader) Sample(ctx context.Context, schema, name string, k int) (*RowBatch, error) {
	query := fmt.Sprintf("SELECT TOP %d * FROM [%s].[%s]", k, schema, name)
	return r.queryBatch(ctx, query)
}

func (r *Reader) queryBatch(ctx context.Context, query string) (*RowBatch, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(queryCtx, query)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "invalid object name") {
			return nil, errors.New(errors.ErrCodeSourceObjectMissing, err.Error())
		}
		return nil, errors.Wrap(err, errors.ErrCodeCatalogUnavailable, "Source read failed")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCatalogUnavailable, "Failed to read result columns")
	}

	batch := &RowBatch{Columns: cols}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCatalogUnavailable, "Failed to scan source row")
		}
		batch.Rows = append(batch.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCatalogUnavailable, "Source read interrupted")
	}

	return batch, nil
}
