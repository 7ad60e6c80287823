package warehouse

import (
	"context"
	"fmt"
	"strings"

	"blinklift/pkg/errors"
)

// wideVarchar is the column type every landed column gets. Typing is
// deferred to downstream models so a type mismatch can never fail a load.
const wideVarchar = "VARCHAR(16777216)"

// Writer lands sanitized rows into wide-VARCHAR tables in the RAW schema.
type Writer struct {
	service         *Service
	insertBatchSize int
}

// NewWriter creates a writer on top of an established service connection.
func NewWriter(service *Service, insertBatchSize int) *Writer {
	if insertBatchSize <= 0 {
		insertBatchSize = 500
	}
	return &Writer{
		service:         service,
		insertBatchSize: insertBatchSize,
	}
}

// EnsureSchema creates the RAW landing schema if it does not exist.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", w.service.Database(), RawSchema)
	if err := w.service.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrCodeTargetCreateFailed, "Failed to ensure landing schema")
	}
	return nil
}

// RecreateTarget drops and recreates the landing table for a source table.
// Every run starts from an empty target so reruns never duplicate rows.
func (w *Writer) RecreateTarget(ctx context.Context, target string, columns []string) error {
	qualified := w.qualify(target)

	if err := w.service.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualified)); err != nil {
		return errors.Wrap(err, errors.ErrCodeTargetCreateFailed, "Failed to drop existing target").
			WithContext("table", target)
	}

	var defs []string
	for _, col := range columns {
		defs = append(defs, fmt.Sprintf(`"%s" %s`, strings.ToUpper(col), wideVarchar))
	}
	if len(defs) == 0 {
		defs = append(defs, fmt.Sprintf(`"PLACEHOLDER_COLUMN" %s`, wideVarchar))
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", qualified, strings.Join(defs, ", "))
	if err := w.service.Exec(ctx, create); err != nil {
		return errors.Wrap(err, errors.ErrCodeTargetCreateFailed, "Failed to create target table").
			WithContext("table", target).
			WithContext("columns", len(columns))
	}
	return nil
}

// DropTarget removes a landing table. Called when a migration fails
// mid-table: a rerun then sees the target as absent and re-attempts it
// instead of skipping a partial copy.
func (w *Writer) DropTarget(ctx context.Context, target string) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", w.qualify(target))
	if err := w.service.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrCodeBatchWriteFailed, "Failed to drop partial target").
			WithContext("table", target)
	}
	return nil
}

// WriteResult reports how a batch write finished.
type WriteResult struct {
	Written int
	Skipped int
}

// WriteBatch inserts sanitized rows into the target using parameterized
// multi-row statements. A failing chunk falls back to row-at-a-time
// inserts so one bad row costs one row, not the whole chunk. Encoding
// failures are never downgraded to skips: they surface so the table can
// be re-queued under byte-safe decoding.
func (w *Writer) WriteBatch(ctx context.Context, target string, columns []string, rows [][]string) (WriteResult, error) {
	var res WriteResult
	if len(rows) == 0 {
		return res, nil
	}

	qualified := w.qualify(target)
	colList := quotedColumnList(columns)

	for start := 0; start < len(rows); start += w.insertBatchSize {
		end := start + w.insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		if err := w.insertChunk(ctx, qualified, colList, len(columns), chunk); err != nil {
			if errors.GetErrorCode(err) == errors.ErrCodeEncodingFailure {
				return res, err
			}
			written, skipped, rowErr := w.insertPerRow(ctx, qualified, colList, len(columns), chunk)
			res.Written += written
			res.Skipped += skipped
			if rowErr != nil {
				return res, rowErr
			}
			continue
		}
		res.Written += len(chunk)
	}

	return res, nil
}

func (w *Writer) insertChunk(ctx context.Context, qualified, colList string, width int, chunk [][]string) error {
	stmt := insertStatement(qualified, colList, width, len(chunk))

	args := make([]interface{}, 0, width*len(chunk))
	for _, row := range chunk {
		for _, v := range row {
			args = append(args, v)
		}
	}

	execCtx, cancel := w.service.getContext(ctx)
	defer cancel()

	if _, err := w.service.db.ExecContext(execCtx, stmt, args...); err != nil {
		return errors.WriteError("Batch insert failed", stmt, err).
			WithContext("rows", len(chunk))
	}
	return nil
}

// insertPerRow retries a failed chunk one row at a time. Rows that still
// fail are skipped and counted. A walk whose failures are all encoding
// failures returns that classification instead of silently skipping.
func (w *Writer) insertPerRow(ctx context.Context, qualified, colList string, width int, chunk [][]string) (int, int, error) {
	stmt := insertStatement(qualified, colList, width, 1)

	var written, skipped int
	var encodingErr error
	encodingOnly := true
	for _, row := range chunk {
		if err := ctx.Err(); err != nil {
			return written, skipped, errors.Wrap(err, errors.ErrCodeTimeout, "Per-row fallback interrupted")
		}

		args := make([]interface{}, len(row))
		for i, v := range row {
			args[i] = v
		}

		execCtx, cancel := w.service.getContext(ctx)
		_, err := w.service.db.ExecContext(execCtx, stmt, args...)
		cancel()

		if err != nil {
			rowErr := errors.WriteError("Row insert failed", stmt, err)
			if errors.GetErrorCode(rowErr) == errors.ErrCodeEncodingFailure {
				encodingErr = rowErr
			} else {
				encodingOnly = false
			}
			skipped++
			continue
		}
		written++
	}

	if skipped > 0 && encodingOnly && encodingErr != nil {
		return written, skipped, encodingErr
	}
	return written, skipped, nil
}

// ExistingTargets returns the set of table names already present in the
// RAW schema, upper-cased for lookup.
func (w *Writer) ExistingTargets(ctx context.Context) (map[string]bool, error) {
	queryCtx, cancel := w.service.getContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SHOW TABLES IN %s.%s", w.service.Database(), RawSchema)
	rows, err := w.service.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWarehouseUnavailable, "Failed to list landed tables")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		// SHOW TABLES puts the table name in the second column.
		if len(values) > 1 {
			if name, ok := values[1].(string); ok {
				existing[strings.ToUpper(name)] = true
			}
		}
	}

	return existing, rows.Err()
}

func (w *Writer) qualify(target string) string {
	return fmt.Sprintf("%s.%s.%s", w.service.Database(), RawSchema, strings.ToUpper(target))
}

func quotedColumnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf(`"%s"`, strings.ToUpper(col))
	}
	return strings.Join(quoted, ", ")
}

func insertStatement(qualified, colList string, width, rowCount int) string {
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	values := make([]string, rowCount)
	for i := range values {
		values[i] = placeholders
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", qualified, colList, strings.Join(values, ", "))
}
