package migrate

import (
	"context"
	"fmt"
	"time"

	"blinklift/internal/investigate"
	"blinklift/internal/plan"
	"blinklift/internal/sanitize"
	"blinklift/internal/source"
	"blinklift/internal/warehouse"
	"blinklift/pkg/errors"
)

// Pacing between reads and between tables keeps the pressure on the
// source OLTP database low.
const (
	batchPause = 100 * time.Millisecond
	tablePause = 2 * time.Second
)

// TableReader is the slice of the source reader the orchestrator uses.
type TableReader interface {
	Describe(ctx context.Context, schema, name string) (*source.TableDescriptor, error)
	ReadBatches(ctx context.Context, desc source.TableDescriptor, batchSize int) source.Batches
	ListUserTables(ctx context.Context) ([]source.TableDescriptor, error)
	Sample(ctx context.Context, schema, name string, k int) (*source.RowBatch, error)
}

// TargetWriter is the slice of the warehouse writer the orchestrator uses.
type TargetWriter interface {
	EnsureSchema(ctx context.Context) error
	RecreateTarget(ctx context.Context, target string, columns []string) error
	WriteBatch(ctx context.Context, target string, columns []string, rows [][]string) (warehouse.WriteResult, error)
	DropTarget(ctx context.Context, target string) error
	ExistingTargets(ctx context.Context) (map[string]bool, error)
}

// Options tune a single orchestrator run.
type Options struct {
	ReadBatchSize  int
	MaxMemoryRows  int
	TableBatchSize int
	// Pace enables the inter-batch and inter-table sleeps. Tests
	// disable it.
	Pace bool
}

// Logf receives human-readable progress lines.
type Logf func(format string, args ...interface{})

// Orchestrator drives the plan through reader, sanitizer, and writer.
type Orchestrator struct {
	reader       TableReader
	writer       TargetWriter
	investigator *investigate.Investigator
	ledger       *Ledger
	opts         Options
	logf         Logf
}

// New creates an orchestrator. logf may be nil.
func New(reader TableReader, writer TargetWriter, opts Options, logf Logf) *Orchestrator {
	if opts.ReadBatchSize <= 0 {
		opts.ReadBatchSize = 10000
	}
	if opts.MaxMemoryRows <= 0 {
		opts.MaxMemoryRows = 50000
	}
	if opts.ReadBatchSize > opts.MaxMemoryRows {
		opts.ReadBatchSize = opts.MaxMemoryRows
	}
	if opts.TableBatchSize <= 0 {
		opts.TableBatchSize = 50
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Orchestrator{
		reader:       reader,
		writer:       writer,
		investigator: investigate.New(reader),
		ledger:       NewLedger(),
		opts:         opts,
		logf:         logf,
	}
}

// Ledger exposes the run's accumulating outcomes.
func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// Run migrates every entry whose target is not yet in the warehouse.
// Already-migrated targets are skipped, which makes reruns after a
// cancellation pick up exactly where the previous run stopped.
func (o *Orchestrator) Run(ctx context.Context, entries []plan.Entry) error {
	if err := o.writer.EnsureSchema(ctx); err != nil {
		return err
	}

	existing, err := o.writer.ExistingTargets(ctx)
	if err != nil {
		return err
	}

	remaining := plan.Remaining(entries, existing)
	if skipped := len(entries) - len(remaining); skipped > 0 {
		o.logf("Skipping %d already-migrated tables", skipped)
	}
	if len(remaining) == 0 {
		o.logf("Nothing to migrate")
		return nil
	}

	total := len(remaining)
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeTimeout, "Migration run cancelled").
				WithContext("completed", o.ledger.Attempted())
		}

		batch := plan.NextBatch(remaining, o.opts.TableBatchSize)
		remaining = remaining[len(batch):]

		o.ledger.StartBatch()
		for _, entry := range batch {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrCodeTimeout, "Migration run cancelled").
					WithContext("completed", o.ledger.Attempted())
			}

			outcome := o.migrateTable(ctx, entry)
			o.ledger.Record(outcome)
			o.progress(total)

			o.pause(ctx, tablePause)
		}
	}

	return nil
}

func (o *Orchestrator) progress(total int) {
	eta := o.ledger.ETA(total)
	o.logf("Progress: %d/%d tables, %.0f%% success, %s rows, ETA %s",
		o.ledger.Attempted(), total,
		o.ledger.SuccessRatio()*100,
		formatCount(o.ledger.TotalRows()),
		eta.Round(time.Second))
}

// migrateTable moves one table end to end. Failures are classified and
// returned as an outcome, never as an error, so one bad table cannot
// stop the run. The table runs on a context shielded from the
// cooperative cancel: a cancelled run finishes the table in flight, and
// the cancel is honored between tables. A table that fails after its
// target was recreated gets the target dropped again, so no partial
// copy survives to be skipped by a later run.
func (o *Orchestrator) migrateTable(runCtx context.Context, entry plan.Entry) TableOutcome {
	ctx := context.WithoutCancel(runCtx)
	target := entry.TargetName()
	o.logf("Migrating %s (%s rows, domain %s)", entry.QualifiedName(), formatCount(entry.RowCount), entry.Domain)

	desc, err := o.reader.Describe(ctx, entry.Schema, entry.Name)
	if err != nil {
		if errors.GetErrorCode(err) == errors.ErrCodeSourceObjectMissing {
			return o.investigateMissing(ctx, entry, err)
		}
		return TableOutcome{
			Table:     target,
			ErrorCode: errors.GetErrorCode(err),
			Message:   err.Error(),
		}
	}

	if err := o.writer.RecreateTarget(ctx, target, desc.ColumnNames()); err != nil {
		return TableOutcome{
			Table:     target,
			ErrorCode: errors.GetErrorCode(err),
			Message:   err.Error(),
		}
	}

	rows, skipped, err := o.copyRows(ctx, *desc, target, sanitize.New())
	if err != nil && errors.GetErrorCode(err) == errors.ErrCodeEncodingFailure {
		if report, probeErr := o.investigator.EncodingProbe(ctx, entry.Schema, entry.Name); probeErr == nil && report.RetryStrict {
			o.logf("Encoding failure on %s, retrying with byte-safe decoding", entry.QualifiedName())
			if err = o.writer.RecreateTarget(ctx, target, desc.ColumnNames()); err == nil {
				rows, skipped, err = o.copyRows(ctx, *desc, target, sanitize.NewStrict())
			}
		}
	}
	if err != nil {
		if dropErr := o.writer.DropTarget(ctx, target); dropErr != nil {
			o.logf("Could not drop partial target %s: %v", target, dropErr)
		}
		return TableOutcome{
			Table:     target,
			Rows:      rows,
			Skipped:   skipped,
			ErrorCode: errors.GetErrorCode(err),
			Message:   err.Error(),
		}
	}

	return TableOutcome{
		Table:   target,
		Rows:    rows,
		Skipped: skipped,
		Success: true,
	}
}

func (o *Orchestrator) investigateMissing(ctx context.Context, entry plan.Entry, cause error) TableOutcome {
	outcome := TableOutcome{
		Table:     entry.TargetName(),
		ErrorCode: errors.ErrCodeSourceObjectMissing,
		Message:   cause.Error(),
	}

	report, err := o.investigator.MissingTable(ctx, entry.Schema, entry.Name)
	if err != nil {
		outcome.Suggestions = []string{"source catalog unavailable during investigation"}
		return outcome
	}
	outcome.Suggestions = append([]string{report.Suggestion()}, report.Notes...)
	return outcome
}

// copyRows streams the table through the sanitizer into the writer.
func (o *Orchestrator) copyRows(ctx context.Context, desc source.TableDescriptor, target string, cleaner *sanitize.Sanitizer) (int64, int, error) {
	stream := o.reader.ReadBatches(ctx, desc, o.opts.ReadBatchSize)

	var written int64
	var skipped int
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			return written, skipped, err
		}
		if batch == nil {
			return written, skipped, nil
		}

		cleaned := cleaner.CleanBatch(batch.Rows)
		res, err := o.writer.WriteBatch(ctx, target, batch.Columns, cleaned)
		written += int64(res.Written)
		skipped += res.Skipped
		if err != nil {
			return written, skipped, err
		}

		o.pause(ctx, batchPause)
	}
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if !o.opts.Pace {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func formatCount(n int64) string {
	switch {
	case n >= 1000000:
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
