package migrate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"blinklift/pkg/errors"
)

// TableOutcome records how one table's migration finished.
type TableOutcome struct {
	Table       string
	Rows        int64
	Skipped     int
	Success     bool
	ErrorCode   errors.ErrorCode
	Message     string
	Suggestions []string
}

// batchSummary is the JSON shape of one plan batch in the run summary.
type batchSummary struct {
	Number           int            `json:"number"`
	Attempted        int            `json:"attempted"`
	Successful       int            `json:"successful"`
	Failed           int            `json:"failed"`
	TotalRows        int64          `json:"total_rows"`
	SuccessfulTables []successEntry `json:"successful_tables"`
	FailedTables     []failureEntry `json:"failed_tables"`
}

type successEntry struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

type failureEntry struct {
	Table string `json:"table"`
	Error string `json:"error"`
}

// runSummary is the JSON document persisted at run end.
type runSummary struct {
	Attempted      int            `json:"attempted"`
	Successful     int            `json:"successful"`
	Failed         int            `json:"failed"`
	TotalRows      int64          `json:"total_rows"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Batches        []batchSummary `json:"batches"`
}

// Ledger accumulates per-table outcomes across a run. Only the
// orchestrator mutates it.
type Ledger struct {
	start    time.Time
	attempts int
	success  int
	failed   int
	rows     int64
	skipped  int
	batches  []batchSummary
	outcomes []TableOutcome
}

// NewLedger starts a ledger clocked from now.
func NewLedger() *Ledger {
	return &Ledger{start: time.Now()}
}

// StartBatch opens a new batch record.
func (l *Ledger) StartBatch() {
	l.batches = append(l.batches, batchSummary{
		Number:           len(l.batches) + 1,
		SuccessfulTables: []successEntry{},
		FailedTables:     []failureEntry{},
	})
}

// Record adds a table outcome to the current batch and the run totals.
func (l *Ledger) Record(outcome TableOutcome) {
	if len(l.batches) == 0 {
		l.StartBatch()
	}
	batch := &l.batches[len(l.batches)-1]

	l.outcomes = append(l.outcomes, outcome)
	l.attempts++
	batch.Attempted++
	l.skipped += outcome.Skipped

	if outcome.Success {
		l.success++
		l.rows += outcome.Rows
		batch.Successful++
		batch.TotalRows += outcome.Rows
		batch.SuccessfulTables = append(batch.SuccessfulTables, successEntry{
			Table: outcome.Table,
			Rows:  outcome.Rows,
		})
		return
	}

	l.failed++
	batch.Failed++
	batch.FailedTables = append(batch.FailedTables, failureEntry{
		Table: outcome.Table,
		Error: outcome.Message,
	})
}

// Attempted returns the number of tables attempted so far.
func (l *Ledger) Attempted() int { return l.attempts }

// Successful returns the number of tables migrated cleanly.
func (l *Ledger) Successful() int { return l.success }

// Failed returns the number of tables that failed.
func (l *Ledger) Failed() int { return l.failed }

// TotalRows returns the number of rows persisted across all tables.
func (l *Ledger) TotalRows() int64 { return l.rows }

// SkippedRows returns rows dropped by the per-row write fallback.
func (l *Ledger) SkippedRows() int { return l.skipped }

// Outcomes returns every recorded table outcome in order.
func (l *Ledger) Outcomes() []TableOutcome { return l.outcomes }

// Elapsed returns time since the ledger was started.
func (l *Ledger) Elapsed() time.Duration {
	return time.Since(l.start)
}

// SuccessRatio returns the fraction of attempted tables that succeeded.
func (l *Ledger) SuccessRatio() float64 {
	if l.attempts == 0 {
		return 1
	}
	return float64(l.success) / float64(l.attempts)
}

// ETA estimates remaining time from throughput so far.
func (l *Ledger) ETA(totalPlanned int) time.Duration {
	if l.attempts == 0 || totalPlanned <= l.attempts {
		return 0
	}
	perTable := l.Elapsed() / time.Duration(l.attempts)
	return perTable * time.Duration(totalPlanned-l.attempts)
}

// WriteSummary persists the run summary JSON to path.
func (l *Ledger) WriteSummary(path string) error {
	summary := runSummary{
		Attempted:      l.attempts,
		Successful:     l.success,
		Failed:         l.failed,
		TotalRows:      l.rows,
		ElapsedSeconds: math.Round(l.Elapsed().Seconds()*100) / 100,
		Batches:        l.batches,
	}
	if summary.Batches == nil {
		summary.Batches = []batchSummary{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}
