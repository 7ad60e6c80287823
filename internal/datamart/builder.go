package datamart

import (
	"context"
	"fmt"
	"time"

	"blinklift/pkg/errors"
)

// Schema is the warehouse schema the dimensional model lives in.
const Schema = "DATAMART"

// Executor is the slice of the warehouse service the builder uses.
type Executor interface {
	Exec(ctx context.Context, statement string) error
	QueryRowCount(ctx context.Context, qualified string) (int64, error)
	Database() string
}

// Options configure a datamart build.
type Options struct {
	// FiscalWindowStart and FiscalWindowEnd bound DIM_DATE, inclusive.
	FiscalWindowStart time.Time
	FiscalWindowEnd   time.Time
}

// DefaultOptions covers the business calendar the reporting views expect.
func DefaultOptions() Options {
	return Options{
		FiscalWindowStart: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		FiscalWindowEnd:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Logf receives human-readable progress lines.
type Logf func(format string, args ...interface{})

// Builder constructs the dimensional model from RAW.
type Builder struct {
	exec Executor
	opts Options
	logf Logf
}

// NewBuilder creates a builder. logf may be nil.
func NewBuilder(exec Executor, opts Options, logf Logf) *Builder {
	if opts.FiscalWindowStart.IsZero() || opts.FiscalWindowEnd.IsZero() {
		opts = DefaultOptions()
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Builder{exec: exec, opts: opts, logf: logf}
}

// Build runs every datamart phase in order. A failing phase aborts the
// build but leaves RAW and all previously completed phases intact.
func (b *Builder) Build(ctx context.Context) error {
	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"schema bootstrap", b.bootstrapSchema},
		{"dimension DDL", b.createDimensions},
		{"fact DDL", b.createFacts},
		{"date population", b.loadDateDimension},
		{"dimension load", b.loadDimensions},
		{"fact load", b.loadFacts},
		{"view build", b.createViews},
	}

	for _, phase := range phases {
		b.logf("Datamart phase: %s", phase.name)
		if err := phase.run(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatamartPhaseFailed,
				fmt.Sprintf("Datamart phase %q failed", phase.name)).
				WithContext("phase", phase.name)
		}
	}
	return nil
}

func (b *Builder) bootstrapSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", b.exec.Database(), Schema),
		fmt.Sprintf("USE SCHEMA %s.%s", b.exec.Database(), Schema),
	}
	for _, stmt := range stmts {
		if err := b.exec.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) createDimensions(ctx context.Context) error {
	for _, ddl := range []string{dimDateDDL, dimPatientDDL, dimOfficeDDL, dimEmployeeDDL, dimProductDDL} {
		if err := b.exec.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) createFacts(ctx context.Context) error {
	for _, ddl := range []string{factRevenueDDL, factProductSalesDDL} {
		if err := b.exec.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// loadDateDimension fills DIM_DATE once. A populated table is left
// alone, which makes repeated builds yield the same row count.
func (b *Builder) loadDateDimension(ctx context.Context) error {
	existing, err := b.exec.QueryRowCount(ctx, b.qualify("DIM_DATE"))
	if err != nil {
		return err
	}
	if existing > 0 {
		b.logf("DIM_DATE already populated with %d rows", existing)
		return nil
	}

	days := int(b.opts.FiscalWindowEnd.Sub(b.opts.FiscalWindowStart).Hours()/24) + 1
	if days <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "Fiscal window end precedes its start")
	}

	stmt := fmt.Sprintf(dimDateInsert, b.opts.FiscalWindowStart.Format("2006-01-02"), days)
	return b.exec.Exec(ctx, stmt)
}

func (b *Builder) loadDimensions(ctx context.Context) error {
	for _, load := range dimensionLoads {
		if load.closeSQL != "" {
			if err := b.exec.Exec(ctx, load.closeSQL); err != nil {
				return err
			}
		}
		if err := b.exec.Exec(ctx, load.insertSQL); err != nil {
			return err
		}
		b.logf("Loaded %s", load.name)
	}
	return nil
}

func (b *Builder) loadFacts(ctx context.Context) error {
	for _, name := range []string{"FACT_REVENUE_TRANSACTIONS", "FACT_PRODUCT_SALES"} {
		if err := b.exec.Exec(ctx, factLoads[name]); err != nil {
			return err
		}
		b.logf("Loaded %s", name)
	}
	return nil
}

func (b *Builder) createViews(ctx context.Context) error {
	for _, name := range []string{"VW_REVENUE_ANALYTICS", "VW_EXECUTIVE_SUMMARY", "VW_PRODUCT_PERFORMANCE"} {
		if err := b.exec.Exec(ctx, views[name]); err != nil {
			return err
		}
	}
	return nil
}

// TableCount is one row of the datamart summary.
type TableCount struct {
	Table string
	Rows  int64
}

// Summary reports row counts for the core datamart tables.
func (b *Builder) Summary(ctx context.Context) ([]TableCount, error) {
	tables := []string{
		"DIM_DATE", "DIM_PATIENT", "DIM_OFFICE", "DIM_EMPLOYEE", "DIM_PRODUCT",
		"FACT_REVENUE_TRANSACTIONS", "FACT_PRODUCT_SALES",
	}

	out := make([]TableCount, 0, len(tables))
	for _, table := range tables {
		n, err := b.exec.QueryRowCount(ctx, b.qualify(table))
		if err != nil {
			return out, err
		}
		out = append(out, TableCount{Table: table, Rows: n})
	}
	return out, nil
}

func (b *Builder) qualify(table string) string {
	return fmt.Sprintf("%s.%s.%s", b.exec.Database(), Schema, table)
}
