package datamart

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blinklift/pkg/errors"
)

type fakeExecutor struct {
	statements []string
	failOn     string
	rowCounts  map[string]int64
}

func (f *fakeExecutor) Exec(ctx context.Context, statement string) error {
	if f.failOn != "" && strings.Contains(statement, f.failOn) {
		return fmt.Errorf("statement rejected")
	}
	f.statements = append(f.statements, statement)
	return nil
}

func (f *fakeExecutor) QueryRowCount(ctx context.Context, qualified string) (int64, error) {
	return f.rowCounts[qualified], nil
}

func (f *fakeExecutor) Database() string { return "EYECARE_ANALYTICS" }

func (f *fakeExecutor) executed(fragment string) bool {
	for _, s := range f.statements {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

func window(startYear, endYear int) Options {
	return Options{
		FiscalWindowStart: time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC),
		FiscalWindowEnd:   time.Date(endYear, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildRunsAllPhasesInOrder(t *testing.T) {
	exec := &fakeExecutor{rowCounts: map[string]int64{}}
	b := NewBuilder(exec, window(2020, 2020), nil)

	require.NoError(t, b.Build(context.Background()))

	assert.True(t, exec.executed("CREATE SCHEMA IF NOT EXISTS EYECARE_ANALYTICS.DATAMART"))
	assert.True(t, exec.executed("CREATE TABLE IF NOT EXISTS DIM_DATE"))
	assert.True(t, exec.executed("CREATE OR REPLACE TABLE FACT_REVENUE_TRANSACTIONS"))
	assert.True(t, exec.executed("GENERATOR(ROWCOUNT => 366)"))
	assert.True(t, exec.executed("INSERT INTO DIM_PATIENT"))
	assert.True(t, exec.executed("INSERT INTO FACT_REVENUE_TRANSACTIONS"))
	assert.True(t, exec.executed("CREATE OR REPLACE VIEW VW_EXECUTIVE_SUMMARY"))

	// dimension DDL runs before the date population, facts load after
	// dimensions
	var dimDDL, dateLoad, dimLoad, factLoad int
	for i, s := range exec.statements {
		switch {
		case strings.Contains(s, "CREATE TABLE IF NOT EXISTS DIM_DATE"):
			dimDDL = i
		case strings.Contains(s, "GENERATOR"):
			dateLoad = i
		case strings.Contains(s, "INSERT INTO DIM_PATIENT"):
			dimLoad = i
		case strings.Contains(s, "INSERT INTO FACT_REVENUE_TRANSACTIONS"):
			factLoad = i
		}
	}
	assert.Less(t, dimDDL, dateLoad)
	assert.Less(t, dateLoad, dimLoad)
	assert.Less(t, dimLoad, factLoad)
}

func TestBuildLeapYearWindow(t *testing.T) {
	exec := &fakeExecutor{rowCounts: map[string]int64{}}
	b := NewBuilder(exec, window(2020, 2020), nil)

	require.NoError(t, b.Build(context.Background()))
	assert.True(t, exec.executed("ROWCOUNT => 366"))
}

func TestBuildSkipsPopulatedDateDimension(t *testing.T) {
	exec := &fakeExecutor{rowCounts: map[string]int64{
		"EYECARE_ANALYTICS.DATAMART.DIM_DATE": 2557,
	}}
	b := NewBuilder(exec, window(2020, 2026), nil)

	require.NoError(t, b.Build(context.Background()))
	assert.False(t, exec.executed("GENERATOR"))
}

func TestBuildStopsAtFailingPhase(t *testing.T) {
	exec := &fakeExecutor{rowCounts: map[string]int64{}, failOn: "INSERT INTO DIM_PATIENT"}
	b := NewBuilder(exec, window(2020, 2020), nil)

	err := b.Build(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatamartPhaseFailed, errors.GetErrorCode(err))
	assert.False(t, exec.executed("INSERT INTO FACT_REVENUE_TRANSACTIONS"))
}

func TestDimensionLoadsCloseBeforeInsert(t *testing.T) {
	exec := &fakeExecutor{rowCounts: map[string]int64{}}
	b := NewBuilder(exec, window(2020, 2020), nil)

	require.NoError(t, b.Build(context.Background()))

	var closeIdx, insertIdx int
	for i, s := range exec.statements {
		if strings.Contains(s, "UPDATE DIM_PATIENT") {
			closeIdx = i
		}
		if strings.Contains(s, "INSERT INTO DIM_PATIENT") {
			insertIdx = i
		}
	}
	assert.Less(t, closeIdx, insertIdx)
	assert.True(t, exec.executed("EXPIRATION_DATE = CURRENT_DATE()"))
}

func TestFactLoadsUseSentinelKeys(t *testing.T) {
	for name, stmt := range factLoads {
		assert.Contains(t, stmt, "COALESCE", name)
		assert.Contains(t, stmt, "-1", name)
	}
}

func TestFactKeysUnpopulatedByLoadsDefaultToSentinel(t *testing.T) {
	// Key columns absent from the insert lists land -1, not NULL.
	assert.Contains(t, factRevenueDDL, "EMPLOYEE_KEY INTEGER DEFAULT -1")
	assert.Contains(t, factRevenueDDL, "PRODUCT_KEY INTEGER DEFAULT -1")
	assert.Contains(t, factProductSalesDDL, "EMPLOYEE_KEY INTEGER DEFAULT -1")
}

func TestFiscalCalendarJulyStart(t *testing.T) {
	assert.Contains(t, dimDateInsert, "MONTH(date_val) >= 7 THEN YEAR(date_val) + 1")
	assert.Contains(t, dimDateInsert, "IN (7,8,9) THEN 1")
}

func TestSummary(t *testing.T) {
	exec := &fakeExecutor{rowCounts: map[string]int64{
		"EYECARE_ANALYTICS.DATAMART.DIM_DATE":    2557,
		"EYECARE_ANALYTICS.DATAMART.DIM_PATIENT": 1200,
	}}
	b := NewBuilder(exec, window(2020, 2026), nil)

	counts, err := b.Summary(context.Background())

	require.NoError(t, err)
	require.Len(t, counts, 7)
	assert.Equal(t, TableCount{Table: "DIM_DATE", Rows: 2557}, counts[0])
}

func TestInvalidWindowRejected(t *testing.T) {
	exec := &fakeExecutor{rowCounts: map[string]int64{}}
	b := NewBuilder(exec, Options{
		FiscalWindowStart: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		FiscalWindowEnd:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil)

	err := b.Build(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatamartPhaseFailed, errors.GetErrorCode(err))
}
