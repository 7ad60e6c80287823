package warehouse

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blinklift/pkg/errors"
	"blinklift/pkg/models"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(models.Warehouse{
		Account:   "testacct",
		Username:  "loader",
		Database:  "EYECARE_ANALYTICS",
		Warehouse: "LOAD_WH",
		Role:      "LOADER",
	}, 5*time.Second)
	svc.forTesting(db)
	return svc, mock
}

func TestExecRequiresConnection(t *testing.T) {
	svc := NewService(models.Warehouse{}, time.Second)

	err := svc.Exec(context.Background(), "SELECT 1")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeWarehouseUnavailable, errors.GetErrorCode(err))
}

func TestRecreateTarget(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	mock.ExpectExec(regexp.QuoteMeta(
		"DROP TABLE IF EXISTS EYECARE_ANALYTICS.RAW.DBO_PATIENTS",
	)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE EYECARE_ANALYTICS.RAW.DBO_PATIENTS ("PATIENT_ID" VARCHAR(16777216), "LAST_NAME" VARCHAR(16777216))`,
	)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := w.RecreateTarget(context.Background(), "DBO_PATIENTS", []string{"patient_id", "last_name"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecreateTargetNoColumns(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	mock.ExpectExec("DROP TABLE IF EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`"PLACEHOLDER_COLUMN" VARCHAR(16777216)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := w.RecreateTarget(context.Background(), "DBO_EMPTY", nil)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchSingleChunk(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO EYECARE_ANALYTICS.RAW.DBO_PATIENTS ("ID", "NAME") VALUES (?, ?), (?, ?)`,
	)).WithArgs("1", "O''Neil", "2", "Zoë").
		WillReturnResult(sqlmock.NewResult(0, 2))

	res, err := w.WriteBatch(context.Background(), "DBO_PATIENTS", []string{"id", "name"},
		[][]string{{"1", "O''Neil"}, {"2", "Zoë"}})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 0, res.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchChunking(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 2)

	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := w.WriteBatch(context.Background(), "DBO_ORDERS", []string{"id"},
		[][]string{{"1"}, {"2"}, {"3"}})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchPerRowFallback(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	mock.ExpectExec("INSERT INTO").WillReturnError(fmt.Errorf("numeric value out of range"))
	mock.ExpectExec("INSERT INTO").WithArgs("1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO").WithArgs("2").WillReturnError(fmt.Errorf("numeric value out of range"))
	mock.ExpectExec("INSERT INTO").WithArgs("3").WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := w.WriteBatch(context.Background(), "DBO_ORDERS", []string{"id"},
		[][]string{{"1"}, {"2"}, {"3"}})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 1, res.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchSurfacesEncodingFailure(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	// No per-row fallback: the single expected exec is the chunk insert.
	mock.ExpectExec("INSERT INTO").WillReturnError(fmt.Errorf("invalid UTF8 detected in string"))

	res, err := w.WriteBatch(context.Background(), "DBO_PATIENTS", []string{"id"},
		[][]string{{"1"}, {"2"}})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEncodingFailure, errors.GetErrorCode(err))
	assert.Equal(t, WriteResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchPerRowEncodingFailuresSurface(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	mock.ExpectExec("INSERT INTO").WillReturnError(fmt.Errorf("statement timed out"))
	mock.ExpectExec("INSERT INTO").WithArgs("1").WillReturnError(fmt.Errorf("invalid UTF8 detected"))
	mock.ExpectExec("INSERT INTO").WithArgs("2").WillReturnError(fmt.Errorf("invalid UTF8 detected"))

	res, err := w.WriteBatch(context.Background(), "DBO_PATIENTS", []string{"id"},
		[][]string{{"1"}, {"2"}})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEncodingFailure, errors.GetErrorCode(err))
	assert.Equal(t, 0, res.Written)
	assert.Equal(t, 2, res.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropTarget(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	mock.ExpectExec(regexp.QuoteMeta(
		"DROP TABLE IF EXISTS EYECARE_ANALYTICS.RAW.DBO_PATIENTS",
	)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := w.DropTarget(context.Background(), "DBO_PATIENTS")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchEmpty(t *testing.T) {
	svc, _ := newMockService(t)
	w := NewWriter(svc, 500)

	res, err := w.WriteBatch(context.Background(), "DBO_ORDERS", []string{"id"}, nil)

	require.NoError(t, err)
	assert.Equal(t, WriteResult{}, res)
}

func TestExistingTargets(t *testing.T) {
	svc, mock := newMockService(t)
	w := NewWriter(svc, 500)

	rows := sqlmock.NewRows([]string{"created_on", "name", "database_name"}).
		AddRow("2024-01-01", "DBO_PATIENTS", "EYECARE_ANALYTICS").
		AddRow("2024-01-02", "dbo_orders", "EYECARE_ANALYTICS")
	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES IN EYECARE_ANALYTICS.RAW")).WillReturnRows(rows)

	existing, err := w.ExistingTargets(context.Background())

	require.NoError(t, err)
	assert.True(t, existing["DBO_PATIENTS"])
	assert.True(t, existing["DBO_ORDERS"])
	assert.False(t, existing["DBO_MISSING"])
}

func TestInsertStatement(t *testing.T) {
	stmt := insertStatement("DB.RAW.T", `"A", "B"`, 2, 2)
	assert.Equal(t, `INSERT INTO DB.RAW.T ("A", "B") VALUES (?, ?), (?, ?)`, stmt)
}
