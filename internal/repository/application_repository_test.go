package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func applicationRows(status models.ApplicationStatus) *sqlmock.Rows {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "shift_id", "user_id", "status", "applied_at", "processed_at", "processed_by", "notes", "created_at", "updated_at"}).
		AddRow("app-1", "shift-1", "staff-1", status, now, nil, nil, nil, now, now)
}

func shiftRows(capacity, confirmed int) *sqlmock.Rows {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "project_id", "date", "start_time", "end_time", "break_minutes", "capacity", "confirmed_count", "notes", "created_at", "updated_at"}).
		AddRow("shift-1", "proj-1", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), "09:00", "18:00", 60, capacity, confirmed, nil, now, now)
}

func TestApplicationRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT shift_id FROM shift_applications WHERE id = $1`)).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"shift_id"}).AddRow("shift-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM shifts WHERE id = $1 FOR UPDATE")).
		WithArgs("shift-1").
		WillReturnRows(shiftRows(3, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM shift_applications WHERE id = $1 FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(applicationRows(models.ApplicationStatusPending))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shift_applications SET status = $2`)).
		WithArgs("app-1", models.ApplicationStatusApproved, now, "admin-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shifts SET confirmed_count = confirmed_count + 1, updated_at = $2 WHERE id = $1 AND confirmed_count < capacity`)).
		WithArgs("shift-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app, err := repo.Approve(context.Background(), "app-1", "admin-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, app.Status)
	require.NotNil(t, app.ProcessedBy)
	assert.Equal(t, "admin-1", *app.ProcessedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveFullShift(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT shift_id FROM shift_applications WHERE id = $1`)).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"shift_id"}).AddRow("shift-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("shift-1").
		WillReturnRows(shiftRows(2, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(applicationRows(models.ApplicationStatusPending))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "app-1", "admin-1", now)
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveAlreadyProcessed(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT shift_id FROM shift_applications WHERE id = $1`)).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"shift_id"}).AddRow("shift-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("shift-1").
		WillReturnRows(shiftRows(3, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(applicationRows(models.ApplicationStatusApproved))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "app-1", "admin-1", now)
	require.ErrorIs(t, err, appErrors.ErrStateConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveSerializationFailure(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT shift_id FROM shift_applications WHERE id = $1`)).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"shift_id"}).AddRow("shift-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("shift-1").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "app-1", "admin-1", now)
	require.ErrorIs(t, err, appErrors.ErrConcurrencyConflict)
	assert.True(t, IsRetryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shift_applications")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_applications_open"})

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	err := repo.Create(context.Background(), &models.Application{
		ShiftID:   "shift-1",
		UserID:    "staff-1",
		AppliedAt: now,
	}, now)
	require.ErrorIs(t, err, appErrors.ErrDuplicateApplication)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(applicationRows(models.ApplicationStatusPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE shift_applications SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app, err := repo.Cancel(context.Background(), "app-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusCancelled, app.Status)
	assert.Nil(t, app.ProcessedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}
