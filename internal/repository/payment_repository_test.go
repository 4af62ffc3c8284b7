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

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func settleableRows() *sqlmock.Rows {
	clockIn := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	clockOut := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "user_id", "shift_id", "shift_date", "clock_in", "clock_out", "break_minutes", "needs_review"}).
		AddRow("att-1", "staff-1", "shift-1", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), clockIn, clockOut, 60, false)
}

func settlementPeriod() (time.Time, time.Time) {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
}

func buildFixedPayment(t *testing.T) BuildFunc {
	t.Helper()
	return func(eligible []models.SettleableAttendance) (*models.Payment, []models.PaymentDetail, error) {
		require.Len(t, eligible, 1)
		now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		payment := &models.Payment{
			ID:          "pay-1",
			UserID:      "staff-1",
			PeriodStart: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
			BaseAmount:  12000,
			TotalAmount: 12000,
			Status:      models.PaymentStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		details := []models.PaymentDetail{{
			ID:           "det-1",
			PaymentID:    "pay-1",
			AttendanceID: eligible[0].ID,
			WorkHours:    8,
			HourlyWage:   1500,
			Amount:       12000,
			CreatedAt:    now,
		}}
		return payment, details, nil
	}
}

func TestPaymentRepositoryGenerate(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	from, to := settlementPeriod()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF a")).
		WithArgs("staff-1", from, to).
		WillReturnRows(settleableRows())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_details")).
		WithArgs("det-1", "pay-1", "att-1", 8.0, 1500, 12000, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, err := repo.Generate(context.Background(), "staff-1", from, to, buildFixedPayment(t))
	require.NoError(t, err)
	assert.Equal(t, 12000, payment.TotalAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryGenerateBuildErrorAborts(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	from, to := settlementPeriod()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF a")).
		WithArgs("staff-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "shift_id", "shift_date", "clock_in", "clock_out", "break_minutes", "needs_review"}))
	mock.ExpectRollback()

	_, err := repo.Generate(context.Background(), "staff-1", from, to,
		func(eligible []models.SettleableAttendance) (*models.Payment, []models.PaymentDetail, error) {
			assert.Empty(t, eligible)
			return nil, nil, appErrors.ErrNoEligibleAttendance
		})
	require.ErrorIs(t, err, appErrors.ErrNoEligibleAttendance)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A claimed attendance surfaces as a unique violation on the detail insert
// and must come back retryable.
func TestPaymentRepositoryGenerateClaimConflict(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	from, to := settlementPeriod()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF a")).
		WithArgs("staff-1", from, to).
		WillReturnRows(settleableRows())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_details")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "payment_details_attendance_id_key"})
	mock.ExpectRollback()

	_, err := repo.Generate(context.Background(), "staff-1", from, to, buildFixedPayment(t))
	require.ErrorIs(t, err, appErrors.ErrConcurrencyConflict)
	assert.True(t, IsRetryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatusCompleted(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "period_start", "period_end", "base_amount", "transportation_amount", "deduction_amount", "total_amount", "status", "paid_at", "created_at", "updated_at"}).
		AddRow("pay-1", "staff-1", now.AddDate(0, -1, 0), now, 12000, 0, 0, 12000, models.PaymentStatusCompleted, now, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2")).
		WithArgs("pay-1", models.PaymentStatusCompleted, now, now).
		WillReturnRows(rows)

	payment, err := repo.UpdateStatus(context.Background(), "pay-1", models.PaymentStatusCompleted, &now, now)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.NotNil(t, payment.PaidAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatusImmutableWhenCompleted(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.UpdateStatus(context.Background(), "pay-1", models.PaymentStatusProcessing, nil, now)
	require.ErrorIs(t, err, appErrors.ErrStateConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	now := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET status = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.UpdateStatus(context.Background(), "missing", models.PaymentStatusProcessing, nil, now)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
