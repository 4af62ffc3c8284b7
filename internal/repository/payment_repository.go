package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

// PaymentRepository handles persistence for payments and their line items.
// Settlement runs entirely inside one transaction: eligible attendance rows
// are selected FOR UPDATE, the caller computes the ledger entry, and payment
// plus details are inserted before commit. The unique constraint on
// payment_details.attendance_id is the claim that makes retries and
// overlapping runs safe.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, period_start, period_end, base_amount, transportation_amount, deduction_amount, total_amount, status, paid_at, created_at, updated_at`

// BuildFunc turns the locked eligible attendance set into a payment and its
// details. Returning an error aborts the transaction with no side effects.
type BuildFunc func(eligible []models.SettleableAttendance) (*models.Payment, []models.PaymentDetail, error)

// Generate runs one settlement transaction for a staff member and period.
func (r *PaymentRepository) Generate(ctx context.Context, userID string, periodStart, periodEnd time.Time, build BuildFunc) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Lock eligible rows so a concurrent run for an overlapping period
	// blocks here instead of double-selecting.
	var eligible []models.SettleableAttendance
	query := `SELECT a.id, a.user_id, a.shift_id, s.date AS shift_date, a.clock_in, a.clock_out, a.break_minutes, a.needs_review
FROM attendances a
JOIN shifts s ON s.id = a.shift_id
WHERE a.user_id = $1
  AND a.status = 'approved'
  AND s.date BETWEEN $2 AND $3
  AND NOT EXISTS (SELECT 1 FROM payment_details pd WHERE pd.attendance_id = a.id)
ORDER BY s.date ASC
FOR UPDATE OF a`
	if err := tx.SelectContext(ctx, &eligible, query, userID, periodStart, periodEnd); err != nil {
		return nil, translateConflict(fmt.Errorf("select eligible attendance: %w", err), nil)
	}

	payment, details, err := build(eligible)
	if err != nil {
		return nil, err
	}

	insertPayment := `INSERT INTO payments (id, user_id, period_start, period_end, base_amount, transportation_amount, deduction_amount, total_amount, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.ExecContext(ctx, insertPayment, payment.ID, payment.UserID, payment.PeriodStart, payment.PeriodEnd,
		payment.BaseAmount, payment.TransportationAmount, payment.DeductionAmount, payment.TotalAmount,
		payment.Status, payment.CreatedAt, payment.UpdatedAt); err != nil {
		return nil, translateConflict(fmt.Errorf("insert payment: %w", err), nil)
	}

	insertDetail := `INSERT INTO payment_details (id, payment_id, attendance_id, work_hours, hourly_wage, amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, d := range details {
		if _, err := tx.ExecContext(ctx, insertDetail, d.ID, d.PaymentID, d.AttendanceID, d.WorkHours, d.HourlyWage, d.Amount, d.CreatedAt); err != nil {
			// A unique violation here means another run claimed the
			// attendance between our lock and insert; retryable.
			return nil, translateConflict(fmt.Errorf("insert payment detail: %w", err), appErrors.ErrConcurrencyConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, translateConflict(fmt.Errorf("commit settlement: %w", err), nil)
	}
	return payment, nil
}

// FindByID returns a payment with its details.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentWithDetails, error) {
	var payment models.Payment
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}

	var details []models.PaymentDetail
	detailQuery := `SELECT id, payment_id, attendance_id, work_hours, hourly_wage, amount, created_at
FROM payment_details WHERE payment_id = $1 ORDER BY created_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &details, detailQuery, id); err != nil {
		return nil, fmt.Errorf("list payment details: %w", err)
	}
	return &models.PaymentWithDetails{Payment: payment, Details: details}, nil
}

// List returns payments matching the provided filter.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("period_end >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("period_start <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"period_start": "period_start",
		"created_at":   "created_at",
		"total_amount": "total_amount",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "period_start"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		paymentColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.Payment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payments WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return rows, total, nil
}

// UpdateStatus moves a payment along pending → processing → completed. The
// guard in the WHERE clause rejects transitions out of completed, keeping
// finished ledger entries immutable.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, target models.PaymentStatus, paidAt *time.Time, now time.Time) (*models.Payment, error) {
	var payment models.Payment
	query := fmt.Sprintf(`UPDATE payments SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = $4
WHERE id = $1 AND status IN ('pending', 'processing')
RETURNING %s`, paymentColumns)
	err := r.db.GetContext(ctx, &payment, query, id, target, paidAt, now)
	if err == nil {
		return &payment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	// Distinguish missing from already completed.
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("check payment: %w", err)
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	return nil, appErrors.Clone(appErrors.ErrStateConflict, "payment already completed")
}
