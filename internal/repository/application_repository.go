package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

// ApplicationRepository handles persistence for shift applications. The
// approval path is the only writer of shifts.confirmed_count; it always locks
// the shift row before touching the application row, so concurrent approvals
// on the same shift serialize on one critical section and the capacity
// invariant holds under arbitrary interleaving.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, shift_id, user_id, status, applied_at, processed_at, processed_by, notes, created_at, updated_at`

// Create inserts a pending application. A partial unique index on
// (shift_id, user_id) for non-terminal statuses backs the duplicate guard.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application, now time.Time) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.Status = models.ApplicationStatusPending
	app.CreatedAt = now
	app.UpdatedAt = now
	query := `INSERT INTO shift_applications (id, shift_id, user_id, status, applied_at, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, app.ID, app.ShiftID, app.UserID, app.Status, app.AppliedAt, app.Notes, app.CreatedAt, app.UpdatedAt); err != nil {
		return translateConflict(fmt.Errorf("create application: %w", err), appErrors.ErrDuplicateApplication)
	}
	return nil
}

// FindByID returns a single application.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	query := fmt.Sprintf(`SELECT %s FROM shift_applications WHERE id = $1`, applicationColumns)
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// ExistsOpen reports whether the user already has a pending or approved
// application for the shift.
func (r *ApplicationRepository) ExistsOpen(ctx context.Context, shiftID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
SELECT 1 FROM shift_applications
WHERE shift_id = $1 AND user_id = $2 AND status IN ('pending', 'approved'))`
	if err := r.db.GetContext(ctx, &exists, query, shiftID, userID); err != nil {
		return false, fmt.Errorf("check open application: %w", err)
	}
	return exists, nil
}

// List returns applications matching the provided filter.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM shift_applications a
JOIN shifts s ON s.id = a.shift_id
JOIN projects p ON p.id = s.project_id
JOIN users u ON u.id = a.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ShiftID != "" {
		where = append(where, fmt.Sprintf("a.shift_id = $%d", len(args)+1))
		args = append(args, filter.ShiftID)
	}
	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("a.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status.Valid() {
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"applied_at": "a.applied_at",
		"shift_date": "s.date",
		"status":     "a.status",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "a.applied_at"
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

	query := fmt.Sprintf(`SELECT a.id, a.shift_id, a.user_id, a.status, a.applied_at, a.processed_at, a.processed_by, a.notes, a.created_at, a.updated_at,
s.date AS shift_date, s.start_time, s.end_time, p.title AS project_title, u.full_name AS applicant_name
%s WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return rows, total, nil
}

// Approve flips a pending application to approved and increments the shift
// counter in one transaction. Lock order is shift first, then application.
func (r *ApplicationRepository) Approve(ctx context.Context, applicationID, approverID string, now time.Time) (*models.Application, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var shiftID string
	if err := tx.GetContext(ctx, &shiftID, `SELECT shift_id FROM shift_applications WHERE id = $1`, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, fmt.Errorf("resolve application shift: %w", err)
	}

	var shift models.Shift
	if err := tx.GetContext(ctx, &shift, fmt.Sprintf(`SELECT %s FROM shifts WHERE id = $1 FOR UPDATE`, shiftColumns), shiftID); err != nil {
		return nil, translateConflict(fmt.Errorf("lock shift: %w", err), nil)
	}

	var app models.Application
	query := fmt.Sprintf(`SELECT %s FROM shift_applications WHERE id = $1 FOR UPDATE`, applicationColumns)
	if err := tx.GetContext(ctx, &app, query, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, translateConflict(fmt.Errorf("lock application: %w", err), nil)
	}

	if !app.Status.CanTransition(models.ApplicationStatusApproved) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("application is %s, not pending", app.Status))
	}
	if !shift.HasCapacity() {
		return nil, appErrors.ErrCapacityExceeded
	}

	app.Status = models.ApplicationStatusApproved
	app.ProcessedAt = &now
	app.ProcessedBy = &approverID
	app.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `UPDATE shift_applications SET status = $2, processed_at = $3, processed_by = $4, updated_at = $5 WHERE id = $1`,
		app.ID, app.Status, app.ProcessedAt, app.ProcessedBy, app.UpdatedAt); err != nil {
		return nil, translateConflict(fmt.Errorf("approve application: %w", err), nil)
	}

	res, err := tx.ExecContext(ctx, `UPDATE shifts SET confirmed_count = confirmed_count + 1, updated_at = $2 WHERE id = $1 AND confirmed_count < capacity`,
		shift.ID, now)
	if err != nil {
		return nil, translateConflict(fmt.Errorf("increment confirmed count: %w", err), nil)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment confirmed count rows: %w", err)
	}
	if affected != 1 {
		// The FOR UPDATE read already proved capacity; this can only mean
		// the counter moved outside the lock.
		return nil, appErrors.Clone(appErrors.ErrIntegrityViolation, "confirmed count drifted past capacity")
	}

	if err := tx.Commit(); err != nil {
		return nil, translateConflict(fmt.Errorf("commit approve: %w", err), nil)
	}
	return &app, nil
}

// decide applies a terminal, non-approving transition to a pending
// application. No capacity change is involved.
func (r *ApplicationRepository) decide(ctx context.Context, applicationID string, target models.ApplicationStatus, processedBy *string, notes *string, now time.Time) (*models.Application, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decision: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var app models.Application
	query := fmt.Sprintf(`SELECT %s FROM shift_applications WHERE id = $1 FOR UPDATE`, applicationColumns)
	if err := tx.GetContext(ctx, &app, query, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, translateConflict(fmt.Errorf("lock application: %w", err), nil)
	}

	if !app.Status.CanTransition(target) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("application is %s, not pending", app.Status))
	}

	app.Status = target
	app.ProcessedAt = &now
	app.ProcessedBy = processedBy
	if notes != nil {
		app.Notes = notes
	}
	app.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `UPDATE shift_applications SET status = $2, processed_at = $3, processed_by = $4, notes = $5, updated_at = $6 WHERE id = $1`,
		app.ID, app.Status, app.ProcessedAt, app.ProcessedBy, app.Notes, app.UpdatedAt); err != nil {
		return nil, translateConflict(fmt.Errorf("update application: %w", err), nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, translateConflict(fmt.Errorf("commit decision: %w", err), nil)
	}
	return &app, nil
}

// Reject flips a pending application to rejected.
func (r *ApplicationRepository) Reject(ctx context.Context, applicationID, approverID string, notes *string, now time.Time) (*models.Application, error) {
	return r.decide(ctx, applicationID, models.ApplicationStatusRejected, &approverID, notes, now)
}

// Cancel flips a pending application to cancelled (staff initiated).
func (r *ApplicationRepository) Cancel(ctx context.Context, applicationID string, now time.Time) (*models.Application, error) {
	return r.decide(ctx, applicationID, models.ApplicationStatusCancelled, nil, nil, now)
}
