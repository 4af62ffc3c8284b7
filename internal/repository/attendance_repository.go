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

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, user_id, shift_id, application_id, clock_in, clock_out, break_minutes, status, work_report, clock_in_photo, clock_out_photo, needs_review, approved_by, approved_at, created_at, updated_at`

// Create inserts a clock-in record. A partial unique index on application_id
// for non-rejected rows guards against double clock-in.
func (r *AttendanceRepository) Create(ctx context.Context, att *models.Attendance, now time.Time) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	att.Status = models.AttendanceStatusPending
	att.CreatedAt = now
	att.UpdatedAt = now
	query := `INSERT INTO attendances (id, user_id, shift_id, application_id, clock_in, break_minutes, status, clock_in_photo, needs_review, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query, att.ID, att.UserID, att.ShiftID, att.ApplicationID, att.ClockIn, att.BreakMinutes, att.Status, att.ClockInPhoto, att.CreatedAt, att.UpdatedAt); err != nil {
		return translateConflict(fmt.Errorf("create attendance: %w", err), appErrors.ErrAlreadyClockedIn)
	}
	return nil
}

// FindByID returns a single attendance record.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	var att models.Attendance
	query := fmt.Sprintf(`SELECT %s FROM attendances WHERE id = $1`, attendanceColumns)
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		return nil, err
	}
	return &att, nil
}

// SetClockOut records the clock-out event on an open pending record. The
// WHERE clause makes the write idempotent-safe: it refuses records that are
// no longer pending or already clocked out.
func (r *AttendanceRepository) SetClockOut(ctx context.Context, id string, clockOut time.Time, breakMinutes int, needsReview bool, photo *string, report *string, now time.Time) (bool, error) {
	query := `UPDATE attendances
SET clock_out = $2, break_minutes = $3, needs_review = $4, clock_out_photo = $5, work_report = $6, updated_at = $7
WHERE id = $1 AND status = 'pending' AND clock_out IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, clockOut, breakMinutes, needsReview, photo, report, now)
	if err != nil {
		return false, fmt.Errorf("set clock out: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set clock out rows: %w", err)
	}
	return affected == 1, nil
}

// Decide applies the terminal approve/reject transition. The row lock plus
// the pending check ensures exactly one terminal transition, and the
// needs_review guard reads the locked row so a clock-out that flags the
// record mid-flight cannot slip past an unacknowledged approval.
func (r *AttendanceRepository) Decide(ctx context.Context, id string, target models.AttendanceStatus, approverID string, report *string, acknowledgeReview bool, now time.Time) (*models.Attendance, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance decision: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var att models.Attendance
	query := fmt.Sprintf(`SELECT %s FROM attendances WHERE id = $1 FOR UPDATE`, attendanceColumns)
	if err := tx.GetContext(ctx, &att, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return nil, translateConflict(fmt.Errorf("lock attendance: %w", err), nil)
	}

	if att.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("attendance is %s, not pending", att.Status))
	}
	if att.ClockIn == nil || att.ClockOut == nil {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "attendance is missing clock events")
	}
	if target == models.AttendanceStatusApproved && att.NeedsReview && !acknowledgeReview {
		return nil, appErrors.Clone(appErrors.ErrIntegrityViolation, "attendance flagged for review, acknowledgement required")
	}

	att.Status = target
	att.ApprovedBy = &approverID
	att.ApprovedAt = &now
	if report != nil {
		att.WorkReport = report
	}
	att.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `UPDATE attendances SET status = $2, approved_by = $3, approved_at = $4, work_report = $5, updated_at = $6 WHERE id = $1`,
		att.ID, att.Status, att.ApprovedBy, att.ApprovedAt, att.WorkReport, att.UpdatedAt); err != nil {
		return nil, translateConflict(fmt.Errorf("update attendance: %w", err), nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, translateConflict(fmt.Errorf("commit attendance decision: %w", err), nil)
	}
	return &att, nil
}

// List returns attendance records matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := `FROM attendances a
JOIN shifts s ON s.id = a.shift_id
JOIN projects p ON p.id = s.project_id
JOIN users u ON u.id = a.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("a.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ShiftID != "" {
		where = append(where, fmt.Sprintf("a.shift_id = $%d", len(args)+1))
		args = append(args, filter.ShiftID)
	}
	if filter.Status.Valid() {
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("s.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("s.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"shift_date": "s.date",
		"clock_in":   "a.clock_in",
		"status":     "a.status",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "s.date"
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

	query := fmt.Sprintf(`SELECT a.id, a.user_id, a.shift_id, a.application_id, a.clock_in, a.clock_out, a.break_minutes, a.status, a.work_report, a.clock_in_photo, a.clock_out_photo, a.needs_review, a.approved_by, a.approved_at, a.created_at, a.updated_at,
s.date AS shift_date, s.start_time, s.end_time, p.title AS project_title, u.full_name AS staff_name
%s WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendances: %w", err)
	}
	return rows, total, nil
}
