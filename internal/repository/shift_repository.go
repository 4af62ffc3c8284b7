package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/staffops/staffing-api/internal/models"
)

// ShiftRepository handles persistence for shifts. The confirmed_count column
// is never written here directly; only the application approval transaction
// in ApplicationRepository mutates it.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository constructs the repository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

const shiftColumns = `id, project_id, date, start_time, end_time, break_minutes, capacity, confirmed_count, notes, created_at, updated_at`

// Create inserts a new shift.
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift, now time.Time) error {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	shift.CreatedAt = now
	shift.UpdatedAt = now
	query := `INSERT INTO shifts (id, project_id, date, start_time, end_time, break_minutes, capacity, confirmed_count, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query, shift.ID, shift.ProjectID, shift.Date, shift.StartTime, shift.EndTime,
		shift.BreakMinutes, shift.Capacity, shift.Notes, shift.CreatedAt, shift.UpdatedAt); err != nil {
		return fmt.Errorf("create shift: %w", err)
	}
	return nil
}

// FindByID returns a single shift.
func (r *ShiftRepository) FindByID(ctx context.Context, id string) (*models.Shift, error) {
	var shift models.Shift
	query := fmt.Sprintf(`SELECT %s FROM shifts WHERE id = $1`, shiftColumns)
	if err := r.db.GetContext(ctx, &shift, query, id); err != nil {
		return nil, err
	}
	return &shift, nil
}

// FindDetailByID returns a shift enriched with project wage context.
func (r *ShiftRepository) FindDetailByID(ctx context.Context, id string) (*models.ShiftDetail, error) {
	var detail models.ShiftDetail
	query := `SELECT s.id, s.project_id, s.date, s.start_time, s.end_time, s.break_minutes, s.capacity, s.confirmed_count, s.notes, s.created_at, s.updated_at,
p.title AS project_title, p.hourly_wage, p.transportation_fee
FROM shifts s
JOIN projects p ON p.id = s.project_id
WHERE s.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns shifts matching the provided filter.
func (r *ShiftRepository) List(ctx context.Context, filter models.ShiftFilter) ([]models.ShiftDetail, int, error) {
	base := `FROM shifts s JOIN projects p ON p.id = s.project_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ProjectID != "" {
		where = append(where, fmt.Sprintf("s.project_id = $%d", len(args)+1))
		args = append(args, filter.ProjectID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("s.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("s.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.OnlyOpen {
		where = append(where, "s.confirmed_count < s.capacity")
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"date":       "s.date",
		"created_at": "s.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "s.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT s.id, s.project_id, s.date, s.start_time, s.end_time, s.break_minutes, s.capacity, s.confirmed_count, s.notes, s.created_at, s.updated_at,
p.title AS project_title, p.hourly_wage, p.transportation_fee
%s WHERE %s
ORDER BY %s %s, s.start_time ASC
LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.ShiftDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list shifts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count shifts: %w", err)
	}
	return rows, total, nil
}

// Update mutates the schedulable attributes of a shift. Capacity may only
// shrink down to the confirmed count, enforced by the WHERE clause.
func (r *ShiftRepository) Update(ctx context.Context, shift *models.Shift, now time.Time) (bool, error) {
	shift.UpdatedAt = now
	query := `UPDATE shifts
SET date = $2, start_time = $3, end_time = $4, break_minutes = $5, capacity = $6, notes = $7, updated_at = $8
WHERE id = $1 AND confirmed_count <= $6`
	res, err := r.db.ExecContext(ctx, query, shift.ID, shift.Date, shift.StartTime, shift.EndTime,
		shift.BreakMinutes, shift.Capacity, shift.Notes, shift.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update shift: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update shift rows: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a shift that has no confirmed staff.
func (r *ShiftRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = $1 AND confirmed_count = 0`, id)
	if err != nil {
		return false, fmt.Errorf("delete shift: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete shift rows: %w", err)
	}
	return affected == 1, nil
}
