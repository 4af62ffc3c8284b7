package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/staffops/staffing-api/internal/models"
)

// AvailabilityRepository handles persistence for staff availability marks.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Upsert inserts or updates the availability for a user/date pair.
func (r *AvailabilityRepository) Upsert(ctx context.Context, av *models.StaffAvailability, now time.Time) (*models.StaffAvailability, error) {
	if av.ID == "" {
		av.ID = uuid.NewString()
	}
	if av.CreatedAt.IsZero() {
		av.CreatedAt = now
	}
	av.UpdatedAt = now
	query := `INSERT INTO staff_availabilities (id, user_id, date, is_available, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, date)
DO UPDATE SET is_available = EXCLUDED.is_available, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
RETURNING id, user_id, date, is_available, notes, created_at, updated_at`
	var stored models.StaffAvailability
	if err := r.db.GetContext(ctx, &stored, query, av.ID, av.UserID, av.Date, av.IsAvailable, av.Notes, av.CreatedAt, av.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert availability: %w", err)
	}
	return &stored, nil
}

// ListByUser returns availability marks for a user within an optional range.
func (r *AvailabilityRepository) ListByUser(ctx context.Context, userID string, from, to *time.Time) ([]models.StaffAvailability, error) {
	where := "user_id = $1"
	args := []interface{}{userID}
	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT id, user_id, date, is_available, notes, created_at, updated_at
FROM staff_availabilities WHERE %s ORDER BY date ASC`, where)
	var rows []models.StaffAvailability
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return rows, nil
}
