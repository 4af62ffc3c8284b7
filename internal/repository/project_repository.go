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

// ProjectRepository handles persistence for client projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, client_id, created_by, title, description, venue_name, venue_address, start_date, end_date, hourly_wage, transportation_fee, requirements, status, created_at, updated_at`

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project, now time.Time) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	query := `INSERT INTO projects (id, client_id, created_by, title, description, venue_name, venue_address, start_date, end_date, hourly_wage, transportation_fee, requirements, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	if _, err := r.db.ExecContext(ctx, query, project.ID, project.ClientID, project.CreatedBy, project.Title, project.Description,
		project.VenueName, project.VenueAddress, project.StartDate, project.EndDate, project.HourlyWage,
		project.TransportationFee, project.Requirements, project.Status, project.CreatedAt, project.UpdatedAt); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// FindByID returns a single project.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns projects matching the provided filter.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClientID != "" {
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"start_date": "start_date",
		"title":      "title",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "start_date"
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

	query := fmt.Sprintf(`SELECT %s FROM projects WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		projectColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.Project
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM projects WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}
	return rows, total, nil
}

// UpdateStatus changes the project lifecycle status.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now)
	if err != nil {
		return false, fmt.Errorf("update project status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update project status rows: %w", err)
	}
	return affected == 1, nil
}
