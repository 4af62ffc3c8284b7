package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

type projectRepository interface {
	Create(ctx context.Context, project *models.Project, now time.Time) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error)
	UpdateStatus(ctx context.Context, id string, status models.ProjectStatus, now time.Time) (bool, error)
}

// CreateProjectRequest describes project creation.
type CreateProjectRequest struct {
	ClientID          string    `json:"client_id" validate:"required"`
	Title             string    `json:"title" validate:"required,max=255"`
	Description       *string   `json:"description,omitempty"`
	VenueName         *string   `json:"venue_name,omitempty"`
	VenueAddress      *string   `json:"venue_address,omitempty"`
	StartDate         time.Time `json:"start_date" validate:"required"`
	EndDate           time.Time `json:"end_date" validate:"required"`
	HourlyWage        int       `json:"hourly_wage" validate:"required,gt=0"`
	TransportationFee int       `json:"transportation_fee" validate:"gte=0"`
	Requirements      *string   `json:"requirements,omitempty"`
}

// ProjectService manages client projects and their lifecycle status.
type ProjectService struct {
	repo      projectRepository
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewProjectService constructs ProjectService.
func NewProjectService(repo projectRepository, validate *validator.Validate, logger *zap.Logger, clock Clock) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	return &ProjectService{repo: repo, validator: validate, logger: logger, clock: clock}
}

// Create registers a new project for a client.
func (s *ProjectService) Create(ctx context.Context, createdBy string, req CreateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date before start date")
	}

	project := &models.Project{
		ClientID:          req.ClientID,
		CreatedBy:         createdBy,
		Title:             req.Title,
		Description:       req.Description,
		VenueName:         req.VenueName,
		VenueAddress:      req.VenueAddress,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		HourlyWage:        req.HourlyWage,
		TransportationFee: req.TransportationFee,
		Requirements:      req.Requirements,
	}
	if err := s.repo.Create(ctx, project, s.clock()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}
	return project, nil
}

// Get returns a single project.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

// List returns projects with pagination metadata.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateStatus moves a project through its lifecycle.
func (s *ProjectService) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) (*models.Project, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported project status")
	}
	updated, err := s.repo.UpdateStatus(ctx, id, status, s.clock())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project status")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}
	return s.Get(ctx, id)
}
