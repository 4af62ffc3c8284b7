package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

type shiftRepository interface {
	Create(ctx context.Context, shift *models.Shift, now time.Time) error
	FindByID(ctx context.Context, id string) (*models.Shift, error)
	FindDetailByID(ctx context.Context, id string) (*models.ShiftDetail, error)
	List(ctx context.Context, filter models.ShiftFilter) ([]models.ShiftDetail, int, error)
	Update(ctx context.Context, shift *models.Shift, now time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type projectReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const shiftCachePrefix = "shifts:list:"

// CreateShiftRequest describes shift creation.
type CreateShiftRequest struct {
	ProjectID    string    `json:"project_id" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	StartTime    string    `json:"start_time" validate:"required"`
	EndTime      string    `json:"end_time" validate:"required"`
	BreakMinutes int       `json:"break_minutes" validate:"gte=0"`
	Capacity     int       `json:"capacity" validate:"required,gt=0"`
	Notes        *string   `json:"notes,omitempty"`
}

// UpdateShiftRequest describes shift mutation.
type UpdateShiftRequest struct {
	Date         time.Time `json:"date" validate:"required"`
	StartTime    string    `json:"start_time" validate:"required"`
	EndTime      string    `json:"end_time" validate:"required"`
	BreakMinutes int       `json:"break_minutes" validate:"gte=0"`
	Capacity     int       `json:"capacity" validate:"required,gt=0"`
	Notes        *string   `json:"notes,omitempty"`
}

// ShiftService manages shift scheduling. Listing goes through the Redis
// cache; every mutation, including the approval engine's counter bump,
// invalidates the listing keys.
type ShiftService struct {
	repo      shiftRepository
	projects  projectReader
	cache     listCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewShiftService constructs ShiftService.
func NewShiftService(repo shiftRepository, projects projectReader, cache listCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger, clock Clock) *ShiftService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &ShiftService{repo: repo, projects: projects, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger, clock: clock}
}

// Create adds a shift to a project.
func (s *ShiftService) Create(ctx context.Context, req CreateShiftRequest) (*models.Shift, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shift payload")
	}

	project, err := s.projects.FindByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if req.Date.Before(project.StartDate) || req.Date.After(project.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "shift date outside project period")
	}

	shift := &models.Shift{
		ProjectID:    req.ProjectID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		BreakMinutes: req.BreakMinutes,
		Capacity:     req.Capacity,
		Notes:        req.Notes,
	}
	if err := s.repo.Create(ctx, shift, s.clock()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create shift")
	}
	s.InvalidateListings(ctx)
	return shift, nil
}

// Get returns a shift with project wage context.
func (s *ShiftService) Get(ctx context.Context, id string) (*models.ShiftDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shift not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift")
	}
	return detail, nil
}

type cachedShiftList struct {
	Rows  []models.ShiftDetail `json:"rows"`
	Total int                  `json:"total"`
}

// List returns shifts with pagination metadata, served from cache when warm.
func (s *ShiftService) List(ctx context.Context, filter models.ShiftFilter) ([]models.ShiftDetail, *models.Pagination, error) {
	key := s.cacheKey(filter)

	if s.cache != nil {
		var cached cachedShiftList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Rows, s.pagination(filter, cached.Total), nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("shift list cache read failed", zap.Error(err))
		}
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shifts")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedShiftList{Rows: rows, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("shift list cache write failed", zap.Error(err))
		}
	}
	return rows, s.pagination(filter, total), nil
}

// Update mutates a shift; capacity can never shrink below confirmed staff.
func (s *ShiftService) Update(ctx context.Context, id string, req UpdateShiftRequest) (*models.Shift, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shift payload")
	}

	shift, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shift not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift")
	}

	shift.Date = req.Date
	shift.StartTime = req.StartTime
	shift.EndTime = req.EndTime
	shift.BreakMinutes = req.BreakMinutes
	shift.Capacity = req.Capacity
	shift.Notes = req.Notes

	updated, err := s.repo.Update(ctx, shift, s.clock())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update shift")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "capacity below confirmed staff count")
	}
	s.InvalidateListings(ctx)
	return shift, nil
}

// Delete removes a shift without confirmed staff.
func (s *ShiftService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete shift")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrStateConflict, "shift has confirmed staff or does not exist")
	}
	s.InvalidateListings(ctx)
	return nil
}

// InvalidateListings drops cached shift listings. The approval engine calls
// this after every counter change so remaining-capacity numbers stay honest.
func (s *ShiftService) InvalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, shiftCachePrefix+"*"); err != nil {
		s.logger.Warn("shift list cache invalidation failed", zap.Error(err))
	}
}

func (s *ShiftService) cacheKey(filter models.ShiftFilter) string {
	from, to := "", ""
	if filter.DateFrom != nil {
		from = filter.DateFrom.Format("2006-01-02")
	}
	if filter.DateTo != nil {
		to = filter.DateTo.Format("2006-01-02")
	}
	return fmt.Sprintf("%s%s:%s:%s:%t:%d:%d:%s:%s",
		shiftCachePrefix, filter.ProjectID, from, to, filter.OnlyOpen, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func (s *ShiftService) pagination(filter models.ShiftFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
