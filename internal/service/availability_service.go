package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

type availabilityRepository interface {
	Upsert(ctx context.Context, av *models.StaffAvailability, now time.Time) (*models.StaffAvailability, error)
	ListByUser(ctx context.Context, userID string, from, to *time.Time) ([]models.StaffAvailability, error)
}

// SetAvailabilityRequest marks a single calendar date.
type SetAvailabilityRequest struct {
	Date        time.Time `json:"date" validate:"required"`
	IsAvailable bool      `json:"is_available"`
	Notes       *string   `json:"notes,omitempty"`
}

// AvailabilityService maintains the staff availability calendar.
type AvailabilityService struct {
	repo      availabilityRepository
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewAvailabilityService constructs AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, validate *validator.Validate, logger *zap.Logger, clock Clock) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	return &AvailabilityService{repo: repo, validator: validate, logger: logger, clock: clock}
}

// Set records availability for one date. Repeated calls for the same date
// overwrite the previous mark.
func (s *AvailabilityService) Set(ctx context.Context, userID string, req SetAvailabilityRequest) (*models.StaffAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	stored, err := s.repo.Upsert(ctx, &models.StaffAvailability{
		UserID:      userID,
		Date:        req.Date,
		IsAvailable: req.IsAvailable,
		Notes:       req.Notes,
	}, s.clock())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store availability")
	}
	return stored, nil
}

// SetRange applies the same mark to every day in [from, to].
func (s *AvailabilityService) SetRange(ctx context.Context, userID string, from, to time.Time, isAvailable bool, notes *string) ([]models.StaffAvailability, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end before range start")
	}
	if to.Sub(from) > 92*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range exceeds 92 days")
	}

	now := s.clock()
	var stored []models.StaffAvailability
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		row, err := s.repo.Upsert(ctx, &models.StaffAvailability{
			UserID:      userID,
			Date:        d,
			IsAvailable: isAvailable,
			Notes:       notes,
		}, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store availability range")
		}
		stored = append(stored, *row)
	}
	return stored, nil
}

// List returns the calendar for a user, optionally bounded by dates.
func (s *AvailabilityService) List(ctx context.Context, userID string, from, to *time.Time) ([]models.StaffAvailability, error) {
	rows, err := s.repo.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return rows, nil
}
