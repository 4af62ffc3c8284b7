package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/staffops/staffing-api/internal/models"
	"github.com/staffops/staffing-api/internal/repository"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

type applicationRepository interface {
	Create(ctx context.Context, app *models.Application, now time.Time) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ExistsOpen(ctx context.Context, shiftID, userID string) (bool, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	Approve(ctx context.Context, applicationID, approverID string, now time.Time) (*models.Application, error)
	Reject(ctx context.Context, applicationID, approverID string, notes *string, now time.Time) (*models.Application, error)
	Cancel(ctx context.Context, applicationID string, now time.Time) (*models.Application, error)
}

type shiftReader interface {
	FindByID(ctx context.Context, id string) (*models.Shift, error)
}

type notifier interface {
	Dispatch(n models.Notification)
}

type domainMetrics interface {
	IncApplicationDecision(status string)
	IncCapacityConflict()
}

type listingInvalidator interface {
	InvalidateListings(ctx context.Context)
}

// ApplyRequest describes a staff member applying to a shift.
type ApplyRequest struct {
	ShiftID string  `json:"shift_id" validate:"required"`
	Notes   *string `json:"notes,omitempty"`
}

// RejectApplicationRequest carries the manager's rejection notes.
type RejectApplicationRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// ApplicationService runs the shift application lifecycle. Approval is the
// hot path: the repository serializes it per shift, and this layer retries
// bounded times when the database reports a concurrency conflict.
type ApplicationService struct {
	repo       applicationRepository
	shifts     shiftReader
	notify     notifier
	metrics    domainMetrics
	listings   listingInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	clock      Clock
	maxRetries int
	retryDelay time.Duration
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, shifts shiftReader, notify notifier, metrics domainMetrics, listings listingInvalidator, validate *validator.Validate, logger *zap.Logger, clock Clock) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	return &ApplicationService{
		repo:       repo,
		shifts:     shifts,
		notify:     notify,
		metrics:    metrics,
		listings:   listings,
		validator:  validate,
		logger:     logger,
		clock:      clock,
		maxRetries: 3,
		retryDelay: 50 * time.Millisecond,
	}
}

// SetRetryPolicy overrides the bounded retry used for concurrency conflicts.
func (s *ApplicationService) SetRetryPolicy(maxRetries int, delay time.Duration) {
	if maxRetries > 0 {
		s.maxRetries = maxRetries
	}
	if delay > 0 {
		s.retryDelay = delay
	}
}

// Apply creates a pending application for the given staff member.
func (s *ApplicationService) Apply(ctx context.Context, userID string, req ApplyRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	shift, err := s.shifts.FindByID(ctx, req.ShiftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shift not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift")
	}

	now := s.clock()
	if shift.ClosedAt(now) {
		return nil, appErrors.ErrShiftClosed
	}

	exists, err := s.repo.ExistsOpen(ctx, req.ShiftID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing applications")
	}
	if exists {
		return nil, appErrors.ErrDuplicateApplication
	}

	app := &models.Application{
		ShiftID:   req.ShiftID,
		UserID:    userID,
		AppliedAt: now,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, app, now); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateApplication) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	return app, nil
}

// Approve admits a pending application, incrementing the shift counter. The
// whole check-and-increment runs as one serialized unit per shift inside the
// repository; only concurrency conflicts are retried here.
func (s *ApplicationService) Approve(ctx context.Context, applicationID, approverID string) (*models.Application, error) {
	var app *models.Application
	var err error
	for attempt := 0; ; attempt++ {
		app, err = s.repo.Approve(ctx, applicationID, approverID, s.clock())
		if err == nil {
			break
		}
		if !repository.IsRetryable(err) || attempt >= s.maxRetries {
			if errors.Is(err, appErrors.ErrCapacityExceeded) && s.metrics != nil {
				s.metrics.IncCapacityConflict()
			}
			return nil, err
		}
		s.logger.Warn("approve conflicted, retrying",
			zap.String("application_id", applicationID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "approve cancelled")
		case <-time.After(s.retryDelay * time.Duration(attempt+1)):
		}
	}

	if s.metrics != nil {
		s.metrics.IncApplicationDecision(string(models.ApplicationStatusApproved))
	}
	if s.listings != nil {
		s.listings.InvalidateListings(ctx)
	}
	s.dispatch(models.NotificationApplicationApproved, app.UserID, app.ID, "your shift application was approved")
	return app, nil
}

// Reject declines a pending application. No capacity change.
func (s *ApplicationService) Reject(ctx context.Context, applicationID, approverID string, req RejectApplicationRequest) (*models.Application, error) {
	app, err := s.repo.Reject(ctx, applicationID, approverID, req.Notes, s.clock())
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncApplicationDecision(string(models.ApplicationStatusRejected))
	}
	s.dispatch(models.NotificationApplicationRejected, app.UserID, app.ID, "your shift application was rejected")
	return app, nil
}

// Cancel withdraws a pending application. Only the applicant may cancel.
func (s *ApplicationService) Cancel(ctx context.Context, applicationID, userID string) (*models.Application, error) {
	existing, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if existing.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the applicant may cancel")
	}
	return s.repo.Cancel(ctx, applicationID, s.clock())
}

// List returns applications with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ApplicationService) dispatch(t models.NotificationType, userID, resourceID, message string) {
	if s.notify == nil {
		return
	}
	s.notify.Dispatch(models.Notification{
		Type:       t,
		UserID:     userID,
		ResourceID: resourceID,
		Message:    message,
		OccurredAt: s.clock(),
	})
}
