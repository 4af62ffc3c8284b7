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

type attendanceRepository interface {
	Create(ctx context.Context, att *models.Attendance, now time.Time) error
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	SetClockOut(ctx context.Context, id string, clockOut time.Time, breakMinutes int, needsReview bool, photo *string, report *string, now time.Time) (bool, error)
	Decide(ctx context.Context, id string, target models.AttendanceStatus, approverID string, report *string, acknowledgeReview bool, now time.Time) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
}

type applicationReader interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

type attendanceMetrics interface {
	IncAttendanceDecision(status string)
	IncAttendanceFlagged()
}

// ClockInRequest starts an attendance record for an approved application.
type ClockInRequest struct {
	ApplicationID string     `json:"application_id" validate:"required"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	PhotoRef      *string    `json:"photo_ref,omitempty"`
}

// ClockOutRequest closes the open attendance record.
type ClockOutRequest struct {
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	BreakMinutes int        `json:"break_minutes" validate:"gte=0"`
	PhotoRef     *string    `json:"photo_ref,omitempty"`
	WorkReport   *string    `json:"work_report,omitempty"`
}

// ApproveAttendanceRequest acknowledges flagged records when needed.
type ApproveAttendanceRequest struct {
	// AcknowledgeReview must be set to approve a record whose work hours
	// were clamped to zero; approving it without acknowledgement is an
	// integrity violation.
	AcknowledgeReview bool `json:"acknowledge_review"`
}

// RejectAttendanceRequest carries the manager's rejection notes.
type RejectAttendanceRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// AttendanceService runs the clock-in/clock-out/approval lifecycle.
type AttendanceService struct {
	repo         attendanceRepository
	applications applicationReader
	shifts       shiftReader
	notify       notifier
	metrics      attendanceMetrics
	validator    *validator.Validate
	logger       *zap.Logger
	clock        Clock
	clockInGrace time.Duration
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, applications applicationReader, shifts shiftReader, notify notifier, metrics attendanceMetrics, validate *validator.Validate, logger *zap.Logger, clock Clock, clockInGrace time.Duration) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = defaultClock
	}
	if clockInGrace < 0 {
		clockInGrace = 0
	}
	return &AttendanceService{
		repo:         repo,
		applications: applications,
		shifts:       shifts,
		notify:       notify,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		clock:        clock,
		clockInGrace: clockInGrace,
	}
}

// ClockIn opens an attendance record against an approved application.
func (s *AttendanceService) ClockIn(ctx context.Context, userID string, req ClockInRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clock-in payload")
	}

	app, err := s.applications.FindByID(ctx, req.ApplicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another staff member")
	}
	if app.Status != models.ApplicationStatusApproved {
		return nil, appErrors.ErrNotApproved
	}

	shift, err := s.shifts.FindByID(ctx, app.ShiftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shift not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift")
	}

	ts := s.clock()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	if !s.withinShiftWindow(shift.Date, ts) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "shift is not scheduled for this time")
	}

	att := &models.Attendance{
		UserID:        app.UserID,
		ShiftID:       app.ShiftID,
		ApplicationID: app.ID,
		ClockIn:       &ts,
		BreakMinutes:  shift.BreakMinutes,
		ClockInPhoto:  req.PhotoRef,
	}
	if err := s.repo.Create(ctx, att, s.clock()); err != nil {
		if errors.Is(err, appErrors.ErrAlreadyClockedIn) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attendance")
	}
	return att, nil
}

// ClockOut closes the open attendance record and fixes the break time.
func (s *AttendanceService) ClockOut(ctx context.Context, attendanceID, userID string, req ClockOutRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clock-out payload")
	}

	att, err := s.repo.FindByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if att.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "attendance belongs to another staff member")
	}
	if att.ClockIn == nil {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "attendance has no clock-in")
	}
	if att.ClockOut != nil {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "attendance already clocked out")
	}

	ts := s.clock()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	if !ts.After(*att.ClockIn) {
		return nil, appErrors.ErrInvalidClockOrder
	}

	_, clamped := models.ComputeWorkHours(att.ClockIn, &ts, req.BreakMinutes)
	if clamped {
		s.logger.Error("work duration clamped to zero, flagging for review",
			zap.String("attendance_id", att.ID),
			zap.Int("break_minutes", req.BreakMinutes))
		if s.metrics != nil {
			s.metrics.IncAttendanceFlagged()
		}
	}

	updated, err := s.repo.SetClockOut(ctx, att.ID, ts, req.BreakMinutes, clamped, req.PhotoRef, req.WorkReport, s.clock())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record clock-out")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "attendance is no longer open")
	}

	att.ClockOut = &ts
	att.BreakMinutes = req.BreakMinutes
	att.NeedsReview = clamped
	att.ClockOutPhoto = req.PhotoRef
	if req.WorkReport != nil {
		att.WorkReport = req.WorkReport
	}
	return att, nil
}

// Approve confirms pending attendance with both clock events present. The
// review-flag check lives in the repository's decision transaction; passing
// the acknowledgement through keeps it race-free against concurrent
// clock-outs that flag the record.
func (s *AttendanceService) Approve(ctx context.Context, attendanceID, approverID string, req ApproveAttendanceRequest) (*models.Attendance, error) {
	att, err := s.repo.Decide(ctx, attendanceID, models.AttendanceStatusApproved, approverID, nil, req.AcknowledgeReview, s.clock())
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncAttendanceDecision(string(models.AttendanceStatusApproved))
	}
	s.dispatch(models.NotificationAttendanceApproved, att.UserID, att.ID, "your attendance was approved")
	return att, nil
}

// Reject declines pending attendance.
func (s *AttendanceService) Reject(ctx context.Context, attendanceID, approverID string, req RejectAttendanceRequest) (*models.Attendance, error) {
	att, err := s.repo.Decide(ctx, attendanceID, models.AttendanceStatusRejected, approverID, req.Notes, false, s.clock())
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncAttendanceDecision(string(models.AttendanceStatusRejected))
	}
	s.dispatch(models.NotificationAttendanceRejected, att.UserID, att.ID, "your attendance was rejected")
	return att, nil
}

// List returns attendance records with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
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

// withinShiftWindow checks the timestamp against the shift date with the
// configured grace on both sides, covering shifts that cross midnight.
func (s *AttendanceService) withinShiftWindow(shiftDate, ts time.Time) bool {
	dayStart := time.Date(shiftDate.Year(), shiftDate.Month(), shiftDate.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := dayStart.Add(-s.clockInGrace)
	windowEnd := dayStart.Add(24 * time.Hour).Add(s.clockInGrace)
	return !ts.Before(windowStart) && ts.Before(windowEnd)
}

func (s *AttendanceService) dispatch(t models.NotificationType, userID, resourceID, message string) {
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
