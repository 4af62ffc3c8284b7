package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

type mockAttendanceRepo struct {
	attendances map[string]models.Attendance
	created     *models.Attendance
}

func (m *mockAttendanceRepo) Create(ctx context.Context, att *models.Attendance, now time.Time) error {
	if m.attendances == nil {
		m.attendances = make(map[string]models.Attendance)
	}
	for _, existing := range m.attendances {
		if existing.ApplicationID == att.ApplicationID && existing.Status != models.AttendanceStatusRejected {
			return appErrors.ErrAlreadyClockedIn
		}
	}
	if att.ID == "" {
		att.ID = fmt.Sprintf("att-%d", len(m.attendances)+1)
	}
	att.Status = models.AttendanceStatusPending
	att.CreatedAt = now
	att.UpdatedAt = now
	m.attendances[att.ID] = *att
	m.created = att
	return nil
}

func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	if a, ok := m.attendances[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) SetClockOut(ctx context.Context, id string, clockOut time.Time, breakMinutes int, needsReview bool, photo *string, report *string, now time.Time) (bool, error) {
	a, ok := m.attendances[id]
	if !ok || a.ClockOut != nil || a.Status != models.AttendanceStatusPending {
		return false, nil
	}
	a.ClockOut = &clockOut
	a.BreakMinutes = breakMinutes
	a.NeedsReview = needsReview
	a.ClockOutPhoto = photo
	if report != nil {
		a.WorkReport = report
	}
	m.attendances[id] = a
	return true, nil
}

func (m *mockAttendanceRepo) Decide(ctx context.Context, id string, target models.AttendanceStatus, approverID string, report *string, acknowledgeReview bool, now time.Time) (*models.Attendance, error) {
	a, ok := m.attendances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if a.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "attendance already decided")
	}
	if target == models.AttendanceStatusApproved && (a.ClockIn == nil || a.ClockOut == nil) {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "attendance is missing clock events")
	}
	if target == models.AttendanceStatusApproved && a.NeedsReview && !acknowledgeReview {
		return nil, appErrors.Clone(appErrors.ErrIntegrityViolation, "attendance flagged for review, acknowledgement required")
	}
	a.Status = target
	a.ApprovedBy = &approverID
	a.ApprovedAt = &now
	m.attendances[id] = a
	return &a, nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	return nil, 0, nil
}

type mockApplicationReader struct {
	apps map[string]*models.Application
}

func (m *mockApplicationReader) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.apps[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func newAttendanceService(repo *mockAttendanceRepo, apps *mockApplicationReader, shifts *mockShiftReader, notify *mockNotifier, metrics *mockDomainMetrics, now time.Time) *AttendanceService {
	return NewAttendanceService(repo, apps, shifts, notify, metrics, validator.New(), zap.NewNop(), fixedClock(now), 4*time.Hour)
}

func approvedApplication(id, shiftID, userID string) *models.Application {
	return &models.Application{ID: id, ShiftID: shiftID, UserID: userID, Status: models.ApplicationStatusApproved}
}

func TestAttendanceServiceClockIn(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 55, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{}
	apps := &mockApplicationReader{apps: map[string]*models.Application{"app-1": approvedApplication("app-1", "shift-1", "staff-1")}}
	shifts := &mockShiftReader{shifts: map[string]*models.Shift{"shift-1": {ID: "shift-1", Date: now, BreakMinutes: 60, Capacity: 2}}}
	svc := newAttendanceService(repo, apps, shifts, &mockNotifier{}, &mockDomainMetrics{}, now)

	att, err := svc.ClockIn(context.Background(), "staff-1", ClockInRequest{ApplicationID: "app-1"})
	require.NoError(t, err)
	require.NotNil(t, att.ClockIn)
	assert.Equal(t, now, *att.ClockIn)
	assert.Equal(t, 60, att.BreakMinutes)
	assert.Equal(t, models.AttendanceStatusPending, att.Status)
	assert.Equal(t, now, att.CreatedAt)
}

func TestAttendanceServiceClockInRequiresApproval(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 55, 0, 0, time.UTC)
	apps := &mockApplicationReader{apps: map[string]*models.Application{
		"app-1": {ID: "app-1", ShiftID: "shift-1", UserID: "staff-1", Status: models.ApplicationStatusPending},
	}}
	svc := newAttendanceService(&mockAttendanceRepo{}, apps, &mockShiftReader{}, &mockNotifier{}, &mockDomainMetrics{}, now)

	_, err := svc.ClockIn(context.Background(), "staff-1", ClockInRequest{ApplicationID: "app-1"})
	require.ErrorIs(t, err, appErrors.ErrNotApproved)
}

func TestAttendanceServiceClockInTwice(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 55, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{}
	apps := &mockApplicationReader{apps: map[string]*models.Application{"app-1": approvedApplication("app-1", "shift-1", "staff-1")}}
	shifts := &mockShiftReader{shifts: map[string]*models.Shift{"shift-1": {ID: "shift-1", Date: now, Capacity: 2}}}
	svc := newAttendanceService(repo, apps, shifts, &mockNotifier{}, &mockDomainMetrics{}, now)

	_, err := svc.ClockIn(context.Background(), "staff-1", ClockInRequest{ApplicationID: "app-1"})
	require.NoError(t, err)

	_, err = svc.ClockIn(context.Background(), "staff-1", ClockInRequest{ApplicationID: "app-1"})
	require.ErrorIs(t, err, appErrors.ErrAlreadyClockedIn)
}

func TestAttendanceServiceClockInOutsideWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 55, 0, 0, time.UTC)
	apps := &mockApplicationReader{apps: map[string]*models.Application{"app-1": approvedApplication("app-1", "shift-1", "staff-1")}}
	shifts := &mockShiftReader{shifts: map[string]*models.Shift{"shift-1": {ID: "shift-1", Date: now.AddDate(0, 0, 7), Capacity: 2}}}
	svc := newAttendanceService(&mockAttendanceRepo{}, apps, shifts, &mockNotifier{}, &mockDomainMetrics{}, now)

	_, err := svc.ClockIn(context.Background(), "staff-1", ClockInRequest{ApplicationID: "app-1"})
	require.ErrorIs(t, err, appErrors.ErrStateConflict)
}

// 09:00 to 18:00 with a 60 minute break is exactly 8.00 hours.
func TestAttendanceServiceClockOutComputesHours(t *testing.T) {
	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clockOut := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{attendances: map[string]models.Attendance{
		"att-1": {ID: "att-1", UserID: "staff-1", ApplicationID: "app-1", ClockIn: &clockIn, Status: models.AttendanceStatusPending},
	}}
	svc := newAttendanceService(repo, &mockApplicationReader{}, &mockShiftReader{}, &mockNotifier{}, &mockDomainMetrics{}, clockOut)

	att, err := svc.ClockOut(context.Background(), "att-1", "staff-1", ClockOutRequest{BreakMinutes: 60})
	require.NoError(t, err)
	require.NotNil(t, att.WorkHours())
	assert.InDelta(t, 8.0, *att.WorkHours(), 0.001)
	assert.False(t, att.NeedsReview)
}

func TestAttendanceServiceClockOutHalfHours(t *testing.T) {
	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clockOut := time.Date(2025, 6, 1, 17, 30, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{attendances: map[string]models.Attendance{
		"att-1": {ID: "att-1", UserID: "staff-1", ApplicationID: "app-1", ClockIn: &clockIn, Status: models.AttendanceStatusPending},
	}}
	svc := newAttendanceService(repo, &mockApplicationReader{}, &mockShiftReader{}, &mockNotifier{}, &mockDomainMetrics{}, clockOut)

	att, err := svc.ClockOut(context.Background(), "att-1", "staff-1", ClockOutRequest{BreakMinutes: 30})
	require.NoError(t, err)
	require.NotNil(t, att.WorkHours())
	assert.InDelta(t, 8.0, *att.WorkHours(), 0.001)
}

func TestAttendanceServiceClockOutBeforeClockIn(t *testing.T) {
	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	earlier := clockIn.Add(-time.Minute)
	repo := &mockAttendanceRepo{attendances: map[string]models.Attendance{
		"att-1": {ID: "att-1", UserID: "staff-1", ApplicationID: "app-1", ClockIn: &clockIn, Status: models.AttendanceStatusPending},
	}}
	svc := newAttendanceService(repo, &mockApplicationReader{}, &mockShiftReader{}, &mockNotifier{}, &mockDomainMetrics{}, earlier)

	_, err := svc.ClockOut(context.Background(), "att-1", "staff-1", ClockOutRequest{})
	require.ErrorIs(t, err, appErrors.ErrInvalidClockOrder)
}

// A break longer than the worked time clamps hours to zero and flags the
// record instead of producing a negative value.
func TestAttendanceServiceClockOutClampsNegative(t *testing.T) {
	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clockOut := clockIn.Add(30 * time.Minute)
	repo := &mockAttendanceRepo{attendances: map[string]models.Attendance{
		"att-1": {ID: "att-1", UserID: "staff-1", ApplicationID: "app-1", ClockIn: &clockIn, Status: models.AttendanceStatusPending},
	}}
	metrics := &mockDomainMetrics{}
	svc := newAttendanceService(repo, &mockApplicationReader{}, &mockShiftReader{}, &mockNotifier{}, metrics, clockOut)

	att, err := svc.ClockOut(context.Background(), "att-1", "staff-1", ClockOutRequest{BreakMinutes: 60})
	require.NoError(t, err)
	assert.True(t, att.NeedsReview)
	require.NotNil(t, att.WorkHours())
	assert.Zero(t, *att.WorkHours())
	assert.Equal(t, 1, metrics.attendanceFlags)
}

func TestAttendanceServiceApproveFlaggedRequiresAcknowledgement(t *testing.T) {
	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clockOut := clockIn.Add(30 * time.Minute)
	repo := &mockAttendanceRepo{attendances: map[string]models.Attendance{
		"att-1": {ID: "att-1", UserID: "staff-1", ApplicationID: "app-1", ClockIn: &clockIn, ClockOut: &clockOut, NeedsReview: true, Status: models.AttendanceStatusPending},
	}}
	notify := &mockNotifier{}
	svc := newAttendanceService(repo, &mockApplicationReader{}, &mockShiftReader{}, notify, &mockDomainMetrics{}, clockOut)

	_, err := svc.Approve(context.Background(), "att-1", "admin-1", ApproveAttendanceRequest{})
	require.ErrorIs(t, err, appErrors.ErrIntegrityViolation)

	att, err := svc.Approve(context.Background(), "att-1", "admin-1", ApproveAttendanceRequest{AcknowledgeReview: true})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusApproved, att.Status)
	require.Len(t, notify.sent, 1)
	assert.Equal(t, models.NotificationAttendanceApproved, notify.sent[0].Type)
}

// The review flag can be set by a clock-out that lands after the approver
// last loaded the record. The decision must honour the stored flag, not any
// earlier read, so an unacknowledged approval still fails.
func TestAttendanceServiceApproveSeesFlagSetAfterRead(t *testing.T) {
	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clockOut := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{attendances: map[string]models.Attendance{
		"att-1": {ID: "att-1", UserID: "staff-1", ApplicationID: "app-1", ClockIn: &clockIn, ClockOut: &clockOut, Status: models.AttendanceStatusPending},
	}}
	svc := newAttendanceService(repo, &mockApplicationReader{}, &mockShiftReader{}, &mockNotifier{}, &mockDomainMetrics{}, clockOut)

	snapshot, err := repo.FindByID(context.Background(), "att-1")
	require.NoError(t, err)
	require.False(t, snapshot.NeedsReview)

	flagged := repo.attendances["att-1"]
	flagged.NeedsReview = true
	repo.attendances["att-1"] = flagged

	_, err = svc.Approve(context.Background(), "att-1", "admin-1", ApproveAttendanceRequest{})
	require.ErrorIs(t, err, appErrors.ErrIntegrityViolation)

	att, err := svc.Approve(context.Background(), "att-1", "admin-1", ApproveAttendanceRequest{AcknowledgeReview: true})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusApproved, att.Status)
}

func TestAttendanceServiceApproveRequiresBothClocks(t *testing.T) {
	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{attendances: map[string]models.Attendance{
		"att-1": {ID: "att-1", UserID: "staff-1", ApplicationID: "app-1", ClockIn: &clockIn, Status: models.AttendanceStatusPending},
	}}
	svc := newAttendanceService(repo, &mockApplicationReader{}, &mockShiftReader{}, &mockNotifier{}, &mockDomainMetrics{}, clockIn)

	_, err := svc.Approve(context.Background(), "att-1", "admin-1", ApproveAttendanceRequest{})
	require.ErrorIs(t, err, appErrors.ErrStateConflict)
}

func TestAttendanceServiceRejectedSlotReopens(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 55, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{}
	apps := &mockApplicationReader{apps: map[string]*models.Application{"app-1": approvedApplication("app-1", "shift-1", "staff-1")}}
	shifts := &mockShiftReader{shifts: map[string]*models.Shift{"shift-1": {ID: "shift-1", Date: now, Capacity: 2}}}
	svc := newAttendanceService(repo, apps, shifts, &mockNotifier{}, &mockDomainMetrics{}, now)

	first, err := svc.ClockIn(context.Background(), "staff-1", ClockInRequest{ApplicationID: "app-1"})
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), first.ID, "admin-1", RejectAttendanceRequest{})
	require.NoError(t, err)

	second, err := svc.ClockIn(context.Background(), "staff-1", ClockInRequest{ApplicationID: "app-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}
