package models

import (
	"math"
	"time"
)

// AttendanceStatus represents the lifecycle of an attendance record.
type AttendanceStatus string

const (
	AttendanceStatusPending  AttendanceStatus = "pending"
	AttendanceStatusApproved AttendanceStatus = "approved"
	AttendanceStatusRejected AttendanceStatus = "rejected"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPending, AttendanceStatusApproved, AttendanceStatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transition.
func (s AttendanceStatus) Terminal() bool {
	return s != AttendanceStatusPending
}

// Attendance records actual work performed against an approved application's
// shift. Clock-out and break minutes arrive after clock-in; the record stays
// pending until a manager approves or rejects it.
type Attendance struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	ShiftID       string           `db:"shift_id" json:"shift_id"`
	ApplicationID string           `db:"application_id" json:"application_id"`
	ClockIn       *time.Time       `db:"clock_in" json:"clock_in,omitempty"`
	ClockOut      *time.Time       `db:"clock_out" json:"clock_out,omitempty"`
	BreakMinutes  int              `db:"break_minutes" json:"break_minutes"`
	Status        AttendanceStatus `db:"status" json:"status"`
	WorkReport    *string          `db:"work_report" json:"work_report,omitempty"`
	ClockInPhoto  *string          `db:"clock_in_photo" json:"clock_in_photo,omitempty"`
	ClockOutPhoto *string          `db:"clock_out_photo" json:"clock_out_photo,omitempty"`
	// NeedsReview is set when the computed work duration went negative after
	// break subtraction and was clamped to zero. Approval of such a record
	// requires an explicit acknowledgement.
	NeedsReview bool       `db:"needs_review" json:"needs_review"`
	ApprovedBy  *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// WorkHours derives hours worked from the clock events minus break time,
// rounded to two decimals. It returns nil until both clocks are set. A
// negative duration is clamped to zero; callers must consult NeedsReview
// before treating a clamped value as payable.
func (a *Attendance) WorkHours() *float64 {
	hours, _ := ComputeWorkHours(a.ClockIn, a.ClockOut, a.BreakMinutes)
	return hours
}

// ComputeWorkHours is the single source of truth for the work-hours formula.
// The boolean result reports whether the raw duration was negative and got
// clamped.
func ComputeWorkHours(clockIn, clockOut *time.Time, breakMinutes int) (*float64, bool) {
	if clockIn == nil || clockOut == nil {
		return nil, false
	}
	minutes := clockOut.Sub(*clockIn).Minutes() - float64(breakMinutes)
	clamped := false
	if minutes < 0 {
		minutes = 0
		clamped = true
	}
	hours := math.Round(minutes/60*100) / 100
	return &hours, clamped
}

// AttendanceDetail enriches Attendance with shift and staff context.
type AttendanceDetail struct {
	Attendance
	ShiftDate    time.Time `db:"shift_date" json:"shift_date"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	ProjectTitle string    `db:"project_title" json:"project_title"`
	StaffName    string    `db:"staff_name" json:"staff_name"`
}

// AttendanceFilter scopes attendance listing queries.
type AttendanceFilter struct {
	UserID    string
	ShiftID   string
	Status    AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
