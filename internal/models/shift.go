package models

import "time"

// Shift is a dated, capacity-bounded work slot under a project. The
// confirmed_count column is written only by the application approval engine,
// always inside the same transaction that flips the application status.
type Shift struct {
	ID             string    `db:"id" json:"id"`
	ProjectID      string    `db:"project_id" json:"project_id"`
	Date           time.Time `db:"date" json:"date"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	BreakMinutes   int       `db:"break_minutes" json:"break_minutes"`
	Capacity       int       `db:"capacity" json:"capacity"`
	ConfirmedCount int       `db:"confirmed_count" json:"confirmed_count"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// HasCapacity reports whether another application can still be approved.
func (s *Shift) HasCapacity() bool {
	return s.ConfirmedCount < s.Capacity
}

// RemainingCapacity returns how many slots are still open.
func (s *Shift) RemainingCapacity() int {
	return s.Capacity - s.ConfirmedCount
}

// ClosedAt reports whether the shift date has passed relative to now.
func (s *Shift) ClosedAt(now time.Time) bool {
	shiftDay := time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return shiftDay.Before(today)
}

// ShiftDetail enriches Shift with project wage context used by listings and
// settlement defaults.
type ShiftDetail struct {
	Shift
	ProjectTitle      string `db:"project_title" json:"project_title"`
	HourlyWage        int    `db:"hourly_wage" json:"hourly_wage"`
	TransportationFee int    `db:"transportation_fee" json:"transportation_fee"`
}

// ShiftFilter scopes shift listing queries.
type ShiftFilter struct {
	ProjectID string
	DateFrom  *time.Time
	DateTo    *time.Time
	OnlyOpen  bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
