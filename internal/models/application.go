package models

import "time"

// ApplicationStatus represents the lifecycle of a shift application.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusCancelled ApplicationStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transition.
func (s ApplicationStatus) Terminal() bool {
	return s != ApplicationStatusPending
}

// CanTransition reports whether moving to the target status is legal.
// Every terminal status is reachable from pending only, so transitions are
// monotonic and happen at most once.
func (s ApplicationStatus) CanTransition(to ApplicationStatus) bool {
	return s == ApplicationStatusPending && to.Valid() && to != ApplicationStatusPending
}

// Application is a staff member's request to work a specific shift.
type Application struct {
	ID          string            `db:"id" json:"id"`
	ShiftID     string            `db:"shift_id" json:"shift_id"`
	UserID      string            `db:"user_id" json:"user_id"`
	Status      ApplicationStatus `db:"status" json:"status"`
	AppliedAt   time.Time         `db:"applied_at" json:"applied_at"`
	ProcessedAt *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy *string           `db:"processed_by" json:"processed_by,omitempty"`
	Notes       *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail enriches Application with shift and applicant context.
type ApplicationDetail struct {
	Application
	ShiftDate     time.Time `db:"shift_date" json:"shift_date"`
	StartTime     string    `db:"start_time" json:"start_time"`
	EndTime       string    `db:"end_time" json:"end_time"`
	ProjectTitle  string    `db:"project_title" json:"project_title"`
	ApplicantName string    `db:"applicant_name" json:"applicant_name"`
}

// ApplicationFilter scopes application listing queries.
type ApplicationFilter struct {
	ShiftID   string
	UserID    string
	Status    ApplicationStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
