package models

import "time"

// ProjectStatus represents the lifecycle of a client project.
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusPublished ProjectStatus = "published"
	ProjectStatusClosed    ProjectStatus = "closed"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// Valid returns true when the status is a supported value.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusPublished, ProjectStatusClosed, ProjectStatusCompleted:
		return true
	default:
		return false
	}
}

// Project is a client engagement that owns shifts. Its hourly wage and
// transportation fee serve as settlement defaults for work done on its shifts.
type Project struct {
	ID                string        `db:"id" json:"id"`
	ClientID          string        `db:"client_id" json:"client_id"`
	CreatedBy         string        `db:"created_by" json:"created_by"`
	Title             string        `db:"title" json:"title"`
	Description       *string       `db:"description" json:"description,omitempty"`
	VenueName         *string       `db:"venue_name" json:"venue_name,omitempty"`
	VenueAddress      *string       `db:"venue_address" json:"venue_address,omitempty"`
	StartDate         time.Time     `db:"start_date" json:"start_date"`
	EndDate           time.Time     `db:"end_date" json:"end_date"`
	HourlyWage        int           `db:"hourly_wage" json:"hourly_wage"`
	TransportationFee int           `db:"transportation_fee" json:"transportation_fee"`
	Requirements      *string       `db:"requirements" json:"requirements,omitempty"`
	Status            ProjectStatus `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// ProjectFilter scopes project listing queries.
type ProjectFilter struct {
	ClientID  string
	Status    ProjectStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
