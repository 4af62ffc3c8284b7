package models

import "time"

// StaffAvailability marks whether a staff member can work on a given date.
// One row per user per date.
type StaffAvailability struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Date        time.Time `db:"date" json:"date"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
