package models

import "time"

// PaymentStatus represents the lifecycle of a payment ledger entry.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
)

// Valid returns true when the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted:
		return true
	default:
		return false
	}
}

// CanComplete reports whether the payment may be marked completed.
func (s PaymentStatus) CanComplete() bool {
	return s == PaymentStatusPending || s == PaymentStatusProcessing
}

// Payment aggregates approved attendance for one staff member over a period
// into a computed internal ledger entry. Amounts are integer currency units.
// Once completed the row is immutable.
type Payment struct {
	ID                   string        `db:"id" json:"id"`
	UserID               string        `db:"user_id" json:"user_id"`
	PeriodStart          time.Time     `db:"period_start" json:"period_start"`
	PeriodEnd            time.Time     `db:"period_end" json:"period_end"`
	BaseAmount           int           `db:"base_amount" json:"base_amount"`
	TransportationAmount int           `db:"transportation_amount" json:"transportation_amount"`
	DeductionAmount      int           `db:"deduction_amount" json:"deduction_amount"`
	TotalAmount          int           `db:"total_amount" json:"total_amount"`
	Status               PaymentStatus `db:"status" json:"status"`
	PaidAt               *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail is one immutable line item linking a single attendance record
// to its contribution within a payment. The attendance_id column carries a
// unique constraint: it is the claim that prevents double settlement.
type PaymentDetail struct {
	ID           string    `db:"id" json:"id"`
	PaymentID    string    `db:"payment_id" json:"payment_id"`
	AttendanceID string    `db:"attendance_id" json:"attendance_id"`
	WorkHours    float64   `db:"work_hours" json:"work_hours"`
	HourlyWage   int       `db:"hourly_wage" json:"hourly_wage"`
	Amount       int       `db:"amount" json:"amount"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PaymentWithDetails bundles a payment with its line items.
type PaymentWithDetails struct {
	Payment
	Details []PaymentDetail `json:"details"`
}

// SettleableAttendance is an approved, unclaimed attendance row as selected
// (and row-locked) by the settlement transaction.
type SettleableAttendance struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	ShiftID      string     `db:"shift_id"`
	ShiftDate    time.Time  `db:"shift_date"`
	ClockIn      *time.Time `db:"clock_in"`
	ClockOut     *time.Time `db:"clock_out"`
	BreakMinutes int        `db:"break_minutes"`
	NeedsReview  bool       `db:"needs_review"`
}

// PaymentFilter scopes payment listing queries.
type PaymentFilter struct {
	UserID    string
	Status    PaymentStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
