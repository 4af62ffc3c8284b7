package models

import "time"

// NotificationType identifies the event that triggered a notification.
type NotificationType string

const (
	NotificationApplicationApproved NotificationType = "application.approved"
	NotificationApplicationRejected NotificationType = "application.rejected"
	NotificationAttendanceApproved  NotificationType = "attendance.approved"
	NotificationAttendanceRejected  NotificationType = "attendance.rejected"
	NotificationPaymentCompleted    NotificationType = "payment.completed"
)

// Notification is a fire-and-forget event destined for a staff member.
// Delivery failures never roll back the transaction that produced the event.
type Notification struct {
	Type       NotificationType `json:"type"`
	UserID     string           `json:"user_id"`
	ResourceID string           `json:"resource_id"`
	Message    string           `json:"message"`
	OccurredAt time.Time        `json:"occurred_at"`
}
