package models

import "time"

// NotificationType tags the event a notification was created for.
type NotificationType string

const (
	NotificationMessage      NotificationType = "message"
	NotificationAnnouncement NotificationType = "announcement"
	NotificationAbsence      NotificationType = "absence"
)

// Notification is a persisted per-recipient event record. The row itself is
// the durability guarantee: the live push is best-effort and unacknowledged.
type Notification struct {
	ID        int64            `db:"id" json:"id"`
	UserID    int64            `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	RefID     *int64           `db:"ref_id" json:"ref_id,omitempty"`
	Read      bool             `db:"read" json:"read"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter selects notifications for listing.
type NotificationFilter struct {
	UserID   int64
	Unread   *bool
	Type     NotificationType
	Page     int
	PageSize int
}
