package models

import "time"

// Activity is a class agenda entry (homework, outing, exam reminder).
type Activity struct {
	ID          int64     `db:"id" json:"id"`
	ClassID     int64     `db:"class_id" json:"class_id"`
	TeacherID   int64     `db:"teacher_id" json:"teacher_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Date        time.Time `db:"date" json:"date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ActivityFilter encapsulates search parameters for listing activities.
type ActivityFilter struct {
	ClassID   int64
	TeacherID int64
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
