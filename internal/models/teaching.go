package models

import "time"

// Teaching represents a subject taught by a teacher in a class, with the
// coefficient used when combining subject averages into the overall average.
type Teaching struct {
	ID          int64     `db:"id" json:"id"`
	Subject     string    `db:"subject" json:"subject"`
	ClassID     int64     `db:"class_id" json:"class_id"`
	TeacherID   int64     `db:"teacher_id" json:"teacher_id"`
	Coefficient float64   `db:"coefficient" json:"coefficient"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TeachingDetail enriches a teaching row with display names.
type TeachingDetail struct {
	Teaching
	ClassName   string `db:"class_name" json:"class_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// TeachingFilter encapsulates search parameters for listing teachings.
type TeachingFilter struct {
	ClassID   int64
	TeacherID int64
	Subject   string
	Page      int
	PageSize  int
}
