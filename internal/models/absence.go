package models

import "time"

// Absence represents a recorded student absence.
type Absence struct {
	ID        int64     `db:"id" json:"id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	Date      time.Time `db:"date" json:"date"`
	Justified bool      `db:"justified" json:"justified"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AbsenceDetail adds student context to an absence row.
type AbsenceDetail struct {
	Absence
	StudentName string `db:"student_name" json:"student_name"`
	ClassID     int64  `db:"class_id" json:"class_id"`
}

// AbsenceFilter encapsulates search parameters for listing absences.
type AbsenceFilter struct {
	StudentID int64
	ClassID   int64
	Justified *bool
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
