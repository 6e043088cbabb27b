package models

import "time"

// Class represents a class (homeroom group) of students.
type Class struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	Year      string    `db:"year" json:"year"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter encapsulates allowed search parameters for listing classes.
type ClassFilter struct {
	Search   string
	Level    string
	Year     string
	Page     int
	PageSize int
}

// ClassDetail adds roster counts to a class row.
type ClassDetail struct {
	Class
	StudentCount int `db:"student_count" json:"student_count"`
}
