package models

import "time"

// NoteType is the assessment category a score belongs to.
type NoteType string

const (
	NoteOral     NoteType = "oral"
	NoteControle NoteType = "controle"
	NoteSynthese NoteType = "synthese"
)

// Valid returns true when the type is a supported value.
func (t NoteType) Valid() bool {
	switch t {
	case NoteOral, NoteControle, NoteSynthese:
		return true
	default:
		return false
	}
}

// Note represents a single assessment score for a student.
type Note struct {
	ID         int64     `db:"id" json:"id"`
	StudentID  int64     `db:"student_id" json:"student_id"`
	TeachingID int64     `db:"teaching_id" json:"teaching_id"`
	Type       NoteType  `db:"type" json:"type"`
	Term       int       `db:"term" json:"term"`
	Value      float64   `db:"value" json:"value"`
	Date       time.Time `db:"date" json:"date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// NoteDetail enriches a note row with subject and student names.
type NoteDetail struct {
	Note
	Subject     string `db:"subject" json:"subject"`
	StudentName string `db:"student_name" json:"student_name"`
}

// NoteFilter allows querying of note entries.
type NoteFilter struct {
	StudentID  int64
	TeachingID int64
	ClassID    int64
	Term       int
	Type       NoteType
}

// SubjectAverage is the derived per-subject result for a student and term.
// Average is nil when the subject is not computable (controle or synthese
// missing); it is never conflated with zero.
type SubjectAverage struct {
	TeachingID  int64    `json:"teaching_id"`
	Subject     string   `json:"subject"`
	Coefficient float64  `json:"coefficient"`
	Oral        *float64 `json:"oral,omitempty"`
	Controle    *float64 `json:"controle,omitempty"`
	Synthese    *float64 `json:"synthese,omitempty"`
	Average     *float64 `json:"average,omitempty"`
}

// TermReport aggregates a student's subject averages and the coefficient
// weighted overall average for one term.
type TermReport struct {
	StudentID      int64            `json:"student_id"`
	Term           int              `json:"term"`
	Subjects       []SubjectAverage `json:"subjects"`
	OverallAverage *float64         `json:"overall_average,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
