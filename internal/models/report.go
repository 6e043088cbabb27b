package models

import "time"

// ReportKind identifies the export produced by a report job.
type ReportKind string

const (
	ReportBulletinPDF ReportKind = "bulletin_pdf"
	ReportClassCSV    ReportKind = "class_csv"
)

// ReportJobStatus tracks the lifecycle of an asynchronous export.
type ReportJobStatus string

const (
	ReportStatusPending   ReportJobStatus = "pending"
	ReportStatusRunning   ReportJobStatus = "running"
	ReportStatusCompleted ReportJobStatus = "completed"
	ReportStatusFailed    ReportJobStatus = "failed"
)

// ReportJob describes a queued bulletin or class export.
type ReportJob struct {
	ID          string          `json:"id"`
	Kind        ReportKind      `json:"kind"`
	StudentID   int64           `json:"student_id,omitempty"`
	TeachingID  int64           `json:"teaching_id,omitempty"`
	ClassID     int64           `json:"class_id,omitempty"`
	Term        int             `json:"term"`
	RequestedBy int64           `json:"requested_by"`
	Status      ReportJobStatus `json:"status"`
	FilePath    string          `json:"file_path,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
