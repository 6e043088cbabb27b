package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
	"github.com/RayenAkrich/EduLink-sub000/pkg/export"
	"github.com/RayenAkrich/EduLink-sub000/pkg/jobs"
	"github.com/RayenAkrich/EduLink-sub000/pkg/storage"
)

type reportStudentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type reportTeachingRepository interface {
	ListByClass(ctx context.Context, classID int64) ([]models.Teaching, error)
}

type reportNoteRepository interface {
	ListByStudentTerm(ctx context.Context, studentID int64, term int) ([]models.NoteDetail, error)
}

// SignedDownload describes a ready report download.
type SignedDownload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportService produces bulletin PDFs and class CSV exports asynchronously.
// Job state lives in memory: exports are cheap to re-request and the files
// themselves are the durable artifact.
type ReportService struct {
	students  reportStudentRepository
	teachings reportTeachingRepository
	notes     reportNoteRepository
	queue     *jobs.Queue
	pdf       *export.PDFExporter
	csv       *export.CSVExporter
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	metrics   *MetricsService
	logger    *zap.Logger

	mu      sync.RWMutex
	tracked map[string]*models.ReportJob
}

// NewReportService constructs the report service. Call Queue to obtain the
// job handler wiring before starting workers.
func NewReportService(students reportStudentRepository, teachings reportTeachingRepository, notes reportNoteRepository, pdf *export.PDFExporter, csv *export.CSVExporter, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		students:  students,
		teachings: teachings,
		notes:     notes,
		pdf:       pdf,
		csv:       csv,
		store:     store,
		signer:    signer,
		logger:    logger,
		tracked:   make(map[string]*models.ReportJob),
	}
}

// AttachQueue wires the queue that will execute report jobs.
func (s *ReportService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// SetMetrics wires an optional job outcome counter.
func (s *ReportService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// HandleJob is the queue handler generating the requested export.
func (s *ReportService) HandleJob(ctx context.Context, job jobs.Job) error {
	tracked := s.get(job.ID)
	if tracked == nil {
		s.logger.Warn("report job not tracked, skipping", zap.String("job_id", job.ID))
		return nil
	}
	s.setStatus(job.ID, models.ReportStatusRunning, "", "")

	var (
		filePath string
		err      error
	)
	switch tracked.Kind {
	case models.ReportBulletinPDF:
		filePath, err = s.generateBulletin(ctx, tracked)
	case models.ReportClassCSV:
		filePath, err = s.generateClassCSV(ctx, tracked)
	default:
		err = fmt.Errorf("unknown report kind %q", tracked.Kind)
	}

	if err != nil {
		s.setStatus(job.ID, models.ReportStatusFailed, "", err.Error())
		s.metrics.RecordReportJob(string(tracked.Kind), "failed")
		return err
	}
	s.setStatus(job.ID, models.ReportStatusCompleted, filePath, "")
	s.metrics.RecordReportJob(string(tracked.Kind), "completed")
	s.logger.Info("report generated", zap.String("job_id", job.ID), zap.String("file", filePath))
	return nil
}

// RequestBulletin queues a bulletin PDF for a student and term. Parents may
// only request bulletins for their own children.
func (s *ReportService) RequestBulletin(ctx context.Context, actor Actor, studentID int64, term int) (*models.ReportJob, error) {
	if term < 1 || term > 3 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term must be between 1 and 3")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if actor.IsParent() && (student.ParentID == nil || *student.ParentID != actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another parent")
	}

	job := &models.ReportJob{
		ID:          uuid.NewString(),
		Kind:        models.ReportBulletinPDF,
		StudentID:   studentID,
		ClassID:     student.ClassID,
		Term:        term,
		RequestedBy: actor.ID,
		Status:      models.ReportStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	return s.enqueue(job)
}

// RequestClassCSV queues a CSV export of a class's term averages.
func (s *ReportService) RequestClassCSV(ctx context.Context, actor Actor, classID int64, term int) (*models.ReportJob, error) {
	if term < 1 || term > 3 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term must be between 1 and 3")
	}
	if classID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class id")
	}

	job := &models.ReportJob{
		ID:          uuid.NewString(),
		Kind:        models.ReportClassCSV,
		ClassID:     classID,
		Term:        term,
		RequestedBy: actor.ID,
		Status:      models.ReportStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	return s.enqueue(job)
}

// Status returns the current state of a job, plus a signed download when the
// export completed. Requesters see their own jobs, admins any.
func (s *ReportService) Status(actor Actor, jobID string) (*models.ReportJob, *SignedDownload, error) {
	job := s.get(jobID)
	if job == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	if !actor.IsAdmin() && job.RequestedBy != actor.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}

	copy := *job
	if copy.Status != models.ReportStatusCompleted {
		return &copy, nil, nil
	}

	token, expiresAt, err := s.signer.Generate(copy.ID, copy.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	download := &SignedDownload{
		URL:       fmt.Sprintf("/reports/download?token=%s", token),
		ExpiresAt: expiresAt,
	}
	return &copy, download, nil
}

// Download validates a signed token and opens the exported file. The token
// itself carries the authorisation; no session is needed.
func (s *ReportService) Download(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	job := s.get(jobID)
	if job == nil || job.Status != models.ReportStatusCompleted || job.FilePath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report no longer available")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return file, relPath, nil
}

func (s *ReportService) enqueue(job *models.ReportJob) (*models.ReportJob, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report generation is not available")
	}

	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Kind)}); err != nil {
		s.mu.Lock()
		delete(s.tracked, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue report")
	}

	copy := *job
	return &copy, nil
}

func (s *ReportService) generateBulletin(ctx context.Context, job *models.ReportJob) (string, error) {
	student, err := s.students.FindByID(ctx, job.StudentID)
	if err != nil {
		return "", fmt.Errorf("load student: %w", err)
	}
	teachings, err := s.teachings.ListByClass(ctx, student.ClassID)
	if err != nil {
		return "", fmt.Errorf("load teachings: %w", err)
	}
	notes, err := s.notes.ListByStudentTerm(ctx, job.StudentID, job.Term)
	if err != nil {
		return "", fmt.Errorf("load notes: %w", err)
	}

	report := BuildTermReport(job.StudentID, job.Term, teachings, notes)

	dataset := export.Dataset{
		Headers: []string{"Subject", "Coefficient", "Oral", "Controle", "Synthese", "Average"},
	}
	for _, subject := range report.Subjects {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Subject":     subject.Subject,
			"Coefficient": strconv.FormatFloat(subject.Coefficient, 'f', -1, 64),
			"Oral":        formatScore(subject.Oral),
			"Controle":    formatScore(subject.Controle),
			"Synthese":    formatScore(subject.Synthese),
			"Average":     formatScore(subject.Average),
		})
	}
	dataset.Rows = append(dataset.Rows, map[string]string{
		"Subject": "Overall",
		"Average": formatScore(report.OverallAverage),
	})

	title := fmt.Sprintf("Bulletin - %s - Term %d", student.FullName, job.Term)
	content, err := s.pdf.Render(dataset, title)
	if err != nil {
		return "", fmt.Errorf("render bulletin pdf: %w", err)
	}

	filename := fmt.Sprintf("bulletin_%d_term%d_%s.pdf", job.StudentID, job.Term, job.ID)
	return s.store.Save(filename, content)
}

func (s *ReportService) generateClassCSV(ctx context.Context, job *models.ReportJob) (string, error) {
	teachings, err := s.teachings.ListByClass(ctx, job.ClassID)
	if err != nil {
		return "", fmt.Errorf("load teachings: %w", err)
	}
	students, _, err := s.students.List(ctx, models.StudentFilter{ClassID: job.ClassID, Page: 1, PageSize: 100})
	if err != nil {
		return "", fmt.Errorf("load students: %w", err)
	}

	dataset := export.Dataset{Headers: []string{"Student", "Overall Average"}}
	for _, t := range teachings {
		dataset.Headers = append(dataset.Headers, t.Subject)
	}

	for _, student := range students {
		notes, err := s.notes.ListByStudentTerm(ctx, student.ID, job.Term)
		if err != nil {
			return "", fmt.Errorf("load notes for student %d: %w", student.ID, err)
		}
		report := BuildTermReport(student.ID, job.Term, teachings, notes)

		row := map[string]string{
			"Student":         student.FullName,
			"Overall Average": formatScore(report.OverallAverage),
		}
		for _, subject := range report.Subjects {
			row[subject.Subject] = formatScore(subject.Average)
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	content, err := s.csv.Render(dataset)
	if err != nil {
		return "", fmt.Errorf("render class csv: %w", err)
	}

	filename := fmt.Sprintf("class_%d_term%d_%s.csv", job.ClassID, job.Term, job.ID)
	return s.store.Save(filename, content)
}

func (s *ReportService) get(jobID string) *models.ReportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracked[jobID]
}

func (s *ReportService) setStatus(jobID string, status models.ReportJobStatus, filePath, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.tracked[jobID]
	if !ok {
		return
	}
	job.Status = status
	if filePath != "" {
		job.FilePath = filePath
	}
	job.Error = errMsg
	if status == models.ReportStatusCompleted || status == models.ReportStatusFailed {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
