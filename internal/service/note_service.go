package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type noteRepository interface {
	List(ctx context.Context, filter models.NoteFilter) ([]models.NoteDetail, error)
	ListByStudentTerm(ctx context.Context, studentID int64, term int) ([]models.NoteDetail, error)
	FindByID(ctx context.Context, id int64) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id int64) error
}

type noteTeachingRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Teaching, error)
	ListByClass(ctx context.Context, classID int64) ([]models.Teaching, error)
}

type noteStudentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateNoteRequest holds payload for recording a score.
type CreateNoteRequest struct {
	StudentID  int64           `json:"student_id" validate:"required,gt=0"`
	TeachingID int64           `json:"teaching_id" validate:"required,gt=0"`
	Type       models.NoteType `json:"type" validate:"required"`
	Term       int             `json:"term" validate:"required,min=1,max=3"`
	Value      float64         `json:"value" validate:"min=0,max=20"`
	Date       time.Time       `json:"date" validate:"required"`
}

// UpdateNoteRequest holds payload for correcting a score.
type UpdateNoteRequest struct {
	Value float64   `json:"value" validate:"min=0,max=20"`
	Date  time.Time `json:"date" validate:"required"`
}

// NoteService handles score entry and grade aggregation.
type NoteService struct {
	repo      noteRepository
	teachings noteTeachingRepository
	students  noteStudentRepository
	cache     reportCache
	reportTTL time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNoteService constructs the note service. cache may be nil to disable
// report caching.
func NewNoteService(repo noteRepository, teachings noteTeachingRepository, students noteStudentRepository, cache reportCache, reportTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *NoteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoteService{
		repo:      repo,
		teachings: teachings,
		students:  students,
		cache:     cache,
		reportTTL: reportTTL,
		validator: validate,
		logger:    logger,
	}
}

// round2 rounds half away from zero to two decimals. Averages are reported
// to the precision bulletins print.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DedupeNotes reconciles duplicate score rows: per (student, teaching, type,
// term) only the most recent entry by date counts, ties broken by the higher
// id. Input order does not matter.
func DedupeNotes(notes []models.NoteDetail) []models.NoteDetail {
	type key struct {
		studentID  int64
		teachingID int64
		noteType   models.NoteType
		term       int
	}
	latest := make(map[key]models.NoteDetail, len(notes))
	var order []key
	for _, n := range notes {
		k := key{n.StudentID, n.TeachingID, n.Type, n.Term}
		current, seen := latest[k]
		if !seen {
			latest[k] = n
			order = append(order, k)
			continue
		}
		if n.Date.After(current.Date) || (n.Date.Equal(current.Date) && n.ID > current.ID) {
			latest[k] = n
		}
	}
	result := make([]models.NoteDetail, 0, len(order))
	for _, k := range order {
		result = append(result, latest[k])
	}
	return result
}

// ComputeSubjectAverage derives the weighted subject average from the three
// score slots. The controle and synthese scores are both required; without
// them the subject is not computable and the average stays nil. The oral
// score is optional:
//
//	with oral:    (oral + controle + 2*synthese) / 4
//	without oral: (controle + 2*synthese) / 3
func ComputeSubjectAverage(oral, controle, synthese *float64) *float64 {
	if controle == nil || synthese == nil {
		return nil
	}
	var avg float64
	if oral != nil {
		avg = (*oral + *controle + 2**synthese) / 4
	} else {
		avg = (*controle + 2**synthese) / 3
	}
	avg = round2(avg)
	return &avg
}

// ComputeOverallAverage combines subject averages weighted by coefficient.
// Subjects without a computable average are excluded entirely rather than
// counted as zero; when no subject is computable the result is nil.
func ComputeOverallAverage(subjects []models.SubjectAverage) *float64 {
	var weightedSum, coefSum float64
	for _, s := range subjects {
		if s.Average == nil {
			continue
		}
		weightedSum += *s.Average * s.Coefficient
		coefSum += s.Coefficient
	}
	if coefSum == 0 {
		return nil
	}
	overall := round2(weightedSum / coefSum)
	return &overall
}

// BuildTermReport assembles per-subject and overall averages for one student
// and term from the class's teachings and the student's deduplicated notes.
// Every teaching of the class appears in the report, computable or not.
func BuildTermReport(studentID int64, term int, teachings []models.Teaching, notes []models.NoteDetail) models.TermReport {
	scores := make(map[int64]map[models.NoteType]*float64, len(teachings))
	for _, n := range DedupeNotes(notes) {
		if n.StudentID != studentID || n.Term != term {
			continue
		}
		if scores[n.TeachingID] == nil {
			scores[n.TeachingID] = make(map[models.NoteType]*float64, 3)
		}
		value := n.Value
		scores[n.TeachingID][n.Type] = &value
	}

	subjects := make([]models.SubjectAverage, 0, len(teachings))
	for _, t := range teachings {
		slots := scores[t.ID]
		subject := models.SubjectAverage{
			TeachingID:  t.ID,
			Subject:     t.Subject,
			Coefficient: t.Coefficient,
			Oral:        slots[models.NoteOral],
			Controle:    slots[models.NoteControle],
			Synthese:    slots[models.NoteSynthese],
		}
		subject.Average = ComputeSubjectAverage(subject.Oral, subject.Controle, subject.Synthese)
		subjects = append(subjects, subject)
	}

	return models.TermReport{
		StudentID:      studentID,
		Term:           term,
		Subjects:       subjects,
		OverallAverage: ComputeOverallAverage(subjects),
		GeneratedAt:    time.Now().UTC(),
	}
}

// List returns notes matching the filter, scoped to the actor: teachers see
// only their own teachings, parents only their own children.
func (s *NoteService) List(ctx context.Context, actor Actor, filter models.NoteFilter) ([]models.NoteDetail, error) {
	if actor.IsTeacher() && filter.TeachingID > 0 {
		teaching, err := s.teachings.FindByID(ctx, filter.TeachingID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teaching not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching")
		}
		if teaching.TeacherID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teaching belongs to another teacher")
		}
	}
	if actor.IsParent() {
		if filter.StudentID <= 0 {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "parents must query a specific student")
		}
		if err := s.ensureParentOf(ctx, actor.ID, filter.StudentID); err != nil {
			return nil, err
		}
	}

	notes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	return notes, nil
}

// Create records a score. Teachers may only grade their own teachings.
func (s *NoteService) Create(ctx context.Context, actor Actor, req CreateNoteRequest) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown note type")
	}

	teaching, err := s.teachings.FindByID(ctx, req.TeachingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teaching not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching")
	}
	if actor.IsTeacher() && teaching.TeacherID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teaching belongs to another teacher")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassID != teaching.ClassID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in the teaching's class")
	}

	note := &models.Note{
		StudentID:  req.StudentID,
		TeachingID: req.TeachingID,
		Type:       req.Type,
		Term:       req.Term,
		Value:      req.Value,
		Date:       req.Date,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create note")
	}

	s.invalidateReports(ctx, note.StudentID)
	s.logger.Info("note recorded",
		zap.Int64("note_id", note.ID),
		zap.Int64("student_id", note.StudentID),
		zap.Int64("teaching_id", note.TeachingID),
		zap.String("type", string(note.Type)),
		zap.Int("term", note.Term))
	return note, nil
}

// Update corrects a score's value or date.
func (s *NoteService) Update(ctx context.Context, actor Actor, id int64, req UpdateNoteRequest) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}

	note, err := s.loadOwnedNote(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	note.Value = req.Value
	note.Date = req.Date
	if err := s.repo.Update(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update note")
	}

	s.invalidateReports(ctx, note.StudentID)
	return note, nil
}

// Delete removes a score.
func (s *NoteService) Delete(ctx context.Context, actor Actor, id int64) error {
	note, err := s.loadOwnedNote(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete note")
	}
	s.invalidateReports(ctx, note.StudentID)
	return nil
}

// TermReport computes a student's bulletin for one term, serving from cache
// when a fresh copy exists.
func (s *NoteService) TermReport(ctx context.Context, actor Actor, studentID int64, term int) (*models.TermReport, error) {
	if term < 1 || term > 3 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term must be between 1 and 3")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if actor.IsParent() && (student.ParentID == nil || *student.ParentID != actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another parent")
	}

	cacheKey := reportCacheKey(studentID, term)
	if s.cache != nil {
		var cached models.TermReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	teachings, err := s.teachings.ListByClass(ctx, student.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teachings")
	}
	notes, err := s.repo.ListByStudentTerm(ctx, studentID, term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notes")
	}

	report := BuildTermReport(studentID, term, teachings, notes)
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.reportTTL); err != nil {
			s.logger.Warn("report cache write failed", zap.Error(err), zap.String("key", cacheKey))
		}
	}
	return &report, nil
}

func (s *NoteService) loadOwnedNote(ctx context.Context, actor Actor, id int64) (*models.Note, error) {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	if actor.IsTeacher() {
		teaching, err := s.teachings.FindByID(ctx, note.TeachingID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching")
		}
		if teaching.TeacherID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teaching belongs to another teacher")
		}
	}
	return note, nil
}

func (s *NoteService) ensureParentOf(ctx context.Context, parentID, studentID int64) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ParentID == nil || *student.ParentID != parentID {
		return appErrors.Clone(appErrors.ErrForbidden, "student belongs to another parent")
	}
	return nil
}

func (s *NoteService) invalidateReports(ctx context.Context, studentID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("report:student:%d:*", studentID)); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err), zap.Int64("student_id", studentID))
	}
}

func reportCacheKey(studentID int64, term int) string {
	return fmt.Sprintf("report:student:%d:term:%d", studentID, term)
}
