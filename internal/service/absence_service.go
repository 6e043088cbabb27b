package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/internal/realtime"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type absenceRepository interface {
	List(ctx context.Context, filter models.AbsenceFilter) ([]models.AbsenceDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.Absence, error)
	Create(ctx context.Context, absence *models.Absence) error
	Update(ctx context.Context, absence *models.Absence) error
	Delete(ctx context.Context, id int64) error
}

type absenceStudentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

// CreateAbsenceRequest holds payload for recording an absence.
type CreateAbsenceRequest struct {
	StudentID int64     `json:"student_id" validate:"required,gt=0"`
	Date      time.Time `json:"date" validate:"required"`
	Justified bool      `json:"justified"`
	Reason    *string   `json:"reason,omitempty"`
}

// UpdateAbsenceRequest holds payload for updating an absence.
type UpdateAbsenceRequest struct {
	Date      time.Time `json:"date" validate:"required"`
	Justified bool      `json:"justified"`
	Reason    *string   `json:"reason,omitempty"`
}

// AbsenceService handles absence tracking. Recording an absence notifies
// the student's parent, durably first and live second.
type AbsenceService struct {
	repo          absenceRepository
	students      absenceStudentRepository
	teachings     classOwnershipChecker
	notifications notificationStore
	hub           livePusher
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAbsenceService constructs the absence service.
func NewAbsenceService(repo absenceRepository, students absenceStudentRepository, teachings classOwnershipChecker, notifications notificationStore, hub livePusher, validate *validator.Validate, logger *zap.Logger) *AbsenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbsenceService{
		repo:          repo,
		students:      students,
		teachings:     teachings,
		notifications: notifications,
		hub:           hub,
		validator:     validate,
		logger:        logger,
	}
}

// SetMetrics wires an optional fan-out counter.
func (s *AbsenceService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// List returns absences and pagination metadata. Parents are scoped to
// their own children via the student filter.
func (s *AbsenceService) List(ctx context.Context, actor Actor, filter models.AbsenceFilter) ([]models.AbsenceDetail, *models.Pagination, error) {
	if actor.IsParent() {
		if filter.StudentID <= 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "parents must query a specific student")
		}
		if err := s.ensureParentOf(ctx, actor.ID, filter.StudentID); err != nil {
			return nil, nil, err
		}
	}

	absences, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return absences, pagination, nil
}

// Create records an absence and notifies the parent. Teachers may only
// record absences for classes they teach.
func (s *AbsenceService) Create(ctx context.Context, actor Actor, req CreateAbsenceRequest) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if actor.IsTeacher() {
		owns, err := s.teachings.TeacherHasClass(ctx, actor.ID, student.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class ownership")
		}
		if !owns {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not in one of your classes")
		}
	}

	absence := &models.Absence{
		StudentID: req.StudentID,
		Date:      req.Date,
		Justified: req.Justified,
		Reason:    req.Reason,
	}
	if err := s.repo.Create(ctx, absence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create absence")
	}

	s.notifyParent(ctx, student, absence)
	return absence, nil
}

// Update modifies an existing absence, typically to mark it justified.
func (s *AbsenceService) Update(ctx context.Context, id int64, req UpdateAbsenceRequest) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	absence, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence")
	}

	absence.Date = req.Date
	absence.Justified = req.Justified
	absence.Reason = req.Reason
	if err := s.repo.Update(ctx, absence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update absence")
	}
	return absence, nil
}

// Delete removes an absence record.
func (s *AbsenceService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "absence not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete absence")
	}
	return nil
}

// notifyParent persists and pushes an absence notification. Failures are
// logged, never propagated: the absence record itself already succeeded.
func (s *AbsenceService) notifyParent(ctx context.Context, student *models.Student, absence *models.Absence) {
	if student.ParentID == nil {
		return
	}
	refID := absence.ID
	notification := &models.Notification{
		UserID: *student.ParentID,
		Type:   models.NotificationAbsence,
		Title:  "Absence recorded",
		Body:   fmt.Sprintf("%s was absent on %s", student.FullName, absence.Date.Format("2006-01-02")),
		RefID:  &refID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Error("absence notification insert failed",
			zap.Error(err),
			zap.Int64("absence_id", absence.ID),
			zap.Int64("parent_id", *student.ParentID))
		return
	}
	s.metrics.RecordFanout(string(notification.Type))
	if s.hub != nil {
		s.hub.Notify(*student.ParentID, realtime.Event{Type: "notification", Data: notification})
	}
}

func (s *AbsenceService) ensureParentOf(ctx context.Context, parentID, studentID int64) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ParentID == nil || *student.ParentID != parentID {
		return appErrors.Clone(appErrors.ErrForbidden, "student belongs to another parent")
	}
	return nil
}
