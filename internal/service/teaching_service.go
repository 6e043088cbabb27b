package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type teachingRepository interface {
	List(ctx context.Context, filter models.TeachingFilter) ([]models.TeachingDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.Teaching, error)
	Create(ctx context.Context, teaching *models.Teaching) error
	Update(ctx context.Context, teaching *models.Teaching) error
	Delete(ctx context.Context, id int64) error
}

type teachingClassRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Class, error)
}

type teachingTeacherRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// CreateTeachingRequest holds payload for assigning a subject.
type CreateTeachingRequest struct {
	Subject     string  `json:"subject" validate:"required"`
	ClassID     int64   `json:"class_id" validate:"required,gt=0"`
	TeacherID   int64   `json:"teacher_id" validate:"required,gt=0"`
	Coefficient float64 `json:"coefficient" validate:"required,gt=0"`
}

// UpdateTeachingRequest holds payload for updating an assignment.
type UpdateTeachingRequest struct {
	Subject     string  `json:"subject" validate:"required"`
	ClassID     int64   `json:"class_id" validate:"required,gt=0"`
	TeacherID   int64   `json:"teacher_id" validate:"required,gt=0"`
	Coefficient float64 `json:"coefficient" validate:"required,gt=0"`
}

// TeachingService handles subject assignment use-cases.
type TeachingService struct {
	repo      teachingRepository
	classes   teachingClassRepository
	teachers  teachingTeacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeachingService constructs the teaching service.
func NewTeachingService(repo teachingRepository, classes teachingClassRepository, teachers teachingTeacherRepository, validate *validator.Validate, logger *zap.Logger) *TeachingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeachingService{repo: repo, classes: classes, teachers: teachers, validator: validate, logger: logger}
}

// List returns teachings and pagination metadata. Teachers are scoped to
// their own assignments.
func (s *TeachingService) List(ctx context.Context, actor Actor, filter models.TeachingFilter) ([]models.TeachingDetail, *models.Pagination, error) {
	if actor.IsTeacher() {
		filter.TeacherID = actor.ID
	}
	teachings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachings")
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
	return teachings, pagination, nil
}

// Get returns a teaching by id.
func (s *TeachingService) Get(ctx context.Context, id int64) (*models.Teaching, error) {
	teaching, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teaching not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching")
	}
	return teaching, nil
}

// Create assigns a subject to a teacher in a class.
func (s *TeachingService) Create(ctx context.Context, req CreateTeachingRequest) (*models.Teaching, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teaching payload")
	}
	if err := s.checkReferences(ctx, req.ClassID, req.TeacherID); err != nil {
		return nil, err
	}

	teaching := &models.Teaching{
		Subject:     req.Subject,
		ClassID:     req.ClassID,
		TeacherID:   req.TeacherID,
		Coefficient: req.Coefficient,
	}
	if err := s.repo.Create(ctx, teaching); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teaching")
	}
	return teaching, nil
}

// Update modifies an existing teaching.
func (s *TeachingService) Update(ctx context.Context, id int64, req UpdateTeachingRequest) (*models.Teaching, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teaching payload")
	}
	teaching, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, req.ClassID, req.TeacherID); err != nil {
		return nil, err
	}

	teaching.Subject = req.Subject
	teaching.ClassID = req.ClassID
	teaching.TeacherID = req.TeacherID
	teaching.Coefficient = req.Coefficient
	if err := s.repo.Update(ctx, teaching); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teaching")
	}
	return teaching, nil
}

// Delete removes a teaching assignment.
func (s *TeachingService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teaching")
	}
	return nil
}

func (s *TeachingService) checkReferences(ctx context.Context, classID, teacherID int64) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class")
	}
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "teacher_id must reference a teacher account")
	}
	return nil
}
