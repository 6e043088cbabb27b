package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type activityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	FindByID(ctx context.Context, id int64) (*models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id int64) error
}

// CreateActivityRequest holds payload for adding an agenda entry.
type CreateActivityRequest struct {
	ClassID     int64     `json:"class_id" validate:"required,gt=0"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
}

// UpdateActivityRequest holds payload for updating an agenda entry.
type UpdateActivityRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
}

// ActivityService handles the class agenda.
type ActivityService struct {
	repo      activityRepository
	teachings classOwnershipChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActivityService constructs the activity service.
func NewActivityService(repo activityRepository, teachings classOwnershipChecker, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, teachings: teachings, validator: validate, logger: logger}
}

// List returns activities and pagination metadata.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error) {
	activities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
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
	return activities, pagination, nil
}

// Get returns an activity by id.
func (s *ActivityService) Get(ctx context.Context, id int64) (*models.Activity, error) {
	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// Create adds an agenda entry. Teachers may only post to their own classes.
func (s *ActivityService) Create(ctx context.Context, actor Actor, req CreateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if actor.IsTeacher() {
		owns, err := s.teachings.TeacherHasClass(ctx, actor.ID, req.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class ownership")
		}
		if !owns {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "class is not one of your classes")
		}
	}

	activity := &models.Activity{
		ClassID:     req.ClassID,
		TeacherID:   actor.ID,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}
	return activity, nil
}

// Update modifies an agenda entry. Authors may update their own, admins any.
func (s *ActivityService) Update(ctx context.Context, actor Actor, id int64, req UpdateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && activity.TeacherID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another teacher")
	}

	activity.Title = req.Title
	activity.Description = req.Description
	activity.Date = req.Date
	if err := s.repo.Update(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}
	return activity, nil
}

// Delete removes an agenda entry. Authors may delete their own, admins any.
func (s *ActivityService) Delete(ctx context.Context, actor Actor, id int64) error {
	activity, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && activity.TeacherID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another teacher")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete activity")
	}
	return nil
}
