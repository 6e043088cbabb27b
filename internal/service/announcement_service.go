package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/internal/realtime"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id int64) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id int64) error
}

type recipientDirectory interface {
	ListIDsByRole(ctx context.Context, role models.UserRole) ([]int64, error)
}

type classParentDirectory interface {
	ParentIDsByClass(ctx context.Context, classID int64) ([]int64, error)
}

type classOwnershipChecker interface {
	TeacherHasClass(ctx context.Context, teacherID, classID int64) (bool, error)
}

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// livePusher delivers best-effort realtime events to online users.
type livePusher interface {
	Notify(userID int64, event realtime.Event)
}

// CreateAnnouncementRequest holds payload for publishing an announcement.
type CreateAnnouncementRequest struct {
	Title         string                      `json:"title" validate:"required,max=200"`
	Content       string                      `json:"content" validate:"required"`
	Audience      models.AnnouncementAudience `json:"audience" validate:"required"`
	TargetClassID *int64                      `json:"target_class_id,omitempty"`
	TargetUserIDs []int64                     `json:"target_user_ids,omitempty"`
}

// FanOutResult reports how an announcement reached its audience.
type FanOutResult struct {
	Recipients int `json:"recipients"`
	Persisted  int `json:"persisted"`
	Pushed     int `json:"pushed"`
}

// AnnouncementService publishes announcements and fans them out as
// per-recipient notifications.
type AnnouncementService struct {
	repo          announcementRepository
	users         recipientDirectory
	students      classParentDirectory
	teachings     classOwnershipChecker
	notifications notificationStore
	hub           livePusher
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAnnouncementService constructs the announcement service.
func NewAnnouncementService(repo announcementRepository, users recipientDirectory, students classParentDirectory, teachings classOwnershipChecker, notifications notificationStore, hub livePusher, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{
		repo:          repo,
		users:         users,
		students:      students,
		teachings:     teachings,
		notifications: notifications,
		hub:           hub,
		validator:     validate,
		logger:        logger,
	}
}

// SetMetrics wires an optional fan-out counter.
func (s *AnnouncementService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// List returns announcements and pagination metadata.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, *models.Pagination, error) {
	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
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
	return announcements, pagination, nil
}

// Get returns one announcement.
func (s *AnnouncementService) Get(ctx context.Context, id int64) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// Publish persists an announcement, resolves its audience and fans out one
// notification row per recipient. Each recipient is handled independently: a
// failed insert is logged and skipped, it never aborts the fan-out. The
// realtime push is best-effort on top of the persisted rows.
func (s *AnnouncementService) Publish(ctx context.Context, actor Actor, req CreateAnnouncementRequest) (*models.Announcement, *FanOutResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	if err := s.authorize(ctx, actor, req); err != nil {
		return nil, nil, err
	}

	announcement := &models.Announcement{
		Title:         req.Title,
		Content:       req.Content,
		Audience:      req.Audience,
		TargetClassID: req.TargetClassID,
		AuthorID:      actor.ID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	recipients, err := s.resolveRecipients(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	result := s.fanOut(ctx, announcement, recipients)
	s.logger.Info("announcement published",
		zap.Int64("announcement_id", announcement.ID),
		zap.String("audience", string(announcement.Audience)),
		zap.Int("recipients", result.Recipients),
		zap.Int("persisted", result.Persisted),
		zap.Int("pushed", result.Pushed))
	return announcement, &result, nil
}

// Delete removes an announcement. Authors may delete their own, admins any.
func (s *AnnouncementService) Delete(ctx context.Context, actor Actor, id int64) error {
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && announcement.AuthorID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "announcement belongs to another author")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

// authorize enforces audience rules per role: admins may target anyone,
// teachers only the parents of classes they teach.
func (s *AnnouncementService) authorize(ctx context.Context, actor Actor, req CreateAnnouncementRequest) error {
	switch req.Audience {
	case models.AnnouncementAudienceAll, models.AnnouncementAudienceTeachers, models.AnnouncementAudienceParents, models.AnnouncementAudienceUsers:
		if !actor.IsAdmin() {
			return appErrors.Clone(appErrors.ErrForbidden, "only admins may target this audience")
		}
		if req.Audience == models.AnnouncementAudienceUsers && len(req.TargetUserIDs) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "target_user_ids is required for the USERS audience")
		}
	case models.AnnouncementAudienceClass:
		if req.TargetClassID == nil || *req.TargetClassID <= 0 {
			return appErrors.Clone(appErrors.ErrValidation, "target_class_id is required for the CLASS audience")
		}
		if actor.IsTeacher() {
			owns, err := s.teachings.TeacherHasClass(ctx, actor.ID, *req.TargetClassID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class ownership")
			}
			if !owns {
				return appErrors.Clone(appErrors.ErrForbidden, "teachers may only announce to their own classes")
			}
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown audience")
	}
	return nil
}

func (s *AnnouncementService) resolveRecipients(ctx context.Context, req CreateAnnouncementRequest) ([]int64, error) {
	switch req.Audience {
	case models.AnnouncementAudienceAll:
		teachers, err := s.users.ListIDsByRole(ctx, models.RoleTeacher)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
		}
		parents, err := s.users.ListIDsByRole(ctx, models.RoleParent)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
		}
		return dedupeIDs(append(teachers, parents...)), nil
	case models.AnnouncementAudienceTeachers:
		ids, err := s.users.ListIDsByRole(ctx, models.RoleTeacher)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
		}
		return ids, nil
	case models.AnnouncementAudienceParents:
		ids, err := s.users.ListIDsByRole(ctx, models.RoleParent)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
		}
		return ids, nil
	case models.AnnouncementAudienceClass:
		ids, err := s.students.ParentIDsByClass(ctx, *req.TargetClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class parents")
		}
		return ids, nil
	case models.AnnouncementAudienceUsers:
		return dedupeIDs(req.TargetUserIDs), nil
	}
	return nil, nil
}

func (s *AnnouncementService) fanOut(ctx context.Context, announcement *models.Announcement, recipients []int64) FanOutResult {
	result := FanOutResult{Recipients: len(recipients)}
	for _, userID := range recipients {
		if userID <= 0 {
			continue
		}
		refID := announcement.ID
		notification := &models.Notification{
			UserID: userID,
			Type:   models.NotificationAnnouncement,
			Title:  announcement.Title,
			Body:   announcement.Content,
			RefID:  &refID,
		}
		if err := s.notifications.Create(ctx, notification); err != nil {
			s.logger.Error("notification insert failed",
				zap.Error(err),
				zap.Int64("announcement_id", announcement.ID),
				zap.Int64("user_id", userID))
			continue
		}
		result.Persisted++
		s.metrics.RecordFanout(string(notification.Type))

		if s.hub != nil {
			s.hub.Notify(userID, realtime.Event{Type: "notification", Data: notification})
			result.Pushed++
		}
	}
	return result
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
