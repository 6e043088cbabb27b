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

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListBetween(ctx context.Context, userID, peerID int64, page, pageSize int) ([]models.MessageDetail, int, error)
	Conversations(ctx context.Context, userID int64) ([]models.Conversation, error)
	MarkRead(ctx context.Context, userID, peerID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

type messageUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// SendMessageRequest holds payload for sending a direct message.
type SendMessageRequest struct {
	RecipientID int64  `json:"recipient_id" validate:"required,gt=0"`
	Content     string `json:"content" validate:"required,max=4000"`
}

// MessageService handles direct messaging between users. Each sent message
// also produces a durable notification for the recipient plus a best-effort
// live push.
type MessageService struct {
	repo          messageRepository
	users         messageUserRepository
	notifications notificationStore
	hub           livePusher
	metrics       *MetricsService
	cache         reportCache
	unreadTTL     time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewMessageService constructs the message service. cache may be nil to
// disable unread-count caching.
func NewMessageService(repo messageRepository, users messageUserRepository, notifications notificationStore, hub livePusher, cache reportCache, unreadTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		repo:          repo,
		users:         users,
		notifications: notifications,
		hub:           hub,
		cache:         cache,
		unreadTTL:     unreadTTL,
		validator:     validate,
		logger:        logger,
	}
}

// SetMetrics wires an optional fan-out counter.
func (s *MessageService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// Send delivers a direct message to another user.
func (s *MessageService) Send(ctx context.Context, actor Actor, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.RecipientID == actor.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}

	recipient, err := s.users.FindByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if !recipient.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipient account is inactive")
	}

	message := &models.Message{
		SenderID:    actor.ID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create message")
	}

	s.notifyRecipient(ctx, message)
	s.invalidateUnread(ctx, message.RecipientID)
	return message, nil
}

// Thread returns the messages exchanged with a peer, newest first.
func (s *MessageService) Thread(ctx context.Context, actor Actor, peerID int64, page, pageSize int) ([]models.MessageDetail, *models.Pagination, error) {
	if peerID <= 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid peer id")
	}
	messages, total, err := s.repo.ListBetween(ctx, actor.ID, peerID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return messages, pagination, nil
}

// Conversations summarises the actor's exchanges, one row per peer.
func (s *MessageService) Conversations(ctx context.Context, actor Actor) ([]models.Conversation, error) {
	conversations, err := s.repo.Conversations(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	return conversations, nil
}

// MarkRead flags all unread messages from a peer as read and returns how
// many were affected.
func (s *MessageService) MarkRead(ctx context.Context, actor Actor, peerID int64) (int64, error) {
	if peerID <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid peer id")
	}
	affected, err := s.repo.MarkRead(ctx, actor.ID, peerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark messages read")
	}
	if affected > 0 {
		s.invalidateUnread(ctx, actor.ID)
	}
	return affected, nil
}

// UnreadCount returns the actor's unread message count, cached briefly to
// absorb badge polling.
func (s *MessageService) UnreadCount(ctx context.Context, actor Actor) (int, error) {
	cacheKey := unreadCacheKey(actor.ID)
	if s.cache != nil {
		var cached int
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	count, err := s.repo.UnreadCount(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, count, s.unreadTTL); err != nil {
			s.logger.Warn("unread cache write failed", zap.Error(err), zap.Int64("user_id", actor.ID))
		}
	}
	return count, nil
}

func (s *MessageService) notifyRecipient(ctx context.Context, message *models.Message) {
	refID := message.ID
	preview := message.Content
	if len(preview) > 120 {
		preview = preview[:120]
	}
	notification := &models.Notification{
		UserID: message.RecipientID,
		Type:   models.NotificationMessage,
		Title:  "New message",
		Body:   preview,
		RefID:  &refID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Error("message notification insert failed",
			zap.Error(err),
			zap.Int64("message_id", message.ID),
			zap.Int64("recipient_id", message.RecipientID))
		return
	}
	s.metrics.RecordFanout(string(notification.Type))
	if s.hub != nil {
		s.hub.Notify(message.RecipientID, realtime.Event{Type: "notification", Data: notification})
	}
}

func (s *MessageService) invalidateUnread(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, unreadCacheKey(userID)); err != nil {
		s.logger.Warn("unread cache invalidation failed", zap.Error(err), zap.Int64("user_id", userID))
	}
}

func unreadCacheKey(userID int64) string {
	return fmt.Sprintf("unread:messages:%d", userID)
}
