package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type mockMessageRepo struct {
	created      []*models.Message
	markAffected int64
	unread       int
	unreadCalls  int
}

func (m *mockMessageRepo) Create(ctx context.Context, message *models.Message) error {
	message.ID = int64(len(m.created) + 1)
	m.created = append(m.created, message)
	return nil
}

func (m *mockMessageRepo) ListBetween(ctx context.Context, userID, peerID int64, page, pageSize int) ([]models.MessageDetail, int, error) {
	return nil, 0, nil
}

func (m *mockMessageRepo) Conversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	return nil, nil
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, userID, peerID int64) (int64, error) {
	return m.markAffected, nil
}

func (m *mockMessageRepo) UnreadCount(ctx context.Context, userID int64) (int, error) {
	m.unreadCalls++
	return m.unread, nil
}

type mockUserDir struct {
	users map[int64]*models.User
}

func (m *mockUserDir) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockUnreadCache struct {
	values  map[string]int
	sets    []string
	deleted []string
}

func (m *mockUnreadCache) Get(ctx context.Context, key string, dest interface{}) error {
	if v, ok := m.values[key]; ok {
		*(dest.(*int)) = v
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *mockUnreadCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets = append(m.sets, key)
	return nil
}

func (m *mockUnreadCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func newMessageFixture() (*MessageService, *mockMessageRepo, *mockNotificationStore, *mockLivePusher, *mockUnreadCache) {
	repo := &mockMessageRepo{}
	users := &mockUserDir{users: map[int64]*models.User{
		1: {ID: 1, Email: "a@example.com", FullName: "Sender", Role: models.RoleTeacher, Active: true},
		2: {ID: 2, Email: "b@example.com", FullName: "Recipient", Role: models.RoleParent, Active: true},
		3: {ID: 3, Email: "c@example.com", FullName: "Inactive", Role: models.RoleParent, Active: false},
	}}
	notifications := &mockNotificationStore{}
	hub := &mockLivePusher{}
	cache := &mockUnreadCache{}
	svc := NewMessageService(repo, users, notifications, hub, cache, 30*time.Second, validator.New(), zap.NewNop())
	return svc, repo, notifications, hub, cache
}

func TestMessageServiceSend(t *testing.T) {
	svc, repo, notifications, hub, cache := newMessageFixture()

	message, err := svc.Send(context.Background(), Actor{ID: 1, Role: models.RoleTeacher}, SendMessageRequest{
		RecipientID: 2,
		Content:     "Hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), message.SenderID)
	assert.Len(t, repo.created, 1)

	require.Len(t, notifications.created, 1)
	assert.Equal(t, models.NotificationMessage, notifications.created[0].Type)
	assert.Equal(t, int64(2), notifications.created[0].UserID)
	assert.Equal(t, []int64{2}, hub.notified)
	assert.Equal(t, []string{"unread:messages:2"}, cache.deleted)
}

func TestMessageServiceSendTruncatesPreview(t *testing.T) {
	svc, _, notifications, _, _ := newMessageFixture()

	long := strings.Repeat("x", 500)
	_, err := svc.Send(context.Background(), Actor{ID: 1, Role: models.RoleTeacher}, SendMessageRequest{
		RecipientID: 2,
		Content:     long,
	})
	require.NoError(t, err)
	require.Len(t, notifications.created, 1)
	assert.Len(t, notifications.created[0].Body, 120)
}

func TestMessageServiceSendRejectsSelfAndInactive(t *testing.T) {
	svc, repo, _, _, _ := newMessageFixture()

	_, err := svc.Send(context.Background(), Actor{ID: 1, Role: models.RoleTeacher}, SendMessageRequest{
		RecipientID: 1,
		Content:     "echo",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Send(context.Background(), Actor{ID: 1, Role: models.RoleTeacher}, SendMessageRequest{
		RecipientID: 3,
		Content:     "hello",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Send(context.Background(), Actor{ID: 1, Role: models.RoleTeacher}, SendMessageRequest{
		RecipientID: 404,
		Content:     "hello",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestMessageServiceUnreadCountCaches(t *testing.T) {
	svc, repo, _, _, cache := newMessageFixture()
	repo.unread = 4

	count, err := svc.UnreadCount(context.Background(), Actor{ID: 1, Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 1, repo.unreadCalls)
	assert.Equal(t, []string{"unread:messages:1"}, cache.sets)

	cache.values = map[string]int{"unread:messages:1": 4}
	count, err = svc.UnreadCount(context.Background(), Actor{ID: 1, Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 1, repo.unreadCalls)
}

func TestMessageServiceMarkReadInvalidates(t *testing.T) {
	svc, repo, _, _, cache := newMessageFixture()
	repo.markAffected = 2

	affected, err := svc.MarkRead(context.Background(), Actor{ID: 1, Role: models.RoleTeacher}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.Equal(t, []string{"unread:messages:1"}, cache.deleted)

	// Nothing to mark means nothing to invalidate.
	repo.markAffected = 0
	cache.deleted = nil
	_, err = svc.MarkRead(context.Background(), Actor{ID: 1, Role: models.RoleTeacher}, 2)
	require.NoError(t, err)
	assert.Empty(t, cache.deleted)
}
