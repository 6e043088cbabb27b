package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type mockNotificationInbox struct {
	listFilter   models.NotificationFilter
	listResult   []models.Notification
	listTotal    int
	markAffected int64
	markCalls    [][2]int64
	allAffected  int64
}

func (m *mockNotificationInbox) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.listFilter = filter
	return m.listResult, m.listTotal, nil
}

func (m *mockNotificationInbox) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return 3, nil
}

func (m *mockNotificationInbox) MarkRead(ctx context.Context, id, userID int64) (int64, error) {
	m.markCalls = append(m.markCalls, [2]int64{id, userID})
	return m.markAffected, nil
}

func (m *mockNotificationInbox) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return m.allAffected, nil
}

func TestNotificationServiceListScopesToActor(t *testing.T) {
	repo := &mockNotificationInbox{
		listResult: []models.Notification{{ID: 1, UserID: 7}},
		listTotal:  1,
	}
	svc := NewNotificationService(repo, zap.NewNop())

	// A filter naming another user is overridden by the actor's id.
	notifications, pagination, err := svc.List(context.Background(), Actor{ID: 7, Role: models.RoleParent}, models.NotificationFilter{UserID: 99})
	require.NoError(t, err)
	assert.Equal(t, int64(7), repo.listFilter.UserID)
	assert.Len(t, notifications, 1)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestNotificationServiceMarkRead(t *testing.T) {
	repo := &mockNotificationInbox{markAffected: 1}
	svc := NewNotificationService(repo, zap.NewNop())

	require.NoError(t, svc.MarkRead(context.Background(), Actor{ID: 7, Role: models.RoleParent}, 12))
	assert.Equal(t, [][2]int64{{12, 7}}, repo.markCalls)

	repo.markAffected = 0
	err := svc.MarkRead(context.Background(), Actor{ID: 7, Role: models.RoleParent}, 12)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceMarkAllRead(t *testing.T) {
	repo := &mockNotificationInbox{allAffected: 5}
	svc := NewNotificationService(repo, zap.NewNop())

	affected, err := svc.MarkAllRead(context.Background(), Actor{ID: 7, Role: models.RoleParent})
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)
}
