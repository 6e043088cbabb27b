package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
)

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	refID := int64(9)
	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(int64(7), "announcement", "School closed", "Holiday on Friday", refID, false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	notification := &models.Notification{
		UserID: 7,
		Type:   models.NotificationAnnouncement,
		Title:  "School closed",
		Body:   "Holiday on Friday",
		RefID:  &refID,
	}
	require.NoError(t, repo.Create(context.Background(), notification))
	assert.Equal(t, int64(11), notification.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListUnread(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	now := time.Now()
	columns := []string{"id", "user_id", "type", "title", "body", "ref_id", "read", "read_at", "created_at"}
	rows := sqlmock.NewRows(columns).
		AddRow(1, 7, "message", "New message", "hello", nil, false, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE n.user_id = $1 AND n.read = $2 ORDER BY n.created_at DESC, n.id DESC LIMIT 20 OFFSET 0")).
		WithArgs(int64(7), false).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications n WHERE n.user_id = $1 AND n.read = $2")).
		WithArgs(int64(7), false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	unread := true
	notifications, total, err := repo.List(context.Background(), models.NotificationFilter{UserID: 7, Unread: &unread})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, 1, total)
	assert.False(t, notifications[0].Read)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE, read_at = $3 WHERE id = $1 AND user_id = $2 AND read = FALSE")).
		WithArgs(int64(11), int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.MarkRead(context.Background(), 11, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// A second attempt touches nothing, the row is already read.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE")).
		WithArgs(int64(11), int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err = repo.MarkRead(context.Background(), 11, 7)
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryUnreadCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.UnreadCount(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
