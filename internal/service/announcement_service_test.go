package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/internal/realtime"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

type mockAnnouncementRepo struct {
	items   map[int64]*models.Announcement
	deleted []int64
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	return nil, 0, nil
}

func (m *mockAnnouncementRepo) FindByID(ctx context.Context, id int64) (*models.Announcement, error) {
	if a, ok := m.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	if m.items == nil {
		m.items = make(map[int64]*models.Announcement)
	}
	announcement.ID = int64(len(m.items) + 1)
	cp := *announcement
	m.items[announcement.ID] = &cp
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockRecipientDir struct {
	byRole map[models.UserRole][]int64
}

func (m *mockRecipientDir) ListIDsByRole(ctx context.Context, role models.UserRole) ([]int64, error) {
	return m.byRole[role], nil
}

type mockClassParentDir struct {
	byClass map[int64][]int64
}

func (m *mockClassParentDir) ParentIDsByClass(ctx context.Context, classID int64) ([]int64, error) {
	return m.byClass[classID], nil
}

type mockClassOwnership struct {
	owned map[int64]map[int64]bool
}

func (m *mockClassOwnership) TeacherHasClass(ctx context.Context, teacherID, classID int64) (bool, error) {
	return m.owned[teacherID][classID], nil
}

type mockNotificationStore struct {
	created []*models.Notification
	failFor map[int64]error
}

func (m *mockNotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	if err, ok := m.failFor[notification.UserID]; ok {
		return err
	}
	notification.ID = int64(len(m.created) + 1)
	m.created = append(m.created, notification)
	return nil
}

type mockLivePusher struct {
	notified []int64
	events   []realtime.Event
}

func (m *mockLivePusher) Notify(userID int64, event realtime.Event) {
	m.notified = append(m.notified, userID)
	m.events = append(m.events, event)
}

func newAnnouncementFixture() (*AnnouncementService, *mockAnnouncementRepo, *mockNotificationStore, *mockLivePusher) {
	repo := &mockAnnouncementRepo{}
	users := &mockRecipientDir{byRole: map[models.UserRole][]int64{
		models.RoleTeacher: {2, 3},
		models.RoleParent:  {7, 8, 9},
	}}
	students := &mockClassParentDir{byClass: map[int64][]int64{
		1: {7, 8},
	}}
	teachings := &mockClassOwnership{owned: map[int64]map[int64]bool{
		2: {1: true},
	}}
	notifications := &mockNotificationStore{}
	hub := &mockLivePusher{}
	svc := NewAnnouncementService(repo, users, students, teachings, notifications, hub, validator.New(), zap.NewNop())
	return svc, repo, notifications, hub
}

func TestAnnouncementPublishAll(t *testing.T) {
	svc, repo, notifications, hub := newAnnouncementFixture()

	announcement, fanout, err := svc.Publish(context.Background(), Actor{ID: 1, Role: models.RoleAdmin}, CreateAnnouncementRequest{
		Title:    "School closed",
		Content:  "Holiday on Friday",
		Audience: models.AnnouncementAudienceAll,
	})
	require.NoError(t, err)
	assert.Len(t, repo.items, 1)
	assert.Equal(t, 5, fanout.Recipients)
	assert.Equal(t, 5, fanout.Persisted)
	assert.Equal(t, 5, fanout.Pushed)
	assert.Len(t, notifications.created, 5)
	assert.Len(t, hub.notified, 5)

	for _, n := range notifications.created {
		assert.Equal(t, models.NotificationAnnouncement, n.Type)
		assert.Equal(t, "School closed", n.Title)
		require.NotNil(t, n.RefID)
		assert.Equal(t, announcement.ID, *n.RefID)
	}
}

func TestAnnouncementPublishClassByTeacher(t *testing.T) {
	svc, _, notifications, _ := newAnnouncementFixture()
	classID := int64(1)

	_, fanout, err := svc.Publish(context.Background(), Actor{ID: 2, Role: models.RoleTeacher}, CreateAnnouncementRequest{
		Title:         "Field trip",
		Content:       "Bring signed forms",
		Audience:      models.AnnouncementAudienceClass,
		TargetClassID: &classID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fanout.Recipients)
	assert.Len(t, notifications.created, 2)
}

func TestAnnouncementPublishForeignClassForbidden(t *testing.T) {
	svc, repo, _, _ := newAnnouncementFixture()
	classID := int64(99)

	_, _, err := svc.Publish(context.Background(), Actor{ID: 2, Role: models.RoleTeacher}, CreateAnnouncementRequest{
		Title:         "Field trip",
		Content:       "Bring signed forms",
		Audience:      models.AnnouncementAudienceClass,
		TargetClassID: &classID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.items)
}

func TestAnnouncementPublishBroadAudienceRequiresAdmin(t *testing.T) {
	svc, _, _, _ := newAnnouncementFixture()

	for _, audience := range []models.AnnouncementAudience{
		models.AnnouncementAudienceAll,
		models.AnnouncementAudienceTeachers,
		models.AnnouncementAudienceParents,
	} {
		_, _, err := svc.Publish(context.Background(), Actor{ID: 2, Role: models.RoleTeacher}, CreateAnnouncementRequest{
			Title:    "Nope",
			Content:  "Not allowed",
			Audience: audience,
		})
		require.Error(t, err, string(audience))
		assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	}
}

func TestAnnouncementPublishUsersDeduped(t *testing.T) {
	svc, _, notifications, _ := newAnnouncementFixture()

	_, fanout, err := svc.Publish(context.Background(), Actor{ID: 1, Role: models.RoleAdmin}, CreateAnnouncementRequest{
		Title:         "Direct",
		Content:       "Targeted",
		Audience:      models.AnnouncementAudienceUsers,
		TargetUserIDs: []int64{7, 7, 8, 0, -1},
	})
	require.NoError(t, err)
	// Duplicates collapse, non-positive ids are skipped.
	assert.Equal(t, 4, fanout.Recipients)
	assert.Equal(t, 2, fanout.Persisted)
	assert.Len(t, notifications.created, 2)
}

func TestAnnouncementPublishInsertFailureContinues(t *testing.T) {
	svc, _, notifications, hub := newAnnouncementFixture()
	notifications.failFor = map[int64]error{8: errors.New("insert failed")}

	_, fanout, err := svc.Publish(context.Background(), Actor{ID: 1, Role: models.RoleAdmin}, CreateAnnouncementRequest{
		Title:    "Partial",
		Content:  "One recipient fails",
		Audience: models.AnnouncementAudienceParents,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, fanout.Recipients)
	assert.Equal(t, 2, fanout.Persisted)
	assert.Equal(t, 2, fanout.Pushed)
	// The failed recipient is never pushed: no row, no live event.
	assert.NotContains(t, hub.notified, int64(8))
}

func TestAnnouncementDeleteAuthorOnly(t *testing.T) {
	svc, repo, _, _ := newAnnouncementFixture()
	repo.items = map[int64]*models.Announcement{
		1: {ID: 1, Title: "Mine", AuthorID: 2},
	}

	err := svc.Delete(context.Background(), Actor{ID: 3, Role: models.RoleTeacher}, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), Actor{ID: 2, Role: models.RoleTeacher}, 1))
	require.NoError(t, svc.Delete(context.Background(), Actor{ID: 99, Role: models.RoleAdmin}, 1))
	assert.Equal(t, []int64{1, 1}, repo.deleted)
}
