package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/middleware"
	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/internal/service"
)

type inboxMock struct {
	notifications []models.Notification
	lastFilter    models.NotificationFilter
	unread        int
	markAffected  int64
}

func (m *inboxMock) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.lastFilter = filter
	return m.notifications, len(m.notifications), nil
}

func (m *inboxMock) UnreadCount(_ context.Context, _ int64) (int, error) {
	return m.unread, nil
}

func (m *inboxMock) MarkRead(_ context.Context, _, _ int64) (int64, error) {
	return m.markAffected, nil
}

func (m *inboxMock) MarkAllRead(_ context.Context, _ int64) (int64, error) {
	return m.markAffected, nil
}

func notificationRouter(mock *inboxMock, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewNotificationHandler(service.NewNotificationService(mock, zap.NewNop()))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	r.GET("/notifications", h.List)
	r.GET("/notifications/unread", h.UnreadCount)
	r.POST("/notifications/:id/read", h.MarkRead)
	r.POST("/notifications/read-all", h.MarkAllRead)
	return r
}

func TestNotificationHandlerListScopesToActor(t *testing.T) {
	mock := &inboxMock{notifications: []models.Notification{
		{ID: 3, UserID: 7, Type: models.NotificationAnnouncement, Title: "Meeting", CreatedAt: time.Now()},
	}}
	router := notificationRouter(mock, &models.JWTClaims{UserID: 7, Role: models.RoleParent})

	req, _ := http.NewRequest(http.MethodGet, "/notifications?unread=true&type=announcement&page=2&limit=5", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, int64(7), mock.lastFilter.UserID)
	require.NotNil(t, mock.lastFilter.Unread)
	require.True(t, *mock.lastFilter.Unread)
	require.Equal(t, models.NotificationAnnouncement, mock.lastFilter.Type)
	require.Equal(t, 2, mock.lastFilter.Page)
	require.Equal(t, 5, mock.lastFilter.PageSize)

	var envelope struct {
		Data       []models.Notification `json:"data"`
		Pagination *models.Pagination    `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, "Meeting", envelope.Data[0].Title)
	require.NotNil(t, envelope.Pagination)
	require.Equal(t, 2, envelope.Pagination.Page)
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	mock := &inboxMock{unread: 4}
	router := notificationRouter(mock, &models.JWTClaims{UserID: 7, Role: models.RoleParent})

	req, _ := http.NewRequest(http.MethodGet, "/notifications/unread", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"unread":4`)
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	router := notificationRouter(&inboxMock{markAffected: 1}, &models.JWTClaims{UserID: 7, Role: models.RoleParent})

	req, _ := http.NewRequest(http.MethodPost, "/notifications/12/read", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)

	req, _ = http.NewRequest(http.MethodPost, "/notifications/abc/read", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestNotificationHandlerMarkReadMissing(t *testing.T) {
	router := notificationRouter(&inboxMock{markAffected: 0}, &models.JWTClaims{UserID: 7, Role: models.RoleParent})

	req, _ := http.NewRequest(http.MethodPost, "/notifications/99/read", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestNotificationHandlerMarkAllRead(t *testing.T) {
	router := notificationRouter(&inboxMock{markAffected: 3}, &models.JWTClaims{UserID: 7, Role: models.RoleParent})

	req, _ := http.NewRequest(http.MethodPost, "/notifications/read-all", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"marked":3`)
}
