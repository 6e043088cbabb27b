package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/RayenAkrich/EduLink-sub000/internal/middleware"
	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/internal/realtime"
	"github.com/RayenAkrich/EduLink-sub000/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Classes       *ClassHandler
	Students      *StudentHandler
	Teachings     *TeachingHandler
	Notes         *NoteHandler
	Absences      *AbsenceHandler
	Activities    *ActivityHandler
	Announcements *AnnouncementHandler
	Messages      *MessageHandler
	Notifications *NotificationHandler
	Reports       *ReportHandler
	Metrics       *MetricsHandler
	Realtime      *realtime.Handler
}

// Register mounts all routes on the router under the given prefix.
func Register(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService) {
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Download authorisation is carried by the signed token itself.
	api.GET("/reports/download", h.Reports.Download)

	// Websocket clients authenticate via query token, not Authorization header.
	api.GET("/ws", h.Realtime.Serve)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.PUT("/auth/password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/users", adminOnly, h.Users.List)
	secured.GET("/users/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.Users.Get)
	secured.POST("/users", adminOnly, h.Users.Create)
	secured.PUT("/users/:id", adminOnly, h.Users.Update)
	secured.DELETE("/users/:id", adminOnly, h.Users.Delete)

	secured.GET("/classes", h.Classes.List)
	secured.GET("/classes/:id", h.Classes.Get)
	secured.POST("/classes", adminOnly, h.Classes.Create)
	secured.PUT("/classes/:id", adminOnly, h.Classes.Update)
	secured.DELETE("/classes/:id", adminOnly, h.Classes.Delete)

	secured.GET("/students", h.Students.List)
	secured.GET("/students/:id", h.Students.Get)
	secured.POST("/students", adminOnly, h.Students.Create)
	secured.PUT("/students/:id", adminOnly, h.Students.Update)
	secured.DELETE("/students/:id", adminOnly, h.Students.Delete)
	secured.GET("/students/:id/report/:term", h.Notes.TermReport)

	secured.GET("/teachings", h.Teachings.List)
	secured.GET("/teachings/:id", h.Teachings.Get)
	secured.POST("/teachings", adminOnly, h.Teachings.Create)
	secured.PUT("/teachings/:id", adminOnly, h.Teachings.Update)
	secured.DELETE("/teachings/:id", adminOnly, h.Teachings.Delete)

	secured.GET("/notes", h.Notes.List)
	secured.POST("/notes", staff, h.Notes.Create)
	secured.PUT("/notes/:id", staff, h.Notes.Update)
	secured.DELETE("/notes/:id", staff, h.Notes.Delete)

	secured.GET("/absences", h.Absences.List)
	secured.POST("/absences", staff, h.Absences.Create)
	secured.PUT("/absences/:id", staff, h.Absences.Update)
	secured.DELETE("/absences/:id", staff, h.Absences.Delete)

	secured.GET("/activities", h.Activities.List)
	secured.GET("/activities/:id", h.Activities.Get)
	secured.POST("/activities", staff, h.Activities.Create)
	secured.PUT("/activities/:id", staff, h.Activities.Update)
	secured.DELETE("/activities/:id", staff, h.Activities.Delete)

	secured.GET("/announcements", h.Announcements.List)
	secured.GET("/announcements/:id", h.Announcements.Get)
	secured.POST("/announcements", staff, h.Announcements.Publish)
	secured.DELETE("/announcements/:id", staff, h.Announcements.Delete)

	secured.GET("/messages", h.Messages.Conversations)
	secured.GET("/messages/unread", h.Messages.UnreadCount)
	secured.GET("/messages/:id", h.Messages.Thread)
	secured.POST("/messages", h.Messages.Send)
	secured.POST("/messages/:id/read", h.Messages.MarkRead)

	secured.GET("/notifications", h.Notifications.List)
	secured.GET("/notifications/unread", h.Notifications.UnreadCount)
	secured.POST("/notifications/:id/read", h.Notifications.MarkRead)
	secured.POST("/notifications/read-all", h.Notifications.MarkAllRead)

	secured.POST("/reports/bulletin/:id/:term", h.Reports.RequestBulletin)
	secured.POST("/reports/class/:id/:term", staff, h.Reports.RequestClassCSV)
	secured.GET("/reports/:id", h.Reports.Status)
}
