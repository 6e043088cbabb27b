package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/RayenAkrich/EduLink-sub000/api/swagger"
	"github.com/RayenAkrich/EduLink-sub000/internal/handler"
	"github.com/RayenAkrich/EduLink-sub000/internal/middleware"
	"github.com/RayenAkrich/EduLink-sub000/internal/realtime"
	"github.com/RayenAkrich/EduLink-sub000/internal/repository"
	"github.com/RayenAkrich/EduLink-sub000/internal/service"
	"github.com/RayenAkrich/EduLink-sub000/pkg/cache"
	"github.com/RayenAkrich/EduLink-sub000/pkg/config"
	"github.com/RayenAkrich/EduLink-sub000/pkg/database"
	"github.com/RayenAkrich/EduLink-sub000/pkg/export"
	"github.com/RayenAkrich/EduLink-sub000/pkg/jobs"
	"github.com/RayenAkrich/EduLink-sub000/pkg/logger"
	corsmiddleware "github.com/RayenAkrich/EduLink-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/RayenAkrich/EduLink-sub000/pkg/middleware/requestid"
	"github.com/RayenAkrich/EduLink-sub000/pkg/storage"
)

// @title EduLink API
// @version 1.0.0
// @description School management backend: grades, absences, messaging and live notifications
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teachingRepo := repository.NewTeachingRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := realtime.NewHub(logr)
	metricsSvc := service.NewMetricsService()
	hub.SetMetrics(metricsSvc)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, userRepo, validate, logr)
	teachingSvc := service.NewTeachingService(teachingRepo, classRepo, userRepo, validate, logr)
	noteSvc := service.NewNoteService(noteRepo, teachingRepo, studentRepo, cacheRepo, cfg.Cache.ReportTTL, validate, logr)
	absenceSvc := service.NewAbsenceService(absenceRepo, studentRepo, teachingRepo, notificationRepo, hub, validate, logr)
	absenceSvc.SetMetrics(metricsSvc)
	activitySvc := service.NewActivityService(activityRepo, teachingRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, userRepo, studentRepo, teachingRepo, notificationRepo, hub, validate, logr)
	announcementSvc.SetMetrics(metricsSvc)
	messageSvc := service.NewMessageService(messageRepo, userRepo, notificationRepo, hub, cacheRepo, cfg.Cache.UnreadTTL, validate, logr)
	messageSvc.SetMetrics(metricsSvc)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("report storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportSvc := service.NewReportService(studentRepo, teachingRepo, noteRepo, export.NewPDFExporter(), export.NewCSVExporter(), store, signer, logr)
	reportSvc.SetMetrics(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		reportQueue = jobs.NewQueue("reports", reportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportSvc.AttachQueue(reportQueue)
		reportQueue.Start(ctx)

		go cleanupReports(ctx, store, cfg.Reports, logr)
	}

	h := handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Classes:       handler.NewClassHandler(classSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Teachings:     handler.NewTeachingHandler(teachingSvc),
		Notes:         handler.NewNoteHandler(noteSvc),
		Absences:      handler.NewAbsenceHandler(absenceSvc),
		Activities:    handler.NewActivityHandler(activitySvc),
		Announcements: handler.NewAnnouncementHandler(announcementSvc),
		Messages:      handler.NewMessageHandler(messageSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Reports:       handler.NewReportHandler(reportSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc),
		Realtime:      realtime.NewHandler(hub, authSvc.ValidateToken, cfg.Realtime, logr),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r, cfg.APIPrefix, h, authSvc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
	logr.Info("stopped")
}

// cleanupReports periodically removes expired export files.
func cleanupReports(ctx context.Context, store *storage.LocalStorage, cfg config.ReportsConfig, logr *zap.Logger) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(cfg.SignedURLTTL)
			if err != nil {
				logr.Sugar().Warnw("report cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("expired reports removed", "count", len(removed))
			}
		}
	}
}
