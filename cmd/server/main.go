package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mlehner/gymclub-api/api/swagger"
	"github.com/mlehner/gymclub-api/internal/handler"
	"github.com/mlehner/gymclub-api/internal/middleware"
	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/internal/repository"
	"github.com/mlehner/gymclub-api/internal/service"
	"github.com/mlehner/gymclub-api/pkg/cache"
	"github.com/mlehner/gymclub-api/pkg/config"
	"github.com/mlehner/gymclub-api/pkg/database"
	"github.com/mlehner/gymclub-api/pkg/export"
	"github.com/mlehner/gymclub-api/pkg/logger"
	"github.com/mlehner/gymclub-api/pkg/mailer"
	corsmiddleware "github.com/mlehner/gymclub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mlehner/gymclub-api/pkg/middleware/requestid"
	"github.com/mlehner/gymclub-api/pkg/storage"
)

// @title Gym Club API
// @version 0.1.0
// @description Training management API for gymnastics clubs
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, absence count cache disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}

	var mailSender mailer.Sender = mailer.NopSender{}
	if cfg.Mail.Enabled {
		mailSender = mailer.NewResendSender(cfg.Mail, logr)
	}

	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	trainingRepo := repository.NewTrainingRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	cancellationRepo := repository.NewCancellationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	hoursRepo := repository.NewHoursRepository(db)

	validate := validator.New()
	countsCache := cache.NewJSONCache(redisClient, time.Duration(cfg.Club.AbsenceCountCacheTTLSeconds)*time.Second)

	metricsSvc := service.NewMetricsService()
	settingsSvc := service.NewSettingsService(settingsRepo, userRepo, validate, logr, cfg.Club)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	notificationSvc := service.NewNotificationService(mailSender, userRepo, metricsSvc, logr)
	userSvc := service.NewUserService(userRepo, trainingRepo, notificationSvc, validate, logr)
	trainingSvc := service.NewTrainingService(trainingRepo, userRepo, validate, logr)
	materializerSvc := service.NewMaterializerService(trainingRepo, sessionRepo, metricsSvc, logr)
	sessionSvc := service.NewSessionService(sessionRepo, trainingRepo, materializerSvc, notificationSvc, validate, logr)
	cancellationSvc := service.NewCancellationService(cancellationRepo, sessionRepo, validate, logr)
	alertSvc := service.NewAlertService(alertRepo, attendanceRepo, notificationSvc, countsCache, metricsSvc, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, alertSvc, export.NewPDFExporter(), validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, store, notificationSvc, userRepo, validate, logr)
	hoursSvc := service.NewHoursService(hoursRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	trainingHandler := handler.NewTrainingHandler(trainingSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, settingsSvc)
	cancellationHandler := handler.NewCancellationHandler(cancellationSvc, settingsSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	alertHandler := handler.NewAlertHandler(alertSvc, settingsSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc, settingsSvc)
	hoursHandler := handler.NewHoursHandler(hoursSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTrainer)

	authed.GET("/users", admin, userHandler.List)
	authed.GET("/users/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Get)
	authed.POST("/users/:id/approve", admin, userHandler.Approve)
	authed.POST("/users/:id/reject", admin, userHandler.Reject)

	authed.GET("/settings", admin, settingsHandler.Get)
	authed.PUT("/settings", admin, settingsHandler.Update)

	authed.GET("/trainings", trainingHandler.List)
	authed.GET("/trainings/:id", trainingHandler.Get)
	authed.POST("/trainings", admin, trainingHandler.Create)
	authed.PUT("/trainings/:id", admin, trainingHandler.Update)
	authed.DELETE("/trainings/:id", admin, trainingHandler.Retire)

	authed.GET("/trainings/:id/groups", trainingHandler.ListGroups)
	authed.POST("/trainings/:id/groups", admin, trainingHandler.CreateGroup)
	authed.PUT("/groups/:groupId", admin, trainingHandler.UpdateGroup)
	authed.GET("/groups/:groupId/athletes", trainingHandler.ListGroupAthletes)
	authed.PUT("/groups/:groupId/athletes/:athleteId", admin, trainingHandler.AssignAthlete)
	authed.DELETE("/groups/:groupId/athletes/:athleteId", admin, trainingHandler.RemoveAthlete)
	authed.GET("/groups/:groupId/trainers", trainingHandler.ListGroupTrainers)
	authed.PUT("/groups/:groupId/trainers/:trainerId", admin, trainingHandler.AssignTrainer)
	authed.DELETE("/groups/:groupId/trainers/:trainerId", admin, trainingHandler.RemoveTrainer)

	authed.GET("/sessions", sessionHandler.Schedule)
	authed.GET("/sessions/:id", sessionHandler.Get)
	authed.POST("/sessions", staff, sessionHandler.CreateAdHoc)
	authed.POST("/sessions/:id/cancel", staff, sessionHandler.Cancel)
	authed.POST("/sessions/:id/restore", staff, sessionHandler.Restore)
	authed.POST("/sessions/:id/complete", staff, sessionHandler.Complete)
	authed.PUT("/session-groups/:groupId", staff, sessionHandler.UpdateGroup)
	authed.PUT("/session-groups/:groupId/trainers", staff, sessionHandler.ReplaceGroupTrainers)
	authed.POST("/sessions/:id/moves", staff, sessionHandler.MoveAthlete)
	authed.GET("/sessions/:id/moves", staff, sessionHandler.ListAthleteMoves)

	authed.POST("/cancellations", cancellationHandler.Create)
	authed.PUT("/cancellations/:id", cancellationHandler.Edit)
	authed.POST("/cancellations/:id/undo", cancellationHandler.Undo)
	authed.POST("/cancellations/bulk", cancellationHandler.BulkCreate)
	authed.GET("/cancellations", cancellationHandler.List)

	authed.POST("/sessions/:id/attendance", staff, attendanceHandler.Mark)
	authed.GET("/sessions/:id/attendance", staff, attendanceHandler.ListBySession)
	authed.GET("/sessions/:id/attendance/pdf", staff, attendanceHandler.SheetPDF)
	authed.GET("/athletes/:id/attendance", attendanceHandler.History)

	authed.GET("/alerts/live", staff, alertHandler.LiveCounts)
	authed.POST("/alerts/evaluate", admin, alertHandler.Evaluate)
	authed.GET("/alerts", staff, alertHandler.List)
	authed.POST("/alerts/:id/acknowledge", staff, alertHandler.Acknowledge)

	authed.POST("/documents", staff, documentHandler.Upload)
	authed.GET("/documents", documentHandler.List)
	authed.GET("/documents/:id", documentHandler.Get)
	authed.GET("/documents/:id/download", documentHandler.Download)
	authed.DELETE("/documents/:id", staff, documentHandler.Retire)

	authed.GET("/hours", staff, hoursHandler.List)
	authed.GET("/hours/export/csv", staff, hoursHandler.ExportCSV)
	authed.GET("/hours/export/pdf", staff, hoursHandler.ExportPDF)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
