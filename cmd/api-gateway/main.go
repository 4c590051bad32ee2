package main

import (
	"context"
	"errors"
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

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 0.1.0
// @description Timetable core: catalogs, assignment engine, conflict ledger, templates and change history
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, timetable cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeSlotRepo := repository.NewTimeSlotRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	changeRepo := repository.NewChangeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	validate := validator.New()
	metrics := service.NewMetricsService()

	// The queue gets its own lifetime so buffered notifications still drain
	// after the signal context is cancelled; Stop bounds the shutdown.
	notificationSvc := service.NewNotificationService(notificationRepo, cfg.Notifications, logr)
	if cfg.Notifications.Enabled {
		notificationSvc.Start(context.Background())
		defer notificationSvc.Stop()
	}

	assignmentSvc := service.NewAssignmentService(
		entryRepo,
		conflictRepo,
		changeRepo,
		scheduleRepo,
		roomRepo,
		timeSlotRepo,
		dispatcher(cfg, notificationSvc),
		cacheRepo,
		metrics,
		cfg.Scheduling,
		cfg.Cache.TTL,
		validate,
		logr,
	)
	timeSlotSvc := service.NewTimeSlotService(timeSlotRepo, cfg.Scheduling, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, validate, logr)
	conflictSvc := service.NewConflictService(conflictRepo, metrics, validate, logr)
	changeSvc := service.NewChangeService(changeRepo)
	templateSvc := service.NewTemplateService(templateRepo, assignmentSvc, metrics, validate, logr)

	timeSlotHandler := handler.NewTimeSlotHandler(timeSlotSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, changeSvc)
	entryHandler := handler.NewEntryHandler(assignmentSvc, changeSvc)
	conflictHandler := handler.NewConflictHandler(conflictSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, timeSlotHandler, roomHandler, scheduleHandler, entryHandler, conflictHandler, templateHandler, notificationHandler, metricsHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}

// dispatcher returns the notification fan-out sink, or nil when outbound
// notifications are disabled so the engine skips dispatch entirely.
func dispatcher(cfg *config.Config, svc *service.NotificationService) *service.NotificationService {
	if !cfg.Notifications.Enabled {
		return nil
	}
	return svc
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	timeSlots *handler.TimeSlotHandler,
	rooms *handler.RoomHandler,
	schedules *handler.ScheduleHandler,
	entries *handler.EntryHandler,
	conflicts *handler.ConflictHandler,
	templates *handler.TemplateHandler,
	notifications *handler.NotificationHandler,
	metrics *handler.MetricsHandler,
) {
	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	write := middleware.RequireRoles(models.RoleAdmin, models.RoleScheduler)

	api.GET("/time-slots", timeSlots.List)
	api.GET("/time-slots/:id", timeSlots.Get)
	api.POST("/time-slots", write, timeSlots.Create)
	api.DELETE("/time-slots/:id", write, timeSlots.Deactivate)

	api.GET("/rooms", rooms.List)
	api.GET("/rooms/:id", rooms.Get)
	api.POST("/rooms", write, rooms.Create)
	api.PUT("/rooms/:id", write, rooms.Update)
	api.DELETE("/rooms/:id", write, rooms.Deactivate)

	api.GET("/schedules", schedules.List)
	api.GET("/schedules/:id", schedules.Get)
	api.POST("/schedules", write, schedules.Create)
	api.PUT("/schedules/:id", write, schedules.Update)
	api.DELETE("/schedules/:id", write, schedules.Deactivate)
	api.GET("/schedules/:id/entries", entries.ListBySchedule)
	api.GET("/schedules/:id/conflicts", conflicts.ListBySchedule)
	api.GET("/schedules/:id/changes", schedules.ListChanges)

	api.POST("/entries", write, entries.Create)
	api.PUT("/entries/:id", write, entries.Update)
	api.DELETE("/entries/:id", write, entries.Deactivate)
	api.GET("/entries/:id/changes", entries.ListChanges)

	api.POST("/conflicts", write, conflicts.Record)
	api.POST("/conflicts/:id/resolve", write, conflicts.Resolve)

	api.GET("/templates", templates.List)
	api.GET("/templates/:id", templates.Get)
	api.POST("/templates", write, templates.Create)
	api.POST("/templates/:id/entries", write, templates.AddEntry)
	api.POST("/templates/:id/apply", write, templates.Apply)
	api.DELETE("/templates/:id", write, templates.Deactivate)

	api.GET("/notifications", notifications.ListMine)
	api.POST("/notifications/:id/read", notifications.MarkRead)

	api.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metrics.Snapshot)
}
