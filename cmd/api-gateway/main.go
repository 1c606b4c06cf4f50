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

	_ "github.com/edureach/program-lottery-api/api/swagger"
	"github.com/edureach/program-lottery-api/internal/handler"
	internalmiddleware "github.com/edureach/program-lottery-api/internal/middleware"
	"github.com/edureach/program-lottery-api/internal/models"
	"github.com/edureach/program-lottery-api/internal/repository"
	"github.com/edureach/program-lottery-api/internal/service"
	"github.com/edureach/program-lottery-api/pkg/cache"
	"github.com/edureach/program-lottery-api/pkg/config"
	"github.com/edureach/program-lottery-api/pkg/database"
	"github.com/edureach/program-lottery-api/pkg/jobs"
	"github.com/edureach/program-lottery-api/pkg/logger"
	corsmiddleware "github.com/edureach/program-lottery-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edureach/program-lottery-api/pkg/middleware/requestid"
	"github.com/edureach/program-lottery-api/pkg/storage"
)

// @title Program Lottery API
// @version 1.0.0
// @description Preference-based lottery seat assignment for program registrations
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	userRepo := repository.NewUserRepository(db)
	programRepo := repository.NewProgramRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	ledgerRepo := repository.NewClassRegistrationRepository(db)
	lotteryRunRepo := repository.NewLotteryRunRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "program-lottery-api",
	})
	catalogSvc := service.NewCatalogService(programRepo, courseRepo, timeSlotRepo, ledgerRepo, cacheRepo, cfg.Catalog.CacheTTL, validate, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, programRepo, userRepo, ledgerRepo, validate, logr)
	preferenceSvc := service.NewPreferenceService(preferenceRepo, registrationRepo, timeSlotRepo, cacheRepo, cfg.Catalog.CacheTTL, validate, logr)
	assignmentSvc := service.NewAssignmentService(ledgerRepo, registrationRepo, timeSlotRepo, validate, logr)
	lotterySvc := service.NewLotteryService(
		programRepo,
		timeSlotRepo,
		preferenceRepo,
		ledgerRepo,
		lotteryRunRepo,
		db,
		cacheRepo,
		metricsSvc,
		validate,
		logr,
		service.LotteryConfig{
			Strategy:            cfg.Lottery.Strategy,
			Incremental:         cfg.Lottery.Incremental,
			AcceptedCoursesOnly: cfg.Lottery.AcceptedCoursesOnly,
			MaxDuration:         cfg.Lottery.MaxDuration,
			LockTTL:             cfg.Lottery.LockTTL,
		},
	)

	authHandler := handler.NewAuthHandler(authSvc)
	programHandler := handler.NewProgramHandler(catalogSvc)
	courseHandler := handler.NewCourseHandler(catalogSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	preferenceHandler := handler.NewPreferenceHandler(preferenceSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	lotteryHandler := handler.NewLotteryHandler(lotterySvc)

	var exportHandler *handler.ExportHandler
	var exportQueue *jobs.Queue
	if cfg.Rosters.Enabled {
		store, err := storage.NewLocalStorage(cfg.Rosters.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Rosters.SignedURLSecret, cfg.Rosters.SignedURLTTL)
		exportJobRepo := repository.NewExportJobRepository(db)
		exportSvc := service.NewExportService(ledgerRepo, programRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Rosters.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewRosterExportWorker(exportJobRepo, exportSvc, cfg.Rosters.WorkerRetries, logr)
		exportQueue = jobs.NewQueue("roster-exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Rosters.WorkerConcurrency,
			MaxRetries: cfg.Rosters.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)

		rosterSvc := service.NewRosterExportService(exportJobRepo, programRepo, exportQueue, exportSvc, logr, service.RosterExportConfig{
			ResultTTL:  cfg.Rosters.SignedURLTTL,
			MaxRetries: cfg.Rosters.WorkerRetries,
		})
		rosterSvc.RecoverPendingJobs(ctx)
		rosterSvc.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(rosterSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc, routeHandlers{
		auth:          authHandler,
		programs:      programHandler,
		courses:       courseHandler,
		registrations: registrationHandler,
		preferences:   preferenceHandler,
		assignments:   assignmentHandler,
		lottery:       lotteryHandler,
		exports:       exportHandler,
	})

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

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}

type routeHandlers struct {
	auth          *handler.AuthHandler
	programs      *handler.ProgramHandler
	courses       *handler.CourseHandler
	registrations *handler.RegistrationHandler
	preferences   *handler.PreferenceHandler
	assignments   *handler.AssignmentHandler
	lottery       *handler.LotteryHandler
	exports       *handler.ExportHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, authSvc *service.AuthService, h routeHandlers) {
	authn := internalmiddleware.JWT(authSvc)
	adminOnly := internalmiddleware.RBAC(models.RoleAdmin, models.RoleSuperAdmin)
	staff := internalmiddleware.RBAC(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/refresh", h.auth.Refresh)
	api.POST("/auth/logout", authn, h.auth.Logout)
	api.PUT("/auth/password", authn, h.auth.ChangePassword)
	api.GET("/auth/me", authn, h.auth.Me)

	api.GET("/programs", authn, h.programs.List)
	api.POST("/programs", authn, adminOnly, h.programs.Create)
	api.GET("/programs/:id", authn, h.programs.Get)
	api.PUT("/programs/:id", authn, adminOnly, h.programs.Update)
	api.DELETE("/programs/:id", authn, adminOnly, h.programs.Delete)
	api.GET("/programs/:id/time-slots", authn, h.programs.ListTimeSlots)
	api.POST("/programs/:id/time-slots", authn, adminOnly, h.programs.AddTimeSlot)
	api.DELETE("/time-slots/:id", authn, adminOnly, h.programs.DeleteTimeSlot)

	api.GET("/programs/:id/courses", authn, h.courses.List)
	api.POST("/programs/:id/courses", authn, staff, h.courses.Create)
	api.GET("/courses/:id", authn, h.courses.Get)
	api.PUT("/courses/:id", authn, staff, h.courses.Update)
	api.DELETE("/courses/:id", authn, staff, h.courses.Delete)
	api.GET("/courses/:id/sections", authn, h.courses.ListSections)
	api.POST("/courses/:id/sections", authn, staff, h.courses.AddSection)
	api.DELETE("/sections/:id", authn, staff, h.courses.DeleteSection)

	api.GET("/programs/:id/registrations", authn, staff, h.registrations.List)
	api.POST("/programs/:id/registrations", authn, h.registrations.Create)
	api.GET("/registrations/:id", authn, h.registrations.Get)
	api.DELETE("/registrations/:id", authn, h.registrations.Delete)

	api.GET("/registrations/:id/preferences", authn, h.preferences.List)
	api.PUT("/registrations/:id/preferences", authn, h.preferences.Submit)
	api.GET("/programs/:id/demand", authn, staff, h.preferences.Demand)

	api.GET("/programs/:id/assignments", authn, staff, h.assignments.List)
	api.POST("/assignments", authn, adminOnly, h.assignments.Create)
	api.POST("/assignments/:id/confirm", authn, h.assignments.Confirm)
	api.DELETE("/assignments/:id", authn, adminOnly, h.assignments.Delete)

	api.POST("/programs/:id/lottery", authn, adminOnly, h.lottery.Run)
	api.GET("/programs/:id/lottery/runs", authn, staff, h.lottery.History)

	if h.exports != nil {
		api.POST("/programs/:id/exports", authn, staff, h.exports.Queue)
		api.GET("/exports/:id", authn, staff, h.exports.Status)
		api.GET("/downloads/:token", h.exports.Download)
	}
}
