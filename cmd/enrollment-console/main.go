package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/enrollment-console/api/swagger"
	"github.com/noah-isme/enrollment-console/internal/handler"
	"github.com/noah-isme/enrollment-console/internal/middleware"
	"github.com/noah-isme/enrollment-console/internal/models"
	"github.com/noah-isme/enrollment-console/internal/repository"
	"github.com/noah-isme/enrollment-console/internal/service"
	"github.com/noah-isme/enrollment-console/pkg/apiclient"
	"github.com/noah-isme/enrollment-console/pkg/cache"
	"github.com/noah-isme/enrollment-console/pkg/config"
	"github.com/noah-isme/enrollment-console/pkg/database"
	"github.com/noah-isme/enrollment-console/pkg/jobs"
	"github.com/noah-isme/enrollment-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-console/pkg/middleware/requestid"
)

// @title Enrollment Console API
// @version 1.0.0
// @description Reconciles student enrollments against the university registry backend.
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

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	session := service.NewTokenSession(cfg.Session)
	validate := validator.New()

	client := apiclient.New(apiclient.Options{
		BaseURL:            cfg.Backend.BaseURL,
		Timeout:            cfg.Backend.Timeout,
		ResilientEndpoints: cfg.Backend.ResilientEndpoints,
		ListEndpoints:      []string{"/inscripciones", "/estudiantes", "/materias"},
		Credentials:        session,
		Observer:           metrics,
		Logger:             logr,
	})

	enrollmentRepo := repository.NewEnrollmentRepository(client)
	studentRepo := repository.NewStudentRepository(client)
	subjectRepo := repository.NewSubjectRepository(client)

	refs := service.NewReferenceCache()
	store := service.NewEnrollmentStore()
	loader := service.NewTieredLoader([]service.EnrollmentTier{
		service.NewPrimaryTier(enrollmentRepo),
		service.NewPerStudentTier(studentRepo, enrollmentRepo, cfg.Engine.FallbackSampleSize, logr),
		service.StaticTier{},
	}, metrics, logr)

	var guard service.InflightGuard = service.NewMemoryInflightGuard()
	redisClient, err := cache.NewRedis(rootCtx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, in-flight guard stays process local", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		guard = service.NewSharedInflightGuard(repository.NewInflightRepository(redisClient, ""), cfg.Engine.InflightTTL, logr)
	}

	audit, closeAudit := setupAudit(rootCtx, cfg, logr)
	defer closeAudit()

	enrollments := service.NewEnrollmentService(service.EnrollmentDeps{
		Enrollments: enrollmentRepo,
		Students:    studentRepo,
		Subjects:    subjectRepo,
		Loader:      loader,
		Store:       store,
		References:  refs,
		Guard:       guard,
		Session:     session,
		Audit:       audit,
		Metrics:     metrics,
		Validator:   validate,
	}, service.EnrollmentServiceConfig{
		BackendCheckThreshold:      cfg.Engine.BackendCheckThreshold,
		AllowReenrollAfterWithdraw: cfg.Engine.AllowReenrollAfterWithdraw,
	}, logr)
	students := service.NewStudentService(studentRepo, refs, session, validate, logr)
	subjects := service.NewSubjectService(subjectRepo, refs, validate, logr)
	exports := service.NewExportService(enrollments, logr)

	go func() {
		report := enrollments.Load(rootCtx)
		logr.Info("initial enrollment load finished",
			zap.String("tier", string(report.Snapshot.Tier)),
			zap.Bool("degraded", report.Snapshot.Degraded),
			zap.Int("count", len(report.Snapshot.Items)),
			zap.Strings("warnings", report.Warnings),
		)
	}()

	scheduler, err := service.NewRefreshScheduler(cfg.Engine.RefreshSchedule, enrollments, cfg.Backend.Timeout*3, logr)
	if err != nil {
		logr.Fatal("invalid refresh schedule", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	var auditReader interface {
		Recent(ctx context.Context, limit int) ([]models.AuditLog, error)
	}
	if audit != nil {
		auditReader = audit
	}

	enrollmentHandler := handler.NewEnrollmentHandler(enrollments, exports, auditReader)
	studentHandler := handler.NewStudentHandler(students)
	subjectHandler := handler.NewSubjectHandler(subjects)
	healthHandler := handler.NewHealthHandler(enrollments)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Session(session, cfg.Session.Required))
	{
		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments", enrollmentHandler.Create)
		api.POST("/enrollments/reload", enrollmentHandler.Reload)
		api.GET("/enrollments/export", enrollmentHandler.Export)
		api.GET("/enrollments/audit", enrollmentHandler.Audit)
		api.DELETE("/enrollments/:id", enrollmentHandler.Withdraw)
		api.PATCH("/enrollments/:id/status", enrollmentHandler.UpdateStatus)

		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Create)
		api.PUT("/students/:id", studentHandler.Update)
		api.PUT("/students/:id/deactivate", studentHandler.Deactivate)

		api.GET("/subjects", subjectHandler.List)
		api.POST("/subjects", subjectHandler.Create)
		api.PUT("/subjects/:id", subjectHandler.Update)
		api.DELETE("/subjects/:id", subjectHandler.Delete)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// setupAudit connects the audit store and starts its write queue. Audit is
// optional: any failure disables it and enrollment writes carry on.
func setupAudit(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*service.AuditService, func()) {
	noop := func() {}
	if !cfg.Audit.Enabled {
		return nil, noop
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Warn("audit database unavailable, audit disabled", zap.Error(err))
		return nil, noop
	}
	repo := repository.NewAuditRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		logr.Warn("audit schema check failed, audit disabled", zap.Error(err))
		_ = db.Close()
		return nil, noop
	}

	worker := service.NewAuditWorker(repo)
	queue := jobs.NewQueue("audit", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: 256,
		MaxRetries: cfg.Audit.Retries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	// Workers outlive the signal context so Stop can drain buffered entries.
	queue.Start(context.Background())
	return service.NewAuditService(repo, queue, logr), func() {
		queue.Stop()
		_ = db.Close()
	}
}
