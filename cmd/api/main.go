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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-scheduling-api/api/swagger"
	"github.com/noah-isme/edu-scheduling-api/internal/handler"
	internalmiddleware "github.com/noah-isme/edu-scheduling-api/internal/middleware"
	"github.com/noah-isme/edu-scheduling-api/internal/repository"
	"github.com/noah-isme/edu-scheduling-api/internal/service"
	"github.com/noah-isme/edu-scheduling-api/internal/worker"
	"github.com/noah-isme/edu-scheduling-api/pkg/cache"
	"github.com/noah-isme/edu-scheduling-api/pkg/classifier"
	"github.com/noah-isme/edu-scheduling-api/pkg/config"
	"github.com/noah-isme/edu-scheduling-api/pkg/database"
	"github.com/noah-isme/edu-scheduling-api/pkg/logger"
	"github.com/noah-isme/edu-scheduling-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/edu-scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-scheduling-api/pkg/middleware/requestid"
	"github.com/noah-isme/edu-scheduling-api/pkg/observability"
	"github.com/noah-isme/edu-scheduling-api/pkg/payment"
)

// @title Edu Scheduling API
// @version 1.0.0
// @description Course scheduling, paid enrollment, attendance, grading and progress for tutoring institutions.
// @BasePath /api/v1
// @schemes http https
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

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ProgressTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	institutionRepo := repository.NewInstitutionRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	mailer := mail.New(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress, logr, mail.WithTimeout(cfg.Mail.Timeout))
	notifications := service.NewNotificationService(mailer, userRepo, metrics, logr, service.NotificationConfig{
		Workers:     cfg.Notifications.Workers,
		Retries:     cfg.Notifications.Retries,
		RetryDelay:  cfg.Notifications.RetryDelay,
		SendTimeout: cfg.Notifications.SendTimeout,
	})
	notifications.Start(ctx)
	defer notifications.Stop()

	provider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     cfg.Payments.SecretKey,
		WebhookSecret: cfg.Payments.WebhookSecret,
		Timeout:       cfg.Payments.ProviderTimeout,
	})

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(db, userRepo, nil, logr)
	courseSvc := service.NewCourseService(db, courseRepo, userRepo, institutionRepo, cacheSvc, nil, logr)
	scheduleSvc := service.NewScheduleService(courseRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(db, courseRepo, enrollmentRepo, paymentRepo, institutionRepo, userRepo,
		provider, notifications, cacheSvc, metrics, logr, service.EnrollmentConfig{
			Currency:               cfg.Payments.Currency,
			SuccessURL:             cfg.Payments.SuccessURL,
			CancelURL:              cfg.Payments.CancelURL,
			ProviderTimeout:        cfg.Payments.ProviderTimeout,
			SeatHoldTTL:            cfg.Payments.SeatHoldTTL,
			ReconcileAfter:         cfg.Payments.ReconcileAfter,
			ReconcileWindow:        cfg.Payments.ReconcileWindow,
			EnforceStudentSchedule: cfg.Enrollment.EnforceStudentSchedule,
		})
	attendanceSvc := service.NewAttendanceService(courseRepo, attendanceRepo, enrollmentRepo, cacheSvc, nil, logr)
	gradeSvc := service.NewGradeService(courseRepo, gradeRepo, enrollmentRepo, notifications, nil, logr)
	progressSvc := service.NewProgressService(courseRepo, attendanceRepo, enrollmentRepo, cacheSvc, cfg.Cache.ProgressTTL, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Repo:        institutionRepo,
		Cache:       cacheSvc,
		ScheduleTTL: cfg.Cache.ScheduleTTL,
		Logger:      logr,
	})
	documentSvc := service.NewDocumentService(
		classifier.New(cfg.Classifier.URL, cfg.Classifier.Timeout),
		cfg.Classifier.DocumentThreshold,
		logr,
	)

	reconciler, err := worker.NewReconciler(cfg.Payments.ReconcileSpec, enrollmentSvc.Reconcile, 0, logr)
	if err != nil {
		logr.Fatal("invalid reconcile schedule", zap.String("spec", cfg.Payments.ReconcileSpec), zap.Error(err))
	}
	reconciler.Start()
	defer reconciler.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	probes := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"postgres": db,
		"redis":    handler.PingFunc(cacheRepo.Ping),
	})
	r.GET("/health", probes.Health)
	r.GET("/ready", probes.Ready)
	r.GET("/metrics", probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r.Group(cfg.APIPrefix), handler.Handlers{
		Registration: handler.NewRegistrationHandler(userSvc),
		Documents:    handler.NewDocumentHandler(documentSvc),
		Courses:      handler.NewCourseHandler(courseSvc),
		Schedule:     handler.NewScheduleHandler(scheduleSvc),
		Enrollment:   handler.NewEnrollmentHandler(enrollmentSvc),
		Attendance:   handler.NewAttendanceHandler(attendanceSvc),
		Grades:       handler.NewGradeHandler(gradeSvc),
		Progress:     handler.NewProgressHandler(progressSvc),
		Institution:  handler.NewInstitutionHandler(dashboardSvc),
	}, internalmiddleware.JWT(authSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
