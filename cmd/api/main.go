package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/learnhub-app/learnhub-backend/api/routes"
	"github.com/learnhub-app/learnhub-backend/internal/auth"
	"github.com/learnhub-app/learnhub-backend/internal/categories"
	"github.com/learnhub-app/learnhub-backend/internal/certificates"
	"github.com/learnhub-app/learnhub-backend/internal/chapters"
	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/internal/enrollments"
	"github.com/learnhub-app/learnhub-backend/internal/lessons"
	"github.com/learnhub-app/learnhub-backend/internal/payments"
	"github.com/learnhub-app/learnhub-backend/internal/progress"
	"github.com/learnhub-app/learnhub-backend/internal/subscriptions"
	"github.com/learnhub-app/learnhub-backend/internal/users"
	muxwebhook "github.com/learnhub-app/learnhub-backend/internal/webhooks/mux"
	stripewebhook "github.com/learnhub-app/learnhub-backend/internal/webhooks/stripe"
	"github.com/learnhub-app/learnhub-backend/pkg/auth/session"
	"github.com/learnhub-app/learnhub-backend/pkg/config"
	"github.com/learnhub-app/learnhub-backend/pkg/db"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
	"github.com/learnhub-app/learnhub-backend/pkg/migrate"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
	"github.com/learnhub-app/learnhub-backend/pkg/redis"
	pkgstripe "github.com/learnhub-app/learnhub-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)
	courseRepo := courses.NewRepository(gormDB)
	chapterRepo := chapters.NewRepository(gormDB)
	lessonRepo := lessons.NewRepository(gormDB)
	enrollmentRepo := enrollments.NewRepository(gormDB)
	progressRepo := progress.NewRepository(gormDB)
	certificateRepo := certificates.NewRepository(gormDB)
	subscriptionRepo := subscriptions.NewRepository(gormDB)
	paymentRepo := payments.NewRepository(gormDB)

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	billingClient := subscriptions.NewStripeClient(stripeClient)
	catalog := subscriptions.NewPlanCatalog(cfg.Stripe)

	categoryService, err := categories.NewService(categories.ServiceParams{
		Repo: categories.NewRepository(gormDB),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create category service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	courseService, err := courses.NewService(courses.ServiceParams{
		Repo:   courseRepo,
		DB:     dbClient,
		Outbox: outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create course service", err)
		os.Exit(1)
	}

	chapterService, err := chapters.NewService(chapters.ServiceParams{
		Repo:       chapterRepo,
		CourseRepo: courseRepo,
		DB:         dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create chapter service", err)
		os.Exit(1)
	}

	lessonService, err := lessons.NewService(lessons.ServiceParams{
		Repo:        lessonRepo,
		ChapterRepo: chapterRepo,
		CourseRepo:  courseRepo,
		DB:          dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lesson service", err)
		os.Exit(1)
	}

	enrollmentService, err := enrollments.NewService(enrollments.ServiceParams{
		Repo:        enrollmentRepo,
		CourseRepo:  courseRepo,
		Subs:        subscriptionRepo,
		Outbox:      outboxService,
		DB:          dbClient,
		FreePlanMax: cfg.Enrollment.FreePlanMax,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enrollment service", err)
		os.Exit(1)
	}

	certificateService, err := certificates.NewService(certificates.ServiceParams{
		Repo:   certificateRepo,
		Outbox: outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create certificate service", err)
		os.Exit(1)
	}

	progressService, err := progress.NewService(progress.ServiceParams{
		Repo:        progressRepo,
		LessonRepo:  lessonRepo,
		ChapterRepo: chapterRepo,
		Enrollments: enrollmentRepo,
		Certs:       certificateService,
		Outbox:      outboxService,
		DB:          dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create progress service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:        subscriptionRepo,
		Users:       userRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Stripe:      billingClient,
		Catalog:     catalog,
		BaseURL:     cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		SubscriptionRepo: subscriptionRepo,
		EnrollmentRepo:   enrollmentRepo,
		PaymentRepo:      paymentRepo,
		CourseRepo:       courseRepo,
		StripeClient:     billingClient,
		Catalog:          catalog,
		Outbox:           outboxService,
		DB:               dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	muxWebhookService, err := muxwebhook.NewService(muxwebhook.ServiceParams{
		LessonRepo: lessonRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create mux webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Sessions: sessionManager,

			AuthService:         authService,
			CategoryService:     categoryService,
			CourseService:       courseService,
			ChapterService:      chapterService,
			LessonService:       lessonService,
			EnrollmentService:   enrollmentService,
			ProgressService:     progressService,
			CertificateService:  certificateService,
			SubscriptionService: subscriptionService,

			StripeClient:       stripeClient,
			StripeWebhookSvc:   stripeWebhookService,
			StripeWebhookGuard: stripeWebhookGuard,
			MuxWebhookSvc:      muxWebhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
