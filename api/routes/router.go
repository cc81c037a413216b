package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub-app/learnhub-backend/api/controllers"
	webhookcontrollers "github.com/learnhub-app/learnhub-backend/api/controllers/webhooks"
	"github.com/learnhub-app/learnhub-backend/api/middleware"
	"github.com/learnhub-app/learnhub-backend/internal/auth"
	"github.com/learnhub-app/learnhub-backend/internal/categories"
	"github.com/learnhub-app/learnhub-backend/internal/certificates"
	"github.com/learnhub-app/learnhub-backend/internal/chapters"
	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/internal/enrollments"
	"github.com/learnhub-app/learnhub-backend/internal/lessons"
	"github.com/learnhub-app/learnhub-backend/internal/progress"
	"github.com/learnhub-app/learnhub-backend/internal/subscriptions"
	stripewebhook "github.com/learnhub-app/learnhub-backend/internal/webhooks/stripe"
	"github.com/learnhub-app/learnhub-backend/pkg/auth/session"
	"github.com/learnhub-app/learnhub-backend/pkg/config"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
	"github.com/learnhub-app/learnhub-backend/pkg/redis"
	"github.com/learnhub-app/learnhub-backend/pkg/stripe"
)

// RouterParams collects everything the HTTP surface depends on. Services
// are wired in cmd/api; nil services surface as 500s from the controller
// guards rather than panics at mount time.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	AuthService         auth.Service
	CategoryService     categories.Service
	CourseService       courses.Service
	ChapterService      chapters.Service
	LessonService       lessons.Service
	EnrollmentService   enrollments.Service
	ProgressService     progress.Service
	CertificateService  certificates.Service
	SubscriptionService subscriptions.Service

	StripeClient       *stripe.Client
	StripeWebhookSvc   *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
	MuxWebhookSvc      webhookcontrollers.MuxWebhookService
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Redis, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/categories", controllers.CategoryList(p.CategoryService, logg))
		r.Get("/courses", controllers.CourseCatalog(p.CourseService, logg))
		r.Get("/courses/{slug}", controllers.CourseBySlug(p.CourseService, logg))
		r.Get("/certificates/{credentialId}", controllers.CertificateVerify(p.CertificateService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhookSvc, p.StripeClient, p.StripeWebhookGuard, logg))
		r.Post("/mux", webhookcontrollers.MuxWebhook(p.MuxWebhookSvc, cfg.Mux.WebhookSecret, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.Route("/v1/instructor", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, enums.UserRoleInstructor.String(), enums.UserRoleAdmin.String()))

			r.Route("/courses", func(r chi.Router) {
				r.Post("/", controllers.CourseCreate(p.CourseService, logg))
				r.Get("/", controllers.CourseListMine(p.CourseService, logg))
				r.Route("/{courseId}", func(r chi.Router) {
					r.Get("/", controllers.CourseGet(p.CourseService, logg))
					r.Patch("/", controllers.CourseUpdate(p.CourseService, logg))
					r.Delete("/", controllers.CourseDelete(p.CourseService, logg))
					r.Post("/publish", controllers.CoursePublish(p.CourseService, logg))
					r.Post("/unpublish", controllers.CourseUnpublish(p.CourseService, logg))

					r.Route("/chapters", func(r chi.Router) {
						r.Get("/", controllers.ChapterList(p.ChapterService, logg))
						r.Post("/", controllers.ChapterCreate(p.ChapterService, logg))
						r.Post("/reorder", controllers.ChapterReorder(p.ChapterService, logg))
						r.Route("/{chapterId}", func(r chi.Router) {
							r.Patch("/", controllers.ChapterUpdate(p.ChapterService, logg))
							r.Delete("/", controllers.ChapterDelete(p.ChapterService, logg))
							r.Post("/publish", controllers.ChapterPublish(p.ChapterService, logg))
							r.Post("/unpublish", controllers.ChapterUnpublish(p.ChapterService, logg))
						})
					})
				})
			})

			r.Route("/chapters/{chapterId}/lessons", func(r chi.Router) {
				r.Get("/", controllers.LessonList(p.LessonService, logg))
				r.Post("/", controllers.LessonCreate(p.LessonService, logg))
				r.Post("/reorder", controllers.LessonReorder(p.LessonService, logg))
			})
			r.Route("/lessons/{lessonId}", func(r chi.Router) {
				r.Patch("/", controllers.LessonUpdate(p.LessonService, logg))
				r.Delete("/", controllers.LessonDelete(p.LessonService, logg))
				r.Post("/publish", controllers.LessonPublish(p.LessonService, logg))
				r.Post("/unpublish", controllers.LessonUnpublish(p.LessonService, logg))
				r.Post("/upload-url", controllers.LessonUploadURL(p.LessonService, logg))
			})
		})

		r.Route("/v1", func(r chi.Router) {
			r.Post("/courses/{courseId}/enroll", controllers.Enroll(p.EnrollmentService, logg))
			r.Get("/courses/{courseId}/progress", controllers.CourseProgress(p.ProgressService, logg))
			r.Post("/lessons/{lessonId}/progress", controllers.ProgressToggle(p.ProgressService, logg))
			r.Get("/my-courses", controllers.MyCourses(p.EnrollmentService, logg))
			r.Get("/certificates", controllers.CertificateListMine(p.CertificateService, logg))

			r.Route("/billing", func(r chi.Router) {
				r.Post("/checkout/subscription", controllers.BillingSubscriptionCheckout(p.SubscriptionService, logg))
				r.Post("/checkout/course/{courseId}", controllers.BillingCourseCheckout(p.SubscriptionService, logg))
				r.Post("/portal", controllers.BillingPortal(p.SubscriptionService, logg))
				r.Get("/subscription", controllers.BillingSubscription(p.SubscriptionService, logg))
			})
		})
	})

	return r
}
