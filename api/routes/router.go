package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/labinventory-backend/api/controllers"
	"github.com/angelmondragon/labinventory-backend/api/middleware"
	"github.com/angelmondragon/labinventory-backend/internal/analytics"
	"github.com/angelmondragon/labinventory-backend/internal/auth"
	"github.com/angelmondragon/labinventory-backend/internal/damagereports"
	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/loans"
	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/internal/reminders"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/auth/session"
	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
	"github.com/angelmondragon/labinventory-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/labinventory-backend/pkg/redis"
)

// Cache is the redis surface the HTTP layer needs for rate limits and
// idempotency.
type Cache interface {
	pkgredis.IdempotencyStore
	middleware.RateLimiterStore
	Ping(ctx context.Context) error
}

// Dependencies carries everything NewRouter mounts. Nil services answer
// with an internal error instead of panicking.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Database controllers.Pinger
	Cache    Cache
	Sessions session.AccessSessionChecker
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
	// UploadsDir is served read-only under /uploads.
	UploadsDir string
	// Location reads calendar dates in request bodies; nil means UTC.
	Location *time.Location

	Auth          auth.Service
	Items         items.Service
	Loans         loans.Service
	DamageReports damagereports.Service
	Reminders     reminders.Service
	Notifications notifications.Service
	Users         users.Service
	Profile       users.ProfileService
	Analytics     analytics.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	var (
		idempotencyStore pkgredis.IdempotencyStore
		rateStore        middleware.RateLimiterStore
		readiness        = map[string]controllers.Pinger{}
	)
	if deps.Cache != nil {
		idempotencyStore = deps.Cache
		rateStore = deps.Cache
		readiness["redis"] = deps.Cache
	}
	if deps.Database != nil {
		readiness["database"] = deps.Database
	}
	idem := middleware.Idempotency(idempotencyStore, logg)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	if deps.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadsDir))))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ListItems(deps.Items, logg))
			r.With(idem).Post("/", controllers.CreateItem(deps.Items, logg))
			r.Get("/{itemId}", controllers.GetItem(deps.Items, logg))
			r.Put("/{itemId}", controllers.UpdateItem(deps.Items, logg))
			r.Delete("/{itemId}", controllers.DeleteItem(deps.Items, logg))
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", controllers.ListLoans(deps.Loans, logg))
			r.With(idem).Post("/", controllers.CreateLoan(deps.Loans, loc, logg))
			r.Get("/{loanId}", controllers.GetLoan(deps.Loans, logg))
			r.With(idem).Post("/{loanId}/status", controllers.TransitionLoan(deps.Loans, logg))
			r.Put("/{loanId}/return-date", controllers.UpdateLoanReturnDate(deps.Loans, loc, logg))
		})

		r.Route("/damage-reports", func(r chi.Router) {
			r.Get("/", controllers.ListDamageReports(deps.DamageReports, logg))
			r.With(idem).Post("/", controllers.CreateDamageReport(deps.DamageReports, cfg.Uploads.MaxDamagePhotoBytes, logg))
			r.Get("/{reportId}", controllers.GetDamageReport(deps.DamageReports, logg))
			r.Post("/{reportId}/complete", controllers.CompleteDamageReport(deps.DamageReports, logg))
		})

		r.Get("/reminders", controllers.ListReminders(deps.Reminders, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.With(middleware.RequireRole(enums.RoleAdmin, logg), idem).Post("/", controllers.PostNotification(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Put("/{notificationId}", controllers.SetNotificationRead(deps.Notifications, logg))
			r.Delete("/{notificationId}", controllers.DeleteNotification(deps.Notifications, logg))
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.GetProfile(deps.Profile, logg))
			r.Put("/", controllers.UpdateProfile(deps.Profile, logg))
			r.Post("/image", controllers.UploadProfileImage(deps.Profile, cfg.Uploads.MaxProfileBytes, logg))
		})

		r.Get("/analytics", controllers.AnalyticsReport(deps.Analytics, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(deps.Users, logg))
			r.With(idem).Post("/", controllers.AdminCreateUser(deps.Users, logg))
			r.Put("/{userId}", controllers.AdminUpdateUser(deps.Users, logg))
			r.Delete("/{userId}", controllers.AdminDeleteUser(deps.Users, logg))
		})
	})

	return r
}
