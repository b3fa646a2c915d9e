package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/localbiz-backend/api/controllers"
	"github.com/angelmondragon/localbiz-backend/api/middleware"
	"github.com/angelmondragon/localbiz-backend/internal/auth"
	"github.com/angelmondragon/localbiz-backend/internal/businesses"
	"github.com/angelmondragon/localbiz-backend/internal/notifications"
	"github.com/angelmondragon/localbiz-backend/internal/review"
	pkgAuth "github.com/angelmondragon/localbiz-backend/pkg/auth"
	"github.com/angelmondragon/localbiz-backend/pkg/auth/session"
	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/db"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/redis"
)

type authService interface {
	Login(ctx context.Context, role enums.Role, in auth.Credentials) (*auth.Grant, error)
	Register(ctx context.Context, role enums.Role, in auth.Signup) (*auth.Grant, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.Grant, error)
	Logout(ctx context.Context, accessToken string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	tokens *pkgAuth.Issuer,
	sessions session.Checker,
	authSvc authService,
	businessService businesses.Service,
	reviewService review.Service,
	notificationsService notifications.Service,
	statusHook *notifications.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if cfg.App.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.App.RequestTimeout))
	}

	loginThrottle := middleware.ThrottleAuth(redisClient, middleware.Throttle{
		Name:     "login",
		Window:   cfg.AuthRateLimit.LoginWindow,
		PerIP:    cfg.AuthRateLimit.LoginIPLimit,
		PerEmail: cfg.AuthRateLimit.LoginEmailLimit,
	}, logg)
	registerThrottle := middleware.ThrottleAuth(redisClient, middleware.Throttle{
		Name:     "register",
		Window:   cfg.AuthRateLimit.RegisterWindow,
		PerIP:    cfg.AuthRateLimit.RegisterIPLimit,
		PerEmail: cfg.AuthRateLimit.RegisterEmailLimit,
	}, logg)

	var probes []controllers.Probe
	if dbP != nil {
		probes = append(probes, controllers.Probe{Name: "db", Dep: dbP})
	}
	if redisClient != nil {
		probes = append(probes, controllers.Probe{Name: "redis", Dep: redisClient})
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, probes))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/hooks", func(r chi.Router) {
		r.Post("/business-status", controllers.BusinessStatusHook(statusHook, cfg.Hooks.Secret, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginThrottle).Post("/login", controllers.AuthLogin(authSvc, enums.RoleOwner, logg))
		r.With(registerThrottle).Post("/register", controllers.AuthRegister(authSvc, enums.RoleOwner, logg))
		r.Post("/logout", controllers.AuthLogout(authSvc, logg))
		r.Post("/refresh", controllers.AuthRefresh(authSvc, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		// Admin self-registration only exists outside production.
		if !cfg.App.IsProd() {
			r.With(registerThrottle).Post("/register", controllers.AuthRegister(authSvc, enums.RoleAdmin, logg))
		}
		r.With(loginThrottle).Post("/login", controllers.AuthLogin(authSvc, enums.RoleAdmin, logg))
	})

	requireAuth := middleware.Auth(tokens, sessions, logg)

	ownerWrite := middleware.Idempotent(redisClient, middleware.OwnerIdempotencyTTL, logg)
	reviewWrite := middleware.Idempotent(redisClient, middleware.ReviewIdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/businesses", controllers.SearchBusinesses(businessService, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/businesses/me", controllers.GetMyBusiness(businessService, logg))
			r.With(ownerWrite).Post("/businesses/me", controllers.RegisterBusiness(businessService, logg))
			r.Get("/businesses/me/status", controllers.BusinessStatusPage(businessService, logg))

			r.Get("/notifications", controllers.ListNotifications(notificationsService, logg))
			r.With(ownerWrite).Post("/notifications/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.With(ownerWrite).Post("/notifications/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin/v1/businesses", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

		r.Get("/pending", controllers.AdminPendingBusinesses(reviewService, logg))
		r.With(reviewWrite).Post("/{businessId}/approve", controllers.AdminApproveBusiness(reviewService, logg))
		r.With(reviewWrite).Post("/{businessId}/decline", controllers.AdminDeclineBusiness(reviewService, logg))
	})

	return r
}
