package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/willy-peters/SmartPOS/api/controllers"
	"github.com/willy-peters/SmartPOS/api/middleware"
	"github.com/willy-peters/SmartPOS/internal/auth"
	product "github.com/willy-peters/SmartPOS/internal/products"
	"github.com/willy-peters/SmartPOS/internal/sales"
	"github.com/willy-peters/SmartPOS/internal/users"
	"github.com/willy-peters/SmartPOS/pkg/auth/session"
	"github.com/willy-peters/SmartPOS/pkg/config"
	"github.com/willy-peters/SmartPOS/pkg/db"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	"github.com/willy-peters/SmartPOS/pkg/logger"
	"github.com/willy-peters/SmartPOS/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// NewRouter assembles the HTTP surface: health and metrics endpoints,
// the public auth group, and the token-protected API groups. Role checks
// run twice on admin routes: RequireRole rejects early, and the services
// authorize again with resource-level context.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metrics prometheus.Gatherer,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	userService users.Service,
	productService product.Service,
	saleService sales.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)

	requireAuth := middleware.Auth(cfg.JWT, sessionManager, logg)
	adminOnly := middleware.RequireRole(enums.RoleAdmin, logg)

	r.Get("/healthz", controllers.Healthz(cfg, logg, dbP, redisClient))

	if metrics == nil {
		metrics = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		r.With(requireAuth, adminOnly).Post("/register", controllers.AuthRegister(registerService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)

		r.Route("/users", func(r chi.Router) {
			r.With(adminOnly).Get("/", controllers.UserList(userService, logg))
			r.Get("/me", controllers.UserMe(userService, logg))
			r.Get("/{userId}", controllers.UserGet(userService, logg))
			r.Patch("/{userId}", controllers.UserUpdate(userService, logg))
			r.With(adminOnly).Delete("/{userId}", controllers.UserDelete(userService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productService, logg))
			r.With(adminOnly).Get("/low-stock", controllers.ProductLowStock(productService, logg))
			r.With(adminOnly).Post("/", controllers.ProductCreate(productService, logg))
			r.Get("/{productId}", controllers.ProductGet(productService, logg))
			r.With(adminOnly).Patch("/{productId}", controllers.ProductUpdate(productService, logg))
			r.With(adminOnly).Delete("/{productId}", controllers.ProductDelete(productService, logg))
			r.With(adminOnly).Post("/{productId}/increase-stock", controllers.ProductIncreaseStock(productService, logg))
			r.With(adminOnly).Post("/{productId}/decrease-stock", controllers.ProductDecreaseStock(productService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.SaleList(saleService, logg))
			r.Post("/", controllers.SaleCreate(saleService, logg))
			r.Get("/today", controllers.SalesToday(saleService, logg))
			r.With(adminOnly).Get("/statistics", controllers.SalesStatistics(saleService, logg))
			r.Get("/{saleId}", controllers.SaleGet(saleService, logg))
			r.Put("/{saleId}", controllers.SaleImmutable(logg))
			r.Patch("/{saleId}", controllers.SaleImmutable(logg))
			r.Delete("/{saleId}", controllers.SaleImmutable(logg))
		})
	})

	return r
}
