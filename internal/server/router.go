package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recipebox/recipebox/internal/handler"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/middleware"
	"github.com/recipebox/recipebox/internal/service"
)

// Services are the domain services the API exposes.
type Services struct {
	Users       *service.UserService
	Tokens      *service.TokenService
	Tags        *service.AttributeService
	Ingredients *service.AttributeService
	Recipes     *service.RecipeService
}

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Logger   *slog.Logger
	Services Services
	Recorder metrics.Recorder

	// MetricsExporter serves /metrics; nil answers 503.
	MetricsExporter http.Handler
	// Media serves /media/*; nil leaves the path unrouted.
	Media http.Handler
	// Health lists the dependencies /readyz pings.
	Health []handler.Dependency

	Security        middleware.SecurityConfig
	CORS            middleware.CORSConfig
	RateLimit       middleware.RateLimitConfig
	AuthMinDuration time.Duration
	MaxBodySize     int64
	MaxUploadSize   int64
}

// NewRouter builds the chi router for the public API.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	rl := cfg.RateLimit
	rl.Logger = logger
	rl.Metrics = recorder

	h := handler.New()
	health := handler.NewHealthHandler(cfg.Health...)
	metricsH := handler.NewMetricsHandler(cfg.MetricsExporter)
	users := handler.NewUserHandler(cfg.Services.Users, cfg.Services.Tokens, logger)
	tags := handler.NewAttributeHandler(cfg.Services.Tags, logger)
	ingredients := handler.NewAttributeHandler(cfg.Services.Ingredients, logger)
	recipes := handler.NewRecipeHandler(cfg.Services.Recipes, cfg.MaxUploadSize, logger)

	requireToken := middleware.Auth(middleware.AuthConfig{
		Logger:        logger,
		Authenticator: cfg.Services.Tokens,
		MinDuration:   cfg.AuthMinDuration,
	})
	jsonBody := middleware.MaxBodySize(cfg.MaxBodySize)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics(recorder))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimiddleware.StripSlashes)

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Get("/metrics", metricsH.Metrics)

	if cfg.Media != nil {
		r.Handle("/media/*", http.StripPrefix("/media", cfg.Media))
	}

	r.Route("/user", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitIP(rl), jsonBody)
			r.Post("/create", users.Create)
			r.Post("/token", users.Token)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireToken, middleware.RateLimitUser(rl), jsonBody)
			r.Get("/me", users.Me)
			r.Put("/me", users.UpdateMe)
			r.Patch("/me", users.UpdateMe)
		})
	})

	r.Route("/recipe", func(r chi.Router) {
		r.Use(requireToken, middleware.RateLimitUser(rl))

		for path, ah := range map[string]*handler.AttributeHandler{"/tags": tags, "/ingredients": ingredients} {
			r.Get(path, ah.List)
			r.With(jsonBody).Post(path, ah.Create)
			r.Get(path+"/{id}", ah.Get)
			r.With(jsonBody).Put(path+"/{id}", ah.Update)
			r.With(jsonBody).Patch(path+"/{id}", ah.Patch)
			r.Delete(path+"/{id}", ah.Delete)
		}

		r.Get("/recipes", recipes.List)
		r.With(jsonBody).Post("/recipes", recipes.Create)
		r.Get("/recipes/{id}", recipes.Get)
		r.With(jsonBody).Put("/recipes/{id}", recipes.Update)
		r.With(jsonBody).Patch("/recipes/{id}", recipes.Patch)
		r.Delete("/recipes/{id}", recipes.Delete)
		r.Post("/recipes/{id}/upload-image", recipes.UploadImage)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
