// Package main is the entrypoint for the recipe API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/cache"
	"github.com/recipebox/recipebox/internal/config"
	"github.com/recipebox/recipebox/internal/handler"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/middleware"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
	"github.com/recipebox/recipebox/internal/repository/memory"
	"github.com/recipebox/recipebox/internal/server"
	"github.com/recipebox/recipebox/internal/service"
	"github.com/recipebox/recipebox/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("store ready", "memory", cfg.UsesMemoryStore())
	if cfg.IsProduction() && cfg.UsesMemoryStore() {
		logger.Warn("memory store in production: all data is lost on restart")
	}

	// Initialize cache. Without Redis the auth cache and rate limiting are off.
	var (
		authCache   service.AuthCache
		limiter     middleware.RateLimiter
		cacheHealth handler.HealthChecker
		cacheClient *cache.Cache
	)
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			store.Close()
			os.Exit(1)
		}
		authCache, limiter, cacheHealth = cacheClient, cacheClient, cacheClient
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set; auth cache and rate limiting disabled")
	}

	// Initialize image storage
	images, media, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}

	// Initialize metrics
	var (
		recorder metrics.Recorder = metrics.NewNoop()
		exporter http.Handler
	)
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		recorder, exporter = prom, prom.Handler()
	}

	// Initialize services
	services := server.Services{
		Users:       service.NewUserService(store, auth.DefaultParams, recorder, logger),
		Tokens:      service.NewTokenService(store, store, authCache, auth.DefaultParams, recorder, logger).WithMaxTokens(cfg.MaxTokensPerUser),
		Tags:        service.NewAttributeService(model.KindTag, store, recorder, logger),
		Ingredients: service.NewAttributeService(model.KindIngredient, store, recorder, logger),
		Recipes:     service.NewRecipeService(store, store, images, storage.ImageLimits{
			MaxDimension: cfg.ImageMaxDimension,
			MaxPixels:    cfg.ImageMaxPixels,
		}, recorder, logger),
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	r := server.NewRouter(server.RouterConfig{
		Logger:          logger,
		Services:        services,
		Recorder:        recorder,
		MetricsExporter: exporter,
		Media:           media,
		Health: []handler.Dependency{
			{Name: "database", Checker: store},
			{Name: "redis", Checker: cacheHealth},
		},
		Security: middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:     corsCfg,
		RateLimit: middleware.RateLimitConfig{
			Limiter:     limiter,
			UserEnabled: cfg.RateLimitAPIEnabled,
			UserRPM:     cfg.RateLimitAPIRPM,
			UserBurst:   cfg.RateLimitAPIBurst,
			IPEnabled:   cfg.RateLimitIPEnabled,
			IPRPS:       cfg.RateLimitIPRPS,
			IPBurst:     cfg.RateLimitIPBurst,
		},
		AuthMinDuration: cfg.AuthMinDuration,
		MaxBodySize:     cfg.MaxRequestBodySize,
		MaxUploadSize:   cfg.MaxUploadSize,
	})

	// Create and run server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("database", func(context.Context) error {
		store.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"storage", cfg.StorageBackend,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore connects to PostgreSQL, or returns the in-process store for memory://.
func openStore(ctx context.Context, cfg *config.Config) (service.Store, error) {
	if cfg.UsesMemoryStore() {
		return memory.New(), nil
	}
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// openStorage builds the image backend. The returned handler serves local
// media and is nil for S3, whose objects are served by the bucket.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Store, http.Handler, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	case config.StorageLocal:
		local, err := storage.NewLocal(cfg.MediaRoot, cfg.MediaBaseURL())
		if err != nil {
			return nil, nil, err
		}
		return local, local.Handler(), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError replaces secrets echoed back in driver errors.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
