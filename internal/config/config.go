// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// MemoryDatabaseURL selects the in-process store instead of PostgreSQL.
const MemoryDatabaseURL = "memory://"

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database: a PostgreSQL DSN or memory://
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Cache (Redis). Empty disables the auth cache and rate limiting.
	RedisURL string `env:"REDIS_URL"`

	// Public base URL of the API, used to build media URLs.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM     int  `env:"RATE_LIMIT_API_RPM" envDefault:"600"`
	RateLimitAPIBurst   int  `env:"RATE_LIMIT_API_BURST" envDefault:"60"`
	RateLimitIPEnabled  bool `env:"RATE_LIMIT_IP_ENABLED" envDefault:"true"`
	RateLimitIPRPS      int  `env:"RATE_LIMIT_IP_RPS" envDefault:"5"`
	RateLimitIPBurst    int  `env:"RATE_LIMIT_IP_BURST" envDefault:"10"`

	// Comma-separated list of allowed origins, e.g. "https://example.com,*.example.org"
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Body limits in bytes
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
	MaxUploadSize      int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`

	// Minimum time spent on a failed token check.
	AuthMinDuration time.Duration `env:"AUTH_MIN_DURATION" envDefault:"200ms"`
	// Tokens kept per user; issuing past the cap revokes the oldest. 0 keeps all.
	MaxTokensPerUser int `env:"MAX_TOKENS_PER_USER" envDefault:"10"`

	// Image storage
	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"local"`
	MediaRoot         string `env:"MEDIA_ROOT" envDefault:"./media"`
	MediaURL          string `env:"MEDIA_URL"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3PublicURL       string `env:"S3_PUBLIC_URL"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	// Longest side of stored images; larger uploads are downscaled. 0 keeps originals.
	ImageMaxDimension int `env:"IMAGE_MAX_DIMENSION" envDefault:"2048"`
	// Uploads whose header claims more pixels are rejected before decoding.
	ImageMaxPixels int `env:"IMAGE_MAX_PIXELS" envDefault:"40000000"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesMemoryStore reports whether DATABASE_URL selects the in-process store.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == MemoryDatabaseURL
}

// MediaBaseURL is the URL prefix under which locally stored images are served.
func (c *Config) MediaBaseURL() string {
	if c.MediaURL != "" {
		return strings.TrimRight(c.MediaURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/") + "/media"
}

// Validate checks constraints that span several variables.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageLocal:
		if c.MediaRoot == "" {
			errs = append(errs, errors.New("MEDIA_ROOT is required for the local storage backend"))
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 storage backend"))
		}
		if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
			errs = append(errs, errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageLocal, StorageS3, c.StorageBackend))
	}

	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.AppPort))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE must be positive"))
	}
	if c.ImageMaxDimension < 0 {
		errs = append(errs, errors.New("IMAGE_MAX_DIMENSION must not be negative"))
	}
	if c.MaxTokensPerUser < 0 {
		errs = append(errs, errors.New("MAX_TOKENS_PER_USER must not be negative"))
	}
	if c.ImageMaxPixels <= 0 {
		errs = append(errs, errors.New("IMAGE_MAX_PIXELS must be positive"))
	}
	if c.RateLimitAPIEnabled && (c.RateLimitAPIRPM < 0 || c.RateLimitAPIBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_API_RPM must be >= 0 and RATE_LIMIT_API_BURST > 0"))
	}
	if c.RateLimitIPEnabled && (c.RateLimitIPRPS <= 0 || c.RateLimitIPBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_IP_RPS and RATE_LIMIT_IP_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
