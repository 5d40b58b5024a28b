package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port  string `mapstructure:"PORT"`
	Env   string `mapstructure:"ENV"`
	Debug bool   `mapstructure:"DEBUG"`

	BackendURL            string        `mapstructure:"BACKEND_URL"`
	BackendToken          string        `mapstructure:"BACKEND_TOKEN"`
	BackendJWTSecret      string        `mapstructure:"BACKEND_JWT_SECRET"`
	BackendJWTIssuer      string        `mapstructure:"BACKEND_JWT_ISSUER"`
	BackendJWTSubject     string        `mapstructure:"BACKEND_JWT_SUBJECT"`
	BackendTimeout        time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	BackendRateLimitRPS   float64       `mapstructure:"BACKEND_RATE_LIMIT_RPS"`
	BackendRateLimitBurst int           `mapstructure:"BACKEND_RATE_LIMIT_BURST"`

	SearchDebounce     time.Duration `mapstructure:"SEARCH_DEBOUNCE"`
	DefaultPerPage     int           `mapstructure:"DEFAULT_PER_PAGE"`
	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	OTelEnabled     bool    `mapstructure:"OTEL_ENABLED"`
	OTelProtocol    string  `mapstructure:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	OTelServiceName string  `mapstructure:"OTEL_SERVICE_NAME"`
	OTelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
}

var keys = []string{
	"PORT", "ENV", "DEBUG",
	"BACKEND_URL", "BACKEND_TOKEN",
	"BACKEND_JWT_SECRET", "BACKEND_JWT_ISSUER", "BACKEND_JWT_SUBJECT",
	"BACKEND_TIMEOUT", "BACKEND_RATE_LIMIT_RPS", "BACKEND_RATE_LIMIT_BURST",
	"SEARCH_DEBOUNCE", "DEFAULT_PER_PAGE", "SESSION_IDLE_TIMEOUT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_SERVICE_NAME", "OTEL_SAMPLE_RATIO",
}

// Load reads configuration from the environment. Values in a .env file in
// the working directory are applied first but never override variables that
// are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("BACKEND_TIMEOUT", "30s")
	v.SetDefault("BACKEND_RATE_LIMIT_RPS", 20)
	v.SetDefault("BACKEND_RATE_LIMIT_BURST", 40)
	v.SetDefault("BACKEND_JWT_ISSUER", "emr-console")
	v.SetDefault("BACKEND_JWT_SUBJECT", "emr-console")
	v.SetDefault("SEARCH_DEBOUNCE", "800ms")
	v.SetDefault("DEFAULT_PER_PAGE", 10)
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SERVICE_NAME", "emr-console")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the console is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuditEnabled reports whether mutation outcomes are journaled to Postgres.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

// Validate checks that the configuration is safe to run. In production the
// backend must be reached over https with some form of credential.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL scheme must be http or https, got %q", u.Scheme)
	}

	if c.BackendToken != "" && c.BackendJWTSecret != "" {
		return fmt.Errorf("set only one of BACKEND_TOKEN and BACKEND_JWT_SECRET")
	}

	if c.IsProduction() {
		if u.Scheme != "https" {
			return fmt.Errorf("BACKEND_URL must use https in production")
		}
		if c.BackendToken == "" && c.BackendJWTSecret == "" {
			return fmt.Errorf("BACKEND_TOKEN or BACKEND_JWT_SECRET is required in production")
		}
	}
	if c.BackendJWTSecret != "" && len(c.BackendJWTSecret) < 32 {
		return fmt.Errorf("BACKEND_JWT_SECRET must be at least 32 bytes, got %d", len(c.BackendJWTSecret))
	}

	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive, got %s", c.BackendTimeout)
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE must not be negative, got %s", c.SearchDebounce)
	}
	if c.DefaultPerPage < 1 || c.DefaultPerPage > 100 {
		return fmt.Errorf("DEFAULT_PER_PAGE must be between 1 and 100, got %d", c.DefaultPerPage)
	}
	if c.OTelProtocol != "grpc" && c.OTelProtocol != "http/protobuf" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_PROTOCOL must be grpc or http/protobuf, got %q", c.OTelProtocol)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1, got %v", c.OTelSampleRatio)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}
