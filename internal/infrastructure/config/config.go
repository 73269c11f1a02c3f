package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is loaded in three layers: compiled defaults, an optional YAML
// file, then LEADLINE_-prefixed environment variables. Nested keys use a
// double underscore in the environment, e.g. LEADLINE_DATABASE__URL.
type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Routing   RoutingConfig   `koanf:"routing"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Security  SecurityConfig  `koanf:"security"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// AllowedOrigins is the CORS allowlist for the dashboard frontend.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// RoutingConfig drives the assignment engine.
type RoutingConfig struct {
	// Timezone is the IANA zone business dates are computed in. All daily
	// caps roll over at this zone's midnight.
	Timezone string `koanf:"timezone"`
}

type WebhookConfig struct {
	// Secret is compared against the X-Webhook-Secret header on ingestion.
	Secret string `koanf:"secret"`
	// RatePerMinute caps webhook deliveries per source; zero disables.
	RatePerMinute int `koanf:"rate_per_minute"`
}

type SecurityConfig struct {
	JWTSecret   string          `koanf:"jwt_secret"`
	TokenExpiry time.Duration   `koanf:"token_expiry"`
	RateLimit   RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate"`
}

// Load builds the configuration. The YAML file path defaults to
// configs/config.yaml and can be moved with LEADLINE_CONFIG; a missing
// file is fine, environment variables alone can configure everything.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL: "localhost:6379",
		},
		Routing: RoutingConfig{
			Timezone: "Asia/Kolkata",
		},
		Webhook: WebhookConfig{
			RatePerMinute: 120,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Telemetry: TelemetryConfig{
			SampleRate: 0.1,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path := os.Getenv("LEADLINE_CONFIG")
	if path == "" {
		path = "configs/config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// LEADLINE_DATABASE__MAX_CONNS -> database.max_conns
	if err := k.Load(env.Provider("LEADLINE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "LEADLINE_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Routing.Timezone == "" {
		return fmt.Errorf("routing.timezone is required")
	}
	if _, err := time.LoadLocation(c.Routing.Timezone); err != nil {
		return fmt.Errorf("routing.timezone %q: %w", c.Routing.Timezone, err)
	}
	if c.IsProduction() {
		if c.Webhook.Secret == "" {
			return fmt.Errorf("webhook.secret is required in production")
		}
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("security.jwt_secret is required in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
