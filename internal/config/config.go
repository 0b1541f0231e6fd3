package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Reader-Pulse application.
type Config struct {
	Server     ServerConfig
	ClickHouse ClickHouseConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Geo        GeoConfig
	Analytics  AnalyticsConfig
	Newsletter NewsletterConfig
	Captcha    CaptchaConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// ClickHouseConfig configures the event log connection.
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled     bool
	TrackRPS    float64
	TrackBurst  int
	ReportRPS   float64
	ReportBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP enrichment of tracked events.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// AnalyticsConfig holds report-side settings.
type AnalyticsConfig struct {
	// EpochDate is where the "all" timeframe starts.
	EpochDate time.Time
	// DefaultTimeframe is used when a request carries an unknown value.
	DefaultTimeframe string
}

// NewsletterConfig configures the outbound transactional mailer.
type NewsletterConfig struct {
	Enabled        bool
	MailerEndpoint string
	MailerAPIKey   string
	FromAddress    string
	ConfirmBaseURL string
}

// CaptchaConfig configures the bot-verification collaborator.
type CaptchaConfig struct {
	Enabled   bool
	VerifyURL string
	Secret    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("PULSE_HTTP_ADDR", ":8080"),
			Env:             getEnv("PULSE_ENV", "development"),
			ShutdownTimeout: getDurationEnv("PULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("PULSE_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("PULSE_CLICKHOUSE_DB", "pulse"),
			User:     getEnv("PULSE_CLICKHOUSE_USER", "default"),
			Password: getEnv("PULSE_CLICKHOUSE_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PULSE_DB_HOST", "localhost"),
			Port:     getIntEnv("PULSE_DB_PORT", 5432),
			User:     getEnv("PULSE_DB_USER", "pulse"),
			Password: getEnv("PULSE_DB_PASSWORD", "pulse_secret"),
			DBName:   getEnv("PULSE_DB_NAME", "pulse"),
			SSLMode:  getEnv("PULSE_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("PULSE_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("PULSE_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("PULSE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("PULSE_REDIS_PASSWORD", ""),
			DB:       getIntEnv("PULSE_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("PULSE_AUTH_ENABLED", true),
			MasterKey: getEnv("PULSE_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("PULSE_AUTH_SKIP_PATHS", []string{
				"/health", "/metrics", "/analytics/track", "/articles/", "/newsletter/",
			}),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getBoolEnv("PULSE_RATE_LIMIT_ENABLED", true),
			TrackRPS:    getFloatEnv("PULSE_RATE_LIMIT_TRACK_RPS", 500),
			TrackBurst:  getIntEnv("PULSE_RATE_LIMIT_TRACK_BURST", 100),
			ReportRPS:   getFloatEnv("PULSE_RATE_LIMIT_REPORT_RPS", 50),
			ReportBurst: getIntEnv("PULSE_RATE_LIMIT_REPORT_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("PULSE_LOG_LEVEL", "info"),
			Format: getEnv("PULSE_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("PULSE_METRICS_ENABLED", true),
			Path:    getEnv("PULSE_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("PULSE_GEO_ENABLED", false),
			DatabasePath: getEnv("PULSE_GEO_DB_PATH", "/app/data/GeoLite2-Country.mmdb"),
		},
		Analytics: AnalyticsConfig{
			EpochDate:        getDateEnv("PULSE_ANALYTICS_EPOCH", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			DefaultTimeframe: getEnv("PULSE_ANALYTICS_DEFAULT_TIMEFRAME", "24h"),
		},
		Newsletter: NewsletterConfig{
			Enabled:        getBoolEnv("PULSE_NEWSLETTER_ENABLED", true),
			MailerEndpoint: getEnv("PULSE_MAILER_ENDPOINT", ""),
			MailerAPIKey:   getEnv("PULSE_MAILER_API_KEY", ""),
			FromAddress:    getEnv("PULSE_MAILER_FROM", "news@mekongwire.example"),
			ConfirmBaseURL: getEnv("PULSE_NEWSLETTER_CONFIRM_URL", "http://localhost:8080/newsletter/confirm"),
		},
		Captcha: CaptchaConfig{
			Enabled:   getBoolEnv("PULSE_CAPTCHA_ENABLED", false),
			VerifyURL: getEnv("PULSE_CAPTCHA_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
			Secret:    getEnv("PULSE_CAPTCHA_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("PULSE_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Captcha.Enabled && c.Captcha.Secret == "" {
		return fmt.Errorf("PULSE_CAPTCHA_SECRET is required when captcha is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getDateEnv(key string, def time.Time) time.Time {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
