// Package config loads the API configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
	limiter "github.com/ulule/limiter/v3"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string
	HTTPBodyLimitBytes int64
	ShutdownTimeout    time.Duration

	IGVRate      decimal.Decimal
	CurrencyCode string

	BarcodePrefix         string
	BarcodeReservationTTL time.Duration
	BarcodeIssueLimit     int
	BarcodeIssueWindow    time.Duration

	SaleLabTurnaround time.Duration
	SaleLockTTL       time.Duration
	IdempotencyTTL    time.Duration
	RateLimit         string

	Obs ObsConfig
}

// ObsConfig toggles logging, metrics, tracing and profiling.
type ObsConfig struct {
	LogFormat          string
	LogLevel           string
	MetricsEnabled     bool
	MetricsNamespace   string
	MetricsBucketsMS   string
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampleRatio float64
	PprofEnabled       bool
	PprofUser          string
	PprofPass          string
	ReadyDBTimeout     time.Duration
	ReadyRedisTimeout  time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE"), true),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		HTTPBodyLimitBytes: int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),

		CurrencyCode: strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "PEN")),

		BarcodePrefix:         valueOrDefault(k.String("BARCODE_COUNTRY_PREFIX"), "775"),
		BarcodeReservationTTL: parseDuration(k.String("BARCODE_RESERVATION_TTL"), "0s"),
		BarcodeIssueLimit:     parseInt(k.String("BARCODE_ISSUE_LIMIT"), 120),
		BarcodeIssueWindow:    parseDuration(k.String("BARCODE_ISSUE_WINDOW"), "1m"),

		SaleLabTurnaround: parseDuration(k.String("SALE_LAB_TURNAROUND"), "120h"),
		SaleLockTTL:       parseDuration(k.String("SALE_LOCK_TTL"), "10s"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:         valueOrDefault(k.String("RATE_LIMIT"), "300-M"),

		Obs: ObsConfig{
			LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "optica"),
			MetricsBucketsMS:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:     parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:    valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingSampleRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:       parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
			ReadyDBTimeout:     time.Duration(parseInt(k.String("HEALTH_READY_DB_TIMEOUT_MS"), 500)) * time.Millisecond,
			ReadyRedisTimeout:  time.Duration(parseInt(k.String("HEALTH_READY_REDIS_TIMEOUT_MS"), 300)) * time.Millisecond,
		},
	}

	rate, err := decimal.NewFromString(valueOrDefault(k.String("PRICING_IGV_RATE"), "0.18"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_IGV_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PRICING_IGV_RATE must be in [0, 1), got %s", rate)
	}
	cfg.IGVRate = rate

	if len(cfg.BarcodePrefix) != 3 || strings.Trim(cfg.BarcodePrefix, "0123456789") != "" {
		return nil, fmt.Errorf("BARCODE_COUNTRY_PREFIX must be 3 digits, got %q", cfg.BarcodePrefix)
	}
	if _, err := limiter.NewRateFromFormatted(cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT: %w", err)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
