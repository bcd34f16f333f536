// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig aggregates runtime configuration. Everything comes from environment
// variables, with defaults suitable for local development.
type AppConfig struct {
	HTTPAddr string
	LogLevel string

	DBDriver string // sqlite | postgres
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka is optional; when disabled events only go to Redis pub/sub.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Per-user (or per-IP) request budget on order and payment writes.
	WriteRateLimit  int
	WriteRateWindow time.Duration

	NotifyBuffer  int
	NotifyTimeout time.Duration

	PayPalMode      string
	PayPalClientID  string
	PayPalSecret    string
	PayPalWebhookID string
	PayPalBaseURL   string
	FrontendURL     string
	GatewayTimeout  time.Duration
	CaptureLockTTL  time.Duration
}

// ReturnURL is where PayPal sends the buyer after approval.
func (c AppConfig) ReturnURL() string { return strings.TrimRight(c.FrontendURL, "/") + "/payment/success" }

// CancelURL is where PayPal sends the buyer after cancelling.
func (c AppConfig) CancelURL() string { return strings.TrimRight(c.FrontendURL, "/") + "/payment/cancel" }

// Load reads and validates configuration, falling back to defaults for unset values.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:           getEnv("DB_DSN", "store_api.db?_foreign_keys=on&_busy_timeout=5000"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:    splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "order-events"),
		WriteRateLimit:  30,
		WriteRateWindow: time.Minute,
		NotifyBuffer:    256,
		NotifyTimeout:   3 * time.Second,
		PayPalMode:      strings.ToLower(getEnv("PAYPAL_MODE", "sandbox")),
		PayPalClientID:  getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalSecret:    getEnv("PAYPAL_SECRET", ""),
		PayPalWebhookID: getEnv("PAYPAL_WEBHOOK_ID", ""),
		PayPalBaseURL:   getEnv("PAYPAL_BASE_URL", ""),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		GatewayTimeout:  15 * time.Second,
		CaptureLockTTL:  30 * time.Second,
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.KafkaEnabled, err = getEnvBool("KAFKA_ENABLED", false); err != nil {
		return AppConfig{}, fmt.Errorf("invalid KAFKA_ENABLED: %w", err)
	}

	if cfg.WriteRateLimit, err = getEnvInt("WRITE_RATE_LIMIT", cfg.WriteRateLimit); err != nil {
		return AppConfig{}, fmt.Errorf("invalid WRITE_RATE_LIMIT: %w", err)
	}
	if cfg.WriteRateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("WRITE_RATE_LIMIT must be > 0")
	}
	if cfg.WriteRateWindow, err = getEnvSeconds("WRITE_RATE_WINDOW_SEC", cfg.WriteRateWindow); err != nil {
		return AppConfig{}, err
	}

	if cfg.NotifyBuffer, err = getEnvInt("NOTIFY_BUFFER", cfg.NotifyBuffer); err != nil {
		return AppConfig{}, fmt.Errorf("invalid NOTIFY_BUFFER: %w", err)
	}
	if cfg.NotifyBuffer <= 0 {
		return AppConfig{}, fmt.Errorf("NOTIFY_BUFFER must be > 0")
	}
	if cfg.NotifyTimeout, err = getEnvSeconds("NOTIFY_TIMEOUT_SEC", cfg.NotifyTimeout); err != nil {
		return AppConfig{}, err
	}
	if cfg.GatewayTimeout, err = getEnvSeconds("PAYPAL_TIMEOUT_SEC", cfg.GatewayTimeout); err != nil {
		return AppConfig{}, err
	}
	if cfg.CaptureLockTTL, err = getEnvSeconds("CAPTURE_LOCK_TTL_SEC", cfg.CaptureLockTTL); err != nil {
		return AppConfig{}, err
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return AppConfig{}, fmt.Errorf("DB_DSN must not be empty")
	}
	if cfg.PayPalMode != "sandbox" && cfg.PayPalMode != "live" {
		return AppConfig{}, fmt.Errorf("PAYPAL_MODE must be sandbox or live, got %q", cfg.PayPalMode)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
	}

	return cfg, nil
}

// getEnv returns the trimmed variable or fallback when unset.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// getEnvSeconds reads a positive whole number of seconds.
func getEnvSeconds(key string, fallback time.Duration) (time.Duration, error) {
	n, err := getEnvInt(key, int(fallback.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return time.Duration(n) * time.Second, nil
}

// splitCSV splits a comma separated list, dropping blanks.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
