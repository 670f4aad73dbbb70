package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Market-data provider credentials
	FXAPIKey     string
	FXClientID   string
	FXPassword   string
	FXTOTPSecret string
	FXBaseURL    string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Watched currency pairs (comma-separated, e.g. "EUR/USD,GBP/USD")
	Symbols string

	// Pacing delay between consecutive provider calls
	ProviderPace time.Duration

	// Position size percent assigned to live HIGH-tier signals
	HighTierRiskPct float64

	// Notification backends (empty disables a backend)
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		FXAPIKey:     mustEnv("FX_API_KEY"),
		FXClientID:   mustEnv("FX_CLIENT_ID"),
		FXPassword:   mustEnv("FX_PASSWORD"),
		FXTOTPSecret: mustEnv("FX_TOTP_SECRET"),
		FXBaseURL:    getEnv("FX_BASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		Symbols: getEnv("SYMBOLS", "EUR/USD,GBP/USD,USD/JPY,AUD/USD"),

		ProviderPace: getEnvDuration("PROVIDER_PACE", 1500*time.Millisecond),

		HighTierRiskPct: getEnvFloat("HIGH_TIER_RISK_PCT", 2.0),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// ParseSymbols splits the Symbols string into a cleaned slice of pairs.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			log.Printf("[config] skipping invalid symbol: %q", p)
			continue
		}
		symbols = append(symbols, strings.ToUpper(p))
	}
	return symbols
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
