package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Provider
	ProviderAPIKey   string
	ProviderBaseURL  string
	ProviderTimeout  time.Duration
	HealthCheckPath  string

	// Tracking
	PollInterval     time.Duration
	FailureThreshold int
	BackoffMaxFactor int
	HistoryLimit     int
	SessionRetention time.Duration

	// Health
	HealthInterval time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitTracking int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.ProviderAPIKey = os.Getenv("TIKHUB_API_KEY")
	if cfg.ProviderAPIKey == "" {
		missing = append(missing, "TIKHUB_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ProviderBaseURL = getEnvString("PROVIDER_BASE_URL", "https://api.tikhub.io")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.HealthCheckPath = getEnvString("PROVIDER_HEALTH_PATH", "/api/v1/health/check")
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 60*time.Second)
	cfg.FailureThreshold = getEnvInt("FAILURE_THRESHOLD", 5)
	cfg.BackoffMaxFactor = getEnvInt("BACKOFF_MAX_FACTOR", 10)
	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", 1000)
	cfg.SessionRetention = getEnvDuration("SESSION_RETENTION", 24*time.Hour)
	cfg.HealthInterval = getEnvDuration("HEALTH_INTERVAL", 60*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitTracking = getEnvInt("RATE_LIMIT_TRACKING", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
