package config

import (
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("TIKHUB_API_KEY", "test-api-key")
}

func TestLoad_RequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ProviderAPIKey != "test-api-key" {
		t.Errorf("ProviderAPIKey = %q, want %q", cfg.ProviderAPIKey, "test-api-key")
	}
}

func TestLoad_MissingAPIKey_ReturnsError(t *testing.T) {
	t.Setenv("TIKHUB_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("TIKHUB_API_KEY未設定の場合はエラーを返すべき")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ProviderBaseURL != "https://api.tikhub.io" {
		t.Errorf("ProviderBaseURL = %q, want %q", cfg.ProviderBaseURL, "https://api.tikhub.io")
	}
	if cfg.ProviderTimeout != 10*time.Second {
		t.Errorf("ProviderTimeout = %v, want 10s", cfg.ProviderTimeout)
	}
	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v, want 60s", cfg.PollInterval)
	}
	if cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.FailureThreshold)
	}
	if cfg.BackoffMaxFactor != 10 {
		t.Errorf("BackoffMaxFactor = %d, want 10", cfg.BackoffMaxFactor)
	}
	if cfg.HistoryLimit != 1000 {
		t.Errorf("HistoryLimit = %d, want 1000", cfg.HistoryLimit)
	}
	if cfg.SessionRetention != 24*time.Hour {
		t.Errorf("SessionRetention = %v, want 24h", cfg.SessionRetention)
	}
	if cfg.HealthInterval != 60*time.Second {
		t.Errorf("HealthInterval = %v, want 60s", cfg.HealthInterval)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.RateLimitTracking != 10 {
		t.Errorf("RateLimitTracking = %d, want 10", cfg.RateLimitTracking)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("FAILURE_THRESHOLD", "3")
	t.Setenv("PROVIDER_BASE_URL", "http://localhost:9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.FailureThreshold)
	}
	if cfg.ProviderBaseURL != "http://localhost:9999" {
		t.Errorf("ProviderBaseURL = %q, want %q", cfg.ProviderBaseURL, "http://localhost:9999")
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("POLL_INTERVAL", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.PollInterval != 60*time.Second {
		t.Errorf("不正なdurationはデフォルト値にフォールバックすべき: %v", cfg.PollInterval)
	}
}
