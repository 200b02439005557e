package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "CURRENCY")
	unsetEnvWithCleanup(t, "MAX_REQUEST_AMOUNT")
	unsetEnvWithCleanup(t, "ENABLE_TESTING_ENDPOINTS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("default ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.Currency != "CAD" {
		t.Errorf("default Currency = %q, want CAD", cfg.Currency)
	}
	if cfg.MaxRequestAmount != "9999999.99" {
		t.Errorf("default MaxRequestAmount = %q, want 9999999.99", cfg.MaxRequestAmount)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("default BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.EnableTestingEndpoints {
		t.Error("testing endpoints enabled by default")
	}
	if cfg.RedisRateLimitPrefix != "ledger:rate_limit" {
		t.Errorf("default RedisRateLimitPrefix = %q", cfg.RedisRateLimitPrefix)
	}
}

func TestLoadConfig_PortAliasWins(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9999")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9999" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NormalizesBaseURLAndCurrency(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_BASE_URL", "https://ledger.example.com/")
	setEnvWithCleanup(t, "CURRENCY", "cad")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerBaseURL != "https://ledger.example.com" {
		t.Errorf("ServerBaseURL = %q, want trailing slash trimmed", cfg.ServerBaseURL)
	}
	if cfg.Currency != "CAD" {
		t.Errorf("Currency = %q, want CAD", cfg.Currency)
	}
}

func TestLoadConfig_RateLimitFloors(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SPEND_RATE_LIMIT_PER_MINUTE", "-5")
	setEnvWithCleanup(t, "CAPTURE_RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SpendRateLimitPerMinute != 60 {
		t.Errorf("SpendRateLimitPerMinute = %d, want fallback 60", cfg.SpendRateLimitPerMinute)
	}
	if cfg.CaptureRateLimitPerMinute != 30 {
		t.Errorf("CaptureRateLimitPerMinute = %d, want fallback 30", cfg.CaptureRateLimitPerMinute)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
