package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.local/api/")
	t.Setenv("POLL_INTERVAL_SECONDS", "30")
	t.Setenv("FAST_POLL_INTERVAL_SECONDS", "bogus")

	cfg := Load()

	if cfg.APIBaseURL != "http://api.local/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("unexpected poll interval %v", cfg.PollInterval)
	}
	if cfg.FastPollInterval != 15*time.Second {
		t.Fatalf("invalid value should fall back to 15s, got %v", cfg.FastPollInterval)
	}
	if cfg.PaymentSettle != 3*time.Second {
		t.Fatalf("unexpected settle delay %v", cfg.PaymentSettle)
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " http://localhost:5173/ , ,https://console.vpm.local")

	got := Load().AllowedOrigins
	if len(got) != 2 || got[0] != "http://localhost:5173" || got[1] != "https://console.vpm.local" {
		t.Fatalf("allowed origins = %q", got)
	}
}
