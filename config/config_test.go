package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("KALENDAR_API_URL", "http://localhost:8080/api/")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "")
	t.Setenv("DIGEST_TIME", "")
	t.Setenv("TOAST_DELAY", "")
	t.Setenv("FETCH_CONCURRENCY", "")
	t.Setenv("WEBHOOK_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KalendarURL != "http://localhost:8080/api" {
		t.Errorf("KalendarURL = %q, trailing slash should be trimmed", cfg.KalendarURL)
	}
	if cfg.Timezone.String() != "Europe/Prague" {
		t.Errorf("Timezone = %s", cfg.Timezone)
	}
	if cfg.ToastDelay != 3*time.Second {
		t.Errorf("ToastDelay = %s", cfg.ToastDelay)
	}
	if cfg.FetchConcurrency != 8 {
		t.Errorf("FetchConcurrency = %d", cfg.FetchConcurrency)
	}
	if cfg.UseWebhook() {
		t.Error("expected polling mode without WEBHOOK_URL")
	}
	if got := cfg.DigestSpec(); got != "30 7 * * *" {
		t.Errorf("DigestSpec = %q", got)
	}
}

func TestLoadRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("KALENDAR_API_URL", "http://x")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without token")
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("KALENDAR_API_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without API url")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DIGEST_TIME", "7.30"},
		{"TOAST_DELAY", "soon"},
		{"FETCH_CONCURRENCY", "0"},
		{"TIMEZONE", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestDigestOff(t *testing.T) {
	setRequired(t)
	t.Setenv("DIGEST_TIME", "off")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DigestSpec() != "" {
		t.Errorf("DigestSpec = %q, want empty", cfg.DigestSpec())
	}
}
