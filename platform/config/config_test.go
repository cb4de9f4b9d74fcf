package config

import (
	"testing"
	"time"
)

func TestLoadAppliesOutreachDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/outreach")
	for _, key := range []string{"MESSAGES_PER_BATCH", "DELAY_BETWEEN_MESSAGES", "DELAY_BETWEEN_BATCHES", "MAX_RETRY_ATTEMPTS", "SMTP_HOST", "BREVO_API_KEY", "SMS_ACCOUNT_SID", "SMS_AUTH_TOKEN", "CORS_ALLOW_ALL", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}
	t.Setenv("MESSAGES_PER_BATCH", "30")
	t.Setenv("DELAY_BETWEEN_MESSAGES", "2")
	t.Setenv("DELAY_BETWEEN_BATCHES", "20")
	t.Setenv("MAX_RETRY_ATTEMPTS", "3")
	t.Setenv("CORS_ORIGINS", "http://localhost:4200")
	t.Setenv("CORS_ALLOW_ALL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetMessagesPerBatch() != 30 {
		t.Fatalf("expected batch size 30, got %d", cfg.GetMessagesPerBatch())
	}
	if cfg.GetDelayBetweenMessages() != 2*time.Second {
		t.Fatalf("expected 2s message delay, got %s", cfg.GetDelayBetweenMessages())
	}
	if cfg.GetDelayBetweenBatches() != 20*time.Second {
		t.Fatalf("expected 20s batch delay, got %s", cfg.GetDelayBetweenBatches())
	}
	if cfg.IsSMTPEnabled() || cfg.IsBrevoEnabled() || cfg.IsSMSEnabled() {
		t.Fatal("expected optional transports to be disabled")
	}
}

func TestLoadRejectsInvalidBatchSize(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/outreach")
	t.Setenv("MESSAGES_PER_BATCH", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero batch size")
	}
}

func TestMustSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"1500ms", 1500 * time.Millisecond},
		{"nope", 0},
	}

	for _, tt := range tests {
		if got := mustSeconds(tt.in); got != tt.want {
			t.Errorf("mustSeconds(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
