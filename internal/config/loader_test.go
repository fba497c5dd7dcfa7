package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ITADMIN_HTTP_PORT",
		"ITADMIN_SQLITE_DSN",
		"ITADMIN_SESSION_TTL",
		"ITADMIN_REMINDER_INTERVAL",
		"ITADMIN_ADMIN_EMAIL",
		"ITADMIN_SENDER_EMAIL",
		"ITADMIN_GRAPH_TENANT_ID",
		"ITADMIN_GRAPH_CLIENT_ID",
		"ITADMIN_GRAPH_CLIENT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITADMIN_ADMIN_EMAIL", "admin@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected default port, got %d", cfg.HTTPPort)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected default session TTL, got %v", cfg.SessionTTL)
	}
	if cfg.ReminderInterval != 5*time.Minute {
		t.Fatalf("expected default reminder interval, got %v", cfg.ReminderInterval)
	}
	if cfg.MailConfigured() {
		t.Fatal("mail must not be configured without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITADMIN_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ITADMIN_HTTP_PORT", "9090")
	t.Setenv("ITADMIN_SESSION_TTL", "2h")
	t.Setenv("ITADMIN_REMINDER_INTERVAL", "1m")
	t.Setenv("ITADMIN_SENDER_EMAIL", "it@example.com")
	t.Setenv("ITADMIN_GRAPH_TENANT_ID", "tenant")
	t.Setenv("ITADMIN_GRAPH_CLIENT_ID", "client")
	t.Setenv("ITADMIN_GRAPH_CLIENT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9090 || cfg.SessionTTL != 2*time.Hour || cfg.ReminderInterval != time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.MailConfigured() {
		t.Fatal("expected mail to be configured")
	}
}

func TestLoadRequiresAdminEmail(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ITADMIN_ADMIN_EMAIL") {
		t.Fatalf("expected missing admin email error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITADMIN_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ITADMIN_HTTP_PORT", "not-a-port")
	t.Setenv("ITADMIN_REMINDER_INTERVAL", "-5m")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid values")
	}
	for _, key := range []string{"ITADMIN_HTTP_PORT", "ITADMIN_REMINDER_INTERVAL"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}

func TestLoadRejectsPartialGraphCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITADMIN_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ITADMIN_GRAPH_TENANT_ID", "tenant")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "partial") {
		t.Fatalf("expected partial credential error, got %v", err)
	}
}
