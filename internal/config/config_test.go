package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsMatchSessionContract(t *testing.T) {
	cfg := Default()

	if cfg.Session.CookieName != "session" {
		t.Errorf("expected cookie name session, got %q", cfg.Session.CookieName)
	}
	if cfg.Session.TTL != 7*24*time.Hour {
		t.Errorf("expected 7 day ttl, got %v", cfg.Session.TTL)
	}
	if cfg.Session.ActivityDebounce != 5*time.Minute {
		t.Errorf("expected 5 minute debounce, got %v", cfg.Session.ActivityDebounce)
	}
	if !cfg.Session.Secure {
		t.Error("expected secure cookies by default")
	}
}

func TestLoadYAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskhub.yaml")
	yamlBody := `
database:
  url: postgres://yaml/db
reminder:
  cron_secret: from-yaml
  concurrency: 2
email:
  mode: smtp
  host: mail.internal
  port: 2525
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKHUB_CONFIG", path)
	t.Setenv("CRON_SECRET", "from-env")
	t.Setenv("REMINDER_INTERVAL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.URL != "postgres://yaml/db" {
		t.Errorf("expected yaml database url, got %q", cfg.Database.URL)
	}
	if cfg.Reminder.CronSecret != "from-env" {
		t.Errorf("env should override yaml, got %q", cfg.Reminder.CronSecret)
	}
	if cfg.Reminder.Concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", cfg.Reminder.Concurrency)
	}
	if cfg.Reminder.Interval != 15*time.Minute {
		t.Errorf("expected 15m interval, got %v", cfg.Reminder.Interval)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	cfg := Default()
	cfg.Email.Mode = EmailModeKafka

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "DATABASE_URL") {
		t.Errorf("expected database problem in %q", msg)
	}
	if !strings.Contains(msg, "KAFKA_BROKERS") {
		t.Errorf("expected kafka problem in %q", msg)
	}
}

func TestValidateEnv(t *testing.T) {
	t.Setenv("TASKHUB_PRESENT", "yes")
	if err := ValidateEnv([]string{"TASKHUB_PRESENT"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateEnv([]string{"TASKHUB_PRESENT", "TASKHUB_DEFINITELY_MISSING"}); err == nil {
		t.Error("expected missing variable error")
	}
}
