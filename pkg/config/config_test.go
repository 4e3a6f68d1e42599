package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DATABASE_PATH", "TEMPLATES_DIR",
		"SWEEP_INTERVAL", "RATE_LIMIT_RPS", "JWT_SECRET",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DatabasePath != "sentinel.db" {
		t.Errorf("expected default database path, got %s", cfg.DatabasePath)
	}
	if cfg.SweepEvery != time.Minute {
		t.Errorf("expected default sweep interval 1m, got %s", cfg.SweepEvery)
	}
	if cfg.RateLimitRPS != 20.0 {
		t.Errorf("expected default rate limit 20 rps, got %f", cfg.RateLimitRPS)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("RATE_LIMIT_RPS", "5")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.SweepEvery != 30*time.Second {
		t.Errorf("expected sweep interval 30s, got %s", cfg.SweepEvery)
	}
	if cfg.RateLimitRPS != 5.0 {
		t.Errorf("expected rate limit 5 rps, got %f", cfg.RateLimitRPS)
	}
	if cfg.JWTSecret != "test-secret" {
		t.Errorf("unexpected jwt secret %q", cfg.JWTSecret)
	}
}

func TestLoadIgnoresInvalidDurations(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")
	t.Setenv("RATE_LIMIT_RPS", "-3")

	cfg := Load()
	if cfg.SweepEvery != time.Minute {
		t.Errorf("invalid SWEEP_INTERVAL should fall back to 1m, got %s", cfg.SweepEvery)
	}
	if cfg.RateLimitRPS != 20.0 {
		t.Errorf("negative RATE_LIMIT_RPS should fall back to default, got %f", cfg.RateLimitRPS)
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := `
name: plant-east
deadlines:
  medium_days: 14
templates:
  - tpl-forklift
  - tpl-ladder
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if profile.Name != "plant-east" {
		t.Errorf("unexpected name %q", profile.Name)
	}
	if profile.Deadlines.MediumDays != 14 {
		t.Errorf("expected medium_days override 14, got %d", profile.Deadlines.MediumDays)
	}
	// Unset severities keep the built-in defaults.
	if profile.Deadlines.LowDays != 30 || profile.Deadlines.HighDays != 1 {
		t.Errorf("expected default low/high deadlines, got %+v", profile.Deadlines)
	}
	if len(profile.Templates) != 2 {
		t.Errorf("expected 2 templates, got %d", len(profile.Templates))
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing profile")
	}
}
