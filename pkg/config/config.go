// Package config loads server configuration from the environment, plus an
// optional site profile YAML for scheduling policy.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port         string
	LogLevel     string
	JWTSecret    string
	DatabasePath string
	OutboxURL    string // Postgres DSN; empty disables the outbox
	RedisAddr    string // empty keeps the overdue cache in-process
	TemplatesDir string
	ProfilePath  string // site profile YAML; empty uses built-in defaults
	SweepEvery   time.Duration
	RateLimitRPS float64
	OTLPEndpoint string // empty disables trace/metric export
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "sentinel.db"
	}

	templatesDir := os.Getenv("TEMPLATES_DIR")
	if templatesDir == "" {
		templatesDir = "templates"
	}

	sweepEvery := time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			sweepEvery = d
		}
	}

	rps := 20.0
	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			rps = v
		}
	}

	return &Config{
		Port:         port,
		LogLevel:     logLevel,
		JWTSecret:    os.Getenv("JWT_SECRET"),
		DatabasePath: dbPath,
		OutboxURL:    os.Getenv("OUTBOX_DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		TemplatesDir: templatesDir,
		ProfilePath:  os.Getenv("SITE_PROFILE"),
		SweepEvery:   sweepEvery,
		RateLimitRPS: rps,
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}
