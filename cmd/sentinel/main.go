package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/fieldsafe/sentinel/pkg/api"
	"github.com/fieldsafe/sentinel/pkg/audit"
	"github.com/fieldsafe/sentinel/pkg/auth"
	"github.com/fieldsafe/sentinel/pkg/config"
	"github.com/fieldsafe/sentinel/pkg/events"
	"github.com/fieldsafe/sentinel/pkg/ledger"
	"github.com/fieldsafe/sentinel/pkg/lifecycle"
	"github.com/fieldsafe/sentinel/pkg/lock"
	"github.com/fieldsafe/sentinel/pkg/observability"
	"github.com/fieldsafe/sentinel/pkg/store"
	"github.com/fieldsafe/sentinel/pkg/sweep"
	"github.com/fieldsafe/sentinel/pkg/template"
	"github.com/fieldsafe/sentinel/pkg/tracker"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands. Exposed for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}
	switch args[1] {
	case "server", "serve":
		return runServer(stderr)
	case "token":
		return runTokenCmd(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Sentinel — recurring safety-inspection engine")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  sentinel <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  server   Run the API server (default)")
	fmt.Fprintln(w, "  token    Mint an access token for a user")
	fmt.Fprintln(w, "  health   Check server health over HTTP")
	fmt.Fprintln(w, "  help     Show this help")
}

func logLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

//nolint:gocognit // linear wiring sequence
func runServer(stderr io.Writer) int {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "sentinel",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		fmt.Fprintf(stderr, "observability init failed: %v\n", err)
		return 1
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()
	logger.Info("store ready", "path", cfg.DatabasePath)

	registry := template.NewRegistry(logger)
	if err := registry.LoadDir(cfg.TemplatesDir); err != nil {
		// A missing directory is survivable; templates can't be, later.
		logger.Warn("template load failed", "dir", cfg.TemplatesDir, "error", err)
	}
	logger.Info("templates ready", "count", len(registry.List()))

	profile := config.DefaultProfile()
	if cfg.ProfilePath != "" {
		profile, err = config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			fmt.Fprintf(stderr, "site profile load failed: %v\n", err)
			return 1
		}
	}
	logger.Info("site profile", "name", profile.Name, "deadlines", profile.Deadlines)

	trail := audit.NewTrail()
	exporter := audit.NewExporter(trail)

	var outbox *events.Outbox
	var outboxDB *sql.DB
	if cfg.OutboxURL != "" {
		outboxDB, err = sql.Open("postgres", cfg.OutboxURL)
		if err != nil {
			fmt.Fprintf(stderr, "outbox open failed: %v\n", err)
			return 1
		}
		defer func() { _ = outboxDB.Close() }()
		outbox = events.NewOutbox(outboxDB)
		if err := outbox.Migrate(ctx); err != nil {
			fmt.Fprintf(stderr, "outbox migrate failed: %v\n", err)
			return 1
		}
		logger.Info("event outbox ready")
	}
	bus := events.NewBus(outbox, logger)

	locks := lock.NewKeyed()
	trk := tracker.New(st, bus, locks, profile.Deadlines, logger)

	// The machine and the ledger read through each other: rejection scope
	// flows ledger-ward, responses flow machine-ward. Wire in two passes.
	machine := lifecycle.New(st, registry, nil, trk, bus, trail, locks, logger)
	ldg := ledger.New(st, machine, locks, logger)
	machine = lifecycle.New(st, registry, ldg, trk, bus, trail, locks, logger)

	var cache sweep.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		cache = sweep.NewRedisCache(client, "", 2*cfg.SweepEvery)
		logger.Info("overdue cache: redis", "addr", cfg.RedisAddr)
	} else {
		cache = sweep.NewMemoryCache()
		logger.Info("overdue cache: in-process")
	}

	sweeper := sweep.New(st, cache, cfg.SweepEvery, logger)
	go sweeper.Run(ctx)

	var idem api.IdempotencyStorer
	if outboxDB != nil {
		pg := api.NewPostgresIdempotencyStore(outboxDB, 24*time.Hour)
		if err := pg.Migrate(); err != nil {
			fmt.Fprintf(stderr, "idempotency migrate failed: %v\n", err)
			return 1
		}
		idem = pg
	} else {
		idem = api.NewIdempotencyStore(24 * time.Hour)
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; all authenticated requests will be rejected")
	}
	verifier := auth.NewVerifier(cfg.JWTSecret)
	limiter := auth.NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS)*2)

	srv := api.NewServer(machine, ldg, trk, registry, cache, exporter, logger)
	handler := srv.Chain(verifier, limiter, idem, nil)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "server failed: %v\n", err)
			return 1
		}
	}
	return 0
}

func runTokenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("token", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		userID string
		name   string
		roles  string
		secret string
		ttl    time.Duration
	)
	cmd.StringVar(&userID, "user", "", "User ID (REQUIRED)")
	cmd.StringVar(&name, "name", "", "Display name")
	cmd.StringVar(&roles, "roles", "inspector", "Comma-separated roles")
	cmd.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret (defaults to JWT_SECRET)")
	cmd.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if userID == "" || secret == "" {
		fmt.Fprintln(stderr, "Error: --user and a signing secret are required")
		cmd.Usage()
		return 2
	}

	verifier := auth.NewVerifier(secret)
	now := time.Now()
	token, err := verifier.Sign(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  name,
		Roles: strings.Split(roles, ","),
	})
	if err != nil {
		fmt.Fprintf(stderr, "token signing failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func runHealthCmd(stdout, stderr io.Writer) int {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	resp, err := http.Get("http://localhost:" + port + "/healthz")
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(stdout, "OK")
	return 0
}
