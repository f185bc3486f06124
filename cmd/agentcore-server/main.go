package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/luminos-app/agentcore/internal/auth"
	"github.com/luminos-app/agentcore/internal/config"
	"github.com/luminos-app/agentcore/internal/metrics"
	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/server"
	"github.com/luminos-app/agentcore/internal/storage"
	"github.com/luminos-app/agentcore/internal/trust"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := mustBuildLogger(cfg.Server.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting agentcore server",
		zap.String("port", cfg.Server.Port),
	)

	// Audit log — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.Audit.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.Audit.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse action log connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no clickhouse DSN set, using log writer")
	}
	defer writer.Close()

	// Local trust cache — SQLite if a data dir is configured
	var local trust.LocalCache
	if cfg.Trust.DataDir != "" {
		cache, err := trust.OpenSQLiteCache(cfg.Trust.DataDir)
		if err != nil {
			logger.Fatal("failed to open trust cache", zap.Error(err))
		}
		defer func() { _ = cache.Close() }()
		local = cache
		logger.Info("sqlite trust cache opened", zap.String("data_dir", cfg.Trust.DataDir))
	}

	// Remote trust store — Postgres or Redis, neither required
	var remote trust.RemoteStore
	switch {
	case cfg.Trust.PostgresDSN != "":
		db := mustOpenPostgres(cfg.Trust.PostgresDSN, logger)
		defer func() { _ = db.Close() }()
		remote = trust.NewPostgresRemote(db)
		logger.Info("postgres trust store connected")
	case cfg.Trust.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.Trust.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to ping redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		remote = trust.NewRedisRemote(client)
		logger.Info("redis trust store connected")
	default:
		logger.Info("no remote trust store configured, local cache only")
	}

	// Auth — Postgres if DSN provided, otherwise static (development)
	var authenticator auth.Authenticator
	if cfg.Auth.PostgresDSN != "" {
		db := mustOpenPostgres(cfg.Auth.PostgresDSN, logger)
		defer func() { _ = db.Close() }()
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(cfg.Auth.CacheTTLSeconds) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres authenticator connected")
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Info("using static authenticator (no auth DSN)")
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	reg := registry.New(logger)

	deps := &server.Dependencies{
		Registry: reg,
		Local:    local,
		Remote:   remote,
		Writer:   writer,
		Metrics:  m,
		Auth:     authenticator,
		Logger:   logger,

		ResyncSchedule: cfg.Trust.ResyncSchedule,
	}

	mux := http.NewServeMux()
	mux.Handle("/", server.NewRouter(deps))
	mux.Handle("GET /metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("agentcore server listening", zap.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func mustOpenPostgres(dsn string, logger *zap.Logger) *sql.DB {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(context.Background()); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	return db
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
