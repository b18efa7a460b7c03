package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"example.com/practice-advisor/backend/internal/analytics"
	"example.com/practice-advisor/backend/internal/config"
	"example.com/practice-advisor/backend/internal/database"
	"example.com/practice-advisor/backend/internal/notifications"
	"example.com/practice-advisor/backend/internal/scheduler"
	"example.com/practice-advisor/backend/internal/server"
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	reporter := initSentry(cfg.Sentry, logger)
	defer sentry.Flush(2 * time.Second)

	policy, err := analytics.LoadPolicy(cfg.Analytics.PolicyFile)
	if err != nil {
		logger.Error("failed to load analytics policy", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("failed to apply schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub := notifications.NewHub()
	service := server.NewAnalysisService(db, policy, hub, logger, cfg.Scheduler.Workers)

	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs = scheduler.New(ctx, service, reporter, logger, cfg.Scheduler.Timeout)
		if err := jobs.Register(cfg.Scheduler.Spec); err != nil {
			logger.Error("failed to register scheduler", slog.String("error", err.Error()))
			os.Exit(1)
		}
		jobs.Start()

		if cfg.Scheduler.RunOnStart {
			go jobs.RunNow()
		}
	}

	e := server.New(cfg, logger, db, service, hub)
	httpServer := server.NewHTTPServer(cfg.Server, e)

	go func() {
		if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownSignal

	stop()
	if jobs != nil {
		jobs.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// initSentry включает отправку ошибок, если задан DSN.
func initSentry(cfg config.SentryConfig, logger *slog.Logger) scheduler.Reporter {
	if cfg.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		logger.Error("failed to initialize sentry", slog.String("error", err.Error()))
		return nil
	}

	return sentry.CurrentHub()
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
