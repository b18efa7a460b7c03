package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/practice-advisor/backend/internal/analysis"
	"example.com/practice-advisor/backend/internal/analytics"
	"example.com/practice-advisor/backend/internal/auth"
	"example.com/practice-advisor/backend/internal/config"
	"example.com/practice-advisor/backend/internal/handlers"
	"example.com/practice-advisor/backend/internal/notifications"
	"example.com/practice-advisor/backend/internal/repository"
)

// NewAnalysisService собирает конвейер анализа поверх репозиториев PostgreSQL.
func NewAnalysisService(db *pgxpool.Pool, policy analytics.Policy, hub *notifications.Hub, logger *slog.Logger, workers int) *analysis.Service {
	stores := analysis.Stores{
		Snapshots:   repository.NewSnapshotRepository(db),
		Commitments: repository.NewCommitmentRepository(db),
		Signals:     repository.NewContextRepository(db),
		Trends:      repository.NewTrendRepository(db),
		Seasonality: repository.NewSeasonalityRepository(db),
		Forecasts:   repository.NewForecastRepository(db),
		Scenarios:   repository.NewScenarioRepository(db),
	}

	return analysis.NewService(stores, policy, hub, logger, workers)
}

// New собирает HTTP-сервер Echo с роутами и зависимостями.
func New(cfg config.Config, logger *slog.Logger, db *pgxpool.Pool, service *analysis.Service, hub *notifications.Hub) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	var pinger handlers.Pinger
	if db != nil {
		pinger = db
	}

	analysisHandler := handlers.NewAnalysisHandler(
		service,
		repository.NewTrendRepository(db),
		repository.NewSeasonalityRepository(db),
		repository.NewForecastRepository(db),
		repository.NewScenarioRepository(db),
		logger,
	)
	commitmentHandler := handlers.NewCommitmentHandler(repository.NewCommitmentRepository(db), hub)
	notificationHandler := handlers.NewNotificationHandler(hub)
	healthHandler := handlers.NewHealthHandler(pinger)

	registerRoutes(
		e,
		analysisHandler,
		commitmentHandler,
		notificationHandler,
		healthHandler,
		auth.JWTMiddleware(tokenManager),
		auth.StreamJWTMiddleware(tokenManager),
		analysisRateLimiter(cfg.Auth),
	)

	return e
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			logger.LogAttrs(c.Request().Context(), level, "request completed", attrs...)
			return nil
		},
	})
}

// analysisRateLimiter ограничивает ручные запуски пересчета по IP.
func analysisRateLimiter(cfg config.AuthConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
