package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/practice-advisor/backend/internal/analysis"
	"example.com/practice-advisor/backend/internal/analytics"
	"example.com/practice-advisor/backend/internal/auth"
	"example.com/practice-advisor/backend/internal/models"
	"example.com/practice-advisor/backend/internal/repository"
)

type AnalysisRunner interface {
	Run(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) (analysis.Report, error)
	RunScenarios(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time, types []models.ScenarioType, overrides map[models.ScenarioType]map[string]float64) ([]models.Scenario, error)
}

type TrendReader interface {
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]models.TrendResult, error)
}

type SeasonalityReader interface {
	Get(ctx context.Context, engagementID uuid.UUID) (models.SeasonalityProfile, error)
}

type ForecastReader interface {
	Get(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) (models.CashForecast, error)
}

type ScenarioReader interface {
	ListForPeriod(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) ([]models.Scenario, error)
}

type AnalysisHandler struct {
	Runner      AnalysisRunner
	Trends      TrendReader
	Seasonality SeasonalityReader
	Forecasts   ForecastReader
	Scenarios   ScenarioReader
	Logger      *slog.Logger
}

// NewAnalysisHandler создает обработчик запуска анализа и чтения его результатов.
func NewAnalysisHandler(runner AnalysisRunner, trends TrendReader, seasonality SeasonalityReader, forecasts ForecastReader, scenarios ScenarioReader, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		Runner:      runner,
		Trends:      trends,
		Seasonality: seasonality,
		Forecasts:   forecasts,
		Scenarios:   scenarios,
		Logger:      logger,
	}
}

type TriggerAnalysisRequest struct {
	PeriodEnd string `json:"period_end" validate:"required,datetime=2006-01-02"`
}

type RunScenariosRequest struct {
	Types     []models.ScenarioType                      `json:"types" validate:"omitempty,max=3,dive,oneof=hire price_increase collection_improvement lost_client"`
	Overrides map[models.ScenarioType]map[string]float64 `json:"overrides"`
}

type TrendsResponse struct {
	Trends []models.TrendResult `json:"trends"`
}

type ScenariosResponse struct {
	Scenarios []models.Scenario `json:"scenarios"`
}

// Trigger пересчитывает тренды, сезонность, прогноз и сценарии за период.
func (h *AnalysisHandler) Trigger(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req TriggerAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	periodEnd, err := parseDate(req.PeriodEnd)
	if err != nil {
		return badRequest(c, err.Error())
	}

	report, err := h.Runner.Run(c.Request().Context(), engagementID, periodEnd)
	if err != nil {
		return h.analysisError(c, engagementID, err)
	}

	return c.JSON(http.StatusOK, report)
}

// ListTrends возвращает последние тренды по всем метрикам клиента.
func (h *AnalysisHandler) ListTrends(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	trends, err := h.Trends.ListByEngagement(c.Request().Context(), engagementID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, TrendsResponse{Trends: trends})
}

// GetSeasonality возвращает профиль сезонности клиента.
func (h *AnalysisHandler) GetSeasonality(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	profile, err := h.Seasonality.Get(c.Request().Context(), engagementID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "seasonality profile not available: at least 12 months of history required")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, profile)
}

// GetForecast возвращает 13-недельный прогноз за период.
func (h *AnalysisHandler) GetForecast(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	periodEnd, err := parseDate(c.Param("periodEnd"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	forecast, err := h.Forecasts.Get(c.Request().Context(), engagementID, periodEnd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "forecast not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, forecast)
}

// ListScenarios возвращает сохраненные сценарии периода.
func (h *AnalysisHandler) ListScenarios(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	periodEnd, err := parseDate(c.Param("periodEnd"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	scenarios, err := h.Scenarios.ListForPeriod(c.Request().Context(), engagementID, periodEnd)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, ScenariosResponse{Scenarios: scenarios})
}

// RunScenarios считает what-if сценарии с допущениями из запроса.
func (h *AnalysisHandler) RunScenarios(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	periodEnd, err := parseDate(c.Param("periodEnd"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req RunScenariosRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	scenarios, err := h.Runner.RunScenarios(c.Request().Context(), engagementID, periodEnd, req.Types, req.Overrides)
	if err != nil {
		if errors.Is(err, analytics.ErrUnknownScenario) || errors.Is(err, analytics.ErrInvalidAssumption) {
			return badRequest(c, err.Error())
		}
		return h.analysisError(c, engagementID, err)
	}

	return c.JSON(http.StatusOK, ScenariosResponse{Scenarios: scenarios})
}

func (h *AnalysisHandler) analysisError(c echo.Context, engagementID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, analysis.ErrSnapshotNotFound):
		return notFound(c, "no finalized snapshot for this period")
	case errors.Is(err, analysis.ErrSourceUnavailable):
		h.Logger.Error("analysis source unavailable",
			slog.String("engagement_id", engagementID.String()),
			slog.String("error", err.Error()),
		)
		return unavailable(c, "financial data is temporarily unavailable")
	default:
		h.Logger.Error("analysis failed",
			slog.String("engagement_id", engagementID.String()),
			slog.String("error", err.Error()),
		)
		return serverError(c)
	}
}
