package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"example.com/practice-advisor/backend/internal/analytics"
	"example.com/practice-advisor/backend/internal/models"
	"example.com/practice-advisor/backend/internal/notifications"
	"example.com/practice-advisor/backend/internal/repository"
)

// forecastHistoryMonths - сколько последних месяцев усредняется для прогноза.
const forecastHistoryMonths = analytics.TrendWindow

var (
	ErrSourceUnavailable = errors.New("analysis source unavailable")
	ErrSnapshotNotFound  = errors.New("snapshot not found for period")
)

type SnapshotReader interface {
	ListUpTo(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) ([]models.PeriodSnapshot, error)
	Get(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) (models.PeriodSnapshot, error)
	LatestPeriod(ctx context.Context, engagementID uuid.UUID) (time.Time, error)
	ListLatestPeriods(ctx context.Context) ([]repository.EngagementPeriod, error)
}

type CommitmentReader interface {
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]models.Commitment, error)
}

type SignalReader interface {
	Get(ctx context.Context, engagementID uuid.UUID) (models.ContextSignals, error)
}

type TrendWriter interface {
	Upsert(ctx context.Context, result models.TrendResult) error
}

type SeasonalityWriter interface {
	Upsert(ctx context.Context, profile models.SeasonalityProfile) error
}

type ForecastWriter interface {
	Upsert(ctx context.Context, forecast models.CashForecast) error
}

type ScenarioWriter interface {
	ReplaceForPeriod(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time, scenarios []models.Scenario) error
	Upsert(ctx context.Context, scenario models.Scenario) error
}

type Publisher interface {
	Publish(engagementID uuid.UUID, event notifications.Event)
}

// Stores - источники и приемники данных анализа.
type Stores struct {
	Snapshots   SnapshotReader
	Commitments CommitmentReader
	Signals     SignalReader
	Trends      TrendWriter
	Seasonality SeasonalityWriter
	Forecasts   ForecastWriter
	Scenarios   ScenarioWriter
}

// Report - результат одного прогона анализа по клиенту и периоду.
// SeasonalityNote заполняется, когда истории не хватает для профиля.
// Historical означает прогон за прошлый период: тренды и сезонность не перезаписываются.
type Report struct {
	EngagementID    uuid.UUID                  `json:"engagement_id"`
	PeriodEnd       time.Time                  `json:"period_end"`
	Historical      bool                       `json:"historical"`
	Trends          []models.TrendResult       `json:"trends"`
	Seasonality     *models.SeasonalityProfile `json:"seasonality"`
	SeasonalityNote string                     `json:"seasonality_note,omitempty"`
	Forecast        models.CashForecast        `json:"forecast"`
	Scenarios       []models.Scenario          `json:"scenarios"`
}

// BatchResult - итог ночного пересчета по всем клиентам.
type BatchResult struct {
	Total     int
	Succeeded int
	Failures  map[uuid.UUID]error
}

type Service struct {
	stores   Stores
	forecast *analytics.ForecastEngine
	modeler  *analytics.ScenarioModeler
	events   Publisher
	logger   *slog.Logger
	workers  int
	now      func() time.Time
}

// NewService собирает конвейер анализа: тренды, сезонность, прогноз и сценарии.
func NewService(stores Stores, policy analytics.Policy, events Publisher, logger *slog.Logger, workers int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}

	return &Service{
		stores:   stores,
		forecast: analytics.NewForecastEngine(policy.Forecast, logger),
		modeler:  analytics.NewScenarioModeler(policy.Scenario),
		events:   events,
		logger:   logger,
		workers:  workers,
		now:      time.Now,
	}
}

// Run пересчитывает все результаты клиента за период и перезаписывает их.
func (s *Service) Run(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) (Report, error) {
	report := Report{EngagementID: engagementID, PeriodEnd: periodEnd}

	history, err := s.stores.Snapshots.ListUpTo(ctx, engagementID, periodEnd)
	if err != nil {
		return report, fmt.Errorf("%w: snapshots: %w", ErrSourceUnavailable, err)
	}
	if len(history) == 0 || !sameDay(history[len(history)-1].PeriodEnd, periodEnd) {
		return report, ErrSnapshotNotFound
	}
	snapshot := history[len(history)-1]

	latest, err := s.stores.Snapshots.LatestPeriod(ctx, engagementID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return report, fmt.Errorf("%w: latest period: %w", ErrSourceUnavailable, err)
	}
	report.Historical = latest.After(periodEnd) && !sameDay(latest, periodEnd)

	commitments, err := s.stores.Commitments.ListByEngagement(ctx, engagementID)
	if err != nil {
		return report, fmt.Errorf("%w: commitments: %w", ErrSourceUnavailable, err)
	}

	signals, err := s.stores.Signals.Get(ctx, engagementID)
	if err != nil {
		return report, fmt.Errorf("%w: context signals: %w", ErrSourceUnavailable, err)
	}

	revenueVolatility := models.VolatilityMedium
	for _, metric := range models.TrackedMetrics {
		outcome := analytics.ClassifyTrend(metric, metricSeries(history, metric))
		result := outcome.Value()
		result.EngagementID = engagementID
		result.PeriodEnd = periodEnd

		if metric == models.MetricRevenue {
			if _, ok := outcome.Computed(); ok {
				revenueVolatility = result.Volatility
			}
		}

		if !report.Historical {
			if err := s.stores.Trends.Upsert(ctx, result); err != nil {
				return report, fmt.Errorf("save %s trend: %w", metric, err)
			}
		}
		report.Trends = append(report.Trends, result)
	}

	seasonality := analytics.DetectSeasonality(monthValues(history))
	if profile, ok := seasonality.Computed(); ok {
		profile.EngagementID = engagementID
		if !report.Historical {
			if err := s.stores.Seasonality.Upsert(ctx, profile); err != nil {
				return report, fmt.Errorf("save seasonality: %w", err)
			}
		}
		report.Seasonality = &profile
	} else if reason, ok := seasonality.Insufficient(); ok {
		report.SeasonalityNote = reason.String()
	}

	forecast := s.forecast.Forecast(analytics.ForecastInput{
		Snapshot:          snapshot,
		History:           lastN(history, forecastHistoryMonths),
		Commitments:       commitments,
		RevenueVolatility: revenueVolatility,
	})
	forecast.GeneratedAt = s.now().UTC()
	if err := s.stores.Forecasts.Upsert(ctx, forecast); err != nil {
		return report, fmt.Errorf("save forecast: %w", err)
	}
	report.Forecast = forecast

	scenarios, err := s.modeler.Model(analytics.ScenarioRequest{Snapshot: snapshot, Signals: signals})
	if err != nil {
		return report, fmt.Errorf("model scenarios: %w", err)
	}
	if err := s.stores.Scenarios.ReplaceForPeriod(ctx, engagementID, periodEnd, scenarios); err != nil {
		return report, fmt.Errorf("save scenarios: %w", err)
	}
	report.Scenarios = scenarios

	s.publish(engagementID, notifications.Event{
		Type: notifications.EventAnalysisCompleted,
		Data: map[string]interface{}{
			"period_end":  periodEnd.Format(time.DateOnly),
			"sentiment":   forecast.Sentiment,
			"runway":      forecast.CashRunwayWeeks,
			"scenarios":   len(scenarios),
			"seasonality": report.Seasonality != nil,
		},
	})

	s.logger.Info("analysis completed",
		slog.String("engagement_id", engagementID.String()),
		slog.String("period_end", periodEnd.Format(time.DateOnly)),
		slog.String("sentiment", string(forecast.Sentiment)),
		slog.Int("critical_dates", len(forecast.CriticalDates)),
		slog.Int("scenarios", len(scenarios)),
		slog.Bool("historical", report.Historical),
	)

	return report, nil
}

// RunAll пересчитывает последний период каждого клиента с ограниченным параллелизмом.
func (s *Service) RunAll(ctx context.Context) (BatchResult, error) {
	result := BatchResult{Failures: make(map[uuid.UUID]error)}

	periods, err := s.stores.Snapshots.ListLatestPeriods(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: latest periods: %w", ErrSourceUnavailable, err)
	}
	result.Total = len(periods)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, p := range periods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				result.Failures[p.EngagementID] = err
				mu.Unlock()
				return nil
			}

			_, runErr := s.Run(ctx, p.EngagementID, p.PeriodEnd)

			mu.Lock()
			defer mu.Unlock()
			if runErr != nil {
				result.Failures[p.EngagementID] = runErr
				s.logger.Error("analysis failed",
					slog.String("engagement_id", p.EngagementID.String()),
					slog.String("error", runErr.Error()),
				)
				s.publish(p.EngagementID, notifications.Event{
					Type: notifications.EventAnalysisFailed,
					Data: map[string]string{"period_end": p.PeriodEnd.Format(time.DateOnly)},
				})
				return nil
			}
			result.Succeeded++
			return nil
		})
	}

	_ = g.Wait()
	return result, ctx.Err()
}

// RunScenarios считает явно запрошенные сценарии с переопределенными допущениями.
func (s *Service) RunScenarios(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time, types []models.ScenarioType, overrides map[models.ScenarioType]map[string]float64) ([]models.Scenario, error) {
	snapshot, err := s.stores.Snapshots.Get(ctx, engagementID, periodEnd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("%w: snapshot: %w", ErrSourceUnavailable, err)
	}

	signals, err := s.stores.Signals.Get(ctx, engagementID)
	if err != nil {
		return nil, fmt.Errorf("%w: context signals: %w", ErrSourceUnavailable, err)
	}

	scenarios, err := s.modeler.Model(analytics.ScenarioRequest{
		Snapshot:  snapshot,
		Signals:   signals,
		Types:     types,
		Overrides: overrides,
	})
	if err != nil {
		return nil, err
	}

	for _, scenario := range scenarios {
		if err := s.stores.Scenarios.Upsert(ctx, scenario); err != nil {
			return nil, fmt.Errorf("save %s scenario: %w", scenario.ScenarioType, err)
		}
	}

	s.publish(engagementID, notifications.Event{
		Type: notifications.EventScenariosUpdated,
		Data: map[string]interface{}{
			"period_end": periodEnd.Format(time.DateOnly),
			"scenarios":  len(scenarios),
		},
	})

	return scenarios, nil
}

func (s *Service) publish(engagementID uuid.UUID, event notifications.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(engagementID, event)
}

// MetricValue извлекает из снимка значение отслеживаемой метрики.
func MetricValue(snapshot models.PeriodSnapshot, metric models.MetricType) float64 {
	switch metric {
	case models.MetricRevenue:
		return snapshot.Revenue
	case models.MetricMargin:
		return snapshot.OperatingMarginPct
	case models.MetricCash:
		return snapshot.BankBalance
	case models.MetricDebtorDays:
		return snapshot.DebtorDays
	case models.MetricEfficiency:
		return snapshot.RevenuePerHead
	default:
		return 0
	}
}

func metricSeries(history []models.PeriodSnapshot, metric models.MetricType) []analytics.SeriesPoint {
	series := make([]analytics.SeriesPoint, 0, len(history))
	for _, snapshot := range history {
		series = append(series, analytics.SeriesPoint{Date: snapshot.PeriodEnd, Value: MetricValue(snapshot, metric)})
	}
	return series
}

func monthValues(history []models.PeriodSnapshot) []analytics.MonthValue {
	values := make([]analytics.MonthValue, 0, len(history))
	for _, snapshot := range history {
		values = append(values, analytics.MonthValue{Month: snapshot.PeriodEnd.Month(), Value: snapshot.Revenue})
	}
	return values
}

func lastN(history []models.PeriodSnapshot, n int) []models.PeriodSnapshot {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
