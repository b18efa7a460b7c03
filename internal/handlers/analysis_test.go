package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"example.com/practice-advisor/backend/internal/analysis"
	"example.com/practice-advisor/backend/internal/analytics"
	"example.com/practice-advisor/backend/internal/models"
	"example.com/practice-advisor/backend/internal/repository"
)

type fakeRunner struct {
	err        error
	engagement uuid.UUID
	periodEnd  time.Time
	types      []models.ScenarioType
	overrides  map[models.ScenarioType]map[string]float64
}

func (f *fakeRunner) Run(_ context.Context, engagementID uuid.UUID, periodEnd time.Time) (analysis.Report, error) {
	f.engagement = engagementID
	f.periodEnd = periodEnd
	if f.err != nil {
		return analysis.Report{}, f.err
	}
	return analysis.Report{EngagementID: engagementID, PeriodEnd: periodEnd}, nil
}

func (f *fakeRunner) RunScenarios(_ context.Context, engagementID uuid.UUID, periodEnd time.Time, types []models.ScenarioType, overrides map[models.ScenarioType]map[string]float64) ([]models.Scenario, error) {
	f.engagement = engagementID
	f.periodEnd = periodEnd
	f.types = types
	f.overrides = overrides
	if f.err != nil {
		return nil, f.err
	}
	return []models.Scenario{{EngagementID: engagementID, PeriodEnd: periodEnd, ScenarioType: models.ScenarioPriceIncrease}}, nil
}

type fakeForecasts struct {
	forecast models.CashForecast
	err      error
}

func (f fakeForecasts) Get(_ context.Context, _ uuid.UUID, _ time.Time) (models.CashForecast, error) {
	return f.forecast, f.err
}

type fakeSeasonality struct {
	err error
}

func (f fakeSeasonality) Get(_ context.Context, engagementID uuid.UUID) (models.SeasonalityProfile, error) {
	return models.SeasonalityProfile{EngagementID: engagementID}, f.err
}

func newTestAnalysisHandler(runner *fakeRunner, forecasts fakeForecasts, seasonality fakeSeasonality) *AnalysisHandler {
	return NewAnalysisHandler(runner, nil, seasonality, forecasts, nil, nil)
}

// TestTriggerAnalysis проверяет запуск анализа за период.
func TestTriggerAnalysis(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestAnalysisHandler(runner, fakeForecasts{}, fakeSeasonality{})
	engagementID := uuid.New()

	c, rec := newTestContext(testRequest{
		method: http.MethodPost,
		body:   `{"period_end":"2024-03-31"}`,
		params: map[string]string{"engagementId": engagementID.String()},
	})

	if err := handler.Trigger(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if runner.engagement != engagementID {
		t.Fatalf("expected engagement %s, got %s", engagementID, runner.engagement)
	}
	if want := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC); !runner.periodEnd.Equal(want) {
		t.Fatalf("expected period %s, got %s", want, runner.periodEnd)
	}
}

// TestTriggerAnalysisStatusCodes проверяет маппинг ошибок на HTTP-статусы.
func TestTriggerAnalysisStatusCodes(t *testing.T) {
	engagementID := uuid.New().String()

	tests := []struct {
		name      string
		runErr    error
		body      string
		engagment string
		anonymous bool
		want      int
	}{
		{name: "snapshot missing", runErr: analysis.ErrSnapshotNotFound, want: http.StatusNotFound},
		{name: "source unavailable", runErr: fmt.Errorf("%w: snapshots: timeout", analysis.ErrSourceUnavailable), want: http.StatusServiceUnavailable},
		{name: "write failure", runErr: errors.New("save forecast: disk full"), want: http.StatusInternalServerError},
		{name: "bad date", body: `{"period_end":"31/03/2024"}`, want: http.StatusBadRequest},
		{name: "missing date", body: `{}`, want: http.StatusBadRequest},
		{name: "bad engagement", engagment: "not-a-uuid", want: http.StatusBadRequest},
		{name: "anonymous", anonymous: true, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == "" {
				body = `{"period_end":"2024-03-31"}`
			}
			id := tt.engagment
			if id == "" {
				id = engagementID
			}

			handler := newTestAnalysisHandler(&fakeRunner{err: tt.runErr}, fakeForecasts{}, fakeSeasonality{})
			c, rec := newTestContext(testRequest{
				method:    http.MethodPost,
				body:      body,
				params:    map[string]string{"engagementId": id},
				anonymous: tt.anonymous,
			})

			if err := handler.Trigger(c); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

// TestRunScenariosRequest проверяет передачу типов и допущений.
func TestRunScenariosRequest(t *testing.T) {
	runner := &fakeRunner{}
	handler := newTestAnalysisHandler(runner, fakeForecasts{}, fakeSeasonality{})

	c, rec := newTestContext(testRequest{
		method: http.MethodPost,
		body:   `{"types":["price_increase"],"overrides":{"price_increase":{"price_increase":0.1,"expected_churn":0.05}}}`,
		params: map[string]string{"engagementId": uuid.New().String(), "periodEnd": "2024-03-31"},
	})

	if err := handler.RunScenarios(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(runner.types) != 1 || runner.types[0] != models.ScenarioPriceIncrease {
		t.Fatalf("unexpected types %v", runner.types)
	}
	if got := runner.overrides[models.ScenarioPriceIncrease][analytics.KeyPriceIncrease]; got != 0.1 {
		t.Fatalf("expected override 0.1, got %v", got)
	}

	var response ScenariosResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("expected json response, got %v", err)
	}
	if len(response.Scenarios) != 1 {
		t.Fatalf("expected 1 scenario, got %d", len(response.Scenarios))
	}
}

// TestRunScenariosRejectsInput проверяет 400 на неизвестный тип и неверные допущения.
func TestRunScenariosRejectsInput(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		runErr error
	}{
		{name: "unknown type", body: `{"types":["office_move"]}`},
		{name: "too many types", body: `{"types":["hire","price_increase","lost_client","collection_improvement"]}`},
		{name: "negative assumption", body: `{"types":["hire"]}`, runErr: fmt.Errorf("%w: annual_salary must not be negative", analytics.ErrInvalidAssumption)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestAnalysisHandler(&fakeRunner{err: tt.runErr}, fakeForecasts{}, fakeSeasonality{})
			c, rec := newTestContext(testRequest{
				method: http.MethodPost,
				body:   tt.body,
				params: map[string]string{"engagementId": uuid.New().String(), "periodEnd": "2024-03-31"},
			})

			if err := handler.RunScenarios(c); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

// TestGetForecast проверяет чтение прогноза и 404.
func TestGetForecast(t *testing.T) {
	params := map[string]string{"engagementId": uuid.New().String(), "periodEnd": "2024-03-31"}

	handler := newTestAnalysisHandler(&fakeRunner{}, fakeForecasts{forecast: models.CashForecast{Sentiment: models.SentimentTight}}, fakeSeasonality{})
	c, rec := newTestContext(testRequest{method: http.MethodGet, params: params})
	if err := handler.GetForecast(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	handler = newTestAnalysisHandler(&fakeRunner{}, fakeForecasts{err: repository.ErrNotFound}, fakeSeasonality{})
	c, rec = newTestContext(testRequest{method: http.MethodGet, params: params})
	if err := handler.GetForecast(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	c, rec = newTestContext(testRequest{method: http.MethodGet, params: map[string]string{"engagementId": uuid.New().String(), "periodEnd": "March"}})
	if err := handler.GetForecast(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// TestGetSeasonalityNotFound проверяет ответ при короткой истории.
func TestGetSeasonalityNotFound(t *testing.T) {
	handler := newTestAnalysisHandler(&fakeRunner{}, fakeForecasts{}, fakeSeasonality{err: repository.ErrNotFound})
	c, rec := newTestContext(testRequest{method: http.MethodGet, params: map[string]string{"engagementId": uuid.New().String()}})

	if err := handler.GetSeasonality(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
