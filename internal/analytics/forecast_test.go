package analytics

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/practice-advisor/backend/internal/models"
)

func flatForecastPolicy() ForecastPolicy {
	policy := DefaultPolicy().Forecast
	for i := range policy.SeasonalFactors {
		policy.SeasonalFactors[i] = 1
	}
	return policy
}

func testSnapshot() models.PeriodSnapshot {
	return models.PeriodSnapshot{
		ID:                 uuid.New(),
		EngagementID:       uuid.New(),
		PeriodEnd:          time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
		Revenue:            40000,
		GrossMarginPct:     55,
		OperatingMarginPct: 15,
		BankBalance:        50000,
		TrueCash:           40000,
		DebtorTotal:        60000,
		DebtorDays:         30,
		Overheads:          30000,
	}
}

func dueOn(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// TestForecastChainsThirteenWeeks проверяет инварианты цепочки недель.
func TestForecastChainsThirteenWeeks(t *testing.T) {
	engine := NewForecastEngine(DefaultPolicy().Forecast, nil)
	snapshot := testSnapshot()

	forecast := engine.Forecast(ForecastInput{
		Snapshot:          snapshot,
		History:           []models.PeriodSnapshot{snapshot},
		RevenueVolatility: models.VolatilityLow,
		Commitments: []models.Commitment{
			{ID: uuid.New(), Description: "VAT", Amount: 12000, Frequency: models.FrequencyQuarterly, NextDueDate: dueOn(2024, time.May, 7), IncludeInForecast: true},
		},
	})

	require.Len(t, forecast.Weeks, ForecastWeeks)
	assert.Equal(t, snapshot.BankBalance, forecast.Weeks[0].OpeningBalance)
	assert.Equal(t, snapshot.BankBalance, forecast.OpeningCash)
	assert.Equal(t, snapshot.TrueCash, forecast.OpeningTrueCash)

	for i := 0; i < len(forecast.Weeks)-1; i++ {
		assert.Equal(t, forecast.Weeks[i].ClosingBalance, forecast.Weeks[i+1].OpeningBalance, "week %d", i+1)
	}
	for i, week := range forecast.Weeks {
		assert.Equal(t, i+1, week.Week)
		assert.Equal(t, snapshot.PeriodEnd.AddDate(0, 0, 7*(i+1)), week.WeekEnding)
		assert.InDelta(t, week.OpeningBalance+week.ExpectedReceipts-week.ExpectedPayments, week.ClosingBalance, 0.01)
	}
}

// TestForecastCollectionLag проверяет 50% сбора до лага и 90% после.
func TestForecastCollectionLag(t *testing.T) {
	engine := NewForecastEngine(flatForecastPolicy(), nil)
	snapshot := testSnapshot() // 30 дней -> лаг 4 недели

	forecast := engine.Forecast(ForecastInput{Snapshot: snapshot})

	weekly := snapshot.Revenue / 4.33
	assert.Equal(t, 4, forecast.Assumptions.CollectionLagWeeks)
	assert.InDelta(t, weekly*0.5, forecast.Weeks[3].ExpectedReceipts, 0.01)
	assert.InDelta(t, weekly*0.9, forecast.Weeks[4].ExpectedReceipts, 0.01)
	assert.InDelta(t, snapshot.Overheads/4.33, forecast.Weeks[0].ExpectedPayments, 0.01)
}

// TestForecastSeasonalFactor проверяет применение сезонного коэффициента месяца недели.
func TestForecastSeasonalFactor(t *testing.T) {
	policy := flatForecastPolicy()
	policy.SeasonalFactors[time.May-1] = 1.2
	engine := NewForecastEngine(policy, nil)
	snapshot := testSnapshot()
	snapshot.DebtorDays = 0

	forecast := engine.Forecast(ForecastInput{Snapshot: snapshot})

	// Неделя 5 заканчивается 5 мая.
	assert.Equal(t, time.May, forecast.Weeks[4].WeekEnding.Month())
	assert.InDelta(t, snapshot.Revenue*1.2/4.33*0.9, forecast.Weeks[4].ExpectedReceipts, 0.01)
	assert.InDelta(t, snapshot.Revenue/4.33*0.9, forecast.Weeks[3].ExpectedReceipts, 0.01)
}

// TestForecastCommitmentWindow проверяет попадание платежа в окно (неделя-7д, неделя].
func TestForecastCommitmentWindow(t *testing.T) {
	engine := NewForecastEngine(flatForecastPolicy(), nil)
	snapshot := testSnapshot()

	forecast := engine.Forecast(ForecastInput{
		Snapshot: snapshot,
		Commitments: []models.Commitment{
			{ID: uuid.New(), Description: "Corporation tax", Amount: 5000, Frequency: models.FrequencyOneOff, NextDueDate: dueOn(2024, time.April, 14), IncludeInForecast: true},
			{ID: uuid.New(), Description: "Ignored", Amount: 9999, Frequency: models.FrequencyOneOff, NextDueDate: dueOn(2024, time.April, 14), IncludeInForecast: false},
		},
	})

	overhead := snapshot.Overheads / 4.33
	assert.InDelta(t, overhead, forecast.Weeks[0].ExpectedPayments, 0.01)
	assert.InDelta(t, overhead+5000, forecast.Weeks[1].ExpectedPayments, 0.01)
	assert.InDelta(t, overhead, forecast.Weeks[2].ExpectedPayments, 0.01)
	assert.Equal(t, []string{"Corporation tax (£5,000)"}, forecast.Weeks[1].KeyEvents)
	assert.Equal(t, 1, forecast.Assumptions.CommitmentsIncluded)
}

// TestForecastRecurringCommitment проверяет разворачивание ежемесячного платежа.
func TestForecastRecurringCommitment(t *testing.T) {
	engine := NewForecastEngine(flatForecastPolicy(), nil)
	snapshot := testSnapshot()

	forecast := engine.Forecast(ForecastInput{
		Snapshot: snapshot,
		Commitments: []models.Commitment{
			{ID: uuid.New(), Description: "Loan", Amount: 1000, Frequency: models.FrequencyMonthly, NextDueDate: dueOn(2024, time.April, 15), EndDate: dueOn(2024, time.May, 31), IncludeInForecast: true},
		},
	})

	var hits int
	for _, week := range forecast.Weeks {
		hits += len(week.KeyEvents)
	}
	assert.Equal(t, 2, hits)
}

// TestForecastSkipsCommitmentWithoutDueDate проверяет missing_commitment_data.
func TestForecastSkipsCommitmentWithoutDueDate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	engine := NewForecastEngine(flatForecastPolicy(), logger)
	snapshot := testSnapshot()

	forecast := engine.Forecast(ForecastInput{
		Snapshot: snapshot,
		Commitments: []models.Commitment{
			{ID: uuid.New(), Description: "PAYE", Amount: 8000, Frequency: models.FrequencyMonthly, IncludeInForecast: true},
		},
	})

	assert.Equal(t, 1, forecast.Assumptions.CommitmentsSkipped)
	assert.Equal(t, 0, forecast.Assumptions.CommitmentsIncluded)
	assert.Contains(t, buf.String(), "missing_commitment_data")
	for _, week := range forecast.Weeks {
		assert.Empty(t, week.KeyEvents)
	}
}

// TestForecastCriticalDate проверяет флаг критической даты и рекомендацию.
func TestForecastCriticalDate(t *testing.T) {
	engine := NewForecastEngine(flatForecastPolicy(), nil)
	snapshot := testSnapshot()

	forecast := engine.Forecast(ForecastInput{
		Snapshot: snapshot,
		Commitments: []models.Commitment{
			{ID: uuid.New(), Description: "VAT quarter", Amount: 60000, Frequency: models.FrequencyOneOff, NextDueDate: dueOn(2024, time.April, 10), IncludeInForecast: true},
		},
	})

	require.NotEmpty(t, forecast.CriticalDates)
	flag := forecast.CriticalDates[0]
	week := forecast.Weeks[1]

	assert.Equal(t, 2, flag.Week)
	assert.Equal(t, week.WeekEnding, flag.Date)
	assert.Equal(t, "VAT quarter (£60,000)", flag.TriggeringEvent)
	assert.InDelta(t, week.ExpectedPayments-week.ExpectedReceipts, flag.Impact, 0.01)
	assert.Equal(t, week.ClosingBalance, flag.ResultingBalance)
	assert.Equal(t, roundWhole(flag.Impact*1.2), flag.RecommendedCollection)
	assert.Contains(t, flag.RecommendedAction, "Accelerate collections")
}

// TestForecastSentimentAndNarrative проверяет, что текст ссылается на минимум.
func TestForecastSentimentAndNarrative(t *testing.T) {
	engine := NewForecastEngine(flatForecastPolicy(), nil)
	snapshot := testSnapshot()
	snapshot.Revenue = 20000
	snapshot.TrueCash = 12000

	forecast := engine.Forecast(ForecastInput{Snapshot: snapshot})

	require.NotNil(t, forecast.CashRunwayWeeks)
	// (30000 - 20000) / 4.33
	assert.InDelta(t, 2309.47, forecast.AvgWeeklyBurn, 0.01)
	assert.Equal(t, 5, *forecast.CashRunwayWeeks)
	assert.Equal(t, models.SentimentCritical, forecast.Sentiment)
	assert.Equal(t, 13, forecast.LowestBalanceWeek)
	assert.Contains(t, forecast.Narrative, "week 13")
	assert.Contains(t, forecast.Narrative, formatGBP(forecast.LowestBalance))
}

// TestForecastUnlimitedRunway проверяет вариант без ограничения запаса.
func TestForecastUnlimitedRunway(t *testing.T) {
	engine := NewForecastEngine(flatForecastPolicy(), nil)
	snapshot := testSnapshot()
	snapshot.Revenue = 60000
	snapshot.DebtorDays = 0

	forecast := engine.Forecast(ForecastInput{Snapshot: snapshot})

	assert.True(t, forecast.RunwayUnlimited())
	assert.Less(t, forecast.AvgWeeklyBurn, 0.0)
	assert.Equal(t, models.SentimentComfortable, forecast.Sentiment)
	assert.Empty(t, forecast.CriticalDates)
}

// TestForecastAveragesHistory проверяет усреднение по истории и откат к снимку.
func TestForecastAveragesHistory(t *testing.T) {
	engine := NewForecastEngine(flatForecastPolicy(), nil)
	snapshot := testSnapshot()
	older := snapshot
	older.Revenue = 20000
	older.Overheads = 10000

	withHistory := engine.Forecast(ForecastInput{Snapshot: snapshot, History: []models.PeriodSnapshot{older, snapshot}})
	assert.Equal(t, 30000.0, withHistory.Assumptions.AvgMonthlyRevenue)
	assert.Equal(t, 20000.0, withHistory.Assumptions.AvgMonthlyOverheads)

	withoutHistory := engine.Forecast(ForecastInput{Snapshot: snapshot})
	assert.Equal(t, snapshot.Revenue, withoutHistory.Assumptions.AvgMonthlyRevenue)
	assert.Equal(t, models.VolatilityMedium, withoutHistory.Assumptions.RevenueVolatility)
}

// TestForecastDeterministic проверяет, что повторный запуск дает то же значение.
func TestForecastDeterministic(t *testing.T) {
	engine := NewForecastEngine(DefaultPolicy().Forecast, nil)
	in := ForecastInput{Snapshot: testSnapshot(), RevenueVolatility: models.VolatilityLow}

	assert.Equal(t, engine.Forecast(in), engine.Forecast(in))
}

// TestWeekConfidence проверяет затухание уверенности по неделям.
func TestWeekConfidence(t *testing.T) {
	policy := DefaultPolicy().Forecast
	assert.Equal(t, models.ConfidenceHigh, WeekConfidence(4, models.VolatilityLow, policy))
	assert.Equal(t, models.ConfidenceMedium, WeekConfidence(4, models.VolatilityHigh, policy))
	assert.Equal(t, models.ConfidenceMedium, WeekConfidence(5, models.VolatilityLow, policy))
	assert.Equal(t, models.ConfidenceMedium, WeekConfidence(8, models.VolatilityLow, policy))
	assert.Equal(t, models.ConfidenceLow, WeekConfidence(9, models.VolatilityLow, policy))
}

// TestRunwayWeeks проверяет расчет запаса и безлимитный вариант.
func TestRunwayWeeks(t *testing.T) {
	assert.Nil(t, RunwayWeeks(1000, 0))
	assert.Nil(t, RunwayWeeks(1000, -50))

	weeks := RunwayWeeks(40000, 2309.47)
	require.NotNil(t, weeks)
	assert.Equal(t, 17, *weeks)

	zero := RunwayWeeks(-500, 100)
	require.NotNil(t, zero)
	assert.Equal(t, 0, *zero)
}

// TestClassifySentiment проверяет порядок правил настроения.
func TestClassifySentiment(t *testing.T) {
	policy := DefaultPolicy().Forecast
	seven, twelve, twenty := 7, 12, 20

	assert.Equal(t, models.SentimentCritical, ClassifySentiment(&seven, 100000, 10000, policy))
	assert.Equal(t, models.SentimentConcerning, ClassifySentiment(&twelve, 100000, 10000, policy))
	assert.Equal(t, models.SentimentTight, ClassifySentiment(&twenty, 5000, 10000, policy))
	assert.Equal(t, models.SentimentTight, ClassifySentiment(nil, 5000, 10000, policy))
	assert.Equal(t, models.SentimentComfortable, ClassifySentiment(nil, 7000, 10000, policy))
}

// TestAddMonthsClamped проверяет прижатие к концу месяца.
func TestAddMonthsClamped(t *testing.T) {
	jan31 := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), addMonthsClamped(jan31, 1))
	assert.Equal(t, time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC), addMonthsClamped(jan31, 3))
}
