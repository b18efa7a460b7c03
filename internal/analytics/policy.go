package analytics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy содержит настраиваемые константы аналитического ядра.
type Policy struct {
	Forecast ForecastPolicy `yaml:"forecast"`
	Scenario ScenarioPolicy `yaml:"scenario"`
}

type ForecastPolicy struct {
	WeeksPerMonth float64 `yaml:"weeks_per_month"`
	// SeasonalFactors индексируется месяцем: 0 - январь.
	SeasonalFactors       [12]float64 `yaml:"seasonal_factors"`
	EarlyCollectionRate   float64     `yaml:"early_collection_rate"`
	LateCollectionRate    float64     `yaml:"late_collection_rate"`
	HighConfidenceWeeks   int         `yaml:"high_confidence_weeks"`
	MediumConfidenceWeeks int         `yaml:"medium_confidence_weeks"`
	CriticalPaymentsRatio float64     `yaml:"critical_payments_ratio"`
	CriticalTrueCashRatio float64     `yaml:"critical_true_cash_ratio"`
	CollectionBufferRatio float64     `yaml:"collection_buffer_ratio"`
	CriticalRunwayWeeks   int         `yaml:"critical_runway_weeks"`
	ConcerningRunwayWeeks int         `yaml:"concerning_runway_weeks"`
	TightTrueCashRatio    float64     `yaml:"tight_true_cash_ratio"`
}

type ScenarioPolicy struct {
	MaxScenarios            int     `yaml:"max_scenarios"`
	LowMarginPct            float64 `yaml:"low_margin_pct"`
	HighDebtorDays          float64 `yaml:"high_debtor_days"`
	OnCostMultiplier        float64 `yaml:"on_cost_multiplier"`
	WorkingDaysPerMonth     float64 `yaml:"working_days_per_month"`
	DefaultSalary           float64 `yaml:"default_salary"`
	DefaultDayRate          float64 `yaml:"default_day_rate"`
	DefaultUtilization      float64 `yaml:"default_utilization"`
	DefaultRampMonths       float64 `yaml:"default_ramp_months"`
	DefaultPriceIncrease    float64 `yaml:"default_price_increase"`
	DefaultChurn            float64 `yaml:"default_churn"`
	DefaultTargetDebtorDays float64 `yaml:"default_target_debtor_days"`
	DefaultLostClientShare  float64 `yaml:"default_lost_client_share"`
	RecommendedBreakeven    int     `yaml:"recommended_breakeven_months"`
	RecommendedUtilization  float64 `yaml:"recommended_utilization"`
	ConditionalBreakeven    int     `yaml:"conditional_breakeven_months"`
	LostClientCoverMonths   float64 `yaml:"lost_client_cover_months"`
}

// DefaultPolicy возвращает политику с базовыми допущениями практики.
func DefaultPolicy() Policy {
	return Policy{
		Forecast: ForecastPolicy{
			WeeksPerMonth:         4.33,
			SeasonalFactors:       [12]float64{0.90, 0.95, 1.05, 1.00, 1.00, 1.00, 0.95, 0.85, 1.00, 1.05, 1.10, 1.15},
			EarlyCollectionRate:   0.5,
			LateCollectionRate:    0.9,
			HighConfidenceWeeks:   4,
			MediumConfidenceWeeks: 8,
			CriticalPaymentsRatio: 1.5,
			CriticalTrueCashRatio: 0.5,
			CollectionBufferRatio: 1.2,
			CriticalRunwayWeeks:   8,
			ConcerningRunwayWeeks: 13,
			TightTrueCashRatio:    0.6,
		},
		Scenario: ScenarioPolicy{
			MaxScenarios:            3,
			LowMarginPct:            12,
			HighDebtorDays:          45,
			OnCostMultiplier:        1.15,
			WorkingDaysPerMonth:     20,
			DefaultSalary:           35000,
			DefaultDayRate:          450,
			DefaultUtilization:      0.7,
			DefaultRampMonths:       3,
			DefaultPriceIncrease:    0.05,
			DefaultChurn:            0.02,
			DefaultTargetDebtorDays: 30,
			DefaultLostClientShare:  0.2,
			RecommendedBreakeven:    3,
			RecommendedUtilization:  0.65,
			ConditionalBreakeven:    6,
			LostClientCoverMonths:   6,
		},
	}
}

// LoadPolicy читает YAML поверх политики по умолчанию. Пустой путь - только дефолты.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read policy file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return policy, err
	}

	return policy, nil
}

// Validate проверяет, что политика не приведет к делению на ноль и пустым расчетам.
func (p Policy) Validate() error {
	f := p.Forecast
	if f.WeeksPerMonth <= 0 {
		return fmt.Errorf("forecast.weeks_per_month must be greater than 0")
	}

	for i, factor := range f.SeasonalFactors {
		if factor <= 0 {
			return fmt.Errorf("forecast.seasonal_factors[%d] must be greater than 0", i)
		}
	}

	if f.EarlyCollectionRate < 0 || f.EarlyCollectionRate > 1 || f.LateCollectionRate < 0 || f.LateCollectionRate > 1 {
		return fmt.Errorf("forecast collection rates must be between 0 and 1")
	}

	if f.HighConfidenceWeeks > f.MediumConfidenceWeeks {
		return fmt.Errorf("forecast.high_confidence_weeks cannot exceed medium_confidence_weeks")
	}

	if f.CriticalRunwayWeeks > f.ConcerningRunwayWeeks {
		return fmt.Errorf("forecast.critical_runway_weeks cannot exceed concerning_runway_weeks")
	}

	s := p.Scenario
	if s.MaxScenarios <= 0 {
		return fmt.Errorf("scenario.max_scenarios must be greater than 0")
	}

	if s.OnCostMultiplier <= 0 || s.WorkingDaysPerMonth <= 0 {
		return fmt.Errorf("scenario on-cost multiplier and working days must be greater than 0")
	}

	if s.RecommendedBreakeven > s.ConditionalBreakeven {
		return fmt.Errorf("scenario.recommended_breakeven_months cannot exceed conditional_breakeven_months")
	}

	return nil
}
