package models

import (
	"time"

	"github.com/google/uuid"
)

type MetricType string

type TrendDirection string

type Volatility string

type Confidence string

type AnalysisStatus string

type CommitmentFrequency string

type CommitmentConfidence string

type ForecastSentiment string

type ScenarioType string

type VerdictType string

const (
	MetricRevenue    MetricType = "revenue"
	MetricMargin     MetricType = "margin"
	MetricCash       MetricType = "cash"
	MetricDebtorDays MetricType = "debtor_days"
	MetricEfficiency MetricType = "efficiency"

	DirectionStable    TrendDirection = "stable"
	DirectionGrowing   TrendDirection = "growing"
	DirectionDeclining TrendDirection = "declining"
	DirectionImproving TrendDirection = "improving"
	DirectionEroding   TrendDirection = "eroding"
	DirectionBuilding  TrendDirection = "building"
	DirectionDepleting TrendDirection = "depleting"
	DirectionWorsening TrendDirection = "worsening"

	VolatilityLow    Volatility = "low"
	VolatilityMedium Volatility = "medium"
	VolatilityHigh   Volatility = "high"

	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"

	StatusComputed         AnalysisStatus = "computed"
	StatusInsufficientData AnalysisStatus = "insufficient_data"

	FrequencyOneOff    CommitmentFrequency = "one_off"
	FrequencyWeekly    CommitmentFrequency = "weekly"
	FrequencyMonthly   CommitmentFrequency = "monthly"
	FrequencyQuarterly CommitmentFrequency = "quarterly"
	FrequencyAnnual    CommitmentFrequency = "annual"

	CommitmentConfirmed CommitmentConfidence = "confirmed"
	CommitmentLikely    CommitmentConfidence = "likely"
	CommitmentEstimated CommitmentConfidence = "estimated"

	SentimentComfortable ForecastSentiment = "comfortable"
	SentimentTight       ForecastSentiment = "tight"
	SentimentConcerning  ForecastSentiment = "concerning"
	SentimentCritical    ForecastSentiment = "critical"

	ScenarioHire                  ScenarioType = "hire"
	ScenarioPriceIncrease         ScenarioType = "price_increase"
	ScenarioCollectionImprovement ScenarioType = "collection_improvement"
	ScenarioLostClient            ScenarioType = "lost_client"

	VerdictRecommended    VerdictType = "recommended"
	VerdictYesIf          VerdictType = "yes_if"
	VerdictRisky          VerdictType = "risky"
	VerdictNotRecommended VerdictType = "not_recommended"
)

// TrackedMetrics перечисляет метрики, по которым строятся тренды.
var TrackedMetrics = []MetricType{
	MetricRevenue,
	MetricMargin,
	MetricCash,
	MetricDebtorDays,
	MetricEfficiency,
}

// PeriodSnapshot - финализированные показатели клиента на конец месяца.
type PeriodSnapshot struct {
	ID                 uuid.UUID  `json:"id"`
	EngagementID       uuid.UUID  `json:"engagement_id"`
	PeriodEnd          time.Time  `json:"period_end"`
	Revenue            float64    `json:"revenue"`
	GrossMarginPct     float64    `json:"gross_margin_pct"`
	OperatingMarginPct float64    `json:"operating_margin_pct"`
	NetMarginPct       float64    `json:"net_margin_pct"`
	BankBalance        float64    `json:"bank_balance"`
	TrueCash           float64    `json:"true_cash"`
	DebtorTotal        float64    `json:"debtor_total"`
	DebtorDays         float64    `json:"debtor_days"`
	Overheads          float64    `json:"overheads"`
	StaffCostPct       float64    `json:"staff_cost_pct"`
	RevenuePerHead     float64    `json:"revenue_per_head"`
	FinalizedAt        *time.Time `json:"finalized_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type Commitment struct {
	ID                uuid.UUID            `json:"id"`
	EngagementID      uuid.UUID            `json:"engagement_id"`
	CommitmentType    string               `json:"commitment_type"`
	Description       string               `json:"description"`
	Amount            float64              `json:"amount"`
	Frequency         CommitmentFrequency  `json:"frequency"`
	NextDueDate       *time.Time           `json:"next_due_date,omitempty"`
	EndDate           *time.Time           `json:"end_date,omitempty"`
	IncludeInForecast bool                 `json:"include_in_forecast"`
	Confidence        CommitmentConfidence `json:"confidence"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// ContextSignals - качественные сигналы из внешней анкеты клиента.
type ContextSignals struct {
	EngagementID          uuid.UUID `json:"engagement_id"`
	HiringRecentlyFlagged bool      `json:"hiring_recently_flagged"`
	CustomerConcentration string    `json:"customer_concentration"`
}

type TrendResult struct {
	EngagementID  uuid.UUID      `json:"engagement_id"`
	MetricType    MetricType     `json:"metric_type"`
	Status        AnalysisStatus `json:"status"`
	Direction     TrendDirection `json:"direction"`
	AverageChange float64        `json:"average_change"`
	Volatility    Volatility     `json:"volatility"`
	DataPoints    int            `json:"data_points"`
	Narrative     string         `json:"narrative"`
	PeriodEnd     time.Time      `json:"period_end"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type SeasonalityProfile struct {
	EngagementID       uuid.UUID    `json:"engagement_id"`
	Detected           bool         `json:"detected"`
	Pattern            *string      `json:"pattern"`
	PeakMonths         []time.Month `json:"peak_months"`
	TroughMonths       []time.Month `json:"trough_months"`
	PeakTroughDeltaPct float64      `json:"peak_trough_delta_pct"`
	Confidence         Confidence   `json:"confidence"`
	DataPoints         int          `json:"data_points"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

type WeeklyForecastPoint struct {
	Week             int        `json:"week"`
	WeekEnding       time.Time  `json:"week_ending"`
	OpeningBalance   float64    `json:"opening_balance"`
	ExpectedReceipts float64    `json:"expected_receipts"`
	ExpectedPayments float64    `json:"expected_payments"`
	ClosingBalance   float64    `json:"closing_balance"`
	Confidence       Confidence `json:"confidence"`
	KeyEvents        []string   `json:"key_events"`
}

type CriticalDate struct {
	Date                  time.Time `json:"date"`
	Week                  int       `json:"week"`
	TriggeringEvent       string    `json:"triggering_event"`
	Impact                float64   `json:"impact"`
	ResultingBalance      float64   `json:"resulting_balance"`
	RecommendedCollection float64   `json:"recommended_collection"`
	RecommendedAction     string    `json:"recommended_action"`
}

type ForecastAssumptions struct {
	AvgMonthlyRevenue   float64     `json:"avg_monthly_revenue"`
	AvgMonthlyOverheads float64     `json:"avg_monthly_overheads"`
	HistoryMonths       int         `json:"history_months"`
	WeeksPerMonth       float64     `json:"weeks_per_month"`
	DebtorDays          float64     `json:"debtor_days"`
	CollectionLagWeeks  int         `json:"collection_lag_weeks"`
	EarlyCollectionRate float64     `json:"early_collection_rate"`
	LateCollectionRate  float64     `json:"late_collection_rate"`
	RevenueVolatility   Volatility  `json:"revenue_volatility"`
	SeasonalFactors     [12]float64 `json:"seasonal_factors"`
	CommitmentsIncluded int         `json:"commitments_included"`
	CommitmentsSkipped  int         `json:"commitments_skipped"`
}

type CashForecast struct {
	EngagementID      uuid.UUID             `json:"engagement_id"`
	PeriodEnd         time.Time             `json:"period_end"`
	OpeningCash       float64               `json:"opening_cash"`
	OpeningTrueCash   float64               `json:"opening_true_cash"`
	Weeks             []WeeklyForecastPoint `json:"weeks"`
	LowestBalance     float64               `json:"lowest_balance"`
	LowestBalanceWeek int                   `json:"lowest_balance_week"`
	LowestBalanceDate time.Time             `json:"lowest_balance_date"`
	CashRunwayWeeks   *int                  `json:"cash_runway_weeks"`
	AvgWeeklyBurn     float64               `json:"avg_weekly_burn"`
	CriticalDates     []CriticalDate        `json:"critical_dates"`
	Assumptions       ForecastAssumptions   `json:"assumptions"`
	Narrative         string                `json:"narrative"`
	Sentiment         ForecastSentiment     `json:"sentiment"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// RunwayUnlimited сообщает, что при текущем денежном потоке запас не ограничен.
func (f CashForecast) RunwayUnlimited() bool {
	return f.CashRunwayWeeks == nil
}

type ScenarioImpact struct {
	MonthlyRevenueImpact float64 `json:"monthly_revenue_impact"`
	MonthlyCostImpact    float64 `json:"monthly_cost_impact"`
	MonthlyProfitImpact  float64 `json:"monthly_profit_impact"`
	CashImpactMonth1     float64 `json:"cash_impact_month_1"`
	CashImpactMonth3     float64 `json:"cash_impact_month_3"`
	BreakevenMonth       int     `json:"breakeven_month"`
	YearOneImpact        float64 `json:"year_one_impact"`
}

type Verdict struct {
	Verdict     VerdictType `json:"verdict"`
	Summary     string      `json:"summary"`
	Conditions  []string    `json:"conditions"`
	Risks       []string    `json:"risks"`
	Alternative *string     `json:"alternative,omitempty"`
}

type Scenario struct {
	EngagementID uuid.UUID          `json:"engagement_id"`
	PeriodEnd    time.Time          `json:"period_end"`
	ScenarioType ScenarioType       `json:"scenario_type"`
	Title        string             `json:"title"`
	Assumptions  map[string]float64 `json:"assumptions"`
	Impact       ScenarioImpact     `json:"impact"`
	Verdict      Verdict            `json:"verdict"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
