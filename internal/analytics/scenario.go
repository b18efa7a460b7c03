package analytics

import (
	"errors"
	"fmt"
	"strings"

	"example.com/practice-advisor/backend/internal/models"
)

const (
	ConcentrationOver50 = "over 50%"
	breakevenHorizon    = 12

	KeyAnnualSalary      = "annual_salary"
	KeyDayRate           = "day_rate"
	KeyUtilization       = "utilization"
	KeyRampMonths        = "ramp_months"
	KeyOnCostMultiplier  = "on_cost_multiplier"
	KeyWorkingDays       = "working_days_per_month"
	KeyMonthlyRevenue    = "current_monthly_revenue"
	KeyPriceIncrease     = "price_increase"
	KeyExpectedChurn     = "expected_churn"
	KeyDebtorTotal       = "current_debtors"
	KeyCurrentDebtorDays = "current_debtor_days"
	KeyTargetDebtorDays  = "target_debtor_days"
	KeyClientShare       = "client_share"
	KeyGrossMarginPct    = "gross_margin_pct"
	KeyTrueCash          = "true_cash"
	KeyMonthlyCost       = "monthly_cost"
	KeyRevenuePotential  = "monthly_revenue_potential"
)

var (
	ErrUnknownScenario   = errors.New("unknown scenario type")
	ErrInvalidAssumption = errors.New("invalid scenario assumption")
)

// ScenarioRequest - входные данные для моделирования сценариев одного периода.
type ScenarioRequest struct {
	Snapshot models.PeriodSnapshot
	Signals  models.ContextSignals
	// Types задает сценарии явно; пусто - выбор эвристикой.
	Types     []models.ScenarioType
	Overrides map[models.ScenarioType]map[string]float64
}

type ScenarioModeler struct {
	policy ScenarioPolicy
}

type HireParams struct {
	AnnualSalary        float64
	DayRate             float64
	Utilization         float64
	RampMonths          float64
	OnCostMultiplier    float64
	WorkingDaysPerMonth float64
}

type PriceIncreaseParams struct {
	MonthlyRevenue float64
	Increase       float64
	Churn          float64
}

type CollectionParams struct {
	Debtors           float64
	CurrentDebtorDays float64
	TargetDebtorDays  float64
}

type LostClientParams struct {
	MonthlyRevenue float64
	ClientShare    float64
	GrossMarginPct float64
}

// NewScenarioModeler создает модуль what-if сценариев.
func NewScenarioModeler(policy ScenarioPolicy) *ScenarioModeler {
	return &ScenarioModeler{policy: policy}
}

// ValidScenarioType проверяет, что тип сценария поддерживается.
func ValidScenarioType(t models.ScenarioType) bool {
	switch t {
	case models.ScenarioHire, models.ScenarioPriceIncrease, models.ScenarioCollectionImprovement, models.ScenarioLostClient:
		return true
	default:
		return false
	}
}

// SelectScenarios выбирает до MaxScenarios релевантных сценариев по снимку и сигналам.
func (m *ScenarioModeler) SelectScenarios(snapshot models.PeriodSnapshot, signals models.ContextSignals) []models.ScenarioType {
	selected := make([]models.ScenarioType, 0, 4)

	if signals.HiringRecentlyFlagged {
		selected = append(selected, models.ScenarioHire)
	}
	if snapshot.OperatingMarginPct < m.policy.LowMarginPct {
		selected = append(selected, models.ScenarioPriceIncrease)
	}
	if snapshot.DebtorDays > m.policy.HighDebtorDays {
		selected = append(selected, models.ScenarioCollectionImprovement)
	}
	if isHighConcentration(signals.CustomerConcentration) {
		selected = append(selected, models.ScenarioLostClient)
	}
	if !containsScenario(selected, models.ScenarioPriceIncrease) {
		selected = append(selected, models.ScenarioPriceIncrease)
	}

	if len(selected) > m.policy.MaxScenarios {
		selected = selected[:m.policy.MaxScenarios]
	}
	return selected
}

// Model считает выбранные (или запрошенные) сценарии и прикладывает вердикт.
func (m *ScenarioModeler) Model(req ScenarioRequest) ([]models.Scenario, error) {
	types := req.Types
	if len(types) == 0 {
		types = m.SelectScenarios(req.Snapshot, req.Signals)
	}

	unique := make([]models.ScenarioType, 0, len(types))
	for _, t := range types {
		if !ValidScenarioType(t) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, t)
		}
		if !containsScenario(unique, t) {
			unique = append(unique, t)
		}
	}
	if len(unique) > m.policy.MaxScenarios {
		unique = unique[:m.policy.MaxScenarios]
	}

	scenarios := make([]models.Scenario, 0, len(unique))
	for _, t := range unique {
		scenario, err := m.Compute(t, req.Snapshot, req.Overrides[t])
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, scenario)
	}

	return scenarios, nil
}

// Compute считает один сценарий; overrides заменяют допущения по умолчанию.
func (m *ScenarioModeler) Compute(t models.ScenarioType, snapshot models.PeriodSnapshot, overrides map[string]float64) (models.Scenario, error) {
	for key, value := range overrides {
		if value < 0 {
			return models.Scenario{}, fmt.Errorf("%w: %s must not be negative", ErrInvalidAssumption, key)
		}
	}

	scenario := models.Scenario{
		EngagementID: snapshot.EngagementID,
		PeriodEnd:    snapshot.PeriodEnd,
		ScenarioType: t,
	}

	pick := func(key string, fallback float64) float64 {
		if v, ok := overrides[key]; ok {
			return v
		}
		return fallback
	}

	switch t {
	case models.ScenarioHire:
		params := HireParams{
			AnnualSalary:        pick(KeyAnnualSalary, m.policy.DefaultSalary),
			DayRate:             pick(KeyDayRate, m.policy.DefaultDayRate),
			Utilization:         pick(KeyUtilization, m.policy.DefaultUtilization),
			RampMonths:          pick(KeyRampMonths, m.policy.DefaultRampMonths),
			OnCostMultiplier:    pick(KeyOnCostMultiplier, m.policy.OnCostMultiplier),
			WorkingDaysPerMonth: pick(KeyWorkingDays, m.policy.WorkingDaysPerMonth),
		}
		if params.Utilization > 1 {
			return models.Scenario{}, fmt.Errorf("%w: %s must be a fraction between 0 and 1", ErrInvalidAssumption, KeyUtilization)
		}
		scenario.Impact = HireImpact(params)
		scenario.Verdict = HireVerdict(scenario.Impact, params, m.policy)
		scenario.Title = fmt.Sprintf("Hire at %s salary", formatGBP(params.AnnualSalary))
		scenario.Assumptions = map[string]float64{
			KeyAnnualSalary:     params.AnnualSalary,
			KeyDayRate:          params.DayRate,
			KeyUtilization:      params.Utilization,
			KeyRampMonths:       params.RampMonths,
			KeyOnCostMultiplier: params.OnCostMultiplier,
			KeyWorkingDays:      params.WorkingDaysPerMonth,
			KeyMonthlyCost:      scenario.Impact.MonthlyCostImpact,
			KeyRevenuePotential: scenario.Impact.MonthlyRevenueImpact,
		}

	case models.ScenarioPriceIncrease:
		params := PriceIncreaseParams{
			MonthlyRevenue: pick(KeyMonthlyRevenue, snapshot.Revenue),
			Increase:       pick(KeyPriceIncrease, m.policy.DefaultPriceIncrease),
			Churn:          pick(KeyExpectedChurn, m.policy.DefaultChurn),
		}
		scenario.Impact = PriceIncreaseImpact(params)
		scenario.Verdict = PriceIncreaseVerdict(scenario.Impact, params)
		scenario.Title = fmt.Sprintf("Increase prices by %.0f%%", params.Increase*100)
		scenario.Assumptions = map[string]float64{
			KeyMonthlyRevenue: params.MonthlyRevenue,
			KeyPriceIncrease:  params.Increase,
			KeyExpectedChurn:  params.Churn,
		}

	case models.ScenarioCollectionImprovement:
		params := CollectionParams{
			Debtors:           pick(KeyDebtorTotal, snapshot.DebtorTotal),
			CurrentDebtorDays: pick(KeyCurrentDebtorDays, snapshot.DebtorDays),
			TargetDebtorDays:  pick(KeyTargetDebtorDays, m.policy.DefaultTargetDebtorDays),
		}
		scenario.Impact = CollectionImpact(params)
		scenario.Verdict = CollectionVerdict(scenario.Impact, params)
		scenario.Title = fmt.Sprintf("Reduce debtor days from %.0f to %.0f", params.CurrentDebtorDays, params.TargetDebtorDays)
		scenario.Assumptions = map[string]float64{
			KeyDebtorTotal:       params.Debtors,
			KeyCurrentDebtorDays: params.CurrentDebtorDays,
			KeyTargetDebtorDays:  params.TargetDebtorDays,
		}

	case models.ScenarioLostClient:
		params := LostClientParams{
			MonthlyRevenue: pick(KeyMonthlyRevenue, snapshot.Revenue),
			ClientShare:    pick(KeyClientShare, m.policy.DefaultLostClientShare),
			GrossMarginPct: pick(KeyGrossMarginPct, snapshot.GrossMarginPct),
		}
		trueCash := pick(KeyTrueCash, snapshot.TrueCash)
		scenario.Impact = LostClientImpact(params)
		scenario.Verdict = LostClientVerdict(scenario.Impact, trueCash, m.policy)
		scenario.Title = fmt.Sprintf("Lose the largest client (%.0f%% of revenue)", params.ClientShare*100)
		scenario.Assumptions = map[string]float64{
			KeyMonthlyRevenue: params.MonthlyRevenue,
			KeyClientShare:    params.ClientShare,
			KeyGrossMarginPct: params.GrossMarginPct,
			KeyTrueCash:       trueCash,
		}

	default:
		return models.Scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, t)
	}

	return scenario, nil
}

// RampFactor - доля полной выработки нового сотрудника в месяце month (с 1).
func RampFactor(month int, rampMonths float64) float64 {
	if rampMonths <= 0 || float64(month) >= rampMonths {
		return 1
	}
	return float64(month) / rampMonths
}

func HireImpact(p HireParams) models.ScenarioImpact {
	monthlyCost := p.AnnualSalary / 12 * p.OnCostMultiplier
	revenuePotential := p.DayRate * p.WorkingDaysPerMonth * p.Utilization

	var cumulative float64
	breakeven := 0
	for month := 1; month <= breakevenHorizon; month++ {
		cumulative += revenuePotential*RampFactor(month, p.RampMonths) - monthlyCost
		if breakeven == 0 && cumulative > 0 {
			breakeven = month
		}
	}

	return models.ScenarioImpact{
		MonthlyRevenueImpact: round2(revenuePotential),
		MonthlyCostImpact:    round2(monthlyCost),
		MonthlyProfitImpact:  round2(revenuePotential - monthlyCost),
		CashImpactMonth1:     round2(-monthlyCost),
		CashImpactMonth3:     round2(revenuePotential*RampFactor(3, p.RampMonths) - monthlyCost),
		BreakevenMonth:       breakeven,
		YearOneImpact:        round2(cumulative),
	}
}

func PriceIncreaseImpact(p PriceIncreaseParams) models.ScenarioImpact {
	gain := p.MonthlyRevenue * p.Increase
	loss := p.MonthlyRevenue * p.Churn
	net := gain - loss

	return models.ScenarioImpact{
		MonthlyRevenueImpact: round2(net),
		MonthlyCostImpact:    0,
		MonthlyProfitImpact:  round2(net),
		CashImpactMonth1:     round2(net),
		CashImpactMonth3:     round2(net * 3),
		BreakevenMonth:       0,
		YearOneImpact:        round2(net * 12),
	}
}

// CollectionImpact - разовое высвобождение денег без влияния на P&L.
func CollectionImpact(p CollectionParams) models.ScenarioImpact {
	var released float64
	if p.CurrentDebtorDays > 0 && p.TargetDebtorDays < p.CurrentDebtorDays {
		released = p.Debtors * (p.CurrentDebtorDays - p.TargetDebtorDays) / p.CurrentDebtorDays
	}

	return models.ScenarioImpact{
		CashImpactMonth1: round2(released),
		CashImpactMonth3: round2(released),
	}
}

func LostClientImpact(p LostClientParams) models.ScenarioImpact {
	lostRevenue := p.MonthlyRevenue * p.ClientShare
	avoidedCost := lostRevenue * (1 - p.GrossMarginPct/100)
	profit := -(lostRevenue - avoidedCost)

	return models.ScenarioImpact{
		MonthlyRevenueImpact: round2(-lostRevenue),
		MonthlyCostImpact:    round2(-avoidedCost),
		MonthlyProfitImpact:  round2(profit),
		CashImpactMonth1:     0,
		CashImpactMonth3:     round2(profit * 2),
		BreakevenMonth:       0,
		YearOneImpact:        round2(profit * 12),
	}
}

func HireVerdict(impact models.ScenarioImpact, p HireParams, policy ScenarioPolicy) models.Verdict {
	breakeven := impact.BreakevenMonth
	utilization := p.Utilization * 100

	switch {
	case breakeven > 0 && breakeven <= policy.RecommendedBreakeven && p.Utilization >= policy.RecommendedUtilization:
		return models.Verdict{
			Verdict:    models.VerdictRecommended,
			Summary:    fmt.Sprintf("The hire pays for itself by month %d at %.0f%% utilisation.", breakeven, utilization),
			Conditions: []string{"Line up billable work for the new starter from week one"},
			Risks:      []string{fmt.Sprintf("Utilisation below %.0f%% pushes breakeven back", policy.RecommendedUtilization*100)},
		}
	case breakeven > 0 && breakeven <= policy.ConditionalBreakeven:
		return models.Verdict{
			Verdict: models.VerdictYesIf,
			Summary: fmt.Sprintf("The hire breaks even in month %d, provided the work is there.", breakeven),
			Conditions: []string{
				fmt.Sprintf("Pipeline supports at least %.0f billable days a month", p.WorkingDaysPerMonth*p.Utilization),
				"Existing team is already at capacity",
			},
			Risks: []string{fmt.Sprintf("Breakeven is sensitive to utilisation: the plan assumes %.0f%%", utilization)},
		}
	default:
		alternative := "Use freelance or part-time capacity until the pipeline justifies a permanent hire"
		risk := fmt.Sprintf("Breakeven takes longer than %d months", policy.ConditionalBreakeven)
		if breakeven == 0 {
			risk = fmt.Sprintf("The hire does not break even within %d months", breakevenHorizon)
		}
		return models.Verdict{
			Verdict:     models.VerdictRisky,
			Summary:     "The hire takes too long to pay back on current assumptions.",
			Conditions:  []string{},
			Risks:       []string{risk},
			Alternative: &alternative,
		}
	}
}

func PriceIncreaseVerdict(impact models.ScenarioImpact, p PriceIncreaseParams) models.Verdict {
	if impact.MonthlyProfitImpact > 0 {
		return models.Verdict{
			Verdict: models.VerdictRecommended,
			Summary: fmt.Sprintf("A %.0f%% price rise adds %s a month even after %.0f%% churn.",
				p.Increase*100, formatGBP(impact.MonthlyProfitImpact), p.Churn*100),
			Conditions: []string{
				"Stagger the rollout across the client base",
				"Test the new prices with a subset of clients first",
			},
			Risks: []string{
				"Churn could exceed the estimate",
				"Losing a large client concentrates risk in fewer relationships",
			},
		}
	}

	return models.Verdict{
		Verdict:    models.VerdictNotRecommended,
		Summary:    fmt.Sprintf("Expected churn of %.0f%% wipes out the %.0f%% price rise.", p.Churn*100, p.Increase*100),
		Conditions: []string{},
		Risks:      []string{"Net monthly impact is not positive"},
	}
}

func CollectionVerdict(impact models.ScenarioImpact, p CollectionParams) models.Verdict {
	return models.Verdict{
		Verdict: models.VerdictRecommended,
		Summary: fmt.Sprintf("Bringing debtor days down to %.0f releases %s of cash as a quick, low-risk win.",
			p.TargetDebtorDays, formatGBP(impact.CashImpactMonth1)),
		Conditions: []string{
			"Send statements for all overdue invoices",
			"Call the top debtors personally",
		},
		Risks: []string{
			"Some clients may push back on tighter terms",
			"An early-payment discount may be needed",
		},
	}
}

func LostClientVerdict(impact models.ScenarioImpact, trueCash float64, policy ScenarioPolicy) models.Verdict {
	monthlyHit := -impact.MonthlyProfitImpact
	if monthlyHit <= 0 || trueCash >= monthlyHit*policy.LostClientCoverMonths {
		return models.Verdict{
			Verdict: models.VerdictYesIf,
			Summary: fmt.Sprintf("The business could absorb losing its largest client (%s a month of profit) for at least %.0f months.",
				formatGBP(monthlyHit), policy.LostClientCoverMonths),
			Conditions: []string{
				"Keep variable costs flexible enough to scale down",
				"Build the new-business pipeline to replace the lost revenue",
			},
			Risks: []string{"Replacement revenue may take longer than expected to win"},
		}
	}

	alternative := "Reduce dependency on the largest client by diversifying the client base"
	return models.Verdict{
		Verdict: models.VerdictRisky,
		Summary: fmt.Sprintf("Losing the largest client would cost %s a month of profit and true cash covers less than %.0f months of it.",
			formatGBP(monthlyHit), policy.LostClientCoverMonths),
		Conditions:  []string{},
		Risks:       []string{"Customer concentration threatens cash runway"},
		Alternative: &alternative,
	}
}

func isHighConcentration(value string) bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	return normalized == ConcentrationOver50 || normalized == "over_50"
}

func containsScenario(types []models.ScenarioType, t models.ScenarioType) bool {
	for _, existing := range types {
		if existing == t {
			return true
		}
	}
	return false
}
