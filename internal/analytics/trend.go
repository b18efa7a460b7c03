package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"example.com/practice-advisor/backend/internal/models"
)

const (
	TrendWindow     = 6
	MinTrendPoints  = 3
	lowVolatility   = 10.0
	highVolatility  = 25.0
	growthTargetPct = 10.0
)

type SeriesPoint struct {
	Date  time.Time
	Value float64
}

type directionRule struct {
	threshold float64
	absolute  bool
	up        models.TrendDirection
	down      models.TrendDirection
}

// Маржа сравнивается в процентных пунктах, дни дебиторки в днях, остальные метрики в %.
var directionRules = map[models.MetricType]directionRule{
	models.MetricRevenue:    {threshold: 2, up: models.DirectionGrowing, down: models.DirectionDeclining},
	models.MetricMargin:     {threshold: 0.5, absolute: true, up: models.DirectionImproving, down: models.DirectionEroding},
	models.MetricCash:       {threshold: 5, up: models.DirectionBuilding, down: models.DirectionDepleting},
	models.MetricDebtorDays: {threshold: 1, absolute: true, up: models.DirectionWorsening, down: models.DirectionImproving},
	models.MetricEfficiency: {threshold: 2, up: models.DirectionImproving, down: models.DirectionDeclining},
}

// AverageChange - средний помесячный сдвиг в единицах порога метрики.
func AverageChange(metric models.MetricType, values []float64) float64 {
	if directionRules[metric].absolute {
		return AverageAbsoluteChange(values)
	}
	return AveragePercentChange(values)
}

// ClassifyTrend классифицирует направление и волатильность ряда одной метрики.
func ClassifyTrend(metric models.MetricType, series []SeriesPoint) Outcome[models.TrendResult] {
	ordered := make([]SeriesPoint, len(series))
	copy(ordered, series)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	result := models.TrendResult{
		MetricType: metric,
		DataPoints: len(ordered),
	}
	if len(ordered) > 0 {
		result.PeriodEnd = ordered[len(ordered)-1].Date
	}

	if len(ordered) < MinTrendPoints {
		result.Status = models.StatusInsufficientData
		result.Direction = models.DirectionStable
		result.AverageChange = 0
		result.Volatility = models.VolatilityMedium
		result.Narrative = fmt.Sprintf("Insufficient data: %d of %d monthly snapshots needed to assess the %s trend.",
			len(ordered), MinTrendPoints, metricLabel(metric))
		return insufficient(result, len(ordered), MinTrendPoints)
	}

	values := windowValues(ordered)
	avg := AverageChange(metric, values)
	cv := CoefficientOfVariation(values)

	result.Status = models.StatusComputed
	result.AverageChange = round2(avg)
	result.Direction = ClassifyDirection(metric, avg)
	result.Volatility = ClassifyVolatility(cv)
	result.Narrative = trendNarrative(metric, result.Direction, avg, values[len(values)-1], result.Volatility)

	return computed(result)
}

func windowValues(ordered []SeriesPoint) []float64 {
	start := 0
	if len(ordered) > TrendWindow {
		start = len(ordered) - TrendWindow
	}

	values := make([]float64, 0, len(ordered)-start)
	for _, point := range ordered[start:] {
		values = append(values, point.Value)
	}
	return values
}

// AveragePercentChange - среднее помесячное изменение в %, шаги с предыдущим значением <= 0 пропускаются.
func AveragePercentChange(values []float64) float64 {
	var sum float64
	var steps int

	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			continue
		}
		sum += (values[i] - prev) / prev * 100
		steps++
	}

	if steps == 0 {
		return 0
	}
	return sum / float64(steps)
}

// AverageAbsoluteChange - среднее помесячное изменение в исходных единицах ряда.
func AverageAbsoluteChange(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return (values[len(values)-1] - values[0]) / float64(len(values)-1)
}

// CoefficientOfVariation - стандартное отклонение генеральной совокупности к модулю среднего, в %.
func CoefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(values)))

	return std / math.Abs(mean) * 100
}

func ClassifyVolatility(cv float64) models.Volatility {
	switch {
	case cv < lowVolatility:
		return models.VolatilityLow
	case cv < highVolatility:
		return models.VolatilityMedium
	default:
		return models.VolatilityHigh
	}
}

func ClassifyDirection(metric models.MetricType, avgChange float64) models.TrendDirection {
	rule, ok := directionRules[metric]
	if !ok {
		return models.DirectionStable
	}

	switch {
	case avgChange > rule.threshold:
		return rule.up
	case avgChange < -rule.threshold:
		return rule.down
	default:
		return models.DirectionStable
	}
}

func metricLabel(metric models.MetricType) string {
	switch metric {
	case models.MetricRevenue:
		return "revenue"
	case models.MetricMargin:
		return "operating margin"
	case models.MetricCash:
		return "cash"
	case models.MetricDebtorDays:
		return "debtor days"
	case models.MetricEfficiency:
		return "revenue per head"
	default:
		return string(metric)
	}
}

// monthsToFactor - сколько месяцев при темпе rate% нужно, чтобы значение умножилось на factor.
func monthsToFactor(ratePct, factor float64) int {
	growth := 1 + ratePct/100
	if growth <= 0 || growth == 1 {
		return 0
	}
	months := math.Log(factor) / math.Log(growth)
	if months <= 0 || math.IsInf(months, 0) || math.IsNaN(months) {
		return 0
	}
	return int(math.Ceil(months))
}

func trendNarrative(metric models.MetricType, direction models.TrendDirection, avg, latest float64, volatility models.Volatility) string {
	var text string
	label := metricLabel(metric)

	switch metric {
	case models.MetricRevenue:
		switch direction {
		case models.DirectionGrowing:
			target := latest * (1 + growthTargetPct/100)
			text = fmt.Sprintf("Revenue is growing by %.1f%% a month on average. At this pace monthly revenue reaches %s (+%.0f%%) in about %d months.",
				avg, formatGBP(target), growthTargetPct, monthsToFactor(avg, 1+growthTargetPct/100))
		case models.DirectionDeclining:
			lost := latest * (1 - math.Pow(1+avg/100, 6))
			text = fmt.Sprintf("Revenue is declining by %.1f%% a month on average. If that continues, monthly revenue will be around %s lower within six months.",
				math.Abs(avg), formatGBP(lost))
		default:
			text = fmt.Sprintf("Revenue is broadly stable (%+.1f%% average monthly change) at around %s a month.", avg, formatGBP(latest))
		}
	case models.MetricMargin:
		switch direction {
		case models.DirectionImproving:
			text = fmt.Sprintf("Operating margin is improving by %.1f points a month and currently stands at %.1f%%.", avg, latest)
		case models.DirectionEroding:
			text = fmt.Sprintf("Operating margin is eroding by %.1f points a month and currently stands at %.1f%%. Review pricing and direct costs.", math.Abs(avg), latest)
		default:
			text = fmt.Sprintf("Operating margin is holding steady at around %.1f%%.", latest)
		}
	case models.MetricCash:
		switch direction {
		case models.DirectionBuilding:
			text = fmt.Sprintf("Cash is building by %.1f%% a month and the balance is now %s.", avg, formatGBP(latest))
		case models.DirectionDepleting:
			halving := monthsToFactor(avg, 0.5)
			text = fmt.Sprintf("Cash is depleting by %.1f%% a month from a balance of %s. At this rate the balance halves in about %d months, shortening the runway.",
				math.Abs(avg), formatGBP(latest), halving)
		default:
			text = fmt.Sprintf("Cash is stable at around %s.", formatGBP(latest))
		}
	case models.MetricDebtorDays:
		switch direction {
		case models.DirectionImproving:
			text = fmt.Sprintf("Debtor days are improving (%.1f days a month) and now stand at %.0f days, releasing cash sooner.", avg, latest)
		case models.DirectionWorsening:
			text = fmt.Sprintf("Debtor days are worsening (+%.1f days a month) and now stand at %.0f days. Cash is taking longer to come in.", avg, latest)
		default:
			text = fmt.Sprintf("Debtor days are stable at around %.0f days.", latest)
		}
	case models.MetricEfficiency:
		switch direction {
		case models.DirectionImproving:
			text = fmt.Sprintf("Revenue per head is improving by %.1f%% a month to %s.", avg, formatGBP(latest))
		case models.DirectionDeclining:
			text = fmt.Sprintf("Revenue per head is declining by %.1f%% a month to %s. Check utilisation before adding headcount.", math.Abs(avg), formatGBP(latest))
		default:
			text = fmt.Sprintf("Revenue per head is stable at around %s.", formatGBP(latest))
		}
	default:
		text = fmt.Sprintf("The %s trend is %s (%+.1f%% average monthly change).", label, direction, avg)
	}

	if volatility == models.VolatilityHigh {
		text += fmt.Sprintf(" Month-to-month %s is highly volatile, so read the trend with caution.", label)
	}

	return text
}
