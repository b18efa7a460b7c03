package analytics

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"example.com/practice-advisor/backend/internal/models"
)

const (
	ForecastWeeks = 13
	horizonDays   = ForecastWeeks * 7
	dateFormat    = "2 Jan 2006"
)

type ForecastInput struct {
	Snapshot    models.PeriodSnapshot
	History     []models.PeriodSnapshot
	Commitments []models.Commitment
	// RevenueVolatility берется из тренда выручки за тот же период.
	RevenueVolatility models.Volatility
}

type ForecastEngine struct {
	policy ForecastPolicy
	logger *slog.Logger
}

type commitmentEvent struct {
	date        time.Time
	amount      float64
	description string
}

// NewForecastEngine создает движок 13-недельного прогноза денежных средств.
func NewForecastEngine(policy ForecastPolicy, logger *slog.Logger) *ForecastEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastEngine{policy: policy, logger: logger}
}

// Forecast строит прогноз остатка на 13 недель вперед от конца периода.
func (e *ForecastEngine) Forecast(in ForecastInput) models.CashForecast {
	snapshot := in.Snapshot
	avgRevenue, avgOverheads := averageRevenueAndOverheads(snapshot, in.History)

	volatility := in.RevenueVolatility
	if volatility == "" {
		volatility = models.VolatilityMedium
	}

	lag := CollectionLagWeeks(snapshot.DebtorDays)
	events, included, skipped := e.commitmentEvents(snapshot, in.Commitments)

	weeklyOverhead := avgOverheads / e.policy.WeeksPerMonth
	weeks := make([]models.WeeklyForecastPoint, 0, ForecastWeeks)
	opening := snapshot.BankBalance

	for w := 1; w <= ForecastWeeks; w++ {
		weekEnding := snapshot.PeriodEnd.AddDate(0, 0, 7*w)
		weekStart := weekEnding.AddDate(0, 0, -7)

		factor := e.policy.SeasonalFactors[weekEnding.Month()-1]
		weeklyRevenue := avgRevenue * factor / e.policy.WeeksPerMonth

		rate := e.policy.LateCollectionRate
		if w <= lag {
			rate = e.policy.EarlyCollectionRate
		}
		receipts := round2(weeklyRevenue * rate)

		payments := weeklyOverhead
		keyEvents := make([]string, 0)
		for _, ev := range events {
			if ev.date.After(weekStart) && !ev.date.After(weekEnding) {
				payments += ev.amount
				keyEvents = append(keyEvents, fmt.Sprintf("%s (%s)", ev.description, formatGBP(ev.amount)))
			}
		}
		payments = round2(payments)

		closing := round2(opening + receipts - payments)

		weeks = append(weeks, models.WeeklyForecastPoint{
			Week:             w,
			WeekEnding:       weekEnding,
			OpeningBalance:   opening,
			ExpectedReceipts: receipts,
			ExpectedPayments: payments,
			ClosingBalance:   closing,
			Confidence:       WeekConfidence(w, volatility, e.policy),
			KeyEvents:        keyEvents,
		})

		opening = closing
	}

	forecast := models.CashForecast{
		EngagementID:    snapshot.EngagementID,
		PeriodEnd:       snapshot.PeriodEnd,
		OpeningCash:     snapshot.BankBalance,
		OpeningTrueCash: snapshot.TrueCash,
		Weeks:           weeks,
		CriticalDates:   e.criticalDates(weeks, snapshot.TrueCash),
	}

	lowest := weeks[0]
	for _, week := range weeks[1:] {
		if week.ClosingBalance < lowest.ClosingBalance {
			lowest = week
		}
	}
	forecast.LowestBalance = lowest.ClosingBalance
	forecast.LowestBalanceWeek = lowest.Week
	forecast.LowestBalanceDate = lowest.WeekEnding

	// Положительное значение означает чистый отток денег за неделю.
	weeklyRevenue := avgRevenue / e.policy.WeeksPerMonth
	forecast.AvgWeeklyBurn = round2(weeklyOverhead - weeklyRevenue)
	forecast.CashRunwayWeeks = RunwayWeeks(snapshot.TrueCash, forecast.AvgWeeklyBurn)

	forecast.Sentiment = ClassifySentiment(forecast.CashRunwayWeeks, forecast.LowestBalance, snapshot.TrueCash, e.policy)
	forecast.Narrative = e.narrative(forecast)

	forecast.Assumptions = models.ForecastAssumptions{
		AvgMonthlyRevenue:   round2(avgRevenue),
		AvgMonthlyOverheads: round2(avgOverheads),
		HistoryMonths:       len(in.History),
		WeeksPerMonth:       e.policy.WeeksPerMonth,
		DebtorDays:          snapshot.DebtorDays,
		CollectionLagWeeks:  lag,
		EarlyCollectionRate: e.policy.EarlyCollectionRate,
		LateCollectionRate:  e.policy.LateCollectionRate,
		RevenueVolatility:   volatility,
		SeasonalFactors:     e.policy.SeasonalFactors,
		CommitmentsIncluded: included,
		CommitmentsSkipped:  skipped,
	}

	return forecast
}

func averageRevenueAndOverheads(snapshot models.PeriodSnapshot, history []models.PeriodSnapshot) (float64, float64) {
	if len(history) == 0 {
		return snapshot.Revenue, snapshot.Overheads
	}

	var revenue, overheads float64
	for _, s := range history {
		revenue += s.Revenue
		overheads += s.Overheads
	}
	n := float64(len(history))
	return revenue / n, overheads / n
}

// CollectionLagWeeks - сколько полных недель проходит между выставлением счета и оплатой.
func CollectionLagWeeks(debtorDays float64) int {
	if debtorDays <= 0 {
		return 0
	}
	return int(math.Floor(debtorDays / 7))
}

// WeekConfidence - уверенность в прогнозе недели по дальности и волатильности выручки.
func WeekConfidence(week int, volatility models.Volatility, policy ForecastPolicy) models.Confidence {
	switch {
	case week <= policy.HighConfidenceWeeks && volatility == models.VolatilityLow:
		return models.ConfidenceHigh
	case week <= policy.MediumConfidenceWeeks:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// RunwayWeeks возвращает nil, если расход не превышает выручку и запас не ограничен.
func RunwayWeeks(trueCash, avgWeeklyBurn float64) *int {
	if avgWeeklyBurn <= 0 {
		return nil
	}

	weeks := 0
	if trueCash > 0 {
		weeks = int(math.Floor(trueCash / avgWeeklyBurn))
	}
	return &weeks
}

func ClassifySentiment(runway *int, lowest, openingTrueCash float64, policy ForecastPolicy) models.ForecastSentiment {
	switch {
	case runway != nil && *runway < policy.CriticalRunwayWeeks:
		return models.SentimentCritical
	case runway != nil && *runway < policy.ConcerningRunwayWeeks:
		return models.SentimentConcerning
	case lowest < policy.TightTrueCashRatio*openingTrueCash:
		return models.SentimentTight
	default:
		return models.SentimentComfortable
	}
}

func (e *ForecastEngine) commitmentEvents(snapshot models.PeriodSnapshot, commitments []models.Commitment) ([]commitmentEvent, int, int) {
	horizonEnd := snapshot.PeriodEnd.AddDate(0, 0, horizonDays)
	events := make([]commitmentEvent, 0)
	included, skipped := 0, 0

	for _, c := range commitments {
		if !c.IncludeInForecast {
			continue
		}
		if c.NextDueDate == nil {
			skipped++
			e.logger.Warn("missing_commitment_data: commitment excluded from forecast",
				slog.String("engagement_id", snapshot.EngagementID.String()),
				slog.String("commitment_id", c.ID.String()),
				slog.String("description", c.Description),
			)
			continue
		}

		included++
		for _, date := range occurrences(c, horizonEnd) {
			events = append(events, commitmentEvent{date: date, amount: c.Amount, description: c.Description})
		}
	}

	return events, included, skipped
}

// occurrences разворачивает повторяющееся обязательство в даты до конца горизонта.
func occurrences(c models.Commitment, horizonEnd time.Time) []time.Time {
	first := *c.NextDueDate
	limit := horizonEnd
	if c.EndDate != nil && c.EndDate.Before(limit) {
		limit = *c.EndDate
	}

	dates := make([]time.Time, 0, 1)
	for i := 0; ; i++ {
		var date time.Time
		switch c.Frequency {
		case models.FrequencyWeekly:
			date = first.AddDate(0, 0, 7*i)
		case models.FrequencyMonthly:
			date = addMonthsClamped(first, i)
		case models.FrequencyQuarterly:
			date = addMonthsClamped(first, 3*i)
		case models.FrequencyAnnual:
			date = addMonthsClamped(first, 12*i)
		default:
			if !first.After(limit) {
				dates = append(dates, first)
			}
			return dates
		}

		if date.After(limit) {
			return dates
		}
		dates = append(dates, date)
	}
}

// addMonthsClamped сдвигает дату на n месяцев, прижимая день к концу месяца (31 янв -> 28/29 фев).
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := target.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func (e *ForecastEngine) criticalDates(weeks []models.WeeklyForecastPoint, openingTrueCash float64) []models.CriticalDate {
	flags := make([]models.CriticalDate, 0)

	for _, week := range weeks {
		if week.ExpectedPayments <= e.policy.CriticalPaymentsRatio*week.ExpectedReceipts {
			continue
		}
		if week.ClosingBalance >= e.policy.CriticalTrueCashRatio*openingTrueCash {
			continue
		}

		shortfall := round2(week.ExpectedPayments - week.ExpectedReceipts)
		collect := roundWhole(shortfall * e.policy.CollectionBufferRatio)

		trigger := "Regular overheads"
		if len(week.KeyEvents) > 0 {
			trigger = strings.Join(week.KeyEvents, "; ")
		}

		flags = append(flags, models.CriticalDate{
			Date:                  week.WeekEnding,
			Week:                  week.Week,
			TriggeringEvent:       trigger,
			Impact:                shortfall,
			ResultingBalance:      week.ClosingBalance,
			RecommendedCollection: collect,
			RecommendedAction: fmt.Sprintf("Accelerate collections by at least %s before %s",
				formatGBP(collect), week.WeekEnding.Format(dateFormat)),
		})
	}

	return flags
}

func (e *ForecastEngine) narrative(f models.CashForecast) string {
	lowest := fmt.Sprintf("%s in week %d (w/e %s)", formatGBP(f.LowestBalance), f.LowestBalanceWeek, f.LowestBalanceDate.Format(dateFormat))

	var b strings.Builder
	switch f.Sentiment {
	case models.SentimentComfortable:
		fmt.Fprintf(&b, "Cash looks comfortable over the next %d weeks; the lowest projected balance is %s.", ForecastWeeks, lowest)
	case models.SentimentTight:
		fmt.Fprintf(&b, "Cash is tight: the balance is projected to dip to %s, below %.0f%% of today's true cash of %s.",
			lowest, e.policy.TightTrueCashRatio*100, formatGBP(f.OpeningTrueCash))
	case models.SentimentConcerning:
		fmt.Fprintf(&b, "Cash is a concern: the balance is projected to fall to %s and true cash covers only %d weeks of the current burn.",
			lowest, *f.CashRunwayWeeks)
	case models.SentimentCritical:
		fmt.Fprintf(&b, "Cash is critical: the balance is projected to fall to %s and true cash covers only %d weeks of the current burn. Act now.",
			lowest, *f.CashRunwayWeeks)
	}

	if n := len(f.CriticalDates); n > 0 {
		first := f.CriticalDates[0]
		fmt.Fprintf(&b, " %d critical date(s) flagged, the first on %s: %s.", n, first.Date.Format(dateFormat), first.RecommendedAction)
	}

	return b.String()
}
