package analytics

import (
	"sort"
	"time"

	"example.com/practice-advisor/backend/internal/models"
)

const (
	MinSeasonalityPoints = 12
	seasonalRankSize     = 3
	detectedDeltaPct     = 15.0
	patternDeltaPct      = 20.0

	PatternQ4Spike   = "Q4 spike"
	PatternQ2Peak    = "Q2 peak"
	PatternSeasonal  = "Seasonal variation"
	highSeasonPoints = 24
	midSeasonPoints  = 18
)

type MonthValue struct {
	Month time.Month
	Value float64
}

type monthMean struct {
	month time.Month
	mean  float64
}

// DetectSeasonality ищет годовой паттерн по средним значениям календарных месяцев.
func DetectSeasonality(values []MonthValue) Outcome[models.SeasonalityProfile] {
	valid := make([]MonthValue, 0, len(values))
	for _, v := range values {
		if v.Month >= time.January && v.Month <= time.December {
			valid = append(valid, v)
		}
	}

	profile := models.SeasonalityProfile{
		Detected:     false,
		Pattern:      nil,
		PeakMonths:   []time.Month{},
		TroughMonths: []time.Month{},
		Confidence:   models.ConfidenceLow,
		DataPoints:   len(valid),
	}

	if len(valid) < MinSeasonalityPoints {
		return insufficient(profile, len(valid), MinSeasonalityPoints)
	}

	var sums [12]float64
	var counts [12]int
	for _, v := range valid {
		sums[v.Month-1] += v.Value
		counts[v.Month-1]++
	}

	means := make([]monthMean, 0, 12)
	for i := 0; i < 12; i++ {
		if counts[i] == 0 {
			continue
		}
		means = append(means, monthMean{month: time.Month(i + 1), mean: sums[i] / float64(counts[i])})
	}

	var total float64
	for _, m := range means {
		total += m.mean
	}
	overall := total / float64(len(means))

	sort.SliceStable(means, func(i, j int) bool {
		return means[i].mean > means[j].mean
	})

	rank := seasonalRankSize
	if len(means) < rank {
		rank = len(means)
	}
	for i := 0; i < rank; i++ {
		profile.PeakMonths = append(profile.PeakMonths, means[i].month)
	}
	for i := len(means) - 1; i >= len(means)-rank; i-- {
		profile.TroughMonths = append(profile.TroughMonths, means[i].month)
	}

	var delta float64
	if overall != 0 {
		delta = (means[0].mean - means[len(means)-1].mean) / overall * 100
	}

	profile.PeakTroughDeltaPct = round2(delta)
	profile.Detected = delta > detectedDeltaPct
	profile.Pattern = SeasonalPattern(profile.PeakMonths, delta)
	profile.Confidence = SeasonalityConfidence(len(valid))

	return computed(profile)
}

// SeasonalPattern возвращает метку паттерна или nil, если разброс недостаточен.
func SeasonalPattern(peaks []time.Month, deltaPct float64) *string {
	if deltaPct <= patternDeltaPct {
		return nil
	}

	label := PatternSeasonal
	switch {
	case containsMonth(peaks, time.November, time.December, time.January):
		label = PatternQ4Spike
	case containsMonth(peaks, time.March, time.April, time.May):
		label = PatternQ2Peak
	}
	return &label
}

func SeasonalityConfidence(points int) models.Confidence {
	switch {
	case points >= highSeasonPoints:
		return models.ConfidenceHigh
	case points >= midSeasonPoints:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func containsMonth(months []time.Month, candidates ...time.Month) bool {
	for _, m := range months {
		for _, c := range candidates {
			if m == c {
				return true
			}
		}
	}
	return false
}
