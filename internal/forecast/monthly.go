package forecast

import (
	"math"

	"github.com/Veraticus/spence/internal/model"
)

// AggregateMonth sums daily predictions into a monthly prediction. A total
// that is zero or non-finite is replaced by the historical spending-day
// average scaled to the number of days.
func AggregateMonth(preds []model.DailyPrediction, patterns *Patterns, cfg Config) model.MonthlyPrediction {
	month := model.MonthlyPrediction{
		TimeDistribution: make(map[model.TimePeriod]float64),
	}
	if len(preds) > 0 {
		month.StartDate = preds[0].Date
		month.EndDate = preds[len(preds)-1].Date
		month.MonthName = month.StartDate.Format("January 2006")
	}

	total := 0.0
	for _, p := range preds {
		if !math.IsNaN(p.PredictedAmount) && !math.IsInf(p.PredictedAmount, 0) {
			total += p.PredictedAmount
		}
		if p.IsLikelyZeroSpending {
			month.ExpectedZeroSpendingDays++
		}
		for period, v := range p.TimeDistribution {
			month.TimeDistribution[period] += v
		}
	}
	if math.IsNaN(total) || math.IsInf(total, 0) || total == 0 {
		total = patterns.Overall.AverageNonZero * float64(len(preds))
		month.UsedFallback = true
	}
	month.Total = total

	month.CategoryBreakdown = make(map[string]float64)
	for name, cp := range CategoryPredictions(total, patterns, cfg) {
		month.CategoryBreakdown[name] = cp.PredictedAmount
	}
	return month
}

// CategoryPredictions distributes total across categories in proportion to
// their share of historical spend. Allocations under a cent are dropped.
func CategoryPredictions(total float64, patterns *Patterns, cfg Config) map[string]model.CategoryPrediction {
	out := make(map[string]model.CategoryPrediction)
	grand := 0.0
	for _, cp := range patterns.Categories {
		grand += cp.Total
	}
	if grand <= 0 || total <= 0 {
		return out
	}

	for name, cp := range patterns.Categories {
		share := cp.Total / grand
		amount := total * share
		if amount < 0.01 {
			continue
		}
		out[name] = model.CategoryPrediction{
			PredictedAmount: amount,
			HistoricalShare: share,
			Confidence:      categoryConfidence(cp, -1, cfg.RecentWindow),
			TopItems:        cp.TopItems(cfg.LikelyItems),
		}
	}
	return out
}

// ConfidenceMetrics scores the forecast as a whole.
func ConfidenceMetrics(preds []model.DailyPrediction, patterns *Patterns, s Series) model.ConfidenceMetrics {
	var m model.ConfidenceMetrics
	if len(preds) > 0 {
		confidence, strength := 0.0, 0.0
		for _, p := range preds {
			confidence += p.Metadata.ConfidenceScore
			strength += p.DayPattern.PatternStrength
		}
		m.AverageDailyConfidence = confidence / float64(len(preds))
		m.AveragePatternStrength = strength / float64(len(preds))
	}
	m.DataQuality = DataQuality(patterns, s)
	m.Overall = clamp(0.4*m.AverageDailyConfidence+0.3*m.AveragePatternStrength+0.3*m.DataQuality, 0, 1)
	if math.IsNaN(m.Overall) {
		m.Overall = 0.5
	}
	return m
}

// DataQuality combines recent observation coverage, average weekday pattern
// strength, and count-weighted category frequency into [0, 1].
func DataQuality(patterns *Patterns, s Series) float64 {
	const coverageWindow = 30

	recent := s.Recent(coverageWindow)
	observed := 0
	for _, d := range recent {
		if d.Observed {
			observed++
		}
	}
	coverage := ratio(observed, len(recent))

	strength := 0.0
	for _, w := range patterns.Weekdays {
		strength += w.PatternStrength
	}
	strength /= float64(len(patterns.Weekdays))

	weighted, counts := 0.0, 0.0
	for _, cp := range patterns.Categories {
		freq := ratio(cp.ActiveDays(), s.Len())
		weighted += float64(cp.Count) * freq
		counts += float64(cp.Count)
	}
	categoryFrequency := safeDiv(weighted, counts)

	quality := 0.4*coverage + 0.3*strength + 0.3*categoryFrequency
	if math.IsNaN(quality) {
		return 0
	}
	return clamp(quality, 0, 1)
}
