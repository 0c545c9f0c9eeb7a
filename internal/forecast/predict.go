package forecast

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/Veraticus/spence/internal/model"
)

// generator turns model forecasts and learned patterns into daily predictions.
type generator struct {
	rng      *rand.Rand
	patterns *Patterns
	logger   *slog.Logger
	cfg      Config
}

// predictDays produces one prediction per day starting at start. forecasts
// and intervals are indexed by step, so step i maps to start+i days.
func (g *generator) predictDays(start time.Time, forecasts []float64, intervals []model.Interval) []model.DailyPrediction {
	preds := make([]model.DailyPrediction, len(forecasts))
	for i := range forecasts {
		date := start.AddDate(0, 0, i)
		preds[i] = g.predictDay(date, forecasts[i], intervals[i])
	}
	return preds
}

func (g *generator) predictDay(date time.Time, forecast float64, interval model.Interval) model.DailyPrediction {
	weekday := model.WeekdayIndex(date)
	pattern := g.patterns.Weekdays[weekday]
	overall := g.patterns.Overall

	snapshot := model.DayPattern{
		Weekday:          weekday,
		Frequency:        pattern.Frequency,
		Average:          pattern.Average,
		RecentFrequency:  pattern.RecentFrequency,
		PatternStrength:  pattern.PatternStrength,
		TypicalRange:     pattern.TypicalRange,
		IsHighValueDay:   pattern.IsHighValueDay,
		RelativeToMedian: safeDiv(pattern.Average, overall.MedianDaily),
		RelativeToMax:    safeDiv(pattern.Average, overall.MaxDaily),
	}
	snapshot.IsTypicallyLowSpending = pattern.Average <= overall.TypicalLow ||
		snapshot.RelativeToMedian < 0.4 ||
		snapshot.RelativeToMax < 0.2
	snapshot.ZeroProbability = g.zeroProbability(date, pattern, snapshot.IsTypicallyLowSpending)

	isZero := g.rng.Float64() < snapshot.ZeroProbability

	amount := 0.0
	switch {
	case isZero:
	case pattern.IsHighValueDay:
		amount = g.highValueAmount(pattern)
	default:
		amount = g.regularAmount(pattern, forecast)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		amount = 0
	}

	pred := model.DailyPrediction{
		Date:                 date,
		PredictedAmount:      amount,
		ConfidenceInterval:   interval,
		IsLikelyZeroSpending: isZero,
		DayPattern:           snapshot,
		CategoryBreakdown:    g.predictCategories(amount, weekday),
		Metadata: model.PredictionMetadata{
			LikelyCategories: g.likelyCategories(weekday),
			IsWeekend:        model.IsWeekend(date),
			WeekOfMonth:      model.WeekOfMonth(date),
			ModelForecast:    forecast,
		},
	}
	if !isZero {
		pred.Metadata.ExpectedTransactions = int(math.Round(pattern.AverageTransactions))
	}
	pred.TimeDistribution = g.timeDistribution(amount, pred.CategoryBreakdown)
	pred.Metadata.ConfidenceScore = g.confidenceScore(pattern, weekday, pred.Metadata.LikelyCategories)
	return pred
}

// zeroProbability is the chance that date sees no spending at all.
func (g *generator) zeroProbability(date time.Time, pattern model.WeekdayPattern, typicallyLow bool) float64 {
	if !typicallyLow {
		return g.cfg.BaselineZeroProbability
	}
	prob := 0.3*g.patterns.ZeroSpending.ZeroRatio + 0.7*(1-pattern.RecentFrequency)
	if model.IsWeekend(date) {
		prob *= g.cfg.WeekendZeroFactor
	}
	if week := model.WeekOfMonth(date); week == 2 || week == 3 {
		prob *= g.cfg.MidMonthZeroFactor
	}
	return clamp(prob, 0, g.cfg.MaxZeroProbability)
}

func (g *generator) highValueAmount(pattern model.WeekdayPattern) float64 {
	overall := g.patterns.Overall
	base := math.Max(pattern.TypicalRange.High, overall.TypicalHigh)
	factor := 0.85 + 0.15*clamp(safeDiv(overall.RecentAverage, overall.MedianDaily), 0, 1)
	return base * factor * g.jitter()
}

func (g *generator) regularAmount(pattern model.WeekdayPattern, forecast float64) float64 {
	overall := g.patterns.Overall
	strength := pattern.PatternStrength

	var amount float64
	if strength > 0.4 {
		weight := math.Min(strength+0.1, 0.7)
		amount = weight*pattern.Average + (1-weight)*forecast
	} else {
		amount = forecast * (0.85 + 0.3*strength)
	}

	if strength > 0.3 {
		lo := math.Max(pattern.TypicalRange.Low*0.8, overall.TypicalLow*0.9)
		hi := math.Min(pattern.TypicalRange.High*1.2, overall.TypicalHigh*1.1)
		if lo <= hi {
			amount = clamp(amount, lo, hi)
		}
	}
	return amount
}

// jitter is a uniform multiplicative perturbation around 1.
func (g *generator) jitter() float64 {
	return 1 - g.cfg.Jitter + 2*g.cfg.Jitter*g.rng.Float64()
}

// predictCategories splits amount across categories by blending weekday and
// overall historical shares.
func (g *generator) predictCategories(amount float64, weekday int) map[string]model.CategoryShare {
	breakdown := make(map[string]model.CategoryShare)
	if amount <= 0 || len(g.patterns.Categories) == 0 {
		return breakdown
	}

	overallSum, weekdaySum := 0.0, 0.0
	for _, cp := range g.patterns.Categories {
		overallSum += cp.Total
		weekdaySum += cp.WeekdayTotal(weekday)
	}
	if overallSum <= 0 {
		return breakdown
	}

	for name, cp := range g.patterns.Categories {
		share := cp.Total / overallSum
		if weekdaySum > 0 {
			share = 0.7*(cp.WeekdayTotal(weekday)/weekdaySum) + 0.3*share
		}
		value := amount * share
		if value < 0.01 {
			continue
		}
		breakdown[name] = model.CategoryShare{
			PredictedAmount:  value,
			Share:            share,
			TimeDistribution: cp.TimeShares(),
			LikelyItems:      cp.TopItems(g.cfg.LikelyItems),
		}
	}
	return breakdown
}

// timeDistribution splits amount across periods using each category's
// historical time-of-day mix, or the overall mix for categories without one.
func (g *generator) timeDistribution(amount float64, breakdown map[string]model.CategoryShare) map[model.TimePeriod]float64 {
	dist := make(map[model.TimePeriod]float64)
	if amount <= 0 {
		return dist
	}

	allocated := 0.0
	for _, share := range breakdown {
		shares := share.TimeDistribution
		if len(shares) == 0 {
			shares = g.patterns.TimeDistribution
		}
		for period, frac := range shares {
			dist[period] += share.PredictedAmount * frac
		}
		if len(shares) > 0 {
			allocated += share.PredictedAmount
		}
	}
	if rest := amount - allocated; rest > 0.01 {
		for period, frac := range g.patterns.TimeDistribution {
			dist[period] += rest * frac
		}
	}
	return dist
}

// likelyCategories ranks categories for weekday by overall frequency,
// same-weekday occurrences, and recent activity.
func (g *generator) likelyCategories(weekday int) []string {
	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	for name, cp := range g.patterns.Categories {
		frequency := ratio(cp.ActiveDays(), g.patterns.SeriesDays)
		score := frequency*0.4 +
			float64(len(cp.WeekdayOccurrences[weekday]))*0.4 +
			float64(len(cp.RecentTrend))*0.2
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{name: name, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	names := make([]string, 0, g.cfg.LikelyCategories)
	for i := 0; i < len(ranked) && i < g.cfg.LikelyCategories; i++ {
		names = append(names, ranked[i].name)
	}
	return names
}

// confidenceScore blends weekday pattern strength with the mean confidence of
// the day's likely categories. Non-finite results fall back to 0.5.
func (g *generator) confidenceScore(pattern model.WeekdayPattern, weekday int, likely []string) float64 {
	score := pattern.PatternStrength
	if len(likely) > 0 {
		sum := 0.0
		for _, name := range likely {
			sum += categoryConfidence(g.patterns.Categories[name], weekday, g.cfg.RecentWindow)
		}
		score = 0.6*pattern.PatternStrength + 0.4*(sum/float64(len(likely))/100)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		g.logger.Debug("Confidence score not finite, using neutral default", "weekday", weekday)
		return 0.5
	}
	return clamp(score, 0, 1)
}
