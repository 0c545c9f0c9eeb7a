package forecast

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Veraticus/spence/internal/model"
)

// Patterns is everything learned from a series that drives prediction.
type Patterns struct {
	Categories       map[string]*CategoryPattern
	TimeDistribution map[model.TimePeriod]float64 // fraction of historical spend per period
	Weekdays         [7]model.WeekdayPattern
	ZeroSpending     model.ZeroSpendingStats
	Overall          model.OverallStats
	SeriesDays       int
}

// Analyze computes weekday, zero-spending, global, and category patterns.
func Analyze(s Series, cfg Config) *Patterns {
	p := &Patterns{
		Overall:          OverallStats(s, cfg.RecentWindow),
		ZeroSpending:     ZeroSpending(s.Totals()),
		TimeDistribution: timeShares(s),
		SeriesDays:       s.Len(),
	}
	p.Weekdays = WeekdayPatterns(s, p.Overall, cfg)
	p.Categories = AnalyzeCategories(s, cfg)
	return p
}

// WeekdayPatterns summarizes spending for each day of the week.
func WeekdayPatterns(s Series, overall model.OverallStats, cfg Config) [7]model.WeekdayPattern {
	var all, spending, recentAll, recentSpending [7][]float64
	var transactions [7]float64

	recentFrom := max(0, s.Len()-cfg.RecentWindow)
	for i, d := range s.Days {
		w := model.WeekdayIndex(d.Date)
		all[w] = append(all[w], d.Total)
		transactions[w] += float64(d.TransactionCount)
		if d.Total > 0 {
			spending[w] = append(spending[w], d.Total)
		}
		if i >= recentFrom {
			recentAll[w] = append(recentAll[w], d.Total)
			if d.Total > 0 {
				recentSpending[w] = append(recentSpending[w], d.Total)
			}
		}
	}

	var patterns [7]model.WeekdayPattern
	for w := range 7 {
		p := model.WeekdayPattern{
			Weekday:         w,
			Name:            model.WeekdayNames[w],
			Observations:    len(all[w]),
			SpendingDays:    len(spending[w]),
			Frequency:       ratio(len(spending[w]), len(all[w])),
			RecentFrequency: ratio(len(recentSpending[w]), len(recentAll[w])),
		}
		if len(all[w]) > 0 {
			p.AverageTransactions = transactions[w] / float64(len(all[w]))
		}
		if len(spending[w]) > 0 {
			p.Average = stat.Mean(spending[w], nil)
			p.Std = sampleStd(spending[w])
		}
		p.PatternStrength = patternStrength(p)
		p.TypicalRange = typicalRange(spending[w], p.Average, cfg.TypicalRangeMinSamples)
		p.IsHighValueDay = p.Average > cfg.HighValueMultiplier*overall.AverageNonZero &&
			p.Frequency > cfg.HighValueMinFrequency &&
			p.RecentFrequency > 0
		patterns[w] = p
	}
	return patterns
}

// patternStrength blends consistency, frequency, and recent activity into [0, 1].
func patternStrength(p model.WeekdayPattern) float64 {
	consistency := 0.0
	if p.Average > 0 {
		consistency = clamp(1-p.Std/p.Average, 0, 1)
	}
	strength := 0.3*consistency + 0.3*clamp(p.Frequency, 0, 1) + 0.4*clamp(p.RecentFrequency, 0, 1)
	if math.IsNaN(strength) {
		return 0
	}
	return clamp(strength, 0, 1)
}

func typicalRange(values []float64, average float64, minSamples int) model.Range {
	if len(values) >= minSamples {
		sorted := sortedCopy(values)
		return model.Range{
			Low:  quantile(0.25, sorted),
			High: quantile(0.75, sorted),
		}
	}
	return model.Range{Low: average * 0.7, High: average * 1.3}
}

// ZeroSpending scans totals once and collects runs of consecutive zero days.
// A run still open at the end of the series is counted.
func ZeroSpending(totals []float64) model.ZeroSpendingStats {
	stats := model.ZeroSpendingStats{Streaks: []int{}}
	run := 0
	for _, v := range totals {
		if v == 0 {
			run++
			stats.TotalZeroDays++
			continue
		}
		if run > 0 {
			stats.Streaks = append(stats.Streaks, run)
			run = 0
		}
	}
	if run > 0 {
		stats.Streaks = append(stats.Streaks, run)
	}

	sum := 0
	for _, streak := range stats.Streaks {
		sum += streak
		stats.MaxStreakLength = max(stats.MaxStreakLength, streak)
	}
	if len(stats.Streaks) > 0 {
		stats.AverageStreakLength = float64(sum) / float64(len(stats.Streaks))
	}
	stats.ZeroRatio = ratio(stats.TotalZeroDays, len(totals))
	return stats
}

// OverallStats computes global percentiles over spending-day totals.
func OverallStats(s Series, recentWindow int) model.OverallStats {
	totals := s.Totals()
	stats := model.OverallStats{TotalDays: len(totals)}
	if len(totals) > 0 {
		stats.AverageDaily = stat.Mean(totals, nil)
	}

	spending := positive(totals)
	stats.SpendingDays = len(spending)
	if len(spending) == 0 {
		return stats
	}

	sorted := sortedCopy(spending)
	stats.MaxDaily = sorted[len(sorted)-1]
	stats.MedianDaily = quantile(0.5, sorted)
	stats.Percentile25 = quantile(0.25, sorted)
	stats.Percentile75 = quantile(0.75, sorted)
	stats.TypicalHigh = quantile(0.85, sorted)
	stats.TypicalLow = quantile(0.15, sorted)
	stats.AverageNonZero = stat.Mean(spending, nil)

	var recent []float64
	for _, d := range s.Recent(recentWindow) {
		recent = append(recent, d.Total)
	}
	if recentSpending := positive(recent); len(recentSpending) > 0 {
		stats.RecentAverage = stat.Mean(recentSpending, nil)
	}
	return stats
}

// timeShares returns each period's fraction of all recorded time-of-day spend.
func timeShares(s Series) map[model.TimePeriod]float64 {
	sums := make(map[model.TimePeriod]float64)
	total := 0.0
	for _, d := range s.Days {
		for period, v := range d.Record.TimeDistribution {
			if v <= 0 {
				continue
			}
			sums[period] += v
			total += v
		}
	}
	shares := make(map[model.TimePeriod]float64, len(sums))
	if total == 0 {
		return shares
	}
	for period, v := range sums {
		shares[period] = v / total
	}
	return shares
}

// quantile interpolates linearly between the closest ranks at (n-1)p, so the
// median of an even-length sample is the mean of the middle pair. sorted must
// be in ascending order.
func quantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case p <= 0 || n == 1:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

func positive(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
