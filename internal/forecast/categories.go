package forecast

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/model"
)

// CategoryPattern accumulates a category's history across the series.
type CategoryPattern struct {
	Items              map[string]*ItemPattern
	Correlations       map[string]float64
	DailyTotals        map[time.Time]float64
	Name               string
	WeekdayOccurrences [7][]float64 // amounts on each active day, by weekday
	RecentTrend        []float64    // amounts on active days within the recent window
	HourlyDistribution [24]float64
	Total              float64
	Count              int
}

// ItemPattern tracks purchases of one item within a category.
type ItemPattern struct {
	LastPurchase time.Time
	Count        int
	Total        float64
}

// Average returns the mean spend per purchase.
func (i *ItemPattern) Average() float64 {
	return safeDiv(i.Total, float64(i.Count))
}

// ActiveDays returns the number of days the category had spending.
func (c *CategoryPattern) ActiveDays() int {
	return len(c.DailyTotals)
}

// WeekdayTotal returns the category's historical spend on weekday w.
func (c *CategoryPattern) WeekdayTotal(w int) float64 {
	sum := 0.0
	for _, v := range c.WeekdayOccurrences[w] {
		sum += v
	}
	return sum
}

// TimeShares converts the hourly distribution into per-period fractions.
func (c *CategoryPattern) TimeShares() map[model.TimePeriod]float64 {
	sums := make(map[model.TimePeriod]float64)
	total := 0.0
	for hour, v := range c.HourlyDistribution {
		if v <= 0 {
			continue
		}
		sums[model.PeriodForHour(hour)] += v
		total += v
	}
	if total == 0 {
		return map[model.TimePeriod]float64{}
	}
	for period := range sums {
		sums[period] /= total
	}
	return sums
}

// TopItems returns up to n item names ranked by purchase count, then total.
func (c *CategoryPattern) TopItems(n int) []string {
	names := make([]string, 0, len(c.Items))
	for name := range c.Items {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := c.Items[names[i]], c.Items[names[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// AnalyzeCategories aggregates category breakdowns across all observed days.
// Records without category metadata contribute nothing.
func AnalyzeCategories(s Series, cfg Config) map[string]*CategoryPattern {
	patterns := make(map[string]*CategoryPattern)
	recentFrom := max(0, s.Len()-cfg.RecentWindow)

	for i, d := range s.Days {
		if !d.Observed {
			continue
		}
		w := model.WeekdayIndex(d.Date)
		for name, agg := range d.Record.Categories {
			if agg.Total <= 0 && agg.Count == 0 {
				continue
			}
			cp, ok := patterns[name]
			if !ok {
				cp = &CategoryPattern{
					Name:         name,
					Items:        make(map[string]*ItemPattern),
					Correlations: make(map[string]float64),
					DailyTotals:  make(map[time.Time]float64),
				}
				patterns[name] = cp
			}

			cp.Total += agg.Total
			cp.Count += agg.Count
			cp.DailyTotals[d.Date] += agg.Total
			cp.WeekdayOccurrences[w] = append(cp.WeekdayOccurrences[w], agg.Total)
			if i >= recentFrom {
				cp.RecentTrend = append(cp.RecentTrend, agg.Total)
			}
			for h, v := range agg.HourlyDistribution {
				cp.HourlyDistribution[h] += v
			}
			for item, stats := range agg.Items {
				ip, ok := cp.Items[item]
				if !ok {
					ip = &ItemPattern{}
					cp.Items[item] = ip
				}
				ip.Count += stats.Count
				ip.Total += stats.Total
				if d.Date.After(ip.LastPurchase) {
					ip.LastPurchase = d.Date
				}
			}
		}
	}

	correlate(patterns, cfg)
	return patterns
}

// correlate links categories whose daily totals co-move on shared active days.
func correlate(patterns map[string]*CategoryPattern, cfg Config) {
	names := sortedNames(patterns)
	for i, a := range names {
		for _, b := range names[i+1:] {
			r, ok := pearson(patterns[a], patterns[b], cfg.MinCorrelationDays)
			if !ok || math.Abs(r) <= cfg.CorrelationThreshold {
				continue
			}
			patterns[a].Correlations[b] = r
			patterns[b].Correlations[a] = r
		}
	}
}

func pearson(a, b *CategoryPattern, minDays int) (float64, bool) {
	var xs, ys []float64
	for day, x := range a.DailyTotals {
		if y, ok := b.DailyTotals[day]; ok {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < minDays {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// categoryConfidence scores 0-100 how predictable a category is on weekday w.
// A negative weekday averages the weekday density across the week. Any
// non-finite intermediate yields the neutral score of 50.
func categoryConfidence(cp *CategoryPattern, weekday int, recentWindow int) float64 {
	const neutral = 50.0
	if cp == nil {
		return neutral
	}

	score := neutral
	score += math.Min(float64(cp.Count), 30) / 30 * 100 * 0.1

	density := 0.0
	if weekday >= 0 && weekday < 7 {
		density = float64(len(cp.WeekdayOccurrences[weekday])) / 8
	} else {
		n := 0
		for w := range 7 {
			n += len(cp.WeekdayOccurrences[w])
		}
		density = float64(n) / 7 / 8
	}
	score += math.Min(density, 1) * 100 * 0.15

	score += priceConsistency(cp) * 100 * 0.1
	score += math.Min(float64(len(cp.RecentTrend))/float64(recentWindow), 1) * 100 * 0.15
	score += timeRegularity(cp.TimeShares()) * 100 * 0.1

	frequent := 0
	for _, item := range cp.Items {
		if item.Count >= 3 {
			frequent++
		}
	}
	score += math.Min(float64(frequent)/5, 1) * 100 * 0.1

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return neutral
	}
	return clamp(score, 0, 100)
}

// priceConsistency inverts the coefficient of variation of per-item average
// prices into [0, 1]. Fewer than two priced items score a neutral 0.5.
func priceConsistency(cp *CategoryPattern) float64 {
	var prices []float64
	for _, item := range cp.Items {
		if item.Count > 0 && item.Total > 0 {
			prices = append(prices, item.Average())
		}
	}
	if len(prices) < 2 {
		return 0.5
	}
	mean := stat.Mean(prices, nil)
	if mean == 0 {
		return 0
	}
	return clamp(1-stat.StdDev(prices, nil)/mean, 0, 1)
}

// timeRegularity is 1 minus the normalized entropy of a time-of-day split.
func timeRegularity(shares map[model.TimePeriod]float64) float64 {
	if len(shares) == 0 {
		return 0
	}
	p := make([]float64, 0, len(shares))
	for _, v := range shares {
		p = append(p, v)
	}
	h := stat.Entropy(p)
	return clamp(1-h/math.Log(float64(len(model.TimePeriods))), 0, 1)
}

// categorySummaries renders category patterns for the output document.
func categorySummaries(patterns map[string]*CategoryPattern, recentWindow int) map[string]model.CategorySummary {
	grand := 0.0
	for _, cp := range patterns {
		grand += cp.Total
	}
	out := make(map[string]model.CategorySummary, len(patterns))
	for name, cp := range patterns {
		summary := model.CategorySummary{
			Total:            cp.Total,
			Count:            cp.Count,
			Share:            safeDiv(cp.Total, grand),
			Confidence:       categoryConfidence(cp, -1, recentWindow),
			ActiveDays:       cp.ActiveDays(),
			RecentDays:       len(cp.RecentTrend),
			TimeDistribution: cp.TimeShares(),
			Correlations:     cp.Correlations,
			Items:            make(map[string]model.ItemStats, len(cp.Items)),
		}
		for w := range 7 {
			summary.WeekdayCounts[w] = len(cp.WeekdayOccurrences[w])
		}
		for item, ip := range cp.Items {
			summary.Items[item] = model.ItemStats{
				Count:        ip.Count,
				Total:        ip.Total,
				Average:      ip.Average(),
				LastPurchase: ip.LastPurchase.Format(document.DateLayout),
			}
		}
		out[name] = summary
	}
	return out
}

func sortedNames(patterns map[string]*CategoryPattern) []string {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
