package forecast

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spence/internal/model"
)

func TestZeroSpending(t *testing.T) {
	tests := []struct {
		name        string
		totals      []float64
		wantStreaks []int
		wantAverage float64
		wantMax     int
		wantZeros   int
	}{
		{
			name:        "interior runs",
			totals:      []float64{5, 0, 0, 3, 0, 0, 0, 2},
			wantStreaks: []int{2, 3},
			wantAverage: 2.5,
			wantMax:     3,
			wantZeros:   5,
		},
		{
			name:        "trailing run counted",
			totals:      []float64{1, 0, 0},
			wantStreaks: []int{2},
			wantAverage: 2,
			wantMax:     2,
			wantZeros:   2,
		},
		{
			name:        "no zeros",
			totals:      []float64{1, 2, 3},
			wantStreaks: []int{},
		},
		{
			name:        "all zeros",
			totals:      []float64{0, 0, 0, 0},
			wantStreaks: []int{4},
			wantAverage: 4,
			wantMax:     4,
			wantZeros:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := ZeroSpending(tt.totals)
			assert.Equal(t, tt.wantStreaks, stats.Streaks)
			assert.InDelta(t, tt.wantAverage, stats.AverageStreakLength, 1e-9)
			assert.Equal(t, tt.wantMax, stats.MaxStreakLength)
			assert.Equal(t, tt.wantZeros, stats.TotalZeroDays)
			assert.InDelta(t, float64(tt.wantZeros)/float64(len(tt.totals)), stats.ZeroRatio, 1e-9)
		})
	}
}

func TestWeekdayPatterns_StrengthBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	generators := map[string]func(int, time.Time) float64{
		"all zero": func(int, time.Time) float64 { return 0 },
		"extreme variance": func(i int, _ time.Time) float64 {
			if i%5 == 0 {
				return 1e9
			}
			return 0.01
		},
		"sparse spikes": func(int, time.Time) float64 {
			if rng.Float64() < 0.1 {
				return rng.Float64() * 1e6
			}
			return 0
		},
		"random": func(int, time.Time) float64 { return rng.Float64() * 200 },
	}

	for name, gen := range generators {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			s, err := Preprocess(makeRecords(historyStart, 60, gen), cfg)
			require.NoError(t, err)

			p := Analyze(s, cfg)
			for _, w := range p.Weekdays {
				assert.GreaterOrEqual(t, w.PatternStrength, 0.0, w.Name)
				assert.LessOrEqual(t, w.PatternStrength, 1.0, w.Name)
				assert.GreaterOrEqual(t, w.Frequency, 0.0)
				assert.LessOrEqual(t, w.Frequency, 1.0)
			}
		})
	}
}

func TestWeekdayPatterns_HighValueSunday(t *testing.T) {
	cfg := DefaultConfig()
	s, err := Preprocess(makeRecords(historyStart, 90, sundayHeavy(3)), cfg)
	require.NoError(t, err)

	p := Analyze(s, cfg)
	for w, pattern := range p.Weekdays {
		if w == 6 {
			assert.True(t, pattern.IsHighValueDay, "Sunday should be high value")
			assert.Greater(t, pattern.Average, 2900.0)
			continue
		}
		assert.False(t, pattern.IsHighValueDay, pattern.Name)
	}
	assert.InDelta(t, 1.0, p.Weekdays[6].RecentFrequency, 1e-9)
	assert.Greater(t, p.Weekdays[6].TypicalRange.High, p.Weekdays[6].TypicalRange.Low)
}

func TestWeekdayPatterns_TypicalRangeFallback(t *testing.T) {
	cfg := DefaultConfig()
	// Only the first three Mondays spend.
	s, err := Preprocess(makeRecords(historyStart, 28, func(i int, date time.Time) float64 {
		if model.WeekdayIndex(date) == 0 && i < 21 {
			return 100
		}
		if model.WeekdayIndex(date) == 0 {
			return 0
		}
		return 90
	}), cfg)
	require.NoError(t, err)

	monday := Analyze(s, cfg).Weekdays[0]
	assert.Equal(t, 3, monday.SpendingDays)
	assert.InDelta(t, 70.0, monday.TypicalRange.Low, 1e-9)
	assert.InDelta(t, 130.0, monday.TypicalRange.High, 1e-9)
	assert.InDelta(t, 0.75, monday.Frequency, 1e-9)
	assert.InDelta(t, 0.5, monday.RecentFrequency, 1e-9)
	assert.False(t, monday.IsHighValueDay)
}

func TestOverallStats(t *testing.T) {
	s := seriesFromTotals([]float64{0, 10, 20, 30, 40, 0, 50})
	stats := OverallStats(s, 14)

	assert.Equal(t, 7, stats.TotalDays)
	assert.Equal(t, 5, stats.SpendingDays)
	assert.InDelta(t, 50.0, stats.MaxDaily, 1e-9)
	assert.InDelta(t, 30.0, stats.AverageNonZero, 1e-9)
	assert.InDelta(t, 150.0/7, stats.AverageDaily, 1e-9)
	assert.InDelta(t, 30.0, stats.MedianDaily, 1e-9)
	assert.InDelta(t, 20.0, stats.Percentile25, 1e-9)
	assert.InDelta(t, 40.0, stats.Percentile75, 1e-9)
	assert.InDelta(t, 44.0, stats.TypicalHigh, 1e-9)
	assert.InDelta(t, 16.0, stats.TypicalLow, 1e-9)
}

func TestQuantile(t *testing.T) {
	even := []float64{100, 200, 300, 400}
	tests := []struct {
		name   string
		p      float64
		sorted []float64
		want   float64
	}{
		{name: "even median", p: 0.5, sorted: even, want: 250},
		{name: "p25", p: 0.25, sorted: even, want: 175},
		{name: "p75", p: 0.75, sorted: even, want: 325},
		{name: "p15", p: 0.15, sorted: even, want: 145},
		{name: "p85", p: 0.85, sorted: even, want: 355},
		{name: "odd median", p: 0.5, sorted: []float64{1, 5, 9}, want: 5},
		{name: "minimum", p: 0, sorted: even, want: 100},
		{name: "maximum", p: 1, sorted: even, want: 400},
		{name: "single value", p: 0.85, sorted: []float64{42}, want: 42},
		{name: "empty", p: 0.5, sorted: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, quantile(tt.p, tt.sorted), 1e-9)
		})
	}
}

func TestTypicalRange(t *testing.T) {
	r := typicalRange([]float64{400, 100, 300, 200}, 250, 4)
	assert.InDelta(t, 175.0, r.Low, 1e-9)
	assert.InDelta(t, 325.0, r.High, 1e-9)

	r = typicalRange([]float64{100, 200}, 150, 4)
	assert.InDelta(t, 105.0, r.Low, 1e-9)
	assert.InDelta(t, 195.0, r.High, 1e-9)
}

func TestAnalyzeCategories(t *testing.T) {
	cfg := DefaultConfig()
	records := makeRecords(historyStart, 21, func(i int, _ time.Time) float64 { return float64(20 + i) })
	for i := range records {
		total := records[i].Total
		records[i].Categories["Food"] = model.CategoryAggregate{
			Total: total * 0.6,
			Count: 2,
			Items: map[string]model.ItemAggregate{
				"lunch":  {Count: 1, Total: total * 0.4},
				"coffee": {Count: 1, Total: total * 0.2},
			},
		}
		records[i].Categories["Transport"] = model.CategoryAggregate{
			Total: total * 0.4,
			Count: 1,
			Items: map[string]model.ItemAggregate{"bus": {Count: 1, Total: total * 0.4}},
		}
	}
	// Unrelated category active on alternating days only, moving against the others.
	for i := 0; i < len(records); i += 2 {
		records[i].Categories["Gifts"] = model.CategoryAggregate{Total: float64(100 - i), Count: 1}
	}

	s, err := Preprocess(records, cfg)
	require.NoError(t, err)
	patterns := AnalyzeCategories(s, cfg)

	require.Len(t, patterns, 3)
	food := patterns["Food"]
	assert.Equal(t, 21, food.ActiveDays())
	assert.Equal(t, 42, food.Count)
	assert.Len(t, food.RecentTrend, 14)
	assert.Equal(t, []string{"lunch", "coffee"}, food.TopItems(3))
	assert.Equal(t, s.End(), food.Items["lunch"].LastPurchase)

	assert.InDelta(t, 1.0, food.Correlations["Transport"], 1e-9)
	assert.InDelta(t, 1.0, patterns["Transport"].Correlations["Food"], 1e-9)
	assert.InDelta(t, -1.0, food.Correlations["Gifts"], 1e-9)
	assert.InDelta(t, -1.0, patterns["Gifts"].Correlations["Food"], 1e-9)

	conf := categoryConfidence(food, 0, cfg.RecentWindow)
	assert.GreaterOrEqual(t, conf, 50.0)
	assert.LessOrEqual(t, conf, 100.0)
	assert.InDelta(t, 50.0, categoryConfidence(nil, 0, cfg.RecentWindow), 1e-9)
}

func TestCategoryPattern_TimeShares(t *testing.T) {
	cp := &CategoryPattern{}
	cp.HourlyDistribution[8] = 30  // morning
	cp.HourlyDistribution[13] = 10 // afternoon
	cp.HourlyDistribution[23] = 60 // night

	shares := cp.TimeShares()
	assert.InDelta(t, 0.3, shares[model.PeriodMorning], 1e-9)
	assert.InDelta(t, 0.1, shares[model.PeriodAfternoon], 1e-9)
	assert.InDelta(t, 0.6, shares[model.PeriodNight], 1e-9)
	assert.NotContains(t, shares, model.PeriodEvening)

	assert.InDelta(t, 1.0, timeRegularity(map[model.TimePeriod]float64{model.PeriodMorning: 1}), 1e-9)
	assert.InDelta(t, 0.0, timeRegularity(map[model.TimePeriod]float64{
		model.PeriodMorning: 0.25, model.PeriodAfternoon: 0.25, model.PeriodEvening: 0.25, model.PeriodNight: 0.25,
	}), 1e-9)
}
