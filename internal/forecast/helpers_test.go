package forecast

import (
	"math/rand/v2"
	"time"

	"github.com/Veraticus/spence/internal/model"
)

var historyStart = time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC) // a Monday

// fixedClock pins the target month to November 2026.
func fixedClock() time.Time {
	return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
}

// makeRecords builds n consecutive daily records whose totals come from fn.
func makeRecords(start time.Time, n int, fn func(i int, date time.Time) float64) []model.DailyRecord {
	records := make([]model.DailyRecord, 0, n)
	for i := range n {
		date := start.AddDate(0, 0, i)
		rec := model.NewDailyRecord(date)
		rec.Total = fn(i, date)
		if rec.Total > 0 {
			rec.TransactionCount = 2
			rec.AverageTransaction = rec.Total / 2
			rec.IsZeroSpendingDay = false
		}
		records = append(records, rec)
	}
	return records
}

// withCategory attaches a single category carrying the whole daily total.
func withCategory(records []model.DailyRecord, name string, hour int) []model.DailyRecord {
	for i := range records {
		if records[i].Total <= 0 {
			continue
		}
		agg := model.CategoryAggregate{
			Total: records[i].Total,
			Count: 1,
			Items: map[string]model.ItemAggregate{name + " item": {Count: 1, Total: records[i].Total}},
		}
		agg.HourlyDistribution[hour] = records[i].Total
		records[i].Categories[name] = agg
		records[i].TimeDistribution[model.PeriodForHour(hour)] = records[i].Total
	}
	return records
}

// sundayHeavy is ~3000 every Sunday and 500 +/- 50 on other days.
func sundayHeavy(seed uint64) func(int, time.Time) float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	return func(_ int, date time.Time) float64 {
		if model.WeekdayIndex(date) == 6 {
			return 2950 + 100*rng.Float64()
		}
		return 450 + 100*rng.Float64()
	}
}

func seriesFromTotals(totals []float64) Series {
	records := makeRecords(historyStart, len(totals), func(i int, _ time.Time) float64 { return totals[i] })
	cfg := DefaultConfig()
	cfg.MinRecords = 1
	s, err := Preprocess(records, cfg)
	if err != nil {
		panic(err)
	}
	return s
}
