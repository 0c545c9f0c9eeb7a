package forecast

import (
	"sort"
	"time"

	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/model"
)

// Day is one calendar day of a preprocessed series.
type Day struct {
	Date               time.Time
	Record             model.DailyRecord
	Total              float64
	AverageTransaction float64
	TransactionCount   int
	IsWeekend          bool
	Observed           bool
}

// Series is a gap-free, one-entry-per-day spending history.
type Series struct {
	Days []Day
}

// Len returns the number of days in the series.
func (s Series) Len() int { return len(s.Days) }

// Start returns the first day of the series.
func (s Series) Start() time.Time { return s.Days[0].Date }

// End returns the last day of the series.
func (s Series) End() time.Time { return s.Days[len(s.Days)-1].Date }

// Totals returns the daily totals in date order.
func (s Series) Totals() []float64 {
	totals := make([]float64, len(s.Days))
	for i, d := range s.Days {
		totals[i] = d.Total
	}
	return totals
}

// Recent returns the trailing n days of the series.
func (s Series) Recent(n int) []Day {
	if n >= len(s.Days) {
		return s.Days
	}
	return s.Days[len(s.Days)-n:]
}

// DecodeRecords converts stored documents into daily records, skipping any
// that have no parseable date.
func DecodeRecords(docs []document.Document) []model.DailyRecord {
	records := make([]model.DailyRecord, 0, len(docs))
	for _, doc := range docs {
		rec, ok := document.DecodeDailyRecord(doc)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Preprocess builds a gap-free daily series from unordered records.
//
// Records on the same day are merged. Negative daily totals are clamped to 0.
// Days without an observation take the mean of the observed totals in the
// preceding window, or carry the previous value forward when the window holds
// no observation.
func Preprocess(records []model.DailyRecord, cfg Config) (Series, error) {
	if len(records) == 0 {
		return Series{}, newError(KindEmptyInput, nil, "no usable daily records")
	}

	byDate := make(map[time.Time]model.DailyRecord, len(records))
	for _, rec := range records {
		day := truncateDay(rec.Date)
		if existing, ok := byDate[day]; ok {
			byDate[day] = mergeRecords(existing, rec)
			continue
		}
		rec.Date = day
		byDate[day] = rec
	}

	if len(byDate) < cfg.MinRecords {
		return Series{}, newError(KindInsufficientData, nil,
			"need at least %d days of history, got %d", cfg.MinRecords, len(byDate))
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	start, end := dates[0], dates[len(dates)-1]
	n := int(end.Sub(start).Hours()/24) + 1
	days := make([]Day, n)

	for i := range n {
		date := start.AddDate(0, 0, i)
		rec, ok := byDate[date]
		if !ok {
			rec = model.NewDailyRecord(date)
			days[i] = Day{Date: date, Record: rec, IsWeekend: rec.IsWeekend}
			continue
		}
		total := rec.Total
		if total < 0 {
			total = 0
		}
		days[i] = Day{
			Date:               date,
			Record:             rec,
			Total:              total,
			AverageTransaction: rec.AverageTransaction,
			TransactionCount:   rec.TransactionCount,
			IsWeekend:          model.IsWeekend(date),
			Observed:           true,
		}
	}

	fillGaps(days, cfg.GapFillWindow)
	return Series{Days: days}, nil
}

func fillGaps(days []Day, window int) {
	for i := range days {
		if days[i].Observed {
			continue
		}
		sum, count := 0.0, 0
		for j := max(0, i-window+1); j < i; j++ {
			if days[j].Observed {
				sum += days[j].Total
				count++
			}
		}
		switch {
		case count > 0:
			days[i].Total = sum / float64(count)
		case i > 0:
			days[i].Total = days[i-1].Total
		}
	}
}

func mergeRecords(a, b model.DailyRecord) model.DailyRecord {
	merged := model.NewDailyRecord(a.Date)
	merged.Total = a.Total + b.Total
	merged.TransactionCount = a.TransactionCount + b.TransactionCount
	if merged.TransactionCount > 0 {
		merged.AverageTransaction = merged.Total / float64(merged.TransactionCount)
	}
	merged.IsZeroSpendingDay = merged.Total == 0

	for _, src := range []model.DailyRecord{a, b} {
		for period, v := range src.TimeDistribution {
			merged.TimeDistribution[period] += v
		}
		for name, cat := range src.Categories {
			merged.Categories[name] = mergeCategory(merged.Categories[name], cat)
		}
	}
	return merged
}

func mergeCategory(a, b model.CategoryAggregate) model.CategoryAggregate {
	out := model.CategoryAggregate{
		Total: a.Total + b.Total,
		Count: a.Count + b.Count,
		Items: make(map[string]model.ItemAggregate, len(a.Items)+len(b.Items)),
	}
	for _, items := range []map[string]model.ItemAggregate{a.Items, b.Items} {
		for name, item := range items {
			cur := out.Items[name]
			cur.Count += item.Count
			cur.Total += item.Total
			out.Items[name] = cur
		}
	}
	for h := range out.HourlyDistribution {
		out.HourlyDistribution[h] = a.HourlyDistribution[h] + b.HourlyDistribution[h]
	}
	for d := range out.DailyDistribution {
		out.DailyDistribution[d] = a.DailyDistribution[d] + b.DailyDistribution[d]
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
