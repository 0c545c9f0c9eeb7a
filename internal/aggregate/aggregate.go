// Package aggregate rolls individual expenses up into per-user daily records.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/model"
)

// Aggregator cuts calendar days in a fixed time zone.
type Aggregator struct {
	loc *time.Location
}

// New creates an Aggregator for loc, defaulting to UTC.
func New(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc}
}

// Location returns the aggregator's time zone.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// DayBounds returns the [start, end) instants of the local calendar day containing date.
func (a *Aggregator) DayBounds(date time.Time) (time.Time, time.Time) {
	local := date.In(a.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)
	return start, start.AddDate(0, 0, 1)
}

// CalendarDay returns the local calendar day of t as midnight UTC.
func (a *Aggregator) CalendarDay(t time.Time) time.Time {
	local := t.In(a.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

type categoryTotals struct {
	items  map[string]*itemTotals
	total  decimal.Decimal
	count  int
	hourly [24]decimal.Decimal
}

type itemTotals struct {
	total decimal.Decimal
	count int
}

type userTotals struct {
	categories map[string]*categoryTotals
	periods    map[model.TimePeriod]decimal.Decimal
	total      decimal.Decimal
	count      int
}

// AggregateDay builds one record per user from the transactions falling on
// the local calendar day of date. Transactions outside the day or without a
// user are ignored. Users with no transactions get no record.
func (a *Aggregator) AggregateDay(date time.Time, txns []model.Transaction) map[string]model.DailyRecord {
	start, end := a.DayBounds(date)
	users := make(map[string]*userTotals)

	for _, txn := range txns {
		if txn.UserID == "" || txn.Date.Before(start) || !txn.Date.Before(end) {
			continue
		}
		u, ok := users[txn.UserID]
		if !ok {
			u = &userTotals{
				categories: make(map[string]*categoryTotals),
				periods:    make(map[model.TimePeriod]decimal.Decimal),
			}
			users[txn.UserID] = u
		}

		amount := decimal.NewFromFloat(txn.Amount)
		hour := txn.Date.In(a.loc).Hour()

		u.total = u.total.Add(amount)
		u.count++
		period := model.PeriodForHour(hour)
		u.periods[period] = u.periods[period].Add(amount)

		name := txn.CategoryOrDefault()
		cat, ok := u.categories[name]
		if !ok {
			cat = &categoryTotals{items: make(map[string]*itemTotals)}
			u.categories[name] = cat
		}
		cat.total = cat.total.Add(amount)
		cat.count++
		cat.hourly[hour] = cat.hourly[hour].Add(amount)

		if txn.Title != "" {
			item, ok := cat.items[txn.Title]
			if !ok {
				item = &itemTotals{}
				cat.items[txn.Title] = item
			}
			item.total = item.total.Add(amount)
			item.count++
		}
	}

	day := a.CalendarDay(start)
	records := make(map[string]model.DailyRecord, len(users))
	for userID, u := range users {
		records[userID] = u.record(day)
	}
	return records
}

func (u *userTotals) record(day time.Time) model.DailyRecord {
	rec := model.NewDailyRecord(day)
	rec.Total = u.total.InexactFloat64()
	rec.TransactionCount = u.count
	if u.count > 0 {
		rec.AverageTransaction = u.total.Div(decimal.NewFromInt(int64(u.count))).InexactFloat64()
	}
	rec.IsZeroSpendingDay = u.total.IsZero()

	weekday := model.WeekdayIndex(day)
	for period, v := range u.periods {
		rec.TimeDistribution[period] = v.InexactFloat64()
	}
	for name, cat := range u.categories {
		agg := model.CategoryAggregate{
			Total: cat.total.InexactFloat64(),
			Count: cat.count,
			Items: make(map[string]model.ItemAggregate, len(cat.items)),
		}
		for title, item := range cat.items {
			agg.Items[title] = model.ItemAggregate{Count: item.count, Total: item.total.InexactFloat64()}
		}
		for h, v := range cat.hourly {
			agg.HourlyDistribution[h] = v.InexactFloat64()
		}
		agg.DailyDistribution[weekday] = agg.Total
		rec.Categories[name] = agg
	}
	return rec
}

// FillMissingDates returns zero-spending records for every day in
// [start, end] whose date key is not in existing.
func FillMissingDates(start, end time.Time, existing map[string]bool) []model.DailyRecord {
	var filled []model.DailyRecord
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(last) {
		if !existing[day.Format(document.DateLayout)] {
			filled = append(filled, model.NewDailyRecord(day))
		}
		day = day.AddDate(0, 0, 1)
	}
	return filled
}

// Users returns the sorted user IDs present in records.
func Users(records map[string]model.DailyRecord) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
