package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spence/internal/model"
)

func TestAggregator_AggregateDay(t *testing.T) {
	colombo, err := time.LoadLocation("Asia/Colombo")
	require.NoError(t, err)
	agg := New(colombo)

	day := time.Date(2026, 3, 7, 0, 0, 0, 0, colombo) // Saturday
	at := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 7, hour, minute, 0, 0, colombo)
	}

	txns := []model.Transaction{
		{UserID: "alice", Date: at(8, 15), Amount: 0.1, Category: "Food", Title: "coffee"},
		{UserID: "alice", Date: at(9, 0), Amount: 0.2, Category: "Food", Title: "coffee"},
		{UserID: "alice", Date: at(13, 30), Amount: 12.5, Category: "Food", Title: "lunch"},
		{UserID: "alice", Date: at(18, 0), Amount: 40, Category: "Transport"},
		{UserID: "alice", Date: at(23, 30), Amount: 7, Title: "snack"},
		{UserID: "bob", Date: at(2, 0), Amount: 100, Category: "Rent"},
		{UserID: "", Date: at(10, 0), Amount: 999},
		{UserID: "alice", Date: at(0, 0).Add(-time.Minute), Amount: 500, Category: "Food"},
		{UserID: "alice", Date: at(0, 0).AddDate(0, 0, 1), Amount: 500, Category: "Food"},
	}

	records := agg.AggregateDay(day, txns)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"alice", "bob"}, Users(records))

	alice := records["alice"]
	assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), alice.Date)
	assert.InDelta(t, 59.8, alice.Total, 1e-9)
	assert.Equal(t, 5, alice.TransactionCount)
	assert.InDelta(t, 59.8/5, alice.AverageTransaction, 1e-9)
	assert.Equal(t, 5, alice.DayOfWeek)
	assert.True(t, alice.IsWeekend)
	assert.Equal(t, 1, alice.WeekOfMonth)
	assert.False(t, alice.IsZeroSpendingDay)

	food := alice.Categories["Food"]
	assert.InDelta(t, 12.8, food.Total, 1e-9)
	assert.Equal(t, 3, food.Count)
	assert.Equal(t, model.ItemAggregate{Count: 2, Total: 0.3}, food.Items["coffee"])
	assert.InDelta(t, 0.1, food.HourlyDistribution[8], 1e-9)
	assert.InDelta(t, 12.8, food.DailyDistribution[5], 1e-9)

	assert.Empty(t, alice.Categories["Transport"].Items)
	require.Contains(t, alice.Categories, model.UncategorizedCategory)
	assert.Contains(t, alice.Categories[model.UncategorizedCategory].Items, "snack")

	assert.InDelta(t, 0.3, alice.TimeDistribution[model.PeriodMorning], 1e-9)
	assert.InDelta(t, 12.5, alice.TimeDistribution[model.PeriodAfternoon], 1e-9)
	assert.InDelta(t, 40.0, alice.TimeDistribution[model.PeriodEvening], 1e-9)
	assert.InDelta(t, 7.0, alice.TimeDistribution[model.PeriodNight], 1e-9)

	assert.InDelta(t, 100.0, records["bob"].TimeDistribution[model.PeriodNight], 1e-9)
}

func TestAggregator_DayBoundsUseLocation(t *testing.T) {
	colombo, err := time.LoadLocation("Asia/Colombo")
	require.NoError(t, err)
	agg := New(colombo)

	// 20:00 UTC is already the next day in Colombo (+05:30).
	instant := time.Date(2026, 3, 7, 20, 0, 0, 0, time.UTC)
	start, end := agg.DayBounds(instant)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, colombo), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), agg.CalendarDay(instant))

	assert.Equal(t, time.UTC, New(nil).Location())
}

func TestFillMissingDates(t *testing.T) {
	start := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	existing := map[string]bool{"2026-02-27": true, "2026-03-01": true}

	filled := FillMissingDates(start, end, existing)

	var dates []string
	for _, rec := range filled {
		dates = append(dates, rec.Date.Format("2006-01-02"))
		assert.True(t, rec.IsZeroSpendingDay)
		assert.Zero(t, rec.Total)
		assert.Empty(t, rec.Categories)
	}
	assert.Equal(t, []string{"2026-02-26", "2026-02-28", "2026-03-02", "2026-03-03"}, dates)
	assert.Empty(t, FillMissingDates(end, start, nil))
}
