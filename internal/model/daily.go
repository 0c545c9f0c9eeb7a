package model

import "time"

// TimePeriod is a coarse time-of-day bucket.
type TimePeriod string

const (
	// PeriodMorning covers 05:00-11:59.
	PeriodMorning TimePeriod = "morning"
	// PeriodAfternoon covers 12:00-16:59.
	PeriodAfternoon TimePeriod = "afternoon"
	// PeriodEvening covers 17:00-20:59.
	PeriodEvening TimePeriod = "evening"
	// PeriodNight covers 21:00-04:59.
	PeriodNight TimePeriod = "night"
)

// TimePeriods lists every period in display order.
var TimePeriods = []TimePeriod{PeriodMorning, PeriodAfternoon, PeriodEvening, PeriodNight}

// PeriodForHour maps an hour of the day (0-23) to its period.
func PeriodForHour(hour int) TimePeriod {
	switch {
	case hour >= 5 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 17:
		return PeriodAfternoon
	case hour >= 17 && hour < 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}

// WeekdayIndex returns the day of week with Monday as 0 and Sunday as 6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	return WeekdayIndex(t) >= 5
}

// WeekOfMonth returns 1 for days 1-7, 2 for days 8-14, and so on.
func WeekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// WeekdayNames indexes day names by WeekdayIndex.
var WeekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ItemAggregate accumulates spending on a single item title.
type ItemAggregate struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// CategoryAggregate holds one day's spending within a category.
type CategoryAggregate struct {
	Items              map[string]ItemAggregate `json:"items"`
	Total              float64                  `json:"total"`
	Count              int                      `json:"count"`
	HourlyDistribution [24]float64              `json:"hourly_distribution"`
	DailyDistribution  [7]float64               `json:"daily_distribution"`
}

// DailyRecord is the aggregated spending of one user on one calendar day.
type DailyRecord struct {
	Date               time.Time
	Categories         map[string]CategoryAggregate
	TimeDistribution   map[TimePeriod]float64
	Total              float64
	AverageTransaction float64
	TransactionCount   int
	DayOfWeek          int
	WeekOfMonth        int
	IsWeekend          bool
	IsZeroSpendingDay  bool
}

// NewDailyRecord returns an empty record for date with derived calendar fields set.
func NewDailyRecord(date time.Time) DailyRecord {
	return DailyRecord{
		Date:              date,
		Categories:        make(map[string]CategoryAggregate),
		TimeDistribution:  make(map[TimePeriod]float64),
		DayOfWeek:         WeekdayIndex(date),
		WeekOfMonth:       WeekOfMonth(date),
		IsWeekend:         IsWeekend(date),
		IsZeroSpendingDay: true,
	}
}
