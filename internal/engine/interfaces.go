package engine

import (
	"time"

	"github.com/Veraticus/spence/internal/model"
)

// Progress receives per-day updates during a historical back-fill.
type Progress interface {
	Advance(date string)
	Total(days int)
}

// Aggregator turns one calendar day of transactions into per-user records.
type Aggregator interface {
	AggregateDay(date time.Time, txns []model.Transaction) map[string]model.DailyRecord
	DayBounds(date time.Time) (time.Time, time.Time)
	CalendarDay(t time.Time) time.Time
}
