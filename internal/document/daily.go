package document

import (
	"github.com/Veraticus/spence/internal/model"
)

// EncodeDailyRecord renders a daily record in the stored aggregate layout, with
// breakdowns nested under metadata.
func EncodeDailyRecord(rec model.DailyRecord) Document {
	return ToDocument(map[string]any{
		"date":  rec.Date.Format(DateLayout),
		"total": rec.Total,
		"metadata": map[string]any{
			"transaction_count":    rec.TransactionCount,
			"average_transaction":  rec.AverageTransaction,
			"day_of_week":          rec.DayOfWeek,
			"is_weekend":           rec.IsWeekend,
			"week_of_month":        rec.WeekOfMonth,
			"is_zero_spending_day": rec.IsZeroSpendingDay,
			"categories":           rec.Categories,
			"time_distribution":    rec.TimeDistribution,
		},
	})
}

// DecodeDailyRecord reads a stored aggregate. Only the date is required: a
// missing or invalid total decodes as 0 and malformed category metadata is
// skipped. Calendar fields are always derived from the date.
func DecodeDailyRecord(doc Document) (model.DailyRecord, bool) {
	if doc == nil {
		return model.DailyRecord{}, false
	}
	date, ok := Date(doc["date"])
	if !ok {
		return model.DailyRecord{}, false
	}

	rec := model.NewDailyRecord(date)
	if total, ok := doc.Float("total"); ok {
		rec.Total = total
	}
	if v, ok := doc.Lookup("transaction_count"); ok {
		if n, ok := Int(v); ok && n > 0 {
			rec.TransactionCount = n
		}
	}
	if v, ok := doc.Lookup("average_transaction"); ok {
		if f, ok := Float(v); ok {
			rec.AverageTransaction = f
		}
	} else if rec.TransactionCount > 0 {
		rec.AverageTransaction = rec.Total / float64(rec.TransactionCount)
	}
	rec.IsZeroSpendingDay = rec.Total == 0

	if v, ok := doc.Lookup("categories"); ok {
		if cats, ok := Map(v); ok {
			for name, raw := range cats {
				if agg, ok := decodeCategory(raw); ok {
					rec.Categories[name] = agg
				}
			}
		}
	}
	if v, ok := doc.Lookup("time_distribution"); ok {
		if dist, ok := Map(v); ok {
			for _, period := range model.TimePeriods {
				if f, ok := dist.Float(string(period)); ok {
					rec.TimeDistribution[period] = f
				}
			}
		}
	}
	return rec, true
}

func decodeCategory(raw any) (model.CategoryAggregate, bool) {
	m, ok := Map(raw)
	if !ok {
		return model.CategoryAggregate{}, false
	}
	agg := model.CategoryAggregate{Items: make(map[string]model.ItemAggregate)}
	agg.Total, _ = m.Float("total")
	agg.Count, _ = m.Int("count")

	if items, ok := m.Map("items"); ok {
		for name, rawItem := range items {
			item, ok := Map(rawItem)
			if !ok {
				continue
			}
			count, _ := item.Int("count")
			total, _ := item.Float("total")
			agg.Items[name] = model.ItemAggregate{Count: count, Total: total}
		}
	}
	if hourly, ok := List(m["hourly_distribution"]); ok {
		for i, v := range hourly {
			if i >= len(agg.HourlyDistribution) {
				break
			}
			agg.HourlyDistribution[i], _ = Float(v)
		}
	}
	if daily, ok := List(m["daily_distribution"]); ok {
		for i, v := range daily {
			if i >= len(agg.DailyDistribution) {
				break
			}
			agg.DailyDistribution[i], _ = Float(v)
		}
	}
	if agg.Total == 0 && len(agg.Items) > 0 {
		for _, item := range agg.Items {
			agg.Total += item.Total
		}
	}
	if agg.Count < len(agg.Items) {
		agg.Count = len(agg.Items)
	}
	return agg, true
}
