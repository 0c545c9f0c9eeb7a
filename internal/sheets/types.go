package sheets

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spence/internal/model"
)

// Tab names written by the exporter.
const (
	SummaryTab    = "Summary"
	DailyTab      = "Daily"
	CategoriesTab = "Categories"
)

// DailyRow represents a single row in the Daily tab.
type DailyRow struct {
	Date          time.Time
	Weekday       string
	TopCategories string
	Predicted     decimal.Decimal
	Lower         decimal.Decimal
	Upper         decimal.Decimal
	Confidence    float64
	LikelyZero    bool
	HighValue     bool
}

// CategoryRow represents a single row in the Categories tab.
type CategoryRow struct {
	Category   string
	TopItems   string
	Predicted  decimal.Decimal
	Share      float64
	Confidence float64
}

// ForecastData holds everything written for one forecast.
type ForecastData struct {
	StartDate        time.Time
	EndDate          time.Time
	GeneratedAt      time.Time
	UserID           string
	MonthName        string
	RunID            string
	ModelOrder       string
	Total            decimal.Decimal
	Lower            decimal.Decimal
	Upper            decimal.Decimal
	Daily            []DailyRow
	Categories       []CategoryRow
	Confidence       model.ConfidenceMetrics
	ExpectedZeroDays int
	UsedFallback     bool
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// BuildForecastData flattens a forecast into spreadsheet rows. The monthly
// bounds are the sums of the daily bounds, and categories are ordered by
// predicted amount, largest first.
func BuildForecastData(f *model.Forecast) ForecastData {
	monthly := f.MonthlyPrediction
	data := ForecastData{
		UserID:           f.UserID,
		GeneratedAt:      f.GeneratedAt,
		MonthName:        monthly.MonthName,
		StartDate:        monthly.StartDate,
		EndDate:          monthly.EndDate,
		RunID:            f.ModelInfo.RunID,
		ModelOrder:       f.ModelInfo.SelectedOrder.String(),
		Total:            money(monthly.Total),
		ExpectedZeroDays: monthly.ExpectedZeroSpendingDays,
		Confidence:       monthly.ConfidenceMetrics,
		UsedFallback:     monthly.UsedFallback,
	}

	lower, upper := decimal.Zero, decimal.Zero
	for _, p := range f.DailyPredictions {
		lower = lower.Add(money(p.ConfidenceInterval.Lower))
		upper = upper.Add(money(p.ConfidenceInterval.Upper))
		data.Daily = append(data.Daily, DailyRow{
			Date:          p.Date,
			Weekday:       p.Date.Weekday().String(),
			Predicted:     money(p.PredictedAmount),
			Lower:         money(p.ConfidenceInterval.Lower),
			Upper:         money(p.ConfidenceInterval.Upper),
			LikelyZero:    p.IsLikelyZeroSpending,
			HighValue:     p.DayPattern.IsHighValueDay,
			Confidence:    p.Metadata.ConfidenceScore,
			TopCategories: strings.Join(p.Metadata.LikelyCategories, ", "),
		})
	}

	data.Lower, data.Upper = lower, upper

	for name, c := range f.CategoryPredictions {
		data.Categories = append(data.Categories, CategoryRow{
			Category:   name,
			Predicted:  money(c.PredictedAmount),
			Share:      c.HistoricalShare,
			Confidence: c.Confidence,
			TopItems:   strings.Join(c.TopItems, ", "),
		})
	}
	sort.Slice(data.Categories, func(i, j int) bool {
		if !data.Categories[i].Predicted.Equal(data.Categories[j].Predicted) {
			return data.Categories[i].Predicted.GreaterThan(data.Categories[j].Predicted)
		}
		return data.Categories[i].Category < data.Categories[j].Category
	})

	return data
}
