package model

import (
	"fmt"
	"time"
)

// Interval is a lower/upper bound around a point forecast.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// DayPattern is the weekday pattern snapshot attached to a daily prediction.
type DayPattern struct {
	TypicalRange           Range   `json:"typical_range"`
	Frequency              float64 `json:"frequency"`
	Average                float64 `json:"average"`
	RecentFrequency        float64 `json:"recent_frequency"`
	PatternStrength        float64 `json:"pattern_strength"`
	ZeroProbability        float64 `json:"zero_probability"`
	RelativeToMedian       float64 `json:"relative_to_median"`
	RelativeToMax          float64 `json:"relative_to_max"`
	Weekday                int     `json:"weekday"`
	IsHighValueDay         bool    `json:"is_high_value_day"`
	IsTypicallyLowSpending bool    `json:"is_typically_low_spending"`
}

// CategoryShare is one category's slice of a day's predicted amount.
type CategoryShare struct {
	TimeDistribution map[TimePeriod]float64 `json:"time_distribution"`
	LikelyItems      []string               `json:"likely_items"`
	PredictedAmount  float64                `json:"predicted_amount"`
	Share            float64                `json:"share"`
}

// PredictionMetadata carries supporting detail for a daily prediction.
type PredictionMetadata struct {
	LikelyCategories     []string `json:"likely_categories"`
	ConfidenceScore      float64  `json:"confidence_score"`
	ModelForecast        float64  `json:"model_forecast"`
	ExpectedTransactions int      `json:"expected_transactions"`
	WeekOfMonth          int      `json:"week_of_month"`
	IsWeekend            bool     `json:"is_weekend"`
}

// DailyPrediction is the forecast for one future calendar day.
type DailyPrediction struct {
	Date                 time.Time                `json:"date"`
	CategoryBreakdown    map[string]CategoryShare `json:"category_breakdown"`
	TimeDistribution     map[TimePeriod]float64   `json:"time_distribution"`
	ConfidenceInterval   Interval                 `json:"confidence_interval"`
	DayPattern           DayPattern               `json:"day_pattern"`
	Metadata             PredictionMetadata       `json:"metadata"`
	PredictedAmount      float64                  `json:"predicted_amount"`
	IsLikelyZeroSpending bool                     `json:"is_likely_zero_spending"`
}

// ConfidenceMetrics are composite 0-1 scores for a whole forecast.
type ConfidenceMetrics struct {
	Overall                float64 `json:"overall"`
	AverageDailyConfidence float64 `json:"average_daily_confidence"`
	AveragePatternStrength float64 `json:"average_pattern_strength"`
	DataQuality            float64 `json:"data_quality"`
}

// MonthlyPrediction sums the daily predictions for the target month.
type MonthlyPrediction struct {
	StartDate                time.Time              `json:"start_date"`
	EndDate                  time.Time              `json:"end_date"`
	CategoryBreakdown        map[string]float64     `json:"category_breakdown"`
	TimeDistribution         map[TimePeriod]float64 `json:"time_distribution"`
	MonthName                string                 `json:"month_name"`
	ConfidenceMetrics        ConfidenceMetrics      `json:"confidence_metrics"`
	Total                    float64                `json:"total"`
	ExpectedZeroSpendingDays int                    `json:"expected_zero_spending_days"`
	UsedFallback             bool                   `json:"used_fallback"`
}

// CategoryPrediction is a category's share of the monthly total.
type CategoryPrediction struct {
	TopItems        []string `json:"top_items"`
	PredictedAmount float64  `json:"predicted_amount"`
	HistoricalShare float64  `json:"historical_share"`
	Confidence      float64  `json:"confidence"`
}

// ModelOrder is an ARIMA (p, d, q) order.
type ModelOrder struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

func (o ModelOrder) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// TrainingPeriod is the calendar window the model was fitted on.
type TrainingPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// ModelInfo records how a forecast was produced.
type ModelInfo struct {
	RunID             string         `json:"run_id"`
	TrainingPeriod    TrainingPeriod `json:"training_period"`
	Parameters        ModelOrder     `json:"parameters"`
	SelectedOrder     ModelOrder     `json:"selected_order"`
	AICScore          float64        `json:"aic_score"`
	Sigma2            float64        `json:"sigma2"`
	UsedFallbackOrder bool           `json:"used_fallback_order"`
}

// Forecast is the complete output of one forecast run.
type Forecast struct {
	GeneratedAt         time.Time                     `json:"generated_at"`
	CategoryPredictions map[string]CategoryPrediction `json:"category_predictions"`
	UserID              string                        `json:"user_id"`
	DailyPredictions    []DailyPrediction             `json:"daily_predictions"`
	SpendingPatterns    SpendingPatterns              `json:"spending_patterns"`
	ModelInfo           ModelInfo                     `json:"model_info"`
	MonthlyPrediction   MonthlyPrediction             `json:"monthly_prediction"`
}
