package model

// Range is a low/high band of typical daily spending.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// WeekdayPattern summarizes historical spending on one day of the week.
type WeekdayPattern struct {
	Name                string  `json:"name"`
	TypicalRange        Range   `json:"typical_range"`
	Frequency           float64 `json:"frequency"`
	Average             float64 `json:"average"`
	Std                 float64 `json:"std"`
	RecentFrequency     float64 `json:"recent_frequency"`
	PatternStrength     float64 `json:"pattern_strength"`
	AverageTransactions float64 `json:"average_transactions"`
	Weekday             int     `json:"weekday"`
	Observations        int     `json:"observations"`
	SpendingDays        int     `json:"spending_days"`
	IsHighValueDay      bool    `json:"is_high_value_day"`
}

// ZeroSpendingStats describes runs of consecutive zero-spending days.
type ZeroSpendingStats struct {
	Streaks             []int   `json:"streaks"`
	AverageStreakLength float64 `json:"average_streak_length"`
	ZeroRatio           float64 `json:"zero_ratio"`
	MaxStreakLength     int     `json:"max_streak_length"`
	TotalZeroDays       int     `json:"total_zero_days"`
}

// OverallStats holds global percentiles of spending-day totals.
type OverallStats struct {
	MaxDaily       float64 `json:"max_daily"`
	MedianDaily    float64 `json:"median_daily"`
	Percentile25   float64 `json:"percentile_25"`
	Percentile75   float64 `json:"percentile_75"`
	TypicalHigh    float64 `json:"typical_high"`
	TypicalLow     float64 `json:"typical_low"`
	AverageNonZero float64 `json:"average_non_zero"`
	AverageDaily   float64 `json:"average_daily"`
	RecentAverage  float64 `json:"recent_average"`
	TotalDays      int     `json:"total_days"`
	SpendingDays   int     `json:"spending_days"`
}

// ItemStats tracks purchases of a single item within a category.
type ItemStats struct {
	LastPurchase string  `json:"last_purchase"`
	Count        int     `json:"count"`
	Total        float64 `json:"total"`
	Average      float64 `json:"average"`
}

// CategorySummary is the persisted view of a category's learned behavior.
type CategorySummary struct {
	Items            map[string]ItemStats   `json:"items"`
	Correlations     map[string]float64     `json:"correlations"`
	TimeDistribution map[TimePeriod]float64 `json:"time_distribution"`
	WeekdayCounts    [7]int                 `json:"weekday_counts"`
	Total            float64                `json:"total"`
	Share            float64                `json:"share"`
	Confidence       float64                `json:"confidence"`
	Count            int                    `json:"count"`
	ActiveDays       int                    `json:"active_days"`
	RecentDays       int                    `json:"recent_days"`
}

// SpendingPatterns is the pattern section of a forecast document.
type SpendingPatterns struct {
	Categories   map[string]CategorySummary `json:"categories"`
	Weekdays     [7]WeekdayPattern          `json:"weekday_patterns"`
	ZeroSpending ZeroSpendingStats          `json:"zero_spending"`
	Overall      OverallStats               `json:"overall_stats"`
}
