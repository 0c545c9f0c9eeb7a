package forecast

import (
	"fmt"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/model"
)

// Config holds the tunable constants of the forecasting pipeline.
type Config struct {
	FallbackOrder           model.ModelOrder
	ZeroEpsilon             float64
	LagFraction             float64
	CoefficientThreshold    float64
	HighValueMultiplier     float64
	HighValueMinFrequency   float64
	CorrelationThreshold    float64
	BaselineZeroProbability float64
	MaxZeroProbability      float64
	WeekendZeroFactor       float64
	MidMonthZeroFactor      float64
	Jitter                  float64
	ConfidenceLevel         float64
	MinRecords              int
	Horizon                 int
	GapFillWindow           int
	RecentWindow            int
	MaxLags                 int
	MinCorrelationDays      int
	TypicalRangeMinSamples  int
	LikelyCategories        int
	LikelyItems             int
}

// DefaultConfig returns the production forecasting constants.
func DefaultConfig() Config {
	return Config{
		FallbackOrder:           model.ModelOrder{P: 1, D: 1, Q: 1},
		ZeroEpsilon:             0.01,
		LagFraction:             0.3,
		CoefficientThreshold:    0.2,
		HighValueMultiplier:     1.3,
		HighValueMinFrequency:   0.4,
		CorrelationThreshold:    0.3,
		BaselineZeroProbability: 0.1,
		MaxZeroProbability:      0.6,
		WeekendZeroFactor:       0.5,
		MidMonthZeroFactor:      0.7,
		Jitter:                  0.12,
		ConfidenceLevel:         0.95,
		MinRecords:              7,
		Horizon:                 30,
		GapFillWindow:           7,
		RecentWindow:            14,
		MaxLags:                 7,
		MinCorrelationDays:      3,
		TypicalRangeMinSamples:  4,
		LikelyCategories:        5,
		LikelyItems:             3,
	}
}

// Validate checks that the configuration can drive a forecast.
func (c Config) Validate() error {
	if c.MinRecords < 1 {
		return fmt.Errorf("%w: min records must be positive, got %d", common.ErrInvalidConfig, c.MinRecords)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("%w: horizon must be positive, got %d", common.ErrInvalidConfig, c.Horizon)
	}
	if c.GapFillWindow < 1 || c.RecentWindow < 1 {
		return fmt.Errorf("%w: gap fill and recent windows must be positive", common.ErrInvalidConfig)
	}
	if c.MaxLags < 1 || c.LagFraction <= 0 || c.LagFraction > 1 {
		return fmt.Errorf("%w: invalid lag settings", common.ErrInvalidConfig)
	}
	if c.ZeroEpsilon <= 0 {
		return fmt.Errorf("%w: zero epsilon must be positive", common.ErrInvalidConfig)
	}
	for name, p := range map[string]float64{
		"baseline zero probability": c.BaselineZeroProbability,
		"max zero probability":      c.MaxZeroProbability,
		"jitter":                    c.Jitter,
	} {
		if p < 0 || p >= 1 {
			return fmt.Errorf("%w: %s must be in [0, 1), got %.2f", common.ErrInvalidConfig, name, p)
		}
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("%w: confidence level must be in (0, 1), got %.2f", common.ErrInvalidConfig, c.ConfidenceLevel)
	}
	if c.FallbackOrder.P < 0 || c.FallbackOrder.Q < 0 || c.FallbackOrder.D < 0 {
		return fmt.Errorf("%w: fallback order must be non-negative", common.ErrInvalidConfig)
	}
	return nil
}
