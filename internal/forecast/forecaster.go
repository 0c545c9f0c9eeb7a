// Package forecast predicts a user's daily and monthly spending from their
// aggregated daily history.
//
// The pipeline preprocesses history into a gap-free series, learns weekday and
// category patterns, fits an ARIMA model under an automatically selected
// order, and blends the statistical forecast with the learned patterns. Zero
// spending days and high-value jitter are drawn from an injected random
// source, so runs are reproducible only under a fixed seed.
package forecast

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/model"
)

// Forecaster runs the forecasting pipeline. It is safe for concurrent use.
type Forecaster struct {
	rng    *rand.Rand
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location // zone the current day-of-month is read in
	newID  func() string
	cfg    Config
	mu     sync.Mutex // guards rng
}

// Option configures a Forecaster.
type Option func(*Forecaster)

// WithRand sets the random source used for zero-day and jitter draws.
func WithRand(r *rand.Rand) Option {
	return func(f *Forecaster) { f.rng = r }
}

// WithSeed seeds a deterministic random source.
func WithSeed(seed uint64) Option {
	return func(f *Forecaster) { f.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Forecaster) { f.logger = common.Component(logger, "forecast") }
}

// WithClock sets the clock used to pick the target month.
func WithClock(now func() time.Time) Option {
	return func(f *Forecaster) { f.now = now }
}

// WithLocation sets the zone used to decide which calendar day "now" is.
func WithLocation(loc *time.Location) Option {
	return func(f *Forecaster) { f.loc = loc }
}

// New creates a Forecaster.
func New(cfg Config, opts ...Option) (*Forecaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Forecaster{
		cfg:    cfg,
		logger: common.Component(nil, "forecast"),
		now:    time.Now,
		loc:    time.Local,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		seed := uint64(time.Now().UnixNano())
		f.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return f, nil
}

// TargetMonth returns the first day of the month to forecast: the current
// month during its first week, the next month afterwards.
func TargetMonth(now time.Time) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if now.Day() <= 7 {
		return first
	}
	return first.AddDate(0, 1, 0)
}

func (f *Forecaster) targetMonth() time.Time {
	now := f.now()
	if f.loc != nil {
		now = now.In(f.loc)
	}
	return TargetMonth(now)
}

// ForecastDocuments decodes stored daily aggregates and forecasts from them.
func (f *Forecaster) ForecastDocuments(userID string, docs []document.Document) (*model.Forecast, error) {
	return f.Forecast(userID, DecodeRecords(docs))
}

// Forecast predicts the target month for one user's history.
func (f *Forecaster) Forecast(userID string, records []model.DailyRecord) (*model.Forecast, error) {
	series, err := Preprocess(records, f.cfg)
	if err != nil {
		return nil, err
	}
	patterns := Analyze(series, f.cfg)

	totals := series.Totals()
	selected, err := SelectOrder(totals, f.cfg)
	if err != nil {
		f.logger.Debug("Order selection failed, using safe order", "error", err, "order", selected)
	}

	fit, usedFallback, err := f.fit(totals, selected)
	if err != nil {
		return nil, err
	}

	start := f.targetMonth()
	points, intervals := fit.Forecast(f.cfg.Horizon, f.cfg.ConfidenceLevel)

	f.mu.Lock()
	gen := &generator{rng: f.rng, patterns: patterns, logger: f.logger, cfg: f.cfg}
	daily := gen.predictDays(start, points, intervals)
	f.mu.Unlock()

	monthly := AggregateMonth(daily, patterns, f.cfg)
	monthly.ConfidenceMetrics = ConfidenceMetrics(daily, patterns, series)
	if monthly.UsedFallback {
		f.logger.Info("Daily predictions summed to zero, using historical average",
			"user_id", userID, "total", monthly.Total)
	}

	result := &model.Forecast{
		UserID:              userID,
		GeneratedAt:         f.now().UTC(),
		MonthlyPrediction:   monthly,
		DailyPredictions:    daily,
		CategoryPredictions: CategoryPredictions(monthly.Total, patterns, f.cfg),
		SpendingPatterns: model.SpendingPatterns{
			Weekdays:     patterns.Weekdays,
			ZeroSpending: patterns.ZeroSpending,
			Overall:      patterns.Overall,
			Categories:   categorySummaries(patterns.Categories, f.cfg.RecentWindow),
		},
		ModelInfo: model.ModelInfo{
			RunID:             f.newID(),
			Parameters:        fit.Order,
			SelectedOrder:     selected,
			AICScore:          fit.AIC,
			Sigma2:            fit.Sigma2,
			UsedFallbackOrder: usedFallback,
			TrainingPeriod: model.TrainingPeriod{
				Start: series.Start(),
				End:   series.End(),
				Days:  series.Len(),
			},
		},
	}

	f.logger.Info("Forecast generated",
		"user_id", userID,
		"month", monthly.MonthName,
		"total", monthly.Total,
		"order", fit.Order,
		"aic", fit.AIC,
		"history_days", series.Len())
	return result, nil
}

// fit tries the selected order, then the fallback order once.
func (f *Forecaster) fit(totals []float64, order model.ModelOrder) (*ARIMA, bool, error) {
	m, err := FitARIMA(totals, order)
	if err == nil {
		return m, false, nil
	}
	if order == f.cfg.FallbackOrder {
		return nil, false, newError(KindModelFit, err, "fitting ARIMA%s", order)
	}

	f.logger.Warn("Model fit failed, retrying with fallback order",
		"order", order, "fallback", f.cfg.FallbackOrder, "error", err)
	m, fallbackErr := FitARIMA(totals, f.cfg.FallbackOrder)
	if fallbackErr != nil {
		return nil, true, newError(KindModelFit, errors.Join(err, fallbackErr),
			"fitting ARIMA%s and fallback ARIMA%s", order, f.cfg.FallbackOrder)
	}
	return m, true, nil
}
