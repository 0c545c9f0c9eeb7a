// Package engine orchestrates aggregation and forecasting over stored data.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/spence/internal/aggregate"
	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/service"
)

// PredictionName is the key the next-month forecast is stored under.
const PredictionName = "next_month"

// Config holds configuration options for the engine.
type Config struct {
	HistoryDays    int
	FillWindowDays int // days before yesterday checked for missing records
	DaysPerMonth   int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HistoryDays:    60,
		FillWindowDays: 7,
		DaysPerMonth:   30,
	}
}

// Engine wires storage, aggregation and forecasting together.
type Engine struct {
	storage    service.Storage
	forecaster service.Forecaster
	aggregator Aggregator
	logger     *slog.Logger
	now        func() time.Time
	cfg        Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to find "yesterday" and the history window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = common.Component(logger, "engine") }
}

// New creates an engine with the given dependencies.
func New(storage service.Storage, forecaster service.Forecaster, aggregator Aggregator, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		storage:    storage,
		forecaster: forecaster,
		aggregator: aggregator,
		logger:     common.Component(nil, "engine"),
		now:        time.Now,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prediction is a finished forecast alongside its stored document form.
type Prediction struct {
	Forecast *model.Forecast
	Document document.Document
}

// PredictNextMonth forecasts the target month for userID from the last
// HistoryDays of aggregates and stores the result.
func (e *Engine) PredictNextMonth(ctx context.Context, userID string) (*Prediction, error) {
	if userID == "" {
		return nil, common.NewUserError("user id is required", common.ErrInvalidRequest)
	}

	since := e.aggregator.CalendarDay(e.now()).AddDate(0, 0, -e.cfg.HistoryDays)
	docs, err := e.storage.GetDailyAggregates(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily aggregates: %w", err)
	}
	e.logger.Info("Generating prediction", "user_id", userID, "records", len(docs), "since", since.Format(document.DateLayout))

	forecast, err := e.forecaster.ForecastDocuments(userID, docs)
	if err != nil {
		return nil, err
	}

	doc := document.ToDocument(forecast)
	if err := e.storage.SavePrediction(ctx, userID, PredictionName, forecast.GeneratedAt, doc); err != nil {
		return nil, fmt.Errorf("failed to save prediction: %w", err)
	}

	e.logger.Info("Prediction stored",
		"user_id", userID,
		"monthly_total", forecast.MonthlyPrediction.Total,
		"order", forecast.ModelInfo.SelectedOrder.String(),
		"run_id", forecast.ModelInfo.RunID)

	return &Prediction{Forecast: forecast, Document: doc}, nil
}

// AggregateDate aggregates one calendar day for every user and returns the
// number of records written. Days without transactions write nothing.
func (e *Engine) AggregateDate(ctx context.Context, date time.Time) (int, error) {
	written, _, err := e.aggregateUsers(ctx, date, nil)
	return written, err
}

// aggregateUsers aggregates one calendar day, leaving out users for whom
// skip reports true. It returns the records written and whether any user
// with transactions on the day was left out.
func (e *Engine) aggregateUsers(ctx context.Context, date time.Time, skip func(userID string) bool) (int, bool, error) {
	start, end := e.aggregator.DayBounds(date)
	txns, err := e.storage.GetTransactionsByDateRange(ctx, start, end)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load transactions: %w", err)
	}
	records := e.aggregator.AggregateDay(date, txns)

	skipped := false
	for userID := range records {
		if skip != nil && skip(userID) {
			delete(records, userID)
			skipped = true
		}
	}
	if len(records) == 0 {
		return 0, skipped, nil
	}

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return 0, skipped, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, userID := range aggregate.Users(records) {
		if err := tx.SaveDailyAggregates(ctx, userID, []model.DailyRecord{records[userID]}); err != nil {
			return 0, skipped, fmt.Errorf("failed to save aggregate for %s: %w", userID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, skipped, fmt.Errorf("failed to commit aggregates: %w", err)
	}
	return len(records), skipped, nil
}

// AggregateDaily aggregates yesterday and fills zero records for any day from
// FillWindowDays before yesterday through yesterday that a user is missing.
func (e *Engine) AggregateDaily(ctx context.Context) (*service.AggregationResult, error) {
	yesterday := e.aggregator.CalendarDay(e.now()).AddDate(0, 0, -1)
	windowStart := yesterday.AddDate(0, 0, -e.cfg.FillWindowDays)

	result := &service.AggregationResult{
		DateRange: service.DateRange{Start: windowStart, End: yesterday},
		Errors:    make(map[string]string),
	}

	written, err := e.AggregateDate(ctx, yesterday)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", yesterday.Format(document.DateLayout), err)
	}
	result.DaysProcessed = 1
	result.RecordsWritten = written

	filled, err := e.fillMissing(ctx, windowStart, yesterday, nil)
	if err != nil {
		return nil, err
	}
	result.ZeroDaysFilled = filled

	e.logger.Info("Daily aggregation complete",
		"date", yesterday.Format(document.DateLayout),
		"records", written,
		"zero_days_filled", filled)
	return result, nil
}

// AggregateHistorical back-fills months*DaysPerMonth days ending yesterday.
// A user's existing aggregate for a date is never rewritten; a date is
// skipped only when every user who spent that day already has one.
// Per-date failures are collected rather than aborting the run, and failed
// dates are not zero-filled.
func (e *Engine) AggregateHistorical(ctx context.Context, months int, progress Progress) (*service.AggregationResult, error) {
	if months < 1 {
		return nil, common.NewUserError("months must be at least 1", common.ErrInvalidRequest)
	}

	end := e.aggregator.CalendarDay(e.now()).AddDate(0, 0, -1)
	days := months * e.cfg.DaysPerMonth
	start := end.AddDate(0, 0, -(days - 1))

	existing, err := e.aggregateDatesByUser(ctx, start, end)
	if err != nil {
		return nil, err
	}

	result := &service.AggregationResult{
		DateRange: service.DateRange{Start: start, End: end},
		Errors:    make(map[string]string),
	}
	if progress != nil {
		progress.Total(days)
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		key := day.Format(document.DateLayout)
		if progress != nil {
			progress.Advance(key)
		}

		written, skipped, err := e.aggregateUsers(ctx, day, func(userID string) bool {
			return existing[userID][key]
		})
		if err != nil {
			e.logger.Warn("Failed to aggregate date", "date", key, "error", err)
			result.Errors[key] = err.Error()
			continue
		}
		if skipped && written == 0 {
			result.DaysSkipped++
			continue
		}
		result.DaysProcessed++
		result.RecordsWritten += written
	}

	failed := make(map[string]bool, len(result.Errors))
	for key := range result.Errors {
		failed[key] = true
	}
	filled, err := e.fillMissing(ctx, start, end, failed)
	if err != nil {
		return result, err
	}
	result.ZeroDaysFilled = filled

	e.logger.Info("Historical aggregation complete",
		"start", start.Format(document.DateLayout),
		"end", end.Format(document.DateLayout),
		"processed", result.DaysProcessed,
		"skipped", result.DaysSkipped,
		"errors", len(result.Errors))
	return result, nil
}

// aggregateDatesByUser returns, per known user, the dates in [start, end]
// that already have an aggregate.
func (e *Engine) aggregateDatesByUser(ctx context.Context, start, end time.Time) (map[string]map[string]bool, error) {
	users, err := e.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	byUser := make(map[string]map[string]bool, len(users))
	for _, userID := range users {
		dates, err := e.storage.GetAggregateDates(ctx, userID, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing aggregates for %s: %w", userID, err)
		}
		byUser[userID] = dates
	}
	return byUser, nil
}

// fillMissing writes zero-spending records for every known user's absent
// dates in [start, end], leaving out the dates in exclude.
func (e *Engine) fillMissing(ctx context.Context, start, end time.Time, exclude map[string]bool) (int, error) {
	users, err := e.storage.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	filled := 0
	for _, userID := range users {
		existing, err := e.storage.GetAggregateDates(ctx, userID, start, end)
		if err != nil {
			return filled, fmt.Errorf("failed to load aggregate dates for %s: %w", userID, err)
		}
		if existing == nil {
			existing = make(map[string]bool, len(exclude))
		}
		for key := range exclude {
			existing[key] = true
		}
		zeros := aggregate.FillMissingDates(start, end, existing)
		if len(zeros) == 0 {
			continue
		}
		if err := e.storage.SaveDailyAggregates(ctx, userID, zeros); err != nil {
			return filled, fmt.Errorf("failed to fill missing dates for %s: %w", userID, err)
		}
		filled += len(zeros)
	}
	return filled, nil
}

// SortedErrors returns the failed dates of a result in order.
func SortedErrors(result *service.AggregationResult) []string {
	dates := make([]string, 0, len(result.Errors))
	for date := range result.Errors {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
