package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spence/internal/aggregate"
	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/forecast"
	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/service"
	"github.com/Veraticus/spence/internal/testutil"
)

var testNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func newTestEngine(t *testing.T) (*Engine, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	f, err := forecast.New(forecast.DefaultConfig(), forecast.WithSeed(11), forecast.WithClock(clock))
	require.NoError(t, err)
	return New(db.Storage, f, aggregate.New(time.UTC), DefaultConfig(), WithClock(clock)), db
}

func expense(userID string, at time.Time, amount float64, category string) model.Transaction {
	txn := model.Transaction{
		ID:       fmt.Sprintf("%s-%d-%.2f", userID, at.Unix(), amount),
		UserID:   userID,
		Date:     at,
		Title:    category + " purchase",
		Amount:   amount,
		Category: category,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

type recordingProgress struct {
	dates []string
	total int
}

func (p *recordingProgress) Advance(date string) { p.dates = append(p.dates, date) }
func (p *recordingProgress) Total(days int)      { p.total = days }

func TestEngine_PredictNextMonth(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	db.SeedHistory("alice", testNow, 120, func(i int, _ time.Time) float64 {
		if i%5 == 0 {
			return 0
		}
		return float64(40 + 10*(i%7))
	})

	pred, err := e.PredictNextMonth(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, pred.Forecast)
	assert.Equal(t, "alice", pred.Forecast.UserID)
	require.Len(t, pred.Forecast.DailyPredictions, 30)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), pred.Forecast.DailyPredictions[0].Date)

	// Only the configured history window is used.
	assert.Equal(t, DefaultConfig().HistoryDays, pred.Forecast.ModelInfo.TrainingPeriod.Days)

	stored, err := db.Storage.GetPrediction(ctx, "alice", PredictionName)
	require.NoError(t, err)
	daily, ok := stored["daily_predictions"].([]any)
	require.True(t, ok)
	assert.Len(t, daily, 30)
	assert.Equal(t, "alice", stored["user_id"])
}

func TestEngine_PredictNextMonthErrors(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	_, err := e.PredictNextMonth(ctx, "")
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = e.PredictNextMonth(ctx, "nobody")
	require.ErrorIs(t, err, common.ErrEmptyInput)

	db.SeedHistory("short", testNow, 3, func(int, time.Time) float64 { return 10 })
	_, err = e.PredictNextMonth(ctx, "short")
	require.ErrorIs(t, err, common.ErrInsufficientData)

	_, err = db.Storage.GetPrediction(ctx, "short", PredictionName)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEngine_AggregateDaily(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	yesterday := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Storage.SaveTransactions(ctx, []model.Transaction{
		expense("alice", yesterday.Add(8*time.Hour), 4.5, "Coffee"),
		expense("alice", yesterday.Add(13*time.Hour), 20, "Lunch"),
		expense("bob", yesterday.Add(19*time.Hour), 60, "Groceries"),
		expense("bob", yesterday.AddDate(0, 0, 1).Add(time.Hour), 999, "Today"),
	}))
	require.NoError(t, db.Storage.SaveDailyAggregates(ctx, "alice", []model.DailyRecord{
		model.NewDailyRecord(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)),
	}))

	result, err := e.AggregateDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DaysProcessed)
	assert.Equal(t, 2, result.RecordsWritten)
	// Window 10-10..10-17: alice misses 6 days, bob misses 7.
	assert.Equal(t, 13, result.ZeroDaysFilled)
	assert.Equal(t, time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC), result.DateRange.Start)

	docs, err := db.Storage.GetDailyAggregates(ctx, "alice", yesterday)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	rec, ok := document.DecodeDailyRecord(docs[0])
	require.True(t, ok)
	assert.InDelta(t, 24.5, rec.Total, 1e-9)
	assert.Equal(t, 2, rec.TransactionCount)
	assert.Contains(t, rec.Categories, "Coffee")

	dates, err := db.Storage.GetAggregateDates(ctx, "bob", result.DateRange.Start, result.DateRange.End)
	require.NoError(t, err)
	assert.Len(t, dates, 8)

	// Re-running overwrites rather than duplicating.
	again, err := e.AggregateDaily(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.ZeroDaysFilled)
}

func TestEngine_AggregateHistorical(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	day := func(month time.Month, d int) time.Time { return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, db.Storage.SaveTransactions(ctx, []model.Transaction{
		expense("alice", day(9, 20).Add(10*time.Hour), 15, "Books"),
		expense("alice", day(10, 1).Add(18*time.Hour), 30, "Dinner"),
		expense("alice", day(10, 5).Add(18*time.Hour), 70, "Dinner"),
		expense("alice", day(9, 1).Add(18*time.Hour), 70, "Too old"),
	}))
	existing := model.NewDailyRecord(day(10, 5))
	existing.Total = 5
	require.NoError(t, db.Storage.SaveDailyAggregates(ctx, "alice", []model.DailyRecord{existing}))

	progress := &recordingProgress{}
	result, err := e.AggregateHistorical(ctx, 1, progress)
	require.NoError(t, err)

	assert.Equal(t, day(9, 18), result.DateRange.Start)
	assert.Equal(t, day(10, 17), result.DateRange.End)
	assert.Equal(t, 30, progress.total)
	assert.Len(t, progress.dates, 30)
	assert.Equal(t, 1, result.DaysSkipped)
	assert.Equal(t, 29, result.DaysProcessed)
	assert.Equal(t, 2, result.RecordsWritten)
	assert.Equal(t, 27, result.ZeroDaysFilled)
	assert.Empty(t, result.Errors)
	assert.Empty(t, SortedErrors(result))

	// The pre-existing aggregate was left alone.
	docs, err := db.Storage.GetDailyAggregates(ctx, "alice", day(10, 5))
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	total, ok := docs[0].Float("total")
	require.True(t, ok)
	assert.InDelta(t, 5.0, total, 1e-9)

	all, err := db.Storage.GetDailyAggregates(ctx, "alice", day(9, 1))
	require.NoError(t, err)
	assert.Len(t, all, 30)
}

func TestEngine_AggregateHistorical_PerUserSkip(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	dinner := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Storage.SaveTransactions(ctx, []model.Transaction{
		expense("alice", dinner.Add(12*time.Hour), 40, "Lunch"),
		expense("bob", dinner.Add(19*time.Hour), 250, "Dinner"),
	}))
	aliceRecord := model.NewDailyRecord(dinner)
	aliceRecord.Total = 5
	require.NoError(t, db.Storage.SaveDailyAggregates(ctx, "alice", []model.DailyRecord{aliceRecord}))

	result, err := e.AggregateHistorical(ctx, 1, nil)
	require.NoError(t, err)
	assert.Zero(t, result.DaysSkipped)
	assert.Equal(t, 30, result.DaysProcessed)
	assert.Equal(t, 1, result.RecordsWritten)

	totalOn := func(userID string) float64 {
		t.Helper()
		docs, err := db.Storage.GetDailyAggregates(ctx, userID, dinner)
		require.NoError(t, err)
		for _, doc := range docs {
			if date, _ := doc["date"].(string); date == dinner.Format(document.DateLayout) {
				total, ok := doc.Float("total")
				require.True(t, ok)
				return total
			}
		}
		t.Fatalf("no aggregate for %s on %s", userID, dinner.Format(document.DateLayout))
		return 0
	}
	assert.InDelta(t, 250.0, totalOn("bob"), 1e-9)
	assert.InDelta(t, 5.0, totalOn("alice"), 1e-9)

	// Running again finds every spending user already aggregated.
	again, err := e.AggregateHistorical(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, again.DaysSkipped)
	assert.Zero(t, again.RecordsWritten)
	assert.Zero(t, again.ZeroDaysFilled)
	assert.InDelta(t, 250.0, totalOn("bob"), 1e-9)
}

func TestEngine_AggregateHistoricalValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.AggregateHistorical(context.Background(), 0, nil)
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.AggregateHistorical(ctx, 1, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSortedErrors(t *testing.T) {
	got := SortedErrors(&service.AggregationResult{Errors: map[string]string{
		"2026-10-02": "boom",
		"2026-09-30": "bang",
	}})
	assert.Equal(t, []string{"2026-09-30", "2026-10-02"}, got)
}
