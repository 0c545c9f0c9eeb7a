// Package testutil provides test utilities for spence: an isolated database
// and builders for aggregate history.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/service"
	"github.com/Veraticus/spence/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new migrated in-memory test database that is closed
// when the test finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Path           string // defaults to an in-memory database
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	path := opts.Path
	if path == "" {
		path = ":memory:"
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// SeedHistory stores days of single-category aggregates for userID, ending
// the day before end. amount receives the day index and date.
func (db *TestDB) SeedHistory(userID string, end time.Time, days int, amount func(i int, day time.Time) float64) []model.DailyRecord {
	db.t.Helper()

	start := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
	records := make([]model.DailyRecord, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		rec := model.NewDailyRecord(day)
		total := amount(i, day)
		rec.Total = total
		rec.IsZeroSpendingDay = total == 0
		if total > 0 {
			rec.TransactionCount = 1
			rec.AverageTransaction = total
			rec.Categories["Groceries"] = model.CategoryAggregate{
				Total: total,
				Count: 1,
				Items: map[string]model.ItemAggregate{"market": {Count: 1, Total: total}},
			}
			rec.TimeDistribution[model.PeriodEvening] = total
		}
		records = append(records, rec)
	}

	if err := db.Storage.SaveDailyAggregates(context.Background(), userID, records); err != nil {
		db.t.Fatalf("failed to seed history: %v", err)
	}
	return records
}
