// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
	GetTransactionCount(ctx context.Context) (int, error)
	ListUsers(ctx context.Context) ([]string, error)

	// Daily aggregate operations
	SaveDailyAggregates(ctx context.Context, userID string, records []model.DailyRecord) error
	GetDailyAggregates(ctx context.Context, userID string, since time.Time) ([]document.Document, error)
	GetAggregateDates(ctx context.Context, userID string, start, end time.Time) (map[string]bool, error)

	// Prediction operations
	SavePrediction(ctx context.Context, userID, name string, generatedAt time.Time, doc document.Document) error
	GetPrediction(ctx context.Context, userID, name string) (document.Document, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction covering the write paths
// that must land atomically.
type Transaction interface {
	Commit() error
	Rollback() error
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	SaveDailyAggregates(ctx context.Context, userID string, records []model.DailyRecord) error
}

// Forecaster produces a next-month forecast from stored aggregate documents.
type Forecaster interface {
	ForecastDocuments(userID string, docs []document.Document) (*model.Forecast, error)
}

// ForecastWriter exports a finished forecast to an external destination.
type ForecastWriter interface {
	WriteForecast(ctx context.Context, forecast *model.Forecast) error
}

// TransactionSource fetches expenses from an upstream provider.
type TransactionSource interface {
	GetTransactions(ctx context.Context, start, end time.Time) ([]model.Transaction, error)
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// AggregationResult summarizes a daily or historical aggregation run.
type AggregationResult struct {
	DateRange      DateRange
	Errors         map[string]string
	DaysProcessed  int
	DaysSkipped    int
	RecordsWritten int
	ZeroDaysFilled int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
