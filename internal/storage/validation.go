// Package storage provides the data persistence layer for spence.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/spence/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidAggregate   = errors.New("invalid daily aggregate")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateDateRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if math.IsNaN(txn.Amount) || math.IsInf(txn.Amount, 0) {
		return fmt.Errorf("%w: amount is not finite", ErrInvalidTransaction)
	}
	return nil
}

// validateDailyRecords validates daily aggregates before they are persisted.
func validateDailyRecords(records []model.DailyRecord) error {
	if records == nil {
		return fmt.Errorf("%w: records", ErrNilParameter)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: records", ErrEmptySlice)
	}
	for i, rec := range records {
		if rec.Date.IsZero() {
			return fmt.Errorf("record at index %d: %w: missing date", i, ErrInvalidAggregate)
		}
		if math.IsNaN(rec.Total) || math.IsInf(rec.Total, 0) {
			return fmt.Errorf("record at index %d: %w: total is not finite", i, ErrInvalidAggregate)
		}
	}
	return nil
}
