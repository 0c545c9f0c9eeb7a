package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/model"
)

// SaveDailyAggregates upserts daily records for a user, keyed by date.
func (s *SQLiteStorage) SaveDailyAggregates(ctx context.Context, userID string, records []model.DailyRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateDailyRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveDailyAggregatesTx(ctx, tx, userID, records); err != nil {
		return err
	}

	return tx.Commit()
}

func saveDailyAggregatesTx(ctx context.Context, tx *sql.Tx, userID string, records []model.DailyRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_aggregates (user_id, date, document, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, date) DO UPDATE SET
			document = excluded.document,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		payload, err := json.Marshal(document.EncodeDailyRecord(rec))
		if err != nil {
			return fmt.Errorf("failed to encode aggregate for %s: %w", rec.Date.Format(document.DateLayout), err)
		}
		if _, err := stmt.ExecContext(ctx, userID, rec.Date.Format(document.DateLayout), string(payload)); err != nil {
			return fmt.Errorf("failed to save aggregate for %s: %w", rec.Date.Format(document.DateLayout), err)
		}
	}
	return nil
}

// GetDailyAggregates returns the stored aggregate documents for a user dated
// on or after since, oldest first. Rows that fail to decode are skipped.
func (s *SQLiteStorage) GetDailyAggregates(ctx context.Context, userID string, since time.Time) ([]document.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, document FROM daily_aggregates
		WHERE user_id = ? AND date >= ?
		ORDER BY date ASC
	`, userID, since.Format(document.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []document.Document
	for rows.Next() {
		var date, payload string
		if err := rows.Scan(&date, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan daily aggregate: %w", err)
		}
		var doc document.Document
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			slog.Warn("Skipping unreadable daily aggregate", "user_id", userID, "date", date, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily aggregates: %w", err)
	}
	return docs, nil
}

// GetAggregateDates returns the set of dates in [start, end] that already have
// an aggregate. An empty userID matches any user.
func (s *SQLiteStorage) GetAggregateDates(ctx context.Context, userID string, start, end time.Time) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}

	query := `SELECT DISTINCT date FROM daily_aggregates WHERE date >= ? AND date <= ?`
	args := []any{start.Format(document.DateLayout), end.Format(document.DateLayout)}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dates := make(map[string]bool)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate date: %w", err)
		}
		dates[date] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate dates: %w", err)
	}
	return dates, nil
}
