package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/document"
)

// SavePrediction stores a forecast document under (userID, name), replacing
// any previous one.
func (s *SQLiteStorage) SavePrediction(ctx context.Context, userID, name string, generatedAt time.Time, doc document.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (user_id, name, document, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			document = excluded.document,
			generated_at = excluded.generated_at
	`, userID, name, string(payload), generatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// GetPrediction loads a stored forecast document.
func (s *SQLiteStorage) GetPrediction(ctx context.Context, userID, name string) (document.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM predictions WHERE user_id = ? AND name = ?",
		userID, name,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s for %s: %w", name, userID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	var doc document.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("prediction %s for %s: %w", name, userID, common.ErrDatabaseCorrupted)
	}
	return doc, nil
}
