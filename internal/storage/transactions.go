package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/spence/internal/model"
)

// SaveTransactions saves multiple transactions to the database. Transactions
// whose hash is already stored are skipped.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, hash, user_id, date, title, merchant_name,
			amount, category, account_id, transaction_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash,
			txn.UserID,
			txn.Date.UTC(),
			txn.Title,
			txn.MerchantName,
			txn.Amount,
			txn.Category,
			txn.AccountID,
			txn.Type,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return nil
}

// GetTransactionsByDateRange returns transactions with start <= date < end,
// oldest first.
func (s *SQLiteStorage) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, user_id, date, title, merchant_name,
		       amount, category, account_id, transaction_type
		FROM transactions
		WHERE date >= ? AND date < ?
		ORDER BY date ASC, id ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var title, merchant, category, account, txType sql.NullString

		if err := rows.Scan(
			&txn.ID,
			&txn.Hash,
			&txn.UserID,
			&txn.Date,
			&title,
			&merchant,
			&txn.Amount,
			&category,
			&account,
			&txType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		txn.Title = title.String
		txn.MerchantName = merchant.String
		txn.Category = category.String
		txn.AccountID = account.String
		txn.Type = txType.String
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// GetTransactionCount returns the number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ListUsers returns every user with stored transactions or aggregates, sorted.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM transactions
		UNION
		SELECT user_id FROM daily_aggregates
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
