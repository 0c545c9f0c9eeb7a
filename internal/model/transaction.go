package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single expense from any source.
type Transaction struct {
	Date         time.Time
	ID           string
	UserID       string
	Title        string // Item or description as entered by the user
	MerchantName string // Cleaned merchant name
	AccountID    string
	Hash         string
	Category     string
	Type         string // Source transaction type (e.g., DEBIT, POS, ATM)
	Amount       float64
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s",
		t.UserID,
		t.Date.Format(time.RFC3339),
		t.Amount,
		t.MerchantName,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// CategoryOrDefault returns the transaction category, or Uncategorized when empty.
func (t *Transaction) CategoryOrDefault() string {
	if t.Category == "" {
		return UncategorizedCategory
	}
	return t.Category
}

// UncategorizedCategory is assigned to expenses without a category.
const UncategorizedCategory = "Uncategorized"
