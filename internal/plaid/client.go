// Package plaid fetches expense transactions from the Plaid API.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/service"
)

const pageSize = int32(500) // Plaid's max page size

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
	UserID      string // owner of every fetched transaction
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	}
	if c.UserID == "" {
		return fmt.Errorf("%w: plaid user ID is required", common.ErrMissingConfig)
	}
	if c.Environment == "" {
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	}
	if c.Environment != "sandbox" && c.Environment != "production" {
		return fmt.Errorf("%w: invalid Plaid environment: must be sandbox or production", common.ErrInvalidConfig)
	}
	return nil
}

// Client fetches expenses from Plaid.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	accessToken string
	userID      string
}

var _ service.TransactionSource = (*Client)(nil)

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		userID:      cfg.UserID,
		logger:      common.Component(logger, "plaid"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetTransactions fetches expenses posted between startDate and endDate,
// inclusive. Credits and pending transactions are skipped.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("%w: start date must be before end date", common.ErrInvalidRequest)
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	var all []plaid.Transaction
	offset := int32(0)

	for {
		var page []plaid.Transaction
		err := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format("2006-01-02"),
				endDate.Format("2006-01-02"),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return classify(err, "failed to fetch transactions")
			}

			page = resp.GetTransactions()
			c.logger.Debug("Fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())
			return nil
		}, c.retryOpts)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	transactions := make([]model.Transaction, 0, len(all))
	for _, pt := range all {
		if tx, ok := c.mapPlaidTransaction(pt); ok {
			transactions = append(transactions, tx)
		}
	}

	c.logger.Info("Fetched all transactions",
		"fetched", len(all),
		"expenses", len(transactions))

	return transactions, nil
}

// classify turns Plaid API errors into retryable or permanent errors.
func classify(err error, msg string) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		return fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, plaidErr.ErrorMessage)
	}
	return common.Permanent(fmt.Errorf("%w: plaid API error: %s - %s",
		common.ErrPlaidConnection, plaidErr.ErrorCode, plaidErr.ErrorMessage))
}

// mapPlaidTransaction converts a posted Plaid debit into an expense. Plaid
// amounts are positive for money leaving the account.
func (c *Client) mapPlaidTransaction(pt plaid.Transaction) (model.Transaction, bool) {
	amount := pt.GetAmount()
	if amount <= 0 || pt.GetPending() {
		return model.Transaction{}, false
	}

	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		c.logger.Warn("Skipping transaction with unparseable date",
			"transaction_id", pt.GetTransactionId(),
			"date", pt.GetDate(),
			"error", err)
		return model.Transaction{}, false
	}

	merchantName := pt.GetMerchantName()
	if merchantName == "" {
		merchantName = pt.GetName()
	}

	category := ""
	if categories := pt.GetCategory(); len(categories) > 0 {
		category = categories[0]
	}

	transactionType := ""
	switch pt.GetPaymentChannel() {
	case "":
	case "online":
		transactionType = "ONLINE"
	case "in_store":
		transactionType = "POS"
	default:
		transactionType = "OTHER"
	}

	tx := model.Transaction{
		Date:         date,
		ID:           pt.GetTransactionId(),
		UserID:       c.userID,
		Title:        strings.TrimSpace(pt.GetName()),
		MerchantName: cleanMerchantName(merchantName),
		AccountID:    pt.GetAccountId(),
		Amount:       amount,
		Category:     category,
		Type:         transactionType,
	}
	tx.Hash = tx.GenerateHash()

	return tx, true
}

// cleanMerchantName standardizes merchant names by removing common suffixes and normalizing format.
func cleanMerchantName(name string) string {
	// Title case by hand; strings.Title is deprecated
	words := strings.Fields(strings.ToLower(name))
	for i, word := range words {
		runes := []rune(word)
		for j := range runes {
			if j == 0 || !isLetter(runes[j-1]) {
				runes[j] = toUpper(runes[j])
			}
		}
		words[i] = string(runes)
	}

	// Trailing reference numbers like "MERCHANT 123456789"
	if len(words) > 1 {
		last := words[len(words)-1]
		if len(last) > 5 && isAllDigits(last) {
			words = words[:len(words)-1]
		}
	}
	name = strings.Join(words, " ")

	suffixes := []string{
		" Llc",
		" Inc",
		" Corp",
		" Corporation",
		" Company",
		" Co",
		" Ltd",
		" Limited",
	}

	// Repeat until stable to handle stacked suffixes
	changed := true
	for changed {
		changed = false
		for _, suffix := range suffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				changed = true
			}
		}
	}

	return strings.TrimSpace(name)
}

// isAllDigits checks if a string contains only digits.
func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 32
	}
	return r
}
