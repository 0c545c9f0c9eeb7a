// Package simplefin fetches expense transactions from a SimpleFIN bridge.
package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/service"
)

// Config holds SimpleFIN settings.
type Config struct {
	Token     string // setup token, needed only until an access URL is claimed
	StateFile string
	UserID    string // owner of every fetched transaction
	Timeout   time.Duration
}

// Client fetches expenses from a SimpleFIN access URL.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  service.RetryOptions
	accessURL  string
	userID     string
}

var _ service.TransactionSource = (*Client)(nil)

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// NewClient creates a client, claiming cfg.Token when no access URL is saved.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("%w: simplefin user ID is required", common.ErrMissingConfig)
	}
	if cfg.StateFile == "" {
		path, err := DefaultStateFile()
		if err != nil {
			return nil, fmt.Errorf("failed to get state file path: %w", err)
		}
		cfg.StateFile = path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	auth, err := LoadOrClaimAuth(ctx, httpClient, cfg.Token, cfg.StateFile)
	if err != nil {
		return nil, err
	}
	return newClient(auth.AccessURL, cfg.UserID, httpClient, logger), nil
}

func newClient(accessURL, userID string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		accessURL:  strings.TrimSuffix(accessURL, "/"),
		userID:     userID,
		httpClient: httpClient,
		logger:     common.Component(logger, "simplefin"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// GetTransactions returns posted expenses between startDate and endDate,
// inclusive of both days.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("%w: start date must be before end date", common.ErrInvalidRequest)
	}

	u, err := url.Parse(c.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("start-date", strconv.FormatInt(startDate.Unix(), 10))
	// end-date is exclusive
	q.Set("end-date", strconv.FormatInt(endDate.AddDate(0, 0, 1).Unix(), 10))
	u.RawQuery = q.Encode()

	c.logger.Debug("Requesting SimpleFIN transactions",
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	var set accountSet
	err = common.WithRetry(ctx, func() error {
		var fetchErr error
		set, fetchErr = c.fetch(ctx, u.String())
		return fetchErr
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}
	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN reported an error", "message", msg)
	}

	end := endDate.AddDate(0, 0, 1)
	var transactions []model.Transaction
	for _, acct := range set.Accounts {
		for _, tx := range acct.Transactions {
			posted := time.Unix(tx.Posted, 0).UTC()
			if tx.Pending || posted.Before(startDate) || !posted.Before(end) {
				continue
			}

			converted, ok, err := c.convert(acct.ID, tx, posted)
			if err != nil {
				return nil, err
			}
			if ok {
				transactions = append(transactions, converted)
			}
		}
	}

	c.logger.Info("Fetched SimpleFIN expenses", "accounts", len(set.Accounts), "expenses", len(transactions))
	return transactions, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (accountSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return accountSet{}, common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return accountSet{}, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return accountSet{}, common.ErrRateLimit
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(resp.Body)
		return accountSet{}, fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return accountSet{}, common.Permanent(fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var set accountSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return accountSet{}, common.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return set, nil
}

// convert maps a debit to an expense; credits report ok=false.
func (c *Client) convert(accountID string, tx transaction, posted time.Time) (model.Transaction, bool, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount))
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("failed to parse amount %q: %w", tx.Amount, err)
	}
	if !amount.IsNegative() {
		return model.Transaction{}, false, nil
	}

	merchant := tx.Payee
	if strings.TrimSpace(merchant) == "" {
		merchant = tx.Description
	}

	out := model.Transaction{
		ID:           fmt.Sprintf("%s_%s", accountID, tx.ID),
		UserID:       c.userID,
		Date:         posted,
		Title:        strings.TrimSpace(tx.Description),
		MerchantName: normalizeMerchant(merchant),
		Amount:       amount.Neg().InexactFloat64(),
		AccountID:    accountID,
		Type:         "DEBIT",
	}
	out.Hash = out.GenerateHash()
	return out, true, nil
}

// normalizeMerchant strips corporate suffixes and title-cases the name.
func normalizeMerchant(raw string) string {
	merchant := strings.TrimSpace(raw)
	for _, suffix := range []string{" LLC", " INC", " CORP"} {
		merchant = strings.TrimSuffix(merchant, suffix)
	}

	words := strings.Fields(strings.ToLower(merchant))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
