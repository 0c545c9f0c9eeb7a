package plaid

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/service"
)

// MockClient is a mock transaction source for testing.
type MockClient struct {
	GetTransactionsFn    func(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error)
	GetTransactionsCalls []GetTransactionsCall
	mu                   sync.Mutex
}

// GetTransactionsCall records the parameters of a GetTransactions call.
type GetTransactionsCall struct {
	StartDate time.Time
	EndDate   time.Time
}

// NewMockClient creates a new mock Plaid client.
func NewMockClient() *MockClient {
	return &MockClient{
		GetTransactionsCalls: []GetTransactionsCall{},
	}
}

// GetTransactions records the call and delegates to GetTransactionsFn.
func (m *MockClient) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	m.mu.Lock()
	m.GetTransactionsCalls = append(m.GetTransactionsCalls, GetTransactionsCall{
		StartDate: startDate,
		EndDate:   endDate,
	})
	fn := m.GetTransactionsFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, startDate, endDate)
	}
	return []model.Transaction{}, nil
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetTransactionsCalls = []GetTransactionsCall{}
}

var _ service.TransactionSource = (*MockClient)(nil)
