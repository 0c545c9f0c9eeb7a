package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/spence/internal/model"
)

// MockWriter is a mock implementation of service.ForecastWriter for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, forecast *model.Forecast) error
	LastForecast   *model.Forecast
	WriteCalls     []WriteCall
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall represents a single call to WriteForecast.
type WriteCall struct {
	Error    error
	Forecast *model.Forecast
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// WriteForecast records the call and returns the configured error.
func (m *MockWriter) WriteForecast(ctx context.Context, forecast *model.Forecast) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastForecast = forecast

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, forecast)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{
		Forecast: forecast,
		Error:    err,
	})

	return err
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.WriteCalls = make([]WriteCall, 0)
	m.LastForecast = nil
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// AssertWriteCalled verifies that WriteForecast was called the expected number of times.
func (m *MockWriter) AssertWriteCalled(t interface{ Fatalf(string, ...any) }, expectedCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteCallCount != expectedCalls {
		t.Fatalf("expected WriteForecast to be called %d times, but was called %d times", expectedCalls, m.WriteCallCount)
	}
}

// SetWriteError configures the mock to return an error on every call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(context.Context, *model.Forecast) error {
		return err
	}
}
