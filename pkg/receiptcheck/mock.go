package receiptcheck

import (
	"context"
	"sync"
)

// MockClient is a mock receipt checker for testing
type MockClient struct {
	mu       sync.Mutex
	verdict  Verdict
	err      error
	requests []Request
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithVerdict sets the verdict to return
func WithVerdict(confirmed bool, notes string) MockOption {
	return func(m *MockClient) {
		m.verdict = Verdict{Confirmed: confirmed, Notes: notes}
	}
}

// WithError sets an error to return from Verify
func WithError(err error) MockOption {
	return func(m *MockClient) {
		m.err = err
	}
}

// NewMockClient creates a mock client that confirms every receipt by default
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{verdict: Verdict{Confirmed: true, Notes: "amount matches"}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Verify records the request and returns the configured verdict
func (m *MockClient) Verify(ctx context.Context, req Request) (*Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	v := m.verdict
	return &v, nil
}

// Requests returns every request Verify received
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

var _ Client = (*MockClient)(nil)
var _ Client = (*HTTPClient)(nil)
