package upstox

import (
	"context"
	"sync"

	apperrors "github.com/vizzzzk/nifty-options-bot/internal/errors"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
)

// MockClient is a canned MarketDataClient and AuthClient for tests.
type MockClient struct {
	Expiries    []models.ExpiryDate
	Chains      map[string]models.ChainSnapshot // keyed by expiry
	Quotes      map[string]float64              // keyed by instrument key
	AccessToken string                          // returned by ExchangeCode
	AuthURL     string

	// Err, when set, is returned by every market-data call.
	Err error

	// mu guards the call counters: quotes are fetched from concurrent
	// goroutines during mark-to-market.
	mu          sync.Mutex
	ExpiryCalls int
	ChainCalls  int
	QuoteCalls  int
}

// ListExpiries implements MarketDataClient.
func (m *MockClient) ListExpiries(ctx context.Context, token string) ([]models.ExpiryDate, error) {
	m.mu.Lock()
	m.ExpiryCalls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	return m.Expiries, nil
}

// GetOptionChain implements MarketDataClient.
func (m *MockClient) GetOptionChain(ctx context.Context, token, expiry string) (models.ChainSnapshot, error) {
	m.mu.Lock()
	m.ChainCalls++
	m.mu.Unlock()
	if m.Err != nil {
		return models.ChainSnapshot{}, m.Err
	}
	if token == "" {
		return models.ChainSnapshot{}, apperrors.ErrUnauthorized
	}
	chain, ok := m.Chains[expiry]
	if !ok {
		return models.ChainSnapshot{Expiry: expiry}, nil
	}
	return chain, nil
}

// GetQuote implements MarketDataClient.
func (m *MockClient) GetQuote(ctx context.Context, token, instrumentKey string) (float64, error) {
	m.mu.Lock()
	m.QuoteCalls++
	m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if token == "" {
		return 0, apperrors.ErrUnauthorized
	}
	price, ok := m.Quotes[instrumentKey]
	if !ok || price <= 0 {
		return 0, apperrors.ErrQuoteUnavailable
	}
	return price, nil
}

// ExchangeCode implements AuthClient.
func (m *MockClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	if m.AccessToken == "" {
		return "", apperrors.ErrAuthExchangeFailed
	}
	return m.AccessToken, nil
}

// AuthorizationURL implements AuthClient.
func (m *MockClient) AuthorizationURL() string {
	if m.AuthURL == "" {
		return "https://example.com/authorize"
	}
	return m.AuthURL
}

var (
	_ MarketDataClient = (*MockClient)(nil)
	_ AuthClient       = (*MockClient)(nil)
)
