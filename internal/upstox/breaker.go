package upstox

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/vizzzzk/nifty-options-bot/internal/errors"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
)

// CircuitBreakerClient wraps a MarketDataClient so a flapping upstream fails
// fast instead of stalling every command on timeouts.
type CircuitBreakerClient struct {
	client  MarketDataClient
	breaker *gobreaker.CircuitBreaker
}

// BreakerSettings configures circuit breaker behavior.
type BreakerSettings struct {
	MaxRequests  uint32        // max requests when half-open
	Interval     time.Duration // reset counts interval
	Timeout      time.Duration // open circuit duration
	MinRequests  uint32        // min requests before tripping
	FailureRatio float64       // failure ratio threshold
}

// DefaultBreakerSettings returns sensible defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// NewCircuitBreakerClient wraps client with a circuit breaker.
func NewCircuitBreakerClient(client MarketDataClient, settings BreakerSettings) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "upstox",
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < settings.MinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
			},
			IsSuccessful: func(err error) bool {
				// Auth failures are the user's problem, not upstream health.
				return err == nil || errors.Is(err, apperrors.ErrUnauthorized)
			},
		}),
	}
}

// exec is a generic helper for circuit breaker wrapper methods.
func exec[T any](cb *CircuitBreakerClient, fn func(MarketDataClient) (T, error)) (T, error) {
	var zero T
	res, err := cb.breaker.Execute(func() (interface{}, error) { return fn(cb.client) })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.ErrUpstreamUnavailable
		}
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// ListExpiries implements MarketDataClient.
func (cb *CircuitBreakerClient) ListExpiries(ctx context.Context, token string) ([]models.ExpiryDate, error) {
	return exec(cb, func(c MarketDataClient) ([]models.ExpiryDate, error) {
		return c.ListExpiries(ctx, token)
	})
}

// GetOptionChain implements MarketDataClient.
func (cb *CircuitBreakerClient) GetOptionChain(ctx context.Context, token, expiry string) (models.ChainSnapshot, error) {
	return exec(cb, func(c MarketDataClient) (models.ChainSnapshot, error) {
		return c.GetOptionChain(ctx, token, expiry)
	})
}

// GetQuote implements MarketDataClient.
func (cb *CircuitBreakerClient) GetQuote(ctx context.Context, token, instrumentKey string) (float64, error) {
	return exec(cb, func(c MarketDataClient) (float64, error) {
		return c.GetQuote(ctx, token, instrumentKey)
	})
}

var _ MarketDataClient = (*CircuitBreakerClient)(nil)
