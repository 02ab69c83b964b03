// Package store provides persistence for per-user portfolios.
package store

import (
	"context"

	"github.com/vizzzzk/nifty-options-bot/internal/models"
)

// PortfolioStore owns durable portfolio state. The engine never touches it:
// the caller loads the portfolio, runs a command, and stores what comes back.
// Update serializes the read-modify-write so concurrent commands for the
// same user cannot interleave at the storage layer.
type PortfolioStore interface {
	// Load returns the stored portfolio; ok is false when the user has none yet.
	Load(ctx context.Context, userID string) (pf models.Portfolio, ok bool, err error)

	// Save unconditionally writes the portfolio.
	Save(ctx context.Context, userID string, pf models.Portfolio) error

	// Update applies fn atomically to the stored portfolio and persists the
	// result. fn receives a zero-value NewPortfolio-style state when nothing
	// is stored yet.
	Update(ctx context.Context, userID string, fn func(models.Portfolio) (models.Portfolio, error)) (models.Portfolio, error)

	// LogClosedTrade appends a closed trade to the audit log.
	LogClosedTrade(ctx context.Context, userID string, item models.TradeHistoryItem) error

	// ClosedTrades returns the most recent closed trades, newest first.
	ClosedTrades(ctx context.Context, userID string, limit int) ([]models.TradeHistoryItem, error)

	Close() error
}
