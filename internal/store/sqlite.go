package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vizzzzk/nifty-options-bot/internal/models"
)

// SQLiteStore implements PortfolioStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed portfolio store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Portfolio state, one JSON document per user
	CREATE TABLE IF NOT EXISTS portfolios (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Append-only closed-trade log
	CREATE TABLE IF NOT EXISTS closed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		position_id INTEGER NOT NULL,
		option_type TEXT NOT NULL,
		strike REAL NOT NULL,
		action TEXT NOT NULL,
		lots INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		gross_pnl REAL NOT NULL,
		net_pnl REAL NOT NULL,
		total_costs REAL NOT NULL,
		expiry TEXT NOT NULL,
		entry_time DATETIME NOT NULL,
		exit_time DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_user ON closed_trades(user_id, exit_time);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load implements PortfolioStore.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (models.Portfolio, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM portfolios WHERE user_id = ?", userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Portfolio{}, false, nil
	}
	if err != nil {
		return models.Portfolio{}, false, fmt.Errorf("load portfolio: %w", err)
	}

	var pf models.Portfolio
	if err := json.Unmarshal([]byte(data), &pf); err != nil {
		return models.Portfolio{}, false, fmt.Errorf("decode portfolio: %w", err)
	}
	return pf, true, nil
}

// Save implements PortfolioStore.
func (s *SQLiteStore) Save(ctx context.Context, userID string, pf models.Portfolio) error {
	data, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolios (user_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		userID, string(data))
	if err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// Update implements PortfolioStore. The whole read-modify-write runs in one
// immediate transaction so concurrent updates for a user serialize.
func (s *SQLiteStore) Update(ctx context.Context, userID string, fn func(models.Portfolio) (models.Portfolio, error)) (models.Portfolio, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Portfolio{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var pf models.Portfolio
	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM portfolios WHERE user_id = ?", userID).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		pf = models.NewPortfolio(0)
	case err != nil:
		return models.Portfolio{}, fmt.Errorf("read portfolio: %w", err)
	default:
		if err := json.Unmarshal([]byte(data), &pf); err != nil {
			return models.Portfolio{}, fmt.Errorf("decode portfolio: %w", err)
		}
	}

	next, err := fn(pf)
	if err != nil {
		return models.Portfolio{}, err
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return models.Portfolio{}, fmt.Errorf("encode portfolio: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO portfolios (user_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		userID, string(encoded)); err != nil {
		return models.Portfolio{}, fmt.Errorf("write portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Portfolio{}, fmt.Errorf("commit update: %w", err)
	}
	return next, nil
}

// LogClosedTrade implements PortfolioStore.
func (s *SQLiteStore) LogClosedTrade(ctx context.Context, userID string, item models.TradeHistoryItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closed_trades
		(user_id, position_id, option_type, strike, action, lots, entry_price,
		 exit_price, gross_pnl, net_pnl, total_costs, expiry, entry_time, exit_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, item.ID, string(item.Type), item.Strike, string(item.Action), item.Lots,
		item.EntryPrice, item.ExitPrice, item.GrossPnL, item.NetPnL, item.TotalCosts,
		item.Expiry, item.EntryTime, item.ExitTime)
	if err != nil {
		return fmt.Errorf("log closed trade: %w", err)
	}
	return nil
}

// ClosedTrades implements PortfolioStore.
func (s *SQLiteStore) ClosedTrades(ctx context.Context, userID string, limit int) ([]models.TradeHistoryItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, option_type, strike, action, lots, entry_price,
		       exit_price, gross_pnl, net_pnl, total_costs, expiry, entry_time, exit_time
		FROM closed_trades WHERE user_id = ?
		ORDER BY exit_time DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var items []models.TradeHistoryItem
	for rows.Next() {
		var item models.TradeHistoryItem
		var optType, action string
		if err := rows.Scan(&item.ID, &optType, &item.Strike, &action, &item.Lots,
			&item.EntryPrice, &item.ExitPrice, &item.GrossPnL, &item.NetPnL,
			&item.TotalCosts, &item.Expiry, &item.EntryTime, &item.ExitTime); err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		item.Type = models.OptionType(optType)
		item.Action = models.TradeAction(action)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close implements PortfolioStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ PortfolioStore = (*SQLiteStore)(nil)
