// Package upstox provides the Upstox market-data and authorization clients.
package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/vizzzzk/nifty-options-bot/internal/errors"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

// MarketDataClient supplies expiries, option-chain snapshots, and live prices
// for one instrument. All calls fail with ErrUnauthorized when the token is
// absent or expired.
type MarketDataClient interface {
	ListExpiries(ctx context.Context, token string) ([]models.ExpiryDate, error)
	GetOptionChain(ctx context.Context, token, expiry string) (models.ChainSnapshot, error)
	GetQuote(ctx context.Context, token, instrumentKey string) (float64, error)
}

// AuthClient exchanges an authorization code for an access token.
type AuthClient interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	AuthorizationURL() string
}

// Config holds the Upstox client configuration.
type Config struct {
	APIKey        string
	APISecret     string
	RedirectURI   string
	BaseURL       string // e.g. https://api.upstox.com/v2
	AuthBaseURL   string // e.g. https://api-v2.upstox.com
	InstrumentKey string // e.g. NSE_INDEX|Nifty 50
	Timeout       time.Duration
}

// Client implements MarketDataClient and AuthClient over the Upstox v2 REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	retry  utils.RetryConfig
	logger zerolog.Logger
}

// NewClient creates a new Upstox client. The HTTP timeout bounds every call;
// there is no engine-side timeout on top of it.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		retry:  utils.DefaultRetryConfig(),
		logger: logger.With().Str("component", "upstox").Logger(),
	}
}

// ListExpiries returns the future-dated expiries for the configured
// instrument, ascending, capped to the nearest 7.
func (c *Client) ListExpiries(ctx context.Context, token string) ([]models.ExpiryDate, error) {
	endpoint := fmt.Sprintf("%s/option/contract?instrument_key=%s",
		c.cfg.BaseURL, url.QueryEscape(c.cfg.InstrumentKey))

	var resp contractResponse
	if err := c.getJSON(ctx, token, endpoint, &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var dates []string
	for _, item := range resp.Data {
		if item.Expiry != "" && !seen[item.Expiry] {
			seen[item.Expiry] = true
			dates = append(dates, item.Expiry)
		}
	}

	now := time.Now().In(utils.IndiaLocation)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, utils.IndiaLocation)

	var expiries []models.ExpiryDate
	for _, d := range dates {
		expDate, err := time.ParseInLocation("2006-01-02", d, utils.IndiaLocation)
		if err != nil {
			c.logger.Warn().Str("expiry", d).Msg("skipping unparseable expiry")
			continue
		}
		if expDate.Before(today) {
			continue
		}
		expiries = append(expiries, makeExpiry(d, expDate, today))
	}

	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Value < expiries[j].Value })
	if len(expiries) > 7 {
		expiries = expiries[:7]
	}
	return expiries, nil
}

// makeExpiry labels one expiry. Monthly contracts expire on the last Thursday
// of the month; anything else is weekly.
func makeExpiry(value string, expDate, today time.Time) models.ExpiryDate {
	dte := int(expDate.Sub(today).Hours() / 24)

	lastDay := time.Date(expDate.Year(), expDate.Month()+1, 0, 0, 0, 0, 0, utils.IndiaLocation).Day()
	isMonthly := expDate.Weekday() == time.Thursday && lastDay-expDate.Day() < 7

	tag := "(W)"
	if isMonthly {
		tag = "(M)"
	}

	return models.ExpiryDate{
		Value:     value,
		Label:     fmt.Sprintf("%s %s DTE: %d", value, tag, dte),
		IsMonthly: isMonthly,
		DTE:       dte,
	}
}

// GetOptionChain fetches the chain for one expiry. Greeks IV arrives as a
// fraction on the wire and is converted to a percentage exactly once here.
func (c *Client) GetOptionChain(ctx context.Context, token, expiry string) (models.ChainSnapshot, error) {
	endpoint := fmt.Sprintf("%s/option/chain?instrument_key=%s&expiry_date=%s",
		c.cfg.BaseURL, url.QueryEscape(c.cfg.InstrumentKey), url.QueryEscape(expiry))

	var resp chainResponse
	if err := c.getJSON(ctx, token, endpoint, &resp); err != nil {
		return models.ChainSnapshot{}, err
	}

	snapshot := models.ChainSnapshot{Expiry: expiry}
	for _, row := range resp.Data {
		if row.Expiry != "" && row.Expiry != expiry {
			continue
		}
		if snapshot.SpotPrice == 0 && row.UnderlyingSpotPrice > 0 {
			snapshot.SpotPrice = row.UnderlyingSpotPrice
		}
		snapshot.Rows = append(snapshot.Rows, models.ChainRow{
			Strike: row.StrikePrice,
			Call:   convertSide(row.CallOptions),
			Put:    convertSide(row.PutOptions),
		})
	}

	return snapshot, nil
}

func convertSide(side *chainSide) *models.ChainSide {
	if side == nil {
		return nil
	}
	return &models.ChainSide{
		LTP:           side.MarketData.LTP,
		Volume:        int64(side.MarketData.Volume),
		OI:            int64(side.MarketData.OI),
		Delta:         side.OptionGreeks.Delta,
		IV:            side.OptionGreeks.IV * 100,
		InstrumentKey: side.InstrumentKey,
	}
}

// GetQuote returns the last traded price for one instrument key.
func (c *Client) GetQuote(ctx context.Context, token, instrumentKey string) (float64, error) {
	endpoint := fmt.Sprintf("%s/market-quote/ltp?instrument_key=%s",
		c.cfg.BaseURL, url.QueryEscape(instrumentKey))

	var resp ltpResponse
	if err := c.getJSON(ctx, token, endpoint, &resp); err != nil {
		return 0, err
	}

	// The response keys quotes by exchange symbol, not by the requested
	// instrument key, so take the single entry.
	for _, quote := range resp.Data {
		if quote.LastPrice > 0 {
			return quote.LastPrice, nil
		}
	}
	return 0, apperrors.ErrQuoteUnavailable
}

// getJSON performs an authenticated GET with retry on transport failures.
// 401 responses map to ErrUnauthorized and are not retried.
func (c *Client) getJSON(ctx context.Context, token, endpoint string, out interface{}) error {
	if token == "" {
		return apperrors.ErrUnauthorized
	}

	var permanent error
	err := utils.Retry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			permanent = fmt.Errorf("build request: %w", err)
			return nil
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return apperrors.NewUpstreamError(0, endpoint, "request failed", err)
		}
		defer resp.Body.Close()

		// Client errors won't heal on retry; only transport and server
		// failures get another attempt.
		if resp.StatusCode == http.StatusUnauthorized {
			permanent = apperrors.ErrUnauthorized
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			permanent = apperrors.NewUpstreamError(resp.StatusCode, endpoint, string(body), nil)
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return apperrors.NewUpstreamError(resp.StatusCode, endpoint, string(body), nil)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewUpstreamError(resp.StatusCode, endpoint, "decode response", err)
		}
		return nil
	})
	if permanent != nil {
		return permanent
	}
	return err
}
