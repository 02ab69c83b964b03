package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/vizzzzk/nifty-options-bot/internal/errors"
)

// AuthorizationURL returns the Upstox OAuth dialog URL the user must visit
// to obtain a fresh authorization code.
func (c *Client) AuthorizationURL() string {
	return fmt.Sprintf("%s/login/authorization/dialog?response_type=code&client_id=%s&redirect_uri=%s",
		c.cfg.AuthBaseURL, url.QueryEscape(c.cfg.APIKey), url.QueryEscape(c.cfg.RedirectURI))
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	endpoint := c.cfg.AuthBaseURL + "/login/authorization/token"

	form := url.Values{
		"code":          {code},
		"client_id":     {c.cfg.APIKey},
		"client_secret": {c.cfg.APISecret},
		"redirect_uri":  {c.cfg.RedirectURI},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrAuthExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("token exchange failed")
		return "", fmt.Errorf("%w: status %d (the code might be expired or invalid)",
			apperrors.ErrAuthExchangeFailed, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", apperrors.ErrAuthExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token returned", apperrors.ErrAuthExchangeFailed)
	}

	return tok.AccessToken, nil
}
