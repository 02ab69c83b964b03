package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vizzzzk/nifty-options-bot/internal/config"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

// sessionData is the persisted broker session. Upstox access tokens expire
// at 03:30 IST the day after issue.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func sessionPath() string {
	return filepath.Join(config.DefaultConfigDir(), "session.json")
}

// loadSession returns the stored access token, or "" when there is no valid
// session on disk.
func loadSession() string {
	data, err := os.ReadFile(sessionPath())
	if err != nil {
		return ""
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return ""
	}
	if time.Now().After(session.ExpiresAt) {
		return ""
	}
	return session.AccessToken
}

// tokenExpiry returns the first 03:30 IST cutoff after now. A token issued
// in the small hours still dies at the same morning's 03:30.
func tokenExpiry(now time.Time) time.Time {
	ist := now.In(utils.IndiaLocation)
	cutoff := time.Date(ist.Year(), ist.Month(), ist.Day(), 3, 30, 0, 0, utils.IndiaLocation)
	if !ist.Before(cutoff) {
		cutoff = cutoff.AddDate(0, 0, 1)
	}
	return cutoff
}

// saveSession persists a freshly minted access token.
func saveSession(token string) error {
	now := time.Now().In(utils.IndiaLocation)
	expiry := tokenExpiry(now)

	session := sessionData{
		AccessToken: token,
		CreatedAt:   now,
		ExpiresAt:   expiry,
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.MkdirAll(config.DefaultConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(sessionPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// clearSession removes the stored session.
func clearSession() error {
	if err := os.Remove(sessionPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
