package utils

import (
	"testing"
	"time"
)

func ist(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, IndiaLocation)
}

func TestIsMarketOpenAt(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		// 2026-08-28 is a Friday
		{"friday mid-session", ist(2026, 8, 28, 11, 0), true},
		{"open boundary 09:15", ist(2026, 8, 28, 9, 15), true},
		{"one minute before open", ist(2026, 8, 28, 9, 14), false},
		{"last open minute 15:29", ist(2026, 8, 28, 15, 29), true},
		{"close boundary 15:30", ist(2026, 8, 28, 15, 30), false},
		{"saturday", ist(2026, 8, 29, 11, 0), false},
		{"sunday", ist(2026, 8, 30, 11, 0), false},
		{"monday open", ist(2026, 8, 31, 9, 15), true},
		{"weekday pre-dawn", ist(2026, 8, 28, 3, 0), false},
		{"weekday evening", ist(2026, 8, 28, 18, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMarketOpenAt(tt.at); got != tt.want {
				t.Errorf("IsMarketOpenAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestIsMarketOpenAtConvertsZone(t *testing.T) {
	// 05:45 UTC on a Friday is 11:15 IST, inside the session.
	utc := time.Date(2026, 8, 28, 5, 45, 0, 0, time.UTC)
	if !IsMarketOpenAt(utc) {
		t.Error("expected market open for 05:45 UTC on a weekday")
	}
}

func TestMarketCloseOn(t *testing.T) {
	got := MarketCloseOn(ist(2026, 8, 28, 10, 30))
	if !got.Equal(ist(2026, 8, 28, 15, 30)) {
		t.Errorf("MarketCloseOn = %v, want 15:30 IST same day", got)
	}
}

func TestNextMarketOpen(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"friday evening rolls to monday", ist(2026, 8, 28, 18, 0), ist(2026, 8, 31, 9, 15)},
		{"saturday rolls to monday", ist(2026, 8, 29, 12, 0), ist(2026, 8, 31, 9, 15)},
		{"weekday pre-open same day", ist(2026, 8, 28, 8, 0), ist(2026, 8, 28, 9, 15)},
		{"mid-session rolls to next day", ist(2026, 8, 27, 11, 0), ist(2026, 8, 28, 9, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextMarketOpen(tt.from)
			if !got.Equal(tt.want) {
				t.Errorf("NextMarketOpen(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}
