// Package marketdata provides MarketDataProvider implementations: a Binance
// public REST client for live use and an in-memory provider for replay and
// tests.
package marketdata

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownSymbol is returned when a provider has no data for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// IntervalDuration converts a Binance-style interval ("1m", "4h", "1d",
// "1w") into a duration.
func IntervalDuration(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	var n int
	if _, err := fmt.Sscanf(interval[:len(interval)-1], "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	return time.Duration(n) * unit, nil
}
