// Package indicator provides technical indicator calculations over price windows.
//
// Every exported function is pure: it reads the window it is given and
// returns a fresh result. The streaming states (SMAState, EMAState, RSIState)
// are the O(1)-per-update building blocks the functions are composed from.
// Library adds TTL memoization on top without changing any result.
package indicator

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when the window is shorter than the
	// indicator's lookback.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidPeriod is returned for non-positive period parameters.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrLengthMismatch is returned when high/low/close inputs differ in length.
	ErrLengthMismatch = errors.New("high/low/close length mismatch")
)

func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s(%d): %w", name, period, ErrInvalidPeriod)
	}
	return nil
}

func checkLen(name string, period, have, need int) error {
	if have < need {
		return fmt.Errorf("%s(%d): have %d values, need %d: %w", name, period, have, need, ErrInsufficientData)
	}
	return nil
}

func checkRange(name string, highs, lows, closes []float64) error {
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return fmt.Errorf("%s: highs=%d lows=%d closes=%d: %w",
			name, len(highs), len(lows), len(closes), ErrLengthMismatch)
	}
	return nil
}
