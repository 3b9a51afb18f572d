package monitor

import (
	"fmt"
	"strings"
	"time"

	"tradingbot/internal/model"
	"tradingbot/internal/strategy"
)

// EventKind identifies what a monitor Event reports.
type EventKind string

const (
	EventUpdate     EventKind = "update"
	EventSignal     EventKind = "signal"
	EventPriceAlert EventKind = "priceAlert"
)

// Event is published by the monitor. Update events carry the full
// Analysis, signal events the derived Signal (never HOLD) and price alert
// events the Alert that fired.
type Event struct {
	Kind      EventKind          `json:"type"`
	Symbol    string             `json:"symbol"`
	Price     float64            `json:"price"`
	Signal    model.Action       `json:"signal,omitempty"`
	Analysis  *strategy.Analysis `json:"analysis,omitempty"`
	Alert     *AlertHit          `json:"alert,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// AlertType is the side of a price alert.
type AlertType string

const (
	AlertAbove AlertType = "above"
	AlertBelow AlertType = "below"
)

// ParseAlertType accepts "above" and "below" in any case; empty means above.
func ParseAlertType(s string) (AlertType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "above":
		return AlertAbove, nil
	case "below":
		return AlertBelow, nil
	}
	return "", fmt.Errorf("unknown alert type %q", s)
}

// Alert is a registered price threshold.
type Alert struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"target_price"`
	Type   AlertType `json:"type"`
}

// Triggered reports whether price satisfies the alert. Alerts are not
// consumed: they trigger on every tick while the condition holds.
func (a Alert) Triggered(price float64) bool {
	if a.Type == AlertBelow {
		return price <= a.Price
	}
	return price >= a.Price
}

// AlertHit is an alert together with the price that triggered it.
type AlertHit struct {
	Alert
	CurrentPrice float64 `json:"current_price"`
}
