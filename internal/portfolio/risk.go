package portfolio

import (
	"errors"
	"fmt"
	"math"

	"tradingbot/internal/model"
)

// ErrZeroStopDistance is returned by CalculatePositionSize when the stop
// equals the entry price.
var ErrZeroStopDistance = errors.New("stop loss equals entry price")

// Rejection reasons returned by ValidateTrade.
const (
	ReasonMaxOpenPositions = "Maximum open positions reached"
	ReasonMaxDrawdown      = "Maximum drawdown exceeded"
	ReasonPositionTooLarge = "Position size too large"
)

// RiskConfig defines configurable risk management thresholds.
type RiskConfig struct {
	RiskPerTrade     float64 `yaml:"risk_per_trade" json:"risk_per_trade"`       // fraction of balance risked per trade
	MaxPositionSize  float64 `yaml:"max_position_size" json:"max_position_size"` // fraction of balance
	MaxDrawdown      float64 `yaml:"max_drawdown" json:"max_drawdown"`           // fraction, 0.2 = 20%
	MaxOpenPositions int     `yaml:"max_open_positions" json:"max_open_positions"`
	RiskRewardRatio  float64 `yaml:"risk_reward_ratio" json:"risk_reward_ratio"`
	TrailingATR      float64 `yaml:"trailing_atr" json:"trailing_atr"` // stop distance in ATRs
}

// DefaultRiskConfig returns conservative default limits.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		RiskPerTrade:     0.02,
		MaxPositionSize:  0.1,
		MaxDrawdown:      0.2,
		MaxOpenPositions: 3,
		RiskRewardRatio:  2,
		TrailingATR:      1.5,
	}
}

// Validate rejects limits outside their meaningful ranges.
func (c RiskConfig) Validate() error {
	switch {
	case c.RiskPerTrade <= 0 || c.RiskPerTrade > 1:
		return fmt.Errorf("risk config: risk_per_trade must be in (0,1], got %v", c.RiskPerTrade)
	case c.MaxPositionSize <= 0:
		return fmt.Errorf("risk config: max_position_size must be positive, got %v", c.MaxPositionSize)
	case c.MaxDrawdown <= 0 || c.MaxDrawdown > 1:
		return fmt.Errorf("risk config: max_drawdown must be in (0,1], got %v", c.MaxDrawdown)
	case c.MaxOpenPositions <= 0:
		return fmt.Errorf("risk config: max_open_positions must be positive, got %d", c.MaxOpenPositions)
	case c.RiskRewardRatio <= 0 || c.TrailingATR <= 0:
		return fmt.Errorf("risk config: risk_reward_ratio and trailing_atr must be positive")
	}
	return nil
}

// TradeRequest is a candidate trade submitted for validation.
type TradeRequest struct {
	Symbol    string
	Direction model.Direction
	Price     float64
	Size      float64
}

// PortfolioState is the read-only view of a portfolio the risk checks need.
type PortfolioState interface {
	OpenPositionCount() int
	Balance() float64
	CurrentDrawdown() float64
}

// Validation is the outcome of ValidateTrade. Reason is empty when Valid.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// RiskManager sizes and validates trades. It holds no mutable state.
type RiskManager struct {
	cfg RiskConfig
}

// NewRiskManager creates a RiskManager with the given limits.
func NewRiskManager(cfg RiskConfig) *RiskManager {
	return &RiskManager{cfg: cfg}
}

// Config returns the limits in force.
func (rm *RiskManager) Config() RiskConfig { return rm.cfg }

// CalculatePositionSize risks RiskPerTrade of balance over the stop
// distance, capped at balance×MaxPositionSize.
func (rm *RiskManager) CalculatePositionSize(balance, price, stopLoss float64) (float64, error) {
	dist := math.Abs(price - stopLoss)
	if dist == 0 {
		return 0, fmt.Errorf("size at %.4f: %w", price, ErrZeroStopDistance)
	}
	size := balance * rm.cfg.RiskPerTrade / dist
	return math.Min(size, balance*rm.cfg.MaxPositionSize), nil
}

// ValidateTrade checks open positions, drawdown and size, in that order.
func (rm *RiskManager) ValidateTrade(req TradeRequest, state PortfolioState) Validation {
	if state.OpenPositionCount() >= rm.cfg.MaxOpenPositions {
		return Validation{Reason: ReasonMaxOpenPositions}
	}
	if state.CurrentDrawdown() > rm.cfg.MaxDrawdown {
		return Validation{Reason: ReasonMaxDrawdown}
	}
	if req.Size > state.Balance()*rm.cfg.MaxPositionSize {
		return Validation{Reason: ReasonPositionTooLarge}
	}
	return Validation{Valid: true}
}

// AdjustStopLoss returns a trailing stop TrailingATR·atr away from
// currentPrice that never loosens the existing stop.
func (rm *RiskManager) AdjustStopLoss(pos model.Position, currentPrice, atr float64) float64 {
	dist := atr * rm.cfg.TrailingATR
	if pos.Direction == model.Short {
		return math.Min(pos.StopLoss, currentPrice+dist)
	}
	return math.Max(pos.StopLoss, currentPrice-dist)
}

// CalculateTakeProfit places the target rr stop distances from entry, on
// the opposite side of the stop. rr <= 0 uses RiskRewardRatio.
func (rm *RiskManager) CalculateTakeProfit(entry, stopLoss, rr float64) float64 {
	if rr <= 0 {
		rr = rm.cfg.RiskRewardRatio
	}
	dist := math.Abs(entry - stopLoss) * rr
	if stopLoss > entry {
		return entry - dist
	}
	return entry + dist
}
