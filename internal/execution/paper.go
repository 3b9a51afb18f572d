package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradingbot/internal/model"
)

// Order statuses reported in receipts.
const (
	StatusFilled   = "FILLED"
	StatusRejected = "REJECTED"
)

// ErrInvalidOrder is returned for orders with a non-positive quantity or
// without a reference price.
var ErrInvalidOrder = errors.New("invalid order")

// PaperGateway simulates order execution without real broker calls. Every
// valid order fills immediately and in full at its reference price.
type PaperGateway struct {
	mu    sync.RWMutex
	fills []model.OrderReceipt
	now   func() time.Time
	log   *slog.Logger
}

// NewPaperGateway creates a paper trading gateway.
func NewPaperGateway() *PaperGateway {
	return &PaperGateway{
		fills: make([]model.OrderReceipt, 0, 256),
		now:   time.Now,
		log:   slog.Default().With("component", "paper"),
	}
}

// PlaceOrder fills req at req.Price. It implements model.OrderGateway.
func (p *PaperGateway) PlaceOrder(_ context.Context, req model.OrderRequest) (model.OrderReceipt, error) {
	if req.Quantity <= 0 || req.Price <= 0 {
		return model.OrderReceipt{
			Symbol: req.Symbol,
			Status: StatusRejected,
		}, fmt.Errorf("paper %s qty=%v price=%v: %w", req.Symbol, req.Quantity, req.Price, ErrInvalidOrder)
	}

	receipt := model.OrderReceipt{
		OrderID:   "PAPER-" + uuid.NewString(),
		Symbol:    req.Symbol,
		Status:    StatusFilled,
		FillPrice: req.Price,
		Quantity:  req.Quantity,
		FilledAt:  p.now(),
	}

	p.mu.Lock()
	p.fills = append(p.fills, receipt)
	p.mu.Unlock()

	p.log.Info("order filled",
		"order_id", receipt.OrderID, "symbol", req.Symbol, "buy", req.IsBuy,
		"qty", req.Quantity, "price", req.Price)
	return receipt, nil
}

// Fills returns a snapshot of all fills.
func (p *PaperGateway) Fills() []model.OrderReceipt {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.OrderReceipt, len(p.fills))
	copy(cp, p.fills)
	return cp
}
