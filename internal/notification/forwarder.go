package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradingbot/internal/model"
	"tradingbot/internal/monitor"
)

// Forwarder turns trading events into messages and delivers them on a
// background worker so callers on the monitor or portfolio path never wait
// on the network. When its queue is full, messages are dropped.
type Forwarder struct {
	n       Notifier
	queue   chan Message
	timeout time.Duration
	log     *slog.Logger
}

// NewForwarder creates a Forwarder with a queue of size buf.
func NewForwarder(n Notifier, buf int) *Forwarder {
	if buf <= 0 {
		buf = 64
	}
	return &Forwarder{
		n:       n,
		queue:   make(chan Message, buf),
		timeout: 10 * time.Second,
		log:     slog.Default().With("component", "notify"),
	}
}

// Run delivers queued messages until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.queue:
			sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
			if err := f.n.Send(sendCtx, msg); err != nil {
				f.log.Warn("notification failed", "title", msg.Title, "error", err)
			}
			cancel()
		}
	}
}

func (f *Forwarder) enqueue(msg Message) {
	select {
	case f.queue <- msg:
	default:
		f.log.Warn("notification queue full, dropping", "title", msg.Title)
	}
}

// ObserveEvent forwards price alerts. Register it with Monitor.OnEvent.
func (f *Forwarder) ObserveEvent(ev monitor.Event) {
	if ev.Kind != monitor.EventPriceAlert || ev.Alert == nil {
		return
	}
	f.enqueue(Message{
		Level: LevelWarning,
		Title: fmt.Sprintf("Price alert %s", ev.Symbol),
		Text: fmt.Sprintf("%s is %s %.8g (current %.8g)",
			ev.Symbol, ev.Alert.Type, ev.Alert.Price, ev.Alert.CurrentPrice),
	})
}

// PositionOpened implements execution.Observer.
func (f *Forwarder) PositionOpened(pos model.Position) {
	f.enqueue(Message{
		Level: LevelInfo,
		Title: fmt.Sprintf("Opened %s %s", pos.Direction, pos.Symbol),
		Text: fmt.Sprintf("size %.8g @ %.8g, stop %.8g, target %.8g",
			pos.Size, pos.EntryPrice, pos.StopLoss, pos.TakeProfit),
	})
}

// TradeRejected implements execution.Observer. Rejections are not
// forwarded; they are logged by the trader.
func (f *Forwarder) TradeRejected(string, string) {}

// TradeClosed implements execution.Observer.
func (f *Forwarder) TradeClosed(model.Trade) {}

// RecordTrade implements model.TradeRecorder so every closed trade is
// forwarded, whichever path closed it.
func (f *Forwarder) RecordTrade(_ context.Context, t model.Trade) error {
	level := LevelInfo
	if !t.Win() {
		level = LevelWarning
	}
	f.enqueue(Message{
		Level: level,
		Title: fmt.Sprintf("Closed %s %s", t.Direction, t.Symbol),
		Text: fmt.Sprintf("entry %.8g exit %.8g pnl %.2f after %s",
			t.EntryPrice, t.ExitPrice, t.PnL, t.Duration.Round(time.Second)),
	})
	return nil
}
