package monitor

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus broadcasts events to N subscriber channels. If a subscriber's channel
// is full the event is dropped for that subscriber so a slow consumer never
// blocks a polling loop.
type Bus struct {
	mu      sync.RWMutex
	outputs []chan Event
	closed  bool
	dropped atomic.Uint64

	// OnDrop is called when an event is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int, ev Event)
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe creates and returns a new output channel with capacity buf.
// Subscribing to a closed bus returns a closed channel.
func (b *Bus) Subscribe(buf int) <-chan Event {
	ch := make(chan Event, buf)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.outputs = append(b.outputs, ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, out := range b.outputs {
		if out == ch {
			close(out)
			b.outputs = append(b.outputs[:i], b.outputs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for i, ch := range b.outputs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			if b.OnDrop != nil {
				b.OnDrop(i, ev)
			} else {
				slog.Warn("subscriber channel full, dropping event",
					"subscriber", i, "type", ev.Kind, "symbol", ev.Symbol)
			}
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.outputs {
		close(ch)
	}
	b.outputs = nil
}

// Dropped returns the number of events dropped across all subscribers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// ChannelStat is the (length, capacity) of one subscriber channel.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats reports saturation for each subscriber.
func (b *Bus) ChannelStats() []ChannelStat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := make([]ChannelStat, len(b.outputs))
	for i, ch := range b.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
