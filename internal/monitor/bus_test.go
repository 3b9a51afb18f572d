package monitor

import (
	"testing"
	"time"
)

func TestBus_BroadcastsToAll(t *testing.T) {
	b := NewBus()
	out1 := b.Subscribe(10)
	out2 := b.Subscribe(10)

	b.Publish(Event{Kind: EventUpdate, Symbol: "BTC"})

	for i, ch := range []<-chan Event{out1, out2} {
		select {
		case ev := <-ch:
			if ev.Symbol != "BTC" {
				t.Errorf("out%d: expected BTC, got %s", i+1, ev.Symbol)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out waiting for event", i+1)
		}
	}
}

func TestBus_DropsForSlowConsumer(t *testing.T) {
	b := NewBus()
	slow := b.Subscribe(1)
	fast := b.Subscribe(10)

	var drops []int
	b.OnDrop = func(idx int, _ Event) { drops = append(drops, idx) }

	for i := 0; i < 3; i++ {
		b.Publish(Event{Kind: EventUpdate})
	}
	if b.Dropped() != 2 || len(drops) != 2 || drops[0] != 0 {
		t.Errorf("dropped=%d drops=%v, want 2 drops for subscriber 0", b.Dropped(), drops)
	}
	if len(slow) != 1 || len(fast) != 3 {
		t.Errorf("slow=%d fast=%d, want 1/3", len(slow), len(fast))
	}
	stats := b.ChannelStats()
	if len(stats) != 2 || stats[0].Cap != 1 || stats[1].Len != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	b := NewBus()
	a := b.Subscribe(1)
	c := b.Subscribe(1)

	b.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel should be closed")
	}
	b.Close()
	b.Close()
	if _, ok := <-c; ok {
		t.Error("Close should close remaining subscribers")
	}
	b.Publish(Event{}) // no panic after close
	if _, ok := <-b.Subscribe(1); ok {
		t.Error("subscribing to a closed bus should return a closed channel")
	}
}
