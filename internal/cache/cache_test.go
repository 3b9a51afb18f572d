package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemory_GetSet(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithClock(clk.Now))
	ctx := context.Background()

	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	m.Set(ctx, "k", []byte("v1"), time.Minute)
	got, ok := m.Get(ctx, "k")
	if !ok || !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("expected hit v1, got %q ok=%v", got, ok)
	}
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithClock(clk.Now))
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), 30*time.Second)
	clk.Advance(29 * time.Second)
	if _, ok := m.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before TTL")
	}
	clk.Advance(time.Second)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss exactly at TTL")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry should be dropped on Get, len=%d", m.Len())
	}
}

func TestMemory_NonPositiveTTLStoresNothing(t *testing.T) {
	m := NewMemory()
	m.Set(context.Background(), "k", []byte("v"), 0)
	if m.Len() != 0 {
		t.Errorf("expected empty cache, len=%d", m.Len())
	}
}

func TestMemory_EvictRemovesOnlyExpired(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithClock(clk.Now))
	ctx := context.Background()

	m.Set(ctx, "short", []byte("a"), 10*time.Second)
	m.Set(ctx, "long", []byte("b"), time.Minute)
	clk.Advance(20 * time.Second)

	if n := m.Evict(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if _, ok := m.Get(ctx, "long"); !ok {
		t.Error("unexpired entry must survive eviction")
	}
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	buf := []byte("abc")
	m.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'

	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("cache must not alias caller slices, got %q", got)
	}
	got[1] = 'y'
	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("returned slice must be a copy, got %q", again)
	}
}
