package indicator

import (
	"context"
	"testing"
	"time"

	"tradingbot/internal/cache"
)

type countingCache struct {
	*cache.Memory
	sets int
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.sets++
	c.Memory.Set(ctx, key, value, ttl)
}

func TestLibrary_HitEqualsRecompute(t *testing.T) {
	lib := NewLibrary(cache.NewMemory(), time.Minute)
	var hits, misses int
	lib.OnHit = func(string) { hits++ }
	lib.OnMiss = func(string) { misses++ }

	h, l, c := ramp(60, 100, 0.5)

	first, err := lib.DMI(h, l, c, 14)
	if err != nil {
		t.Fatal(err)
	}
	second, err := lib.DMI(h, l, c, 14)
	if err != nil {
		t.Fatal(err)
	}
	direct, _ := DMI(h, l, c, 14)

	if first != direct || second != direct {
		t.Errorf("memoized DMI differs: first=%+v second=%+v direct=%+v", first, second, direct)
	}
	if hits != 1 || misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", hits, misses)
	}
}

func TestLibrary_SameLastValueDifferentWindowMisses(t *testing.T) {
	lib := NewLibrary(cache.NewMemory(), time.Minute)

	a := []float64{1, 2, 3, 4, 10}
	b := []float64{9, 9, 9, 9, 10}
	sa, _ := lib.SMA(a, 5)
	sb, _ := lib.SMA(b, 5)

	assertClose(t, "SMA a", sa, 4, 1e-9)
	assertClose(t, "SMA b", sb, 9.2, 1e-9)
}

func TestLibrary_SuperTrendRoundTrip(t *testing.T) {
	lib := NewLibrary(cache.NewMemory(), time.Minute)
	h, l, c := ramp(40, 100, 1)
	c[35] = 80

	first, err := lib.SuperTrend(h, l, c, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := lib.SuperTrend(h, l, c, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if first.Start != second.Start || first.Len() != second.Len() {
		t.Fatalf("shape mismatch: %+v vs %+v", first, second)
	}
	for i := range first.Up {
		if first.Up[i] != second.Up[i] || first.Value[i] != second.Value[i] {
			t.Fatalf("index %d differs after cache round trip", i)
		}
	}
}

func TestLibrary_ErrorsAreNotCached(t *testing.T) {
	cc := &countingCache{Memory: cache.NewMemory()}
	lib := NewLibrary(cc, time.Minute)

	if _, err := lib.RSI([]float64{1, 2}, 14); err == nil {
		t.Fatal("expected error")
	}
	if cc.sets != 0 {
		t.Errorf("error result was cached (%d sets)", cc.sets)
	}
}

func TestLibrary_NilComputesDirectly(t *testing.T) {
	var lib *Library
	got, err := lib.EMA([]float64{100, 102, 104, 103, 105}, 3)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "nil library EMA", got, 103.75, 1e-9)
}

func TestCacheKey_ParamsAndInputsMatter(t *testing.T) {
	in := []float64{1, 2, 3}
	base := CacheKey("sma", params(3), in)
	if base != CacheKey("sma", params(3), []float64{1, 2, 3}) {
		t.Error("equal inputs should give equal keys")
	}
	if base == CacheKey("sma", params(2), in) {
		t.Error("different params should give different keys")
	}
	if base == CacheKey("ema", params(3), in) {
		t.Error("different kinds should give different keys")
	}
	if base == CacheKey("sma", params(3), []float64{0, 2, 3}) {
		t.Error("different windows should give different keys")
	}
}
