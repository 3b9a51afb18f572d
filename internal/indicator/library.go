package indicator

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"tradingbot/internal/cache"
)

// DefaultCacheTTL is how long a memoized indicator result stays valid.
const DefaultCacheTTL = 60 * time.Second

// Library exposes the indicator functions with optional memoization.
//
// Keys combine the indicator kind, its parameters and a fingerprint of the
// whole input (length plus an xxhash of every value), so a hit is always
// the result recomputation would produce. A nil Library or a Library
// without a cache computes directly.
type Library struct {
	cache cache.Cache
	ttl   time.Duration

	// OnHit and OnMiss are optional observers (metrics).
	OnHit  func(kind string)
	OnMiss func(kind string)
}

// NewLibrary creates a Library backed by c. ttl <= 0 uses DefaultCacheTTL.
func NewLibrary(c cache.Cache, ttl time.Duration) *Library {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Library{cache: c, ttl: ttl}
}

// SMA is the memoized form of SMA.
func (l *Library) SMA(prices []float64, period int) (float64, error) {
	return memo(l, "sma", params(period), func() (float64, error) {
		return SMA(prices, period)
	}, prices)
}

// EMA is the memoized form of EMA.
func (l *Library) EMA(prices []float64, period int) (float64, error) {
	return memo(l, "ema", params(period), func() (float64, error) {
		return EMA(prices, period)
	}, prices)
}

// RSI is the memoized form of RSI.
func (l *Library) RSI(prices []float64, period int) (float64, error) {
	return memo(l, "rsi", params(period), func() (float64, error) {
		return RSI(prices, period)
	}, prices)
}

// Bollinger is the memoized form of Bollinger.
func (l *Library) Bollinger(prices []float64, period int, stdDev float64) (Bands, error) {
	return memo(l, "bb", params(period)+","+strconv.FormatFloat(stdDev, 'g', -1, 64), func() (Bands, error) {
		return Bollinger(prices, period, stdDev)
	}, prices)
}

// MACD is the memoized form of MACD.
func (l *Library) MACD(prices []float64, fast, slow, signal int) (MACDResult, error) {
	return memo(l, "macd", params(fast, slow, signal), func() (MACDResult, error) {
		return MACD(prices, fast, slow, signal)
	}, prices)
}

// ATR is the memoized form of ATR.
func (l *Library) ATR(highs, lows, closes []float64, period int) (float64, error) {
	return memo(l, "atr", params(period), func() (float64, error) {
		return ATR(highs, lows, closes, period)
	}, highs, lows, closes)
}

// DMI is the memoized form of DMI.
func (l *Library) DMI(highs, lows, closes []float64, period int) (DMIResult, error) {
	return memo(l, "dmi", params(period), func() (DMIResult, error) {
		return DMI(highs, lows, closes, period)
	}, highs, lows, closes)
}

// SuperTrend is the memoized form of SuperTrend.
func (l *Library) SuperTrend(highs, lows, closes []float64, period int, multiplier float64) (SuperTrendResult, error) {
	return memo(l, "supertrend", params(period)+","+strconv.FormatFloat(multiplier, 'g', -1, 64), func() (SuperTrendResult, error) {
		return SuperTrend(highs, lows, closes, period, multiplier)
	}, highs, lows, closes)
}

func memo[T any](l *Library, kind, p string, compute func() (T, error), inputs ...[]float64) (T, error) {
	if l == nil || l.cache == nil {
		return compute()
	}
	ctx := context.Background()
	key := CacheKey(kind, p, inputs...)

	if raw, ok := l.cache.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			if l.OnHit != nil {
				l.OnHit(kind)
			}
			return v, nil
		}
	}
	if l.OnMiss != nil {
		l.OnMiss(kind)
	}

	v, err := compute()
	if err != nil {
		return v, err
	}
	// NaN and ±Inf do not survive JSON; such results are simply not cached.
	if raw, err := json.Marshal(v); err == nil {
		l.cache.Set(ctx, key, raw, l.ttl)
	}
	return v, nil
}

// CacheKey builds "ind:{kind}:{params}:{len}:{hash}" for the given inputs.
func CacheKey(kind, p string, inputs ...[]float64) string {
	h := xxhash.New()
	var buf [8]byte
	n := 0
	for _, in := range inputs {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(in)))
		h.Write(buf[:])
		for _, v := range in {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
		n += len(in)
	}
	return "ind:" + kind + ":" + p + ":" + strconv.Itoa(n) + ":" + strconv.FormatUint(h.Sum64(), 16)
}

func params(ps ...int) string {
	b := make([]byte, 0, 16)
	for i, p := range ps {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(p), 10)
	}
	return string(b)
}
