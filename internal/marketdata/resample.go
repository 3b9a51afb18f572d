package marketdata

import (
	"time"

	"tradingbot/internal/model"
)

// Resample merges time-ordered candles into buckets of width tf aligned to
// the Unix epoch. Each output candle opens at its bucket start and carries
// the first open, the extreme high and low, the last close and the summed
// volume. Candles already at or coarser than tf pass through unchanged.
// Candles whose bucket lies behind the forming bucket are dropped.
func Resample(candles []model.Candle, tf time.Duration) []model.Candle {
	if tf <= 0 || len(candles) == 0 {
		return candles
	}
	out := make([]model.Candle, 0, len(candles))
	var (
		cur     model.Candle
		bucket  int64
		started bool
	)
	step := tf.Milliseconds()
	for _, c := range candles {
		ms := c.TS.UnixMilli()
		b := ms - mod(ms, step)

		if started && b < bucket {
			continue
		}
		if started && b > bucket {
			out = append(out, cur)
			started = false
		}
		if !started {
			cur = c
			cur.TS = time.UnixMilli(b).UTC()
			bucket = b
			started = true
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if started {
		out = append(out, cur)
	}
	return out
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
