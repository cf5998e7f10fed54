// Package resample aggregates clean 1-minute candle sequences into coarser
// display timeframes.
//
// Bucketing floors each candle's minute-of-hour to the nearest multiple of
// the interval length and zeroes seconds; hour, day, month and year are left
// unchanged. A single open aggregation group is maintained: successive
// candles sharing a bucket start accumulate into it, and the group is emitted
// when the bucket changes or the input is exhausted. No synthetic buckets are
// emitted for time gaps; only buckets containing at least one source candle
// appear in the output. Daily requests bypass bucketing entirely and pass the
// already-cleaned sequence through.
//
// The input must be timestamp-ascending. Rather than silently producing
// corrupt buckets for unsorted input, the resampler fails fast with
// ErrOutOfOrder.
package resample

import (
	"errors"
	"fmt"
	"time"

	"github.com/mdthewzrd/candle-engine/internal/models"
)

// ErrOutOfOrder is returned when the input sequence is not timestamp-ascending.
var ErrOutOfOrder = errors.New("resample: input candles are not in ascending timestamp order")

// ErrUnsupportedTimeframe is returned for intervals the resampler cannot
// produce from 1-minute source data.
var ErrUnsupportedTimeframe = errors.New("resample: unsupported target timeframe")

// Resample aggregates a timestamp-ascending 1-minute sequence into candles of
// the target timeframe. The returned slice is freshly allocated; the input is
// never mutated. An empty input yields an empty output without error.
//
// Aggregation semantics per bucket: open is the first candle's open, close is
// the last candle's close, high is the running maximum of highs, low the
// running minimum of lows, and volume the sum of volumes, so total volume is
// conserved across the call.
func Resample(candles []models.Candle, target models.Timeframe) ([]models.Candle, error) {
	if !models.IsValidTimeframe(target) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, target)
	}

	// Daily display data is served from daily source candles upstream; the
	// resampler's contract is passthrough. A fresh copy keeps the output
	// independently owned, same as every other path.
	if target == models.TimeframeDaily || target == models.Timeframe1Min {
		out := make([]models.Candle, len(candles))
		copy(out, candles)
		return out, nil
	}

	intervalMinutes := target.Minutes()
	out := make([]models.Candle, 0, len(candles)/intervalMinutes+1)

	var (
		group     models.Candle
		groupOpen bool
		prev      time.Time
	)

	for i := range candles {
		candle := &candles[i]

		if i > 0 && candle.Timestamp.Before(prev) {
			return nil, fmt.Errorf("%w: candle %d (%s) precedes candle %d (%s)",
				ErrOutOfOrder, i, candle.Timestamp.Format(time.RFC3339), i-1, prev.Format(time.RFC3339))
		}
		prev = candle.Timestamp

		bucket := bucketStart(candle.Timestamp, intervalMinutes)

		if groupOpen && bucket.Equal(group.Timestamp) {
			// Accumulate into the open group.
			group.Close = candle.Close
			group.Volume += candle.Volume
			if candle.High.GreaterThan(group.High) {
				group.High = candle.High
			}
			if candle.Low.LessThan(group.Low) {
				group.Low = candle.Low
			}
			continue
		}

		if groupOpen {
			out = append(out, group)
		}

		group = models.Candle{
			Timestamp: bucket,
			Open:      candle.Open,
			High:      candle.High,
			Low:       candle.Low,
			Close:     candle.Close,
			Volume:    candle.Volume,
			Symbol:    candle.Symbol,
			Interval:  string(target),
		}
		groupOpen = true
	}

	// Flush the still-open group after input exhaustion.
	if groupOpen {
		out = append(out, group)
	}

	return out, nil
}

// bucketStart floors the candle's minute-of-hour to the nearest multiple of
// the interval length and zeroes seconds. Hour, day, month and year are
// unchanged; the timestamp keeps its location.
func bucketStart(ts time.Time, intervalMinutes int) time.Time {
	minute := (ts.Minute() / intervalMinutes) * intervalMinutes
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), minute, 0, 0, ts.Location())
}
