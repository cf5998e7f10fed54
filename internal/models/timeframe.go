package models

import (
	"fmt"
	"time"
)

// Timeframe identifies a candle display interval. All coarser timeframes are
// derived from 1-minute source data by resampling, never fetched directly.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1m"
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
	Timeframe1Hour Timeframe = "1h"
	TimeframeDaily Timeframe = "1d"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe1Hour, TimeframeDaily:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default display timeframe.
func DefaultTimeframe() Timeframe { return Timeframe5Min }

// ParseTimeframe converts a raw string to a supported timeframe, accepting a
// few common spellings per interval.
func ParseTimeframe(s string) (Timeframe, error) {
	switch s {
	case "1m", "1min", "minute":
		return Timeframe1Min, nil
	case "5m", "5min":
		return Timeframe5Min, nil
	case "15m", "15min":
		return Timeframe15Min, nil
	case "1h", "60m", "60min", "hour":
		return Timeframe1Hour, nil
	case "1d", "day", "daily":
		return TimeframeDaily, nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %q", s)
	}
}

// Duration returns the length of one candle at this timeframe. Daily candles
// report 24 hours even though the trading session is shorter.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1Min:
		return time.Minute
	case Timeframe5Min:
		return 5 * time.Minute
	case Timeframe15Min:
		return 15 * time.Minute
	case Timeframe1Hour:
		return time.Hour
	case TimeframeDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Minutes returns the bucket length in whole minutes, or 0 for daily.
func (tf Timeframe) Minutes() int {
	if tf == TimeframeDaily {
		return 0
	}
	return int(tf.Duration() / time.Minute)
}

// IsIntraday reports whether the timeframe is finer than one day. Intraday
// requests carry extended-hours session flags; daily requests omit them.
func (tf Timeframe) IsIntraday() bool {
	return tf != TimeframeDaily
}

// String implements fmt.Stringer.
func (tf Timeframe) String() string { return string(tf) }
