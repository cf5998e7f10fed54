// Package models provides the core data structures for the candle sanitation
// and aggregation engine: canonical candles, timeframes, thresholds, anomaly
// diagnostics, and quality reports.
//
// All price fields use decimal arithmetic (shopspring/decimal) so that
// aggregation across time buckets is exact and lossless. Volume is an integer
// share count. None of the types in this package carry mutable global state;
// every configuration value is threaded through calls explicitly.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents OHLCV price and volume data for a single minute-aligned
// time bucket of a symbol.
type Candle struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	Symbol    string          `json:"symbol,omitempty"`
	Interval  string          `json:"interval,omitempty"`
}

// ValidationError represents a candle validation error with specific field context.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message is a descriptive error message explaining the failure
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate performs structural validation on the candle data.
// It checks that the timestamp is set, all prices are positive, volume is
// non-negative, and the OHLC relationships hold:
// High >= max(Open, Close), Low <= min(Open, Close), Low <= High.
// Returns a ValidationError describing the first violation found.
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp cannot be zero"}
	}

	zero := decimal.Zero
	if c.Open.LessThanOrEqual(zero) {
		return &ValidationError{Field: "open", Message: "open price must be greater than 0"}
	}
	if c.High.LessThanOrEqual(zero) {
		return &ValidationError{Field: "high", Message: "high price must be greater than 0"}
	}
	if c.Low.LessThanOrEqual(zero) {
		return &ValidationError{Field: "low", Message: "low price must be greater than 0"}
	}
	if c.Close.LessThanOrEqual(zero) {
		return &ValidationError{Field: "close", Message: "close price must be greater than 0"}
	}

	if c.Volume < 0 {
		return &ValidationError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}

	// High >= max(Open, Close)
	maxOpenClose := decimal.Max(c.Open, c.Close)
	if c.High.LessThan(maxOpenClose) {
		return &ValidationError{
			Field:   "high",
			Message: fmt.Sprintf("high price (%s) must be greater than or equal to max(open, close) (%s)", c.High, maxOpenClose),
		}
	}

	// Low <= min(Open, Close)
	minOpenClose := decimal.Min(c.Open, c.Close)
	if c.Low.GreaterThan(minOpenClose) {
		return &ValidationError{
			Field:   "low",
			Message: fmt.Sprintf("low price (%s) must be less than or equal to min(open, close) (%s)", c.Low, minOpenClose),
		}
	}

	return nil
}

// IsStructurallyValid reports whether the candle satisfies the OHLC
// relationships. Used on the hot path of the cleaning pass.
func (c *Candle) IsStructurallyValid() bool {
	return c.Validate() == nil
}

// Range returns the true range of the candle: High - Low.
func (c *Candle) Range() decimal.Decimal {
	return c.High.Sub(c.Low)
}

// BodySize returns the absolute difference between open and close prices.
func (c *Candle) BodySize() decimal.Decimal {
	return c.Close.Sub(c.Open).Abs()
}

// IsBullish reports whether the close price is greater than the open price.
func (c *Candle) IsBullish() bool {
	return c.Close.GreaterThan(c.Open)
}

// IsBearish reports whether the close price is less than the open price.
func (c *Candle) IsBearish() bool {
	return c.Close.LessThan(c.Open)
}

// String returns a human-readable representation of the candle, implementing
// the fmt.Stringer interface.
func (c *Candle) String() string {
	return fmt.Sprintf("Candle{Symbol: %s, Interval: %s, Timestamp: %s, O: %s, H: %s, L: %s, C: %s, V: %d}",
		c.Symbol, c.Interval, c.Timestamp.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
}

// NewCandle creates a new Candle from decimal strings and validates it.
// The timestamp should be the start of the candle's minute bucket.
//
// Example:
//
//	candle, err := NewCandle(ts, "100.50", "101.00", "100.00", "100.75", 1500, "AAPL", "1m")
func NewCandle(timestamp time.Time, open, high, low, close string, volume int64, symbol, interval string) (*Candle, error) {
	o, err := decimal.NewFromString(open)
	if err != nil {
		return nil, fmt.Errorf("invalid open price %q: %w", open, err)
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return nil, fmt.Errorf("invalid high price %q: %w", high, err)
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return nil, fmt.Errorf("invalid low price %q: %w", low, err)
	}
	cl, err := decimal.NewFromString(close)
	if err != nil {
		return nil, fmt.Errorf("invalid close price %q: %w", close, err)
	}

	candle := &Candle{
		Timestamp: timestamp,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     cl,
		Volume:    volume,
		Symbol:    symbol,
		Interval:  interval,
	}

	if err := candle.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create candle: %w", err)
	}

	return candle, nil
}

// Thresholds configures the anomaly detector. Values are immutable per call;
// use DefaultThresholds and override individual fields as needed.
type Thresholds struct {
	// SpikeMultiplier is the factor by which a candle's range must exceed the
	// rolling average range before the joint fake-print condition can trigger.
	SpikeMultiplier float64 `json:"spike_multiplier"`

	// VolumeMultiplier is the factor by which a candle's volume must exceed
	// the rolling average volume before the joint fake-print condition can
	// trigger.
	VolumeMultiplier float64 `json:"volume_multiplier"`

	// MinVolume is the minimum volume below which a candle is treated as an
	// illiquid print and removed.
	MinVolume int64 `json:"min_volume"`
}

// DefaultThresholds returns the standard detection thresholds: a 15x range
// spike combined with 100x volume, and a 1000-share liquidity floor.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SpikeMultiplier:  15,
		VolumeMultiplier: 100,
		MinVolume:        1000,
	}
}

// Validate checks that all threshold values are usable.
func (t Thresholds) Validate() error {
	if t.SpikeMultiplier <= 0 {
		return &ValidationError{Field: "spike_multiplier", Message: "spike multiplier must be positive"}
	}
	if t.VolumeMultiplier <= 0 {
		return &ValidationError{Field: "volume_multiplier", Message: "volume multiplier must be positive"}
	}
	if t.MinVolume < 0 {
		return &ValidationError{Field: "min_volume", Message: "min volume cannot be negative"}
	}
	return nil
}
