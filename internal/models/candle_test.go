package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test data constants
const (
	testSymbol   = "AAPL"
	testInterval = "1m"
)

var (
	testTime = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
)

func TestNewCandle_ValidData(t *testing.T) {
	tests := []struct {
		name   string
		open   string
		high   string
		low    string
		close  string
		volume int64
	}{
		{
			name:   "valid_bullish_candle",
			open:   "100.00",
			high:   "105.50",
			low:    "99.25",
			close:  "104.00",
			volume: 1500,
		},
		{
			name:   "valid_bearish_candle",
			open:   "100.00",
			high:   "102.00",
			low:    "95.50",
			close:  "96.75",
			volume: 2000,
		},
		{
			name:   "valid_doji_candle",
			open:   "100.00",
			high:   "101.00",
			low:    "99.00",
			close:  "100.00",
			volume: 500,
		},
		{
			name:   "valid_zero_volume",
			open:   "100.00",
			high:   "100.50",
			low:    "99.50",
			close:  "100.25",
			volume: 0,
		},
		{
			name:   "valid_high_precision",
			open:   "100.123456789",
			high:   "100.987654321",
			low:    "99.111111111",
			close:  "100.555555555",
			volume: 1234,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candle, err := NewCandle(testTime, tt.open, tt.high, tt.low, tt.close, tt.volume, testSymbol, testInterval)
			require.NoError(t, err)
			require.NotNil(t, candle)

			assert.Equal(t, testTime, candle.Timestamp)
			assert.Equal(t, tt.volume, candle.Volume)
			assert.Equal(t, testSymbol, candle.Symbol)
			assert.NoError(t, candle.Validate())
		})
	}
}

func TestCandle_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		candle    Candle
		wantField string
	}{
		{
			name: "zero_timestamp",
			candle: Candle{
				Open: dec("100"), High: dec("101"), Low: dec("99"), Close: dec("100"), Volume: 10,
			},
			wantField: "timestamp",
		},
		{
			name: "negative_open",
			candle: Candle{
				Timestamp: testTime,
				Open:      dec("-1"), High: dec("101"), Low: dec("99"), Close: dec("100"), Volume: 10,
			},
			wantField: "open",
		},
		{
			name: "zero_close",
			candle: Candle{
				Timestamp: testTime,
				Open:      dec("100"), High: dec("101"), Low: dec("99"), Close: decimal.Zero, Volume: 10,
			},
			wantField: "close",
		},
		{
			name: "negative_volume",
			candle: Candle{
				Timestamp: testTime,
				Open:      dec("100"), High: dec("101"), Low: dec("99"), Close: dec("100"), Volume: -1,
			},
			wantField: "volume",
		},
		{
			name: "high_below_open",
			candle: Candle{
				Timestamp: testTime,
				Open:      dec("102"), High: dec("101"), Low: dec("99"), Close: dec("100"), Volume: 10,
			},
			wantField: "high",
		},
		{
			name: "low_above_close",
			candle: Candle{
				Timestamp: testTime,
				Open:      dec("102"), High: dec("103"), Low: dec("101"), Close: dec("100.50"), Volume: 10,
			},
			wantField: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candle.Validate()
			require.Error(t, err)

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.wantField, valErr.Field)
			assert.False(t, tt.candle.IsStructurallyValid())
		})
	}
}

func TestCandle_Range(t *testing.T) {
	candle, err := NewCandle(testTime, "100", "105", "98", "103", 100, testSymbol, testInterval)
	require.NoError(t, err)

	assert.True(t, candle.Range().Equal(dec("7")))
	assert.True(t, candle.BodySize().Equal(dec("3")))
	assert.True(t, candle.IsBullish())
	assert.False(t, candle.IsBearish())
}

func TestNewCandle_BadDecimalStrings(t *testing.T) {
	_, err := NewCandle(testTime, "not-a-number", "101", "99", "100", 10, testSymbol, testInterval)
	assert.Error(t, err)

	_, err = NewCandle(testTime, "100", "101", "99", "", 10, testSymbol, testInterval)
	assert.Error(t, err)
}

func TestThresholds_Defaults(t *testing.T) {
	th := DefaultThresholds()

	assert.Equal(t, float64(15), th.SpikeMultiplier)
	assert.Equal(t, float64(100), th.VolumeMultiplier)
	assert.Equal(t, int64(1000), th.MinVolume)
	assert.NoError(t, th.Validate())
}

func TestThresholds_Validate(t *testing.T) {
	th := DefaultThresholds()
	th.SpikeMultiplier = 0
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.VolumeMultiplier = -5
	assert.Error(t, th.Validate())

	th = DefaultThresholds()
	th.MinVolume = -1
	assert.Error(t, th.Validate())
}

// dec is a test helper for building decimals from strings.
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
