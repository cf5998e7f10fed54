package validator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdthewzrd/candle-engine/internal/models"
)

var baseTime = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

// unitRangeCandles builds n structurally valid one-minute candles with a
// price range of exactly 1.00 and the given volume.
func unitRangeCandles(n int, volume int64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Open:      dec("100"),
			High:      dec("101"),
			Low:       dec("100"),
			Close:     dec("101"),
			Volume:    volume,
		}
	}
	return candles
}

// flatCandles builds n candles with open=high=low=close=100.
func flatCandles(n int, volume int64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Open:      dec("100"),
			High:      dec("100"),
			Low:       dec("100"),
			Close:     dec("100"),
			Volume:    volume,
		}
	}
	return candles
}

func TestClean_FakePrintScenario(t *testing.T) {
	// 25 flat candles, volume 10000 throughout, except candle #22 (index 21)
	// which prints a 3000 high on 2M volume.
	candles := flatCandles(25, 10000)
	candles[21].High = dec("3000")
	candles[21].Close = dec("100")
	candles[21].Volume = 2_000_000

	cleaner := NewCleaner(nil)
	cleaned, err := cleaner.Clean(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)

	require.Len(t, cleaned, 24)
	for i, c := range cleaned {
		assert.True(t, c.High.Equal(dec("100")), "candle %d should be untouched", i)
		assert.Equal(t, int64(10000), c.Volume)
	}

	// Order preserved: timestamps ascend with the flagged minute missing.
	assert.Equal(t, baseTime.Add(20*time.Minute), cleaned[20].Timestamp)
	assert.Equal(t, baseTime.Add(22*time.Minute), cleaned[21].Timestamp)
}

func TestDetect_JointConditionBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		rangeMult  int64 // candle range as a multiple of the 1.00 baseline
		volumeMult int64 // candle volume as a multiple of the 10000 baseline
		flagged    bool
	}{
		{name: "extreme_range_normal_volume", rangeMult: 20, volumeMult: 1, flagged: false},
		{name: "extreme_volume_normal_range", rangeMult: 1, volumeMult: 150, flagged: false},
		{name: "both_extreme", rangeMult: 16, volumeMult: 120, flagged: true},
		{name: "both_at_threshold_not_strictly_above", rangeMult: 15, volumeMult: 100, flagged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := unitRangeCandles(25, 10000)
			idx := 22
			candles[idx].High = dec("100").Add(decimal.NewFromInt(tt.rangeMult))
			candles[idx].Close = candles[idx].High
			candles[idx].Volume = 10000 * tt.volumeMult

			cleaner := NewCleaner(nil)
			anomalies, err := cleaner.Detect(context.Background(), candles, models.DefaultThresholds())
			require.NoError(t, err)

			if tt.flagged {
				require.Len(t, anomalies, 1)
				assert.Equal(t, idx, anomalies[0].Index)
				assert.Equal(t, models.AnomalyTypeFakePrint, anomalies[0].Type)
			} else {
				assert.Empty(t, anomalies)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	candles := unitRangeCandles(40, 10000)

	cleaner := NewCleaner(nil)
	once, err := cleaner.Clean(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)
	require.Equal(t, candles, once)

	twice, err := cleaner.Clean(context.Background(), once, models.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	candles := flatCandles(25, 10000)
	candles[21].High = dec("3000")
	candles[21].Volume = 2_000_000

	cleaner := NewCleaner(nil)
	cleaned, err := cleaner.Clean(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)

	assert.Len(t, candles, 25, "input length unchanged")
	assert.True(t, candles[21].High.Equal(dec("3000")), "input contents unchanged")
	require.Len(t, cleaned, 24)

	// Output is independently owned: mutating it must not touch the input.
	cleaned[0].Volume = -999
	assert.Equal(t, int64(10000), candles[0].Volume)
}

func TestClean_SmallSampleSkipsStatistics(t *testing.T) {
	// 9 candles: one has absurd volume relative to the rest, but below the
	// minimum sample size only structural validation runs.
	candles := unitRangeCandles(9, 10000)
	candles[5].Volume = 50_000_000

	cleaner := NewCleaner(nil)
	cleaned, err := cleaner.Clean(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)
	assert.Len(t, cleaned, 9)

	// A structural violation is still removed at any sample size.
	candles[3].Low = dec("105") // low above open/close
	cleaned, err = cleaner.Clean(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)
	assert.Len(t, cleaned, 8)
}

func TestClean_MinVolumeFloor(t *testing.T) {
	candles := unitRangeCandles(30, 10000)
	candles[7].Volume = 500 // below the 1000 floor
	candles[12].Volume = 0  // zero print

	cleaner := NewCleaner(nil)
	cleaned, err := cleaner.Clean(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, cleaned, 28)

	for _, c := range cleaned {
		assert.GreaterOrEqual(t, c.Volume, int64(1000))
		assert.NoError(t, c.Validate())
	}
}

func TestClean_OutputInvariant(t *testing.T) {
	// Mixed garbage in: structural violations, zero volume, one fake print.
	candles := unitRangeCandles(40, 10000)
	candles[4].High = dec("99") // high below open
	candles[9].Volume = 0
	candles[25].High = dec("200")
	candles[25].Close = dec("200")
	candles[25].Volume = 5_000_000

	cleaner := NewCleaner(nil)
	cleaned, err := cleaner.Clean(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, cleaned, 37)

	for _, c := range cleaned {
		assert.NoError(t, c.Validate())
		assert.GreaterOrEqual(t, c.Volume, int64(1000))
	}
}

func TestClean_BaselineUsesOriginalSequence(t *testing.T) {
	// A fake print at index 24 inflates the rolling baseline for the candles
	// that follow it. The moderately large candle at index 25 would be
	// flagged if baselines were recomputed over the cleaned output; against
	// the original (uncleaned) window it passes.
	candles := unitRangeCandles(30, 10000)

	candles[24].High = dec("200") // range 100x, volume 500x: flagged
	candles[24].Close = dec("200")
	candles[24].Volume = 5_000_000

	candles[25].High = dec("150") // range 50x, volume 200x of the CLEAN baseline
	candles[25].Close = dec("150")
	candles[25].Volume = 2_000_000

	cleaner := NewCleaner(nil)
	anomalies, err := cleaner.Detect(context.Background(), candles, models.DefaultThresholds())
	require.NoError(t, err)

	require.Len(t, anomalies, 1)
	assert.Equal(t, 24, anomalies[0].Index)
}

func TestClean_EmptyInput(t *testing.T) {
	cleaner := NewCleaner(nil)
	cleaned, err := cleaner.Clean(context.Background(), nil, models.DefaultThresholds())
	require.NoError(t, err)
	assert.Empty(t, cleaned)
}

func TestClean_InterpolatePolicyNotImplemented(t *testing.T) {
	cleaner := NewCleanerWithPolicy(PolicyInterpolate, nil)
	_, err := cleaner.Clean(context.Background(), unitRangeCandles(25, 10000), models.DefaultThresholds())
	assert.ErrorIs(t, err, ErrPolicyNotImplemented)
}

func TestClean_InvalidThresholds(t *testing.T) {
	cleaner := NewCleaner(nil)
	bad := models.Thresholds{SpikeMultiplier: 0, VolumeMultiplier: 100, MinVolume: 1000}
	_, err := cleaner.Clean(context.Background(), unitRangeCandles(25, 10000), bad)
	assert.Error(t, err)
}

func TestClean_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cleaner := NewCleaner(nil)
	_, err := cleaner.Clean(ctx, unitRangeCandles(25, 10000), models.DefaultThresholds())
	assert.ErrorIs(t, err, context.Canceled)
}

// dec is a test helper for building decimals from strings.
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
