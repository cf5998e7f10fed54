package quality

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdthewzrd/candle-engine/internal/models"
)

var dayStart = time.Date(2024, 3, 4, 4, 0, 0, 0, time.UTC)

// minuteCandles builds n consecutive one-minute candles with the given volume.
func minuteCandles(start time.Time, n int, volume int64) []models.Candle {
	price := decimal.NewFromInt(100)
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    volume,
		}
	}
	return candles
}

func TestAssess_FullSessionIsExcellent(t *testing.T) {
	// One candle per minute across exactly 16 hours, no gaps.
	candles := minuteCandles(dayStart, 16*60+1, 5000)

	report := Assess(candles)

	assert.Equal(t, 16*60+1, report.TotalCandles)
	assert.InDelta(t, 1.0, report.Completeness, 0.01)
	assert.Equal(t, LabelExcellent, report.QualityLabel)
	assert.Equal(t, float64(5000), report.AverageVolume)
	assert.Zero(t, report.ZeroVolumeCount)
}

func TestAssess_EmptyInput(t *testing.T) {
	report := Assess(nil)

	assert.Zero(t, report.TotalCandles)
	assert.Zero(t, report.ExpectedCandles)
	assert.Zero(t, report.Completeness)
	assert.Equal(t, LabelPoor, report.QualityLabel)
	assert.Zero(t, report.AverageVolume)
}

func TestAssess_SingleCandle(t *testing.T) {
	report := Assess(minuteCandles(dayStart, 1, 100))

	assert.Equal(t, 1, report.TotalCandles)
	assert.Equal(t, 1.0, report.Completeness, "zero elapsed span cannot be incomplete")
	assert.Equal(t, LabelExcellent, report.QualityLabel)
}

func TestAssess_Labels(t *testing.T) {
	tests := []struct {
		name  string
		keep  float64 // fraction of the session's candles retained
		label Label
	}{
		{name: "dense_sequence_excellent", keep: 1.0, label: LabelExcellent},
		{name: "minor_gaps_good", keep: 0.90, label: LabelGood},
		{name: "sparse_sequence_poor", keep: 0.40, label: LabelPoor},
	}

	// A 6-hour span expects 360*(960/1440) = 240 candles. Scale the kept
	// count against that expectation, pinning first and last candles so the
	// elapsed span stays fixed.
	const spanMinutes = 6 * 60
	expected := float64(spanMinutes) * 960 / 1440

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keepCount := int(expected * tt.keep)
			require.GreaterOrEqual(t, keepCount, 2)

			candles := make([]models.Candle, 0, keepCount)
			full := minuteCandles(dayStart, spanMinutes+1, 1000)
			candles = append(candles, full[0])
			for i := 1; len(candles) < keepCount-1; i++ {
				candles = append(candles, full[i])
			}
			candles = append(candles, full[spanMinutes])

			report := Assess(candles)
			assert.Equal(t, tt.label, report.QualityLabel,
				"completeness %.3f", report.Completeness)
		})
	}
}

func TestAssess_CompletenessCappedAtOne(t *testing.T) {
	// A fully dense calendar span exceeds the extended-hours expectation
	// (1440 observed vs 960 expected per day); the ratio must cap at 1.0.
	candles := minuteCandles(dayStart, 24*60, 1000)

	report := Assess(candles)
	assert.Equal(t, 1.0, report.Completeness)
	assert.Equal(t, LabelExcellent, report.QualityLabel)
}

func TestAssess_ZeroVolumeCount(t *testing.T) {
	candles := minuteCandles(dayStart, 100, 2000)
	candles[10].Volume = 0
	candles[55].Volume = 0
	candles[99].Volume = 0

	report := Assess(candles)
	assert.Equal(t, 3, report.ZeroVolumeCount)
	assert.InDelta(t, 2000.0*97/100, report.AverageVolume, 0.001)
}

func TestExpectedForSpan(t *testing.T) {
	assert.Equal(t, 0.0, ExpectedForSpan(0))
	assert.Equal(t, 0.0, ExpectedForSpan(-time.Hour))
	assert.InDelta(t, 960, ExpectedForSpan(24*time.Hour), 0.001)
	assert.InDelta(t, 40, ExpectedForSpan(time.Hour), 0.001)
}
