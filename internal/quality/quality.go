// Package quality computes completeness and health metrics for candle
// sequences.
//
// Expected candle counts are derived from the elapsed span between the first
// and last candle, scaled by the fraction of a calendar day covered by
// extended trading hours (04:00-20:00, i.e. 960 of 1440 minutes). The
// approximation is holiday-blind: market holidays and early closes cause
// systematic under/over-estimation around those dates, which is why
// completeness is capped at 1.0 rather than allowed to exceed 100%.
package quality

import (
	"time"

	"github.com/mdthewzrd/candle-engine/internal/models"
)

// extendedHoursFraction is the share of a calendar day covered by the
// extended trading session: 16 of 24 hours.
const (
	extendedMinutesPerDay = 960
	calendarMinutesPerDay = 1440
)

// Completeness thresholds for the quality label.
const (
	excellentThreshold = 0.95
	goodThreshold      = 0.85
)

// Label grades a sequence's completeness.
type Label string

const (
	LabelExcellent Label = "excellent"
	LabelGood      Label = "good"
	LabelPoor      Label = "poor"
)

// Report summarizes the health of a candle sequence. It is computed on
// demand and never cached.
type Report struct {
	TotalCandles    int     `json:"total_candles"`
	ExpectedCandles float64 `json:"expected_candles"`
	Completeness    float64 `json:"completeness"`
	QualityLabel    Label   `json:"quality_label"`
	AverageVolume   float64 `json:"average_volume"`
	ZeroVolumeCount int     `json:"zero_volume_count"`
}

// Assess computes a quality report for any candle sequence, raw or cleaned
// or resampled. An empty input yields a zero-valued report with completeness
// 0 and label "poor"; no division error occurs.
func Assess(candles []models.Candle) Report {
	if len(candles) == 0 {
		return Report{QualityLabel: LabelPoor}
	}

	report := Report{TotalCandles: len(candles)}

	var totalVolume int64
	for i := range candles {
		totalVolume += candles[i].Volume
		if candles[i].Volume == 0 {
			report.ZeroVolumeCount++
		}
	}
	report.AverageVolume = float64(totalVolume) / float64(len(candles))

	elapsed := candles[len(candles)-1].Timestamp.Sub(candles[0].Timestamp)
	report.ExpectedCandles = elapsed.Minutes() * extendedMinutesPerDay / calendarMinutesPerDay

	if report.ExpectedCandles > 0 {
		report.Completeness = float64(report.TotalCandles) / report.ExpectedCandles
	} else {
		// Zero elapsed span (a single candle) cannot be incomplete.
		report.Completeness = 1.0
	}

	// Cap at 1.0 to avoid >100% artifacts around non-trading days.
	if report.Completeness > 1.0 {
		report.Completeness = 1.0
	}

	report.QualityLabel = labelFor(report.Completeness)
	return report
}

// labelFor grades a completeness ratio.
func labelFor(completeness float64) Label {
	switch {
	case completeness > excellentThreshold:
		return LabelExcellent
	case completeness > goodThreshold:
		return LabelGood
	default:
		return LabelPoor
	}
}

// ExpectedForSpan returns the number of 1-minute candles expected over an
// arbitrary span under the extended-hours approximation. Exposed for callers
// sizing fetches ahead of time.
func ExpectedForSpan(span time.Duration) float64 {
	if span <= 0 {
		return 0
	}
	return span.Minutes() * extendedMinutesPerDay / calendarMinutesPerDay
}
