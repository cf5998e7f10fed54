// Package validator implements anomaly ("fake print") detection and removal
// for 1-minute candle sequences.
//
// Detection is statistically local and label-free: each candle at index
// i >= 20 is compared against a rolling baseline of the average true range
// and average volume over the preceding 20 candles of the ORIGINAL sequence.
// Baselines are never computed over already-filtered output, so detection is
// independent of earlier removals within the same call and deterministic for
// a fixed input.
//
// A candle is removed when any of these hold:
//
//  1. volume < MinVolume (illiquid or zero print)
//  2. the structural OHLC invariant is violated
//  3. JOINTLY: range > avgRange*SpikeMultiplier AND
//     volume > avgVolume*VolumeMultiplier
//
// The third condition requires both legs simultaneously. A legitimate large
// move on unusually large volume passes; a real volume spike with a normal
// range passes. The coincidence of extreme range with extreme volume is the
// defining signature of an erroneous print.
//
// Invalid candles are dropped, never corrected or interpolated. Drops surface
// only as debug-level logs, never as caller-visible failures.
package validator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mdthewzrd/candle-engine/internal/models"
)

const (
	// windowSize is the rolling baseline look-back, in candles.
	windowSize = 20

	// minSampleSize is the sequence length below which statistical detection
	// is skipped entirely; there is no reliable local baseline under it.
	// Structural OHLC validation still runs.
	minSampleSize = 10
)

// Policy selects how flagged candles are handled. Only PolicyDrop is
// implemented; the enum exists so the contract does not change if an
// interpolation path is added later.
type Policy string

const (
	// PolicyDrop removes flagged candles from the output entirely.
	PolicyDrop Policy = "drop"

	// PolicyInterpolate would replace flagged candles with interpolated
	// values. Not implemented: fabricating price history is a fidelity risk
	// the engine deliberately avoids.
	PolicyInterpolate Policy = "interpolate"
)

// ErrPolicyNotImplemented is returned when a Cleaner is asked to run a policy
// other than PolicyDrop.
var ErrPolicyNotImplemented = errors.New("validator: only the drop policy is implemented")

// Cleaner removes anomalous candles from ordered 1-minute sequences.
// Thresholds are passed explicitly per call and never stored, so a single
// Cleaner is safe to share across concurrent calls on independent inputs.
type Cleaner struct {
	policy Policy
	logger *slog.Logger
}

// NewCleaner creates a Cleaner with the drop policy.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		policy: PolicyDrop,
		logger: logger.With("component", "validator"),
	}
}

// NewCleanerWithPolicy creates a Cleaner with an explicit policy. The policy
// is validated at Clean time, not here, so callers can construct eagerly.
func NewCleanerWithPolicy(policy Policy, logger *slog.Logger) *Cleaner {
	cleaner := NewCleaner(logger)
	cleaner.policy = policy
	return cleaner
}

// Clean returns a new sequence containing only the candles that pass
// validation, in original order. The input is never mutated and the output
// shares no storage with it. Cleaning an already-clean sequence returns an
// equal sequence.
func (c *Cleaner) Clean(ctx context.Context, candles []models.Candle, thresholds models.Thresholds) ([]models.Candle, error) {
	if c.policy != PolicyDrop {
		return nil, ErrPolicyNotImplemented
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	anomalies, err := c.Detect(ctx, candles, thresholds)
	if err != nil {
		return nil, err
	}

	flagged := make(map[int]models.Anomaly, len(anomalies))
	for _, anomaly := range anomalies {
		flagged[anomaly.Index] = anomaly
	}

	cleaned := make([]models.Candle, 0, len(candles))
	for i, candle := range candles {
		if anomaly, ok := flagged[i]; ok {
			c.logger.Debug("dropping anomalous candle",
				"index", i,
				"timestamp", candle.Timestamp,
				"type", anomaly.Type,
				"detail", anomaly.Description)
			continue
		}
		cleaned = append(cleaned, candle)
	}

	return cleaned, nil
}

// Detect scans the sequence and returns at most one anomaly per candle,
// without filtering anything. Indices refer to positions in the input.
func (c *Cleaner) Detect(ctx context.Context, candles []models.Candle, thresholds models.Thresholds) ([]models.Anomaly, error) {
	var anomalies []models.Anomaly

	// Below the minimum sample size only structural checks run.
	if len(candles) < minSampleSize {
		for i := range candles {
			if err := candles[i].Validate(); err != nil {
				anomalies = append(anomalies, models.NewStructuralAnomaly(i, err.Error()))
			}
		}
		return anomalies, nil
	}

	spike := decimal.NewFromFloat(thresholds.SpikeMultiplier)
	volumeMult := decimal.NewFromFloat(thresholds.VolumeMultiplier)
	window := decimal.NewFromInt(windowSize)

	// Rolling sums over the preceding windowSize candles of the original
	// sequence. At the top of iteration i (for i >= windowSize) they cover
	// exactly [i-windowSize, i).
	sumRange := decimal.Zero
	var sumVolume int64

	for i := range candles {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candle := &candles[i]

		switch {
		case candle.Volume < thresholds.MinVolume:
			anomalies = append(anomalies, models.NewIlliquidAnomaly(i, candle.Volume, thresholds.MinVolume))

		case !candle.IsStructurallyValid():
			anomalies = append(anomalies, models.NewStructuralAnomaly(i, candle.Validate().Error()))

		case i >= windowSize:
			avgRange := sumRange.Div(window)
			avgVolume := decimal.NewFromInt(sumVolume).Div(window)

			rangeExtreme := candle.Range().GreaterThan(avgRange.Mul(spike))
			volumeExtreme := decimal.NewFromInt(candle.Volume).GreaterThan(avgVolume.Mul(volumeMult))

			// Both legs must hold; either alone is ordinary market behavior.
			if rangeExtreme && volumeExtreme {
				ratio := decimal.Zero
				if avgRange.IsPositive() {
					ratio = candle.Range().Div(avgRange)
				}
				anomalies = append(anomalies, models.NewFakePrintAnomaly(i, ratio, spike))
			}
		}

		// Slide the window forward over the original sequence, flagged or not.
		sumRange = sumRange.Add(candle.Range())
		sumVolume += candle.Volume
		if i >= windowSize {
			sumRange = sumRange.Sub(candles[i-windowSize].Range())
			sumVolume -= candles[i-windowSize].Volume
		}
	}

	return anomalies, nil
}
