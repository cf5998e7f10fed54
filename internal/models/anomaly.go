package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SeverityLevel represents the severity of a detected anomaly.
type SeverityLevel string

const (
	SeverityInfo    SeverityLevel = "info"
	SeverityWarning SeverityLevel = "warning"
	SeverityError   SeverityLevel = "error"
)

// AnomalyType represents the type of anomaly detected during cleaning.
type AnomalyType string

const (
	// AnomalyTypeFakePrint marks a candle whose range AND volume are both
	// extreme relative to the rolling baseline. Either alone is common market
	// behavior; the joint signature is what identifies an erroneous print.
	AnomalyTypeFakePrint AnomalyType = "fake_print"

	// AnomalyTypeStructural marks a candle violating the OHLC relationships.
	AnomalyTypeStructural AnomalyType = "structural_violation"

	// AnomalyTypeIlliquid marks a candle whose volume is below the liquidity
	// floor.
	AnomalyTypeIlliquid AnomalyType = "illiquid_print"
)

// Anomaly represents a detected data quality issue on a single candle.
// Index refers to the candle's position in the original input sequence.
type Anomaly struct {
	Index       int             `json:"index"`
	Type        AnomalyType     `json:"type"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	Threshold   decimal.Decimal `json:"threshold"`
	Severity    SeverityLevel   `json:"severity"`
}

// NewFakePrintAnomaly creates an anomaly for a candle whose range and volume
// jointly exceeded their baselines. Value carries the range ratio and
// Threshold the configured spike multiplier.
func NewFakePrintAnomaly(index int, rangeRatio, spikeMultiplier decimal.Decimal) Anomaly {
	return Anomaly{
		Index: index,
		Type:  AnomalyTypeFakePrint,
		Description: fmt.Sprintf("fake print: range %.1fx baseline with extreme volume (threshold %sx)",
			rangeRatio.InexactFloat64(), spikeMultiplier),
		Value:     rangeRatio,
		Threshold: spikeMultiplier,
		Severity:  SeverityError,
	}
}

// NewStructuralAnomaly creates an anomaly for an OHLC invariant violation.
func NewStructuralAnomaly(index int, reason string) Anomaly {
	return Anomaly{
		Index:       index,
		Type:        AnomalyTypeStructural,
		Description: fmt.Sprintf("structural violation: %s", reason),
		Severity:    SeverityError,
	}
}

// NewIlliquidAnomaly creates an anomaly for a candle below the volume floor.
func NewIlliquidAnomaly(index int, volume, minVolume int64) Anomaly {
	return Anomaly{
		Index:       index,
		Type:        AnomalyTypeIlliquid,
		Description: fmt.Sprintf("illiquid print: volume %d below floor %d", volume, minVolume),
		Value:       decimal.NewFromInt(volume),
		Threshold:   decimal.NewFromInt(minVolume),
		Severity:    SeverityWarning,
	}
}
