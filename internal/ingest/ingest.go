// Package ingest normalizes loosely typed raw market-data records into the
// canonical Candle shape and builds provider request descriptors.
//
// Upstream providers disagree on field naming: the same minute bar may arrive
// as {"t":..., "o":..., "h":...} or {"timestamp":..., "open":..., "high":...}.
// The adapter resolves each canonical field through an explicit alias table
// once per record into a strongly typed Candle, preserving input order. A
// record with no alias match for a required field is rejected with a
// descriptive MalformedRecordError rather than silently defaulted, since a
// fabricated zero would corrupt the OHLC invariants undetectably downstream.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mdthewzrd/candle-engine/internal/models"
)

// RawRecord is one loosely typed OHLCV record as decoded from a provider
// response. Values may be JSON numbers, strings, or json.Number.
type RawRecord map[string]any

// fieldAliases maps each canonical candle field to the source keys it may
// appear under, in lookup priority order.
var fieldAliases = map[string][]string{
	"timestamp": {"t", "timestamp", "time", "datetime"},
	"open":      {"o", "open"},
	"high":      {"h", "high"},
	"low":       {"l", "low"},
	"close":     {"c", "close"},
	"volume":    {"v", "volume", "vol"},
}

// MalformedRecordError indicates a raw record that could not be normalized:
// either no recognized alias matched a required field, or a matched value
// could not be converted to the field's type.
type MalformedRecordError struct {
	Index  int    // position of the record in the input slice
	Field  string // canonical field that failed resolution
	Reason string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at index %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// Normalize maps raw provider records into canonical candles, in the order
// received. The returned slice is freshly allocated and shares no storage
// with the input. Normalization fails fast on the first malformed record.
func Normalize(records []RawRecord, symbol string) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(records))

	for i, record := range records {
		candle, err := normalizeRecord(record, i)
		if err != nil {
			return nil, err
		}
		candle.Symbol = symbol
		candle.Interval = string(models.Timeframe1Min)
		candles = append(candles, *candle)
	}

	return candles, nil
}

// normalizeRecord resolves one record through the alias table.
func normalizeRecord(record RawRecord, index int) (*models.Candle, error) {
	ts, err := resolveTimestamp(record, index)
	if err != nil {
		return nil, err
	}

	open, err := resolvePrice(record, "open", index)
	if err != nil {
		return nil, err
	}
	high, err := resolvePrice(record, "high", index)
	if err != nil {
		return nil, err
	}
	low, err := resolvePrice(record, "low", index)
	if err != nil {
		return nil, err
	}
	closePrice, err := resolvePrice(record, "close", index)
	if err != nil {
		return nil, err
	}

	volume, err := resolveVolume(record, index)
	if err != nil {
		return nil, err
	}

	return &models.Candle{
		Timestamp: ts.Truncate(time.Minute),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

// lookup finds the first alias of the canonical field present in the record.
func lookup(record RawRecord, field string) (any, bool) {
	for _, alias := range fieldAliases[field] {
		if value, ok := record[alias]; ok {
			return value, true
		}
	}
	return nil, false
}

func resolveTimestamp(record RawRecord, index int) (time.Time, error) {
	value, ok := lookup(record, "timestamp")
	if !ok {
		return time.Time{}, &MalformedRecordError{Index: index, Field: "timestamp", Reason: "no recognized alias present"}
	}

	switch v := value.(type) {
	case float64:
		return unixToTime(int64(v)), nil
	case int64:
		return unixToTime(v), nil
	case int:
		return unixToTime(int64(v)), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, &MalformedRecordError{Index: index, Field: "timestamp", Reason: err.Error()}
		}
		return unixToTime(n), nil
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return unixToTime(n), nil
		}
		return time.Time{}, &MalformedRecordError{Index: index, Field: "timestamp", Reason: fmt.Sprintf("unparseable timestamp %q", v)}
	default:
		return time.Time{}, &MalformedRecordError{Index: index, Field: "timestamp", Reason: fmt.Sprintf("unsupported type %T", value)}
	}
}

// unixToTime interprets an epoch value as milliseconds when it is too large
// to be a plausible epoch in seconds.
func unixToTime(n int64) time.Time {
	const msThreshold = int64(1e12)
	if n >= msThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func resolvePrice(record RawRecord, field string, index int) (decimal.Decimal, error) {
	value, ok := lookup(record, field)
	if !ok {
		return decimal.Zero, &MalformedRecordError{Index: index, Field: field, Reason: "no recognized alias present"}
	}

	d, err := toDecimal(value)
	if err != nil {
		return decimal.Zero, &MalformedRecordError{Index: index, Field: field, Reason: err.Error()}
	}
	return d, nil
}

func resolveVolume(record RawRecord, index int) (int64, error) {
	value, ok := lookup(record, "volume")
	if !ok {
		return 0, &MalformedRecordError{Index: index, Field: "volume", Reason: "no recognized alias present"}
	}

	d, err := toDecimal(value)
	if err != nil {
		return 0, &MalformedRecordError{Index: index, Field: "volume", Reason: err.Error()}
	}
	return d.IntPart(), nil
}

// toDecimal converts the JSON value shapes providers actually send.
func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", value)
	}
}
