package ingest

import (
	"time"

	"github.com/mdthewzrd/candle-engine/internal/models"
)

// Session boundary constants for US equities, in exchange-local clock terms.
// Premarket runs roughly 04:00-09:30, afterhours roughly 16:00-20:00.
const (
	PremarketOpenHour    = 4
	RegularOpenHour      = 9
	RegularOpenMinute    = 30
	RegularCloseHour     = 16
	AfterhoursCloseHour  = 20
	sourceGranularity    = "1min"
	minutesPerTradingDay = 960 // 16 extended-hours trading hours
)

// RequestDescriptor describes a data request to the upstream market-data
// provider. Granularity is always 1 minute regardless of the caller's display
// timeframe: all coarser timeframes are derived by resampling, which
// guarantees bucket alignment and avoids double-counting at boundaries.
type RequestDescriptor struct {
	Symbol      string    `json:"symbol"`
	Granularity string    `json:"granularity"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`

	// Extended-hours session flags. Set for intraday display timeframes,
	// omitted for daily requests.
	ExtendedHours bool `json:"extended_hours,omitempty"`
	Premarket     bool `json:"premarket,omitempty"`
	Afterhours    bool `json:"afterhours,omitempty"`
}

// Validate checks that the descriptor has usable parameters.
func (r *RequestDescriptor) Validate() error {
	if r.Symbol == "" {
		return &models.ValidationError{Field: "symbol", Message: "symbol cannot be empty"}
	}
	if r.Granularity == "" {
		return &models.ValidationError{Field: "granularity", Message: "granularity cannot be empty"}
	}
	if r.Start.IsZero() {
		return &models.ValidationError{Field: "start", Message: "start time cannot be zero"}
	}
	if r.End.IsZero() {
		return &models.ValidationError{Field: "end", Message: "end time cannot be zero"}
	}
	if !r.End.After(r.Start) {
		return &models.ValidationError{Field: "end", Message: "end time must be after start time"}
	}
	return nil
}

// Duration returns the time span of the request.
func (r *RequestDescriptor) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// BuildRequest constructs the provider request for a display timeframe and a
// lookback window in days, ending at now. The source granularity is always
// 1 minute. Intraday display timeframes request both the premarket and
// afterhours sessions; a daily display timeframe omits the session flags.
func BuildRequest(symbol string, display models.Timeframe, lookbackDays int, now time.Time) RequestDescriptor {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}

	req := RequestDescriptor{
		Symbol:      symbol,
		Granularity: sourceGranularity,
		Start:       now.AddDate(0, 0, -lookbackDays),
		End:         now,
	}

	if display.IsIntraday() {
		req.ExtendedHours = true
		req.Premarket = true
		req.Afterhours = true
	}

	return req
}
