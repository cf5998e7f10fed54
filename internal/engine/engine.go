// Package engine orchestrates the candle pipeline: fetch raw records from a
// provider, normalize them into candles, remove fake prints, resample to the
// display timeframe and grade the result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mdthewzrd/candle-engine/internal/config"
	"github.com/mdthewzrd/candle-engine/internal/errors"
	"github.com/mdthewzrd/candle-engine/internal/ingest"
	"github.com/mdthewzrd/candle-engine/internal/logger"
	"github.com/mdthewzrd/candle-engine/internal/models"
	"github.com/mdthewzrd/candle-engine/internal/provider"
	"github.com/mdthewzrd/candle-engine/internal/quality"
	"github.com/mdthewzrd/candle-engine/internal/resample"
	"github.com/mdthewzrd/candle-engine/internal/validator"
)

// Result is the outcome of one pipeline run.
type Result struct {
	RunID     string           `json:"run_id"`
	Symbol    string           `json:"symbol"`
	Timeframe models.Timeframe `json:"timeframe"`

	Candles   []models.Candle  `json:"candles"`
	Anomalies []models.Anomaly `json:"anomalies,omitempty"`
	Quality   quality.Report   `json:"quality"`

	RawCount     int           `json:"raw_count"`
	CleanCount   int           `json:"clean_count"`
	DroppedCount int           `json:"dropped_count"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Engine runs the pipeline for one symbol and display timeframe at a time. A
// single Engine is safe for concurrent runs: per-run state lives on the stack
// and thresholds are passed through, never stored mutably.
type Engine struct {
	provider     provider.Provider
	cleaner      *validator.Cleaner
	classifier   *errors.Classifier
	thresholds   models.Thresholds
	lookbackDays int
	logger       *slog.Logger
	now          func() time.Time
}

// New creates an engine from configuration. A nil logger falls back to
// slog.Default.
func New(p provider.Provider, cfg *config.AppConfig, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	thresholds := models.Thresholds{
		SpikeMultiplier:  cfg.Validator.SpikeMultiplier,
		VolumeMultiplier: cfg.Validator.VolumeMultiplier,
		MinVolume:        cfg.Validator.MinVolume,
	}

	policy := errors.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Retry.MaxAttempts
	if d, err := time.ParseDuration(cfg.Retry.InitialDelay); err == nil {
		policy.InitialDelay = d
	}
	if d, err := time.ParseDuration(cfg.Retry.MaxDelay); err == nil {
		policy.MaxDelay = d
	}

	return &Engine{
		provider:     p,
		cleaner:      validator.NewCleanerWithPolicy(validator.Policy(cfg.Validator.Policy), log),
		classifier:   errors.NewClassifier(policy, log),
		thresholds:   thresholds,
		lookbackDays: cfg.Provider.LookbackDays,
		logger:       log.With("component", "engine"),
		now:          time.Now,
	}
}

// Run executes the full pipeline for a symbol and display timeframe.
func (e *Engine) Run(ctx context.Context, symbol string, display models.Timeframe) (*Result, error) {
	if symbol == "" {
		return nil, fmt.Errorf("engine: symbol cannot be empty")
	}
	if !models.IsValidTimeframe(display) {
		return nil, fmt.Errorf("engine: unsupported timeframe %q", display)
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx = logger.WithSymbol(ctx, symbol)
	ctx = logger.WithTimeframe(ctx, string(display))

	log := e.logger.With("run_id", runID, "symbol", symbol, "timeframe", display)
	start := e.now()

	log.Info("pipeline run started", "lookback_days", e.lookbackDays)

	req := ingest.BuildRequest(symbol, display, e.lookbackDays, e.now().UTC())

	raw, err := e.provider.FetchRawSeries(ctx, req)
	if err != nil {
		classified := e.classifier.Classify(err, "provider", "fetch")
		log.Error("fetch failed", "kind", classified.Kind, "retryable", classified.Retryable, "error", err)
		return nil, fmt.Errorf("fetch failed for %s: %w", symbol, classified)
	}

	minute, err := ingest.Normalize(raw, symbol)
	if err != nil {
		classified := e.classifier.Classify(err, "ingest", "normalize")
		log.Error("normalization failed", "kind", classified.Kind, "error", err)
		return nil, fmt.Errorf("normalization failed for %s: %w", symbol, classified)
	}

	anomalies, err := e.cleaner.Detect(ctx, minute, e.thresholds)
	if err != nil {
		return nil, fmt.Errorf("detection failed for %s: %w", symbol, err)
	}

	cleaned, err := e.cleaner.Clean(ctx, minute, e.thresholds)
	if err != nil {
		return nil, fmt.Errorf("cleaning failed for %s: %w", symbol, err)
	}

	resampled, err := resample.Resample(cleaned, display)
	if err != nil {
		log.Error("resampling failed", "error", err)
		return nil, fmt.Errorf("resampling failed for %s: %w", symbol, err)
	}

	report := quality.Assess(cleaned)

	result := &Result{
		RunID:        runID,
		Symbol:       symbol,
		Timeframe:    display,
		Candles:      resampled,
		Anomalies:    anomalies,
		Quality:      report,
		RawCount:     len(raw),
		CleanCount:   len(cleaned),
		DroppedCount: len(minute) - len(cleaned),
		Elapsed:      e.now().Sub(start),
	}

	log.Info("pipeline run completed",
		"raw_count", result.RawCount,
		"clean_count", result.CleanCount,
		"dropped_count", result.DroppedCount,
		"output_count", len(resampled),
		"completeness", report.Completeness,
		"quality", report.QualityLabel,
		"elapsed", result.Elapsed)

	return result, nil
}

// Inspect runs fetch, normalization and detection without filtering or
// resampling, returning the untouched 1-minute series with its anomalies.
// Useful for auditing what a Run would drop.
func (e *Engine) Inspect(ctx context.Context, symbol string) ([]models.Candle, []models.Anomaly, error) {
	if symbol == "" {
		return nil, nil, fmt.Errorf("engine: symbol cannot be empty")
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx = logger.WithSymbol(ctx, symbol)

	req := ingest.BuildRequest(symbol, models.Timeframe1Min, e.lookbackDays, e.now().UTC())

	raw, err := e.provider.FetchRawSeries(ctx, req)
	if err != nil {
		classified := e.classifier.Classify(err, "provider", "fetch")
		return nil, nil, fmt.Errorf("fetch failed for %s: %w", symbol, classified)
	}

	minute, err := ingest.Normalize(raw, symbol)
	if err != nil {
		classified := e.classifier.Classify(err, "ingest", "normalize")
		return nil, nil, fmt.Errorf("normalization failed for %s: %w", symbol, classified)
	}

	anomalies, err := e.cleaner.Detect(ctx, minute, e.thresholds)
	if err != nil {
		return nil, nil, fmt.Errorf("detection failed for %s: %w", symbol, err)
	}

	return minute, anomalies, nil
}
