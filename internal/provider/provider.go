// Package provider fetches raw 1-minute bar series from an upstream market
// data API. Responses are delivered as loosely typed records so the ingestion
// layer owns all field normalization; the provider only handles transport,
// rate limiting and retries.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/mdthewzrd/candle-engine/internal/config"
	"github.com/mdthewzrd/candle-engine/internal/ingest"
)

const (
	barsEndpoint = "/v1/bars/%s"

	requestTimeout = 30 * time.Second

	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
	retryMultiplier   = 2.0
	retryJitter       = 0.5

	healthCheckTimeout = 5 * time.Second
)

// Provider fetches raw bar series for a request descriptor.
type Provider interface {
	FetchRawSeries(ctx context.Context, req ingest.RequestDescriptor) ([]ingest.RawRecord, error)
}

// HTTPProvider implements Provider against a JSON HTTP API.
type HTTPProvider struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	logger      *slog.Logger
}

// NewHTTPProvider creates a provider from configuration. A nil logger falls
// back to slog.Default.
func NewHTTPProvider(cfg config.ProviderConfig, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := requestTimeout
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 5
	}

	return &HTTPProvider{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		logger:      logger.With("component", "provider"),
	}
}

// FetchRawSeries fetches the raw 1-minute series described by req. Records
// come back in provider order; the ingestion layer is responsible for field
// resolution and the resampler for ordering checks.
func (p *HTTPProvider) FetchRawSeries(ctx context.Context, req ingest.RequestDescriptor) ([]ingest.RawRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	p.logger.Debug("fetching raw series",
		"symbol", req.Symbol,
		"granularity", req.Granularity,
		"start", req.Start,
		"end", req.End)

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	requestURL := fmt.Sprintf(p.baseURL+barsEndpoint, url.PathEscape(req.Symbol))

	params := url.Values{}
	params.Add("granularity", req.Granularity)
	params.Add("start", strconv.FormatInt(req.Start.Unix(), 10))
	params.Add("end", strconv.FormatInt(req.End.Unix(), 10))
	if req.ExtendedHours {
		params.Add("extended", "true")
	}
	if p.apiKey != "" {
		params.Add("apiKey", p.apiKey)
	}

	body, err := p.makeRequestWithRetry(ctx, requestURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series for %s: %w", req.Symbol, err)
	}

	var apiResponse struct {
		Results []ingest.RawRecord `json:"results"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse series response: %w", err)
	}

	p.logger.Debug("fetched raw series",
		"symbol", req.Symbol,
		"count", len(apiResponse.Results))

	return apiResponse.Results, nil
}

// HealthCheck probes the API root with a short timeout.
func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(healthCtx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// makeRequestWithRetry executes a GET with exponential backoff. Server errors
// and rate limits retry; client errors fail permanently.
func (p *HTTPProvider) makeRequestWithRetry(ctx context.Context, requestURL string) ([]byte, error) {
	backoffConfig := backoff.NewExponentialBackOff()
	backoffConfig.InitialInterval = initialRetryDelay
	backoffConfig.MaxInterval = maxRetryDelay
	backoffConfig.Multiplier = retryMultiplier
	backoffConfig.RandomizationFactor = retryJitter
	backoffConfig.MaxElapsedTime = 0 // rely on context for the overall deadline

	var responseBody []byte

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("User-Agent", "candle-engine/1.0")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			if retryAfter > 0 {
				p.logger.Warn("rate limited by provider", "retry_after", retryAfter)
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return fmt.Errorf("rate limited")
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("client error %d: %s", resp.StatusCode, string(body)))
		}

		responseBody = body
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoffConfig, ctx)); err != nil {
		return nil, err
	}
	return responseBody, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(t)
	}
	return 0
}

// StaticProvider serves a fixed record set, for tests and offline replay.
type StaticProvider struct {
	Records []ingest.RawRecord
	Err     error
}

// FetchRawSeries returns the configured records or error.
func (s *StaticProvider) FetchRawSeries(ctx context.Context, req ingest.RequestDescriptor) ([]ingest.RawRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Records, nil
}
