// Package errors classifies failures from providers and the processing
// pipeline and drives retry decisions. Transport faults (network, timeout,
// rate limit, server error) are retryable; data faults (malformed records,
// structural violations, bad requests) are not, since retrying a parse
// cannot change its outcome.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Kind is the classification of a failure.
type Kind string

const (
	// Retryable kinds.
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindRateLimit   Kind = "rate_limit"
	KindServerError Kind = "server_error"

	// Non-retryable kinds.
	KindBadRequest Kind = "bad_request"
	KindMalformed  Kind = "malformed"
	KindValidation Kind = "validation"
	KindConfig     Kind = "config"
	KindInternal   Kind = "internal"

	KindUnknown Kind = "unknown"
)

// Classified wraps an error with the metadata the retry loop needs.
type Classified struct {
	Err       error     `json:"error"`
	Kind      Kind      `json:"kind"`
	Retryable bool      `json:"retryable"`
	Component string    `json:"component"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
}

func (c *Classified) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", c.Component, c.Kind, c.Operation, c.Err)
}

// Unwrap returns the underlying error.
func (c *Classified) Unwrap() error {
	return c.Err
}

// Is matches another Classified by kind, or falls through to the wrapped error.
func (c *Classified) Is(target error) bool {
	if t, ok := target.(*Classified); ok {
		return c.Kind == t.Kind
	}
	return errors.Is(c.Err, target)
}

// RetryPolicy controls the backoff loop in Retry.
type RetryPolicy struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
}

// DefaultRetryPolicy mirrors the defaults used for provider fetches.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// Stats tracks per-kind failure counts for monitoring.
type Stats struct {
	Count     int64     `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Classifier classifies errors and executes retries with exponential backoff.
type Classifier struct {
	policy RetryPolicy
	logger *slog.Logger

	mu    sync.RWMutex
	stats map[Kind]Stats
}

// NewClassifier creates a classifier with the given retry policy. A nil
// logger falls back to slog.Default.
func NewClassifier(policy RetryPolicy, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Classifier{
		policy: policy,
		logger: logger,
		stats:  make(map[Kind]Stats),
	}
}

// Classify analyzes an error and wraps it with retry metadata. Already
// classified errors pass through unchanged. A nil error yields nil.
func (c *Classifier) Classify(err error, component, operation string) *Classified {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*Classified); ok {
		return ce
	}

	kind := classifyKind(err)
	classified := &Classified{
		Err:       err,
		Kind:      kind,
		Retryable: kindRetryable(kind),
		Component: component,
		Operation: operation,
		Timestamp: time.Now(),
	}

	c.recordKind(kind)

	c.logger.Debug("error classified",
		"kind", kind,
		"retryable", classified.Retryable,
		"component", component,
		"operation", operation,
		"error", err.Error())

	return classified
}

// Retry executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, or runs out of attempts.
func (c *Classifier) Retry(ctx context.Context, component, operation string, fn func() error) error {
	strategy := c.backoffStrategy()

	var lastErr error
	attempts := 0

	for {
		attempts++

		err := fn()
		if err == nil {
			if attempts > 1 {
				c.logger.Debug("operation recovered",
					"component", component,
					"operation", operation,
					"attempts", attempts)
			}
			return nil
		}

		classified := c.Classify(err, component, operation)
		classified.Attempts = attempts
		lastErr = classified

		c.logger.Warn("operation failed",
			"component", component,
			"operation", operation,
			"attempt", attempts,
			"max_attempts", c.policy.MaxAttempts,
			"kind", classified.Kind,
			"retryable", classified.Retryable,
			"error", err.Error())

		if !classified.Retryable || attempts >= c.policy.MaxAttempts {
			break
		}

		next := strategy.NextBackOff()
		if next == backoff.Stop {
			break
		}

		select {
		case <-time.After(next):
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

func (c *Classifier) backoffStrategy() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.policy.InitialDelay
	exp.MaxInterval = c.policy.MaxDelay
	exp.MaxElapsedTime = 0
	return exp
}

func (c *Classifier) recordKind(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats[kind]
	stats.Count++
	stats.LastSeen = time.Now()
	if stats.FirstSeen.IsZero() {
		stats.FirstSeen = stats.LastSeen
	}
	c.stats[kind] = stats
}

// GetStats returns a copy of the per-kind failure counts.
func (c *Classifier) GetStats() map[Kind]Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[Kind]Stats, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}

// classifyKind maps an error to its kind from type information where
// available, falling back to message patterns.
func classifyKind(err error) Kind {
	if isTimeoutError(err) {
		return KindTimeout
	}
	if isNetworkError(err) {
		return KindNetwork
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "quota exceeded"):
		return KindRateLimit
	case strings.Contains(errStr, "malformed"),
		strings.Contains(errStr, "parse"),
		strings.Contains(errStr, "unmarshal"):
		return KindMalformed
	case strings.Contains(errStr, "validation"),
		strings.Contains(errStr, "invalid"):
		return KindValidation
	case strings.Contains(errStr, "bad request"),
		strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "not found"):
		return KindBadRequest
	case strings.Contains(errStr, "server error"),
		strings.Contains(errStr, "internal server"),
		strings.Contains(errStr, "service unavailable"),
		strings.Contains(errStr, "bad gateway"):
		return KindServerError
	case strings.Contains(errStr, "config"),
		strings.Contains(errStr, "not configured"):
		return KindConfig
	}

	return KindUnknown
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"connection aborted",
		"no route to host",
		"host unreachable",
		"network unreachable",
		"no such host",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func kindRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindTimeout, KindRateLimit, KindServerError:
		return true
	case KindBadRequest, KindMalformed, KindValidation, KindConfig, KindInternal:
		return false
	default:
		// Unknown failures get the benefit of the doubt.
		return true
	}
}

// IsRetryable reports whether a classified error may be retried. Unclassified
// errors are not.
func IsRetryable(err error) bool {
	var ce *Classified
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// KindOf extracts the kind from a classified error.
func KindOf(err error) Kind {
	var ce *Classified
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
