package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassifier() *Classifier {
	return NewClassifier(RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}, nil)
}

func TestClassify_Kinds(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{name: "connection_refused", err: stderrors.New("dial tcp: connection refused"), kind: KindNetwork, retryable: true},
		{name: "deadline_exceeded", err: context.DeadlineExceeded, kind: KindTimeout, retryable: true},
		{name: "rate_limited", err: stderrors.New("429 too many requests"), kind: KindRateLimit, retryable: true},
		{name: "server_error", err: stderrors.New("502 bad gateway"), kind: KindServerError, retryable: true},
		{name: "malformed_record", err: stderrors.New("malformed record at index 3"), kind: KindMalformed, retryable: false},
		{name: "bad_request", err: stderrors.New("400 bad request"), kind: KindBadRequest, retryable: false},
		{name: "validation_failure", err: stderrors.New("validation failed: high below open"), kind: KindValidation, retryable: false},
		{name: "unknown", err: stderrors.New("something odd happened"), kind: KindUnknown, retryable: true},
	}

	c := testClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := c.Classify(tt.err, "provider", "fetch")
			require.NotNil(t, classified)
			assert.Equal(t, tt.kind, classified.Kind)
			assert.Equal(t, tt.retryable, classified.Retryable)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassify_NilAndPassthrough(t *testing.T) {
	c := testClassifier()
	assert.Nil(t, c.Classify(nil, "provider", "fetch"))

	original := c.Classify(stderrors.New("timeout waiting for response"), "provider", "fetch")
	again := c.Classify(original, "engine", "run")
	assert.Same(t, original, again, "already classified errors pass through")
}

func TestRetry_RecoversAfterTransientFailures(t *testing.T) {
	c := testClassifier()

	calls := 0
	err := c.Retry(context.Background(), "provider", "fetch", func() error {
		calls++
		if calls < 3 {
			return stderrors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	c := testClassifier()

	calls := 0
	err := c.Retry(context.Background(), "ingest", "normalize", func() error {
		calls++
		return stderrors.New("malformed record: missing field close")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "data faults must not be retried")
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	c := testClassifier()

	calls := 0
	err := c.Retry(context.Background(), "provider", "fetch", func() error {
		calls++
		return stderrors.New("503 service unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetry_ContextCancellation(t *testing.T) {
	c := NewClassifier(RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Hour, // force the loop to block in backoff
		MaxDelay:     time.Hour,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := c.Retry(ctx, "provider", "fetch", func() error {
		return stderrors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	c := testClassifier()

	retryable := c.Classify(stderrors.New("request timeout"), "provider", "fetch")
	assert.True(t, IsRetryable(retryable))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", retryable)))

	fatal := c.Classify(stderrors.New("401 unauthorized"), "provider", "fetch")
	assert.False(t, IsRetryable(fatal))
	assert.False(t, IsRetryable(stderrors.New("plain error")))
}

func TestGetStats(t *testing.T) {
	c := testClassifier()
	c.Classify(stderrors.New("connection refused"), "provider", "fetch")
	c.Classify(stderrors.New("no route to host"), "provider", "fetch")
	c.Classify(stderrors.New("429 too many requests"), "provider", "fetch")

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats[KindNetwork].Count)
	assert.Equal(t, int64(1), stats[KindRateLimit].Count)
	assert.False(t, stats[KindNetwork].FirstSeen.IsZero())
}

func TestClassified_IsMatchesByKind(t *testing.T) {
	c := testClassifier()
	a := c.Classify(stderrors.New("connection refused"), "provider", "fetch")
	b := c.Classify(stderrors.New("host unreachable"), "provider", "fetch")
	assert.ErrorIs(t, a, b, "same kind matches via errors.Is")
}
