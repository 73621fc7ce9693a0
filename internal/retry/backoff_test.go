package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	retryableErrors := []error{
		errors.New("connection refused"),
		errors.New("connection timeout"),
		errors.New("temporary failure"),
		errors.New("HTTP 429 Too Many Requests"),
		errors.New("HTTP 502 Bad Gateway"),
		errors.New("HTTP 503 Service Unavailable"),
		errors.New("DNS lookup failed"),
		errors.New("context deadline exceeded"),
	}

	for _, err := range retryableErrors {
		if !IsRetryableError(err) {
			t.Errorf("Expected %v to be retryable", err)
		}
	}

	nonRetryableErrors := []error{
		errors.New("invalid input"),
		errors.New("permission denied"),
		errors.New("HTTP 400 Bad Request"),
		errors.New("HTTP 401 Unauthorized"),
		errors.New("HTTP 404 Not Found"),
	}

	for _, err := range nonRetryableErrors {
		if IsRetryableError(err) {
			t.Errorf("Expected %v to NOT be retryable", err)
		}
	}

	// Test nil error
	if IsRetryableError(nil) {
		t.Error("Expected nil error to NOT be retryable")
	}
}

func TestDecorrelatedJitterDelay(t *testing.T) {
	cases := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{attempt: 1, min: 1 * time.Second, max: 2 * time.Second},
		{attempt: 2, min: 2 * time.Second, max: 3 * time.Second},
		{attempt: 6, min: 32 * time.Second, max: 33 * time.Second},
		{attempt: 10, min: 45 * time.Second, max: 45 * time.Second},
	}

	for _, c := range cases {
		delay := DecorrelatedJitterDelay(c.attempt)
		if delay < c.min || delay > c.max {
			t.Errorf("attempt %d: expected delay in [%v,%v], got %v", c.attempt, c.min, c.max, delay)
		}
	}
}

func TestRetryLLMCall_StopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := RetryLLMCall(context.Background(), func() error {
		attempts++
		return errors.New("invalid api key")
	}, nil)

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRetryLLMCall_SucceedsAfterRetryableFailures(t *testing.T) {
	attempts := 0
	var retryLog []int
	err := RetryLLMCall(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("429 too many requests")
		}
		return nil
	}, func(attempt int, reason string, delay time.Duration) {
		retryLog = append(retryLog, attempt)
	})

	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(retryLog) != 2 {
		t.Errorf("expected 2 retry callbacks, got %d", len(retryLog))
	}
}

func TestRetryLLMCall_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := RetryLLMCall(ctx, func() error {
		attempts++
		return errors.New("429 too many requests")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Errorf("expected no attempts once context is already cancelled, got %d", attempts)
	}
}
