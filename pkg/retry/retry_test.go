package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"fvdownloader/pkg/config"
	errs "fvdownloader/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt yet"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", delay)
		}
	}
}

func quickConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	if err := Do(context.Background(), op, quickConfig(5)); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	pageErr := errs.HTTPStatus(errs.KindPageLoad, "http://x/p", 503)
	op := func(context.Context) error {
		attempts++
		return pageErr
	}

	err := Do(context.Background(), op, quickConfig(3))
	if err == nil {
		t.Fatal("Expected error when max attempts exceeded")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !errs.Is(err, errs.KindPageLoad) {
		t.Errorf("Expected wrapped page load error, got %v", err)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	op := func(context.Context) error {
		attempts++
		return errs.HTTPStatus(errs.KindImageFetch, "http://x/i.jpg", 404)
	}

	err := Do(context.Background(), op, quickConfig(5))
	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	op := func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
	}

	start := time.Now()
	err := Do(ctx, op, cfg)
	if err == nil {
		t.Fatal("Expected error after cancellation")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if time.Since(start) > time.Second {
		t.Error("Do kept waiting after the context was cancelled")
	}
}

func TestOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := quickConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}

	_ = Do(context.Background(), func(context.Context) error {
		return errors.New("again")
	}, cfg)

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}, quickConfig(3))

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got %s", result)
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		Multiplier:     2,
	}, nil)

	if cfg.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.MaxAttempts)
	}
	eb, ok := cfg.Backoff.(*ExponentialBackoff)
	if !ok {
		t.Fatalf("Backoff = %T, want *ExponentialBackoff", cfg.Backoff)
	}
	if eb.BaseDelay != 10*time.Millisecond || eb.MaxDelay != 40*time.Millisecond {
		t.Errorf("unexpected backoff bounds: %+v", eb)
	}
	if cfg.Logger == nil {
		t.Error("Logger should default to a nop logger")
	}
}
