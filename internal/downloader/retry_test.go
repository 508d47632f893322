package downloader

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3}, func(attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errTransient
		}
		return "ok", nil
	}, nil)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3}, func(attempt int) (int, error) {
		calls++
		return 0, errTransient
	}, nil)
	if !errors.Is(err, errTransient) {
		t.Errorf("err = %v, want errTransient", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 5}, func(attempt int) (int, error) {
		calls++
		return 0, permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("err = %v after %d calls, want permanent after 1", err, calls)
	}
}

func TestRetry_ContextCanceledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Retry(ctx, RetryConfig{MaxAttempts: 3, Delay: time.Second}, func(attempt int) (int, error) {
		return 0, errTransient
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	Retry(context.Background(), RetryConfig{}, func(attempt int) (int, error) {
		calls++
		return 0, errTransient
	}, nil)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
