package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		ok   bool
	}{
		{name: "nil", err: nil, want: 0, ok: false},
		{name: "plain int", err: errors.New("3"), want: 3, ok: true},
		{name: "api error", err: &APIError{RetryAfter: 9, Message: "rate"}, want: 9, ok: true},
		{name: "text pattern", err: errors.New("Too Many Requests: retry after 4"), want: 4, ok: true},
		{name: "invalid", err: errors.New("other error"), want: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.err)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("parseRetryAfter() = (%d,%v), want (%d,%v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestWithRetryNilRateLimiter(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), nil, 0, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry returned err: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRateLimiterIsolatesChats(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Each chat has its own token bucket, so the first send to every
	// chat goes through immediately.
	for chatID := int64(1); chatID <= 5; chatID++ {
		if err := rl.Wait(ctx, chatID); err != nil {
			t.Fatalf("first send to chat %d blocked: %v", chatID, err)
		}
	}

	// A second send to an exhausted chat cannot complete before the
	// context deadline. The limiter wraps the deadline in its own error,
	// so only the failure itself is asserted.
	if err := rl.Wait(ctx, 1); err == nil {
		t.Fatal("expected error for exhausted chat within deadline")
	}
}

func TestWithRetryContextCancelOnRetry(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := WithRetry(ctx, rl, 1, func() error {
		return fmt.Errorf("retry after 10")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
