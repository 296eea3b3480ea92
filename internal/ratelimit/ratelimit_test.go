package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deusflow/trendpress/internal/logger"
)

func TestAcquire_BudgetExceeded(t *testing.T) {
	rl := NewAIRateLimiter(2, 0, 1, logger.Discard())
	ctx := context.Background()

	if err := rl.Acquire(ctx, KindText); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := rl.Acquire(ctx, KindImage); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if err := rl.Acquire(ctx, KindText); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	stats := rl.GetStats()
	if stats["text_requests"] != 1 || stats["image_requests"] != 1 || stats["total_requests"] != 2 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestAcquire_DailyReset(t *testing.T) {
	rl := NewAIRateLimiter(1, 0, 1, logger.Discard())
	current := time.Now()
	rl.now = func() time.Time { return current }
	rl.resetTime = current.Add(time.Hour)

	if err := rl.Acquire(context.Background(), KindSearch); err != nil {
		t.Fatalf("first call: %v", err)
	}
	current = current.Add(2 * time.Hour)
	if err := rl.Acquire(context.Background(), KindSearch); err != nil {
		t.Fatalf("expected budget to reset, got %v", err)
	}
}

func TestAcquire_CancelledWaitReleasesBudget(t *testing.T) {
	rl := NewAIRateLimiter(5, 0.001, 1, logger.Discard())
	ctx := context.Background()
	if err := rl.Acquire(ctx, KindText); err != nil {
		t.Fatalf("first call: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := rl.Acquire(cctx, KindText); err == nil {
		t.Fatalf("expected wait to fail")
	}
	if got := rl.GetStats()["total_requests"]; got != 1 {
		t.Errorf("expected released reservation, total=%v", got)
	}
}
