package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Call kinds tracked per day.
const (
	KindText   = "text"
	KindSearch = "search"
	KindImage  = "image"
)

var ErrBudgetExceeded = errors.New("daily AI request budget exceeded")

// AIRateLimiter paces model calls with a token bucket and caps them with a daily budget.
type AIRateLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	counts    map[string]int
	total     int
	maxTotal  int
	resetTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewAIRateLimiter builds a limiter. maxTotal <= 0 disables the daily budget and
// rps <= 0 disables pacing.
func NewAIRateLimiter(maxTotal int, rps float64, burst int, logger *slog.Logger) *AIRateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	rl := &AIRateLimiter{
		limiter:  rate.NewLimiter(limit, burst),
		counts:   make(map[string]int),
		maxTotal: maxTotal,
		now:      time.Now,
		logger:   logger,
	}
	rl.resetTime = rl.now().Add(24 * time.Hour)
	return rl
}

// Acquire reserves one call of the given kind, blocking until the bucket allows it.
func (rl *AIRateLimiter) Acquire(ctx context.Context, kind string) error {
	if err := rl.reserve(kind); err != nil {
		return err
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		rl.release(kind)
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

func (rl *AIRateLimiter) reserve(kind string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()

	if rl.maxTotal > 0 && rl.total >= rl.maxTotal {
		rl.logger.Warn("AI request budget reached", "kind", kind, "used", rl.total, "max", rl.maxTotal)
		return ErrBudgetExceeded
	}

	rl.counts[kind]++
	rl.total++
	rl.logger.Debug("AI usage", "kind", kind, "count", rl.counts[kind], "total", rl.total, "max", rl.maxTotal)
	return nil
}

func (rl *AIRateLimiter) release(kind string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.counts[kind] > 0 {
		rl.counts[kind]--
		rl.total--
	}
}

// checkReset must be called with mu held.
func (rl *AIRateLimiter) checkReset() {
	if rl.now().After(rl.resetTime) {
		rl.counts = make(map[string]int)
		rl.total = 0
		rl.resetTime = rl.now().Add(24 * time.Hour)
		rl.logger.Info("AI request counters reset")
	}
}

func (rl *AIRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"text_requests":   rl.counts[KindText],
		"search_requests": rl.counts[KindSearch],
		"image_requests":  rl.counts[KindImage],
		"total_requests":  rl.total,
		"max_total":       rl.maxTotal,
		"reset_time":      rl.resetTime.Format(time.RFC3339),
	}
}
