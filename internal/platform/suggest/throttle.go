package suggest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the breaker is cooling down.
var ErrCircuitOpen = errors.New("suggestion source temporarily disabled")

// ThrottleConfig bounds outbound suggestion traffic.
type ThrottleConfig struct {
	RPS         float64 // <= 0 disables rate limiting
	Burst       int
	MaxInFlight int64 // <= 0 disables the concurrency bound
	MaxFailures int   // consecutive failures before the breaker opens; <= 0 disables it
	Cooldown    time.Duration
}

// Throttled wraps a Client with a rate limiter, a bound on concurrent calls
// and a consecutive-failure breaker.
type Throttled struct {
	next    Client
	limiter *rate.Limiter
	sem     *semaphore.Weighted

	mu            sync.Mutex
	maxFailures   int
	cooldown      time.Duration
	failures      int
	disabledUntil time.Time
	now           func() time.Time
}

func NewThrottled(next Client, cfg ThrottleConfig) *Throttled {
	t := &Throttled{
		next:        next,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	if cfg.MaxInFlight > 0 {
		t.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}
	return t
}

func (t *Throttled) Suggest(ctx context.Context, req Request) (*Response, error) {
	if !t.allow() {
		return nil, ErrCircuitOpen
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire slot: %w", err)
		}
		defer t.sem.Release(1)
	}

	resp, err := t.next.Suggest(ctx, req)
	switch {
	case err == nil:
		t.recordSuccess()
	case errors.Is(err, context.Canceled), errors.Is(err, ErrEmptyRequest):
		// caller-side outcomes say nothing about the source's health
	default:
		t.recordFailure()
	}
	return resp, err
}

func (t *Throttled) allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabledUntil.IsZero() {
		return true
	}
	if t.now().After(t.disabledUntil) {
		t.disabledUntil = time.Time{}
		t.failures = 0
		return true
	}
	return false
}

func (t *Throttled) recordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxFailures <= 0 {
		return
	}
	t.failures++
	if t.failures >= t.maxFailures {
		t.disabledUntil = t.now().Add(t.cooldown)
	}
}

func (t *Throttled) recordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = 0
	t.disabledUntil = time.Time{}
}
