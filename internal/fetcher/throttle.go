// Package fetcher implements the rate-limited client for the external
// keyword data API, including batch packing and throttled retries.
package fetcher

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/localrank/keyword-arbitrage/internal/metrics"
	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// ThrottleConfig controls the jittered per-call delay, the periodic window
// pause, and the shared request rate cap.
type ThrottleConfig struct {
	PerCallMin     time.Duration
	PerCallMax     time.Duration
	JitterFraction float64
	WindowSize     int
	WindowPauseMin time.Duration
	WindowPauseMax time.Duration
	MaxRPS         float64
	Burst          int
}

// DefaultThrottleConfig mirrors the production throttle profile: 0.5-1.5s
// per call with 25% jitter, and a 3-5s cool-down every 5th call.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		PerCallMin:     500 * time.Millisecond,
		PerCallMax:     1500 * time.Millisecond,
		JitterFraction: 0.25,
		WindowSize:     5,
		WindowPauseMin: 3 * time.Second,
		WindowPauseMax: 5 * time.Second,
		MaxRPS:         2,
		Burst:          1,
	}
}

// Throttler serializes pacing for every outbound API call. A single
// Throttler is shared across all batches so cross-batch concurrency still
// respects the global per-call and per-window budget.
type Throttler struct {
	cfg     ThrottleConfig
	limiter *rate.Limiter

	mu    sync.Mutex
	calls int
}

// NewThrottler builds a Throttler from cfg, backfilling unset fields with
// the defaults.
func NewThrottler(cfg ThrottleConfig) *Throttler {
	def := DefaultThrottleConfig()
	if cfg.PerCallMin <= 0 {
		cfg.PerCallMin = def.PerCallMin
	}
	if cfg.PerCallMax < cfg.PerCallMin {
		cfg.PerCallMax = cfg.PerCallMin
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = def.JitterFraction
	}
	if cfg.WindowPauseMax < cfg.WindowPauseMin {
		cfg.WindowPauseMax = cfg.WindowPauseMin
	}
	r := rate.Limit(cfg.MaxRPS)
	if cfg.MaxRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Throttler{
		cfg:     cfg,
		limiter: rate.NewLimiter(r, burst),
	}
}

// Before blocks until the shared limiter admits another call, then applies
// the window cool-down on every WindowSize-th call.
func (t *Throttler) Before(ctx context.Context) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}

	t.mu.Lock()
	t.calls++
	pause := t.cfg.WindowSize > 0 && t.calls%t.cfg.WindowSize == 0
	if pause {
		t.calls = 0
	}
	t.mu.Unlock()

	if !pause {
		return nil
	}
	delay := randomBetween(t.cfg.WindowPauseMin, t.cfg.WindowPauseMax)
	metrics.ObserveRateLimitDelay(delay)
	return prospect.Pause(ctx, delay)
}

// After applies the randomized per-call delay. The delay is taken after
// every call regardless of outcome so the traffic never settles into a
// fixed interval.
func (t *Throttler) After(ctx context.Context) error {
	return prospect.Pause(ctx, t.delay())
}

func (t *Throttler) delay() time.Duration {
	minJitter := time.Duration(float64(t.cfg.PerCallMin) * t.cfg.JitterFraction)
	maxJitter := time.Duration(float64(t.cfg.PerCallMax) * t.cfg.JitterFraction)

	actualMin := t.cfg.PerCallMin - randomBetween(0, minJitter)
	if actualMin < 100*time.Millisecond {
		actualMin = 100 * time.Millisecond
	}
	actualMax := t.cfg.PerCallMax + randomBetween(0, maxJitter)
	return randomBetween(actualMin, actualMax)
}

func randomBetween(low, high time.Duration) time.Duration {
	if high <= low {
		return low
	}
	return low + time.Duration(rand.Int63n(int64(high-low)))
}
