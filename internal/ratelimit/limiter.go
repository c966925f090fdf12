// Package ratelimit paces outbound API calls with sliding per-minute and
// per-hour windows, an in-flight cap, and multiplicative failure backoff.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config bounds a single limiter instance. Limiters are never shared across
// collectors; each owns its private counters.
type Config struct {
	MaxCallsPerMinute  int
	MaxCallsPerHour    int
	ConcurrentRequests int
	BackoffMultiplier  float64
	MaxBackoffSeconds  float64
}

// Limiter admits calls under Config. AwaitSlot blocks until a call may
// start; MarkEnd releases the in-flight slot and adjusts backoff.
type Limiter struct {
	cfg Config

	mu       sync.Mutex
	minute   []time.Time // start times inside the last minute
	hour     []time.Time // start times inside the last hour
	inFlight int
	backoff  float64 // seconds; 1.0 means healthy

	// Injected for tests; real clock and sleeper by default.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWithClock returns a Limiter driven by injected time functions. Tests
// use it to run the window and backoff math without real sleeps.
func NewWithClock(cfg Config, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Limiter {
	l := New(cfg)
	if now != nil {
		l.now = now
	}
	if sleep != nil {
		l.sleep = sleep
	}
	return l
}

// New returns a Limiter with a healthy backoff of 1.0.
func New(cfg Config) *Limiter {
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.MaxBackoffSeconds <= 0 {
		cfg.MaxBackoffSeconds = 300
	}
	return &Limiter{
		cfg:     cfg,
		backoff: 1.0,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AwaitSlot blocks until starting a call would violate neither window nor
// the in-flight cap, sleeping the current backoff first when degraded.
// The caller must pair every successful AwaitSlot with MarkEnd.
func (l *Limiter) AwaitSlot(ctx context.Context) error {
	l.mu.Lock()
	penalty := time.Duration(0)
	if l.backoff > 1.0 {
		penalty = time.Duration(l.backoff * float64(time.Second))
	}
	l.mu.Unlock()

	if penalty > 0 {
		if err := l.sleep(ctx, penalty); err != nil {
			return err
		}
	}

	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		wait := l.nextWait(now)
		if wait == 0 {
			l.minute = append(l.minute, now)
			l.hour = append(l.hour, now)
			l.inFlight++
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// MarkEnd releases the in-flight slot. Success resets backoff to 1.0;
// failure multiplies it, capped at MaxBackoffSeconds.
func (l *Limiter) MarkEnd(success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	if success {
		l.backoff = 1.0
		return
	}
	l.backoff *= l.cfg.BackoffMultiplier
	if l.backoff > l.cfg.MaxBackoffSeconds {
		l.backoff = l.cfg.MaxBackoffSeconds
	}
}

// CurrentBackoff reports the backoff in seconds (1.0 when healthy).
func (l *Limiter) CurrentBackoff() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// prune drops window entries older than their window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	l.minute = trimBefore(l.minute, now.Add(-time.Minute))
	l.hour = trimBefore(l.hour, now.Add(-time.Hour))
}

// nextWait returns how long the caller must wait before a slot opens, or 0
// when a call may start now. Caller holds mu.
func (l *Limiter) nextWait(now time.Time) time.Duration {
	if l.cfg.ConcurrentRequests > 0 && l.inFlight >= l.cfg.ConcurrentRequests {
		// No timestamp to wait on; poll shortly until MarkEnd frees a slot.
		return 10 * time.Millisecond
	}
	var wait time.Duration
	if l.cfg.MaxCallsPerMinute > 0 && len(l.minute) >= l.cfg.MaxCallsPerMinute {
		w := l.minute[0].Add(time.Minute).Sub(now)
		if w > wait {
			wait = w
		}
	}
	if l.cfg.MaxCallsPerHour > 0 && len(l.hour) >= l.cfg.MaxCallsPerHour {
		w := l.hour[0].Add(time.Hour).Sub(now)
		if w > wait {
			wait = w
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
