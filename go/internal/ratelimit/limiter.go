// Package ratelimit throttles draft-endpoint calls per credential. The Seller
// API enforces three simultaneous quotas on draft creation and inspection, so
// the limiter tracks a minimum spacing plus two rolling windows for every key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Config holds the three quota constraints. Window sizes are configurable so
// tests can compress time.
type Config struct {
	MinInterval  time.Duration // spacing between consecutive calls
	PerMinute    int           // calls allowed per MinuteWindow
	MinuteWindow time.Duration
	PerHour      int // calls allowed per HourWindow
	HourWindow   time.Duration
}

// DefaultConfig matches the documented Seller API quota for draft endpoints.
func DefaultConfig() Config {
	return Config{
		MinInterval:  2 * time.Second,
		PerMinute:    2,
		MinuteWindow: time.Minute,
		PerHour:      50,
		HourWindow:   time.Hour,
	}
}

// minWait keeps the limiter from busy-looping when a window edge is close.
const minWait = 250 * time.Millisecond

type window struct {
	last    time.Time
	minute  []time.Time
	hour    []time.Time
	touched time.Time
}

// Limiter blocks callers until all three per-key constraints admit a call.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	clock   clockwork.Clock
	windows map[string]*window
}

// NewLimiter creates a limiter with the given quotas.
func NewLimiter(cfg Config, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		cfg:     cfg,
		clock:   clock,
		windows: make(map[string]*window),
	}
}

// Acquire blocks until the key may issue one more draft-endpoint call, then
// records the call timestamp. Context cancellation unblocks immediately and
// returns the context error.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := l.tryReserve(key)
		if wait == 0 {
			return nil
		}
		if wait < minWait {
			wait = minWait
		}

		log.Debug().
			Str("key", key).
			Dur("wait", wait).
			Msg("rate limit: waiting for next slot")

		timer := l.clock.NewTimer(wait)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// tryReserve either records a call now and returns 0, or returns how long the
// caller must wait before any constraint can admit one.
func (l *Limiter) tryReserve(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.touched = now
	w.minute = prune(w.minute, now, l.cfg.MinuteWindow)
	w.hour = prune(w.hour, now, l.cfg.HourWindow)

	var next time.Time
	if !w.last.IsZero() {
		next = w.last.Add(l.cfg.MinInterval)
	}
	if len(w.minute) >= l.cfg.PerMinute {
		if t := w.minute[0].Add(l.cfg.MinuteWindow); t.After(next) {
			next = t
		}
	}
	if len(w.hour) >= l.cfg.PerHour {
		if t := w.hour[0].Add(l.cfg.HourWindow); t.After(next) {
			next = t
		}
	}

	if wait := next.Sub(now); wait > 0 {
		return wait
	}

	w.last = now
	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
	return 0
}

func prune(samples []time.Time, now time.Time, span time.Duration) []time.Time {
	cutoff := now.Add(-span)
	i := 0
	for i < len(samples) && !samples[i].After(cutoff) {
		i++
	}
	return samples[i:]
}

// Forget drops the window for a key, typically after credentials are revoked.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}
