// Package ratelimit provides per-source request budgets using a sliding
// window. The limiter is process-wide: every collector for every concurrent
// run shares one instance, and windows for different source ids are fully
// independent.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned when a source's budget is exhausted and the
// denial policy does not permit waiting any longer.
var ErrRateLimited = errors.New("rate limited")

// Policy selects the behavior when a source's budget is exhausted.
type Policy int

const (
	// PolicyFailFast denies immediately when the window is full.
	PolicyFailFast Policy = iota
	// PolicyWait blocks until a slot frees, bounded by MaxWait.
	PolicyWait
)

// Config holds limiter configuration.
type Config struct {
	RequestsPerWindow int
	Window            time.Duration
	Policy            Policy
	// MaxWait bounds how long PolicyWait blocks before giving up.
	MaxWait time.Duration
}

// DefaultConfig matches the defaults used for external sources.
func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		Policy:            PolicyWait,
		MaxWait:           10 * time.Second,
	}
}

type window struct {
	timestamps []time.Time
}

// prune drops timestamps outside the window. Caller holds the limiter lock.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

// Limiter enforces independent sliding-window budgets per source id.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	config  Config
	now     func() time.Time
}

// New creates a limiter with the given configuration.
func New(config Config) *Limiter {
	if config.RequestsPerWindow <= 0 {
		config.RequestsPerWindow = DefaultConfig().RequestsPerWindow
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	return &Limiter{
		windows: make(map[string]*window),
		config:  config,
		now:     time.Now,
	}
}

// Acquire reserves one request slot for the source. Under PolicyFailFast a
// full window returns ErrRateLimited immediately; under PolicyWait the call
// blocks until a slot frees, MaxWait elapses, or ctx is cancelled. A wait on
// one source never blocks acquisitions on a different source id.
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	if l.tryAcquire(source) {
		return nil
	}
	if l.config.Policy == PolicyFailFast {
		return fmt.Errorf("%w: %s", ErrRateLimited, source)
	}

	deadline := l.now().Add(l.config.MaxWait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.tryAcquire(source) {
				return nil
			}
			if l.now().After(deadline) {
				return fmt.Errorf("%w: %s (waited %s)", ErrRateLimited, source, l.config.MaxWait)
			}
		}
	}
}

// tryAcquire attempts a non-blocking reservation.
func (l *Limiter) tryAcquire(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[source]
	if w == nil {
		w = &window{}
		l.windows[source] = w
	}

	now := l.now()
	w.prune(now.Add(-l.config.Window))

	if len(w.timestamps) >= l.config.RequestsPerWindow {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// Remaining returns the unused budget for a source in the current window.
func (l *Limiter) Remaining(source string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[source]
	if w == nil {
		return l.config.RequestsPerWindow
	}
	w.prune(l.now().Add(-l.config.Window))
	return l.config.RequestsPerWindow - len(w.timestamps)
}

// Reset clears the window for a source.
func (l *Limiter) Reset(source string) {
	l.mu.Lock()
	delete(l.windows, source)
	l.mu.Unlock()
}
