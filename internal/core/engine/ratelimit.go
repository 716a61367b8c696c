// Package engine holds the outbound-call governors used by the dispatcher:
// a sliding-window rate limiter with exponential backoff after upstream
// rate-limit signals.
package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/notelens/notelens/internal/core"
)

// ErrRateLimitExceeded is returned by TryAcquire when the window is full or
// backoff is armed.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Defaults applied when the corresponding RateLimiter field is zero.
const (
	DefaultWindow      = time.Minute
	DefaultMaxRequests = 40
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffCap  = 5 * time.Minute
)

// RateLimiter permits at most MaxRequests calls to start within any trailing
// Window, and suspends all calls while an upstream-signalled backoff is
// armed. State is owned by the limiter and guarded by a mutex; construct one
// per dispatcher at startup, no ambient singletons.
type RateLimiter struct {
	Window      time.Duration
	MaxRequests int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Clock       func() time.Time

	mu                  sync.Mutex
	timestamps          []time.Time
	resumeAt            time.Time
	consecutiveFailures int
}

// TryAcquire records the current time and succeeds when a call may start.
//
// It fails immediately while backoff is armed and unexpired, without
// consuming a window slot. When the trailing window is at or over the
// maximum it fails without recording the attempt.
func (r *RateLimiter) TryAcquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.resumeAt.IsZero() && now.Before(r.resumeAt) {
		return ErrRateLimitExceeded
	}

	r.pruneLocked(now)
	if len(r.timestamps) >= r.maxRequests() {
		return ErrRateLimitExceeded
	}

	r.timestamps = append(r.timestamps, now)
	return nil
}

// RecordUpstreamRejection arms (or extends) backoff after the upstream
// returned a rate-limit signal. Each consecutive call doubles the delay up
// to the cap and restarts the timer.
func (r *RateLimiter) RecordUpstreamRejection() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consecutiveFailures++
	delay := r.backoffBase() << (r.consecutiveFailures - 1)
	if cap := r.backoffCap(); delay > cap || delay <= 0 {
		delay = cap
	}
	r.resumeAt = r.now().Add(delay)
}

// RecordSuccess clears the consecutive-failure count once a post-backoff
// call completed without another rejection.
func (r *RateLimiter) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.resumeAt.IsZero() && r.now().Before(r.resumeAt) {
		return
	}
	r.consecutiveFailures = 0
	r.resumeAt = time.Time{}
}

// Backoff reports the current backoff state.
func (r *RateLimiter) Backoff() core.BackoffState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := core.BackoffState{ConsecutiveFailures: r.consecutiveFailures}
	if !r.resumeAt.IsZero() && r.now().Before(r.resumeAt) {
		resume := r.resumeAt
		state.Active = true
		state.ResumeAt = &resume
	}
	return state
}

// WindowCount reports how many calls started within the trailing window.
func (r *RateLimiter) WindowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.now())
	return len(r.timestamps)
}

func (r *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.window())
	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.timestamps = kept
}

func (r *RateLimiter) window() time.Duration {
	if r.Window > 0 {
		return r.Window
	}
	return DefaultWindow
}

func (r *RateLimiter) maxRequests() int {
	if r.MaxRequests > 0 {
		return r.MaxRequests
	}
	return DefaultMaxRequests
}

func (r *RateLimiter) backoffBase() time.Duration {
	if r.BackoffBase > 0 {
		return r.BackoffBase
	}
	return DefaultBackoffBase
}

func (r *RateLimiter) backoffCap() time.Duration {
	if r.BackoffCap > 0 {
		return r.BackoffCap
	}
	return DefaultBackoffCap
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
