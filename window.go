package gateclient

import (
	"sync"
	"time"
)

// delayFloorMs is the minimum delay calculateDelay ever returns. It exists
// so a strictly zero delay never bypasses the scheduler (§4.1).
const delayFloorMs = 10

// Window represents one active time bucket for one Interval within one
// GroupLimits. It is owned exclusively by its GroupLimits and is never
// shared across groups.
//
// maxDeferralMs is deliberately not stored on Window: the defer-vs-enqueue
// threshold is supplied per Send call (it comes from the caller's Config,
// which can vary request to request), so canSend takes it as a parameter
// rather than caching a value that could go stale.
type Window struct {
	mu       sync.Mutex
	interval Interval
	quota    int
	count    int
	openedAt time.Time
	resetsAt time.Time
	nowFunc  func() time.Time
}

// newWindow creates a Window for interval with the given initial quota,
// opened as of now.
func newWindow(interval Interval, quota int, now time.Time) *Window {
	if quota < 1 {
		quota = 1
	}
	return &Window{
		interval: interval,
		quota:    quota,
		openedAt: now,
		resetsAt: now.Add(interval.Duration()),
		nowFunc:  time.Now,
	}
}

func (w *Window) now() time.Time {
	if w.nowFunc != nil {
		return w.nowFunc()
	}
	return time.Now()
}

// resetIfElapsed resets the bucket if now is at or past resetsAt. Callers
// must hold w.mu. Every observation (increment, requestsRemaining,
// calculateDelay) funnels through this first, per §4.1 "Reset policy".
func (w *Window) resetIfElapsed(now time.Time) {
	if !now.Before(w.resetsAt) {
		w.openedAt = now
		w.resetsAt = now.Add(w.interval.Duration())
		w.count = 0
	}
}

// Reset forces the bucket to reopen now, as if its interval had just
// elapsed. It is what the best-effort expiration timer invokes, and what
// tests call directly to exercise R3 without waiting out a real interval.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.openedAt = now
	w.resetsAt = now.Add(w.interval.Duration())
	w.count = 0
}

// Increment advances the bucket's count by one, after servicing any
// pending reset.
func (w *Window) Increment() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetIfElapsed(w.now())
	w.count++
}

// RequestsRemaining returns max(0, quota-count), after servicing any
// pending reset.
func (w *Window) RequestsRemaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetIfElapsed(w.now())
	return w.remainingLocked()
}

func (w *Window) remainingLocked() int {
	r := w.quota - w.count
	if r < 0 {
		return 0
	}
	return r
}

// CalculateDelay returns the number of milliseconds the caller must wait
// before the next send would respect this Window. If quota remains, it
// returns the 10ms floor to smooth bursts; otherwise it returns
// max(10, resetsAt-now).
func (w *Window) CalculateDelay() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.resetIfElapsed(now)
	if w.remainingLocked() > 0 {
		return delayFloorMs
	}
	remainMs := w.resetsAt.Sub(now).Milliseconds()
	if remainMs < delayFloorMs {
		return delayFloorMs
	}
	return remainMs
}

// CanSend reports whether this Window either has remaining quota or would
// impose a delay no greater than maxDeferralMs.
func (w *Window) CanSend(maxDeferralMs int64) bool {
	if w.RequestsRemaining() > 0 {
		return true
	}
	return w.CalculateDelay() <= maxDeferralMs
}

// SetQuota clamps quota to >= 1 and installs it. The current count is left
// untouched; it may momentarily exceed the new quota until the next
// reset clears it, per §4.1 "Quota updates".
func (w *Window) SetQuota(quota int) {
	if quota < 1 {
		quota = 1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quota = quota
}

// Quota returns the current quota.
func (w *Window) Quota() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quota
}

// ResetsAt returns the timestamp at which the bucket will next reset.
func (w *Window) ResetsAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resetsAt
}
