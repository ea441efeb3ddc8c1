package gateclient

import (
	"context"
	goerrors "errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// retryableStatuses is the fixed set of HTTP statuses the admission loop
// treats as transient.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:     true, // 408
	425:                           true, // Too Early
	http.StatusTooManyRequests:   true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:         true, // 502
	http.StatusServiceUnavailable: true, // 503
	http.StatusGatewayTimeout:     true, // 504
}

func isRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// defaultRetryDelayMsByStatus is consulted whenever a retryable response
// carries no usable Retry-After; any status absent from this table falls
// back to defaultRetryDelayFallbackMs.
var defaultRetryDelayMsByStatus = map[int]int64{
	http.StatusRequestTimeout:      500,
	425:                            500,
	http.StatusTooManyRequests:     1000,
	http.StatusInternalServerError: 1000,
	http.StatusBadGateway:          1000,
	http.StatusServiceUnavailable:  2000,
	http.StatusGatewayTimeout:      2000,
}

const defaultRetryDelayFallbackMs = 500

// statusBackoffDelay implements the retry backoff formula:
// max(retryAfterMs, default-per-status) scaled by (attempt+1), where
// attempt is zero-based (the first retry scales by 1, the second by 2...).
func statusBackoffDelay(status int, retryAfterMs int64, attempt int) time.Duration {
	def, ok := defaultRetryDelayMsByStatus[status]
	if !ok {
		def = defaultRetryDelayFallbackMs
	}
	base := retryAfterMs
	if base < def {
		base = def
	}
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(base*int64(attempt+1)) * time.Millisecond
}

// onceBackoff is a sethvargo/go-retry Backoff that hands back exactly one
// precomputed duration and then stops. It exists so every interruptible
// sleep in the admission loop (the pre-dispatch delay, the inter-retry
// backoff) goes through retry.Do's context-aware wait rather than a raw
// time.Sleep, while still letting this package's own admission state
// machine - not go-retry's - decide what happens between attempts.
type onceBackoff struct {
	d    time.Duration
	used bool
}

func (b *onceBackoff) Next() (time.Duration, bool) {
	if b.used {
		return 0, true
	}
	b.used = true
	return b.d, false
}

var _ retry.Backoff = (*onceBackoff)(nil)

// errPendingSleep is the sentinel retry.Do treats as "retryable" so the
// first pass through its loop consults the backoff and waits, rather than
// succeeding before ever sleeping: retry.Do invokes f once before ever
// looking at the Backoff, so f must signal "not done yet" on its first
// call for the backoff's duration to actually be honored.
var errPendingSleep = goerrors.New("gateclient: pending interruptible sleep")

// sleepInterruptible blocks for d or until ctx is done, whichever comes
// first, via retry.Do with a single-shot Backoff: the first call into f
// reports errPendingSleep as retryable, which makes retry.Do consult the
// Backoff and wait d before calling f again, at which point it returns nil.
func sleepInterruptible(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	first := true
	return retry.Do(ctx, &onceBackoff{d: d}, func(ctx context.Context) error {
		if first {
			first = false
			return retry.RetryableError(errPendingSleep)
		}
		return nil
	})
}
