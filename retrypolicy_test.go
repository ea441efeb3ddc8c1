package gateclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableStatus(t *testing.T) {
	for _, s := range []int{408, 425, 429, 500, 502, 503, 504} {
		assert.True(t, isRetryableStatus(s), "status %d should be retryable", s)
	}
	for _, s := range []int{200, 201, 301, 400, 404} {
		assert.False(t, isRetryableStatus(s), "status %d should not be retryable", s)
	}
}

func TestStatusBackoffDelay_UsesRetryAfterWhenLarger(t *testing.T) {
	d := statusBackoffDelay(http.StatusTooManyRequests, 5000, 0)
	assert.Equal(t, 5*time.Second, d)
}

func TestStatusBackoffDelay_FallsBackToDefaultPerStatus(t *testing.T) {
	d := statusBackoffDelay(http.StatusServiceUnavailable, 0, 0)
	assert.Equal(t, 2*time.Second, d)
}

func TestStatusBackoffDelay_ScalesByAttempt(t *testing.T) {
	first := statusBackoffDelay(http.StatusTooManyRequests, 1000, 0)
	second := statusBackoffDelay(http.StatusTooManyRequests, 1000, 1)
	third := statusBackoffDelay(http.StatusTooManyRequests, 1000, 2)
	assert.Equal(t, 1*time.Second, first)
	assert.Equal(t, 2*time.Second, second)
	assert.Equal(t, 3*time.Second, third)
}

func TestStatusBackoffDelay_UnknownStatusUsesFallback(t *testing.T) {
	d := statusBackoffDelay(599, 0, 0)
	assert.Equal(t, time.Duration(defaultRetryDelayFallbackMs)*time.Millisecond, d)
}

func TestSleepInterruptible_ReturnsAfterDuration(t *testing.T) {
	start := time.Now()
	err := sleepInterruptible(context.Background(), 20*time.Millisecond)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleepInterruptible_InterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := sleepInterruptible(ctx, time.Hour)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepInterruptible_ZeroOrNegativeReturnsImmediately(t *testing.T) {
	err := sleepInterruptible(context.Background(), 0)
	assert.NoError(t, err)
}
