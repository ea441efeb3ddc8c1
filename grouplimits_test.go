package gateclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupLimits_Increment_FansOutToEveryWindow(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	gl.Increment()
	for _, iv := range allIntervals {
		w := gl.Window(iv)
		assert.Equal(t, defaultGroupQuotas[iv]-1, w.RequestsRemaining(), "interval %s", iv)
	}
}

// I3: across k successful dispatches, each Window has been incremented exactly k times.
func TestGroupLimits_Increment_ExactlyKTimes(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	const k = 4
	for i := 0; i < k; i++ {
		gl.Increment()
	}
	for _, iv := range allIntervals {
		w := gl.Window(iv)
		assert.Equal(t, defaultGroupQuotas[iv]-k, w.RequestsRemaining(), "interval %s", iv)
	}
}

func TestGroupLimits_CalculateDelay_TakesMaxOverWindows(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	gl.windows[Burst].SetQuota(1)
	gl.Increment() // burst now exhausted; its delay will dominate briefly
	d := gl.CalculateDelay()
	assert.GreaterOrEqual(t, d, int64(delayFloorMs))
	assert.Less(t, d, int64(maxGroupDelayMs))
}

func TestGroupLimits_CalculateDelay_ClampedBelowMax(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	for _, iv := range allIntervals {
		gl.windows[iv].SetQuota(1)
	}
	gl.Increment()
	d := gl.CalculateDelay()
	assert.Less(t, d, int64(maxGroupDelayMs))
}

func TestGroupLimits_UpdateFromResponse_IgnoresOtherGroups(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	h := http.Header{}
	h.Set("X-RateLimit-Group", "payments")
	h.Set("X-RateLimit-Limit", "5 5;w=1")
	gl.UpdateFromResponse(h)
	assert.Equal(t, defaultGroupQuotas[Second], gl.windows[Second].Quota())
}

func TestGroupLimits_UpdateFromResponse_AppliesMatchingGroup(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	h := http.Header{}
	h.Set("X-RateLimit-Group", "orders")
	h.Set("X-RateLimit-Limit", "5 5;w=1, 100;w=60")
	gl.UpdateFromResponse(h)
	assert.Equal(t, 5, gl.windows[Burst].Quota())
	assert.Equal(t, 5, gl.windows[Second].Quota())
	assert.Equal(t, 100, gl.windows[Minute].Quota())
	// Hour/Day untouched.
	assert.Equal(t, defaultGroupQuotas[Hour], gl.windows[Hour].Quota())
}

func TestGroupLimits_UpdateFromResponse_DefaultsBurstWhenAbsent(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	h := http.Header{}
	h.Set("X-RateLimit-Group", "orders")
	h.Set("X-RateLimit-Limit", "5;w=1")
	gl.UpdateFromResponse(h)
	assert.Equal(t, defaultBurstQuota, gl.windows[Burst].Quota())
}

func TestGroupLimits_UpdateFromResponse_MalformedIgnoredSilently(t *testing.T) {
	gl := newGroupLimits("orders", nil)
	before := gl.windows[Second].Quota()
	h := http.Header{}
	h.Set("X-RateLimit-Group", "orders")
	h.Set("X-RateLimit-Limit", "not-a-valid-header!!")
	gl.UpdateFromResponse(h)
	assert.Equal(t, before, gl.windows[Second].Quota())
}

func TestParseRateLimitHeader(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		burst   *int
		second  int
		hasSec  bool
	}{
		{"burst and second", "5 5;w=1", true, intPtr(5), 5, true},
		{"no burst", "10;w=1, 200;w=60", true, nil, 10, true},
		{"empty", "", false, nil, 0, false},
		{"garbage", "???", false, nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRateLimitHeader(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			if tt.burst != nil {
				require.NotNil(t, got.burst)
				assert.Equal(t, *tt.burst, *got.burst)
			} else {
				assert.Nil(t, got.burst)
			}
			if tt.hasSec {
				assert.Equal(t, tt.second, got.byInterval[Second])
			}
		})
	}
}

// R1: parsing then re-emitting the grammar yields the same quota tuple.
func TestParseRateLimitHeader_RoundTrip(t *testing.T) {
	raw := "5 5;w=1, 250;w=60, 5000;w=3600, 50000;w=86400"
	parsed, ok := parseRateLimitHeader(raw)
	require.True(t, ok)

	reemitted := formatRateLimitHeader(parsed)
	reparsed, ok := parseRateLimitHeader(reemitted)
	require.True(t, ok)

	assert.Equal(t, *parsed.burst, *reparsed.burst)
	assert.Equal(t, parsed.byInterval, reparsed.byInterval)
}

func intPtr(i int) *int { return &i }
