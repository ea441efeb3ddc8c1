package gateclient

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// defaultBurstQuota is assumed for the burst Window whenever a
// X-RateLimit-Limit header supplies period pairs but no leading burst
// integer, per §4.2.
const defaultBurstQuota = 10

// maxGroupDelayMs clamps GroupLimits.CalculateDelay below 30s: waits longer
// than this should become an enqueue instead of a sleep (§4.2).
const maxGroupDelayMs = 30_000

// GroupLimits holds the five Windows — one per Interval — for one
// rate-limit group. It is created lazily on first reference to a group
// name and lives for the Client's lifetime.
type GroupLimits struct {
	mu        sync.RWMutex
	groupName string
	windows   [numIntervals]*Window
	logger    *Logger

	timersMu sync.Mutex
	timers   [numIntervals]*time.Timer
}

// defaultGroupQuotas are the initial per-interval quotas assigned when a
// group is first observed, before any response header narrows them. They
// are intentionally generous; real limits are expected to arrive via
// X-RateLimit-Limit on the first response.
var defaultGroupQuotas = [numIntervals]int{
	int(Burst):  defaultBurstQuota,
	int(Second): 10,
	int(Minute): 250,
	int(Hour):   5000,
	int(Day):    50_000,
}

// newGroupLimits constructs a GroupLimits with default quotas and arms the
// best-effort per-Window expiration timers.
func newGroupLimits(name string, logger *Logger) *GroupLimits {
	if logger == nil {
		logger = defaultLogger()
	}
	now := time.Now()
	gl := &GroupLimits{groupName: name, logger: logger}
	for _, iv := range allIntervals {
		gl.windows[iv] = newWindow(iv, defaultGroupQuotas[iv], now)
		gl.armTimer(iv)
	}
	return gl
}

// armTimer (re)schedules the advisory expiration timer for one Window.
// The timer is advisory only: every Window operation also checks
// resetsAt itself, so a missed or delayed timer fire never produces an
// incorrect count (§4.1).
func (gl *GroupLimits) armTimer(iv Interval) {
	w := gl.windows[iv]
	d := time.Until(w.ResetsAt())
	if d < 0 {
		d = 0
	}
	gl.timersMu.Lock()
	defer gl.timersMu.Unlock()
	gl.timers[iv] = time.AfterFunc(d, func() {
		w.Reset()
		gl.armTimer(iv)
	})
}

// Name returns the group name.
func (gl *GroupLimits) Name() string {
	return gl.groupName
}

// Increment fans out to every Window, so one successful dispatch counts
// as exactly one increment per Window (I3).
func (gl *GroupLimits) Increment() {
	for _, iv := range allIntervals {
		gl.windows[iv].Increment()
	}
}

// CalculateDelay returns the maximum delay demanded by any Window,
// clamped to [10ms, 30s). The upper clamp turns pathologically long waits
// into a candidate for enqueue rather than a blocking sleep.
func (gl *GroupLimits) CalculateDelay() int64 {
	var max int64
	for _, iv := range allIntervals {
		if d := gl.windows[iv].CalculateDelay(); d > max {
			max = d
		}
	}
	if max < delayFloorMs {
		return delayFloorMs
	}
	if max >= maxGroupDelayMs {
		return maxGroupDelayMs - 1
	}
	return max
}

// Window returns the Window for the given interval.
func (gl *GroupLimits) Window(iv Interval) *Window {
	return gl.windows[iv]
}

// UpdateFromResponse parses X-RateLimit-Limit (only if X-RateLimit-Group
// names this group) and applies any quota changes. Malformed headers are
// ignored silently, logged at Debug, and never fail the request (§4.2
// "Failure semantics").
func (gl *GroupLimits) UpdateFromResponse(headers http.Header) {
	group := headers.Get("X-RateLimit-Group")
	if group == "" || !strings.EqualFold(group, gl.groupName) {
		return
	}
	raw := headers.Get("X-RateLimit-Limit")
	if raw == "" {
		return
	}
	parsed, ok := parseRateLimitHeader(raw)
	if !ok {
		gl.logger.Debug("malformed X-RateLimit-Limit header ignored",
			"group", gl.groupName, "raw", raw)
		return
	}
	if parsed.burst != nil {
		gl.windows[Burst].SetQuota(*parsed.burst)
	} else {
		gl.windows[Burst].SetQuota(defaultBurstQuota)
	}
	for iv, quota := range parsed.byInterval {
		gl.windows[iv].SetQuota(quota)
	}
}

// rateLimitLimit is the parsed form of an X-RateLimit-Limit header value.
type rateLimitLimit struct {
	burst      *int
	byInterval map[Interval]int
}

// parseRateLimitHeader parses the grammar:
//
//	[<burst> ] <n>;w=<period> (, <n>;w=<period>)*
//
// where period ∈ {1, 60, 3600, 86400}. Pairs naming an unrecognized
// period, or malformed pairs, cause that single pair to be skipped (not
// the whole header) unless nothing at all could be parsed, in which case
// ok is false and the caller discards the result per §4.2.
func parseRateLimitHeader(raw string) (rateLimitLimit, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return rateLimitLimit{}, false
	}

	fields := strings.Fields(raw)
	result := rateLimitLimit{byInterval: make(map[Interval]int)}

	rest := raw
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			b := n
			result.burst = &b
			// Re-join everything after the leading burst integer.
			idx := strings.Index(raw, fields[0]) + len(fields[0])
			rest = strings.TrimSpace(raw[idx:])
		}
	}

	pairs := strings.Split(rest, ",")
	any := false
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ";", 2)
		if len(parts) != 2 {
			continue
		}
		countStr := strings.TrimSpace(parts[0])
		wPart := strings.TrimSpace(parts[1])
		if !strings.HasPrefix(wPart, "w=") {
			continue
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			continue
		}
		period, err := strconv.Atoi(strings.TrimPrefix(wPart, "w="))
		if err != nil {
			continue
		}
		iv, ok := intervalForPeriod(period)
		if !ok {
			continue
		}
		result.byInterval[iv] = count
		any = true
	}

	if !any && result.burst == nil {
		return rateLimitLimit{}, false
	}
	return result, true
}

// formatRateLimitHeader re-emits the grammar parseRateLimitHeader
// consumes, used by tests to verify the round-trip law R1.
func formatRateLimitHeader(l rateLimitLimit) string {
	var b strings.Builder
	if l.burst != nil {
		b.WriteString(strconv.Itoa(*l.burst))
		b.WriteByte(' ')
	}
	first := true
	for _, iv := range allIntervals {
		period := periodSeconds(iv)
		if period == 0 {
			continue
		}
		count, ok := l.byInterval[iv]
		if !ok {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strconv.Itoa(count))
		b.WriteString(";w=")
		b.WriteString(strconv.Itoa(period))
	}
	return b.String()
}
