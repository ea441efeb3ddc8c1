package gateclient

import "time"

// Interval is a closed enumeration of the five rate-limit time buckets.
// Because the set is fixed and small, GroupLimits indexes a plain array
// by Interval tag rather than keying a map.
type Interval int

const (
	Burst Interval = iota
	Second
	Minute
	Hour
	Day

	numIntervals = int(Day) + 1
)

// durationMs returns the bucket width in milliseconds for this interval.
func (iv Interval) durationMs() int64 {
	switch iv {
	case Burst:
		return 100
	case Second:
		return 1000
	case Minute:
		return 60_000
	case Hour:
		return 3_600_000
	case Day:
		return 86_400_000
	default:
		return 0
	}
}

// Duration returns the bucket width as a time.Duration.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.durationMs()) * time.Millisecond
}

// String returns the canonical lowercase name used in diagnostics. The
// X-RateLimit-Limit header grammar's "w=" period uses periodSeconds instead.
func (iv Interval) String() string {
	switch iv {
	case Burst:
		return "burst"
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

// periodSeconds returns the "w=<period>" value used in the
// X-RateLimit-Limit header grammar. Burst has no period value in that
// grammar (it is the bare leading integer), so periodSeconds returns 0 for
// it; the header emitter uses it for the other four intervals only.
func periodSeconds(iv Interval) int {
	switch iv {
	case Second:
		return 1
	case Minute:
		return 60
	case Hour:
		return 3600
	case Day:
		return 86400
	default:
		return 0
	}
}

// intervalForPeriod inverts periodSeconds; it returns (0, false) for an
// unrecognized period so malformed headers can be ignored per §4.2.
func intervalForPeriod(period int) (Interval, bool) {
	switch period {
	case 1:
		return Second, true
	case 60:
		return Minute, true
	case 3600:
		return Hour, true
	case 86400:
		return Day, true
	default:
		return 0, false
	}
}

// allIntervals enumerates the five intervals in the fixed array order
// used by GroupLimits.windows.
var allIntervals = [numIntervals]Interval{Burst, Second, Minute, Hour, Day}
