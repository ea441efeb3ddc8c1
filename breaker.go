package gateclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arcbridge/gateclient/internal/gwmetrics"
	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig tunes the per-group circuit breaker: a remote group
// that is erroring outright (as opposed to merely rate-limiting) benefits
// from the same protection the rest of the ecosystem gives downstream calls.
type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig mirrors the conservative defaults used
// elsewhere for outbound dependency protection.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// groupBreaker wraps one gobreaker.CircuitBreaker for one rate-limit
// group, recording state transitions to gwmetrics and the Client's logger.
type groupBreaker struct {
	group   string
	breaker *gobreaker.CircuitBreaker
}

// breakerRegistry lazily creates one groupBreaker per group name,
// grow-only for the Client's lifetime, mirroring the groupLimits map's own
// concurrency policy.
type breakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*groupBreaker
	cfg      CircuitBreakerConfig
	metrics  *gwmetrics.Metrics
	logger   *Logger
}

func newBreakerRegistry(cfg CircuitBreakerConfig, metrics *gwmetrics.Metrics, logger *Logger) *breakerRegistry {
	if logger == nil {
		logger = defaultLogger()
	}
	if metrics == nil {
		metrics = gwmetrics.Noop()
	}
	return &breakerRegistry{
		breakers: make(map[string]*groupBreaker),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

func (r *breakerRegistry) forGroup(group string) *groupBreaker {
	r.mu.RLock()
	gb, ok := r.breakers[group]
	r.mu.RUnlock()
	if ok {
		return gb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gb, ok = r.breakers[group]; ok {
		return gb
	}

	gb = &groupBreaker{group: group}
	settings := gobreaker.Settings{
		Name:        group,
		MaxRequests: r.cfg.MaxRequests,
		Interval:    r.cfg.Interval,
		Timeout:     r.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.metrics.SetBreakerState(name, stateLabel(to))
			r.metrics.RecordBreakerTransition(name, stateLabel(from), stateLabel(to))
			r.logger.Info("circuit breaker state changed",
				"group", name, "from", stateLabel(from), "to", stateLabel(to))
		},
	}
	gb.breaker = gobreaker.NewCircuitBreaker(settings)
	r.metrics.SetBreakerState(group, "closed")
	r.breakers[group] = gb
	return gb
}

func stateLabel(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// execute runs fn with circuit breaker protection for group, translating
// gobreaker's open/too-many-requests sentinels into the package's own
// CodeTransport error so callers never import gobreaker themselves.
func (r *breakerRegistry) execute(ctx context.Context, group string, fn func() (ResponseView, error)) (ResponseView, error) {
	gb := r.forGroup(group)
	result, err := gb.breaker.Execute(func() (any, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, NewTransportError("client.breaker", err)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(ResponseView), nil
}
