package gateclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arcbridge/gateclient/internal/gwlog"
	"github.com/arcbridge/gateclient/internal/gwmetrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this package's spans in whatever OTel SDK a host
// process wires up; with no SDK registered (the common case for a library)
// span creation is a cheap no-op via the global no-op TracerProvider.
const tracerName = "github.com/arcbridge/gateclient"

// Client mediates outbound requests through rate-limit accounting,
// priority-aware admission, a bounded retry queue, and full request
// lifecycle handling (retry, redirect, cancellation). A Client is safe for
// concurrent use and is meant to be long-lived: construct one per
// downstream dependency (or family of groups) and reuse it.
type Client struct {
	defaultConfig Config
	resolver      *GroupResolver
	transport     Transport

	groupsMu sync.RWMutex
	groups   map[string]*GroupLimits

	queue    *RetryQueue
	breakers *breakerRegistry
	metrics  *gwmetrics.Metrics
	logger   *Logger
	tracer   trace.Tracer
}

// ClientOption configures optional Client dependencies at construction.
type ClientOption func(*clientOptions)

type clientOptions struct {
	resolver      *GroupResolver
	transport     Transport
	logger        *Logger
	metrics       *gwmetrics.Metrics
	queueCapacity int
	breakerConfig CircuitBreakerConfig
	defaultConfig Config
}

// WithResolver installs a GroupResolver. Without one, every URL resolves
// to itself as a degenerate group (GroupResolver's documented fallback).
func WithResolver(r *GroupResolver) ClientOption {
	return func(o *clientOptions) { o.resolver = r }
}

// WithTransport installs the default Transport used when a call's Config
// does not supply its own.
func WithTransport(t Transport) ClientOption {
	return func(o *clientOptions) { o.transport = t }
}

// WithLogger installs a *Logger (slog facade). Defaults to slog.Default().
func WithLogger(l *Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithMetrics installs a gwmetrics.Metrics bundle.
func WithMetrics(m *gwmetrics.Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// WithQueueCapacity overrides the default per-tier RetryQueue capacity.
func WithQueueCapacity(n int) ClientOption {
	return func(o *clientOptions) { o.queueCapacity = n }
}

// WithCircuitBreaker overrides the per-group circuit breaker settings.
func WithCircuitBreaker(cfg CircuitBreakerConfig) ClientOption {
	return func(o *clientOptions) { o.breakerConfig = cfg }
}

// WithDefaultConfig installs baseline Config values merged under every
// call's explicit Config (see mergeConfig).
func WithDefaultConfig(cfg Config) ClientOption {
	return func(o *clientOptions) { o.defaultConfig = cfg }
}

// NewClient constructs a Client ready to accept Send calls.
func NewClient(opts ...ClientOption) *Client {
	o := &clientOptions{
		breakerConfig: DefaultCircuitBreakerConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = NewGroupResolver(GroupResolverConfig{})
	}
	if o.transport == nil {
		o.transport = newDefaultTransport(nil, DefaultTimeout, DefaultMaxContentLength)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}
	if o.metrics == nil {
		o.metrics = gwmetrics.Noop()
	}
	o.defaultConfig.Validate()

	return &Client{
		defaultConfig: o.defaultConfig,
		resolver:      o.resolver,
		transport:     o.transport,
		groups:        make(map[string]*GroupLimits),
		queue:         newRetryQueue(o.queueCapacity, o.logger),
		breakers:      newBreakerRegistry(o.breakerConfig, o.metrics, o.logger),
		metrics:       o.metrics,
		logger:        o.logger,
		tracer:        otel.Tracer(tracerName),
	}
}

// groupLimitsFor returns (creating if necessary) the GroupLimits for name.
func (c *Client) groupLimitsFor(name string) *GroupLimits {
	c.groupsMu.RLock()
	gl, ok := c.groups[name]
	c.groupsMu.RUnlock()
	if ok {
		return gl
	}

	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()
	if gl, ok = c.groups[name]; ok {
		return gl
	}
	gl = newGroupLimits(name, c.logger)
	c.groups[name] = gl
	return gl
}

// WindowSnapshot is a read-only copy of one Window's state, used by
// GroupSnapshot for diagnostics (an admin endpoint, a debug CLI command)
// where handing out the live *Window would let a caller race its mutex.
type WindowSnapshot struct {
	Interval  string
	Quota     int
	Remaining int
	ResetsAt  time.Time
}

// GroupSnapshot is a read-only copy of one GroupLimits' current state.
type GroupSnapshot struct {
	Group   string
	Windows []WindowSnapshot
}

// Groups returns a point-in-time snapshot of every rate-limit group this
// Client has observed traffic for, for diagnostics.
func (c *Client) Groups() []GroupSnapshot {
	c.groupsMu.RLock()
	defer c.groupsMu.RUnlock()

	out := make([]GroupSnapshot, 0, len(c.groups))
	for name, gl := range c.groups {
		snap := GroupSnapshot{Group: name, Windows: make([]WindowSnapshot, 0, numIntervals)}
		for _, iv := range allIntervals {
			w := gl.Window(iv)
			snap.Windows = append(snap.Windows, WindowSnapshot{
				Interval:  iv.String(),
				Quota:     w.Quota(),
				Remaining: w.RequestsRemaining(),
				ResetsAt:  w.ResetsAt(),
			})
		}
		out = append(out, snap)
	}
	return out
}

// QueueDepths reports the current per-tier RetryQueue depth.
func (c *Client) QueueDepths() (high, normal, low int) {
	return c.queue.sizes()
}

// Send is the single generic entry point every verb wrapper funnels into.
// body may be nil; when non-nil it overrides cfg.Body. It returns a Future
// immediately; a non-nil error means the call was rejected synchronously
// because method or url is missing, the method is not one of the eight
// verbs the wrappers below cover, or url does not parse (CodeConfig). Every other
// failure mode (backpressure, cancellation, retries/redirects exhausted,
// transport errors) settles the returned Future instead.
func (c *Client) Send(method, rawURL string, cfg Config, body io.Reader) (*Future, error) {
	merged := mergeConfig(c.defaultConfig, cfg)
	if method != "" {
		merged.Method = method
	}
	if rawURL != "" {
		merged.URL = rawURL
	}
	if body != nil {
		merged.Body = body
	}

	if merged.Method == "" {
		return nil, NewConfigError("client.send", "method is required")
	}
	if merged.URL == "" {
		return nil, NewConfigError("client.send", "url is required")
	}
	switch merged.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions, http.MethodTrace:
	default:
		return nil, NewConfigError("client.send", "unknown method "+merged.Method)
	}
	if _, err := url.Parse(merged.URL); err != nil {
		return nil, NewConfigError("client.send", "unparseable url: "+err.Error())
	}
	if merged.Priority == AUTO {
		_, segments := canonicalize(merged.URL)
		merged.Priority = autoPriority(merged.Method, strings.Join(segments, "/"))
	}
	if merged.Transport == nil {
		merged.Transport = c.transport
	}

	future := newFuture()
	go c.runLifecycle(merged, future)
	return future, nil
}

// runLifecycle drives one logical request (method held fixed, URL mutated
// across redirects) through admission, dispatch, retry and redirect
// following until future settles.
func (c *Client) runLifecycle(cfg Config, future *Future) {
	ctx, cancel := c.requestContext(cfg)
	defer cancel()

	if reqID := cfg.Headers.Get("X-Request-Id"); reqID != "" {
		ctx = gwlog.WithRequestID(ctx, reqID)
	} else {
		ctx = gwlog.WithRequestID(ctx, uuid.NewString())
	}
	log := gwlog.FromContext(ctx, c.logger)

	ctx, span := c.tracer.Start(ctx, "gateclient.Send",
		trace.WithAttributes(attribute.String("http.method", cfg.Method)))
	defer span.End()

	currentURL := cfg.URL
	redirectCount := 0
	retryCount := 0
	var pendingRetryDelay time.Duration

	for {
		group := c.resolver.Resolve(currentURL)
		span.SetAttributes(attribute.String("gateclient.group", group))
		gl := c.groupLimitsFor(group)

		delay := time.Duration(gl.CalculateDelay()) * time.Millisecond
		if pendingRetryDelay > delay {
			delay = pendingRetryDelay
		}

		if delay.Milliseconds() > cfg.MaxDeferralMs {
			c.metrics.RecordAdmission(group, "enqueue")
			log.Debug("admission deferring to queue",
				"group", group, "delay_ms", delay.Milliseconds(), "max_deferral_ms", cfg.MaxDeferralMs)
			qr := &QueuedRequest{
				id:       nextQueuedRequestID(),
				method:   cfg.Method,
				url:      currentURL,
				cfg:      cfg,
				priority: cfg.Priority,
				queuedAt: time.Now(),
				future:   future,
				abortCh:  cfg.AbortSignal,
			}
			if err := c.queue.add(qr); err != nil {
				log.Warn("enqueue rejected by backpressure", "group", group, "priority", cfg.Priority.String())
				span.RecordError(err)
				span.SetStatus(codes.Error, "backpressure")
				future.settle(nil, err)
				return
			}
			high, normal, low := c.queue.sizes()
			c.metrics.SetQueueDepth("high", high)
			c.metrics.SetQueueDepth("normal", normal)
			c.metrics.SetQueueDepth("low", low)
			go c.watchQueuedAbort(qr, cfg.Timeout)
			c.queue.kick(c)
			return
		}

		c.metrics.RecordAdmission(group, "dispatch")
		if err := sleepInterruptible(ctx, delay); err != nil {
			span.RecordError(err)
			future.settle(nil, NewCancelledError("client.send", err))
			return
		}

		gl.Increment()
		start := time.Now()
		resp, err := c.breakers.execute(ctx, group, func() (ResponseView, error) {
			return cfg.Transport.Do(ctx, outboundRequest{
				Method:  cfg.Method,
				URL:     currentURL,
				Headers: cfg.Headers.Clone(),
				Body:    cfg.Body,
			})
		})
		c.metrics.ObserveDispatch(group, dispatchResultLabel(err), time.Since(start).Seconds())
		if err != nil {
			log.Warn("dispatch failed", "group", group, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "transport error")
			future.settle(nil, classifyDispatchError(err))
			return
		}

		gl.UpdateFromResponse(resp.Headers())

		if isRetryableStatus(resp.Status()) {
			if retryCount >= cfg.MaxRetries {
				log.Warn("retry budget exhausted", "group", group, "status", resp.Status(), "retries", retryCount)
				span.SetStatus(codes.Error, "retries exhausted")
				future.settle(nil, NewRetriesExhaustedError("client.send", resp, nil))
				return
			}
			c.metrics.RecordRetry(group, resp.Status())
			pendingRetryDelay = statusBackoffDelay(resp.Status(), resp.RetryAfterMs(), retryCount)
			log.Debug("retrying after transient status",
				"group", group, "status", resp.Status(), "attempt", retryCount+1, "backoff", pendingRetryDelay)
			retryCount++
			continue
		}
		pendingRetryDelay = 0

		if resp.Status() >= 300 && resp.Status() <= 399 {
			loc := resp.RedirectURL()
			if loc == "" {
				future.settle(resp, nil)
				return
			}
			nextURL := resolveRedirectURL(currentURL, loc)
			canonCurrent, _ := canonicalize(currentURL)
			canonNext, _ := canonicalize(nextURL)
			if canonNext == canonCurrent {
				log.Warn("redirect loop detected", "url", nextURL)
				span.SetStatus(codes.Error, "redirect loop")
				future.settle(nil, NewRedirectLoopError("client.send", nextURL))
				return
			}
			if redirectCount >= cfg.MaxRedirects {
				log.Warn("redirect budget exhausted", "max_redirects", cfg.MaxRedirects)
				span.SetStatus(codes.Error, "redirects exhausted")
				future.settle(nil, NewRedirectsExhaustedError("client.send", cfg.MaxRedirects))
				return
			}
			redirectCount++
			log.Debug("following redirect", "from", currentURL, "to", nextURL)
			currentURL = nextURL
			continue
		}

		future.settle(resp, nil)
		return
	}
}

// sendAdmitted re-enters the lifecycle for a QueuedRequest dequeued by the
// pump, reusing its original Future so the caller that issued the first
// Send observes the eventual settle regardless of how many times the
// request bounced through the queue. cfg is normalized with Validate
// before use. It does not block the pump: the lifecycle runs on the
// calling goroutine, which RetryQueue.resubmit starts separately for each
// dequeued request.
func (c *Client) sendAdmitted(method, rawURL string, cfg Config, future *Future) (ResponseView, error) {
	cfg.Method = method
	cfg.URL = rawURL
	cfg.Validate()
	if cfg.Transport == nil {
		cfg.Transport = c.transport
	}
	c.runLifecycle(cfg, future)
	return nil, nil
}

// watchQueuedAbort waits for qr's abort signal or per-request timeout to
// fire while qr sits in the RetryQueue, and aborts it if either does
// before the pump dequeues it first (I8, "cancellation while waiting in a
// queue removes the QueuedRequest and completes the future with a
// cancellation error"). A nil abortCh simply never fires its case, so this
// degrades to a plain timeout watcher when the caller supplied none.
// Aborting after qr has already been dequeued is a harmless no-op: its id
// is no longer present in any tier, so RetryQueue.abort finds nothing to
// remove or settle.
func (c *Client) watchQueuedAbort(qr *QueuedRequest, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-qr.abortCh:
		c.queue.abort(qr.id)
	case <-timer.C:
		c.queue.abort(qr.id)
	}
}

// requestContext builds the context for one logical request: cfg.Timeout
// bounds the deadline, and cfg.AbortSignal (if any) is fanned into
// cancellation alongside it.
func (c *Client) requestContext(cfg Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if cfg.AbortSignal == nil {
		return ctx, cancel
	}

	ctx2, cancel2 := context.WithCancel(ctx)
	go func() {
		select {
		case <-cfg.AbortSignal:
			cancel2()
		case <-ctx2.Done():
		}
	}()
	return ctx2, func() { cancel2(); cancel() }
}

func dispatchResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func classifyDispatchError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewCancelledError("client.dispatch", err)
	}
	if IsCode(err, CodeTransport) {
		return err
	}
	return NewTransportError("client.dispatch", err)
}

// resolveRedirectURL resolves a Location header value against the
// request's current URL, honoring both absolute and relative forms.
func resolveRedirectURL(current, location string) string {
	base, err := url.Parse(current)
	if err != nil {
		return location
	}
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	return base.ResolveReference(ref).String()
}

// Verb convenience wrappers. Each funnels into Send with Method fixed and
// no body; callers needing a body use Send directly.

func (c *Client) Get(rawURL string, cfg Config) (*Future, error) {
	return c.Send(http.MethodGet, rawURL, cfg, nil)
}

func (c *Client) Post(rawURL string, cfg Config, body io.Reader) (*Future, error) {
	return c.Send(http.MethodPost, rawURL, cfg, body)
}

func (c *Client) Put(rawURL string, cfg Config, body io.Reader) (*Future, error) {
	return c.Send(http.MethodPut, rawURL, cfg, body)
}

func (c *Client) Patch(rawURL string, cfg Config, body io.Reader) (*Future, error) {
	return c.Send(http.MethodPatch, rawURL, cfg, body)
}

func (c *Client) Delete(rawURL string, cfg Config) (*Future, error) {
	return c.Send(http.MethodDelete, rawURL, cfg, nil)
}

func (c *Client) Head(rawURL string, cfg Config) (*Future, error) {
	return c.Send(http.MethodHead, rawURL, cfg, nil)
}

func (c *Client) Options(rawURL string, cfg Config) (*Future, error) {
	return c.Send(http.MethodOptions, rawURL, cfg, nil)
}

func (c *Client) Trace(rawURL string, cfg Config) (*Future, error) {
	return c.Send(http.MethodTrace, rawURL, cfg, nil)
}
