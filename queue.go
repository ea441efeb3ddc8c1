package gateclient

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// defaultQueueCapacity is the per-tier bound preserved from the source's
// hard-coded 25; it is configurable on RetryQueue construction but this is
// the value a Client uses unless told otherwise.
const defaultQueueCapacity = 25

// pumpRoundSleepBaseMs and pumpRoundSleepJitterMs set the jittered
// inter-dequeue pause within a pump round, 100ms plus up to 10ms of
// jitter, sized to avoid starving a tier that keeps receiving new arrivals
// mid-round.
const pumpRoundSleepBaseMs = 100
const pumpRoundSleepJitterMs = 10

// pumpRetryInterval is how long the pump waits before attempting another
// run when a run ends with work still queued.
const pumpRetryInterval = time.Second

// maxDequeuesPerTierPerRound bounds how many items one tier may contribute
// within a single pump round, so a HIGH tier kept topped up can never fully
// starve NORMAL/LOW.
const maxDequeuesPerTierPerRound = 3

var queuedRequestSeq uint32

// nextQueuedRequestID returns a monotonic id that wraps at the uint32
// ceiling; ids are diagnostic only and never used for ordering (FIFO
// ordering is the queue's job, not the id's).
func nextQueuedRequestID() uint32 {
	return atomic.AddUint32(&queuedRequestSeq, 1)
}

// QueuedRequest is one admission decision deferred into the RetryQueue. It
// is owned exclusively by the RetryQueue from enqueue until dequeue, at
// which point ownership transfers to the pump's re-submission call.
type QueuedRequest struct {
	id        uint32
	method    string
	url       string
	cfg       Config
	priority  Priority
	queuedAt  time.Time
	future    *Future
	abortCh   <-chan struct{}
	abortOnce sync.Once
	aborted   atomic.Bool
}

// Abort marks qr as cancelled and settles its Future with a cancellation
// error. Safe to call more than once or concurrently with dispatch; only
// the first call has any effect.
func (qr *QueuedRequest) Abort() {
	qr.abortOnce.Do(func() {
		qr.aborted.Store(true)
		qr.future.settle(nil, NewCancelledError("queue.abort", nil))
	})
}

// tier is one priority's bounded FIFO, protected by its own mutex so the
// pump can acquire HIGH, NORMAL, LOW in a fixed order without any caller
// ever needing two tier locks at once.
type tier struct {
	mu       sync.Mutex
	items    []*QueuedRequest
	capacity int
}

func newTier(capacity int) *tier {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &tier{capacity: capacity}
}

func (t *tier) push(qr *QueuedRequest) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.items) >= t.capacity {
		return false
	}
	t.items = append(t.items, qr)
	return true
}

func (t *tier) popFront() *QueuedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.items) == 0 {
		return nil
	}
	qr := t.items[0]
	t.items = t.items[1:]
	return qr
}

func (t *tier) removeByID(id uint32) *QueuedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, qr := range t.items {
		if qr.id == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return qr
		}
	}
	return nil
}

func (t *tier) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// RetryQueue holds three bounded priority FIFOs and a single-flight pump
// that re-submits dequeued requests back into admission. Exactly one pump
// goroutine is ever active; concurrent kicks are coalesced by pumping.
type RetryQueue struct {
	high   *tier
	normal *tier
	low    *tier

	pumping atomic.Bool
	logger  *Logger
}

// newRetryQueue builds a RetryQueue with capacity per tier (defaultQueueCapacity
// when capacity <= 0).
func newRetryQueue(capacity int, logger *Logger) *RetryQueue {
	if logger == nil {
		logger = defaultLogger()
	}
	return &RetryQueue{
		high:   newTier(capacity),
		normal: newTier(capacity),
		low:    newTier(capacity),
		logger: logger,
	}
}

func (q *RetryQueue) tierFor(p Priority) *tier {
	switch p {
	case HIGH:
		return q.high
	case LOW:
		return q.low
	default:
		return q.normal
	}
}

// add places qr into the tier matching its priority. If that tier is at
// capacity, add returns a Backpressure error and qr is not retained.
func (q *RetryQueue) add(qr *QueuedRequest) error {
	t := q.tierFor(qr.priority)
	if !t.push(qr) {
		return NewBackpressureError("queue.add", qr.priority.String())
	}
	return nil
}

// remove detaches the QueuedRequest with id from whichever tier holds it,
// without settling its Future. Returns nil if no such id is queued (it may
// already have been dequeued by the pump).
func (q *RetryQueue) remove(id uint32) *QueuedRequest {
	for _, t := range []*tier{q.high, q.normal, q.low} {
		if qr := t.removeByID(id); qr != nil {
			return qr
		}
	}
	return nil
}

// abort removes the QueuedRequest with id and settles its Future with a
// cancellation error, implementing the cancel-while-queued path of I8.
func (q *RetryQueue) abort(id uint32) {
	if qr := q.remove(id); qr != nil {
		qr.Abort()
	}
}

// sizes reports the current per-tier depth, for diagnostics and tests.
func (q *RetryQueue) sizes() (high, normal, low int) {
	return q.high.len(), q.normal.len(), q.low.len()
}

// pumpJitter returns the jittered inter-dequeue interval the pump sleeps
// between dequeues.
func pumpJitter() time.Duration {
	return time.Duration(pumpRoundSleepBaseMs+rand.Intn(pumpRoundSleepJitterMs+1)) * time.Millisecond
}

// kick schedules a pump attempt if one is not already running. Safe to
// call from any goroutine, any number of times; only one pump loop is ever
// active (the pumping flag rejects re-entrancy per the concurrency model).
func (q *RetryQueue) kick(client *Client) {
	if !q.pumping.CompareAndSwap(false, true) {
		return
	}
	go q.run(client)
}

// run drains at most three rounds of HIGH-then-NORMAL-then-LOW, each round
// dequeuing up to maxDequeuesPerTierPerRound per tier, sleeping a jittered
// interval between dequeues. A round that dequeues nothing ends the run
// early; otherwise the next round starts immediately. If any tier is still
// non-empty when the run ends, run schedules the next pump attempt in ~1s.
func (q *RetryQueue) run(client *Client) {
	defer q.pumping.Store(false)
	q.logger.Debug("pump starting")

	for round := 0; round < 3; round++ {
		dispatched := 0
		for _, t := range []*tier{q.high, q.normal, q.low} {
			for i := 0; i < maxDequeuesPerTierPerRound; i++ {
				qr := t.popFront()
				if qr == nil {
					break
				}
				dispatched++
				q.resubmit(client, qr)
				time.Sleep(pumpJitter())
			}
		}
		if dispatched == 0 {
			break
		}
	}

	high, normal, low := q.sizes()
	if high+normal+low > 0 {
		q.logger.Debug("pump round ended with work remaining, rescheduling",
			"high", high, "normal", normal, "low", low)
		time.AfterFunc(pumpRetryInterval, func() { q.kick(client) })
	}
}

// resubmit hands a dequeued QueuedRequest back into admission. It re-enters
// Send just like a fresh request and may be re-enqueued by that call if
// still rate-limited; the original Future is reused so the original caller
// observes the eventual settle regardless of how many times the request
// bounces through the queue.
func (q *RetryQueue) resubmit(client *Client, qr *QueuedRequest) {
	if qr.aborted.Load() {
		return
	}
	go client.sendAdmitted(qr.method, qr.url, qr.cfg, qr.future)
}
