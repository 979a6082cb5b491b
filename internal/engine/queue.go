package engine

import (
	"context"
	"sync"
	"time"
)

// triggerQueue is the ordered work queue both producers (watch consumer,
// periodic scheduler) enqueue into. Triggers are keyed by kind, so a burst
// of events collapses into a single pending reconcile: coalescing, not loss,
// since the index is updated before the trigger is enqueued.
type triggerQueue struct {
	mu sync.Mutex

	// queue holds triggers in FIFO order
	queue []trigger

	// processing tracks kinds currently being processed
	processing map[triggerKind]bool

	// dirty tracks kinds re-triggered while processing
	dirty map[triggerKind]trigger

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown indicates the queue is stopping
	shuttingDown bool
}

func newTriggerQueue() *triggerQueue {
	q := &triggerQueue{
		queue:      make([]trigger, 0),
		processing: make(map[triggerKind]bool),
		dirty:      make(map[triggerKind]trigger),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add adds or coalesces a trigger in the queue.
func (q *triggerQueue) Add(t trigger) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	// If the same kind is being processed, mark it dirty so it runs once
	// more after the in-flight pass finishes.
	if q.processing[t.kind] {
		q.dirty[t.kind] = t
		return
	}

	for i, existing := range q.queue {
		if existing.kind == t.kind {
			q.queue[i] = t
			return
		}
	}

	q.queue = append(q.queue, t)
	q.cond.Signal()
}

// Get retrieves the next trigger, blocking if necessary.
func (q *triggerQueue) Get(ctx context.Context) (trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return trigger{}, false
		default:
		}

		// A helper goroutine races context cancellation against a normal
		// wakeup; closing done ends it either way.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return trigger{}, false
		default:
		}
	}

	if q.shuttingDown && len(q.queue) == 0 {
		return trigger{}, false
	}

	t := q.queue[0]
	q.queue = q.queue[1:]
	q.processing[t.kind] = true

	return t, true
}

// Done marks a trigger as completed, requeueing it when it was re-added
// during processing.
func (q *triggerQueue) Done(t trigger) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, t.kind)

	if dirtyTrigger, ok := q.dirty[t.kind]; ok {
		delete(q.dirty, t.kind)
		q.queue = append(q.queue, dirtyTrigger)
		q.cond.Signal()
	}
}

// Len returns the queue length.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops the queue.
func (q *triggerQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// delayedTriggerQueue wraps triggerQueue with delayed requeue support, used
// to retry a failed cycle with backoff ahead of the next periodic sync.
type delayedTriggerQueue struct {
	queue      *triggerQueue
	mu         sync.Mutex
	delayedMap map[triggerKind]*time.Timer
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func newDelayedTriggerQueue() *delayedTriggerQueue {
	return &delayedTriggerQueue{
		queue:      newTriggerQueue(),
		delayedMap: make(map[triggerKind]*time.Timer),
		stopCh:     make(chan struct{}),
	}
}

// Add adds a trigger immediately.
func (d *delayedTriggerQueue) Add(t trigger) {
	d.queue.Add(t)
}

// AddAfter adds a trigger after a delay, replacing any pending delayed
// trigger of the same kind.
func (d *delayedTriggerQueue) AddAfter(t trigger, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.delayedMap[t.kind]; ok {
		timer.Stop()
	}

	d.delayedMap[t.kind] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.delayedMap, t.kind)
		d.mu.Unlock()

		select {
		case <-d.stopCh:
			return
		default:
			d.queue.Add(t)
		}
	})
}

// Get retrieves the next trigger.
func (d *delayedTriggerQueue) Get(ctx context.Context) (trigger, bool) {
	return d.queue.Get(ctx)
}

// Done marks a trigger as completed.
func (d *delayedTriggerQueue) Done(t trigger) {
	d.queue.Done(t)
}

// Len returns the queue length.
func (d *delayedTriggerQueue) Len() int {
	return d.queue.Len()
}

// Shutdown stops the queue and cancels pending timers.
func (d *delayedTriggerQueue) Shutdown() {
	d.stopOnce.Do(func() { close(d.stopCh) })

	d.mu.Lock()
	for _, timer := range d.delayedMap {
		timer.Stop()
	}
	d.delayedMap = make(map[triggerKind]*time.Timer)
	d.mu.Unlock()

	d.queue.Shutdown()
}
