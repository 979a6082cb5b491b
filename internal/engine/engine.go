// Package engine drives the reconcile loop: it keeps an in-memory index of
// InspectionRule resources in sync with the store via list and watch, and
// materializes the index into the combined rules file whenever it changes.
//
// Producers (the watch consumer and the periodic scheduler) only enqueue
// triggers; a single drain worker performs the reconcile cycles, so at most
// one cycle touches the artifact at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rulesync/internal/converter"
	"rulesync/internal/index"
	"rulesync/internal/status"
	"rulesync/internal/store"
	"rulesync/internal/writer"
	ironicv1 "rulesync/pkg/apis/ironic/v1"
	"rulesync/pkg/logging"
)

const (
	defaultSyncInterval   = 30 * time.Second
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 5 * time.Minute

	// cycleTimeout bounds one reconcile cycle, status writes included. It is
	// independent of the run context so shutdown lets the in-flight cycle
	// finish.
	cycleTimeout = 2 * time.Minute

	msgSynced = "Rule synchronized successfully"
)

// Options configures an Engine.
type Options struct {
	Store     store.RuleStore
	Writer    *writer.Writer
	Reporter  *status.Reporter
	Namespace string

	// SyncInterval is the period between full syncs.
	SyncInterval time.Duration

	// LivenessTimeout bounds watch silence before the subscription is
	// considered stalled. Defaults to four sync intervals.
	LivenessTimeout time.Duration

	// InitialBackoff and MaxBackoff shape the exponential retry delay for
	// failed list calls and failed cycles.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// CycleStats summarizes one reconcile cycle.
type CycleStats struct {
	// Written is the number of rules in the published artifact.
	Written int

	// Errors is the number of resources rejected by validation.
	Errors int
}

// Engine owns the index, the trigger queue and the reconcile workers.
type Engine struct {
	opts    Options
	index   *index.Index
	queue   *delayedTriggerQueue
	metrics *Metrics
	sync    *syncState

	stateMu sync.Mutex
	state   State

	fullSyncInFlight atomic.Bool

	statsMu   sync.Mutex
	lastStats CycleStats
}

// New creates an engine. Zero durations in opts take defaults.
func New(opts Options) *Engine {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if opts.LivenessTimeout <= 0 {
		opts.LivenessTimeout = 4 * opts.SyncInterval
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	return &Engine{
		opts:    opts,
		index:   index.New(),
		queue:   newDelayedTriggerQueue(),
		metrics: newMetrics(),
		sync:    &syncState{},
		state:   StateInit,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// LastStats returns the stats of the most recent successful cycle.
func (e *Engine) LastStats() CycleStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.lastStats
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state == s {
		return
	}
	logging.Info("Engine", "State transition: %s -> %s", e.state, s)
	e.state = s
}

// Run executes the long-running reconcile loop until ctx is cancelled.
// Shutdown lets the in-flight cycle finish its artifact and status writes.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StateListing)
	if err := e.listWithRetry(ctx); err != nil {
		return nil
	}
	e.queue.Add(trigger{kind: triggerReconcile, reason: "initial list"})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		e.watchLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.scheduleLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.drainLoop(ctx)
	}()

	<-ctx.Done()
	e.setState(StateShuttingDown)
	e.queue.Shutdown()
	wg.Wait()

	logging.Info("Engine", "Engine stopped")
	return nil
}

// RunOnce performs a single list and reconcile cycle without watching,
// for one-shot invocations.
func (e *Engine) RunOnce(ctx context.Context) (CycleStats, error) {
	e.setState(StateListing)
	items, _, err := e.opts.Store.List(ctx, e.opts.Namespace)
	if err != nil {
		return CycleStats{}, fmt.Errorf("failed to list rules: %w", err)
	}
	e.index.ReplaceAll(items)
	return e.cycle(ctx)
}

// listWithRetry lists until success, with exponential backoff. It only
// returns an error when ctx is cancelled.
func (e *Engine) listWithRetry(ctx context.Context) error {
	attempt := 1
	for {
		items, cursor, err := e.opts.Store.List(ctx, e.opts.Namespace)
		if err == nil {
			removed := e.index.ReplaceAll(items)
			e.sync.SetCursor(cursor)
			logging.Info("Engine", "Listed %d rules (%d removed from index)", len(items), len(removed))
			return nil
		}

		delay := e.backoff(attempt)
		attempt++
		logging.Error("Engine", err, "Failed to list rules, retrying in %v", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// watchLoop owns the watch subscription lifecycle: it opens a session,
// consumes it until it ends, and relists whenever the cursor is lost.
func (e *Engine) watchLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if e.sync.Cursor() == "" {
			e.setState(StateRelisting)
			if err := e.listWithRetry(ctx); err != nil {
				return
			}
			e.queue.Add(trigger{kind: triggerReconcile, reason: "relist"})
		}

		session, err := e.opts.Store.Watch(ctx, e.opts.Namespace, e.sync.Cursor())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Error("Engine", err, "Failed to open watch, relisting")
			e.sync.Invalidate()
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.opts.InitialBackoff):
			}
			continue
		}

		e.setState(StateWatching)
		e.consume(ctx, session)
	}
}

// consume drains one watch session until it ends, ctx is cancelled, or the
// liveness timeout fires. On any abnormal end the cursor is invalidated so
// the caller relists.
func (e *Engine) consume(ctx context.Context, session store.WatchSession) {
	defer session.Stop()

	timer := time.NewTimer(e.opts.LivenessTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-session.Events():
			if !ok {
				err := session.Err()
				switch {
				case errors.Is(err, store.ErrCursorExpired):
					logging.Warn("Engine", "Watch cursor expired, relisting")
				case err != nil:
					logging.Error("Engine", err, "Watch ended, relisting")
				default:
					logging.Debug("Engine", "Watch closed cleanly, relisting")
				}
				e.sync.Invalidate()
				return
			}
			e.applyEvent(evt)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.opts.LivenessTimeout)

		case <-timer.C:
			logging.Warn("Engine", "No watch activity for %v, relisting", e.opts.LivenessTimeout)
			e.sync.Invalidate()
			return
		}
	}
}

// applyEvent updates the index before enqueueing the trigger, so a coalesced
// reconcile always operates on the latest state.
func (e *Engine) applyEvent(evt store.Event) {
	switch evt.Type {
	case store.EventBookmark:
		e.sync.SetCursor(evt.Cursor)
		return
	case store.EventAdded, store.EventModified:
		e.index.Upsert(evt.Rule)
	case store.EventDeleted:
		e.index.Delete(index.IdentityOf(evt.Rule))
	default:
		logging.Warn("Engine", "Ignoring unknown watch event type %q", evt.Type)
		return
	}

	e.sync.SetCursor(evt.Cursor)
	logging.Debug("Engine", "Observed %s for %s/%s", evt.Type, evt.Rule.Namespace, evt.Rule.Name)
	e.queue.Add(trigger{kind: triggerReconcile, reason: string(evt.Type)})
}

// scheduleLoop enqueues a full sync every SyncInterval. A tick that lands
// while a full sync is still running is skipped, not queued.
func (e *Engine) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.fullSyncInFlight.Load() {
				logging.Debug("Engine", "Full sync still in flight, skipping tick")
				continue
			}
			e.queue.Add(trigger{kind: triggerFullSync, reason: "periodic"})
		}
	}
}

// drainLoop is the single consumer of the trigger queue.
func (e *Engine) drainLoop(ctx context.Context) {
	for {
		t, ok := e.queue.Get(ctx)
		if !ok {
			return
		}
		e.process(t)
		e.queue.Done(t)
	}
}

func (e *Engine) process(t trigger) {
	// The cycle runs on its own context so cancellation of the run context
	// does not abort a write in progress.
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	if t.kind == triggerFullSync {
		e.fullSyncInFlight.Store(true)
		defer e.fullSyncInFlight.Store(false)

		items, _, err := e.opts.Store.List(ctx, e.opts.Namespace)
		if err != nil {
			e.retryLater(t, err)
			return
		}
		removed := e.index.ReplaceAll(items)
		if len(removed) > 0 {
			logging.Info("Engine", "Full sync removed %d stale rules from index", len(removed))
		}
	}

	stats, err := e.cycle(ctx)
	if err != nil {
		e.retryLater(t, err)
		return
	}

	if t.kind == triggerFullSync {
		e.sync.SetLastFullSync(time.Now())
	}

	e.statsMu.Lock()
	e.lastStats = stats
	e.statsMu.Unlock()
}

// retryLater requeues a failed trigger with exponential backoff. The backoff
// stays below the periodic interval's reach, so a persistent failure is
// retried well before operators notice a stale artifact.
func (e *Engine) retryLater(t trigger, err error) {
	t.attempt++
	delay := e.backoff(t.attempt)
	logging.Error("Engine", err, "Cycle failed (attempt %d), retrying in %v", t.attempt, delay)
	e.queue.AddAfter(t, delay)
}

// cycle converts every indexed resource, publishes the artifact and then
// announces per-resource statuses. Statuses are only announced for a state
// the artifact actually reflects: a failed write aborts before reporting.
func (e *Engine) cycle(ctx context.Context) (CycleStats, error) {
	e.metrics.recordCycleStart()

	snapshot := e.index.Snapshot()
	canonical := make([]converter.CanonicalRule, 0, len(snapshot))
	results := make([]status.Result, 0, len(snapshot))
	failed := 0

	for _, rule := range snapshot {
		id := index.IdentityOf(rule)

		// A generated uuid may not have reached the status yet (dropped
		// write); the index remembers it so the rule keeps the same uuid.
		if rule.Spec.UUID == "" && rule.Status.RuleUUID == "" {
			rule.Status.RuleUUID = e.index.RuleUUID(id)
		}

		cr, err := converter.Convert(rule)
		if err != nil {
			failed++
			msg := fmt.Sprintf("Failed to process rule: %v", err)
			logging.Warn("Engine", "Rejecting rule %s: %v", id, err)
			e.index.SetOutcome(id, ironicv1.StateError, msg)
			results = append(results, status.Result{
				Namespace: id.Namespace,
				Name:      id.Name,
				State:     ironicv1.StateError,
				Message:   msg,
			})
			continue
		}

		canonical = append(canonical, *cr)
		e.index.SetRuleUUID(id, cr.UUID)
		e.index.SetOutcome(id, ironicv1.StateActive, msgSynced)
		results = append(results, status.Result{
			Namespace: id.Namespace,
			Name:      id.Name,
			State:     ironicv1.StateActive,
			Message:   msgSynced,
			RuleUUID:  cr.UUID,
		})
	}

	wrote, err := e.opts.Writer.Write(canonical)
	if err != nil {
		e.metrics.recordCycleFailure()
		return CycleStats{}, fmt.Errorf("failed to write rules file: %w", err)
	}
	e.metrics.recordArtifact(wrote)
	if wrote {
		logging.Info("Engine", "Published %d rules to %s (%d rejected)",
			len(canonical), e.opts.Writer.Path(), failed)
	}

	if e.opts.Reporter != nil {
		dropped := e.opts.Reporter.Report(ctx, results)
		e.metrics.recordStatusDrops(dropped)
	}

	e.metrics.recordCycleSuccess()
	return CycleStats{Written: len(canonical), Errors: failed}, nil
}

// backoff returns the delay for the given attempt, doubling from
// InitialBackoff and capped at MaxBackoff.
func (e *Engine) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := e.opts.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= e.opts.MaxBackoff {
			return e.opts.MaxBackoff
		}
	}
	if delay > e.opts.MaxBackoff {
		delay = e.opts.MaxBackoff
	}
	return delay
}
