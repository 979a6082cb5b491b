package engine

import (
	"context"
	"testing"
	"time"
)

func TestTriggerQueueCoalescesSameKind(t *testing.T) {
	q := newTriggerQueue()

	q.Add(trigger{kind: triggerReconcile, reason: "ADDED"})
	q.Add(trigger{kind: triggerReconcile, reason: "MODIFIED"})
	q.Add(trigger{kind: triggerFullSync, reason: "periodic"})

	if q.Len() != 2 {
		t.Fatalf("expected 2 queued triggers, got %d", q.Len())
	}

	got, ok := q.Get(context.Background())
	if !ok {
		t.Fatal("expected a trigger")
	}
	if got.kind != triggerReconcile {
		t.Fatalf("expected reconcile first, got %s", got.kind)
	}
	// The coalesced trigger carries the latest reason.
	if got.reason != "MODIFIED" {
		t.Fatalf("expected latest reason, got %q", got.reason)
	}
}

func TestTriggerQueueDirtyRequeue(t *testing.T) {
	q := newTriggerQueue()

	q.Add(trigger{kind: triggerReconcile})
	got, _ := q.Get(context.Background())

	// Re-added while processing: must run once more after Done.
	q.Add(trigger{kind: triggerReconcile, reason: "DELETED"})
	if q.Len() != 0 {
		t.Fatalf("dirty trigger must not enter the queue while processing, len=%d", q.Len())
	}

	q.Done(got)
	if q.Len() != 1 {
		t.Fatalf("expected dirty trigger requeued, len=%d", q.Len())
	}

	again, ok := q.Get(context.Background())
	if !ok || again.reason != "DELETED" {
		t.Fatalf("expected requeued trigger, got %+v ok=%v", again, ok)
	}
}

func TestTriggerQueueShutdown(t *testing.T) {
	q := newTriggerQueue()
	q.Shutdown()

	if _, ok := q.Get(context.Background()); ok {
		t.Fatal("expected Get to fail after shutdown")
	}

	q.Add(trigger{kind: triggerReconcile})
	if q.Len() != 0 {
		t.Fatal("Add after shutdown must be a no-op")
	}
}

func TestTriggerQueueGetHonorsContext(t *testing.T) {
	q := newTriggerQueue()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() {
		_, ok := q.Get(ctx)
		result <- ok
	}()

	cancel()
	select {
	case ok := <-result:
		if ok {
			t.Fatal("expected Get to fail on cancelled context")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not return after context cancellation")
	}
}

func TestDelayedTriggerQueueAddAfter(t *testing.T) {
	q := newDelayedTriggerQueue()
	defer q.Shutdown()

	q.AddAfter(trigger{kind: triggerReconcile, attempt: 2}, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected delayed trigger to arrive")
	}
	if got.attempt != 2 {
		t.Fatalf("expected attempt preserved, got %d", got.attempt)
	}
}

func TestDelayedTriggerQueueShutdownCancelsTimers(t *testing.T) {
	q := newDelayedTriggerQueue()
	q.AddAfter(trigger{kind: triggerFullSync}, 5*time.Millisecond)
	q.Shutdown()

	time.Sleep(20 * time.Millisecond)
	if q.Len() != 0 {
		t.Fatal("delayed trigger must not fire after shutdown")
	}
}
