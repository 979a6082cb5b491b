package store

import (
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/watch"

	ironicv1 "rulesync/pkg/apis/ironic/v1"
	"rulesync/pkg/logging"
)

// watchSession adapts a client-go watch.Interface to the WatchSession
// protocol. Construction through newWatchSession is the only way to obtain
// one, which guarantees a started pump and a channel that always closes.
type watchSession struct {
	w      watch.Interface
	events chan Event
	done   chan struct{}

	mu       sync.Mutex
	err      error
	stopOnce sync.Once
}

func newWatchSession(w watch.Interface) *watchSession {
	s := &watchSession{
		w:      w,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// pump translates raw watch events into store events until the underlying
// stream ends, then closes the session channel.
func (s *watchSession) pump() {
	defer close(s.events)

	for evt := range s.w.ResultChan() {
		switch evt.Type {
		case watch.Added, watch.Modified, watch.Deleted:
			rule, ok := evt.Object.(*ironicv1.InspectionRule)
			if !ok {
				logging.Warn("WatchSession", "Dropping event with unexpected object type %T", evt.Object)
				continue
			}
			if !s.send(Event{
				Type:   mapEventType(evt.Type),
				Rule:   rule,
				Cursor: rule.ResourceVersion,
			}) {
				return
			}

		case watch.Bookmark:
			accessor, err := meta.Accessor(evt.Object)
			if err != nil {
				continue
			}
			if !s.send(Event{
				Type:   EventBookmark,
				Cursor: accessor.GetResourceVersion(),
			}) {
				return
			}

		case watch.Error:
			s.setErr(classifyWatchError(evt))
			s.w.Stop()
		}
	}
}

// send delivers an event unless the session was stopped; a stopped session
// must not block the pump on a consumer that went away.
func (s *watchSession) send(evt Event) bool {
	select {
	case s.events <- evt:
		return true
	case <-s.done:
		return false
	}
}

func mapEventType(t watch.EventType) EventType {
	switch t {
	case watch.Added:
		return EventAdded
	case watch.Modified:
		return EventModified
	default:
		return EventDeleted
	}
}

// classifyWatchError distinguishes an expired cursor (410 Gone) from other
// stream failures.
func classifyWatchError(evt watch.Event) error {
	err := apierrors.FromObject(evt.Object)
	if apierrors.IsGone(err) || apierrors.IsResourceExpired(err) {
		return ErrCursorExpired
	}
	return err
}

func (s *watchSession) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Events returns the stream channel.
func (s *watchSession) Events() <-chan Event {
	return s.events
}

// Err returns the reason the stream ended, nil for a clean stop.
func (s *watchSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop releases the subscription. Safe to call more than once and after
// the stream has already ended.
func (s *watchSession) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.w.Stop()
	})
}
