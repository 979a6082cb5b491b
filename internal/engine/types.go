package engine

import (
	"sync"
	"time"
)

// State describes the engine lifecycle.
type State string

const (
	StateInit         State = "INIT"
	StateListing      State = "LISTING"
	StateWatching     State = "WATCHING"
	StateRelisting    State = "RELISTING"
	StateShuttingDown State = "SHUTTING_DOWN"
)

// triggerKind identifies a class of work. Triggers of the same kind coalesce
// in the queue.
type triggerKind string

const (
	// triggerReconcile materializes the current index into the artifact.
	triggerReconcile triggerKind = "Reconcile"

	// triggerFullSync relists the authoritative store before materializing,
	// removing entries for resources deleted while events were missed.
	triggerFullSync triggerKind = "FullSync"
)

type trigger struct {
	kind    triggerKind
	reason  string
	attempt int
}

// syncState tracks the watch cursor and full-sync bookkeeping shared between
// the watch consumer, the scheduler and the drain worker.
type syncState struct {
	mu           sync.Mutex
	cursor       string
	lastFullSync time.Time
}

func (s *syncState) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *syncState) SetCursor(cursor string) {
	if cursor == "" {
		return
	}
	s.mu.Lock()
	s.cursor = cursor
	s.mu.Unlock()
}

// Invalidate clears the cursor, forcing the next watch attempt to relist.
func (s *syncState) Invalidate() {
	s.mu.Lock()
	s.cursor = ""
	s.mu.Unlock()
}

func (s *syncState) LastFullSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFullSync
}

func (s *syncState) SetLastFullSync(t time.Time) {
	s.mu.Lock()
	s.lastFullSync = t
	s.mu.Unlock()
}
