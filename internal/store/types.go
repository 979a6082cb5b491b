// Package store defines the resource store protocol the controller consumes
// and implements it against the Kubernetes API.
package store

import (
	"context"
	"errors"

	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

// EventType classifies a watch event.
type EventType string

const (
	// EventAdded indicates a new resource appeared.
	EventAdded EventType = "ADDED"

	// EventModified indicates an existing resource changed.
	EventModified EventType = "MODIFIED"

	// EventDeleted indicates a resource was removed.
	EventDeleted EventType = "DELETED"

	// EventBookmark carries only a cursor advance, no resource change.
	EventBookmark EventType = "BOOKMARK"
)

// Event is one entry of the store's change stream.
type Event struct {
	// Type classifies the change.
	Type EventType

	// Rule is the affected resource. Nil for bookmark events.
	Rule *ironicv1.InspectionRule

	// Cursor is the stream position after this event.
	Cursor string
}

// ErrCursorExpired reports that the watch cursor is too old to resume from
// and a full relist is required.
var ErrCursorExpired = errors.New("watch cursor expired")

// RuleStore is the protocol for reaching the rule resource store.
type RuleStore interface {
	// List fetches all InspectionRules in the namespace (all namespaces
	// when empty) together with the cursor to watch from.
	List(ctx context.Context, namespace string) ([]ironicv1.InspectionRule, string, error)

	// Watch opens a change stream from cursor. The returned session is the
	// acquired view of the subscription: its event channel is live until
	// the stream ends, and Stop releases it on every exit path.
	Watch(ctx context.Context, namespace, cursor string) (WatchSession, error)

	// Get fetches the current version of one rule.
	Get(ctx context.Context, namespace, name string) (*ironicv1.InspectionRule, error)

	// UpdateStatus writes rule's status using optimistic concurrency: the
	// write is rejected with a conflict error when rule's version token is
	// stale. Use k8s.io/apimachinery apierrors.IsConflict to classify.
	UpdateStatus(ctx context.Context, rule *ironicv1.InspectionRule) error

	// CreateEvent records an event against the rule for operators watching
	// the resource, e.g. a validation failure.
	CreateEvent(ctx context.Context, rule *ironicv1.InspectionRule, reason, message, eventType string) error
}

// WatchSession is an open subscription to the store's change stream.
//
// Sessions exist only in the acquired state: Watch is the single entry
// point that establishes one, and a session obtained from it always has a
// live event channel. When the channel closes, Err explains why; Stop is
// safe to call at any time, on every exit path, including after the stream
// already ended.
type WatchSession interface {
	// Events returns the stream. The channel closes when the stream ends.
	Events() <-chan Event

	// Err returns the reason the stream ended: ErrCursorExpired when the
	// cursor was invalidated, another error for transport failures, or nil
	// after a clean Stop.
	Err() error

	// Stop releases the subscription and closes the event channel.
	Stop()
}
