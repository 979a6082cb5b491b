package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

var ruleResource = schema.GroupResource{Group: "ironic.openstack.org", Resource: "inspectionrules"}

// RecordedEvent is one event captured by the fake store.
type RecordedEvent struct {
	Namespace string
	Name      string
	Reason    string
	Message   string
	Type      string
}

// FakeStore is an in-memory RuleStore for tests. Mutations through Add,
// Update and Remove are delivered to open watch sessions; Invalidate ends
// every session with ErrCursorExpired to simulate a stale cursor.
type FakeStore struct {
	mu       sync.Mutex
	rules    map[string]*ironicv1.InspectionRule
	version  int
	sessions []*fakeSession

	// ListErrs is consumed one error per List call; nil entries mean
	// success. Lets tests script store-unreachable behavior.
	ListErrs []error

	// ConflictsFor injects n version conflicts for status updates of the
	// given "namespace/name" key before they succeed.
	ConflictsFor map[string]int

	// Recorded collects events emitted through CreateEvent.
	Recorded []RecordedEvent

	listCalls int
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		rules:        make(map[string]*ironicv1.InspectionRule),
		ConflictsFor: make(map[string]int),
	}
}

func key(namespace, name string) string {
	return namespace + "/" + name
}

func (f *FakeStore) nextVersion() string {
	f.version++
	return strconv.Itoa(f.version)
}

// Add inserts a rule and notifies watchers.
func (f *FakeStore) Add(rule *ironicv1.InspectionRule) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := rule.DeepCopy()
	stored.ResourceVersion = f.nextVersion()
	f.rules[key(rule.Namespace, rule.Name)] = stored
	f.broadcast(Event{Type: EventAdded, Rule: stored.DeepCopy(), Cursor: stored.ResourceVersion})
}

// Update replaces a rule's spec and notifies watchers.
func (f *FakeStore) Update(rule *ironicv1.InspectionRule) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := rule.DeepCopy()
	stored.ResourceVersion = f.nextVersion()
	f.rules[key(rule.Namespace, rule.Name)] = stored
	f.broadcast(Event{Type: EventModified, Rule: stored.DeepCopy(), Cursor: stored.ResourceVersion})
}

// Remove deletes a rule and notifies watchers.
func (f *FakeStore) Remove(namespace, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.rules[key(namespace, name)]
	if !ok {
		return
	}
	delete(f.rules, key(namespace, name))
	cursor := f.nextVersion()
	gone := stored.DeepCopy()
	gone.ResourceVersion = cursor
	f.broadcast(Event{Type: EventDeleted, Rule: gone, Cursor: cursor})
}

// RemoveSilently deletes a rule without notifying watchers, simulating a
// deletion whose event was missed.
func (f *FakeStore) RemoveSilently(namespace, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, key(namespace, name))
	f.nextVersion()
}

// Invalidate ends all open watch sessions with ErrCursorExpired.
func (f *FakeStore) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		s.end(ErrCursorExpired)
	}
	f.sessions = nil
}

func (f *FakeStore) broadcast(evt Event) {
	for _, s := range f.sessions {
		s.deliver(evt)
	}
}

// ListCalls reports how many times List was invoked.
func (f *FakeStore) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// List implements RuleStore.
func (f *FakeStore) List(ctx context.Context, namespace string) ([]ironicv1.InspectionRule, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if len(f.ListErrs) > 0 {
		err := f.ListErrs[0]
		f.ListErrs = f.ListErrs[1:]
		if err != nil {
			return nil, "", err
		}
	}

	items := make([]ironicv1.InspectionRule, 0, len(f.rules))
	for _, rule := range f.rules {
		if namespace != "" && rule.Namespace != namespace {
			continue
		}
		items = append(items, *rule.DeepCopy())
	}
	return items, strconv.Itoa(f.version), nil
}

// Watch implements RuleStore.
func (f *FakeStore) Watch(ctx context.Context, namespace, cursor string) (WatchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &fakeSession{events: make(chan Event, 64)}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// Get implements RuleStore.
func (f *FakeStore) Get(ctx context.Context, namespace, name string) (*ironicv1.InspectionRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rule, ok := f.rules[key(namespace, name)]
	if !ok {
		return nil, apierrors.NewNotFound(ruleResource, name)
	}
	return rule.DeepCopy(), nil
}

// UpdateStatus implements RuleStore with optimistic concurrency: a stale
// resource version or an injected conflict is rejected.
func (f *FakeStore) UpdateStatus(ctx context.Context, rule *ironicv1.InspectionRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := key(rule.Namespace, rule.Name)
	stored, ok := f.rules[k]
	if !ok {
		return apierrors.NewNotFound(ruleResource, rule.Name)
	}
	if n := f.ConflictsFor[k]; n > 0 {
		f.ConflictsFor[k] = n - 1
		return apierrors.NewConflict(ruleResource, rule.Name, fmt.Errorf("injected conflict"))
	}
	if rule.ResourceVersion != stored.ResourceVersion {
		return apierrors.NewConflict(ruleResource, rule.Name, fmt.Errorf("resource version mismatch"))
	}

	stored.Status = *rule.Status.DeepCopy()
	stored.ResourceVersion = f.nextVersion()
	return nil
}

// CreateEvent implements RuleStore by recording the event.
func (f *FakeStore) CreateEvent(ctx context.Context, rule *ironicv1.InspectionRule, reason, message, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Recorded = append(f.Recorded, RecordedEvent{
		Namespace: rule.Namespace,
		Name:      rule.Name,
		Reason:    reason,
		Message:   message,
		Type:      eventType,
	})
	return nil
}

// StatusOf returns the stored status for a rule.
func (f *FakeStore) StatusOf(namespace, name string) (ironicv1.InspectionRuleStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rule, ok := f.rules[key(namespace, name)]
	if !ok {
		return ironicv1.InspectionRuleStatus{}, false
	}
	return *rule.Status.DeepCopy(), true
}

type fakeSession struct {
	events  chan Event
	mu      sync.Mutex
	err     error
	stopped bool
}

func (s *fakeSession) deliver(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.events <- evt:
	default:
	}
}

func (s *fakeSession) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.err = err
	close(s.events)
}

func (s *fakeSession) Events() <-chan Event { return s.events }

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Stop() {
	s.end(nil)
}
