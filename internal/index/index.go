// Package index holds the in-memory mapping from InspectionRule identity to
// the latest observed resource plus sync bookkeeping.
//
// The index is internally locked: the watch consumer upserts entries while
// the single drain worker snapshots them. Entries are removed exactly when a
// delete event arrives or a full listing omits them.
package index

import (
	"sort"
	"sync"

	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

// Identity names one rule resource.
type Identity struct {
	Namespace string
	Name      string
}

func (id Identity) String() string {
	if id.Namespace == "" {
		return id.Name
	}
	return id.Namespace + "/" + id.Name
}

// IdentityOf extracts the identity of a resource.
func IdentityOf(rule *ironicv1.InspectionRule) Identity {
	return Identity{Namespace: rule.Namespace, Name: rule.Name}
}

// Entry is the bookkeeping attached to one resource.
type Entry struct {
	// Resource is a private deep copy of the last observed resource.
	Resource *ironicv1.InspectionRule

	// Version is the store version token of Resource.
	Version string

	// LastState and LastMessage record the most recent sync outcome.
	LastState   string
	LastMessage string

	// RuleUUID is the uuid last used for this resource in the rules file.
	// It keeps a generated uuid stable even while its status write has not
	// landed yet.
	RuleUUID string
}

// Index maps resource identity to its entry.
type Index struct {
	mu      sync.Mutex
	entries map[Identity]*Entry
}

// New creates an empty index.
func New() *Index {
	return &Index{entries: make(map[Identity]*Entry)}
}

// Upsert stores a deep copy of rule, replacing any previous entry for the
// same identity. The previous sync outcome is preserved so generated UUIDs
// and error bookkeeping survive resource updates.
func (x *Index) Upsert(rule *ironicv1.InspectionRule) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.upsertLocked(rule)
}

func (x *Index) upsertLocked(rule *ironicv1.InspectionRule) {
	id := IdentityOf(rule)
	entry, ok := x.entries[id]
	if !ok {
		entry = &Entry{}
		x.entries[id] = entry
	}
	entry.Resource = rule.DeepCopy()
	entry.Version = rule.ResourceVersion
}

// Delete removes the entry for id, reporting whether it existed.
func (x *Index) Delete(id Identity) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, ok := x.entries[id]
	delete(x.entries, id)
	return ok
}

// ReplaceAll reconciles the index against a fresh full listing. Entries not
// present in the listing are removed; listed resources are upserted. The
// existing entries serve as the diff base, so an unchanged resource keeps
// its bookkeeping and causes no churn downstream.
//
// The identities removed by the listing are returned.
func (x *Index) ReplaceAll(items []ironicv1.InspectionRule) []Identity {
	x.mu.Lock()
	defer x.mu.Unlock()

	seen := make(map[Identity]bool, len(items))
	for i := range items {
		rule := &items[i]
		id := IdentityOf(rule)
		seen[id] = true
		if existing, ok := x.entries[id]; ok && existing.Version == rule.ResourceVersion {
			continue
		}
		x.upsertLocked(rule)
	}

	var removed []Identity
	for id := range x.entries {
		if !seen[id] {
			removed = append(removed, id)
			delete(x.entries, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].String() < removed[j].String() })
	return removed
}

// SetOutcome records the sync outcome for id, ignoring identities that have
// been deleted since the cycle snapshotted them.
func (x *Index) SetOutcome(id Identity, state, message string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if entry, ok := x.entries[id]; ok {
		entry.LastState = state
		entry.LastMessage = message
	}
}

// SetRuleUUID records the uuid used for id in the rules file.
func (x *Index) SetRuleUUID(id Identity, ruleUUID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if entry, ok := x.entries[id]; ok {
		entry.RuleUUID = ruleUUID
	}
}

// RuleUUID returns the uuid last used for id, empty when unknown.
func (x *Index) RuleUUID(id Identity) string {
	x.mu.Lock()
	defer x.mu.Unlock()

	if entry, ok := x.entries[id]; ok {
		return entry.RuleUUID
	}
	return ""
}

// Snapshot returns deep copies of all current resources, ordered by
// identity so cycles see a stable iteration order.
func (x *Index) Snapshot() []*ironicv1.InspectionRule {
	x.mu.Lock()
	defer x.mu.Unlock()

	ids := make([]Identity, 0, len(x.entries))
	for id := range x.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	rules := make([]*ironicv1.InspectionRule, 0, len(ids))
	for _, id := range ids {
		rules = append(rules, x.entries[id].Resource.DeepCopy())
	}
	return rules
}

// Get returns a copy of the entry for id.
func (x *Index) Get(id Identity) (Entry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.entries[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Resource:    entry.Resource.DeepCopy(),
		Version:     entry.Version,
		LastState:   entry.LastState,
		LastMessage: entry.LastMessage,
		RuleUUID:    entry.RuleUUID,
	}, true
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}
