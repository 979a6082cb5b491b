package status

import (
	"context"
	"testing"

	"rulesync/internal/store"
	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

func newRule(name string) *ironicv1.InspectionRule {
	r := &ironicv1.InspectionRule{}
	r.Namespace = "default"
	r.Name = name
	r.Spec.Actions = []ironicv1.RuleAction{{Op: "log"}}
	return r
}

func TestReporter_WritesStatus(t *testing.T) {
	fake := store.NewFakeStore()
	fake.Add(newRule("a"))

	r := NewReporter(fake, 2, 3)
	dropped := r.Report(context.Background(), []Result{
		{Namespace: "default", Name: "a", State: ironicv1.StateActive, Message: "Rule synchronized successfully", RuleUUID: "11111111-0000-0000-0000-000000000000"},
	})
	if dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}

	status, ok := fake.StatusOf("default", "a")
	if !ok {
		t.Fatal("rule disappeared")
	}
	if status.State != ironicv1.StateActive {
		t.Errorf("state = %q, want Active", status.State)
	}
	if status.Message == "" {
		t.Error("expected a non-empty message")
	}
	if status.LastSyncTime == nil || status.LastSyncTime.IsZero() {
		t.Error("expected a fresh lastSyncTime")
	}
	if status.RuleUUID != "11111111-0000-0000-0000-000000000000" {
		t.Errorf("ruleUUID = %q, want persisted uuid", status.RuleUUID)
	}
}

func TestReporter_ErrorStateEmitsWarningEvent(t *testing.T) {
	fake := store.NewFakeStore()
	fake.Add(newRule("bad"))

	r := NewReporter(fake, 1, 0)
	r.Report(context.Background(), []Result{
		{Namespace: "default", Name: "bad", State: ironicv1.StateError, Message: "at least one action is required"},
	})

	status, _ := fake.StatusOf("default", "bad")
	if status.State != ironicv1.StateError {
		t.Errorf("state = %q, want Error", status.State)
	}
	if status.Message == "" {
		t.Error("expected a non-empty error message")
	}

	if len(fake.Recorded) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(fake.Recorded))
	}
	evt := fake.Recorded[0]
	if evt.Reason != "ValidationFailed" || evt.Type != "Warning" || evt.Name != "bad" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestReporter_SkipsUnchangedStatus(t *testing.T) {
	fake := store.NewFakeStore()
	fake.Add(newRule("a"))

	r := NewReporter(fake, 1, 0)
	res := Result{Namespace: "default", Name: "a", State: ironicv1.StateActive, Message: "ok", RuleUUID: "11111111-0000-0000-0000-000000000000"}
	r.Report(context.Background(), []Result{res})

	after, err := fake.Get(context.Background(), "default", "a")
	if err != nil {
		t.Fatal(err)
	}

	// The same outcome again must not touch the resource, or every cycle
	// would trigger a MODIFIED watch event.
	r.Report(context.Background(), []Result{res})
	again, err := fake.Get(context.Background(), "default", "a")
	if err != nil {
		t.Fatal(err)
	}
	if again.ResourceVersion != after.ResourceVersion {
		t.Error("an unchanged outcome must not rewrite the status")
	}
}

func TestReporter_ErrorStateKeepsPersistedUUID(t *testing.T) {
	fake := store.NewFakeStore()
	fake.Add(newRule("a"))

	r := NewReporter(fake, 1, 0)
	r.Report(context.Background(), []Result{
		{Namespace: "default", Name: "a", State: ironicv1.StateActive, Message: "ok", RuleUUID: "11111111-0000-0000-0000-000000000000"},
	})

	// The rule turns invalid; its failure result carries no uuid.
	r.Report(context.Background(), []Result{
		{Namespace: "default", Name: "a", State: ironicv1.StateError, Message: "at least one action is required"},
	})

	status, _ := fake.StatusOf("default", "a")
	if status.State != ironicv1.StateError {
		t.Errorf("state = %q, want Error", status.State)
	}
	if status.RuleUUID != "11111111-0000-0000-0000-000000000000" {
		t.Errorf("ruleUUID = %q, want the previously persisted uuid", status.RuleUUID)
	}
}

func TestReporter_RetriesConflictThenSucceeds(t *testing.T) {
	fake := store.NewFakeStore()
	fake.Add(newRule("a"))
	fake.ConflictsFor["default/a"] = 2

	r := NewReporter(fake, 1, 3)
	dropped := r.Report(context.Background(), []Result{
		{Namespace: "default", Name: "a", State: ironicv1.StateActive, Message: "ok"},
	})
	if dropped != 0 {
		t.Fatalf("expected retry to succeed, got %d drops", dropped)
	}

	status, _ := fake.StatusOf("default", "a")
	if status.State != ironicv1.StateActive {
		t.Errorf("state = %q, want Active after retries", status.State)
	}
}

func TestReporter_DropsAfterRetryBudget(t *testing.T) {
	fake := store.NewFakeStore()
	fake.Add(newRule("a"))
	fake.ConflictsFor["default/a"] = 10

	r := NewReporter(fake, 1, 2)
	dropped := r.Report(context.Background(), []Result{
		{Namespace: "default", Name: "a", State: ironicv1.StateActive, Message: "ok"},
	})
	if dropped != 1 {
		t.Fatalf("expected 1 drop after retry budget, got %d", dropped)
	}

	status, _ := fake.StatusOf("default", "a")
	if status.State != "" {
		t.Errorf("expected status untouched after drops, got %q", status.State)
	}
}

func TestReporter_SkipsDeletedResource(t *testing.T) {
	fake := store.NewFakeStore()

	r := NewReporter(fake, 1, 1)
	dropped := r.Report(context.Background(), []Result{
		{Namespace: "default", Name: "gone", State: ironicv1.StateActive, Message: "ok"},
	})
	if dropped != 0 {
		t.Errorf("a deleted resource is not a dropped update, got %d drops", dropped)
	}
}

func TestReporter_IndependentResourcesInParallel(t *testing.T) {
	fake := store.NewFakeStore()
	results := make([]Result, 0, 20)
	for i := 0; i < 20; i++ {
		name := string(rune('a' + i))
		fake.Add(newRule(name))
		results = append(results, Result{Namespace: "default", Name: name, State: ironicv1.StateActive, Message: "ok"})
	}

	r := NewReporter(fake, 4, 1)
	if dropped := r.Report(context.Background(), results); dropped != 0 {
		t.Fatalf("expected all writes to land, got %d drops", dropped)
	}
	for _, res := range results {
		status, ok := fake.StatusOf(res.Namespace, res.Name)
		if !ok || status.State != ironicv1.StateActive {
			t.Errorf("rule %s missing Active status", res.Name)
		}
	}
}
