package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"rulesync/internal/store"
	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

// stubStore replaces the store constructor for the duration of a test and
// shortens the retry delays.
func stubStore(t *testing.T, fn func(namespace string) (store.RuleStore, error)) {
	t.Helper()

	origStore, origDelay := newStore, retryDelay
	newStore = fn
	retryDelay = time.Millisecond
	t.Cleanup(func() {
		newStore = origStore
		retryDelay = origDelay
	})
}

func TestConnectStoreRetriesUntilSuccess(t *testing.T) {
	fake := store.NewFakeStore()
	calls := 0
	stubStore(t, func(namespace string) (store.RuleStore, error) {
		calls++
		if calls < 10 {
			return nil, errors.New("connection refused")
		}
		return fake, nil
	})

	// Unbounded: construction failures must never surface as an error.
	s, err := connectStore(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Expected connect to succeed eventually, got %v", err)
	}
	if s != store.RuleStore(fake) {
		t.Error("Expected the constructed store to be returned")
	}
	if calls != 10 {
		t.Errorf("Expected 10 attempts, got %d", calls)
	}
}

func TestConnectStoreBoundedBudget(t *testing.T) {
	calls := 0
	stubStore(t, func(namespace string) (store.RuleStore, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	_, err := connectStore(context.Background(), "", 3)
	if err == nil {
		t.Fatal("Expected an error after the retry budget")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestConnectStoreStopsOnContextCancel(t *testing.T) {
	stubStore(t, func(namespace string) (store.RuleStore, error) {
		return nil, errors.New("connection refused")
	})
	// A long delay so only cancellation can end the wait.
	retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := connectStore(ctx, "", 0)
		result <- err
	}()

	cancel()
	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connectStore did not return after cancellation")
	}
}

func TestSyncCommandRetriesTransientListFailure(t *testing.T) {
	fake := store.NewFakeStore()
	fake.Add(&ironicv1.InspectionRule{
		ObjectMeta: metav1.ObjectMeta{Namespace: "ironic", Name: "bmc-defaults"},
		Spec: ironicv1.InspectionRuleSpec{
			Priority: 100,
			Actions:  []ironicv1.RuleAction{{Op: "set-attribute"}},
		},
	})
	// The first listing fails; sync must retry within its budget.
	fake.ListErrs = []error{errors.New("connection refused")}
	stubStore(t, func(namespace string) (store.RuleStore, error) {
		return fake, nil
	})

	out := filepath.Join(t.TempDir(), "inspection_rules.yaml")
	rootCmd.SetArgs([]string{"sync", "--output-path", out})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Expected sync to succeed after retry, got %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected the rules file to be written: %v", err)
	}
	if !strings.Contains(string(data), "set-attribute") {
		t.Errorf("Unexpected rules file content: %s", data)
	}
}
