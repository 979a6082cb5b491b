package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"

	"rulesync/internal/converter"
	"rulesync/internal/status"
	"rulesync/internal/store"
	"rulesync/internal/writer"
	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

type harness struct {
	store  *store.FakeStore
	engine *Engine
	path   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	fake := store.NewFakeStore()
	path := filepath.Join(t.TempDir(), "inspection_rules.yaml")

	eng := New(Options{
		Store:           fake,
		Writer:          writer.New(path),
		Reporter:        status.NewReporter(fake, 2, 3),
		Namespace:       "ironic",
		SyncInterval:    200 * time.Millisecond,
		LivenessTimeout: 10 * time.Second,
		InitialBackoff:  10 * time.Millisecond,
	})

	return &harness{store: fake, engine: eng, path: path}
}

func (h *harness) artifact(t *testing.T) []converter.CanonicalRule {
	t.Helper()

	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var rules []converter.CanonicalRule
	require.NoError(t, yaml.Unmarshal(data, &rules))
	return rules
}

// artifactCount is safe to call from Eventually closures: -1 until the file
// exists and parses.
func (h *harness) artifactCount() int {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return -1
	}
	var rules []converter.CanonicalRule
	if yaml.Unmarshal(data, &rules) != nil {
		return -1
	}
	return len(rules)
}

func rawJSON(s string) *runtime.RawExtension {
	return &runtime.RawExtension{Raw: []byte(s)}
}

func testRule(name string, priority int) *ironicv1.InspectionRule {
	return &ironicv1.InspectionRule{
		ObjectMeta: metav1.ObjectMeta{Namespace: "ironic", Name: name},
		Spec: ironicv1.InspectionRuleSpec{
			Priority: priority,
			Phase:    "main",
			Conditions: []ironicv1.RuleCondition{
				{Op: "!is-empty", Args: rawJSON(`{"value": "{node.driver_info}"}`)},
			},
			Actions: []ironicv1.RuleAction{
				{Op: "set-attribute", Args: rawJSON(`{"path": "/driver", "value": "ipmi"}`)},
			},
		},
	}
}

func TestRunOncePublishesRule(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("bmc-defaults", 100))

	stats, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleStats{Written: 1, Errors: 0}, stats)

	rules := h.artifact(t)
	require.Len(t, rules, 1)
	assert.Equal(t, 100, rules[0].Priority)
	assert.Equal(t, "main", rules[0].Phase)
	_, err = uuid.Parse(rules[0].UUID)
	assert.NoError(t, err, "generated uuid must be valid")

	st, ok := h.store.StatusOf("ironic", "bmc-defaults")
	require.True(t, ok)
	assert.Equal(t, ironicv1.StateActive, st.State)
	assert.Equal(t, rules[0].UUID, st.RuleUUID)
	require.NotNil(t, st.LastSyncTime)
}

func TestRunOnceEmptyStore(t *testing.T) {
	h := newHarness(t)

	stats, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)

	// An empty rule set still publishes, so the conductor sees an explicit
	// empty list rather than a stale file.
	assert.Empty(t, h.artifact(t))
	_, statErr := os.Stat(h.path)
	assert.NoError(t, statErr)
}

func TestRunOnceGeneratedUUIDStable(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("bmc-defaults", 100))

	_, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	first := h.artifact(t)[0].UUID

	// The uuid was persisted into the status, so the next cycle reuses it.
	_, err = h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, h.artifact(t)[0].UUID)
}

func TestRunOnceUUIDStableWhenStatusDropped(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("bmc-defaults", 100))

	// Every status write conflicts, so the generated uuid never reaches the
	// status. The index must still hand the same uuid to the next cycle.
	h.store.ConflictsFor["ironic/bmc-defaults"] = 1 << 20

	_, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	first := h.artifact(t)[0].UUID

	_, err = h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, h.artifact(t)[0].UUID)

	st, _ := h.store.StatusOf("ironic", "bmc-defaults")
	assert.Empty(t, st.RuleUUID, "status writes should all have been dropped")
}

func TestRunOnceInvalidRuleIsolated(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("good", 100))

	bad := testRule("bad", 50)
	bad.Spec.Actions[0].Op = "reboot"
	h.store.Add(bad)

	stats, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleStats{Written: 1, Errors: 1}, stats)

	rules := h.artifact(t)
	require.Len(t, rules, 1)
	assert.Equal(t, 100, rules[0].Priority)

	st, ok := h.store.StatusOf("ironic", "bad")
	require.True(t, ok)
	assert.Equal(t, ironicv1.StateError, st.State)
	assert.Contains(t, st.Message, "unknown operator")

	require.Len(t, h.store.Recorded, 1)
	assert.Equal(t, "Warning", h.store.Recorded[0].Type)
	assert.Equal(t, "bad", h.store.Recorded[0].Name)
}

func TestRunOnceDeletionShrinksArtifact(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("bmc-defaults", 100))

	_, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, h.artifact(t), 1)

	h.store.Remove("ironic", "bmc-defaults")

	stats, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Written)
	assert.Empty(t, h.artifact(t))
}

func TestRunWatchEventTriggersReconcile(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	h.store.Add(testRule("bmc-defaults", 100))
	require.Eventually(t, func() bool {
		return h.artifactCount() == 1
	}, 5*time.Second, 20*time.Millisecond, "rule never reached the artifact")

	h.store.Remove("ironic", "bmc-defaults")
	require.Eventually(t, func() bool {
		return h.artifactCount() == 0
	}, 5*time.Second, 20*time.Millisecond, "deletion never reached the artifact")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, StateShuttingDown, h.engine.State())
}

func TestRunCursorExpiredRelists(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("bmc-defaults", 100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.artifactCount() == 1
	}, 5*time.Second, 20*time.Millisecond)
	before := h.store.ListCalls()

	h.store.Invalidate()
	h.store.Add(testRule("post-expiry", 50))

	require.Eventually(t, func() bool {
		return h.artifactCount() == 2
	}, 5*time.Second, 20*time.Millisecond, "engine never recovered from cursor expiry")
	assert.Greater(t, h.store.ListCalls(), before)

	cancel()
	<-done
}

func TestRunPeriodicFullSyncRemovesStale(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("bmc-defaults", 100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.artifactCount() == 1
	}, 5*time.Second, 20*time.Millisecond)

	// Deleted without a watch event: only the periodic full sync can see it.
	h.store.RemoveSilently("ironic", "bmc-defaults")

	require.Eventually(t, func() bool {
		return h.artifactCount() == 0
	}, 5*time.Second, 20*time.Millisecond, "full sync never removed the stale rule")

	cancel()
	<-done
}

func TestRunSurvivesListFailures(t *testing.T) {
	h := newHarness(t)
	h.store.ListErrs = []error{assert.AnError, assert.AnError}
	h.store.Add(testRule("bmc-defaults", 100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.artifactCount() == 1
	}, 5*time.Second, 20*time.Millisecond, "engine never recovered from list failures")

	cancel()
	<-done
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	e := New(Options{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second})

	assert.Equal(t, time.Second, e.backoff(1))
	assert.Equal(t, 2*time.Second, e.backoff(2))
	assert.Equal(t, 4*time.Second, e.backoff(3))
	assert.Equal(t, 8*time.Second, e.backoff(4))
	assert.Equal(t, 10*time.Second, e.backoff(5))
	assert.Equal(t, 10*time.Second, e.backoff(20))
}

func TestMetricsTrackCycles(t *testing.T) {
	h := newHarness(t)
	h.store.Add(testRule("bmc-defaults", 100))

	_, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	snap := h.engine.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.CyclesStarted)
	assert.Equal(t, int64(2), snap.CyclesSucceeded)
	assert.Equal(t, int64(1), snap.ArtifactWrites, "second identical cycle must skip the write")
	assert.Equal(t, int64(1), snap.ArtifactSkips)
	assert.False(t, snap.LastSuccessAt.IsZero())
}
