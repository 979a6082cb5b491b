// Package status writes per-resource synchronization outcomes back to the
// resource store.
//
// Status writes run after the artifact is published and never gate it; a
// dropped status write is corrected by the next reconcile cycle.
package status

import (
	"context"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"golang.org/x/sync/errgroup"

	"rulesync/internal/store"
	ironicv1 "rulesync/pkg/apis/ironic/v1"
	"rulesync/pkg/logging"
)

// Result is the sync outcome of one resource in a reconcile cycle.
type Result struct {
	Namespace string
	Name      string

	// State is one of the InspectionRule status states.
	State string

	// Message is the human-readable outcome description.
	Message string

	// RuleUUID persists the uuid used in the combined rules file, so a
	// generated uuid survives controller restarts. Empty for failures.
	RuleUUID string
}

// Reporter fans status writes out to the store with bounded parallelism
// and bounded optimistic-concurrency retries.
type Reporter struct {
	store      store.RuleStore
	workers    int
	maxRetries int
}

// NewReporter creates a reporter. workers bounds concurrent writes,
// maxRetries bounds rereads after a version conflict.
func NewReporter(s store.RuleStore, workers, maxRetries int) *Reporter {
	if workers <= 0 {
		workers = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Reporter{
		store:      s,
		workers:    workers,
		maxRetries: maxRetries,
	}
}

// Report writes all results, returning the number of dropped updates.
// Failures are logged, never returned: status is best-effort by contract.
func (r *Reporter) Report(ctx context.Context, results []Result) int {
	var g errgroup.Group
	g.SetLimit(r.workers)

	dropped := make(chan struct{}, len(results))
	for _, res := range results {
		g.Go(func() error {
			if !r.report(ctx, res) {
				dropped <- struct{}{}
			}
			return nil
		})
	}
	g.Wait()
	close(dropped)
	return len(dropped)
}

// report writes one result with the read-mutate-write-retry protocol.
func (r *Reporter) report(ctx context.Context, res Result) bool {
	for attempt := 0; ; attempt++ {
		rule, err := r.store.Get(ctx, res.Namespace, res.Name)
		if apierrors.IsNotFound(err) {
			// Deleted since the cycle snapshot; nothing to report.
			logging.Debug("StatusReporter", "Rule %s/%s gone, skipping status update", res.Namespace, res.Name)
			return true
		}
		if err != nil {
			logging.Warn("StatusReporter", "Failed to read %s/%s for status update: %v", res.Namespace, res.Name, err)
			return false
		}

		// A failed conversion carries no uuid; keep the persisted one so the
		// rule gets the same uuid back once it validates again.
		ruleUUID := res.RuleUUID
		if ruleUUID == "" {
			ruleUUID = rule.Status.RuleUUID
		}

		// An unchanged outcome is not rewritten. Every status update emits a
		// MODIFIED watch event, so rewriting identical outcomes each cycle
		// would keep re-triggering the reconcile loop.
		if rule.Status.State == res.State &&
			rule.Status.Message == res.Message &&
			rule.Status.RuleUUID == ruleUUID {
			return true
		}

		now := metav1.NewTime(time.Now())
		rule.Status = ironicv1.InspectionRuleStatus{
			State:        res.State,
			LastSyncTime: &now,
			Message:      res.Message,
			RuleUUID:     ruleUUID,
		}

		err = r.store.UpdateStatus(ctx, rule)
		if err == nil {
			if res.State == ironicv1.StateError {
				r.emitWarning(ctx, rule, res.Message)
			}
			return true
		}
		if !apierrors.IsConflict(err) {
			logging.Warn("StatusReporter", "Failed to update status of %s/%s: %v", res.Namespace, res.Name, err)
			return false
		}
		if attempt >= r.maxRetries {
			// Dropped for this cycle; the next reconcile corrects it.
			logging.Warn("StatusReporter", "Dropping status update for %s/%s after %d conflicts", res.Namespace, res.Name, attempt+1)
			return false
		}
		logging.Debug("StatusReporter", "Conflict updating status of %s/%s, rereading", res.Namespace, res.Name)
	}
}

func (r *Reporter) emitWarning(ctx context.Context, rule *ironicv1.InspectionRule, message string) {
	if err := r.store.CreateEvent(ctx, rule, "ValidationFailed", message, "Warning"); err != nil {
		logging.Debug("StatusReporter", "Failed to create event for %s/%s: %v", rule.Namespace, rule.Name, err)
	}
}
