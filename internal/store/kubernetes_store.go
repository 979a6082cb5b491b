package store

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

// kubernetesStore implements RuleStore using the Kubernetes API and
// controller-runtime.
type kubernetesStore struct {
	client client.WithWatch
	scheme *runtime.Scheme
}

// GetRestConfig resolves the Kubernetes REST configuration, trying
// in-cluster config first and falling back to kubeconfig.
func GetRestConfig() (*rest.Config, error) {
	return ctrl.GetConfig()
}

// NewKubernetesStore creates a RuleStore backed by the Kubernetes API,
// resolving the REST configuration from the environment.
func NewKubernetesStore(namespace string) (RuleStore, error) {
	config, err := GetRestConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get Kubernetes config: %w", err)
	}
	return NewKubernetesStoreWithConfig(config, namespace)
}

// NewKubernetesStoreWithConfig creates a RuleStore from an explicit REST
// configuration and verifies the InspectionRule CRD is available.
func NewKubernetesStoreWithConfig(config *rest.Config, namespace string) (RuleStore, error) {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(ironicv1.AddToScheme(scheme))

	k8sClient, err := client.NewWithWatch(config, client.Options{
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	store := &kubernetesStore{
		client: k8sClient,
		scheme: scheme,
	}

	// A list that fails here means the CRD is not installed or the store is
	// unreachable; callers decide whether to retry.
	if _, _, err := store.List(context.Background(), namespace); err != nil {
		return nil, fmt.Errorf("InspectionRule CRD not available: %w", err)
	}

	return store, nil
}

// List fetches all InspectionRules plus the cursor to watch from.
func (s *kubernetesStore) List(ctx context.Context, namespace string) ([]ironicv1.InspectionRule, string, error) {
	ruleList := &ironicv1.InspectionRuleList{}
	listOpts := []client.ListOption{}
	if namespace != "" {
		listOpts = append(listOpts, client.InNamespace(namespace))
	}

	if err := s.client.List(ctx, ruleList, listOpts...); err != nil {
		return nil, "", fmt.Errorf("failed to list InspectionRules: %w", err)
	}

	return ruleList.Items, ruleList.ResourceVersion, nil
}

// Watch opens a change stream from cursor.
func (s *kubernetesStore) Watch(ctx context.Context, namespace, cursor string) (WatchSession, error) {
	opts := &client.ListOptions{
		Namespace: namespace,
		Raw: &metav1.ListOptions{
			ResourceVersion:     cursor,
			AllowWatchBookmarks: true,
		},
	}

	w, err := s.client.Watch(ctx, &ironicv1.InspectionRuleList{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to watch InspectionRules: %w", err)
	}

	return newWatchSession(w), nil
}

// Get fetches the current version of one rule.
func (s *kubernetesStore) Get(ctx context.Context, namespace, name string) (*ironicv1.InspectionRule, error) {
	rule := &ironicv1.InspectionRule{}
	key := client.ObjectKey{Name: name, Namespace: namespace}

	if err := s.client.Get(ctx, key, rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// UpdateStatus writes the status subresource of rule. The Kubernetes API
// applies optimistic concurrency from rule's resourceVersion.
func (s *kubernetesStore) UpdateStatus(ctx context.Context, rule *ironicv1.InspectionRule) error {
	return s.client.Status().Update(ctx, rule)
}

// CreateEvent creates a Kubernetes Event for the given rule.
func (s *kubernetesStore) CreateEvent(ctx context.Context, rule *ironicv1.InspectionRule, reason, message, eventType string) error {
	gvk := ironicv1.GroupVersion.WithKind("InspectionRule")

	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: rule.Name + "-",
			Namespace:    rule.Namespace,
		},
		InvolvedObject: corev1.ObjectReference{
			APIVersion: gvk.GroupVersion().String(),
			Kind:       gvk.Kind,
			Name:       rule.Name,
			Namespace:  rule.Namespace,
			UID:        rule.UID,
		},
		Reason:         reason,
		Message:        message,
		Type:           eventType,
		Source:         corev1.EventSource{Component: "rulesync"},
		FirstTimestamp: metav1.NewTime(time.Now()),
		LastTimestamp:  metav1.NewTime(time.Now()),
		Count:          1,
	}

	if err := s.client.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create Kubernetes Event for %s/%s: %w", rule.Namespace, rule.Name, err)
	}

	return nil
}
