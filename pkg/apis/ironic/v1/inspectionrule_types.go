package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// Rule priority bounds. Rules outside this range are rejected by the
// controller and reported through the status subresource.
const (
	MinPriority = 0
	MaxPriority = 9999
)

// PhaseMain is the only inspection phase currently supported by the
// conductor. It is also the default when the phase field is omitted.
const PhaseMain = "main"

// RuleCondition is a single condition checked against inspection data.
//
// The op field names a condition operator, optionally prefixed with "!" to
// negate it. Args carries the operator arguments verbatim (a list or a
// mapping, depending on the operator); the controller validates the operator
// name but never evaluates the condition.
type RuleCondition struct {
	// Op is the condition operator name, e.g. "eq" or "!is-empty".
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Op string `json:"op" yaml:"op"`

	// Args are the operator arguments, passed through unmodified.
	// +kubebuilder:pruning:PreserveUnknownFields
	Args *runtime.RawExtension `json:"args,omitempty" yaml:"args,omitempty"`

	// Loop makes the condition apply once per item of the given list or
	// interpolated reference.
	// +kubebuilder:pruning:PreserveUnknownFields
	Loop *runtime.RawExtension `json:"loop,omitempty" yaml:"loop,omitempty"`

	// Multiple selects how per-item results are combined when Loop is set.
	// +kubebuilder:validation:Enum=any;all;first;last
	Multiple string `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

// RuleAction is a single action applied when all conditions of a rule hold.
type RuleAction struct {
	// Op is the action operator name, e.g. "set-attribute".
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	Op string `json:"op" yaml:"op"`

	// Args are the operator arguments, passed through unmodified.
	// +kubebuilder:pruning:PreserveUnknownFields
	Args *runtime.RawExtension `json:"args,omitempty" yaml:"args,omitempty"`

	// Loop makes the action apply once per item of the given list or
	// interpolated reference.
	// +kubebuilder:pruning:PreserveUnknownFields
	Loop *runtime.RawExtension `json:"loop,omitempty" yaml:"loop,omitempty"`
}

// InspectionRuleSpec defines the desired state of InspectionRule
type InspectionRuleSpec struct {
	// UUID identifies the rule in the combined rules file. When omitted the
	// controller generates one and persists it in the status subresource.
	// +kubebuilder:validation:Pattern="^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$"
	UUID string `json:"uuid,omitempty" yaml:"uuid,omitempty"`

	// Description provides a human-readable description of the rule.
	// +kubebuilder:validation:MaxLength=1000
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Priority orders rules in the combined file; higher runs first.
	// +kubebuilder:default=0
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:validation:Maximum=9999
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Phase is the inspection phase the rule runs in.
	// +kubebuilder:default=main
	// +kubebuilder:validation:Enum=main
	Phase string `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Sensitive marks the rule as containing sensitive data.
	// +kubebuilder:default=false
	Sensitive bool `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`

	// Scope restricts the rule to nodes carrying a matching scope value.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`

	// Conditions are checked in order; all must hold for the actions to run.
	Conditions []RuleCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// Actions are applied in order when the conditions hold.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinItems=1
	Actions []RuleAction `json:"actions" yaml:"actions"`
}

// Status states reported by the controller.
const (
	StateActive  = "Active"
	StateError   = "Error"
	StatePending = "Pending"
)

// InspectionRuleStatus defines the observed state of InspectionRule
type InspectionRuleStatus struct {
	// State reports the last synchronization outcome.
	// +kubebuilder:validation:Enum=Active;Error;Pending
	State string `json:"state,omitempty" yaml:"state,omitempty"`

	// LastSyncTime is when the rule was last processed by the controller.
	LastSyncTime *metav1.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`

	// Message is a human-readable description of the last outcome.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// RuleUUID is the UUID used for this rule in the combined rules file.
	// It records generated UUIDs so they survive controller restarts.
	RuleUUID string `json:"ruleUUID,omitempty" yaml:"ruleUUID,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=irule
// +kubebuilder:printcolumn:name="Priority",type="integer",JSONPath=".spec.priority"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".spec.phase"
// +kubebuilder:printcolumn:name="State",type="string",JSONPath=".status.state"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// InspectionRule is the Schema for the inspectionrules API
type InspectionRule struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   InspectionRuleSpec   `json:"spec,omitempty"`
	Status InspectionRuleStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// InspectionRuleList contains a list of InspectionRule
type InspectionRuleList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []InspectionRule `json:"items"`
}

func init() {
	SchemeBuilder.Register(&InspectionRule{}, &InspectionRuleList{})
}
