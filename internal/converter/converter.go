// Package converter turns InspectionRule specs into the canonical rule
// records serialized into the combined rules file.
//
// Conversion is a pure transformation: one resource in, one canonical rule
// or a ValidationError out. A failure converting one resource never affects
// any other resource.
package converter

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"

	"github.com/google/uuid"

	ironicv1 "rulesync/pkg/apis/ironic/v1"
)

// MaxDescriptionLength bounds the rule description.
const MaxDescriptionLength = 1000

// Condition is the canonical form of one rule condition.
type Condition struct {
	Op       string                `json:"op"`
	Args     *runtime.RawExtension `json:"args,omitempty"`
	Loop     *runtime.RawExtension `json:"loop,omitempty"`
	Multiple string                `json:"multiple,omitempty"`
}

// Action is the canonical form of one rule action.
type Action struct {
	Op   string                `json:"op"`
	Args *runtime.RawExtension `json:"args,omitempty"`
	Loop *runtime.RawExtension `json:"loop,omitempty"`
}

// CanonicalRule is the validated, defaulted projection of an InspectionRule
// spec. It owns its data outright; nothing is aliased back to the resource.
type CanonicalRule struct {
	UUID        string      `json:"uuid"`
	Priority    int         `json:"priority"`
	Phase       string      `json:"phase"`
	Description string      `json:"description,omitempty"`
	Sensitive   bool        `json:"sensitive,omitempty"`
	Scope       string      `json:"scope,omitempty"`
	Conditions  []Condition `json:"conditions,omitempty"`
	Actions     []Action    `json:"actions"`
}

// ValidationError describes a rule spec the conductor would reject.
// It is isolated to the offending resource and recorded in its status.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Convert validates and defaults one InspectionRule and produces its
// canonical rule record.
//
// The rule UUID is taken from the spec when present, falling back to a UUID
// previously persisted in the status, and generated otherwise. Callers
// persist the returned UUID via the status reporter so re-conversion is
// stable across restarts.
func Convert(rule *ironicv1.InspectionRule) (*CanonicalRule, error) {
	spec := rule.Spec

	if len(spec.Description) > MaxDescriptionLength {
		return nil, validationErrorf("description exceeds %d characters", MaxDescriptionLength)
	}

	if spec.Priority < ironicv1.MinPriority || spec.Priority > ironicv1.MaxPriority {
		return nil, validationErrorf("priority %d outside allowed range %d..%d",
			spec.Priority, ironicv1.MinPriority, ironicv1.MaxPriority)
	}

	phase := spec.Phase
	if phase == "" {
		phase = ironicv1.PhaseMain
	}
	if phase != ironicv1.PhaseMain {
		return nil, validationErrorf("unsupported phase %q, only %q is supported", phase, ironicv1.PhaseMain)
	}

	if len(spec.Actions) == 0 {
		return nil, validationErrorf("at least one action is required")
	}

	ruleUUID := spec.UUID
	if ruleUUID == "" {
		ruleUUID = rule.Status.RuleUUID
	}
	if ruleUUID != "" {
		if _, err := uuid.Parse(ruleUUID); err != nil {
			return nil, validationErrorf("invalid uuid %q", ruleUUID)
		}
	} else {
		ruleUUID = uuid.NewString()
	}

	canonical := &CanonicalRule{
		UUID:        ruleUUID,
		Priority:    spec.Priority,
		Phase:       phase,
		Description: spec.Description,
		Sensitive:   spec.Sensitive,
		Scope:       spec.Scope,
		Actions:     make([]Action, 0, len(spec.Actions)),
	}

	for i, cond := range spec.Conditions {
		converted, err := convertCondition(i, cond)
		if err != nil {
			return nil, err
		}
		canonical.Conditions = append(canonical.Conditions, converted)
	}

	for i, act := range spec.Actions {
		converted, err := convertAction(i, act)
		if err != nil {
			return nil, err
		}
		canonical.Actions = append(canonical.Actions, converted)
	}

	return canonical, nil
}

func convertCondition(i int, cond ironicv1.RuleCondition) (Condition, error) {
	if !IsConditionOp(cond.Op) {
		return Condition{}, validationErrorf("condition %d: unknown operator %q", i, cond.Op)
	}
	if cond.Multiple != "" {
		if cond.Loop == nil {
			return Condition{}, validationErrorf("condition %d: multiple requires loop", i)
		}
		if !IsMultipleMode(cond.Multiple) {
			return Condition{}, validationErrorf("condition %d: unknown multiple mode %q", i, cond.Multiple)
		}
	}
	if cond.Loop != nil {
		if err := checkLoopInterpolation("condition", i, cond.Loop, cond.Args); err != nil {
			return Condition{}, err
		}
	}
	return Condition{
		Op:       cond.Op,
		Args:     copyRaw(cond.Args),
		Loop:     copyRaw(cond.Loop),
		Multiple: cond.Multiple,
	}, nil
}

func convertAction(i int, act ironicv1.RuleAction) (Action, error) {
	if !IsActionOp(act.Op) {
		return Action{}, validationErrorf("action %d: unknown operator %q", i, act.Op)
	}
	if act.Loop != nil {
		if err := checkLoopInterpolation("action", i, act.Loop, act.Args); err != nil {
			return Action{}, err
		}
	}
	return Action{
		Op:   act.Op,
		Args: copyRaw(act.Args),
		Loop: copyRaw(act.Loop),
	}, nil
}

// checkLoopInterpolation syntactically validates the {...} references of a
// loop-bearing entry, both in the loop expression and in its args.
func checkLoopInterpolation(kind string, i int, loop, args *runtime.RawExtension) error {
	if loop != nil {
		if token, ok := CheckInterpolation(loop.Raw); !ok {
			return validationErrorf("%s %d: malformed interpolation reference %q in loop", kind, i, token)
		}
	}
	if args != nil {
		if token, ok := CheckInterpolation(args.Raw); !ok {
			return validationErrorf("%s %d: malformed interpolation reference %q in args", kind, i, token)
		}
	}
	return nil
}

func copyRaw(in *runtime.RawExtension) *runtime.RawExtension {
	if in == nil {
		return nil
	}
	out := new(runtime.RawExtension)
	in.DeepCopyInto(out)
	return out
}
