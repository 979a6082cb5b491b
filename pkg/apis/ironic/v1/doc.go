// Package v1 contains API Schema definitions for the ironic v1 API group.
//
// This package defines the InspectionRule Custom Resource Definition. An
// InspectionRule declares a single inspection rule for the Ironic conductor:
// an ordered list of conditions checked against inspection data and an
// ordered list of actions applied when the conditions hold. The controller
// in this repository watches these resources and materializes them into a
// combined rules file; it never evaluates conditions or actions itself.
//
// # API Group: ironic.openstack.org/v1
//
// Example:
//
//	apiVersion: ironic.openstack.org/v1
//	kind: InspectionRule
//	metadata:
//	  name: set-rack-location
//	  namespace: openstack
//	spec:
//	  priority: 100
//	  phase: main
//	  description: "Record the rack location on newly inspected nodes"
//	  conditions:
//	    - op: "!is-empty"
//	      args: ["{node.properties.rack}"]
//	  actions:
//	    - op: set-attribute
//	      args: {path: "/extra/rack", value: "{node.properties.rack}"}
//
// +kubebuilder:object:generate=true
// +groupName=ironic.openstack.org
package v1
