package converter

import (
	"regexp"
	"strings"
)

// Condition operators understood by the conductor. A leading "!" on the op
// negates the condition and is accepted for every operator.
var conditionOps = map[string]bool{
	"eq":       true,
	"lt":       true,
	"gt":       true,
	"in-net":   true,
	"matches":  true,
	"contains": true,
	"one-of":   true,
	"is-empty": true,
	"is-none":  true,
	"is-true":  true,
	"is-false": true,
}

// Action operators understood by the conductor.
var actionOps = map[string]bool{
	"fail":                  true,
	"log":                   true,
	"api-call":              true,
	"set-attribute":         true,
	"extend-attribute":      true,
	"del-attribute":         true,
	"set-capability":        true,
	"unset-capability":      true,
	"set-trait":             true,
	"unset-trait":           true,
	"set-plugin-data":       true,
	"extend-plugin-data":    true,
	"unset-plugin-data":     true,
	"set-port-attribute":    true,
	"extend-port-attribute": true,
	"del-port-attribute":    true,
}

// Loop result combination modes.
var multipleModes = map[string]bool{
	"any":   true,
	"all":   true,
	"first": true,
	"last":  true,
}

// IsConditionOp reports whether op names a known condition operator,
// ignoring an optional "!" negation prefix.
func IsConditionOp(op string) bool {
	stripped := strings.TrimPrefix(op, "!")
	if stripped == "" {
		return false
	}
	return conditionOps[stripped]
}

// IsActionOp reports whether op names a known action operator. Action
// operators do not support negation.
func IsActionOp(op string) bool {
	return actionOps[op]
}

// IsMultipleMode reports whether m is a known loop combination mode.
func IsMultipleMode(m string) bool {
	return multipleModes[m]
}

// interpolationToken matches one {...} reference. The reference roots are
// node, inventory and plugin_data fields, plus the current loop item.
var interpolationToken = regexp.MustCompile(`\{[^{}]*\}`)

var interpolationRef = regexp.MustCompile(`^\{(node|inventory|plugin_data|item)(\.[A-Za-z0-9_][A-Za-z0-9_.\-]*)?\}$`)

// CheckInterpolation performs a syntactic check of every {...} reference in
// raw. References are validated, never resolved; resolution happens in the
// conductor. The first malformed reference is returned.
func CheckInterpolation(raw []byte) (string, bool) {
	for _, token := range interpolationToken.FindAll(raw, -1) {
		if !interpolationRef.Match(token) {
			return string(token), false
		}
	}
	return "", true
}
