package engine

import "strings"

// Condition is one field/operator/value expression evaluated against a
// Context. Lists of conditions combine with AND.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// EvaluateConditions reports whether every condition in the list holds.
// An empty list evaluates to false: a trigger must state at least one
// condition to fire, so "no conditions" can never mean "always".
func EvaluateConditions(conds []Condition, ctx *Context) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		if !evaluateCondition(c, ctx) {
			return false
		}
	}
	return true
}

// evaluateCondition resolves the field and applies the operator. Unknown
// operators are false, never an error.
func evaluateCondition(c Condition, ctx *Context) bool {
	got := ctx.resolveField(c.Field)

	switch c.Operator {
	case "equals":
		return got == c.Value
	case "contains":
		return strings.Contains(strings.ToLower(got), strings.ToLower(c.Value))
	case "starts_with":
		return strings.HasPrefix(strings.ToLower(got), strings.ToLower(c.Value))
	case "ends_with":
		return strings.HasSuffix(strings.ToLower(got), strings.ToLower(c.Value))
	default:
		return false
	}
}

// parseConditionTrigger decodes a condition-trigger value into a single
// condition. The builder serializes it as "field|operator|value"; the
// two-part form "operator|value" implies user_input, and a bare value means
// "user_input contains value".
func parseConditionTrigger(value string) []Condition {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.SplitN(value, "|", 3)
	switch len(parts) {
	case 3:
		return []Condition{{Field: strings.TrimSpace(parts[0]), Operator: strings.TrimSpace(parts[1]), Value: parts[2]}}
	case 2:
		return []Condition{{Field: "user_input", Operator: strings.TrimSpace(parts[0]), Value: parts[1]}}
	default:
		return []Condition{{Field: "user_input", Operator: "contains", Value: value}}
	}
}
