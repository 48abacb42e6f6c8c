package models

import (
	"fmt"
	"strconv"
)

// WorkflowCondition routes a run from a source step to a target step when its
// predicate holds. Conditions are evaluated in declaration order and the first
// match wins; overlapping conditions for the same source are an authoring
// choice the engine preserves, never reorders.
type WorkflowCondition struct {
	SourceStepID string `json:"source_step_id" validate:"required"`
	TargetStepID string `json:"target_step_id" validate:"required"`
	Expression   string `json:"expression"`
	Language     string `json:"language,omitempty" validate:"omitempty,oneof=simple"`
}

// Truthy coerces an evaluated expression result into a boolean. Decision and
// condition expressions render to arbitrary values; this is the single place
// that defines what counts as true.
func Truthy(value any) (bool, error) {
	if value == nil {
		return false, nil
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if v == "" {
			return false, nil
		}

		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
