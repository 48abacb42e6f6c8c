package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/batutahq/batuta/pkg/template"
)

// RetryPolicy controls how operator_call steps are re-attempted. A step-level
// policy overrides the definition-level one.
type RetryPolicy struct {
	MaxAttempts int       `json:"max_attempts" validate:"min=1"`
	Delay       *Duration `json:"delay,omitempty"`
}

// TimeoutPolicy bounds individual steps and whole runs.
type TimeoutPolicy struct {
	Step *Duration `json:"step,omitempty"`
	Run  *Duration `json:"run,omitempty"`
}

// WorkflowDefinition is an immutable, named and versioned description of a
// step graph. A definition is never mutated after registration, only
// superseded by a new version.
type WorkflowDefinition struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"    validate:"required,min=3"`
	Version    int                  `json:"version" validate:"required,min=1"`
	Steps      []*WorkflowStep      `json:"steps"   validate:"required,min=1,dive"`
	Conditions []*WorkflowCondition `json:"conditions,omitempty" validate:"dive"`
	Retry      *RetryPolicy         `json:"retry,omitempty"`
	Timeouts   *TimeoutPolicy       `json:"timeouts,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

var (
	ErrDuplicateStepID        = errors.New("duplicate step id")
	ErrUnknownStep            = errors.New("unknown step id")
	ErrCompensationTargeted   = errors.New("condition targets a compensation step")
	ErrCompensationNotFound   = errors.New("compensation step not found")
	ErrCompensationWrongKind  = errors.New("compensation_id must reference a compensation step")
	ErrOperatorTargetRequired = errors.New("operator and method are required")
	ErrNoForwardSteps         = errors.New("definition has no forward steps")
)

func (d *WorkflowDefinition) StepByID(stepID string) (*WorkflowStep, bool) {
	for _, step := range d.Steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return nil, false
}

// FirstStep returns the first forward (non-compensation) step in declaration
// order, or nil when the definition has none.
func (d *WorkflowDefinition) FirstStep() *WorkflowStep {
	for _, step := range d.Steps {
		if step.Kind != StepKindCompensation {
			return step
		}
	}

	return nil
}

// NextStep resolves the step following currentStepID for the given context.
//
// Conditions are scanned in declaration order; the first one whose source
// matches and whose predicate evaluates true selects the target. Without a
// match the step immediately following currentStepID in declaration order is
// used, skipping compensation steps. A nil result means the run is done.
func (d *WorkflowDefinition) NextStep(currentStepID string, ctx *WorkflowContext) (*WorkflowStep, error) {
	if currentStepID == "" {
		return d.FirstStep(), nil
	}

	for _, condition := range d.Conditions {
		if condition.SourceStepID != currentStepID {
			continue
		}

		matched, err := d.evaluateCondition(condition, ctx)
		if err != nil {
			return nil, fmt.Errorf("condition %s->%s: %w", condition.SourceStepID, condition.TargetStepID, err)
		}

		if matched {
			target, found := d.StepByID(condition.TargetStepID)
			if !found {
				return nil, fmt.Errorf("condition target %q: %w", condition.TargetStepID, ErrUnknownStep)
			}

			return target, nil
		}
	}

	for i, step := range d.Steps {
		if step.ID != currentStepID {
			continue
		}

		for _, next := range d.Steps[i+1:] {
			if next.Kind != StepKindCompensation {
				return next, nil
			}
		}

		return nil, nil
	}

	return nil, fmt.Errorf("current step %q: %w", currentStepID, ErrUnknownStep)
}

func (d *WorkflowDefinition) evaluateCondition(condition *WorkflowCondition, ctx *WorkflowContext) (bool, error) {
	if condition.Expression == "" {
		return true, nil
	}

	value, err := template.Render(condition.Expression, ctx.Map())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	return Truthy(value)
}

// Validate checks the structural integrity of the graph: unique step IDs,
// conditions referencing existing forward steps, and compensation links
// resolving to compensation-kind steps. Operator binding is validated
// separately against the registry at load time.
func (d *WorkflowDefinition) Validate() error {
	seen := make(map[string]bool, len(d.Steps))

	for _, step := range d.Steps {
		if seen[step.ID] {
			return fmt.Errorf("step %q: %w", step.ID, ErrDuplicateStepID)
		}

		seen[step.ID] = true

		err := d.validateStep(step)
		if err != nil {
			return err
		}
	}

	if d.FirstStep() == nil {
		return ErrNoForwardSteps
	}

	for _, condition := range d.Conditions {
		if !seen[condition.SourceStepID] {
			return fmt.Errorf("condition source %q: %w", condition.SourceStepID, ErrUnknownStep)
		}

		target, found := d.StepByID(condition.TargetStepID)
		if !found {
			return fmt.Errorf("condition target %q: %w", condition.TargetStepID, ErrUnknownStep)
		}

		if target.Kind == StepKindCompensation {
			return fmt.Errorf("condition target %q: %w", condition.TargetStepID, ErrCompensationTargeted)
		}
	}

	return nil
}

func (d *WorkflowDefinition) validateStep(step *WorkflowStep) error {
	switch step.Kind {
	case StepKindOperatorCall, StepKindCompensation:
		if step.Operator == "" || step.Method == "" {
			return fmt.Errorf("step %q: %w", step.ID, ErrOperatorTargetRequired)
		}
	case StepKindParallel:
		for _, sub := range step.SubSteps {
			if sub.Kind == StepKindCompensation {
				return fmt.Errorf("step %q sub-step %q: %w", step.ID, sub.ID, ErrCompensationTargeted)
			}

			err := d.validateStep(sub)
			if err != nil {
				return err
			}
		}
	case StepKindDecision, StepKindWait:
	}

	if step.CompensationID != "" {
		compensation, found := d.StepByID(step.CompensationID)
		if !found {
			return fmt.Errorf("step %q compensation %q: %w", step.ID, step.CompensationID, ErrCompensationNotFound)
		}

		if compensation.Kind != StepKindCompensation {
			return fmt.Errorf("step %q compensation %q: %w", step.ID, step.CompensationID, ErrCompensationWrongKind)
		}
	}

	return nil
}
