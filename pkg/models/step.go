package models

// StepKind selects how the step executor interprets a step.
type StepKind string

const (
	StepKindOperatorCall StepKind = "operator_call" // invoke a registered operator method
	StepKindDecision     StepKind = "decision"      // evaluate an expression into the context
	StepKindParallel     StepKind = "parallel"      // fan out sub-steps, join all outcomes
	StepKindWait         StepKind = "wait"          // suspend the run for a duration
	StepKindCompensation StepKind = "compensation"  // reverse action, executed only on rollback
)

// WorkflowStep is one unit of work in a definition. Immutable once the
// definition is registered.
type WorkflowStep struct {
	ID   string   `json:"id"   validate:"required"`
	Name string   `json:"name" validate:"required"`
	Kind StepKind `json:"kind" validate:"required,oneof=operator_call decision parallel wait compensation"`

	// Operator call target, required for operator_call and compensation kinds.
	Operator string `json:"operator,omitempty"`
	Method   string `json:"method,omitempty"`

	// Input maps the current context into call arguments. String values are
	// rendered as templates against the context before the call.
	Input map[string]any `json:"input,omitempty"`

	// Output maps the call result into context entries. When empty, the raw
	// result's top-level keys are merged into the context.
	Output map[string]string `json:"output,omitempty"`

	// Expression drives decision steps and is rendered against the context,
	// then coerced to a boolean.
	Expression string `json:"expression,omitempty"`

	// SubSteps are executed concurrently by parallel steps.
	SubSteps []*WorkflowStep `json:"sub_steps,omitempty"`

	// Wait is the suspension duration for wait steps.
	Wait *Duration `json:"wait,omitempty"`

	// CompensationID names the compensation-kind step registered with the unit
	// of work when this step succeeds.
	CompensationID string `json:"compensation_id,omitempty"`

	// Checkpoint names the rule checkpoint gating this step. The gate runs
	// before the operator is invoked, so a failed verdict never causes the
	// external side effect.
	Checkpoint string `json:"checkpoint,omitempty"`

	// Required escalates a failure of this step into a run failure with
	// rollback. Non-required failures are recorded and the run continues.
	Required bool `json:"required"`

	// Retry overrides the definition-level retry policy for this step.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// Timeout bounds a single execution attempt of this step.
	Timeout *Duration `json:"timeout,omitempty"`
}

// ResultKey is the context key the step's result is recorded under.
func (s *WorkflowStep) ResultKey() string {
	return "step_" + s.ID + "_result"
}
