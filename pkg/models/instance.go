package models

import (
	"time"

	"github.com/google/uuid"
)

// InstanceStatus is the lifecycle state of a run. Transitions are monotonic:
// once an instance is completed or failed it never leaves that state.
type InstanceStatus string

const (
	InstanceStatusRunning   InstanceStatus = "running"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusFailed    InstanceStatus = "failed"
)

// StepStatus is the per-attempt outcome recorded in the history.
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// WorkflowHistoryEntry records one step attempt. The history is append-only,
// in exact execution order.
type WorkflowHistoryEntry struct {
	StepID    string         `json:"step_id"`
	Status    StepStatus     `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// WorkflowInstance is one execution record of a definition. Transitions are
// value-producing: each one returns a new instance and leaves the receiver
// untouched, so snapshots taken at any point stay trustworthy.
//
// An instance pins the definition name and version it started under; a newer
// published version never affects an in-flight run.
type WorkflowInstance struct {
	ID              string                 `json:"id"`
	WorkflowName    string                 `json:"workflow_name"`
	WorkflowVersion int                    `json:"workflow_version"`
	Status          InstanceStatus         `json:"status"`
	CurrentStepID   string                 `json:"current_step_id,omitempty"`
	Context         *WorkflowContext       `json:"context"`
	History         []WorkflowHistoryEntry `json:"history"`
	StartedAt       time.Time              `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// NewWorkflowInstance starts a run of the given definition with the initial
// context seeded from input.
func NewWorkflowInstance(definition *WorkflowDefinition, input map[string]any) WorkflowInstance {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return WorkflowInstance{
		ID:              id.String(),
		WorkflowName:    definition.Name,
		WorkflowVersion: definition.Version,
		Status:          InstanceStatusRunning,
		Context:         NewWorkflowContextFrom(input),
		History:         make([]WorkflowHistoryEntry, 0),
		StartedAt:       time.Now().UTC(),
	}
}

// LastAttempt returns the most recent history entry, nil when no step has
// been attempted yet.
func (i WorkflowInstance) LastAttempt() *WorkflowHistoryEntry {
	if len(i.History) == 0 {
		return nil
	}

	return &i.History[len(i.History)-1]
}

func (i WorkflowInstance) IsTerminal() bool {
	return i.Status == InstanceStatusCompleted || i.Status == InstanceStatusFailed
}

// MoveToStep points the instance at the step about to execute.
func (i WorkflowInstance) MoveToStep(stepID string) WorkflowInstance {
	if i.IsTerminal() {
		return i
	}

	next := i.copy()
	next.CurrentStepID = stepID

	return next
}

// CompleteStep appends a completed history entry and merges the result's
// top-level keys plus a step_<id>_result entry into the context.
func (i WorkflowInstance) CompleteStep(stepID string, result map[string]any) WorkflowInstance {
	if i.IsTerminal() {
		return i
	}

	next := i.copy()
	next.History = append(next.History, WorkflowHistoryEntry{
		StepID:    stepID,
		Status:    StepStatusCompleted,
		Result:    result,
		Timestamp: time.Now().UTC(),
	})

	delta := make(map[string]any, len(result)+1)
	for k, v := range result {
		delta[k] = v
	}

	delta["step_"+stepID+"_result"] = result

	next.Context = next.Context.Merge(delta)

	return next
}

// RecordStepFailure appends a failed history entry for a non-required step.
// The status stays running and navigation proceeds as though the step had
// completed; no result is merged into the context.
func (i WorkflowInstance) RecordStepFailure(stepID string, stepErr error) WorkflowInstance {
	if i.IsTerminal() {
		return i
	}

	next := i.copy()
	next.History = append(next.History, WorkflowHistoryEntry{
		StepID:    stepID,
		Status:    StepStatusFailed,
		Error:     stepErr.Error(),
		Timestamp: time.Now().UTC(),
	})

	return next
}

// FailStep records a critical step failure and moves the instance to the
// terminal failed state.
func (i WorkflowInstance) FailStep(stepID string, stepErr error) WorkflowInstance {
	if i.IsTerminal() {
		return i
	}

	now := time.Now().UTC()

	next := i.copy()
	next.History = append(next.History, WorkflowHistoryEntry{
		StepID:    stepID,
		Status:    StepStatusFailed,
		Error:     stepErr.Error(),
		Timestamp: now,
	})
	next.Status = InstanceStatusFailed
	next.Error = stepErr.Error()
	next.CompletedAt = &now

	return next
}

// Complete moves the instance to the terminal completed state. Only meaningful
// from running with no pending step.
func (i WorkflowInstance) Complete() WorkflowInstance {
	if i.IsTerminal() {
		return i
	}

	now := time.Now().UTC()

	next := i.copy()
	next.Status = InstanceStatusCompleted
	next.CurrentStepID = ""
	next.CompletedAt = &now

	return next
}

func (i WorkflowInstance) copy() WorkflowInstance {
	next := i

	next.History = make([]WorkflowHistoryEntry, len(i.History), len(i.History)+1)
	copy(next.History, i.History)

	next.Context = i.Context.Clone()

	return next
}
