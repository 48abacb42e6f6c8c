// Package events defines the lifecycle notifications a run emits.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "batuta.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunRequestedEvent EventType = "run.requested"
	RunStartedEvent   EventType = "run.started"
	StepCompletedEvent EventType = "run.step.completed"
	StepFailedEvent    EventType = "run.step.failed"
	RunCompletedEvent  EventType = "run.completed"
	RunFailedEvent     EventType = "run.failed"

	CompensationExecutedEvent EventType = "run.compensation.executed"
	CompensationFailedEvent   EventType = "run.compensation.failed"
	TransactionCriticalEvent  EventType = "run.transaction.critical"
)

type BaseEvent struct {
	ID              string         `json:"id"`
	Type            EventType      `json:"type"`
	Timestamp       time.Time      `json:"timestamp"`
	InstanceID      string         `json:"instance_id,omitempty"`
	WorkflowName    string         `json:"workflow_name"`
	WorkflowVersion int            `json:"workflow_version"`
	CoordinatorID   string         `json:"coordinator_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowName string, workflowVersion int) BaseEvent {
	return BaseEvent{
		ID:              uuid.New().String(),
		Type:            eventType,
		Timestamp:       time.Now().UTC(),
		WorkflowName:    workflowName,
		WorkflowVersion: workflowVersion,
	}
}

// RunRequested asks a coordinator to drive a pending instance.
type RunRequested struct {
	BaseEvent

	Input map[string]any `json:"input,omitempty"`
}

func (e RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type RunStarted struct {
	BaseEvent
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type StepCompleted struct {
	BaseEvent

	StepID string         `json:"step_id"`
	Result map[string]any `json:"result,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	StepID   string `json:"step_id"`
	Error    string `json:"error"`
	Required bool   `json:"required"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

type RunCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type CompensationExecuted struct {
	BaseEvent

	TransactionID string `json:"transaction_id"`
	Description   string `json:"description"`
}

func (e CompensationExecuted) GetType() EventType {
	return CompensationExecutedEvent
}

type CompensationFailed struct {
	BaseEvent

	TransactionID string `json:"transaction_id"`
	Description   string `json:"description"`
	Error         string `json:"error"`
}

func (e CompensationFailed) GetType() EventType {
	return CompensationFailedEvent
}

// TransactionCritical signals that the driver-level rollback itself failed;
// the run needs manual operator intervention.
type TransactionCritical struct {
	BaseEvent

	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

func (e TransactionCritical) GetType() EventType {
	return TransactionCriticalEvent
}
