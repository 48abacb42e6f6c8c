package services

import (
	"context"
	"fmt"

	"github.com/batutahq/batuta/pkg/eventbus"
	"github.com/batutahq/batuta/pkg/events"
	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/persistence"
)

// Run manages workflow runs from the outside: requesting new runs over the
// event bus and reading instance snapshots back.
type Run struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
}

func NewRun(persist persistence.Persistence, eventBus eventbus.EventBus) *Run {
	return &Run{
		persistence: persist,
		eventBus:    eventBus,
	}
}

// StartRequest asks for a new run of the given definition version. A zero
// version resolves to the latest registered one at request time; the run pins
// whatever version it started under.
type StartRequest struct {
	WorkflowName    string         `validate:"required"`
	WorkflowVersion int            `validate:"min=0"`
	Input           map[string]any `validate:"omitempty"`
}

// StartResponse acknowledges a run request. The run itself happens on a
// coordinator; EventID lets callers correlate the eventual instance.
type StartResponse struct {
	EventID         string `json:"event_id"`
	WorkflowName    string `json:"workflow_name"`
	WorkflowVersion int    `json:"workflow_version"`
}

// Start validates the request and publishes a run.requested event for a
// coordinator to pick up.
func (s *Run) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	if req.WorkflowName == "" {
		return nil, NewValidationError("start", "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	version := req.WorkflowVersion
	if version <= 0 {
		latest, err := NewDefinition(s.persistence).Get(ctx, req.WorkflowName, 0)
		if err != nil {
			return nil, err
		}

		version = latest.Version
	} else {
		_, err := s.persistence.Definitions().FindByNameAndVersion(ctx, req.WorkflowName, version)
		if err != nil {
			return nil, err
		}
	}

	event := events.RunRequested{
		BaseEvent: events.NewBaseEvent(events.RunRequestedEvent, req.WorkflowName, version),
		Input:     req.Input,
	}

	err := s.eventBus.Publish(ctx, string(events.RunRequestedEvent), event)
	if err != nil {
		return nil, fmt.Errorf("failed to publish run request: %w", err)
	}

	return &StartResponse{
		EventID:         event.ID,
		WorkflowName:    req.WorkflowName,
		WorkflowVersion: version,
	}, nil
}

// Get returns one instance snapshot by id.
func (s *Run) Get(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	if instanceID == "" {
		return nil, NewValidationError("get", "INSTANCE_ID_REQUIRED", "instance id is required", ErrInvalidRequest)
	}

	return s.persistence.Instances().Find(ctx, instanceID)
}

// ListRunning returns the instances currently in the running state.
func (s *Run) ListRunning(ctx context.Context) ([]*models.WorkflowInstance, error) {
	running, err := s.persistence.Instances().FindRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list running instances: %w", err)
	}

	return running, nil
}
