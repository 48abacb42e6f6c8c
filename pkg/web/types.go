// Package web provides HTTP request and response types for the coordination API.
package web

import "github.com/batutahq/batuta/pkg/models"

// RegisterWorkflowRequest represents the request body for registering a new
// definition version.
type RegisterWorkflowRequest struct {
	Definition *models.WorkflowDefinition `json:"definition" validate:"required"`
}

// StartRunRequest represents the request body for requesting a run. Version
// zero means the latest registered version.
type StartRunRequest struct {
	WorkflowName    string         `json:"workflow_name"    validate:"required,min=3"`
	WorkflowVersion int            `json:"workflow_version" validate:"min=0"`
	Input           map[string]any `json:"input,omitempty"`
}

// InstanceResponse is the external view of a run snapshot.
type InstanceResponse struct {
	ID              string                        `json:"id"`
	WorkflowName    string                        `json:"workflow_name"`
	WorkflowVersion int                           `json:"workflow_version"`
	Status          models.InstanceStatus         `json:"status"`
	CurrentStepID   string                        `json:"current_step_id,omitempty"`
	Context         map[string]any                `json:"context"`
	History         []models.WorkflowHistoryEntry `json:"history"`
	StartedAt       string                        `json:"started_at"`
	CompletedAt     string                        `json:"completed_at,omitempty"`
	Error           string                        `json:"error,omitempty"`
}

func toInstanceResponse(instance *models.WorkflowInstance) InstanceResponse {
	resp := InstanceResponse{
		ID:              instance.ID,
		WorkflowName:    instance.WorkflowName,
		WorkflowVersion: instance.WorkflowVersion,
		Status:          instance.Status,
		CurrentStepID:   instance.CurrentStepID,
		Context:         instance.Context.Map(),
		History:         instance.History,
		StartedAt:       instance.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		Error:           instance.Error,
	}

	if instance.CompletedAt != nil {
		resp.CompletedAt = instance.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return resp
}
