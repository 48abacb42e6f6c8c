// Package persistence defines the storage ports the engine delegates to:
// the definition store and the instance snapshot store.
package persistence

import (
	"context"

	"github.com/batutahq/batuta/pkg/models"
)

// DefinitionRepository is the definition store. Definitions are immutable
// once registered; a (name, version) pair is written at most once.
type DefinitionRepository interface {
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
	FindByNameAndVersion(ctx context.Context, name string, version int) (*models.WorkflowDefinition, error)
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// InstanceRepository stores instance snapshots. The coordinator saves after
// every state transition so a crash mid-run can be recovered from the last
// durable state.
type InstanceRepository interface {
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	Find(ctx context.Context, id string) (*models.WorkflowInstance, error)
	FindRunning(ctx context.Context) ([]*models.WorkflowInstance, error)
}

type Persistence interface {
	Definitions() DefinitionRepository
	Instances() InstanceRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
