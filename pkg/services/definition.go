package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/persistence"
)

// Definition is the registration service for workflow definitions. Versions
// are immutable: registering an existing (name, version) pair is a conflict,
// publishing a change means registering a new version.
type Definition struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

func NewDefinition(persist persistence.Persistence) *Definition {
	return &Definition{
		persistence: persist,
		validate:    validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Definition) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// RegisterRequest carries a definition to register.
type RegisterRequest struct {
	Definition *models.WorkflowDefinition `validate:"required"`
}

// Register validates and stores a new definition version.
func (s *Definition) Register(ctx context.Context, req RegisterRequest) (*models.WorkflowDefinition, error) {
	if req.Definition == nil {
		return nil, NewValidationError("register", "DEFINITION_NIL", "definition is required", ErrDefinitionNil)
	}

	definition := req.Definition

	if err := s.validateDefinition(definition); err != nil {
		return nil, err
	}

	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = time.Now().UTC()
	}

	err := s.persistence.Definitions().Save(ctx, definition)
	if err != nil {
		if persistence.IsDefinitionAlreadyExists(err) {
			return nil, &ServiceError{
				Op:      "register",
				Code:    "VERSION_CONFLICT",
				Message: fmt.Sprintf("workflow %q version %d already registered", definition.Name, definition.Version),
				Err:     ErrVersionAlreadyRegistered,
			}
		}

		return nil, fmt.Errorf("failed to register definition: %w", err)
	}

	return definition, nil
}

// Get returns one definition version, or the latest registered version when
// version is zero.
func (s *Definition) Get(ctx context.Context, name string, version int) (*models.WorkflowDefinition, error) {
	if name == "" {
		return nil, NewValidationError("get", "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	if version > 0 {
		return s.persistence.Definitions().FindByNameAndVersion(ctx, name, version)
	}

	return s.latest(ctx, name)
}

// List returns all registered definitions.
func (s *Definition) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	definitions, err := s.persistence.Definitions().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	return definitions, nil
}

func (s *Definition) latest(ctx context.Context, name string) (*models.WorkflowDefinition, error) {
	definitions, err := s.persistence.Definitions().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	var latest *models.WorkflowDefinition

	for _, definition := range definitions {
		if definition.Name != name {
			continue
		}

		if latest == nil || definition.Version > latest.Version {
			latest = definition
		}
	}

	if latest == nil {
		return nil, persistence.NewDefinitionError("latest", name, 0, persistence.ErrDefinitionNotFound)
	}

	return latest, nil
}

func (s *Definition) validateDefinition(definition *models.WorkflowDefinition) error {
	if definition.Name == "" {
		return NewValidationError("register", "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	if definition.Version <= 0 {
		return NewValidationError("register", "VERSION_INVALID", "workflow version must be positive", ErrVersionInvalid)
	}

	if len(definition.Steps) == 0 {
		return NewValidationError("register", "STEPS_REQUIRED", "workflow must have at least one step", ErrStepsRequired)
	}

	if err := s.validate.Struct(definition); err != nil {
		return NewValidationError("register", "INVALID_DEFINITION", err.Error(), ErrInvalidRequest)
	}

	if err := definition.Validate(); err != nil {
		return NewValidationError("register", "INVALID_GRAPH", err.Error(), ErrInvalidRequest)
	}

	return nil
}
