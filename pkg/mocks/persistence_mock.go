// Package mocks provides testify mock implementations of the engine's ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/persistence"
)

// MockDefinitionRepository is a mock implementation of persistence.DefinitionRepository.
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	args := m.Called(ctx, definition)

	return args.Error(0)
}

func (m *MockDefinitionRepository) FindByNameAndVersion(ctx context.Context, name string, version int) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowDefinition), args.Error(1)
}

// MockInstanceRepository is a mock implementation of persistence.InstanceRepository.
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	args := m.Called(ctx, instance)

	return args.Error(0)
}

func (m *MockInstanceRepository) Find(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) FindRunning(ctx context.Context) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock

	DefinitionRepo *MockDefinitionRepository
	InstanceRepo   *MockInstanceRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		DefinitionRepo: &MockDefinitionRepository{},
		InstanceRepo:   &MockInstanceRepository{},
	}
}

func (m *MockPersistence) Definitions() persistence.DefinitionRepository {
	return m.DefinitionRepo
}

func (m *MockPersistence) Instances() persistence.InstanceRepository {
	return m.InstanceRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
