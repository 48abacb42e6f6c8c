// Package registry resolves operator methods referenced by workflow steps.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/protocol"
)

var (
	// ErrOperatorNotFound indicates no operator is registered under the name.
	ErrOperatorNotFound = errors.New("operator not found")

	// ErrMethodNotFound indicates the operator exists but does not expose the
	// method.
	ErrMethodNotFound = errors.New("operator method not found")
)

// Registry maps (operator, method) pairs to callables. Operators register at
// composition time; definitions are bound against the registry at load time
// so a missing operator surfaces before any run starts, not mid-run.
type Registry struct {
	logger    *slog.Logger
	operators map[string]protocol.Operator
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		operators: make(map[string]protocol.Operator),
	}
}

func (r *Registry) Register(operator protocol.Operator) {
	r.operators[operator.ID()] = operator

	r.logger.Debug("Registered operator", "operator", operator.ID())
}

// HealthCheck reports whether the registry is usable.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.operators) == 0 {
		return "No operators registered", false
	}

	return fmt.Sprintf("%d operator(s) registered", len(r.operators)), true
}

// Resolve returns the callable for an operator method.
func (r *Registry) Resolve(operatorName, methodName string) (protocol.OperatorCall, error) {
	operator, ok := r.operators[operatorName]
	if !ok {
		return nil, fmt.Errorf("operator %q: %w", operatorName, ErrOperatorNotFound)
	}

	call, ok := operator.Method(methodName)
	if !ok {
		return nil, fmt.Errorf("operator %q method %q: %w", operatorName, methodName, ErrMethodNotFound)
	}

	return call, nil
}

// ValidateDefinition checks that every operator reference in the definition
// resolves, including parallel sub-steps and compensation steps.
func (r *Registry) ValidateDefinition(definition *models.WorkflowDefinition) error {
	for _, step := range definition.Steps {
		err := r.validateStep(definition, step)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Registry) validateStep(definition *models.WorkflowDefinition, step *models.WorkflowStep) error {
	switch step.Kind {
	case models.StepKindOperatorCall, models.StepKindCompensation:
		_, err := r.Resolve(step.Operator, step.Method)
		if err != nil {
			return fmt.Errorf("definition %q step %q: %w", definition.Name, step.ID, err)
		}
	case models.StepKindParallel:
		for _, sub := range step.SubSteps {
			err := r.validateStep(definition, sub)
			if err != nil {
				return err
			}
		}
	case models.StepKindDecision, models.StepKindWait:
	}

	return nil
}
