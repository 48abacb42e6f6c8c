package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/protocol"
)

type echoOperator struct {
	id      string
	methods []string
}

func (o *echoOperator) ID() string { return o.id }

func (o *echoOperator) Method(name string) (protocol.OperatorCall, bool) {
	for _, m := range o.methods {
		if m == name {
			return func(_ context.Context, input map[string]any) (map[string]any, error) {
				return input, nil
			}, true
		}
	}

	return nil, false
}

func TestResolve(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&echoOperator{id: "http", methods: []string{"get", "post"}})

	call, err := registry.Resolve("http", "get")
	require.NoError(t, err)
	require.NotNil(t, call)

	result, err := call(t.Context(), map[string]any{"url": "https://example.test"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", result["url"])
}

func TestResolve_UnknownOperator(t *testing.T) {
	registry := NewRegistry(slog.Default())

	_, err := registry.Resolve("ghost", "get")
	require.ErrorIs(t, err, ErrOperatorNotFound)
}

func TestResolve_UnknownMethod(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&echoOperator{id: "http", methods: []string{"get"}})

	_, err := registry.Resolve("http", "teleport")
	require.ErrorIs(t, err, ErrMethodNotFound)
}

func TestRegister_Overwrites(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&echoOperator{id: "http", methods: []string{"get"}})
	registry.Register(&echoOperator{id: "http", methods: []string{"post"}})

	_, err := registry.Resolve("http", "get")
	require.ErrorIs(t, err, ErrMethodNotFound)

	_, err = registry.Resolve("http", "post")
	require.NoError(t, err)
}

func TestValidateDefinition(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&echoOperator{id: "http", methods: []string{"get", "post"}})
	registry.Register(&echoOperator{id: "log", methods: []string{"info"}})

	definition := &models.WorkflowDefinition{
		Name: "fulfilment", Version: 1,
		Steps: []*models.WorkflowStep{
			{ID: "fetch", Name: "Fetch", Kind: models.StepKindOperatorCall, Operator: "http", Method: "get"},
			{ID: "gate", Name: "Gate", Kind: models.StepKindDecision, Expression: "true"},
			{
				ID: "fan", Name: "Fan out", Kind: models.StepKindParallel,
				SubSteps: []*models.WorkflowStep{
					{ID: "notify", Name: "Notify", Kind: models.StepKindOperatorCall, Operator: "http", Method: "post"},
					{ID: "audit", Name: "Audit", Kind: models.StepKindOperatorCall, Operator: "log", Method: "info"},
				},
			},
			{ID: "undo", Name: "Undo", Kind: models.StepKindCompensation, Operator: "http", Method: "post"},
		},
	}

	require.NoError(t, registry.ValidateDefinition(definition))
}

func TestValidateDefinition_UnboundSubStep(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&echoOperator{id: "http", methods: []string{"get"}})

	definition := &models.WorkflowDefinition{
		Name: "fulfilment", Version: 1,
		Steps: []*models.WorkflowStep{
			{
				ID: "fan", Name: "Fan out", Kind: models.StepKindParallel,
				SubSteps: []*models.WorkflowStep{
					{ID: "notify", Name: "Notify", Kind: models.StepKindOperatorCall, Operator: "slack", Method: "send"},
				},
			},
		},
	}

	err := registry.ValidateDefinition(definition)
	require.ErrorIs(t, err, ErrOperatorNotFound)
	assert.Contains(t, err.Error(), `step "notify"`)
}

func TestHealthCheck(t *testing.T) {
	registry := NewRegistry(slog.Default())

	message, healthy := registry.HealthCheck()
	assert.False(t, healthy)
	assert.Equal(t, "No operators registered", message)

	registry.Register(&echoOperator{id: "http", methods: []string{"get"}})

	message, healthy = registry.HealthCheck()
	assert.True(t, healthy)
	assert.Equal(t, "1 operator(s) registered", message)
}
