// Package transform provides the data shaping operator for workflow steps.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/batutahq/batuta/pkg/protocol"
	"github.com/batutahq/batuta/pkg/template"
)

// ErrExpressionRequired is returned when the call input carries no expression.
var ErrExpressionRequired = errors.New("transform operator requires an 'expression' input")

// Operator applies a template expression over the call input's data. The step
// input mapping decides what 'data' is; the operator itself stays pure.
type Operator struct {
	logger *slog.Logger
}

func NewOperator(logger *slog.Logger) *Operator {
	return &Operator{logger: logger.With("module", "transform_operator")}
}

func (o *Operator) ID() string {
	return "transform"
}

func (o *Operator) Method(name string) (protocol.OperatorCall, bool) {
	if name != "apply" {
		return nil, false
	}

	return o.apply, true
}

func (o *Operator) apply(ctx context.Context, input map[string]any) (map[string]any, error) {
	expression, _ := input["expression"].(string)
	if expression == "" {
		return nil, ErrExpressionRequired
	}

	data, ok := input["data"]
	if !ok {
		data = input
	}

	result, err := template.Render(expression, data)
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	o.logger.DebugContext(ctx, "Transform applied", "expression", expression)

	return map[string]any{"value": result}, nil
}
