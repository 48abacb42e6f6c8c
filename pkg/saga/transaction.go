// Package saga implements the unit of work wrapping a workflow run: scratch
// resources, compensation registration, and best-effort reverse-order rollback.
package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CompensationAction reverses the side effect of a completed step. Actions are
// registered by the step executor as steps succeed and owned exclusively by
// the transaction context that collected them.
type CompensationAction struct {
	Description string
	Execute     func(ctx context.Context) error
}

// TransactionContext is the scratch state of one in-flight run: a resource map
// and the ordered compensation list. It is never shared across runs.
type TransactionContext struct {
	ID            string
	StartedAt     time.Time
	resources     map[string]any
	compensations []CompensationAction
}

func newTransactionContext() *TransactionContext {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &TransactionContext{
		ID:            id.String(),
		StartedAt:     time.Now().UTC(),
		resources:     make(map[string]any),
		compensations: make([]CompensationAction, 0),
	}
}

func (t *TransactionContext) addResource(key string, value any) {
	t.resources[key] = value
}

func (t *TransactionContext) resource(key string) (any, bool) {
	value, ok := t.resources[key]

	return value, ok
}

func (t *TransactionContext) register(action CompensationAction) {
	t.compensations = append(t.compensations, action)
}

// drain removes and returns the compensations in reverse registration order.
func (t *TransactionContext) drain() []CompensationAction {
	drained := make([]CompensationAction, 0, len(t.compensations))

	for i := len(t.compensations) - 1; i >= 0; i-- {
		drained = append(drained, t.compensations[i])
	}

	t.compensations = t.compensations[:0]

	return drained
}
