// Package workflow contains the step executor and the coordinator loop that
// drive a workflow instance to a terminal state.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/protocol"
	"github.com/batutahq/batuta/pkg/registry"
	"github.com/batutahq/batuta/pkg/rules"
	"github.com/batutahq/batuta/pkg/saga"
	"github.com/batutahq/batuta/pkg/template"
)

// StepExecutor interprets one step against an instance, dispatching by step
// kind. It resolves operators through the registry, gates calls through rule
// checkpoints, and registers compensations with the unit of work as steps
// succeed.
type StepExecutor struct {
	registry    *registry.Registry
	checkpoints *rules.CheckpointRegistry
	logger      *slog.Logger
}

func NewStepExecutor(reg *registry.Registry, checkpoints *rules.CheckpointRegistry, logger *slog.Logger) *StepExecutor {
	return &StepExecutor{
		registry:    reg,
		checkpoints: checkpoints,
		logger:      logger.With("module", "step_executor"),
	}
}

// Execute runs one step against the instance's current context and returns
// the step's result delta. A non-nil error means the step failed; whether
// that fails the run is the coordinator's call, based on the step's Required
// flag. For parallel steps both the collected outcomes and an error may be
// returned.
func (e *StepExecutor) Execute(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	instance models.WorkflowInstance,
	step *models.WorkflowStep,
	uow *saga.UnitOfWork,
) (map[string]any, error) {
	logger := e.logger.With(
		"instance_id", instance.ID,
		"step_id", step.ID,
		"step_kind", step.Kind,
	)

	switch step.Kind {
	case models.StepKindOperatorCall:
		return e.executeOperatorCall(ctx, definition, instance, step, uow, logger)
	case models.StepKindDecision:
		return e.executeDecision(instance, step)
	case models.StepKindParallel:
		return e.executeParallel(ctx, definition, instance, step, uow, logger)
	case models.StepKindWait:
		return e.executeWait(ctx, step, logger)
	case models.StepKindCompensation:
		return nil, fmt.Errorf("step %q: %w", step.ID, ErrCompensationStepForward)
	default:
		return nil, fmt.Errorf("step %q kind %q: %w", step.ID, step.Kind, ErrUnknownStepKind)
	}
}

func (e *StepExecutor) executeOperatorCall(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	instance models.WorkflowInstance,
	step *models.WorkflowStep,
	uow *saga.UnitOfWork,
	logger *slog.Logger,
) (map[string]any, error) {
	call, err := e.registry.Resolve(step.Operator, step.Method)
	if err != nil {
		return nil, err
	}

	input, err := template.RenderMapping(step.Input, instance.Context.Map())
	if err != nil {
		return nil, fmt.Errorf("step %q input mapping: %w", step.ID, err)
	}

	var gateReport *models.RuleReport

	if step.Checkpoint != "" {
		report, err := e.runCheckpoint(ctx, step, instance, input)
		if err != nil {
			return nil, err
		}

		gateReport = report
	}

	result, err := e.invokeWithRetry(ctx, definition, step, call, input, logger)
	if err != nil {
		return nil, err
	}

	delta, err := e.applyOutputMapping(step, result)
	if err != nil {
		return nil, err
	}

	if gateReport != nil {
		delta["checkpoint_report"] = *gateReport
	}

	if step.CompensationID != "" {
		err = e.registerCompensation(definition, instance, step, delta, uow)
		if err != nil {
			return nil, err
		}
	}

	return delta, nil
}

// runCheckpoint evaluates the step's checkpoint against the run context merged
// with the rendered call input, before the operator is invoked. A failed
// verdict is returned as a CheckpointError so the external side effect never
// happens.
func (e *StepExecutor) runCheckpoint(
	ctx context.Context,
	step *models.WorkflowStep,
	instance models.WorkflowInstance,
	input map[string]any,
) (*models.RuleReport, error) {
	checkpoint, err := e.checkpoints.Resolve(step.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", step.ID, err)
	}

	report := checkpoint.Run(ctx, instance.Context.Merge(input))
	if !report.Passed {
		return nil, &CheckpointError{Checkpoint: step.Checkpoint, Report: report}
	}

	return &report, nil
}

func (e *StepExecutor) invokeWithRetry(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	step *models.WorkflowStep,
	call protocol.OperatorCall,
	input map[string]any,
	logger *slog.Logger,
) (map[string]any, error) {
	policy := step.Retry
	if policy == nil {
		policy = definition.Retry
	}

	attempts := 1
	delay := time.Duration(0)

	if policy != nil {
		attempts = policy.MaxAttempts
		if policy.Delay != nil {
			delay = policy.Delay.Duration
		}
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying operator call",
				"attempt", attempt, "max_attempts", attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := e.invoke(ctx, definition, step, call, input)
		if err == nil {
			return result, nil
		}

		lastErr = err
	}

	return nil, fmt.Errorf("step %q failed after %d attempt(s): %w", step.ID, attempts, lastErr)
}

func (e *StepExecutor) invoke(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	step *models.WorkflowStep,
	call protocol.OperatorCall,
	input map[string]any,
) (map[string]any, error) {
	timeout := time.Duration(0)

	if definition.Timeouts != nil && definition.Timeouts.Step != nil {
		timeout = definition.Timeouts.Step.Duration
	}

	if step.Timeout != nil {
		timeout = step.Timeout.Duration
	}

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return call(ctx, input)
}

// applyOutputMapping turns a call result into the context delta. Without an
// explicit mapping the result's top-level keys are the delta.
func (e *StepExecutor) applyOutputMapping(step *models.WorkflowStep, result map[string]any) (map[string]any, error) {
	if len(step.Output) == 0 {
		if result == nil {
			return map[string]any{}, nil
		}

		return result, nil
	}

	data := map[string]any{"result": result}
	delta := make(map[string]any, len(step.Output))

	for contextKey, expression := range step.Output {
		value, err := template.Render(expression, data)
		if err != nil {
			return nil, fmt.Errorf("step %q output mapping %q: %w", step.ID, contextKey, err)
		}

		delta[contextKey] = value
	}

	return delta, nil
}

// registerCompensation renders the linked compensation step's input against
// the post-step context and registers the resulting closure with the unit of
// work. The closure captures everything needed to reverse the effect later,
// regardless of how the context evolves afterwards.
func (e *StepExecutor) registerCompensation(
	definition *models.WorkflowDefinition,
	instance models.WorkflowInstance,
	step *models.WorkflowStep,
	delta map[string]any,
	uow *saga.UnitOfWork,
) error {
	compensation, found := definition.StepByID(step.CompensationID)
	if !found {
		return fmt.Errorf("step %q compensation %q: %w", step.ID, step.CompensationID, models.ErrCompensationNotFound)
	}

	call, err := e.registry.Resolve(compensation.Operator, compensation.Method)
	if err != nil {
		return fmt.Errorf("step %q compensation: %w", step.ID, err)
	}

	postContext := instance.Context.Merge(delta)

	input, err := template.RenderMapping(compensation.Input, postContext.Map())
	if err != nil {
		return fmt.Errorf("step %q compensation input mapping: %w", step.ID, err)
	}

	description := fmt.Sprintf("%s (%s.%s)", compensation.Name, compensation.Operator, compensation.Method)

	return uow.RegisterCompensation(saga.CompensationAction{
		Description: description,
		Execute: func(ctx context.Context) error {
			_, err := call(ctx, input)

			return err
		},
	})
}

func (e *StepExecutor) executeDecision(instance models.WorkflowInstance, step *models.WorkflowStep) (map[string]any, error) {
	value, err := template.Render(step.Expression, instance.Context.Map())
	if err != nil {
		return nil, fmt.Errorf("step %q expression: %w", step.ID, err)
	}

	decision, err := models.Truthy(value)
	if err != nil {
		return nil, fmt.Errorf("step %q expression: %w", step.ID, err)
	}

	return map[string]any{
		"decision":  decision,
		"step_id":   step.ID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// executeParallel fans out the sub-steps concurrently and joins on all of
// them. Every outcome, success or error, is captured in order; an individual
// sub-step failure never short-circuits the join. When any sub-step failed
// the collected outcomes are returned together with an error, and the parent
// step's Required flag decides escalation.
func (e *StepExecutor) executeParallel(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	instance models.WorkflowInstance,
	step *models.WorkflowStep,
	uow *saga.UnitOfWork,
	logger *slog.Logger,
) (map[string]any, error) {
	outcomes := make([]map[string]any, len(step.SubSteps))

	var wg sync.WaitGroup

	for i, sub := range step.SubSteps {
		wg.Add(1)

		go func(i int, sub *models.WorkflowStep) {
			defer wg.Done()

			result, err := e.Execute(ctx, definition, instance, sub, uow)
			if err != nil {
				outcomes[i] = map[string]any{
					"step_id": sub.ID,
					"ok":      false,
					"error":   err.Error(),
				}

				return
			}

			outcomes[i] = map[string]any{
				"step_id": sub.ID,
				"ok":      true,
				"result":  result,
			}
		}(i, sub)
	}

	wg.Wait()

	failed := 0

	collected := make([]any, len(outcomes))
	for i, outcome := range outcomes {
		collected[i] = outcome

		if ok, _ := outcome["ok"].(bool); !ok {
			failed++
		}
	}

	result := map[string]any{
		"outcomes": collected,
		"failed":   failed,
	}

	if failed > 0 {
		logger.Warn("Parallel step finished with failures",
			"failed", failed, "total", len(step.SubSteps))

		return result, fmt.Errorf("step %q: %d of %d sub-steps failed: %w",
			step.ID, failed, len(step.SubSteps), ErrParallelSubStepFailed)
	}

	return result, nil
}

// executeWait suspends the run for the configured duration. This is the only
// voluntary long-sleep point in the engine.
func (e *StepExecutor) executeWait(ctx context.Context, step *models.WorkflowStep, logger *slog.Logger) (map[string]any, error) {
	duration := time.Duration(0)
	if step.Wait != nil {
		duration = step.Wait.Duration
	}

	logger.Debug("Waiting", "duration", duration)

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("step %q wait interrupted: %w", step.ID, ctx.Err())
	case <-timer.C:
	}

	return map[string]any{
		"waited":       duration.String(),
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}
