package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/batutahq/batuta/pkg/eventbus"
	"github.com/batutahq/batuta/pkg/events"
	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/otelhelper"
	"github.com/batutahq/batuta/pkg/persistence"
	"github.com/batutahq/batuta/pkg/saga"
)

// Coordinator drives workflow instances through their definitions. It owns
// the run loop: persist after every transition, publish lifecycle events, and
// on a required failure reverse the run through the unit of work.
type Coordinator struct {
	id          string
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	executor    *StepExecutor
	driver      saga.Driver
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewCoordinator(
	id string,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	executor *StepExecutor,
	driver saga.Driver,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		id:          id,
		persistence: persist,
		eventBus:    eventBus,
		executor:    executor,
		driver:      driver,
		logger:      logger.With("module", "coordinator", "coordinator_id", id),
		tracer:      otel.Tracer("batuta.coordinator"),
	}
}

// Start creates a fresh instance of the pinned (name, version) definition and
// drives it to a terminal state. The returned instance is the final snapshot;
// the error is non-nil only for infrastructure problems, not for runs that
// end failed.
func (c *Coordinator) Start(ctx context.Context, workflowName string, workflowVersion int, input map[string]any) (*models.WorkflowInstance, error) {
	definition, err := c.persistence.Definitions().FindByNameAndVersion(ctx, workflowName, workflowVersion)
	if err != nil {
		return nil, err
	}

	instance := models.NewWorkflowInstance(definition, input)

	err = c.persistence.Instances().Save(ctx, &instance)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, events.RunStarted{
		BaseEvent: c.baseEvent(events.RunStartedEvent, instance),
	})

	return c.Drive(ctx, definition, instance)
}

// Resume picks up a running instance from its last durable snapshot. The
// definition is resolved at the pinned version; a newer published version is
// never substituted mid-run.
func (c *Coordinator) Resume(ctx context.Context, instance models.WorkflowInstance) (*models.WorkflowInstance, error) {
	definition, err := c.persistence.Definitions().FindByNameAndVersion(ctx, instance.WorkflowName, instance.WorkflowVersion)
	if err != nil {
		return nil, err
	}

	return c.Drive(ctx, definition, instance)
}

// ResumeRunning sweeps the instance store for runs left in the running state
// and drives each to completion. Called on coordinator startup.
func (c *Coordinator) ResumeRunning(ctx context.Context) error {
	running, err := c.persistence.Instances().FindRunning(ctx)
	if err != nil {
		return err
	}

	for _, snapshot := range running {
		c.logger.Info("Resuming instance",
			"instance_id", snapshot.ID,
			"workflow_name", snapshot.WorkflowName,
			"current_step_id", snapshot.CurrentStepID)

		_, err := c.Resume(ctx, *snapshot)
		if err != nil {
			c.logger.Error("Resume failed",
				"instance_id", snapshot.ID, "error", err)
		}
	}

	return nil
}

// Drive executes the instance from its current position to a terminal state.
// The whole run happens inside one unit of work; a required step failure
// rolls the unit back, executing registered compensations in reverse order,
// and the instance ends failed rather than the call erroring.
func (c *Coordinator) Drive(ctx context.Context, definition *models.WorkflowDefinition, instance models.WorkflowInstance) (*models.WorkflowInstance, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.drive",
		otelhelper.InstanceAttributes(instance.ID, instance.WorkflowName, instance.WorkflowVersion)...)
	defer span.End()

	if instance.IsTerminal() {
		return &instance, nil
	}

	if definition.Timeouts != nil && definition.Timeouts.Run != nil {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, definition.Timeouts.Run.Duration)
		defer cancel()
	}

	logger := c.logger.With(
		"instance_id", instance.ID,
		"workflow_name", instance.WorkflowName,
		"workflow_version", instance.WorkflowVersion,
	)

	uow := saga.NewUnitOfWork(c.driver, logger)

	err := uow.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer uow.Dispose(context.WithoutCancel(ctx))

	step, err := c.currentStep(definition, instance)
	if err != nil {
		return c.abort(ctx, instance, uow, err, logger)
	}

	for step != nil {
		instance = instance.MoveToStep(step.ID)

		err = c.saveSnapshot(ctx, instance)
		if err != nil {
			return nil, err
		}

		logger.Info("Executing step", "step_id", step.ID, "step_kind", step.Kind)

		stepCtx, stepSpan := otelhelper.StartSpan(ctx, c.tracer, "coordinator.step",
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.StepKindKey, string(step.Kind)))

		result, stepErr := c.executor.Execute(stepCtx, definition, instance, step, uow)
		otelhelper.SetError(stepSpan, stepErr)
		stepSpan.End()

		if stepErr != nil {
			c.publish(ctx, events.StepFailed{
				BaseEvent: c.baseEvent(events.StepFailedEvent, instance),
				StepID:    step.ID,
				Error:     stepErr.Error(),
				Required:  step.Required,
			})

			if step.Required {
				return c.abort(ctx, instance.FailStep(step.ID, stepErr), uow, stepErr, logger)
			}

			logger.Warn("Optional step failed, continuing",
				"step_id", step.ID, "error", stepErr)

			instance = instance.RecordStepFailure(step.ID, stepErr)
		} else {
			instance = instance.CompleteStep(step.ID, result)

			c.publish(ctx, events.StepCompleted{
				BaseEvent: c.baseEvent(events.StepCompletedEvent, instance),
				StepID:    step.ID,
				Result:    result,
			})
		}

		err = c.saveSnapshot(ctx, instance)
		if err != nil {
			return nil, err
		}

		step, err = definition.NextStep(instance.CurrentStepID, instance.Context)
		if err != nil {
			return c.abort(ctx, instance.FailStep(instance.CurrentStepID, err), uow, err, logger)
		}
	}

	// Commit before marking the run completed: a failed commit must still be
	// able to fail the instance, and FailStep is a no-op on a terminal one.
	err = uow.Commit(ctx)
	if err != nil {
		return c.abort(ctx, instance, uow, err, logger)
	}

	instance = instance.Complete()

	err = c.saveSnapshot(ctx, instance)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, events.RunCompleted{
		BaseEvent: c.baseEvent(events.RunCompletedEvent, instance),
		Duration:  time.Since(instance.StartedAt),
	})

	logger.Info("Run completed", "steps", len(instance.History))

	return &instance, nil
}

// currentStep decides where to (re-)enter the definition. A fresh instance
// starts at the first forward step; a resumed one re-enters its current step
// when the last history entry does not cover it, otherwise it navigates on.
func (c *Coordinator) currentStep(definition *models.WorkflowDefinition, instance models.WorkflowInstance) (*models.WorkflowStep, error) {
	if instance.CurrentStepID == "" {
		return definition.FirstStep(), nil
	}

	last := instance.LastAttempt()
	if last == nil || last.StepID != instance.CurrentStepID {
		step, found := definition.StepByID(instance.CurrentStepID)
		if !found {
			return nil, fmt.Errorf("step %q: %w", instance.CurrentStepID, models.ErrUnknownStep)
		}

		return step, nil
	}

	return definition.NextStep(instance.CurrentStepID, instance.Context)
}

// abort moves the run to failed: roll the unit of work back, publish one
// event per compensation outcome, persist the terminal snapshot. The failed
// run is a normal outcome, the returned error stays nil unless persistence
// itself broke.
func (c *Coordinator) abort(
	ctx context.Context,
	instance models.WorkflowInstance,
	uow *saga.UnitOfWork,
	cause error,
	logger *slog.Logger,
) (*models.WorkflowInstance, error) {
	logger.Error("Run failed, rolling back", "error", cause)

	if instance.Status != models.InstanceStatusFailed {
		instance = instance.FailStep(instance.CurrentStepID, cause)
	}

	transactionID := ""
	if tx := uow.Transaction(); tx != nil {
		transactionID = tx.ID
	}

	ctx = context.WithoutCancel(ctx)

	results, rollbackErr := uow.Rollback(ctx)
	if rollbackErr != nil && !errors.Is(rollbackErr, saga.ErrNoActiveTransaction) {
		logger.Error("Driver rollback failed", "error", rollbackErr)

		c.publish(ctx, events.TransactionCritical{
			BaseEvent:     c.baseEvent(events.TransactionCriticalEvent, instance),
			TransactionID: transactionID,
			Error:         rollbackErr.Error(),
		})
	}

	for _, result := range results {
		if result.Err != nil {
			c.publish(ctx, events.CompensationFailed{
				BaseEvent:     c.baseEvent(events.CompensationFailedEvent, instance),
				TransactionID: transactionID,
				Description:   result.Description,
				Error:         result.Err.Error(),
			})

			continue
		}

		c.publish(ctx, events.CompensationExecuted{
			BaseEvent:     c.baseEvent(events.CompensationExecutedEvent, instance),
			TransactionID: transactionID,
			Description:   result.Description,
		})
	}

	err := c.saveSnapshot(ctx, instance)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, events.RunFailed{
		BaseEvent: c.baseEvent(events.RunFailedEvent, instance),
		Error:     cause.Error(),
		Duration:  time.Since(instance.StartedAt),
	})

	return &instance, nil
}

func (c *Coordinator) saveSnapshot(ctx context.Context, instance models.WorkflowInstance) error {
	err := c.persistence.Instances().Save(ctx, &instance)
	if err != nil {
		return fmt.Errorf("saving instance %s: %w", instance.ID, err)
	}

	return nil
}

func (c *Coordinator) baseEvent(eventType events.EventType, instance models.WorkflowInstance) events.BaseEvent {
	base := events.NewBaseEvent(eventType, instance.WorkflowName, instance.WorkflowVersion)
	base.InstanceID = instance.ID
	base.CoordinatorID = c.id

	return base
}

// publish is fire and forget: the event stream is observability, not state,
// and a broker hiccup must never fail a run.
func (c *Coordinator) publish(ctx context.Context, event eventbus.Event) {
	if c.eventBus == nil {
		return
	}

	err := c.eventBus.Publish(ctx, string(event.GetType()), event)
	if err != nil {
		c.logger.Warn("Event publish failed",
			"event_type", event.GetType(), "error", err)
	}
}
