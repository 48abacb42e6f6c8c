package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/batutahq/batuta/pkg/eventbus"
	"github.com/batutahq/batuta/pkg/events"
	"github.com/batutahq/batuta/pkg/persistence"
	"github.com/batutahq/batuta/pkg/registry"
	"github.com/batutahq/batuta/pkg/rules"
	"github.com/batutahq/batuta/pkg/saga"
	"github.com/batutahq/batuta/pkg/workflow"
)

// CoordinatorManager subscribes to run.requested events and drives each
// requested run on the in-process coordinator. On startup it resumes runs
// left in the running state by a previous process.
type CoordinatorManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	coordinator *workflow.Coordinator
}

func NewCoordinatorManager(
	id string,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	reg *registry.Registry,
	checkpoints *rules.CheckpointRegistry,
	logger *slog.Logger,
) *CoordinatorManager {
	executor := workflow.NewStepExecutor(reg, checkpoints, logger)
	coordinator := workflow.NewCoordinator(id, persist, eventBus, executor, saga.NoopDriver{}, logger)

	return &CoordinatorManager{
		id:          id,
		logger:      logger.With("module", "coordinator_manager"),
		persistence: persist,
		eventBus:    eventBus,
		coordinator: coordinator,
	}
}

func (m *CoordinatorManager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting coordinator manager")

	err := m.eventBus.Handle(events.RunRequestedEvent, m.handleRunRequested)
	if err != nil {
		return err
	}

	err = m.eventBus.Subscribe(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = m.coordinator.ResumeRunning(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to resume running instances", "error", err)
	}

	m.logger.InfoContext(ctx, "Coordinator started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down coordinator...")

	return nil
}

func (m *CoordinatorManager) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for RunRequested")

		return nil
	}

	logger := m.logger.With(
		"workflow_name", requested.WorkflowName,
		"workflow_version", requested.WorkflowVersion,
		"event_id", requested.ID,
	)
	logger.InfoContext(ctx, "Processing run request")

	instance, err := m.coordinator.Start(ctx, requested.WorkflowName, requested.WorkflowVersion, requested.Input)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start run", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Run finished",
		"instance_id", instance.ID,
		"status", instance.Status)

	return nil
}
