package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/batutahq/batuta/pkg/eventbus"
	"github.com/batutahq/batuta/pkg/events"
	"github.com/batutahq/batuta/pkg/protocol"
	"github.com/batutahq/batuta/pkg/sources/queue"
	"github.com/batutahq/batuta/pkg/sources/schedule"
)

// SourceConfig selects which run sources the manager starts.
type SourceConfig struct {
	SchedulesFile string
	Queue         string
	RedisAddr     string
	RedisPassword string
}

// SourceManager owns the configured run sources and bridges them to the
// event bus: every source signal becomes one run.requested event.
type SourceManager struct {
	eventBus eventbus.EventBus
	logger   *slog.Logger
	config   SourceConfig
	sources  []protocol.RunSource
}

func NewSourceManager(eventBus eventbus.EventBus, logger *slog.Logger, config SourceConfig) *SourceManager {
	return &SourceManager{
		eventBus: eventBus,
		logger:   logger.With("module", "source_manager"),
		config:   config,
	}
}

func (m *SourceManager) Start(ctx context.Context) error {
	err := m.buildSources()
	if err != nil {
		return err
	}

	if len(m.sources) == 0 {
		return errors.New("no run sources configured")
	}

	for _, source := range m.sources {
		err := source.Validate(ctx)
		if err != nil {
			return err
		}
	}

	for _, source := range m.sources {
		err := source.Start(ctx, m.requestRun)
		if err != nil {
			return err
		}
	}

	m.logger.InfoContext(ctx, "Sources started", "count", len(m.sources))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down sources...")

	for _, source := range m.sources {
		err := source.Stop(ctx)
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to stop source", "error", err)
		}
	}

	return nil
}

func (m *SourceManager) buildSources() error {
	if m.config.SchedulesFile != "" {
		entries, err := loadScheduleEntries(m.config.SchedulesFile)
		if err != nil {
			return err
		}

		m.sources = append(m.sources, schedule.NewSource(entries, m.logger))
	}

	if m.config.Queue != "" {
		connection := map[string]string{
			"addr":     m.config.RedisAddr,
			"password": m.config.RedisPassword,
		}

		m.sources = append(m.sources, queue.NewSource(m.config.Queue, connection, m.logger))
	}

	return nil
}

func (m *SourceManager) requestRun(ctx context.Context, workflowName string, workflowVersion int, input map[string]any) error {
	event := events.RunRequested{
		BaseEvent: events.NewBaseEvent(events.RunRequestedEvent, workflowName, workflowVersion),
		Input:     input,
	}

	return m.eventBus.Publish(ctx, string(events.RunRequestedEvent), event)
}

func loadScheduleEntries(path string) ([]schedule.Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules file: %w", err)
	}

	var entries []schedule.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid schedules file: %w", err)
	}

	return entries, nil
}
