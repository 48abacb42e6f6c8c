// Package schedule provides a cron-based run source: each entry starts a
// workflow run on its schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/batutahq/batuta/pkg/protocol"
)

// Entry binds one cron expression to one workflow.
type Entry struct {
	Name            string         `json:"name"`
	CronExpr        string         `json:"cron"`
	WorkflowName    string         `json:"workflow_name"`
	WorkflowVersion int            `json:"workflow_version"`
	Input           map[string]any `json:"input,omitempty"`
	Enabled         bool           `json:"enabled"`
}

type Source struct {
	entries []Entry
	logger  *slog.Logger
	cron    *cron.Cron
}

func NewSource(entries []Entry, logger *slog.Logger) *Source {
	return &Source{
		entries: entries,
		logger:  logger.With("module", "schedule_source"),
	}
}

func (s *Source) Validate(_ context.Context) error {
	if len(s.entries) == 0 {
		return errors.New("no schedule entries configured")
	}

	for _, entry := range s.entries {
		if entry.Name == "" {
			return errors.New("schedule entry name is required")
		}

		if entry.WorkflowName == "" {
			return fmt.Errorf("workflow name required for schedule entry %s", entry.Name)
		}

		if _, err := cron.ParseStandard(entry.CronExpr); err != nil {
			return fmt.Errorf("invalid cron expression %q for entry %s: %w", entry.CronExpr, entry.Name, err)
		}
	}

	return nil
}

func (s *Source) Start(ctx context.Context, callback protocol.RunCallback) error {
	s.logger.Info("Starting schedule source", "entries", len(s.entries))

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	for _, entry := range s.entries {
		if !entry.Enabled {
			s.logger.Info("Schedule entry disabled, skipping", "entry", entry.Name)

			continue
		}

		entry := entry

		_, err := s.cron.AddFunc(entry.CronExpr, func() {
			s.logger.Info("Schedule fired",
				"entry", entry.Name,
				"workflow_name", entry.WorkflowName,
				"fired_at", time.Now().UTC())

			err := callback(ctx, entry.WorkflowName, entry.WorkflowVersion, entry.Input)
			if err != nil {
				s.logger.Error("Scheduled run request failed",
					"entry", entry.Name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule entry %s: %w", entry.Name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Schedule source started")

	return nil
}

func (s *Source) Stop(_ context.Context) error {
	if s.cron == nil {
		return nil
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("Schedule source stopped")

	return nil
}
