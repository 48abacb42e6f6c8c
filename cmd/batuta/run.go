package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/batutahq/batuta/pkg/cmd"
	"github.com/batutahq/batuta/pkg/log"
	"github.com/batutahq/batuta/pkg/saga"
	"github.com/batutahq/batuta/pkg/services"
	"github.com/batutahq/batuta/pkg/workflow"
)

// NewRunCommand drives one run synchronously in-process, without a broker or
// a separate coordinator. Useful for local development and testing
// definitions end to end.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run a workflow synchronously and print the final snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow",
				Aliases:  []string{"w"},
				Usage:    "Workflow name to run",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "version",
				Usage:   "Workflow version to run (0 means latest)",
				Value:   0,
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "JSON object with the initial run context",
				Value:   "{}",
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("batuta").With("action", "run")

			var input map[string]any
			if err := json.Unmarshal([]byte(command.String("input")), &input); err != nil {
				return fmt.Errorf("invalid input JSON: %w", err)
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger)
			checkpoints := cmd.NewCheckpoints()

			version := int(command.Int("version"))
			if version <= 0 {
				latest, err := services.NewDefinition(persistence).Get(ctx, command.String("workflow"), 0)
				if err != nil {
					return err
				}

				version = latest.Version
			}

			executor := workflow.NewStepExecutor(registry, checkpoints, logger)
			coordinator := workflow.NewCoordinator(
				"cli-"+uuid.New().String()[:8],
				persistence,
				nil,
				executor,
				saga.NoopDriver{},
				logger,
			)

			instance, err := coordinator.Start(ctx, command.String("workflow"), version, input)
			if err != nil {
				return fmt.Errorf("run failed to start: %w", err)
			}

			snapshot, err := json.MarshalIndent(instance, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(snapshot))

			return nil
		},
	}
}
