package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/batutahq/batuta/pkg/cmd"
	"github.com/batutahq/batuta/pkg/log"
	"github.com/batutahq/batuta/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "batuta-coordinator",
		EnableShellCompletion: true,
		Usage:                 "Start a coordinator to drive workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "coordinator-id",
				Aliases: []string{"id"},
				Usage:   "Custom coordinator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("COORDINATOR_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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

			coordinatorID := command.String("coordinator-id")
			if coordinatorID == "" {
				coordinatorID = "coordinator-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("batuta-coordinator").With("coordinator_id", coordinatorID)

			logger.InfoContext(ctx, "Initializing Batuta Coordinator")

			_, err := otelhelper.NewTracer(ctx, "batuta-coordinator")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			registry := cmd.NewRegistry(logger)
			checkpoints := cmd.NewCheckpoints()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "batuta-coordinator", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			manager := NewCoordinatorManager(
				coordinatorID,
				persistence,
				eventBus,
				registry,
				checkpoints,
				logger,
			)

			err = manager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start coordinator", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
