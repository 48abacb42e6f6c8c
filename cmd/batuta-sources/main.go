package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/batutahq/batuta/pkg/cmd"
	"github.com/batutahq/batuta/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "batuta-sources",
		Usage:                 "Convert external signals (schedules, queue messages) into workflow runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "schedules-file",
				Usage:   "Path to the JSON file with schedule entries",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULES_FILE"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Redis list to consume run requests from (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("RUN_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the queue source",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the queue source",
				Value:   "",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
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

			logger := log.WithModule("batuta-sources")

			logger.InfoContext(ctx, "Initializing Batuta sources")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "batuta-sources", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			manager := NewSourceManager(eventBus, logger, SourceConfig{
				SchedulesFile: command.String("schedules-file"),
				Queue:         command.String("queue"),
				RedisAddr:     command.String("redis-addr"),
				RedisPassword: command.String("redis-password"),
			})

			err := manager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start sources", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
