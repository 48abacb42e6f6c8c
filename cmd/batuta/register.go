package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/batutahq/batuta/pkg/cmd"
	"github.com/batutahq/batuta/pkg/log"
	"github.com/batutahq/batuta/pkg/services"
)

func NewRegisterCommand() *cli.Command {
	return &cli.Command{
		Name:    "register",
		Aliases: []string{"reg"},
		Usage:   "Register a workflow definition version",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the workflow definition JSON file",
				Required: true,
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

			logger := log.WithModule("batuta").With("action", "register")

			definition, err := loadDefinition(command.String("file"))
			if err != nil {
				return err
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			definitionService := services.NewDefinition(persistence)

			registered, err := definitionService.Register(ctx, services.RegisterRequest{
				Definition: definition,
			})
			if err != nil {
				return fmt.Errorf("failed to register definition: %w", err)
			}

			fmt.Printf("Registered %q version %d\n", registered.Name, registered.Version)

			return nil
		},
	}
}
