package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/batutahq/batuta/pkg/cmd"
	"github.com/batutahq/batuta/pkg/log"
	"github.com/batutahq/batuta/pkg/services"
)

func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List registered workflow definitions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("batuta").With("action", "list")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			definitions, err := services.NewDefinition(persistence).List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list definitions: %w", err)
			}

			fmt.Println("Registered Workflows:")
			fmt.Println("=====================")

			for _, definition := range definitions {
				fmt.Printf("\n%s (version %d)\n", definition.Name, definition.Version)
				fmt.Printf("  Steps: %d\n", len(definition.Steps))
				fmt.Printf("  Conditions: %d\n", len(definition.Conditions))
				fmt.Printf("  Registered: %s\n", definition.CreatedAt.Format("2006-01-02 15:04:05"))
			}

			fmt.Printf("\nTotal: %d definition(s)\n", len(definitions))

			return nil
		},
	}
}
