package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/batutahq/batuta/pkg/cmd"
	"github.com/batutahq/batuta/pkg/log"
	"github.com/batutahq/batuta/pkg/models"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a workflow definition file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the workflow definition JSON file",
				Required: true,
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

			logger := log.WithModule("batuta").With("action", "validate")

			definition, err := loadDefinition(command.String("file"))
			if err != nil {
				return err
			}

			if err := definition.Validate(); err != nil {
				return fmt.Errorf("definition %q is invalid: %w", definition.Name, err)
			}

			registry := cmd.NewRegistry(logger)
			if err := registry.ValidateDefinition(definition); err != nil {
				logger.Warn("Definition references operators outside the native set", "error", err)
			}

			fmt.Printf("Definition %q version %d is valid (%d steps, %d conditions)\n",
				definition.Name, definition.Version, len(definition.Steps), len(definition.Conditions))

			return nil
		},
	}
}

func loadDefinition(path string) (*models.WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var definition models.WorkflowDefinition
	if err := json.Unmarshal(raw, &definition); err != nil {
		return nil, fmt.Errorf("invalid definition file: %w", err)
	}

	return &definition, nil
}
