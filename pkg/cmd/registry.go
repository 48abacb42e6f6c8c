// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/batutahq/batuta/pkg/operators/httprequest"
	"github.com/batutahq/batuta/pkg/operators/logop"
	"github.com/batutahq/batuta/pkg/operators/transform"
	"github.com/batutahq/batuta/pkg/registry"
	"github.com/batutahq/batuta/pkg/rules"
)

// NewRegistry builds the operator registry with the native operators.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(httprequest.NewOperator(logger))
	reg.Register(transform.NewOperator(logger))
	reg.Register(logop.NewOperator(logger))

	return reg
}

// NewCheckpoints builds an empty checkpoint registry for callers to populate
// from configuration.
func NewCheckpoints() *rules.CheckpointRegistry {
	return rules.NewCheckpointRegistry()
}
