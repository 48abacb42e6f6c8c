// Package logop provides a logging operator, useful as a checkpoint probe and
// in examples.
package logop

import (
	"context"
	"log/slog"

	"github.com/batutahq/batuta/pkg/protocol"
)

type Operator struct {
	logger *slog.Logger
}

func NewOperator(logger *slog.Logger) *Operator {
	return &Operator{logger: logger.With("module", "log_operator")}
}

func (o *Operator) ID() string {
	return "log"
}

func (o *Operator) Method(name string) (protocol.OperatorCall, bool) {
	switch name {
	case "info":
		return o.emit(slog.LevelInfo), true
	case "warn":
		return o.emit(slog.LevelWarn), true
	case "error":
		return o.emit(slog.LevelError), true
	default:
		return nil, false
	}
}

func (o *Operator) emit(level slog.Level) protocol.OperatorCall {
	return func(ctx context.Context, input map[string]any) (map[string]any, error) {
		message, _ := input["message"].(string)

		attrs := make([]any, 0, len(input)*2)
		for key, value := range input {
			if key == "message" {
				continue
			}

			attrs = append(attrs, key, value)
		}

		o.logger.Log(ctx, level, message, attrs...)

		return map[string]any{"logged": true}, nil
	}
}
