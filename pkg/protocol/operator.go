// Package protocol defines the boundary contracts callers implement to plug
// business operations and run sources into the engine.
package protocol

import "context"

// OperatorCall is one resolved business operation. Input is the step's
// rendered input mapping; the returned map becomes the step's result.
//
// The engine persists the instance after every transition and may re-enter a
// step after a crash, so calls should be idempotent on the caller's side.
type OperatorCall func(ctx context.Context, input map[string]any) (map[string]any, error)

// Operator exposes named methods resolvable by the registry.
type Operator interface {
	ID() string
	Method(name string) (OperatorCall, bool)
}
