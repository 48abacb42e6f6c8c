package protocol

import "context"

// RunCallback is invoked by a run source when an external signal asks for a
// workflow run to start.
type RunCallback func(ctx context.Context, workflowName string, workflowVersion int, input map[string]any) error

// RunSource is a long-running process converting external signals (schedules,
// queue messages) into run starts.
type RunSource interface {
	Start(ctx context.Context, callback RunCallback) error
	Stop(ctx context.Context) error
	Validate(ctx context.Context) error
}
