package rules

import (
	"errors"
	"fmt"
)

// ErrCheckpointNotFound indicates a step referenced a checkpoint that was
// never registered.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointRegistry resolves checkpoint names referenced by workflow steps.
// Registration happens at composition time, before any run starts.
type CheckpointRegistry struct {
	checkpoints map[string]*Checkpoint
}

func NewCheckpointRegistry() *CheckpointRegistry {
	return &CheckpointRegistry{
		checkpoints: make(map[string]*Checkpoint),
	}
}

func (r *CheckpointRegistry) Register(checkpoint *Checkpoint) {
	r.checkpoints[checkpoint.Name()] = checkpoint
}

func (r *CheckpointRegistry) Resolve(name string) (*Checkpoint, error) {
	checkpoint, ok := r.checkpoints[name]
	if !ok {
		return nil, fmt.Errorf("checkpoint %q: %w", name, ErrCheckpointNotFound)
	}

	return checkpoint, nil
}

func (r *CheckpointRegistry) Has(name string) bool {
	_, ok := r.checkpoints[name]

	return ok
}
