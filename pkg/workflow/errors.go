package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/batutahq/batuta/pkg/models"
)

var (
	// ErrCompensationStepForward indicates a compensation-kind step was asked
	// to run during forward execution. Compensations execute only on rollback.
	ErrCompensationStepForward = errors.New("compensation step cannot run in forward execution")

	// ErrParallelSubStepFailed indicates at least one sub-step of a parallel
	// fan-out failed. All outcomes are still collected before this surfaces.
	ErrParallelSubStepFailed = errors.New("parallel sub-step failed")

	// ErrUnknownStepKind indicates a step kind the executor cannot dispatch.
	ErrUnknownStepKind = errors.New("unknown step kind")
)

// CheckpointError carries the failed verdict of a rule checkpoint gating a
// step. The gate runs before the operator call, so the step's side effect
// never happened.
type CheckpointError struct {
	Checkpoint string
	Report     models.RuleReport
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %q failed (confidence %d): %s",
		e.Checkpoint, e.Report.Confidence, strings.Join(e.Report.Reasons, "; "))
}

// IsCheckpointError reports whether err carries a failed checkpoint verdict.
func IsCheckpointError(err error) bool {
	var target *CheckpointError

	return errors.As(err, &target)
}
