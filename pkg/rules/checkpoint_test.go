package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batutahq/batuta/pkg/models"
)

// stubRule is a fixed-outcome rule for aggregation tests.
type stubRule struct {
	key        string
	passed     bool
	confidence int
	delay      time.Duration
	calls      int
}

func (r *stubRule) Key() string { return r.key }

func (r *stubRule) Evaluate(_ *models.WorkflowContext) models.RuleReport {
	r.calls++

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	reasons := []string(nil)
	if !r.passed {
		reasons = []string{r.key + " failed"}
	}

	return models.RuleReport{
		Rule:       r.key,
		Passed:     r.passed,
		Reasons:    reasons,
		Timestamp:  time.Now().UTC(),
		Confidence: r.confidence,
	}
}

func TestCheckpoint_WeightedConfidence(t *testing.T) {
	// One critical failing rule at weight 1.0, one passing rule at weight 0.5:
	// the verdict fails and confidence lands at round(50/1.5) = 33.
	checkpoint := NewCheckpoint("payment_gate").
		Add(&stubRule{key: "fraud", passed: false, confidence: 0}, 1.0, true).
		Add(&stubRule{key: "limits", passed: true, confidence: 100}, 0.5, false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())

	assert.False(t, verdict.Passed)
	assert.Equal(t, 33, verdict.Confidence)
	assert.Equal(t, []string{"fraud failed"}, verdict.Reasons)
	assert.Equal(t, 2, verdict.Metadata["rules_evaluated"])
	assert.Equal(t, 1, verdict.Metadata["rules_failed"])
}

func TestCheckpoint_AllPassGivesFullConfidence(t *testing.T) {
	checkpoint := NewCheckpoint("gate").
		Add(&stubRule{key: "a", passed: true}, 2.0, false).
		Add(&stubRule{key: "b", passed: true}, 0.25, false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())

	assert.True(t, verdict.Passed)
	assert.Equal(t, 100, verdict.Confidence)
	assert.Empty(t, verdict.Reasons)
}

func TestCheckpoint_AllFailWithZeroConfidence(t *testing.T) {
	checkpoint := NewCheckpoint("gate").
		Add(&stubRule{key: "a", passed: false, confidence: 0}, 1.0, false).
		Add(&stubRule{key: "b", passed: false, confidence: 0}, 3.0, false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())

	assert.False(t, verdict.Passed)
	assert.Equal(t, 0, verdict.Confidence)
	assert.Len(t, verdict.Reasons, 2)
}

func TestCheckpoint_WeightNeverFlipsTheVerdict(t *testing.T) {
	// A heavily down-weighted failing rule still fails the checkpoint.
	checkpoint := NewCheckpoint("gate").
		Add(&stubRule{key: "big", passed: true}, 100.0, false).
		Add(&stubRule{key: "tiny", passed: false, confidence: 0}, 0.001, false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())

	assert.False(t, verdict.Passed)
	assert.Equal(t, 100, verdict.Confidence) // rounds up, verdict still failed
}

func TestCheckpoint_FailFastSkipsRemainingRules(t *testing.T) {
	trailing := &stubRule{key: "trailing", passed: true}

	checkpoint := NewCheckpoint("gate", WithFailFast()).
		Add(&stubRule{key: "critical", passed: false, confidence: 0}, 1.0, true).
		Add(trailing, 1.0, false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())

	assert.False(t, verdict.Passed)
	assert.Equal(t, 0, trailing.calls)
	assert.Equal(t, 1, verdict.Metadata["rules_evaluated"])
}

func TestCheckpoint_FailFastIgnoresNonCriticalFailures(t *testing.T) {
	trailing := &stubRule{key: "trailing", passed: true}

	checkpoint := NewCheckpoint("gate", WithFailFast()).
		Add(&stubRule{key: "optional", passed: false, confidence: 0}, 1.0, false).
		Add(trailing, 1.0, false)

	checkpoint.Run(t.Context(), models.NewWorkflowContext())

	assert.Equal(t, 1, trailing.calls)
}

func TestCheckpoint_ParallelCollectsEveryOutcome(t *testing.T) {
	checkpoint := NewCheckpoint("gate", WithParallel(time.Second), WithFailFast()).
		Add(&stubRule{key: "a", passed: false, confidence: 0}, 1.0, true).
		Add(&stubRule{key: "b", passed: true}, 1.0, false).
		Add(&stubRule{key: "c", passed: true}, 1.0, false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())

	// Fail-fast does not apply in parallel mode.
	assert.Equal(t, 3, verdict.Metadata["rules_evaluated"])
	assert.False(t, verdict.Passed)
}

func TestCheckpoint_ParallelTimeoutCountsAsFailure(t *testing.T) {
	checkpoint := NewCheckpoint("gate", WithParallel(20*time.Millisecond)).
		Add(&stubRule{key: "slow", passed: true, delay: 500 * time.Millisecond}, 1.0, false).
		Add(&stubRule{key: "fast", passed: true}, 1.0, false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())

	assert.False(t, verdict.Passed)
	assert.Equal(t, 1, verdict.Metadata["rules_failed"])
	assert.Equal(t, 50, verdict.Confidence)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "timed out")
}

func TestCheckpoint_SetEnabledAndRemove(t *testing.T) {
	disabled := &stubRule{key: "disabled", passed: false, confidence: 0}

	checkpoint := NewCheckpoint("gate").
		Add(&stubRule{key: "keep", passed: true}, 1.0, false).
		Add(disabled, 1.0, false)

	checkpoint.SetEnabled("disabled", false)

	verdict := checkpoint.Run(t.Context(), models.NewWorkflowContext())
	assert.True(t, verdict.Passed)
	assert.Equal(t, 0, disabled.calls)

	checkpoint.SetEnabled("disabled", true)
	checkpoint.Remove("disabled")

	verdict = checkpoint.Run(t.Context(), models.NewWorkflowContext())
	assert.True(t, verdict.Passed)
	assert.Equal(t, 0, disabled.calls)
}

func TestCheckpoint_EmptyCheckpointPassesWithZeroConfidence(t *testing.T) {
	verdict := NewCheckpoint("empty").Run(t.Context(), models.NewWorkflowContext())

	assert.True(t, verdict.Passed)
	assert.Equal(t, 0, verdict.Confidence)
}

func TestRuleEvaluationIsIdempotent(t *testing.T) {
	rule := NewRequiredKeysRule("required", "order_id", "amount")
	ctx := models.NewWorkflowContextFrom(map[string]any{"order_id": "o-1"})

	first := rule.Evaluate(ctx)
	second := rule.Evaluate(ctx)

	assert.Equal(t, first.Passed, second.Passed)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Reasons, second.Reasons)
}
