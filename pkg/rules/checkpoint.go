package rules

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/batutahq/batuta/pkg/models"
)

const passedConfidence = 100

// Checkpoint aggregates weighted rule sets into one verdict. Registration is
// an ordinary builder operation performed at setup time; Run itself is
// stateless per invocation.
//
// Weighting affects only the confidence score, never the pass/fail verdict:
// the aggregate passes only when no evaluated rule failed.
type Checkpoint struct {
	name    string
	entries []*checkpointEntry

	failFast       bool
	parallel       bool
	perRuleTimeout time.Duration
}

type checkpointEntry struct {
	rule     RuleSet
	weight   float64
	critical bool
	disabled bool
}

type CheckpointOption func(*Checkpoint)

// WithFailFast skips remaining rules in sequential mode once a critical rule
// fails.
func WithFailFast() CheckpointOption {
	return func(c *Checkpoint) {
		c.failFast = true
	}
}

// WithParallel evaluates rules concurrently, each bounded by the per-rule
// timeout. Fail-fast does not apply in parallel mode; every rule's outcome is
// collected before aggregation.
func WithParallel(perRuleTimeout time.Duration) CheckpointOption {
	return func(c *Checkpoint) {
		c.parallel = true
		c.perRuleTimeout = perRuleTimeout
	}
}

func NewCheckpoint(name string, opts ...CheckpointOption) *Checkpoint {
	checkpoint := &Checkpoint{
		name:    name,
		entries: make([]*checkpointEntry, 0),
	}

	for _, opt := range opts {
		opt(checkpoint)
	}

	return checkpoint
}

func (c *Checkpoint) Name() string {
	return c.name
}

// Add registers a rule with its weight. Critical rules participate in
// fail-fast short-circuiting. Registration order is evaluation order.
func (c *Checkpoint) Add(rule RuleSet, weight float64, critical bool) *Checkpoint {
	c.entries = append(c.entries, &checkpointEntry{
		rule:     rule,
		weight:   weight,
		critical: critical,
	})

	return c
}

// Remove drops a rule by key. Removing an unknown key is a no-op.
func (c *Checkpoint) Remove(key string) {
	for i, entry := range c.entries {
		if entry.rule.Key() == key {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)

			return
		}
	}
}

// SetEnabled toggles a rule by key without losing its registration order.
func (c *Checkpoint) SetEnabled(key string, enabled bool) {
	for _, entry := range c.entries {
		if entry.rule.Key() == key {
			entry.disabled = !enabled

			return
		}
	}
}

// Run evaluates every enabled rule and aggregates the reports:
//
//   - passed is true only when no evaluated rule failed (timeouts count as
//     failures);
//   - confidence is round(sum(weight*effective)/sum(weight)), where effective
//     is 100 for a passing rule and the rule's own confidence otherwise;
//   - reasons concatenate the failing rules' reasons in rule order.
func (c *Checkpoint) Run(ctx context.Context, wctx *models.WorkflowContext) models.RuleReport {
	started := time.Now()

	active := make([]*checkpointEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		if !entry.disabled {
			active = append(active, entry)
		}
	}

	var reports []models.RuleReport
	if c.parallel {
		reports = c.runParallel(ctx, active, wctx)
	} else {
		reports = c.runSequential(active, wctx)
	}

	return c.aggregate(started, active[:len(reports)], reports)
}

func (c *Checkpoint) runSequential(entries []*checkpointEntry, wctx *models.WorkflowContext) []models.RuleReport {
	reports := make([]models.RuleReport, 0, len(entries))

	for _, entry := range entries {
		rep := entry.rule.Evaluate(wctx)
		reports = append(reports, rep)

		if c.failFast && entry.critical && !rep.Passed {
			break
		}
	}

	return reports
}

func (c *Checkpoint) runParallel(ctx context.Context, entries []*checkpointEntry, wctx *models.WorkflowContext) []models.RuleReport {
	reports := make([]models.RuleReport, len(entries))

	var wg sync.WaitGroup

	for i, entry := range entries {
		wg.Add(1)

		go func(i int, entry *checkpointEntry) {
			defer wg.Done()

			reports[i] = c.evaluateWithTimeout(ctx, entry.rule, wctx)
		}(i, entry)
	}

	wg.Wait()

	return reports
}

func (c *Checkpoint) evaluateWithTimeout(ctx context.Context, rule RuleSet, wctx *models.WorkflowContext) models.RuleReport {
	if c.perRuleTimeout <= 0 {
		return rule.Evaluate(wctx)
	}

	started := time.Now()
	done := make(chan models.RuleReport, 1)

	go func() {
		done <- rule.Evaluate(wctx)
	}()

	timer := time.NewTimer(c.perRuleTimeout)
	defer timer.Stop()

	select {
	case rep := <-done:
		return rep
	case <-ctx.Done():
		return report(rule.Key(), started, false, 0,
			[]string{fmt.Sprintf("rule %q cancelled: %v", rule.Key(), ctx.Err())})
	case <-timer.C:
		return report(rule.Key(), started, false, 0,
			[]string{fmt.Sprintf("rule %q timed out after %s", rule.Key(), c.perRuleTimeout)})
	}
}

func (c *Checkpoint) aggregate(started time.Time, entries []*checkpointEntry, reports []models.RuleReport) models.RuleReport {
	passed := true
	failed := 0

	var weightSum, weightedConfidence float64

	reasons := make([]string, 0)

	for i, rep := range reports {
		effective := float64(rep.Confidence)
		if rep.Passed {
			effective = passedConfidence
		} else {
			passed = false
			failed++

			reasons = append(reasons, rep.Reasons...)
		}

		weightSum += entries[i].weight
		weightedConfidence += entries[i].weight * effective
	}

	confidence := 0
	if weightSum > 0 {
		confidence = int(math.Round(weightedConfidence / weightSum))
	}

	aggregate := report(c.name, started, passed, confidence, reasons)
	aggregate.Metadata = map[string]any{
		"rules_evaluated": len(reports),
		"rules_failed":    failed,
		"parallel":        c.parallel,
	}

	return aggregate
}
