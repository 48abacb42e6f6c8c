// Package rules implements the business-rule validation pipeline: pure rule
// sets aggregated into weighted checkpoints producing a pass/fail verdict
// with a confidence score.
package rules

import (
	"time"

	"github.com/batutahq/batuta/pkg/models"
)

// RuleSet is a pure validation function over a run context. Same context in,
// same report out; no observable side effects. Configuration (thresholds,
// compiled schemas) is fixed at construction.
//
// Rules are addressed by a stable key so checkpoints can add, remove, and
// enable them by identifier.
type RuleSet interface {
	Key() string
	Evaluate(ctx *models.WorkflowContext) models.RuleReport
}

// report stamps the shared fields every rule evaluation produces.
func report(key string, started time.Time, passed bool, confidence int, reasons []string) models.RuleReport {
	return models.RuleReport{
		Rule:       key,
		Passed:     passed,
		Reasons:    reasons,
		Timestamp:  started.UTC(),
		Duration:   time.Since(started),
		Confidence: confidence,
	}
}
