package models

import "time"

// RuleReport is the verdict a rule evaluation produces. Reports are created
// fresh on every evaluation and never mutated.
type RuleReport struct {
	Rule       string         `json:"rule"`
	Passed     bool           `json:"passed"`
	Reasons    []string       `json:"reasons,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Duration   time.Duration  `json:"duration"`
	Confidence int            `json:"confidence"` // 0-100
	Metadata   map[string]any `json:"metadata,omitempty"`
}
