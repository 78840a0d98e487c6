package logging

import "time"

// Outcomes recorded in evaluation_log.outcome besides a fault kind.
const (
	OutcomeOK       = "ok"
	OutcomeInternal = "internal"
)

// #region evaluation-entry
// EvaluationEntry is a single row in the evaluation_log table.
type EvaluationEntry struct {
	VersionID string
	InputKind string // "scalar" | "array"
	Points    int
	Strength  float64
	Outcome   string // OutcomeOK, OutcomeInternal or a fault kind
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}
// #endregion evaluation-entry
