package types

import "strings"

// PredictionTaskState is the server-reported status of a task. The set of
// in-progress values is open; only success and failure are recognised.
type PredictionTaskState string

const (
	// StatePredicted is the single success literal
	StatePredicted PredictionTaskState = "predicted"
	// StatePending is what the service reports before a task is picked up
	StatePending PredictionTaskState = "pending"
	// FailedStatePrefix starts every failure state, e.g. "failed_timeout"
	FailedStatePrefix = "failed"
)

// IsSuccessful reports whether state is the success literal
func IsSuccessful(state PredictionTaskState) bool {
	return state == StatePredicted
}

// IsFailed reports whether state carries the failure prefix
func IsFailed(state PredictionTaskState) bool {
	return strings.HasPrefix(string(state), FailedStatePrefix)
}

// IsTerminal reports whether polling can stop
func IsTerminal(state PredictionTaskState) bool {
	return IsSuccessful(state) || IsFailed(state)
}

func (s PredictionTaskState) IsSuccessful() bool { return IsSuccessful(s) }
func (s PredictionTaskState) IsFailed() bool     { return IsFailed(s) }
func (s PredictionTaskState) IsTerminal() bool   { return IsTerminal(s) }

func (s PredictionTaskState) String() string {
	return string(s)
}
