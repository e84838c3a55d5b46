package domain

import "strings"

// CallOutcome describes how a wrapped task call produced its value.
type CallOutcome string

const (
	// OutcomeMemoized indicates the value was already produced earlier in the same run.
	OutcomeMemoized CallOutcome = "memoized"
	// OutcomeCached indicates a stored output from a previous run was reused.
	OutcomeCached CallOutcome = "cached"
	// OutcomeExecuted indicates the task body ran and its output was materialized.
	OutcomeExecuted CallOutcome = "executed"
	// OutcomeFailed indicates the call returned an error.
	OutcomeFailed CallOutcome = "failed"
	// OutcomeSkipped indicates the scheduler did not call the task because an upstream call failed.
	OutcomeSkipped CallOutcome = "skipped"
)

// Reused reports whether the call returned without running the task body.
func (o CallOutcome) Reused() bool {
	return o == OutcomeMemoized || o == OutcomeCached
}

// NormalizeCallOutcome converts a string to a CallOutcome, defaulting to executed if unknown.
func NormalizeCallOutcome(s string) CallOutcome {
	switch o := CallOutcome(strings.ToLower(s)); o {
	case OutcomeMemoized, OutcomeCached, OutcomeFailed, OutcomeSkipped:
		return o
	default:
		return OutcomeExecuted
	}
}
