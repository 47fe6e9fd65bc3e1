package retry

import (
	"fmt"

	"github.com/crucible-dev/crucible/pkg/models"
)

// RoundResult is the material the decision function examines for one
// validation round: the aggregated status, the issue texts, and every
// individual check across all validators.
type RoundResult struct {
	// Status is the aggregated verdict status for the round.
	Status models.VerdictStatus
	// Issues is the round's issue texts (rejected validators' issues plus
	// formatted failed critical checks).
	Issues []string
	// Checks is the flattened check list from every validator.
	Checks []models.ValidationCheck
}

// RoundFromVerdicts builds a RoundResult from an aggregated verdict and the
// individual verdicts it was computed from.
func RoundFromVerdicts(agg models.AggregatedVerdict, verdicts []models.ValidatorVerdict) RoundResult {
	round := RoundResult{
		Status: agg.OverallStatus,
		Issues: agg.CriticalIssues,
	}
	for _, v := range verdicts {
		round.Checks = append(round.Checks, v.Checks...)
	}
	return round
}

// hasFailedCriticalCheck reports whether any check failed at critical
// severity.
func (r RoundResult) hasFailedCriticalCheck() bool {
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// Decision is the state machine's verdict on what happens next.
type Decision struct {
	// ShouldRetry is true only when Action is ActionRetry.
	ShouldRetry bool
	// Action is the selected next step.
	Action Action
	// Reason explains the selection in human-readable form.
	Reason string
	// PersistentIssues lists issues detected as repeating across attempts,
	// when persistence drove the decision.
	PersistentIssues []string
}

// ShouldRetry decides the next action for a cycle given its state and the
// latest validation round. It is a pure function: it never mutates state
// and renders the same decision for the same inputs.
//
// The max-attempts ceiling is checked before anything else so a cycle can
// never loop past its budget regardless of verdict content.
func ShouldRetry(state RetryState, round RoundResult) Decision {
	if state.CurrentAttempt >= state.MaxAttempts {
		return Decision{
			Action: ActionFail,
			Reason: fmt.Sprintf("max attempts reached (%d)", state.MaxAttempts),
		}
	}

	switch round.Status {
	case models.VerdictApproved:
		return Decision{Action: ActionSuccess, Reason: "all validators approved"}

	case models.VerdictNeedsReview:
		// Ambiguous verdicts are never retried automatically.
		return Decision{Action: ActionEscalate, Reason: "manual review required"}

	case models.VerdictRejected:
		return decideRejected(state, round)

	default:
		// Unknown status cannot be represented by the parser or the
		// aggregator; treat it like an ambiguous verdict if it appears.
		return Decision{Action: ActionEscalate, Reason: "manual review required"}
	}
}

func decideRejected(state RetryState, round RoundResult) Decision {
	if !AllRetryable(round.Issues) {
		return Decision{Action: ActionEscalate, Reason: "non-retryable issue detected"}
	}

	if round.hasFailedCriticalCheck() {
		return Decision{Action: ActionEscalate, Reason: "critical validation failure"}
	}

	persistent := DetectPersistentIssues(state.History, round.Issues)
	if len(persistent) > 0 && state.CurrentAttempt >= 2 {
		return Decision{
			Action:           ActionEscalate,
			Reason:           fmt.Sprintf("persistent issues after %d attempts", state.CurrentAttempt+1),
			PersistentIssues: persistent,
		}
	}

	return Decision{
		ShouldRetry: true,
		Action:      ActionRetry,
		Reason:      "retryable issues found",
	}
}
