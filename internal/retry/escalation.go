package retry

import (
	"fmt"
	"regexp"

	"github.com/crucible-dev/crucible/pkg/models"
)

// securityPattern matches issue text that indicates a security finding.
// Security findings always route to the architect tier, ahead of every
// other escalation rule.
var securityPattern = regexp.MustCompile(`(?i)security|vulnerab|sensitive data|sql injection|xss|hardcoded|api key|secret|credential`)

// environmentPattern matches issue text that indicates missing
// dependencies or configuration that no agent can install on its own.
var environmentPattern = regexp.MustCompile(`(?i)missing dependency|missing dependencies|module not found|package not installed|config file not found`)

// humanRetryLimit is the attempt count past which automated escalation
// targets stop being useful and a human takes over.
const humanRetryLimit = 5

// coordinatorPersistenceThreshold is the attempt count at which repeating
// issues are routed to the coordinator.
const coordinatorPersistenceThreshold = 3

// EscalationContext carries everything the escalation target needs so it
// does not have to re-derive the cycle's history.
type EscalationContext struct {
	// History is the cycle's attempt history snapshot.
	History []RetryAttempt `json:"history,omitempty"`
	// PersistentIssues lists issues that repeated across attempts.
	PersistentIssues []string `json:"persistent_issues,omitempty"`
	// SuggestedAction is a human-readable recommendation for the target.
	SuggestedAction string `json:"suggested_action,omitempty"`
}

// EscalationDecision names who receives an escalated task and why.
type EscalationDecision struct {
	// ShouldEscalate is false when no escalation rule fired.
	ShouldEscalate bool `json:"should_escalate"`
	// Level is the escalation target.
	Level models.EscalationLevel `json:"level"`
	// Reason explains the selection.
	Reason string `json:"reason"`
	// Context is the supporting material for the target.
	Context EscalationContext `json:"context"`
}

// DetermineEscalation selects the escalation target for a cycle. Rules are
// evaluated in fixed priority order and the first match wins:
//
//  1. Security findings go to the architect.
//  2. Past the human retry limit, a human takes over.
//  3. Missing dependencies or configuration go to a human.
//  4. Persistent issues at three or more attempts go to the coordinator.
//  5. A failed critical check goes to the architect.
//
// When no rule fires the decision is informational: ShouldEscalate is
// false and the level defaults to coordinator.
func DetermineEscalation(state RetryState, round RoundResult) EscalationDecision {
	persistent := DetectPersistentIssues(state.History, round.Issues)

	base := EscalationContext{
		History:          state.History,
		PersistentIssues: persistent,
	}

	if anyMatch(round.Issues, securityPattern) {
		base.SuggestedAction = "route to the architect tier for a security review before any further automated changes"
		return EscalationDecision{
			ShouldEscalate: true,
			Level:          models.EscalateArchitect,
			Reason:         "critical security issue detected",
			Context:        base,
		}
	}

	if state.CurrentAttempt >= humanRetryLimit {
		base.SuggestedAction = "decompose the task into smaller pieces or provide direct guidance"
		return EscalationDecision{
			ShouldEscalate: true,
			Level:          models.EscalateHuman,
			Reason:         "exceeded reasonable retry limit",
			Context:        base,
		}
	}

	if anyMatch(round.Issues, environmentPattern) {
		base.SuggestedAction = "install required dependencies or fix the configuration manually"
		return EscalationDecision{
			ShouldEscalate: true,
			Level:          models.EscalateHuman,
			Reason:         "missing dependencies or configuration",
			Context:        base,
		}
	}

	if len(persistent) > 0 && state.CurrentAttempt >= coordinatorPersistenceThreshold {
		base.SuggestedAction = "reassign with revised requirements or a different builder"
		return EscalationDecision{
			ShouldEscalate: true,
			Level:          models.EscalateCoordinator,
			Reason:         fmt.Sprintf("persistent issues after %d attempts", state.CurrentAttempt),
			Context:        base,
		}
	}

	if round.hasFailedCriticalCheck() {
		base.SuggestedAction = "have the architect review the failing critical check"
		return EscalationDecision{
			ShouldEscalate: true,
			Level:          models.EscalateArchitect,
			Reason:         "critical validation check failed",
			Context:        base,
		}
	}

	return EscalationDecision{
		ShouldEscalate: false,
		Level:          models.EscalateCoordinator,
		Reason:         "no escalation rule matched",
		Context:        base,
	}
}

func anyMatch(issues []string, pattern *regexp.Regexp) bool {
	for _, issue := range issues {
		if pattern.MatchString(issue) {
			return true
		}
	}
	return false
}
