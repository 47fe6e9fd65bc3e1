package retry

import (
	"fmt"
	"strings"
)

// AttemptSummary is the per-attempt line in a failure report.
type AttemptSummary struct {
	// Attempt is the 0-indexed attempt number.
	Attempt int `json:"attempt"`
	// Action is the decision rendered for the attempt.
	Action Action `json:"action"`
	// Issues is the attempt's issue snapshot.
	Issues []string `json:"issues,omitempty"`
}

// FailureReport is the terminal audit artifact for a cycle that did not
// succeed. It is generated once, when the cycle terminates, and is meant
// for a human or an upstream agent.
type FailureReport struct {
	// TaskID is the task the cycle belonged to.
	TaskID string `json:"task_id"`
	// TotalAttempts is how many attempts were recorded.
	TotalAttempts int `json:"total_attempts"`
	// FinalStatus is failed or escalated.
	FinalStatus CycleStatus `json:"final_status"`
	// PersistentIssues lists issues that repeated across two or more
	// attempts.
	PersistentIssues []string `json:"persistent_issues,omitempty"`
	// AttemptSummary holds one entry per recorded attempt.
	AttemptSummary []AttemptSummary `json:"attempt_summary"`
	// RootCauseAnalysis is a generated explanation of why the cycle failed.
	RootCauseAnalysis string `json:"root_cause_analysis"`
	// RecommendedAction is a generated next step.
	RecommendedAction string `json:"recommended_action"`
	// Evidence is the flattened evidence from every attempt.
	Evidence []string `json:"evidence,omitempty"`
}

// GenerateFailureReport assembles the audit artifact for a terminated,
// unsuccessful cycle. The final round is the last validation result the
// state machine saw; it may carry issues not yet recorded in history.
func GenerateFailureReport(taskID string, state RetryState, final RoundResult) FailureReport {
	persistent := historyPersistentIssues(state)

	status := state.Status
	if !status.Terminal() || status == StatusSuccess {
		status = StatusFailed
	}

	report := FailureReport{
		TaskID:            taskID,
		TotalAttempts:     state.CurrentAttempt,
		FinalStatus:       status,
		PersistentIssues:  persistent,
		AttemptSummary:    summarizeAttempts(state.History),
		RootCauseAnalysis: rootCauseAnalysis(state, final, persistent),
		RecommendedAction: recommendedAction(state, final, persistent),
		Evidence:          flattenEvidence(state.History),
	}
	return report
}

func summarizeAttempts(history []RetryAttempt) []AttemptSummary {
	summary := make([]AttemptSummary, 0, len(history))
	for _, a := range history {
		summary = append(summary, AttemptSummary{
			Attempt: a.Number,
			Action:  a.Action,
			Issues:  a.Issues,
		})
	}
	return summary
}

// historyPersistentIssues finds issues that appear in two or more attempts
// of the recorded history.
func historyPersistentIssues(state RetryState) []string {
	var persistent []string
	for i, attempt := range state.History {
		if i == 0 {
			continue
		}
		for _, issue := range attempt.Issues {
			if seenBefore(state.History[:i], issue) && !containsMatch(persistent, issue) {
				persistent = append(persistent, issue)
			}
		}
	}
	return persistent
}

func rootCauseAnalysis(state RetryState, final RoundResult, persistent []string) string {
	if len(persistent) > 0 {
		return fmt.Sprintf(
			"The following issues persisted across %d attempts: %s. "+
				"Repetition despite targeted feedback indicates either a misunderstanding "+
				"of the requirements or a capability limit of the builder.",
			state.CurrentAttempt, strings.Join(persistent, "; "))
	}

	if len(state.History) == 0 {
		return "No attempts were recorded; the builder phase likely failed before producing output."
	}

	last := state.History[len(state.History)-1]
	issues := last.Issues
	if len(issues) == 0 {
		issues = final.Issues
	}
	if len(issues) == 0 {
		return fmt.Sprintf("The final attempt (%d) was not approved but reported no specific issues.", last.Number)
	}
	return fmt.Sprintf("The final attempt (%d) failed with: %s.", last.Number, strings.Join(issues, "; "))
}

func recommendedAction(state RetryState, final RoundResult, persistent []string) string {
	// Prefer the matching escalation rule's suggestion when one fires.
	if esc := DetermineEscalation(state, final); esc.ShouldEscalate {
		return esc.Context.SuggestedAction
	}

	all := append(append([]string(nil), final.Issues...), state.AllIssues()...)
	joined := strings.ToLower(strings.Join(all, " "))
	switch {
	case strings.Contains(joined, "dependency") || strings.Contains(joined, "module not found"):
		return "install or pin the missing dependencies, then re-run the task"
	case strings.Contains(joined, "type"):
		return "review the type definitions involved and align the implementation with them"
	case strings.Contains(joined, "security") || strings.Contains(joined, "vulnerab"):
		return "request a security review before making further automated changes"
	}

	if state.CurrentAttempt >= humanRetryLimit {
		return "decompose the task into smaller pieces or seek human guidance"
	}
	return "review the issues from the last attempt and adjust the task requirements"
}

func flattenEvidence(history []RetryAttempt) []string {
	var evidence []string
	for _, a := range history {
		if a.Builder != nil {
			for _, e := range a.Builder.Evidence {
				if e.Content != "" {
					evidence = append(evidence, e.Content)
				}
			}
		}
		if a.Verdict != nil {
			evidence = append(evidence, a.Verdict.AllEvidence...)
		}
	}
	return evidence
}
